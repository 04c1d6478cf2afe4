// Package persistence stores the engine's named collections as JSON
// files: atomic writes, gzip-compressed timestamped backups, and a
// retention sweep. The render
// and scheduling core treats this as an opaque collaborator it calls into
// on every mutation; persistence failures are logged and otherwise
// swallowed so in-memory state stays authoritative.
package persistence

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lestrrat-go/strftime"

	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
)

// Store persists named collections ("devices", "scenes", ...) as JSON files
// under DataDir, backing each save up to BackupDir before it overwrites the
// primary file.
type Store struct {
	dataDir   string
	backupDir string
	retention time.Duration

	mu sync.Mutex

	stopSweep chan struct{}
	sweepDone chan struct{}
}

// New creates a Store rooted at dataDir, with backups written to backupDir
// and pruned after retention. It ensures both directories exist.
func New(dataDir, backupDir string, retention time.Duration) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create data dir: %w", err)
	}
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("persistence: create backup dir: %w", err)
	}
	return &Store{
		dataDir:   dataDir,
		backupDir: backupDir,
		retention: retention,
	}, nil
}

func (s *Store) primaryPath(kind string) string {
	return filepath.Join(s.dataDir, kind+".json")
}

// Save marshals data as JSON and atomically replaces kind's primary file,
// first backing up whatever was there. Errors are returned to the caller
// (internal/store logs and ignores them); this function itself never
// panics on a missing primary file — there's simply nothing to back up yet.
func (s *Store) Save(kind string, data any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	primary := s.primaryPath(kind)

	if _, err := os.Stat(primary); err == nil {
		if err := s.backup(kind, primary); err != nil {
			log.Printf("⚠️  backup failed for %s: %v", kind, err)
		}
	}

	payload, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("persistence: marshal %s: %w", kind, err)
	}

	tmp := primary + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("persistence: write temp file for %s: %w", kind, err)
	}
	if err := os.Rename(tmp, primary); err != nil {
		return fmt.Errorf("persistence: atomic rename for %s: %w", kind, err)
	}
	return nil
}

// Load reads kind's primary file into v. A missing file is not an error:
// v is left untouched and callers treat that as an empty collection.
func (s *Store) Load(kind string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.primaryPath(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("persistence: read %s: %w", kind, err)
	}
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("persistence: unmarshal %s: %w", kind, err)
	}
	return nil
}

// LoadAll reads every persisted collection into one snapshot. Kinds
// whose files don't exist yet come back empty; a corrupt
// file aborts the load so the operator can inspect it rather than silently
// starting from a partial state.
func (s *Store) LoadAll() (model.Snapshot, error) {
	var snap model.Snapshot
	if err := s.Load("devices", &snap.Devices); err != nil {
		return snap, err
	}
	if err := s.Load("scenes", &snap.Scenes); err != nil {
		return snap, err
	}
	if err := s.Load("groups", &snap.Groups); err != nil {
		return snap, err
	}
	if err := s.Load("effects", &snap.Effects); err != nil {
		return snap, err
	}
	if err := s.Load("sequences", &snap.Sequences); err != nil {
		return snap, err
	}
	return snap, nil
}

func (s *Store) backup(kind, primary string) error {
	src, err := os.Open(primary)
	if err != nil {
		return err
	}
	defer src.Close()

	stamp, err := strftime.Format("%Y%m%d_%H%M%S", time.Now())
	if err != nil {
		return fmt.Errorf("format backup timestamp: %w", err)
	}
	name := fmt.Sprintf("%s_%s.json.gz", kind, stamp)
	dstPath := filepath.Join(s.backupDir, name)

	dst, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dst.Close()

	gw := gzip.NewWriter(dst)
	if _, err := io.Copy(gw, src); err != nil {
		gw.Close()
		return err
	}
	if err := gw.Close(); err != nil {
		return err
	}
	log.Printf("🗄️  backup created: %s", name)
	return nil
}

// StartRetentionSweep launches a background loop that deletes backups
// older than s.retention once per day. Stop must be called to release the
// goroutine.
func (s *Store) StartRetentionSweep() {
	if s.stopSweep != nil {
		return
	}
	s.stopSweep = make(chan struct{})
	s.sweepDone = make(chan struct{})

	go func() {
		defer close(s.sweepDone)
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()

		s.sweepOnce()
		for {
			select {
			case <-ticker.C:
				s.sweepOnce()
			case <-s.stopSweep:
				return
			}
		}
	}()
}

// Stop halts the retention sweep goroutine, if running.
func (s *Store) Stop() {
	if s.stopSweep == nil {
		return
	}
	close(s.stopSweep)
	<-s.sweepDone
	s.stopSweep = nil
}

func (s *Store) sweepOnce() {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		log.Printf("⚠️  backup sweep failed to read %s: %v", s.backupDir, err)
		return
	}

	cutoff := time.Now().Add(-s.retention)
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json.gz") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			path := filepath.Join(s.backupDir, entry.Name())
			if err := os.Remove(path); err != nil {
				log.Printf("⚠️  failed to prune backup %s: %v", entry.Name(), err)
				continue
			}
			log.Printf("🗑️  pruned expired backup: %s", entry.Name())
		}
	}
}
