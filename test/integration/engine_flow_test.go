// Package integration contains integration tests that exercise the full
// engine stack — REST ingress, mutation coordinator, effect engine,
// Art-Net transmitter — against a real UDP listener standing in for a
// fixture.
package integration

import (
	"bytes"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/IT-Networks/dmx-lighting-engine/internal/audio"
	"github.com/IT-Networks/dmx-lighting-engine/internal/broadcast"
	"github.com/IT-Networks/dmx-lighting-engine/internal/effects"
	"github.com/IT-Networks/dmx-lighting-engine/internal/ingress"
	"github.com/IT-Networks/dmx-lighting-engine/internal/persistence"
	"github.com/IT-Networks/dmx-lighting-engine/internal/scenefader"
	"github.com/IT-Networks/dmx-lighting-engine/internal/sequence"
	"github.com/IT-Networks/dmx-lighting-engine/internal/store"
	"github.com/IT-Networks/dmx-lighting-engine/internal/supervisor"
	"github.com/IT-Networks/dmx-lighting-engine/internal/transmitter"
)

type env struct {
	srv      *httptest.Server
	listener *net.UDPConn
	store    *store.Store
	persist  *persistence.Store
}

func setupEngine(t *testing.T) *env {
	t.Helper()

	listener, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.ParseIP("127.0.0.1"), Port: 0})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { _ = listener.Close() })
	port := listener.LocalAddr().(*net.UDPAddr).Port

	dir := t.TempDir()
	persist, err := persistence.New(filepath.Join(dir, "data"), filepath.Join(dir, "backups"), 7*24*time.Hour)
	if err != nil {
		t.Fatalf("persistence.New: %v", err)
	}

	bus := broadcast.New()
	st := store.New(persist, bus)
	tx := transmitter.New(port)
	t.Cleanup(tx.Close)

	audioStore := audio.New()
	engine := effects.NewEngine(st, tx, audioStore)
	engine.Start()
	t.Cleanup(engine.Stop)

	fader := scenefader.New(st, tx)
	sv := supervisor.New(engine)
	t.Cleanup(sv.StopAll)
	player := sequence.New(st, fader, sv)

	h := ingress.New(st, fader, tx, sv, player, audioStore, bus)
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)

	return &env{srv: srv, listener: listener, store: st, persist: persist}
}

func (e *env) post(t *testing.T, path string, body any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err, "marshal request body")

	resp, err := http.Post(e.srv.URL+path, "application/json", bytes.NewReader(raw))
	require.NoError(t, err, "POST %s", path)
	defer resp.Body.Close()

	var decoded map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded), "decode %s", path)
	require.Equal(t, http.StatusOK, resp.StatusCode, "POST %s: %v", path, decoded)
	return decoded
}

func (e *env) recvPacket(t *testing.T, timeout time.Duration) ([]byte, bool) {
	t.Helper()
	buf := make([]byte, 600)
	_ = e.listener.SetReadDeadline(time.Now().Add(timeout))
	n, err := e.listener.Read(buf)
	if err != nil {
		return nil, false
	}
	return buf[:n], true
}

func TestDeviceValuesEmitSingleArtNetFrame(t *testing.T) {
	e := setupEngine(t)

	created := e.post(t, "/api/devices", map[string]any{
		"name": "L1", "ip": "127.0.0.1", "universe": 0,
		"start_channel": 1, "channel_count": 3, "device_type": "rgb",
	})
	id := created["device"].(map[string]any)["id"].(string)

	e.post(t, "/api/devices/"+id+"/values", map[string]any{"values": []int{255, 128, 0}})

	packet, ok := e.recvPacket(t, time.Second)
	if !ok {
		t.Fatal("no UDP packet received")
	}
	if len(packet) != 530 {
		t.Fatalf("packet length = %d, want 530", len(packet))
	}
	if string(packet[0:8]) != "Art-Net\x00" {
		t.Fatalf("header = %q", packet[0:8])
	}
	if packet[8] != 0x00 || packet[9] != 0x50 {
		t.Fatalf("opcode bytes = %x %x, want 00 50", packet[8], packet[9])
	}
	if packet[10] != 0x00 || packet[11] != 0x0E {
		t.Fatalf("protocol version bytes = %x %x, want 00 0e", packet[10], packet[11])
	}
	if packet[16] != 0x02 || packet[17] != 0x00 {
		t.Fatalf("length bytes = %x %x, want 02 00", packet[16], packet[17])
	}
	if packet[18] != 0xFF || packet[19] != 0x80 || packet[20] != 0x00 {
		t.Fatalf("channel data = %v, want [255 128 0]", packet[18:21])
	}

	// Identical repeat is deduped: no second datagram.
	e.post(t, "/api/devices/"+id+"/values", map[string]any{"values": []int{255, 128, 0}})
	if _, ok := e.recvPacket(t, 150 * time.Millisecond); ok {
		t.Fatal("expected identical frame to be deduped, got a second datagram")
	}
}

func TestStrobeEffectAlternatesOnWire(t *testing.T) {
	e := setupEngine(t)

	created := e.post(t, "/api/devices", map[string]any{
		"name": "L1", "ip": "127.0.0.1", "universe": 0,
		"start_channel": 1, "channel_count": 3, "device_type": "rgb",
	})
	id := created["device"].(map[string]any)["id"].(string)

	effect := e.post(t, "/api/effects", map[string]any{
		"name": "Blink", "type": "strobe", "target_ids": []string{id},
		"params": map[string]any{"speed": 0.05},
	})
	effectID := effect["effect"].(map[string]any)["id"].(string)

	e.post(t, "/api/effects/"+effectID+"/start", nil)

	sawOn, sawOff := false, false
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) && !(sawOn && sawOff) {
		packet, ok := e.recvPacket(t, 200*time.Millisecond)
		if !ok {
			continue
		}
		switch packet[18] {
		case 255:
			sawOn = true
		case 0:
			sawOff = true
		}
	}
	if !sawOn || !sawOff {
		t.Fatalf("strobe frames on the wire: sawOn=%v sawOff=%v", sawOn, sawOff)
	}

	e.post(t, "/api/effects/"+effectID+"/stop", nil)
}

func TestStateSurvivesRestart(t *testing.T) {
	e := setupEngine(t)

	e.post(t, "/api/devices", map[string]any{
		"name": "Keeper", "ip": "127.0.0.1", "universe": 2,
		"start_channel": 10, "channel_count": 4, "device_type": "rgbw",
	})
	e.post(t, "/api/scenes", map[string]any{"name": "Warm", "color": "orange"})

	// A fresh store backed by the same persistence directory picks the
	// state back up.
	snap, err := e.persist.LoadAll()
	require.NoError(t, err)
	restored := store.New(e.persist, nil)
	restored.Restore(snap)

	devices := restored.ListDevices()
	require.Len(t, devices, 1)
	require.Equal(t, "Keeper", devices[0].Name)
	require.Equal(t, 2, devices[0].Universe)
	require.Len(t, devices[0].Values, 4)

	scenes := restored.ListScenes()
	require.Len(t, scenes, 1)
	require.Equal(t, "Warm", scenes[0].Name)
}
