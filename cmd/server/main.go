// Package main is the entry point for the DMX lighting engine server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/IT-Networks/dmx-lighting-engine/internal/audio"
	"github.com/IT-Networks/dmx-lighting-engine/internal/broadcast"
	"github.com/IT-Networks/dmx-lighting-engine/internal/config"
	"github.com/IT-Networks/dmx-lighting-engine/internal/discovery"
	"github.com/IT-Networks/dmx-lighting-engine/internal/effects"
	"github.com/IT-Networks/dmx-lighting-engine/internal/ingress"
	"github.com/IT-Networks/dmx-lighting-engine/internal/model"
	"github.com/IT-Networks/dmx-lighting-engine/internal/netiface"
	"github.com/IT-Networks/dmx-lighting-engine/internal/persistence"
	"github.com/IT-Networks/dmx-lighting-engine/internal/scenefader"
	"github.com/IT-Networks/dmx-lighting-engine/internal/sequence"
	"github.com/IT-Networks/dmx-lighting-engine/internal/store"
	"github.com/IT-Networks/dmx-lighting-engine/internal/supervisor"
	"github.com/IT-Networks/dmx-lighting-engine/internal/transmitter"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	// Load configuration (env first, CLI flags override)
	cfg := config.Load(os.Args[1:])

	// Print startup banner
	printBanner(cfg)

	// Persistence collaborator: atomic JSON files + gzip backups
	persist, err := persistence.New(cfg.DataDir, cfg.BackupDir, cfg.BackupRetention)
	if err != nil {
		log.Fatalf("Failed to initialize persistence: %v", err)
	}
	persist.StartRetentionSweep()

	// Broadcast bus for push subscribers
	bus := broadcast.New()

	// Mutation coordinator, restored from disk
	st := store.New(persist, bus)
	snap, err := persist.LoadAll()
	if err != nil {
		log.Fatalf("Failed to load persisted state: %v", err)
	}
	st.Restore(snap)
	log.Printf("📦 restored %d device(s), %d scene(s), %d group(s), %d effect(s), %d sequence(s)",
		len(snap.Devices), len(snap.Scenes), len(snap.Groups), len(snap.Effects), len(snap.Sequences))

	// Art-Net transmitter
	var tx ingress.Transmitter
	artnetTx := transmitter.New(cfg.ArtNetPort)
	if cfg.ArtNetEnabled {
		tx = artnetTx
		if cfg.ArtNetBroadcast == "" {
			if addr, err := netiface.DetectBroadcast(); err == nil {
				log.Printf("📡 Art-Net output enabled on UDP port %d (detected broadcast address %s)", cfg.ArtNetPort, addr)
			} else {
				log.Printf("📡 Art-Net output enabled on UDP port %d", cfg.ArtNetPort)
			}
		} else {
			log.Printf("📡 Art-Net output enabled on UDP port %d (broadcast override %s)", cfg.ArtNetPort, cfg.ArtNetBroadcast)
		}
	} else {
		tx = nopTransmitter{}
		log.Println("📡 Art-Net output disabled; frames are computed but not sent")
	}

	// Audio feature store
	audioStore := audio.New()

	// Effect engine: one scheduler driving every active render task
	engine := effects.NewEngine(st, tx, audioStore)
	engine.Start()

	// Scene fader and sequence player
	fader := scenefader.New(st, tx)

	// Task supervisor: caps, eviction, timeouts
	sv := supervisor.New(engine)

	player := sequence.New(st, fader, sv)

	// Ingress: REST + websocket push channel
	handler := ingress.New(st, fader, tx, sv, player, audioStore, bus)

	// Create router
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	// CORS
	corsMiddleware := cors.New(cors.Options{
		AllowedOrigins:   []string{cfg.CORSOrigin, "http://localhost:3000", "http://localhost:4000"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		AllowCredentials: true,
		Debug:            cfg.IsDevelopment(),
	})
	router.Use(corsMiddleware.Handler)

	// Routes
	router.Get("/health", healthCheckHandler)
	router.Mount("/", handler.Routes())

	// mDNS advertisement, so companion UIs can find the engine on the LAN
	var advertiser *discovery.Advertiser
	if cfg.DiscoveryEnabled {
		if port, err := strconv.Atoi(cfg.Port); err == nil {
			advertiser = discovery.Start(cfg.DiscoveryName, port)
		}
	}

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server listening on http://localhost:%s\n", cfg.Port)
		log.Printf("Push channel: ws://localhost:%s/ws\n", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cleanup services in reverse order: stop running tasks first so no
	// render task writes into a closed transmitter.
	if advertiser != nil {
		advertiser.Stop()
	}
	sv.StopAll()
	engine.Stop()
	artnetTx.Close()
	persist.Stop()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}

// nopTransmitter satisfies the transmitter interfaces when Art-Net output is
// disabled: every send reports success without touching the network.
type nopTransmitter struct{}

func (nopTransmitter) Send(*model.Device) bool { return true }

// healthCheckHandler returns the server health status.
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	response := fmt.Sprintf(`{
  "status": "ok",
  "timestamp": "%s",
  "version": "%s"
}`, time.Now().UTC().Format(time.RFC3339), Version)

	_, _ = w.Write([]byte(response))
}

// printBanner prints the startup banner.
func printBanner(cfg *config.Config) {
	fmt.Println("============================================")
	fmt.Println("  DMX Lighting Engine")
	fmt.Printf("  Version: %s\n", Version)
	fmt.Printf("  Build:   %s\n", BuildTime)
	fmt.Printf("  Commit:  %s\n", GitCommit)
	fmt.Println("============================================")
	fmt.Printf("  Environment: %s\n", cfg.Env)
	fmt.Printf("  Port:        %s\n", cfg.Port)
	fmt.Printf("  Data dir:    %s\n", cfg.DataDir)
	fmt.Printf("  Art-Net:     %v\n", cfg.ArtNetEnabled)
	fmt.Println("============================================")
}
