// Package config provides configuration management for the lighting engine
// server.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"
)

// Config holds all configuration values for the server.
type Config struct {
	// Server configuration
	Port string
	Env  string

	// Persistence configuration
	DataDir         string
	BackupDir       string
	BackupRetention time.Duration

	// Art-Net configuration
	ArtNetEnabled   bool
	ArtNetPort      int
	ArtNetBroadcast string

	// Effect engine configuration. These values are loaded but not passed
	// to the engine, fader or supervisor, which use their own fixed
	// constants (e.g. the scheduler polls every 10ms).
	EffectTickRate   int           // Hz
	EffectTimeout    time.Duration // wall-clock lifetime of a running effect
	SequenceTimeout  time.Duration // wall-clock lifetime of a running sequence
	MaxActiveEffects int
	MaxActiveSeqs    int

	// Scene fader configuration
	FadeSteps int
	FadeStep  time.Duration

	// Non-interactive mode (for Docker/CI)
	NonInteractive bool

	// CORS configuration
	CORSOrigin string

	// mDNS discovery
	DiscoveryEnabled bool
	DiscoveryName    string
}

// Load loads configuration from environment variables, then applies any
// flags parsed from args as overrides (flags > env > defaults).
func Load(args []string) *Config {
	c := &Config{
		Port: getEnv("PORT", "4000"),
		Env:  getEnv("ENV", "development"),

		DataDir:         getEnv("DATA_DIR", "./data"),
		BackupDir:       getEnv("BACKUP_DIR", "./data/backups"),
		BackupRetention: time.Duration(getEnvInt("BACKUP_RETENTION_DAYS", 7)) * 24 * time.Hour,

		ArtNetEnabled:   getEnvBool("ARTNET_ENABLED", true),
		ArtNetPort:      getEnvInt("ARTNET_PORT", 6454),
		ArtNetBroadcast: getEnv("ARTNET_BROADCAST", ""),

		EffectTickRate:   getEnvInt("EFFECT_TICK_RATE", 50),
		EffectTimeout:    time.Duration(getEnvInt("EFFECT_TIMEOUT_SECONDS", 3600)) * time.Second,
		SequenceTimeout:  time.Duration(getEnvInt("SEQUENCE_TIMEOUT_SECONDS", 7200)) * time.Second,
		MaxActiveEffects: getEnvInt("MAX_ACTIVE_EFFECTS", 20),
		MaxActiveSeqs:    getEnvInt("MAX_ACTIVE_SEQUENCES", 5),

		FadeSteps: getEnvInt("FADE_STEPS", 50),
		FadeStep:  time.Duration(getEnvInt("FADE_STEP_MS", 40)) * time.Millisecond,

		NonInteractive: getEnvBool("NON_INTERACTIVE", false),

		CORSOrigin: getEnv("CORS_ORIGIN", "http://localhost:3000"),

		DiscoveryEnabled: getEnvBool("DISCOVERY_ENABLED", true),
		DiscoveryName:    getEnv("DISCOVERY_NAME", "DMX Lighting Engine"),
	}
	applyFlags(c, args)
	return c
}

// applyFlags overlays pflag-parsed CLI flags onto an already env-loaded
// Config. Only flags the user actually passed take effect; everything else
// keeps its env/default value.
func applyFlags(c *Config, args []string) {
	fs := pflag.NewFlagSet("dmx-lighting-engine", pflag.ContinueOnError)
	fs.Usage = func() {}

	port := fs.String("port", c.Port, "HTTP server port")
	env := fs.String("env", c.Env, "runtime environment (development|production)")
	dataDir := fs.String("data-dir", c.DataDir, "directory for persisted entity state")
	backupDir := fs.String("backup-dir", c.BackupDir, "directory for gzip-compressed backups")
	artnetEnabled := fs.Bool("artnet-enabled", c.ArtNetEnabled, "enable Art-Net output")
	artnetPort := fs.Int("artnet-port", c.ArtNetPort, "Art-Net UDP port")
	artnetBroadcast := fs.String("artnet-broadcast", c.ArtNetBroadcast, "Art-Net broadcast address override")
	corsOrigin := fs.String("cors-origin", c.CORSOrigin, "allowed CORS origin")
	discoveryEnabled := fs.Bool("discovery-enabled", c.DiscoveryEnabled, "advertise via mDNS")

	// Best-effort: an unparseable flag set (e.g. in a test harness passing
	// unrelated args) falls back to the env-derived Config untouched.
	if err := fs.Parse(args); err != nil {
		return
	}

	if fs.Changed("port") {
		c.Port = *port
	}
	if fs.Changed("env") {
		c.Env = *env
	}
	if fs.Changed("data-dir") {
		c.DataDir = *dataDir
	}
	if fs.Changed("backup-dir") {
		c.BackupDir = *backupDir
	}
	if fs.Changed("artnet-enabled") {
		c.ArtNetEnabled = *artnetEnabled
	}
	if fs.Changed("artnet-port") {
		c.ArtNetPort = *artnetPort
	}
	if fs.Changed("artnet-broadcast") {
		c.ArtNetBroadcast = *artnetBroadcast
	}
	if fs.Changed("cors-origin") {
		c.CORSOrigin = *corsOrigin
	}
	if fs.Changed("discovery-enabled") {
		c.DiscoveryEnabled = *discoveryEnabled
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// getEnv returns the value of an environment variable or a default value.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the integer value of an environment variable or a default value.
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the boolean value of an environment variable or a default value.
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
