package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load(nil)

	if cfg.Port != "4000" {
		t.Errorf("Expected default Port '4000', got '%s'", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Errorf("Expected default Env 'development', got '%s'", cfg.Env)
	}
	if cfg.ArtNetPort != 6454 {
		t.Errorf("Expected default ArtNetPort 6454, got %d", cfg.ArtNetPort)
	}
	if !cfg.ArtNetEnabled {
		t.Error("Expected ArtNetEnabled to default true")
	}
	if cfg.MaxActiveEffects != 20 {
		t.Errorf("Expected default MaxActiveEffects 20, got %d", cfg.MaxActiveEffects)
	}
	if cfg.MaxActiveSeqs != 5 {
		t.Errorf("Expected default MaxActiveSeqs 5, got %d", cfg.MaxActiveSeqs)
	}
	if cfg.BackupRetention != 7*24*time.Hour {
		t.Errorf("Expected default BackupRetention 7 days, got %v", cfg.BackupRetention)
	}
}

func TestLoad_CustomEnvironment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ENV", "production")
	t.Setenv("ARTNET_ENABLED", "false")
	t.Setenv("ARTNET_PORT", "6455")
	t.Setenv("ARTNET_BROADCAST", "192.168.1.255")
	t.Setenv("NON_INTERACTIVE", "true")
	t.Setenv("CORS_ORIGIN", "http://example.com")
	t.Setenv("MAX_ACTIVE_EFFECTS", "7")

	cfg := Load(nil)

	if cfg.Port != "8080" {
		t.Errorf("Expected Port '8080', got '%s'", cfg.Port)
	}
	if cfg.Env != "production" {
		t.Errorf("Expected Env 'production', got '%s'", cfg.Env)
	}
	if cfg.ArtNetEnabled != false {
		t.Errorf("Expected ArtNetEnabled false, got %v", cfg.ArtNetEnabled)
	}
	if cfg.ArtNetPort != 6455 {
		t.Errorf("Expected ArtNetPort 6455, got %d", cfg.ArtNetPort)
	}
	if cfg.ArtNetBroadcast != "192.168.1.255" {
		t.Errorf("Expected ArtNetBroadcast '192.168.1.255', got '%s'", cfg.ArtNetBroadcast)
	}
	if cfg.NonInteractive != true {
		t.Errorf("Expected NonInteractive true, got %v", cfg.NonInteractive)
	}
	if cfg.CORSOrigin != "http://example.com" {
		t.Errorf("Expected CORSOrigin 'http://example.com', got '%s'", cfg.CORSOrigin)
	}
	if cfg.MaxActiveEffects != 7 {
		t.Errorf("Expected MaxActiveEffects 7, got %d", cfg.MaxActiveEffects)
	}
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("ARTNET_ENABLED", "true")

	cfg := Load([]string{"--port", "9090", "--artnet-enabled=false"})

	if cfg.Port != "9090" {
		t.Errorf("Expected flag to override env Port, got '%s'", cfg.Port)
	}
	if cfg.ArtNetEnabled != false {
		t.Error("Expected flag to override env ArtNetEnabled")
	}
}

func TestLoad_UnsetFlagsKeepEnvValue(t *testing.T) {
	t.Setenv("CORS_ORIGIN", "http://keep-me.example")

	cfg := Load([]string{"--port", "9191"})

	if cfg.CORSOrigin != "http://keep-me.example" {
		t.Errorf("Expected untouched flag to preserve env value, got '%s'", cfg.CORSOrigin)
	}
	if cfg.Port != "9191" {
		t.Errorf("Expected Port to be overridden by flag, got '%s'", cfg.Port)
	}
}

func TestIsDevelopment(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"development", true},
		{"production", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Env: tt.env}
			if got := cfg.IsDevelopment(); got != tt.expected {
				t.Errorf("IsDevelopment() = %v, want %v for env '%s'", got, tt.expected, tt.env)
			}
		})
	}
}

func TestIsProduction(t *testing.T) {
	tests := []struct {
		env      string
		expected bool
	}{
		{"production", true},
		{"development", false},
		{"staging", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			cfg := &Config{Env: tt.env}
			if got := cfg.IsProduction(); got != tt.expected {
				t.Errorf("IsProduction() = %v, want %v for env '%s'", got, tt.expected, tt.env)
			}
		})
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_GET_ENV", "custom_value")

	result := getEnv("TEST_GET_ENV", "default")
	if result != "custom_value" {
		t.Errorf("Expected 'custom_value', got '%s'", result)
	}

	result = getEnv("NON_EXISTING_VAR_12345_UNIQUE", "default_value")
	if result != "default_value" {
		t.Errorf("Expected 'default_value', got '%s'", result)
	}
}

func TestGetEnvInt(t *testing.T) {
	t.Setenv("TEST_INT_VAR", "42")

	result := getEnvInt("TEST_INT_VAR", 10)
	if result != 42 {
		t.Errorf("Expected 42, got %d", result)
	}

	t.Setenv("TEST_INVALID_INT", "not_a_number")

	result = getEnvInt("TEST_INVALID_INT", 10)
	if result != 10 {
		t.Errorf("Expected default 10 for invalid int, got %d", result)
	}

	result = getEnvInt("NON_EXISTING_INT_VAR_12345_UNIQUE", 100)
	if result != 100 {
		t.Errorf("Expected default 100, got %d", result)
	}
}

func TestGetEnvBool(t *testing.T) {
	tests := []struct {
		name         string
		envValue     string
		defaultValue bool
		expected     bool
		setEnv       bool
	}{
		{"true_string", "true", false, true, true},
		{"false_string", "false", true, false, true},
		{"1_string", "1", false, true, true},
		{"0_string", "0", true, false, true},
		{"invalid_string_returns_default", "invalid", true, true, true},
		{"non_existing_returns_default_true", "", true, true, false},
		{"non_existing_returns_default_false", "", false, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			envKey := "TEST_BOOL_VAR_" + tt.name + "_UNIQUE"
			if tt.setEnv {
				t.Setenv(envKey, tt.envValue)
			}

			result := getEnvBool(envKey, tt.defaultValue)
			if result != tt.expected {
				t.Errorf("getEnvBool(%s, %v) = %v, want %v", envKey, tt.defaultValue, result, tt.expected)
			}
		})
	}
}

func TestGetEnvInt_ZeroValue(t *testing.T) {
	t.Setenv("TEST_ZERO_INT", "0")

	result := getEnvInt("TEST_ZERO_INT", 10)
	if result != 0 {
		t.Errorf("Expected 0, got %d", result)
	}
}

func TestConfig_StructFields(t *testing.T) {
	cfg := &Config{
		Port:             "4000",
		Env:              "test",
		DataDir:          "./data",
		ArtNetEnabled:    true,
		ArtNetPort:       6454,
		ArtNetBroadcast:  "255.255.255.255",
		MaxActiveEffects: 20,
		MaxActiveSeqs:    5,
		NonInteractive:   false,
		CORSOrigin:       "http://localhost",
	}

	if cfg.Port != "4000" {
		t.Error("Port field access failed")
	}
	if cfg.ArtNetEnabled != true {
		t.Error("ArtNetEnabled field access failed")
	}
	if cfg.MaxActiveEffects != 20 {
		t.Error("MaxActiveEffects field access failed")
	}
}
