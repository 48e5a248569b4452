package config

import (
	"errors"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.KBAcceptThreshold != 0.34 {
		t.Fatalf("expected default threshold 0.34, got %v", cfg.KBAcceptThreshold)
	}
	if cfg.RoutingConfidenceFloor != 0.25 {
		t.Fatalf("expected default floor 0.25, got %v", cfg.RoutingConfidenceFloor)
	}
	if cfg.WSHeartbeatInterval != 30*time.Second {
		t.Fatalf("expected heartbeat 30s, got %v", cfg.WSHeartbeatInterval)
	}
	if cfg.ReconnectBaseDelay != time.Second || cfg.ReconnectMaxAttempts != 5 {
		t.Fatalf("unexpected reconnect policy: %v/%d", cfg.ReconnectBaseDelay, cfg.ReconnectMaxAttempts)
	}
	if cfg.FallbackMaxRetries != 1 || cfg.FallbackContextMessages != 10 {
		t.Fatalf("unexpected fallback policy: %d/%d", cfg.FallbackMaxRetries, cfg.FallbackContextMessages)
	}
}

func TestLoadConfig_FromEnv(t *testing.T) {
	t.Setenv("KB_ACCEPT_THRESHOLD", "0.5")
	t.Setenv("WS_HEARTBEAT_INTERVAL", "5s")
	t.Setenv("INTENT_MODE", "llm")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.KBAcceptThreshold != 0.5 || cfg.WSHeartbeatInterval != 5*time.Second || cfg.IntentMode != "llm" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
}

func TestConfigValidate(t *testing.T) {
	t.Run("umbral fuera de rango", func(t *testing.T) {
		t.Setenv("KB_ACCEPT_THRESHOLD", "1.5")
		if _, err := LoadConfig(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})

	t.Run("modo de intent desconocido", func(t *testing.T) {
		t.Setenv("INTENT_MODE", "magic")
		if _, err := LoadConfig(); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("expected ErrInvalidConfig, got %v", err)
		}
	})
}

func TestNewLogger_BadLevelFallsBack(t *testing.T) {
	cfg := &Config{Environment: "production", LogLevel: "nope"}
	logger, err := NewLogger(cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !logger.Core().Enabled(0) {
		t.Fatalf("expected info level enabled")
	}
}
