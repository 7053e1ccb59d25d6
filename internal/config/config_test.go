package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
server:
  port: "9090"
  cors_origins: ["http://localhost:3000"]
log:
  level: debug
  format: json
redis:
  addr: localhost:6379
quiz:
  published_ttl: 30s
tags:
  fanout_timeout: 2s
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || len(cfg.Server.CORSOrigins) != 1 {
		t.Fatalf("unexpected server section %+v", cfg.Server)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Fatalf("unexpected log section %+v", cfg.Log)
	}
	if got := TTLDuration(cfg.Quiz.PublishedTTL, time.Minute); got != 30*time.Second {
		t.Fatalf("published ttl = %v", got)
	}
	if got := TTLDuration(cfg.Tags.FanoutTimeout, time.Second); got != 2*time.Second {
		t.Fatalf("fanout timeout = %v", got)
	}
}

func TestTTLDurationFallback(t *testing.T) {
	if got := TTLDuration("", time.Minute); got != time.Minute {
		t.Fatalf("empty should fall back, got %v", got)
	}
	if got := TTLDuration("soon", time.Minute); got != time.Minute {
		t.Fatalf("garbage should fall back, got %v", got)
	}
}
