package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}

	if cfg.Server.Addr != ":8001" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}
	if cfg.Upstream.BaseURL != "http://localhost:3003" {
		t.Fatalf("unexpected base URL: %s", cfg.Upstream.BaseURL)
	}
	if cfg.Upstream.Timeouts.Message != 60*time.Second {
		t.Fatalf("unexpected message timeout: %v", cfg.Upstream.Timeouts.Message)
	}
	if cfg.Upstream.Timeouts.Create != 30*time.Second {
		t.Fatalf("unexpected create timeout: %v", cfg.Upstream.Timeouts.Create)
	}
}

func TestLoadPortVariants(t *testing.T) {
	t.Setenv("PORT", "9000")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != ":9000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}

	t.Setenv("PORT", "127.0.0.1:9000")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Fatalf("unexpected addr: %s", cfg.Server.Addr)
	}

	t.Setenv("PORT", "bad value")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for PORT with spaces")
	}
}

func TestLoadTimeoutOverrides(t *testing.T) {
	t.Setenv("UPSTREAM_MESSAGE_TIMEOUT", "90")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load err: %v", err)
	}
	if cfg.Upstream.Timeouts.Message != 90*time.Second {
		t.Fatalf("override not applied: %v", cfg.Upstream.Timeouts.Message)
	}
	// Untouched budgets keep their defaults.
	if cfg.Upstream.Timeouts.Mode != 10*time.Second {
		t.Fatalf("unexpected mode timeout: %v", cfg.Upstream.Timeouts.Mode)
	}
}

func TestLoadInvalidTimeout(t *testing.T) {
	t.Setenv("UPSTREAM_CREATE_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for non-numeric timeout")
	}

	t.Setenv("UPSTREAM_CREATE_TIMEOUT", "0")
	if _, err := Load(); err == nil {
		t.Fatal("expected error for zero timeout")
	}
}
