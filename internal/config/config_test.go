package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":8080" || cfg.Database.Driver != "sqlite" {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jaego.yaml")
	data := `
server:
  addr: ":9090"
database:
  driver: postgres
  dsn: postgres://localhost/jaego
auth:
  token_ttl: 2h
redis:
  addr: localhost:6379
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JAEGO_SERVER_ADDR", ":7070")
	t.Setenv("JAEGO_REDIS_DB", "3")
	t.Setenv("JAEGO_RATELIMIT_WINDOW", "30s")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Addr != ":7070" {
		t.Errorf("env should override file, got %q", cfg.Server.Addr)
	}
	if cfg.Database.Driver != "postgres" || cfg.Database.DSN != "postgres://localhost/jaego" {
		t.Errorf("database not loaded: %+v", cfg.Database)
	}
	if cfg.Auth.TokenTTL != 2*time.Hour {
		t.Errorf("expected 2h token ttl, got %v", cfg.Auth.TokenTTL)
	}
	if cfg.Redis.DB != 3 || cfg.RateLimit.Window != 30*time.Second {
		t.Errorf("env overrides not applied: %+v %+v", cfg.Redis, cfg.RateLimit)
	}
	// Untouched defaults survive.
	if cfg.RateLimit.LoginAttempts != 5 {
		t.Errorf("expected default login attempts, got %d", cfg.RateLimit.LoginAttempts)
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jaego.yaml")
	os.WriteFile(path, []byte("server:\n  port: 80\n"), 0o644)

	if _, err := Load(path); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("JAEGO_REDIS_DB", "one")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric JAEGO_REDIS_DB")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"defaults", func(*Config) {}, true},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }, false},
		{"empty dsn", func(c *Config) { c.Database.DSN = "" }, false},
		{"negative limit", func(c *Config) { c.RateLimit.Requests = -1 }, false},
		{"zero window", func(c *Config) { c.RateLimit.Window = 0 }, false},
		{"zero window disabled", func(c *Config) { c.RateLimit.Enabled = false; c.RateLimit.Window = 0 }, true},
		{"bucket missing", func(c *Config) { c.Storage.Endpoint = "minio:9000" }, false},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }, false},
		{"trusted proxies", func(c *Config) { c.Server.TrustedProxies = []string{"10.0.0.0/8", "127.0.0.1"} }, true},
		{"bad trusted proxy", func(c *Config) { c.Server.TrustedProxies = []string{"proxy.local"} }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTrustedPrefixes(t *testing.T) {
	s := ServerConfig{TrustedProxies: []string{"10.1.2.3/8", " 192.168.0.1 ", "", "::1"}}
	prefixes, err := s.TrustedPrefixes()
	if err != nil {
		t.Fatalf("TrustedPrefixes: %v", err)
	}

	want := []string{"10.0.0.0/8", "192.168.0.1/32", "::1/128"}
	if len(prefixes) != len(want) {
		t.Fatalf("expected %d prefixes, got %v", len(want), prefixes)
	}
	for i, p := range prefixes {
		if p.String() != want[i] {
			t.Errorf("prefix %d = %s, want %s", i, p, want[i])
		}
	}
}
