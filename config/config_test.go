package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backends.OrchBaseURL != DefaultOrchBaseURL {
		t.Errorf("OrchBaseURL = %q, want %q", cfg.Backends.OrchBaseURL, DefaultOrchBaseURL)
	}
	if cfg.Backends.AuthnBaseURL != DefaultAuthnBaseURL {
		t.Errorf("AuthnBaseURL = %q, want %q", cfg.Backends.AuthnBaseURL, DefaultAuthnBaseURL)
	}
	if cfg.Web.Port != 8090 {
		t.Errorf("Web.Port = %d, want 8090", cfg.Web.Port)
	}
	if cfg.Cache.StaleTime != 0 {
		t.Errorf("Cache.StaleTime = %v, want 0", cfg.Cache.StaleTime)
	}
	if cfg.Cache.RetryDelay != time.Second {
		t.Errorf("Cache.RetryDelay = %v, want 1s", cfg.Cache.RetryDelay)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchconsole.yaml")
	data := `
backends:
  orch_base_url: http://orch.internal
  timeout: 20s
cache:
  backend: redis
  stale_time: 30s
web:
  port: 9000
  operators:
    - username: alice
      password_hash: $2a$10$abcdefghijklmnopqrstuu
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backends.OrchBaseURL != "http://orch.internal" {
		t.Errorf("OrchBaseURL = %q, want %q", cfg.Backends.OrchBaseURL, "http://orch.internal")
	}
	if cfg.Backends.AuthnBaseURL != DefaultAuthnBaseURL {
		t.Errorf("AuthnBaseURL = %q, want default", cfg.Backends.AuthnBaseURL)
	}
	if cfg.Backends.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v, want 20s", cfg.Backends.Timeout)
	}
	if cfg.Cache.Backend != "redis" || cfg.Cache.StaleTime != 30*time.Second {
		t.Errorf("Cache = %q %v, want redis 30s", cfg.Cache.Backend, cfg.Cache.StaleTime)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("Web.Port = %d, want 9000", cfg.Web.Port)
	}
	if len(cfg.Web.Operators) != 1 || cfg.Web.Operators[0].Username != "alice" {
		t.Errorf("Operators = %+v, want alice", cfg.Web.Operators)
	}
}

func TestEnvOverridesBaseURLs(t *testing.T) {
	t.Setenv("ORCH_BASE_URL", "http://orch.env")
	t.Setenv("AUTHN_BASE_URL", "http://authn.env/api")
	t.Setenv("ORCHCONSOLE_WEB_PORT", "7070")

	path := filepath.Join(t.TempDir(), "orchconsole.yaml")
	if err := os.WriteFile(path, []byte("backends:\n  orch_base_url: http://orch.file\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backends.OrchBaseURL != "http://orch.env" {
		t.Errorf("OrchBaseURL = %q, want %q", cfg.Backends.OrchBaseURL, "http://orch.env")
	}
	if cfg.Backends.AuthnBaseURL != "http://authn.env/api" {
		t.Errorf("AuthnBaseURL = %q, want %q", cfg.Backends.AuthnBaseURL, "http://authn.env/api")
	}
	if cfg.Web.Port != 7070 {
		t.Errorf("Web.Port = %d, want 7070", cfg.Web.Port)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "orchconsole.yaml")
	cfg := Defaults()
	cfg.Backends.OrchBaseURL = "http://orch.saved"
	cfg.Cache.StaleTime = 45 * time.Second
	cfg.Messaging.Backend = "kafka"
	cfg.Messaging.Kafka.Brokers = []string{"k1:9092", "k2:9092"}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Backends.OrchBaseURL != "http://orch.saved" {
		t.Errorf("OrchBaseURL = %q, want %q", got.Backends.OrchBaseURL, "http://orch.saved")
	}
	if got.Cache.StaleTime != 45*time.Second {
		t.Errorf("StaleTime = %v, want 45s", got.Cache.StaleTime)
	}
	if got.Messaging.Backend != "kafka" || len(got.Messaging.Kafka.Brokers) != 2 {
		t.Errorf("Messaging = %q %v, want kafka with 2 brokers", got.Messaging.Backend, got.Messaging.Kafka.Brokers)
	}
}
