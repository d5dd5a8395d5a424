package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigOptionalMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfigOptional(filepath.Join(t.TempDir(), "missing.yaml"), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Cursor.MaxAttempts != DefaultMaxAttempts {
		t.Fatalf("max attempts = %d, want %d", cfg.Cursor.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Cursor.WebBaseURL != DefaultWebBaseURL {
		t.Fatalf("web base url = %q, want %q", cfg.Cursor.WebBaseURL, DefaultWebBaseURL)
	}
	if cfg.AuthDir != DefaultAuthDir {
		t.Fatalf("auth dir = %q, want %q", cfg.AuthDir, DefaultAuthDir)
	}
}

func TestLoadConfigMissingFileFails(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing required config")
	}
}

func TestLoadConfigParsesCursorSection(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
auth-dir: /tmp/cursor-auths
debug: true
proxy-url: socks5://127.0.0.1:1080
cursor:
  api-base-url: https://api.example.test/
  max-attempts: 5
  poll-interval-seconds: 1
  utls: true
`)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !cfg.Debug || cfg.AuthDir != "/tmp/cursor-auths" {
		t.Fatalf("unexpected top-level values: debug=%v auth-dir=%q", cfg.Debug, cfg.AuthDir)
	}
	if cfg.ProxyURL != "socks5://127.0.0.1:1080" {
		t.Fatalf("proxy url = %q", cfg.ProxyURL)
	}
	if cfg.Cursor.APIBaseURL != "https://api.example.test" {
		t.Fatalf("api base url = %q, want trailing slash trimmed", cfg.Cursor.APIBaseURL)
	}
	if cfg.Cursor.MaxAttempts != 5 || cfg.Cursor.PollIntervalSeconds != 1 || !cfg.Cursor.UTLS {
		t.Fatalf("unexpected cursor section: %+v", cfg.Cursor)
	}
	if cfg.Cursor.RequestTimeoutSeconds != DefaultRequestTimeoutSeconds {
		t.Fatalf("request timeout = %d, want default", cfg.Cursor.RequestTimeoutSeconds)
	}
	if cfg.Cursor.CookieName != DefaultCookieName {
		t.Fatalf("cookie name = %q, want default", cfg.Cursor.CookieName)
	}
}

func TestLoadConfigRejectsInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("cursor: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := LoadConfigOptional(path, true); err == nil {
		t.Fatal("expected parse error")
	}
}
