package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func mapLookup(values map[string]string) LookupFunc {
	return func(keys ...string) (string, bool) {
		for _, key := range keys {
			if v, ok := values[key]; ok && v != "" {
				return v, true
			}
		}
		return "", false
	}
}

func TestFileSlotStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := NewFileSlotStore(dir)
	ctx := context.Background()

	got, err := s.Get(ctx, CredentialSlotKey)
	if err != nil {
		t.Fatalf("Get() on missing file error = %v", err)
	}
	if got != "" {
		t.Fatalf("Get() on missing file = %q, want empty", got)
	}

	if err = s.Set(ctx, CredentialSlotKey, "user_01%3A%3Aabc"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err = s.Set(ctx, "other.key", "v"); err != nil {
		t.Fatalf("Set() dotted key error = %v", err)
	}

	reopened := NewFileSlotStore(dir)
	if got, _ = reopened.Get(ctx, CredentialSlotKey); got != "user_01%3A%3Aabc" {
		t.Fatalf("Get() after reopen = %q", got)
	}
	if got, _ = reopened.Get(ctx, "other.key"); got != "v" {
		t.Fatalf("Get(dotted key) = %q, want v", got)
	}

	if err = s.Set(ctx, CredentialSlotKey, "replaced"); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	if got, _ = s.Get(ctx, CredentialSlotKey); got != "replaced" {
		t.Fatalf("Get() after overwrite = %q", got)
	}

	info, err := os.Stat(filepath.Join(dir, "slots.json"))
	if err != nil {
		t.Fatalf("stat slots.json: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Fatalf("slots.json permissions = %v, want 0600", perm)
	}
}

func TestFileSlotStoreCorruptDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "slots.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	s := NewFileSlotStore(dir)
	ctx := context.Background()
	if got, err := s.Get(ctx, CredentialSlotKey); err != nil || got != "" {
		t.Fatalf("Get() = %q, %v; want empty, nil", got, err)
	}
	if raw, err := os.ReadFile(path); err != nil || string(raw) != "not json" {
		t.Fatalf("Get() must leave the document untouched, got %q, %v", raw, err)
	}

	if err := s.Set(ctx, CredentialSlotKey, "fresh"); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if got, _ := s.Get(ctx, CredentialSlotKey); got != "fresh" {
		t.Fatalf("Get() = %q, want fresh", got)
	}
	backup, err := os.ReadFile(path + ".corrupt")
	if err != nil {
		t.Fatalf("corrupt document was not kept: %v", err)
	}
	if string(backup) != "not json" {
		t.Fatalf("backup = %q, want original content", backup)
	}
}

func TestFileSlotStoreRejectsEmptyKey(t *testing.T) {
	if err := NewFileSlotStore(t.TempDir()).Set(context.Background(), " ", "v"); err == nil {
		t.Fatal("expected error for empty key")
	}
}

func TestMemorySlotStore(t *testing.T) {
	s := NewMemorySlotStore()
	ctx := context.Background()
	_ = s.Set(ctx, CredentialSlotKey, "x")
	if got, _ := s.Get(ctx, CredentialSlotKey); got != "x" {
		t.Fatalf("Get() = %q, want x", got)
	}
}

func TestOpenSlotStoreDefaultsToFile(t *testing.T) {
	dir := t.TempDir()
	s, closeFn, err := OpenSlotStore(context.Background(), dir, mapLookup(nil))
	if err != nil {
		t.Fatalf("OpenSlotStore() error = %v", err)
	}
	defer func() { _ = closeFn() }()
	fs, ok := s.(*FileSlotStore)
	if !ok {
		t.Fatalf("OpenSlotStore() returned %T, want *FileSlotStore", s)
	}
	if fs.Path() != filepath.Join(dir, "slots.json") {
		t.Fatalf("Path() = %q", fs.Path())
	}

	if _, _, err = OpenSlotStore(context.Background(), "", mapLookup(nil)); err == nil {
		t.Fatal("expected error without auth dir")
	}
}

func TestOpenSlotStoreObjectStoreValidation(t *testing.T) {
	_, _, err := OpenSlotStore(context.Background(), t.TempDir(), mapLookup(map[string]string{
		"OBJECTSTORE_ENDPOINT": "https://s3.example.com",
	}))
	if err == nil {
		t.Fatal("expected error when bucket and keys are missing")
	}

	s, _, err := OpenSlotStore(context.Background(), t.TempDir(), mapLookup(map[string]string{
		"OBJECTSTORE_ENDPOINT":   "http://127.0.0.1:9000",
		"OBJECTSTORE_BUCKET":     "creds",
		"OBJECTSTORE_ACCESS_KEY": "ak",
		"OBJECTSTORE_SECRET_KEY": "sk",
	}))
	if err != nil {
		t.Fatalf("OpenSlotStore() error = %v", err)
	}
	obj, ok := s.(*ObjectSlotStore)
	if !ok {
		t.Fatalf("OpenSlotStore() returned %T, want *ObjectSlotStore", s)
	}
	if obj.cfg.UseSSL {
		t.Fatal("http endpoint must disable TLS")
	}
	if got := obj.slotKey(CredentialSlotKey); got != "slots/cursor_session_token" {
		t.Fatalf("slotKey() = %q", got)
	}
}

func TestParseObjectEndpoint(t *testing.T) {
	tests := []struct {
		raw      string
		endpoint string
		useSSL   bool
		wantErr  bool
	}{
		{"s3.example.com", "s3.example.com", true, false},
		{"https://s3.example.com/", "s3.example.com", true, false},
		{"http://127.0.0.1:9000", "127.0.0.1:9000", false, false},
		{"https://gw.example.com/minio/", "gw.example.com/minio", true, false},
		{"ftp://host", "", false, true},
		{"http://", "", false, true},
	}
	for _, tt := range tests {
		endpoint, useSSL, err := ParseObjectEndpoint(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseObjectEndpoint(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			continue
		}
		if endpoint != tt.endpoint || useSSL != tt.useSSL {
			t.Errorf("ParseObjectEndpoint(%q) = %q, %v; want %q, %v", tt.raw, endpoint, useSSL, tt.endpoint, tt.useSSL)
		}
	}
}

func TestPrefixedKeyAndQuoteIdentifier(t *testing.T) {
	if got := prefixedKey("", "/slots/a"); got != "slots/a" {
		t.Fatalf("prefixedKey() = %q", got)
	}
	if got := prefixedKey("team", "slots/a"); got != "team/slots/a" {
		t.Fatalf("prefixedKey() = %q", got)
	}
	if got := quoteIdentifier(`we"ird`); got != `"we""ird"` {
		t.Fatalf("quoteIdentifier() = %q", got)
	}
}
