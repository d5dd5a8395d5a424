package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/router-for-me/cursor-login/internal/auth/cursor"
	"github.com/router-for-me/cursor-login/internal/config"
)

func newCursorTestServer(t *testing.T, body string) (*httptest.Server, *int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if r.URL.Path != "/auth/poll" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestCursorAuthenticatorLogin(t *testing.T) {
	srv, calls := newCursorTestServer(t, `{"accessToken":"tok-xyz","authId":"auth0|user_42"}`)

	cfg := config.Default()
	cfg.Cursor.APIBaseURL = srv.URL
	cfg.AuthDir = t.TempDir()

	var seen *cursor.LoginSession
	authenticator := NewCursorAuthenticator()
	record, err := authenticator.Login(context.Background(), cfg, &LoginOptions{
		NoBrowser: true,
		OnSession: func(session *cursor.LoginSession) { seen = session },
		Metadata:  map[string]string{"source": "test"},
	})
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if *calls != 1 {
		t.Fatalf("poll calls = %d, want 1", *calls)
	}
	if seen == nil || !strings.Contains(seen.LoginURL, "uuid="+seen.UUID) {
		t.Fatalf("OnSession not called with the login session: %+v", seen)
	}
	if record.FileName != "cursor-user_42.json" {
		t.Fatalf("FileName = %q, want cursor-user_42.json", record.FileName)
	}
	if record.Metadata["access_token"] != "tok-xyz" || record.Metadata["source"] != "test" {
		t.Fatalf("unexpected metadata %+v", record.Metadata)
	}

	mgr := NewManager(NewFileTokenStore(), authenticator)
	_, savedPath, err := mgr.Login(context.Background(), "cursor", cfg, &LoginOptions{NoBrowser: true})
	if err != nil {
		t.Fatalf("Manager.Login() error = %v", err)
	}
	if savedPath != filepath.Join(cfg.AuthDir, "cursor-user_42.json") {
		t.Fatalf("saved path = %q", savedPath)
	}
	data, err := os.ReadFile(savedPath)
	if err != nil {
		t.Fatalf("read saved record: %v", err)
	}
	if !strings.Contains(string(data), `"access_token": "tok-xyz"`) {
		t.Fatalf("saved record missing token: %s", data)
	}
}

func TestCursorAuthenticatorLoginExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.Cursor.APIBaseURL = srv.URL

	_, err := NewCursorAuthenticator().Login(context.Background(), cfg, &LoginOptions{NoBrowser: true, MaxAttempts: 1})
	if !cursor.IsPollExhausted(err) {
		t.Fatalf("Login() error = %v, want poll exhausted", err)
	}
}

func TestManagerUnknownProvider(t *testing.T) {
	mgr := NewManager(nil)
	if _, _, err := mgr.Login(context.Background(), "cursor", config.Default(), nil); err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

func TestCursorFileName(t *testing.T) {
	now := time.UnixMilli(1700000000000)
	tests := []struct {
		userID string
		want   string
	}{
		{"user_01ABC", "cursor-user_01ABC.json"},
		{"", "cursor-1700000000000.json"},
		{"../../etc", "cursor-etc.json"},
		{"..", "cursor-1700000000000.json"},
	}
	for _, tt := range tests {
		if got := cursorFileName(tt.userID, now); got != tt.want {
			t.Errorf("cursorFileName(%q) = %q, want %q", tt.userID, got, tt.want)
		}
	}
}
