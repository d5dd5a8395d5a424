package logging

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/router-for-me/cursor-login/internal/config"
	log "github.com/sirupsen/logrus"
)

func TestLogFormatterIncludesSessionAndOrderedFields(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Date(2025, 12, 23, 20, 14, 4, 0, time.UTC),
		Level:   log.DebugLevel,
		Message: "poll attempt\n",
		Data: log.Fields{
			"session":      "c0ffee12-3456-4789-8abc-def012345678",
			"max_attempts": 20,
			"attempt":      1,
			"ignored":      "x",
		},
	}

	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	got := string(out)
	want := "[2025-12-23 20:14:04] [c0ffee12] [debug] poll attempt attempt=1 max_attempts=20\n"
	if got != want {
		t.Fatalf("Format() = %q, want %q", got, want)
	}
}

func TestLogFormatterWithoutSession(t *testing.T) {
	entry := &log.Entry{
		Logger:  log.StandardLogger(),
		Time:    time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
		Level:   log.WarnLevel,
		Message: "browser unavailable",
		Data:    log.Fields{},
	}
	out, err := (&LogFormatter{}).Format(entry)
	if err != nil {
		t.Fatalf("Format returned error: %v", err)
	}
	if !strings.HasPrefix(string(out), "[2025-01-02 03:04:05] [--------] [warn ]") {
		t.Fatalf("unexpected line %q", out)
	}
}

func TestResolveLogDirectoryPrefersWritablePath(t *testing.T) {
	base := t.TempDir()
	t.Setenv("WRITABLE_PATH", base)
	if got := ResolveLogDirectory(&config.Config{AuthDir: "/elsewhere"}); got != filepath.Join(base, "logs") {
		t.Fatalf("ResolveLogDirectory = %q", got)
	}
}

func TestResolveLogDirectoryUsesAuthDir(t *testing.T) {
	t.Setenv("WRITABLE_PATH", "")
	t.Setenv("writable_path", "")
	authDir := t.TempDir()
	if got := ResolveLogDirectory(&config.Config{AuthDir: authDir}); got != filepath.Join(authDir, "logs") {
		t.Fatalf("ResolveLogDirectory = %q", got)
	}
}
