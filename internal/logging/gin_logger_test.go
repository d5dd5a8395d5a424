package logging

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

func TestGinLogrusRecoveryRepanicsErrAbortHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(GinLogrusRecovery())
	engine.GET("/abort", func(c *gin.Context) {
		panic(http.ErrAbortHandler)
	})

	req := httptest.NewRequest(http.MethodGet, "/abort", nil)
	recorder := httptest.NewRecorder()

	defer func() {
		recovered := recover()
		if recovered == nil {
			t.Fatalf("expected panic, got nil")
		}
		err, ok := recovered.(error)
		if !ok {
			t.Fatalf("expected error panic, got %T", recovered)
		}
		if !errors.Is(err, http.ErrAbortHandler) {
			t.Fatalf("expected ErrAbortHandler, got %v", err)
		}
		if err != http.ErrAbortHandler {
			t.Fatalf("expected exact ErrAbortHandler sentinel, got %v", err)
		}
	}()

	engine.ServeHTTP(recorder, req)
}

func TestGinLogrusRecoveryHandlesRegularPanic(t *testing.T) {
	gin.SetMode(gin.TestMode)

	engine := gin.New()
	engine.Use(GinLogrusRecovery())
	engine.GET("/panic", func(c *gin.Context) {
		panic("boom")
	})

	req := httptest.NewRequest(http.MethodGet, "/panic", nil)
	recorder := httptest.NewRecorder()

	engine.ServeHTTP(recorder, req)
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", recorder.Code)
	}
}

type captureHook struct {
	entries []*log.Entry
}

func (h *captureHook) Levels() []log.Level { return log.AllLevels }

func (h *captureHook) Fire(entry *log.Entry) error {
	h.entries = append(h.entries, entry)
	return nil
}

func TestGinLogrusLoggerMasksVerifierAndTagsSession(t *testing.T) {
	gin.SetMode(gin.TestMode)

	logger := log.StandardLogger()
	hook := &captureHook{}
	previous := logger.ReplaceHooks(log.LevelHooks{})
	logger.AddHook(hook)
	defer logger.ReplaceHooks(previous)

	engine := gin.New()
	engine.Use(GinLogrusLogger())
	engine.POST("/v0/cursor/sessions/:uuid/poll", func(c *gin.Context) {
		c.Status(http.StatusRequestTimeout)
	})

	req := httptest.NewRequest(http.MethodPost, "/v0/cursor/sessions/0f1e2d3c-aaaa/poll?verifier=supersecretverifiervalue", nil)
	engine.ServeHTTP(httptest.NewRecorder(), req)

	if len(hook.entries) != 1 {
		t.Fatalf("expected 1 log entry, got %d", len(hook.entries))
	}
	entry := hook.entries[0]
	if strings.Contains(entry.Message, "supersecretverifiervalue") {
		t.Fatalf("verifier leaked into log line: %s", entry.Message)
	}
	if entry.Level != log.WarnLevel {
		t.Fatalf("level = %s, want warning", entry.Level)
	}
	if entry.Data["session"] != "0f1e2d3c-aaaa" {
		t.Fatalf("session field = %v", entry.Data["session"])
	}
}
