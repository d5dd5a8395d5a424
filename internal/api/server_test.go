package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/router-for-me/cursor-login/internal/auth/cursor"
	"github.com/router-for-me/cursor-login/internal/config"
	"github.com/router-for-me/cursor-login/internal/store"
)

type fakeHandshake struct {
	mu          sync.Mutex
	started     int
	credentials []string
	maxAttempts []int
	pollResult  *cursor.PollResult
	pollErr     error
}

func (f *fakeHandshake) Start(_ context.Context, credential string) (*cursor.LoginSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started++
	f.credentials = append(f.credentials, credential)
	id := cursor.GenerateCorrelationID()
	return &cursor.LoginSession{
		UUID:     id,
		Verifier: "secret-verifier",
		LoginURL: "https://www.cursor.com/cn/loginDeepControl?challenge=c&uuid=" + id + "&mode=login",
	}, nil
}

func (f *fakeHandshake) Poll(_ context.Context, _ *cursor.LoginSession, maxAttempts int) (*cursor.PollResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.maxAttempts = append(f.maxAttempts, maxAttempts)
	return f.pollResult, f.pollErr
}

func newTestServer(t *testing.T, fake *fakeHandshake) (*Server, store.SlotStore) {
	t.Helper()
	slots := store.NewMemorySlotStore()
	cfg := config.Default()
	return NewServer(cfg, NewHandler(cfg, fake, slots)), slots
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	payload := map[string]any{}
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("decode response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, payload
}

func TestStartAndPollSession(t *testing.T) {
	fake := &fakeHandshake{pollResult: &cursor.PollResult{UserID: "user_1", AccessToken: "tok"}}
	s, slots := newTestServer(t, fake)

	rec, payload := do(t, s, http.MethodPost, "/v0/cursor/sessions", `{"credential":"cred-1"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d body = %s", rec.Code, rec.Body.String())
	}
	id, _ := payload["uuid"].(string)
	if id == "" || payload["login_url"] == "" {
		t.Fatalf("unexpected start payload %v", payload)
	}
	if payload["cookie"] != "WorkosCursorSessionToken=cred-1; path=/; domain=.cursor.com" {
		t.Fatalf("cookie = %v", payload["cookie"])
	}
	if strings.Contains(rec.Body.String(), "secret-verifier") {
		t.Fatal("verifier must not be returned to the client")
	}
	if got, _ := slots.Get(context.Background(), store.CredentialSlotKey); got != "cred-1" {
		t.Fatalf("slot = %q, want cred-1", got)
	}

	rec, payload = do(t, s, http.MethodPost, "/v0/cursor/sessions/"+id+"/poll", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("poll status = %d body = %s", rec.Code, rec.Body.String())
	}
	if payload["access_token"] != "tok" || payload["user_id"] != "user_1" {
		t.Fatalf("unexpected poll payload %v", payload)
	}
	if fake.maxAttempts[0] != config.DefaultMaxAttempts {
		t.Fatalf("maxAttempts = %d, want default", fake.maxAttempts[0])
	}

	// A completed session cannot be polled again.
	rec, _ = do(t, s, http.MethodPost, "/v0/cursor/sessions/"+id+"/poll", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second poll status = %d, want 404", rec.Code)
	}
}

func TestStartWithoutBody(t *testing.T) {
	fake := &fakeHandshake{}
	s, _ := newTestServer(t, fake)
	rec, _ := do(t, s, http.MethodPost, "/v0/cursor/sessions", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", rec.Code, rec.Body.String())
	}
	if len(fake.credentials) != 1 || fake.credentials[0] != "" {
		t.Fatalf("credentials = %v", fake.credentials)
	}
}

func TestStartRejectsInvalidCredential(t *testing.T) {
	fake := &fakeHandshake{}
	s, _ := newTestServer(t, fake)
	rec, _ := do(t, s, http.MethodPost, "/v0/cursor/sessions", `{"credential":"has space"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if fake.started != 0 {
		t.Fatal("handshake must not start with an invalid credential")
	}
	rec, _ = do(t, s, http.MethodPost, "/v0/cursor/sessions", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestNewSessionReplacesPrevious(t *testing.T) {
	fake := &fakeHandshake{pollResult: &cursor.PollResult{AccessToken: "tok"}}
	s, _ := newTestServer(t, fake)

	_, first := do(t, s, http.MethodPost, "/v0/cursor/sessions", "")
	_, second := do(t, s, http.MethodPost, "/v0/cursor/sessions", "")

	rec, _ := do(t, s, http.MethodPost, "/v0/cursor/sessions/"+first["uuid"].(string)+"/poll", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("replaced session poll status = %d, want 404", rec.Code)
	}
	rec, _ = do(t, s, http.MethodPost, "/v0/cursor/sessions/"+second["uuid"].(string)+"/poll", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("current session poll status = %d, want 200", rec.Code)
	}
}

func TestPollErrorStatuses(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"timeout", cursor.NewAuthenticationError(cursor.ErrPollTimeout, nil), http.StatusRequestTimeout},
		{"exhausted", cursor.NewAuthenticationError(cursor.ErrPollExhausted, errors.New("dial tcp: refused")), http.StatusBadGateway},
		{"canceled", context.Canceled, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeHandshake{pollErr: tt.err}
			s, _ := newTestServer(t, fake)
			_, started := do(t, s, http.MethodPost, "/v0/cursor/sessions", "")
			rec, payload := do(t, s, http.MethodPost, "/v0/cursor/sessions/"+started["uuid"].(string)+"/poll?max_attempts=2", "")
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d", rec.Code, tt.want)
			}
			if payload["error"] == "" {
				t.Fatal("expected error message")
			}
			if fake.maxAttempts[0] != 2 {
				t.Fatalf("maxAttempts = %d, want 2", fake.maxAttempts[0])
			}
		})
	}
}

func TestPollInvalidMaxAttempts(t *testing.T) {
	s, _ := newTestServer(t, &fakeHandshake{})
	_, started := do(t, s, http.MethodPost, "/v0/cursor/sessions", "")
	rec, _ := do(t, s, http.MethodPost, "/v0/cursor/sessions/"+started["uuid"].(string)+"/poll?max_attempts=zero", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestCredentialEndpoints(t *testing.T) {
	s, _ := newTestServer(t, &fakeHandshake{})

	_, payload := do(t, s, http.MethodGet, "/v0/cursor/credential", "")
	if payload["credential"] != "" {
		t.Fatalf("initial credential = %v", payload["credential"])
	}
	rec, _ := do(t, s, http.MethodPut, "/v0/cursor/credential", `{"credential":" stored "}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("put status = %d", rec.Code)
	}
	_, payload = do(t, s, http.MethodGet, "/v0/cursor/credential", "")
	if payload["credential"] != "stored" {
		t.Fatalf("credential = %v, want stored", payload["credential"])
	}
}

func TestCredentialEndpointsWithoutSlot(t *testing.T) {
	cfg := config.Default()
	s := NewServer(cfg, NewHandler(cfg, &fakeHandshake{}, nil))
	rec, _ := do(t, s, http.MethodGet, "/v0/cursor/credential", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestLoginSessionStoreExpiry(t *testing.T) {
	st := newLoginSessionStore(time.Minute)
	now := time.Now()
	st.now = func() time.Time { return now }
	st.Register(&cursor.LoginSession{UUID: "a"})
	if _, ok := st.Get("a"); !ok {
		t.Fatal("expected session to be present")
	}
	now = now.Add(2 * time.Minute)
	if _, ok := st.Get("a"); ok {
		t.Fatal("expected session to expire")
	}
	st.Register(nil)
	if _, ok := st.Get(""); ok {
		t.Fatal("empty id must not resolve")
	}
}
