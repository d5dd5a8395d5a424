package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/router-for-me/cursor-login/internal/auth/cursor"
	"github.com/router-for-me/cursor-login/internal/config"
	"github.com/router-for-me/cursor-login/internal/store"
	log "github.com/sirupsen/logrus"
)

// Handshake is the login flow exposed over HTTP.
type Handshake interface {
	Start(ctx context.Context, existingCredential string) (*cursor.LoginSession, error)
	Poll(ctx context.Context, session *cursor.LoginSession, maxAttempts int) (*cursor.PollResult, error)
}

// Handler serves the local login API.
type Handler struct {
	cfg      *config.Config
	auth     Handshake
	slots    store.SlotStore
	sessions *loginSessionStore
}

// NewHandler builds a handler. slots may be nil, which disables the credential endpoints.
func NewHandler(cfg *config.Config, auth Handshake, slots store.SlotStore) *Handler {
	return &Handler{
		cfg:      cfg,
		auth:     auth,
		slots:    slots,
		sessions: newLoginSessionStore(loginSessionTTL),
	}
}

type credentialRequest struct {
	Credential string `json:"credential"`
}

// PostSession starts a login session. The verifier never leaves the server.
func (h *Handler) PostSession(c *gin.Context) {
	var req credentialRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid body"})
			return
		}
	}
	credential := strings.TrimSpace(req.Credential)
	cookie := ""
	if credential != "" {
		cookieCfg := config.Default().Cursor
		if h.cfg != nil {
			cookieCfg = h.cfg.Cursor
		}
		value, err := cursor.NormalizeCredential(credential, cookieCfg.CookieName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
			return
		}
		cookie = cursor.CookieString(cursor.SessionCookie(cookieCfg.CookieName, value, cookieCfg.CookieDomain))
	}
	if credential != "" && h.slots != nil {
		if err := h.slots.Set(c.Request.Context(), store.CredentialSlotKey, credential); err != nil {
			log.Warnf("failed to store credential: %v", err)
		}
	}

	session, err := h.auth.Start(c.Request.Context(), credential)
	if err != nil {
		status := http.StatusInternalServerError
		var authErr *cursor.AuthenticationError
		if errors.As(err, &authErr) && authErr.Code != 0 {
			status = authErr.Code
		}
		c.JSON(status, gin.H{"status": "error", "error": cursor.GetUserFriendlyMessage(err)})
		return
	}
	h.sessions.Register(session)
	resp := gin.H{"status": "ok", "uuid": session.UUID, "login_url": session.LoginURL}
	if cookie != "" {
		// Frontends running in the page install this before opening login_url.
		resp["cookie"] = cookie
	}
	c.JSON(http.StatusOK, resp)
}

// PostPoll polls the session named by :uuid until it completes.
func (h *Handler) PostPoll(c *gin.Context) {
	id := c.Param("uuid")
	session, ok := h.sessions.Get(id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "unknown or expired session"})
		return
	}

	maxAttempts := 0
	if h.cfg != nil {
		maxAttempts = h.cfg.Cursor.MaxAttempts
	}
	if raw := strings.TrimSpace(c.Query("max_attempts")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid max_attempts"})
			return
		}
		maxAttempts = n
	}

	result, err := h.auth.Poll(c.Request.Context(), session, maxAttempts)
	if err != nil {
		c.JSON(pollErrorStatus(err), gin.H{"status": "error", "error": cursor.GetUserFriendlyMessage(err)})
		return
	}
	h.sessions.Complete(id)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "user_id": result.UserID, "access_token": result.AccessToken})
}

func pollErrorStatus(err error) int {
	switch {
	case cursor.IsPollTimeout(err):
		return http.StatusRequestTimeout
	case cursor.IsPollExhausted(err):
		return http.StatusBadGateway
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// GetCredential returns the stored session credential.
func (h *Handler) GetCredential(c *gin.Context) {
	if h.slots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "credential slot unavailable"})
		return
	}
	value, err := h.slots.Get(c.Request.Context(), store.CredentialSlotKey)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"credential": value})
}

// PutCredential replaces the stored session credential.
func (h *Handler) PutCredential(c *gin.Context) {
	if h.slots == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "error": "credential slot unavailable"})
		return
	}
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid body"})
		return
	}
	if err := h.slots.Set(c.Request.Context(), store.CredentialSlotKey, strings.TrimSpace(req.Credential)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
