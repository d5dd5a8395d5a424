package cursor

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/router-for-me/cursor-login/internal/browser"
	"github.com/router-for-me/cursor-login/internal/config"
	"github.com/router-for-me/cursor-login/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

const (
	// deepLoginPath is the consent page path on the web origin.
	deepLoginPath = "/cn/loginDeepControl"
	// pollPath is the token poll path on the API origin.
	pollPath = "/auth/poll"
)

// URLOpener opens a URL in a new browsing context.
type URLOpener func(rawURL string) error

// sleepFunc waits for d or until ctx is done.
type sleepFunc func(ctx context.Context, d time.Duration) error

// attemptOutcome classifies a single poll attempt.
type attemptOutcome int

const (
	// outcomeRetry means no token yet, or a non-final request error.
	outcomeRetry attemptOutcome = iota
	// outcomeSuccess means an access token was issued.
	outcomeSuccess
	// outcomeExhausted means the final attempt failed with a request error.
	outcomeExhausted
)

// CursorAuth runs the deep-login handshake.
type CursorAuth struct {
	cfg          config.CursorConfig
	transport    Transport
	cookies      CookieStore
	openURL      URLOpener
	sleep        sleepFunc
	pollInterval time.Duration
	polls        singleflight.Group

	mu       sync.Mutex
	inflight map[string]*pollCall
}

// pollCall is the shared context of one session's poll loop.
type pollCall struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// Option customises a CursorAuth.
type Option func(*CursorAuth)

// WithTransport replaces the HTTP transport used for polling.
func WithTransport(transport Transport) Option {
	return func(a *CursorAuth) {
		if transport != nil {
			a.transport = transport
		}
	}
}

// WithURLOpener replaces the browser opener. A nil opener disables opening.
func WithURLOpener(opener URLOpener) Option {
	return func(a *CursorAuth) {
		a.openURL = opener
	}
}

// WithCookieStore replaces the store receiving the credential cookie.
func WithCookieStore(store CookieStore) Option {
	return func(a *CursorAuth) {
		if store != nil {
			a.cookies = store
		}
	}
}

// NewCursorAuth creates a CursorAuth from the configuration. By default the
// credential cookie lands in a jar shared with the poll transport and the
// deep link is opened with the system browser.
func NewCursorAuth(cfg *config.Config, opts ...Option) *CursorAuth {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &CursorAuth{
		cfg:          cfg.Cursor,
		openURL:      browser.OpenURL,
		sleep:        sleepContext,
		pollInterval: time.Duration(cfg.Cursor.PollIntervalSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}

	if a.cookies == nil {
		store, err := NewJarCookieStore(a.cfg.WebBaseURL)
		if err != nil {
			log.Warnf("cursor: cookie store disabled: %v", err)
		} else {
			a.cookies = store
		}
	}
	if a.transport == nil {
		var transport *HTTPTransport
		if jarStore, ok := a.cookies.(*JarCookieStore); ok {
			transport = NewHTTPTransport(cfg, jarStore.Jar())
		} else {
			transport = NewHTTPTransport(cfg, nil)
		}
		a.transport = transport
	}
	return a
}

// Start installs the optional credential cookie, creates a PKCE pair and a
// correlation id, and opens the deep link. It returns without waiting for consent.
func (a *CursorAuth) Start(ctx context.Context, existingCredential string) (*LoginSession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if strings.TrimSpace(existingCredential) != "" {
		if err := a.installCredential(existingCredential); err != nil {
			return nil, err
		}
	}

	pkceCodes, err := GeneratePKCECodes()
	if err != nil {
		return nil, err
	}
	correlationID := GenerateCorrelationID()

	session := &LoginSession{
		UUID:     correlationID,
		Verifier: pkceCodes.CodeVerifier,
		LoginURL: a.DeepLinkURL(pkceCodes.CodeChallenge, correlationID),
	}

	entry := log.WithField("session", correlationID)
	entry.Debugf("cursor: deep link %s", session.LoginURL)

	if a.openURL != nil {
		if errOpen := a.openURL(session.LoginURL); errOpen != nil {
			entry.Warnf("Failed to open browser automatically: %v", errOpen)
		}
	}
	return session, nil
}

func (a *CursorAuth) installCredential(raw string) error {
	value, err := NormalizeCredential(raw, a.cfg.CookieName)
	if err != nil {
		return fmt.Errorf("cursor: %w", err)
	}
	if a.cookies == nil {
		return fmt.Errorf("cursor: no cookie store available for the session credential")
	}
	cookie := SessionCookie(a.cfg.CookieName, value, a.cfg.CookieDomain)
	if err = a.cookies.SetCookie(cookie); err != nil {
		return fmt.Errorf("cursor: install session cookie: %w", err)
	}
	log.Debugf("cursor: installed %s cookie (%s)", a.cfg.CookieName, util.HideAPIKey(value))
	return nil
}

// DeepLinkURL builds the consent URL for a challenge and correlation id.
func (a *CursorAuth) DeepLinkURL(challenge, correlationID string) string {
	return fmt.Sprintf("%s%s?challenge=%s&uuid=%s&mode=%s",
		a.cfg.WebBaseURL, deepLoginPath,
		url.QueryEscape(challenge), url.QueryEscape(correlationID), url.QueryEscape(a.cfg.LoginMode))
}

// PollURL builds the poll endpoint URL for a session.
func (a *CursorAuth) PollURL(session *LoginSession) string {
	return fmt.Sprintf("%s%s?uuid=%s&verifier=%s",
		a.cfg.APIBaseURL, pollPath,
		url.QueryEscape(session.UUID), url.QueryEscape(session.Verifier))
}

// Poll asks the provider for a token until one is issued or maxAttempts requests
// were made, waiting a fixed interval between attempts. maxAttempts <= 0 uses
// the configured default.
//
// A request error on the final attempt ends the loop with ErrPollExhausted
// wrapping that error; running out of attempts otherwise yields ErrPollTimeout.
// Concurrent calls for the same session share one loop.
func (a *CursorAuth) Poll(ctx context.Context, session *LoginSession, maxAttempts int) (*PollResult, error) {
	if session == nil || session.UUID == "" || session.Verifier == "" {
		return nil, fmt.Errorf("cursor: login session is required")
	}
	if maxAttempts <= 0 {
		maxAttempts = a.cfg.MaxAttempts
	}
	if maxAttempts <= 0 {
		maxAttempts = config.DefaultMaxAttempts
	}

	call := a.joinPoll(ctx, session.UUID)
	defer a.leavePoll(session.UUID, call)

	results := a.polls.DoChan(session.UUID, func() (any, error) {
		return a.pollLoop(call.ctx, session, maxAttempts)
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("cursor: polling cancelled: %w", ctx.Err())
	case res := <-results:
		if res.Shared {
			log.WithField("session", session.UUID).Debug("cursor: joined in-flight poll")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*PollResult), nil
	}
}

// joinPoll registers a waiter for the session's poll loop. The loop runs on a
// context detached from any single caller and is cancelled once every waiter
// has left.
func (a *CursorAuth) joinPoll(ctx context.Context, id string) *pollCall {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inflight == nil {
		a.inflight = make(map[string]*pollCall)
	}
	call, ok := a.inflight[id]
	if !ok {
		loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		call = &pollCall{ctx: loopCtx, cancel: cancel}
		a.inflight[id] = call
	}
	call.waiters++
	return call
}

func (a *CursorAuth) leavePoll(id string, call *pollCall) {
	a.mu.Lock()
	defer a.mu.Unlock()
	call.waiters--
	if call.waiters > 0 {
		return
	}
	call.cancel()
	if a.inflight[id] == call {
		delete(a.inflight, id)
	}
}

func (a *CursorAuth) pollLoop(ctx context.Context, session *LoginSession, maxAttempts int) (*PollResult, error) {
	pollURL := a.PollURL(session)
	entry := log.WithFields(log.Fields{"session": session.UUID, "max_attempts": maxAttempts})

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		entry.WithField("attempt", attempt).Debugf("cursor: polling %s", util.MaskURL(pollURL))

		result, outcome, err := a.pollOnce(ctx, pollURL, attempt, maxAttempts)
		switch outcome {
		case outcomeSuccess:
			entry.WithFields(log.Fields{"attempt": attempt, "user_id": result.UserID}).Info("cursor: access token issued")
			return result, nil
		case outcomeExhausted:
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("cursor: polling cancelled: %w", ctxErr)
			}
			entry.WithField("attempt", attempt).Errorf("cursor: poll attempt failed: %v", err)
			return nil, err
		}

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("cursor: polling cancelled: %w", ctxErr)
			}
			entry.WithField("attempt", attempt).Warnf("cursor: poll attempt failed: %v", err)
		}

		if attempt < maxAttempts {
			if errSleep := a.sleep(ctx, a.pollInterval); errSleep != nil {
				return nil, fmt.Errorf("cursor: polling cancelled: %w", errSleep)
			}
		}
	}

	return nil, NewAuthenticationError(ErrPollTimeout, nil)
}

// pollOnce performs one attempt. A request error is terminal only on the final attempt.
func (a *CursorAuth) pollOnce(ctx context.Context, pollURL string, attempt, maxAttempts int) (*PollResult, attemptOutcome, error) {
	data, err := a.transport.Fetch(ctx, pollURL)
	if err != nil {
		if attempt >= maxAttempts {
			return nil, outcomeExhausted, NewAuthenticationError(ErrPollExhausted, err)
		}
		return nil, outcomeRetry, err
	}

	accessToken := data.Get("accessToken")
	if accessToken.Type != gjson.String || accessToken.Str == "" {
		return nil, outcomeRetry, nil
	}

	authID := data.Get("authId").String()
	return &PollResult{
		UserID:      userIDFromAuthID(authID),
		AccessToken: accessToken.Str,
		AuthID:      authID,
	}, outcomeSuccess, nil
}

// IsPollTimeout reports whether err means the user never completed consent.
func IsPollTimeout(err error) bool {
	return errors.Is(err, ErrPollTimeout)
}

// IsPollExhausted reports whether err means the final poll request failed.
func IsPollExhausted(err error) bool {
	return errors.Is(err, ErrPollExhausted)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
