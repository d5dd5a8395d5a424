package cursor

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

// CookieStore receives the session cookie installed before a handshake.
type CookieStore interface {
	SetCookie(cookie *http.Cookie) error
}

// JarCookieStore writes cookies into an http.CookieJar scoped to the web origin.
type JarCookieStore struct {
	jar    http.CookieJar
	origin *url.URL
}

// NewJarCookieStore creates a cookie store for the given web origin backed by a fresh jar.
func NewJarCookieStore(webBaseURL string) (*JarCookieStore, error) {
	origin, err := url.Parse(webBaseURL)
	if err != nil || origin.Host == "" {
		return nil, fmt.Errorf("cursor: invalid web base url %q", webBaseURL)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("cursor: create cookie jar: %w", err)
	}
	return &JarCookieStore{jar: jar, origin: origin}, nil
}

// Jar exposes the underlying jar so HTTP clients can share it.
func (s *JarCookieStore) Jar() http.CookieJar {
	return s.jar
}

// SetCookie installs cookie for the web origin.
func (s *JarCookieStore) SetCookie(cookie *http.Cookie) error {
	if cookie == nil {
		return fmt.Errorf("cursor: cookie is nil")
	}
	s.jar.SetCookies(s.origin, []*http.Cookie{cookie})
	return nil
}

// Cookies returns the cookies the jar would send to the web origin.
func (s *JarCookieStore) Cookies() []*http.Cookie {
	return s.jar.Cookies(s.origin)
}

// NormalizeCredential trims a pasted session credential. Both the bare value and
// a "<cookieName>=<value>" pair copied from browser devtools are accepted.
func NormalizeCredential(raw, cookieName string) (string, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return "", fmt.Errorf("credential cannot be empty")
	}
	if cookieName != "" {
		for _, part := range strings.Split(value, ";") {
			part = strings.TrimSpace(part)
			if name, v, ok := strings.Cut(part, "="); ok && strings.TrimSpace(name) == cookieName {
				value = strings.TrimSpace(v)
				break
			}
		}
	}
	value = strings.TrimSuffix(value, ";")
	if value == "" {
		return "", fmt.Errorf("credential cannot be empty")
	}
	if strings.ContainsAny(value, " \t\r\n;") {
		return "", fmt.Errorf("credential contains whitespace or ';'")
	}
	return value, nil
}

// SessionCookie builds the credential cookie scoped to domain for every path.
func SessionCookie(name, value, domain string) *http.Cookie {
	return &http.Cookie{
		Name:   name,
		Value:  value,
		Path:   "/",
		Domain: domain,
	}
}

// CookieString renders the cookie in document.cookie form, e.g.
// "WorkosCursorSessionToken=v; path=/; domain=.cursor.com".
func CookieString(cookie *http.Cookie) string {
	if cookie == nil {
		return ""
	}
	return fmt.Sprintf("%s=%s; path=%s; domain=%s", cookie.Name, cookie.Value, cookie.Path, cookie.Domain)
}
