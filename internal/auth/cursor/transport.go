package cursor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
	"github.com/router-for-me/cursor-login/internal/config"
	"github.com/router-for-me/cursor-login/internal/util"
	log "github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"
)

// maxResponseBytes caps how much of a poll response is read.
const maxResponseBytes = 1 << 20

// Transport issues a single GET against the provider and returns the parsed JSON body.
type Transport interface {
	Fetch(ctx context.Context, rawURL string) (gjson.Result, error)
}

// HTTPTransport is the default Transport. It presents itself as the Cursor
// desktop client and classifies failures into AuthenticationError kinds.
type HTTPTransport struct {
	httpClient *http.Client
	userAgent  string
	timeout    time.Duration
	requestLog bool
}

// NewHTTPTransport builds a transport from the configuration. jar may be nil.
func NewHTTPTransport(cfg *config.Config, jar http.CookieJar) *HTTPTransport {
	if cfg == nil {
		cfg = config.Default()
	}
	client := &http.Client{Jar: jar}
	if cfg.Cursor.UTLS {
		client.Transport = newUtlsRoundTripper(&cfg.SDKConfig)
	} else {
		client = util.SetProxy(&cfg.SDKConfig, client)
	}
	return &HTTPTransport{
		httpClient: client,
		userAgent:  cfg.Cursor.UserAgent,
		timeout:    time.Duration(cfg.Cursor.RequestTimeoutSeconds) * time.Second,
		requestLog: cfg.RequestLog,
	}
}

// Fetch performs the GET request. A 200 response with a JSON body resolves;
// everything else is returned as an *AuthenticationError.
func (t *HTTPTransport) Fetch(ctx context.Context, rawURL string) (gjson.Result, error) {
	reqCtx := ctx
	if t.timeout > 0 {
		var cancel context.CancelFunc
		reqCtx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		maskErrorURL(err)
		return gjson.Result{}, NewAuthenticationError(ErrNetworkFailure, fmt.Errorf("cursor: failed to create request: %w", err))
	}
	t.applyHeaders(req)

	start := time.Now()
	resp, err := t.httpClient.Do(req)
	if err != nil {
		return gjson.Result{}, classifyRequestError(err)
	}
	defer func() {
		if errClose := resp.Body.Close(); errClose != nil {
			log.Errorf("cursor poll: close body error: %v", errClose)
		}
	}()

	body, err := readResponseBody(resp)
	if err != nil {
		return gjson.Result{}, classifyRequestError(err)
	}
	if t.requestLog {
		log.Debugf("cursor: GET %s -> %d (%s, %d bytes)", util.MaskURL(rawURL), resp.StatusCode, time.Since(start).Truncate(time.Millisecond), len(body))
	}

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, NewHTTPStatusError(resp.StatusCode, statusText(resp))
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, NewAuthenticationError(ErrJSONParseFailure, fmt.Errorf("invalid JSON body of %d bytes", len(body)))
	}
	return gjson.ParseBytes(body), nil
}

func (t *HTTPTransport) applyHeaders(req *http.Request) {
	req.Header.Set("User-Agent", t.userAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br, zstd")
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
}

// classifyRequestError maps client errors to timeout or network failures.
// The request URL carried by the error has its verifier masked.
func classifyRequestError(err error) error {
	maskErrorURL(err)
	if errors.Is(err, context.DeadlineExceeded) {
		return NewAuthenticationError(ErrTimeoutFailure, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewAuthenticationError(ErrTimeoutFailure, err)
	}
	return NewAuthenticationError(ErrNetworkFailure, err)
}

// maskErrorURL masks secret query parameters of the *url.Error inside err.
func maskErrorURL(err error) {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = util.MaskURL(urlErr.URL)
	}
}

// statusText returns the reason phrase of the response, e.g. "Not Found".
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

// readResponseBody reads the body and undoes the content encoding advertised by the request.
func readResponseBody(resp *http.Response) ([]byte, error) {
	reader, closeFn, err := decodingReader(resp.Header.Get("Content-Encoding"), resp.Body)
	if err != nil {
		return nil, err
	}
	defer closeFn()
	return io.ReadAll(io.LimitReader(reader, maxResponseBytes))
}

func decodingReader(encoding string, body io.Reader) (io.Reader, func(), error) {
	noop := func() {}
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "", "identity":
		return body, noop, nil
	case "gzip":
		gz, err := gzip.NewReader(body)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		return gz, func() { _ = gz.Close() }, nil
	case "deflate":
		zr, err := zlib.NewReader(body)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create deflate reader: %w", err)
		}
		return zr, func() { _ = zr.Close() }, nil
	case "br":
		return brotli.NewReader(body), noop, nil
	case "zstd":
		decoder, err := zstd.NewReader(body)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to create zstd reader: %w", err)
		}
		return decoder, decoder.Close, nil
	default:
		return nil, noop, fmt.Errorf("unsupported content encoding %q", encoding)
	}
}
