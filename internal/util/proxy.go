package util

import (
	"context"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/router-for-me/cursor-login/internal/config"
	log "github.com/sirupsen/logrus"
	"golang.org/x/net/proxy"
)

// SetProxy configures the provided HTTP client with proxy settings from the configuration.
// It supports SOCKS5, HTTP, and HTTPS proxies. When the client already carries an
// *http.Transport the proxy is applied to a clone of it so existing settings survive.
func SetProxy(cfg *config.SDKConfig, httpClient *http.Client) *http.Client {
	if cfg == nil || strings.TrimSpace(cfg.ProxyURL) == "" {
		return httpClient
	}
	proxyURL, errParse := url.Parse(cfg.ProxyURL)
	if errParse != nil {
		log.Errorf("parse proxy URL failed: %v", errParse)
		return httpClient
	}

	transport := baseTransport(httpClient)
	switch proxyURL.Scheme {
	case "socks5", "socks5h":
		var proxyAuth *proxy.Auth
		if proxyURL.User != nil {
			password, _ := proxyURL.User.Password()
			proxyAuth = &proxy.Auth{User: proxyURL.User.Username(), Password: password}
		}
		dialer, errSOCKS5 := proxy.SOCKS5("tcp", proxyURL.Host, proxyAuth, proxy.Direct)
		if errSOCKS5 != nil {
			log.Errorf("create SOCKS5 dialer failed: %v", errSOCKS5)
			return httpClient
		}
		transport.Proxy = nil
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
	default:
		log.Warnf("unsupported proxy scheme %q, using direct connection", proxyURL.Scheme)
		return httpClient
	}
	httpClient.Transport = transport
	return httpClient
}

// ProxyDialer returns a dialer honouring the configured proxy, falling back to a direct dialer.
func ProxyDialer(cfg *config.SDKConfig) proxy.Dialer {
	if cfg == nil || strings.TrimSpace(cfg.ProxyURL) == "" {
		return proxy.Direct
	}
	proxyURL, err := url.Parse(cfg.ProxyURL)
	if err != nil {
		log.Errorf("failed to parse proxy URL %q: %v", cfg.ProxyURL, err)
		return proxy.Direct
	}
	dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
	if err != nil {
		log.Errorf("failed to create proxy dialer for %q: %v", cfg.ProxyURL, err)
		return proxy.Direct
	}
	return dialer
}

func baseTransport(httpClient *http.Client) *http.Transport {
	if existing, ok := httpClient.Transport.(*http.Transport); ok && existing != nil {
		return existing.Clone()
	}
	return http.DefaultTransport.(*http.Transport).Clone()
}
