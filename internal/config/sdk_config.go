// Package config provides configuration management for the cursor login helper.
// It handles loading and parsing YAML configuration files, and provides structured
// access to application settings including the auth directory, logging switches,
// proxy configuration and the deep-login endpoints.
package config

// SDKConfig holds settings shared by every outbound HTTP client.
type SDKConfig struct {
	// ProxyURL is the URL of an optional proxy server to use for outbound requests.
	// Supported schemes are socks5, http and https.
	ProxyURL string `yaml:"proxy-url" json:"proxy-url"`

	// RequestLog enables debug logging of every poll request and response status.
	RequestLog bool `yaml:"request-log" json:"request-log"`
}
