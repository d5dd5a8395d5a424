package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultWebBaseURL hosts the deep-login consent page.
	DefaultWebBaseURL = "https://www.cursor.com"
	// DefaultAPIBaseURL hosts the poll endpoint.
	DefaultAPIBaseURL = "https://api2.cursor.sh"
	// DefaultCookieName is the web session cookie installed before the handshake.
	DefaultCookieName = "WorkosCursorSessionToken"
	// DefaultCookieDomain scopes the installed session cookie.
	DefaultCookieDomain = ".cursor.com"
	// DefaultLoginMode is sent as the mode parameter of the deep link.
	DefaultLoginMode = "login"
	// DefaultUserAgent mirrors the Cursor desktop client.
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Cursor/0.48.6 Chrome/132.0.6834.210 Electron/34.3.4 Safari/537.36"
	// DefaultMaxAttempts bounds the number of poll requests per login.
	DefaultMaxAttempts = 20
	// DefaultPollIntervalSeconds is the fixed delay between poll attempts.
	DefaultPollIntervalSeconds = 3
	// DefaultRequestTimeoutSeconds bounds a single poll request.
	DefaultRequestTimeoutSeconds = 10
	// DefaultPort is the loopback port used by the local API server.
	DefaultPort = 8318
	// DefaultAuthDir is where token records and the credential slot are stored.
	DefaultAuthDir = "~/.cursor-login"
)

// Config represents the application's configuration, loaded from a YAML file.
type Config struct {
	SDKConfig `yaml:",inline"`

	// Port is the loopback port the local API server listens on.
	Port int `yaml:"port" json:"port"`

	// AuthDir is the directory where token records and the credential slot are stored.
	AuthDir string `yaml:"auth-dir" json:"auth-dir"`

	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile switches logging from stdout to a rotating file under the logs directory.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsMaxBackups caps how many rotated log files are kept. 0 keeps all of them.
	LogsMaxBackups int `yaml:"logs-max-backups" json:"logs-max-backups"`

	// Cursor holds the deep-login handshake settings.
	Cursor CursorConfig `yaml:"cursor" json:"cursor"`
}

// CursorConfig describes the provider endpoints and the poll loop.
type CursorConfig struct {
	WebBaseURL   string `yaml:"web-base-url" json:"web-base-url"`
	APIBaseURL   string `yaml:"api-base-url" json:"api-base-url"`
	CookieName   string `yaml:"cookie-name" json:"cookie-name"`
	CookieDomain string `yaml:"cookie-domain" json:"cookie-domain"`
	LoginMode    string `yaml:"login-mode" json:"login-mode"`
	UserAgent    string `yaml:"user-agent" json:"user-agent"`

	// MaxAttempts bounds the number of poll requests. <= 0 uses DefaultMaxAttempts.
	MaxAttempts int `yaml:"max-attempts" json:"max-attempts"`

	// PollIntervalSeconds is the fixed wait between attempts. <= 0 uses the default.
	PollIntervalSeconds int `yaml:"poll-interval-seconds" json:"poll-interval-seconds"`

	// RequestTimeoutSeconds bounds a single poll request. <= 0 uses the default.
	RequestTimeoutSeconds int `yaml:"request-timeout-seconds" json:"request-timeout-seconds"`

	// UTLS routes poll requests through a browser TLS fingerprint.
	UTLS bool `yaml:"utls" json:"utls"`
}

// Default returns a configuration populated with built-in defaults.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads and parses the YAML configuration file at configFile.
func LoadConfig(configFile string) (*Config, error) {
	return LoadConfigOptional(configFile, false)
}

// LoadConfigOptional behaves like LoadConfig but, when optional is true, a missing
// or empty file yields the default configuration instead of an error.
func LoadConfigOptional(configFile string, optional bool) (*Config, error) {
	cfg := &Config{}
	if strings.TrimSpace(configFile) == "" {
		if !optional {
			return nil, fmt.Errorf("config: file path is required")
		}
		cfg.applyDefaults()
		return cfg, nil
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			cfg.applyDefaults()
			return cfg, nil
		}
		return nil, fmt.Errorf("config: failed to read %s: %w", configFile, err)
	}

	if len(strings.TrimSpace(string(data))) > 0 {
		if err = yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: failed to parse %s: %w", configFile, err)
		}
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Port <= 0 {
		cfg.Port = DefaultPort
	}
	if strings.TrimSpace(cfg.AuthDir) == "" {
		cfg.AuthDir = DefaultAuthDir
	}
	if cfg.LogsMaxBackups < 0 {
		cfg.LogsMaxBackups = 0
	}
	cfg.Cursor.applyDefaults()
}

func (c *CursorConfig) applyDefaults() {
	c.WebBaseURL = strings.TrimRight(strings.TrimSpace(c.WebBaseURL), "/")
	if c.WebBaseURL == "" {
		c.WebBaseURL = DefaultWebBaseURL
	}
	c.APIBaseURL = strings.TrimRight(strings.TrimSpace(c.APIBaseURL), "/")
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if strings.TrimSpace(c.CookieName) == "" {
		c.CookieName = DefaultCookieName
	}
	if strings.TrimSpace(c.CookieDomain) == "" {
		c.CookieDomain = DefaultCookieDomain
	}
	if strings.TrimSpace(c.LoginMode) == "" {
		c.LoginMode = DefaultLoginMode
	}
	if strings.TrimSpace(c.UserAgent) == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.PollIntervalSeconds <= 0 {
		c.PollIntervalSeconds = DefaultPollIntervalSeconds
	}
	if c.RequestTimeoutSeconds <= 0 {
		c.RequestTimeoutSeconds = DefaultRequestTimeoutSeconds
	}
}
