package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete client configuration
type Config struct {
	Portal      PortalConfig      `yaml:"portal"`
	Credentials CredentialsConfig `yaml:"credentials"`
	TokenFile   string            `yaml:"token_file"`
	Login       LoginConfig       `yaml:"login"`
	HTTP        HTTPConfig        `yaml:"http"`
	Log         LogConfig         `yaml:"log"`
}

// PortalConfig holds the identity provider endpoints and the protocol constants
// the provider expects verbatim.
type PortalConfig struct {
	BaseURL        string `yaml:"base_url"`         // Identity host, e.g. https://jouw.postnl.nl
	APIBaseURL     string `yaml:"api_base_url"`     // Resource API host (defaults to base_url)
	ClientID       string `yaml:"client_id"`        // Registered public client
	Audience       string `yaml:"audience"`         // Resource audience requested at authorize
	Scope          string `yaml:"scope"`            // Space separated scopes
	RedirectURI    string `yaml:"redirect_uri"`     // Silent-renew URL, used only as a correlation value
	Prompt         string `yaml:"prompt"`           // "none" for silent renewal
	UILocales      string `yaml:"ui_locales"`       // Sent with the authorize request
	UserAgent      string `yaml:"user_agent"`       // Browser identity presented to the bot check
	APIVersion     string `yaml:"api_version"`      // Api-Version header for resource calls
	StrictState    bool   `yaml:"strict_state"`     // Reject authorize redirects echoing a different state
	SensorDataFile string `yaml:"sensor_data_file"` // Overrides the bundled sensor data blob
}

// CredentialsConfig holds the portal account. Usually supplied through the environment.
type CredentialsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// LoginConfig controls how often a full login may hit the provider
type LoginConfig struct {
	MinInterval int  `yaml:"min_interval"` // Seconds between full login attempts
	Burst       int  `yaml:"burst"`        // Attempts allowed back to back
	Serialize   bool `yaml:"serialize"`    // Hold the token slot lock while a token is computed
}

// HTTPConfig defines transport settings
type HTTPConfig struct {
	Timeout int `yaml:"timeout"` // Per-request timeout in seconds, 0 keeps the transport default
}

// LogConfig defines logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault behaves like Load but falls back to defaults plus environment
// overrides when the file does not exist.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	cfg = DefaultConfig()
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns the configuration for the public PostNL portal
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			BaseURL:     "https://jouw.postnl.nl",
			ClientID:    "pwb-web",
			Audience:    "poa-profiles-api",
			Scope:       "openid profile email poa-profiles-api pwb-web-api",
			RedirectURI: "https://jouw.postnl.nl/silent-renew.html",
			Prompt:      "none",
			UILocales:   "nl_NL",
			UserAgent:   "Mozilla/5.0 (Windows NT 10.0; rv:68.0) Gecko/20100101 Firefox/68.0",
			APIVersion:  "4.18",
		},
		Login: LoginConfig{
			MinInterval: 30,
			Burst:       2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyEnvOverrides applies environment variable overrides
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("POSTNL_USERNAME"); v != "" {
		c.Credentials.Username = v
	}
	if v := os.Getenv("POSTNL_PASSWORD"); v != "" {
		c.Credentials.Password = v
	}
	if v := os.Getenv("POSTNL_TOKEN_FILE"); v != "" {
		c.TokenFile = v
	}
	if v := os.Getenv("POSTNL_BASE_URL"); v != "" {
		c.Portal.BaseURL = v
	}

	if v := os.Getenv("POSTNL_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("POSTNL_LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := validateHTTPURL("portal.base_url", c.Portal.BaseURL, true); err != nil {
		return err
	}
	if err := validateHTTPURL("portal.api_base_url", c.Portal.APIBaseURL, false); err != nil {
		return err
	}
	if err := validateHTTPURL("portal.redirect_uri", c.Portal.RedirectURI, true); err != nil {
		return err
	}

	if c.Portal.ClientID == "" {
		return fmt.Errorf("portal.client_id is required")
	}
	if !containsScope(c.Portal.Scope, "openid") {
		return fmt.Errorf("portal.scope must include 'openid'")
	}
	if c.Portal.Prompt == "" {
		return fmt.Errorf("portal.prompt is required (use \"none\" for silent renewal)")
	}
	if c.Portal.UserAgent == "" {
		return fmt.Errorf("portal.user_agent is required")
	}
	if c.Portal.SensorDataFile != "" {
		if _, err := os.Stat(c.Portal.SensorDataFile); err != nil {
			return fmt.Errorf("portal.sensor_data_file not found: %w", err)
		}
	}

	if c.Login.MinInterval < 0 {
		return fmt.Errorf("login.min_interval must not be negative")
	}
	if c.Login.Burst <= 0 {
		return fmt.Errorf("login.burst must be positive")
	}
	if c.HTTP.Timeout < 0 {
		return fmt.Errorf("http.timeout must not be negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Log.Level] {
		return fmt.Errorf("log.level must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validFormats[c.Log.Format] {
		return fmt.Errorf("log.format must be one of: json, text")
	}

	return nil
}

// HasCredentials reports whether both username and password are set.
func (c *Config) HasCredentials() bool {
	return c.Credentials.Username != "" && c.Credentials.Password != ""
}

// APIBase returns the resource API host, falling back to the identity host.
func (p *PortalConfig) APIBase() string {
	if p.APIBaseURL != "" {
		return strings.TrimSuffix(p.APIBaseURL, "/")
	}
	return strings.TrimSuffix(p.BaseURL, "/")
}

// LoginInterval returns the minimum spacing between full login attempts.
func (l *LoginConfig) LoginInterval() time.Duration {
	return time.Duration(l.MinInterval) * time.Second
}

// RequestTimeout returns the per-request timeout, zero meaning none.
func (h *HTTPConfig) RequestTimeout() time.Duration {
	return time.Duration(h.Timeout) * time.Second
}

func validateHTTPURL(field, raw string, required bool) error {
	if raw == "" {
		if required {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be a valid HTTP(S) URL", field)
	}
	return nil
}

func containsScope(scope, want string) bool {
	for _, s := range strings.Fields(scope) {
		if s == want {
			return true
		}
	}
	return false
}

// SetupLogging configures the global slog logger based on the LogConfig.
func SetupLogging(cfg *LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	slog.SetDefault(slog.New(handler))
}

// Redact returns a copy of the config with secrets redacted for safe printing
func (c *Config) Redact() *Config {
	redacted := *c
	if redacted.Credentials.Password != "" {
		redacted.Credentials.Password = "[REDACTED]"
	}
	return &redacted
}
