package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/sowilo/internal/notify"
	"github.com/starford/sowilo/internal/refresh"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app" toml:"app"`
	Source  SourceConfig      `yaml:"source" toml:"source"`
	SQLite  SQLiteConfig      `yaml:"sqlite" toml:"sqlite"`
	Auth    AuthConfig        `yaml:"auth" toml:"auth"`
	Changes ChangesConfig     `yaml:"changes" toml:"changes"`
	CORS    CORSConfig        `yaml:"cors" toml:"cors"`
	Notify  NotifyConfig      `yaml:"notify" toml:"notify"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Source.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Changes.Validate(); err != nil {
		return err
	}
	if err := c.Notify.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level" toml:"log_level"`
	HTTP     HTTPConfig `yaml:"http" toml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port" toml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SourceConfig describes the published spreadsheets to sync. URLs stored
// through the API take precedence over the values here.
type SourceConfig struct {
	URL        string `yaml:"url" toml:"url"`
	AccountURL string `yaml:"account_url" toml:"account_url"`
	// RefreshInterval is in seconds; zero disables automatic refresh.
	RefreshInterval int   `yaml:"refresh_interval" toml:"refresh_interval"`
	Timeout         int   `yaml:"timeout" toml:"timeout"`
	MaxBodyBytes    int64 `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// Validate validates the source configuration.
func (c *SourceConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.URL, is.URL),
		validation.Field(&c.AccountURL, is.URL),
		validation.Field(&c.RefreshInterval, validation.Min(0)),
		validation.Field(&c.Timeout, validation.Min(0)),
		validation.Field(&c.MaxBodyBytes, validation.Min(int64(0))),
	)
}

// FetchTimeout returns the per-request timeout.
func (c *SourceConfig) FetchTimeout() time.Duration {
	if c.Timeout <= 0 {
		return refresh.DefaultTimeout
	}
	return time.Duration(c.Timeout) * time.Second
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode" toml:"mode"`
	Token string `yaml:"token" toml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// ChangesConfig bounds the change feed.
type ChangesConfig struct {
	Limit int `yaml:"limit" toml:"limit"`
}

// Validate validates the changes configuration.
func (c *ChangesConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Limit, validation.Min(0)),
	)
}

// CORSConfig lists browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" toml:"allowed_origins"`
}

// NotifyConfig holds outbound notification settings.
type NotifyConfig struct {
	NATS NATSConfig `yaml:"nats" toml:"nats"`
}

// Validate validates the notify configuration.
func (c *NotifyConfig) Validate() error {
	return c.NATS.Validate()
}

// NATSConfig enables the NATS publisher when URL is set.
type NATSConfig struct {
	URL     string `yaml:"url" toml:"url"`
	Subject string `yaml:"subject" toml:"subject"`
}

// Enabled reports whether a NATS server is configured.
func (c *NATSConfig) Enabled() bool {
	return c.URL != ""
}

// Validate validates the NATS configuration.
func (c *NATSConfig) Validate() error {
	if c.Subject == "" {
		c.Subject = notify.DefaultSubjectPrefix
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Source: SourceConfig{
			RefreshInterval: 300,
			Timeout:         int(refresh.DefaultTimeout / time.Second),
			MaxBodyBytes:    refresh.DefaultMaxBodyBytes,
		},
		SQLite: SQLiteConfig{
			Path: "./sowilo.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Changes: ChangesConfig{
			Limit: 500,
		},
		Notify: NotifyConfig{
			NATS: NATSConfig{Subject: notify.DefaultSubjectPrefix},
		},
	}
}
