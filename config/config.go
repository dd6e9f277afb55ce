// Package config loads the account service settings from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	account "github.com/goliatone/go-account"
)

// Prefix is prepended to every variable name
const Prefix = "ACCOUNT_"

// Config is the service configuration. It implements account.Config.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Debug       bool   `env:"DEBUG"`

	HTTP    HTTP    `envPrefix:"HTTP_"`
	Auth    Auth    `envPrefix:"AUTH_"`
	Avatar  Avatar  `envPrefix:"AVATAR_"`
	DB      DB      `envPrefix:"DB_"`
	SMTP    SMTP    `envPrefix:"SMTP_"`
	S3      S3      `envPrefix:"S3_"`
	SFDC    SFDC    `envPrefix:"SFDC_"`
	Session Session `envPrefix:"SESSION_"`

	PasswordResetURL string `env:"PASSWORD_RESET_URL" envDefault:"http://localhost:8080/password-reset"`
}

type HTTP struct {
	Addr string `env:"ADDR" envDefault:":8080"`
}

type Auth struct {
	SigningKey      string `env:"SIGNING_KEY"`
	TokenExpiration int    `env:"TOKEN_EXPIRATION" envDefault:"24"`
	Issuer          string `env:"ISSUER"`
	BcryptCost      int    `env:"BCRYPT_COST"`
	TokenBodyField  string `env:"TOKEN_BODY_FIELD" envDefault:"token"`
	TokenQueryField string `env:"TOKEN_QUERY_FIELD" envDefault:"token"`
	TokenHeader     string `env:"TOKEN_HEADER" envDefault:"x-access-token"`
}

type Avatar struct {
	DefaultURL string `env:"DEFAULT_URL" envDefault:"/images/default-avatar.png"`
	BaseURL    string `env:"BASE_URL" envDefault:"/api/avatars"`
	MaxSize    int    `env:"MAX_SIZE" envDefault:"2097152"`
	// DefaultImage is a file seeded as the shared default avatar
	DefaultImage   string        `env:"DEFAULT_IMAGE"`
	OrphanGrace    time.Duration `env:"ORPHAN_GRACE" envDefault:"1h"`
	ReconcileEvery time.Duration `env:"RECONCILE_EVERY" envDefault:"6h"`
}

type DB struct {
	Driver string `env:"DRIVER" envDefault:"sqlite"`
	DSN    string `env:"DSN" envDefault:"file:account.db?cache=shared"`
}

type SMTP struct {
	Host       string `env:"HOST"`
	Port       int    `env:"PORT" envDefault:"587"`
	Username   string `env:"USERNAME"`
	Password   string `env:"PASSWORD"`
	From       string `env:"FROM" envDefault:"no-reply@localhost"`
	RequireTLS bool   `env:"REQUIRE_TLS"`
}

// Enabled reports whether a mail server is configured
func (s SMTP) Enabled() bool { return s.Host != "" }

type S3 struct {
	Bucket    string `env:"BUCKET"`
	Region    string `env:"REGION" envDefault:"us-east-1"`
	Endpoint  string `env:"ENDPOINT"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Prefix    string `env:"PREFIX" envDefault:"avatars"`
	PathStyle bool   `env:"PATH_STYLE"`
}

// Enabled reports whether avatars are kept in a bucket
func (s S3) Enabled() bool { return s.Bucket != "" }

type SFDC struct {
	ClientID     string   `env:"CLIENT_ID"`
	ClientSecret string   `env:"CLIENT_SECRET"`
	CallbackURL  string   `env:"CALLBACK_URL"`
	LoginURL     string   `env:"LOGIN_URL" envDefault:"https://login.salesforce.com"`
	Scopes       []string `env:"SCOPES" envSeparator:","`
	StateKey     string   `env:"STATE_KEY"`
}

// Enabled reports whether provider login is configured
func (s SFDC) Enabled() bool { return s.ClientID != "" }

type Session struct {
	CookieName string        `env:"COOKIE_NAME" envDefault:"account_sid"`
	Secure     bool          `env:"SECURE"`
	Expiration time.Duration `env:"EXPIRATION" envDefault:"24h"`
}

var _ account.Config = (*Config)(nil)

// Load parses the process environment
func Load() (*Config, error) {
	return LoadFrom(envMap(os.Environ()))
}

// LoadFrom parses vars instead of the process environment
func LoadFrom(vars map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{
		Prefix:      Prefix,
		Environment: vars,
	}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the parsed values
func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Environment, validation.Required),
		validation.Field(&c.PasswordResetURL, validation.Required),
		validation.Field(&c.Auth),
		validation.Field(&c.Avatar),
		validation.Field(&c.DB),
		validation.Field(&c.SFDC),
	)
}

func (a Auth) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required, validation.Length(16, 0)),
		validation.Field(&a.TokenExpiration, validation.Required, validation.Min(1)),
		validation.Field(&a.BcryptCost, validation.Min(0), validation.Max(31)),
	)
}

func (a Avatar) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.MaxSize, validation.Required, validation.Min(1)),
	)
}

func (d DB) Validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite", "sqlite3", "postgres", "pg", "pgx")),
		validation.Field(&d.DSN, validation.Required),
	)
}

func (s SFDC) Validate() error {
	enabled := s.Enabled()
	return validation.ValidateStruct(&s,
		validation.Field(&s.ClientSecret, validation.When(enabled, validation.Required)),
		validation.Field(&s.CallbackURL, validation.When(enabled, validation.Required, is.URL)),
		validation.Field(&s.LoginURL, is.URL),
	)
}

func (c *Config) GetSigningKey() string   { return c.Auth.SigningKey }
func (c *Config) GetTokenExpiration() int { return c.Auth.TokenExpiration }
func (c *Config) GetIssuer() string       { return c.Auth.Issuer }
func (c *Config) GetEnvironment() string  { return c.Environment }

// GetBcryptCost returns the explicit cost or the environment default
func (c *Config) GetBcryptCost() int {
	if c.Auth.BcryptCost > 0 {
		return c.Auth.BcryptCost
	}
	return account.PasswordCostForEnvironment(c.Environment)
}

func (c *Config) GetDefaultAvatarURL() string { return c.Avatar.DefaultURL }
func (c *Config) GetAvatarBaseURL() string    { return c.Avatar.BaseURL }
func (c *Config) GetPasswordResetURL() string { return c.PasswordResetURL }
func (c *Config) GetTokenBodyField() string   { return c.Auth.TokenBodyField }
func (c *Config) GetTokenQueryField() string  { return c.Auth.TokenQueryField }
func (c *Config) GetTokenHeader() string      { return c.Auth.TokenHeader }

// GetStateKey returns the key signing provider login state, the token
// signing key when none is set.
func (c *Config) GetStateKey() string {
	if c.SFDC.StateKey != "" {
		return c.SFDC.StateKey
	}
	return c.Auth.SigningKey
}

func envMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, kv := range environ {
		if key, value, ok := strings.Cut(kv, "="); ok {
			out[key] = value
		}
	}
	return out
}
