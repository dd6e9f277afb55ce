package social

import (
	"context"
	"time"
)

// Provider is an OAuth2 identity provider.
type Provider interface {
	// Name returns the provider identifier, e.g. "sfdc".
	Name() string

	// AuthCodeURL returns the URL to redirect users for authorization.
	AuthCodeURL(state string, opts ...AuthCodeOption) string

	// Exchange trades an authorization code for tokens.
	Exchange(ctx context.Context, code string) (*Token, error)

	// UserInfo fetches the user's profile using the access token.
	UserInfo(ctx context.Context, token *Token) (*Profile, error)
}

// AuthCodeOption configures the authorization URL.
type AuthCodeOption func(*AuthCodeConfig)

// AuthCodeConfig represents applied auth code options in a provider-friendly form.
type AuthCodeConfig struct {
	Scopes []string
	Prompt string
}

// WithScopes sets additional scopes for the auth request.
func WithScopes(scopes ...string) AuthCodeOption {
	return func(c *AuthCodeConfig) {
		c.Scopes = append(c.Scopes, scopes...)
	}
}

// WithPrompt sets the prompt parameter (e.g., "consent", "login").
func WithPrompt(prompt string) AuthCodeOption {
	return func(c *AuthCodeConfig) {
		c.Prompt = prompt
	}
}

// ApplyAuthCodeOptions applies AuthCodeOption values on top of the default scopes.
func ApplyAuthCodeOptions(scopes []string, opts ...AuthCodeOption) AuthCodeConfig {
	cfg := AuthCodeConfig{Scopes: append([]string(nil), scopes...)}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return cfg
}

// Token represents an OAuth2 token response.
type Token struct {
	AccessToken  string
	TokenType    string
	RefreshToken string
	ExpiresAt    time.Time
	Raw          map[string]any
}

// Profile is the identity the provider vouches for.
type Profile struct {
	ID          string
	DisplayName string
	Emails      []string
	Raw         map[string]any
}

// PrimaryEmail returns the first non empty email
func (p Profile) PrimaryEmail() string {
	for _, email := range p.Emails {
		if email != "" {
			return email
		}
	}
	return ""
}
