// Package sfdc is the Salesforce identity provider.
package sfdc

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-account/social"
	"golang.org/x/oauth2"
)

const (
	providerName       = "sfdc"
	defaultLoginURL    = "https://login.salesforce.com"
	authPath           = "/services/oauth2/authorize"
	tokenPath          = "/services/oauth2/token"
	userInfoPath       = "/services/oauth2/userinfo"
	defaultHTTPTimeout = 10 * time.Second
)

// Config holds the connected app credentials.
type Config struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
	Scopes       []string
	// LoginURL is the authorization server, test.salesforce.com for sandboxes
	LoginURL   string
	HTTPClient *http.Client
}

// DefaultScopes returns the default scopes.
func DefaultScopes() []string {
	return []string{"id", "api", "refresh_token"}
}

// Provider implements social.Provider for Salesforce.
type Provider struct {
	oauth       *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// New creates a new Salesforce provider.
func New(cfg Config) *Provider {
	if len(cfg.Scopes) == 0 {
		cfg.Scopes = DefaultScopes()
	}
	base := strings.TrimRight(cfg.LoginURL, "/")
	if base == "" {
		base = defaultLoginURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Provider{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   base + authPath,
				TokenURL:  base + tokenPath,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		userInfoURL: base + userInfoPath,
		httpClient:  client,
	}
}

// Name implements social.Provider.
func (p *Provider) Name() string {
	return providerName
}

// AuthCodeURL implements social.Provider.
func (p *Provider) AuthCodeURL(state string, opts ...social.AuthCodeOption) string {
	cfg := social.ApplyAuthCodeOptions(p.oauth.Scopes, opts...)

	params := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("scope", strings.Join(cfg.Scopes, " ")),
	}
	if cfg.Prompt != "" {
		params = append(params, oauth2.SetAuthURLParam("prompt", cfg.Prompt))
	}
	return p.oauth.AuthCodeURL(state, params...)
}

// Exchange implements social.Provider.
func (p *Provider) Exchange(ctx context.Context, code string) (*social.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, p.httpClient)

	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			status := 0
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			return nil, providerError("exchange", status, rerr.ErrorCode, rerr.ErrorDescription, err)
		}
		return nil, providerError("exchange", 0, "", "", err)
	}

	raw := map[string]any{}
	for _, key := range []string{"instance_url", "id", "issued_at", "signature"} {
		if v := tok.Extra(key); v != nil {
			raw[key] = v
		}
	}

	return &social.Token{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		RefreshToken: tok.RefreshToken,
		ExpiresAt:    tok.Expiry,
		Raw:          raw,
	}, nil
}

// UserInfo implements social.Provider.
func (p *Provider) UserInfo(ctx context.Context, token *social.Token) (*social.Profile, error) {
	if token == nil || token.AccessToken == "" {
		return nil, providerError("user_info", 0, "missing_access_token", "missing access token", nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, providerError("user_info", 0, "", "", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, providerError("user_info", resp.StatusCode, "", "", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, providerError("user_info", resp.StatusCode, "", strings.TrimSpace(string(body)), nil)
	}

	var info userInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, providerError("user_info", resp.StatusCode, "invalid_response", "failed to decode user info", err)
	}
	raw := map[string]any{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, providerError("user_info", resp.StatusCode, "invalid_response", "failed to decode user info", err)
	}

	return mapProfile(info, raw), nil
}

func providerError(operation string, status int, code, description string, err error) *social.ProviderError {
	return &social.ProviderError{
		Provider:    providerName,
		Operation:   operation,
		Status:      status,
		Code:        code,
		Description: description,
		Err:         err,
	}
}
