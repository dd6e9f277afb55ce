package social

import (
	"context"
	"errors"

	account "github.com/goliatone/go-account"
)

// Authenticator runs the redirect and callback halves of a provider login
// and hands the verified identity to the Linker.
type Authenticator struct {
	providers map[string]Provider
	state     *StateSigner
	linker    *Linker
	tokens    account.TokenService
}

// AuthOption configures the authenticator.
type AuthOption func(*Authenticator)

// WithProvider registers a provider.
func WithProvider(provider Provider) AuthOption {
	return func(a *Authenticator) {
		if provider != nil {
			a.providers[provider.Name()] = provider
		}
	}
}

// NewAuthenticator creates an authenticator
func NewAuthenticator(state *StateSigner, linker *Linker, tokens account.TokenService, opts ...AuthOption) *Authenticator {
	a := &Authenticator{
		providers: map[string]Provider{},
		state:     state,
		linker:    linker,
		tokens:    tokens,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// AuthRedirect is where the browser goes next. Nonce must be kept in the
// server session and handed back to CompleteAuth.
type AuthRedirect struct {
	URL      string
	State    string
	Nonce    string
	Provider string
}

// BeginAuth builds the provider authorization URL
func (a *Authenticator) BeginAuth(ctx context.Context, providerName, redirectURL string, opts ...AuthCodeOption) (*AuthRedirect, error) {
	provider, ok := a.providers[providerName]
	if !ok {
		return nil, ErrProviderNotFound
	}

	state := &OAuthState{Provider: providerName, RedirectURL: redirectURL}
	token, err := a.state.Encode(state)
	if err != nil {
		return nil, err
	}

	return &AuthRedirect{
		URL:      provider.AuthCodeURL(token, opts...),
		State:    token,
		Nonce:    state.Nonce(),
		Provider: providerName,
	}, nil
}

// CompleteRequest carries the callback query and the session data
type CompleteRequest struct {
	Provider    string
	Code        string
	State       string
	Nonce       string
	SessionUser *account.User
}

// AuthResult is a completed provider login
type AuthResult struct {
	User        *account.User
	Outcome     Outcome
	Token       string
	RedirectURL string
}

// CompleteAuth verifies the state, exchanges the code, loads the profile
// and links it.
func (a *Authenticator) CompleteAuth(ctx context.Context, req CompleteRequest) (*AuthResult, error) {
	state, err := a.state.Decode(req.State)
	if err != nil {
		return nil, err
	}
	if state.Provider != req.Provider || req.Nonce == "" || state.Nonce() != req.Nonce {
		return nil, ErrInvalidState
	}

	provider, ok := a.providers[req.Provider]
	if !ok {
		return nil, ErrProviderNotFound
	}
	if req.Code == "" {
		return nil, account.ErrParameterRequired("code")
	}

	token, err := provider.Exchange(ctx, req.Code)
	if err != nil {
		return nil, wrapProviderError(ErrTokenExchangeFailed, req.Provider, err)
	}

	profile, err := provider.UserInfo(ctx, token)
	if err != nil {
		return nil, wrapProviderError(ErrUserInfoFailed, req.Provider, err)
	}
	if profile == nil {
		return nil, wrapProviderError(ErrUserInfoFailed, req.Provider, errors.New("empty profile"))
	}

	linked, err := a.linker.Link(ctx, Callback{
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		Profile:      *profile,
		SessionUser:  req.SessionUser,
	})
	if err != nil {
		return nil, err
	}

	jwtToken, err := a.tokens.Issue(linked.User)
	if err != nil {
		return nil, err
	}

	return &AuthResult{
		User:        linked.User,
		Outcome:     linked.Outcome,
		Token:       jwtToken,
		RedirectURL: state.RedirectURL,
	}, nil
}
