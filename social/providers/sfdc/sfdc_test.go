package sfdc

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/goliatone/go-account/social"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderAuthCodeURL(t *testing.T) {
	provider := New(Config{
		ClientID:    "client-id",
		CallbackURL: "https://example.com/auth/sfdc/callback",
	})

	authURL := provider.AuthCodeURL("state-token", social.WithScopes("web"), social.WithPrompt("login"))

	parsed, err := url.Parse(authURL)
	require.NoError(t, err)
	assert.Equal(t, "login.salesforce.com", parsed.Host)
	assert.Equal(t, "/services/oauth2/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "client-id", query.Get("client_id"))
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "https://example.com/auth/sfdc/callback", query.Get("redirect_uri"))
	assert.Equal(t, "state-token", query.Get("state"))
	assert.Equal(t, "id api refresh_token web", query.Get("scope"))
	assert.Equal(t, "login", query.Get("prompt"))
}

func TestProviderExchangeAndUserInfo(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case tokenPath:
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
			assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))
			assert.Equal(t, "auth-code", r.PostForm.Get("code"))
			assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))

			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"access_token":  "access",
				"refresh_token": "refresh",
				"token_type":    "Bearer",
				"instance_url":  "https://qc.my.salesforce.com",
			})
		case userInfoPath:
			assert.Equal(t, "Bearer access", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			_ = json.NewEncoder(w).Encode(map[string]any{
				"user_id":            "005xx000001Sv6e",
				"organization_id":    "00Dxx0000001gPL",
				"name":               "Oliver Queen",
				"preferred_username": "oliver@qc.com.sandbox",
				"email":              "oliver@qc.com",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	provider := New(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		CallbackURL:  "https://example.com/callback",
		LoginURL:     server.URL,
		HTTPClient:   server.Client(),
	})

	token, err := provider.Exchange(context.Background(), "auth-code")
	require.NoError(t, err)
	assert.Equal(t, "access", token.AccessToken)
	assert.Equal(t, "refresh", token.RefreshToken)
	assert.Equal(t, "https://qc.my.salesforce.com", token.Raw["instance_url"])

	profile, err := provider.UserInfo(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "005xx000001Sv6e", profile.ID)
	assert.Equal(t, "Oliver Queen", profile.DisplayName)
	assert.Equal(t, []string{"oliver@qc.com", "oliver@qc.com.sandbox"}, profile.Emails)
	assert.Equal(t, "00Dxx0000001gPL", profile.Raw["organization_id"])
}

func TestProviderExchangeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "expired authorization code",
		})
	}))
	defer server.Close()

	provider := New(Config{ClientID: "id", LoginURL: server.URL, HTTPClient: server.Client()})
	_, err := provider.Exchange(context.Background(), "stale")
	require.Error(t, err)

	var perr *social.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "exchange", perr.Operation)
	assert.Equal(t, http.StatusBadRequest, perr.Status)
	assert.Equal(t, "invalid_grant", perr.Code)
	assert.Equal(t, "expired authorization code", perr.Description)
}

func TestProviderUserInfoError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte("Bad_OAuth_Token"))
	}))
	defer server.Close()

	provider := New(Config{LoginURL: server.URL, HTTPClient: server.Client()})
	_, err := provider.UserInfo(context.Background(), &social.Token{AccessToken: "expired"})

	var perr *social.ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusForbidden, perr.Status)
	assert.Equal(t, "Bad_OAuth_Token", perr.Description)

	_, err = provider.UserInfo(context.Background(), nil)
	assert.Error(t, err)
}
