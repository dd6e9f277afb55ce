package config_test

import (
	"testing"
	"time"

	"github.com/goliatone/go-account/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseVars() map[string]string {
	return map[string]string{
		"ACCOUNT_AUTH_SIGNING_KEY": "0123456789abcdef-signing",
	}
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := config.LoadFrom(baseVars())
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.GetEnvironment())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.Equal(t, 24, cfg.GetTokenExpiration())
	assert.Equal(t, 12, cfg.GetBcryptCost())
	assert.Equal(t, "token", cfg.GetTokenBodyField())
	assert.Equal(t, "token", cfg.GetTokenQueryField())
	assert.Equal(t, "x-access-token", cfg.GetTokenHeader())
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, 2097152, cfg.Avatar.MaxSize)
	assert.Equal(t, time.Hour, cfg.Avatar.OrphanGrace)
	assert.Equal(t, 24*time.Hour, cfg.Session.Expiration)
	assert.False(t, cfg.SMTP.Enabled())
	assert.False(t, cfg.S3.Enabled())
	assert.False(t, cfg.SFDC.Enabled())
	assert.Equal(t, cfg.GetSigningKey(), cfg.GetStateKey())
}

func TestLoadFrom_Overrides(t *testing.T) {
	vars := baseVars()
	vars["ACCOUNT_ENVIRONMENT"] = "test"
	vars["ACCOUNT_DB_DRIVER"] = "postgres"
	vars["ACCOUNT_DB_DSN"] = "postgres://localhost/accounts"
	vars["ACCOUNT_SMTP_HOST"] = "smtp.example.com"
	vars["ACCOUNT_SMTP_REQUIRE_TLS"] = "true"
	vars["ACCOUNT_S3_BUCKET"] = "avatars"
	vars["ACCOUNT_SFDC_CLIENT_ID"] = "client"
	vars["ACCOUNT_SFDC_CLIENT_SECRET"] = "secret"
	vars["ACCOUNT_SFDC_CALLBACK_URL"] = "https://app.example.com/auth/sfdc/callback"
	vars["ACCOUNT_SFDC_SCOPES"] = "id,api"
	vars["ACCOUNT_SFDC_STATE_KEY"] = "state-key"

	cfg, err := config.LoadFrom(vars)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.GetBcryptCost())
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.True(t, cfg.SMTP.Enabled())
	assert.True(t, cfg.SMTP.RequireTLS)
	assert.True(t, cfg.S3.Enabled())
	assert.True(t, cfg.SFDC.Enabled())
	assert.Equal(t, []string{"id", "api"}, cfg.SFDC.Scopes)
	assert.Equal(t, "state-key", cfg.GetStateKey())

	vars["ACCOUNT_AUTH_BCRYPT_COST"] = "10"
	cfg, err = config.LoadFrom(vars)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.GetBcryptCost())
}

func TestLoadFrom_Invalid(t *testing.T) {
	tests := []struct {
		name string
		vars map[string]string
		want string
	}{
		{
			name: "missing signing key",
			vars: map[string]string{},
			want: "SigningKey",
		},
		{
			name: "short signing key",
			vars: map[string]string{"ACCOUNT_AUTH_SIGNING_KEY": "short"},
			want: "SigningKey",
		},
		{
			name: "unknown driver",
			vars: map[string]string{
				"ACCOUNT_AUTH_SIGNING_KEY": "0123456789abcdef-signing",
				"ACCOUNT_DB_DRIVER":        "mysql",
			},
			want: "Driver",
		},
		{
			name: "provider without secret",
			vars: map[string]string{
				"ACCOUNT_AUTH_SIGNING_KEY": "0123456789abcdef-signing",
				"ACCOUNT_SFDC_CLIENT_ID":   "client",
			},
			want: "ClientSecret",
		},
		{
			name: "not a number",
			vars: map[string]string{
				"ACCOUNT_AUTH_SIGNING_KEY":      "0123456789abcdef-signing",
				"ACCOUNT_AUTH_TOKEN_EXPIRATION": "soon",
			},
			want: "parse env",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadFrom(tt.vars)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
