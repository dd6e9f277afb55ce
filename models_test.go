package account_test

import (
	"encoding/json"
	"testing"

	account "github.com/goliatone/go-account"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDisplayName(t *testing.T) {
	tests := []struct {
		in   string
		want account.Name
	}{
		{"", account.Name{}},
		{"Oliver", account.Name{First: "Oliver", Last: "Oliver"}},
		{"Oliver Queen", account.Name{First: "Oliver", Last: "Queen"}},
		{"  Oliver   Jonas Queen ", account.Name{First: "Oliver", Last: "Jonas Queen"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, account.ParseDisplayName(tt.in), tt.in)
	}
}

func TestUser_Kind(t *testing.T) {
	t.Run("password makes a local account", func(t *testing.T) {
		u := &account.User{PasswordHash: "hash", External: account.ExternalIdentity{ID: "005"}}
		assert.Equal(t, "local", account.KindName(u.Kind()))
	})

	t.Run("pending password counts", func(t *testing.T) {
		u := &account.User{}
		u.SetPassword("secret")
		assert.IsType(t, account.LocalAccount{}, u.Kind())
		assert.True(t, u.PasswordDirty())
	})

	t.Run("external identity only", func(t *testing.T) {
		u := &account.User{External: account.ExternalIdentity{ID: "005"}}
		kind, ok := u.Kind().(account.FederatedAccount)
		require.True(t, ok)
		assert.Equal(t, "005", kind.ProviderID)
	})

	t.Run("neither", func(t *testing.T) {
		u := &account.User{}
		assert.Nil(t, u.Kind())
		assert.Empty(t, account.KindName(u.Kind()))
		assert.True(t, account.IsParameterRequired(account.ValidateCredentials(u), "password"))
	})
}

func TestRoles_Normalize(t *testing.T) {
	roles := account.Roles{"Admin", "user", "admin", "root"}.Normalize()
	assert.Equal(t, account.Roles{account.RoleAdmin, account.RoleUser}, roles)

	assert.Equal(t, account.DefaultRoles(), account.Roles{}.Normalize())
	assert.Equal(t, account.DefaultRoles(), account.Roles{"root"}.Normalize())
}

func TestToClientView_HidesSecrets(t *testing.T) {
	avatarID := uuid.New()
	u := &account.User{
		ID:                 uuid.New(),
		Name:               account.Name{First: "Oliver", Last: "Queen"},
		Email:              "oliver@qc.com",
		PasswordHash:       "$2a$04$secret-hash",
		PasswordResetToken: "reset-secret",
		Roles:              account.Roles{account.RoleUser},
		AvatarID:           &avatarID,
		External: account.ExternalIdentity{
			ID:           "005xx",
			AccessToken:  "access-secret",
			RefreshToken: "refresh-secret",
			Profile:      map[string]any{"org": "QC"},
		},
	}

	view := u.ToClientView()
	assert.Equal(t, "local", view.Kind)
	assert.Equal(t, []string{"user"}, view.Roles)
	require.NotNil(t, view.External)
	assert.True(t, view.External.Connected)

	raw, err := json.Marshal(view)
	require.NoError(t, err)
	body := string(raw)
	for _, secret := range []string{"secret-hash", "reset-secret", "access-secret", "refresh-secret"} {
		assert.NotContains(t, body, secret)
	}
	assert.Contains(t, body, `"sfdc":{"id":"005xx","connected":true`)

	userJSON, err := json.Marshal(u)
	require.NoError(t, err)
	assert.NotContains(t, string(userJSON), "secret")

	assert.Len(t, account.ClientViews([]*account.User{u, u}), 2)
	assert.Equal(t, account.ClientView{}, (*account.User)(nil).ToClientView())
}

func TestAvatar_Ownership(t *testing.T) {
	owner := uuid.New()
	custom := &account.Avatar{UserID: &owner}
	shared := &account.Avatar{DefaultImg: true}

	assert.True(t, custom.OwnedBy(owner))
	assert.False(t, custom.OwnedBy(uuid.New()))
	assert.False(t, shared.IsCustom())
	assert.False(t, (*account.Avatar)(nil).IsCustom())
}
