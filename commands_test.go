package account_test

import (
	"context"
	"strings"
	"testing"

	account "github.com/goliatone/go-account"
	goerrors "github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterUserHandler(t *testing.T) {
	env := newTestEnv(t)
	handler := account.NewRegisterUserHandler(env.manager)

	var resp *account.RegisterUserResponse
	err := handler.Execute(context.Background(), account.RegisterUserMessage{
		Name:       account.Name{First: "Oliver", Last: "Queen"},
		Email:      "oliver@qc.com",
		Password:   "123456",
		OnResponse: func(r *account.RegisterUserResponse) { resp = r },
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "oliver@qc.com", resp.User.Email)
	assert.Len(t, strings.Split(resp.Token, "."), 3)

	err = handler.Execute(context.Background(), account.RegisterUserMessage{
		Name:     account.Name{First: "Oliver", Last: "Queen"},
		Email:    "oliver@qc.com",
		Password: "123456",
	})
	assert.ErrorIs(t, err, account.ErrDuplicateEmail)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = handler.Execute(ctx, account.RegisterUserMessage{Email: "x@qc.com"})
	assert.True(t, goerrors.IsCategory(err, goerrors.CategoryOperation))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPasswordResetHandlers(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	env.signup(t, "oliver@qc.com")

	initialize := account.NewInitializePasswordResetHandler(env.manager)
	require.NoError(t, initialize.Execute(ctx, account.InitializePasswordResetMessage{Email: "oliver@qc.com"}))
	require.NoError(t, initialize.Execute(ctx, account.InitializePasswordResetMessage{Email: "nobody@qc.com"}))

	stored, err := env.repo.Users().GetByEmail(ctx, "oliver@qc.com")
	require.NoError(t, err)
	require.NotEmpty(t, stored.PasswordResetToken)

	finalize := account.NewFinalizePasswordResetHandler(env.manager)
	var updated *account.User
	err = finalize.Execute(ctx, account.FinalizePasswordResetMessage{
		Token:      stored.PasswordResetToken,
		Password:   "brand-new",
		OnResponse: func(u *account.User) { updated = u },
	})
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.NoError(t, updated.VerifyPassword(env.hasher, "brand-new"))

	err = finalize.Execute(ctx, account.FinalizePasswordResetMessage{
		Token:    stored.PasswordResetToken,
		Password: "again",
	})
	assert.ErrorIs(t, err, account.ErrResetTokenInvalid)
}
