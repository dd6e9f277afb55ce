package account

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token      string `json:"token" example:"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b" doc:"Reset password token"`
	Password   string `json:"password" example:"some_secret_word" doc:"Password"`
	OnResponse func(user *User)
}

func (m FinalizePasswordResetMessage) Type() string { return "account.password_reset.finalize" }

type FinalizePasswordResetHandler struct {
	accounts *Manager
}

// NewFinalizePasswordResetHandler creates the reset finalization handler
func NewFinalizePasswordResetHandler(accounts *Manager) *FinalizePasswordResetHandler {
	return &FinalizePasswordResetHandler{accounts: accounts}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset finalization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.accounts.ResetPassword(ctx, event.Token, event.Password)
	if err != nil {
		return wrapInternal(err, "failed to finalize password reset")
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}
	return nil
}
