package account

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type InitializePasswordResetMessage struct {
	Email string `json:"email" example:"oliver@qc.com" doc:"Account email."`
}

func (p InitializePasswordResetMessage) Type() string { return "account.password_reset" }

type InitializePasswordResetHandler struct {
	accounts *Manager
}

// NewInitializePasswordResetHandler creates the reset request handler
func NewInitializePasswordResetHandler(accounts *Manager) *InitializePasswordResetHandler {
	return &InitializePasswordResetHandler{accounts: accounts}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if err := h.accounts.RequestPasswordReset(ctx, event.Email); err != nil {
		return wrapInternal(err, "failed to initialize password reset")
	}
	return nil
}
