package account

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type RegisterUserMessage struct {
	Name       Name   `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	Phone      string `json:"phone_number"`
	OnResponse func(resp *RegisterUserResponse)
}

func (e RegisterUserMessage) Type() string { return "account.signup" }

type RegisterUserResponse struct {
	User  *User
	Token string
}

type RegisterUserHandler struct {
	accounts *Manager
}

// NewRegisterUserHandler creates the signup command handler
func NewRegisterUserHandler(accounts *Manager) *RegisterUserHandler {
	return &RegisterUserHandler{accounts: accounts}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.accounts.Signup(ctx, SignupInput{
		Name:     event.Name,
		Email:    event.Email,
		Password: event.Password,
		Phone:    event.Phone,
	})
	if err != nil {
		return wrapInternal(err, "user registration failed")
	}

	token, err := h.accounts.IssueToken(user)
	if err != nil {
		return wrapInternal(err, "failed to issue token for new user")
	}

	if event.OnResponse != nil {
		event.OnResponse(&RegisterUserResponse{User: user, Token: token})
	}
	return nil
}
