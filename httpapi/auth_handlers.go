package httpapi

import (
	"strings"

	account "github.com/goliatone/go-account"
	"github.com/goliatone/go-account/social"
	"github.com/goliatone/go-router"
)

// SignupPayload is the body of the signup route
type SignupPayload struct {
	Name     account.Name `json:"name" form:"name"`
	Email    string       `json:"email" form:"email"`
	Password string       `json:"password" form:"password"`
	Phone    string       `json:"phone_number" form:"phone_number"`
}

// LoginPayload is the body of the login route
type LoginPayload struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

// AuthPayload is returned by signup and login
type AuthPayload struct {
	User  account.ClientView `json:"user"`
	Token string             `json:"token"`
}

func (ctrl *Controller) Signup(ctx router.Context) error {
	payload := new(SignupPayload)
	if err := ctrl.bind(ctx, payload); err != nil {
		return ctrl.fail(ctx, err)
	}

	var res *account.RegisterUserResponse
	err := account.NewRegisterUserHandler(ctrl.accounts).Execute(ctx.Context(), account.RegisterUserMessage{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Phone:    payload.Phone,
		OnResponse: func(resp *account.RegisterUserResponse) {
			res = resp
		},
	})
	if err != nil {
		return ctrl.fail(ctx, err)
	}

	if err := ctrl.signIn(ctx, res.User); err != nil {
		return ctrl.fail(ctx, err)
	}

	return ctrl.ok(ctx, router.StatusCreated, "account created", AuthPayload{
		User:  res.User.ToClientView(),
		Token: res.Token,
	})
}

func (ctrl *Controller) Login(ctx router.Context) error {
	payload := new(LoginPayload)
	if err := ctrl.bind(ctx, payload); err != nil {
		return ctrl.fail(ctx, err)
	}

	token, user, err := ctrl.accounts.Login(ctx.Context(), payload.Email, payload.Password)
	if err != nil {
		return ctrl.fail(ctx, err)
	}

	if err := ctrl.signIn(ctx, user); err != nil {
		return ctrl.fail(ctx, err)
	}

	return ctrl.ok(ctx, router.StatusOK, "signed in", AuthPayload{
		User:  user.ToClientView(),
		Token: token,
	})
}

func (ctrl *Controller) PasswordResetRequest(ctx router.Context) error {
	payload := new(account.InitializePasswordResetMessage)
	if err := ctrl.bind(ctx, payload); err != nil {
		return ctrl.fail(ctx, err)
	}

	if err := account.NewInitializePasswordResetHandler(ctrl.accounts).Execute(ctx.Context(), *payload); err != nil {
		return ctrl.fail(ctx, err)
	}

	// unknown emails get the same answer
	return ctrl.ok(ctx, router.StatusOK, "if the account exists a reset link has been sent", nil)
}

type passwordResetPayload struct {
	Password string `json:"password" form:"password"`
}

func (ctrl *Controller) PasswordResetExecute(ctx router.Context) error {
	payload := new(passwordResetPayload)
	if err := ctrl.bind(ctx, payload); err != nil {
		return ctrl.fail(ctx, err)
	}

	var user *account.User
	err := account.NewFinalizePasswordResetHandler(ctrl.accounts).Execute(ctx.Context(), account.FinalizePasswordResetMessage{
		Token:    ctx.Param("token"),
		Password: payload.Password,
		OnResponse: func(u *account.User) {
			user = u
		},
	})
	if err != nil {
		return ctrl.fail(ctx, err)
	}

	return ctrl.ok(ctx, router.StatusOK, "password updated", user.ToClientView())
}

func (ctrl *Controller) Session(ctx router.Context) error {
	user, err := ctrl.sessionUser(ctx)
	if err != nil {
		return ctrl.fail(ctx, err)
	}
	if user == nil {
		return ctrl.fail(ctx, ErrNoSession)
	}
	return ctrl.ok(ctx, router.StatusOK, "session", user.ToClientView())
}

func (ctrl *Controller) Logout(ctx router.Context) error {
	if err := ctrl.sessions.SignOut(ctx); err != nil {
		return ctrl.fail(ctx, err)
	}
	return ctrl.ok(ctx, router.StatusOK, "signed out", nil)
}

// BeginProviderLogin redirects to the identity provider. The nonce bound
// into the state stays in the server session.
func (ctrl *Controller) BeginProviderLogin(ctx router.Context) error {
	redirect, err := ctrl.social.BeginAuth(ctx.Context(), ctrl.provider, localRedirect(ctx.Query("redirect")))
	if err != nil {
		return ctrl.fail(ctx, err)
	}

	if err := ctrl.sessions.PutNonce(ctx, redirect.Nonce); err != nil {
		return ctrl.fail(ctx, err)
	}

	return ctx.Redirect(redirect.URL, router.StatusFound)
}

// CompleteProviderLogin handles the provider callback. A signed in
// session links the identity to that account, otherwise the linker
// creates, reconnects or signs in.
func (ctrl *Controller) CompleteProviderLogin(ctx router.Context) error {
	if providerErr := ctx.Query("error"); providerErr != "" {
		ctrl.Logger.Warn("provider %s denied login: %s %s", ctrl.provider, providerErr, ctx.Query("error_description"))
		return ctrl.fail(ctx, social.ErrInvalidState)
	}

	nonce, err := ctrl.sessions.TakeNonce(ctx)
	if err != nil {
		return ctrl.fail(ctx, err)
	}

	sessionUser, err := ctrl.sessionUser(ctx)
	if err != nil {
		return ctrl.fail(ctx, err)
	}

	res, err := ctrl.social.CompleteAuth(ctx.Context(), social.CompleteRequest{
		Provider:    ctrl.provider,
		Code:        ctx.Query("code"),
		State:       ctx.Query("state"),
		Nonce:       nonce,
		SessionUser: sessionUser,
	})
	if err != nil {
		return ctrl.fail(ctx, err)
	}

	if err := ctrl.signIn(ctx, res.User); err != nil {
		return ctrl.fail(ctx, err)
	}

	if res.RedirectURL != "" {
		return ctx.Redirect(res.RedirectURL, router.StatusSeeOther)
	}

	return ctrl.ok(ctx, router.StatusOK, string(res.Outcome), map[string]any{
		"user":    res.User.ToClientView(),
		"token":   res.Token,
		"outcome": res.Outcome,
	})
}

func (ctrl *Controller) signIn(ctx router.Context, user *account.User) error {
	if ctrl.sessions == nil {
		return nil
	}
	return ctrl.sessions.SignIn(ctx, user.ID.String())
}

// sessionUser returns nil without error when nobody is signed in
func (ctrl *Controller) sessionUser(ctx router.Context) (*account.User, error) {
	if ctrl.sessions == nil {
		return nil, nil
	}
	id, err := ctrl.sessions.UserID(ctx)
	if err == ErrNoSession {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user, err := ctrl.accounts.GetUser(ctx.Context(), id)
	if account.IsNotFound(err) {
		return nil, nil
	}
	return user, err
}

// localRedirect only accepts same origin paths
func localRedirect(target string) string {
	if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.Contains(target, "\\") {
		return ""
	}
	return target
}
