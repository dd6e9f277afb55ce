// Package httpapi exposes the account operations as router routes served
// by the fiber adapter.
package httpapi

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	account "github.com/goliatone/go-account"
	"github.com/goliatone/go-account/middleware/jwtware"
	"github.com/goliatone/go-account/social"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
)

const (
	TextCodeInvalidPayload = "INVALID_PAYLOAD"

	DefaultMaxAvatarSize = 2 << 20
)

// Routes holds the mount points of the controller
type Routes struct {
	API    string
	Social string
}

// Controller wires the account manager, the token middleware and the
// server sessions into route handlers.
type Controller struct {
	Debug  bool
	Logger account.Logger
	Routes *Routes

	accounts      *account.Manager
	verifier      *account.RequestVerifier
	gate          *account.Gate
	sessions      *Sessions
	social        *social.Authenticator
	provider      string
	maxAvatarSize int
}

// Option configures a Controller
type Option func(*Controller)

// WithSessions enables the server session endpoints
func WithSessions(sessions *Sessions) Option {
	return func(ctrl *Controller) {
		ctrl.sessions = sessions
	}
}

// WithSocial enables the provider login endpoints for provider
func WithSocial(auth *social.Authenticator, provider string) Option {
	return func(ctrl *Controller) {
		ctrl.social = auth
		ctrl.provider = provider
	}
}

// WithLogger sets the logger
func WithLogger(logger account.Logger) Option {
	return func(ctrl *Controller) {
		if logger != nil {
			ctrl.Logger = logger
		}
	}
}

// WithMaxAvatarSize limits the size of avatar uploads in bytes
func WithMaxAvatarSize(size int) Option {
	return func(ctrl *Controller) {
		if size > 0 {
			ctrl.maxAvatarSize = size
		}
	}
}

// NewController creates the controller
func NewController(accounts *account.Manager, verifier *account.RequestVerifier, gate *account.Gate, opts ...Option) *Controller {
	ctrl := &Controller{
		Logger: nopLogger{},
		Routes: &Routes{
			API:    "/api",
			Social: "/auth",
		},
		accounts:      accounts,
		verifier:      verifier,
		gate:          gate,
		provider:      social.DefaultProviderName,
		maxAvatarSize: DefaultMaxAvatarSize,
	}
	for _, opt := range opts {
		opt(ctrl)
	}
	return ctrl
}

// Register mounts every route on r. Session routes need Sessions.Install
// on the underlying fiber app.
func (ctrl *Controller) Register(r router.Router[*fiber.App]) {
	api := r.Group(ctrl.Routes.API)

	auth := api.Group("/auth")
	auth.Post("/signup", ctrl.Signup)
	auth.Post("/login", ctrl.Login)
	auth.Post("/password-reset", ctrl.PasswordResetRequest)
	auth.Post("/password-reset/:token", ctrl.PasswordResetExecute)
	if ctrl.sessions != nil {
		auth.Get("/session", ctrl.Session)
		auth.Post("/logout", ctrl.Logout)
	}

	api.Get("/avatars/:id", ctrl.GetAvatar)

	owner := jwtware.RequireOwner(ctrl.gate)
	ownerOrAdmin := jwtware.RequireOwnerOrAdmin(ctrl.gate)

	users := api.Group("/users")
	users.Use(jwtware.New(jwtware.Config{Verifier: ctrl.verifier}))
	users.Get("/", ctrl.ListUsers, jwtware.RequireAdmin(ctrl.gate))
	users.Get("/:id", ctrl.GetUser, ownerOrAdmin)
	users.Put("/:id", ctrl.UpdateUser, ownerOrAdmin)
	users.Delete("/:id", ctrl.DeleteUser, ownerOrAdmin)
	users.Put("/:id/password", ctrl.ChangePassword, owner)
	users.Post("/:id/avatar", ctrl.AttachAvatar, owner)
	users.Delete("/:id/avatar", ctrl.DetachAvatar, owner)
	users.Delete(fmt.Sprintf("/:id/%s", ctrl.provider), ctrl.UnlinkIdentity, owner)

	if ctrl.social != nil && ctrl.sessions != nil {
		providerPath := fmt.Sprintf("%s/%s", ctrl.Routes.Social, ctrl.provider)
		r.Get(providerPath, ctrl.BeginProviderLogin)
		r.Get(providerPath+"/callback", ctrl.CompleteProviderLogin)
	}
}

func (ctrl *Controller) ok(ctx router.Context, status int, message string, payload any) error {
	return ctx.JSON(status, account.OK(message, payload))
}

func (ctrl *Controller) fail(ctx router.Context, err error) error {
	richErr := account.AsRichError(err)
	if richErr.Code >= router.StatusInternalServerError || richErr.Code == 0 {
		ctrl.Logger.Error("%s %s failed: %s", ctx.Method(), ctx.Path(), err)
		if ctrl.Debug {
			ctrl.Logger.Debug("error metadata: %s", print.MaybePrettyJSON(richErr.Metadata))
		}
	}
	return jwtware.ErrorResponse(ctx, richErr)
}

func (ctrl *Controller) bind(ctx router.Context, out any) error {
	if err := ctx.Bind(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to parse request body").
			WithTextCode(TextCodeInvalidPayload).
			WithCode(goerrors.CodeBadRequest)
	}
	return nil
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
