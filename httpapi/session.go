package httpapi

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/session"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const (
	sessionUserKey   = "user_id"
	sessionNonceKey  = "oauth_nonce"
	sessionLocalsKey = "account_session"

	DefaultSessionCookie     = "account_sid"
	DefaultSessionExpiration = 24 * time.Hour
)

// ErrNoSession the request carries no signed in server session
var ErrNoSession = goerrors.New("no active session", goerrors.CategoryAuth).
	WithTextCode("NO_SESSION").
	WithCode(goerrors.CodeUnauthorized)

// ErrSessionUnavailable the sessions were not installed on the server app
var ErrSessionUnavailable = goerrors.New("session store not installed", goerrors.CategoryInternal).
	WithTextCode("SESSION_UNAVAILABLE").
	WithCode(goerrors.CodeInternal)

// Sessions correlates a browser with a signed in user through a server
// side session referenced by an opaque cookie. The cookie value is a
// random session id, the user id never leaves the server.
type Sessions struct {
	store *session.Store
}

// SessionConfig configures the session cookie
type SessionConfig struct {
	CookieName string
	Expiration time.Duration
	Secure     bool
	Storage    fiber.Storage
}

// NewSessions creates the session correlator. Zero values use the
// defaults and the in memory storage.
func NewSessions(cfg SessionConfig) *Sessions {
	if cfg.CookieName == "" {
		cfg.CookieName = DefaultSessionCookie
	}
	if cfg.Expiration <= 0 {
		cfg.Expiration = DefaultSessionExpiration
	}
	return &Sessions{
		store: session.New(session.Config{
			Expiration:     cfg.Expiration,
			Storage:        cfg.Storage,
			KeyLookup:      "cookie:" + cfg.CookieName,
			CookieHTTPOnly: true,
			CookieSecure:   cfg.Secure,
			CookieSameSite: fiber.CookieSameSiteLaxMode,
		}),
	}
}

type sessionLoader func() (*session.Session, error)

// Install registers the fiber handler that exposes the session store to
// router handlers. It has the signature of a fiber adapter option and
// must run before routes are added.
func (s *Sessions) Install(app *fiber.App) *fiber.App {
	app.Use(func(c *fiber.Ctx) error {
		c.Locals(sessionLocalsKey, sessionLoader(func() (*session.Session, error) {
			return s.store.Get(c)
		}))
		return c.Next()
	})
	return app
}

// load reads the session of the request. A saved session is released, so
// every operation loads it again.
func (s *Sessions) load(ctx router.Context) (*session.Session, error) {
	loader, ok := ctx.Locals(sessionLocalsKey).(sessionLoader)
	if !ok {
		return nil, ErrSessionUnavailable
	}
	return loader()
}

// SignIn binds userID to a fresh session id
func (s *Sessions) SignIn(ctx router.Context, userID string) error {
	sess, err := s.load(ctx)
	if err != nil {
		return err
	}
	if err := sess.Regenerate(); err != nil {
		return err
	}
	sess.Set(sessionUserKey, userID)
	return sess.Save()
}

// UserID returns the user bound to the request session
func (s *Sessions) UserID(ctx router.Context) (string, error) {
	sess, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	id, _ := sess.Get(sessionUserKey).(string)
	if id == "" {
		return "", ErrNoSession
	}
	return id, nil
}

// SignOut destroys the session
func (s *Sessions) SignOut(ctx router.Context) error {
	sess, err := s.load(ctx)
	if err != nil {
		return err
	}
	return sess.Destroy()
}

// PutNonce remembers the nonce of a pending provider login
func (s *Sessions) PutNonce(ctx router.Context, nonce string) error {
	sess, err := s.load(ctx)
	if err != nil {
		return err
	}
	sess.Set(sessionNonceKey, nonce)
	return sess.Save()
}

// TakeNonce returns the pending nonce and forgets it, so a callback can
// be completed once.
func (s *Sessions) TakeNonce(ctx router.Context) (string, error) {
	sess, err := s.load(ctx)
	if err != nil {
		return "", err
	}
	nonce, _ := sess.Get(sessionNonceKey).(string)
	sess.Delete(sessionNonceKey)
	return nonce, sess.Save()
}
