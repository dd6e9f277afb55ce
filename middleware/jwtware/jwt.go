// Package jwtware verifies bearer tokens on router routes and guards them
// with the ownership and admin predicates.
package jwtware

import (
	"context"

	account "github.com/goliatone/go-account"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ValidationListener is invoked after a token has been verified but before
// the request proceeds.
type ValidationListener func(ctx router.Context, claims *account.Claims) error

// Config configures the token middleware.
type Config struct {
	// Filter skips the middleware when it returns true
	Filter func(router.Context) bool
	// Verifier resolves the request token, required
	Verifier *account.RequestVerifier
	// ErrorHandler renders failures, defaults to ErrorResponse
	ErrorHandler router.ErrorHandler
	// ContextEnricher propagates claims to the standard context
	ContextEnricher func(ctx context.Context, claims *account.Claims) context.Context
	// ValidationListeners run after verification succeeds
	ValidationListeners []ValidationListener
}

// New returns a middleware that runs VerifyRequest and stores the claims
// in the request locals under account.ClaimsLocalsKey.
func New(cfg Config) router.MiddlewareFunc {
	if cfg.Verifier == nil {
		panic("jwtware: Verifier is required")
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = ErrorResponse
	}
	if cfg.ContextEnricher == nil {
		cfg.ContextEnricher = account.WithClaimsContext
	}

	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			if cfg.Filter != nil && cfg.Filter(ctx) {
				return ctx.Next()
			}

			claims, err := cfg.Verifier.VerifyRequest(ctx)
			if err != nil {
				return cfg.ErrorHandler(ctx, err)
			}

			for _, listener := range cfg.ValidationListeners {
				if listener == nil {
					continue
				}
				if err := listener(ctx, claims); err != nil {
					return cfg.ErrorHandler(ctx, err)
				}
			}

			ctx.SetContext(cfg.ContextEnricher(ctx.Context(), claims))
			return ctx.Next()
		}
	}
}

// RequireOwner lets the request through when the subject owns the path user
func RequireOwner(gate *account.Gate) router.MiddlewareFunc {
	return guard(func(ctx router.Context) (bool, error) {
		return gate.IsOwner(ctx)
	})
}

// RequireAdmin lets the request through when the subject holds the admin role
func RequireAdmin(gate *account.Gate) router.MiddlewareFunc {
	return guard(func(ctx router.Context) (bool, error) {
		return gate.IsAdminRequest(ctx.Context(), ctx)
	})
}

// RequireOwnerOrAdmin lets owners through without a lookup, anyone else
// must be an admin.
func RequireOwnerOrAdmin(gate *account.Gate) router.MiddlewareFunc {
	return guard(func(ctx router.Context) (bool, error) {
		owner, err := gate.IsOwner(ctx)
		if err != nil || owner {
			return owner, err
		}
		return gate.IsAdminRequest(ctx.Context(), ctx)
	})
}

func guard(allowed func(router.Context) (bool, error)) router.MiddlewareFunc {
	return func(hf router.HandlerFunc) router.HandlerFunc {
		return func(ctx router.Context) error {
			ok, err := allowed(ctx)
			if err != nil {
				return ErrorResponse(ctx, err)
			}
			if !ok {
				return ErrorResponse(ctx, account.ErrForbidden)
			}
			return ctx.Next()
		}
	}
}

// ErrorResponse renders err as the account envelope with the status code
// of the rich error.
func ErrorResponse(ctx router.Context, err error) error {
	res := account.Fail("", err)
	status := res.Error.Code
	if status < 400 || status > 599 {
		status = router.StatusInternalServerError
	}
	if goerrors.IsCategory(err, goerrors.CategoryInternal) && status < 500 {
		status = router.StatusInternalServerError
	}
	return ctx.JSON(status, res)
}
