package social

import "github.com/goliatone/go-errors"

const (
	TextCodeProviderNotFound  = "SOCIAL_PROVIDER_NOT_FOUND"
	TextCodeInvalidState      = "SOCIAL_INVALID_STATE"
	TextCodeStateExpired      = "SOCIAL_STATE_EXPIRED"
	TextCodeTokenExchangeFail = "SOCIAL_TOKEN_EXCHANGE_FAILED"
	TextCodeUserInfoFail      = "SOCIAL_USER_INFO_FAILED"
	TextCodeProfileIncomplete = "SOCIAL_PROFILE_INCOMPLETE"
	TextCodeLinkedElsewhere   = "SOCIAL_IDENTITY_LINKED_ELSEWHERE"
)

// ErrProviderNotFound is returned when a requested provider is not configured.
var ErrProviderNotFound = errors.New("identity provider not found", errors.CategoryNotFound).
	WithTextCode(TextCodeProviderNotFound).
	WithCode(errors.CodeNotFound)

// ErrInvalidState is returned when the OAuth state is invalid or tampered.
var ErrInvalidState = errors.New("invalid oauth state", errors.CategoryBadInput).
	WithTextCode(TextCodeInvalidState).
	WithCode(errors.CodeBadRequest)

// ErrStateExpired is returned when the OAuth state has expired.
var ErrStateExpired = errors.New("oauth state expired", errors.CategoryBadInput).
	WithTextCode(TextCodeStateExpired).
	WithCode(errors.CodeBadRequest)

// ErrTokenExchangeFailed is returned when a provider token exchange fails.
var ErrTokenExchangeFailed = errors.New("token exchange failed", errors.CategoryExternal).
	WithTextCode(TextCodeTokenExchangeFail).
	WithCode(errors.CodeUnauthorized)

// ErrUserInfoFailed is returned when fetching the provider profile fails.
var ErrUserInfoFailed = errors.New("failed to fetch user info", errors.CategoryExternal).
	WithTextCode(TextCodeUserInfoFail).
	WithCode(errors.CodeUnauthorized)

// ErrProfileIncomplete the profile lacks the id or, for new accounts, an email
var ErrProfileIncomplete = errors.New("identity provider profile is incomplete", errors.CategoryBadInput).
	WithTextCode(TextCodeProfileIncomplete).
	WithCode(errors.CodeBadRequest)

// ErrIdentityLinkedElsewhere the provider identity already belongs to another account
var ErrIdentityLinkedElsewhere = errors.New("identity is already linked to another account", errors.CategoryConflict).
	WithTextCode(TextCodeLinkedElsewhere).
	WithCode(errors.CodeConflict)
