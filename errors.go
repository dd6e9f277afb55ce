package account

import (
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	TextCodeParameterRequired   = "PARAMETER_REQUIRED"
	TextCodeValidationFailed    = "VALIDATION_FAILED"
	TextCodeUserNotFound        = "USER_NOT_FOUND"
	TextCodeAvatarNotFound      = "AVATAR_NOT_FOUND"
	TextCodeDuplicateEmail      = "DUPLICATE_EMAIL"
	TextCodeAccountConflict     = "ACCOUNT_CONFLICT"
	TextCodeInvalidCreds        = "INVALID_CREDENTIALS"
	TextCodeNoTokenProvided     = "NO_TOKEN_PROVIDED"
	TextCodeTokenInvalid        = "TOKEN_INVALID"
	TextCodeTokenExpired        = "TOKEN_EXPIRED"
	TextCodeTokenSubject        = "TOKEN_SUBJECT_REQUIRED"
	TextCodeClaimsNotDecoded    = "CLAIMS_NOT_DECODED"
	TextCodeForbidden           = "FORBIDDEN"
	TextCodeResetTokenInvalid   = "RESET_TOKEN_INVALID"
	TextCodeResetTokenExpired   = "RESET_TOKEN_EXPIRED"
	TextCodeNoExternalIdentity  = "NO_EXTERNAL_IDENTITY"
	TextCodeEmptyPassword       = "EMPTY_PASSWORD"
	TextCodeAvatarCascadeFailed = "AVATAR_CASCADE_FAILED"
	TextCodeAvatarOrphaned      = "AVATAR_ORPHANED"
	TextCodeMailDelivery        = "MAIL_DELIVERY_FAILED"
)

// ErrUserNotFound is returned when the target user record is absent
var ErrUserNotFound = goerrors.New("user not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeUserNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrAvatarNotFound is returned when the target avatar record is absent
var ErrAvatarNotFound = goerrors.New("avatar not found", goerrors.CategoryNotFound).
	WithTextCode(TextCodeAvatarNotFound).
	WithCode(goerrors.CodeNotFound)

// ErrDuplicateEmail is returned when the email is already registered
var ErrDuplicateEmail = goerrors.New("an account with that email already exists", goerrors.CategoryConflict).
	WithTextCode(TextCodeDuplicateEmail).
	WithCode(goerrors.CodeConflict)

// ErrAccountConflict a unique column other than the email, such as the
// external identity id, is already taken
var ErrAccountConflict = goerrors.New("the account conflicts with an existing record", goerrors.CategoryConflict).
	WithTextCode(TextCodeAccountConflict).
	WithCode(goerrors.CodeConflict)

// ErrInvalidCredentials wrong password or an account without one
var ErrInvalidCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoTokenProvided the request carried no bearer token at all
var ErrNoTokenProvided = goerrors.New("no token provided", goerrors.CategoryAuth).
	WithTextCode(TextCodeNoTokenProvided).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid the token signature or shape is wrong
var ErrTokenInvalid = goerrors.New("failed to authenticate token", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenExpired the token is past its expiration
var ErrTokenExpired = goerrors.New("token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenSubjectRequired a token was requested without a user
var ErrTokenSubjectRequired = goerrors.New("a user is required to issue a token", goerrors.CategoryInternal).
	WithTextCode(TextCodeTokenSubject).
	WithCode(goerrors.CodeInternal)

// ErrClaimsNotDecoded authorization was attempted before the token was verified
var ErrClaimsNotDecoded = goerrors.New("authorization requires decoded token claims", goerrors.CategoryInternal).
	WithTextCode(TextCodeClaimsNotDecoded).
	WithCode(goerrors.CodeInternal)

// ErrForbidden the caller is authenticated but may not act on the resource
var ErrForbidden = goerrors.New("you are not allowed to perform this action", goerrors.CategoryAuthz).
	WithTextCode(TextCodeForbidden).
	WithCode(goerrors.CodeForbidden)

// ErrResetTokenInvalid no account holds the reset token
var ErrResetTokenInvalid = goerrors.New("password reset token is invalid", goerrors.CategoryAuth).
	WithTextCode(TextCodeResetTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrResetTokenExpired the reset token is past its expiration
var ErrResetTokenExpired = goerrors.New("password reset token has expired", goerrors.CategoryAuth).
	WithTextCode(TextCodeResetTokenExpired).
	WithCode(goerrors.CodeUnauthorized)

// ErrNoExternalIdentity unlinking an account that has no linked identity
var ErrNoExternalIdentity = goerrors.New("account has no linked external identity", goerrors.CategoryBadInput).
	WithTextCode(TextCodeNoExternalIdentity).
	WithCode(goerrors.CodeBadRequest)

// ErrNoEmptyString empty passwords are never hashed
var ErrNoEmptyString = goerrors.New("password can not be empty", goerrors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(goerrors.CodeBadRequest)

// ErrParameterRequired builds the validation error for a missing parameter
func ErrParameterRequired(field string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("%s is required", field), goerrors.CategoryValidation).
		WithTextCode(TextCodeParameterRequired).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(map[string]any{"field": field})
}

// IsParameterRequired reports whether err is a missing parameter error,
// optionally for a specific field
func IsParameterRequired(err error, field ...string) bool {
	if !HasTextCode(err, TextCodeParameterRequired) {
		return false
	}
	if len(field) == 0 {
		return true
	}
	var richErr *goerrors.Error
	goerrors.As(err, &richErr)
	return richErr.Metadata["field"] == field[0]
}

// HasTextCode reports whether err is a rich error carrying code
func HasTextCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var richErr *goerrors.Error
	if !goerrors.As(err, &richErr) {
		return false
	}
	return richErr.TextCode == code
}

// IsNotFound reports user or avatar not found errors
func IsNotFound(err error) bool {
	return HasTextCode(err, TextCodeUserNotFound) || HasTextCode(err, TextCodeAvatarNotFound)
}

// IsDuplicateKeyError will check for unique constraint violations raised by
// the supported stores
func IsDuplicateKeyError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "SQLSTATE 23505") ||
		strings.Contains(msg, "E11000")
}

// isDuplicateEmail reports whether a unique violation was raised by the
// email column
func isDuplicateEmail(err error) bool {
	var pgErr *pgconn.PgError
	if goerrors.As(err, &pgErr) {
		return strings.Contains(pgErr.ConstraintName, "email")
	}
	msg := err.Error()
	return strings.Contains(msg, "users.email") || strings.Contains(msg, "users_email_key")
}

func wrapInternal(err error, msg string) *goerrors.Error {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return richErr
	}
	return goerrors.Wrap(err, goerrors.CategoryInternal, msg).
		WithCode(goerrors.CodeInternal)
}
