package account

import (
	"context"
	"fmt"
	"time"
)

type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// Config holds account options
type Config interface {
	GetSigningKey() string
	GetTokenExpiration() int
	GetIssuer() string
	GetEnvironment() string
	GetBcryptCost() int
	GetDefaultAvatarURL() string
	GetAvatarBaseURL() string
	GetPasswordResetURL() string
	GetTokenBodyField() string
	GetTokenQueryField() string
	GetTokenHeader() string
}

// PasswordHasher hashes and verifies passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(password, hash string) error
}

// TokenService issues and verifies bearer tokens
type TokenService interface {
	Issue(user *User) (string, error)
	Verify(token string) (*Claims, error)
}

// Principal is the capability set the rest of the system relies on
// when it holds a user record.
type Principal interface {
	VerifyPassword(hasher PasswordHasher, password string) error
	IsAdmin() bool
	ToClientView() ClientView
}

// AvatarBlobStore keeps avatar payloads outside of the database.
type AvatarBlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// Mailer sends transactional email
type Mailer interface {
	SendMail(ctx context.Context, msg MailMessage) error
}

// MailMessage is the minimal envelope the core needs from a mail transport
type MailMessage struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// Clock returns the current time, tests replace it
type Clock func() time.Time

type defLogger struct{}

func (d defLogger) Error(format string, args ...any) {
	fmt.Printf("[ERR] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Warn(format string, args ...any) {
	fmt.Printf("[WRN] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Info(format string, args ...any) {
	fmt.Printf("[INF] ACCOUNT "+newline(format), args...)
}

func (d defLogger) Debug(format string, args ...any) {
	fmt.Printf("[DBG] ACCOUNT "+newline(format), args...)
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func defaultClock() time.Time {
	return time.Now()
}
