package account

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"
)

const (
	// ResetTokenBytes is the entropy of a reset token before hex encoding
	ResetTokenBytes = 20
	// ResetTokenTTL is how long a reset token stays valid
	ResetTokenTTL = time.Hour
)

// NewResetToken returns a hex encoded random token
func NewResetToken() (string, error) {
	buf := make([]byte, ResetTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", wrapInternal(err, "failed to generate reset token")
	}
	return hex.EncodeToString(buf), nil
}

// GenerateResetToken sets a fresh reset token on the account of email.
// An unknown email is not an error, the result is nil.
func (m *Manager) GenerateResetToken(ctx context.Context, email string) (*User, error) {
	if err := requireParams("email", email); err != nil {
		return nil, err
	}

	user, err := m.repo.Users().GetByEmail(ctx, email)
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	token, err := NewResetToken()
	if err != nil {
		return nil, err
	}

	expires := m.now().Add(ResetTokenTTL)
	user.PasswordResetToken = token
	user.PasswordResetTokenExpiresAt = &expires

	return m.repo.Users().Save(ctx, user)
}

// RequestPasswordReset generates a reset token and mails the reset link.
// Unknown emails resolve without sending anything.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) error {
	user, err := m.GenerateResetToken(ctx, email)
	if err != nil {
		return err
	}
	if user == nil {
		m.logger.Debug("password reset requested for unknown account")
		return nil
	}

	m.recordActivity(ctx, userActivity(ActivityEventPasswordResetRequest, user, m.now(), nil))

	if m.mailer == nil {
		m.logger.Warn("no mailer configured, reset mail for user %s not sent", user.ID)
		return nil
	}

	link := ResetLink(m.config.GetPasswordResetURL(), user.PasswordResetToken)
	msg, err := BuildResetMail(NewMailRenderer(), user, link, ResetTokenTTL)
	if err != nil {
		return wrapInternal(err, "failed to render reset mail")
	}

	if err := m.mailer.SendMail(ctx, msg); err != nil {
		return operationError(err, TextCodeMailDelivery, "failed to send password reset mail", map[string]any{
			"user_id": user.ID.String(),
		})
	}
	return nil
}

// VerifyResetToken returns the account holding token when it is still valid
func (m *Manager) VerifyResetToken(ctx context.Context, token string) (*User, error) {
	if err := requireParams("token", token); err != nil {
		return nil, err
	}

	user, err := m.repo.Users().GetByResetToken(ctx, token)
	if err != nil {
		if IsNotFound(err) {
			return nil, ErrResetTokenInvalid
		}
		return nil, err
	}

	if user.PasswordResetTokenExpiresAt == nil || !m.now().Before(*user.PasswordResetTokenExpiresAt) {
		return nil, ErrResetTokenExpired
	}
	return user, nil
}

// ResetPassword consumes a reset token and sets the new password. Tokens
// are single use, they are cleared in the same write as the password.
func (m *Manager) ResetPassword(ctx context.Context, token, password string) (*User, error) {
	if err := requireParams("token", token, "password", password); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, validationFailed(err, "invalid password")
	}

	user, err := m.VerifyResetToken(ctx, token)
	if err != nil {
		return nil, err
	}

	user.SetPassword(password)
	user.PasswordResetToken = ""
	user.PasswordResetTokenExpiresAt = nil

	updated, err := m.repo.Users().Save(ctx, user)
	if err != nil {
		return nil, err
	}

	m.recordActivity(ctx, userActivity(ActivityEventPasswordReset, updated, m.now(), nil))
	return updated, nil
}
