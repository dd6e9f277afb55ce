package account

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// DefaultPasswordCost is the bcrypt cost used outside of test environments
const DefaultPasswordCost = 12

// PasswordCostForEnvironment returns the minimal cost for the test
// environment and DefaultPasswordCost for everything else.
func PasswordCostForEnvironment(env string) int {
	if strings.EqualFold(strings.TrimSpace(env), "test") {
		return bcrypt.MinCost
	}
	return DefaultPasswordCost
}

// BcryptHasher hashes passwords with a per record salt
type BcryptHasher struct {
	cost int
}

var _ PasswordHasher = (*BcryptHasher)(nil)

// NewBcryptHasher creates a hasher. Costs outside of bcrypt's bounds fall
// back to DefaultPasswordCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = DefaultPasswordCost
	}
	return &BcryptHasher{cost: cost}
}

// Cost returns the configured cost factor
func (h *BcryptHasher) Cost() int {
	return h.cost
}

// Hash will generate a salted password hash
func (h *BcryptHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrNoEmptyString
	}

	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare will validate the given cleartext password matches the hash
func (h *BcryptHasher) Compare(password, hash string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidCredentials
		}
		return err
	}
	return nil
}

// hashPendingPassword runs before a user is written. It only hashes when the
// password is dirty. On failure the record is left untouched.
func hashPendingPassword(hasher PasswordHasher, user *User, now time.Time) error {
	if user == nil || !user.PasswordDirty() {
		return nil
	}

	hash, err := hasher.Hash(user.pendingPassword)
	if err != nil {
		return err
	}

	user.PasswordHash = hash
	user.PasswordLastUpdatedAt = &now
	user.pendingPassword = ""
	return nil
}
