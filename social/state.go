package social

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// DefaultStateTTL bounds the time between redirect and callback
const DefaultStateTTL = 10 * time.Minute

// OAuthState travels through the provider as the state parameter.
type OAuthState struct {
	jwt.RegisteredClaims
	Provider    string `json:"p"`
	RedirectURL string `json:"r,omitempty"`
}

// Nonce identifies the state, it is also kept in the server session so a
// state minted for another browser is rejected.
func (s *OAuthState) Nonce() string {
	return s.ID
}

// StateSigner signs and verifies OAuth state tokens
type StateSigner struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewStateSigner creates a signer. A zero ttl uses DefaultStateTTL.
func NewStateSigner(key []byte, ttl time.Duration) *StateSigner {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &StateSigner{key: key, ttl: ttl, now: time.Now}
}

// WithClock replaces the wall clock
func (s *StateSigner) WithClock(now func() time.Time) *StateSigner {
	if now != nil {
		s.now = now
	}
	return s
}

// Encode fills nonce and timestamps and signs the state.
func (s *StateSigner) Encode(state *OAuthState) (string, error) {
	if state == nil || state.Provider == "" {
		return "", ErrInvalidState
	}
	now := s.now()
	if state.ID == "" {
		state.ID = uuid.NewString()
	}
	state.IssuedAt = jwt.NewNumericDate(now)
	state.ExpiresAt = jwt.NewNumericDate(now.Add(s.ttl))

	return jwt.NewWithClaims(jwt.SigningMethodHS256, state).SignedString(s.key)
}

// Decode verifies signature and expiry.
func (s *StateSigner) Decode(token string) (*OAuthState, error) {
	state := &OAuthState{}
	_, err := jwt.ParseWithClaims(token, state, func(t *jwt.Token) (interface{}, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrStateExpired
		}
		return nil, ErrInvalidState
	}
	return state, nil
}
