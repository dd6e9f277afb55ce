package account

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultTokenExpiration is the token lifetime in hours
const DefaultTokenExpiration = 24

// JWTTokenService signs HS256 tokens with a shared secret
type JWTTokenService struct {
	signingKey      []byte
	tokenExpiration int
	issuer          string
	logger          Logger
	now             Clock
}

var _ TokenService = (*JWTTokenService)(nil)

// TokenOption configures a JWTTokenService
type TokenOption func(*JWTTokenService)

// WithTokenClock replaces the clock used to stamp and validate tokens
func WithTokenClock(clock Clock) TokenOption {
	return func(ts *JWTTokenService) {
		if clock != nil {
			ts.now = clock
		}
	}
}

// WithTokenLogger sets the logger
func WithTokenLogger(logger Logger) TokenOption {
	return func(ts *JWTTokenService) {
		if logger != nil {
			ts.logger = logger
		}
	}
}

// NewTokenService creates a new TokenService instance. tokenExpiration is
// expressed in hours, zero or negative values use DefaultTokenExpiration.
func NewTokenService(signingKey []byte, tokenExpiration int, issuer string, opts ...TokenOption) *JWTTokenService {
	if tokenExpiration <= 0 {
		tokenExpiration = DefaultTokenExpiration
	}
	ts := &JWTTokenService{
		signingKey:      signingKey,
		tokenExpiration: tokenExpiration,
		issuer:          issuer,
		logger:          defLogger{},
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// NewTokenServiceFromConfig builds the token service from Config
func NewTokenServiceFromConfig(cfg Config, opts ...TokenOption) *JWTTokenService {
	return NewTokenService([]byte(cfg.GetSigningKey()), cfg.GetTokenExpiration(), cfg.GetIssuer(), opts...)
}

// TTL returns the token lifetime
func (ts *JWTTokenService) TTL() time.Duration {
	return time.Duration(ts.tokenExpiration) * time.Hour
}

// Issue signs a token whose subject is the user id
func (ts *JWTTokenService) Issue(user *User) (string, error) {
	if user == nil {
		return "", ErrTokenSubjectRequired
	}

	now := ts.now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    ts.issuer,
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ts.TTL())),
		},
		Email: user.Email,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signedString, err := token.SignedString(ts.signingKey)
	if err != nil {
		return "", goerrors.Wrap(err, goerrors.CategoryInternal, "failed to sign JWT").
			WithCode(goerrors.CodeInternal)
	}

	return signedString, nil
}

// Verify parses and validates a token string
func (ts *JWTTokenService) Verify(tokenString string) (*Claims, error) {
	if tokenString == "" {
		return nil, ErrNoTokenProvided
	}

	parserOptions := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(ts.now),
	}
	if ts.issuer != "" {
		parserOptions = append(parserOptions, jwt.WithIssuer(ts.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			ts.logger.Error("token service verify encountered unexpected signing method: %v", t.Header["alg"])
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return ts.signingKey, nil
	}, parserOptions...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		ts.logger.Debug("token service verify failed: %s", err)
		return nil, ErrTokenInvalid
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, ErrTokenInvalid
	}

	return claims, nil
}
