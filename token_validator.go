package account

import (
	"bytes"
	"encoding/json"
	"mime"
	"strings"
)

// ClaimsLocalsKey is the request local the decoded claims are stored under
const ClaimsLocalsKey = "claims"

const (
	DefaultTokenBodyField  = "token"
	DefaultTokenQueryField = "token"
	DefaultTokenHeader     = "x-access-token"
)

// TokenCarrier is the part of an inbound request the verifier reads.
// router.Context satisfies it.
type TokenCarrier interface {
	Body() []byte
	FormValue(key string, defaultValue ...string) string
	Query(key string, defaultValue ...string) string
	Header(key string) string
	Locals(key any, value ...any) any
}

// RequestVerifier resolves the bearer token of a request into claims
type RequestVerifier struct {
	tokens     TokenService
	bodyField  string
	queryField string
	header     string
	logger     Logger
}

// NewRequestVerifier creates a verifier. Empty field names use the defaults.
func NewRequestVerifier(tokens TokenService, cfg Config, logger Logger) *RequestVerifier {
	if logger == nil {
		logger = defLogger{}
	}
	v := &RequestVerifier{
		tokens:     tokens,
		bodyField:  DefaultTokenBodyField,
		queryField: DefaultTokenQueryField,
		header:     DefaultTokenHeader,
		logger:     logger,
	}
	if cfg != nil {
		v.bodyField = orDefault(cfg.GetTokenBodyField(), v.bodyField)
		v.queryField = orDefault(cfg.GetTokenQueryField(), v.queryField)
		v.header = orDefault(cfg.GetTokenHeader(), v.header)
	}
	return v
}

// Extract finds the candidate token. A body field wins over a query field,
// which wins over the header. A bearer Authorization header is the last
// resort.
func (v *RequestVerifier) Extract(c TokenCarrier) string {
	if token := v.fromBody(c); token != "" {
		return token
	}
	if token := strings.TrimSpace(c.Query(v.queryField)); token != "" {
		return token
	}
	if token := strings.TrimSpace(c.Header(v.header)); token != "" {
		return token
	}
	auth := strings.TrimSpace(c.Header("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}

// VerifyRequest verifies the request token and attaches the claims to the
// request locals.
func (v *RequestVerifier) VerifyRequest(c TokenCarrier) (*Claims, error) {
	token := v.Extract(c)
	if token == "" {
		return nil, ErrNoTokenProvided
	}

	claims, err := v.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	c.Locals(ClaimsLocalsKey, claims)
	return claims, nil
}

// fromBody reads the token field of JSON and form encoded bodies. Other
// content types are ignored.
func (v *RequestVerifier) fromBody(c TokenCarrier) string {
	body := bytes.TrimSpace(c.Body())
	if len(body) == 0 {
		return ""
	}

	mediaType, _, _ := mime.ParseMediaType(c.Header("Content-Type"))
	switch {
	case mediaType == "application/x-www-form-urlencoded":
		return strings.TrimSpace(c.FormValue(v.bodyField))
	case mediaType == "application/json", strings.HasSuffix(mediaType, "+json"), mediaType == "" && body[0] == '{':
		payload := map[string]any{}
		if err := json.Unmarshal(body, &payload); err != nil {
			v.logger.Debug("token lookup skipped body: %s", err)
			return ""
		}
		token, _ := payload[v.bodyField].(string)
		return strings.TrimSpace(token)
	}
	return ""
}

func orDefault(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return def
	}
	return value
}
