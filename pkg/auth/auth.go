// Package auth verifies bearer credentials. Two credential kinds are
// supported: static API keys compared by equality against a configured
// allowlist, and signed time-bounded tokens issued by the gateway's own
// client-credentials endpoint. Tokens are bearer-only; possession is
// authorization.
package auth

import (
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrUnauthorized is returned when no configured credential matches.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrTokenExpired is returned for a well-formed signed token past
	// its expiry.
	ErrTokenExpired = errors.New("token expired")

	// ErrTokenInvalid is returned for a malformed token or a bad
	// signature.
	ErrTokenInvalid = errors.New("token invalid")
)

// Method records which credential kind satisfied verification.
type Method string

const (
	// MethodAPIKey means a static allowlist key matched.
	MethodAPIKey Method = "api_key"

	// MethodToken means a signed token verified.
	MethodToken Method = "token"
)

// Identity is a verified caller.
type Identity struct {
	// Subject is the token subject, or the key itself for static keys.
	Subject string
	Scope   string
	Method  Method
}

// Verifier validates bearer credentials against the static allowlist
// and, when a signer is configured, signed tokens.
type Verifier struct {
	keys   map[string]struct{}
	signer *Signer
}

// NewVerifier builds a Verifier from the configured API keys. signer may
// be nil, in which case only static keys are accepted.
func NewVerifier(apiKeys []string, signer *Signer) *Verifier {
	keys := make(map[string]struct{}, len(apiKeys))
	for _, k := range apiKeys {
		if k != "" {
			keys[k] = struct{}{}
		}
	}
	return &Verifier{keys: keys, signer: signer}
}

// VerifyStatic checks the bearer value against the static allowlist only.
func (v *Verifier) VerifyStatic(bearer string) (Identity, error) {
	if _, ok := v.keys[bearer]; ok && bearer != "" {
		return Identity{Subject: bearer, Method: MethodAPIKey}, nil
	}
	return Identity{}, ErrUnauthorized
}

// Verify checks the bearer value in hybrid mode: static equality first,
// then signed-token verification. The first success wins; both failing
// yields ErrUnauthorized. Note that any bearer value missing the
// allowlist is fed to the token verifier, so expired tokens surface as
// ErrTokenExpired rather than a generic rejection.
func (v *Verifier) Verify(bearer string) (Identity, error) {
	if id, err := v.VerifyStatic(bearer); err == nil {
		return id, nil
	}

	if v.signer == nil {
		return Identity{}, ErrUnauthorized
	}

	claims, err := v.signer.Verify(bearer)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			return Identity{}, err
		}
		return Identity{}, ErrUnauthorized
	}
	return Identity{Subject: claims.Subject, Scope: claims.Scope, Method: MethodToken}, nil
}

// BearerToken extracts the bearer value from a request's Authorization
// header. Returns "" when the header is absent or not a bearer scheme.
func BearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return ""
}
