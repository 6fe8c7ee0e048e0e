package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
)

// Claims is the signed-token payload: subject, scope, issued-at, expiry.
type Claims struct {
	Scope string `json:"scope,omitempty"`
	jwt.RegisteredClaims
}

// Introspection is the RFC 7662 view of a token. Inactive responses carry
// only the active flag.
type Introspection struct {
	Active  bool   `json:"active"`
	Exp     int64  `json:"exp,omitempty"`
	Iat     int64  `json:"iat,omitempty"`
	Scope   string `json:"scope,omitempty"`
	Subject string `json:"sub,omitempty"`
}

// Signer issues and verifies HS256-signed bearer tokens.
type Signer struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// NewSigner builds a Signer for the given HMAC secret and issuer URL.
func NewSigner(secret []byte, issuer string) *Signer {
	return &Signer{secret: secret, issuer: issuer, now: time.Now}
}

// Issue produces a signed token for subject with the given scope and ttl.
// Pure except for reading the clock.
func (s *Signer) Issue(subject, scope string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := Claims{
		Scope: scope,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}
	return signed, nil
}

// Verify decodes and validates a signed token. It returns ErrTokenExpired
// when the token is well-formed but past expiry, and ErrTokenInvalid for
// signature or format failures.
func (s *Signer) Verify(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, s.keyFunc,
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// Introspect reports a token's state without mutating anything. Expired
// and malformed tokens come back active=false; Introspect never fails.
func (s *Signer) Introspect(token string) Introspection {
	claims, err := s.Verify(token)
	if err != nil {
		return Introspection{Active: false}
	}

	out := Introspection{
		Active:  true,
		Scope:   claims.Scope,
		Subject: claims.Subject,
	}
	if claims.ExpiresAt != nil {
		out.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		out.Iat = claims.IssuedAt.Unix()
	}
	return out
}

func (s *Signer) keyFunc(t *jwt.Token) (interface{}, error) {
	if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, errors.Errorf("unexpected signing method %q", t.Method.Alg())
	}
	return s.secret, nil
}
