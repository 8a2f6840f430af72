package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrInvalidClaims = errors.New("invalid token claims")
)

// Verifier checks HS256 access tokens issued by the forum's auth service.
type Verifier struct {
	secret   []byte
	issuer   string
	audience string
}

// NewVerifier returns nil when secret is empty, which disables handshake auth.
func NewVerifier(secret, issuer, audience string) *Verifier {
	if secret == "" {
		return nil
	}
	return &Verifier{secret: []byte(secret), issuer: issuer, audience: audience}
}

// Verify returns the token subject, used as the connection's chat identity.
func (v *Verifier) Verify(tokenString string) (string, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || strings.TrimSpace(sub) == "" {
		return "", ErrInvalidClaims
	}
	return sub, nil
}
