// Package auth resolves the authenticated user identity for an inbound
// request from a JWT bearer token, the concrete Authenticator the engine
// needs (see upload.Authenticator).
package auth

import (
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Checker validates RS256 bearer tokens against a single RSA public key
// and reads the authenticated user id from the token's subject claim.
type Checker struct {
	PubKey *rsa.PublicKey
}

// NewChecker parses a PEM-encoded RSA public key.
func NewChecker(pub string) (*Checker, error) {
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM([]byte(pub))
	if err != nil {
		return nil, err
	}

	return &Checker{PubKey: pubKey}, nil
}

// Authenticate implements upload.Authenticator: it extracts the bearer
// token from the Authorization header, verifies its signature, and
// returns the subject claim as the user id.
func (c *Checker) Authenticate(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	raw, ok := strings.CutPrefix(authHeader, "Bearer ")
	if !ok {
		return "", false
	}

	claims := jwt.MapClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		return c.PubKey, nil
	})
	if err != nil || !token.Valid {
		return "", false
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", false
	}

	return sub, true
}
