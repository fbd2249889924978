package client

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenExpired reports whether the bearer token's exp claim has passed.
// The signature is not verified here; only the server can do that. A token
// that cannot be parsed at all counts as expired, forcing a re-login rather
// than a doomed request loop.
func TokenExpired(tokenString string) bool {
	parser := jwt.NewParser()
	claims := jwt.RegisteredClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, &claims); err != nil {
		return true
	}
	if claims.ExpiresAt == nil {
		return false
	}
	return claims.ExpiresAt.Before(time.Now())
}
