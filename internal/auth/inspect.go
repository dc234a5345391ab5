package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Inspect reads the expiry of a token without verifying its signature.
// Clients hold no signing secret, so this is only a hint: ok is false for
// opaque tokens and for JWTs that carry no exp claim.
func Inspect(token string) (expiresAt time.Time, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Expired reports whether token is a JWT whose exp lies before now.
func Expired(token string, now time.Time) bool {
	exp, ok := Inspect(token)
	return ok && !now.Before(exp)
}
