// Package authtoken inspects bearer credentials without verifying them.
// Tokens issued by the backend are usually opaque; when one happens to be a
// JWT its exp claim is honored so an expired token counts as absent.
package authtoken

import (
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiresAt returns the exp claim of a JWT. ok is false for opaque tokens and
// for JWTs without an expiry.
func ExpiresAt(token string) (time.Time, bool) {
	if strings.Count(token, ".") != 2 {
		return time.Time{}, false
	}
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

// Expired reports whether token carries an expiry that has passed.
func Expired(token string, now time.Time) bool {
	exp, ok := ExpiresAt(token)
	return ok && !now.Before(exp)
}

// Header formats the Authorization header value the backend expects.
func Header(token string) string {
	return "Token " + token
}
