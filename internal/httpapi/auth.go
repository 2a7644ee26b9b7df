package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken     = errors.New("missing bearer token")
	errPermissionDenied = errors.New("permission denied")
	errTriggerDisabled  = errors.New("manual import is disabled")
)

// Claims is the HS256 token presented to the manual trigger. Scope is a
// space separated capability list.
type Claims struct {
	Scope string `json:"scope"`
	jwt.RegisteredClaims
}

// HasScope reports whether scope is one of the granted capabilities.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(strings.Fields(c.Scope), scope)
}

type claimsKey struct{}

// ClaimsFrom returns the claims stored by RequireScope.
func ClaimsFrom(ctx context.Context) (*Claims, bool) {
	c, ok := ctx.Value(claimsKey{}).(*Claims)
	return c, ok
}

func parseToken(secret []byte, raw string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func bearer(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

// RequireScope rejects requests without a valid token granting scope.
// With an empty secret every request is rejected.
func RequireScope(secret, scope string) func(http.Handler) http.Handler {
	key := []byte(secret)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(key) == 0 {
				writeError(w, http.StatusForbidden, errTriggerDisabled)
				return
			}
			raw := bearer(r)
			if raw == "" {
				writeError(w, http.StatusUnauthorized, errMissingToken)
				return
			}
			claims, err := parseToken(key, raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, err)
				return
			}
			if !claims.HasScope(scope) {
				writeError(w, http.StatusForbidden, errPermissionDenied)
				return
			}
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), claimsKey{}, claims)))
		})
	}
}
