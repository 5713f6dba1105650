// Package auth resolves request credentials to a user identity.
package auth

import (
	"context"
	"net/http"
	"strings"
)

// User is the authenticated caller.
type User struct {
	ID    string
	Email string
}

// Identity resolves an access token to a user. Implementations must treat an
// unknown or expired token as an error, never as an anonymous user.
type Identity interface {
	Resolve(ctx context.Context, token string) (*User, error)
}

// TokenFromRequest pulls the access token out of a request. Accepted in order:
// Authorization: Bearer, X-Auth-Token, ?token= (the query form exists for
// WebSocket clients that cannot set headers).
func TokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	ah := r.Header.Get("Authorization")
	if strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		if tok := strings.TrimSpace(ah[len("Bearer "):]); tok != "" {
			return tok
		}
	}
	if x := r.Header.Get("X-Auth-Token"); x != "" {
		return x
	}
	return r.URL.Query().Get("token")
}

// Static accepts any non-empty token and maps it to a fixed user. It stands in
// for real auth in development and tests.
type Static struct {
	UserID string
}

func (s *Static) Resolve(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrUnauthorized
	}
	return &User{ID: s.UserID}, nil
}
