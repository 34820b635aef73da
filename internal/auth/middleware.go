package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// AuthorizationHeader carries the bearer session token.
	AuthorizationHeader = "Authorization"

	// identityContextKey is the context key for storing the caller identity
	identityContextKey contextKey = "identity"
)

// ErrUnauthenticated is returned when no valid identity is present.
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity holds user information extracted from a verified session token.
type Identity struct {
	UserID    uuid.UUID
	Email     string
	SessionID uuid.UUID
}

// Verifier validates a raw bearer token and resolves the caller identity.
// Verification covers both the token signature and the server-side session
// row, so revoked (logged-out) tokens fail here.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Identity, error)
}

// Middleware returns HTTP middleware that authenticates requests via a
// bearer token and stores the identity in the request context. Requests
// without a valid token are rejected with 401.
func Middleware(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearerToken(r)
			if token == "" {
				http.Error(w, "missing bearer token", http.StatusUnauthorized)
				return
			}

			identity, err := verifier.Verify(r.Context(), token)
			if err != nil {
				http.Error(w, "invalid or expired session", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityContextKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken pulls the token out of the Authorization header.
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get(AuthorizationHeader)
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// IdentityFromContext extracts the caller identity from context
func IdentityFromContext(ctx context.Context) (*Identity, bool) {
	identity, ok := ctx.Value(identityContextKey).(*Identity)
	return identity, ok
}

// RequireIdentity is a helper that returns an error if no identity is in context
func RequireIdentity(ctx context.Context) (*Identity, error) {
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		return nil, ErrUnauthenticated
	}
	return identity, nil
}
