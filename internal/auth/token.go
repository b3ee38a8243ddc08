// Package auth guards the admin API with a bearer token.
package auth

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

type contextKey string

const actorKey contextKey = "auth.actor"

// AnonymousActor is recorded when no actor name accompanies the token.
const AnonymousActor = "admin"

// ContextWithActor stores the acting admin's name for audit attribution.
func ContextWithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

// ActorFromContext returns the acting admin's name.
func ActorFromContext(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey).(string); ok && actor != "" {
		return actor
	}
	return AnonymousActor
}

// TokenMiddleware verifies the Authorization bearer token against the
// configured bcrypt hash. The optional X-Admin-Actor header names the
// operator for the audit trail.
type TokenMiddleware struct {
	tokenHash []byte
}

// NewTokenMiddleware constructs the middleware from a bcrypt hash of the
// admin token.
func NewTokenMiddleware(tokenHash string) *TokenMiddleware {
	return &TokenMiddleware{tokenHash: []byte(tokenHash)}
}

// Require rejects requests that do not carry the admin token.
func (m *TokenMiddleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		if err := bcrypt.CompareHashAndPassword(m.tokenHash, []byte(token)); err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}
		ctx := r.Context()
		if actor := strings.TrimSpace(r.Header.Get("X-Admin-Actor")); actor != "" {
			ctx = ContextWithActor(ctx, actor)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}
