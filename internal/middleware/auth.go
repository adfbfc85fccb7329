// Package middleware provides HTTP middleware shared by all routes.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/bookcircle/bookcircle/internal/auth"
	"github.com/bookcircle/bookcircle/internal/httputil"
	"github.com/bookcircle/bookcircle/pkg/logger"
)

type contextKey string

const userIDKey contextKey = "user_id"

// AuthMiddleware rejects requests that do not carry a valid bearer
// access token and stores the authenticated user ID on the context.
type AuthMiddleware struct {
	tokens *auth.TokenManager
	log    *logger.Logger
}

// NewAuthMiddleware creates an auth middleware backed by the token manager.
func NewAuthMiddleware(tokens *auth.TokenManager, log *logger.Logger) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	return &AuthMiddleware{tokens: tokens, log: log}
}

// Handler wraps next with bearer token verification.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			httputil.Unauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			httputil.Unauthorized(w, "invalid authorization header")
			return
		}

		userID, err := m.tokens.VerifyAccessToken(parts[1])
		if err != nil {
			m.log.WithField("path", r.URL.Path).Debug("Rejected access token")
			httputil.Unauthorized(w, "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserID returns the authenticated user ID stored by the auth
// middleware, or "" when the request was not authenticated.
func GetUserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// WithUserID returns a context carrying the given user ID. Tests use it
// to exercise authenticated handlers without minting tokens.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}
