// Package middleware provides HTTP middleware for the API server.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/amiaygpt/chat-platform/internal/apperr"
	"github.com/amiaygpt/chat-platform/internal/auth"
	"github.com/amiaygpt/chat-platform/pkg/logger"
)

// ContextKey is a type for context keys.
type ContextKey string

const (
	// UserIDKey is the context key for user ID.
	UserIDKey ContextKey = "user_id"
)

// TokenVerifier validates bearer tokens.
type TokenVerifier interface {
	Verify(token string) (uint64, error)
}

// UserResolver reports whether a token's user may still act.
type UserResolver interface {
	IsActive(ctx context.Context, userID uint64) (bool, error)
}

// Auth creates bearer-token authentication middleware. The user must exist
// and be active on every request, not only at login.
func Auth(tokens TokenVerifier, users UserResolver, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r.Header.Get("Authorization"))
			if token == "" {
				apperr.Write(w, apperr.Unauthenticated(apperr.CodeTokenMissing, "access token required"), false)
				return
			}

			userID, err := tokens.Verify(token)
			switch {
			case errors.Is(err, auth.ErrTokenExpired):
				apperr.Write(w, &apperr.Error{Kind: apperr.KindTokenExpired, Code: apperr.CodeTokenExpired, Message: "token expired"}, false)
				return
			case err != nil:
				apperr.Write(w, &apperr.Error{Kind: apperr.KindTokenInvalid, Code: apperr.CodeTokenInvalid, Message: "invalid token"}, false)
				return
			}

			active, err := users.IsActive(r.Context(), userID)
			if err != nil {
				log.Error("failed to resolve user", zap.Uint64("user_id", userID), zap.Error(err))
				apperr.Write(w, apperr.Internal(err), false)
				return
			}
			if !active {
				apperr.Write(w, apperr.Unauthenticated(apperr.CodeUserInvalid, "invalid or disabled user"), false)
				return
			}

			noteUser(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
		})
	}
}

func bearerToken(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// WithUserID returns a context carrying the authenticated user.
func WithUserID(ctx context.Context, userID uint64) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID gets user ID from context. Zero means unauthenticated.
func GetUserID(ctx context.Context) uint64 {
	if v, ok := ctx.Value(UserIDKey).(uint64); ok {
		return v
	}
	return 0
}
