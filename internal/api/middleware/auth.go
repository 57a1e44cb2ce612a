package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/phrazzld/task-api/internal/api/shared"
	"github.com/phrazzld/task-api/internal/service/auth"
)

// unauthenticatedMessage is the single body returned for every
// authentication failure. Missing header, malformed token, revoked token and
// vanished user are deliberately indistinguishable to the caller.
const unauthenticatedMessage = "Please authenticate"

// AuthMiddleware provides session-token authentication for routes.
type AuthMiddleware struct {
	sessions auth.SessionService
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(sessions auth.SessionService) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Authenticate validates bearer tokens from the Authorization header and
// adds the resolved user and the raw token to the request context. The raw
// token is kept because logout must be able to remove exactly the session
// that made the call.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, unauthenticatedMessage)
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, unauthenticatedMessage)
			return
		}
		token := parts[1]

		user, err := m.sessions.Verify(r.Context(), token)
		if err != nil {
			// Every cause collapses to the same 401.
			shared.RespondWithErrorAndLog(
				w, r,
				http.StatusUnauthorized,
				unauthenticatedMessage,
				err,
			)
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserContextKey, user)
		ctx = context.WithValue(ctx, shared.TokenContextKey, token)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
