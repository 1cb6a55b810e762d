package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/api/shared"
	"github.com/phrazzld/welk/internal/platform/logger"
	"github.com/phrazzld/welk/internal/redact"
	"github.com/phrazzld/welk/internal/service/auth"
)

// Authorizer decides whether the user a token was issued for may still act.
type Authorizer interface {
	Authorize(userID uuid.UUID) error
}

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	tokens     auth.TokenService
	authorizer Authorizer
}

// NewAuthMiddleware creates a new AuthMiddleware. A token is accepted when
// it validates and the authorizer accepts its user.
func NewAuthMiddleware(tokens auth.TokenService, authorizer Authorizer) *AuthMiddleware {
	if tokens == nil {
		panic("tokens cannot be nil")
	}
	if authorizer == nil {
		panic("authorizer cannot be nil")
	}
	return &AuthMiddleware{
		tokens:     tokens,
		authorizer: authorizer,
	}
}

// Authenticate validates the bearer token and adds the user ID to the
// request context.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		scheme, token, found := strings.Cut(authHeader, " ")
		if !found || scheme != "Bearer" || token == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		claims, err := m.tokens.ValidateToken(r.Context(), token)
		if err != nil {
			switch {
			case errors.Is(err, auth.ErrExpiredToken):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Token expired")
			case errors.Is(err, auth.ErrInvalidToken),
				errors.Is(err, auth.ErrTokenNotYetValid),
				errors.Is(err, auth.ErrWrongTokenType):
				shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			default:
				logger.FromContextOrDefault(r.Context(), slog.Default()).
					Error("failed to validate token", redact.Attr(err))
				shared.RespondWithError(w, r, http.StatusInternalServerError, "Authentication error")
			}
			return
		}

		if err := m.authorizer.Authorize(claims.UserID); err != nil {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Not signed in")
			return
		}

		next.ServeHTTP(w, r.WithContext(shared.SetUserID(r.Context(), claims.UserID)))
	})
}
