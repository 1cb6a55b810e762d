package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/api/shared"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/platform/logger"
	"github.com/phrazzld/welk/internal/service/auth"
)

// Accounts is the part of the auth service the handlers use.
type Accounts interface {
	Register(ctx context.Context, username, password string) (*domain.User, error)
	SignIn(ctx context.Context, username, password string) (uuid.UUID, error)
	SignOut(ctx context.Context)
}

var _ Accounts = (*auth.Service)(nil)

// AuthHandler handles authentication-related API requests.
type AuthHandler struct {
	accounts      Accounts
	tokens        auth.TokenService
	tokenLifetime time.Duration
	logger        *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(
	accounts Accounts,
	tokens auth.TokenService,
	tokenLifetime time.Duration,
	logger *slog.Logger,
) *AuthHandler {
	if accounts == nil {
		panic("accounts cannot be nil")
	}
	if tokens == nil {
		panic("tokens cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthHandler{
		accounts:      accounts,
		tokens:        tokens,
		tokenLifetime: tokenLifetime,
		logger:        logger.With(slog.String("component", "auth_handler")),
	}
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	user, err := h.accounts.Register(r.Context(), req.Username, req.Password)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create user")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusCreated, AuthResponse{
		UserID:   user.ID,
		Username: user.Username,
	})
}

// Login handles POST /api/auth/login. A successful login makes the user the
// signed-in one, which starts their study session.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req LoginRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	userID, err := h.accounts.SignIn(r.Context(), req.Username, req.Password)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err,
			shared.WithElevatedLogLevel())
		return
	}

	token, err := h.tokens.GenerateToken(r.Context(), userID)
	if err != nil {
		log.Error("failed to generate token",
			slog.String("user_id", userID.String()),
			slog.String("error", err.Error()))
		shared.RespondWithError(w, r, http.StatusInternalServerError, "Failed to generate authentication token")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, AuthResponse{
		UserID:    userID,
		Username:  req.Username,
		Token:     token,
		ExpiresAt: time.Now().Add(h.tokenLifetime).UTC().Format(time.RFC3339),
	})
}

// Logout handles POST /api/auth/logout. It ends the study session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.accounts.SignOut(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
