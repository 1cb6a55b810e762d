package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/session"
)

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the login endpoint.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	// Token is empty after registration; sign in to get one.
	Token     string `json:"token,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
}

// ActionRequest carries one card view action, named as ParseAction expects.
type ActionRequest struct {
	Action string    `json:"action" validate:"required"`
	DeckID uuid.UUID `json:"deck_id"`
}

// GradeRequest grades the current card.
type GradeRequest struct {
	Grade domain.ReviewGrade `json:"grade" validate:"required"`
}

// EditRequest replaces the edit buffer.
type EditRequest struct {
	Front string `json:"front"`
	Back  string `json:"back"`
}

// CreateDeckRequest creates a deck; a missing parent_id makes a root deck.
type CreateDeckRequest struct {
	Name        string    `json:"name" validate:"required,max=200"`
	Description string    `json:"description" validate:"max=2000"`
	ParentID    uuid.UUID `json:"parent_id"`
}

// SessionResponse wraps a session snapshot.
type SessionResponse struct {
	Accepted *bool            `json:"accepted,omitempty"`
	Session  session.Snapshot `json:"session"`
}

// DeckListResponse lists every deck with the expansion state.
type DeckListResponse struct {
	Decks         []domain.Deck `json:"decks"`
	Expanded      []uuid.UUID   `json:"expanded"`
	CurrentDeckID *uuid.UUID    `json:"current_deck_id,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}
