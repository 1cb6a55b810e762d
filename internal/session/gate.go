package session

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/service/auth"
)

// StatusSource streams sign-in status changes.
type StatusSource interface {
	Watch(ctx context.Context) <-chan auth.Status
}

// Gate runs a Session exactly while a user is signed in.
type Gate struct {
	source  StatusSource
	session *Session
	logger  *slog.Logger
}

// NewGate creates a Gate.
func NewGate(source StatusSource, session *Session, logger *slog.Logger) *Gate {
	if source == nil {
		panic("source cannot be nil")
	}
	if session == nil {
		panic("session cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		source:  source,
		session: session,
		logger:  logger.With(slog.String("component", "session_gate")),
	}
}

// Run follows the sign-in status until ctx is cancelled. Signing in starts
// the session, signing out stops it, and switching users restarts it.
// The session is stopped when Run returns.
func (g *Gate) Run(ctx context.Context) error {
	defer g.session.Stop()

	current := uuid.Nil
	for status := range g.source.Watch(ctx) {
		if status.UserID == current {
			continue
		}

		if current != uuid.Nil {
			g.session.Stop()
		}
		current = status.UserID
		if current == uuid.Nil {
			continue
		}

		if err := g.session.Start(ctx); err != nil {
			// Retried on the next status change.
			g.logger.Error("failed to start session",
				slog.String("user_id", current.String()),
				slog.String("error", err.Error()))
			current = uuid.Nil
		}
	}
	return ctx.Err()
}
