package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
)

// DeckRepository defines the interface for deck persistence.
//
// Watch streams deliver the current value first, keep only the latest value
// for a slow reader, and are closed once ctx is done.
type DeckRepository interface {
	// WatchDecks streams the full deck list, in creation order, after every change.
	WatchDecks(ctx context.Context) (<-chan []domain.Deck, error)

	// WatchDeck streams one deck after every change to it or its cards.
	// The stream closes when the deck is deleted.
	// Returns ErrDeckNotFound if the deck does not exist.
	WatchDeck(ctx context.Context, id uuid.UUID) (<-chan domain.Deck, error)

	// CreateDeck persists a new deck. A zero parentID creates a root deck.
	// Returns ErrDeckNotFound if the parent does not exist.
	CreateDeck(ctx context.Context, name, description string, parentID uuid.UUID) (*domain.Deck, error)

	// DeleteDeck removes a deck together with every descendant deck and all of
	// their cards and reviews.
	// Returns ErrDeckNotFound if the deck does not exist.
	DeleteDeck(ctx context.Context, id uuid.UUID) error

	// GetChildDecks returns the direct children of a deck in creation order.
	GetChildDecks(ctx context.Context, parentID uuid.UUID) ([]domain.Deck, error)
}
