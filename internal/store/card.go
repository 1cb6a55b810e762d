package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
)

// CardRepository defines the interface for card persistence.
//
// Every write publishes the affected deck through DeckRepository.WatchDeck
// and the deck list through WatchDecks, so the session picks up card counts
// without polling.
type CardRepository interface {
	// GetCardsByDeckID returns the cards of one deck ordered by position.
	// An unknown deck yields an empty slice.
	GetCardsByDeckID(ctx context.Context, deckID uuid.UUID) ([]domain.Card, error)

	// CreateCard persists a draft and returns the stored card with its new ID.
	// Returns ErrDeckNotFound if the draft's deck does not exist.
	CreateCard(ctx context.Context, draft domain.Draft) (*domain.Card, error)

	// UpdateCardContent replaces the front and back text of a card.
	// Returns ErrCardNotFound if the card does not exist in the deck.
	UpdateCardContent(ctx context.Context, cardID, deckID uuid.UUID, front, back string) error

	// DeleteCard removes a card and shifts the positions of later cards in the
	// deck down by one so positions stay contiguous.
	// Returns ErrCardNotFound if the card does not exist in the deck.
	DeleteCard(ctx context.Context, cardID, deckID uuid.UUID) error

	// AddCardReview appends a review to the card's history and records the
	// next review instant computed by the caller.
	// Returns ErrCardNotFound if the card does not exist in the deck.
	AddCardReview(
		ctx context.Context,
		cardID, deckID uuid.UUID,
		review domain.CardReview,
		nextReview time.Time,
	) error
}
