package domain

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Card-specific validation errors
var (
	// ErrCardIDEmpty is returned when a persisted card has no ID.
	ErrCardIDEmpty = errors.New("card ID cannot be empty")

	// ErrCardDeckIDEmpty is returned when a card or draft does not belong to a deck.
	ErrCardDeckIDEmpty = errors.New("card deck ID cannot be empty")

	// ErrCardPositionInvalid is returned when a card position is negative.
	ErrCardPositionInvalid = errors.New("card position must be greater than or equal to 0")

	// ErrCardContentEmpty is returned when both sides of a card are blank.
	ErrCardContentEmpty = errors.New("card content cannot be empty")

	// ErrReviewOutOfOrder is returned when a review is older than the card's last review.
	ErrReviewOutOfOrder = errors.New("review timestamp precedes the last review")
)

// Card is a persisted flashcard belonging to exactly one deck.
//
// Reviews are append-only and ordered by timestamp. A nil NextReview means the
// card has never been reviewed and is due immediately.
type Card struct {
	ID         uuid.UUID    `json:"id"`
	DeckID     uuid.UUID    `json:"deck_id"`
	Front      string       `json:"front"`
	Back       string       `json:"back"`
	Position   int          `json:"position"`
	Reviews    []CardReview `json:"reviews"`
	NextReview *time.Time   `json:"next_review,omitempty"`
	CreatedAt  time.Time    `json:"created_at"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

// Draft is a card that exists only in memory, pending a save or a cancel.
// It has no identity until a repository persists it as a Card.
type Draft struct {
	DeckID   uuid.UUID `json:"deck_id"`
	Front    string    `json:"front"`
	Back     string    `json:"back"`
	Position int       `json:"position"`
}

// NewCard creates a Card with a fresh ID from the given draft.
// Returns an error if validation fails.
func NewCard(draft Draft, now time.Time) (*Card, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	card := &Card{
		ID:        uuid.New(),
		DeckID:    draft.DeckID,
		Front:     draft.Front,
		Back:      draft.Back,
		Position:  draft.Position,
		Reviews:   []CardReview{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}

	if err := card.Validate(); err != nil {
		return nil, err
	}

	return card, nil
}

// Validate checks if the Card has valid data.
func (c *Card) Validate() error {
	if c.ID == uuid.Nil {
		return ErrCardIDEmpty
	}

	if c.DeckID == uuid.Nil {
		return ErrCardDeckIDEmpty
	}

	if c.Position < 0 {
		return ErrCardPositionInvalid
	}

	for i := 1; i < len(c.Reviews); i++ {
		if c.Reviews[i].Timestamp.Before(c.Reviews[i-1].Timestamp) {
			return ErrReviewOutOfOrder
		}
	}

	return nil
}

// Validate checks that the draft can be turned into a card.
func (d Draft) Validate() error {
	if d.DeckID == uuid.Nil {
		return ErrCardDeckIDEmpty
	}

	if d.Position < 0 {
		return ErrCardPositionInvalid
	}

	if IsBlank(d.Front) && IsBlank(d.Back) {
		return ErrCardContentEmpty
	}

	return nil
}

// IsDue reports whether the card should be shown in a due-only study list.
func (c Card) IsDue(now time.Time) bool {
	return c.NextReview == nil || !c.NextReview.After(now)
}

// IsReviewed reports whether the card has at least one review.
func (c Card) IsReviewed() bool {
	return len(c.Reviews) > 0
}

// WithReview returns a copy of the card with the review appended and the next
// review instant replaced. The receiver is left untouched.
func (c Card) WithReview(review CardReview, next time.Time) (Card, error) {
	if n := len(c.Reviews); n > 0 && review.Timestamp.Before(c.Reviews[n-1].Timestamp) {
		return c, ErrReviewOutOfOrder
	}

	updated := c.Clone()
	updated.Reviews = append(updated.Reviews, review)
	nextUTC := next.UTC()
	updated.NextReview = &nextUTC
	updated.UpdatedAt = review.Timestamp
	return updated, nil
}

// WithContent returns a copy of the card with new front and back text.
func (c Card) WithContent(front, back string, now time.Time) Card {
	updated := c.Clone()
	updated.Front = front
	updated.Back = back
	updated.UpdatedAt = now.UTC()
	return updated
}

// Clone returns a copy that shares no mutable state with the receiver.
func (c Card) Clone() Card {
	clone := c
	clone.Reviews = slices.Clone(c.Reviews)
	if c.NextReview != nil {
		next := *c.NextReview
		clone.NextReview = &next
	}
	return clone
}

// IsBlank reports whether s contains only whitespace.
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
