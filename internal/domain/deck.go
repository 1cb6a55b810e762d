package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Deck-specific validation errors
var (
	// ErrDeckIDEmpty is returned when a deck ID is empty.
	ErrDeckIDEmpty = errors.New("deck ID cannot be empty")

	// ErrDeckNameEmpty is returned when a deck name is blank.
	ErrDeckNameEmpty = errors.New("deck name cannot be empty")

	// ErrDeckSelfParent is returned when a deck is its own parent.
	ErrDeckSelfParent = errors.New("deck cannot be its own parent")
)

// Deck is a named, hierarchical collection of cards.
// A zero ParentID marks a root deck.
type Deck struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CardCount    int       `json:"card_count"`
	ParentID     uuid.UUID `json:"parent_id"`
	Created      time.Time `json:"created"`
	LastModified time.Time `json:"last_modified"`
}

// NewDeck creates a Deck with a fresh ID.
func NewDeck(name, description string, parentID uuid.UUID, now time.Time) (*Deck, error) {
	deck := &Deck{
		ID:           uuid.New(),
		Name:         strings.TrimSpace(name),
		Description:  description,
		ParentID:     parentID,
		Created:      now.UTC(),
		LastModified: now.UTC(),
	}

	if err := deck.Validate(); err != nil {
		return nil, err
	}

	return deck, nil
}

// Validate checks if the Deck has valid data.
func (d *Deck) Validate() error {
	if d.ID == uuid.Nil {
		return ErrDeckIDEmpty
	}

	if IsBlank(d.Name) {
		return ErrDeckNameEmpty
	}

	if d.ParentID == d.ID {
		return ErrDeckSelfParent
	}

	return nil
}

// IsRoot reports whether the deck has no parent.
func (d Deck) IsRoot() bool {
	return d.ParentID == uuid.Nil
}

// FindDeck returns the deck with the given id from decks.
func FindDeck(decks []Deck, id uuid.UUID) (Deck, bool) {
	for _, d := range decks {
		if d.ID == id {
			return d, true
		}
	}
	return Deck{}, false
}

// Subtree returns the ids of root and every deck below it in decks.
// The walk keeps a visited set so a malformed parent chain cannot loop.
func Subtree(decks []Deck, root uuid.UUID) map[uuid.UUID]struct{} {
	children := make(map[uuid.UUID][]uuid.UUID, len(decks))
	for _, d := range decks {
		if !d.IsRoot() {
			children[d.ParentID] = append(children[d.ParentID], d.ID)
		}
	}

	visited := map[uuid.UUID]struct{}{}
	stack := []uuid.UUID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		stack = append(stack, children[id]...)
	}
	return visited
}
