package session

import (
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
)

// Snapshot is an immutable view of the session at one instant.
type Snapshot struct {
	SessionActive bool `json:"session_active"`

	Decks       []domain.Deck `json:"decks"`
	CurrentDeck *domain.Deck  `json:"current_deck,omitempty"`
	Expanded    []uuid.UUID   `json:"expanded"`

	// Cards is the visible list: the current deck's subtree, filtered to due
	// cards unless ShowAllCards is set. Position indexes into it.
	Cards       []domain.Card `json:"cards"`
	Position    int           `json:"position"`
	CurrentCard *domain.Card  `json:"current_card,omitempty"`

	Draft     *domain.Draft `json:"draft,omitempty"`
	IsNewCard bool          `json:"is_new_card"`
	EditFront string        `json:"edit_front"`
	EditBack  string        `json:"edit_back"`

	Flipped          bool `json:"flipped"`
	Editing          bool `json:"editing"`
	ConfirmingDelete bool `json:"confirming_delete"`
	ShowAllCards     bool `json:"show_all_cards"`

	TotalCardCount    int `json:"total_card_count"`
	DueCardCount      int `json:"due_card_count"`
	ReviewedCardCount int `json:"reviewed_card_count"`
}

// IsDeckExpanded reports whether id is in the expanded set.
func (s Snapshot) IsDeckExpanded(id uuid.UUID) bool {
	return slices.Contains(s.Expanded, id)
}

func cloneSnapshot(s Snapshot) Snapshot {
	c := s
	c.Decks = slices.Clone(s.Decks)
	c.Expanded = slices.Clone(s.Expanded)
	c.Cards = cloneCards(s.Cards)
	if s.CurrentDeck != nil {
		d := *s.CurrentDeck
		c.CurrentDeck = &d
	}
	if s.CurrentCard != nil {
		card := s.CurrentCard.Clone()
		c.CurrentCard = &card
	}
	if s.Draft != nil {
		d := *s.Draft
		c.Draft = &d
	}
	return c
}

func cloneCards(cards []domain.Card) []domain.Card {
	if cards == nil {
		return nil
	}
	out := make([]domain.Card, len(cards))
	for i, c := range cards {
		out[i] = c.Clone()
	}
	return out
}
