package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/platform/logger"
)

// SelectDeck makes id the current deck and loads the cards of its whole
// subtree. The cursor moves to the first card, unflipped, and a pending
// draft or edit is abandoned. When loading fails the previous selection is
// kept.
func (s *Session) SelectDeck(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	gen, ok := s.lockActive()
	if !ok {
		return ErrNoSession
	}
	if _, found := domain.FindDeck(s.st.decks, id); !found {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeckNotFound, id)
	}
	s.selectSeq++
	seq := s.selectSeq
	decks := s.st.decks
	s.mu.Unlock()

	cards, err := s.gatherCards(ctx, decks, id)
	if err != nil {
		// The previous selection stays in place.
		log.Error("failed to load deck cards",
			slog.String("deck_id", id.String()),
			slog.String("error", err.Error()))
		return err
	}

	if !s.relock(gen) {
		return nil
	}
	if s.selectSeq != seq {
		// A later selection won.
		s.mu.Unlock()
		return nil
	}
	s.st.currentDeck = id
	s.st.draft = nil
	s.st.editing = false
	s.st.confirmingDelete = false
	s.st.position = 0
	s.st.cards = nil
	s.st.visible = nil
	s.cardsRev++
	s.applyCardsLocked(cards, uuid.Nil)
	s.st.flipped = false
	s.reseedLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.selected.Set(id)

	log.Debug("deck selected",
		slog.String("deck_id", id.String()),
		slog.Int("card_count", len(cards)))
	return nil
}

// ToggleDeckExpansion expands or collapses a deck in the deck tree.
func (s *Session) ToggleDeckExpansion(id uuid.UUID) {
	if _, ok := s.lockActive(); !ok {
		return
	}
	defer s.mu.Unlock()

	if _, ok := s.st.expanded[id]; ok {
		delete(s.st.expanded, id)
	} else {
		s.st.expanded[id] = struct{}{}
	}
	s.publishLocked()
}

// IsDeckExpanded reports whether a deck is expanded in the deck tree.
func (s *Session) IsDeckExpanded(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.st.expanded[id]
	return ok
}

// CreateDeck creates a deck under parentID (uuid.Nil for a root deck) and
// expands the parent and all its ancestors so the new deck is visible.
func (s *Session) CreateDeck(
	ctx context.Context,
	name, description string,
	parentID uuid.UUID,
) (*domain.Deck, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	gen, ok := s.lockActive()
	if !ok {
		return nil, ErrNoSession
	}
	s.mu.Unlock()

	deck, err := s.decks.CreateDeck(ctx, name, description, parentID)
	if err != nil {
		log.Error("failed to create deck",
			slog.String("name", name),
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("failed to create deck: %w", err)
	}

	if !s.relock(gen) {
		return deck, nil
	}
	defer s.mu.Unlock()

	// The deck-list stream catches up on its own; keep the new deck
	// selectable until it does.
	if _, found := domain.FindDeck(s.st.decks, deck.ID); !found {
		decks := make([]domain.Deck, 0, len(s.st.decks)+1)
		decks = append(decks, s.st.decks...)
		s.st.decks = append(decks, *deck)
	}

	visited := map[uuid.UUID]struct{}{}
	for id := parentID; id != uuid.Nil; {
		if _, seen := visited[id]; seen {
			break
		}
		visited[id] = struct{}{}

		parent, found := domain.FindDeck(s.st.decks, id)
		if !found {
			break
		}
		s.st.expanded[id] = struct{}{}
		id = parent.ParentID
	}
	s.publishLocked()

	log.Info("deck created", slog.String("deck_id", deck.ID.String()))
	return deck, nil
}

// DeleteDeck deletes a deck with its whole subtree. When the current deck is
// in that subtree the session falls back to the first remaining deck, or to
// no deck at all.
func (s *Session) DeleteDeck(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	gen, ok := s.lockActive()
	if !ok {
		return ErrNoSession
	}
	s.mu.Unlock()

	if err := s.decks.DeleteDeck(ctx, id); err != nil {
		log.Error("failed to delete deck",
			slog.String("deck_id", id.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete deck: %w", err)
	}

	if !s.relock(gen) {
		return nil
	}

	removed := domain.Subtree(s.st.decks, id)
	remaining := make([]domain.Deck, 0, len(s.st.decks))
	for _, d := range s.st.decks {
		if _, gone := removed[d.ID]; !gone {
			remaining = append(remaining, d)
		}
	}
	s.st.decks = remaining
	for deckID := range removed {
		delete(s.st.expanded, deckID)
	}

	var fallback uuid.UUID
	if _, hit := removed[s.st.currentDeck]; hit {
		fallback = firstDeckOutside(remaining, removed)
		if fallback == uuid.Nil {
			s.clearSelectionLocked()
			s.publishLocked()
			s.mu.Unlock()
			s.selected.Set(uuid.Nil)
			log.Info("deck deleted, no deck left", slog.String("deck_id", id.String()))
			return nil
		}
	}
	s.publishLocked()
	s.mu.Unlock()

	log.Info("deck deleted", slog.String("deck_id", id.String()))

	if fallback != uuid.Nil {
		return s.SelectDeck(ctx, fallback)
	}
	return nil
}
