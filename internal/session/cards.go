package session

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/platform/logger"
)

// FlipCard turns the current card over. It reports false when there is no
// card to flip, or while editing or confirming a delete.
func (s *Session) FlipCard() bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}
	defer s.mu.Unlock()

	if s.st.editing || s.st.confirmingDelete || s.currentCardLocked() == nil {
		return false
	}
	s.st.flipped = !s.st.flipped
	s.publishLocked()
	return true
}

// NextCard advances the cursor, wrapping at the end of the visible list.
func (s *Session) NextCard() {
	if _, ok := s.lockActive(); !ok {
		return
	}
	defer s.mu.Unlock()

	n := len(s.st.visible)
	if n == 0 {
		return
	}
	s.setPositionLocked((s.st.position+1)%n, s.currentCardIDLocked())
	s.st.flipped = false
	s.publishLocked()
}

// GradeCard records a review of the current card. The scheduling algorithm
// computes the next review instant and the repository stores both; only
// then does the local copy change and the cursor move on to the card that
// followed the graded one. On failure nothing moves.
func (s *Session) GradeCard(ctx context.Context, grade domain.ReviewGrade) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	s.gradeMu.Lock()
	defer s.gradeMu.Unlock()

	gen, ok := s.lockActive()
	if !ok {
		return ErrNoSession
	}
	current := s.currentCardLocked()
	if current == nil {
		s.mu.Unlock()
		return ErrNoCurrentCard
	}
	card := current.Clone()
	next := uuid.Nil
	if n := len(s.st.visible); n > 1 {
		next = s.st.visible[(s.st.position+1)%n].ID
	}
	s.mu.Unlock()

	now := s.now()
	nextReview, err := s.algorithm.CalculateNextReview(card.Reviews, grade, now)
	if err != nil {
		return fmt.Errorf("failed to schedule card: %w", err)
	}
	review, err := domain.NewCardReview(grade, now)
	if err != nil {
		return fmt.Errorf("failed to schedule card: %w", err)
	}

	if err := s.cards.AddCardReview(ctx, card.ID, card.DeckID, review, nextReview); err != nil {
		log.Error("failed to record review",
			slog.String("card_id", card.ID.String()),
			slog.String("grade", string(grade)),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to record review: %w", err)
	}

	if !s.relock(gen) {
		return nil
	}
	defer s.mu.Unlock()

	cards := slices.Clone(s.st.cards)
	if i := indexOfCard(cards, card.ID); i >= 0 && !endsWithReview(cards[i], review) {
		updated, err := cards[i].WithReview(review, nextReview)
		if err != nil {
			// A reload already brought in a newer history.
			log.Warn("local review history out of order",
				slog.String("card_id", card.ID.String()))
		} else {
			cards[i] = updated
		}
	}
	s.cardsRev++
	s.applyCardsLocked(cards, next)
	s.st.flipped = false
	s.publishLocked()

	log.Debug("card graded",
		slog.String("card_id", card.ID.String()),
		slog.String("grade", string(grade)),
		slog.Time("next_review", nextReview))
	return nil
}

// endsWithReview reports whether a reload already brought in review.
func endsWithReview(c domain.Card, review domain.CardReview) bool {
	n := len(c.Reviews)
	return n > 0 && c.Reviews[n-1].Grade == review.Grade && c.Reviews[n-1].Timestamp.Equal(review.Timestamp)
}

// CreateNewCard starts a draft in deckID, selecting that deck first when it
// is not the current one. uuid.Nil means the current deck. The draft is
// positioned after the deck's existing cards and opened for editing with an
// empty buffer.
func (s *Session) CreateNewCard(ctx context.Context, deckID uuid.UUID) error {
	gen, ok := s.lockActive()
	if !ok {
		return ErrNoSession
	}
	if deckID == uuid.Nil {
		deckID = s.st.currentDeck
	}
	if deckID == uuid.Nil {
		s.mu.Unlock()
		return ErrDeckNotFound
	}
	mustSelect := deckID != s.st.currentDeck
	s.mu.Unlock()

	if mustSelect {
		if err := s.SelectDeck(ctx, deckID); err != nil {
			return err
		}
	}

	if !s.relock(gen) {
		return nil
	}
	defer s.mu.Unlock()
	if s.st.currentDeck != deckID {
		// Another selection overtook this one.
		return nil
	}

	position := 0
	for _, c := range s.st.cards {
		if c.DeckID == deckID {
			position++
		}
	}
	s.st.draft = &domain.Draft{DeckID: deckID, Position: position}
	s.st.editing = true
	s.st.editFront, s.st.editBack = "", ""
	s.st.flipped = false
	s.st.confirmingDelete = false
	s.publishLocked()
	return nil
}

// CancelNewCard discards the pending draft, leaves editing and reloads the
// subtree from the repository with the cursor on the first card.
func (s *Session) CancelNewCard(ctx context.Context) error {
	gen, ok := s.lockActive()
	if !ok {
		return ErrNoSession
	}
	if s.st.draft == nil {
		s.mu.Unlock()
		return ErrNotEditingDraft
	}
	s.st.draft = nil
	s.st.editing = false
	s.reseedLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.reload(ctx, gen, true)
	return nil
}

// SaveCardEdit persists the edit buffer. A pending draft becomes a new card
// and the cursor moves to it; otherwise the current card's text is updated.
// With both sides blank a draft is cancelled and an existing card is left
// alone. On a repository failure the session stays in edit mode.
func (s *Session) SaveCardEdit(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	gen, ok := s.lockActive()
	if !ok {
		return ErrNoSession
	}
	front, back := s.st.editFront, s.st.editBack

	if domain.IsBlank(front) && domain.IsBlank(back) {
		hasDraft := s.st.draft != nil
		s.mu.Unlock()
		if hasDraft {
			return s.CancelNewCard(ctx)
		}
		return nil
	}

	if s.st.draft != nil {
		draft := *s.st.draft
		draft.Front, draft.Back = front, back
		s.mu.Unlock()
		return s.saveDraft(ctx, gen, draft)
	}

	current := s.currentCardLocked()
	if current == nil {
		s.st.editing = false
		s.publishLocked()
		s.mu.Unlock()
		return ErrNoCurrentCard
	}
	card := *current
	s.mu.Unlock()

	if err := s.cards.UpdateCardContent(ctx, card.ID, card.DeckID, front, back); err != nil {
		log.Error("failed to update card",
			slog.String("card_id", card.ID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to update card: %w", err)
	}

	if !s.relock(gen) {
		return nil
	}
	defer s.mu.Unlock()

	cards := slices.Clone(s.st.cards)
	if i := indexOfCard(cards, card.ID); i >= 0 {
		cards[i] = cards[i].WithContent(front, back, s.now())
	}
	s.st.editing = false
	s.cardsRev++
	s.applyCardsLocked(cards, card.ID)
	s.publishLocked()
	return nil
}

func (s *Session) saveDraft(ctx context.Context, gen uint64, draft domain.Draft) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	card, err := s.cards.CreateCard(ctx, draft)
	if err != nil {
		log.Error("failed to create card",
			slog.String("deck_id", draft.DeckID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to create card: %w", err)
	}

	if !s.relock(gen) {
		return nil
	}
	defer s.mu.Unlock()

	s.st.draft = nil
	s.st.editing = false

	if card.DeckID == s.st.currentDeck || s.inCurrentSubtreeLocked(card.DeckID) {
		cards := make([]domain.Card, 0, len(s.st.cards)+1)
		cards = append(cards, s.st.cards...)
		if indexOfCard(cards, card.ID) < 0 {
			cards = append(cards, *card)
		}
		sortCards(cards, deckOrder(s.st.decks, s.st.currentDeck))
		s.cardsRev++
		s.applyCardsLocked(cards, card.ID)
	} else {
		s.reseedLocked()
	}
	s.publishLocked()

	log.Info("card created", slog.String("card_id", card.ID.String()))
	return nil
}

func (s *Session) inCurrentSubtreeLocked(deckID uuid.UUID) bool {
	if s.st.currentDeck == uuid.Nil {
		return false
	}
	_, ok := domain.Subtree(s.st.decks, s.st.currentDeck)[deckID]
	return ok
}

// DeleteCurrentCard deletes the card under the cursor. The cursor stays at
// the same index, clamped to the shorter list. The delete confirmation is
// closed whatever the outcome.
func (s *Session) DeleteCurrentCard(ctx context.Context) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	gen, ok := s.lockActive()
	if !ok {
		return ErrNoSession
	}
	s.st.confirmingDelete = false
	current := s.currentCardLocked()
	s.publishLocked()
	if current == nil {
		s.mu.Unlock()
		log.Error("delete requested without a persisted current card")
		return ErrNoCurrentCard
	}
	card := *current
	s.mu.Unlock()

	if err := s.cards.DeleteCard(ctx, card.ID, card.DeckID); err != nil {
		log.Error("failed to delete card",
			slog.String("card_id", card.ID.String()),
			slog.String("error", err.Error()))
		return fmt.Errorf("failed to delete card: %w", err)
	}

	if !s.relock(gen) {
		return nil
	}
	defer s.mu.Unlock()

	cards := make([]domain.Card, 0, len(s.st.cards))
	for _, c := range s.st.cards {
		if c.ID == card.ID {
			continue
		}
		if c.DeckID == card.DeckID && c.Position > card.Position {
			c = c.Clone()
			c.Position--
		}
		cards = append(cards, c)
	}
	s.cardsRev++
	s.applyCardsLocked(cards, uuid.Nil)
	s.publishLocked()

	log.Info("card deleted", slog.String("card_id", card.ID.String()))
	return nil
}

// ShowDeleteConfirmation opens the delete confirmation for the current card.
// It reports false while editing, when already confirming, or when there is
// no persisted card to delete.
func (s *Session) ShowDeleteConfirmation() bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}
	defer s.mu.Unlock()

	if s.st.editing || s.st.confirmingDelete || s.currentCardLocked() == nil {
		return false
	}
	s.st.confirmingDelete = true
	s.publishLocked()
	return true
}

// HideDeleteConfirmation closes the delete confirmation.
func (s *Session) HideDeleteConfirmation() {
	if _, ok := s.lockActive(); !ok {
		return
	}
	defer s.mu.Unlock()

	s.st.confirmingDelete = false
	s.publishLocked()
}

// ToggleShowAllCards switches between due cards only and every card. The
// cursor stays on the same card when it remains visible.
func (s *Session) ToggleShowAllCards() {
	if _, ok := s.lockActive(); !ok {
		return
	}
	defer s.mu.Unlock()

	s.st.showAll = !s.st.showAll
	s.recomputeLocked(uuid.Nil)
	s.publishLocked()
}

// SetEditBuffer replaces the text being edited. It has no effect outside
// edit mode.
func (s *Session) SetEditBuffer(front, back string) bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}
	defer s.mu.Unlock()

	if !s.st.editing {
		return false
	}
	s.st.editFront, s.st.editBack = front, back
	s.publishLocked()
	return true
}

// RefreshDue re-evaluates which cards are due. Call it as time passes.
func (s *Session) RefreshDue() {
	if _, ok := s.lockActive(); !ok {
		return
	}
	defer s.mu.Unlock()

	s.recomputeLocked(uuid.Nil)
	s.publishLocked()
}
