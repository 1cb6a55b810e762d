package session

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Action is one input of the card view. The set is closed: only the types in
// this file implement it.
type Action interface {
	action()
}

type (
	// Flip turns the current card over.
	Flip struct{}
	// SwipeRight starts a positive swipe of the current card.
	SwipeRight struct{}
	// SwipeLeft starts a negative swipe of the current card.
	SwipeLeft struct{}
	// Edit opens the current card or pending draft for editing.
	Edit struct{}
	// SaveEdit leaves edit mode. Persisting is SaveCardEdit's job.
	SaveEdit struct{}
	// CancelEdit leaves edit mode and throws the edit away.
	CancelEdit struct{}
	// Delete asks for confirmation to delete the current card.
	Delete struct{}
	// ConfirmDelete deletes the current card.
	ConfirmDelete struct{}
	// CancelDelete closes the delete confirmation.
	CancelDelete struct{}
	// CreateNewCard starts a draft in DeckID.
	CreateNewCard struct{ DeckID uuid.UUID }
	// CreateNewCardInCurrentDeck starts a draft in the current deck.
	CreateNewCardInCurrentDeck struct{}
	// NoAction is never accepted.
	NoAction struct{}
)

func (Flip) action()                       {}
func (SwipeRight) action()                 {}
func (SwipeLeft) action()                  {}
func (Edit) action()                       {}
func (SaveEdit) action()                   {}
func (CancelEdit) action()                 {}
func (Delete) action()                     {}
func (ConfirmDelete) action()              {}
func (CancelDelete) action()               {}
func (CreateNewCard) action()              {}
func (CreateNewCardInCurrentDeck) action() {}
func (NoAction) action()                   {}

// ParseAction maps a raw input name such as "flip" or "swipe_right" to an
// Action. Unknown names map to NoAction. deckID is only used by
// "create_new_card".
func ParseAction(name string, deckID uuid.UUID) Action {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "flip":
		return Flip{}
	case "swipe_right":
		return SwipeRight{}
	case "swipe_left":
		return SwipeLeft{}
	case "edit":
		return Edit{}
	case "save_edit":
		return SaveEdit{}
	case "cancel_edit":
		return CancelEdit{}
	case "delete":
		return Delete{}
	case "confirm_delete":
		return ConfirmDelete{}
	case "cancel_delete":
		return CancelDelete{}
	case "create_new_card":
		if deckID == uuid.Nil {
			return CreateNewCardInCurrentDeck{}
		}
		return CreateNewCard{DeckID: deckID}
	case "create_new_card_in_current_deck":
		return CreateNewCardInCurrentDeck{}
	default:
		return NoAction{}
	}
}

// ProcessAction applies an action and reports whether it was accepted.
// Actions that persist are handed to the session's task group and complete
// asynchronously; their effect shows up in a later Snapshot.
func (s *Session) ProcessAction(a Action) bool {
	switch a := a.(type) {
	case Flip:
		return s.FlipCard()
	case SwipeRight:
		return s.swipe(true)
	case SwipeLeft:
		return s.swipe(false)
	case Edit:
		return s.beginEdit()
	case SaveEdit:
		return s.endEdit()
	case CancelEdit:
		return s.cancelEdit()
	case Delete:
		return s.ShowDeleteConfirmation()
	case ConfirmDelete:
		return s.confirmDelete()
	case CancelDelete:
		return s.cancelDelete()
	case CreateNewCard:
		return s.startCreate(a.DeckID)
	case CreateNewCardInCurrentDeck:
		return s.startCreate(uuid.Nil)
	default:
		return false
	}
}

func (s *Session) swipe(positive bool) bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}
	if s.st.editing || s.st.confirmingDelete || s.currentCardLocked() == nil {
		s.mu.Unlock()
		return false
	}
	index := s.st.position
	s.mu.Unlock()

	if positive {
		s.animator.SwipeRight(index)
	} else {
		s.animator.SwipeLeft(index)
	}
	return true
}

func (s *Session) beginEdit() bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}
	defer s.mu.Unlock()

	if s.st.confirmingDelete {
		return false
	}
	if s.st.draft == nil {
		current := s.currentCardLocked()
		if current == nil {
			return false
		}
		s.st.editFront, s.st.editBack = current.Front, current.Back
	}
	s.st.editing = true
	s.st.flipped = false
	s.publishLocked()
	return true
}

func (s *Session) endEdit() bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}
	defer s.mu.Unlock()

	s.st.editing = false
	s.publishLocked()
	return true
}

func (s *Session) cancelEdit() bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}

	if s.st.draft != nil {
		s.st.editing = false
		s.publishLocked()
		s.mu.Unlock()
		return s.spawn("cancel_new_card", func(ctx context.Context) error {
			return ignoreNoDraft(s.CancelNewCard(ctx))
		})
	}

	s.st.editing = false
	s.reseedLocked()
	s.publishLocked()
	s.mu.Unlock()
	return true
}

func (s *Session) confirmDelete() bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}
	if !s.st.confirmingDelete {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	return s.spawn("delete_card", func(ctx context.Context) error {
		return s.DeleteCurrentCard(ctx)
	})
}

func (s *Session) cancelDelete() bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}
	defer s.mu.Unlock()

	if !s.st.confirmingDelete {
		return false
	}
	s.st.confirmingDelete = false
	s.publishLocked()
	return true
}

func (s *Session) startCreate(deckID uuid.UUID) bool {
	if _, ok := s.lockActive(); !ok {
		return false
	}
	target := deckID
	if target == uuid.Nil {
		target = s.st.currentDeck
	}
	s.mu.Unlock()

	if target == uuid.Nil {
		s.logger.Debug("no deck to create a card in")
		return false
	}

	return s.spawn("create_new_card", func(ctx context.Context) error {
		return s.CreateNewCard(ctx, target)
	})
}

func ignoreNoDraft(err error) error {
	if errors.Is(err, ErrNotEditingDraft) {
		return nil
	}
	return err
}
