package session

import "errors"

var (
	// ErrNoSession is returned by operations invoked while no session is active.
	ErrNoSession = errors.New("no active session")

	// ErrNoCurrentCard is returned when an operation needs a persisted card
	// under the cursor and there is none (no cards, or a draft is pending).
	ErrNoCurrentCard = errors.New("no persisted current card")

	// ErrDeckNotFound is returned when a deck id is not in the loaded deck list.
	ErrDeckNotFound = errors.New("deck not found")

	// ErrNotEditingDraft is returned by CancelNewCard when no draft is pending.
	ErrNotEditingDraft = errors.New("no draft card is being edited")
)
