package session

import (
	"slices"
	"sort"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
)

// state is the mutable session state. Every field is guarded by Session.mu.
// Slices are replaced, never mutated in place, so a published Snapshot can
// share nothing with it once cloned.
type state struct {
	active bool

	decks       []domain.Deck
	currentDeck uuid.UUID // uuid.Nil when no deck is selected
	expanded    map[uuid.UUID]struct{}

	cards    []domain.Card // whole subtree of the current deck
	visible  []domain.Card
	position int

	draft     *domain.Draft
	editFront string
	editBack  string

	flipped          bool
	editing          bool
	confirmingDelete bool
	showAll          bool

	total    int
	due      int
	reviewed int
}

func newState() state {
	return state{expanded: map[uuid.UUID]struct{}{}}
}

// currentCardLocked returns the persisted card under the cursor. A pending
// draft hides it.
func (s *Session) currentCardLocked() *domain.Card {
	if s.st.draft != nil {
		return nil
	}
	if s.st.position < 0 || s.st.position >= len(s.st.visible) {
		return nil
	}
	c := s.st.visible[s.st.position]
	return &c
}

func (s *Session) currentCardIDLocked() uuid.UUID {
	if s.st.position < 0 || s.st.position >= len(s.st.visible) {
		return uuid.Nil
	}
	return s.st.visible[s.st.position].ID
}

func (s *Session) currentDeckLocked() *domain.Deck {
	if s.st.currentDeck == uuid.Nil {
		return nil
	}
	d, ok := domain.FindDeck(s.st.decks, s.st.currentDeck)
	if !ok {
		return nil
	}
	return &d
}

// applyCardsLocked installs a new subtree card list and recomputes every
// derived value. The cursor lands on focus when it is visible, otherwise on
// the card it was on before, otherwise on the old index clamped to the new
// list.
func (s *Session) applyCardsLocked(cards []domain.Card, focus uuid.UUID) {
	s.st.cards = cards
	s.recomputeLocked(focus)
}

// recomputeLocked is the single place the visible list, the counters and the
// cursor are derived from the card list, the show-all flag and the clock.
func (s *Session) recomputeLocked(focus uuid.UUID) {
	previous := s.currentCardIDLocked()
	now := s.now()

	visible := make([]domain.Card, 0, len(s.st.cards))
	due, reviewed := 0, 0
	for _, c := range s.st.cards {
		isDue := c.IsDue(now)
		if isDue {
			due++
		}
		if c.IsReviewed() {
			reviewed++
		}
		if s.st.showAll || isDue {
			visible = append(visible, c)
		}
	}
	s.st.visible = visible
	s.st.total = len(s.st.cards)
	s.st.due = due
	s.st.reviewed = reviewed

	pos := -1
	if focus != uuid.Nil {
		pos = indexOfCard(visible, focus)
	}
	if pos < 0 && previous != uuid.Nil {
		pos = indexOfCard(visible, previous)
	}
	if pos < 0 {
		pos = clamp(s.st.position, len(visible))
	}
	s.setPositionLocked(pos, previous)
}

// setPositionLocked moves the cursor. Landing on a different card unflips
// it and, outside editing, reseeds the edit buffer from it.
func (s *Session) setPositionLocked(pos int, previous uuid.UUID) {
	s.st.position = pos
	if s.currentCardIDLocked() != previous {
		s.st.flipped = false
		s.reseedLocked()
	}
}

func (s *Session) reseedLocked() {
	if s.st.editing || s.st.draft != nil {
		return
	}
	if c := s.currentCardLocked(); c != nil {
		s.st.editFront, s.st.editBack = c.Front, c.Back
		return
	}
	s.st.editFront, s.st.editBack = "", ""
}

// resetLocked drops all session-scoped state. The deck list and the show-all
// preference are session-scoped too.
func (s *Session) resetLocked() {
	s.st = newState()
}

func (s *Session) snapshotLocked() Snapshot {
	snap := Snapshot{
		SessionActive:     s.st.active,
		Decks:             slices.Clone(s.st.decks),
		CurrentDeck:       s.currentDeckLocked(),
		Expanded:          make([]uuid.UUID, 0, len(s.st.expanded)),
		Cards:             cloneCards(s.st.visible),
		Position:          s.st.position,
		EditFront:         s.st.editFront,
		EditBack:          s.st.editBack,
		Flipped:           s.st.flipped,
		Editing:           s.st.editing,
		ConfirmingDelete:  s.st.confirmingDelete,
		ShowAllCards:      s.st.showAll,
		TotalCardCount:    s.st.total,
		DueCardCount:      s.st.due,
		ReviewedCardCount: s.st.reviewed,
		IsNewCard:         s.st.editing && s.st.draft != nil,
	}
	for id := range s.st.expanded {
		snap.Expanded = append(snap.Expanded, id)
	}
	sort.Slice(snap.Expanded, func(i, j int) bool {
		return snap.Expanded[i].String() < snap.Expanded[j].String()
	})
	if c := s.currentCardLocked(); c != nil {
		card := c.Clone()
		snap.CurrentCard = &card
	}
	if s.st.draft != nil {
		d := *s.st.draft
		snap.Draft = &d
	}
	return snap
}

// publishLocked hands the current state to subscribers. It runs under mu so
// snapshots are published in mutation order.
func (s *Session) publishLocked() {
	s.snapshots.Set(s.snapshotLocked())
}

// deckOrder numbers the decks of root's subtree in depth-first pre-order,
// children in creation order. The walk keeps a visited set.
func deckOrder(decks []domain.Deck, root uuid.UUID) []uuid.UUID {
	children := make(map[uuid.UUID][]uuid.UUID, len(decks))
	for _, d := range decks {
		if !d.IsRoot() {
			children[d.ParentID] = append(children[d.ParentID], d.ID)
		}
	}

	var order []uuid.UUID
	visited := map[uuid.UUID]struct{}{}
	stack := []uuid.UUID{root}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		order = append(order, id)

		kids := children[id]
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return order
}

// sortCards orders cards by deck traversal order, then by position.
func sortCards(cards []domain.Card, order []uuid.UUID) {
	rank := make(map[uuid.UUID]int, len(order))
	for i, id := range order {
		rank[id] = i
	}
	sort.SliceStable(cards, func(i, j int) bool {
		ri, rj := rank[cards[i].DeckID], rank[cards[j].DeckID]
		if ri != rj {
			return ri < rj
		}
		return cards[i].Position < cards[j].Position
	})
}

func indexOfCard(cards []domain.Card, id uuid.UUID) int {
	return slices.IndexFunc(cards, func(c domain.Card) bool { return c.ID == id })
}

func clamp(pos, n int) int {
	if n == 0 || pos < 0 {
		return 0
	}
	if pos >= n {
		return n - 1
	}
	return pos
}
