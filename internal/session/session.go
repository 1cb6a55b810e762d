package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/animation"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/domain/srs"
	"github.com/phrazzld/welk/internal/platform/logger"
	"github.com/phrazzld/welk/internal/store"
	"github.com/phrazzld/welk/internal/stream"
	"github.com/phrazzld/welk/internal/task"
)

// Options holds the optional collaborators of a Session.
type Options struct {
	Logger *slog.Logger
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// Session is the study-session state machine.
//
// One mutex guards all state and is never held across a repository call.
// Each mutation that waits on a repository remembers the session generation
// it started in and drops its result when Stop has happened in between.
type Session struct {
	cards     store.CardRepository
	decks     store.DeckRepository
	algorithm srs.Algorithm
	animator  animation.Manager
	logger    *slog.Logger
	now       func() time.Time

	// lifecycleMu serializes Start and Stop.
	lifecycleMu sync.Mutex

	// gradeMu serializes grading so a swipe completion and a direct grade
	// cannot interleave.
	gradeMu sync.Mutex

	mu         sync.Mutex
	st         state
	group      *task.Group
	generation uint64
	selectSeq  uint64 // bumped on every deck selection
	cardsRev   uint64 // bumped on every local card list change

	snapshots *stream.State[Snapshot]
	selected  *stream.State[uuid.UUID]
}

// New creates an inactive Session.
func New(
	cards store.CardRepository,
	decks store.DeckRepository,
	algorithm srs.Algorithm,
	animator animation.Manager,
	opts Options,
) *Session {
	if cards == nil {
		panic("cards cannot be nil")
	}
	if decks == nil {
		panic("decks cannot be nil")
	}
	if algorithm == nil {
		panic("algorithm cannot be nil")
	}
	if animator == nil {
		panic("animator cannot be nil")
	}

	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	s := &Session{
		cards:     cards,
		decks:     decks,
		algorithm: algorithm,
		animator:  animator,
		logger:    log.With(slog.String("component", "session")),
		now:       clock,
		st:        newState(),
		selected:  stream.NewState(uuid.Nil),
	}
	s.snapshots = stream.NewState(s.snapshotLocked(), stream.WithClone(cloneSnapshot))
	return s
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	return s.snapshots.Get()
}

// Subscribe streams snapshots, starting with the current one. A slow reader
// only sees the latest snapshot.
func (s *Session) Subscribe(ctx context.Context) <-chan Snapshot {
	return s.snapshots.Subscribe(ctx)
}

// Active reports whether a session is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.st.active
}

// Start begins a session. It is a no-op when one is already active.
// Cancelling ctx ends the session's subscriptions as Stop would, without
// resetting state.
func (s *Session) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.Active() {
		return nil
	}

	group := task.NewGroup(ctx, s.logger)

	deckList, err := s.decks.WatchDecks(group.Context())
	if err != nil {
		group.Stop()
		s.logger.Error("failed to watch decks", slog.String("error", err.Error()))
		return fmt.Errorf("failed to start session: %w", err)
	}

	s.mu.Lock()
	s.generation++
	gen := s.generation
	s.group = group
	s.st = newState()
	s.st.active = true
	s.publishLocked()
	s.mu.Unlock()

	s.selected.Set(uuid.Nil)

	group.Go("deck_list", func(ctx context.Context) error {
		s.watchDeckList(ctx, gen, deckList)
		return nil
	})
	group.Go("deck_selection", func(ctx context.Context) error {
		s.watchSelection(ctx, gen, group)
		return nil
	})
	group.Go("animation", func(ctx context.Context) error {
		s.watchAnimation(ctx, gen)
		return nil
	})

	s.logger.Info("session started")
	return nil
}

// Stop ends the session: it cancels and waits for every session task, then
// resets all derived state. A mutation still in flight observes the
// generation change and is discarded. Stop is a no-op when no session runs.
func (s *Session) Stop() {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.mu.Lock()
	if !s.st.active {
		s.mu.Unlock()
		return
	}
	group := s.group
	s.group = nil
	s.generation++
	s.st.active = false
	s.mu.Unlock()

	group.Stop()

	s.mu.Lock()
	s.resetLocked()
	s.publishLocked()
	s.mu.Unlock()

	s.selected.Set(uuid.Nil)
	s.logger.Info("session stopped")
}

// lockActive takes mu and reports the generation when a session is active.
// On false mu is already released.
func (s *Session) lockActive() (uint64, bool) {
	s.mu.Lock()
	if !s.st.active {
		s.mu.Unlock()
		return 0, false
	}
	return s.generation, true
}

// relock takes mu and reports whether the session of generation gen is
// still the running one. On false mu is already released.
func (s *Session) relock(gen uint64) bool {
	s.mu.Lock()
	if !s.st.active || s.generation != gen {
		s.mu.Unlock()
		return false
	}
	return true
}

// spawn runs fn in the session scope.
func (s *Session) spawn(name string, fn func(ctx context.Context) error) bool {
	s.mu.Lock()
	group := s.group
	s.mu.Unlock()
	if group == nil {
		return false
	}
	return group.Go(name, fn)
}

func (s *Session) watchDeckList(ctx context.Context, gen uint64, ch <-chan []domain.Deck) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for decks := range ch {
		if !s.relock(gen) {
			return
		}

		before := subtreeFingerprint(s.st.decks, s.st.currentDeck)
		s.st.decks = decks

		var target uuid.UUID
		reload, cleared := false, false
		switch {
		case s.st.currentDeck == uuid.Nil:
			if len(decks) > 0 {
				target = decks[0].ID
			}
		case s.currentDeckLocked() == nil:
			// Deleted behind our back; fall back like DeleteDeck does.
			target = firstDeckOutside(decks, nil)
			if target == uuid.Nil {
				s.clearSelectionLocked()
				cleared = true
			}
		default:
			reload = subtreeFingerprint(decks, s.st.currentDeck) != before
		}
		s.publishLocked()
		s.mu.Unlock()

		switch {
		case cleared:
			s.selected.Set(uuid.Nil)
		case target != uuid.Nil:
			if err := s.SelectDeck(ctx, target); err != nil {
				log.Warn("failed to select deck", slog.String("error", err.Error()))
			}
		case reload:
			s.reloadCards(ctx, gen)
		}
	}
}

// watchSelection keeps one WatchDeck stream open for the selected deck and
// reloads the subtree whenever the deck changes.
func (s *Session) watchSelection(ctx context.Context, gen uint64, group *task.Group) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var cancelWatch context.CancelFunc
	defer func() {
		if cancelWatch != nil {
			cancelWatch()
		}
	}()

	for id := range s.selected.Subscribe(ctx) {
		if cancelWatch != nil {
			cancelWatch()
			cancelWatch = nil
		}
		if id == uuid.Nil {
			continue
		}

		wctx, cancel := context.WithCancel(ctx)
		cancelWatch = cancel

		updates, err := s.decks.WatchDeck(wctx, id)
		if err != nil {
			log.Warn("failed to watch deck",
				slog.String("deck_id", id.String()),
				slog.String("error", err.Error()))
			continue
		}

		group.Go("deck_watch", func(context.Context) error {
			first := true
			for range updates {
				// The first value is the state SelectDeck already loaded.
				if first {
					first = false
					continue
				}
				s.reloadCards(wctx, gen)
			}
			return nil
		})
	}
}

func (s *Session) watchAnimation(ctx context.Context, gen uint64) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	for sig := range s.animator.Signals(ctx) {
		if sig.IsIdle() {
			continue
		}

		if !s.relock(gen) {
			return
		}
		matches := sig.CardIndex == s.st.position && s.currentCardLocked() != nil
		s.mu.Unlock()

		if matches {
			grade := domain.GradeFromOutcome(sig.Positive)
			if err := s.GradeCard(ctx, grade); err != nil {
				log.Warn("failed to grade swiped card",
					slog.Int("card_index", sig.CardIndex),
					slog.String("error", err.Error()))
			}
		} else {
			log.Debug("ignoring swipe for card no longer under the cursor",
				slog.Int("card_index", sig.CardIndex))
		}
		s.animator.Reset()
	}
}

// reloadCards re-reads the current deck's subtree, keeping the cursor on the
// same card.
func (s *Session) reloadCards(ctx context.Context, gen uint64) {
	s.reload(ctx, gen, false)
}

// reload re-reads the current deck's subtree. A passive reload is dropped
// when the selection or the local card list changed while it was loading;
// one with resetCursor set is only dropped by a new selection and puts the
// cursor on the first card.
func (s *Session) reload(ctx context.Context, gen uint64, resetCursor bool) {
	if !s.relock(gen) {
		return
	}
	root := s.st.currentDeck
	decks := s.st.decks
	seq, rev := s.selectSeq, s.cardsRev
	s.mu.Unlock()

	if root == uuid.Nil {
		return
	}

	cards, err := s.gatherCards(ctx, decks, root)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to reload cards",
			slog.String("deck_id", root.String()),
			slog.String("error", err.Error()))
		return
	}

	if !s.relock(gen) {
		return
	}
	defer s.mu.Unlock()
	if s.selectSeq != seq || (!resetCursor && s.cardsRev != rev) {
		return
	}
	s.cardsRev++
	if resetCursor {
		previous := s.currentCardIDLocked()
		s.st.cards = cards
		s.st.position = 0
		s.st.visible = nil
		s.recomputeLocked(uuid.Nil)
		if s.currentCardIDLocked() != previous {
			s.st.flipped = false
		}
		s.reseedLocked()
	} else {
		s.applyCardsLocked(cards, uuid.Nil)
	}
	s.publishLocked()
}

// gatherCards loads every card of root's subtree, ordered by deck traversal
// then position.
func (s *Session) gatherCards(ctx context.Context, decks []domain.Deck, root uuid.UUID) ([]domain.Card, error) {
	order := deckOrder(decks, root)
	var cards []domain.Card
	for _, deckID := range order {
		deckCards, err := s.cards.GetCardsByDeckID(ctx, deckID)
		if err != nil {
			return nil, fmt.Errorf("failed to load cards of deck %s: %w", deckID, err)
		}
		cards = append(cards, deckCards...)
	}
	sortCards(cards, order)
	return cards, nil
}

func (s *Session) clearSelectionLocked() {
	s.st.currentDeck = uuid.Nil
	s.selectSeq++
	s.cardsRev++
	s.st.draft = nil
	s.st.editing = false
	s.st.confirmingDelete = false
	s.st.position = 0
	s.applyCardsLocked(nil, uuid.Nil)
}

// subtreeFingerprint summarizes the decks of root's subtree so a deck-list
// emission that touched them can be told apart from one that did not.
func subtreeFingerprint(decks []domain.Deck, root uuid.UUID) string {
	if root == uuid.Nil {
		return ""
	}
	ids := deckOrder(decks, root)
	fp := make([]byte, 0, len(ids)*48)
	for _, id := range ids {
		d, ok := domain.FindDeck(decks, id)
		if !ok {
			continue
		}
		fp = fmt.Appendf(fp, "%s:%d:%d;", d.ID, d.CardCount, d.LastModified.UnixNano())
	}
	return string(fp)
}

// firstDeckOutside returns the first deck, in list order, that is not in
// excluded, or uuid.Nil.
func firstDeckOutside(decks []domain.Deck, excluded map[uuid.UUID]struct{}) uuid.UUID {
	for _, d := range decks {
		if _, ok := excluded[d.ID]; !ok {
			return d.ID
		}
	}
	return uuid.Nil
}
