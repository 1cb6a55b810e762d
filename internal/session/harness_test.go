package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/animation"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/domain/srs"
	"github.com/phrazzld/welk/internal/platform/memory"
	"github.com/phrazzld/welk/internal/store"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// hookedCards wraps a CardRepository so tests can count calls and inject
// failures or delays.
type hookedCards struct {
	store.CardRepository

	mu         sync.Mutex
	creates    int
	loadHook   func(deckID uuid.UUID) error
	reviewHook func() error
	storedHook func()
}

func (h *hookedCards) setLoadHook(fn func(deckID uuid.UUID) error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadHook = fn
}

func (h *hookedCards) setReviewHook(fn func() error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.reviewHook = fn
}

// setStoredHook runs fn after a review has been written to the repository.
func (h *hookedCards) setStoredHook(fn func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.storedHook = fn
}

func (h *hookedCards) createCalls() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.creates
}

func (h *hookedCards) GetCardsByDeckID(ctx context.Context, deckID uuid.UUID) ([]domain.Card, error) {
	h.mu.Lock()
	hook := h.loadHook
	h.mu.Unlock()
	if hook != nil {
		if err := hook(deckID); err != nil {
			return nil, err
		}
	}
	return h.CardRepository.GetCardsByDeckID(ctx, deckID)
}

func (h *hookedCards) CreateCard(ctx context.Context, draft domain.Draft) (*domain.Card, error) {
	h.mu.Lock()
	h.creates++
	h.mu.Unlock()
	return h.CardRepository.CreateCard(ctx, draft)
}

func (h *hookedCards) AddCardReview(
	ctx context.Context,
	cardID, deckID uuid.UUID,
	review domain.CardReview,
	nextReview time.Time,
) error {
	h.mu.Lock()
	hook, stored := h.reviewHook, h.storedHook
	h.mu.Unlock()
	if hook != nil {
		if err := hook(); err != nil {
			return err
		}
	}
	if err := h.CardRepository.AddCardReview(ctx, cardID, deckID, review, nextReview); err != nil {
		return err
	}
	if stored != nil {
		stored()
	}
	return nil
}

// countingDecks counts WatchDecks subscriptions.
type countingDecks struct {
	store.DeckRepository

	mu      sync.Mutex
	watches int
}

func (c *countingDecks) WatchDecks(ctx context.Context) (<-chan []domain.Deck, error) {
	c.mu.Lock()
	c.watches++
	c.mu.Unlock()
	return c.DeckRepository.WatchDecks(ctx)
}

func (c *countingDecks) watchCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.watches
}

type harness struct {
	t     *testing.T
	ctx   context.Context
	clock *testClock
	store *memory.Store
	cards *hookedCards
	decks *countingDecks
	anim  *animation.Controller
	sess  *Session
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	clock := &testClock{now: epoch}
	st := memory.New(memory.WithClock(clock.Now))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := &harness{
		t:     t,
		clock: clock,
		store: st,
		cards: &hookedCards{CardRepository: st},
		decks: &countingDecks{DeckRepository: st},
		anim:  animation.NewController(0, log),
	}
	h.sess = New(h.cards, h.decks, srs.NewFixedInterval(srs.DefaultFixedIntervalParams()), h.anim,
		Options{Logger: log, Clock: clock.Now})

	ctx, cancel := context.WithCancel(context.Background())
	h.ctx = ctx
	t.Cleanup(func() {
		h.sess.Stop()
		cancel()
		st.Close()
	})
	return h
}

func (h *harness) deck(name string, parent uuid.UUID) domain.Deck {
	h.t.Helper()
	d, err := h.store.CreateDeck(context.Background(), name, "", parent)
	require.NoError(h.t, err)
	return *d
}

func (h *harness) card(deckID uuid.UUID, front string) domain.Card {
	h.t.Helper()
	c, err := h.store.CreateCard(context.Background(), domain.Draft{DeckID: deckID, Front: front, Back: front + "!"})
	require.NoError(h.t, err)
	return *c
}

// review stores a review directly in the repository, bypassing the session.
func (h *harness) review(c domain.Card, next time.Time) {
	h.t.Helper()
	r := domain.CardReview{Timestamp: h.clock.Now(), Grade: domain.GradeGood}
	require.NoError(h.t, h.store.AddCardReview(context.Background(), c.ID, c.DeckID, r, next))
}

func (h *harness) storedCards(deckID uuid.UUID) []domain.Card {
	h.t.Helper()
	cards, err := h.store.GetCardsByDeckID(context.Background(), deckID)
	require.NoError(h.t, err)
	return cards
}

func (h *harness) start() {
	h.t.Helper()
	require.NoError(h.t, h.sess.Start(h.ctx))
}

// startOn starts the session and waits until deckID is selected.
func (h *harness) startOn(deckID uuid.UUID) Snapshot {
	h.t.Helper()
	h.start()
	return h.await(func(s Snapshot) bool {
		return s.CurrentDeck != nil && s.CurrentDeck.ID == deckID
	})
}

// await waits for a snapshot satisfying cond and returns it.
func (h *harness) await(cond func(Snapshot) bool) Snapshot {
	h.t.Helper()
	var snap Snapshot
	require.Eventually(h.t, func() bool {
		snap = h.sess.Snapshot()
		return cond(snap)
	}, waitFor, tick)
	return snap
}

func fronts(cards []domain.Card) []string {
	out := make([]string, len(cards))
	for i, c := range cards {
		out[i] = c.Front
	}
	return out
}
