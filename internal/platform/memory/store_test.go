package memory

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	clock := &fakeClock{now: epoch}
	s := New(WithClock(clock.Now))
	t.Cleanup(s.Close)
	return s
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return v
	case <-time.After(waitFor):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero
}

func mustDeck(t *testing.T, s *Store, name string, parent uuid.UUID) *domain.Deck {
	t.Helper()
	d, err := s.CreateDeck(context.Background(), name, "", parent)
	require.NoError(t, err)
	return d
}

func mustCard(t *testing.T, s *Store, deckID uuid.UUID, front string) *domain.Card {
	t.Helper()
	c, err := s.CreateCard(context.Background(), domain.Draft{DeckID: deckID, Front: front, Back: front + "-back"})
	require.NoError(t, err)
	return c
}

func TestCreateDeck(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	root := mustDeck(t, s, "Spanish", uuid.Nil)
	child := mustDeck(t, s, "Verbs", root.ID)
	assert.True(t, root.IsRoot())
	assert.Equal(t, root.ID, child.ParentID)

	_, err := s.CreateDeck(ctx, "Orphan", "", uuid.New())
	assert.ErrorIs(t, err, store.ErrDeckNotFound)

	_, err = s.CreateDeck(ctx, "   ", "", uuid.Nil)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	children, err := s.GetChildDecks(ctx, root.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, child.ID, children[0].ID)

	roots, err := s.GetChildDecks(ctx, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.Equal(t, root.ID, roots[0].ID)
}

func TestDeleteDeckCascades(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	root := mustDeck(t, s, "Languages", uuid.Nil)
	child := mustDeck(t, s, "Spanish", root.ID)
	grandchild := mustDeck(t, s, "Verbs", child.ID)
	other := mustDeck(t, s, "Math", uuid.Nil)
	mustCard(t, s, grandchild.ID, "hablar")
	mustCard(t, s, other.ID, "pi")

	require.NoError(t, s.DeleteDeck(ctx, child.ID))

	decks := receive(t, mustWatchDecks(t, s))
	ids := make([]uuid.UUID, 0, len(decks))
	for _, d := range decks {
		ids = append(ids, d.ID)
	}
	assert.Equal(t, []uuid.UUID{root.ID, other.ID}, ids)

	cards, err := s.GetCardsByDeckID(ctx, grandchild.ID)
	require.NoError(t, err)
	assert.Empty(t, cards)

	cards, err = s.GetCardsByDeckID(ctx, other.ID)
	require.NoError(t, err)
	assert.Len(t, cards, 1)

	assert.ErrorIs(t, s.DeleteDeck(ctx, child.ID), store.ErrDeckNotFound)
}

func mustWatchDecks(t *testing.T, s *Store) <-chan []domain.Deck {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	ch, err := s.WatchDecks(ctx)
	require.NoError(t, err)
	return ch
}

func TestCardPositions(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	deck := mustDeck(t, s, "Spanish", uuid.Nil)

	a := mustCard(t, s, deck.ID, "a")
	b := mustCard(t, s, deck.ID, "b")
	c := mustCard(t, s, deck.ID, "c")
	assert.Equal(t, []int{0, 1, 2}, []int{a.Position, b.Position, c.Position})

	require.NoError(t, s.DeleteCard(ctx, b.ID, deck.ID))

	cards, err := s.GetCardsByDeckID(ctx, deck.ID)
	require.NoError(t, err)
	require.Len(t, cards, 2)
	assert.Equal(t, a.ID, cards[0].ID)
	assert.Equal(t, 0, cards[0].Position)
	assert.Equal(t, c.ID, cards[1].ID)
	assert.Equal(t, 1, cards[1].Position)

	d := mustCard(t, s, deck.ID, "d")
	assert.Equal(t, 2, d.Position)

	assert.ErrorIs(t, s.DeleteCard(ctx, b.ID, deck.ID), store.ErrCardNotFound)
}

func TestCreateCardErrors(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	deck := mustDeck(t, s, "Spanish", uuid.Nil)

	_, err := s.CreateCard(ctx, domain.Draft{DeckID: uuid.New(), Front: "x"})
	assert.ErrorIs(t, err, store.ErrDeckNotFound)

	_, err = s.CreateCard(ctx, domain.Draft{DeckID: deck.ID, Front: " ", Back: ""})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func TestUpdateCardContent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	deck := mustDeck(t, s, "Spanish", uuid.Nil)
	card := mustCard(t, s, deck.ID, "perro")

	require.NoError(t, s.UpdateCardContent(ctx, card.ID, deck.ID, "gato", "cat"))

	cards, err := s.GetCardsByDeckID(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, "gato", cards[0].Front)
	assert.Equal(t, "cat", cards[0].Back)

	assert.ErrorIs(t, s.UpdateCardContent(ctx, card.ID, uuid.New(), "x", "y"), store.ErrCardNotFound)
}

func TestAddCardReview(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	deck := mustDeck(t, s, "Spanish", uuid.Nil)
	card := mustCard(t, s, deck.ID, "perro")

	review := domain.CardReview{Timestamp: epoch.Add(time.Hour), Grade: domain.GradeGood}
	next := epoch.Add(25 * time.Hour)
	require.NoError(t, s.AddCardReview(ctx, card.ID, deck.ID, review, next))

	cards, err := s.GetCardsByDeckID(ctx, deck.ID)
	require.NoError(t, err)
	require.Len(t, cards[0].Reviews, 1)
	assert.Equal(t, domain.GradeGood, cards[0].Reviews[0].Grade)
	require.NotNil(t, cards[0].NextReview)
	assert.True(t, next.Equal(*cards[0].NextReview))

	older := domain.CardReview{Timestamp: epoch, Grade: domain.GradeHard}
	assert.ErrorIs(t, s.AddCardReview(ctx, card.ID, deck.ID, older, next), store.ErrInvalidEntity)
	assert.ErrorIs(t, s.AddCardReview(ctx, uuid.New(), deck.ID, review, next), store.ErrCardNotFound)
}

func TestReturnedCardsAreCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)
	deck := mustDeck(t, s, "Spanish", uuid.Nil)
	card := mustCard(t, s, deck.ID, "perro")
	require.NoError(t, s.AddCardReview(ctx, card.ID, deck.ID,
		domain.CardReview{Timestamp: epoch, Grade: domain.GradeGood}, epoch.Add(time.Hour)))

	cards, err := s.GetCardsByDeckID(ctx, deck.ID)
	require.NoError(t, err)
	cards[0].Front = "mutated"
	cards[0].Reviews[0].Grade = domain.GradeAgain

	again, err := s.GetCardsByDeckID(ctx, deck.ID)
	require.NoError(t, err)
	assert.Equal(t, "perro", again[0].Front)
	assert.Equal(t, domain.GradeGood, again[0].Reviews[0].Grade)
}

func TestWatchDeck(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deck := mustDeck(t, s, "Spanish", uuid.Nil)
	other := mustDeck(t, s, "Math", uuid.Nil)

	ch, err := s.WatchDeck(ctx, deck.ID)
	require.NoError(t, err)

	first := receive(t, ch)
	assert.Equal(t, 0, first.CardCount)

	// A write to another deck does not re-emit this one.
	mustCard(t, s, other.ID, "pi")
	mustCard(t, s, deck.ID, "perro")

	second := receive(t, ch)
	assert.Equal(t, 1, second.CardCount)
	assert.True(t, second.LastModified.After(first.LastModified))

	require.NoError(t, s.DeleteDeck(context.Background(), deck.ID))
	select {
	case _, ok := <-ch:
		assert.False(t, ok, "stream should close after the deck is deleted")
	case <-time.After(waitFor):
		t.Fatal("stream not closed")
	}

	_, err = s.WatchDeck(ctx, deck.ID)
	assert.ErrorIs(t, err, store.ErrDeckNotFound)
}

func TestWatchDecksCardCount(t *testing.T) {
	t.Parallel()
	s := newTestStore(t)
	deck := mustDeck(t, s, "Spanish", uuid.Nil)
	ch := mustWatchDecks(t, s)

	decks := receive(t, ch)
	require.Len(t, decks, 1)
	assert.Equal(t, 0, decks[0].CardCount)

	mustCard(t, s, deck.ID, "perro")
	decks = receive(t, ch)
	assert.Equal(t, 1, decks[0].CardCount)
}

func TestUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := newTestStore(t)

	user := &domain.User{ID: uuid.New(), Username: "alice", HashedPassword: "hash", Password: "secret123"}
	require.NoError(t, s.Create(ctx, user))
	assert.ErrorIs(t, s.Create(ctx, user), store.ErrUsernameExists)
	assert.ErrorIs(t, s.Create(ctx, &domain.User{ID: uuid.New(), Username: "bob"}), store.ErrInvalidEntity)

	got, err := s.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Empty(t, got.Password)

	_, err = s.GetByUsername(ctx, "carol")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
	assert.True(t, store.IsNotFoundError(err))
}
