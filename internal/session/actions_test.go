package session

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	t.Parallel()
	deckID := uuid.New()

	testCases := []struct {
		name   string
		deckID uuid.UUID
		want   Action
	}{
		{"flip", uuid.Nil, Flip{}},
		{"swipe_right", uuid.Nil, SwipeRight{}},
		{"swipe_left", uuid.Nil, SwipeLeft{}},
		{"edit", uuid.Nil, Edit{}},
		{"save_edit", uuid.Nil, SaveEdit{}},
		{"cancel_edit", uuid.Nil, CancelEdit{}},
		{"delete", uuid.Nil, Delete{}},
		{"confirm_delete", uuid.Nil, ConfirmDelete{}},
		{"cancel_delete", uuid.Nil, CancelDelete{}},
		{"create_new_card", deckID, CreateNewCard{DeckID: deckID}},
		{"create_new_card", uuid.Nil, CreateNewCardInCurrentDeck{}},
		{"create_new_card_in_current_deck", deckID, CreateNewCardInCurrentDeck{}},
		{"  FLIP ", uuid.Nil, Flip{}},
		{"shuffle", uuid.Nil, NoAction{}},
		{"", uuid.Nil, NoAction{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ParseAction(tc.name, tc.deckID))
		})
	}
}

func TestActionsRejectedWithoutSession(t *testing.T) {
	t.Parallel()
	h := newHarness(t)

	for _, a := range []Action{Flip{}, SwipeRight{}, Edit{}, SaveEdit{}, Delete{}, CreateNewCardInCurrentDeck{}} {
		assert.False(t, h.sess.ProcessAction(a), "%T", a)
	}
}

func TestNoActionIsRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	d := h.deck("Spanish", uuid.Nil)
	h.card(d.ID, "a")
	h.startOn(d.ID)

	assert.False(t, h.sess.ProcessAction(NoAction{}))
}

func TestFlipTogglesAndIsGatedByEditing(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	d := h.deck("Spanish", uuid.Nil)
	h.card(d.ID, "a")
	h.startOn(d.ID)

	require.True(t, h.sess.ProcessAction(Flip{}))
	assert.True(t, h.sess.Snapshot().Flipped)
	require.True(t, h.sess.ProcessAction(Flip{}))
	assert.False(t, h.sess.Snapshot().Flipped)

	require.True(t, h.sess.ProcessAction(Flip{}))
	require.True(t, h.sess.ProcessAction(Edit{}))
	assert.False(t, h.sess.Snapshot().Flipped, "editing shows the front")

	assert.False(t, h.sess.ProcessAction(Flip{}))
	assert.False(t, h.sess.ProcessAction(SwipeRight{}))
	assert.False(t, h.sess.ProcessAction(Delete{}))
	assert.False(t, h.sess.Snapshot().Flipped)
}

func TestConfirmingDeleteGatesActions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	d := h.deck("Spanish", uuid.Nil)
	h.card(d.ID, "a")
	h.startOn(d.ID)

	require.True(t, h.sess.ProcessAction(Delete{}))
	assert.True(t, h.sess.Snapshot().ConfirmingDelete)

	for _, a := range []Action{Flip{}, SwipeLeft{}, SwipeRight{}, Edit{}, Delete{}} {
		assert.False(t, h.sess.ProcessAction(a), "%T", a)
	}
	assert.False(t, h.sess.Snapshot().Flipped)

	require.True(t, h.sess.ProcessAction(CancelDelete{}))
	assert.False(t, h.sess.Snapshot().ConfirmingDelete)
	assert.False(t, h.sess.ProcessAction(CancelDelete{}), "nothing left to cancel")
	assert.False(t, h.sess.ProcessAction(ConfirmDelete{}), "confirm needs an open confirmation")
	assert.Len(t, h.storedCards(d.ID), 1)
}

func TestDeleteWithoutCardIsRejected(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	d := h.deck("Spanish", uuid.Nil)
	h.startOn(d.ID)

	assert.False(t, h.sess.ProcessAction(Delete{}))
	assert.False(t, h.sess.Snapshot().ConfirmingDelete)
}

func TestConfirmDeleteAction(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	d := h.deck("Spanish", uuid.Nil)
	h.card(d.ID, "a")
	h.card(d.ID, "b")
	h.startOn(d.ID)

	require.True(t, h.sess.ProcessAction(Delete{}))
	require.True(t, h.sess.ProcessAction(ConfirmDelete{}))

	snap := h.await(func(s Snapshot) bool { return len(s.Cards) == 1 })
	assert.False(t, snap.ConfirmingDelete)
	assert.Equal(t, "b", snap.CurrentCard.Front)
	assert.Equal(t, []string{"b"}, fronts(h.storedCards(d.ID)))
}

func TestSwipeGradesCard(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		action Action
		grade  domain.ReviewGrade
		after  time.Duration
	}{
		{"right is good", SwipeRight{}, domain.GradeGood, 24 * time.Hour},
		{"left is again", SwipeLeft{}, domain.GradeAgain, 10 * time.Minute},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			h := newHarness(t)
			d := h.deck("Spanish", uuid.Nil)
			h.card(d.ID, "a")
			h.card(d.ID, "b")
			h.startOn(d.ID)

			require.True(t, h.sess.ProcessAction(tc.action))

			require.Eventually(t, func() bool {
				return len(h.storedCards(d.ID)[0].Reviews) == 1
			}, waitFor, tick)
			stored := h.storedCards(d.ID)[0]
			assert.Equal(t, tc.grade, stored.Reviews[0].Grade)
			assert.True(t, stored.NextReview.Equal(epoch.Add(tc.after)))

			snap := h.await(func(s Snapshot) bool {
				return s.CurrentCard != nil && s.CurrentCard.Front == "b"
			})
			assert.False(t, snap.Flipped)
			require.Eventually(t, func() bool { return h.anim.Current().IsIdle() }, waitFor, tick)
		})
	}
}

func TestCancelEditReseedsBuffer(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	d := h.deck("Spanish", uuid.Nil)
	h.card(d.ID, "a")
	h.startOn(d.ID)

	require.True(t, h.sess.ProcessAction(Edit{}))
	require.True(t, h.sess.SetEditBuffer("changed", "changed"))
	require.True(t, h.sess.ProcessAction(CancelEdit{}))

	snap := h.sess.Snapshot()
	assert.False(t, snap.Editing)
	assert.Equal(t, "a", snap.EditFront)
	assert.Equal(t, "a!", snap.EditBack)
	assert.Equal(t, "a", h.storedCards(d.ID)[0].Front)
}

func TestCancelEditDiscardsDraft(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	d := h.deck("Spanish", uuid.Nil)
	h.card(d.ID, "a")
	h.startOn(d.ID)

	require.NoError(t, h.sess.CreateNewCard(context.Background(), uuid.Nil))
	require.True(t, h.sess.ProcessAction(CancelEdit{}))

	snap := h.await(func(s Snapshot) bool { return s.Draft == nil })
	assert.False(t, snap.Editing)
	assert.Equal(t, "a", snap.CurrentCard.Front)
	assert.Equal(t, 0, h.cards.createCalls())
}

func TestCreateNewCardActions(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	a := h.deck("A", uuid.Nil)
	b := h.deck("B", uuid.Nil)
	h.card(a.ID, "a1")
	h.startOn(a.ID)

	require.True(t, h.sess.ProcessAction(CreateNewCardInCurrentDeck{}))
	snap := h.await(func(s Snapshot) bool { return s.IsNewCard })
	assert.Equal(t, a.ID, snap.Draft.DeckID)
	assert.Equal(t, 1, snap.Draft.Position)

	require.True(t, h.sess.ProcessAction(CreateNewCard{DeckID: b.ID}))
	snap = h.await(func(s Snapshot) bool { return s.Draft != nil && s.Draft.DeckID == b.ID })
	assert.Equal(t, b.ID, snap.CurrentDeck.ID)
	assert.Equal(t, 0, snap.Draft.Position)
	assert.True(t, snap.IsNewCard)
}

func TestEditOpensDraftWithoutReseeding(t *testing.T) {
	t.Parallel()
	h := newHarness(t)
	d := h.deck("Spanish", uuid.Nil)
	h.card(d.ID, "a")
	h.startOn(d.ID)

	require.NoError(t, h.sess.CreateNewCard(context.Background(), uuid.Nil))
	require.True(t, h.sess.SetEditBuffer("half", ""))
	require.True(t, h.sess.ProcessAction(SaveEdit{}))
	assert.False(t, h.sess.Snapshot().IsNewCard, "a draft outside editing is not a new-card view")

	require.True(t, h.sess.ProcessAction(Edit{}))
	snap := h.sess.Snapshot()
	assert.True(t, snap.IsNewCard)
	assert.Equal(t, "half", snap.EditFront)
}
