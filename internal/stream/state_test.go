package stream

import (
	"context"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = time.Second

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

func TestSubscribeDeliversCurrentValueFirst(t *testing.T) {
	t.Parallel()

	s := NewState(42)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	assert.Equal(t, 42, receive(t, ch))

	s.Set(43)
	assert.Equal(t, 43, receive(t, ch))
}

func TestSlowSubscriberSeesLatestValue(t *testing.T) {
	t.Parallel()

	s := NewState(0)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := s.Subscribe(ctx)
	for i := 1; i <= 100; i++ {
		s.Set(i)
	}

	assert.Equal(t, 100, receive(t, ch))
	select {
	case v := <-ch:
		t.Fatalf("unexpected extra value %d", v)
	default:
	}
}

func TestUpdateIsAtomic(t *testing.T) {
	t.Parallel()

	s := NewState(0)
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				s.Update(func(v int) int { return v + 1 })
			}
			done <- struct{}{}
		}()
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	assert.Equal(t, 1000, s.Get())
}

func TestSubscriptionClosesOnCancel(t *testing.T) {
	t.Parallel()

	s := NewState("a")
	ctx, cancel := context.WithCancel(context.Background())
	ch := s.Subscribe(ctx)
	receive(t, ch)

	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-ch:
			return !ok
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)
	assert.Equal(t, 0, s.Subscribers())

	// Publishing after the listener is gone must not block.
	s.Set("b")
}

func TestCloseEndsSubscriptions(t *testing.T) {
	t.Parallel()

	s := NewState(1)
	ch := s.Subscribe(context.Background())
	receive(t, ch)

	s.Close()

	_, ok := <-ch
	assert.False(t, ok)

	_, ok = <-s.Subscribe(context.Background())
	assert.False(t, ok)
}

func TestWithCloneIsolatesSubscribers(t *testing.T) {
	t.Parallel()

	s := NewState([]int{1, 2}, WithClone(func(v []int) []int { return slices.Clone(v) }))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := receive(t, s.Subscribe(ctx))
	got[0] = 99

	assert.Equal(t, []int{1, 2}, s.Get())
}

func TestMap(t *testing.T) {
	t.Parallel()

	s := NewState(1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	doubled := Map(ctx, s.Subscribe(ctx), func(v int) (int, bool) {
		return v * 2, v < 3
	})

	assert.Equal(t, 2, receive(t, doubled))
	s.Set(2)
	assert.Equal(t, 4, receive(t, doubled))

	s.Set(3)
	require.Eventually(t, func() bool {
		select {
		case _, ok := <-doubled:
			return !ok
		default:
			return false
		}
	}, waitFor, 5*time.Millisecond)
}
