package task

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
}

func TestGroup_FailureDoesNotCancelSiblings(t *testing.T) {
	t.Parallel()

	group := NewGroup(context.Background(), discardLogger())

	var mu sync.Mutex
	var failures []string
	group.SetErrorHandler(func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, name)
	})

	started := make(chan struct{})
	var siblingCancelled atomic.Bool

	require.True(t, group.Go("sibling", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		siblingCancelled.Store(true)
		return ctx.Err()
	}))
	<-started

	require.True(t, group.Go("failing", func(ctx context.Context) error {
		return errors.New("boom")
	}))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(failures) == 1
	}, time.Second, 5*time.Millisecond)

	assert.False(t, siblingCancelled.Load())
	assert.NoError(t, group.Context().Err())

	group.Stop()

	assert.True(t, siblingCancelled.Load())
	mu.Lock()
	assert.Equal(t, []string{"failing"}, failures, "cancellation is not a failure")
	mu.Unlock()
}

func TestGroup_StopWaitsForTasks(t *testing.T) {
	t.Parallel()

	group := NewGroup(context.Background(), discardLogger())

	var finished atomic.Int32
	for i := 0; i < 5; i++ {
		group.Go("worker", func(ctx context.Context) error {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			finished.Add(1)
			return nil
		})
	}

	group.Stop()

	assert.Equal(t, int32(5), finished.Load())
}

func TestGroup_GoAfterStopIsRefused(t *testing.T) {
	t.Parallel()

	group := NewGroup(context.Background(), discardLogger())
	group.Stop()
	group.Stop()

	ran := false
	ok := group.Go("late", func(ctx context.Context) error {
		ran = true
		return nil
	})

	assert.False(t, ok)
	assert.False(t, ran)
	assert.True(t, group.Stopped())
	assert.ErrorIs(t, group.Context().Err(), context.Canceled)
}

func TestGroup_PanicIsReported(t *testing.T) {
	t.Parallel()

	group := NewGroup(context.Background(), discardLogger())

	reported := make(chan error, 1)
	group.SetErrorHandler(func(name string, err error) {
		reported <- err
	})

	group.Go("panicky", func(ctx context.Context) error {
		panic("kaboom")
	})

	select {
	case err := <-reported:
		assert.Contains(t, err.Error(), "kaboom")
	case <-time.After(time.Second):
		t.Fatal("panic was not reported")
	}

	group.Stop()
}

func TestGroup_ParentCancellation(t *testing.T) {
	t.Parallel()

	parent, cancel := context.WithCancel(context.Background())
	group := NewGroup(parent, discardLogger())

	cancel()

	select {
	case <-group.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("group context not cancelled with parent")
	}
	group.Stop()
}
