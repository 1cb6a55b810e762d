package stream

import (
	"context"
	"sync"
)

// Option configures a State.
type Option[T any] func(*State[T])

// WithClone sets the function used to copy a value before it is handed to a
// subscriber or returned from Get. Use it when T holds slices or maps that
// the owner keeps mutating.
func WithClone[T any](clone func(T) T) Option[T] {
	return func(s *State[T]) {
		s.clone = clone
	}
}

// State holds a value and fans every change out to its subscribers.
// The zero value is not usable; call NewState.
type State[T any] struct {
	mu     sync.RWMutex
	value  T
	clone  func(T) T
	subs   map[*subscription[T]]struct{}
	closed bool
	done   chan struct{}
}

type subscription[T any] struct {
	ch chan T
}

// NewState creates a State holding initial.
func NewState[T any](initial T, opts ...Option[T]) *State[T] {
	s := &State[T]{
		value: initial,
		subs:  make(map[*subscription[T]]struct{}),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *State[T]) copyOf(v T) T {
	if s.clone == nil {
		return v
	}
	return s.clone(v)
}

// Get returns the current value.
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.copyOf(s.value)
}

// Set replaces the value and notifies subscribers.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = v
	s.publishLocked()
}

// Update applies fn to the current value atomically, stores the result,
// notifies subscribers and returns the new value.
func (s *State[T]) Update(fn func(T) T) T {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = fn(s.value)
	s.publishLocked()
	return s.copyOf(s.value)
}

// publishLocked must be called with the write lock held. Each subscriber
// channel has room for one value, so dropping the stale value first means
// the send never blocks.
func (s *State[T]) publishLocked() {
	for sub := range s.subs {
		select {
		case <-sub.ch:
		default:
		}
		sub.ch <- s.copyOf(s.value)
	}
}

// Subscribe returns a channel that receives the current value immediately
// and every later value. The channel is closed when ctx is done or the
// State is closed.
func (s *State[T]) Subscribe(ctx context.Context) <-chan T {
	sub := &subscription[T]{ch: make(chan T, 1)}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(sub.ch)
		return sub.ch
	}
	sub.ch <- s.copyOf(s.value)
	s.subs[sub] = struct{}{}
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-s.done:
		}
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[sub]; ok {
			delete(s.subs, sub)
			close(sub.ch)
		}
	}()

	return sub.ch
}

// Subscribers returns the number of live subscriptions.
func (s *State[T]) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Close ends every subscription. Later Subscribe calls return a closed
// channel; Set and Update keep working but notify nobody.
func (s *State[T]) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.done)
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub.ch)
	}
}
