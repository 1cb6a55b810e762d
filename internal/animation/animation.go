// Package animation models the swipe-animation port the study session drives.
// A swipe is requested for a card index; once the animation finishes the
// manager publishes a completion Signal which the session turns into a grade.
package animation

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/welk/internal/stream"
)

// IdleIndex is the CardIndex of the idle signal.
const IdleIndex = -1

// Signal reports a finished swipe. Positive is true for a right swipe.
type Signal struct {
	CardIndex int
	Positive  bool
}

// Idle is the signal published when no swipe is pending.
var Idle = Signal{CardIndex: IdleIndex}

// IsIdle reports whether s is the idle sentinel.
func (s Signal) IsIdle() bool {
	return s.CardIndex == IdleIndex
}

// Manager is the animation port.
type Manager interface {
	// Signals streams completion signals, starting with the current one.
	Signals(ctx context.Context) <-chan Signal
	// SwipeRight animates a positive swipe of the card at index.
	SwipeRight(index int)
	// SwipeLeft animates a negative swipe of the card at index.
	SwipeLeft(index int)
	// Reset returns the manager to Idle and abandons a pending swipe.
	Reset()
}

var _ Manager = (*Controller)(nil)

// Controller is a headless Manager. A swipe completes after a fixed
// duration; a zero duration completes it immediately.
type Controller struct {
	duration time.Duration
	state    *stream.State[Signal]
	logger   *slog.Logger

	mu    sync.Mutex
	timer *time.Timer
	seq   uint64
}

// NewController creates a Controller whose swipes take duration.
func NewController(duration time.Duration, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		duration: duration,
		state:    stream.NewState(Idle),
		logger:   logger.With(slog.String("component", "animation")),
	}
}

// Signals implements Manager.
func (c *Controller) Signals(ctx context.Context) <-chan Signal {
	return c.state.Subscribe(ctx)
}

// Current returns the latest signal.
func (c *Controller) Current() Signal {
	return c.state.Get()
}

// SwipeRight implements Manager.
func (c *Controller) SwipeRight(index int) {
	c.swipe(Signal{CardIndex: index, Positive: true})
}

// SwipeLeft implements Manager.
func (c *Controller) SwipeLeft(index int) {
	c.swipe(Signal{CardIndex: index, Positive: false})
}

func (c *Controller) swipe(sig Signal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	c.seq++
	c.logger.Debug("swipe started",
		slog.Int("card_index", sig.CardIndex),
		slog.Bool("positive", sig.Positive))

	if c.duration <= 0 {
		c.state.Set(sig)
		return
	}

	seq := c.seq
	c.timer = time.AfterFunc(c.duration, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		// A Reset or newer swipe since scheduling wins.
		if c.seq != seq {
			return
		}
		c.timer = nil
		c.state.Set(sig)
	})
}

// Reset implements Manager.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	c.seq++
	c.state.Set(Idle)
}

func (c *Controller) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}
