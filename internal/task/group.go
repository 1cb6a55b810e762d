package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// Group runs named background functions that share one cancellable context.
//
// A failing function is reported to the error handler and does not affect its
// siblings. Once Stop has been called the group refuses new work.
type Group struct {
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup

	mu      sync.Mutex
	stopped bool

	logger     *slog.Logger
	errHandler func(name string, err error)
}

// NewGroup creates a Group whose context derives from parent.
func NewGroup(parent context.Context, logger *slog.Logger) *Group {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "task_group"))

	ctx, cancel := context.WithCancel(parent)

	return &Group{
		ctx:        ctx,
		cancelFunc: cancel,
		logger:     logger,
		errHandler: func(name string, err error) {
			// Default error handler just logs the error
			logger.Error("task failed",
				slog.String("task", name),
				slog.String("error", err.Error()))
		},
	}
}

// SetErrorHandler allows setting a custom error handler function.
// It must be called before the first Go.
func (g *Group) SetErrorHandler(handler func(name string, err error)) {
	g.errHandler = handler
}

// Context returns the context shared by every function of the group.
func (g *Group) Context() context.Context {
	return g.ctx
}

// Go starts fn in a new goroutine. It reports false, without running fn,
// when the group has already been stopped.
func (g *Group) Go(name string, fn func(ctx context.Context) error) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		g.logger.Debug("rejecting task on stopped group", slog.String("task", name))
		return false
	}

	g.wg.Add(1)
	go g.run(name, fn)
	return true
}

func (g *Group) run(name string, fn func(ctx context.Context) error) {
	defer g.wg.Done()

	defer func() {
		if p := recover(); p != nil {
			g.errHandler(name, fmt.Errorf("panic: %v", p))
		}
	}()

	err := fn(g.ctx)
	if err == nil {
		return
	}
	if errors.Is(err, context.Canceled) && g.ctx.Err() != nil {
		g.logger.Debug("task cancelled", slog.String("task", name))
		return
	}
	g.errHandler(name, err)
}

// Stop cancels the group context and waits for every running function to
// return. It is safe to call more than once but must not be called from a
// function running in the group.
func (g *Group) Stop() {
	g.mu.Lock()
	g.stopped = true
	g.mu.Unlock()

	g.cancelFunc()
	g.wg.Wait()
}

// Stopped reports whether Stop has been called.
func (g *Group) Stopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}
