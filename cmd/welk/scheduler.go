package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// dueRefresher periodically re-evaluates which cards are due, so cards whose
// next review passes while a session is open become visible.
type dueRefresher struct {
	scheduler *gocron.Scheduler
	logger    *slog.Logger
}

func newDueRefresher(every time.Duration, refresh func(), logger *slog.Logger) (*dueRefresher, error) {
	if every <= 0 {
		return nil, fmt.Errorf("due refresh interval must be positive, got %s", every)
	}

	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	if _, err := s.Every(every).Do(refresh); err != nil {
		return nil, fmt.Errorf("failed to schedule due refresh: %w", err)
	}
	return &dueRefresher{
		scheduler: s,
		logger:    logger.With(slog.String("component", "due_refresher")),
	}, nil
}

// Start runs the schedule in the background.
func (r *dueRefresher) Start() {
	r.scheduler.StartAsync()
	r.logger.Debug("due refresh scheduled")
}

// Stop ends the schedule. It is safe to call when Start was never called.
func (r *dueRefresher) Stop() {
	if r.scheduler.IsRunning() {
		r.scheduler.Stop()
	}
}
