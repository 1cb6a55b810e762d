package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/phrazzld/welk/internal/animation"
	"github.com/phrazzld/welk/internal/api"
	"github.com/phrazzld/welk/internal/api/middleware"
	"github.com/phrazzld/welk/internal/config"
	"github.com/phrazzld/welk/internal/domain/srs"
	"github.com/phrazzld/welk/internal/importer"
	"github.com/phrazzld/welk/internal/platform/memory"
	"github.com/phrazzld/welk/internal/platform/sqlstore"
	"github.com/phrazzld/welk/internal/service/auth"
	"github.com/phrazzld/welk/internal/session"
	"github.com/phrazzld/welk/internal/store"
)

// repository is what a storage backend provides.
type repository interface {
	store.CardRepository
	store.DeckRepository
	store.UserStore
}

// application holds the wired components and owns their shutdown.
type application struct {
	config    *config.Config
	logger    *slog.Logger
	repo      repository
	session   *session.Session
	auth      *auth.Service
	scheduler *dueRefresher
	router    http.Handler
	closeRepo func() error
}

// newApplication opens the configured store and wires every component.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*application, error) {
	repo, closeRepo, err := openRepository(ctx, cfg.Database, logger)
	if err != nil {
		return nil, err
	}

	app, err := wire(cfg, logger, repo)
	if err != nil {
		if cerr := closeRepo(); cerr != nil {
			logger.Error("failed to close store", slog.String("error", cerr.Error()))
		}
		return nil, err
	}
	app.closeRepo = closeRepo
	return app, nil
}

func openRepository(
	ctx context.Context,
	cfg config.DatabaseConfig,
	logger *slog.Logger,
) (repository, func() error, error) {
	if cfg.Driver == config.DriverMemory {
		logger.Warn("using the in-memory store, data is lost on exit")
		st := memory.New()
		return st, func() error { st.Close(); return nil }, nil
	}

	st, err := sqlstore.Open(ctx, cfg, sqlstore.WithLogger(logger))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
	}
	return st, st.Close, nil
}

func wire(cfg *config.Config, logger *slog.Logger, repo repository) (*application, error) {
	algorithm, err := srs.New(cfg.SRS.Algorithm, fixedIntervals(cfg.SRS), srs.NewDefaultParams())
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduling algorithm: %w", err)
	}

	swipe := time.Duration(cfg.Study.SwipeAnimationMS) * time.Millisecond
	sess := session.New(repo, repo, algorithm, animation.NewController(swipe, logger), session.Options{
		Logger: logger,
	})

	authSvc := auth.NewService(repo, auth.NewBcryptVerifier(), logger)
	tokens, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create token service: %w", err)
	}

	router := api.NewRouter(api.RouterDeps{
		Logger:   logger,
		Auth:     api.NewAuthHandler(authSvc, tokens, time.Duration(cfg.Auth.TokenLifetimeMinutes)*time.Minute, logger),
		Session:  api.NewSessionHandler(sess, logger),
		Decks:    api.NewDeckHandler(sess, importer.New(repo, logger), logger),
		AuthGate: middleware.NewAuthMiddleware(tokens, authSvc),
	})

	refresher, err := newDueRefresher(time.Duration(cfg.Study.DueRefreshSeconds)*time.Second, sess.RefreshDue, logger)
	if err != nil {
		return nil, err
	}

	return &application{
		config:    cfg,
		logger:    logger,
		repo:      repo,
		session:   sess,
		auth:      authSvc,
		scheduler: refresher,
		router:    router,
		closeRepo: func() error { return nil },
	}, nil
}

func fixedIntervals(cfg config.SRSConfig) srs.FixedIntervalParams {
	return srs.FixedIntervalParams{
		Again: time.Duration(cfg.AgainMinutes) * time.Minute,
		Hard:  time.Duration(cfg.HardMinutes) * time.Minute,
		Good:  time.Duration(cfg.GoodMinutes) * time.Minute,
		Easy:  time.Duration(cfg.EasyMinutes) * time.Minute,
	}
}

// run starts the session gate, the due refresher and the HTTP server and
// blocks until ctx is cancelled or the server fails.
func (app *application) run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	gateDone := make(chan error, 1)
	go func() {
		gateDone <- session.NewGate(app.auth, app.session, app.logger).Run(ctx)
	}()

	app.scheduler.Start()

	serveErr := app.serve(ctx)

	cancel()
	if err := <-gateDone; err != nil && !errors.Is(err, context.Canceled) {
		app.logger.Error("session gate failed", slog.String("error", err.Error()))
	}
	app.cleanup()
	return serveErr
}

// cleanup stops background work and releases the store.
func (app *application) cleanup() {
	app.scheduler.Stop()
	app.session.Stop()
	if err := app.closeRepo(); err != nil {
		app.logger.Error("failed to close store", slog.String("error", err.Error()))
	}
	app.logger.Info("shutdown completed")
}
