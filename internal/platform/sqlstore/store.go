package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the pgx driver
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/welk/internal/config"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/redact"
	"github.com/phrazzld/welk/internal/store"
	"github.com/phrazzld/welk/internal/stream"
	"github.com/pressly/goose/v3"
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLogger sets the logger. Defaults to slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// Store is a SQL-backed CardRepository, DeckRepository and UserStore.
type Store struct {
	db     *sqlx.DB
	sb     sq.StatementBuilderType
	now    func() time.Time
	logger *slog.Logger

	// mu serializes writes so the published deck list follows write order.
	mu       sync.Mutex
	deckList *stream.State[[]domain.Deck]
}

var (
	_ store.CardRepository = (*Store)(nil)
	_ store.DeckRepository = (*Store)(nil)
	_ store.UserStore      = (*Store)(nil)
)

// Open connects to the database described by cfg, applies the migrations
// and loads the deck list. cfg.Driver must be sqlite or postgres.
func Open(ctx context.Context, cfg config.DatabaseConfig, opts ...Option) (*Store, error) {
	s := &Store{
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "sqlstore"))

	var (
		driverName string
		dsn        = cfg.URL
		dialect    goose.Dialect
	)
	switch cfg.Driver {
	case config.DriverSQLite:
		driverName = "sqlite"
		dsn = sqliteDSN(cfg.URL)
		dialect = goose.DialectSQLite3
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Question)
	case config.DriverPostgres:
		driverName = "pgx"
		dialect = goose.DialectPostgres
		s.sb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sqlx.ConnectContext(ctx, driverName, dsn)
	if err != nil {
		// Driver errors may echo the DSN.
		s.logger.Error("failed to connect to database",
			slog.String("driver", cfg.Driver),
			redact.Attr(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if cfg.Driver == config.DriverSQLite {
		// One writer at a time, and an in-memory database lives on one connection.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	if err := migrate(ctx, db.DB, dialect, s.logger); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.db = db

	decks, err := s.loadDecks(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.deckList = stream.NewState(decks, stream.WithClone(func(d []domain.Deck) []domain.Deck {
		return slices.Clone(d)
	}))

	s.logger.Info("database ready",
		slog.String("driver", cfg.Driver),
		slog.Int("decks", len(decks)))
	return s, nil
}

// sqliteDSN enables foreign keys and a busy timeout unless the DSN sets
// pragmas of its own.
func sqliteDSN(url string) string {
	if strings.Contains(url, "_pragma") {
		return url
	}
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// Close ends every watch stream and closes the database.
func (s *Store) Close() error {
	s.deckList.Close()
	return s.db.Close()
}

type deckRow struct {
	ID          string         `db:"id"`
	Seq         int64          `db:"seq"`
	Name        string         `db:"name"`
	Description string         `db:"description"`
	ParentID    sql.NullString `db:"parent_id"`
	CreatedAt   int64          `db:"created_at"`
	UpdatedAt   int64          `db:"updated_at"`
}

type deckCount struct {
	DeckID string `db:"deck_id"`
	N      int    `db:"n"`
}

func (r deckRow) toDomain(cardCount int) (domain.Deck, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Deck{}, fmt.Errorf("corrupt deck id %q: %w", r.ID, err)
	}
	parent := uuid.Nil
	if r.ParentID.Valid {
		if parent, err = uuid.Parse(r.ParentID.String); err != nil {
			return domain.Deck{}, fmt.Errorf("corrupt parent id %q: %w", r.ParentID.String, err)
		}
	}
	return domain.Deck{
		ID:           id,
		Name:         r.Name,
		Description:  r.Description,
		CardCount:    cardCount,
		ParentID:     parent,
		Created:      fromMillis(r.CreatedAt),
		LastModified: fromMillis(r.UpdatedAt),
	}, nil
}

// loadDecks reads every deck in creation order with its card count.
func (s *Store) loadDecks(ctx context.Context, q sqlx.QueryerContext) ([]domain.Deck, error) {
	query, args, err := s.sb.
		Select("id", "seq", "name", "description", "parent_id", "created_at", "updated_at").
		From("decks").
		OrderBy("seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build deck query: %w", err)
	}
	var rows []deckRow
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, wrapError("deck", "list", "failed to load decks", err)
	}

	query, args, err = s.sb.
		Select("deck_id", "COUNT(*) AS n").
		From("cards").
		GroupBy("deck_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build count query: %w", err)
	}
	var counts []deckCount
	if err := sqlx.SelectContext(ctx, q, &counts, query, args...); err != nil {
		return nil, wrapError("card", "count", "failed to count cards", err)
	}
	byDeck := make(map[string]int, len(counts))
	for _, c := range counts {
		byDeck[c.DeckID] = c.N
	}

	decks := make([]domain.Deck, 0, len(rows))
	for _, r := range rows {
		d, err := r.toDomain(byDeck[r.ID])
		if err != nil {
			return nil, err
		}
		decks = append(decks, d)
	}
	return decks, nil
}

// publishLocked re-reads the deck list and hands it to watchers. A failed
// read keeps the last published list.
func (s *Store) publishLocked(ctx context.Context) {
	decks, err := s.loadDecks(ctx, s.db)
	if err != nil {
		s.logger.Warn("failed to refresh deck list", slog.String("error", err.Error()))
		return
	}
	s.deckList.Set(decks)
}

// WatchDecks implements store.DeckRepository.
func (s *Store) WatchDecks(ctx context.Context) (<-chan []domain.Deck, error) {
	return s.deckList.Subscribe(ctx), nil
}

// WatchDeck implements store.DeckRepository.
func (s *Store) WatchDeck(ctx context.Context, id uuid.UUID) (<-chan domain.Deck, error) {
	exists, err := s.deckExists(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, store.ErrDeckNotFound
	}

	deck := stream.Map(ctx, s.deckList.Subscribe(ctx), func(decks []domain.Deck) (domain.Deck, bool) {
		return domain.FindDeck(decks, id)
	})
	return stream.Distinct(ctx, deck), nil
}

func (s *Store) deckExists(ctx context.Context, q sqlx.QueryerContext, id uuid.UUID) (bool, error) {
	query, args, err := s.sb.Select("COUNT(*)").From("decks").Where(sq.Eq{"id": id.String()}).ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build query: %w", err)
	}
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return false, wrapError("deck", "get", "failed to look up deck", err)
	}
	return n > 0, nil
}

func toMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}
