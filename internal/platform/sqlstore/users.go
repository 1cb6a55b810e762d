package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/store"
)

type userRow struct {
	ID             string `db:"id"`
	Username       string `db:"username"`
	HashedPassword string `db:"hashed_password"`
	CreatedAt      int64  `db:"created_at"`
}

// Create implements store.UserStore.
func (s *Store) Create(ctx context.Context, user *domain.User) error {
	if user.HashedPassword == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyHashedPassword)
	}

	query, args, err := s.sb.Insert("users").
		Columns("id", "username", "hashed_password", "created_at").
		Values(user.ID.String(), user.Username, user.HashedPassword, toMillis(user.CreatedAt)).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build insert: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		err = mapError(err)
		if store.IsDuplicateError(err) {
			return store.ErrUsernameExists
		}
		return store.NewStoreError("user", "create", "failed to insert user", err)
	}
	return nil
}

// GetByUsername implements store.UserStore.
func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	query, args, err := s.sb.Select("id", "username", "hashed_password", "created_at").
		From("users").
		Where(sq.Eq{"username": username}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}

	var row userRow
	if err := sqlx.GetContext(ctx, s.db, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrUserNotFound
		}
		return nil, wrapError("user", "get", "failed to load user", err)
	}

	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, fmt.Errorf("corrupt user id %q: %w", row.ID, err)
	}
	return &domain.User{
		ID:             id,
		Username:       row.Username,
		HashedPassword: row.HashedPassword,
		CreatedAt:      fromMillis(row.CreatedAt),
	}, nil
}
