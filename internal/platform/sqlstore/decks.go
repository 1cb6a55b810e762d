package sqlstore

import (
	"context"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/platform/logger"
	"github.com/phrazzld/welk/internal/store"
)

// CreateDeck implements store.DeckRepository.
func (s *Store) CreateDeck(
	ctx context.Context,
	name, description string,
	parentID uuid.UUID,
) (*domain.Deck, error) {
	deck, err := domain.NewDeck(name, description, parentID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}
	// The stored precision is milliseconds.
	deck.Created = fromMillis(toMillis(deck.Created))
	deck.LastModified = deck.Created

	s.mu.Lock()
	defer s.mu.Unlock()

	err = s.runInTransaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if parentID != uuid.Nil {
			exists, err := s.deckExists(ctx, tx, parentID)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("parent %s: %w", parentID, store.ErrDeckNotFound)
			}
		}

		query, args, err := s.sb.Select("COALESCE(MAX(seq), 0) + 1").From("decks").ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}
		var seq int64
		if err := sqlx.GetContext(ctx, tx, &seq, query, args...); err != nil {
			return wrapError("deck", "create", "failed to allocate deck sequence", err)
		}

		var parent any
		if parentID != uuid.Nil {
			parent = parentID.String()
		}
		query, args, err = s.sb.Insert("decks").
			Columns("id", "seq", "name", "description", "parent_id", "created_at", "updated_at").
			Values(deck.ID.String(), seq, deck.Name, deck.Description, parent,
				toMillis(deck.Created), toMillis(deck.LastModified)).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return wrapError("deck", "create", "failed to insert deck", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishLocked(ctx)
	logger.FromContextOrDefault(ctx, s.logger).Debug("deck stored",
		slog.String("deck_id", deck.ID.String()))
	return deck, nil
}

// DeleteDeck implements store.DeckRepository. The subtree is resolved in Go
// so the cascade does not depend on the driver enforcing foreign keys.
func (s *Store) DeleteDeck(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		decks, err := s.loadDecks(ctx, tx)
		if err != nil {
			return err
		}
		if _, ok := domain.FindDeck(decks, id); !ok {
			return store.ErrDeckNotFound
		}

		doomed := domain.Subtree(decks, id)
		deckIDs := make([]string, 0, len(doomed))
		for deckID := range doomed {
			deckIDs = append(deckIDs, deckID.String())
		}

		query, args, err := s.sb.Select("id").From("cards").Where(sq.Eq{"deck_id": deckIDs}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}
		var cardIDs []string
		if err := sqlx.SelectContext(ctx, tx, &cardIDs, query, args...); err != nil {
			return wrapError("deck", "delete", "failed to list cards", err)
		}

		deletes := []sq.DeleteBuilder{
			s.sb.Delete("cards").Where(sq.Eq{"deck_id": deckIDs}),
			s.sb.Delete("decks").Where(sq.Eq{"id": deckIDs}),
		}
		if len(cardIDs) > 0 {
			deletes = append([]sq.DeleteBuilder{
				s.sb.Delete("card_reviews").Where(sq.Eq{"card_id": cardIDs}),
			}, deletes...)
		}
		for _, del := range deletes {
			query, args, err := del.ToSql()
			if err != nil {
				return fmt.Errorf("failed to build delete: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return wrapError("deck", "delete", "failed to delete deck", err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publishLocked(ctx)
	return nil
}

// GetChildDecks implements store.DeckRepository.
func (s *Store) GetChildDecks(ctx context.Context, parentID uuid.UUID) ([]domain.Deck, error) {
	decks, err := s.loadDecks(ctx, s.db)
	if err != nil {
		return nil, err
	}
	children := []domain.Deck{}
	for _, d := range decks {
		if d.ParentID == parentID {
			children = append(children, d)
		}
	}
	return children, nil
}

// touch marks a deck modified after a write to one of its cards.
func (s *Store) touch(ctx context.Context, tx *sqlx.Tx, deckID uuid.UUID) error {
	query, args, err := s.sb.Update("decks").
		Set("updated_at", toMillis(s.now())).
		Where(sq.Eq{"id": deckID.String()}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return wrapError("deck", "touch", "failed to touch deck", err)
	}
	return nil
}
