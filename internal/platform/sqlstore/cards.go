package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/store"
)

type cardRow struct {
	ID         string        `db:"id"`
	DeckID     string        `db:"deck_id"`
	Front      string        `db:"front"`
	Back       string        `db:"back"`
	Position   int           `db:"position"`
	NextReview sql.NullInt64 `db:"next_review"`
	CreatedAt  int64         `db:"created_at"`
	UpdatedAt  int64         `db:"updated_at"`
}

type reviewRow struct {
	CardID     string `db:"card_id"`
	Seq        int    `db:"seq"`
	ReviewedAt int64  `db:"reviewed_at"`
	Grade      string `db:"grade"`
}

func (r cardRow) toDomain(reviews []domain.CardReview) (domain.Card, error) {
	id, err := uuid.Parse(r.ID)
	if err != nil {
		return domain.Card{}, fmt.Errorf("corrupt card id %q: %w", r.ID, err)
	}
	deckID, err := uuid.Parse(r.DeckID)
	if err != nil {
		return domain.Card{}, fmt.Errorf("corrupt deck id %q: %w", r.DeckID, err)
	}
	card := domain.Card{
		ID:        id,
		DeckID:    deckID,
		Front:     r.Front,
		Back:      r.Back,
		Position:  r.Position,
		Reviews:   reviews,
		CreatedAt: fromMillis(r.CreatedAt),
		UpdatedAt: fromMillis(r.UpdatedAt),
	}
	if r.NextReview.Valid {
		next := fromMillis(r.NextReview.Int64)
		card.NextReview = &next
	}
	return card, nil
}

// GetCardsByDeckID implements store.CardRepository.
func (s *Store) GetCardsByDeckID(ctx context.Context, deckID uuid.UUID) ([]domain.Card, error) {
	query, args, err := s.sb.
		Select("id", "deck_id", "front", "back", "position", "next_review", "created_at", "updated_at").
		From("cards").
		Where(sq.Eq{"deck_id": deckID.String()}).
		OrderBy("position").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	var rows []cardRow
	if err := sqlx.SelectContext(ctx, s.db, &rows, query, args...); err != nil {
		return nil, wrapError("card", "list", "failed to load cards", err)
	}
	if len(rows) == 0 {
		return []domain.Card{}, nil
	}

	ids := make([]string, len(rows))
	for i, r := range rows {
		ids[i] = r.ID
	}
	query, args, err = s.sb.
		Select("card_id", "seq", "reviewed_at", "grade").
		From("card_reviews").
		Where(sq.Eq{"card_id": ids}).
		OrderBy("card_id", "seq").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build query: %w", err)
	}
	var reviewRows []reviewRow
	if err := sqlx.SelectContext(ctx, s.db, &reviewRows, query, args...); err != nil {
		return nil, wrapError("card", "list", "failed to load reviews", err)
	}
	reviews := make(map[string][]domain.CardReview, len(rows))
	for _, r := range reviewRows {
		grade, err := domain.ParseReviewGrade(r.Grade)
		if err != nil {
			return nil, fmt.Errorf("corrupt review of card %s: %w", r.CardID, err)
		}
		reviews[r.CardID] = append(reviews[r.CardID], domain.CardReview{
			Timestamp: fromMillis(r.ReviewedAt),
			Grade:     grade,
		})
	}

	cards := make([]domain.Card, 0, len(rows))
	for _, r := range rows {
		history := reviews[r.ID]
		if history == nil {
			history = []domain.CardReview{}
		}
		c, err := r.toDomain(history)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	return cards, nil
}

// CreateCard implements store.CardRepository. The stored position is the
// deck's card count at insert time.
func (s *Store) CreateCard(ctx context.Context, draft domain.Draft) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var card *domain.Card
	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		exists, err := s.deckExists(ctx, tx, draft.DeckID)
		if err != nil {
			return err
		}
		if !exists {
			return store.ErrDeckNotFound
		}

		query, args, err := s.sb.Select("COUNT(*)").From("cards").
			Where(sq.Eq{"deck_id": draft.DeckID.String()}).ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}
		if err := sqlx.GetContext(ctx, tx, &draft.Position, query, args...); err != nil {
			return wrapError("card", "count", "failed to count cards", err)
		}

		now := fromMillis(toMillis(s.now()))
		card, err = domain.NewCard(draft, now)
		if err != nil {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
		}

		query, args, err = s.sb.Insert("cards").
			Columns("id", "deck_id", "front", "back", "position", "created_at", "updated_at").
			Values(card.ID.String(), card.DeckID.String(), card.Front, card.Back, card.Position,
				toMillis(card.CreatedAt), toMillis(card.UpdatedAt)).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return wrapError("card", "create", "failed to insert card", err)
		}
		return s.touch(ctx, tx, draft.DeckID)
	})
	if err != nil {
		return nil, err
	}

	s.publishLocked(ctx)
	return card, nil
}

// UpdateCardContent implements store.CardRepository.
func (s *Store) UpdateCardContent(ctx context.Context, cardID, deckID uuid.UUID, front, back string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		query, args, err := s.sb.Update("cards").
			Set("front", front).
			Set("back", back).
			Set("updated_at", toMillis(s.now())).
			Where(sq.Eq{"id": cardID.String(), "deck_id": deckID.String()}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update: %w", err)
		}
		result, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return wrapError("card", "update", "failed to update card", err)
		}
		if err := checkRowsAffected(result, store.ErrCardNotFound); err != nil {
			return err
		}
		return s.touch(ctx, tx, deckID)
	})
	if err != nil {
		return err
	}

	s.publishLocked(ctx)
	return nil
}

// cardPosition returns the position of a card, or store.ErrCardNotFound.
func (s *Store) cardPosition(ctx context.Context, tx *sqlx.Tx, cardID, deckID uuid.UUID) (int, error) {
	query, args, err := s.sb.Select("position").From("cards").
		Where(sq.Eq{"id": cardID.String(), "deck_id": deckID.String()}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build query: %w", err)
	}
	var position int
	if err := sqlx.GetContext(ctx, tx, &position, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, store.ErrCardNotFound
		}
		return 0, wrapError("card", "get", "failed to look up card", err)
	}
	return position, nil
}

// DeleteCard implements store.CardRepository.
func (s *Store) DeleteCard(ctx context.Context, cardID, deckID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		position, err := s.cardPosition(ctx, tx, cardID, deckID)
		if err != nil {
			return err
		}

		statements := []sq.Sqlizer{
			s.sb.Delete("card_reviews").Where(sq.Eq{"card_id": cardID.String()}),
			s.sb.Delete("cards").Where(sq.Eq{"id": cardID.String()}),
			s.sb.Update("cards").
				Set("position", sq.Expr("position - 1")).
				Where(sq.And{
					sq.Eq{"deck_id": deckID.String()},
					sq.Gt{"position": position},
				}),
		}
		for _, stmt := range statements {
			query, args, err := stmt.ToSql()
			if err != nil {
				return fmt.Errorf("failed to build statement: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return wrapError("card", "delete", "failed to delete card", err)
			}
		}
		return s.touch(ctx, tx, deckID)
	})
	if err != nil {
		return err
	}

	s.publishLocked(ctx)
	return nil
}

type reviewTail struct {
	Last sql.NullInt64 `db:"last"`
	N    int           `db:"n"`
}

// AddCardReview implements store.CardRepository.
func (s *Store) AddCardReview(
	ctx context.Context,
	cardID, deckID uuid.UUID,
	review domain.CardReview,
	nextReview time.Time,
) error {
	if !review.Grade.Valid() {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrInvalidReviewGrade)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.runInTransaction(ctx, func(ctx context.Context, tx *sqlx.Tx) error {
		if _, err := s.cardPosition(ctx, tx, cardID, deckID); err != nil {
			return err
		}

		query, args, err := s.sb.Select("MAX(reviewed_at) AS last", "COUNT(*) AS n").
			From("card_reviews").
			Where(sq.Eq{"card_id": cardID.String()}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build query: %w", err)
		}
		var tail reviewTail
		if err := sqlx.GetContext(ctx, tx, &tail, query, args...); err != nil {
			return wrapError("card", "review", "failed to read review history", err)
		}
		at := toMillis(review.Timestamp)
		if tail.Last.Valid && at < tail.Last.Int64 {
			return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrReviewOutOfOrder)
		}

		statements := []sq.Sqlizer{
			s.sb.Insert("card_reviews").
				Columns("card_id", "seq", "reviewed_at", "grade").
				Values(cardID.String(), tail.N, at, string(review.Grade)),
			s.sb.Update("cards").
				Set("next_review", toMillis(nextReview)).
				Set("updated_at", at).
				Where(sq.Eq{"id": cardID.String()}),
		}
		for _, stmt := range statements {
			query, args, err := stmt.ToSql()
			if err != nil {
				return fmt.Errorf("failed to build statement: %w", err)
			}
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return wrapError("card", "review", "failed to record review", err)
			}
		}
		return s.touch(ctx, tx, deckID)
	})
	if err != nil {
		return err
	}

	s.publishLocked(ctx)
	return nil
}
