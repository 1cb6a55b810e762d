package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/store"
	"github.com/phrazzld/welk/internal/stream"
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store keeps decks, cards and users in memory.
//
// Every write publishes the deck list before it returns, so a watcher sees
// the change no later than the writer's next read.
type Store struct {
	mu sync.Mutex
	// decks are kept in creation order.
	decks []domain.Deck
	// cards are keyed by deck and ordered by position.
	cards map[uuid.UUID][]domain.Card
	users map[string]domain.User
	now   func() time.Time

	deckList *stream.State[[]domain.Deck]
}

var (
	_ store.CardRepository = (*Store)(nil)
	_ store.DeckRepository = (*Store)(nil)
	_ store.UserStore      = (*Store)(nil)
)

// New creates an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		cards: make(map[uuid.UUID][]domain.Card),
		users: make(map[string]domain.User),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.deckList = stream.NewState([]domain.Deck{}, stream.WithClone(func(d []domain.Deck) []domain.Deck {
		return slices.Clone(d)
	}))
	return s
}

// Close ends every open watch stream.
func (s *Store) Close() {
	s.deckList.Close()
}

// Watchers returns the number of open WatchDecks and WatchDeck streams.
func (s *Store) Watchers() int {
	return s.deckList.Subscribers()
}

func (s *Store) publishLocked() {
	s.deckList.Set(slices.Clone(s.decks))
}

func (s *Store) deckIndexLocked(id uuid.UUID) int {
	return slices.IndexFunc(s.decks, func(d domain.Deck) bool { return d.ID == id })
}

// touchLocked refreshes the denormalized fields of a deck after a card write.
func (s *Store) touchLocked(deckID uuid.UUID) {
	if i := s.deckIndexLocked(deckID); i >= 0 {
		s.decks[i].CardCount = len(s.cards[deckID])
		s.decks[i].LastModified = s.now().UTC()
	}
	s.publishLocked()
}

func (s *Store) cardIndexLocked(cardID, deckID uuid.UUID) int {
	return slices.IndexFunc(s.cards[deckID], func(c domain.Card) bool { return c.ID == cardID })
}

// WatchDecks implements store.DeckRepository.
func (s *Store) WatchDecks(ctx context.Context) (<-chan []domain.Deck, error) {
	return s.deckList.Subscribe(ctx), nil
}

// WatchDeck implements store.DeckRepository.
func (s *Store) WatchDeck(ctx context.Context, id uuid.UUID) (<-chan domain.Deck, error) {
	s.mu.Lock()
	exists := s.deckIndexLocked(id) >= 0
	s.mu.Unlock()
	if !exists {
		return nil, store.ErrDeckNotFound
	}

	deck := stream.Map(ctx, s.deckList.Subscribe(ctx), func(decks []domain.Deck) (domain.Deck, bool) {
		return domain.FindDeck(decks, id)
	})
	return stream.Distinct(ctx, deck), nil
}

// CreateDeck implements store.DeckRepository.
func (s *Store) CreateDeck(
	ctx context.Context,
	name, description string,
	parentID uuid.UUID,
) (*domain.Deck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if parentID != uuid.Nil && s.deckIndexLocked(parentID) < 0 {
		return nil, fmt.Errorf("parent %s: %w", parentID, store.ErrDeckNotFound)
	}

	deck, err := domain.NewDeck(name, description, parentID, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.decks = append(s.decks, *deck)
	s.publishLocked()
	return deck, nil
}

// DeleteDeck implements store.DeckRepository.
func (s *Store) DeleteDeck(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deckIndexLocked(id) < 0 {
		return store.ErrDeckNotFound
	}

	doomed := domain.Subtree(s.decks, id)
	s.decks = slices.DeleteFunc(s.decks, func(d domain.Deck) bool {
		_, ok := doomed[d.ID]
		return ok
	})
	for deckID := range doomed {
		delete(s.cards, deckID)
	}

	s.publishLocked()
	return nil
}

// GetChildDecks implements store.DeckRepository.
func (s *Store) GetChildDecks(ctx context.Context, parentID uuid.UUID) ([]domain.Deck, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	children := []domain.Deck{}
	for _, d := range s.decks {
		if d.ParentID == parentID {
			children = append(children, d)
		}
	}
	return children, nil
}

// GetCardsByDeckID implements store.CardRepository.
func (s *Store) GetCardsByDeckID(ctx context.Context, deckID uuid.UUID) ([]domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cards := make([]domain.Card, 0, len(s.cards[deckID]))
	for _, c := range s.cards[deckID] {
		cards = append(cards, c.Clone())
	}
	return cards, nil
}

// CreateCard implements store.CardRepository. The stored position is the
// deck's card count, which is what a draft carries unless the deck changed
// while it was being edited.
func (s *Store) CreateCard(ctx context.Context, draft domain.Draft) (*domain.Card, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.deckIndexLocked(draft.DeckID) < 0 {
		return nil, store.ErrDeckNotFound
	}

	draft.Position = len(s.cards[draft.DeckID])
	card, err := domain.NewCard(draft, s.now())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	s.cards[draft.DeckID] = append(s.cards[draft.DeckID], *card)
	s.touchLocked(draft.DeckID)

	created := card.Clone()
	return &created, nil
}

// UpdateCardContent implements store.CardRepository.
func (s *Store) UpdateCardContent(ctx context.Context, cardID, deckID uuid.UUID, front, back string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.cardIndexLocked(cardID, deckID)
	if i < 0 {
		return store.ErrCardNotFound
	}

	cards := slices.Clone(s.cards[deckID])
	cards[i] = cards[i].WithContent(front, back, s.now())
	s.cards[deckID] = cards
	s.touchLocked(deckID)
	return nil
}

// DeleteCard implements store.CardRepository.
func (s *Store) DeleteCard(ctx context.Context, cardID, deckID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.cardIndexLocked(cardID, deckID)
	if i < 0 {
		return store.ErrCardNotFound
	}

	removed := s.cards[deckID][i].Position
	cards := slices.Delete(slices.Clone(s.cards[deckID]), i, i+1)
	for j := range cards {
		if cards[j].Position > removed {
			cards[j].Position--
		}
	}
	s.cards[deckID] = cards
	s.touchLocked(deckID)
	return nil
}

// AddCardReview implements store.CardRepository.
func (s *Store) AddCardReview(
	ctx context.Context,
	cardID, deckID uuid.UUID,
	review domain.CardReview,
	nextReview time.Time,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.cardIndexLocked(cardID, deckID)
	if i < 0 {
		return store.ErrCardNotFound
	}

	reviewed, err := s.cards[deckID][i].WithReview(review, nextReview)
	if err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	cards := slices.Clone(s.cards[deckID])
	cards[i] = reviewed
	s.cards[deckID] = cards
	s.touchLocked(deckID)
	return nil
}

// Create implements store.UserStore.
func (s *Store) Create(ctx context.Context, user *domain.User) error {
	if user.HashedPassword == "" {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, domain.ErrEmptyHashedPassword)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.users[user.Username]; taken {
		return store.ErrUsernameExists
	}
	stored := *user
	stored.Password = ""
	s.users[user.Username] = stored
	return nil
}

// GetByUsername implements store.UserStore.
func (s *Store) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	return &user, nil
}
