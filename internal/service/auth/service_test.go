package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockUserStore struct {
	mock.Mock
}

func (m *mockUserStore) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockUserStore) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	args := m.Called(ctx, username)
	if u := args.Get(0); u != nil {
		return u.(*domain.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestService(t *testing.T) (*Service, *mockUserStore) {
	t.Helper()
	users := &mockUserStore{}
	return NewService(users, NewBcryptVerifierWithCost(4), nil), users
}

func storedUser(t *testing.T, username, password string) *domain.User {
	t.Helper()
	hash, err := NewBcryptVerifierWithCost(4).Hash(password)
	require.NoError(t, err)
	return &domain.User{
		ID:             uuid.New(),
		Username:       username,
		HashedPassword: hash,
		CreatedAt:      time.Now().UTC(),
	}
}

func TestService_Register(t *testing.T) {
	t.Parallel()

	t.Run("hashes the password", func(t *testing.T) {
		svc, users := newTestService(t)
		users.On("Create", mock.Anything, mock.MatchedBy(func(u *domain.User) bool {
			return u.Username == "alice" && u.Password == "" && u.HashedPassword != "" && u.HashedPassword != "password123"
		})).Return(nil).Once()

		user, err := svc.Register(context.Background(), "alice", "password123")
		require.NoError(t, err)
		assert.NoError(t, svc.verifier.Compare(user.HashedPassword, "password123"))
		users.AssertExpectations(t)
	})

	t.Run("rejects a short password", func(t *testing.T) {
		svc, users := newTestService(t)
		_, err := svc.Register(context.Background(), "alice", "short")
		assert.ErrorIs(t, err, domain.ErrPasswordTooShort)
		users.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("duplicate username", func(t *testing.T) {
		svc, users := newTestService(t)
		users.On("Create", mock.Anything, mock.Anything).Return(store.ErrUsernameExists).Once()

		_, err := svc.Register(context.Background(), "alice", "password123")
		assert.ErrorIs(t, err, store.ErrUsernameExists)
	})
}

func TestService_SignIn(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		password   string
		lookupErr  error
		wantErr    error
		wantFailed bool
	}{
		{name: "success", password: "password123"},
		{name: "wrong password", password: "wrong-password", wantErr: ErrInvalidCredentials, wantFailed: true},
		{name: "unknown user", password: "password123", lookupErr: store.ErrUserNotFound, wantErr: ErrInvalidCredentials, wantFailed: true},
		{name: "store failure", password: "password123", lookupErr: errors.New("disk on fire"), wantFailed: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, users := newTestService(t)
			user := storedUser(t, "alice", "password123")
			if tt.lookupErr != nil {
				users.On("GetByUsername", mock.Anything, "alice").Return(nil, tt.lookupErr)
			} else {
				users.On("GetByUsername", mock.Anything, "alice").Return(user, nil)
			}

			id, err := svc.SignIn(context.Background(), "alice", tt.password)

			status := svc.Current()
			assert.Equal(t, tt.wantFailed, status.LoginFailed)
			if tt.wantFailed {
				assert.Error(t, err)
				if tt.wantErr != nil {
					assert.ErrorIs(t, err, tt.wantErr)
				}
				assert.Equal(t, uuid.Nil, id)
				assert.False(t, status.SignedIn())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, user.ID, id)
			assert.Equal(t, user.ID, status.UserID)
			assert.Equal(t, "alice", status.Username)
			assert.NoError(t, svc.Authorize(user.ID))
		})
	}
}

func TestService_FailedSignInKeepsCurrentUser(t *testing.T) {
	t.Parallel()
	svc, users := newTestService(t)
	user := storedUser(t, "alice", "password123")
	users.On("GetByUsername", mock.Anything, "alice").Return(user, nil)

	_, err := svc.SignIn(context.Background(), "alice", "password123")
	require.NoError(t, err)
	_, err = svc.SignIn(context.Background(), "alice", "nope-nope")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	status := svc.Current()
	assert.Equal(t, user.ID, status.UserID)
	assert.True(t, status.LoginFailed)

	_, err = svc.SignIn(context.Background(), "alice", "password123")
	require.NoError(t, err)
	assert.False(t, svc.Current().LoginFailed)
}

func TestService_SignOutAndWatch(t *testing.T) {
	t.Parallel()
	svc, users := newTestService(t)
	user := storedUser(t, "alice", "password123")
	users.On("GetByUsername", mock.Anything, "alice").Return(user, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	statuses := svc.Watch(ctx)

	first := <-statuses
	assert.False(t, first.SignedIn())

	_, err := svc.SignIn(ctx, "alice", "password123")
	require.NoError(t, err)
	signedIn := <-statuses
	assert.Equal(t, user.ID, signedIn.UserID)

	svc.SignOut(ctx)
	signedOut := <-statuses
	assert.False(t, signedOut.SignedIn())
	assert.ErrorIs(t, svc.Authorize(user.ID), ErrNotSignedIn)

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-statuses:
			return !open
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond)
}

func TestService_AuthorizeOtherUser(t *testing.T) {
	t.Parallel()
	svc, users := newTestService(t)
	user := storedUser(t, "alice", "password123")
	users.On("GetByUsername", mock.Anything, "alice").Return(user, nil)

	_, err := svc.SignIn(context.Background(), "alice", "password123")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Authorize(uuid.New()), ErrNotSignedIn)
}
