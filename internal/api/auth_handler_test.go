package api

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	// Cases run in order: the duplicate depends on the first registration.
	tests := []struct {
		name        string
		payload     any
		wantStatus  int
		wantMessage string
	}{
		{
			name:       "valid registration",
			payload:    map[string]any{"username": "ada", "password": "correct horse"},
			wantStatus: http.StatusCreated,
		},
		{
			name:        "duplicate username",
			payload:     map[string]any{"username": "ada", "password": "another one"},
			wantStatus:  http.StatusConflict,
			wantMessage: "Username already exists",
		},
		{
			name:        "password too short",
			payload:     map[string]any{"username": "grace", "password": "short"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid password: too short",
		},
		{
			name:        "missing username",
			payload:     map[string]any{"password": "correct horse"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid username: required field",
		},
		{
			name:        "username with whitespace",
			payload:     map[string]any{"username": "ada lovelace", "password": "correct horse"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Username may not contain whitespace",
		},
		{
			name:        "unknown field",
			payload:     map[string]any{"username": "grace", "password": "correct horse", "email": "g@x"},
			wantStatus:  http.StatusBadRequest,
			wantMessage: "Invalid request format",
		},
	}

	for _, tt := range tests {
		rec := srv.do(http.MethodPost, "/api/auth/register", "", tt.payload)
		require.Equal(t, tt.wantStatus, rec.Code, "%s: %s", tt.name, rec.Body.String())

		if tt.wantMessage != "" {
			assert.Equal(t, tt.wantMessage, decodeError(t, rec), tt.name)
			continue
		}
		var resp AuthResponse
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.NotEqual(t, uuid.Nil, resp.UserID)
		assert.Equal(t, "ada", resp.Username)
		assert.Empty(t, resp.Token, "registration does not sign in")
	}
}

func TestLogin(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	rec := srv.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Username: testUser, Password: testPassword})
	require.Equal(t, http.StatusCreated, rec.Code)

	tests := []struct {
		name       string
		payload    any
		wantStatus int
	}{
		{"wrong password", LoginRequest{Username: testUser, Password: "wrong horse"}, http.StatusUnauthorized},
		{"unknown user", LoginRequest{Username: "nobody", Password: testPassword}, http.StatusUnauthorized},
		{"missing password", map[string]any{"username": testUser}, http.StatusBadRequest},
		{"valid credentials", LoginRequest{Username: testUser, Password: testPassword}, http.StatusOK},
	}

	for _, tt := range tests {
		rec := srv.do(http.MethodPost, "/api/auth/login", "", tt.payload)
		assert.Equal(t, tt.wantStatus, rec.Code, "%s: %s", tt.name, rec.Body.String())
	}

	assert.True(t, srv.auth.Current().SignedIn())
	srv.await(func(s session.Snapshot) bool { return s.SessionActive })
}

func TestLoginReturnsUsableToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	token := srv.login()

	rec := srv.do(http.MethodGet, "/api/session", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeSession(t, rec).SessionActive)
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	for _, path := range []string{"/api/session", "/api/decks"} {
		rec := srv.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}

	rec := srv.do(http.MethodGet, "/api/session", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLogoutEndsSession(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	token := srv.login()

	rec := srv.do(http.MethodPost, "/api/auth/logout", token, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	srv.await(func(s session.Snapshot) bool { return !s.SessionActive })

	// The token is still valid but its user is no longer signed in.
	rec = srv.do(http.MethodGet, "/api/session", token, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHealth(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	rec := srv.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
}
