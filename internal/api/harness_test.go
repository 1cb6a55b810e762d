package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/animation"
	"github.com/phrazzld/welk/internal/api/middleware"
	"github.com/phrazzld/welk/internal/config"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/domain/srs"
	"github.com/phrazzld/welk/internal/importer"
	"github.com/phrazzld/welk/internal/platform/memory"
	"github.com/phrazzld/welk/internal/service/auth"
	"github.com/phrazzld/welk/internal/session"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	tick    = 5 * time.Millisecond

	testUser     = "ada"
	testPassword = "correct horse"
)

type testServer struct {
	t       *testing.T
	handler http.Handler
	store   *memory.Store
	sess    *session.Session
	auth    *auth.Service
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := memory.New()
	t.Cleanup(st.Close)

	algorithm, err := srs.New("fixed", srs.DefaultFixedIntervalParams(), srs.NewDefaultParams())
	require.NoError(t, err)

	sess := session.New(st, st, algorithm, animation.NewController(0, log), session.Options{Logger: log})
	authSvc := auth.NewService(st, auth.NewBcryptVerifierWithCost(4), log)
	tokens, err := auth.NewTokenService(config.AuthConfig{
		JWTSecret:            "test-secret-that-is-long-enough-for-hs256",
		TokenLifetimeMinutes: 60,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = session.NewGate(authSvc, sess, log).Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	handler := NewRouter(RouterDeps{
		Logger:   log,
		Auth:     NewAuthHandler(authSvc, tokens, time.Hour, log),
		Session:  NewSessionHandler(sess, log),
		Decks:    NewDeckHandler(sess, importer.New(st, log), log),
		AuthGate: middleware.NewAuthMiddleware(tokens, authSvc),
	})

	return &testServer{t: t, handler: handler, store: st, sess: sess, auth: authSvc}
}

func (s *testServer) deck(name string) domain.Deck {
	s.t.Helper()
	d, err := s.store.CreateDeck(context.Background(), name, "", uuid.Nil)
	require.NoError(s.t, err)
	return *d
}

func (s *testServer) card(deckID uuid.UUID, front string) domain.Card {
	s.t.Helper()
	c, err := s.store.CreateCard(context.Background(), domain.Draft{DeckID: deckID, Front: front, Back: front + "!"})
	require.NoError(s.t, err)
	return *c
}

func (s *testServer) do(method, path, token string, body any) *httptest.ResponseRecorder {
	s.t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(s.t, err)
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) upload(path, token, filename string, content []byte) *httptest.ResponseRecorder {
	s.t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(s.t, err)
	_, err = part.Write(content)
	require.NoError(s.t, err)
	require.NoError(s.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

// login registers the test user, signs in and waits for the gate to start
// the session. It returns the access token.
func (s *testServer) login() string {
	s.t.Helper()

	rec := s.do(http.MethodPost, "/api/auth/register", "", RegisterRequest{Username: testUser, Password: testPassword})
	require.Equal(s.t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(http.MethodPost, "/api/auth/login", "", LoginRequest{Username: testUser, Password: testPassword})
	require.Equal(s.t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AuthResponse
	require.NoError(s.t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(s.t, resp.Token)

	s.await(func(snap session.Snapshot) bool { return snap.SessionActive })
	return resp.Token
}

func (s *testServer) await(cond func(session.Snapshot) bool) session.Snapshot {
	s.t.Helper()
	var snap session.Snapshot
	require.Eventually(s.t, func() bool {
		snap = s.sess.Snapshot()
		return cond(snap)
	}, waitFor, tick)
	return snap
}

func decodeSession(t *testing.T, rec *httptest.ResponseRecorder) session.Snapshot {
	t.Helper()
	var resp SessionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Session
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp.Error
}
