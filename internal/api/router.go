package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/welk/internal/api/middleware"
	"github.com/phrazzld/welk/internal/api/shared"
)

// RouterDeps are the handlers and middleware the router mounts.
type RouterDeps struct {
	Logger   *slog.Logger
	Auth     *AuthHandler
	Session  *SessionHandler
	Decks    *DeckHandler
	AuthGate *middleware.AuthMiddleware
}

// NewRouter builds the HTTP handler for the whole API.
func NewRouter(deps RouterDeps) http.Handler {
	if deps.Auth == nil || deps.Session == nil || deps.Decks == nil || deps.AuthGate == nil {
		panic("router dependencies cannot be nil")
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.NewTraceMiddleware(deps.Logger))

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", deps.Auth.Register)
		r.Post("/auth/login", deps.Auth.Login)

		r.Group(func(r chi.Router) {
			r.Use(deps.AuthGate.Authenticate)

			r.Post("/auth/logout", deps.Auth.Logout)

			r.Get("/session", deps.Session.GetSession)
			r.Post("/session/actions", deps.Session.ProcessAction)
			r.Post("/session/grade", deps.Session.Grade)
			r.Put("/session/edit", deps.Session.SetEdit)
			r.Post("/session/edit/save", deps.Session.SaveEdit)
			r.Post("/session/show-all", deps.Session.ToggleShowAll)

			r.Get("/decks", deps.Decks.ListDecks)
			r.Post("/decks", deps.Decks.CreateDeck)
			r.Delete("/decks/{id}", deps.Decks.DeleteDeck)
			r.Post("/decks/{id}/select", deps.Decks.SelectDeck)
			r.Post("/decks/{id}/expand", deps.Decks.ToggleExpansion)
			r.Post("/decks/{id}/import", deps.Decks.Import)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		shared.RespondWithJSON(w, r, http.StatusOK, HealthResponse{
			Status: "ok",
			Time:   time.Now().UTC(),
		})
	})

	return r
}
