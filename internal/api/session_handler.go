package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/api/shared"
	"github.com/phrazzld/welk/internal/domain"
	"github.com/phrazzld/welk/internal/platform/logger"
	"github.com/phrazzld/welk/internal/session"
)

// StudySession is the session surface driven over HTTP.
type StudySession interface {
	Snapshot() session.Snapshot
	ProcessAction(a session.Action) bool
	GradeCard(ctx context.Context, grade domain.ReviewGrade) error
	SetEditBuffer(front, back string) bool
	SaveCardEdit(ctx context.Context) error
	ToggleShowAllCards()

	SelectDeck(ctx context.Context, id uuid.UUID) error
	ToggleDeckExpansion(id uuid.UUID)
	CreateDeck(ctx context.Context, name, description string, parentID uuid.UUID) (*domain.Deck, error)
	DeleteDeck(ctx context.Context, id uuid.UUID) error
}

var _ StudySession = (*session.Session)(nil)

// SessionHandler exposes the card view of the study session.
type SessionHandler struct {
	session StudySession
	logger  *slog.Logger
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s StudySession, logger *slog.Logger) *SessionHandler {
	if s == nil {
		panic("session cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionHandler{
		session: s,
		logger:  logger.With(slog.String("component", "session_handler")),
	}
}

// activeSnapshot writes 409 and returns false when no session is running.
func activeSnapshot(w http.ResponseWriter, r *http.Request, s StudySession) (session.Snapshot, bool) {
	snap := s.Snapshot()
	if !snap.SessionActive {
		HandleAPIError(w, r, session.ErrNoSession, "")
		return snap, false
	}
	return snap, true
}

func respondSnapshot(w http.ResponseWriter, r *http.Request, s StudySession, accepted *bool) {
	shared.RespondWithJSON(w, r, http.StatusOK, SessionResponse{
		Accepted: accepted,
		Session:  s.Snapshot(),
	})
}

// GetSession handles GET /api/session. An inactive session is reported,
// not rejected, so clients can poll for the gate to start it.
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondSnapshot(w, r, h.session, nil)
}

// ProcessAction handles POST /api/session/actions.
// An action the session refuses in its current state is answered with 409.
func (h *SessionHandler) ProcessAction(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req ActionRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if _, ok := activeSnapshot(w, r, h.session); !ok {
		return
	}

	action := session.ParseAction(req.Action, req.DeckID)
	if _, unknown := action.(session.NoAction); unknown {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown action")
		return
	}

	accepted := h.session.ProcessAction(action)
	log.Debug("processed action",
		slog.String("action", req.Action),
		slog.Bool("accepted", accepted))
	if !accepted {
		HandleAPIError(w, r, errActionRejected, "")
		return
	}
	respondSnapshot(w, r, h.session, &accepted)
}

// Grade handles POST /api/session/grade.
func (h *SessionHandler) Grade(w http.ResponseWriter, r *http.Request) {
	var req GradeRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	grade, err := domain.ParseReviewGrade(string(req.Grade))
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.session.GradeCard(r.Context(), grade); err != nil {
		HandleAPIError(w, r, err, "Failed to grade card")
		return
	}
	respondSnapshot(w, r, h.session, nil)
}

// SetEdit handles PUT /api/session/edit.
func (h *SessionHandler) SetEdit(w http.ResponseWriter, r *http.Request) {
	var req EditRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	if _, ok := activeSnapshot(w, r, h.session); !ok {
		return
	}
	if !h.session.SetEditBuffer(req.Front, req.Back) {
		shared.RespondWithError(w, r, http.StatusConflict, "Not editing")
		return
	}
	respondSnapshot(w, r, h.session, nil)
}

// SaveEdit handles POST /api/session/edit/save.
func (h *SessionHandler) SaveEdit(w http.ResponseWriter, r *http.Request) {
	if err := h.session.SaveCardEdit(r.Context()); err != nil {
		HandleAPIError(w, r, err, "Failed to save card")
		return
	}
	respondSnapshot(w, r, h.session, nil)
}

// ToggleShowAll handles POST /api/session/show-all.
func (h *SessionHandler) ToggleShowAll(w http.ResponseWriter, r *http.Request) {
	if _, ok := activeSnapshot(w, r, h.session); !ok {
		return
	}
	h.session.ToggleShowAllCards()
	respondSnapshot(w, r, h.session, nil)
}
