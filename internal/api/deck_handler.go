package api

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/welk/internal/api/shared"
	"github.com/phrazzld/welk/internal/importer"
	"github.com/phrazzld/welk/internal/platform/logger"
)

// MaxImportBytes caps spreadsheet uploads.
const MaxImportBytes = 10 << 20

// CardImporter bulk-creates cards in a deck.
type CardImporter interface {
	Import(ctx context.Context, deckID uuid.UUID, r io.Reader, format importer.Format) (*importer.Result, error)
}

var _ CardImporter = (*importer.Importer)(nil)

// DeckHandler handles deck listing, selection and maintenance.
type DeckHandler struct {
	session  StudySession
	importer CardImporter
	logger   *slog.Logger
}

// NewDeckHandler creates a new DeckHandler.
func NewDeckHandler(s StudySession, imp CardImporter, logger *slog.Logger) *DeckHandler {
	if s == nil {
		panic("session cannot be nil")
	}
	if imp == nil {
		panic("importer cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DeckHandler{
		session:  s,
		importer: imp,
		logger:   logger.With(slog.String("component", "deck_handler")),
	}
}

func (h *DeckHandler) respondDecks(w http.ResponseWriter, r *http.Request, status int) {
	snap := h.session.Snapshot()
	resp := DeckListResponse{
		Decks:    snap.Decks,
		Expanded: snap.Expanded,
	}
	if snap.CurrentDeck != nil {
		id := snap.CurrentDeck.ID
		resp.CurrentDeckID = &id
	}
	shared.RespondWithJSON(w, r, status, resp)
}

// ListDecks handles GET /api/decks.
func (h *DeckHandler) ListDecks(w http.ResponseWriter, r *http.Request) {
	if _, ok := activeSnapshot(w, r, h.session); !ok {
		return
	}
	h.respondDecks(w, r, http.StatusOK)
}

// CreateDeck handles POST /api/decks.
func (h *DeckHandler) CreateDeck(w http.ResponseWriter, r *http.Request) {
	var req CreateDeckRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	deck, err := h.session.CreateDeck(r.Context(), req.Name, req.Description, req.ParentID)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create deck")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, deck)
}

// DeleteDeck handles DELETE /api/decks/{id}.
func (h *DeckHandler) DeleteDeck(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.session.DeleteDeck(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to delete deck")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SelectDeck handles POST /api/decks/{id}/select.
func (h *DeckHandler) SelectDeck(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if err := h.session.SelectDeck(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "Failed to select deck")
		return
	}
	respondSnapshot(w, r, h.session, nil)
}

// ToggleExpansion handles POST /api/decks/{id}/expand.
func (h *DeckHandler) ToggleExpansion(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	if _, ok := activeSnapshot(w, r, h.session); !ok {
		return
	}
	h.session.ToggleDeckExpansion(id)
	h.respondDecks(w, r, http.StatusOK)
}

// Import handles POST /api/decks/{id}/import, a multipart upload with the
// spreadsheet in the "file" field.
func (h *DeckHandler) Import(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxImportBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "A file upload is required", err)
		return
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			log.Warn("failed to close upload", slog.String("error", cerr.Error()))
		}
	}()

	format, err := importer.FormatFromFilename(header.Filename)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	result, err := h.importer.Import(r.Context(), id, file, format)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to import cards")
		return
	}

	log.Info("imported cards",
		slog.String("deck_id", id.String()),
		slog.String("filename", header.Filename),
		slog.Int("created", result.Created))
	shared.RespondWithJSON(w, r, http.StatusOK, result)
}

func (h *DeckHandler) pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		logger.FromContextOrDefault(r.Context(), h.logger).
			Warn("invalid deck id", slog.String("error", err.Error()))
		HandleAPIError(w, r, err, "")
		return uuid.Nil, false
	}
	return id, true
}
