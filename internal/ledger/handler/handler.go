package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tandem/internal/ledger/models"
	"tandem/internal/platform/metrics"
	"tandem/internal/platform/middleware"
	"tandem/internal/transport/http/shared"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// Service defines the interface for consent ledger operations.
type Service interface {
	GetOwn(ctx context.Context, relationshipID id.RelationshipID, party id.UserID) ([]*models.Entry, error)
	SetMany(ctx context.Context, relationshipID id.RelationshipID, party id.UserID, inputs []models.EntryInput) ([]*models.Entry, error)
	SetNote(ctx context.Context, relationshipID id.RelationshipID, party id.UserID, boundaryID id.BoundaryID, note string) error
	ClearNote(ctx context.Context, relationshipID id.RelationshipID, party id.UserID, boundaryID id.BoundaryID) error
}

// Handler handles consent ledger endpoints.
type Handler struct {
	logger       *slog.Logger
	ledger       Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new ledger Handler.
func New(ledger Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		ledger:       ledger,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register attaches the ledger routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		router.Get("/relationships/{relationshipID}/ledger", h.handleGet)
		router.Put("/relationships/{relationshipID}/ledger", h.handleSet)
		router.Put("/relationships/{relationshipID}/ledger/{boundaryID}/note", h.handleSetNote)
		router.Delete("/relationships/{relationshipID}/ledger/{boundaryID}/note", h.handleClearNote)
	})
}

type ledgerResponse struct {
	Entries []*models.Entry `json:"entries"`
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	party, relationshipID, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	entries, err := h.ledger.GetOwn(r.Context(), relationshipID, party)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logError(r, "failed to load ledger", err)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ledgerResponse{Entries: entries})
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	party, relationshipID, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	var req models.SetEntriesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	entries, err := h.ledger.SetMany(r.Context(), relationshipID, party, req.Entries)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logError(r, "failed to write ledger", err)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, ledgerResponse{Entries: entries})
}

func (h *Handler) handleSetNote(w http.ResponseWriter, r *http.Request) {
	party, relationshipID, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	var req models.SetNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	boundaryID := id.BoundaryID(chi.URLParam(r, "boundaryID"))
	if err := h.ledger.SetNote(r.Context(), relationshipID, party, boundaryID, req.Note); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logError(r, "failed to set note", err)
		}
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleClearNote(w http.ResponseWriter, r *http.Request) {
	party, relationshipID, ok := h.requireScope(w, r)
	if !ok {
		return
	}
	boundaryID := id.BoundaryID(chi.URLParam(r, "boundaryID"))
	if err := h.ledger.ClearNote(r.Context(), relationshipID, party, boundaryID); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logError(r, "failed to clear note", err)
		}
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireScope(w http.ResponseWriter, r *http.Request) (id.UserID, id.RelationshipID, bool) {
	party, err := id.ParseUserID(middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return party, id.RelationshipID{}, false
	}
	relationshipID, err := id.ParseRelationshipID(chi.URLParam(r, "relationshipID"))
	if err != nil {
		shared.WriteError(w, err)
		return party, relationshipID, false
	}
	return party, relationshipID, true
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
}
