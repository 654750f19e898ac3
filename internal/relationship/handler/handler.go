package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tandem/internal/platform/metrics"
	"tandem/internal/platform/middleware"
	"tandem/internal/relationship/models"
	"tandem/internal/transport/http/shared"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// Service defines the interface for relationship lifecycle operations.
type Service interface {
	Invite(ctx context.Context, initiator id.UserID) (*models.Relationship, error)
	Inspect(ctx context.Context, token string, requester id.UserID) (*models.Relationship, error)
	Accept(ctx context.Context, token string, requester id.UserID) (*models.Relationship, error)
	Decline(ctx context.Context, token string, requester id.UserID) (*models.Relationship, error)
	Dissolve(ctx context.Context, relationshipID id.RelationshipID, requester id.UserID) error
	Block(ctx context.Context, relationshipID id.RelationshipID, requester id.UserID) error
}

// Handler handles relationship lifecycle endpoints.
type Handler struct {
	logger        *slog.Logger
	relationships Service
	metrics       *metrics.Metrics
	jwtValidator  middleware.JWTValidator
}

// New creates a new relationship Handler.
func New(relationships Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:        logger,
		relationships: relationships,
		metrics:       m,
		jwtValidator:  jwtValidator,
	}
}

// Register attaches the relationship routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		router.Post("/relationships/invite", h.handleInvite)
		router.Get("/relationships/invite/{token}", h.handleInspect)
		router.Post("/relationships/invite/{token}/accept", h.handleAccept)
		router.Post("/relationships/invite/{token}/decline", h.handleDecline)
		router.Delete("/relationships/{relationshipID}", h.handleDissolve)
		router.Post("/relationships/{relationshipID}/block", h.handleBlock)
	})
}

func (h *Handler) handleInvite(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	rel, err := h.relationships.Invite(r.Context(), requester)
	if err != nil {
		h.logError(r, "failed to create invitation", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusCreated, models.InviteResponse{
		RelationshipID:  rel.ID,
		InvitationToken: rel.Token,
	})
}

func (h *Handler) handleInspect(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	rel, err := h.relationships.Inspect(r.Context(), chi.URLParam(r, "token"), requester)
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, models.InspectResponse{
		RelationshipID: rel.ID,
		InitiatorRef:   rel.InitiatorID.String(),
		State:          rel.State,
	})
}

func (h *Handler) handleAccept(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	rel, err := h.relationships.Accept(r.Context(), chi.URLParam(r, "token"), requester)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logError(r, "failed to accept invitation", err)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, models.StateResponse{RelationshipID: rel.ID, State: rel.State})
}

func (h *Handler) handleDecline(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	rel, err := h.relationships.Decline(r.Context(), chi.URLParam(r, "token"), requester)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logError(r, "failed to decline invitation", err)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, models.StateResponse{RelationshipID: rel.ID, State: rel.State})
}

func (h *Handler) handleDissolve(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	relationshipID, err := id.ParseRelationshipID(chi.URLParam(r, "relationshipID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.relationships.Dissolve(r.Context(), relationshipID, requester); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logError(r, "failed to dissolve relationship", err)
		}
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleBlock(w http.ResponseWriter, r *http.Request) {
	requester, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	relationshipID, err := id.ParseRelationshipID(chi.URLParam(r, "relationshipID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.relationships.Block(r.Context(), relationshipID, requester); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logError(r, "failed to block pairing", err)
		}
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (id.UserID, bool) {
	userID, err := id.ParseUserID(middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return userID, false
	}
	return userID, true
}

func (h *Handler) logError(r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"error", err.Error(),
	)
}
