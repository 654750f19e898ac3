package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tandem/internal/match/models"
	"tandem/internal/platform/metrics"
	"tandem/internal/platform/middleware"
	"tandem/internal/transport/http/shared"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// Service defines the interface for match queries.
type Service interface {
	CommonBoundaries(ctx context.Context, relationshipID id.RelationshipID, requester id.UserID) (*models.MatchList, error)
}

// Handler handles the common-boundaries endpoint.
type Handler struct {
	logger       *slog.Logger
	matches      Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new match Handler.
func New(matches Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		matches:      matches,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register attaches the match route with its middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		router.Get("/relationships/{relationshipID}/matches", h.handleMatches)
	})
}

func (h *Handler) handleMatches(w http.ResponseWriter, r *http.Request) {
	requester, err := id.ParseUserID(middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	relationshipID, err := id.ParseRelationshipID(chi.URLParam(r, "relationshipID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	list, err := h.matches.CommonBoundaries(r.Context(), relationshipID, requester)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(r.Context(), "failed to compute matches",
				"request_id", middleware.GetRequestID(r.Context()),
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, models.MatchesResponse{
		RelationshipID: relationshipID,
		State:          list.State,
		Count:          len(list.Matches),
		Matches:        list.Matches,
	})
}
