package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tandem/internal/platform/metrics"
	"tandem/internal/platform/middleware"
	"tandem/internal/transport/http/shared"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// Service defines the interface for account removal.
type Service interface {
	RemoveUser(ctx context.Context, party id.UserID) error
}

// Handler handles the account-deletion hook.
type Handler struct {
	logger       *slog.Logger
	accounts     Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new account Handler.
func New(accounts Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		accounts:     accounts,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register attaches the account route with its middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		router.Delete("/me", h.handleRemove)
	})
}

func (h *Handler) handleRemove(w http.ResponseWriter, r *http.Request) {
	party, err := id.ParseUserID(middleware.GetUserID(r.Context()))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "userID missing from context despite auth middleware",
			"request_id", middleware.GetRequestID(r.Context()),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}
	if err := h.accounts.RemoveUser(r.Context(), party); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(r.Context(), "failed to remove account data",
				"request_id", middleware.GetRequestID(r.Context()),
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
