package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tandem/internal/catalog"
	"tandem/internal/platform/metrics"
	"tandem/internal/platform/middleware"
	"tandem/internal/transport/http/shared"
)

// Handler serves the static boundary catalog.
type Handler struct {
	logger       *slog.Logger
	catalog      *catalog.Service
	metrics      *metrics.Metrics
	jwtValidator middleware.JWTValidator
}

// New creates a new catalog Handler.
func New(cat *catalog.Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:       logger,
		catalog:      cat,
		metrics:      m,
		jwtValidator: jwtValidator,
	}
}

// Register attaches the catalog route with its middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(10 * time.Second))
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		router.Get("/catalog", h.handleCatalog)
	})
}

type catalogResponse struct {
	Categories []catalog.Category `json:"categories"`
}

func (h *Handler) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	shared.WriteJSON(w, http.StatusOK, catalogResponse{Categories: h.catalog.Categories()})
}
