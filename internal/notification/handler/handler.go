package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"tandem/internal/notification/models"
	"tandem/internal/platform/metrics"
	"tandem/internal/platform/middleware"
	"tandem/internal/transport/http/shared"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// Service defines the interface for recipient-facing notification operations.
type Service interface {
	List(ctx context.Context, recipient id.UserID) ([]*models.Notification, error)
	UnreadCount(ctx context.Context, recipient id.UserID) (int, error)
	MarkRead(ctx context.Context, notificationID id.NotificationID, recipient id.UserID) error
	MarkAllRead(ctx context.Context, recipient id.UserID) error
}

// Handler handles notification endpoints.
type Handler struct {
	logger        *slog.Logger
	notifications Service
	metrics       *metrics.Metrics
	jwtValidator  middleware.JWTValidator
}

// New creates a new notification Handler.
func New(notifications Service, logger *slog.Logger, m *metrics.Metrics, jwtValidator middleware.JWTValidator) *Handler {
	return &Handler{
		logger:        logger,
		notifications: notifications,
		metrics:       m,
		jwtValidator:  jwtValidator,
	}
}

// Register attaches the notification routes with their middleware chain.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(router chi.Router) {
		router.Use(middleware.Recovery(h.logger))
		router.Use(middleware.RequestID)
		router.Use(middleware.Logger(h.logger))
		router.Use(middleware.Timeout(30 * time.Second))
		router.Use(middleware.ContentTypeJSON)
		router.Use(middleware.LatencyMiddleware(h.metrics))
		router.Use(middleware.RequireAuth(h.jwtValidator, h.logger))
		router.Get("/notifications", h.handleList)
		router.Get("/notifications/unread-count", h.handleUnreadCount)
		router.Post("/notifications/{notificationID}/read", h.handleMarkRead)
		router.Post("/notifications/read-all", h.handleMarkAllRead)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	recipient, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	list, err := h.notifications.List(r.Context(), recipient)
	if err != nil {
		h.logError(r, "failed to list notifications", err)
		shared.WriteError(w, err)
		return
	}
	if list == nil {
		list = []*models.Notification{}
	}
	shared.WriteJSON(w, http.StatusOK, map[string]any{"notifications": list})
}

func (h *Handler) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	recipient, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	count, err := h.notifications.UnreadCount(r.Context(), recipient)
	if err != nil {
		h.logError(r, "failed to count notifications", err)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	recipient, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	notificationID, err := id.ParseNotificationID(chi.URLParam(r, "notificationID"))
	if err != nil {
		shared.WriteError(w, err)
		return
	}
	if err := h.notifications.MarkRead(r.Context(), notificationID, recipient); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logError(r, "failed to mark notification read", err)
		}
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	recipient, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	if err := h.notifications.MarkAllRead(r.Context(), recipient); err != nil {
		h.logError(r, "failed to mark notifications read", err)
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requireUser extracts the authenticated party set by RequireAuth.
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
