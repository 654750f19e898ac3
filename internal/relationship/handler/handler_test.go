package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tandem/internal/platform/middleware"
	"tandem/internal/relationship/handler/mocks"
	"tandem/internal/relationship/models"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

//go:generate mockgen -source=handler.go -destination=mocks/relationship-mocks.go -package=mocks Service
type HandlerSuite struct {
	suite.Suite
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func newTestHandler(t *testing.T) (*Handler, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	t.Cleanup(ctrl.Finish)
	mockService := mocks.NewMockService(ctrl)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	h := New(mockService, logger, nil, nil)
	r := chi.NewRouter()
	h.Register(r)
	return h, mockService
}

func authed(req *http.Request, userID id.UserID) *http.Request {
	ctx := context.WithValue(req.Context(), middleware.ContextKeyUserID, userID.String())
	return req.WithContext(ctx)
}

func (s *HandlerSuite) TestHandleInvite() {
	h, mockService := newTestHandler(s.T())
	initiator := id.NewUserID()
	rel := &models.Relationship{
		ID:          id.NewRelationshipID(),
		InitiatorID: initiator,
		State:       models.StatePending,
		Token:       "tok-123",
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	mockService.EXPECT().Invite(gomock.Any(), initiator).Return(rel, nil)

	req := authed(httptest.NewRequest(http.MethodPost, "/relationships/invite", nil), initiator)
	w := httptest.NewRecorder()
	h.handleInvite(w, req)

	assert.Equal(s.T(), http.StatusCreated, w.Code)
	var resp map[string]string
	require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(s.T(), rel.ID.String(), resp["relationship_id"])
	assert.Equal(s.T(), "tok-123", resp["invitation_token"])
}

func (s *HandlerSuite) TestHandleAccept() {
	requester := id.NewUserID()

	s.Run("accept returns the new state", func() {
		h, mockService := newTestHandler(s.T())
		rel := &models.Relationship{
			ID:          id.NewRelationshipID(),
			InitiatorID: id.NewUserID(),
			ResponderID: &requester,
			State:       models.StateAccepted,
		}
		mockService.EXPECT().Accept(gomock.Any(), "tok-123", requester).Return(rel, nil)

		req := authed(httptest.NewRequest(http.MethodPost, "/relationships/invite/tok-123/accept", nil), requester)
		req = withURLParam(req, "token", "tok-123")
		w := httptest.NewRecorder()
		h.handleAccept(w, req)

		assert.Equal(s.T(), http.StatusOK, w.Code)
		var resp map[string]string
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), "accepted", resp["state"])
	})

	s.Run("blocked pairing maps to 403", func() {
		h, mockService := newTestHandler(s.T())
		mockService.EXPECT().Accept(gomock.Any(), "tok-123", requester).
			Return(nil, dErrors.New(dErrors.CodeBlocked, "pairing between these parties is blocked"))

		req := authed(httptest.NewRequest(http.MethodPost, "/relationships/invite/tok-123/accept", nil), requester)
		req = withURLParam(req, "token", "tok-123")
		w := httptest.NewRecorder()
		h.handleAccept(w, req)

		assert.Equal(s.T(), http.StatusForbidden, w.Code)
		var resp map[string]string
		require.NoError(s.T(), json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(s.T(), string(dErrors.CodeBlocked), resp["error"])
	})

	s.Run("self accept maps to 409", func() {
		h, mockService := newTestHandler(s.T())
		mockService.EXPECT().Accept(gomock.Any(), "tok-123", requester).
			Return(nil, dErrors.New(dErrors.CodeSelfReference, "cannot accept your own invitation"))

		req := authed(httptest.NewRequest(http.MethodPost, "/relationships/invite/tok-123/accept", nil), requester)
		req = withURLParam(req, "token", "tok-123")
		w := httptest.NewRecorder()
		h.handleAccept(w, req)

		assert.Equal(s.T(), http.StatusConflict, w.Code)
	})
}

func (s *HandlerSuite) TestHandleDissolve() {
	requester := id.NewUserID()
	relID := id.NewRelationshipID()

	s.Run("dissolve returns no content", func() {
		h, mockService := newTestHandler(s.T())
		mockService.EXPECT().Dissolve(gomock.Any(), relID, requester).Return(nil)

		req := authed(httptest.NewRequest(http.MethodDelete, "/relationships/"+relID.String(), nil), requester)
		req = withURLParam(req, "relationshipID", relID.String())
		w := httptest.NewRecorder()
		h.handleDissolve(w, req)

		assert.Equal(s.T(), http.StatusNoContent, w.Code)
	})

	s.Run("malformed relationship id maps to 400", func() {
		h, _ := newTestHandler(s.T())
		req := authed(httptest.NewRequest(http.MethodDelete, "/relationships/not-a-uuid", nil), requester)
		req = withURLParam(req, "relationshipID", "not-a-uuid")
		w := httptest.NewRecorder()
		h.handleDissolve(w, req)

		assert.Equal(s.T(), http.StatusBadRequest, w.Code)
	})

	s.Run("non-member maps to 403", func() {
		h, mockService := newTestHandler(s.T())
		mockService.EXPECT().Dissolve(gomock.Any(), relID, requester).
			Return(dErrors.New(dErrors.CodeForbidden, "not a member of this relationship"))

		req := authed(httptest.NewRequest(http.MethodDelete, "/relationships/"+relID.String(), nil), requester)
		req = withURLParam(req, "relationshipID", relID.String())
		w := httptest.NewRecorder()
		h.handleDissolve(w, req)

		assert.Equal(s.T(), http.StatusForbidden, w.Code)
	})
}

func (s *HandlerSuite) TestMissingAuthContext() {
	h, _ := newTestHandler(s.T())
	req := httptest.NewRequest(http.MethodPost, "/relationships/invite", nil)
	w := httptest.NewRecorder()
	h.handleInvite(w, req)

	assert.Equal(s.T(), http.StatusInternalServerError, w.Code)
}

// withURLParam injects a chi route parameter for direct handler invocation.
func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}
