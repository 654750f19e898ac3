package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tandem/internal/notification/models"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/sentinel"
)

type MemorySuite struct {
	suite.Suite
	store *InMemory
}

func TestMemorySuite(t *testing.T) {
	suite.Run(t, new(MemorySuite))
}

func (s *MemorySuite) SetupTest() {
	s.store = NewInMemory()
}

func (s *MemorySuite) create(recipient id.UserID, kind models.Kind, relationshipID *id.RelationshipID, createdAt time.Time) *models.Notification {
	n := &models.Notification{
		ID:             id.NewNotificationID(),
		RecipientID:    recipient,
		Kind:           kind,
		Title:          "t",
		Message:        "m",
		RelationshipID: relationshipID,
		CreatedAt:      createdAt,
	}
	s.Require().NoError(s.store.Create(context.Background(), n))
	return n
}

func (s *MemorySuite) TestCreateAndList() {
	ctx := context.Background()
	recipient := id.NewUserID()
	now := time.Now()

	older := s.create(recipient, models.KindInvitationAccepted, nil, now.Add(-time.Minute))
	newer := s.create(recipient, models.KindNewCommonLimit, nil, now)
	s.create(id.NewUserID(), models.KindNewCommonLimit, nil, now)

	list, err := s.store.ListByRecipient(ctx, recipient)
	s.Require().NoError(err)
	s.Require().Len(list, 2, "other recipients' rows are not visible")
	s.Equal(newer.ID, list[0].ID, "newest first")
	s.Equal(older.ID, list[1].ID)

	s.Run("duplicate id conflicts", func() {
		err := s.store.Create(ctx, &models.Notification{ID: newer.ID, RecipientID: recipient})
		s.ErrorIs(err, sentinel.ErrConflict)
	})
}

func (s *MemorySuite) TestReadFlags() {
	ctx := context.Background()
	recipient := id.NewUserID()
	n1 := s.create(recipient, models.KindNewCommonLimit, nil, time.Now())
	n2 := s.create(recipient, models.KindLimitRemoved, nil, time.Now())

	count, err := s.store.CountUnread(ctx, recipient)
	s.Require().NoError(err)
	s.Equal(2, count)

	s.Require().NoError(s.store.MarkRead(ctx, n1.ID, recipient))
	count, err = s.store.CountUnread(ctx, recipient)
	s.Require().NoError(err)
	s.Equal(1, count)

	s.Run("marking another recipient's row fails", func() {
		err := s.store.MarkRead(ctx, n2.ID, id.NewUserID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("mark all read", func() {
		s.Require().NoError(s.store.MarkAllRead(ctx, recipient))
		count, err := s.store.CountUnread(ctx, recipient)
		s.Require().NoError(err)
		s.Zero(count)
	})
}

func (s *MemorySuite) TestClearRelationship() {
	ctx := context.Background()
	recipient := id.NewUserID()
	relID := id.NewRelationshipID()
	n := s.create(recipient, models.KindNewCommonLimit, &relID, time.Now())

	s.Require().NoError(s.store.ClearRelationship(ctx, relID))

	list, err := s.store.ListByRecipient(ctx, recipient)
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal(n.ID, list[0].ID, "row survives, only the reference is nulled")
	s.Nil(list[0].RelationshipID)
}

func (s *MemorySuite) TestDeleteByRecipient() {
	ctx := context.Background()
	departing := id.NewUserID()
	staying := id.NewUserID()
	s.create(departing, models.KindNewCommonLimit, nil, time.Now())
	s.create(staying, models.KindNewCommonLimit, nil, time.Now())

	s.Require().NoError(s.store.DeleteByRecipient(ctx, departing))

	gone, err := s.store.ListByRecipient(ctx, departing)
	s.Require().NoError(err)
	s.Empty(gone)
	kept, err := s.store.ListByRecipient(ctx, staying)
	s.Require().NoError(err)
	s.Len(kept, 1)
}
