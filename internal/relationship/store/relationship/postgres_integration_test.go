//go:build integration

package relationship_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tandem/internal/relationship/models"
	"tandem/internal/relationship/store/relationship"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/sentinel"
	"tandem/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *relationship.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), "../../../../db/schema.sql")
	s.store = relationship.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.postgres.Truncate(context.Background(), s.T())
}

func newInvitation(initiator id.UserID) *models.Relationship {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Relationship{
		ID:          id.NewRelationshipID(),
		InitiatorID: initiator,
		State:       models.StatePending,
		Token:       uuid.NewString(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	initiator := id.NewUserID()
	r := newInvitation(initiator)
	s.Require().NoError(s.store.Create(ctx, r))

	byID, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.InitiatorID, byID.InitiatorID)
	s.Nil(byID.ResponderID)
	s.Equal(models.StatePending, byID.State)

	byToken, err := s.store.FindByToken(ctx, r.Token)
	s.Require().NoError(err)
	s.Equal(r.ID, byToken.ID)

	s.Run("duplicate token conflicts", func() {
		dup := newInvitation(initiator)
		dup.Token = r.Token
		s.ErrorIs(s.store.Create(ctx, dup), sentinel.ErrConflict)
	})

	s.Run("unknown id returns not found", func() {
		_, err := s.store.FindByID(ctx, id.NewRelationshipID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentAccept verifies the compare-and-swap: many concurrent accept
// attempts on one pending row yield exactly one transition.
func (s *PostgresStoreSuite) TestConcurrentAccept() {
	ctx := context.Background()
	r := newInvitation(id.NewUserID())
	s.Require().NoError(s.store.Create(ctx, r))

	const goroutines = 20
	var wg sync.WaitGroup
	var transitions atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.store.AcceptIfPending(ctx, r.ID, id.NewUserID(), time.Now())
			s.NoError(err)
			if ok {
				transitions.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), transitions.Load())

	accepted, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StateAccepted, accepted.State)
	s.NotNil(accepted.ResponderID)
}

// TestAcceptedPairUnique verifies the partial unique index: once a pair
// holds an accepted relationship, accepting a second pending invitation
// between the same pair conflicts instead of transitioning.
func (s *PostgresStoreSuite) TestAcceptedPairUnique() {
	ctx := context.Background()
	initiator := id.NewUserID()
	responder := id.NewUserID()

	first := newInvitation(initiator)
	s.Require().NoError(s.store.Create(ctx, first))
	ok, err := s.store.AcceptIfPending(ctx, first.ID, responder, time.Now())
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Run("same direction conflicts", func() {
		second := newInvitation(initiator)
		s.Require().NoError(s.store.Create(ctx, second))
		ok, err := s.store.AcceptIfPending(ctx, second.ID, responder, time.Now())
		s.ErrorIs(err, sentinel.ErrConflict)
		s.False(ok)

		current, err := s.store.FindByID(ctx, second.ID)
		s.Require().NoError(err)
		s.Equal(models.StatePending, current.State)
	})

	s.Run("reversed direction conflicts too", func() {
		reversed := newInvitation(responder)
		s.Require().NoError(s.store.Create(ctx, reversed))
		ok, err := s.store.AcceptIfPending(ctx, reversed.ID, initiator, time.Now())
		s.ErrorIs(err, sentinel.ErrConflict)
		s.False(ok)
	})

	s.Run("an unrelated pair is unaffected", func() {
		other := newInvitation(initiator)
		s.Require().NoError(s.store.Create(ctx, other))
		ok, err := s.store.AcceptIfPending(ctx, other.ID, id.NewUserID(), time.Now())
		s.Require().NoError(err)
		s.True(ok)
	})
}

func (s *PostgresStoreSuite) TestFindAcceptedBetween() {
	ctx := context.Background()
	initiator := id.NewUserID()
	responder := id.NewUserID()

	r := newInvitation(initiator)
	s.Require().NoError(s.store.Create(ctx, r))
	ok, err := s.store.AcceptIfPending(ctx, r.ID, responder, time.Now())
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Run("found regardless of argument order", func() {
		found, err := s.store.FindAcceptedBetween(ctx, responder, initiator)
		s.Require().NoError(err)
		s.Equal(r.ID, found.ID)
	})

	s.Run("pending rows do not count", func() {
		other := newInvitation(initiator)
		s.Require().NoError(s.store.Create(ctx, other))
		_, err := s.store.FindAcceptedBetween(ctx, initiator, id.NewUserID())
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoreSuite) TestDeleteAndListByMember() {
	ctx := context.Background()
	member := id.NewUserID()

	first := newInvitation(member)
	second := newInvitation(member)
	s.Require().NoError(s.store.Create(ctx, first))
	s.Require().NoError(s.store.Create(ctx, second))

	list, err := s.store.ListByMember(ctx, member)
	s.Require().NoError(err)
	s.Len(list, 2)

	s.Require().NoError(s.store.Delete(ctx, first.ID))
	_, err = s.store.FindByID(ctx, first.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	list, err = s.store.ListByMember(ctx, member)
	s.Require().NoError(err)
	s.Len(list, 1)
}
