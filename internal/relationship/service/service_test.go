package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"tandem/internal/ledger/models"
	entrystore "tandem/internal/ledger/store/entry"
	notifstore "tandem/internal/notification/store"
	relmodels "tandem/internal/relationship/models"
	blockstore "tandem/internal/relationship/store/block"
	relstore "tandem/internal/relationship/store/relationship"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

// recordingEmitter captures emitted notification calls for assertions.
type recordingEmitter struct {
	mu       sync.Mutex
	accepted []id.RelationshipID
	deleted  []id.UserID
}

func (e *recordingEmitter) InvitationAccepted(_ context.Context, _, _ id.UserID, relationshipID id.RelationshipID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.accepted = append(e.accepted, relationshipID)
}

func (e *recordingEmitter) RelationshipDeleted(_ context.Context, recipient, _ id.UserID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.deleted = append(e.deleted, recipient)
}

type ServiceSuite struct {
	suite.Suite
	relationships *relstore.InMemory
	blocks        *blockstore.InMemory
	entries       *entrystore.InMemory
	notifications *notifstore.InMemory
	emitter       *recordingEmitter
	service       *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.relationships = relstore.NewInMemory()
	s.blocks = blockstore.NewInMemory()
	s.entries = entrystore.NewInMemory()
	s.notifications = notifstore.NewInMemory()
	s.emitter = &recordingEmitter{}
	s.service = New(s.relationships, s.blocks, s.entries, s.notifications, s.emitter)
}

func (s *ServiceSuite) invite(initiator id.UserID) *relmodels.Relationship {
	r, err := s.service.Invite(context.Background(), initiator)
	s.Require().NoError(err)
	return r
}

func (s *ServiceSuite) acceptedPair(initiator, responder id.UserID) *relmodels.Relationship {
	r := s.invite(initiator)
	accepted, err := s.service.Accept(context.Background(), r.Token, responder)
	s.Require().NoError(err)
	return accepted
}

func (s *ServiceSuite) TestInvite() {
	initiator := id.NewUserID()
	r := s.invite(initiator)

	s.Equal(relmodels.StatePending, r.State)
	s.Equal(initiator, r.InitiatorID)
	s.Nil(r.ResponderID)
	s.NotEmpty(r.Token)

	s.Run("tokens are unique per invitation", func() {
		other := s.invite(initiator)
		s.NotEqual(r.Token, other.Token)
	})
}

func (s *ServiceSuite) TestInspect() {
	ctx := context.Background()
	initiator := id.NewUserID()
	responder := id.NewUserID()
	r := s.invite(initiator)

	s.Run("third party sees the pending invitation", func() {
		got, err := s.service.Inspect(ctx, r.Token, responder)
		s.Require().NoError(err)
		s.Equal(r.ID, got.ID)
		s.Equal(relmodels.StatePending, got.State)
	})

	s.Run("initiator cannot inspect their own invitation", func() {
		_, err := s.service.Inspect(ctx, r.Token, initiator)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSelfReference))
	})

	s.Run("unknown token returns not found", func() {
		_, err := s.service.Inspect(ctx, uuid.NewString(), responder)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("accepted invitation is no longer inspectable", func() {
		_, err := s.service.Accept(ctx, r.Token, responder)
		s.Require().NoError(err)
		_, err = s.service.Inspect(ctx, r.Token, id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *ServiceSuite) TestAccept() {
	ctx := context.Background()
	initiator := id.NewUserID()
	responder := id.NewUserID()

	s.Run("accept transitions to accepted and notifies initiator", func() {
		r := s.invite(initiator)
		accepted, err := s.service.Accept(ctx, r.Token, responder)
		s.Require().NoError(err)
		s.Equal(relmodels.StateAccepted, accepted.State)
		s.Require().NotNil(accepted.ResponderID)
		s.Equal(responder, *accepted.ResponderID)
		s.Equal([]id.RelationshipID{accepted.ID}, s.emitter.accepted)
	})

	s.Run("repeat accept by the same responder is idempotent", func() {
		s.SetupTest()
		r := s.invite(initiator)
		first, err := s.service.Accept(ctx, r.Token, responder)
		s.Require().NoError(err)
		second, err := s.service.Accept(ctx, r.Token, responder)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
		s.Equal(relmodels.StateAccepted, second.State)
		s.Len(s.emitter.accepted, 1, "no second notification on repeat accept")
	})

	s.Run("accept by a different party after acceptance fails", func() {
		s.SetupTest()
		r := s.invite(initiator)
		_, err := s.service.Accept(ctx, r.Token, responder)
		s.Require().NoError(err)
		_, err = s.service.Accept(ctx, r.Token, id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("initiator cannot accept their own invitation", func() {
		s.SetupTest()
		r := s.invite(initiator)
		_, err := s.service.Accept(ctx, r.Token, initiator)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeSelfReference))
	})

	s.Run("declined invitation cannot be accepted", func() {
		s.SetupTest()
		r := s.invite(initiator)
		_, err := s.service.Decline(ctx, r.Token, responder)
		s.Require().NoError(err)
		_, err = s.service.Accept(ctx, r.Token, responder)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("blocked pair cannot accept in either direction", func() {
		s.SetupTest()
		r := s.acceptedPair(initiator, responder)
		s.Require().NoError(s.service.Block(ctx, r.ID, responder))

		invite := s.invite(initiator)
		_, err := s.service.Accept(ctx, invite.Token, responder)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBlocked))

		reverse := s.invite(responder)
		_, err = s.service.Accept(ctx, reverse.Token, initiator)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeBlocked))
	})

	s.Run("second accepted relationship between the same pair is rejected", func() {
		s.SetupTest()
		s.acceptedPair(initiator, responder)
		invite := s.invite(initiator)
		_, err := s.service.Accept(ctx, invite.Token, responder)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestAcceptConcurrent() {
	ctx := context.Background()
	initiator := id.NewUserID()
	responder := id.NewUserID()
	r := s.invite(initiator)

	// Two concurrent accepts by the same responder: both must succeed thanks
	// to the compare-and-swap plus idempotent re-read, with one notification.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = s.service.Accept(ctx, r.Token, responder)
		}(i)
	}
	wg.Wait()

	s.NoError(errs[0])
	s.NoError(errs[1])
	s.Len(s.emitter.accepted, 1)
}

func (s *ServiceSuite) TestAcceptConcurrentPairUniqueness() {
	ctx := context.Background()
	initiator := id.NewUserID()
	responder := id.NewUserID()

	// Two live invitations between the same pair, accepted concurrently.
	// Exactly one may transition; the loser must conflict, never leave a
	// second accepted relationship behind.
	first := s.invite(initiator)
	second := s.invite(initiator)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, token := range []string{first.Token, second.Token} {
		wg.Add(1)
		go func(i int, token string) {
			defer wg.Done()
			_, errs[i] = s.service.Accept(ctx, token, responder)
		}(i, token)
	}
	wg.Wait()

	var succeeded, conflicted int
	for _, err := range errs {
		switch {
		case err == nil:
			succeeded++
		case dErrors.HasCode(err, dErrors.CodeConflict):
			conflicted++
		default:
			s.Failf("unexpected accept outcome", "err: %v", err)
		}
	}
	s.Equal(1, succeeded)
	s.Equal(1, conflicted)
	s.Len(s.emitter.accepted, 1)

	accepted, err := s.relationships.FindAcceptedBetween(ctx, initiator, responder)
	s.Require().NoError(err)

	states := make(map[relmodels.State]int)
	for _, r := range []*relmodels.Relationship{first, second} {
		current, err := s.relationships.FindByID(ctx, r.ID)
		s.Require().NoError(err)
		states[current.State]++
		if current.State == relmodels.StateAccepted {
			s.Equal(accepted.ID, current.ID)
		}
	}
	s.Equal(1, states[relmodels.StateAccepted])
}

func (s *ServiceSuite) TestDecline() {
	ctx := context.Background()
	initiator := id.NewUserID()
	responder := id.NewUserID()
	r := s.invite(initiator)

	declined, err := s.service.Decline(ctx, r.Token, responder)
	s.Require().NoError(err)
	s.Equal(relmodels.StateDeclined, declined.State)

	s.Run("repeat decline fails", func() {
		_, err := s.service.Decline(ctx, r.Token, responder)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})

	s.Run("decline is silent", func() {
		s.Empty(s.emitter.accepted)
		s.Empty(s.emitter.deleted)
	})
}

func (s *ServiceSuite) TestDissolve() {
	ctx := context.Background()
	initiator := id.NewUserID()
	responder := id.NewUserID()

	s.Run("dissolve deletes the relationship and its consent entries", func() {
		r := s.acceptedPair(initiator, responder)
		err := s.entries.Upsert(ctx, &models.Entry{
			PartyID:        initiator,
			RelationshipID: r.ID,
			BoundaryID:     "hand-holding",
			Accepted:       true,
			Note:           "private",
			UpdatedAt:      time.Now(),
		})
		s.Require().NoError(err)

		s.Require().NoError(s.service.Dissolve(ctx, r.ID, initiator))

		_, err = s.relationships.FindByID(ctx, r.ID)
		s.Error(err)
		left, err := s.entries.ListByPartyAndRelationship(ctx, initiator, r.ID)
		s.Require().NoError(err)
		s.Empty(left)
		s.Equal([]id.UserID{responder}, s.emitter.deleted)
	})

	s.Run("either member may dissolve", func() {
		s.SetupTest()
		r := s.acceptedPair(initiator, responder)
		s.Require().NoError(s.service.Dissolve(ctx, r.ID, responder))
		s.Equal([]id.UserID{initiator}, s.emitter.deleted)
	})

	s.Run("dissolving a pending invitation notifies nobody", func() {
		s.SetupTest()
		r := s.invite(initiator)
		s.Require().NoError(s.service.Dissolve(ctx, r.ID, initiator))
		s.Empty(s.emitter.deleted)
	})

	s.Run("non-member is forbidden", func() {
		s.SetupTest()
		r := s.acceptedPair(initiator, responder)
		err := s.service.Dissolve(ctx, r.ID, id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown relationship returns not found", func() {
		err := s.service.Dissolve(ctx, id.NewRelationshipID(), initiator)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func (s *ServiceSuite) TestBlock() {
	ctx := context.Background()
	initiator := id.NewUserID()
	responder := id.NewUserID()

	s.Run("block deletes the relationship and records the veto", func() {
		r := s.acceptedPair(initiator, responder)
		s.Require().NoError(s.service.Block(ctx, r.ID, initiator))

		_, err := s.relationships.FindByID(ctx, r.ID)
		s.Error(err)
		exists, err := s.blocks.ExistsBetween(ctx, responder, initiator)
		s.Require().NoError(err)
		s.True(exists, "block applies to the unordered pair")
		s.Equal([]id.UserID{responder}, s.emitter.deleted)
	})

	s.Run("pending invitation has no counterpart to block", func() {
		s.SetupTest()
		r := s.invite(initiator)
		err := s.service.Block(ctx, r.ID, initiator)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))
	})
}

func (s *ServiceSuite) TestRemoveAllForUser() {
	ctx := context.Background()
	departing := id.NewUserID()
	partnerA := id.NewUserID()
	partnerB := id.NewUserID()

	s.acceptedPair(departing, partnerA)
	s.acceptedPair(partnerB, departing)
	pending := s.invite(departing)

	s.Require().NoError(s.service.RemoveAllForUser(ctx, departing))

	left, err := s.relationships.ListByMember(ctx, departing)
	s.Require().NoError(err)
	s.Empty(left)
	_, err = s.relationships.FindByID(ctx, pending.ID)
	s.Error(err)
	s.ElementsMatch([]id.UserID{partnerA, partnerB}, s.emitter.deleted)
}
