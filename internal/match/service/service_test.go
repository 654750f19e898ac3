package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tandem/internal/catalog"
	ledgermodels "tandem/internal/ledger/models"
	entrystore "tandem/internal/ledger/store/entry"
	relmodels "tandem/internal/relationship/models"
	relstore "tandem/internal/relationship/store/relationship"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
)

type MatchSuite struct {
	suite.Suite
	entries       *entrystore.InMemory
	relationships *relstore.InMemory
	service       *Service

	partyA       id.UserID
	partyB       id.UserID
	relationship id.RelationshipID
}

func TestMatchSuite(t *testing.T) {
	suite.Run(t, new(MatchSuite))
}

func (s *MatchSuite) SetupTest() {
	s.entries = entrystore.NewInMemory()
	s.relationships = relstore.NewInMemory()
	s.service = New(s.entries, s.relationships, catalog.New())

	s.partyA = id.NewUserID()
	s.partyB = id.NewUserID()
	s.relationship = id.NewRelationshipID()

	responder := s.partyB
	err := s.relationships.Create(context.Background(), &relmodels.Relationship{
		ID:          s.relationship,
		InitiatorID: s.partyA,
		ResponderID: &responder,
		State:       relmodels.StateAccepted,
		Token:       "token-" + s.relationship.String(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	})
	s.Require().NoError(err)
}

func (s *MatchSuite) upsert(party id.UserID, boundary id.BoundaryID, accepted bool, note string) {
	err := s.entries.Upsert(context.Background(), &ledgermodels.Entry{
		PartyID:        party,
		RelationshipID: s.relationship,
		BoundaryID:     boundary,
		Accepted:       accepted,
		Note:           note,
		UpdatedAt:      time.Now(),
	})
	s.Require().NoError(err)
}

func (s *MatchSuite) TestCommonBoundaries() {
	ctx := context.Background()

	s.upsert(s.partyA, "hand-holding", true, "a note from A")
	s.upsert(s.partyB, "hand-holding", true, "a note from B")
	s.upsert(s.partyA, "hugging", true, "")
	s.upsert(s.partyB, "kissing", true, "")
	s.upsert(s.partyA, "shared-location", true, "")
	s.upsert(s.partyB, "shared-location", false, "")

	s.Run("only mutually accepted boundaries match", func() {
		list, err := s.service.CommonBoundaries(ctx, s.relationship, s.partyA)
		s.Require().NoError(err)
		s.Equal(string(relmodels.StateAccepted), list.State)
		s.Require().Len(list.Matches, 1)
		s.Equal(id.BoundaryID("hand-holding"), list.Matches[0].BoundaryID)
		s.Equal("Holding hands", list.Matches[0].Label)
		s.Equal("affection", list.Matches[0].Category)
	})

	s.Run("each party sees only their own note", func() {
		forA, err := s.service.CommonBoundaries(ctx, s.relationship, s.partyA)
		s.Require().NoError(err)
		s.Equal("a note from A", forA.Matches[0].OwnNote)

		forB, err := s.service.CommonBoundaries(ctx, s.relationship, s.partyB)
		s.Require().NoError(err)
		s.Equal("a note from B", forB.Matches[0].OwnNote)
	})

	s.Run("results follow catalog order", func() {
		s.upsert(s.partyA, "shared-photos", true, "")
		s.upsert(s.partyB, "shared-photos", true, "")
		s.upsert(s.partyA, "daily-checkins", true, "")
		s.upsert(s.partyB, "daily-checkins", true, "")

		list, err := s.service.CommonBoundaries(ctx, s.relationship, s.partyA)
		s.Require().NoError(err)
		s.Require().Len(list.Matches, 3)
		s.Equal(id.BoundaryID("hand-holding"), list.Matches[0].BoundaryID)
		s.Equal(id.BoundaryID("daily-checkins"), list.Matches[1].BoundaryID)
		s.Equal(id.BoundaryID("shared-photos"), list.Matches[2].BoundaryID)
	})
}

func (s *MatchSuite) TestCommonBoundaries_Access() {
	ctx := context.Background()

	s.Run("non-member is forbidden", func() {
		_, err := s.service.CommonBoundaries(ctx, s.relationship, id.NewUserID())
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("unknown relationship returns not found", func() {
		_, err := s.service.CommonBoundaries(ctx, id.NewRelationshipID(), s.partyA)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("pending relationship reports its state, not a bare empty list", func() {
		pendingID := id.NewRelationshipID()
		initiator := id.NewUserID()
		err := s.relationships.Create(ctx, &relmodels.Relationship{
			ID:          pendingID,
			InitiatorID: initiator,
			State:       relmodels.StatePending,
			Token:       "token-" + pendingID.String(),
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
		})
		s.Require().NoError(err)

		pending, err := s.service.CommonBoundaries(ctx, pendingID, initiator)
		s.Require().NoError(err)
		s.Equal(string(relmodels.StatePending), pending.State)
		s.Empty(pending.Matches)

		// An accepted relationship with no overlap is the other side of the
		// distinction: same empty list, different state.
		accepted, err := s.service.CommonBoundaries(ctx, s.relationship, s.partyA)
		s.Require().NoError(err)
		s.Equal(string(relmodels.StateAccepted), accepted.State)
		s.Empty(accepted.Matches)
	})
}
