//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"tandem/internal/notification/models"
	"tandem/internal/notification/store"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/tx"
	"tandem/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.Postgres
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T(), "../../../db/schema.sql")
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.postgres.Truncate(context.Background(), s.T())
}

func (s *PostgresStoreSuite) newNotification(recipient id.UserID, relationshipID id.RelationshipID) *models.Notification {
	related := relationshipID
	return &models.Notification{
		ID:             id.NewNotificationID(),
		RecipientID:    recipient,
		Kind:           models.KindRelationshipDeleted,
		Title:          "Relationship ended",
		Message:        "The relationship has been dissolved.",
		RelationshipID: &related,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

// TestClearRelationshipJoinsTransaction pins the cascade contract: when the
// dissolve or block transaction rolls back, the notification references it
// cleared must come back with it.
func (s *PostgresStoreSuite) TestClearRelationshipJoinsTransaction() {
	ctx := context.Background()
	recipient := id.NewUserID()
	relationshipID := id.NewRelationshipID()
	n := s.newNotification(recipient, relationshipID)
	s.Require().NoError(s.store.Create(ctx, n))

	s.Run("rolled back clear leaves the reference intact", func() {
		sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
		s.Require().NoError(err)
		txCtx := tx.WithTx(ctx, sqlTx)

		s.Require().NoError(s.store.ClearRelationship(txCtx, relationshipID))
		s.Require().NoError(sqlTx.Rollback())

		list, err := s.store.ListByRecipient(ctx, recipient)
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.Require().NotNil(list[0].RelationshipID)
		s.Equal(relationshipID, *list[0].RelationshipID)
	})

	s.Run("committed clear nulls the reference", func() {
		sqlTx, err := s.postgres.DB.BeginTx(ctx, nil)
		s.Require().NoError(err)
		txCtx := tx.WithTx(ctx, sqlTx)

		s.Require().NoError(s.store.ClearRelationship(txCtx, relationshipID))
		s.Require().NoError(sqlTx.Commit())

		list, err := s.store.ListByRecipient(ctx, recipient)
		s.Require().NoError(err)
		s.Require().Len(list, 1)
		s.Nil(list[0].RelationshipID)
	})
}
