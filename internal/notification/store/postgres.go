package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"tandem/internal/notification/models"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/sentinel"
	"tandem/pkg/platform/tx"
)

// Postgres persists notifications in PostgreSQL. Methods join an ongoing
// transaction when one is present in the context, so ClearRelationship
// rolls back together with the dissolve or block cascade that ran it.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// querier lets methods run against either the pool or a context transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Postgres) q(ctx context.Context) querier {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func (s *Postgres) Create(ctx context.Context, n *models.Notification) error {
	var relatedUser, relationship any
	if n.RelatedUserID != nil {
		relatedUser = uuid.UUID(*n.RelatedUserID)
	}
	if n.RelationshipID != nil {
		relationship = uuid.UUID(*n.RelationshipID)
	}
	query := `
		INSERT INTO notifications (id, recipient_id, kind, title, message, related_user_id, relationship_id, read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(n.ID), uuid.UUID(n.RecipientID), string(n.Kind),
		n.Title, n.Message, relatedUser, relationship, n.Read, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *Postgres) ListByRecipient(ctx context.Context, recipient id.UserID) ([]*models.Notification, error) {
	query := `
		SELECT id, recipient_id, kind, title, message, related_user_id, relationship_id, read, created_at
		FROM notifications
		WHERE recipient_id = $1
		ORDER BY created_at DESC
	`
	rows, err := s.q(ctx).QueryContext(ctx, query, uuid.UUID(recipient))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Postgres) CountUnread(ctx context.Context, recipient id.UserID) (int, error) {
	var count int
	err := s.q(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notifications WHERE recipient_id = $1 AND NOT read`,
		uuid.UUID(recipient),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return count, nil
}

func (s *Postgres) MarkRead(ctx context.Context, notificationID id.NotificationID, recipient id.UserID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE id = $1 AND recipient_id = $2`,
		uuid.UUID(notificationID), uuid.UUID(recipient),
	)
	if err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark read rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) MarkAllRead(ctx context.Context, recipient id.UserID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE recipient_id = $1 AND NOT read`,
		uuid.UUID(recipient),
	)
	if err != nil {
		return fmt.Errorf("mark all read: %w", err)
	}
	return nil
}

func (s *Postgres) ClearRelationship(ctx context.Context, relationshipID id.RelationshipID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`UPDATE notifications SET relationship_id = NULL WHERE relationship_id = $1`,
		uuid.UUID(relationshipID),
	)
	if err != nil {
		return fmt.Errorf("clear relationship reference: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteByRecipient(ctx context.Context, recipient id.UserID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM notifications WHERE recipient_id = $1`,
		uuid.UUID(recipient),
	)
	if err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n            models.Notification
		nID          uuid.UUID
		recipientID  uuid.UUID
		kind         string
		relatedUser  uuid.NullUUID
		relationship uuid.NullUUID
	)
	if err := row.Scan(&nID, &recipientID, &kind, &n.Title, &n.Message, &relatedUser, &relationship, &n.Read, &n.CreatedAt); err != nil {
		return nil, fmt.Errorf("scan notification: %w", err)
	}
	n.ID = id.NotificationID(nID)
	n.RecipientID = id.UserID(recipientID)
	n.Kind = models.Kind(kind)
	if relatedUser.Valid {
		u := id.UserID(relatedUser.UUID)
		n.RelatedUserID = &u
	}
	if relationship.Valid {
		r := id.RelationshipID(relationship.UUID)
		n.RelationshipID = &r
	}
	return &n, nil
}
