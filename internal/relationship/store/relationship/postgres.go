package relationship

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tandem/internal/relationship/models"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/sentinel"
	"tandem/pkg/platform/tx"
)

// Postgres persists relationships in PostgreSQL. Methods join an ongoing
// transaction when one is present in the context.
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

func (s *Postgres) Create(ctx context.Context, r *models.Relationship) error {
	query := `
		INSERT INTO relationships (id, initiator_id, responder_id, state, token, created_at, updated_at)
		VALUES ($1, $2, NULL, $3, $4, $5, $6)
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(r.ID), uuid.UUID(r.InitiatorID), string(r.State), r.Token, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert relationship: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, relationshipID id.RelationshipID) (*models.Relationship, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, initiator_id, responder_id, state, token, created_at, updated_at
		FROM relationships WHERE id = $1
	`, uuid.UUID(relationshipID))
	return scanRelationship(row)
}

func (s *Postgres) FindByToken(ctx context.Context, token string) (*models.Relationship, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, initiator_id, responder_id, state, token, created_at, updated_at
		FROM relationships WHERE token = $1
	`, token)
	return scanRelationship(row)
}

// AcceptIfPending is the conditional check-and-set behind idempotent accept:
// the UPDATE only matches while the row is still pending, so concurrent
// accepts produce exactly one transition. Accepting a second pending
// invitation between a pair that already holds an accepted relationship
// trips the partial unique index and surfaces as ErrConflict.
func (s *Postgres) AcceptIfPending(ctx context.Context, relationshipID id.RelationshipID, responder id.UserID, now time.Time) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE relationships
		SET state = 'accepted', responder_id = $2, updated_at = $3
		WHERE id = $1 AND state = 'pending'
	`, uuid.UUID(relationshipID), uuid.UUID(responder), now)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return false, sentinel.ErrConflict
		}
		return false, fmt.Errorf("accept relationship: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("accept relationship rows: %w", err)
	}
	return affected == 1, nil
}

func (s *Postgres) DeclineIfPending(ctx context.Context, relationshipID id.RelationshipID, now time.Time) (bool, error) {
	res, err := s.q(ctx).ExecContext(ctx, `
		UPDATE relationships
		SET state = 'declined', updated_at = $2
		WHERE id = $1 AND state = 'pending'
	`, uuid.UUID(relationshipID), now)
	if err != nil {
		return false, fmt.Errorf("decline relationship: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decline relationship rows: %w", err)
	}
	return affected == 1, nil
}

func (s *Postgres) Delete(ctx context.Context, relationshipID id.RelationshipID) error {
	res, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM relationships WHERE id = $1`, uuid.UUID(relationshipID))
	if err != nil {
		return fmt.Errorf("delete relationship: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete relationship rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) FindAcceptedBetween(ctx context.Context, a, b id.UserID) (*models.Relationship, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT id, initiator_id, responder_id, state, token, created_at, updated_at
		FROM relationships
		WHERE state = 'accepted'
		  AND ((initiator_id = $1 AND responder_id = $2) OR (initiator_id = $2 AND responder_id = $1))
	`, uuid.UUID(a), uuid.UUID(b))
	return scanRelationship(row)
}

func (s *Postgres) ListByMember(ctx context.Context, party id.UserID) ([]*models.Relationship, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT id, initiator_id, responder_id, state, token, created_at, updated_at
		FROM relationships
		WHERE initiator_id = $1 OR responder_id = $1
		ORDER BY created_at
	`, uuid.UUID(party))
	if err != nil {
		return nil, fmt.Errorf("list relationships: %w", err)
	}
	defer rows.Close()

	var out []*models.Relationship
	for rows.Next() {
		r, err := scanRelationship(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRelationship(row rowScanner) (*models.Relationship, error) {
	var (
		r         models.Relationship
		rID       uuid.UUID
		initiator uuid.UUID
		responder uuid.NullUUID
		state     string
	)
	err := row.Scan(&rID, &initiator, &responder, &state, &r.Token, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan relationship: %w", err)
	}
	r.ID = id.RelationshipID(rID)
	r.InitiatorID = id.UserID(initiator)
	r.State = models.State(state)
	if responder.Valid {
		u := id.UserID(responder.UUID)
		r.ResponderID = &u
	}
	return &r, nil
}
