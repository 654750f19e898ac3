package entry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"tandem/internal/ledger/models"
	id "tandem/pkg/domain"
	"tandem/pkg/platform/sentinel"
	"tandem/pkg/platform/tx"
)

// Postgres persists consent entries in PostgreSQL. Each row's sole legitimate
// writer is the owning party, so a plain upsert per row is race-free across
// parties.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

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

func (s *Postgres) Upsert(ctx context.Context, e *models.Entry) error {
	query := `
		INSERT INTO consent_entries (party_id, relationship_id, boundary_id, accepted, note, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (party_id, relationship_id, boundary_id) DO UPDATE SET
			accepted = EXCLUDED.accepted,
			note = EXCLUDED.note,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.q(ctx).ExecContext(ctx, query,
		uuid.UUID(e.PartyID), uuid.UUID(e.RelationshipID), string(e.BoundaryID),
		e.Accepted, e.Note, e.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert consent entry: %w", err)
	}
	return nil
}

func (s *Postgres) Find(ctx context.Context, party id.UserID, relationship id.RelationshipID, boundary id.BoundaryID) (*models.Entry, error) {
	row := s.q(ctx).QueryRowContext(ctx, `
		SELECT party_id, relationship_id, boundary_id, accepted, note, updated_at
		FROM consent_entries
		WHERE party_id = $1 AND relationship_id = $2 AND boundary_id = $3
	`, uuid.UUID(party), uuid.UUID(relationship), string(boundary))
	return scanEntry(row)
}

func (s *Postgres) ListByPartyAndRelationship(ctx context.Context, party id.UserID, relationship id.RelationshipID) ([]*models.Entry, error) {
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT party_id, relationship_id, boundary_id, accepted, note, updated_at
		FROM consent_entries
		WHERE party_id = $1 AND relationship_id = $2
	`, uuid.UUID(party), uuid.UUID(relationship))
	if err != nil {
		return nil, fmt.Errorf("list consent entries: %w", err)
	}
	defer rows.Close()

	var out []*models.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListAcceptedBoundariesFor returns only the boundary ids a set of parties
// accepted, using unnest for a single round trip. The match engine uses this
// to join both sides without loading note columns it must not return.
func (s *Postgres) ListAcceptedBoundariesFor(ctx context.Context, parties []id.UserID, relationship id.RelationshipID) (map[id.UserID][]id.BoundaryID, error) {
	raw := make([]uuid.UUID, 0, len(parties))
	for _, p := range parties {
		raw = append(raw, uuid.UUID(p))
	}
	rows, err := s.q(ctx).QueryContext(ctx, `
		SELECT party_id, boundary_id
		FROM consent_entries
		WHERE relationship_id = $1 AND accepted AND party_id = ANY($2::uuid[])
	`, uuid.UUID(relationship), pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("list accepted boundaries: %w", err)
	}
	defer rows.Close()

	out := make(map[id.UserID][]id.BoundaryID)
	for rows.Next() {
		var party uuid.UUID
		var boundary string
		if err := rows.Scan(&party, &boundary); err != nil {
			return nil, fmt.Errorf("scan accepted boundary: %w", err)
		}
		out[id.UserID(party)] = append(out[id.UserID(party)], id.BoundaryID(boundary))
	}
	return out, rows.Err()
}

func (s *Postgres) Delete(ctx context.Context, party id.UserID, relationship id.RelationshipID, boundary id.BoundaryID) error {
	res, err := s.q(ctx).ExecContext(ctx, `
		DELETE FROM consent_entries
		WHERE party_id = $1 AND relationship_id = $2 AND boundary_id = $3
	`, uuid.UUID(party), uuid.UUID(relationship), string(boundary))
	if err != nil {
		return fmt.Errorf("delete consent entry: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete consent entry rows: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Postgres) DeleteByRelationship(ctx context.Context, relationship id.RelationshipID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM consent_entries WHERE relationship_id = $1`, uuid.UUID(relationship))
	if err != nil {
		return fmt.Errorf("delete consent entries: %w", err)
	}
	return nil
}

func (s *Postgres) DeleteByParty(ctx context.Context, party id.UserID) error {
	_, err := s.q(ctx).ExecContext(ctx,
		`DELETE FROM consent_entries WHERE party_id = $1`, uuid.UUID(party))
	if err != nil {
		return fmt.Errorf("delete party consent entries: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.Entry, error) {
	var (
		e            models.Entry
		party        uuid.UUID
		relationship uuid.UUID
		boundary     string
	)
	err := row.Scan(&party, &relationship, &boundary, &e.Accepted, &e.Note, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan consent entry: %w", err)
	}
	e.PartyID = id.UserID(party)
	e.RelationshipID = id.RelationshipID(relationship)
	e.BoundaryID = id.BoundaryID(boundary)
	return &e, nil
}
