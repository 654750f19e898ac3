package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"tandem/internal/audit"
	"tandem/internal/catalog"
	"tandem/internal/ledger/models"
	"tandem/internal/platform/config"
	"tandem/internal/platform/metrics"
	"tandem/internal/platform/middleware"
	relmodels "tandem/internal/relationship/models"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
	"tandem/pkg/platform/sentinel"
)

// EntryStore is the persistence surface the ledger needs.
type EntryStore interface {
	Upsert(ctx context.Context, e *models.Entry) error
	Find(ctx context.Context, party id.UserID, relationship id.RelationshipID, boundary id.BoundaryID) (*models.Entry, error)
	ListByPartyAndRelationship(ctx context.Context, party id.UserID, relationship id.RelationshipID) ([]*models.Entry, error)
	Delete(ctx context.Context, party id.UserID, relationship id.RelationshipID, boundary id.BoundaryID) error
	DeleteByParty(ctx context.Context, party id.UserID) error
}

// RelationshipFinder resolves membership. The ledger never joins the two
// parties' rows; it only needs to know who belongs to the relationship.
type RelationshipFinder interface {
	FindByID(ctx context.Context, relationshipID id.RelationshipID) (*relmodels.Relationship, error)
}

// Emitter receives the match transitions classified during setMany.
type Emitter interface {
	NewCommonLimit(ctx context.Context, partyA, partyB id.UserID, relationshipID id.RelationshipID, boundaryLabel string)
	LimitRemoved(ctx context.Context, recipient, actor id.UserID, relationshipID id.RelationshipID, boundaryLabel string)
}

// AuditPublisher records ledger writes for compliance.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Service owns the per-(party, relationship, boundary) consent ledger. Every
// read and write here is own-row-scoped; cross-party joins live exclusively
// in the match engine.
type Service struct {
	entries       EntryStore
	relationships RelationshipFinder
	catalog       *catalog.Service
	emitter       Emitter
	logger        *slog.Logger
	auditor       AuditPublisher
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	noteMaxLen    int
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) { s.auditor = publisher }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithNoteMaxLen(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.noteMaxLen = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a Service.
func New(entries EntryStore, relationships RelationshipFinder, cat *catalog.Service, emitter Emitter, opts ...Option) *Service {
	s := &Service{
		entries:       entries,
		relationships: relationships,
		catalog:       cat,
		emitter:       emitter,
		logger:        slog.Default(),
		tracer:        otel.Tracer("tandem/ledger"),
		noteMaxLen:    config.DefaultNoteMaxLen,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// GetOwn returns the caller's entries for a relationship, in catalog order.
func (s *Service) GetOwn(ctx context.Context, relationshipID id.RelationshipID, party id.UserID) ([]*models.Entry, error) {
	if _, err := s.requireMember(ctx, relationshipID, party); err != nil {
		return nil, err
	}
	return s.ownLedger(ctx, relationshipID, party)
}

// SetMany upserts the caller's rows for each valid entry and classifies
// match transitions against the other party's rows as observed at write
// time. Unknown boundary ids are skipped to tolerate stale client data.
func (s *Service) SetMany(ctx context.Context, relationshipID id.RelationshipID, party id.UserID, inputs []models.EntryInput) ([]*models.Entry, error) {
	ctx, span := s.tracer.Start(ctx, "ledger.SetMany")
	defer span.End()

	r, err := s.requireMember(ctx, relationshipID, party)
	if err != nil {
		return nil, err
	}
	other, hasOther := r.OtherMember(party)

	// Validate the whole batch before the first upsert so a bad note in a
	// later entry cannot leave the batch half applied.
	for _, input := range inputs {
		if input.Note == nil || !s.catalog.Exists(input.BoundaryID) {
			continue
		}
		if _, err := models.ValidateNote(*input.Note, s.noteMaxLen); err != nil {
			return nil, err
		}
	}

	for _, input := range inputs {
		if !s.catalog.Exists(input.BoundaryID) {
			s.logger.WarnContext(ctx, "skipping unknown boundary id",
				"boundary_id", input.BoundaryID,
				"request_id", middleware.GetRequestID(ctx),
			)
			continue
		}

		prior, err := s.entries.Find(ctx, party, relationshipID, input.BoundaryID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent entry")
		}

		next := &models.Entry{
			PartyID:        party,
			RelationshipID: relationshipID,
			BoundaryID:     input.BoundaryID,
			Accepted:       input.Accepted,
			UpdatedAt:      s.now(),
		}
		if prior != nil {
			next.Note = prior.Note
		}
		if input.Note != nil {
			note, err := models.ValidateNote(*input.Note, s.noteMaxLen)
			if err != nil {
				return nil, err
			}
			next.Note = note
		}

		if err := s.entries.Upsert(ctx, next); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save consent entry")
		}
		if s.metrics != nil {
			s.metrics.LedgerWrites.Inc()
		}

		priorAccepted := prior != nil && prior.Accepted
		if priorAccepted == next.Accepted || !hasOther {
			continue
		}
		s.classifyTransition(ctx, relationshipID, party, other, input.BoundaryID, next.Accepted)
	}

	s.logAudit(ctx, party, relationshipID)
	return s.ownLedger(ctx, relationshipID, party)
}

// classifyTransition inspects the other party's row as observed at write
// time. Under extreme simultaneity a duplicate or missed advisory
// notification is acceptable; the match engine always recomputes fresh.
func (s *Service) classifyTransition(ctx context.Context, relationshipID id.RelationshipID, party, other id.UserID, boundaryID id.BoundaryID, nowAccepted bool) {
	theirs, err := s.entries.Find(ctx, other, relationshipID, boundaryID)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) {
			s.logger.ErrorContext(ctx, "failed to read counterpart entry for classification",
				"boundary_id", boundaryID,
				"error", err,
			)
		}
		return
	}
	if !theirs.Accepted {
		return
	}

	boundary, _ := s.catalog.Get(boundaryID)
	if nowAccepted {
		// false -> true with reciprocal acceptance: newly common.
		s.emitter.NewCommonLimit(ctx, party, other, relationshipID, boundary.Label)
		if s.metrics != nil {
			s.metrics.CommonBoundaryGained.Inc()
		}
	} else {
		// true -> false while the other side still accepts: no longer common.
		// Only the counterpart is told; the actor already knows.
		s.emitter.LimitRemoved(ctx, other, party, relationshipID, boundary.Label)
		if s.metrics != nil {
			s.metrics.CommonBoundaryLost.Inc()
		}
	}
}

// SetNote attaches a private note to one boundary. A note may precede
// acceptance, so a missing entry is created with accepted=false.
func (s *Service) SetNote(ctx context.Context, relationshipID id.RelationshipID, party id.UserID, boundaryID id.BoundaryID, note string) error {
	note, err := models.ValidateNote(note, s.noteMaxLen)
	if err != nil {
		return err
	}
	if !s.catalog.Exists(boundaryID) {
		return dErrors.New(dErrors.CodeNotFound, "unknown boundary")
	}
	if _, err := s.requireMember(ctx, relationshipID, party); err != nil {
		return err
	}

	entry := &models.Entry{
		PartyID:        party,
		RelationshipID: relationshipID,
		BoundaryID:     boundaryID,
		Note:           note,
		UpdatedAt:      s.now(),
	}
	if prior, err := s.entries.Find(ctx, party, relationshipID, boundaryID); err == nil {
		entry.Accepted = prior.Accepted
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent entry")
	}

	if err := s.entries.Upsert(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to save note")
	}
	return nil
}

// ClearNote removes a note. A note-only row has no reason to persist, so the
// row is deleted outright when acceptance is false.
func (s *Service) ClearNote(ctx context.Context, relationshipID id.RelationshipID, party id.UserID, boundaryID id.BoundaryID) error {
	if _, err := s.requireMember(ctx, relationshipID, party); err != nil {
		return err
	}
	entry, err := s.entries.Find(ctx, party, relationshipID, boundaryID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "no entry for this boundary")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent entry")
	}

	if !entry.Accepted {
		if err := s.entries.Delete(ctx, party, relationshipID, boundaryID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete consent entry")
		}
		return nil
	}

	entry.Note = ""
	entry.UpdatedAt = s.now()
	if err := s.entries.Upsert(ctx, entry); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear note")
	}
	return nil
}

// RemoveAllForParty honors the account-deletion hook.
func (s *Service) RemoveAllForParty(ctx context.Context, party id.UserID) error {
	if err := s.entries.DeleteByParty(ctx, party); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete consent entries")
	}
	return nil
}

func (s *Service) ownLedger(ctx context.Context, relationshipID id.RelationshipID, party id.UserID) ([]*models.Entry, error) {
	entries, err := s.entries.ListByPartyAndRelationship(ctx, party, relationshipID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list consent entries")
	}
	sort.Slice(entries, func(i, j int) bool {
		return s.catalog.OrderIndex(entries[i].BoundaryID) < s.catalog.OrderIndex(entries[j].BoundaryID)
	})
	return entries, nil
}

func (s *Service) requireMember(ctx context.Context, relationshipID id.RelationshipID, party id.UserID) (*relmodels.Relationship, error) {
	r, err := s.relationships.FindByID(ctx, relationshipID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "relationship not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relationship")
	}
	if !r.IsMember(party) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not a member of this relationship")
	}
	return r, nil
}

func (s *Service) logAudit(ctx context.Context, party id.UserID, relationshipID id.RelationshipID) {
	args := []any{
		"event", string(audit.ActionLedgerUpdated),
		"log_type", "audit",
		"relationship_id", relationshipID,
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, string(audit.ActionLedgerUpdated), args...)
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		ActorID:        party.String(),
		Action:         audit.ActionLedgerUpdated,
		RelationshipID: relationshipID.String(),
	})
}
