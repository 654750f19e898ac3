package service

import (
	"context"
	"errors"
	"log/slog"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tandem/internal/catalog"
	ledgermodels "tandem/internal/ledger/models"
	"tandem/internal/match/models"
	relmodels "tandem/internal/relationship/models"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
	"tandem/pkg/platform/sentinel"
)

// EntryReader is the read-only slice of the ledger store the match engine
// uses. ListAcceptedBoundariesFor deliberately carries no note content; the
// caller's own notes arrive through the row-scoped list.
type EntryReader interface {
	ListByPartyAndRelationship(ctx context.Context, party id.UserID, relationship id.RelationshipID) ([]*ledgermodels.Entry, error)
	ListAcceptedBoundariesFor(ctx context.Context, parties []id.UserID, relationship id.RelationshipID) (map[id.UserID][]id.BoundaryID, error)
}

// RelationshipFinder resolves membership and acceptance state.
type RelationshipFinder interface {
	FindByID(ctx context.Context, relationshipID id.RelationshipID) (*relmodels.Relationship, error)
}

// Service computes the set intersection of both parties' accepted
// boundaries. This is the only code path that reads two parties' rows in one
// operation, and it sees accepted flags only.
type Service struct {
	entries       EntryReader
	relationships RelationshipFinder
	catalog       *catalog.Service
	logger        *slog.Logger
	tracer        trace.Tracer
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New constructs a Service.
func New(entries EntryReader, relationships RelationshipFinder, cat *catalog.Service, opts ...Option) *Service {
	s := &Service{
		entries:       entries,
		relationships: relationships,
		catalog:       cat,
		logger:        slog.Default(),
		tracer:        otel.Tracer("tandem/match"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CommonBoundaries returns the boundaries both parties accepted, in catalog
// order, annotated with the caller's own notes. A relationship that is not
// yet accepted yields an empty list carrying the relationship state rather
// than an error, so callers can tell the transient case apart from an
// accepted relationship with no overlap.
func (s *Service) CommonBoundaries(ctx context.Context, relationshipID id.RelationshipID, requester id.UserID) (*models.MatchList, error) {
	ctx, span := s.tracer.Start(ctx, "match.CommonBoundaries")
	defer span.End()

	r, err := s.relationships.FindByID(ctx, relationshipID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "relationship not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load relationship")
	}
	if !r.IsMember(requester) {
		return nil, dErrors.New(dErrors.CodeForbidden, "not a member of this relationship")
	}
	empty := &models.MatchList{State: string(r.State), Matches: []models.CommonBoundary{}}
	if r.State != relmodels.StateAccepted {
		return empty, nil
	}
	other, ok := r.OtherMember(requester)
	if !ok {
		return empty, nil
	}

	var (
		accepted map[id.UserID][]id.BoundaryID
		own      []*ledgermodels.Entry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		accepted, err = s.entries.ListAcceptedBoundariesFor(gctx, []id.UserID{requester, other}, relationshipID)
		return err
	})
	g.Go(func() error {
		var err error
		own, err = s.entries.ListByPartyAndRelationship(gctx, requester, relationshipID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load consent entries")
	}

	theirs := make(map[id.BoundaryID]bool, len(accepted[other]))
	for _, b := range accepted[other] {
		theirs[b] = true
	}
	ownNotes := make(map[id.BoundaryID]string, len(own))
	for _, e := range own {
		ownNotes[e.BoundaryID] = e.Note
	}

	matches := make([]models.CommonBoundary, 0)
	for _, b := range accepted[requester] {
		if !theirs[b] {
			continue
		}
		def, ok := s.catalog.Get(b)
		if !ok {
			// Catalog entries are never removed, so this indicates drift.
			s.logger.WarnContext(ctx, "accepted boundary missing from catalog", "boundary_id", b)
			continue
		}
		matches = append(matches, models.CommonBoundary{
			BoundaryID: b,
			Label:      def.Label,
			Category:   def.Category,
			OwnNote:    ownNotes[b],
		})
	}
	sort.Slice(matches, func(i, j int) bool {
		return s.catalog.OrderIndex(matches[i].BoundaryID) < s.catalog.OrderIndex(matches[j].BoundaryID)
	})
	return &models.MatchList{State: string(r.State), Matches: matches}, nil
}
