package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"tandem/internal/audit"
	"tandem/internal/platform/metrics"
	"tandem/internal/platform/middleware"
	"tandem/internal/relationship/models"
	id "tandem/pkg/domain"
	dErrors "tandem/pkg/domain-errors"
	"tandem/pkg/platform/sentinel"
)

// RelationshipStore is the persistence surface the lifecycle needs.
type RelationshipStore interface {
	Create(ctx context.Context, r *models.Relationship) error
	FindByID(ctx context.Context, relationshipID id.RelationshipID) (*models.Relationship, error)
	FindByToken(ctx context.Context, token string) (*models.Relationship, error)
	AcceptIfPending(ctx context.Context, relationshipID id.RelationshipID, responder id.UserID, now time.Time) (bool, error)
	DeclineIfPending(ctx context.Context, relationshipID id.RelationshipID, now time.Time) (bool, error)
	Delete(ctx context.Context, relationshipID id.RelationshipID) error
	FindAcceptedBetween(ctx context.Context, a, b id.UserID) (*models.Relationship, error)
	ListByMember(ctx context.Context, party id.UserID) ([]*models.Relationship, error)
}

// BlockStore records pairing vetoes.
type BlockStore interface {
	Create(ctx context.Context, b *models.Block) error
	ExistsBetween(ctx context.Context, a, b id.UserID) (bool, error)
}

// LedgerStore is the slice of the consent ledger the cascade needs.
type LedgerStore interface {
	DeleteByRelationship(ctx context.Context, relationshipID id.RelationshipID) error
}

// NotificationStore is the slice of the notification store the cascade needs.
type NotificationStore interface {
	ClearRelationship(ctx context.Context, relationshipID id.RelationshipID) error
}

// Emitter produces the lifecycle notifications.
type Emitter interface {
	InvitationAccepted(ctx context.Context, initiator, responder id.UserID, relationshipID id.RelationshipID)
	RelationshipDeleted(ctx context.Context, recipient, actor id.UserID)
}

// AuditPublisher records lifecycle transitions for compliance.
type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// TxRunner wraps the dissolve/block cascade in one storage transaction. The
// in-memory runner just invokes fn.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noopTxRunner struct{}

func (noopTxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// Service owns the two-party pairing state machine:
// pending -> {accepted, declined}; accepted rows are deleted (not flagged)
// on dissolve or block.
type Service struct {
	relationships RelationshipStore
	blocks        BlockStore
	ledger        LedgerStore
	notifications NotificationStore
	emitter       Emitter
	logger        *slog.Logger
	auditor       AuditPublisher
	metrics       *metrics.Metrics
	txRunner      TxRunner
	now           func() time.Time
	newToken      func() string
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

func WithTxRunner(runner TxRunner) Option {
	return func(s *Service) {
		if runner != nil {
			s.txRunner = runner
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

func WithTokenGenerator(gen func() string) Option {
	return func(s *Service) {
		if gen != nil {
			s.newToken = gen
		}
	}
}

// New constructs a Service.
func New(relationships RelationshipStore, blocks BlockStore, ledger LedgerStore, notifications NotificationStore, emitter Emitter, opts ...Option) *Service {
	s := &Service{
		relationships: relationships,
		blocks:        blocks,
		ledger:        ledger,
		notifications: notifications,
		emitter:       emitter,
		logger:        slog.Default(),
		txRunner:      noopTxRunner{},
		now:           time.Now,
		newToken:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Invite creates a pending relationship with a fresh single-use token.
func (s *Service) Invite(ctx context.Context, initiator id.UserID) (*models.Relationship, error) {
	r, err := models.NewInvitation(id.NewRelationshipID(), initiator, s.newToken(), s.now())
	if err != nil {
		return nil, err
	}
	if err := s.relationships.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create invitation")
	}
	s.logAudit(ctx, audit.ActionInvitationCreated, initiator, r.ID, "")
	if s.metrics != nil {
		s.metrics.RelationshipsCreated.Inc()
	}
	return r, nil
}

// Inspect resolves an invitation token on behalf of a prospective responder.
func (s *Service) Inspect(ctx context.Context, token string, requester id.UserID) (*models.Relationship, error) {
	r, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if r.InitiatorID == requester {
		return nil, dErrors.New(dErrors.CodeSelfReference, "cannot act on your own invitation")
	}
	if r.State == models.StateAccepted {
		return nil, dErrors.New(dErrors.CodeInvalidState, "invitation already accepted")
	}
	return r, nil
}

// Accept consumes the invitation token. A repeat accept by the responder who
// already holds the relationship returns success without side effects, so
// client retries and double-clicks are harmless.
func (s *Service) Accept(ctx context.Context, token string, requester id.UserID) (*models.Relationship, error) {
	r, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if r.InitiatorID == requester {
		return nil, dErrors.New(dErrors.CodeSelfReference, "cannot accept your own invitation")
	}

	switch r.State {
	case models.StateAccepted:
		if r.ResponderID != nil && *r.ResponderID == requester {
			return r, nil // idempotent success, no second notification
		}
		return nil, dErrors.New(dErrors.CodeInvalidState, "invitation already accepted")
	case models.StateDeclined:
		return nil, dErrors.New(dErrors.CodeInvalidState, "invitation already declined")
	}

	blocked, err := s.blocks.ExistsBetween(ctx, r.InitiatorID, requester)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check block records")
	}
	if blocked {
		return nil, dErrors.New(dErrors.CodeBlocked, "pairing between these parties is blocked")
	}

	if existing, err := s.relationships.FindAcceptedBetween(ctx, r.InitiatorID, requester); err == nil && existing != nil {
		return nil, dErrors.New(dErrors.CodeConflict, "an accepted relationship already exists between these parties")
	} else if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check existing relationships")
	}

	transitioned, err := s.relationships.AcceptIfPending(ctx, r.ID, requester, s.now())
	if err != nil {
		// The store enforces pair uniqueness inside the transition itself;
		// the FindAcceptedBetween pre-check above only narrows the window.
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.New(dErrors.CodeConflict, "an accepted relationship already exists between these parties")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to accept invitation")
	}
	if !transitioned {
		// Lost the race. Re-read and apply the same idempotency rule.
		current, err := s.relationships.FindByID(ctx, r.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload relationship")
		}
		if current.State == models.StateAccepted && current.ResponderID != nil && *current.ResponderID == requester {
			return current, nil
		}
		return nil, dErrors.New(dErrors.CodeInvalidState, "invitation already "+string(current.State))
	}

	accepted, err := s.relationships.FindByID(ctx, r.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload relationship")
	}
	s.emitter.InvitationAccepted(ctx, accepted.InitiatorID, requester, accepted.ID)
	s.logAudit(ctx, audit.ActionInvitationAccepted, requester, accepted.ID, "")
	if s.metrics != nil {
		s.metrics.InvitationsAccepted.Inc()
	}
	return accepted, nil
}

// Decline is terminal: unlike accept, a repeat decline is an error.
func (s *Service) Decline(ctx context.Context, token string, requester id.UserID) (*models.Relationship, error) {
	r, err := s.findByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if r.InitiatorID == requester {
		return nil, dErrors.New(dErrors.CodeSelfReference, "cannot decline your own invitation")
	}
	switch r.State {
	case models.StateAccepted:
		return nil, dErrors.New(dErrors.CodeInvalidState, "invitation already accepted")
	case models.StateDeclined:
		return nil, dErrors.New(dErrors.CodeInvalidState, "invitation already declined")
	}

	transitioned, err := s.relationships.DeclineIfPending(ctx, r.ID, s.now())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to decline invitation")
	}
	if !transitioned {
		return nil, dErrors.New(dErrors.CodeInvalidState, "invitation is no longer pending")
	}

	declined, err := s.relationships.FindByID(ctx, r.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reload relationship")
	}
	s.logAudit(ctx, audit.ActionInvitationDeclined, requester, declined.ID, "")
	if s.metrics != nil {
		s.metrics.InvitationsDeclined.Inc()
	}
	return declined, nil
}

// Dissolve deletes the relationship and cascades: consent entries go with it
// and notification references are nulled so nothing dangles.
func (s *Service) Dissolve(ctx context.Context, relationshipID id.RelationshipID, requester id.UserID) error {
	r, err := s.memberRelationship(ctx, relationshipID, requester)
	if err != nil {
		return err
	}

	if err := s.cascadeDelete(ctx, r); err != nil {
		return err
	}

	if other, ok := r.OtherMember(requester); ok {
		s.emitter.RelationshipDeleted(ctx, other, requester)
	}
	s.logAudit(ctx, audit.ActionRelationshipEnded, requester, relationshipID, "dissolved")
	if s.metrics != nil {
		s.metrics.RelationshipsDeleted.Inc()
	}
	return nil
}

// Block performs the dissolve cascade and additionally records a permanent
// pairing veto so no future invitation between the pair can be accepted.
func (s *Service) Block(ctx context.Context, relationshipID id.RelationshipID, requester id.UserID) error {
	r, err := s.memberRelationship(ctx, relationshipID, requester)
	if err != nil {
		return err
	}
	other, ok := r.OtherMember(requester)
	if !ok {
		return dErrors.New(dErrors.CodeInvalidState, "invitation has no counterpart to block yet")
	}

	exists, err := s.blocks.ExistsBetween(ctx, requester, other)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to check block records")
	}
	if exists {
		return dErrors.New(dErrors.CodeInvalidState, "pairing is already blocked")
	}

	b, err := models.NewBlock(requester, other, s.now())
	if err != nil {
		return err
	}

	err = s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.deleteWithLedger(ctx, r.ID); err != nil {
			return err
		}
		if err := s.blocks.Create(ctx, b); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeInvalidState, "pairing is already blocked")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record block")
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.emitter.RelationshipDeleted(ctx, other, requester)
	s.logAudit(ctx, audit.ActionPairBlocked, requester, relationshipID, "")
	if s.metrics != nil {
		s.metrics.BlocksCreated.Inc()
		s.metrics.RelationshipsDeleted.Inc()
	}
	return nil
}

// RemoveAllForUser dissolves every relationship the party participates in.
// Called by the account-deletion hook.
func (s *Service) RemoveAllForUser(ctx context.Context, party id.UserID) error {
	relationships, err := s.relationships.ListByMember(ctx, party)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to list relationships")
	}
	for _, r := range relationships {
		if err := s.cascadeDelete(ctx, r); err != nil {
			return err
		}
		if other, ok := r.OtherMember(party); ok {
			s.emitter.RelationshipDeleted(ctx, other, party)
		}
	}
	return nil
}

func (s *Service) cascadeDelete(ctx context.Context, r *models.Relationship) error {
	return s.txRunner.RunInTx(ctx, func(ctx context.Context) error {
		return s.deleteWithLedger(ctx, r.ID)
	})
}

func (s *Service) deleteWithLedger(ctx context.Context, relationshipID id.RelationshipID) error {
	if err := s.ledger.DeleteByRelationship(ctx, relationshipID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete consent entries")
	}
	if err := s.notifications.ClearRelationship(ctx, relationshipID); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear notification references")
	}
	if err := s.relationships.Delete(ctx, relationshipID); err != nil && !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to delete relationship")
	}
	return nil
}

func (s *Service) memberRelationship(ctx context.Context, relationshipID id.RelationshipID, requester id.UserID) (*models.Relationship, error) {
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
	return r, nil
}

func (s *Service) findByToken(ctx context.Context, token string) (*models.Relationship, error) {
	if token == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "invitation token is required")
	}
	r, err := s.relationships.FindByToken(ctx, token)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "invitation not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load invitation")
	}
	return r, nil
}

func (s *Service) logAudit(ctx context.Context, action audit.Action, actor id.UserID, relationshipID id.RelationshipID, detail string) {
	args := []any{
		"event", string(action),
		"log_type", "audit",
		"relationship_id", relationshipID,
	}
	if requestID := middleware.GetRequestID(ctx); requestID != "" {
		args = append(args, "request_id", requestID)
	}
	s.logger.InfoContext(ctx, string(action), args...)
	if s.auditor == nil {
		return
	}
	_ = s.auditor.Emit(ctx, audit.Event{
		ActorID:        actor.String(),
		Action:         action,
		RelationshipID: relationshipID.String(),
		Detail:         detail,
	})
}
