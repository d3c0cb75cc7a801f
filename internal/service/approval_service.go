package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

// Reverter restores the before state of a rejected audit record.
type Reverter func(ctx context.Context, actor domain.Actor, record *domain.AuditRecord) error

// ApprovalService settles audit records and applies the outcome to the owning entity.
type ApprovalService struct {
	audit       *AuditService
	tickets     *TicketService
	coordinator *CoordinatorService
	logger      *zap.Logger

	mu        sync.RWMutex
	reverters map[domain.AuditActionType]Reverter
}

// ApprovalDependencies bundles collaborators.
type ApprovalDependencies struct {
	Audit       *AuditService
	Tickets     *TicketService
	Coordinator *CoordinatorService
	Logger      *zap.Logger
}

// NewApprovalService constructs the service with the ticket reverter installed.
func NewApprovalService(deps ApprovalDependencies) *ApprovalService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ApprovalService{
		audit:       deps.Audit,
		tickets:     deps.Tickets,
		coordinator: deps.Coordinator,
		logger:      logger,
		reverters:   map[domain.AuditActionType]Reverter{},
	}
	s.RegisterReverter(domain.AuditActionTicket, s.revertTicket)
	return s
}

// RegisterReverter installs the rollback for an action type.
func (s *ApprovalService) RegisterReverter(kind domain.AuditActionType, reverter Reverter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reverters[kind] = reverter
}

// Approve settles a pending record as approved.
func (s *ApprovalService) Approve(ctx context.Context, actor domain.Actor, recordID, notes string) (*domain.AuditRecord, error) {
	record, err := s.precheck(ctx, actor, recordID)
	if err != nil {
		return nil, err
	}
	decided, err := s.audit.Decide(ctx, actor, record.ID, true, notes)
	if err != nil {
		return nil, err
	}
	if decided.ActionType == domain.AuditActionTicket && decided.Details.Ticket != nil {
		if _, err := s.tickets.ApplyApprovalDecision(ctx, actor, decided, true); err != nil {
			return nil, err
		}
	}
	s.clearNotifications(ctx, decided)
	return decided, nil
}

// Reject settles a pending record as rejected and rolls back its change.
func (s *ApprovalService) Reject(ctx context.Context, actor domain.Actor, recordID, notes string) (*domain.AuditRecord, error) {
	record, err := s.precheck(ctx, actor, recordID)
	if err != nil {
		return nil, err
	}
	decided, err := s.audit.Decide(ctx, actor, record.ID, false, notes)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	reverter, ok := s.reverters[decided.ActionType]
	s.mu.RUnlock()
	if ok {
		if err := reverter(ctx, actor, decided); err != nil {
			return nil, err
		}
	} else {
		s.logger.Info("rejection recorded without rollback",
			zap.String("audit_id", decided.ID),
			zap.String("action_type", string(decided.ActionType)),
			zap.String("target_id", decided.TargetID))
	}
	s.clearNotifications(ctx, decided)
	return decided, nil
}

// precheck verifies the decision can fully apply before anything is written.
// A ticket record only applies while the ticket still awaits that sign-off.
func (s *ApprovalService) precheck(ctx context.Context, actor domain.Actor, recordID string) (*domain.AuditRecord, error) {
	if !actor.IsCoordinator() {
		return nil, apperrors.NewForbidden("only coordinators can decide audit records")
	}
	record, err := s.audit.Get(ctx, recordID)
	if err != nil {
		return nil, err
	}
	if record.ActionType == domain.AuditActionTicket && !record.Terminal() {
		ticket, err := s.tickets.Get(ctx, record.TargetID)
		if err != nil {
			return nil, err
		}
		if !AwaitingDecision(ticket, record) {
			return nil, apperrors.NewInvalidTransition("ticket changed since approval was requested", map[string]any{
				"audit_id":       record.ID,
				"ticket_id":      ticket.ID,
				"status":         ticket.Status,
				"needs_approval": ticket.NeedsApproval,
			})
		}
	}
	return record, nil
}

func (s *ApprovalService) revertTicket(ctx context.Context, actor domain.Actor, record *domain.AuditRecord) error {
	if record.Details.Ticket == nil {
		return nil
	}
	_, err := s.tickets.ApplyApprovalDecision(ctx, actor, record, false)
	return err
}

func (s *ApprovalService) clearNotifications(ctx context.Context, record *domain.AuditRecord) {
	if s.coordinator == nil {
		return
	}
	changed, err := s.coordinator.MarkRelatedRead(ctx, "", record.ID, domain.NotificationApprovalNeeded)
	if err != nil {
		s.logger.Warn("mark approval notifications read", zap.String("audit_id", record.ID), zap.Error(err))
		return
	}
	s.logger.Debug("approval notifications cleared", zap.String("audit_id", record.ID), zap.Int("count", changed))
}
