package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/events"
	"github.com/maplebear/saf-portal/internal/repository"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

// AutoApprovedAction marks records that never needed a coordinator.
const AutoApprovedAction = "auto"

// AuditService owns the append-only audit trail.
type AuditService struct {
	records    repository.AuditRepository
	dispatcher events.Dispatcher
	now        func() time.Time
	logger     *zap.Logger
}

// AuditDependencies bundles audit collaborators.
type AuditDependencies struct {
	AuditRepo  repository.AuditRepository
	Dispatcher events.Dispatcher
	Now        func() time.Time
	Logger     *zap.Logger
}

// AuditInput describes a sensitive action to record.
type AuditInput struct {
	ActionType       domain.AuditActionType
	Action           string
	Description      string
	TargetEntity     string
	TargetID         string
	Justification    string
	Priority         domain.AuditPriority
	RequiresApproval bool
	Details          domain.AuditDetails
}

// AuditStats summarises the audit panel counters.
type AuditStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Critical int `json:"critical"`
}

// NewAuditService constructs the service.
func NewAuditService(deps AuditDependencies) *AuditService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		records:    deps.AuditRepo,
		dispatcher: deps.Dispatcher,
		now:        clockOrDefault(deps.Now),
		logger:     logger,
	}
}

// Record appends an audit record. Records that need no approval are born approved.
// Ticket sign-off requests are refused; the ticket workflow files them through
// RecordTicketApproval.
func (s *AuditService) Record(ctx context.Context, actor domain.Actor, input AuditInput) (*domain.AuditRecord, error) {
	if input.ActionType == domain.AuditActionTicket && input.RequiresApproval {
		return nil, apperrors.NewForbidden("ticket approvals are requested on the ticket itself")
	}
	return s.record(ctx, actor, input)
}

// RecordTicketApproval appends the pending record backing a ticket sign-off request.
func (s *AuditService) RecordTicketApproval(ctx context.Context, actor domain.Actor, input AuditInput) (*domain.AuditRecord, error) {
	if input.ActionType != domain.AuditActionTicket || !input.RequiresApproval || input.Details.Ticket == nil {
		return nil, apperrors.NewValidationError("not a ticket approval request", map[string]any{"action_type": input.ActionType})
	}
	return s.record(ctx, actor, input)
}

func (s *AuditService) record(ctx context.Context, actor domain.Actor, input AuditInput) (*domain.AuditRecord, error) {
	if !input.ActionType.Valid() {
		return nil, apperrors.NewValidationError("unknown action type", map[string]any{"action_type": input.ActionType})
	}
	if blank(input.Action) {
		return nil, apperrors.NewValidationError("action is required", map[string]any{"field": "action"})
	}
	if kind := input.Details.Kind(); kind != input.ActionType {
		return nil, apperrors.NewValidationError("details do not match action type", map[string]any{
			"action_type":  input.ActionType,
			"details_kind": kind,
		})
	}
	if input.Priority == "" {
		input.Priority = domain.AuditPriorityMedium
	}
	if !input.Priority.Valid() {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": input.Priority})
	}
	if input.RequiresApproval && blank(input.Justification) {
		return nil, apperrors.NewApprovalRequired("justification is required for actions that need approval", map[string]any{"field": "justification"})
	}

	now := s.now()
	record := &domain.AuditRecord{
		ID:               uuid.NewString(),
		Timestamp:        now,
		ActionType:       input.ActionType,
		Action:           strings.TrimSpace(input.Action),
		Description:      strings.TrimSpace(input.Description),
		Actor:            actor,
		TargetEntity:     input.TargetEntity,
		TargetID:         input.TargetID,
		Justification:    strings.TrimSpace(input.Justification),
		Priority:         input.Priority,
		RequiresApproval: input.RequiresApproval,
		Details:          input.Details,
	}
	if input.RequiresApproval {
		record.Status = domain.AuditStatusPending
	} else {
		record.Status = domain.AuditStatusApproved
		record.CoordinatorAction = AutoApprovedAction
		record.DecidedAt = &now
	}

	if err := s.records.Create(ctx, record); err != nil {
		if errors.Is(err, repository.ErrDuplicateID) {
			return nil, apperrors.NewConflict("audit record already exists", map[string]any{"audit_id": record.ID})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("audit recorded",
		zap.String("audit_id", record.ID),
		zap.String("action_type", string(record.ActionType)),
		zap.String("status", string(record.Status)),
		zap.String("actor_id", actor.ID))
	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventAuditRecorded, ticketIDOf(record), actor, now,
		events.AuditRecordedPayload{Record: *record}))
	return record, nil
}

// Decide settles a pending record. Settled records never change again; the
// terminal check and the write happen under one repository lock.
func (s *AuditService) Decide(ctx context.Context, actor domain.Actor, id string, approve bool, notes string) (*domain.AuditRecord, error) {
	if !actor.IsCoordinator() {
		return nil, apperrors.NewForbidden("only coordinators can decide audit records")
	}
	now := s.now()
	record, err := s.records.UpdateIf(ctx, id, func(record *domain.AuditRecord) error {
		if record.Terminal() {
			return apperrors.NewInvalidTransition("audit record already decided", map[string]any{
				"audit_id": id,
				"status":   record.Status,
			})
		}
		if blank(record.Justification) {
			return apperrors.NewApprovalRequired("audit record has no justification", map[string]any{"audit_id": id})
		}
		record.CoordinatorID = actor.ID
		record.CoordinatorNotes = strings.TrimSpace(notes)
		record.DecidedAt = &now
		if approve {
			record.Status = domain.AuditStatusApproved
			record.CoordinatorAction = "approved"
		} else {
			record.Status = domain.AuditStatusRejected
			record.CoordinatorAction = "rejected"
		}
		return nil
	})
	if err != nil {
		return nil, lookupError(err, "audit record", map[string]any{"audit_id": id})
	}
	s.logger.Info("audit decided",
		zap.String("audit_id", record.ID),
		zap.String("status", string(record.Status)),
		zap.String("coordinator_id", actor.ID))
	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventAuditDecided, ticketIDOf(record), actor, now,
		events.AuditDecidedPayload{Record: *record, Approved: approve}))
	return record, nil
}

// Get returns a record by id.
func (s *AuditService) Get(ctx context.Context, id string) (*domain.AuditRecord, error) {
	record, err := s.records.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "audit record", map[string]any{"audit_id": id})
	}
	return record, nil
}

// List returns records newest first.
func (s *AuditService) List(ctx context.Context, filter repository.AuditFilter) ([]domain.AuditRecord, error) {
	return s.records.List(ctx, filter)
}

// Stats counts records by status plus critical priority.
func (s *AuditService) Stats(ctx context.Context) (AuditStats, error) {
	records, err := s.records.List(ctx, repository.AuditFilter{})
	if err != nil {
		return AuditStats{}, err
	}
	stats := AuditStats{Total: len(records)}
	for _, r := range records {
		switch r.Status {
		case domain.AuditStatusPending:
			stats.Pending++
		case domain.AuditStatusApproved:
			stats.Approved++
		case domain.AuditStatusRejected:
			stats.Rejected++
		}
		if r.Priority == domain.AuditPriorityCritical {
			stats.Critical++
		}
	}
	return stats, nil
}

func ticketIDOf(record *domain.AuditRecord) string {
	if record.ActionType == domain.AuditActionTicket {
		return record.TargetID
	}
	return ""
}
