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
	"github.com/maplebear/saf-portal/internal/sla"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

// AuditRecorder files the pending audit record behind a ticket sign-off request.
type AuditRecorder interface {
	RecordTicketApproval(ctx context.Context, actor domain.Actor, input AuditInput) (*domain.AuditRecord, error)
}

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	audit      AuditRecorder
	dispatcher events.Dispatcher
	policy     sla.Policy
	now        func() time.Time
	logger     *zap.Logger
}

// TicketDependencies bundles collaborators for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Audit      AuditRecorder
	Dispatcher events.Dispatcher
	Policy     sla.Policy
	Now        func() time.Time
	Logger     *zap.Logger
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	ID           string
	TicketNumber string
	Source       string
	Group        string
	Requester    string
	Agent        domain.Agent
	Description  string
	Tags         []string
	Watchers     []string
	DueDate      *time.Time
	PendingSince *time.Time
	CreatedAt    *time.Time
}

// TicketPatch holds optional field updates. Nil fields are left untouched.
type TicketPatch struct {
	TicketNumber  *string
	Source        *string
	Group         *string
	Requester     *string
	Agent         *domain.Agent
	Description   *string
	Tags          *[]string
	Watchers      *[]string
	DueDate       *time.Time
	ClearDueDate  bool
	PendingSince  *time.Time
	Status        *domain.TicketStatus
	Justification string
}

// TicketListFilter describes ticket listing filters.
type TicketListFilter struct {
	Statuses      []domain.TicketStatus
	AgentID       *string
	AgentName     *string
	TicketNumber  *string
	NeedsApproval *bool
	SearchTerm    *string
	Tier          *sla.Tier
	OverdueOnly   bool
}

// TicketSummary holds the dashboard counters.
type TicketSummary struct {
	Total         int                         `json:"total"`
	ByStatus      map[domain.TicketStatus]int `json:"by_status"`
	ByTier        map[sla.Tier]int            `json:"by_tier"`
	Overdue       int                         `json:"overdue"`
	NeedsApproval int                         `json:"needs_approval"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	policy := deps.Policy
	if policy == (sla.Policy{}) {
		policy = sla.DefaultPolicy()
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		audit:      deps.Audit,
		dispatcher: deps.Dispatcher,
		policy:     policy,
		now:        clockOrDefault(deps.Now),
		logger:     logger,
	}
}

// Policy returns the aging thresholds in use.
func (s *TicketService) Policy() sla.Policy {
	return s.policy
}

// Assess derives the aging fields of ticket at the current time.
func (s *TicketService) Assess(ticket *domain.Ticket) sla.Assessment {
	return s.policy.Assess(ticket, s.now())
}

// Create adds a new pending ticket.
func (s *TicketService) Create(ctx context.Context, actor domain.Actor, input TicketCreateInput) (*domain.Ticket, error) {
	if err := requireTicketFields(input.TicketNumber, input.Agent.Name, input.Description); err != nil {
		return nil, err
	}
	now := s.now()
	createdAt := now
	if input.CreatedAt != nil && !input.CreatedAt.IsZero() {
		createdAt = input.CreatedAt.UTC()
	}
	pendingSince := createdAt
	if input.PendingSince != nil && !input.PendingSince.IsZero() {
		pendingSince = input.PendingSince.UTC()
	}
	ticket := &domain.Ticket{
		ID:           strings.TrimSpace(input.ID),
		TicketNumber: strings.TrimSpace(input.TicketNumber),
		Status:       domain.TicketStatusPending,
		Source:       strings.TrimSpace(input.Source),
		Group:        strings.TrimSpace(input.Group),
		Requester:    strings.TrimSpace(input.Requester),
		Agent:        normalizeAgent(input.Agent),
		Description:  strings.TrimSpace(input.Description),
		Tags:         input.Tags,
		Watchers:     input.Watchers,
		PendingSince: pendingSince,
		DueDate:      utcPtr(input.DueDate),
		CreatedAt:    createdAt,
	}
	stampUpdated(ticket, now)
	if ticket.ID == "" {
		ticket.ID = uuid.NewString()
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		if errors.Is(err, repository.ErrDuplicateID) {
			return nil, apperrors.NewConflict("ticket id already exists", map[string]any{"ticket_id": ticket.ID})
		}
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("ticket created", zap.String("ticket_id", ticket.ID), zap.String("ticket_number", ticket.TicketNumber))
	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventTicketCreated, ticket.ID, actor, now,
		events.TicketCreatedPayload{TicketNumber: ticket.TicketNumber, AgentName: ticket.Agent.Name}))
	return ticket, nil
}

// Update merges patch into the ticket and stamps UpdatedAt.
func (s *TicketService) Update(ctx context.Context, actor domain.Actor, id string, patch TicketPatch) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := ticket.Snapshot()
	oldStatus := ticket.Status

	fields, err := applyPatch(ticket, patch)
	if err != nil {
		return nil, err
	}

	var approval *AuditInput
	if patch.Status != nil && *patch.Status != oldStatus {
		approval, err = s.applyStatus(actor, ticket, *patch.Status, patch.Justification)
		if err != nil {
			return nil, err
		}
		fields = append(fields, "status")
	}

	if approval != nil {
		approval.Details = domain.AuditDetails{Ticket: &domain.TicketChange{Before: before, After: ticket.Snapshot()}}
		if _, err := s.recordAudit(ctx, actor, *approval); err != nil {
			return nil, err
		}
	}

	now := s.now()
	stampUpdated(ticket, now)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, lookupError(err, "ticket", map[string]any{"ticket_id": id})
	}

	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventTicketUpdated, ticket.ID, actor, now,
		events.TicketUpdatedPayload{Fields: fields}))
	if ticket.Status != oldStatus {
		s.logger.Info("ticket status changed",
			zap.String("ticket_id", ticket.ID),
			zap.String("old_status", string(oldStatus)),
			zap.String("new_status", string(ticket.Status)))
		publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventTicketStatusChanged, ticket.ID, actor, now,
			events.TicketStatusChangedPayload{
				OldStatus:     oldStatus,
				NewStatus:     ticket.Status,
				Justification: strings.TrimSpace(patch.Justification),
				NeedsApproval: ticket.NeedsApproval,
				TicketNumber:  ticket.TicketNumber,
				AgentName:     ticket.Agent.Name,
			}))
	}
	return ticket, nil
}

// Move changes the ticket status, with an optional justification.
func (s *TicketService) Move(ctx context.Context, actor domain.Actor, id string, status domain.TicketStatus, justification string) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.Status == status {
		return nil, apperrors.NewInvalidTransition("ticket already has this status", map[string]any{
			"ticket_id": id,
			"status":    status,
		})
	}
	return s.Update(ctx, actor, id, TicketPatch{Status: &status, Justification: justification})
}

// RequestApproval flags a ticket for coordinator sign-off without changing its status.
func (s *TicketService) RequestApproval(ctx context.Context, actor domain.Actor, id, justification string) (*domain.Ticket, error) {
	if blank(justification) {
		return nil, apperrors.NewApprovalRequired("justification is required to request approval", map[string]any{"field": "justification"})
	}
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ticket.NeedsApproval {
		return nil, apperrors.NewConflict("ticket is already awaiting approval", map[string]any{"ticket_id": id})
	}

	before := ticket.Snapshot()
	ticket.NeedsApproval = true
	input := s.approvalInput(ticket, "Aprovação solicitada", justification)
	input.Details = domain.AuditDetails{Ticket: &domain.TicketChange{Before: before, After: ticket.Snapshot()}}
	if _, err := s.recordAudit(ctx, actor, input); err != nil {
		return nil, err
	}

	now := s.now()
	stampUpdated(ticket, now)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, lookupError(err, "ticket", map[string]any{"ticket_id": id})
	}
	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventTicketUpdated, ticket.ID, actor, now,
		events.TicketUpdatedPayload{Fields: []string{"needs_approval"}}))
	return ticket, nil
}

// Remove hard-deletes a ticket. No audit record is written.
func (s *TicketService) Remove(ctx context.Context, actor domain.Actor, id string) error {
	ticket, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, id); err != nil {
		return lookupError(err, "ticket", map[string]any{"ticket_id": id})
	}
	s.logger.Info("ticket removed",
		zap.String("ticket_id", id),
		zap.String("ticket_number", ticket.TicketNumber),
		zap.String("actor_id", actor.ID))
	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventTicketRemoved, id, actor, s.now(),
		events.TicketRemovedPayload{TicketNumber: ticket.TicketNumber}))
	return nil
}

// Get fetches a ticket by id.
func (s *TicketService) Get(ctx context.Context, id string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "ticket", map[string]any{"ticket_id": id})
	}
	return ticket, nil
}

// List returns tickets matching filter in insertion order.
func (s *TicketService) List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListWithFilter(ctx, repository.TicketFilter{
		Statuses:      filter.Statuses,
		AgentID:       filter.AgentID,
		AgentName:     filter.AgentName,
		TicketNumber:  filter.TicketNumber,
		NeedsApproval: filter.NeedsApproval,
		SearchTerm:    filter.SearchTerm,
	})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if filter.Tier == nil && !filter.OverdueOnly {
		return tickets, nil
	}
	now := s.now()
	out := tickets[:0]
	for i := range tickets {
		if filter.Tier != nil && s.policy.TierOf(&tickets[i], now) != *filter.Tier {
			continue
		}
		if filter.OverdueOnly && !sla.IsOverdue(tickets[i].DueDate, now) {
			continue
		}
		out = append(out, tickets[i])
	}
	return out, nil
}

// CriticalTickets returns every ticket whose days open reach the critical threshold.
func (s *TicketService) CriticalTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.TicketsByTier(ctx, sla.TierCritical)
}

// OverdueTickets returns every ticket past its due date.
func (s *TicketService) OverdueTickets(ctx context.Context) ([]domain.Ticket, error) {
	return s.List(ctx, TicketListFilter{OverdueOnly: true})
}

// TicketsByTier returns tickets classified into tier.
func (s *TicketService) TicketsByTier(ctx context.Context, tier sla.Tier) ([]domain.Ticket, error) {
	return s.List(ctx, TicketListFilter{Tier: &tier})
}

// FindByNumber returns every ticket carrying the display number.
func (s *TicketService) FindByNumber(ctx context.Context, number string) ([]domain.Ticket, error) {
	number = strings.TrimSpace(number)
	return s.List(ctx, TicketListFilter{TicketNumber: &number})
}

// Summary counts tickets by status and tier.
func (s *TicketService) Summary(ctx context.Context) (TicketSummary, error) {
	tickets, err := s.List(ctx, TicketListFilter{})
	if err != nil {
		return TicketSummary{}, err
	}
	now := s.now()
	summary := TicketSummary{
		Total:    len(tickets),
		ByStatus: map[domain.TicketStatus]int{},
		ByTier: map[sla.Tier]int{
			sla.TierNormal:    0,
			sla.TierAttention: 0,
			sla.TierCritical:  0,
		},
	}
	for i := range tickets {
		t := &tickets[i]
		summary.ByStatus[t.Status]++
		summary.ByTier[s.policy.TierOf(t, now)]++
		if sla.IsOverdue(t.DueDate, now) {
			summary.Overdue++
		}
		if t.NeedsApproval {
			summary.NeedsApproval++
		}
	}
	return summary, nil
}

// LinkEvaluation stores the weak reference from a ticket to its evaluation.
func (s *TicketService) LinkEvaluation(ctx context.Context, ticketID, evaluationID string) error {
	ticket, err := s.Get(ctx, ticketID)
	if err != nil {
		return err
	}
	ticket.EvaluationID = stringPtr(evaluationID)
	now := s.now()
	stampUpdated(ticket, now)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return lookupError(err, "ticket", map[string]any{"ticket_id": ticketID})
	}
	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventTicketUpdated, ticketID, domain.SystemActor, now,
		events.TicketUpdatedPayload{Fields: []string{"evaluation_id"}}))
	return nil
}

// ApplyApprovalDecision settles the ticket side of a decided audit record.
// Approval moves the ticket to APPROVED. Rejection restores the status
// captured before the request. The transition table is bypassed on purpose.
func (s *TicketService) ApplyApprovalDecision(ctx context.Context, actor domain.Actor, record *domain.AuditRecord, approved bool) (*domain.Ticket, error) {
	ticket, err := s.Get(ctx, record.TargetID)
	if err != nil {
		return nil, err
	}
	oldStatus := ticket.Status
	if approved {
		ticket.Status = domain.TicketStatusApproved
	} else if change := record.Details.Ticket; change != nil && change.Before.Status.Valid() {
		ticket.Status = change.Before.Status
	}
	ticket.NeedsApproval = false

	now := s.now()
	stampUpdated(ticket, now)
	if err := s.tickets.Update(ctx, ticket); err != nil {
		return nil, lookupError(err, "ticket", map[string]any{"ticket_id": record.TargetID})
	}

	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventTicketUpdated, ticket.ID, actor, now,
		events.TicketUpdatedPayload{Fields: []string{"status", "needs_approval"}}))
	if ticket.Status != oldStatus {
		publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventTicketStatusChanged, ticket.ID, actor, now,
			events.TicketStatusChangedPayload{
				OldStatus:     oldStatus,
				NewStatus:     ticket.Status,
				TicketNumber:  ticket.TicketNumber,
				AgentName:     ticket.Agent.Name,
				AuditRecordID: record.ID,
			}))
	}
	return ticket, nil
}

// AwaitingDecision reports whether ticket is still in the state the record
// asked a coordinator to sign off.
func AwaitingDecision(ticket *domain.Ticket, record *domain.AuditRecord) bool {
	change := record.Details.Ticket
	if change == nil {
		return false
	}
	return ticket.NeedsApproval && ticket.Status == change.After.Status
}

// applyStatus validates a transition and sets status-dependent flags. It
// returns the audit input to record when the move needs coordinator sign-off.
func (s *TicketService) applyStatus(actor domain.Actor, ticket *domain.Ticket, next domain.TicketStatus, justification string) (*AuditInput, error) {
	if !next.Valid() {
		return nil, apperrors.NewValidationError("unknown status", map[string]any{"status": next})
	}
	if next.CoordinatorOnly() && !actor.IsCoordinator() {
		return nil, apperrors.NewForbidden("only coordinators can approve or reject tickets")
	}
	if !isValidTransition(ticket.Status, next) {
		return nil, apperrors.NewInvalidTransition("invalid status transition", map[string]any{
			"ticket_id": ticket.ID,
			"from":      ticket.Status,
			"to":        next,
		})
	}

	if next == domain.TicketStatusResolved && !blank(justification) && ticket.NeedsApproval {
		return nil, apperrors.NewConflict("ticket is already awaiting approval", map[string]any{"ticket_id": ticket.ID})
	}

	ticket.Status = next
	switch next {
	case domain.TicketStatusResolved:
		if blank(justification) {
			ticket.NeedsApproval = false
			return nil, nil
		}
		ticket.NeedsApproval = true
		input := s.approvalInput(ticket, "Resolução enviada para aprovação", justification)
		return &input, nil
	case domain.TicketStatusApproved, domain.TicketStatusRejected:
		ticket.NeedsApproval = false
	}
	return nil, nil
}

func (s *TicketService) approvalInput(ticket *domain.Ticket, action, justification string) AuditInput {
	priority := domain.AuditPriorityMedium
	if s.policy.TierOf(ticket, s.now()) == sla.TierCritical {
		priority = domain.AuditPriorityHigh
	}
	return AuditInput{
		ActionType:       domain.AuditActionTicket,
		Action:           action,
		Description:      "Ticket #" + ticket.TicketNumber + " aguardando aprovação",
		TargetEntity:     "Ticket #" + ticket.TicketNumber,
		TargetID:         ticket.ID,
		Justification:    justification,
		Priority:         priority,
		RequiresApproval: true,
	}
}

func (s *TicketService) recordAudit(ctx context.Context, actor domain.Actor, input AuditInput) (*domain.AuditRecord, error) {
	if s.audit == nil {
		s.logger.Warn("audit trail not wired; approval request not recorded", zap.String("ticket_id", input.TargetID))
		return nil, nil
	}
	return s.audit.RecordTicketApproval(ctx, actor, input)
}

// stampUpdated sets UpdatedAt to now, never earlier than CreatedAt.
func stampUpdated(ticket *domain.Ticket, now time.Time) {
	ticket.UpdatedAt = now
	if ticket.UpdatedAt.Before(ticket.CreatedAt) {
		ticket.UpdatedAt = ticket.CreatedAt
	}
}

func applyPatch(ticket *domain.Ticket, patch TicketPatch) ([]string, error) {
	var fields []string
	if patch.TicketNumber != nil {
		ticket.TicketNumber = strings.TrimSpace(*patch.TicketNumber)
		fields = append(fields, "ticket_number")
	}
	if patch.Source != nil {
		ticket.Source = strings.TrimSpace(*patch.Source)
		fields = append(fields, "source")
	}
	if patch.Group != nil {
		ticket.Group = strings.TrimSpace(*patch.Group)
		fields = append(fields, "group")
	}
	if patch.Requester != nil {
		ticket.Requester = strings.TrimSpace(*patch.Requester)
		fields = append(fields, "requester")
	}
	if patch.Agent != nil {
		ticket.Agent = normalizeAgent(*patch.Agent)
		fields = append(fields, "agent")
	}
	if patch.Description != nil {
		ticket.Description = strings.TrimSpace(*patch.Description)
		fields = append(fields, "description")
	}
	if patch.Tags != nil {
		ticket.Tags = append([]string(nil), (*patch.Tags)...)
		fields = append(fields, "tags")
	}
	if patch.Watchers != nil {
		ticket.Watchers = append([]string(nil), (*patch.Watchers)...)
		fields = append(fields, "watchers")
	}
	if patch.ClearDueDate {
		ticket.DueDate = nil
		fields = append(fields, "due_date")
	} else if patch.DueDate != nil {
		ticket.DueDate = utcPtr(patch.DueDate)
		fields = append(fields, "due_date")
	}
	if patch.PendingSince != nil {
		ticket.PendingSince = patch.PendingSince.UTC()
		fields = append(fields, "pending_since")
	}
	if err := requireTicketFields(ticket.TicketNumber, ticket.Agent.Name, ticket.Description); err != nil {
		return nil, err
	}
	return fields, nil
}

func requireTicketFields(number, agentName, description string) error {
	missing := []string{}
	if blank(number) {
		missing = append(missing, "ticket_number")
	}
	if blank(agentName) {
		missing = append(missing, "agent.name")
	}
	if blank(description) {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return apperrors.NewValidationError("required fields missing", map[string]any{"fields": missing})
	}
	return nil
}

func normalizeAgent(agent domain.Agent) domain.Agent {
	agent.ID = strings.TrimSpace(agent.ID)
	agent.Name = strings.TrimSpace(agent.Name)
	agent.ShortName = strings.TrimSpace(agent.ShortName)
	if agent.ShortName == "" && agent.Name != "" {
		agent.ShortName = strings.Fields(agent.Name)[0]
	}
	return agent
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusPending:    {domain.TicketStatusInProgress, domain.TicketStatusApproved, domain.TicketStatusRejected},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusApproved, domain.TicketStatusRejected},
	domain.TicketStatusResolved:   {domain.TicketStatusApproved, domain.TicketStatusRejected},
	domain.TicketStatusApproved:   {domain.TicketStatusRejected},
	domain.TicketStatusRejected:   {domain.TicketStatusApproved},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
