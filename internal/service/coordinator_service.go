package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/events"
	"github.com/maplebear/saf-portal/internal/repository"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

// DefaultNotificationRetention is how long notifications are kept.
const DefaultNotificationRetention = 30 * 24 * time.Hour

// TicketLinker stores the evaluation back-reference on a ticket.
type TicketLinker interface {
	LinkEvaluation(ctx context.Context, ticketID, evaluationID string) error
}

// TicketLister lists tickets for metrics.
type TicketLister interface {
	List(ctx context.Context, filter TicketListFilter) ([]domain.Ticket, error)
}

// CoordinatorService owns evaluations and notifications.
type CoordinatorService struct {
	notifications repository.NotificationRepository
	evaluations   repository.EvaluationRepository
	linker        TicketLinker
	lister        TicketLister
	dispatcher    events.Dispatcher
	retention     time.Duration
	now           func() time.Time
	logger        *zap.Logger
}

// CoordinatorDependencies bundles collaborators.
type CoordinatorDependencies struct {
	NotificationRepo repository.NotificationRepository
	EvaluationRepo   repository.EvaluationRepository
	Linker           TicketLinker
	Lister           TicketLister
	Dispatcher       events.Dispatcher
	Retention        time.Duration
	Now              func() time.Time
	Logger           *zap.Logger
}

// NotificationInput describes a notification to create.
type NotificationInput struct {
	Type          domain.NotificationType
	Title         string
	Message       string
	TicketID      *string
	AuditRecordID *string
	TargetRoles   []domain.Role
}

// EvaluationInput describes a coordinator evaluation.
type EvaluationInput struct {
	TicketID string
	Rating   int
	Feedback string
}

// EvaluationPatch holds optional evaluation updates.
type EvaluationPatch struct {
	Rating   *int
	Feedback *string
}

// AgentMetric aggregates evaluations of one evaluator name.
type AgentMetric struct {
	Agent          string  `json:"agent"`
	TicketsHandled int     `json:"tickets_handled"`
	AverageRating  float64 `json:"average_rating"`
	PendingTickets int     `json:"pending_tickets"`
}

// TeamMetrics is the coordinator dashboard summary.
type TeamMetrics struct {
	TotalTickets     int           `json:"total_tickets"`
	AverageRating    float64       `json:"average_rating"`
	PendingApprovals int           `json:"pending_approvals"`
	OverdueTickets   int           `json:"overdue_tickets"`
	AgentMetrics     []AgentMetric `json:"agent_metrics"`
}

var defaultTitles = map[domain.NotificationType]string{
	domain.NotificationApprovalNeeded:    "Aprovação Necessária",
	domain.NotificationOverdue:           "Ticket Vencido",
	domain.NotificationCritical:          "Ticket Crítico",
	domain.NotificationEvaluationRequest: "Avaliação Solicitada",
}

// DefaultTargetRoles receive notifications created without explicit roles.
var DefaultTargetRoles = []domain.Role{domain.RoleCoordinator, domain.RoleAdmin}

// NewCoordinatorService constructs the service.
func NewCoordinatorService(deps CoordinatorDependencies) *CoordinatorService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	retention := deps.Retention
	if retention <= 0 {
		retention = DefaultNotificationRetention
	}
	return &CoordinatorService{
		notifications: deps.NotificationRepo,
		evaluations:   deps.EvaluationRepo,
		linker:        deps.Linker,
		lister:        deps.Lister,
		dispatcher:    deps.Dispatcher,
		retention:     retention,
		now:           clockOrDefault(deps.Now),
		logger:        logger,
	}
}

// CreateNotification stores an unread notification and announces it.
func (s *CoordinatorService) CreateNotification(ctx context.Context, input NotificationInput) (*domain.Notification, error) {
	if !input.Type.Valid() {
		return nil, apperrors.NewValidationError("unknown notification type", map[string]any{"type": input.Type})
	}
	if blank(input.Message) {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	}
	roles := input.TargetRoles
	if len(roles) == 0 {
		roles = DefaultTargetRoles
	}
	for _, role := range roles {
		if !role.Valid() {
			return nil, apperrors.NewValidationError("unknown target role", map[string]any{"role": role})
		}
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		title = defaultTitles[input.Type]
	}

	now := s.now()
	notification := &domain.Notification{
		ID:            uuid.NewString(),
		Type:          input.Type,
		Title:         title,
		Message:       strings.TrimSpace(input.Message),
		TicketID:      input.TicketID,
		AuditRecordID: input.AuditRecordID,
		IsRead:        false,
		TargetRoles:   append([]domain.Role(nil), roles...),
		CreatedAt:     now,
	}
	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, apperrors.MapError(err)
	}
	ticketID := ""
	if notification.TicketID != nil {
		ticketID = *notification.TicketID
	}
	s.logger.Info("notification created",
		zap.String("notification_id", notification.ID),
		zap.String("type", string(notification.Type)),
		zap.String("ticket_id", ticketID))
	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventNotificationCreated, ticketID, domain.SystemActor, now,
		events.NotificationCreatedPayload{Notification: *notification}))
	return notification, nil
}

// MarkAsRead flags a notification read. Repeating the call is a no-op.
func (s *CoordinatorService) MarkAsRead(ctx context.Context, id string) error {
	if err := s.notifications.MarkRead(ctx, id); err != nil {
		return lookupError(err, "notification", map[string]any{"notification_id": id})
	}
	return nil
}

// MarkRelatedRead marks unread notifications of kind tied to a ticket or audit record.
func (s *CoordinatorService) MarkRelatedRead(ctx context.Context, ticketID, auditRecordID string, kind domain.NotificationType) (int, error) {
	var filters []repository.NotificationFilter
	if ticketID != "" {
		filters = append(filters, repository.NotificationFilter{Type: &kind, TicketID: &ticketID})
	}
	if auditRecordID != "" {
		filters = append(filters, repository.NotificationFilter{Type: &kind, AuditRecordID: &auditRecordID})
	}
	return s.notifications.MarkReadWhere(ctx, filters...)
}

// HasUnread reports whether an unread notification of kind exists for ticketID.
func (s *CoordinatorService) HasUnread(ctx context.Context, ticketID string, kind domain.NotificationType) (bool, error) {
	count, err := s.notifications.Count(ctx, repository.NotificationFilter{
		Type:       &kind,
		TicketID:   &ticketID,
		UnreadOnly: true,
	})
	return count > 0, err
}

// Unread returns unread notifications in insertion order.
func (s *CoordinatorService) Unread(ctx context.Context) ([]domain.Notification, error) {
	return s.notifications.List(ctx, repository.NotificationFilter{UnreadOnly: true})
}

// Notifications lists notifications matching filter.
func (s *CoordinatorService) Notifications(ctx context.Context, filter repository.NotificationFilter) ([]domain.Notification, error) {
	return s.notifications.List(ctx, filter)
}

// NotificationsByType lists notifications of one type.
func (s *CoordinatorService) NotificationsByType(ctx context.Context, kind domain.NotificationType) ([]domain.Notification, error) {
	return s.notifications.List(ctx, repository.NotificationFilter{Type: &kind})
}

// UnreadCount counts unread notifications.
func (s *CoordinatorService) UnreadCount(ctx context.Context) (int, error) {
	return s.notifications.Count(ctx, repository.NotificationFilter{UnreadOnly: true})
}

// ClearOldNotifications drops notifications created at or before now minus the retention window.
func (s *CoordinatorService) ClearOldNotifications(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.UTC().Add(-s.retention)
	removed, err := s.notifications.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	if removed > 0 {
		s.logger.Info("old notifications cleared", zap.Int("removed", removed), zap.Time("cutoff", cutoff))
	}
	return removed, nil
}

// CreateEvaluation stores a coordinator rating for a ticket.
func (s *CoordinatorService) CreateEvaluation(ctx context.Context, actor domain.Actor, input EvaluationInput) (*domain.Evaluation, error) {
	if !actor.IsCoordinator() {
		return nil, apperrors.NewForbidden("only coordinators can evaluate tickets")
	}
	if blank(input.TicketID) {
		return nil, apperrors.NewValidationError("ticket_id is required", map[string]any{"field": "ticket_id"})
	}
	if !domain.ValidRating(input.Rating) {
		return nil, ratingError(input.Rating)
	}

	evaluation := &domain.Evaluation{
		ID:            uuid.NewString(),
		TicketID:      strings.TrimSpace(input.TicketID),
		EvaluatorID:   actor.ID,
		EvaluatorName: actor.Name,
		Rating:        input.Rating,
		Feedback:      strings.TrimSpace(input.Feedback),
		CreatedAt:     s.now(),
	}
	if s.linker != nil {
		if err := s.linker.LinkEvaluation(ctx, evaluation.TicketID, evaluation.ID); err != nil {
			return nil, err
		}
	}
	if err := s.evaluations.Create(ctx, evaluation); err != nil {
		return nil, apperrors.MapError(err)
	}
	s.logger.Info("evaluation created",
		zap.String("evaluation_id", evaluation.ID),
		zap.String("ticket_id", evaluation.TicketID),
		zap.Int("rating", evaluation.Rating))
	publishEvent(ctx, s.dispatcher, events.NewEvent(events.EventEvaluationCreated, evaluation.TicketID, actor, evaluation.CreatedAt,
		events.EvaluationCreatedPayload{Evaluation: *evaluation}))
	return evaluation, nil
}

// UpdateEvaluation changes rating or feedback. A new rating is validated again.
func (s *CoordinatorService) UpdateEvaluation(ctx context.Context, actor domain.Actor, id string, patch EvaluationPatch) (*domain.Evaluation, error) {
	if !actor.IsCoordinator() {
		return nil, apperrors.NewForbidden("only coordinators can evaluate tickets")
	}
	evaluation, err := s.evaluations.GetByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "evaluation", map[string]any{"evaluation_id": id})
	}
	if patch.Rating != nil {
		if !domain.ValidRating(*patch.Rating) {
			return nil, ratingError(*patch.Rating)
		}
		evaluation.Rating = *patch.Rating
	}
	if patch.Feedback != nil {
		evaluation.Feedback = strings.TrimSpace(*patch.Feedback)
	}
	if err := s.evaluations.Update(ctx, evaluation); err != nil {
		return nil, lookupError(err, "evaluation", map[string]any{"evaluation_id": id})
	}
	return evaluation, nil
}

// EvaluationByTicket returns the latest evaluation of a ticket.
func (s *CoordinatorService) EvaluationByTicket(ctx context.Context, ticketID string) (*domain.Evaluation, error) {
	list, err := s.evaluations.List(ctx, repository.EvaluationFilter{TicketID: &ticketID})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if len(list) == 0 {
		return nil, apperrors.NewNotFound("evaluation", map[string]any{"ticket_id": ticketID})
	}
	return &list[len(list)-1], nil
}

// EvaluationsByEvaluator lists evaluations authored under a name.
func (s *CoordinatorService) EvaluationsByEvaluator(ctx context.Context, name string) ([]domain.Evaluation, error) {
	return s.evaluations.List(ctx, repository.EvaluationFilter{EvaluatorName: &name})
}

// Evaluations lists evaluations matching filter.
func (s *CoordinatorService) Evaluations(ctx context.Context, filter repository.EvaluationFilter) ([]domain.Evaluation, error) {
	return s.evaluations.List(ctx, filter)
}

// TeamPerformanceMetrics aggregates evaluations by evaluator name.
// Averages are true means rounded to two decimals.
func (s *CoordinatorService) TeamPerformanceMetrics(ctx context.Context) (TeamMetrics, error) {
	evaluations, err := s.evaluations.List(ctx, repository.EvaluationFilter{})
	if err != nil {
		return TeamMetrics{}, apperrors.MapError(err)
	}
	approvalKind := domain.NotificationApprovalNeeded
	pendingApprovals, err := s.notifications.Count(ctx, repository.NotificationFilter{Type: &approvalKind, UnreadOnly: true})
	if err != nil {
		return TeamMetrics{}, apperrors.MapError(err)
	}
	overdueKind := domain.NotificationOverdue
	overdue, err := s.notifications.Count(ctx, repository.NotificationFilter{Type: &overdueKind, UnreadOnly: true})
	if err != nil {
		return TeamMetrics{}, apperrors.MapError(err)
	}

	metrics := TeamMetrics{
		TotalTickets:     len(evaluations),
		PendingApprovals: pendingApprovals,
		OverdueTickets:   overdue,
		AgentMetrics:     []AgentMetric{},
	}
	if len(evaluations) == 0 {
		return metrics, nil
	}

	type bucket struct {
		name  string
		count int
		sum   decimal.Decimal
	}
	order := []*bucket{}
	byName := map[string]*bucket{}
	total := decimal.Zero
	for _, e := range evaluations {
		b, ok := byName[e.EvaluatorName]
		if !ok {
			b = &bucket{name: e.EvaluatorName, sum: decimal.Zero}
			byName[e.EvaluatorName] = b
			order = append(order, b)
		}
		b.count++
		b.sum = b.sum.Add(decimal.NewFromInt(int64(e.Rating)))
		total = total.Add(decimal.NewFromInt(int64(e.Rating)))
	}
	metrics.AverageRating = meanRounded(total, len(evaluations))

	pending, err := s.pendingByAgent(ctx)
	if err != nil {
		return TeamMetrics{}, err
	}
	for _, b := range order {
		metrics.AgentMetrics = append(metrics.AgentMetrics, AgentMetric{
			Agent:          b.name,
			TicketsHandled: b.count,
			AverageRating:  meanRounded(b.sum, b.count),
			PendingTickets: pending[strings.ToLower(b.name)],
		})
	}
	return metrics, nil
}

func (s *CoordinatorService) pendingByAgent(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	if s.lister == nil {
		return counts, nil
	}
	tickets, err := s.lister.List(ctx, TicketListFilter{Statuses: []domain.TicketStatus{domain.TicketStatusPending}})
	if err != nil {
		return nil, err
	}
	for _, t := range tickets {
		counts[strings.ToLower(t.Agent.Name)]++
	}
	return counts, nil
}

func meanRounded(sum decimal.Decimal, count int) float64 {
	if count == 0 {
		return 0
	}
	return sum.Div(decimal.NewFromInt(int64(count))).Round(2).InexactFloat64()
}

func ratingError(rating int) error {
	return apperrors.NewValidationError("rating must be between 1 and 5", map[string]any{
		"rating": rating,
		"min":    domain.MinRating,
		"max":    domain.MaxRating,
	})
}
