package worker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/service"
	"github.com/maplebear/saf-portal/internal/sla"
)

// DefaultSweepInterval is used when no interval is configured.
const DefaultSweepInterval = time.Hour

// TicketSource lists tickets and exposes the aging policy.
type TicketSource interface {
	List(ctx context.Context, filter service.TicketListFilter) ([]domain.Ticket, error)
	Policy() sla.Policy
}

// Notifier is the part of the coordinator store the sweep writes to.
type Notifier interface {
	CreateNotification(ctx context.Context, input service.NotificationInput) (*domain.Notification, error)
	HasUnread(ctx context.Context, ticketID string, kind domain.NotificationType) (bool, error)
	ClearOldNotifications(ctx context.Context, now time.Time) (int, error)
	UnreadCount(ctx context.Context) (int, error)
}

// Gauges receives the dashboard counters after each sweep.
type Gauges interface {
	SetTicketTiers(counts map[sla.Tier]int)
	SetOverdue(n int)
	SetUnreadNotifications(n int)
}

// SLAWorkerDependencies bundles collaborators.
type SLAWorkerDependencies struct {
	Tickets  TicketSource
	Notifier Notifier
	Gauges   Gauges
	Interval time.Duration
	Now      func() time.Time
	Logger   *zap.Logger
}

// SweepResult reports what a single pass did.
type SweepResult struct {
	OpenTickets       int
	CriticalCreated   int
	OverdueCreated    int
	NotificationsGone int
	Unread            int
}

// SLAWorker periodically raises CRITICAL and OVERDUE notifications for open
// tickets and prunes expired notifications.
type SLAWorker struct {
	tickets  TicketSource
	notifier Notifier
	gauges   Gauges
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

// NewSLAWorker constructs the worker.
func NewSLAWorker(deps SLAWorkerDependencies) *SLAWorker {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	now := deps.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &SLAWorker{
		tickets:  deps.Tickets,
		notifier: deps.Notifier,
		gauges:   deps.Gauges,
		interval: interval,
		now:      now,
		logger:   logger,
	}
}

// Start runs a sweep immediately and then on every tick until ctx is done.
func (w *SLAWorker) Start(ctx context.Context) {
	w.sweep(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla worker stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

func (w *SLAWorker) sweep(ctx context.Context) {
	result, err := w.RunOnce(ctx, w.now())
	if err != nil {
		w.logger.Error("sla sweep failed", zap.Error(err))
		return
	}
	w.logger.Info("sla sweep finished",
		zap.Int("open_tickets", result.OpenTickets),
		zap.Int("critical_created", result.CriticalCreated),
		zap.Int("overdue_created", result.OverdueCreated),
		zap.Int("notifications_removed", result.NotificationsGone),
		zap.Int("unread", result.Unread),
	)
}

// RunOnce performs a single sweep at now.
func (w *SLAWorker) RunOnce(ctx context.Context, now time.Time) (SweepResult, error) {
	var result SweepResult

	open, err := w.tickets.List(ctx, service.TicketListFilter{
		Statuses: []domain.TicketStatus{domain.TicketStatusPending, domain.TicketStatusInProgress},
	})
	if err != nil {
		return result, fmt.Errorf("list open tickets: %w", err)
	}
	result.OpenTickets = len(open)

	policy := w.tickets.Policy()
	tiers := map[sla.Tier]int{}
	overdue := 0
	for i := range open {
		ticket := &open[i]
		assessment := policy.Assess(ticket, now)
		tiers[assessment.Tier]++

		if assessment.Tier == sla.TierCritical {
			created, err := w.notifyOnce(ctx, ticket, domain.NotificationCritical,
				fmt.Sprintf("Ticket #%s está aberto há %d dias (%s)", ticket.TicketNumber, assessment.DaysOpen, ticket.Agent.Name))
			if err != nil {
				return result, err
			}
			if created {
				result.CriticalCreated++
			}
		}
		if assessment.Overdue {
			overdue++
			created, err := w.notifyOnce(ctx, ticket, domain.NotificationOverdue,
				fmt.Sprintf("Ticket #%s passou do prazo (%s)", ticket.TicketNumber, ticket.Agent.Name))
			if err != nil {
				return result, err
			}
			if created {
				result.OverdueCreated++
			}
		}
	}

	removed, err := w.notifier.ClearOldNotifications(ctx, now)
	if err != nil {
		return result, fmt.Errorf("clear old notifications: %w", err)
	}
	result.NotificationsGone = removed

	unread, err := w.notifier.UnreadCount(ctx)
	if err != nil {
		return result, fmt.Errorf("count unread notifications: %w", err)
	}
	result.Unread = unread

	if w.gauges != nil {
		w.gauges.SetTicketTiers(tiers)
		w.gauges.SetOverdue(overdue)
		w.gauges.SetUnreadNotifications(unread)
	}
	return result, nil
}

func (w *SLAWorker) notifyOnce(ctx context.Context, ticket *domain.Ticket, kind domain.NotificationType, message string) (bool, error) {
	exists, err := w.notifier.HasUnread(ctx, ticket.ID, kind)
	if err != nil {
		return false, fmt.Errorf("check %s notification: %w", kind, err)
	}
	if exists {
		return false, nil
	}
	ticketID := ticket.ID
	if _, err := w.notifier.CreateNotification(ctx, service.NotificationInput{
		Type:     kind,
		Message:  message,
		TicketID: &ticketID,
	}); err != nil {
		return false, fmt.Errorf("create %s notification: %w", kind, err)
	}
	w.logger.Debug("sla notification created",
		zap.String("ticket_id", ticket.ID),
		zap.String("type", string(kind)))
	return true, nil
}
