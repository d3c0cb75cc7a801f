package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/events"
	"github.com/maplebear/saf-portal/internal/persistence"
	"github.com/maplebear/saf-portal/internal/repository"
	"github.com/maplebear/saf-portal/internal/service"
	"github.com/maplebear/saf-portal/internal/sla"
)

var agent = domain.Actor{ID: "u-agent", Name: "João Silva", Role: domain.RoleAgent, AgentID: "a1"}

type fakeGauges struct {
	tiers   map[sla.Tier]int
	overdue int
	unread  int
}

func (g *fakeGauges) SetTicketTiers(counts map[sla.Tier]int) { g.tiers = counts }
func (g *fakeGauges) SetOverdue(n int)                       { g.overdue = n }
func (g *fakeGauges) SetUnreadNotifications(n int)           { g.unread = n }

type sweepEnv struct {
	now         time.Time
	tickets     *service.TicketService
	coordinator *service.CoordinatorService
	gauges      *fakeGauges
	worker      *SLAWorker
}

func setupTestWorker(t *testing.T) *sweepEnv {
	t.Helper()
	env := &sweepEnv{
		now:    time.Date(2024, 1, 22, 10, 30, 0, 0, time.UTC),
		gauges: &fakeGauges{},
	}
	clock := func() time.Time { return env.now }
	snapshots := persistence.NewMemorySnapshots()
	dispatcher := events.NewInMemoryDispatcher(nil)

	env.tickets = service.NewTicketService(service.TicketDependencies{
		TicketRepo: repository.NewTicketRepository(snapshots, nil),
		Dispatcher: dispatcher,
		Now:        clock,
	})
	env.coordinator = service.NewCoordinatorService(service.CoordinatorDependencies{
		NotificationRepo: repository.NewNotificationRepository(snapshots, nil),
		EvaluationRepo:   repository.NewEvaluationRepository(snapshots, nil),
		Linker:           env.tickets,
		Lister:           env.tickets,
		Dispatcher:       dispatcher,
		Now:              clock,
	})
	env.worker = NewSLAWorker(SLAWorkerDependencies{
		Tickets:  env.tickets,
		Notifier: env.coordinator,
		Gauges:   env.gauges,
		Now:      clock,
	})
	return env
}

func (e *sweepEnv) createTicket(t *testing.T, number string, pendingSince time.Time, due *time.Time) *domain.Ticket {
	t.Helper()
	ticket, err := e.tickets.Create(t.Context(), agent, service.TicketCreateInput{
		TicketNumber: number,
		Agent:        domain.Agent{ID: "a1", Name: "João Silva"},
		Description:  "Escola sem acesso ao CRM",
		PendingSince: &pendingSince,
		DueDate:      due,
	})
	require.NoError(t, err)
	return ticket
}

func TestSLAWorker_RaisesCriticalAndOverdueOnce(t *testing.T) {
	env := setupTestWorker(t)
	ctx := t.Context()
	yesterday := env.now.Add(-24 * time.Hour)

	critical := env.createTicket(t, "1001", env.now.Add(-20*24*time.Hour), nil)
	late := env.createTicket(t, "1002", env.now.Add(-2*24*time.Hour), &yesterday)
	env.createTicket(t, "1003", env.now.Add(-10*24*time.Hour), nil)

	result, err := env.worker.RunOnce(ctx, env.now)
	require.NoError(t, err)
	assert.Equal(t, 3, result.OpenTickets)
	assert.Equal(t, 1, result.CriticalCreated)
	assert.Equal(t, 1, result.OverdueCreated)
	assert.Equal(t, 2, result.Unread)

	criticals, err := env.coordinator.NotificationsByType(ctx, domain.NotificationCritical)
	require.NoError(t, err)
	require.Len(t, criticals, 1)
	assert.Equal(t, critical.ID, *criticals[0].TicketID)
	assert.Equal(t, "Ticket Crítico", criticals[0].Title)

	overdue, err := env.coordinator.NotificationsByType(ctx, domain.NotificationOverdue)
	require.NoError(t, err)
	require.Len(t, overdue, 1)
	assert.Equal(t, late.ID, *overdue[0].TicketID)

	result, err = env.worker.RunOnce(ctx, env.now)
	require.NoError(t, err)
	assert.Zero(t, result.CriticalCreated)
	assert.Zero(t, result.OverdueCreated)

	assert.Equal(t, map[sla.Tier]int{sla.TierCritical: 1, sla.TierAttention: 1, sla.TierNormal: 1}, env.gauges.tiers)
	assert.Equal(t, 1, env.gauges.overdue)
	assert.Equal(t, 2, env.gauges.unread)
}

func TestSLAWorker_RenotifiesAfterRead(t *testing.T) {
	env := setupTestWorker(t)
	ctx := t.Context()
	env.createTicket(t, "2001", env.now.Add(-16*24*time.Hour), nil)

	_, err := env.worker.RunOnce(ctx, env.now)
	require.NoError(t, err)
	unread, err := env.coordinator.Unread(ctx)
	require.NoError(t, err)
	require.Len(t, unread, 1)
	require.NoError(t, env.coordinator.MarkAsRead(ctx, unread[0].ID))

	result, err := env.worker.RunOnce(ctx, env.now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CriticalCreated)
}

func TestSLAWorker_ClearsExpiredNotifications(t *testing.T) {
	env := setupTestWorker(t)
	ctx := t.Context()

	_, err := env.coordinator.CreateNotification(ctx, service.NotificationInput{
		Type:    domain.NotificationApprovalNeeded,
		Message: "Ticket #42 precisa de aprovação",
	})
	require.NoError(t, err)

	env.now = env.now.Add(31 * 24 * time.Hour)
	result, err := env.worker.RunOnce(ctx, env.now)
	require.NoError(t, err)
	assert.Equal(t, 1, result.NotificationsGone)
	assert.Zero(t, result.Unread)
	assert.Zero(t, env.gauges.unread)
}

func TestSLAWorker_StartStopsWithContext(t *testing.T) {
	env := setupTestWorker(t)
	env.createTicket(t, "3001", env.now.Add(-30*24*time.Hour), nil)

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan struct{})
	go func() {
		env.worker.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		count, err := env.coordinator.UnreadCount(t.Context())
		return err == nil && count == 1
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

type countingSink struct{ registered int }

func (s *countingSink) Register(events.Dispatcher) { s.registered++ }

func TestStartNotificationWorker_RegistersSinks(t *testing.T) {
	dispatcher := events.NewInMemoryDispatcher(nil)
	first, second := &countingSink{}, &countingSink{}

	StartNotificationWorker(dispatcher, nil, first, nil, second)

	assert.Equal(t, 1, first.registered)
	assert.Equal(t, 1, second.registered)
}
