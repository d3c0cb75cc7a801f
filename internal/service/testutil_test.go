package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/events"
	"github.com/maplebear/saf-portal/internal/persistence"
	"github.com/maplebear/saf-portal/internal/repository"
	"github.com/maplebear/saf-portal/internal/sla"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

var (
	agentActor       = domain.Actor{ID: "u-agent", Name: "João Silva", Role: domain.RoleAgent, AgentID: "a1"}
	coordinatorActor = domain.Actor{ID: "u-coord", Name: "Ana Costa", Role: domain.RoleCoordinator}
)

type testEnv struct {
	now           time.Time
	snapshots     *persistence.MemorySnapshots
	dispatcher    events.Dispatcher
	audit         *AuditService
	tickets       *TicketService
	coordinator   *CoordinatorService
	approvals     *ApprovalService
	notifications *NotificationService
}

func (e *testEnv) clock() time.Time {
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.now = e.now.Add(d)
}

func setupTestServices(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		now:        time.Date(2024, 1, 22, 10, 30, 0, 0, time.UTC),
		snapshots:  persistence.NewMemorySnapshots(),
		dispatcher: events.NewInMemoryDispatcher(nil),
	}
	env.audit = NewAuditService(AuditDependencies{
		AuditRepo:  repository.NewAuditRepository(env.snapshots, nil),
		Dispatcher: env.dispatcher,
		Now:        env.clock,
	})
	env.tickets = NewTicketService(TicketDependencies{
		TicketRepo: repository.NewTicketRepository(env.snapshots, nil),
		Audit:      env.audit,
		Dispatcher: env.dispatcher,
		Policy:     sla.DefaultPolicy(),
		Now:        env.clock,
	})
	env.coordinator = NewCoordinatorService(CoordinatorDependencies{
		NotificationRepo: repository.NewNotificationRepository(env.snapshots, nil),
		EvaluationRepo:   repository.NewEvaluationRepository(env.snapshots, nil),
		Linker:           env.tickets,
		Lister:           env.tickets,
		Dispatcher:       env.dispatcher,
		Now:              env.clock,
	})
	env.approvals = NewApprovalService(ApprovalDependencies{
		Audit:       env.audit,
		Tickets:     env.tickets,
		Coordinator: env.coordinator,
	})
	env.notifications = NewNotificationService(env.dispatcher, env.coordinator, nil)
	env.notifications.RegisterHandlers()
	return env
}

func (e *testEnv) createTicket(t *testing.T, number string) *domain.Ticket {
	t.Helper()
	ticket, err := e.tickets.Create(t.Context(), agentActor, TicketCreateInput{
		TicketNumber: number,
		Agent:        domain.Agent{ID: "a1", Name: "João Silva"},
		Description:  "Escola sem acesso ao CRM",
	})
	require.NoError(t, err)
	return ticket
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, apperrors.IsCode(err, code), "want %s, got %v", code, err)
}
