package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/repository"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

func TestCoordinatorService_CreateNotificationValidation(t *testing.T) {
	env := setupTestServices(t)

	_, err := env.coordinator.CreateNotification(t.Context(), NotificationInput{Type: domain.NotificationOverdue})
	requireCode(t, err, apperrors.CodeValidation)

	_, err = env.coordinator.CreateNotification(t.Context(), NotificationInput{Type: "SPAM", Message: "x"})
	requireCode(t, err, apperrors.CodeValidation)

	n, err := env.coordinator.CreateNotification(t.Context(), NotificationInput{
		Type:    domain.NotificationOverdue,
		Message: "Ticket #259134 está vencido há 2 dias",
	})
	require.NoError(t, err)
	assert.False(t, n.IsRead)
	assert.Equal(t, "Ticket Vencido", n.Title)
	assert.Equal(t, []domain.Role{domain.RoleCoordinator, domain.RoleAdmin}, n.TargetRoles)
	assert.Equal(t, env.now, n.CreatedAt)
}

func TestCoordinatorService_MarkAsReadIsIdempotent(t *testing.T) {
	env := setupTestServices(t)
	n, err := env.coordinator.CreateNotification(t.Context(), NotificationInput{
		Type: domain.NotificationCritical, Message: "crítico",
	})
	require.NoError(t, err)

	require.NoError(t, env.coordinator.MarkAsRead(t.Context(), n.ID))
	first, err := env.coordinator.Notifications(t.Context(), repository.NotificationFilter{})
	require.NoError(t, err)

	require.NoError(t, env.coordinator.MarkAsRead(t.Context(), n.ID))
	second, err := env.coordinator.Notifications(t.Context(), repository.NotificationFilter{})
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, second[0].IsRead)

	unread, err := env.coordinator.Unread(t.Context())
	require.NoError(t, err)
	assert.Empty(t, unread)

	requireCode(t, env.coordinator.MarkAsRead(t.Context(), "missing"), apperrors.CodeNotFound)
}

func TestCoordinatorService_ClearOldNotificationsBoundary(t *testing.T) {
	env := setupTestServices(t)
	create := func(msg string) {
		_, err := env.coordinator.CreateNotification(t.Context(), NotificationInput{Type: domain.NotificationOverdue, Message: msg})
		require.NoError(t, err)
	}

	create("exactly thirty days")
	env.advance(time.Second)
	create("one second younger")
	env.advance(-time.Second)

	removed, err := env.coordinator.ClearOldNotifications(t.Context(), env.now.Add(DefaultNotificationRetention))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	left, err := env.coordinator.Notifications(t.Context(), repository.NotificationFilter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "one second younger", left[0].Message)
}

func TestCoordinatorService_RatingOutOfRange(t *testing.T) {
	env := setupTestServices(t)
	ticket := env.createTicket(t, "1")

	for _, rating := range []int{0, 6, -1} {
		_, err := env.coordinator.CreateEvaluation(t.Context(), coordinatorActor, EvaluationInput{TicketID: ticket.ID, Rating: rating})
		requireCode(t, err, apperrors.CodeValidation)
	}

	stored, err := env.tickets.Get(t.Context(), ticket.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.EvaluationID)
}

func TestCoordinatorService_CreateEvaluationLinksTicket(t *testing.T) {
	env := setupTestServices(t)
	ticket := env.createTicket(t, "1")

	_, err := env.coordinator.CreateEvaluation(t.Context(), agentActor, EvaluationInput{TicketID: ticket.ID, Rating: 5})
	requireCode(t, err, apperrors.CodeForbidden)

	_, err = env.coordinator.CreateEvaluation(t.Context(), coordinatorActor, EvaluationInput{TicketID: "missing", Rating: 5})
	requireCode(t, err, apperrors.CodeNotFound)

	evaluation, err := env.coordinator.CreateEvaluation(t.Context(), coordinatorActor, EvaluationInput{
		TicketID: ticket.ID, Rating: 4, Feedback: "Bom atendimento",
	})
	require.NoError(t, err)
	assert.Equal(t, "Ana Costa", evaluation.EvaluatorName)

	stored, err := env.tickets.Get(t.Context(), ticket.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.EvaluationID)
	assert.Equal(t, evaluation.ID, *stored.EvaluationID)

	byTicket, err := env.coordinator.EvaluationByTicket(t.Context(), ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, evaluation.ID, byTicket.ID)

	bad := 9
	_, err = env.coordinator.UpdateEvaluation(t.Context(), coordinatorActor, evaluation.ID, EvaluationPatch{Rating: &bad})
	requireCode(t, err, apperrors.CodeValidation)

	good := 5
	updated, err := env.coordinator.UpdateEvaluation(t.Context(), coordinatorActor, evaluation.ID, EvaluationPatch{Rating: &good})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.Rating)
}

func TestCoordinatorService_EmptyMetrics(t *testing.T) {
	env := setupTestServices(t)

	metrics, err := env.coordinator.TeamPerformanceMetrics(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, metrics.TotalTickets)
	assert.Zero(t, metrics.AverageRating)
	assert.Equal(t, 0, metrics.PendingApprovals)
	assert.Equal(t, 0, metrics.OverdueTickets)
	require.NotNil(t, metrics.AgentMetrics)
	assert.Empty(t, metrics.AgentMetrics)
}

func TestCoordinatorService_MetricsUseTrueMean(t *testing.T) {
	env := setupTestServices(t)
	ticket := env.createTicket(t, "1")
	bruno := domain.Actor{ID: "u-bruno", Name: "Bruno Lima", Role: domain.RoleCoordinator}

	for _, rating := range []int{5, 4, 4} {
		_, err := env.coordinator.CreateEvaluation(t.Context(), coordinatorActor, EvaluationInput{TicketID: ticket.ID, Rating: rating})
		require.NoError(t, err)
	}
	_, err := env.coordinator.CreateEvaluation(t.Context(), bruno, EvaluationInput{TicketID: ticket.ID, Rating: 2})
	require.NoError(t, err)

	_, err = env.coordinator.CreateNotification(t.Context(), NotificationInput{Type: domain.NotificationApprovalNeeded, Message: "a"})
	require.NoError(t, err)
	_, err = env.coordinator.CreateNotification(t.Context(), NotificationInput{Type: domain.NotificationOverdue, Message: "b"})
	require.NoError(t, err)

	metrics, err := env.coordinator.TeamPerformanceMetrics(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 4, metrics.TotalTickets)
	assert.Equal(t, 3.75, metrics.AverageRating)
	assert.Equal(t, 1, metrics.PendingApprovals)
	assert.Equal(t, 1, metrics.OverdueTickets)

	require.Len(t, metrics.AgentMetrics, 2)
	assert.Equal(t, AgentMetric{Agent: "Ana Costa", TicketsHandled: 3, AverageRating: 4.33}, metrics.AgentMetrics[0])
	assert.Equal(t, AgentMetric{Agent: "Bruno Lima", TicketsHandled: 1, AverageRating: 2}, metrics.AgentMetrics[1])
}

func TestCoordinatorService_MetricsCountPendingTicketsByAgentName(t *testing.T) {
	env := setupTestServices(t)
	ticket := env.createTicket(t, "1")
	env.createTicket(t, "2")
	joao := domain.Actor{ID: "u-joao", Name: "João Silva", Role: domain.RoleCoordinator}

	_, err := env.coordinator.CreateEvaluation(t.Context(), joao, EvaluationInput{TicketID: ticket.ID, Rating: 3})
	require.NoError(t, err)

	metrics, err := env.coordinator.TeamPerformanceMetrics(t.Context())
	require.NoError(t, err)
	require.Len(t, metrics.AgentMetrics, 1)
	assert.Equal(t, 2, metrics.AgentMetrics[0].PendingTickets)
}
