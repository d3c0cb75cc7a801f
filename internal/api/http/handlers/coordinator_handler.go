package handlers

import (
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/maplebear/saf-portal/internal/api/dto"
	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/repository"
	"github.com/maplebear/saf-portal/internal/service"
)

// CoordinatorHandler exposes the coordinator dashboard endpoints.
type CoordinatorHandler struct {
	coordinator *service.CoordinatorService
	tickets     *service.TicketService
	audit       *service.AuditService
	now         func() time.Time
}

// NewCoordinatorHandler constructs handler. A nil clock means time.Now.
func NewCoordinatorHandler(coordinator *service.CoordinatorService, tickets *service.TicketService, audit *service.AuditService, now func() time.Time) *CoordinatorHandler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &CoordinatorHandler{coordinator: coordinator, tickets: tickets, audit: audit, now: now}
}

// CreateNotification POST /coordinator/notifications.
func (h *CoordinatorHandler) CreateNotification(c *fiber.Ctx) error {
	var req dto.CreateNotificationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	notification, err := h.coordinator.CreateNotification(c.UserContext(), service.NotificationInput{
		Type:          req.Type,
		Title:         req.Title,
		Message:       req.Message,
		TicketID:      req.TicketID,
		AuditRecordID: req.AuditRecordID,
		TargetRoles:   req.TargetRoles,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, notification)
}

// ClearOldNotifications DELETE /coordinator/notifications/old.
func (h *CoordinatorHandler) ClearOldNotifications(c *fiber.Ctx) error {
	removed, err := h.coordinator.ClearOldNotifications(c.UserContext(), h.now())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.ClearNotificationsResponse{Removed: removed})
}

// CreateEvaluation POST /coordinator/evaluations.
func (h *CoordinatorHandler) CreateEvaluation(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateEvaluationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	evaluation, err := h.coordinator.CreateEvaluation(c.UserContext(), p.Actor(), service.EvaluationInput{
		TicketID: req.TicketID,
		Rating:   req.Rating,
		Feedback: req.Feedback,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, evaluation)
}

// UpdateEvaluation PATCH /coordinator/evaluations/:id.
func (h *CoordinatorHandler) UpdateEvaluation(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateEvaluationRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	evaluation, err := h.coordinator.UpdateEvaluation(c.UserContext(), p.Actor(), c.Params("id"), service.EvaluationPatch{
		Rating:   req.Rating,
		Feedback: req.Feedback,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, evaluation)
}

// ListEvaluations GET /coordinator/evaluations.
func (h *CoordinatorHandler) ListEvaluations(c *fiber.Ctx) error {
	ticketID, evaluator := queryPtr(c, "ticket_id"), queryPtr(c, "evaluator")
	var (
		items []domain.Evaluation
		err   error
	)
	if ticketID == nil && evaluator != nil {
		items, err = h.coordinator.EvaluationsByEvaluator(c.UserContext(), *evaluator)
	} else {
		items, err = h.coordinator.Evaluations(c.UserContext(), repository.EvaluationFilter{
			TicketID:      ticketID,
			EvaluatorName: evaluator,
		})
	}
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.Evaluation{}
	}
	return data(c, http.StatusOK, items)
}

// Metrics GET /coordinator/metrics.
func (h *CoordinatorHandler) Metrics(c *fiber.Ctx) error {
	metrics, err := h.coordinator.TeamPerformanceMetrics(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, metrics)
}

// Dashboard GET /coordinator/dashboard.
func (h *CoordinatorHandler) Dashboard(c *fiber.Ctx) error {
	ctx := c.UserContext()
	summary, err := h.tickets.Summary(ctx)
	if err != nil {
		return err
	}
	team, err := h.coordinator.TeamPerformanceMetrics(ctx)
	if err != nil {
		return err
	}
	stats, err := h.audit.Stats(ctx)
	if err != nil {
		return err
	}
	unread, err := h.coordinator.UnreadCount(ctx)
	if err != nil {
		return err
	}
	critical, err := h.tickets.CriticalTickets(ctx)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, dto.DashboardResponse{
		Tickets:             summary,
		Team:                team,
		Audit:               stats,
		UnreadNotifications: unread,
		CriticalTickets:     ticketResponses(h.tickets, critical),
	})
}
