package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maplebear/saf-portal/internal/api/dto"
	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/service"
	"github.com/maplebear/saf-portal/internal/sla"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

// TicketsHandler exposes the ticket board.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Create(c.UserContext(), p.Actor(), service.TicketCreateInput{
		ID:           req.ID,
		TicketNumber: req.TicketNumber,
		Source:       req.Source,
		Group:        req.Group,
		Requester:    req.Requester,
		Agent:        req.Agent,
		Description:  req.Description,
		Tags:         req.Tags,
		Watchers:     req.Watchers,
		DueDate:      req.DueDate,
		PendingSince: req.PendingSince,
		CreatedAt:    req.CreatedAt,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusCreated, h.response(ticket))
}

// ListTickets GET /tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c)
	if err != nil {
		return err
	}
	tickets, err := h.service.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, h.responses(tickets))
}

// CriticalTickets GET /tickets/critical.
func (h *TicketsHandler) CriticalTickets(c *fiber.Ctx) error {
	tickets, err := h.service.CriticalTickets(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, h.responses(tickets))
}

// OverdueTickets GET /tickets/overdue.
func (h *TicketsHandler) OverdueTickets(c *fiber.Ctx) error {
	tickets, err := h.service.OverdueTickets(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, h.responses(tickets))
}

// Summary GET /tickets/summary.
func (h *TicketsHandler) Summary(c *fiber.Ctx) error {
	summary, err := h.service.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, summary)
}

// GetTicket GET /tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	ticket, err := h.service.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, h.response(ticket))
}

// UpdateTicket PATCH /tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.Update(c.UserContext(), p.Actor(), c.Params("id"), service.TicketPatch{
		TicketNumber:  req.TicketNumber,
		Source:        req.Source,
		Group:         req.Group,
		Requester:     req.Requester,
		Agent:         req.Agent,
		Description:   req.Description,
		Tags:          req.Tags,
		Watchers:      req.Watchers,
		DueDate:       req.DueDate,
		ClearDueDate:  req.ClearDueDate,
		PendingSince:  req.PendingSince,
		Status:        req.Status,
		Justification: req.Justification,
	})
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, h.response(ticket))
}

// MoveTicket POST /tickets/:id/move.
func (h *TicketsHandler) MoveTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.MoveTicketRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	status := domain.TicketStatus(strings.ToUpper(strings.TrimSpace(string(req.Status))))
	if !status.Valid() {
		return apperrors.NewValidationError("unknown ticket status", map[string]any{"status": req.Status})
	}
	ticket, err := h.service.Move(c.UserContext(), p.Actor(), c.Params("id"), status, req.Justification)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, h.response(ticket))
}

// RequestApproval POST /tickets/:id/approval.
func (h *TicketsHandler) RequestApproval(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	var req dto.ApprovalRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	ticket, err := h.service.RequestApproval(c.UserContext(), p.Actor(), c.Params("id"), req.Justification)
	if err != nil {
		return err
	}
	return data(c, http.StatusOK, h.response(ticket))
}

// DeleteTicket DELETE /tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	if err := h.service.Remove(c.UserContext(), p.Actor(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

func (h *TicketsHandler) response(ticket *domain.Ticket) dto.TicketResponse {
	return dto.NewTicketResponse(ticket, h.service.Assess(ticket))
}

func (h *TicketsHandler) responses(tickets []domain.Ticket) []dto.TicketResponse {
	return ticketResponses(h.service, tickets)
}

func ticketResponses(tickets *service.TicketService, list []domain.Ticket) []dto.TicketResponse {
	items := make([]dto.TicketResponse, 0, len(list))
	for i := range list {
		items = append(items, dto.NewTicketResponse(&list[i], tickets.Assess(&list[i])))
	}
	return items
}

func parseTicketFilter(c *fiber.Ctx) (service.TicketListFilter, error) {
	statuses, err := splitStatuses(c.Query("status"))
	if err != nil {
		return service.TicketListFilter{}, err
	}
	needsApproval, err := queryBool(c, "needs_approval")
	if err != nil {
		return service.TicketListFilter{}, err
	}
	filter := service.TicketListFilter{
		Statuses:      statuses,
		AgentID:       queryPtr(c, "agent_id"),
		AgentName:     queryPtr(c, "agent"),
		TicketNumber:  queryPtr(c, "ticket_number"),
		NeedsApproval: needsApproval,
		SearchTerm:    queryPtr(c, "search"),
	}
	if raw := queryPtr(c, "tier"); raw != nil {
		tier := sla.Tier(strings.ToUpper(*raw))
		if !tier.Valid() {
			return service.TicketListFilter{}, apperrors.NewValidationError("unknown sla tier", map[string]any{"tier": *raw})
		}
		filter.Tier = &tier
	}
	overdue, err := queryBool(c, "overdue")
	if err != nil {
		return service.TicketListFilter{}, err
	}
	filter.OverdueOnly = overdue != nil && *overdue
	return filter, nil
}
