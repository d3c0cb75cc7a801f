package handlers

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/repository"
	"github.com/maplebear/saf-portal/internal/service"
	apperrors "github.com/maplebear/saf-portal/pkg/util/errorutil"
)

// NotificationsHandler serves the notification badge and list.
type NotificationsHandler struct {
	coordinator *service.CoordinatorService
}

// NewNotificationsHandler constructs handler.
func NewNotificationsHandler(coordinator *service.CoordinatorService) *NotificationsHandler {
	return &NotificationsHandler{coordinator: coordinator}
}

// ListNotifications GET /notifications. Only notifications targeted at the caller's role are returned.
func (h *NotificationsHandler) ListNotifications(c *fiber.Ctx) error {
	p, err := principal(c)
	if err != nil {
		return err
	}
	unread, err := queryBool(c, "unread")
	if err != nil {
		return err
	}
	role := p.User.Role
	filter := repository.NotificationFilter{
		TicketID:   queryPtr(c, "ticket_id"),
		Role:       &role,
		UnreadOnly: unread != nil && *unread,
	}
	if raw := queryPtr(c, "type"); raw != nil {
		kind := domain.NotificationType(strings.ToUpper(*raw))
		if !kind.Valid() {
			return apperrors.NewValidationError("unknown notification type", map[string]any{"type": *raw})
		}
		filter.Type = &kind
	}
	items, err := h.coordinator.Notifications(c.UserContext(), filter)
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.Notification{}
	}
	return data(c, http.StatusOK, items)
}

// MarkRead POST /notifications/:id/read.
func (h *NotificationsHandler) MarkRead(c *fiber.Ctx) error {
	if err := h.coordinator.MarkAsRead(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}
