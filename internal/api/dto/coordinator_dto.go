package dto

import (
	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/service"
)

// CreateNotificationRequest payload for POST /coordinator/notifications.
type CreateNotificationRequest struct {
	Type          domain.NotificationType `json:"type"`
	Title         string                  `json:"title"`
	Message       string                  `json:"message"`
	TicketID      *string                 `json:"ticket_id"`
	AuditRecordID *string                 `json:"audit_record_id"`
	TargetRoles   []domain.Role           `json:"target_roles"`
}

// CreateEvaluationRequest payload for POST /coordinator/evaluations.
type CreateEvaluationRequest struct {
	TicketID string `json:"ticket_id"`
	Rating   int    `json:"rating"`
	Feedback string `json:"feedback"`
}

// UpdateEvaluationRequest is a partial evaluation update.
type UpdateEvaluationRequest struct {
	Rating   *int    `json:"rating"`
	Feedback *string `json:"feedback"`
}

// ClearNotificationsResponse reports how many notifications were removed.
type ClearNotificationsResponse struct {
	Removed int `json:"removed"`
}

// DashboardResponse is the coordinator landing page payload.
type DashboardResponse struct {
	Tickets             service.TicketSummary `json:"tickets"`
	Team                service.TeamMetrics   `json:"team"`
	Audit               service.AuditStats    `json:"audit"`
	UnreadNotifications int                   `json:"unread_notifications"`
	CriticalTickets     []TicketResponse      `json:"critical_tickets"`
}
