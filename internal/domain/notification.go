package domain

import "time"

// NotificationType represents the kind of coordinator notification.
type NotificationType string

const (
	NotificationApprovalNeeded    NotificationType = "APPROVAL_NEEDED"
	NotificationOverdue           NotificationType = "OVERDUE"
	NotificationCritical          NotificationType = "CRITICAL"
	NotificationEvaluationRequest NotificationType = "EVALUATION_REQUEST"
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationApprovalNeeded, NotificationOverdue, NotificationCritical, NotificationEvaluationRequest:
		return true
	}
	return false
}

// Notification is a role-broadcast alert shown on the dashboard badge.
type Notification struct {
	ID            string           `json:"id"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	TicketID      *string          `json:"ticket_id,omitempty"`
	AuditRecordID *string          `json:"audit_record_id,omitempty"`
	IsRead        bool             `json:"is_read"`
	TargetRoles   []Role           `json:"target_roles"`
	CreatedAt     time.Time        `json:"created_at"`
}

// VisibleTo reports whether a user with role may see the notification.
func (n *Notification) VisibleTo(role Role) bool {
	for _, target := range n.TargetRoles {
		if target == role {
			return true
		}
	}
	return role == RoleAdmin
}
