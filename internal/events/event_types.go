package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/maplebear/saf-portal/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketUpdated       EventType = "ticket_updated"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketRemoved       EventType = "ticket_removed"
	EventAuditRecorded       EventType = "audit_recorded"
	EventAuditDecided        EventType = "audit_decided"
	EventNotificationCreated EventType = "notification_created"
	EventEvaluationCreated   EventType = "evaluation_created"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID        string       `json:"id"`
	Type      EventType    `json:"type"`
	TicketID  string       `json:"ticket_id,omitempty"`
	Actor     domain.Actor `json:"actor"`
	Timestamp time.Time    `json:"timestamp"`
	Payload   interface{}  `json:"payload"`
}

// NewEvent stamps a fresh id on an event.
func NewEvent(eventType EventType, ticketID string, actor domain.Actor, at time.Time, payload interface{}) Event {
	return Event{
		ID:        uuid.NewString(),
		Type:      eventType,
		TicketID:  ticketID,
		Actor:     actor,
		Timestamp: at,
		Payload:   payload,
	}
}

// Key is the partition key used when forwarding the event.
func (e Event) Key() string {
	if e.TicketID != "" {
		return e.TicketID
	}
	return e.ID
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	TicketNumber string `json:"ticket_number"`
	AgentName    string `json:"agent_name"`
}

// TicketUpdatedPayload lists the fields a patch touched.
type TicketUpdatedPayload struct {
	Fields []string `json:"fields"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus     domain.TicketStatus `json:"old_status"`
	NewStatus     domain.TicketStatus `json:"new_status"`
	Justification string              `json:"justification,omitempty"`
	NeedsApproval bool                `json:"needs_approval"`
	TicketNumber  string              `json:"ticket_number"`
	AgentName     string              `json:"agent_name"`
	AuditRecordID string              `json:"audit_record_id,omitempty"`
}

// TicketRemovedPayload payload.
type TicketRemovedPayload struct {
	TicketNumber string `json:"ticket_number"`
}

// AuditRecordedPayload payload.
type AuditRecordedPayload struct {
	Record domain.AuditRecord `json:"record"`
}

// AuditDecidedPayload payload.
type AuditDecidedPayload struct {
	Record   domain.AuditRecord `json:"record"`
	Approved bool               `json:"approved"`
}

// NotificationCreatedPayload payload.
type NotificationCreatedPayload struct {
	Notification domain.Notification `json:"notification"`
}

// EvaluationCreatedPayload payload.
type EvaluationCreatedPayload struct {
	Evaluation domain.Evaluation `json:"evaluation"`
}
