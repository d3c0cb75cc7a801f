package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusPending    TicketStatus = "PENDING"
	TicketStatusInProgress TicketStatus = "IN_PROGRESS"
	TicketStatusResolved   TicketStatus = "RESOLVED"
	TicketStatusApproved   TicketStatus = "APPROVED"
	TicketStatusRejected   TicketStatus = "REJECTED"
)

// Valid reports whether s belongs to the status vocabulary.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusInProgress, TicketStatusResolved, TicketStatusApproved, TicketStatusRejected:
		return true
	}
	return false
}

// Open reports whether the ticket is still being worked on.
func (s TicketStatus) Open() bool {
	return s == TicketStatusPending || s == TicketStatusInProgress
}

// CoordinatorOnly reports whether only a coordinator may move a ticket into s.
func (s TicketStatus) CoordinatorOnly() bool {
	return s == TicketStatusApproved || s == TicketStatusRejected
}

// Agent identifies the support handler assigned to a ticket.
type Agent struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ShortName string `json:"short_name,omitempty"`
}

// Ticket is the aggregate for SAF support requests.
type Ticket struct {
	ID            string       `json:"id"`
	TicketNumber  string       `json:"ticket_number"`
	Status        TicketStatus `json:"status"`
	Source        string       `json:"source,omitempty"`
	Group         string       `json:"group,omitempty"`
	Requester     string       `json:"requester,omitempty"`
	Agent         Agent        `json:"agent"`
	Description   string       `json:"description"`
	Tags          []string     `json:"tags,omitempty"`
	Watchers      []string     `json:"watchers,omitempty"`
	NeedsApproval bool         `json:"needs_approval"`
	EvaluationID  *string      `json:"evaluation_id,omitempty"`
	PendingSince  time.Time    `json:"pending_since"`
	DueDate       *time.Time   `json:"due_date,omitempty"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// Snapshot captures the parts of a ticket an approval can confirm or roll back.
func (t *Ticket) Snapshot() TicketSnapshot {
	return TicketSnapshot{
		Status:        t.Status,
		NeedsApproval: t.NeedsApproval,
		Description:   t.Description,
	}
}

// Clone returns a deep copy so callers never share slices with a collection.
func (t Ticket) Clone() Ticket {
	out := t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	if t.Watchers != nil {
		out.Watchers = append([]string(nil), t.Watchers...)
	}
	if t.EvaluationID != nil {
		id := *t.EvaluationID
		out.EvaluationID = &id
	}
	if t.DueDate != nil {
		due := *t.DueDate
		out.DueDate = &due
	}
	return out
}
