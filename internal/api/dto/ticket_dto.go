package dto

import (
	"time"

	"github.com/maplebear/saf-portal/internal/domain"
	"github.com/maplebear/saf-portal/internal/sla"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	ID           string       `json:"id"`
	TicketNumber string       `json:"ticket_number"`
	Source       string       `json:"source"`
	Group        string       `json:"group"`
	Requester    string       `json:"requester"`
	Agent        domain.Agent `json:"agent"`
	Description  string       `json:"description"`
	Tags         []string     `json:"tags"`
	Watchers     []string     `json:"watchers"`
	DueDate      *time.Time   `json:"due_date"`
	PendingSince *time.Time   `json:"pending_since"`
	CreatedAt    *time.Time   `json:"created_at"`
}

// UpdateTicketRequest is a partial update. Absent fields stay untouched.
type UpdateTicketRequest struct {
	TicketNumber  *string              `json:"ticket_number"`
	Source        *string              `json:"source"`
	Group         *string              `json:"group"`
	Requester     *string              `json:"requester"`
	Agent         *domain.Agent        `json:"agent"`
	Description   *string              `json:"description"`
	Tags          *[]string            `json:"tags"`
	Watchers      *[]string            `json:"watchers"`
	DueDate       *time.Time           `json:"due_date"`
	ClearDueDate  bool                 `json:"clear_due_date"`
	PendingSince  *time.Time           `json:"pending_since"`
	Status        *domain.TicketStatus `json:"status"`
	Justification string               `json:"justification"`
}

// MoveTicketRequest payload for POST /tickets/:id/move.
type MoveTicketRequest struct {
	Status        domain.TicketStatus `json:"status"`
	Justification string              `json:"justification"`
}

// ApprovalRequest carries the justification for a sign-off request.
type ApprovalRequest struct {
	Justification string `json:"justification"`
}

// TicketResponse is a ticket plus its derived aging fields.
type TicketResponse struct {
	ID            string              `json:"id"`
	TicketNumber  string              `json:"ticket_number"`
	Status        domain.TicketStatus `json:"status"`
	Source        string              `json:"source,omitempty"`
	Group         string              `json:"group,omitempty"`
	Requester     string              `json:"requester,omitempty"`
	Agent         domain.Agent        `json:"agent"`
	Description   string              `json:"description"`
	Tags          []string            `json:"tags"`
	Watchers      []string            `json:"watchers"`
	NeedsApproval bool                `json:"needs_approval"`
	EvaluationID  *string             `json:"evaluation_id,omitempty"`
	PendingSince  time.Time           `json:"pending_since"`
	DueDate       *time.Time          `json:"due_date,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	DaysOpen      int                 `json:"days_open"`
	SLATier       sla.Tier            `json:"sla_tier"`
	Overdue       bool                `json:"overdue"`
	DueState      sla.DueState        `json:"due_state"`
	DueDays       int                 `json:"due_days"`
}

// NewTicketResponse combines ticket with assessment.
func NewTicketResponse(ticket *domain.Ticket, assessment sla.Assessment) TicketResponse {
	tags := ticket.Tags
	if tags == nil {
		tags = []string{}
	}
	watchers := ticket.Watchers
	if watchers == nil {
		watchers = []string{}
	}
	return TicketResponse{
		ID:            ticket.ID,
		TicketNumber:  ticket.TicketNumber,
		Status:        ticket.Status,
		Source:        ticket.Source,
		Group:         ticket.Group,
		Requester:     ticket.Requester,
		Agent:         ticket.Agent,
		Description:   ticket.Description,
		Tags:          tags,
		Watchers:      watchers,
		NeedsApproval: ticket.NeedsApproval,
		EvaluationID:  ticket.EvaluationID,
		PendingSince:  ticket.PendingSince,
		DueDate:       ticket.DueDate,
		CreatedAt:     ticket.CreatedAt,
		UpdatedAt:     ticket.UpdatedAt,
		DaysOpen:      assessment.DaysOpen,
		SLATier:       assessment.Tier,
		Overdue:       assessment.Overdue,
		DueState:      assessment.DueState,
		DueDays:       assessment.DueDays,
	}
}
