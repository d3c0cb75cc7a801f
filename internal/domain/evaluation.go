package domain

import "time"

const (
	MinRating = 1
	MaxRating = 5
)

// Evaluation is a coordinator's rating of how a ticket was handled.
type Evaluation struct {
	ID            string    `json:"id"`
	TicketID      string    `json:"ticket_id"`
	EvaluatorID   string    `json:"evaluator_id"`
	EvaluatorName string    `json:"evaluator_name"`
	Rating        int       `json:"rating"`
	Feedback      string    `json:"feedback"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidRating reports whether r is inside the 1..5 scale.
func ValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}
