package dto

import "github.com/maplebear/saf-portal/internal/domain"

// CreateAuditRequest payload for POST /audit.
type CreateAuditRequest struct {
	ActionType       domain.AuditActionType `json:"action_type"`
	Action           string                 `json:"action"`
	Description      string                 `json:"description"`
	TargetEntity     string                 `json:"target_entity"`
	TargetID         string                 `json:"target_id"`
	Justification    string                 `json:"justification"`
	Priority         domain.AuditPriority   `json:"priority"`
	RequiresApproval bool                   `json:"requires_approval"`
	Details          domain.AuditDetails    `json:"details"`
}

// DecisionRequest carries the coordinator's notes on approve or reject.
type DecisionRequest struct {
	Notes string `json:"notes"`
}
