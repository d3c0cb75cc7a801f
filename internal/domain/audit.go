package domain

import "time"

// AuditActionType captures which kind of entity an audited action touched.
type AuditActionType string

const (
	AuditActionTicket  AuditActionType = "ticket"
	AuditActionVoucher AuditActionType = "voucher"
	AuditActionLicense AuditActionType = "license"
	AuditActionUser    AuditActionType = "user"
	AuditActionSystem  AuditActionType = "system"
)

// Valid reports whether t is a known action type.
func (t AuditActionType) Valid() bool {
	switch t {
	case AuditActionTicket, AuditActionVoucher, AuditActionLicense, AuditActionUser, AuditActionSystem:
		return true
	}
	return false
}

// AuditStatus is the coordinator decision state of a record.
type AuditStatus string

const (
	AuditStatusPending  AuditStatus = "pending"
	AuditStatusApproved AuditStatus = "approved"
	AuditStatusRejected AuditStatus = "rejected"
)

// AuditPriority ranks records on the audit panel.
type AuditPriority string

const (
	AuditPriorityLow      AuditPriority = "low"
	AuditPriorityMedium   AuditPriority = "medium"
	AuditPriorityHigh     AuditPriority = "high"
	AuditPriorityCritical AuditPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p AuditPriority) Valid() bool {
	switch p {
	case AuditPriorityLow, AuditPriorityMedium, AuditPriorityHigh, AuditPriorityCritical:
		return true
	}
	return false
}

// TicketSnapshot is the ticket state an approval confirms or restores.
type TicketSnapshot struct {
	Status        TicketStatus `json:"status"`
	NeedsApproval bool         `json:"needs_approval"`
	Description   string       `json:"description,omitempty"`
}

// TicketChange is the payload of a ticket audit record.
type TicketChange struct {
	Before TicketSnapshot `json:"before"`
	After  TicketSnapshot `json:"after"`
}

// VoucherState describes a school's exception vouchers.
type VoucherState struct {
	Vouchers int    `json:"vouchers"`
	Code     string `json:"code,omitempty"`
}

// VoucherChange is the payload of a voucher audit record.
type VoucherChange struct {
	SchoolID string        `json:"school_id"`
	Before   *VoucherState `json:"before,omitempty"`
	After    VoucherState  `json:"after"`
}

// LicenseHolder describes who holds a Canva license.
type LicenseHolder struct {
	Holder string `json:"holder,omitempty"`
	Email  string `json:"email,omitempty"`
	Status string `json:"status,omitempty"`
}

// LicenseChange is the payload of a license audit record.
type LicenseChange struct {
	LicenseID string         `json:"license_id"`
	Before    *LicenseHolder `json:"before,omitempty"`
	After     LicenseHolder  `json:"after"`
}

// UserState describes a portal user account.
type UserState struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Role  string `json:"role,omitempty"`
}

// UserChange is the payload of a user audit record.
type UserChange struct {
	Before *UserState `json:"before,omitempty"`
	After  UserState  `json:"after"`
}

// SystemChange is the payload of a system audit record.
type SystemChange struct {
	Info string `json:"info"`
}

// AuditDetails holds exactly one payload, selected by the record's action type.
type AuditDetails struct {
	Ticket         *TicketChange  `json:"ticket,omitempty"`
	Voucher        *VoucherChange `json:"voucher,omitempty"`
	License        *LicenseChange `json:"license,omitempty"`
	User           *UserChange    `json:"user,omitempty"`
	System         *SystemChange  `json:"system,omitempty"`
	AdditionalInfo string         `json:"additional_info,omitempty"`
}

// Kind returns the action type matching the populated payload, or "" when
// zero or several payloads are set.
func (d AuditDetails) Kind() AuditActionType {
	var kind AuditActionType
	count := 0
	if d.Ticket != nil {
		kind, count = AuditActionTicket, count+1
	}
	if d.Voucher != nil {
		kind, count = AuditActionVoucher, count+1
	}
	if d.License != nil {
		kind, count = AuditActionLicense, count+1
	}
	if d.User != nil {
		kind, count = AuditActionUser, count+1
	}
	if d.System != nil {
		kind, count = AuditActionSystem, count+1
	}
	if count != 1 {
		return ""
	}
	return kind
}

// AuditRecord is an immutable log entry of a sensitive action.
// Once Status leaves pending it never changes again.
type AuditRecord struct {
	ID                string          `json:"id"`
	Timestamp         time.Time       `json:"timestamp"`
	ActionType        AuditActionType `json:"action_type"`
	Action            string          `json:"action"`
	Description       string          `json:"description"`
	Actor             Actor           `json:"actor"`
	TargetEntity      string          `json:"target_entity"`
	TargetID          string          `json:"target_id"`
	Justification     string          `json:"justification"`
	Status            AuditStatus     `json:"status"`
	Priority          AuditPriority   `json:"priority"`
	RequiresApproval  bool            `json:"requires_approval"`
	CoordinatorID     string          `json:"coordinator_id,omitempty"`
	CoordinatorNotes  string          `json:"coordinator_notes,omitempty"`
	CoordinatorAction string          `json:"coordinator_action,omitempty"`
	DecidedAt         *time.Time      `json:"decided_at,omitempty"`
	Details           AuditDetails    `json:"details"`
}

// Terminal reports whether the record has been decided.
func (r *AuditRecord) Terminal() bool {
	return r.Status != AuditStatusPending
}
