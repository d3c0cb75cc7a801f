// Package sla classifies ticket aging. Every caller that needs a severity tier
// or an overdue flag goes through this package so that dashboard counts and
// filtered lists always agree.
package sla

import (
	"time"

	"github.com/maplebear/saf-portal/internal/domain"
)

const day = 24 * time.Hour

// Tier is the severity badge derived from days open.
type Tier string

const (
	TierNormal    Tier = "NORMAL"
	TierAttention Tier = "ATTENTION"
	TierCritical  Tier = "CRITICAL"
)

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	return t == TierNormal || t == TierAttention || t == TierCritical
}

// DueState describes how close a ticket is to its due date.
type DueState string

const (
	DueNone    DueState = "NONE"
	DueSoon    DueState = "DUE_SOON"
	DueToday   DueState = "DUE_TODAY"
	DueOverdue DueState = "OVERDUE"
)

// dueSoonDays is the window in which a future due date is flagged.
const dueSoonDays = 3

// Policy holds the day thresholds for each tier.
type Policy struct {
	AttentionDays int
	CriticalDays  int
}

// DefaultPolicy returns the thresholds used by the SAF team.
func DefaultPolicy() Policy {
	return Policy{AttentionDays: 8, CriticalDays: 15}
}

// normalized falls back to the defaults for unset or inverted thresholds.
func (p Policy) normalized() Policy {
	def := DefaultPolicy()
	if p.AttentionDays <= 0 {
		p.AttentionDays = def.AttentionDays
	}
	if p.CriticalDays <= 0 {
		p.CriticalDays = def.CriticalDays
	}
	if p.CriticalDays < p.AttentionDays {
		p.CriticalDays = p.AttentionDays
	}
	return p
}

// DaysOpen returns whole days elapsed since pendingSince, never negative.
func DaysOpen(pendingSince, now time.Time) int {
	elapsed := now.Sub(pendingSince)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / day)
}

// Classify maps days open to a tier.
func (p Policy) Classify(daysOpen int) Tier {
	p = p.normalized()
	switch {
	case daysOpen >= p.CriticalDays:
		return TierCritical
	case daysOpen >= p.AttentionDays:
		return TierAttention
	default:
		return TierNormal
	}
}

// TierOf classifies a ticket at now.
func (p Policy) TierOf(ticket *domain.Ticket, now time.Time) Tier {
	return p.Classify(DaysOpen(ticket.PendingSince, now))
}

// IsOverdue reports whether due is set and already passed.
func IsOverdue(due *time.Time, now time.Time) bool {
	return due != nil && now.After(*due)
}

// Due returns the due-date badge state and the whole days between now and due.
// Days is negative once the ticket is overdue.
func Due(due *time.Time, now time.Time) (DueState, int) {
	if due == nil {
		return DueNone, 0
	}
	if now.After(*due) {
		return DueOverdue, -int(now.Sub(*due) / day)
	}
	days := int(due.Sub(now) / day)
	switch {
	case days == 0:
		return DueToday, 0
	case days <= dueSoonDays:
		return DueSoon, days
	default:
		return DueNone, days
	}
}

// Assessment bundles every derived aging field of a ticket.
type Assessment struct {
	DaysOpen int
	Tier     Tier
	Overdue  bool
	DueState DueState
	DueDays  int
}

// Assess computes all derived fields for ticket at now.
func (p Policy) Assess(ticket *domain.Ticket, now time.Time) Assessment {
	days := DaysOpen(ticket.PendingSince, now)
	state, dueDays := Due(ticket.DueDate, now)
	return Assessment{
		DaysOpen: days,
		Tier:     p.Classify(days),
		Overdue:  IsOverdue(ticket.DueDate, now),
		DueState: state,
		DueDays:  dueDays,
	}
}
