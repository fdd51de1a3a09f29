package model

import (
	"time"

	"github.com/google/uuid"
)

// EscalationRule is a declarative trigger read by the escalation engine.
// Rules are configuration: the engine never mutates them.
type EscalationRule struct {
	Base
	Name               string     `json:"name" db:"name"`
	StateFilter        *CaseState `json:"state_filter,omitempty" db:"state_filter"`
	PriorityFilter     *Priority  `json:"priority_filter,omitempty" db:"priority_filter"`
	HoursOverdue       int        `json:"hours_overdue" db:"hours_overdue"`
	EscalateToRole     string     `json:"escalate_to_role" db:"escalate_to_role"`
	EscalateAfterHours int        `json:"escalate_after_hours" db:"escalate_after_hours"`
	IsActive           bool       `json:"is_active" db:"is_active"`
}

// Matches reports whether the rule's filters apply to the case. The
// hours-overdue threshold is checked separately by the engine.
func (r *EscalationRule) Matches(c *Case) bool {
	if !r.IsActive {
		return false
	}
	if r.StateFilter != nil && *r.StateFilter != c.CurrentState {
		return false
	}
	if r.PriorityFilter != nil && *r.PriorityFilter != c.Priority {
		return false
	}
	return true
}

// Cooldown returns the rule's per-(case, rule) suppression window.
func (r *EscalationRule) Cooldown() time.Duration {
	return time.Duration(r.EscalateAfterHours) * time.Hour
}

// CaseEscalation is one firing of a rule against a case. Level counts how
// many times this exact rule has fired for this case.
type CaseEscalation struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	CaseID      uuid.UUID  `json:"case_id" db:"case_id"`
	RuleID      uuid.UUID  `json:"rule_id" db:"rule_id"`
	Level       int        `json:"level" db:"level"`
	TriggeredBy string     `json:"triggered_by" db:"triggered_by"`
	TargetRole  string     `json:"target_role" db:"target_role"`
	Reason      string     `json:"reason" db:"reason"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	ResolvedAt  *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
}
