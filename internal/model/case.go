package model

import (
	"time"

	"github.com/google/uuid"
)

// CaseState is a stage in the business process pipeline.
type CaseState string

const (
	StateEnquiry       CaseState = "enquiry"
	StateEstimation    CaseState = "estimation"
	StateQuotation     CaseState = "quotation"
	StateSalesOrder    CaseState = "sales_order"
	StateManufacturing CaseState = "manufacturing"
	StateDelivery      CaseState = "delivery"
	StateRejected      CaseState = "rejected"
	StateClosed        CaseState = "closed"
)

type CaseStatus string

const (
	CaseStatusActive    CaseStatus = "active"
	CaseStatusCompleted CaseStatus = "completed"
	CaseStatusCancelled CaseStatus = "cancelled"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// transitionGraph is the fixed set of allowed state edges. The rejected
// branch exists so a turned-down quotation or estimate can be reworked.
var transitionGraph = map[CaseState][]CaseState{
	StateEnquiry:       {StateEstimation},
	StateEstimation:    {StateQuotation, StateRejected},
	StateQuotation:     {StateSalesOrder, StateRejected},
	StateSalesOrder:    {StateManufacturing},
	StateManufacturing: {StateDelivery},
	StateDelivery:      {StateClosed},
	StateRejected:      {StateEstimation},
	StateClosed:        {},
}

// defaultStateDurations is the per-state SLA budget used to compute
// expected_state_completion when a case enters a state.
var defaultStateDurations = map[CaseState]time.Duration{
	StateEnquiry:       24 * time.Hour,
	StateEstimation:    48 * time.Hour,
	StateQuotation:     24 * time.Hour,
	StateSalesOrder:    72 * time.Hour,
	StateManufacturing: 7 * 24 * time.Hour,
	StateDelivery:      48 * time.Hour,
	StateRejected:      72 * time.Hour,
}

// CanTransition reports whether the edge from -> to exists in the graph.
func CanTransition(from, to CaseState) bool {
	for _, next := range transitionGraph[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidState reports whether s names a known pipeline stage.
func IsValidState(s CaseState) bool {
	_, ok := transitionGraph[s]
	return ok
}

// IsTerminal reports whether s has no outgoing edges.
func IsTerminal(s CaseState) bool {
	return len(transitionGraph[s]) == 0
}

// StateDuration returns the SLA budget for a state. States without an
// explicit budget (terminal states) return zero.
func StateDuration(s CaseState) time.Duration {
	return defaultStateDurations[s]
}

func IsValidPriority(p Priority) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Case is a tracked unit of business work moving through ordered states.
type Case struct {
	Base
	CaseNumber              string     `json:"case_number" db:"case_number"`
	CurrentState            CaseState  `json:"current_state" db:"current_state"`
	Status                  CaseStatus `json:"status" db:"status"`
	Priority                Priority   `json:"priority" db:"priority"`
	ExpectedStateCompletion time.Time  `json:"expected_state_completion" db:"expected_state_completion"`
	SLABreached             bool       `json:"is_sla_breached" db:"is_sla_breached"`
	ClientID                uuid.UUID  `json:"client_id" db:"client_id"`
	AssigneeID              uuid.UUID  `json:"assignee_id" db:"assignee_id"`
	Title                   string     `json:"title" db:"title"`
}

// IsActive reports whether the case is still subject to SLA evaluation.
func (c *Case) IsActive() bool {
	return c.Status == CaseStatusActive
}

// CaseFilter narrows case listings. Nil fields are not applied.
type CaseFilter struct {
	Status   *CaseStatus
	State    *CaseState
	Priority *Priority
	ClientID *uuid.UUID
	Breached *bool
	Pagination
}
