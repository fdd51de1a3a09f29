package model

import (
	"time"

	"github.com/google/uuid"
)

// ReferenceType tags the document kind a history row belongs to. Every
// case-bearing document shares one history table keyed by
// (reference_type, reference_id) instead of a table per kind.
type ReferenceType string

const (
	RefCase          ReferenceType = "case"
	RefEnquiry       ReferenceType = "enquiry"
	RefEstimation    ReferenceType = "estimation"
	RefQuotation     ReferenceType = "quotation"
	RefSalesOrder    ReferenceType = "sales_order"
	RefPurchaseOrder ReferenceType = "purchase_order"
	RefWorkOrder     ReferenceType = "work_order"
)

var referenceTypes = map[ReferenceType]struct{}{
	RefCase:          {},
	RefEnquiry:       {},
	RefEstimation:    {},
	RefQuotation:     {},
	RefSalesOrder:    {},
	RefPurchaseOrder: {},
	RefWorkOrder:     {},
}

func IsValidReferenceType(t ReferenceType) bool {
	_, ok := referenceTypes[t]
	return ok
}

// CaseStateTransition is an append-only history entry. For a state change
// FromState/ToState carry the edge; free-form status notes leave them empty
// and carry StatusLabel instead.
type CaseStateTransition struct {
	ID            uuid.UUID     `json:"id" db:"id"`
	CaseID        uuid.UUID     `json:"case_id" db:"case_id"`
	ReferenceType ReferenceType `json:"reference_type" db:"reference_type"`
	ReferenceID   uuid.UUID     `json:"reference_id" db:"reference_id"`
	FromState     CaseState     `json:"from_state,omitempty" db:"from_state"`
	ToState       CaseState     `json:"to_state,omitempty" db:"to_state"`
	StatusLabel   string        `json:"status_label,omitempty" db:"status_label"`
	Note          string        `json:"note,omitempty" db:"note"`
	ActorID       uuid.UUID     `json:"actor_id" db:"actor_id"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
}
