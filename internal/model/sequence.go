package model

import (
	"fmt"
	"time"
)

// DocumentType identifies a sequenced document kind.
type DocumentType string

const (
	DocEnquiry       DocumentType = "ENQUIRY"
	DocEstimation    DocumentType = "ESTIMATION"
	DocQuotation     DocumentType = "QUOTATION"
	DocSalesOrder    DocumentType = "SALES_ORDER"
	DocPurchaseOrder DocumentType = "PURCHASE_ORDER"
	DocWorkOrder     DocumentType = "WORK_ORDER"
	DocInvoice       DocumentType = "INVOICE"
)

// documentTypeCodes maps a document type to the short code embedded in
// formatted numbers.
var documentTypeCodes = map[DocumentType]string{
	DocEnquiry:       "EQ",
	DocEstimation:    "ES",
	DocQuotation:     "QT",
	DocSalesOrder:    "SO",
	DocPurchaseOrder: "PO",
	DocWorkOrder:     "WO",
	DocInvoice:       "IN",
}

// TypeCode returns the short code for t and whether t is known.
func (t DocumentType) TypeCode() (string, bool) {
	code, ok := documentTypeCodes[t]
	return code, ok
}

// FiscalYearCode encodes the April–March fiscal year containing t as the
// two-digit concatenation of the start and end years, e.g. "2526" for
// April 2025 – March 2026.
func FiscalYearCode(t time.Time) string {
	start := t.Year()
	if t.Month() < time.April {
		start--
	}
	return fmt.Sprintf("%02d%02d", start%100, (start+1)%100)
}

// DocumentSequenceCounter holds the last issued sequence for a
// (document_type, fiscal_year) key.
type DocumentSequenceCounter struct {
	DocumentType DocumentType `json:"document_type" db:"document_type"`
	FiscalYear   string       `json:"fiscal_year" db:"fiscal_year"`
	LastSequence int64        `json:"last_sequence" db:"last_sequence"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}
