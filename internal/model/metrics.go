package model

import (
	"time"

	"github.com/google/uuid"
)

// DailyCaseMetrics is one row of the daily rollup: per-state case counts
// and breach totals for operational diagnosis.
type DailyCaseMetrics struct {
	ID             uuid.UUID         `json:"id" db:"id"`
	Day            time.Time         `json:"day" db:"day"`
	CasesByState   map[CaseState]int `json:"cases_by_state"`
	ActiveCases    int               `json:"active_cases" db:"active_cases"`
	BreachedCases  int               `json:"breached_cases" db:"breached_cases"`
	OpenEscalation int               `json:"open_escalations" db:"open_escalations"`
	CreatedAt      time.Time         `json:"created_at" db:"created_at"`
}
