package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/model"
)

// CaseRepository owns case rows. It is the single writer of
// current_state, is_sla_breached and expected_state_completion.
type CaseRepository interface {
	Create(ctx context.Context, c *model.Case, tr *model.CaseStateTransition) error
	Get(ctx context.Context, id uuid.UUID) (*model.Case, error)
	List(ctx context.Context, filter model.CaseFilter) ([]*model.Case, error)
	// ListDue returns active cases whose deadline falls before horizon,
	// oldest deadline first. The monitor sweeps these.
	ListDue(ctx context.Context, horizon time.Time) ([]*model.Case, error)
	// ListBreached returns active cases with the breach flag set.
	ListBreached(ctx context.Context) ([]*model.Case, error)
	// ApplyTransition updates the case row and appends the history entry
	// in a single atomic unit.
	ApplyTransition(ctx context.Context, c *model.Case, tr *model.CaseStateTransition) error
	// MarkBreached flips is_sla_breached for the case. Returns the number
	// of rows changed so callers can detect a concurrent flip.
	MarkBreached(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	CountByState(ctx context.Context) (map[model.CaseState]int, error)
	CountBreached(ctx context.Context) (int, error)
}

// TransitionRepository reads and appends history rows. Rows are
// append-only; there is no update or delete.
type TransitionRepository interface {
	Append(ctx context.Context, tr *model.CaseStateTransition) error
	ListByCase(ctx context.Context, caseID uuid.UUID) ([]*model.CaseStateTransition, error)
	ListByReference(ctx context.Context, refType model.ReferenceType, refID uuid.UUID) ([]*model.CaseStateTransition, error)
}

// EscalationRepository reads rules and appends escalation rows.
type EscalationRepository interface {
	ListActiveRules(ctx context.Context) ([]*model.EscalationRule, error)
	GetRule(ctx context.Context, id uuid.UUID) (*model.EscalationRule, error)
	// LatestForCaseRule returns the most recent escalation for the
	// (case, rule) pair, or nil when none exists.
	LatestForCaseRule(ctx context.Context, caseID, ruleID uuid.UUID) (*model.CaseEscalation, error)
	CountForCaseRule(ctx context.Context, caseID, ruleID uuid.UUID) (int, error)
	Create(ctx context.Context, esc *model.CaseEscalation) error
	CountOpen(ctx context.Context) (int, error)
}

// NotificationQueueRepository is the durable outbox backing the dispatch
// queue.
type NotificationQueueRepository interface {
	Create(ctx context.Context, n *model.QueuedNotification) error
	// ExistsSince reports whether a pending or sent row with the same
	// dedup key was created at or after since.
	ExistsSince(ctx context.Context, key model.DedupKey, since time.Time) (bool, error)
	ListPending(ctx context.Context, limit int) ([]*model.QueuedNotification, error)
	MarkSent(ctx context.Context, id uuid.UUID, at time.Time) error
	// RecordAttempt increments the retry counter and keeps the row
	// pending for the next drain pass.
	RecordAttempt(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error
	// MarkFailed moves the row to its terminal failed state.
	MarkFailed(ctx context.Context, id uuid.UUID, errMsg string, at time.Time) error
	// DeleteTerminalBefore purges sent/failed rows older than before.
	// Pending rows are never deleted.
	DeleteTerminalBefore(ctx context.Context, before time.Time) (int64, error)
}

// TemplateRepository looks up notification templates by code.
type TemplateRepository interface {
	GetByCode(ctx context.Context, code string) (*model.NotificationTemplate, error)
}

// SequenceRepository issues document sequence numbers. Next must be
// atomic per (document_type, fiscal_year) key: concurrent callers never
// observe the same value.
type SequenceRepository interface {
	Next(ctx context.Context, docType model.DocumentType, fiscalYear string) (int64, error)
}

// MetricsRepository stores daily rollup snapshots.
type MetricsRepository interface {
	UpsertDaily(ctx context.Context, m *model.DailyCaseMetrics) error
}
