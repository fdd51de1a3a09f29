package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
)

type escalationRepository struct {
	BaseRepository
}

func NewEscalationRepository(base BaseRepository) repository.EscalationRepository {
	return &escalationRepository{base}
}

const ruleColumns = `id, name, state_filter, priority_filter, hours_overdue,
	escalate_to_role, escalate_after_hours, is_active, created_at, updated_at`

func (r *escalationRepository) ListActiveRules(ctx context.Context) ([]*model.EscalationRule, error) {
	query := `
		SELECT ` + ruleColumns + `
		FROM escalation_rules
		WHERE is_active = TRUE
		ORDER BY hours_overdue ASC
	`
	var rules []*model.EscalationRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("failed to list escalation rules: %w", err)
	}
	return rules, nil
}

func (r *escalationRepository) GetRule(ctx context.Context, id uuid.UUID) (*model.EscalationRule, error) {
	query := `SELECT ` + ruleColumns + ` FROM escalation_rules WHERE id = $1`

	var rule model.EscalationRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("escalation rule", err)
		}
		return nil, fmt.Errorf("failed to get escalation rule: %w", err)
	}
	return &rule, nil
}

const escalationColumns = `id, case_id, rule_id, level, triggered_by,
	target_role, reason, created_at, resolved_at`

func (r *escalationRepository) LatestForCaseRule(ctx context.Context, caseID, ruleID uuid.UUID) (*model.CaseEscalation, error) {
	query := `
		SELECT ` + escalationColumns + `
		FROM case_escalations
		WHERE case_id = $1 AND rule_id = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var esc model.CaseEscalation
	if err := r.db.GetContext(ctx, &esc, query, caseID, ruleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest escalation: %w", err)
	}
	return &esc, nil
}

func (r *escalationRepository) CountForCaseRule(ctx context.Context, caseID, ruleID uuid.UUID) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM case_escalations WHERE case_id = $1 AND rule_id = $2`
	if err := r.db.GetContext(ctx, &n, query, caseID, ruleID); err != nil {
		return 0, fmt.Errorf("failed to count escalations: %w", err)
	}
	return n, nil
}

func (r *escalationRepository) Create(ctx context.Context, esc *model.CaseEscalation) error {
	query := `
		INSERT INTO case_escalations (
			id, case_id, rule_id, level, triggered_by, target_role,
			reason, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := r.db.ExecContext(ctx, query,
		esc.ID, esc.CaseID, esc.RuleID, esc.Level, esc.TriggeredBy,
		esc.TargetRole, esc.Reason, esc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}
	return nil
}

func (r *escalationRepository) CountOpen(ctx context.Context) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM case_escalations WHERE resolved_at IS NULL`
	if err := r.db.GetContext(ctx, &n, query); err != nil {
		return 0, fmt.Errorf("failed to count open escalations: %w", err)
	}
	return n, nil
}
