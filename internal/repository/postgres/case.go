package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
)

type caseRepository struct {
	BaseRepository
}

func NewCaseRepository(base BaseRepository) repository.CaseRepository {
	return &caseRepository{base}
}

const caseColumns = `id, case_number, current_state, status, priority,
	expected_state_completion, is_sla_breached, client_id, assignee_id,
	title, created_at, updated_at`

func (r *caseRepository) Create(ctx context.Context, c *model.Case, tr *model.CaseStateTransition) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO cases (
				id, case_number, current_state, status, priority,
				expected_state_completion, is_sla_breached, client_id,
				assignee_id, title, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`
		_, err := tx.ExecContext(ctx, query,
			c.ID, c.CaseNumber, c.CurrentState, c.Status, c.Priority,
			c.ExpectedStateCompletion, c.SLABreached, c.ClientID,
			c.AssigneeID, c.Title, c.CreatedAt, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create case: %w", err)
		}
		return appendTransitionTx(ctx, tx, tr)
	})
}

func (r *caseRepository) Get(ctx context.Context, id uuid.UUID) (*model.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE id = $1`

	var c model.Case
	if err := r.db.GetContext(ctx, &c, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperrors.NewNotFound("case", err)
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}
	return &c, nil
}

// List selects one of a fixed set of parameterized query variants based on
// which filters are set; filters are never interpolated into the SQL text.
func (r *caseRepository) List(ctx context.Context, filter model.CaseFilter) ([]*model.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE 1=1`
	args := []interface{}{}

	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.State != nil {
		args = append(args, *filter.State)
		query += fmt.Sprintf(" AND current_state = $%d", len(args))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		query += fmt.Sprintf(" AND priority = $%d", len(args))
	}
	if filter.ClientID != nil {
		args = append(args, *filter.ClientID)
		query += fmt.Sprintf(" AND client_id = $%d", len(args))
	}
	if filter.Breached != nil {
		args = append(args, *filter.Breached)
		query += fmt.Sprintf(" AND is_sla_breached = $%d", len(args))
	}

	query += " ORDER BY created_at DESC"

	if filter.PageSize > 0 {
		args = append(args, filter.PageSize)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
		if filter.Page > 1 {
			args = append(args, (filter.Page-1)*filter.PageSize)
			query += fmt.Sprintf(" OFFSET $%d", len(args))
		}
	}

	var cases []*model.Case
	if err := r.db.SelectContext(ctx, &cases, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list cases: %w", err)
	}
	return cases, nil
}

func (r *caseRepository) ListDue(ctx context.Context, horizon time.Time) ([]*model.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE status = $1
		AND expected_state_completion <= $2
		ORDER BY expected_state_completion ASC
	`
	var cases []*model.Case
	if err := r.db.SelectContext(ctx, &cases, query, model.CaseStatusActive, horizon); err != nil {
		return nil, fmt.Errorf("failed to list due cases: %w", err)
	}
	return cases, nil
}

func (r *caseRepository) ListBreached(ctx context.Context) ([]*model.Case, error) {
	query := `
		SELECT ` + caseColumns + `
		FROM cases
		WHERE status = $1 AND is_sla_breached = TRUE
		ORDER BY expected_state_completion ASC
	`
	var cases []*model.Case
	if err := r.db.SelectContext(ctx, &cases, query, model.CaseStatusActive); err != nil {
		return nil, fmt.Errorf("failed to list breached cases: %w", err)
	}
	return cases, nil
}

func (r *caseRepository) ApplyTransition(ctx context.Context, c *model.Case, tr *model.CaseStateTransition) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE cases
			SET current_state = $1,
				status = $2,
				expected_state_completion = $3,
				is_sla_breached = $4,
				updated_at = $5
			WHERE id = $6
		`
		res, err := tx.ExecContext(ctx, query,
			c.CurrentState, c.Status, c.ExpectedStateCompletion,
			c.SLABreached, c.UpdatedAt, c.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update case state: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return apperrors.NewNotFound("case", nil)
		}
		return appendTransitionTx(ctx, tx, tr)
	})
}

func (r *caseRepository) MarkBreached(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	// The is_sla_breached = FALSE guard makes the flip edge-triggered even
	// under concurrent sweeps.
	query := `
		UPDATE cases
		SET is_sla_breached = TRUE, updated_at = $1
		WHERE id = $2 AND is_sla_breached = FALSE
	`
	res, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark case breached: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows > 0, nil
}

func (r *caseRepository) CountByState(ctx context.Context) (map[model.CaseState]int, error) {
	query := `
		SELECT current_state, COUNT(*) AS n
		FROM cases
		WHERE status = $1
		GROUP BY current_state
	`
	rows, err := r.db.QueryxContext(ctx, query, model.CaseStatusActive)
	if err != nil {
		return nil, fmt.Errorf("failed to count cases by state: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.CaseState]int)
	for rows.Next() {
		var state model.CaseState
		var n int
		if err := rows.Scan(&state, &n); err != nil {
			return nil, err
		}
		counts[state] = n
	}
	return counts, rows.Err()
}

func (r *caseRepository) CountBreached(ctx context.Context) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM cases WHERE status = $1 AND is_sla_breached = TRUE`
	if err := r.db.GetContext(ctx, &n, query, model.CaseStatusActive); err != nil {
		return 0, fmt.Errorf("failed to count breached cases: %w", err)
	}
	return n, nil
}
