package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
)

type transitionRepository struct {
	BaseRepository
}

func NewTransitionRepository(base BaseRepository) repository.TransitionRepository {
	return &transitionRepository{base}
}

const transitionColumns = `id, case_id, reference_type, reference_id,
	from_state, to_state, status_label, note, actor_id, created_at`

const insertTransition = `
	INSERT INTO case_state_transitions (
		id, case_id, reference_type, reference_id, from_state, to_state,
		status_label, note, actor_id, created_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
`

func appendTransitionTx(ctx context.Context, tx *sqlx.Tx, tr *model.CaseStateTransition) error {
	_, err := tx.ExecContext(ctx, insertTransition,
		tr.ID, tr.CaseID, tr.ReferenceType, tr.ReferenceID,
		tr.FromState, tr.ToState, tr.StatusLabel, tr.Note,
		tr.ActorID, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

func (r *transitionRepository) Append(ctx context.Context, tr *model.CaseStateTransition) error {
	_, err := r.db.ExecContext(ctx, insertTransition,
		tr.ID, tr.CaseID, tr.ReferenceType, tr.ReferenceID,
		tr.FromState, tr.ToState, tr.StatusLabel, tr.Note,
		tr.ActorID, tr.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to append transition: %w", err)
	}
	return nil
}

func (r *transitionRepository) ListByCase(ctx context.Context, caseID uuid.UUID) ([]*model.CaseStateTransition, error) {
	query := `
		SELECT ` + transitionColumns + `
		FROM case_state_transitions
		WHERE case_id = $1
		ORDER BY created_at ASC, id ASC
	`
	var trs []*model.CaseStateTransition
	if err := r.db.SelectContext(ctx, &trs, query, caseID); err != nil {
		return nil, fmt.Errorf("failed to list transitions: %w", err)
	}
	return trs, nil
}

func (r *transitionRepository) ListByReference(ctx context.Context, refType model.ReferenceType, refID uuid.UUID) ([]*model.CaseStateTransition, error) {
	query := `
		SELECT ` + transitionColumns + `
		FROM case_state_transitions
		WHERE reference_type = $1 AND reference_id = $2
		ORDER BY created_at ASC, id ASC
	`
	var trs []*model.CaseStateTransition
	if err := r.db.SelectContext(ctx, &trs, query, refType, refID); err != nil {
		return nil, fmt.Errorf("failed to list transitions by reference: %w", err)
	}
	return trs, nil
}
