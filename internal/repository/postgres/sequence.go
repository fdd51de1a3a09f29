package postgres

import (
	"context"
	"fmt"

	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
)

type sequenceRepository struct {
	BaseRepository
}

func NewSequenceRepository(base BaseRepository) repository.SequenceRepository {
	return &sequenceRepository{base}
}

// Next issues the next sequence value for the (document_type, fiscal_year)
// key. The upsert makes read-increment-write a single statement, so two
// concurrent callers can never observe the same value: the row lock taken
// by the first UPDATE serializes the second.
func (r *sequenceRepository) Next(ctx context.Context, docType model.DocumentType, fiscalYear string) (int64, error) {
	query := `
		INSERT INTO document_sequence_counters (document_type, fiscal_year, last_sequence, updated_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (document_type, fiscal_year)
		DO UPDATE SET
			last_sequence = document_sequence_counters.last_sequence + 1,
			updated_at = NOW()
		RETURNING last_sequence
	`
	var seq int64
	if err := r.db.GetContext(ctx, &seq, query, docType, fiscalYear); err != nil {
		return 0, fmt.Errorf("failed to issue sequence for %s/%s: %w", docType, fiscalYear, err)
	}
	return seq, nil
}
