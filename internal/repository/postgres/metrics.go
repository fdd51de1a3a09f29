package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
)

type metricsRepository struct {
	BaseRepository
}

func NewMetricsRepository(base BaseRepository) repository.MetricsRepository {
	return &metricsRepository{base}
}

func (r *metricsRepository) UpsertDaily(ctx context.Context, m *model.DailyCaseMetrics) error {
	byState, err := json.Marshal(m.CasesByState)
	if err != nil {
		return fmt.Errorf("failed to encode state counts: %w", err)
	}

	query := `
		INSERT INTO case_metrics_daily (
			id, day, cases_by_state, active_cases, breached_cases,
			open_escalations, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (day)
		DO UPDATE SET
			cases_by_state = EXCLUDED.cases_by_state,
			active_cases = EXCLUDED.active_cases,
			breached_cases = EXCLUDED.breached_cases,
			open_escalations = EXCLUDED.open_escalations
	`
	_, err = r.db.ExecContext(ctx, query,
		m.ID, m.Day, byState, m.ActiveCases, m.BreachedCases,
		m.OpenEscalation, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily metrics: %w", err)
	}
	return nil
}
