// Package report computes the daily operational rollup: per-state case
// counts, breach totals and open escalations.
package report

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	"github.com/vespl/caseflow-api/pkg/logger"
	"github.com/vespl/caseflow-api/pkg/metrics"
)

type Service struct {
	cases       repository.CaseRepository
	escalations repository.EscalationRepository
	daily       repository.MetricsRepository
	clock       clock.Clock
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewService(
	cases repository.CaseRepository,
	escalations repository.EscalationRepository,
	daily repository.MetricsRepository,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		cases:       cases,
		escalations: escalations,
		daily:       daily,
		clock:       clk,
		logger:      log,
		metrics:     m,
	}
}

// Rollup snapshots current counts into the daily metrics row and the
// prometheus gauges. Running it twice in a day overwrites the same row.
func (s *Service) Rollup(ctx context.Context) error {
	byState, err := s.cases.CountByState(ctx)
	if err != nil {
		return fmt.Errorf("failed to count cases by state: %w", err)
	}
	breached, err := s.cases.CountBreached(ctx)
	if err != nil {
		return fmt.Errorf("failed to count breached cases: %w", err)
	}
	open, err := s.escalations.CountOpen(ctx)
	if err != nil {
		return fmt.Errorf("failed to count open escalations: %w", err)
	}

	active := 0
	for _, n := range byState {
		active += n
	}

	now := s.clock.Now()
	row := &model.DailyCaseMetrics{
		ID:             uuid.New(),
		Day:            now.Truncate(24 * time.Hour),
		CasesByState:   byState,
		ActiveCases:    active,
		BreachedCases:  breached,
		OpenEscalation: open,
		CreatedAt:      now,
	}
	if err := s.daily.UpsertDaily(ctx, row); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.ActiveCasesByState.Reset()
		for state, n := range byState {
			s.metrics.ActiveCasesByState.WithLabelValues(string(state)).Set(float64(n))
		}
		s.metrics.BreachedCases.Set(float64(breached))
	}

	s.logger.Info("daily rollup computed",
		"active", active,
		"breached", breached,
		"open_escalations", open)
	return nil
}
