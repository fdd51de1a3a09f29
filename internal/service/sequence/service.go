// Package sequence issues globally unique, human-readable document
// numbers partitioned by document type and fiscal year.
package sequence

import (
	"context"
	"fmt"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
	"github.com/vespl/caseflow-api/pkg/metrics"
)

type Service struct {
	repo    repository.SequenceRepository
	clock   clock.Clock
	prefix  string
	metrics *metrics.Metrics
}

func NewService(repo repository.SequenceRepository, clk clock.Clock, prefix string, m *metrics.Metrics) *Service {
	return &Service{
		repo:    repo,
		clock:   clk,
		prefix:  prefix,
		metrics: m,
	}
}

// NextDocumentNumber issues the next number for docType in the current
// fiscal year, formatted PREFIX/TYPE/YEAR/NNN. Padding is 3 digits and
// widens naturally once the counter passes 999.
func (s *Service) NextDocumentNumber(ctx context.Context, docType model.DocumentType) (string, error) {
	typeCode, ok := docType.TypeCode()
	if !ok {
		return "", apperrors.NewValidation(fmt.Sprintf("unknown document type %q", docType), nil)
	}

	fiscalYear := model.FiscalYearCode(s.clock.Now())
	seq, err := s.repo.Next(ctx, docType, fiscalYear)
	if err != nil {
		return "", fmt.Errorf("failed to issue document number: %w", err)
	}

	if s.metrics != nil {
		s.metrics.SequencesIssued.WithLabelValues(string(docType)).Inc()
	}

	return fmt.Sprintf("%s/%s/%s/%03d", s.prefix, typeCode, fiscalYear, seq), nil
}
