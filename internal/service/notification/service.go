// Package notification implements the durable, deduplicated dispatch
// queue: producers enqueue through Service, a Dispatcher drains pending
// rows through a delivery channel.
package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
	"github.com/vespl/caseflow-api/pkg/logger"
	"github.com/vespl/caseflow-api/pkg/metrics"
)

// EnqueueRequest describes one unit of outbound work.
type EnqueueRequest struct {
	CaseID       *uuid.UUID
	TemplateCode string
	Recipient    model.Recipient
	TriggerEvent string
	Context      model.JSONMap
	// DedupWindow suppresses the enqueue when an equivalent pending or
	// sent row was created within the window. Zero disables the check.
	DedupWindow time.Duration
}

type Service struct {
	queue     repository.NotificationQueueRepository
	templates repository.TemplateRepository
	clock     clock.Clock
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewService(
	queue repository.NotificationQueueRepository,
	templates repository.TemplateRepository,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
) *Service {
	return &Service{
		queue:     queue,
		templates: templates,
		clock:     clk,
		logger:    log,
		metrics:   m,
	}
}

// Enqueue validates the request, performs the dedup check and inserts a
// pending row. It returns false when an equivalent notification already
// exists within the dedup window; that is a no-op, not an error.
func (s *Service) Enqueue(ctx context.Context, req EnqueueRequest) (bool, error) {
	if !req.Recipient.Valid() {
		return false, apperrors.NewValidation("recipient must name exactly one of user, role or location", nil)
	}
	if req.TemplateCode == "" {
		return false, apperrors.NewValidation("template code is required", nil)
	}
	if req.TriggerEvent == "" {
		return false, apperrors.NewValidation("trigger event is required", nil)
	}
	if _, err := s.templates.GetByCode(ctx, req.TemplateCode); err != nil {
		return false, err
	}

	now := s.clock.Now()
	n := &model.QueuedNotification{
		ID:           uuid.New(),
		CaseID:       req.CaseID,
		TemplateCode: req.TemplateCode,
		Recipient:    req.Recipient,
		TriggerEvent: req.TriggerEvent,
		Context:      req.Context,
		Status:       model.NotificationStatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if req.DedupWindow > 0 {
		exists, err := s.queue.ExistsSince(ctx, n.DedupKey(), now.Add(-req.DedupWindow))
		if err != nil {
			return false, fmt.Errorf("dedup check failed: %w", err)
		}
		if exists {
			if s.metrics != nil {
				s.metrics.NotificationsSuppressed.Inc()
			}
			s.logger.Debug("suppressed duplicate notification",
				"template", req.TemplateCode,
				"recipient", req.Recipient.Key(),
				"trigger", req.TriggerEvent)
			return false, nil
		}
	}

	if err := s.queue.Create(ctx, n); err != nil {
		return false, fmt.Errorf("failed to enqueue notification: %w", err)
	}

	if s.metrics != nil {
		s.metrics.NotificationsEnqueued.WithLabelValues(req.TriggerEvent).Inc()
	}
	return true, nil
}

// Purge removes sent and failed rows older than the retention window.
// Pending rows are never purged.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.clock.Now().Add(-retention)
	deleted, err := s.queue.DeleteTerminalBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge notifications: %w", err)
	}
	if deleted > 0 {
		s.logger.Info("purged terminal notifications", "deleted", deleted, "cutoff", cutoff)
	}
	return deleted, nil
}
