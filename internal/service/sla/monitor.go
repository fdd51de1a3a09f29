// Package sla implements the periodic SLA sweep and the rule-driven
// escalation engine that runs after it.
package sla

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	"github.com/vespl/caseflow-api/internal/service/notification"
	"github.com/vespl/caseflow-api/pkg/logger"
	"github.com/vespl/caseflow-api/pkg/messaging"
	"github.com/vespl/caseflow-api/pkg/metrics"
)

// Roles receiving monitor fan-out.
const (
	RoleManager  = "manager"
	RoleDirector = "director"
)

// hoursUntil is the whole-hour distance to a future deadline, rounded up:
// a deadline exactly 4 hours away counts as 4, keeping it inside the
// warning window instead of flapping out of it.
func hoursUntil(now, deadline time.Time) int {
	d := deadline.Sub(now)
	if d <= 0 {
		return 0
	}
	return int((d + time.Hour - 1) / time.Hour)
}

// hoursOverdue is the whole-hour distance past a deadline, rounded down:
// a case exactly on a rule's threshold fires (>= comparison), so the
// boundary lands on the escalating side.
func hoursOverdue(now, deadline time.Time) int {
	d := now.Sub(deadline)
	if d < 0 {
		return 0
	}
	return int(d / time.Hour)
}

type MonitorConfig struct {
	WarningLookahead time.Duration
	WarningDedup     time.Duration
}

// Monitor classifies active cases against their deadlines on every tick
// and raises warning and breach notifications.
type Monitor struct {
	cases    repository.CaseRepository
	notifier *notification.Service
	broker   messaging.Broker
	clock    clock.Clock
	config   MonitorConfig
	logger   *logger.Logger
	metrics  *metrics.Metrics
}

func NewMonitor(
	cases repository.CaseRepository,
	notifier *notification.Service,
	broker messaging.Broker,
	clk clock.Clock,
	config MonitorConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *Monitor {
	if config.WarningLookahead <= 0 {
		config.WarningLookahead = 4 * time.Hour
	}
	if config.WarningDedup <= 0 {
		config.WarningDedup = 2 * time.Hour
	}
	if broker == nil {
		broker = messaging.Noop{}
	}
	return &Monitor{
		cases:    cases,
		notifier: notifier,
		broker:   broker,
		clock:    clk,
		config:   config,
		logger:   log,
		metrics:  m,
	}
}

// Sweep partitions active cases into warning, breach and steady state.
// Per-case failures are logged and do not abort the rest of the sweep.
func (m *Monitor) Sweep(ctx context.Context) error {
	if m.metrics != nil {
		timer := prometheus.NewTimer(m.metrics.SweepDuration)
		defer timer.ObserveDuration()
	}

	now := m.clock.Now()
	due, err := m.cases.ListDue(ctx, now.Add(m.config.WarningLookahead))
	if err != nil {
		return fmt.Errorf("failed to list due cases: %w", err)
	}

	for _, c := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		if c.ExpectedStateCompletion.After(now) {
			if err := m.warn(ctx, c, now); err != nil {
				m.logger.Error(err, "warning handling failed", "case_number", c.CaseNumber)
			}
			continue
		}
		if c.SLABreached {
			continue // already flagged; breach fires once per state
		}
		if err := m.breach(ctx, c, now); err != nil {
			m.logger.Error(err, "breach handling failed", "case_number", c.CaseNumber)
		}
	}
	return nil
}

func (m *Monitor) warn(ctx context.Context, c *model.Case, now time.Time) error {
	payload := model.JSONMap{
		"case_number": c.CaseNumber,
		"state":       string(c.CurrentState),
		"hours_until": hoursUntil(now, c.ExpectedStateCompletion),
		"deadline":    c.ExpectedStateCompletion,
	}

	enqueued, err := m.notifier.Enqueue(ctx, notification.EnqueueRequest{
		CaseID:       &c.ID,
		TemplateCode: model.TemplateSLAWarning,
		Recipient:    model.UserRecipient(c.AssigneeID),
		TriggerEvent: model.TriggerSLAWarning,
		Context:      payload,
		DedupWindow:  m.config.WarningDedup,
	})
	if err != nil {
		return err
	}
	if !enqueued {
		return nil // warned within the dedup window
	}

	if m.metrics != nil {
		m.metrics.CasesWarned.Inc()
	}

	if c.Priority == model.PriorityHigh {
		if _, err := m.notifier.Enqueue(ctx, notification.EnqueueRequest{
			CaseID:       &c.ID,
			TemplateCode: model.TemplateSLAWarning,
			Recipient:    model.RoleRecipient(RoleManager),
			TriggerEvent: model.TriggerSLAWarning,
			Context:      payload,
			DedupWindow:  m.config.WarningDedup,
		}); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) breach(ctx context.Context, c *model.Case, now time.Time) error {
	flipped, err := m.cases.MarkBreached(ctx, c.ID, now)
	if err != nil {
		return err
	}
	if !flipped {
		return nil // a concurrent sweep won the flip
	}

	if m.metrics != nil {
		m.metrics.CasesBreached.Inc()
	}
	m.logger.Warn("SLA breached",
		"case_number", c.CaseNumber,
		"state", string(c.CurrentState),
		"deadline", c.ExpectedStateCompletion)

	payload := model.JSONMap{
		"case_number":   c.CaseNumber,
		"state":         string(c.CurrentState),
		"hours_overdue": hoursOverdue(now, c.ExpectedStateCompletion),
		"deadline":      c.ExpectedStateCompletion,
	}

	recipients := []model.Recipient{
		model.UserRecipient(c.AssigneeID),
		model.RoleRecipient(RoleManager),
	}
	if c.Priority == model.PriorityHigh {
		recipients = append(recipients, model.RoleRecipient(RoleDirector))
	}

	for _, r := range recipients {
		if _, err := m.notifier.Enqueue(ctx, notification.EnqueueRequest{
			CaseID:       &c.ID,
			TemplateCode: model.TemplateSLABreach,
			Recipient:    r,
			TriggerEvent: model.TriggerSLABreach,
			Context:      payload,
		}); err != nil {
			return err
		}
	}

	if err := m.broker.Publish(ctx, messaging.ChannelCaseBreached, map[string]interface{}{
		"case_id":     c.ID,
		"case_number": c.CaseNumber,
		"state":       c.CurrentState,
		"deadline":    c.ExpectedStateCompletion,
	}); err != nil {
		m.logger.Error(err, "failed to publish breach event", "case_id", c.ID.String())
	}
	return nil
}
