package sla

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	"github.com/vespl/caseflow-api/internal/service/notification"
	"github.com/vespl/caseflow-api/pkg/logger"
	"github.com/vespl/caseflow-api/pkg/messaging"
	"github.com/vespl/caseflow-api/pkg/metrics"
)

const escalationTrigger = "sla_monitor"

// Engine evaluates escalation rules against breached cases. It must run
// after the monitor's sweep so the breach flags it reads are current.
type Engine struct {
	cases       repository.CaseRepository
	escalations repository.EscalationRepository
	rules       *RuleCache
	notifier    *notification.Service
	broker      messaging.Broker
	clock       clock.Clock
	logger      *logger.Logger
	metrics     *metrics.Metrics
}

func NewEngine(
	cases repository.CaseRepository,
	escalations repository.EscalationRepository,
	rules *RuleCache,
	notifier *notification.Service,
	broker messaging.Broker,
	clk clock.Clock,
	log *logger.Logger,
	m *metrics.Metrics,
) *Engine {
	if broker == nil {
		broker = messaging.Noop{}
	}
	return &Engine{
		cases:       cases,
		escalations: escalations,
		rules:       rules,
		notifier:    notifier,
		broker:      broker,
		clock:       clk,
		logger:      log,
		metrics:     m,
	}
}

// Evaluate finds every (case, rule) pair where the rule matches, the
// overdue threshold is met and no escalation exists within the rule's
// cooldown. All matching rules fire independently; escalation is a
// fan-out, not a single-winner selection.
func (e *Engine) Evaluate(ctx context.Context) error {
	rules, err := e.rules.ActiveRules(ctx)
	if err != nil {
		return fmt.Errorf("failed to load escalation rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	breached, err := e.cases.ListBreached(ctx)
	if err != nil {
		return fmt.Errorf("failed to list breached cases: %w", err)
	}

	now := e.clock.Now()
	for _, c := range breached {
		if err := ctx.Err(); err != nil {
			return err
		}
		overdue := hoursOverdue(now, c.ExpectedStateCompletion)
		for _, rule := range rules {
			if !rule.Matches(c) || overdue < rule.HoursOverdue {
				continue
			}
			if err := e.fire(ctx, c, rule, overdue); err != nil {
				e.logger.Error(err, "escalation failed",
					"case_number", c.CaseNumber,
					"rule", rule.Name)
			}
		}
	}
	return nil
}

func (e *Engine) fire(ctx context.Context, c *model.Case, rule *model.EscalationRule, overdue int) error {
	latest, err := e.escalations.LatestForCaseRule(ctx, c.ID, rule.ID)
	if err != nil {
		return err
	}
	now := e.clock.Now()
	if latest != nil && now.Sub(latest.CreatedAt) < rule.Cooldown() {
		return nil // still inside the cooldown window
	}

	prior, err := e.escalations.CountForCaseRule(ctx, c.ID, rule.ID)
	if err != nil {
		return err
	}

	esc := &model.CaseEscalation{
		ID:          uuid.New(),
		CaseID:      c.ID,
		RuleID:      rule.ID,
		Level:       prior + 1,
		TriggeredBy: escalationTrigger,
		TargetRole:  rule.EscalateToRole,
		Reason:      fmt.Sprintf("case %s overdue %dh in %s (rule %q)", c.CaseNumber, overdue, c.CurrentState, rule.Name),
		CreatedAt:   now,
	}
	if err := e.escalations.Create(ctx, esc); err != nil {
		return fmt.Errorf("failed to create escalation: %w", err)
	}

	if e.metrics != nil {
		e.metrics.EscalationsCreated.WithLabelValues(rule.EscalateToRole).Inc()
	}
	e.logger.Warn("case escalated",
		"case_number", c.CaseNumber,
		"rule", rule.Name,
		"level", esc.Level,
		"target_role", rule.EscalateToRole)

	if _, err := e.notifier.Enqueue(ctx, notification.EnqueueRequest{
		CaseID:       &c.ID,
		TemplateCode: model.TemplateEscalationNotice,
		Recipient:    model.RoleRecipient(rule.EscalateToRole),
		TriggerEvent: model.TriggerEscalation,
		Context: model.JSONMap{
			"case_number":   c.CaseNumber,
			"reason":        esc.Reason,
			"hours_overdue": overdue,
			"assignee_id":   c.AssigneeID,
			"level":         esc.Level,
		},
	}); err != nil {
		return err
	}

	if err := e.broker.Publish(ctx, messaging.ChannelCaseEscalated, map[string]interface{}{
		"case_id":     c.ID,
		"case_number": c.CaseNumber,
		"rule_id":     rule.ID,
		"level":       esc.Level,
		"target_role": rule.EscalateToRole,
	}); err != nil {
		e.logger.Error(err, "failed to publish escalation event", "case_id", c.ID.String())
	}
	return nil
}
