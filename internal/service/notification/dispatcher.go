package notification

import (
	"bytes"
	"context"
	"fmt"
	"text/template"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository"
	"github.com/vespl/caseflow-api/pkg/logger"
	"github.com/vespl/caseflow-api/pkg/metrics"
)

// Channel delivers a rendered notification to a recipient. Implementations
// are treated as unreliable and possibly slow; the dispatcher bounds every
// call with a timeout.
type Channel interface {
	Send(ctx context.Context, recipient model.Recipient, subject, body string) error
}

type DispatcherConfig struct {
	BatchSize   int
	MaxAttempts int
	SendTimeout time.Duration
	// RatePerSecond bounds outbound sends; zero disables the limiter.
	RatePerSecond int
}

// Dispatcher drains pending queue rows through the delivery channel.
type Dispatcher struct {
	queue     repository.NotificationQueueRepository
	templates repository.TemplateRepository
	channel   Channel
	clock     clock.Clock
	config    DispatcherConfig
	limiter   *rate.Limiter
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewDispatcher(
	queue repository.NotificationQueueRepository,
	templates repository.TemplateRepository,
	channel Channel,
	clk clock.Clock,
	config DispatcherConfig,
	log *logger.Logger,
	m *metrics.Metrics,
) *Dispatcher {
	if config.BatchSize <= 0 {
		config.BatchSize = 100
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}

	var limiter *rate.Limiter
	if config.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RatePerSecond), config.RatePerSecond)
	}

	return &Dispatcher{
		queue:     queue,
		templates: templates,
		channel:   channel,
		clock:     clk,
		config:    config,
		limiter:   limiter,
		logger:    log,
		metrics:   m,
	}
}

// Drain processes all pending rows once. Delivery errors are recorded
// per row and never abort the rest of the batch.
func (d *Dispatcher) Drain(ctx context.Context) error {
	if d.metrics != nil {
		timer := prometheus.NewTimer(d.metrics.DrainDuration)
		defer timer.ObserveDuration()
	}

	pending, err := d.queue.ListPending(ctx, d.config.BatchSize)
	if err != nil {
		return fmt.Errorf("failed to list pending notifications: %w", err)
	}

	for _, n := range pending {
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.limiter != nil {
			if err := d.limiter.Wait(ctx); err != nil {
				return err
			}
		}
		d.deliver(ctx, n)
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, n *model.QueuedNotification) {
	subject, body, err := d.render(ctx, n)
	if err != nil {
		// A bad template is not transient; mark the row failed outright.
		d.fail(ctx, n, err)
		return
	}

	sendCtx, cancel := context.WithTimeout(ctx, d.config.SendTimeout)
	err = d.channel.Send(sendCtx, n.Recipient, subject, body)
	cancel()

	now := d.clock.Now()
	if err == nil {
		if markErr := d.queue.MarkSent(ctx, n.ID, now); markErr != nil {
			d.logger.Error(markErr, "failed to mark notification sent", "id", n.ID.String())
		}
		if d.metrics != nil {
			d.metrics.NotificationsSent.Inc()
		}
		return
	}

	d.logger.Warn("delivery attempt failed",
		"id", n.ID.String(),
		"attempt", n.RetryCount+1,
		"error", err.Error())

	if n.RetryCount+1 >= d.config.MaxAttempts {
		d.fail(ctx, n, err)
		return
	}
	if recErr := d.queue.RecordAttempt(ctx, n.ID, err.Error(), now); recErr != nil {
		d.logger.Error(recErr, "failed to record delivery attempt", "id", n.ID.String())
	}
}

func (d *Dispatcher) fail(ctx context.Context, n *model.QueuedNotification, cause error) {
	if err := d.queue.MarkFailed(ctx, n.ID, cause.Error(), d.clock.Now()); err != nil {
		d.logger.Error(err, "failed to mark notification failed", "id", n.ID.String())
		return
	}
	if d.metrics != nil {
		d.metrics.NotificationsFailed.Inc()
	}
}

func (d *Dispatcher) render(ctx context.Context, n *model.QueuedNotification) (string, string, error) {
	tmpl, err := d.templates.GetByCode(ctx, n.TemplateCode)
	if err != nil {
		return "", "", err
	}

	subject, err := renderTemplate(tmpl.Code+"-subject", tmpl.Subject, n.Context)
	if err != nil {
		return "", "", err
	}
	body, err := renderTemplate(tmpl.Code+"-body", tmpl.Body, n.Context)
	if err != nil {
		return "", "", err
	}
	return subject, body, nil
}

func renderTemplate(name, text string, data model.JSONMap) (string, error) {
	t, err := template.New(name).Option("missingkey=zero").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse template %s: %w", name, err)
	}
	var buf bytes.Buffer
	if data == nil {
		data = model.JSONMap{}
	}
	if err := t.Execute(&buf, map[string]interface{}(data)); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
