package notification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository/memory"
	"github.com/vespl/caseflow-api/internal/service/notification"
)

// fakeChannel records sends and fails on demand.
type fakeChannel struct {
	sent []sentMessage
	// failFor maps recipient keys to the error returned for them.
	failFor map[string]error
	// block makes Send wait for context cancellation instead of returning.
	block bool
}

type sentMessage struct {
	recipient model.Recipient
	subject   string
	body      string
}

func (f *fakeChannel) Send(ctx context.Context, r model.Recipient, subject, body string) error {
	if f.block {
		<-ctx.Done()
		return ctx.Err()
	}
	if err, ok := f.failFor[r.Key()]; ok {
		return err
	}
	f.sent = append(f.sent, sentMessage{recipient: r, subject: subject, body: body})
	return nil
}

func newDispatcher(clk clock.Clock, ch notification.Channel, cfg notification.DispatcherConfig) (*notification.Dispatcher, *memory.Store) {
	store := memory.NewStore()
	d := notification.NewDispatcher(store.Queue(), store.Templates(), ch, clk, cfg, testLogger(), nil)
	return d, store
}

func enqueueRow(t *testing.T, store *memory.Store, clk clock.Clock, templateCode string, r model.Recipient) uuid.UUID {
	t.Helper()
	n := &model.QueuedNotification{
		ID:           uuid.New(),
		TemplateCode: templateCode,
		Recipient:    r,
		TriggerEvent: model.TriggerManual,
		Context:      model.JSONMap{"case_number": "VESPL/EQ/2526/007", "level": 1},
		Status:       model.NotificationStatusPending,
		CreatedAt:    clk.Now(),
		UpdatedAt:    clk.Now(),
	}
	require.NoError(t, store.Queue().Create(context.Background(), n))
	return n.ID
}

func TestDrainDeliversAndMarksSent(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	ch := &fakeChannel{}
	d, store := newDispatcher(clk, ch, notification.DispatcherConfig{})
	ctx := context.Background()

	enqueueRow(t, store, clk, model.TemplateEscalationNotice, model.RoleRecipient("manager"))

	require.NoError(t, d.Drain(ctx))

	require.Len(t, ch.sent, 1)
	assert.Contains(t, ch.sent[0].subject, "VESPL/EQ/2526/007")
	assert.Contains(t, ch.sent[0].subject, "level 1")

	pending, err := store.Queue().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDrainRetriesThenFailsTerminally(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	ch := &fakeChannel{failFor: map[string]error{"role:manager": errors.New("smtp refused")}}
	d, store := newDispatcher(clk, ch, notification.DispatcherConfig{MaxAttempts: 3})
	ctx := context.Background()

	enqueueRow(t, store, clk, model.TemplateSLAWarning, model.RoleRecipient("manager"))

	// First two drains record attempts; the row stays pending.
	for i := 1; i <= 2; i++ {
		require.NoError(t, d.Drain(ctx))
		pending, err := store.Queue().ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1, "drain %d", i)
		assert.Equal(t, i, pending[0].RetryCount)
		assert.Equal(t, "smtp refused", pending[0].LastError)
	}

	// Third attempt exhausts the budget: terminal failure, not retried.
	require.NoError(t, d.Drain(ctx))
	pending, err := store.Queue().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, d.Drain(ctx))
	assert.Empty(t, ch.sent, "failed row must not be redelivered")
}

func TestDrainContinuesPastRowErrors(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	ch := &fakeChannel{failFor: map[string]error{"role:manager": errors.New("mailbox full")}}
	d, store := newDispatcher(clk, ch, notification.DispatcherConfig{})
	ctx := context.Background()

	enqueueRow(t, store, clk, model.TemplateSLAWarning, model.RoleRecipient("manager"))
	clk.Advance(time.Second)
	enqueueRow(t, store, clk, model.TemplateSLAWarning, model.RoleRecipient("director"))

	require.NoError(t, d.Drain(ctx))

	// The failing row did not stop the healthy one behind it.
	require.Len(t, ch.sent, 1)
	assert.Equal(t, "role:director", ch.sent[0].recipient.Key())
}

func TestDrainFailsBadTemplateOutright(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	ch := &fakeChannel{}
	d, store := newDispatcher(clk, ch, notification.DispatcherConfig{MaxAttempts: 3})
	ctx := context.Background()

	enqueueRow(t, store, clk, "no_such_template", model.RoleRecipient("manager"))

	require.NoError(t, d.Drain(ctx))

	// No retry budget for rows that can never render.
	pending, err := store.Queue().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Empty(t, ch.sent)
}

func TestDrainTimesOutSlowChannel(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	ch := &fakeChannel{block: true}
	d, store := newDispatcher(clk, ch, notification.DispatcherConfig{
		MaxAttempts: 1,
		SendTimeout: 20 * time.Millisecond,
	})
	ctx := context.Background()

	enqueueRow(t, store, clk, model.TemplateSLAWarning, model.RoleRecipient("manager"))

	start := time.Now()
	require.NoError(t, d.Drain(ctx))
	assert.Less(t, time.Since(start), 5*time.Second, "send must be bounded by the timeout")

	pending, err := store.Queue().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending, "timed-out row is terminal at MaxAttempts=1")
}
