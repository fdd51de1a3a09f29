package notification_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository/memory"
	"github.com/vespl/caseflow-api/internal/service/notification"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
	"github.com/vespl/caseflow-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newService(clk clock.Clock) (*notification.Service, *memory.Store) {
	store := memory.NewStore()
	svc := notification.NewService(store.Queue(), store.Templates(), clk, testLogger(), nil)
	return svc, store
}

func TestEnqueueCreatesPendingRow(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newService(clk)
	ctx := context.Background()
	caseID := uuid.New()

	enqueued, err := svc.Enqueue(ctx, notification.EnqueueRequest{
		CaseID:       &caseID,
		TemplateCode: model.TemplateSLAWarning,
		Recipient:    model.RoleRecipient("manager"),
		TriggerEvent: model.TriggerSLAWarning,
		Context:      model.JSONMap{"case_number": "VESPL/EQ/2526/001"},
	})
	require.NoError(t, err)
	assert.True(t, enqueued)

	pending, err := store.Queue().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, model.NotificationStatusPending, pending[0].Status)
	assert.Equal(t, model.TemplateSLAWarning, pending[0].TemplateCode)
	assert.Equal(t, "role:manager", pending[0].Recipient.Key())
	assert.Equal(t, 0, pending[0].RetryCount)
}

func TestEnqueueRejectsInvalidRecipient(t *testing.T) {
	svc, _ := newService(clock.NewFake(time.Now()))
	ctx := context.Background()
	userID := uuid.New()

	_, err := svc.Enqueue(ctx, notification.EnqueueRequest{
		TemplateCode: model.TemplateSLAWarning,
		Recipient:    model.Recipient{},
		TriggerEvent: model.TriggerSLAWarning,
	})
	assert.True(t, apperrors.IsValidation(err), "empty recipient")

	_, err = svc.Enqueue(ctx, notification.EnqueueRequest{
		TemplateCode: model.TemplateSLAWarning,
		Recipient:    model.Recipient{UserID: &userID, Role: "manager"},
		TriggerEvent: model.TriggerSLAWarning,
	})
	assert.True(t, apperrors.IsValidation(err), "two recipient fields")
}

func TestEnqueueRejectsUnknownTemplate(t *testing.T) {
	svc, _ := newService(clock.NewFake(time.Now()))

	_, err := svc.Enqueue(context.Background(), notification.EnqueueRequest{
		TemplateCode: "no_such_template",
		Recipient:    model.RoleRecipient("manager"),
		TriggerEvent: model.TriggerManual,
	})
	assert.True(t, apperrors.IsNotFound(err))
}

func TestEnqueueDedupWindow(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newService(clk)
	ctx := context.Background()
	caseID := uuid.New()

	req := notification.EnqueueRequest{
		CaseID:       &caseID,
		TemplateCode: model.TemplateSLAWarning,
		Recipient:    model.RoleRecipient("manager"),
		TriggerEvent: model.TriggerSLAWarning,
		DedupWindow:  2 * time.Hour,
	}

	enqueued, err := svc.Enqueue(ctx, req)
	require.NoError(t, err)
	assert.True(t, enqueued)

	// Same tuple inside the window is suppressed without error.
	clk.Advance(30 * time.Minute)
	enqueued, err = svc.Enqueue(ctx, req)
	require.NoError(t, err)
	assert.False(t, enqueued)

	// A different recipient is a different tuple.
	other := req
	other.Recipient = model.RoleRecipient("director")
	enqueued, err = svc.Enqueue(ctx, other)
	require.NoError(t, err)
	assert.True(t, enqueued)

	// Past the window the original tuple enqueues again.
	clk.Advance(2 * time.Hour)
	enqueued, err = svc.Enqueue(ctx, req)
	require.NoError(t, err)
	assert.True(t, enqueued)

	pending, err := store.Queue().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)
}

func TestEnqueueZeroWindowDisablesDedup(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newService(clk)
	ctx := context.Background()

	req := notification.EnqueueRequest{
		TemplateCode: model.TemplateSLABreach,
		Recipient:    model.RoleRecipient("manager"),
		TriggerEvent: model.TriggerSLABreach,
	}
	for i := 0; i < 2; i++ {
		enqueued, err := svc.Enqueue(ctx, req)
		require.NoError(t, err)
		assert.True(t, enqueued)
	}

	pending, err := store.Queue().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 2)
}

func TestPurgeKeepsPendingRows(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newService(clk)
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, notification.EnqueueRequest{
		TemplateCode: model.TemplateSLAWarning,
		Recipient:    model.RoleRecipient("manager"),
		TriggerEvent: model.TriggerSLAWarning,
	})
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, notification.EnqueueRequest{
		TemplateCode: model.TemplateSLABreach,
		Recipient:    model.RoleRecipient("manager"),
		TriggerEvent: model.TriggerSLABreach,
	})
	require.NoError(t, err)

	pending, err := store.Queue().ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.NoError(t, store.Queue().MarkSent(ctx, pending[0].ID, clk.Now()))

	// Rows are well inside the retention window: nothing goes.
	deleted, err := svc.Purge(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Zero(t, deleted)

	// Jump past retention: the sent row goes, the pending row stays.
	clk.Advance(31 * 24 * time.Hour)
	deleted, err = svc.Purge(ctx, 30*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	pending, err = store.Queue().ListPending(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}
