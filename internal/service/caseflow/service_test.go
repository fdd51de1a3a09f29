package caseflow_test

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
	"github.com/vespl/caseflow-api/internal/service/caseflow"
	"github.com/vespl/caseflow-api/internal/service/sequence"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
	"github.com/vespl/caseflow-api/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.NewLogger(&logger.Config{Level: logger.ErrorLevel, Output: io.Discard})
}

func newService(clk clock.Clock) (*caseflow.Service, *memory.Store) {
	store := memory.NewStore()
	seq := sequence.NewService(store.Sequences(), clk, "VESPL", nil)
	svc := caseflow.NewService(store.Cases(), store.Transitions(), seq, nil, clk, testLogger())
	return svc, store
}

func createCase(t *testing.T, svc *caseflow.Service, priority model.Priority) *model.Case {
	t.Helper()
	c, err := svc.CreateCase(context.Background(), caseflow.CreateCaseInput{
		Title:      "pump housing retrofit",
		Priority:   priority,
		ClientID:   uuid.New(),
		AssigneeID: uuid.New(),
		ActorID:    uuid.New(),
	})
	require.NoError(t, err)
	return c
}

func TestCreateCase(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newService(clk)
	ctx := context.Background()

	c := createCase(t, svc, model.PriorityHigh)

	assert.Equal(t, "VESPL/EQ/2526/001", c.CaseNumber)
	assert.Equal(t, model.StateEnquiry, c.CurrentState)
	assert.Equal(t, model.CaseStatusActive, c.Status)
	assert.False(t, c.SLABreached)
	assert.Equal(t, clk.Now().Add(24*time.Hour), c.ExpectedStateCompletion)

	// Creation writes the opening history entry atomically.
	history, err := store.Transitions().ListByCase(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.StateEnquiry, history[0].ToState)
	assert.Equal(t, model.RefCase, history[0].ReferenceType)
}

func TestCreateCaseDefaultsPriority(t *testing.T) {
	svc, _ := newService(clock.NewFake(time.Now()))
	c := createCase(t, svc, "")
	assert.Equal(t, model.PriorityMedium, c.Priority)
}

func TestCreateCaseValidation(t *testing.T) {
	svc, _ := newService(clock.NewFake(time.Now()))
	ctx := context.Background()

	_, err := svc.CreateCase(ctx, caseflow.CreateCaseInput{
		Priority: "urgent", ClientID: uuid.New(), AssigneeID: uuid.New(),
	})
	assert.True(t, apperrors.IsValidation(err), "unknown priority")

	_, err = svc.CreateCase(ctx, caseflow.CreateCaseInput{AssigneeID: uuid.New()})
	assert.True(t, apperrors.IsValidation(err), "missing client")

	_, err = svc.CreateCase(ctx, caseflow.CreateCaseInput{ClientID: uuid.New()})
	assert.True(t, apperrors.IsValidation(err), "missing assignee")
}

func TestTransitionAdvancesStateAndDeadline(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newService(clk)
	ctx := context.Background()
	actor := uuid.New()

	c := createCase(t, svc, model.PriorityMedium)

	clk.Advance(6 * time.Hour)
	tr, err := svc.Transition(ctx, c.ID, model.StateEstimation, actor, "estimate requested")
	require.NoError(t, err)
	assert.Equal(t, model.StateEnquiry, tr.FromState)
	assert.Equal(t, model.StateEstimation, tr.ToState)

	got, err := store.Cases().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateEstimation, got.CurrentState)
	assert.Equal(t, clk.Now().Add(48*time.Hour), got.ExpectedStateCompletion,
		"deadline is recomputed from the transition time with the new state's budget")

	history, err := store.Transitions().ListByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestTransitionClearsBreachFlag(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newService(clk)
	ctx := context.Background()

	c := createCase(t, svc, model.PriorityMedium)
	flipped, err := store.Cases().MarkBreached(ctx, c.ID, clk.Now())
	require.NoError(t, err)
	require.True(t, flipped)

	_, err = svc.Transition(ctx, c.ID, model.StateEstimation, uuid.New(), "")
	require.NoError(t, err)

	got, err := store.Cases().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, got.SLABreached, "entering a new state starts a fresh SLA window")
}

func TestTransitionRejectsInvalidEdge(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newService(clk)
	ctx := context.Background()

	c := createCase(t, svc, model.PriorityMedium)

	_, err := svc.Transition(ctx, c.ID, model.StateManufacturing, uuid.New(), "")
	assert.True(t, apperrors.IsInvalidTransition(err))

	_, err = svc.Transition(ctx, c.ID, "shipped", uuid.New(), "")
	assert.True(t, apperrors.IsValidation(err))

	// A rejected transition leaves the case and its history untouched.
	got, err := store.Cases().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateEnquiry, got.CurrentState)
	history, err := store.Transitions().ListByCase(ctx, c.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestTransitionClosedCaseFails(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, store := newService(clk)
	ctx := context.Background()
	actor := uuid.New()

	c := createCase(t, svc, model.PriorityMedium)
	for _, next := range []model.CaseState{
		model.StateEstimation, model.StateQuotation, model.StateSalesOrder,
		model.StateManufacturing, model.StateDelivery, model.StateClosed,
	} {
		_, err := svc.Transition(ctx, c.ID, next, actor, "")
		require.NoError(t, err)
	}

	got, err := store.Cases().Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.CaseStatusCompleted, got.Status)

	_, err = svc.Transition(ctx, c.ID, model.StateEnquiry, actor, "")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCaseClosed))
}

func TestRejectedReworkPath(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, _ := newService(clk)
	ctx := context.Background()
	actor := uuid.New()

	c := createCase(t, svc, model.PriorityMedium)
	_, err := svc.Transition(ctx, c.ID, model.StateEstimation, actor, "")
	require.NoError(t, err)
	_, err = svc.Transition(ctx, c.ID, model.StateRejected, actor, "client declined estimate")
	require.NoError(t, err)

	// Rejection is not terminal: rework goes back through estimation.
	tr, err := svc.Transition(ctx, c.ID, model.StateEstimation, actor, "revised scope")
	require.NoError(t, err)
	assert.Equal(t, model.StateRejected, tr.FromState)
}

func TestRecordHistoryAgainstReference(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 9, 0, 0, 0, time.UTC))
	svc, _ := newService(clk)
	ctx := context.Background()
	quotationID := uuid.New()
	actor := uuid.New()

	tr, err := svc.RecordHistory(ctx, model.RefQuotation, quotationID, "sent_to_client", "emailed v2", actor)
	require.NoError(t, err)
	assert.Equal(t, "sent_to_client", tr.StatusLabel)

	history, err := svc.GetHistory(ctx, model.RefQuotation, quotationID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "emailed v2", history[0].Note)

	_, err = svc.RecordHistory(ctx, "receipt", uuid.New(), "x", "", actor)
	assert.True(t, apperrors.IsValidation(err))

	_, err = svc.RecordHistory(ctx, model.RefQuotation, quotationID, "", "", actor)
	assert.True(t, apperrors.IsValidation(err), "status label is required")

	// Case references must point at an existing case.
	_, err = svc.RecordHistory(ctx, model.RefCase, uuid.New(), "note", "", actor)
	assert.True(t, apperrors.IsNotFound(err))
}
