package sequence_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vespl/caseflow-api/internal/clock"
	"github.com/vespl/caseflow-api/internal/model"
	"github.com/vespl/caseflow-api/internal/repository/memory"
	"github.com/vespl/caseflow-api/internal/service/sequence"
	apperrors "github.com/vespl/caseflow-api/pkg/errors"
)

func newService(clk clock.Clock) *sequence.Service {
	store := memory.NewStore()
	return sequence.NewService(store.Sequences(), clk, "VESPL", nil)
}

func TestNextDocumentNumberFormat(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))
	svc := newService(clk)
	ctx := context.Background()

	first, err := svc.NextDocumentNumber(ctx, model.DocEnquiry)
	require.NoError(t, err)
	assert.Equal(t, "VESPL/EQ/2526/001", first)

	second, err := svc.NextDocumentNumber(ctx, model.DocEnquiry)
	require.NoError(t, err)
	assert.Equal(t, "VESPL/EQ/2526/002", second)
}

func TestNextDocumentNumberSeparateCounters(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))
	svc := newService(clk)
	ctx := context.Background()

	_, err := svc.NextDocumentNumber(ctx, model.DocEnquiry)
	require.NoError(t, err)

	// A different document type starts its own counter.
	so, err := svc.NextDocumentNumber(ctx, model.DocSalesOrder)
	require.NoError(t, err)
	assert.Equal(t, "VESPL/SO/2526/001", so)
}

func TestNextDocumentNumberFiscalYearRollover(t *testing.T) {
	clk := clock.NewFake(time.Date(2026, time.March, 31, 23, 0, 0, 0, time.UTC))
	svc := newService(clk)
	ctx := context.Background()

	before, err := svc.NextDocumentNumber(ctx, model.DocQuotation)
	require.NoError(t, err)
	assert.Equal(t, "VESPL/QT/2526/001", before)

	// Crossing into April starts a fresh fiscal-year partition at 001.
	clk.Set(time.Date(2026, time.April, 1, 0, 30, 0, 0, time.UTC))
	after, err := svc.NextDocumentNumber(ctx, model.DocQuotation)
	require.NoError(t, err)
	assert.Equal(t, "VESPL/QT/2627/001", after)
}

func TestNextDocumentNumberUnknownType(t *testing.T) {
	svc := newService(clock.NewFake(time.Now()))

	_, err := svc.NextDocumentNumber(context.Background(), model.DocumentType("RECEIPT"))
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
}

func TestNextDocumentNumberPaddingWidens(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))
	svc := newService(clk)
	ctx := context.Background()

	var last string
	for i := 0; i < 1000; i++ {
		n, err := svc.NextDocumentNumber(ctx, model.DocInvoice)
		require.NoError(t, err)
		last = n
	}
	assert.Equal(t, "VESPL/IN/2526/1000", last)
}

func TestNextDocumentNumberConcurrent(t *testing.T) {
	clk := clock.NewFake(time.Date(2025, time.June, 10, 12, 0, 0, 0, time.UTC))
	svc := newService(clk)
	ctx := context.Background()

	const workers = 50
	results := make(chan string, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := svc.NextDocumentNumber(ctx, model.DocWorkOrder)
			assert.NoError(t, err)
			results <- n
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for n := range results {
		assert.False(t, seen[n], "duplicate number issued: %s", n)
		seen[n] = true
	}
	require.Len(t, seen, workers)

	// Numbers are contiguous: every value 1..workers was issued exactly once.
	for i := 1; i <= workers; i++ {
		want := fmt.Sprintf("VESPL/WO/2526/%03d", i)
		assert.True(t, seen[want], "missing %s", want)
	}
}
