package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := []struct {
		from, to CaseState
	}{
		{StateEnquiry, StateEstimation},
		{StateEstimation, StateQuotation},
		{StateEstimation, StateRejected},
		{StateQuotation, StateSalesOrder},
		{StateQuotation, StateRejected},
		{StateSalesOrder, StateManufacturing},
		{StateManufacturing, StateDelivery},
		{StateDelivery, StateClosed},
		{StateRejected, StateEstimation},
	}
	for _, tc := range allowed {
		assert.True(t, CanTransition(tc.from, tc.to), "%s -> %s should be allowed", tc.from, tc.to)
	}

	denied := []struct {
		from, to CaseState
	}{
		{StateEnquiry, StateQuotation},
		{StateEnquiry, StateClosed},
		{StateEstimation, StateEnquiry},
		{StateQuotation, StateEstimation},
		{StateSalesOrder, StateQuotation},
		{StateManufacturing, StateSalesOrder},
		{StateDelivery, StateManufacturing},
		{StateClosed, StateEnquiry},
		{StateClosed, StateClosed},
		{StateRejected, StateQuotation},
	}
	for _, tc := range denied {
		assert.False(t, CanTransition(tc.from, tc.to), "%s -> %s should be denied", tc.from, tc.to)
	}
}

func TestIsValidState(t *testing.T) {
	for _, s := range []CaseState{
		StateEnquiry, StateEstimation, StateQuotation, StateSalesOrder,
		StateManufacturing, StateDelivery, StateRejected, StateClosed,
	} {
		assert.True(t, IsValidState(s))
	}
	assert.False(t, IsValidState("shipped"))
	assert.False(t, IsValidState(""))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, IsTerminal(StateClosed))
	assert.False(t, IsTerminal(StateRejected), "rejected can be reworked")
	assert.False(t, IsTerminal(StateEnquiry))
	assert.False(t, IsTerminal(StateDelivery))
}

func TestStateDuration(t *testing.T) {
	assert.Equal(t, 24*time.Hour, StateDuration(StateEnquiry))
	assert.Equal(t, 48*time.Hour, StateDuration(StateEstimation))
	assert.Equal(t, 7*24*time.Hour, StateDuration(StateManufacturing))
	assert.Equal(t, time.Duration(0), StateDuration(StateClosed))
}
