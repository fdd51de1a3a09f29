package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFiscalYearCode(t *testing.T) {
	cases := []struct {
		at   time.Time
		want string
	}{
		{time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), "2526"},
		{time.Date(2025, time.December, 15, 0, 0, 0, 0, time.UTC), "2526"},
		{time.Date(2026, time.March, 31, 23, 59, 59, 0, time.UTC), "2526"},
		{time.Date(2026, time.April, 1, 0, 0, 0, 0, time.UTC), "2627"},
		{time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC), "2425"},
		{time.Date(1999, time.June, 1, 0, 0, 0, 0, time.UTC), "9900"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FiscalYearCode(tc.at), "at %s", tc.at)
	}
}

func TestDocumentTypeCode(t *testing.T) {
	code, ok := DocEnquiry.TypeCode()
	assert.True(t, ok)
	assert.Equal(t, "EQ", code)

	code, ok = DocSalesOrder.TypeCode()
	assert.True(t, ok)
	assert.Equal(t, "SO", code)

	_, ok = DocumentType("RECEIPT").TypeCode()
	assert.False(t, ok)
}
