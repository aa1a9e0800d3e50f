package validator_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/data-contract/pkg/validator"
)

func TestCategorizeError(t *testing.T) {
	eh := validator.NewErrorHandler(zap.NewNop())

	cases := []struct {
		err      error
		expected validator.ErrorCategory
	}{
		{nil, validator.ErrorCategoryNone},
		{errors.New("connection refused"), validator.ErrorCategoryConnection},
		{errors.New("read timeout on source"), validator.ErrorCategoryConnection},
		{errors.New("table RAW_NUM not found"), validator.ErrorCategoryConfiguration},
		{errors.New("column UOM does not exist"), validator.ErrorCategoryConfiguration},
		{errors.New("cannot convert string to bool"), validator.ErrorCategoryTypeCoercion},
		{errors.New("cannot parse 'maybe' as boolean"), validator.ErrorCategoryTypeCoercion},
		{errors.New("permission denied"), validator.ErrorCategorySystem},
		{errors.New("fatal: worker terminated"), validator.ErrorCategoryCritical},
		{errors.New("something unexpected"), validator.ErrorCategoryConfiguration},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.expected, eh.CategorizeError(tc.err), "error: %v", tc.err)
	}
}

func TestHandleErrorActions(t *testing.T) {
	eh := validator.NewErrorHandler(zap.NewNop())

	finding := validator.NewErrorRecord(errors.New("3 of 10 rows failed rule not_null"), validator.ErrorCategoryDataQuality)
	assert.Equal(t, validator.ActionContinue, eh.HandleError(finding))

	coercion := validator.NewErrorRecord(errors.New("cannot convert value"), validator.ErrorCategoryTypeCoercion)
	assert.Equal(t, validator.ActionContinue, eh.HandleError(coercion))

	config := validator.NewErrorRecord(errors.New("column UOM not found"), validator.ErrorCategoryConfiguration)
	assert.Equal(t, validator.ActionSkipRule, eh.HandleError(config))

	conn := validator.NewErrorRecord(errors.New("connection reset"), validator.ErrorCategoryConnection)
	assert.Equal(t, validator.ActionRetry, eh.HandleError(conn))
	assert.Equal(t, validator.ActionSkipTable, eh.HandleError(conn.WithRetry(3)))

	system := validator.NewErrorRecord(errors.New("disk full"), validator.ErrorCategorySystem)
	assert.Equal(t, validator.ActionAbort, eh.HandleError(system))
}

func TestShouldRetry(t *testing.T) {
	eh := validator.NewErrorHandler(zap.NewNop())

	conn := validator.NewErrorRecord(errors.New("connection lost"), validator.ErrorCategoryConnection)
	assert.True(t, eh.ShouldRetry(conn))
	assert.False(t, eh.ShouldRetry(conn.WithRetry(3)))

	// Findings describe the data, retrying cannot change them
	finding := validator.NewErrorRecord(errors.New("rows failed"), validator.ErrorCategoryDataQuality)
	assert.False(t, eh.ShouldRetry(finding))

	config := validator.NewErrorRecord(errors.New("missing column"), validator.ErrorCategoryConfiguration)
	assert.False(t, eh.ShouldRetry(config))
}

func TestRecordErrorSampling(t *testing.T) {
	eh := validator.NewErrorHandler(zap.NewNop())

	for i := 0; i < 8; i++ {
		record := validator.NewErrorRecord(fmt.Errorf("row %d failed", i), validator.ErrorCategoryDataQuality).
			WithTable("RAW_PRE")
		eh.RecordError(record)
	}

	summary := eh.GetErrorSummary()
	assert.Equal(t, 8, summary[validator.ErrorCategoryDataQuality])

	// Counters keep growing but only the first samples are retained
	samples := eh.GetErrorSamples()
	assert.Len(t, samples[validator.ErrorCategoryDataQuality], 5)

	tables := eh.GetTableErrorCounts()
	assert.Equal(t, 8, tables["RAW_PRE"])
}

func TestErrorRecordRecoverable(t *testing.T) {
	r := validator.NewErrorRecord(errors.New("x"), validator.ErrorCategoryDataQuality)
	assert.True(t, r.Recoverable)

	r = validator.NewErrorRecord(errors.New("x"), validator.ErrorCategorySystem)
	assert.False(t, r.Recoverable)

	r = validator.NewErrorRecord(errors.New("x"), validator.ErrorCategoryConnection).WithRetry(3)
	assert.False(t, r.Recoverable)
}

func TestErrorRecordString(t *testing.T) {
	record := validator.NewErrorRecord(errors.New("1 of 4 rows failed rule not_null"), validator.ErrorCategoryDataQuality).
		WithTable("RAW_PRE").
		WithColumn("VERSION", "v9").
		WithRule("not_null").
		WithRow("0000320193-24-000123")

	s := record.String()
	assert.Contains(t, s, "[DataQuality]")
	assert.Contains(t, s, "Table: RAW_PRE")
	assert.Contains(t, s, "Column: VERSION")
	assert.Contains(t, s, "Rule: not_null")
	assert.Contains(t, s, "Row: 0000320193-24-000123")
	assert.Contains(t, s, "Value: v9")
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, validator.IsRetryableError(errors.New("connection reset by peer")))
	assert.True(t, validator.IsRetryableError(errors.New("i/o timeout")))
	assert.True(t, validator.IsRetryableError(errors.New("temporary failure in name resolution")))
	assert.True(t, validator.IsRetryableError(context.DeadlineExceeded))
	assert.True(t, validator.IsRetryableError(fmt.Errorf("read: %w", context.DeadlineExceeded)))

	assert.False(t, validator.IsRetryableError(nil))
	assert.False(t, validator.IsRetryableError(errors.New("table RAW_NUM not found")))
}

func TestWrapError(t *testing.T) {
	base := errors.New("boom")
	wrapped := validator.WrapError(base, "failed to read table RAW_SUB")
	require.Error(t, wrapped)
	assert.True(t, errors.Is(wrapped, base))
	assert.Contains(t, wrapped.Error(), "failed to read table RAW_SUB")

	assert.Nil(t, validator.WrapError(nil, "ignored"))
}
