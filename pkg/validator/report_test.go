package validator_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/David-Botos/data-contract/pkg/validator"
)

func sampleReport() *validator.ValidationReport {
	report := validator.NewValidationReport()

	report.AddResult(validator.RuleResult{
		Table: "RAW_TAG", Column: "TAG", Rule: "not_null",
		Passed: true, RowsChecked: 100,
	})
	report.AddResult(validator.RuleResult{
		Table: "RAW_PRE", Column: "VERSION", Rule: "relationships(RAW_TAG.VERSION)",
		Passed: false, RowsChecked: 50, RowsFailed: 1, SampleKeys: []string{"0000320193-24-000123"},
	})
	report.AddResult(validator.RuleResult{
		Table: "RAW_PRE", Column: "TAG", Rule: "not_null",
		Passed: true, RowsChecked: 50,
	})
	report.AddResult(validator.RuleResult{
		Table: "RAW_PRE", Column: "TAG", Rule: "relationships(RAW_TAG.TAG)",
		Passed: true, RowsChecked: 50,
	})

	return report
}

func TestReportComplete(t *testing.T) {
	report := sampleReport()
	report.AddResult(validator.RuleResult{
		Table: "RAW_NUM", Column: "ADSH", Rule: "not_null",
		Skipped: true, Error: "failed to load table RAW_NUM: table not found",
	})
	report.Complete()

	assert.Equal(t, 5, report.RulesTotal)
	assert.Equal(t, 3, report.RulesPassed)
	assert.Equal(t, 1, report.RulesFailed)
	assert.Equal(t, 1, report.RulesSkipped)
	assert.Equal(t, int64(250), report.RowsChecked)
	assert.Equal(t, int64(1), report.RowsFailed)
	assert.Equal(t, []string{"RAW_NUM", "RAW_PRE", "RAW_TAG"}, report.Tables)

	// Results sort by table, column, rule regardless of arrival order
	require.Len(t, report.Results, 5)
	assert.Equal(t, "RAW_NUM", report.Results[0].Table)
	assert.Equal(t, "RAW_PRE", report.Results[1].Table)
	assert.Equal(t, "TAG", report.Results[1].Column)
	assert.Equal(t, "not_null", report.Results[1].Rule)
	assert.Equal(t, "relationships(RAW_TAG.TAG)", report.Results[2].Rule)
	assert.Equal(t, "VERSION", report.Results[3].Column)
	assert.Equal(t, "RAW_TAG", report.Results[4].Table)

	assert.False(t, report.Passed())
}

func TestReportCompleteIsStable(t *testing.T) {
	first := sampleReport()
	first.Complete()

	// Same results added in a different order produce the same report
	second := validator.NewValidationReport()
	for i := len(first.Results) - 1; i >= 0; i-- {
		second.AddResult(first.Results[i])
	}
	second.Complete()

	assert.Equal(t, first.Results, second.Results)
	assert.Equal(t, first.RulesPassed, second.RulesPassed)
	assert.Equal(t, first.RulesFailed, second.RulesFailed)
	assert.Equal(t, first.Tables, second.Tables)
}

func TestReportPassed(t *testing.T) {
	report := validator.NewValidationReport()
	report.AddResult(validator.RuleResult{Table: "RAW_TAG", Column: "TAG", Rule: "not_null", Passed: true})
	report.Complete()
	assert.True(t, report.Passed())
	assert.NoError(t, report.ConfigurationFailure())

	report.AddConfigError("failed to load table RAW_NUM: table not found")
	assert.False(t, report.Passed())
	assert.True(t, report.HasConfigurationErrors())

	err := report.ConfigurationFailure()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RAW_NUM")
}

func TestReportFailedAndSkippedResults(t *testing.T) {
	report := sampleReport()
	report.AddResult(validator.RuleResult{
		Table: "RAW_PRE", Column: "UOM", Rule: "not_null",
		Skipped: true, Error: "column UOM not found in table RAW_PRE",
	})
	report.Complete()

	failed := report.FailedResults()
	require.Len(t, failed, 1)
	assert.Equal(t, "VERSION", failed[0].Column)

	skipped := report.SkippedResults()
	require.Len(t, skipped, 1)
	assert.Equal(t, "UOM", skipped[0].Column)
}

func TestReportSummary(t *testing.T) {
	report := sampleReport()
	report.Complete()

	summary := report.Summary()
	assert.Contains(t, summary, "=== Contract Validation Report ===")
	assert.Contains(t, summary, report.RunID)
	assert.Contains(t, summary, "RAW_PRE, RAW_TAG")
	assert.Contains(t, summary, "4 total, 3 passed, 1 failed, 0 skipped")
	assert.Contains(t, summary, "RAW_PRE.VERSION relationships(RAW_TAG.VERSION): 1 of 50 rows failed")
	assert.Contains(t, summary, "sample keys: 0000320193-24-000123")
	assert.Contains(t, summary, "Result: FAILED")

	clean := validator.NewValidationReport()
	clean.AddResult(validator.RuleResult{Table: "RAW_TAG", Column: "TAG", Rule: "not_null", Passed: true})
	clean.Complete()
	assert.Contains(t, clean.Summary(), "Result: PASSED")
}

func TestReportToJSON(t *testing.T) {
	report := sampleReport()
	report.Complete()

	data, err := report.ToJSON()
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, report.RunID, decoded["runId"])
	assert.EqualValues(t, 4, decoded["rulesTotal"])
	assert.EqualValues(t, 250, decoded["rowsChecked"])
	assert.Contains(t, decoded, "results")
	assert.NotContains(t, decoded, "configErrors")
}
