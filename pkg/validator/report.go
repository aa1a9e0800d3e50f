package validator

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// RuleResult is the outcome of evaluating one rule against one column
type RuleResult struct {
	Table       string        `json:"table"`
	Column      string        `json:"column"`
	Rule        string        `json:"rule"`
	Passed      bool          `json:"passed"`
	Skipped     bool          `json:"skipped,omitempty"`
	RowsChecked int64         `json:"rowsChecked"`
	RowsFailed  int64         `json:"rowsFailed"`
	SampleKeys  []string      `json:"sampleKeys,omitempty"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
}

// newRuleResult initializes a rule result
func newRuleResult(table, column, rule string) RuleResult {
	return RuleResult{
		Table:  table,
		Column: column,
		Rule:   rule,
	}
}

// recordFailure counts a failing row and keeps its key while under the sample limit
func (r *RuleResult) recordFailure(key string, sampleLimit int) {
	r.RowsFailed++
	if len(r.SampleKeys) < sampleLimit {
		r.SampleKeys = append(r.SampleKeys, key)
	}
}

// markSkipped flags the rule as not evaluated and records the reason
func (r *RuleResult) markSkipped(err error) {
	r.Skipped = true
	r.Passed = false
	if err != nil {
		r.Error = err.Error()
	}
}

// finish computes the pass flag and duration
func (r *RuleResult) finish(start time.Time) {
	r.Duration = time.Since(start)
	r.Passed = !r.Skipped && r.RowsFailed == 0
}

// ValidationReport is the full outcome of a validation run
type ValidationReport struct {
	RunID        string        `json:"runId"`
	StartTime    time.Time     `json:"startTime"`
	EndTime      time.Time     `json:"endTime"`
	Duration     time.Duration `json:"duration"`
	Tables       []string      `json:"tables"`
	RulesTotal   int           `json:"rulesTotal"`
	RulesPassed  int           `json:"rulesPassed"`
	RulesFailed  int           `json:"rulesFailed"`
	RulesSkipped int           `json:"rulesSkipped"`
	RowsChecked  int64         `json:"rowsChecked"`
	RowsFailed   int64         `json:"rowsFailed"`
	Results      []RuleResult  `json:"results"`
	ConfigErrors []string      `json:"configErrors,omitempty"`
}

// NewValidationReport initializes a report for a new run
func NewValidationReport() *ValidationReport {
	return &ValidationReport{
		RunID:     uuid.New().String(),
		StartTime: time.Now(),
		Tables:    make([]string, 0),
		Results:   make([]RuleResult, 0),
	}
}

// AddResult appends a rule result to the report
func (r *ValidationReport) AddResult(result RuleResult) {
	r.Results = append(r.Results, result)
}

// AddConfigError records a configuration problem surfaced during the run
func (r *ValidationReport) AddConfigError(message string) {
	r.ConfigErrors = append(r.ConfigErrors, message)
}

// Complete orders the results and recomputes the report counters. Results
// are sorted by table, column, then rule so the same dataset always yields
// the same report.
func (r *ValidationReport) Complete() {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)

	sort.SliceStable(r.Results, func(i, j int) bool {
		a, b := r.Results[i], r.Results[j]
		if a.Table != b.Table {
			return a.Table < b.Table
		}
		if a.Column != b.Column {
			return a.Column < b.Column
		}
		return a.Rule < b.Rule
	})

	r.RulesTotal = len(r.Results)
	r.RulesPassed = 0
	r.RulesFailed = 0
	r.RulesSkipped = 0
	r.RowsChecked = 0
	r.RowsFailed = 0

	tables := make(map[string]bool)
	for _, result := range r.Results {
		tables[result.Table] = true
		r.RowsChecked += result.RowsChecked
		r.RowsFailed += result.RowsFailed

		switch {
		case result.Skipped:
			r.RulesSkipped++
		case result.Passed:
			r.RulesPassed++
		default:
			r.RulesFailed++
		}
	}

	r.Tables = r.Tables[:0]
	for table := range tables {
		r.Tables = append(r.Tables, table)
	}
	sort.Strings(r.Tables)
}

// Passed reports whether every evaluated rule passed and nothing was skipped
func (r *ValidationReport) Passed() bool {
	return r.RulesFailed == 0 && r.RulesSkipped == 0 && len(r.ConfigErrors) == 0
}

// HasConfigurationErrors reports whether any rule could not be evaluated
func (r *ValidationReport) HasConfigurationErrors() bool {
	return len(r.ConfigErrors) > 0 || r.RulesSkipped > 0
}

// ConfigurationFailure returns an error describing the configuration
// problems of the run, or nil if there were none
func (r *ValidationReport) ConfigurationFailure() error {
	if !r.HasConfigurationErrors() {
		return nil
	}

	if len(r.ConfigErrors) > 0 {
		return fmt.Errorf("%d configuration errors, first: %s", len(r.ConfigErrors), r.ConfigErrors[0])
	}
	return fmt.Errorf("%d rules could not be evaluated", r.RulesSkipped)
}

// FailedResults returns the results for rules that were evaluated and failed
func (r *ValidationReport) FailedResults() []RuleResult {
	failed := make([]RuleResult, 0)
	for _, result := range r.Results {
		if !result.Passed && !result.Skipped {
			failed = append(failed, result)
		}
	}
	return failed
}

// SkippedResults returns the results for rules that could not be evaluated
func (r *ValidationReport) SkippedResults() []RuleResult {
	skipped := make([]RuleResult, 0)
	for _, result := range r.Results {
		if result.Skipped {
			skipped = append(skipped, result)
		}
	}
	return skipped
}

// Summary generates a human-readable report of the validation run
func (r *ValidationReport) Summary() string {
	var sb strings.Builder

	sb.WriteString("=== Contract Validation Report ===\n")
	sb.WriteString(fmt.Sprintf("Run ID:       %s\n", r.RunID))
	sb.WriteString(fmt.Sprintf("Duration:     %s\n", formatDuration(r.Duration)))
	sb.WriteString(fmt.Sprintf("Tables:       %s\n", strings.Join(r.Tables, ", ")))
	sb.WriteString(fmt.Sprintf("Rules:        %d total, %d passed, %d failed, %d skipped\n",
		r.RulesTotal, r.RulesPassed, r.RulesFailed, r.RulesSkipped))
	sb.WriteString(fmt.Sprintf("Row checks:   %d performed, %d failed\n", r.RowsChecked, r.RowsFailed))

	if failed := r.FailedResults(); len(failed) > 0 {
		sb.WriteString("\nFailed rules:\n")
		for _, result := range failed {
			sb.WriteString(fmt.Sprintf("  %s.%s %s: %d of %d rows failed",
				result.Table, result.Column, result.Rule, result.RowsFailed, result.RowsChecked))
			if len(result.SampleKeys) > 0 {
				sb.WriteString(fmt.Sprintf(" (sample keys: %s)", strings.Join(result.SampleKeys, ", ")))
			}
			sb.WriteString("\n")
		}
	}

	if skipped := r.SkippedResults(); len(skipped) > 0 {
		sb.WriteString("\nSkipped rules:\n")
		for _, result := range skipped {
			sb.WriteString(fmt.Sprintf("  %s.%s %s: %s\n",
				result.Table, result.Column, result.Rule, result.Error))
		}
	}

	if len(r.ConfigErrors) > 0 {
		sb.WriteString("\nConfiguration errors:\n")
		for _, message := range r.ConfigErrors {
			sb.WriteString(fmt.Sprintf("  %s\n", message))
		}
	}

	if r.Passed() {
		sb.WriteString("\nResult: PASSED\n")
	} else {
		sb.WriteString("\nResult: FAILED\n")
	}

	return sb.String()
}

// ToJSON serializes the report for storage or transmission
func (r *ValidationReport) ToJSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}
