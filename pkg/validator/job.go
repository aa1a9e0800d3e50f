package validator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/David-Botos/data-contract/pkg/contract"
	"github.com/David-Botos/data-contract/pkg/snapshot"
)

// ColumnJob represents the validation of a single column against its rules.
// Snapshots and relationship targets are resolved before the job is queued,
// so evaluating a job never touches the warehouse.
type ColumnJob struct {
	ID        string                     // Unique job identifier
	Table     string                     // Table name
	Column    string                     // Column name
	KeyColumn string                     // Column used to identify failing rows, may be empty
	Rules     []contract.Rule            // Rules to evaluate against the column
	Snapshot  *snapshot.Snapshot         // Loaded snapshot of the table
	Targets   map[int]RelationshipTarget // Resolved relationship targets keyed by rule index
	Priority  int                        // Job priority (higher = more important)
	CreatedAt time.Time                  // Job creation timestamp
}

// NewColumnJob creates a new column job with defaults
func NewColumnJob(table string, column contract.ColumnContract, keyColumn string, snap *snapshot.Snapshot) ColumnJob {
	return ColumnJob{
		ID:        uuid.New().String(),
		Table:     table,
		Column:    column.Name,
		KeyColumn: keyColumn,
		Rules:     column.Rules,
		Snapshot:  snap,
		Targets:   make(map[int]RelationshipTarget),
		Priority:  1, // Default priority
		CreatedAt: time.Now(),
	}
}

// WithPriority sets the job priority and returns the modified job
func (j ColumnJob) WithPriority(priority int) ColumnJob {
	j.Priority = priority
	return j
}

// WithTarget records a resolved relationship target for the rule at the given index
func (j ColumnJob) WithTarget(ruleIndex int, target RelationshipTarget) ColumnJob {
	j.Targets[ruleIndex] = target
	return j
}

// FullName returns the fully qualified column name
func (j ColumnJob) FullName() string {
	return fmt.Sprintf("%s.%s", j.Table, j.Column)
}

// RelationshipTarget holds the distinct values of a referenced column. The
// set is built once per referenced column and shared by every job that
// checks against it.
type RelationshipTarget struct {
	Table  string
	Column string
	Values map[string]struct{}
	Err    error // Set when the referenced table or column could not be loaded
}

// ColumnResult represents the outcome of validating one column
type ColumnResult struct {
	JobID       string
	Table       string
	Column      string
	Success     bool
	RowsChecked int64
	RowsFailed  int64
	Results     []RuleResult
	Errors      []ErrorRecord
	Warnings    []string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	WorkerID    int
}

// NewColumnResult initializes a column result for a job
func NewColumnResult(job ColumnJob, workerID int) *ColumnResult {
	now := time.Now()
	return &ColumnResult{
		JobID:     job.ID,
		Table:     job.Table,
		Column:    job.Column,
		StartTime: now,
		WorkerID:  workerID,
		Results:   make([]RuleResult, 0),
		Errors:    make([]ErrorRecord, 0),
		Warnings:  make([]string, 0),
	}
}

// Complete marks the column validation as complete and calculates duration
func (r *ColumnResult) Complete(success bool) {
	r.EndTime = time.Now()
	r.Duration = r.EndTime.Sub(r.StartTime)
	r.Success = success
}

// AddRuleResult incorporates a rule evaluation into the column result
func (r *ColumnResult) AddRuleResult(rr RuleResult) {
	r.Results = append(r.Results, rr)
	r.RowsChecked += rr.RowsChecked
	r.RowsFailed += rr.RowsFailed
}

// AddError adds an error to the result
func (r *ColumnResult) AddError(err ErrorRecord) {
	r.Errors = append(r.Errors, err)
	r.Success = false
}

// AddWarning adds a warning to the result
func (r *ColumnResult) AddWarning(warning string) {
	r.Warnings = append(r.Warnings, warning)
}

// ErrorCount returns the number of errors
func (r *ColumnResult) ErrorCount() int {
	return len(r.Errors)
}

// HasErrors checks if any errors occurred
func (r *ColumnResult) HasErrors() bool {
	return len(r.Errors) > 0
}
