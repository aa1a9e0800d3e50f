package validator

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-contract/pkg/contract"
	"github.com/David-Botos/data-contract/pkg/snapshot"
)

// Validator orchestrates the contract validation process. Snapshots are
// loaded up front, one job is built per contracted column, and a worker
// pool evaluates the jobs concurrently. Workers never touch the source
// system, so a run makes exactly one read per table regardless of how
// many rules reference it.
type Validator struct {
	reader        snapshot.TableReader
	checker       *RuleChecker
	errorHandler  *ErrorHandler
	metrics       *ValidationMetrics
	logger        *zap.Logger
	workers       []*Worker
	workerCount   int
	retryAttempts int
	retryDelay    time.Duration
}

// NewValidator creates a new validator
func NewValidator(reader snapshot.TableReader, logger *zap.Logger) *Validator {
	// Determine worker count based on system resources
	workerCount := calculateOptimalWorkerCount()

	// Create error handler
	errorHandler := NewErrorHandler(logger)

	// Create rule checker
	checker := NewRuleChecker(logger)

	// Create metrics collector
	metrics := NewValidationMetrics(logger)

	v := &Validator{
		reader:        reader,
		checker:       checker,
		errorHandler:  errorHandler,
		metrics:       metrics,
		logger:        logger,
		workerCount:   workerCount,
		retryAttempts: 2,
		retryDelay:    3 * time.Second,
	}

	// Create workers
	v.createWorkers()

	return v
}

// createWorkers initializes the worker pool
func (v *Validator) createWorkers() {
	v.workers = make([]*Worker, v.workerCount)
	for i := 0; i < v.workerCount; i++ {
		v.workers[i] = NewWorker(i, v.checker, v.errorHandler, v.logger)
	}
}

// WithWorkerCount sets the number of worker goroutines
func (v *Validator) WithWorkerCount(count int) *Validator {
	if count > 0 {
		v.workerCount = count
		v.createWorkers()
	}
	return v
}

// WithSampleLimit sets how many failing row keys each rule keeps
func (v *Validator) WithSampleLimit(limit int) *Validator {
	v.checker.WithSampleLimit(limit)
	return v
}

// WithRetry configures how snapshot loads are retried on transient failures
func (v *Validator) WithRetry(attempts int, delay time.Duration) *Validator {
	if attempts >= 0 {
		v.retryAttempts = attempts
	}
	if delay > 0 {
		v.retryDelay = delay
	}
	return v
}

// Validate evaluates every rule in the contract set and returns the report.
// Tables that cannot be loaded surface as configuration errors while the
// remaining tables are still validated. A cancelled context discards any
// partial results and returns the context error.
func (v *Validator) Validate(ctx context.Context, set *contract.ContractSet) (*ValidationReport, error) {
	if err := set.Validate(); err != nil {
		return nil, fmt.Errorf("invalid contract set: %w", err)
	}

	v.logger.Info("Starting contract validation",
		zap.Strings("tables", set.TableNames()),
		zap.Int("rules", set.RuleCount()),
		zap.Int("workers", v.workerCount))

	report := NewValidationReport()

	// Load every table the contract set touches, relationship targets
	// included, before any job is dispatched
	snapshots, loadErrors := v.loadSnapshots(ctx, set)
	if err := ctx.Err(); err != nil {
		v.logger.Warn("Validation cancelled while loading snapshots")
		return nil, err
	}

	// Build each referenced column's value set once, no matter how many
	// rules point at it
	targets := v.resolveTargets(set, snapshots, loadErrors)

	// Build one job per contracted column
	jobs := make([]ColumnJob, 0)
	for _, tc := range set.Tables {
		if loadErr, failed := loadErrors[tc.Table]; failed {
			v.skipTable(report, tc, loadErr)
			continue
		}

		snap := snapshots[tc.Table]
		v.metrics.StartTable(tc.Table)
		for _, col := range tc.Columns {
			jobs = append(jobs, v.buildJob(tc, col, snap, targets))
		}
	}

	if len(jobs) > 0 {
		if err := v.dispatch(ctx, jobs, report); err != nil {
			return nil, err
		}
	}

	for _, tc := range set.Tables {
		if _, failed := loadErrors[tc.Table]; !failed {
			v.metrics.EndTable(tc.Table)
		}
	}

	// Finalize the report
	report.Complete()
	v.metrics.Complete()

	v.logger.Info("Contract validation completed",
		zap.String("runID", report.RunID),
		zap.Int("rulesTotal", report.RulesTotal),
		zap.Int("rulesPassed", report.RulesPassed),
		zap.Int("rulesFailed", report.RulesFailed),
		zap.Int("rulesSkipped", report.RulesSkipped),
		zap.Bool("passed", report.Passed()),
		zap.Duration("duration", report.Duration))

	return report, nil
}

// ValidateTable validates a single table from the contract set
func (v *Validator) ValidateTable(ctx context.Context, set *contract.ContractSet, table string) (*ValidationReport, error) {
	v.logger.Info("Starting single table validation",
		zap.String("table", table))

	subset, err := set.FilterTables([]string{table})
	if err != nil {
		return nil, err
	}

	return v.Validate(ctx, subset)
}

// GetMetrics returns the validation metrics
func (v *Validator) GetMetrics() *ValidationMetrics {
	return v.metrics
}

// GetErrorSummary returns a summary of errors by category
func (v *Validator) GetErrorSummary() map[ErrorCategory]int {
	return v.errorHandler.GetErrorSummary()
}

// GenerateReport generates a comprehensive metrics report
func (v *Validator) GenerateReport() string {
	return v.metrics.GenerateMetricsReport()
}

// Helper methods

// loadSnapshots reads every table named by the contract set, contract
// tables and relationship targets alike. Failures are collected per table
// rather than aborting the run.
func (v *Validator) loadSnapshots(ctx context.Context, set *contract.ContractSet) (map[string]*snapshot.Snapshot, map[string]error) {
	seen := make(map[string]bool)
	names := make([]string, 0, len(set.Tables))
	for _, name := range append(set.TableNames(), set.ReferencedTables()...) {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
	}

	snapshots := make(map[string]*snapshot.Snapshot, len(names))
	loadErrors := make(map[string]error)

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			loadErrors[name] = err
			continue
		}

		snap, err := v.loadSnapshot(ctx, name)
		if err != nil {
			v.logger.Error("Failed to load table snapshot",
				zap.String("table", name),
				zap.Error(err))
			loadErrors[name] = err
			continue
		}

		snapshots[name] = snap
	}

	return snapshots, loadErrors
}

// loadSnapshot reads one table, retrying transient failures
func (v *Validator) loadSnapshot(ctx context.Context, table string) (*snapshot.Snapshot, error) {
	exists, err := v.reader.HasTable(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	if !exists {
		return nil, fmt.Errorf("table %s does not exist in the source", table)
	}

	start := time.Now()

	var snap *snapshot.Snapshot
	for attempt := 0; ; attempt++ {
		snap, err = v.reader.ReadTable(ctx, table)
		if err == nil {
			break
		}

		if attempt >= v.retryAttempts || !IsRetryableError(err) {
			return nil, fmt.Errorf("failed to read table %s: %w", table, err)
		}

		v.logger.Warn("Retrying table read",
			zap.String("table", table),
			zap.Int("attempt", attempt+1),
			zap.Error(err))

		select {
		case <-time.After(v.retryDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	v.metrics.RecordSnapshotLoad(table, int64(snap.RowCount()), time.Since(start))
	return snap, nil
}

// resolveTargets builds the distinct-value set for each referenced column.
// A target that cannot be resolved carries the reason instead of a value
// set, so the rules pointing at it skip with a configuration error.
func (v *Validator) resolveTargets(set *contract.ContractSet, snapshots map[string]*snapshot.Snapshot, loadErrors map[string]error) map[string]RelationshipTarget {
	targets := make(map[string]RelationshipTarget)

	for _, tc := range set.Tables {
		for _, col := range tc.Columns {
			for _, rule := range col.Rules {
				if rule.Kind != contract.RuleRelationship {
					continue
				}

				key := fmt.Sprintf("%s.%s", rule.ToTable, rule.ToColumn)
				if _, done := targets[key]; done {
					continue
				}

				target := RelationshipTarget{Table: rule.ToTable, Column: rule.ToColumn}
				if targetSnap, ok := snapshots[rule.ToTable]; ok {
					values, err := v.checker.BuildValueSet(targetSnap, rule.ToColumn)
					if err != nil {
						target.Err = err
					} else {
						target.Values = values
					}
				} else if loadErr, failed := loadErrors[rule.ToTable]; failed {
					target.Err = fmt.Errorf("failed to load referenced table %s: %w", rule.ToTable, loadErr)
				} else {
					target.Err = fmt.Errorf("referenced table %s was not loaded", rule.ToTable)
				}

				targets[key] = target
			}
		}
	}

	return targets
}

// buildJob assembles the job for one column, attaching resolved
// relationship targets by rule index
func (v *Validator) buildJob(tc contract.TableContract, col contract.ColumnContract, snap *snapshot.Snapshot, targets map[string]RelationshipTarget) ColumnJob {
	job := NewColumnJob(tc.Table, col, tc.KeyColumn, snap)

	for i, rule := range col.Rules {
		if rule.Kind != contract.RuleRelationship {
			continue
		}

		key := fmt.Sprintf("%s.%s", rule.ToTable, rule.ToColumn)
		if target, ok := targets[key]; ok {
			job = job.WithTarget(i, target)
		}

		// Relationship scans carry the value-set lookups, run them first
		job = job.WithPriority(2)
	}

	return job
}

// skipTable records skipped results for every rule of a table that could
// not be loaded
func (v *Validator) skipTable(report *ValidationReport, tc contract.TableContract, loadErr error) {
	v.logger.Error("Skipping table validation",
		zap.String("table", tc.Table),
		zap.Error(loadErr))

	ruleCount := 0
	for _, col := range tc.Columns {
		for _, rule := range col.Rules {
			rr := newRuleResult(tc.Table, col.Name, rule.String())
			rr.markSkipped(fmt.Errorf("failed to load table %s: %w", tc.Table, loadErr))
			report.AddResult(rr)
			ruleCount++
		}
	}

	report.AddConfigError(fmt.Sprintf("failed to load table %s: %v", tc.Table, loadErr))
	v.metrics.RecordSkippedTable(tc.Table, loadErr.Error(), ruleCount)

	record := NewErrorRecord(loadErr, ErrorCategoryConfiguration).WithTable(tc.Table)
	v.errorHandler.RecordError(record)
}

// dispatch runs the jobs through the worker pool and folds the results
// into the report
func (v *Validator) dispatch(ctx context.Context, jobs []ColumnJob, report *ValidationReport) error {
	// Buffer size is 10x worker count
	jobQueue := make(chan ColumnJob, v.workerCount*10)
	resultQueue := make(chan ColumnResult, v.workerCount*10)

	// Start result processor
	done := make(chan struct{})
	go v.processResults(resultQueue, report, done)

	// Start workers
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	var wg sync.WaitGroup
	for i := 0; i < v.workerCount; i++ {
		wg.Add(1)
		go func(worker *Worker) {
			defer wg.Done()
			worker.Start(workerCtx, jobQueue, resultQueue)
		}(v.workers[i])
	}

	// Submit jobs to the queue
	if err := v.submitJobs(ctx, jobs, jobQueue); err != nil {
		v.logger.Error("Error submitting jobs", zap.Error(err))
	}
	close(jobQueue)

	// Wait for all jobs to complete or the context to be cancelled
	v.logger.Info("Waiting for all jobs to complete")
	allJobsComplete := make(chan struct{})
	go func() {
		wg.Wait()
		close(allJobsComplete)
	}()

	cancelled := false
	select {
	case <-ctx.Done():
		v.logger.Warn("Validation cancelled by context")
		cancelled = true
		cancelWorkers()
		<-allJobsComplete
	case <-allJobsComplete:
		v.logger.Info("All workers have completed")
	}

	// Wait for the result processor to finish
	close(resultQueue)
	<-done

	// A cancelled run discards whatever the workers managed to collect
	if cancelled {
		return ctx.Err()
	}

	return nil
}

// submitJobs sends jobs to the queue in priority order
func (v *Validator) submitJobs(ctx context.Context, jobs []ColumnJob, queue chan<- ColumnJob) error {
	sorted := make([]ColumnJob, len(jobs))
	copy(sorted, jobs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority > sorted[j].Priority
	})

	for _, job := range sorted {
		select {
		case queue <- job:
			v.logger.Debug("Submitted job to queue",
				zap.String("table", job.Table),
				zap.String("column", job.Column),
				zap.String("jobID", job.ID))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return nil
}

// processResults folds worker results into the report as they arrive
func (v *Validator) processResults(results <-chan ColumnResult, report *ValidationReport, done chan<- struct{}) {
	defer close(done)

	for result := range results {
		// Update metrics
		v.metrics.RecordColumnResult(result)

		for _, rr := range result.Results {
			report.AddResult(rr)
		}

		// Surface configuration problems on the report
		for _, record := range result.Errors {
			if record.Category == ErrorCategoryConfiguration {
				report.AddConfigError(record.Message)
			}
		}

		if result.Success {
			v.logger.Info("Column validation succeeded",
				zap.String("table", result.Table),
				zap.String("column", result.Column),
				zap.Int64("rowsChecked", result.RowsChecked),
				zap.Duration("duration", result.Duration))
		} else {
			v.logger.Warn("Column validation failed",
				zap.String("table", result.Table),
				zap.String("column", result.Column),
				zap.Int64("rowsFailed", result.RowsFailed),
				zap.Int("errors", len(result.Errors)),
				zap.Duration("duration", result.Duration))
		}
	}
}

// calculateOptimalWorkerCount determines the optimal number of worker
// goroutines based on available system resources
func calculateOptimalWorkerCount() int {
	// Get number of logical CPUs
	numCPU := runtime.NumCPU()

	// Get available memory
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	availableMemGB := float64(memStats.Sys-memStats.HeapAlloc) / 1024 / 1024 / 1024

	// Workers are pure compute over in-memory snapshots, so CPU is the
	// primary constraint - use 75% of available CPUs
	cpuBasedWorkers := int(math.Ceil(float64(numCPU) * 0.75))

	// Relationship value sets are shared between jobs but scan
	// temporaries are not; assume each worker needs ~200MB
	memoryBasedWorkers := int(availableMemGB * 5) // 5 workers per GB

	// Take the minimum of all constraints
	workerCount := min(
		cpuBasedWorkers,
		memoryBasedWorkers,
	)

	// Ensure at least 2 workers and not more than 12
	if workerCount < 2 {
		workerCount = 2
	} else if workerCount > 12 {
		workerCount = 12
	}

	return workerCount
}

// min returns the minimum value among the provided integers
func min(values ...int) int {
	if len(values) == 0 {
		return 0
	}

	result := values[0]
	for _, v := range values[1:] {
		if v < result {
			result = v
		}
	}

	return result
}
