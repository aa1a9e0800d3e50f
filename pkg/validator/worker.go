package validator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-contract/pkg/contract"
	"github.com/David-Botos/data-contract/pkg/snapshot"
)

// WorkerState represents the current state of a worker
type WorkerState string

const (
	WorkerStateIdle      WorkerState = "idle"
	WorkerStateWorking   WorkerState = "working"
	WorkerStatePaused    WorkerState = "paused"
	WorkerStateCompleted WorkerState = "completed"
	WorkerStateError     WorkerState = "error"
)

// Worker handles the execution of column validation jobs. Workers only
// evaluate rules against snapshots that were loaded before dispatch, so they
// never hold a database connection.
type Worker struct {
	ID               int
	checker          *RuleChecker
	errorHandler     *ErrorHandler
	logger           *zap.Logger
	state            WorkerState
	currentJob       *ColumnJob
	stateLock        sync.RWMutex
	lastCompletedJob *ColumnResult
}

// NewWorker creates a new worker
func NewWorker(id int, checker *RuleChecker, errorHandler *ErrorHandler, logger *zap.Logger) *Worker {
	return &Worker{
		ID:           id,
		checker:      checker,
		errorHandler: errorHandler,
		logger:       logger.With(zap.Int("workerID", id)),
		state:        WorkerStateIdle,
	}
}

// GetState returns the current state of the worker
func (w *Worker) GetState() WorkerState {
	w.stateLock.RLock()
	defer w.stateLock.RUnlock()
	return w.state
}

// setState updates the worker state
func (w *Worker) setState(state WorkerState) {
	w.stateLock.Lock()
	defer w.stateLock.Unlock()

	prevState := w.state
	w.state = state

	if prevState != state {
		w.logger.Info("Worker state changed",
			zap.String("from", string(prevState)),
			zap.String("to", string(state)))
	}
}

// GetCurrentJob returns the job currently being processed
func (w *Worker) GetCurrentJob() *ColumnJob {
	w.stateLock.RLock()
	defer w.stateLock.RUnlock()
	return w.currentJob
}

// setCurrentJob updates the current job
func (w *Worker) setCurrentJob(job *ColumnJob) {
	w.stateLock.Lock()
	defer w.stateLock.Unlock()
	w.currentJob = job
}

// clearCurrentJob clears the current job
func (w *Worker) clearCurrentJob() {
	w.stateLock.Lock()
	defer w.stateLock.Unlock()
	w.currentJob = nil
}

// GetLastCompletedJob returns the result of the most recently completed job
func (w *Worker) GetLastCompletedJob() *ColumnResult {
	w.stateLock.RLock()
	defer w.stateLock.RUnlock()
	return w.lastCompletedJob
}

// setLastCompletedJob records the most recently completed result
func (w *Worker) setLastCompletedJob(result *ColumnResult) {
	w.stateLock.Lock()
	defer w.stateLock.Unlock()
	w.lastCompletedJob = result
}

// Start begins the worker processing loop
func (w *Worker) Start(ctx context.Context, jobs <-chan ColumnJob, results chan<- ColumnResult) {
	w.setState(WorkerStateWorking)
	w.logger.Info("Worker started")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Worker stopping due to context cancellation")
			w.setState(WorkerStateCompleted)
			return

		case job, ok := <-jobs:
			if !ok {
				// Channel closed, no more jobs
				w.logger.Info("Worker stopping due to closed job channel")
				w.setState(WorkerStateCompleted)
				return
			}

			w.logger.Info("Received job",
				zap.String("table", job.Table),
				zap.String("column", job.Column),
				zap.Int("rules", len(job.Rules)))

			// Process the job
			result := w.ProcessJob(ctx, job)

			// Send the result
			select {
			case results <- result:
				// Result sent successfully
			case <-ctx.Done():
				w.logger.Warn("Context cancelled while sending result",
					zap.String("table", job.Table),
					zap.String("column", job.Column))
				w.setState(WorkerStateCompleted)
				return
			}
		}
	}
}

// ProcessJob validates a single column against its rules
func (w *Worker) ProcessJob(ctx context.Context, job ColumnJob) ColumnResult {
	w.setCurrentJob(&job)
	w.setState(WorkerStateWorking)

	// Initialize the result
	result := NewColumnResult(job, w.ID)
	startTime := time.Now()

	w.logger.Info("Starting column validation",
		zap.String("table", job.Table),
		zap.String("column", job.Column),
		zap.Int("rules", len(job.Rules)))

	// Process the job
	success := w.validateColumn(ctx, job, result)

	// Complete the result
	result.Complete(success)
	result.Duration = time.Since(startTime)

	// Log completion
	if success {
		w.logger.Info("Column validation completed successfully",
			zap.String("table", job.Table),
			zap.String("column", job.Column),
			zap.Int64("rowsChecked", result.RowsChecked),
			zap.Duration("duration", result.Duration))
	} else {
		w.logger.Warn("Column validation found problems",
			zap.String("table", job.Table),
			zap.String("column", job.Column),
			zap.Int64("rowsFailed", result.RowsFailed),
			zap.Int("errors", len(result.Errors)),
			zap.Duration("duration", result.Duration))
	}

	w.clearCurrentJob()
	w.setState(WorkerStateIdle)
	w.setLastCompletedJob(result)

	return *result
}

// validateColumn evaluates every rule of the job against its column
func (w *Worker) validateColumn(ctx context.Context, job ColumnJob, result *ColumnResult) bool {
	snap := job.Snapshot

	// A column named by the contract but absent from the snapshot skips all
	// of its rules and surfaces a configuration error
	if _, ok := snap.ColumnName(job.Column); !ok {
		err := fmt.Errorf("column %s not found in table %s", job.Column, job.Table)
		errorRecord := NewErrorRecord(err, ErrorCategoryConfiguration).
			WithTable(job.Table).
			WithColumn(job.Column, nil)
		result.AddError(errorRecord)
		w.errorHandler.RecordError(errorRecord)

		for _, rule := range job.Rules {
			rr := newRuleResult(job.Table, job.Column, rule.String())
			rr.markSkipped(err)
			result.AddRuleResult(rr)
		}
		return false
	}

	// Resolve the key column to its stored spelling, falling back to
	// positional row keys when it is absent
	keyColumn := job.KeyColumn
	if keyColumn != "" {
		resolved, ok := snap.ColumnName(keyColumn)
		if !ok {
			result.AddWarning(fmt.Sprintf("key column %s not found in table %s, using row positions",
				keyColumn, job.Table))
			keyColumn = ""
		} else {
			keyColumn = resolved
		}
	}

	success := true
	for i, rule := range job.Rules {
		// Check if context is cancelled between rules
		select {
		case <-ctx.Done():
			errorRecord := NewErrorRecord(ctx.Err(), ErrorCategorySystem).
				WithTable(job.Table).
				WithColumn(job.Column, nil)
			result.AddError(errorRecord)
			w.errorHandler.RecordError(errorRecord)
			return false
		default:
			// Continue processing
		}

		rr := w.evaluateRule(snap, job, keyColumn, i, rule)
		result.AddRuleResult(rr)

		if rr.Skipped {
			success = false
			err := fmt.Errorf("rule %s on %s.%s skipped: %s", rr.Rule, job.Table, job.Column, rr.Error)
			errorRecord := NewErrorRecord(err, ErrorCategoryConfiguration).
				WithTable(job.Table).
				WithColumn(job.Column, nil).
				WithRule(rr.Rule)
			result.AddError(errorRecord)
			w.errorHandler.RecordError(errorRecord)
			continue
		}

		// One error record per failed rule; the failing rows themselves are
		// counted in the rule result
		if rr.RowsFailed > 0 {
			success = false
			category := ErrorCategoryDataQuality
			if rule.Kind == contract.RuleType {
				category = ErrorCategoryTypeCoercion
			}

			err := fmt.Errorf("%d of %d rows failed rule %s", rr.RowsFailed, rr.RowsChecked, rr.Rule)
			errorRecord := NewErrorRecord(err, category).
				WithTable(job.Table).
				WithColumn(job.Column, nil).
				WithRule(rr.Rule)
			if len(rr.SampleKeys) > 0 {
				errorRecord = errorRecord.WithRow(rr.SampleKeys[0])
			}
			result.AddError(errorRecord)
			w.errorHandler.RecordError(errorRecord)
		}
	}

	return success
}

// evaluateRule dispatches a single rule to the matching checker
func (w *Worker) evaluateRule(snap *snapshot.Snapshot, job ColumnJob, keyColumn string, index int, rule contract.Rule) RuleResult {
	switch rule.Kind {
	case contract.RuleNotNull:
		return w.checker.CheckNotNull(snap, job.Column, keyColumn, rule)

	case contract.RuleAcceptedValues:
		return w.checker.CheckAcceptedValues(snap, job.Column, keyColumn, rule)

	case contract.RuleType:
		return w.checker.CheckType(snap, job.Column, keyColumn, rule)

	case contract.RuleLengthBetween:
		return w.checker.CheckLengthBetween(snap, job.Column, keyColumn, rule)

	case contract.RuleRelationship:
		target, ok := job.Targets[index]
		if !ok {
			target = RelationshipTarget{
				Table:  rule.ToTable,
				Column: rule.ToColumn,
				Err:    fmt.Errorf("no resolved target for %s.%s", rule.ToTable, rule.ToColumn),
			}
		}
		return w.checker.CheckRelationship(snap, job.Column, keyColumn, rule, target)

	default:
		rr := newRuleResult(job.Table, job.Column, rule.String())
		rr.markSkipped(fmt.Errorf("unknown rule kind %s", rule.Kind))
		return rr
	}
}
