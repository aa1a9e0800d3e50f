package validator

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// TableMetrics tracks metrics for a single table
type TableMetrics struct {
	TableName      string
	StartTime      time.Time
	EndTime        time.Time
	ColumnsChecked int
	RulesPassed    int
	RulesFailed    int
	RulesSkipped   int
	RowsChecked    int64
	RowsFailed     int64
}

// NewTableMetrics creates a new table metrics tracker
func NewTableMetrics(table string) *TableMetrics {
	return &TableMetrics{
		TableName: table,
		StartTime: time.Now(),
	}
}

// Duration returns the total duration of the table validation
func (tm *TableMetrics) Duration() time.Duration {
	if tm.EndTime.IsZero() {
		return time.Since(tm.StartTime)
	}
	return tm.EndTime.Sub(tm.StartTime)
}

// TotalRules returns the total number of rules evaluated for the table
func (tm *TableMetrics) TotalRules() int {
	return tm.RulesPassed + tm.RulesFailed + tm.RulesSkipped
}

// ValidationMetrics tracks metrics for the validation process
type ValidationMetrics struct {
	mu                 sync.Mutex
	logger             *zap.Logger
	StartTime          time.Time
	EndTime            time.Time
	TableMetrics       map[string]*TableMetrics
	SkippedTables      int
	SnapshotsLoaded    int
	SnapshotRowsLoaded int64
	ColumnsChecked     int
	RulesPassed        int
	RulesFailed        int
	RulesSkipped       int
	TotalRowsChecked   int64
	TotalRowsFailed    int64
	ErrorCounts        map[ErrorCategory]int
	WorkerUtilization  map[int]time.Duration
}

// NewValidationMetrics creates a new ValidationMetrics instance
func NewValidationMetrics(logger *zap.Logger) *ValidationMetrics {
	return &ValidationMetrics{
		StartTime:         time.Now(),
		TableMetrics:      make(map[string]*TableMetrics),
		ErrorCounts:       make(map[ErrorCategory]int),
		WorkerUtilization: make(map[int]time.Duration),
		logger:            logger,
	}
}

// StartTable begins tracking metrics for a table
func (vm *ValidationMetrics) StartTable(table string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	tm := NewTableMetrics(table)
	vm.TableMetrics[table] = tm

	if vm.logger != nil {
		vm.logger.Info("Started table validation",
			zap.String("table", table),
			zap.Time("startTime", tm.StartTime))
	}
}

// EndTable completes tracking metrics for a table
func (vm *ValidationMetrics) EndTable(table string) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	if tm, ok := vm.TableMetrics[table]; ok {
		tm.EndTime = time.Now()

		if vm.logger != nil {
			vm.logger.Info("Completed table validation",
				zap.String("table", table),
				zap.Duration("duration", tm.Duration()),
				zap.Int("rulesPassed", tm.RulesPassed),
				zap.Int("rulesFailed", tm.RulesFailed),
				zap.Int("rulesSkipped", tm.RulesSkipped),
				zap.Int64("rowsChecked", tm.RowsChecked))
		}
	}
}

// RecordSnapshotLoad records a successfully loaded table snapshot
func (vm *ValidationMetrics) RecordSnapshotLoad(table string, rows int64, duration time.Duration) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.SnapshotsLoaded++
	vm.SnapshotRowsLoaded += rows

	if vm.logger != nil {
		vm.logger.Info("Snapshot loaded",
			zap.String("table", table),
			zap.Int64("rows", rows),
			zap.Duration("duration", duration))
	}
}

// RecordColumnResult records metrics for a completed column validation
func (vm *ValidationMetrics) RecordColumnResult(result ColumnResult) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	// Update global counters
	vm.ColumnsChecked++
	vm.TotalRowsChecked += result.RowsChecked
	vm.TotalRowsFailed += result.RowsFailed

	passed, failed, skipped := 0, 0, 0
	for _, rr := range result.Results {
		switch {
		case rr.Skipped:
			skipped++
		case rr.Passed:
			passed++
		default:
			failed++
		}
	}
	vm.RulesPassed += passed
	vm.RulesFailed += failed
	vm.RulesSkipped += skipped

	// Record errors
	for _, err := range result.Errors {
		vm.RecordError(err.Category)
	}

	// Update table-specific metrics
	tm, exists := vm.TableMetrics[result.Table]
	if exists {
		tm.ColumnsChecked++
		tm.RulesPassed += passed
		tm.RulesFailed += failed
		tm.RulesSkipped += skipped
		tm.RowsChecked += result.RowsChecked
		tm.RowsFailed += result.RowsFailed
	}

	// Record worker utilization
	vm.WorkerUtilization[result.WorkerID] += result.Duration

	// Log result if logger is available
	if vm.logger != nil {
		vm.logger.Info("Column validation completed",
			zap.String("table", result.Table),
			zap.String("column", result.Column),
			zap.Bool("success", result.Success),
			zap.Int("rulesPassed", passed),
			zap.Int("rulesFailed", failed),
			zap.Int64("rowsChecked", result.RowsChecked),
			zap.Duration("duration", result.Duration),
			zap.Int("worker", result.WorkerID))
	}
}

// RecordSkippedTable marks a table whose rules could not be evaluated
func (vm *ValidationMetrics) RecordSkippedTable(table, reason string, ruleCount int) {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.SkippedTables++
	vm.RulesSkipped += ruleCount

	if vm.logger != nil {
		vm.logger.Info("Skipped table validation",
			zap.String("table", table),
			zap.String("reason", reason),
			zap.Int("rulesSkipped", ruleCount))
	}
}

// RecordError increments the count for a specific error category
func (vm *ValidationMetrics) RecordError(category ErrorCategory) {
	// No lock needed as this is always called from within a locked method
	vm.ErrorCounts[category]++
}

// Complete marks the validation process as complete
func (vm *ValidationMetrics) Complete() {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	vm.EndTime = time.Now()

	// Log completion if logger is available
	if vm.logger != nil {
		duration := vm.EndTime.Sub(vm.StartTime)
		vm.logger.Info("Validation process completed",
			zap.Duration("totalDuration", duration),
			zap.Int("columnsChecked", vm.ColumnsChecked),
			zap.Int("rulesPassed", vm.RulesPassed),
			zap.Int("rulesFailed", vm.RulesFailed),
			zap.Int("rulesSkipped", vm.RulesSkipped),
			zap.Int64("rowsChecked", vm.TotalRowsChecked),
			zap.Float64("throughput", vm.CalculateThroughput()))
	}
}

// CalculateThroughput calculates the row checks/second throughput
func (vm *ValidationMetrics) CalculateThroughput() float64 {
	duration := vm.Duration().Seconds()
	if duration <= 0 {
		return 0
	}
	return float64(vm.TotalRowsChecked) / duration
}

// Duration returns the total duration of the validation process
func (vm *ValidationMetrics) Duration() time.Duration {
	if vm.EndTime.IsZero() {
		return time.Since(vm.StartTime)
	}
	return vm.EndTime.Sub(vm.StartTime)
}

// GetWorkerEfficiency calculates worker efficiency metrics
func (vm *ValidationMetrics) GetWorkerEfficiency() map[int]float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	efficiency := make(map[int]float64)
	totalDuration := vm.Duration()

	if totalDuration <= 0 {
		return efficiency
	}

	for workerID, duration := range vm.WorkerUtilization {
		efficiency[workerID] = float64(duration) / float64(totalDuration)
	}

	return efficiency
}

// GetErrorDistribution returns error distribution by category
func (vm *ValidationMetrics) GetErrorDistribution() map[ErrorCategory]float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	distribution := make(map[ErrorCategory]float64)
	totalErrors := 0

	// Calculate total errors
	for _, count := range vm.ErrorCounts {
		totalErrors += count
	}

	if totalErrors == 0 {
		return distribution
	}

	// Calculate percentage for each category
	for category, count := range vm.ErrorCounts {
		distribution[category] = float64(count) / float64(totalErrors) * 100
	}

	return distribution
}

// GetTablePassRates calculates the rule pass rate for each table
func (vm *ValidationMetrics) GetTablePassRates() map[string]float64 {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	rates := make(map[string]float64)

	for table, metrics := range vm.TableMetrics {
		totalRules := metrics.TotalRules()
		if totalRules == 0 {
			rates[table] = 0
			continue
		}

		rates[table] = float64(metrics.RulesPassed) / float64(totalRules) * 100
	}

	return rates
}

// formatDuration formats a duration to a human-readable string
func formatDuration(d time.Duration) string {
	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	} else if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%.2fs", d.Seconds())
}

// GenerateMetricsReport creates a detailed metrics report
func (vm *ValidationMetrics) GenerateMetricsReport() string {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	totalRules := vm.RulesPassed + vm.RulesFailed + vm.RulesSkipped

	report := fmt.Sprintf(`
Validation Metrics Report
=========================
Duration:                %s
Start Time:              %s
End Time:                %s

Rules Summary
-------------
Total Rules:             %d
Passed Rules:            %d (%.1f%%)
Failed Rules:            %d (%.1f%%)
Skipped Rules:           %d (%.1f%%)

Data Summary
------------
Snapshots Loaded:        %d
Snapshot Rows Loaded:    %d
Columns Checked:         %d
Row Checks Performed:    %d
Row Checks Failed:       %d
Average Throughput:      %.2f checks/sec
`,
		formatDuration(vm.Duration()),
		vm.StartTime.Format(time.RFC3339),
		vm.EndTime.Format(time.RFC3339),

		totalRules,
		vm.RulesPassed, vm.getPercentage(float64(vm.RulesPassed), float64(totalRules)),
		vm.RulesFailed, vm.getPercentage(float64(vm.RulesFailed), float64(totalRules)),
		vm.RulesSkipped, vm.getPercentage(float64(vm.RulesSkipped), float64(totalRules)),

		vm.SnapshotsLoaded,
		vm.SnapshotRowsLoaded,
		vm.ColumnsChecked,
		vm.TotalRowsChecked,
		vm.TotalRowsFailed,
		vm.CalculateThroughput(),
	)

	// Add table details
	report += "\nTable Details\n-------------\n"
	for tableName, metrics := range vm.TableMetrics {
		passRate := vm.getPercentage(float64(metrics.RulesPassed), float64(metrics.TotalRules()))
		report += fmt.Sprintf("- %s: %d rules, %.1f%% passed, %s, %d rows checked\n",
			tableName,
			metrics.TotalRules(),
			passRate,
			formatDuration(metrics.Duration()),
			metrics.RowsChecked)
	}

	// Add error distribution
	if len(vm.ErrorCounts) > 0 {
		report += "\nError Distribution\n------------------\n"
		totalErrors := 0
		for _, count := range vm.ErrorCounts {
			totalErrors += count
		}

		for category, count := range vm.ErrorCounts {
			percentage := vm.getPercentage(float64(count), float64(totalErrors))
			report += fmt.Sprintf("- %s: %d (%.1f%%)\n", category.String(), count, percentage)
		}
	}

	// Add worker efficiency
	report += "\nWorker Efficiency\n-----------------\n"
	totalDuration := vm.Duration()
	for workerID, duration := range vm.WorkerUtilization {
		if totalDuration <= 0 {
			continue
		}
		report += fmt.Sprintf("- Worker %d: %.1f%% active time\n",
			workerID, float64(duration)/float64(totalDuration)*100)
	}

	return report
}

// getPercentage safely calculates a percentage, avoiding division by zero
func (vm *ValidationMetrics) getPercentage(value, total float64) float64 {
	if total == 0 {
		return 0
	}
	return (value / total) * 100
}

// ToJSON serializes metrics to JSON
func (vm *ValidationMetrics) ToJSON() ([]byte, error) {
	vm.mu.Lock()
	rulesPassed := vm.RulesPassed
	rulesFailed := vm.RulesFailed
	rulesSkipped := vm.RulesSkipped
	columnsChecked := vm.ColumnsChecked
	rowsChecked := vm.TotalRowsChecked
	rowsFailed := vm.TotalRowsFailed
	duration := formatDuration(vm.Duration())
	throughput := vm.CalculateThroughput()
	vm.mu.Unlock()

	return json.Marshal(struct {
		Duration          string                    `json:"duration"`
		ColumnsChecked    int                       `json:"columnsChecked"`
		RulesPassed       int                       `json:"rulesPassed"`
		RulesFailed       int                       `json:"rulesFailed"`
		RulesSkipped      int                       `json:"rulesSkipped"`
		RowsChecked       int64                     `json:"rowsChecked"`
		RowsFailed        int64                     `json:"rowsFailed"`
		Throughput        float64                   `json:"throughput"`
		TablePassRates    map[string]float64        `json:"tablePassRates"`
		ErrorDistribution map[ErrorCategory]float64 `json:"errorDistribution"`
	}{
		Duration:          duration,
		ColumnsChecked:    columnsChecked,
		RulesPassed:       rulesPassed,
		RulesFailed:       rulesFailed,
		RulesSkipped:      rulesSkipped,
		RowsChecked:       rowsChecked,
		RowsFailed:        rowsFailed,
		Throughput:        throughput,
		TablePassRates:    vm.GetTablePassRates(),
		ErrorDistribution: vm.GetErrorDistribution(),
	})
}
