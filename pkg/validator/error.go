package validator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Action defines the recommended action after an error
type Action int

const (
	// ActionContinue indicates processing should continue despite the error
	ActionContinue Action = iota
	// ActionRetry indicates the operation should be retried
	ActionRetry
	// ActionSkipRule indicates the current rule should be skipped
	ActionSkipRule
	// ActionSkipTable indicates the current table should be skipped
	ActionSkipTable
	// ActionAbort indicates the entire validation run should be aborted
	ActionAbort
)

// ErrorCategory defines categories of errors during validation
type ErrorCategory int

const (
	// Error categories with increasing severity
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryWarning
	ErrorCategoryTypeCoercion
	ErrorCategoryDataQuality
	ErrorCategoryConfiguration
	ErrorCategoryConnection
	ErrorCategorySystem
	ErrorCategoryCritical
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryWarning:
		return "Warning"
	case ErrorCategoryTypeCoercion:
		return "TypeCoercion"
	case ErrorCategoryDataQuality:
		return "DataQuality"
	case ErrorCategoryConfiguration:
		return "Configuration"
	case ErrorCategoryConnection:
		return "Connection"
	case ErrorCategorySystem:
		return "System"
	case ErrorCategoryCritical:
		return "Critical"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// ErrorRecord represents a single error during validation
type ErrorRecord struct {
	Category    ErrorCategory
	TableName   string
	ColumnName  string
	RuleName    string
	RowKey      string
	SourceValue interface{}
	Error       error
	Message     string // Derived from Error but stored for serialization
	Timestamp   time.Time
	RetryCount  int
	Recoverable bool
}

// NewErrorRecord creates a new error record with current timestamp
func NewErrorRecord(err error, category ErrorCategory) ErrorRecord {
	record := ErrorRecord{
		Category:    category,
		Error:       err,
		Timestamp:   time.Now(),
		Recoverable: category < ErrorCategorySystem,
	}

	if err != nil {
		record.Message = err.Error()
	}

	return record
}

// WithTable adds table information to the error record
func (r ErrorRecord) WithTable(table string) ErrorRecord {
	r.TableName = table
	return r
}

// WithColumn adds column information to the error record
func (r ErrorRecord) WithColumn(columnName string, sourceValue interface{}) ErrorRecord {
	r.ColumnName = columnName
	r.SourceValue = sourceValue
	return r
}

// WithRule adds rule information to the error record
func (r ErrorRecord) WithRule(rule string) ErrorRecord {
	r.RuleName = rule
	return r
}

// WithRow adds the key of the offending row to the error record
func (r ErrorRecord) WithRow(rowKey string) ErrorRecord {
	r.RowKey = rowKey
	return r
}

// WithRetry sets retry information
func (r ErrorRecord) WithRetry(retryCount int) ErrorRecord {
	r.RetryCount = retryCount
	r.Recoverable = r.Category < ErrorCategorySystem && retryCount < 3
	return r
}

// String returns a formatted error message
func (r ErrorRecord) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] ", r.Category))

	if r.TableName != "" {
		sb.WriteString(fmt.Sprintf("Table: %s ", r.TableName))
	}

	if r.ColumnName != "" {
		sb.WriteString(fmt.Sprintf("Column: %s ", r.ColumnName))
	}

	if r.RuleName != "" {
		sb.WriteString(fmt.Sprintf("Rule: %s ", r.RuleName))
	}

	if r.RowKey != "" {
		sb.WriteString(fmt.Sprintf("Row: %s ", r.RowKey))
		if r.SourceValue != nil {
			sb.WriteString(fmt.Sprintf("Value: %v ", r.SourceValue))
		}
	}

	if r.Error != nil {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Error.Error()))
	} else if r.Message != "" {
		sb.WriteString(fmt.Sprintf("Error: %s", r.Message))
	}

	if r.RetryCount > 0 {
		sb.WriteString(fmt.Sprintf(" (Retry: %d)", r.RetryCount))
	}

	return sb.String()
}

// ErrorHandler manages error handling during validation
type ErrorHandler struct {
	logger       *zap.Logger
	errorCounts  map[ErrorCategory]int
	sampleErrors map[ErrorCategory][]ErrorRecord
	tableErrors  map[string]int
	mu           sync.Mutex
	maxSamples   int
}

// NewErrorHandler creates a new error handler
func NewErrorHandler(logger *zap.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger:       logger,
		errorCounts:  make(map[ErrorCategory]int),
		sampleErrors: make(map[ErrorCategory][]ErrorRecord),
		tableErrors:  make(map[string]int),
		maxSamples:   5, // Store up to 5 sample errors per category
	}
}

// CategorizeError determines the category of an error
func (eh *ErrorHandler) CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}

	var category ErrorCategory
	msg := err.Error()

	switch {
	// Connection errors
	case strings.Contains(msg, "connection") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "EOF") ||
		strings.Contains(msg, "broken pipe"):
		category = ErrorCategoryConnection

	// Missing tables and columns are contract problems, not data problems
	case strings.Contains(msg, "not found") ||
		strings.Contains(msg, "does not exist") ||
		strings.Contains(msg, "unknown column"):
		category = ErrorCategoryConfiguration

	// Coercion errors
	case strings.Contains(msg, "convert") ||
		strings.Contains(msg, "parse") ||
		strings.Contains(msg, "coerce"):
		category = ErrorCategoryTypeCoercion

	// System-level errors
	case strings.Contains(msg, "permission") ||
		strings.Contains(msg, "access") ||
		strings.Contains(msg, "disk") ||
		strings.Contains(msg, "memory"):
		category = ErrorCategorySystem

	// Critical errors
	case strings.Contains(msg, "fatal") ||
		strings.Contains(msg, "panic") ||
		strings.Contains(msg, "terminated"):
		category = ErrorCategoryCritical

	// Anything unrecognized is treated as a configuration problem
	default:
		category = ErrorCategoryConfiguration
	}

	// Log the categorization for debugging
	if eh.logger != nil {
		eh.logger.Debug("Categorized error",
			zap.String("error", msg),
			zap.String("category", category.String()))
	}

	return category
}

// HandleError processes an error and determines action
func (eh *ErrorHandler) HandleError(record ErrorRecord) Action {
	eh.RecordError(record)

	// Determine action based on error category and count
	switch record.Category {
	case ErrorCategoryNone, ErrorCategoryWarning:
		return ActionContinue

	case ErrorCategoryTypeCoercion, ErrorCategoryDataQuality:
		// Findings are counted in the report, never escalated
		return ActionContinue

	case ErrorCategoryConfiguration:
		return ActionSkipRule

	case ErrorCategoryConnection:
		if record.RetryCount < 3 {
			// Log connection retry attempt
			if eh.logger != nil {
				eh.logger.Warn("Retrying after connection error",
					zap.String("table", record.TableName),
					zap.Int("retry", record.RetryCount+1),
					zap.String("error", record.Message))
			}
			return ActionRetry
		}
		return ActionSkipTable

	case ErrorCategorySystem, ErrorCategoryCritical:
		// Log critical error
		if eh.logger != nil {
			eh.logger.Error("Critical error during validation",
				zap.String("category", record.Category.String()),
				zap.String("error", record.Message))
		}
		return ActionAbort

	default:
		return ActionContinue
	}
}

// ShouldRetry determines if operation should be retried
func (eh *ErrorHandler) ShouldRetry(record ErrorRecord) bool {
	// Don't retry if we've already hit the retry limit
	if record.RetryCount >= 3 {
		return false
	}

	switch record.Category {
	case ErrorCategoryConnection:
		// Always retry connection errors up to the limit
		return true

	case ErrorCategoryTypeCoercion, ErrorCategoryDataQuality:
		// Findings describe the data, retrying cannot change them
		return false

	case ErrorCategoryConfiguration, ErrorCategorySystem, ErrorCategoryCritical:
		return false

	default:
		return false
	}
}

// RecordError saves an error occurrence
func (eh *ErrorHandler) RecordError(record ErrorRecord) {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	// Increment the category counter
	eh.errorCounts[record.Category]++

	// Save sample errors (up to max samples per category)
	samples := eh.sampleErrors[record.Category]
	if len(samples) < eh.maxSamples {
		eh.sampleErrors[record.Category] = append(samples, record)
	}

	// Track errors by table
	if record.TableName != "" {
		eh.tableErrors[record.TableName]++
	}

	// Log the error
	if eh.logger != nil {
		logLevel := zap.InfoLevel

		// Use appropriate log level based on error category
		switch record.Category {
		case ErrorCategoryWarning:
			logLevel = zap.WarnLevel
		case ErrorCategoryConfiguration, ErrorCategoryConnection:
			logLevel = zap.WarnLevel
		case ErrorCategorySystem, ErrorCategoryCritical:
			logLevel = zap.ErrorLevel
		default:
			logLevel = zap.InfoLevel
		}

		eh.logger.Log(logLevel, "Validation error",
			zap.String("category", record.Category.String()),
			zap.String("table", record.TableName),
			zap.String("column", record.ColumnName),
			zap.String("rule", record.RuleName),
			zap.String("error", record.Message),
			zap.Bool("recoverable", record.Recoverable),
			zap.Int("retryCount", record.RetryCount))
	}
}

// GetErrorSummary generates an error summary report
func (eh *ErrorHandler) GetErrorSummary() map[ErrorCategory]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	// Create a copy of the current error counts
	summary := make(map[ErrorCategory]int)
	for category, count := range eh.errorCounts {
		summary[category] = count
	}

	return summary
}

// GetErrorSamples returns sample errors for each category
func (eh *ErrorHandler) GetErrorSamples() map[ErrorCategory][]ErrorRecord {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	// Create a deep copy of samples to avoid concurrent modification
	samples := make(map[ErrorCategory][]ErrorRecord)
	for category, records := range eh.sampleErrors {
		categorySamples := make([]ErrorRecord, len(records))
		copy(categorySamples, records)
		samples[category] = categorySamples
	}

	return samples
}

// GetTableErrorCounts returns error counts by table
func (eh *ErrorHandler) GetTableErrorCounts() map[string]int {
	eh.mu.Lock()
	defer eh.mu.Unlock()

	// Create a copy of the table error counts
	tableCounts := make(map[string]int)
	for table, count := range eh.tableErrors {
		tableCounts[table] = count
	}

	return tableCounts
}

// WrapError creates a new error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsRetryableError checks if an error should be retried based on its type/message
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	// Check for specific retryable errors
	errorMsg := err.Error()
	return strings.Contains(errorMsg, "connection") ||
		strings.Contains(errorMsg, "timeout") ||
		strings.Contains(errorMsg, "temporary") ||
		strings.Contains(errorMsg, "deadline") ||
		strings.Contains(errorMsg, "try again") ||
		errors.Is(err, context.DeadlineExceeded)
}
