// pkg/publisher/publisher.go
package publisher

import (
	"context"
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/David-Botos/data-contract/pkg/validator"
)

// Publisher delivers a finished validation report to a destination
type Publisher interface {
	Publish(ctx context.Context, report *validator.ValidationReport) error
}

// LogPublisher writes the report outcome to the application log
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a log publisher
func NewLogPublisher(logger *zap.Logger) (*LogPublisher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &LogPublisher{logger: logger}, nil
}

// Publish logs the run totals plus one line per failed or skipped rule
func (p *LogPublisher) Publish(ctx context.Context, report *validator.ValidationReport) error {
	p.logger.Info("Validation report",
		zap.String("runID", report.RunID),
		zap.Strings("tables", report.Tables),
		zap.Int("rulesTotal", report.RulesTotal),
		zap.Int("rulesPassed", report.RulesPassed),
		zap.Int("rulesFailed", report.RulesFailed),
		zap.Int("rulesSkipped", report.RulesSkipped),
		zap.Int64("rowsChecked", report.RowsChecked),
		zap.Int64("rowsFailed", report.RowsFailed),
		zap.Bool("passed", report.Passed()))

	for _, result := range report.FailedResults() {
		p.logger.Warn("Rule failed",
			zap.String("table", result.Table),
			zap.String("column", result.Column),
			zap.String("rule", result.Rule),
			zap.Int64("rowsFailed", result.RowsFailed),
			zap.Strings("sampleKeys", result.SampleKeys))
	}

	for _, result := range report.SkippedResults() {
		p.logger.Warn("Rule skipped",
			zap.String("table", result.Table),
			zap.String("column", result.Column),
			zap.String("rule", result.Rule),
			zap.String("reason", result.Error))
	}

	return nil
}

// FilePublisher writes the JSON form of the report to a file
type FilePublisher struct {
	path   string
	logger *zap.Logger
}

// NewFilePublisher creates a file publisher for the given path
func NewFilePublisher(path string, logger *zap.Logger) (*FilePublisher, error) {
	if path == "" {
		return nil, errors.New("output path cannot be empty")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &FilePublisher{path: path, logger: logger}, nil
}

// Publish writes the report as indented JSON, replacing any previous file
func (p *FilePublisher) Publish(ctx context.Context, report *validator.ValidationReport) error {
	data, err := report.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize report: %w", err)
	}

	if err := os.WriteFile(p.path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", p.path, err)
	}

	p.logger.Info("Wrote validation report",
		zap.String("path", p.path),
		zap.Int("bytes", len(data)))
	return nil
}

// MultiPublisher fans a report out to several destinations. Every
// destination is attempted even when an earlier one fails.
type MultiPublisher struct {
	publishers []Publisher
}

// NewMultiPublisher combines publishers into one
func NewMultiPublisher(publishers ...Publisher) *MultiPublisher {
	return &MultiPublisher{publishers: publishers}
}

// Publish sends the report to every destination and combines the errors
func (p *MultiPublisher) Publish(ctx context.Context, report *validator.ValidationReport) error {
	var errs error
	for _, pub := range p.publishers {
		if err := pub.Publish(ctx, report); err != nil {
			errs = multierr.Append(errs, err)
		}
	}
	return errs
}
