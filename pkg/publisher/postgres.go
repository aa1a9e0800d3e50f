// pkg/publisher/postgres.go
package publisher

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/David-Botos/data-contract/pkg/validator"
)

// PostgresPublisher persists validation reports into a results table so
// runs can be compared over time
type PostgresPublisher struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// resultRow is the persisted form of one rule result
type resultRow struct {
	RunID       string         `db:"run_id"`
	TableName   string         `db:"table_name"`
	ColumnName  string         `db:"column_name"`
	Rule        string         `db:"rule"`
	Passed      bool           `db:"passed"`
	Skipped     bool           `db:"skipped"`
	RowsChecked int64          `db:"rows_checked"`
	RowsFailed  int64          `db:"rows_failed"`
	SampleKeys  pq.StringArray `db:"sample_keys"`
	Error       sql.NullString `db:"error"`
}

// NewPostgresPublisher creates a publisher over an existing PostgreSQL
// connection and ensures the results table exists
func NewPostgresPublisher(db *sql.DB, logger *zap.Logger) (*PostgresPublisher, error) {
	if db == nil {
		return nil, errors.New("database connection cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	publisher := &PostgresPublisher{
		db:     sqlx.NewDb(db, "pgx"),
		logger: logger,
	}

	// Ensure the results table exists
	if err := publisher.setupResultsTable(); err != nil {
		return nil, fmt.Errorf("failed to setup results table: %w", err)
	}

	return publisher, nil
}

// setupResultsTable ensures the contract_validation_results table exists
func (p *PostgresPublisher) setupResultsTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	createTableSQL := `
		CREATE TABLE IF NOT EXISTS public.contract_validation_results (
			id SERIAL PRIMARY KEY,
			run_id TEXT NOT NULL,
			table_name TEXT NOT NULL,
			column_name TEXT NOT NULL,
			rule TEXT NOT NULL,
			passed BOOLEAN NOT NULL,
			skipped BOOLEAN NOT NULL DEFAULT FALSE,
			rows_checked BIGINT NOT NULL,
			rows_failed BIGINT NOT NULL,
			sample_keys TEXT[],
			error TEXT,
			checked_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
		)
	`
	if _, err := p.db.ExecContext(ctx, createTableSQL); err != nil {
		return fmt.Errorf("failed to create results table: %w", err)
	}

	p.logger.Info("Ensured contract_validation_results table exists")
	return nil
}

// Publish inserts every rule result of the report in one transaction
func (p *PostgresPublisher) Publish(ctx context.Context, report *validator.ValidationReport) error {
	if len(report.Results) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	// Begin transaction
	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	// Rollback on error
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				p.logger.Error("Failed to rollback transaction",
					zap.Error(rbErr),
					zap.Error(err))
			}
		}
	}()

	insertSQL := `
		INSERT INTO public.contract_validation_results
		(run_id, table_name, column_name, rule, passed, skipped,
		 rows_checked, rows_failed, sample_keys, error)
		VALUES (:run_id, :table_name, :column_name, :rule, :passed, :skipped,
		 :rows_checked, :rows_failed, :sample_keys, :error)
	`

	for _, result := range report.Results {
		row := resultRow{
			RunID:       report.RunID,
			TableName:   result.Table,
			ColumnName:  result.Column,
			Rule:        result.Rule,
			Passed:      result.Passed,
			Skipped:     result.Skipped,
			RowsChecked: result.RowsChecked,
			RowsFailed:  result.RowsFailed,
			SampleKeys:  pq.StringArray(result.SampleKeys),
			Error:       toNullString(result.Error),
		}

		if _, err = tx.NamedExecContext(ctx, insertSQL, row); err != nil {
			return fmt.Errorf("failed to insert rule result: %w", err)
		}
	}

	// Commit transaction
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	p.logger.Info("Persisted validation report",
		zap.String("runID", report.RunID),
		zap.Int("results", len(report.Results)))
	return nil
}

// toNullString maps an empty string to SQL NULL
func toNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
