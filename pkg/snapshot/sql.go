// pkg/snapshot/sql.go
package snapshot

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.uber.org/zap"
)

// SQLReader loads snapshots from a SQL source over an existing
// database handle. Tables are read in LIMIT/OFFSET batches so that no
// single result set has to fit in one driver response.
type SQLReader struct {
	db        *sqlx.DB
	schema    string
	batchSize int
	logger    *zap.Logger
}

// NewSQLReader wraps an existing database handle. The driver name
// controls placeholder rebinding for metadata queries.
func NewSQLReader(db *sql.DB, driverName, schema string, logger *zap.Logger) *SQLReader {
	return &SQLReader{
		db:        sqlx.NewDb(db, driverName),
		schema:    schema,
		batchSize: 5000,
		logger:    logger,
	}
}

// WithBatchSize sets the number of rows fetched per query
func (r *SQLReader) WithBatchSize(size int) *SQLReader {
	if size > 0 {
		r.batchSize = size
	}
	return r
}

// qualifiedName returns the schema-qualified, quoted table reference
func (r *SQLReader) qualifiedName(table string) string {
	quoted := pq.QuoteIdentifier(table)
	if r.schema == "" {
		return quoted
	}
	return pq.QuoteIdentifier(r.schema) + "." + quoted
}

// ReadTable loads the full table into memory
func (r *SQLReader) ReadTable(ctx context.Context, table string) (*Snapshot, error) {
	snap := &Snapshot{Table: table}

	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		query := fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d",
			r.qualifiedName(table), r.batchSize, offset)

		batchCount, err := r.readBatch(ctx, snap, query)
		if err != nil {
			return nil, err
		}

		offset += batchCount
		if batchCount < r.batchSize {
			break
		}
	}

	r.logger.Debug("Loaded table snapshot",
		zap.String("table", table),
		zap.Int("rows", len(snap.Rows)),
		zap.Int("columns", len(snap.Columns)))

	return snap, nil
}

// readBatch runs one batch query and appends its rows to the snapshot
func (r *SQLReader) readBatch(ctx context.Context, snap *Snapshot, query string) (int, error) {
	rows, err := r.db.QueryxContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to query table %s: %w", snap.Table, err)
	}
	defer rows.Close()

	if snap.Columns == nil {
		columns, err := rows.Columns()
		if err != nil {
			return 0, fmt.Errorf("failed to read columns for table %s: %w", snap.Table, err)
		}
		snap.Columns = columns
	}

	count := 0
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		row := make(Row, len(snap.Columns))
		if err := rows.MapScan(row); err != nil {
			return count, fmt.Errorf("failed to scan row from table %s: %w", snap.Table, err)
		}
		for column, value := range row {
			row[column] = NormalizeValue(value)
		}

		snap.Rows = append(snap.Rows, row)
		count++
	}

	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("error iterating table %s: %w", snap.Table, err)
	}

	return count, nil
}

// HasTable reports whether the table exists in the configured schema
func (r *SQLReader) HasTable(ctx context.Context, table string) (bool, error) {
	query := r.db.Rebind(`
		SELECT COUNT(*)
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_NAME = ?
	`)

	var count int
	if err := r.db.GetContext(ctx, &count, query, r.schema, table); err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}

	return count > 0, nil
}

// ListTables returns the base tables in the configured schema
func (r *SQLReader) ListTables(ctx context.Context) ([]string, error) {
	query := r.db.Rebind(`
		SELECT TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = ?
		AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`)

	tables := make([]string, 0)
	if err := r.db.SelectContext(ctx, &tables, query, r.schema); err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}

	return tables, nil
}
