// pkg/snapshot/reader.go
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrTableNotFound is returned when a requested table does not exist
// in the source system
var ErrTableNotFound = errors.New("table not found")

// TableReader loads table snapshots from a source system
type TableReader interface {
	// ReadTable loads the full contents of a table
	ReadTable(ctx context.Context, table string) (*Snapshot, error)
	// HasTable reports whether the table exists in the source
	HasTable(ctx context.Context, table string) (bool, error)
}

// MemReader serves snapshots from memory. Table lookups are
// case-insensitive to match warehouse identifier folding.
type MemReader struct {
	tables map[string]*Snapshot
}

// NewMemReader creates a reader over the given snapshots
func NewMemReader(snapshots ...*Snapshot) *MemReader {
	r := &MemReader{tables: make(map[string]*Snapshot, len(snapshots))}
	for _, s := range snapshots {
		r.Add(s)
	}
	return r
}

// Add registers a snapshot, replacing any previous one for the table
func (r *MemReader) Add(s *Snapshot) {
	r.tables[strings.ToUpper(s.Table)] = s
}

// ReadTable returns the stored snapshot for the table
func (r *MemReader) ReadTable(ctx context.Context, table string) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s, ok := r.tables[strings.ToUpper(table)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return s, nil
}

// HasTable reports whether a snapshot is registered for the table
func (r *MemReader) HasTable(ctx context.Context, table string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	_, ok := r.tables[strings.ToUpper(table)]
	return ok, nil
}
