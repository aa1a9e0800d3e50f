// pkg/snapshot/snapshot.go
package snapshot

import (
	"database/sql"
	"fmt"
	"strings"
)

// Row holds one table row keyed by column name
type Row map[string]interface{}

// Snapshot is an in-memory copy of one table at read time. Rules treat
// it as read-only once loaded.
type Snapshot struct {
	Table   string
	Columns []string
	Rows    []Row
}

// RowCount returns the number of rows in the snapshot
func (s *Snapshot) RowCount() int {
	return len(s.Rows)
}

// ColumnName resolves a column reference case-insensitively and returns
// the spelling under which values are stored. Source systems differ in
// how they fold identifier case, so contracts are matched loosely here.
func (s *Snapshot) ColumnName(name string) (string, bool) {
	if name == "" {
		return "", false
	}
	for _, col := range s.Columns {
		if strings.EqualFold(col, name) {
			return col, true
		}
	}
	return "", false
}

// HasColumn reports whether the snapshot carries the named column
func (s *Snapshot) HasColumn(name string) bool {
	_, ok := s.ColumnName(name)
	return ok
}

// KeyFor returns the identifier reported for row i: the key column's
// value when one is present and non-null, otherwise the 1-based row
// ordinal.
func (s *Snapshot) KeyFor(i int, keyColumn string) string {
	if keyColumn != "" && i >= 0 && i < len(s.Rows) {
		if v, ok := s.Rows[i][keyColumn]; ok && v != nil {
			return fmt.Sprintf("%v", v)
		}
	}
	return fmt.Sprintf("row-%d", i+1)
}

// NormalizeValue maps driver-specific scan types onto the plain Go
// types rule predicates operate on. Byte slices become strings; NULLs
// stay nil; everything else passes through unchanged.
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case sql.RawBytes:
		return string(val)
	case []byte:
		return string(val)
	default:
		return v
	}
}
