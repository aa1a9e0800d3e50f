package validator

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/David-Botos/data-contract/pkg/contract"
	"github.com/David-Botos/data-contract/pkg/snapshot"
)

// RuleChecker evaluates individual contract rules against loaded snapshots.
// Every check makes a single pass over the snapshot rows and never mutates
// them, so checks for different columns can run concurrently on the same
// snapshot.
type RuleChecker struct {
	sampleLimit int
	logger      *zap.Logger
}

// NewRuleChecker creates a rule checker with the default sample limit
func NewRuleChecker(logger *zap.Logger) *RuleChecker {
	return &RuleChecker{
		sampleLimit: 10, // Keep up to 10 failing row keys per rule
		logger:      logger,
	}
}

// WithSampleLimit sets how many failing row keys are kept per rule
func (rc *RuleChecker) WithSampleLimit(limit int) *RuleChecker {
	if limit >= 0 {
		rc.sampleLimit = limit
	}
	return rc
}

// CheckNotNull verifies that no row has a NULL in the column
func (rc *RuleChecker) CheckNotNull(snap *snapshot.Snapshot, column, keyColumn string, rule contract.Rule) RuleResult {
	start := time.Now()
	result := newRuleResult(snap.Table, column, rule.String())
	rc.logStart(result)

	colName, ok := snap.ColumnName(column)
	if !ok {
		result.markSkipped(fmt.Errorf("column %s not found in table %s", column, snap.Table))
		return result
	}

	for i, row := range snap.Rows {
		result.RowsChecked++
		if row[colName] == nil {
			result.recordFailure(snap.KeyFor(i, keyColumn), rc.sampleLimit)
		}
	}

	result.finish(start)
	rc.logResult(result)
	return result
}

// CheckAcceptedValues verifies that every non-NULL value is one of the
// allowed literals. Comparison is case-sensitive on the canonical text
// form, so a boolean true matches the literal True but not "TRUE".
func (rc *RuleChecker) CheckAcceptedValues(snap *snapshot.Snapshot, column, keyColumn string, rule contract.Rule) RuleResult {
	start := time.Now()
	result := newRuleResult(snap.Table, column, rule.String())
	rc.logStart(result)

	colName, ok := snap.ColumnName(column)
	if !ok {
		result.markSkipped(fmt.Errorf("column %s not found in table %s", column, snap.Table))
		return result
	}

	allowed := make(map[string]struct{}, len(rule.Values))
	for _, v := range rule.Values {
		allowed[v] = struct{}{}
	}

	for i, row := range snap.Rows {
		result.RowsChecked++
		value := row[colName]
		if value == nil {
			continue
		}
		if _, ok := allowed[canonicalString(value)]; !ok {
			result.recordFailure(snap.KeyFor(i, keyColumn), rc.sampleLimit)
		}
	}

	result.finish(start)
	rc.logResult(result)
	return result
}

// CheckType verifies that every non-NULL value coerces losslessly to the
// declared kind
func (rc *RuleChecker) CheckType(snap *snapshot.Snapshot, column, keyColumn string, rule contract.Rule) RuleResult {
	start := time.Now()
	result := newRuleResult(snap.Table, column, rule.String())
	rc.logStart(result)

	colName, ok := snap.ColumnName(column)
	if !ok {
		result.markSkipped(fmt.Errorf("column %s not found in table %s", column, snap.Table))
		return result
	}

	for i, row := range snap.Rows {
		result.RowsChecked++
		value := row[colName]
		if value == nil {
			continue
		}
		if err := coercesTo(value, rule.DataType); err != nil {
			result.recordFailure(snap.KeyFor(i, keyColumn), rc.sampleLimit)
		}
	}

	result.finish(start)
	rc.logResult(result)
	return result
}

// CheckLengthBetween verifies that the text form of every non-NULL value
// has a length within the inclusive bounds
func (rc *RuleChecker) CheckLengthBetween(snap *snapshot.Snapshot, column, keyColumn string, rule contract.Rule) RuleResult {
	start := time.Now()
	result := newRuleResult(snap.Table, column, rule.String())
	rc.logStart(result)

	colName, ok := snap.ColumnName(column)
	if !ok {
		result.markSkipped(fmt.Errorf("column %s not found in table %s", column, snap.Table))
		return result
	}

	for i, row := range snap.Rows {
		result.RowsChecked++
		value := row[colName]
		if value == nil {
			continue
		}
		if n := textLength(value); n < rule.MinLength || n > rule.MaxLength {
			result.recordFailure(snap.KeyFor(i, keyColumn), rc.sampleLimit)
		}
	}

	result.finish(start)
	rc.logResult(result)
	return result
}

// CheckRelationship verifies that every non-NULL value appears in the
// referenced column. NULLs pass; enforcing presence is what not_null is
// for. An empty referenced column fails every non-NULL source value.
func (rc *RuleChecker) CheckRelationship(snap *snapshot.Snapshot, column, keyColumn string, rule contract.Rule, target RelationshipTarget) RuleResult {
	start := time.Now()
	result := newRuleResult(snap.Table, column, rule.String())
	rc.logStart(result)

	if target.Err != nil {
		result.markSkipped(fmt.Errorf("referenced column %s.%s could not be resolved: %v",
			target.Table, target.Column, target.Err))
		return result
	}

	colName, ok := snap.ColumnName(column)
	if !ok {
		result.markSkipped(fmt.Errorf("column %s not found in table %s", column, snap.Table))
		return result
	}

	for i, row := range snap.Rows {
		result.RowsChecked++
		value := row[colName]
		if value == nil {
			continue
		}
		if _, ok := target.Values[canonicalString(value)]; !ok {
			result.recordFailure(snap.KeyFor(i, keyColumn), rc.sampleLimit)
		}
	}

	result.finish(start)
	rc.logResult(result)
	return result
}

// BuildValueSet collects the distinct non-NULL values of a column in their
// canonical form. The set is built once per referenced column so each
// membership check stays O(1) regardless of the referenced table's size.
func (rc *RuleChecker) BuildValueSet(snap *snapshot.Snapshot, column string) (map[string]struct{}, error) {
	colName, ok := snap.ColumnName(column)
	if !ok {
		return nil, fmt.Errorf("column %s not found in table %s", column, snap.Table)
	}

	values := make(map[string]struct{}, snap.RowCount())
	for _, row := range snap.Rows {
		value := row[colName]
		if value == nil {
			continue
		}
		values[canonicalString(value)] = struct{}{}
	}

	rc.logger.Debug("Built relationship value set",
		zap.String("table", snap.Table),
		zap.String("column", colName),
		zap.Int("distinctValues", len(values)))

	return values, nil
}

// Helper functions

// coercesTo checks whether a value can represent the given kind without
// losing information
func coercesTo(value interface{}, kind string) error {
	switch kind {
	case contract.TypeNumeric:
		_, err := toFloat(value)
		return err
	case contract.TypeBoolean:
		_, err := toBool(value)
		return err
	case contract.TypeString:
		switch value.(type) {
		case string, []byte:
			return nil
		default:
			return fmt.Errorf("cannot treat %T as string", value)
		}
	default:
		return fmt.Errorf("unknown type kind %q", kind)
	}
}

// logStart logs the beginning of a rule evaluation
func (rc *RuleChecker) logStart(result RuleResult) {
	rc.logger.Debug("Checking rule",
		zap.String("table", result.Table),
		zap.String("column", result.Column),
		zap.String("rule", result.Rule))
}

// logResult logs the outcome of a rule evaluation
func (rc *RuleChecker) logResult(result RuleResult) {
	if result.RowsFailed > 0 {
		rc.logger.Warn("Rule failed",
			zap.String("table", result.Table),
			zap.String("column", result.Column),
			zap.String("rule", result.Rule),
			zap.Int64("rowsChecked", result.RowsChecked),
			zap.Int64("rowsFailed", result.RowsFailed),
			zap.Strings("sampleKeys", result.SampleKeys))
		return
	}

	rc.logger.Debug("Rule passed",
		zap.String("table", result.Table),
		zap.String("column", result.Column),
		zap.String("rule", result.Rule),
		zap.Int64("rowsChecked", result.RowsChecked))
}
