package validator_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/David-Botos/data-contract/pkg/contract"
	"github.com/David-Botos/data-contract/pkg/snapshot"
	"github.com/David-Botos/data-contract/pkg/validator"
)

func newChecker() *validator.RuleChecker {
	return validator.NewRuleChecker(zap.NewNop())
}

func TestCheckNotNull(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_TAG",
		Columns: []string{"TAG", "DOC"},
		Rows: []snapshot.Row{
			{"TAG": "Assets", "DOC": "Total assets as of the balance sheet date"},
			{"TAG": "Liabilities", "DOC": nil},
			{"TAG": nil, "DOC": nil},
		},
	}
	rule := contract.Rule{Kind: contract.RuleNotNull}

	result := checker.CheckNotNull(snap, "TAG", "TAG", rule)
	assert.False(t, result.Passed)
	assert.Equal(t, int64(3), result.RowsChecked)
	assert.Equal(t, int64(1), result.RowsFailed)
	// The failing row's key is itself NULL, so the ordinal stands in
	assert.Equal(t, []string{"row-3"}, result.SampleKeys)

	result = checker.CheckNotNull(snap, "DOC", "TAG", rule)
	assert.False(t, result.Passed)
	assert.Equal(t, int64(2), result.RowsFailed)
	assert.Equal(t, []string{"Liabilities", "row-3"}, result.SampleKeys)
}

func TestCheckNotNull_AllPresent(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_TAG",
		Columns: []string{"TAG"},
		Rows:    []snapshot.Row{{"TAG": "Assets"}, {"TAG": "Revenues"}},
	}

	result := checker.CheckNotNull(snap, "TAG", "TAG", contract.Rule{Kind: contract.RuleNotNull})
	assert.True(t, result.Passed)
	assert.Equal(t, int64(2), result.RowsChecked)
	assert.Equal(t, int64(0), result.RowsFailed)
	assert.Empty(t, result.SampleKeys)
}

func TestCheckAcceptedValues(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_PRE",
		Columns: []string{"ADSH", "NEGATING"},
		Rows: []snapshot.Row{
			{"ADSH": "0000320193-24-000123", "NEGATING": true},
			{"ADSH": "0000320193-24-000124", "NEGATING": "False"},
			{"ADSH": "0000320193-24-000125", "NEGATING": nil},
			{"ADSH": "0000320193-24-000126", "NEGATING": "maybe"},
		},
	}
	rule := contract.Rule{Kind: contract.RuleAcceptedValues, Values: []string{"True", "False"}}

	result := checker.CheckAcceptedValues(snap, "NEGATING", "ADSH", rule)
	assert.False(t, result.Passed)
	assert.Equal(t, int64(4), result.RowsChecked)
	assert.Equal(t, int64(1), result.RowsFailed)
	assert.Equal(t, []string{"0000320193-24-000126"}, result.SampleKeys)
}

func TestCheckAcceptedValues_CaseSensitive(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_PRE",
		Columns: []string{"ADSH", "STMT"},
		Rows: []snapshot.Row{
			{"ADSH": "0000320193-24-000123", "STMT": "BS"},
			{"ADSH": "0000320193-24-000124", "STMT": "bs"},
		},
	}
	rule := contract.Rule{Kind: contract.RuleAcceptedValues, Values: []string{"BS", "IS", "CF"}}

	result := checker.CheckAcceptedValues(snap, "STMT", "ADSH", rule)
	assert.Equal(t, int64(1), result.RowsFailed)
	assert.Equal(t, []string{"0000320193-24-000124"}, result.SampleKeys)
}

func TestCheckAcceptedValues_NumericLiterals(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_TAG",
		Columns: []string{"TAG", "CUSTOM"},
		Rows: []snapshot.Row{
			{"TAG": "Assets", "CUSTOM": int64(0)},
			{"TAG": "NetSales", "CUSTOM": "1"},
			{"TAG": "Margin", "CUSTOM": int64(2)},
		},
	}
	rule := contract.Rule{Kind: contract.RuleAcceptedValues, Values: []string{"0", "1"}}

	// Native integers and their text form collapse to the same literal
	result := checker.CheckAcceptedValues(snap, "CUSTOM", "TAG", rule)
	assert.Equal(t, int64(1), result.RowsFailed)
	assert.Equal(t, []string{"Margin"}, result.SampleKeys)
}

func TestCheckType(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_SUB",
		Columns: []string{"ADSH", "CIK", "FY", "PREVRPT", "NAME"},
		Rows: []snapshot.Row{
			{"ADSH": "0000320193-24-000123", "CIK": int64(320193), "FY": "2024", "PREVRPT": int64(0), "NAME": "APPLE INC"},
			{"ADSH": "0000789019-24-000456", "CIK": "789019", "FY": nil, "PREVRPT": true, "NAME": []byte("MICROSOFT CORP")},
			{"ADSH": "0001018724-24-000789", "CIK": "not-a-number", "FY": "FY24", "PREVRPT": int64(7), "NAME": int64(42)},
		},
	}

	numeric := contract.Rule{Kind: contract.RuleType, DataType: contract.TypeNumeric}
	result := checker.CheckType(snap, "CIK", "ADSH", numeric)
	assert.Equal(t, int64(1), result.RowsFailed)
	assert.Equal(t, []string{"0001018724-24-000789"}, result.SampleKeys)

	// NULLs pass, text that does not parse fails
	result = checker.CheckType(snap, "FY", "ADSH", numeric)
	assert.Equal(t, int64(3), result.RowsChecked)
	assert.Equal(t, int64(1), result.RowsFailed)

	boolean := contract.Rule{Kind: contract.RuleType, DataType: contract.TypeBoolean}
	result = checker.CheckType(snap, "PREVRPT", "ADSH", boolean)
	assert.Equal(t, int64(1), result.RowsFailed)
	assert.Equal(t, []string{"0001018724-24-000789"}, result.SampleKeys)

	str := contract.Rule{Kind: contract.RuleType, DataType: contract.TypeString}
	result = checker.CheckType(snap, "NAME", "ADSH", str)
	assert.Equal(t, int64(1), result.RowsFailed)
}

func TestCheckLengthBetween(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_PRE",
		Columns: []string{"ADSH", "PLABEL"},
		Rows: []snapshot.Row{
			{"ADSH": "r1", "PLABEL": "N"},
			{"ADSH": "r2", "PLABEL": strings.Repeat("a", 512)},
			{"ADSH": "r3", "PLABEL": ""},
			{"ADSH": "r4", "PLABEL": strings.Repeat("a", 513)},
			{"ADSH": "r5", "PLABEL": nil},
		},
	}
	rule := contract.Rule{Kind: contract.RuleLengthBetween, MinLength: 1, MaxLength: 512}

	result := checker.CheckLengthBetween(snap, "PLABEL", "ADSH", rule)
	assert.False(t, result.Passed)
	assert.Equal(t, int64(5), result.RowsChecked)
	// Bounds are inclusive: lengths 1 and 512 pass, 0 and 513 fail
	assert.Equal(t, int64(2), result.RowsFailed)
	assert.Equal(t, []string{"r3", "r4"}, result.SampleKeys)
}

func TestCheckLengthBetween_CountsRunes(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_PRE",
		Columns: []string{"ADSH", "PLABEL"},
		Rows: []snapshot.Row{
			{"ADSH": "r1", "PLABEL": "Café"},
		},
	}
	rule := contract.Rule{Kind: contract.RuleLengthBetween, MinLength: 4, MaxLength: 4}

	result := checker.CheckLengthBetween(snap, "PLABEL", "ADSH", rule)
	assert.True(t, result.Passed)
}

func TestCheckRelationship(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_PRE",
		Columns: []string{"ADSH", "TAG"},
		Rows: []snapshot.Row{
			{"ADSH": "r1", "TAG": "Assets"},
			{"ADSH": "r2", "TAG": "Revenues"},
			{"ADSH": "r3", "TAG": nil},
			{"ADSH": "r4", "TAG": "MadeUpTag"},
		},
	}
	rule := contract.Rule{Kind: contract.RuleRelationship, ToTable: "RAW_TAG", ToColumn: "TAG"}
	target := validator.RelationshipTarget{
		Table:  "RAW_TAG",
		Column: "TAG",
		Values: map[string]struct{}{"Assets": {}, "Revenues": {}, "Liabilities": {}},
	}

	result := checker.CheckRelationship(snap, "TAG", "ADSH", rule, target)
	assert.False(t, result.Passed)
	assert.Equal(t, int64(4), result.RowsChecked)
	// NULL references pass, only the orphan fails
	assert.Equal(t, int64(1), result.RowsFailed)
	assert.Equal(t, []string{"r4"}, result.SampleKeys)
}

func TestCheckRelationship_EmptyTarget(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_PRE",
		Columns: []string{"ADSH", "TAG"},
		Rows: []snapshot.Row{
			{"ADSH": "r1", "TAG": "Assets"},
			{"ADSH": "r2", "TAG": nil},
		},
	}
	rule := contract.Rule{Kind: contract.RuleRelationship, ToTable: "RAW_TAG", ToColumn: "TAG"}
	target := validator.RelationshipTarget{
		Table:  "RAW_TAG",
		Column: "TAG",
		Values: map[string]struct{}{},
	}

	// An empty referenced column fails every non-NULL source value
	result := checker.CheckRelationship(snap, "TAG", "ADSH", rule, target)
	assert.False(t, result.Skipped)
	assert.Equal(t, int64(1), result.RowsFailed)
	assert.Equal(t, []string{"r1"}, result.SampleKeys)
}

func TestCheckRelationship_UnresolvedTarget(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_PRE",
		Columns: []string{"ADSH", "TAG"},
		Rows:    []snapshot.Row{{"ADSH": "r1", "TAG": "Assets"}},
	}
	rule := contract.Rule{Kind: contract.RuleRelationship, ToTable: "RAW_TAG", ToColumn: "TAG"}
	target := validator.RelationshipTarget{
		Table:  "RAW_TAG",
		Column: "TAG",
		Err:    fmt.Errorf("table RAW_TAG does not exist in the source"),
	}

	result := checker.CheckRelationship(snap, "TAG", "ADSH", rule, target)
	assert.True(t, result.Skipped)
	assert.False(t, result.Passed)
	assert.Equal(t, int64(0), result.RowsChecked)
	assert.Contains(t, result.Error, "could not be resolved")
}

func TestCheck_MissingColumn(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_TAG",
		Columns: []string{"TAG"},
		Rows:    []snapshot.Row{{"TAG": "Assets"}},
	}

	result := checker.CheckNotNull(snap, "UOM", "TAG", contract.Rule{Kind: contract.RuleNotNull})
	assert.True(t, result.Skipped)
	assert.False(t, result.Passed)
	assert.Contains(t, result.Error, "not found")
}

func TestBuildValueSet(t *testing.T) {
	checker := newChecker()
	snap := &snapshot.Snapshot{
		Table:   "RAW_TAG",
		Columns: []string{"TAG", "CUSTOM"},
		Rows: []snapshot.Row{
			{"TAG": "Assets", "CUSTOM": int64(0)},
			{"TAG": "Assets", "CUSTOM": int64(1)},
			{"TAG": "Revenues", "CUSTOM": nil},
			{"TAG": nil, "CUSTOM": int64(0)},
		},
	}

	values, err := checker.BuildValueSet(snap, "TAG")
	require.NoError(t, err)
	// Duplicates collapse and NULLs stay out of the set
	assert.Len(t, values, 2)
	assert.Contains(t, values, "Assets")
	assert.Contains(t, values, "Revenues")

	values, err = checker.BuildValueSet(snap, "custom")
	require.NoError(t, err)
	assert.Len(t, values, 2)
	assert.Contains(t, values, "0")
	assert.Contains(t, values, "1")

	_, err = checker.BuildValueSet(snap, "VERSION")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSampleLimit(t *testing.T) {
	checker := validator.NewRuleChecker(zap.NewNop()).WithSampleLimit(3)

	rows := make([]snapshot.Row, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, snapshot.Row{"ADSH": fmt.Sprintf("acc-%d", i), "TAG": nil})
	}
	snap := &snapshot.Snapshot{
		Table:   "RAW_PRE",
		Columns: []string{"ADSH", "TAG"},
		Rows:    rows,
	}

	result := checker.CheckNotNull(snap, "TAG", "ADSH", contract.Rule{Kind: contract.RuleNotNull})
	assert.Equal(t, int64(10), result.RowsFailed)
	// Every failure is counted but only the first keys are kept
	assert.Equal(t, []string{"acc-0", "acc-1", "acc-2"}, result.SampleKeys)
}
