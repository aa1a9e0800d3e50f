package contract_test

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/David-Botos/data-contract/pkg/contract"
)

func writeAndLoad(t *testing.T, content string) *contract.ContractSet {
	t.Helper()

	path := filepath.Join(t.TempDir(), "contracts.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write contract file: %v", err)
	}

	set, err := contract.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return set
}

func writeAndLoadErr(t *testing.T, content string) error {
	t.Helper()

	path := filepath.Join(t.TempDir(), "contracts.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write contract file: %v", err)
	}

	_, err := contract.Load(path)
	if err == nil {
		t.Fatal("Load() error = nil, want error")
	}
	return err
}

func TestLoad_FullContract(t *testing.T) {
	set := writeAndLoad(t, `
version: 1
tables:
  - table: RAW_TAG
    key_column: TAG
    columns:
      - name: TAG
        rules:
          - not_null
      - name: ABSTRACT
        rules:
          - accepted_values:
              values: [0, 1]
  - table: RAW_PRE
    key_column: ADSH
    columns:
      - name: TAG
        rules:
          - not_null
          - relationships:
              to_table: RAW_TAG
              to_column: TAG
      - name: REPORT
        rules:
          - type:
              kind: numeric
      - name: PLABEL
        rules:
          - length_between:
              min: 1
              max: 512
      - name: NEGATING
        rules:
          - accepted_values:
              values: [True, False]
`)

	if len(set.Tables) != 2 {
		t.Fatalf("len(Tables) = %d, want 2", len(set.Tables))
	}

	tag := set.Tables[0]
	if tag.Table != "RAW_TAG" || tag.KeyColumn != "TAG" {
		t.Errorf("Tables[0] = %s/%s, want RAW_TAG/TAG", tag.Table, tag.KeyColumn)
	}
	if got := tag.Columns[1].Rules[0].Values; !reflect.DeepEqual(got, []string{"0", "1"}) {
		t.Errorf("ABSTRACT accepted values = %v, want [0 1]", got)
	}

	pre := set.Tables[1]
	rel := pre.Columns[0].Rules[1]
	if rel.Kind != contract.RuleRelationship || rel.ToTable != "RAW_TAG" || rel.ToColumn != "TAG" {
		t.Errorf("relationship rule = %+v, want RAW_TAG.TAG", rel)
	}

	typ := pre.Columns[1].Rules[0]
	if typ.Kind != contract.RuleType || typ.DataType != contract.TypeNumeric {
		t.Errorf("type rule = %+v, want numeric", typ)
	}

	length := pre.Columns[2].Rules[0]
	if length.MinLength != 1 || length.MaxLength != 512 {
		t.Errorf("length rule = %d..%d, want 1..512", length.MinLength, length.MaxLength)
	}

	negating := pre.Columns[3].Rules[0]
	if !reflect.DeepEqual(negating.Values, []string{"True", "False"}) {
		t.Errorf("NEGATING accepted values = %v, want [True False]", negating.Values)
	}

	if set.RuleCount() != 7 {
		t.Errorf("RuleCount() = %d, want 7", set.RuleCount())
	}
}

func TestLoad_AcceptedValueCanonicalForms(t *testing.T) {
	set := writeAndLoad(t, `
version: 1
tables:
  - table: RAW_TAG
    columns:
      - name: CRDR
        rules:
          - accepted_values:
              values: [True, False, 1, 2.50, "true", C]
`)

	got := set.Tables[0].Columns[0].Rules[0].Values
	want := []string{"True", "False", "1", "2.5", "true", "C"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("canonical values = %v, want %v", got, want)
	}
}

func TestLoad_NotNullMappingForm(t *testing.T) {
	set := writeAndLoad(t, `
version: 1
tables:
  - table: RAW_SUB
    columns:
      - name: ADSH
        rules:
          - not_null: {}
`)

	if set.Tables[0].Columns[0].Rules[0].Kind != contract.RuleNotNull {
		t.Errorf("rule kind = %v, want not_null", set.Tables[0].Columns[0].Rules[0].Kind)
	}
}

func TestLoad_MissingVersionDefaultsToOne(t *testing.T) {
	set := writeAndLoad(t, `
tables:
  - table: RAW_SUB
    columns:
      - name: ADSH
        rules:
          - not_null
`)

	if set.Version != 1 {
		t.Errorf("Version = %d, want 1", set.Version)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("REFERENCE_TABLE", "RAW_TAG")

	set := writeAndLoad(t, `
version: 1
tables:
  - table: RAW_PRE
    columns:
      - name: TAG
        rules:
          - relationships:
              to_table: ${REFERENCE_TABLE}
              to_column: TAG
`)

	if got := set.Tables[0].Columns[0].Rules[0].ToTable; got != "RAW_TAG" {
		t.Errorf("ToTable = %s, want RAW_TAG", got)
	}
}

func TestLoad_FileMissing(t *testing.T) {
	_, err := contract.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("Load() error = nil, want error for missing file")
	}
	if !strings.Contains(err.Error(), "failed to read contract file") {
		t.Errorf("error = %q, want read failure", err.Error())
	}
}

func TestLoad_InvalidContracts(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name: "unknown rule",
			content: `
version: 1
tables:
  - table: RAW_SUB
    columns:
      - name: ADSH
        rules:
          - is_unique
`,
			want: "unknown rule",
		},
		{
			name: "bare rule that needs parameters",
			content: `
version: 1
tables:
  - table: RAW_SUB
    columns:
      - name: ADSH
        rules:
          - relationships
`,
			want: "requires parameters",
		},
		{
			name: "relationship without target table",
			content: `
version: 1
tables:
  - table: RAW_PRE
    columns:
      - name: TAG
        rules:
          - relationships:
              to_column: TAG
`,
			want: "to_table",
		},
		{
			name: "bad type kind",
			content: `
version: 1
tables:
  - table: RAW_PRE
    columns:
      - name: REPORT
        rules:
          - type:
              kind: decimal
`,
			want: "numeric, string, or boolean",
		},
		{
			name: "inverted length bounds",
			content: `
version: 1
tables:
  - table: RAW_PRE
    columns:
      - name: PLABEL
        rules:
          - length_between:
              min: 10
              max: 2
`,
			want: "below min",
		},
		{
			name: "empty accepted values",
			content: `
version: 1
tables:
  - table: RAW_PRE
    columns:
      - name: STMT
        rules:
          - accepted_values:
              values: []
`,
			want: "at least one value",
		},
		{
			name: "duplicate table",
			content: `
version: 1
tables:
  - table: RAW_SUB
    columns:
      - name: ADSH
        rules: [not_null]
  - table: RAW_SUB
    columns:
      - name: CIK
        rules: [not_null]
`,
			want: "more than once",
		},
		{
			name: "duplicate column",
			content: `
version: 1
tables:
  - table: RAW_SUB
    columns:
      - name: ADSH
        rules: [not_null]
      - name: ADSH
        rules: [not_null]
`,
			want: "more than once",
		},
		{
			name: "column without rules",
			content: `
version: 1
tables:
  - table: RAW_SUB
    columns:
      - name: ADSH
        rules: []
`,
			want: "no rules",
		},
		{
			name: "table without columns",
			content: `
version: 1
tables:
  - table: RAW_SUB
    columns: []
`,
			want: "no columns",
		},
		{
			name:    "no tables",
			content: "version: 1\ntables: []\n",
			want:    "no tables",
		},
		{
			name: "unsupported version",
			content: `
version: 7
tables:
  - table: RAW_SUB
    columns:
      - name: ADSH
        rules: [not_null]
`,
			want: "unsupported contract version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := writeAndLoadErr(t, tt.content)
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want mention of %q", err.Error(), tt.want)
			}
		})
	}
}

func TestRule_String(t *testing.T) {
	tests := []struct {
		rule contract.Rule
		want string
	}{
		{contract.Rule{Kind: contract.RuleNotNull}, "not_null"},
		{contract.Rule{Kind: contract.RuleRelationship, ToTable: "RAW_TAG", ToColumn: "TAG"}, "relationships(RAW_TAG.TAG)"},
		{contract.Rule{Kind: contract.RuleAcceptedValues, Values: []string{"True", "False"}}, "accepted_values(True,False)"},
		{contract.Rule{Kind: contract.RuleType, DataType: "numeric"}, "type(numeric)"},
		{contract.Rule{Kind: contract.RuleLengthBetween, MinLength: 1, MaxLength: 512}, "length_between(1,512)"},
	}

	for _, tt := range tests {
		if got := tt.rule.String(); got != tt.want {
			t.Errorf("String() = %s, want %s", got, tt.want)
		}
	}
}

func TestContractSet_ReferencedTables(t *testing.T) {
	set := writeAndLoad(t, `
version: 1
tables:
  - table: RAW_PRE
    columns:
      - name: TAG
        rules:
          - relationships:
              to_table: RAW_TAG
              to_column: TAG
      - name: VERSION
        rules:
          - relationships:
              to_table: RAW_TAG
              to_column: VERSION
      - name: ADSH
        rules:
          - relationships:
              to_table: RAW_SUB
              to_column: ADSH
`)

	got := set.ReferencedTables()
	want := []string{"RAW_TAG", "RAW_SUB"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReferencedTables() = %v, want %v", got, want)
	}
}

func TestContractSet_FilterTables(t *testing.T) {
	set := writeAndLoad(t, `
version: 1
tables:
  - table: RAW_SUB
    columns:
      - name: ADSH
        rules: [not_null]
  - table: RAW_TAG
    columns:
      - name: TAG
        rules: [not_null]
  - table: RAW_PRE
    columns:
      - name: ADSH
        rules: [not_null]
`)

	filtered, err := set.FilterTables([]string{"RAW_PRE", "RAW_SUB"})
	if err != nil {
		t.Fatalf("FilterTables() error = %v", err)
	}
	if got := filtered.TableNames(); !reflect.DeepEqual(got, []string{"RAW_SUB", "RAW_PRE"}) {
		t.Errorf("TableNames() = %v, want file order [RAW_SUB RAW_PRE]", got)
	}

	if _, err := set.FilterTables([]string{"RAW_NUM"}); err == nil {
		t.Error("FilterTables() error = nil, want error for unknown table")
	}

	same, err := set.FilterTables(nil)
	if err != nil {
		t.Fatalf("FilterTables(nil) error = %v", err)
	}
	if len(same.Tables) != 3 {
		t.Errorf("FilterTables(nil) tables = %d, want 3", len(same.Tables))
	}
}
