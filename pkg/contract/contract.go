// pkg/contract/contract.go
package contract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// RuleKind identifies a contract rule type
type RuleKind int

const (
	RuleUnknown RuleKind = iota
	RuleNotNull
	RuleRelationship
	RuleAcceptedValues
	RuleType
	RuleLengthBetween
)

// String returns a human-readable rule kind name
func (k RuleKind) String() string {
	switch k {
	case RuleNotNull:
		return "not_null"
	case RuleRelationship:
		return "relationships"
	case RuleAcceptedValues:
		return "accepted_values"
	case RuleType:
		return "type"
	case RuleLengthBetween:
		return "length_between"
	default:
		return "unknown"
	}
}

// Declared type kinds for the type rule
const (
	TypeNumeric = "numeric"
	TypeString  = "string"
	TypeBoolean = "boolean"
)

// Rule is a single declarative check attached to a column. Exactly one
// kind is set; the parameter fields used depend on the kind.
type Rule struct {
	Kind RuleKind

	// relationships parameters
	ToTable  string
	ToColumn string

	// accepted_values parameters, stored in canonical literal form
	Values []string

	// type parameters
	DataType string

	// length_between parameters
	MinLength int
	MaxLength int
}

// ColumnContract binds a set of rules to one column
type ColumnContract struct {
	Name  string `yaml:"name"`
	Rules []Rule `yaml:"rules"`
}

// TableContract holds the per-column rules for one table. KeyColumn
// names the column used to identify failing rows in reports; when it
// is empty, row ordinals are reported instead.
type TableContract struct {
	Table     string           `yaml:"table"`
	KeyColumn string           `yaml:"key_column"`
	Columns   []ColumnContract `yaml:"columns"`
}

// ContractSet is the parsed contents of a contract file
type ContractSet struct {
	Version int             `yaml:"version"`
	Tables  []TableContract `yaml:"tables"`
}

// ruleKindFromName maps a config rule name to its kind
func ruleKindFromName(name string) (RuleKind, bool) {
	switch name {
	case "not_null":
		return RuleNotNull, true
	case "relationships":
		return RuleRelationship, true
	case "accepted_values":
		return RuleAcceptedValues, true
	case "type":
		return RuleType, true
	case "length_between":
		return RuleLengthBetween, true
	default:
		return RuleUnknown, false
	}
}

// UnmarshalYAML accepts both rule forms used in contract files: a bare
// rule name for parameter-free rules, and a single-key mapping whose
// key is the rule name and whose value holds the parameters.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var name string
		if err := node.Decode(&name); err != nil {
			return err
		}
		kind, ok := ruleKindFromName(name)
		if !ok {
			return fmt.Errorf("unknown rule %q at line %d", name, node.Line)
		}
		if kind != RuleNotNull {
			return fmt.Errorf("rule %q requires parameters at line %d", name, node.Line)
		}
		r.Kind = kind
		return nil

	case yaml.MappingNode:
		if len(node.Content) != 2 {
			return fmt.Errorf("rule mapping must have exactly one key at line %d", node.Line)
		}
		keyNode, valueNode := node.Content[0], node.Content[1]

		var name string
		if err := keyNode.Decode(&name); err != nil {
			return err
		}
		kind, ok := ruleKindFromName(name)
		if !ok {
			return fmt.Errorf("unknown rule %q at line %d", name, keyNode.Line)
		}
		r.Kind = kind

		switch kind {
		case RuleNotNull:
			// not_null takes no parameters; an empty mapping is tolerated
			return nil

		case RuleRelationship:
			var params struct {
				ToTable  string `yaml:"to_table"`
				ToColumn string `yaml:"to_column"`
			}
			if err := valueNode.Decode(&params); err != nil {
				return fmt.Errorf("invalid relationships parameters at line %d: %w", valueNode.Line, err)
			}
			r.ToTable = params.ToTable
			r.ToColumn = params.ToColumn
			return nil

		case RuleAcceptedValues:
			var params struct {
				Values []yaml.Node `yaml:"values"`
			}
			if err := valueNode.Decode(&params); err != nil {
				return fmt.Errorf("invalid accepted_values parameters at line %d: %w", valueNode.Line, err)
			}
			values := make([]string, 0, len(params.Values))
			for i := range params.Values {
				literal, err := canonicalLiteral(&params.Values[i])
				if err != nil {
					return err
				}
				values = append(values, literal)
			}
			r.Values = values
			return nil

		case RuleType:
			var params struct {
				Kind string `yaml:"kind"`
			}
			if err := valueNode.Decode(&params); err != nil {
				return fmt.Errorf("invalid type parameters at line %d: %w", valueNode.Line, err)
			}
			r.DataType = params.Kind
			return nil

		case RuleLengthBetween:
			var params struct {
				Min int `yaml:"min"`
				Max int `yaml:"max"`
			}
			if err := valueNode.Decode(&params); err != nil {
				return fmt.Errorf("invalid length_between parameters at line %d: %w", valueNode.Line, err)
			}
			r.MinLength = params.Min
			r.MaxLength = params.Max
			return nil
		}
		return nil

	default:
		return fmt.Errorf("rule must be a name or a single-key mapping at line %d", node.Line)
	}
}

// canonicalLiteral renders a configured scalar in the canonical literal
// form used for comparisons: booleans as True/False, numbers in their
// shortest decimal form, text verbatim.
func canonicalLiteral(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("accepted value must be a scalar at line %d", node.Line)
	}

	switch node.Tag {
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return "", err
		}
		if b {
			return "True", nil
		}
		return "False", nil
	case "!!int", "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return "", err
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	default:
		return node.Value, nil
	}
}

// String returns the rule identity used in reports, including its
// parameters, e.g. "relationships(RAW_TAG.TAG)" or "length_between(1,512)".
func (r Rule) String() string {
	switch r.Kind {
	case RuleNotNull:
		return "not_null"
	case RuleRelationship:
		return fmt.Sprintf("relationships(%s.%s)", r.ToTable, r.ToColumn)
	case RuleAcceptedValues:
		return fmt.Sprintf("accepted_values(%s)", strings.Join(r.Values, ","))
	case RuleType:
		return fmt.Sprintf("type(%s)", r.DataType)
	case RuleLengthBetween:
		return fmt.Sprintf("length_between(%d,%d)", r.MinLength, r.MaxLength)
	default:
		return "unknown"
	}
}

// Validate checks a single rule's parameters
func (r Rule) Validate() error {
	switch r.Kind {
	case RuleNotNull:
		return nil
	case RuleRelationship:
		if r.ToTable == "" {
			return fmt.Errorf("relationships rule requires to_table")
		}
		if r.ToColumn == "" {
			return fmt.Errorf("relationships rule requires to_column")
		}
		return nil
	case RuleAcceptedValues:
		if len(r.Values) == 0 {
			return fmt.Errorf("accepted_values rule requires at least one value")
		}
		return nil
	case RuleType:
		switch r.DataType {
		case TypeNumeric, TypeString, TypeBoolean:
			return nil
		default:
			return fmt.Errorf("type rule kind must be numeric, string, or boolean, got %q", r.DataType)
		}
	case RuleLengthBetween:
		if r.MinLength < 0 {
			return fmt.Errorf("length_between min cannot be negative")
		}
		if r.MaxLength < r.MinLength {
			return fmt.Errorf("length_between max %d is below min %d", r.MaxLength, r.MinLength)
		}
		return nil
	default:
		return fmt.Errorf("unknown rule kind")
	}
}

// Validate checks the whole contract set for structural problems
func (cs *ContractSet) Validate() error {
	if cs.Version != 1 {
		return fmt.Errorf("unsupported contract version %d", cs.Version)
	}
	if len(cs.Tables) == 0 {
		return fmt.Errorf("contract file declares no tables")
	}

	seenTables := make(map[string]bool, len(cs.Tables))
	for _, tc := range cs.Tables {
		if tc.Table == "" {
			return fmt.Errorf("table entry is missing a name")
		}
		if seenTables[tc.Table] {
			return fmt.Errorf("table %s is declared more than once", tc.Table)
		}
		seenTables[tc.Table] = true

		if len(tc.Columns) == 0 {
			return fmt.Errorf("table %s declares no columns", tc.Table)
		}

		seenColumns := make(map[string]bool, len(tc.Columns))
		for _, col := range tc.Columns {
			if col.Name == "" {
				return fmt.Errorf("table %s has a column entry without a name", tc.Table)
			}
			if seenColumns[col.Name] {
				return fmt.Errorf("table %s declares column %s more than once", tc.Table, col.Name)
			}
			seenColumns[col.Name] = true

			if len(col.Rules) == 0 {
				return fmt.Errorf("table %s column %s declares no rules", tc.Table, col.Name)
			}
			for _, rule := range col.Rules {
				if err := rule.Validate(); err != nil {
					return fmt.Errorf("table %s column %s: %w", tc.Table, col.Name, err)
				}
			}
		}
	}

	return nil
}

// TableNames returns the declared table names in file order
func (cs *ContractSet) TableNames() []string {
	names := make([]string, 0, len(cs.Tables))
	for _, tc := range cs.Tables {
		names = append(names, tc.Table)
	}
	return names
}

// ReferencedTables returns the relationship target tables, in first-seen
// order and without duplicates. Targets may be tables that carry no
// contract of their own.
func (cs *ContractSet) ReferencedTables() []string {
	seen := make(map[string]bool)
	targets := make([]string, 0)
	for _, tc := range cs.Tables {
		for _, col := range tc.Columns {
			for _, rule := range col.Rules {
				if rule.Kind != RuleRelationship || rule.ToTable == "" {
					continue
				}
				if !seen[rule.ToTable] {
					seen[rule.ToTable] = true
					targets = append(targets, rule.ToTable)
				}
			}
		}
	}
	return targets
}

// RuleCount returns the total number of rules across all tables
func (cs *ContractSet) RuleCount() int {
	count := 0
	for _, tc := range cs.Tables {
		for _, col := range tc.Columns {
			count += len(col.Rules)
		}
	}
	return count
}

// FilterTables returns a contract set restricted to the named tables,
// preserving file order. Unknown names are an error so that a typo in
// a table filter does not silently validate nothing.
func (cs *ContractSet) FilterTables(names []string) (*ContractSet, error) {
	if len(names) == 0 {
		return cs, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}

	filtered := &ContractSet{Version: cs.Version}
	for _, tc := range cs.Tables {
		if wanted[tc.Table] {
			filtered.Tables = append(filtered.Tables, tc)
			delete(wanted, tc.Table)
		}
	}

	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for name := range wanted {
			missing = append(missing, name)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("tables not present in contract file: %s", strings.Join(missing, ", "))
	}

	return filtered, nil
}
