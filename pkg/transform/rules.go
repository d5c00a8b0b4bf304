package transform

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/datapilot-io/platform/pkg/pipeline"
)

// ColumnRule is one validation constraint set for a column.
type ColumnRule struct {
	Required bool     `json:"required" yaml:"required"`
	Type     string   `json:"type,omitempty" yaml:"type,omitempty"`
	Min      *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max      *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern  string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`

	compiled *regexp.Regexp
}

// RuleSet maps normalized column names to their rules.
type RuleSet map[string]*ColumnRule

// Compile validates the rules and precompiles patterns.
func (rs RuleSet) Compile() error {
	for col, rule := range rs {
		if rule.Pattern != "" {
			re, err := regexp.Compile(rule.Pattern)
			if err != nil {
				return fmt.Errorf("invalid pattern for column %q: %w", col, err)
			}
			rule.compiled = re
		}
		switch rule.Type {
		case "", "integer", "float", "boolean", "date", "string":
		default:
			return fmt.Errorf("unknown rule type %q for column %q", rule.Type, col)
		}
	}
	return nil
}

// ParseRules converts the free-form validation_rules payload from the
// reprocess endpoint into a compiled RuleSet. Unknown keys are ignored.
func ParseRules(raw map[string]interface{}) (RuleSet, error) {
	rs := make(RuleSet, len(raw))
	for col, v := range raw {
		spec, ok := v.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("rules for column %q must be an object", col)
		}
		rule := &ColumnRule{}
		if b, ok := spec["required"].(bool); ok {
			rule.Required = b
		}
		if s, ok := spec["type"].(string); ok {
			rule.Type = s
		}
		if f, ok := numericOption(spec["min"]); ok {
			rule.Min = &f
		}
		if f, ok := numericOption(spec["max"]); ok {
			rule.Max = &f
		}
		if s, ok := spec["pattern"].(string); ok {
			rule.Pattern = s
		}
		rs[col] = rule
	}
	if err := rs.Compile(); err != nil {
		return nil, err
	}
	return rs, nil
}

func numericOption(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// Validator checks rows against a RuleSet and accumulates a summary.
type Validator struct {
	rules      RuleSet
	total      int64
	invalid    int64
	violations map[string]int64
}

func NewValidator(rules RuleSet) *Validator {
	return &Validator{rules: rules, violations: make(map[string]int64)}
}

// Check returns the rule violations for one row. An empty result marks the
// row valid.
func (v *Validator) Check(columns []string, row pipeline.Row) []string {
	v.total++
	if len(v.rules) == 0 {
		return nil
	}

	var problems []string
	for i, col := range columns {
		rule, ok := v.rules[col]
		if !ok {
			continue
		}
		var cell pipeline.Value
		if i < len(row.Values) {
			cell = row.Values[i]
		}

		if cell.IsNull() {
			if rule.Required {
				problems = append(problems, col+": required value is missing")
			}
			continue
		}
		if rule.Type != "" && !cellMatchesType(cell, rule.Type) {
			problems = append(problems, fmt.Sprintf("%s: value is not a %s", col, rule.Type))
		}
		if rule.Min != nil || rule.Max != nil {
			if f, ok := cell.Float(); ok {
				if rule.Min != nil && f < *rule.Min {
					problems = append(problems, fmt.Sprintf("%s: %v below minimum %v", col, f, *rule.Min))
				}
				if rule.Max != nil && f > *rule.Max {
					problems = append(problems, fmt.Sprintf("%s: %v above maximum %v", col, f, *rule.Max))
				}
			}
		}
		if rule.compiled != nil && !rule.compiled.MatchString(cell.Text()) {
			problems = append(problems, col+": value does not match pattern")
		}
	}

	if len(problems) > 0 {
		v.invalid++
		for _, p := range problems {
			col := p[:strings.Index(p, ":")]
			v.violations[col]++
		}
	}
	return problems
}

// Summary renders the validation outcome for the schema_info payload.
func (v *Validator) Summary() map[string]interface{} {
	byColumn := make(map[string]interface{}, len(v.violations))
	for col, n := range v.violations {
		byColumn[col] = n
	}
	return map[string]interface{}{
		"total_rows":   v.total,
		"valid_rows":   v.total - v.invalid,
		"invalid_rows": v.invalid,
		"passed":       v.invalid == 0,
		"violations":   byColumn,
	}
}

func cellMatchesType(cell pipeline.Value, want string) bool {
	// Reuse the schema inference classifier so validation and inference
	// agree on what a value is.
	got := pipeline.ClassifyValue(cell)
	switch want {
	case "float":
		return got == pipeline.TypeFloat || got == pipeline.TypeInteger
	case "string":
		return true
	default:
		return string(got) == want
	}
}
