package transform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Policy is the file-configurable default transform behavior applied when a
// job carries no explicit options.
type Policy struct {
	Cleaning struct {
		TrimWhitespace *bool `yaml:"trim_whitespace"`
		DropEmptyRows  *bool `yaml:"drop_empty_rows"`
		DropDuplicates *bool `yaml:"drop_duplicates"`
		DuplicateCap   int   `yaml:"duplicate_cap"`
	} `yaml:"cleaning"`
	Normalization struct {
		ColumnNames *bool `yaml:"column_names"`
	} `yaml:"normalization"`
	Validation map[string]*ColumnRule `yaml:"validation"`
}

// LoadPolicy reads a YAML policy file. An empty path returns the built-in
// defaults.
func LoadPolicy(path string) (*Policy, error) {
	policy := &Policy{}
	if path == "" {
		return policy, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transform policy: %w", err)
	}
	if err := yaml.Unmarshal(data, policy); err != nil {
		return nil, fmt.Errorf("parsing transform policy: %w", err)
	}
	if err := RuleSet(policy.Validation).Compile(); err != nil {
		return nil, err
	}
	return policy, nil
}

// CleanerOptions resolves the policy into concrete cleaner settings.
func (p *Policy) CleanerOptions() CleanerOptions {
	opts := DefaultCleanerOptions()
	if p.Cleaning.TrimWhitespace != nil {
		opts.TrimWhitespace = *p.Cleaning.TrimWhitespace
	}
	if p.Cleaning.DropEmptyRows != nil {
		opts.DropEmptyRows = *p.Cleaning.DropEmptyRows
	}
	if p.Cleaning.DropDuplicates != nil {
		opts.DropDuplicates = *p.Cleaning.DropDuplicates
	}
	if p.Cleaning.DuplicateCap > 0 {
		opts.DuplicateCap = p.Cleaning.DuplicateCap
	}
	return opts
}

// NormalizeColumnNames reports whether headers should be snake_cased.
func (p *Policy) NormalizeColumnNames() bool {
	if p.Normalization.ColumnNames != nil {
		return *p.Normalization.ColumnNames
	}
	return true
}

// Rules returns the policy's default validation rules.
func (p *Policy) Rules() RuleSet {
	if p.Validation == nil {
		return RuleSet{}
	}
	return RuleSet(p.Validation)
}
