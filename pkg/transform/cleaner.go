package transform

import (
	"hash/fnv"
	"strings"

	"github.com/datapilot-io/platform/pkg/pipeline"
)

// CleaningReport summarizes one cleaning operation over a processing run.
type CleaningReport struct {
	Operation    string `json:"operation"`
	RowsAffected int64  `json:"rows_affected"`
}

// CleanerOptions select which row cleaners run. The defaults mirror the
// standard ingestion pass: trim whitespace, drop all-null rows, drop exact
// duplicates.
type CleanerOptions struct {
	TrimWhitespace bool
	DropEmptyRows  bool
	DropDuplicates bool
	// DuplicateCap bounds the memory used for duplicate detection; once
	// that many distinct rows have been seen, later duplicates pass
	// through.
	DuplicateCap int
}

func DefaultCleanerOptions() CleanerOptions {
	return CleanerOptions{
		TrimWhitespace: true,
		DropEmptyRows:  true,
		DropDuplicates: true,
		DuplicateCap:   1_000_000,
	}
}

// Cleaner applies per-row cleaning in a streaming pass.
type Cleaner struct {
	opts    CleanerOptions
	seen    map[uint64]struct{}
	capped  bool
	trimmed int64
	empty   int64
	duped   int64
}

func NewCleaner(opts CleanerOptions) *Cleaner {
	c := &Cleaner{opts: opts}
	if opts.DropDuplicates {
		c.seen = make(map[uint64]struct{})
	}
	return c
}

// Clean mutates the row in place and reports whether it should be skipped.
func (c *Cleaner) Clean(row *pipeline.Row) (skip bool) {
	if c.opts.TrimWhitespace {
		changed := false
		for i, v := range row.Values {
			if v.Kind != pipeline.KindString {
				continue
			}
			trimmed := strings.TrimSpace(v.Raw)
			if trimmed == v.Raw {
				continue
			}
			changed = true
			if trimmed == "" {
				row.Values[i] = pipeline.NullValue()
			} else {
				row.Values[i] = pipeline.StringValue(trimmed)
			}
		}
		if changed {
			c.trimmed++
		}
	}

	if c.opts.DropEmptyRows {
		allNull := true
		for _, v := range row.Values {
			if !v.IsNull() {
				allNull = false
				break
			}
		}
		if allNull {
			c.empty++
			return true
		}
	}

	if c.opts.DropDuplicates && !c.capped {
		h := fnv.New64a()
		for _, v := range row.Values {
			h.Write([]byte(v.Text()))
			h.Write([]byte{0})
		}
		key := h.Sum64()
		if _, ok := c.seen[key]; ok {
			c.duped++
			return true
		}
		c.seen[key] = struct{}{}
		if c.opts.DuplicateCap > 0 && len(c.seen) >= c.opts.DuplicateCap {
			c.capped = true
		}
	}

	return false
}

func (c *Cleaner) Reports() []CleaningReport {
	var reports []CleaningReport
	if c.opts.TrimWhitespace {
		reports = append(reports, CleaningReport{Operation: "trim_whitespace", RowsAffected: c.trimmed})
	}
	if c.opts.DropEmptyRows {
		reports = append(reports, CleaningReport{Operation: "drop_empty_rows", RowsAffected: c.empty})
	}
	if c.opts.DropDuplicates {
		reports = append(reports, CleaningReport{Operation: "drop_duplicates", RowsAffected: c.duped})
	}
	return reports
}
