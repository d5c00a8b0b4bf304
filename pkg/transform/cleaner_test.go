package transform

import (
	"testing"

	"github.com/datapilot-io/platform/pkg/pipeline"
)

func row(cells ...string) pipeline.Row {
	values := make([]pipeline.Value, len(cells))
	for i, c := range cells {
		if c == "" {
			values[i] = pipeline.NullValue()
		} else {
			values[i] = pipeline.StringValue(c)
		}
	}
	return pipeline.Row{Values: values}
}

func TestCleanerTrimsWhitespace(t *testing.T) {
	c := NewCleaner(CleanerOptions{TrimWhitespace: true})

	r := row("  alice  ", "bob")
	if skip := c.Clean(&r); skip {
		t.Fatalf("trimmed row should not be skipped")
	}
	if r.Values[0].Text() != "alice" {
		t.Fatalf("expected trimmed value, got %q", r.Values[0].Text())
	}

	// Whitespace-only cells become null after trimming.
	r2 := row("   ", "x")
	c.Clean(&r2)
	if !r2.Values[0].IsNull() {
		t.Fatalf("whitespace-only cell should become null")
	}
}

func TestCleanerDropsEmptyRows(t *testing.T) {
	c := NewCleaner(CleanerOptions{TrimWhitespace: true, DropEmptyRows: true})

	r := row("", "")
	if skip := c.Clean(&r); !skip {
		t.Fatalf("all-null row should be dropped")
	}

	r2 := row("  ", "  ")
	if skip := c.Clean(&r2); !skip {
		t.Fatalf("whitespace-only row should be dropped after trimming")
	}

	r3 := row("a", "")
	if skip := c.Clean(&r3); skip {
		t.Fatalf("partially filled row should be kept")
	}
}

func TestCleanerDropsDuplicates(t *testing.T) {
	c := NewCleaner(CleanerOptions{DropDuplicates: true, DuplicateCap: 100})

	r1 := row("a", "b")
	r2 := row("a", "b")
	r3 := row("a", "c")

	if c.Clean(&r1) {
		t.Fatalf("first occurrence should pass")
	}
	if !c.Clean(&r2) {
		t.Fatalf("exact duplicate should be dropped")
	}
	if c.Clean(&r3) {
		t.Fatalf("distinct row should pass")
	}
}

func TestCleanerDuplicateCap(t *testing.T) {
	c := NewCleaner(CleanerOptions{DropDuplicates: true, DuplicateCap: 2})

	rows := []pipeline.Row{row("1"), row("2"), row("3"), row("3")}
	var dropped int
	for i := range rows {
		if c.Clean(&rows[i]) {
			dropped++
		}
	}
	// The cap was reached after two distinct rows, so the later duplicate
	// pair passes through unchecked.
	if dropped != 0 {
		t.Fatalf("expected no drops past the cap, got %d", dropped)
	}
}

func TestCleanerReports(t *testing.T) {
	c := NewCleaner(DefaultCleanerOptions())

	r1 := row(" padded ", "x")
	r2 := row("", "")
	r3 := row("padded", "x")
	c.Clean(&r1)
	c.Clean(&r2)
	c.Clean(&r3)

	reports := c.Reports()
	byOp := map[string]int64{}
	for _, rep := range reports {
		byOp[rep.Operation] = rep.RowsAffected
	}
	if byOp["trim_whitespace"] != 1 {
		t.Fatalf("expected 1 trimmed row, got %d", byOp["trim_whitespace"])
	}
	if byOp["drop_empty_rows"] != 1 {
		t.Fatalf("expected 1 empty row, got %d", byOp["drop_empty_rows"])
	}
	if byOp["drop_duplicates"] != 1 {
		t.Fatalf("expected 1 duplicate, got %d", byOp["drop_duplicates"])
	}
}
