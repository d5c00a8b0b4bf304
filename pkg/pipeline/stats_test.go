package pipeline

import (
	"fmt"
	"math"
	"testing"
)

func observeAll(c *Collector, rows []Row) {
	for _, r := range rows {
		c.Observe(r)
	}
}

func TestCollectorNumericStats(t *testing.T) {
	c := NewCollector([]string{"v"}, 0)
	observeAll(c, []Row{
		{Number: 1, Values: []Value{StringValue("2")}},
		{Number: 2, Values: []Value{StringValue("4")}},
		{Number: 3, Values: []Value{StringValue("6")}},
		{Number: 4, Values: []Value{NullValue()}},
	})

	res := c.Finalize()
	if res.TotalRows != 4 {
		t.Fatalf("expected 4 rows, got %d", res.TotalRows)
	}
	cs := res.Columns["v"]
	if cs.NullCount != 1 || cs.NonNullCount != 3 || cs.NumericCount != 3 {
		t.Fatalf("unexpected counts: %+v", cs)
	}
	if *cs.Min != 2 || *cs.Max != 6 {
		t.Fatalf("min/max wrong: %v/%v", *cs.Min, *cs.Max)
	}
	if *cs.Mean != 4 {
		t.Fatalf("mean wrong: %v", *cs.Mean)
	}
	// Population standard deviation of {2,4,6}.
	want := math.Sqrt(8.0 / 3.0)
	if math.Abs(*cs.StdDev-want) > 1e-9 {
		t.Fatalf("std wrong: got %v, want %v", *cs.StdDev, want)
	}
}

func TestCollectorNonNumericColumn(t *testing.T) {
	c := NewCollector([]string{"name"}, 0)
	observeAll(c, []Row{
		{Number: 1, Values: []Value{StringValue("alice")}},
		{Number: 2, Values: []Value{StringValue("bob")}},
		{Number: 3, Values: []Value{StringValue("alice")}},
	})

	cs := c.Finalize().Columns["name"]
	if cs.NumericCount != 0 || cs.Mean != nil || cs.StdDev != nil {
		t.Fatalf("string column should carry no numeric stats: %+v", cs)
	}
	if cs.DistinctCount != 2 {
		t.Fatalf("expected 2 distinct values, got %d", cs.DistinctCount)
	}
}

func TestCollectorDistinctCap(t *testing.T) {
	c := NewCollector([]string{"id"}, 5)
	for i := 0; i < 20; i++ {
		c.Observe(Row{Number: int64(i + 1), Values: []Value{StringValue(fmt.Sprintf("id-%d", i))}})
	}

	cs := c.Finalize().Columns["id"]
	if !cs.DistinctAtCap {
		t.Fatalf("expected distinct tracking to hit the cap")
	}
	if cs.DistinctCount != 5 {
		t.Fatalf("capped distinct count should stop at 5, got %d", cs.DistinctCount)
	}
}

func TestCollectorShortRow(t *testing.T) {
	c := NewCollector([]string{"a", "b"}, 0)
	c.Observe(Row{Number: 1, Values: []Value{StringValue("1")}})

	cs := c.Finalize().Columns["b"]
	if cs.NullCount != 1 {
		t.Fatalf("missing cell should count as null: %+v", cs)
	}
}

func TestPayloadShape(t *testing.T) {
	c := NewCollector([]string{"v"}, 0)
	c.Observe(Row{Number: 1, Values: []Value{StringValue("10")}})

	payload := c.Finalize().Payload()
	if payload["total_rows"] != int64(1) {
		t.Fatalf("unexpected total_rows: %v", payload["total_rows"])
	}
	if payload["total_columns"] != 1 {
		t.Fatalf("unexpected total_columns: %v", payload["total_columns"])
	}
	colStats, ok := payload["column_stats"].(map[string]interface{})
	if !ok {
		t.Fatalf("column_stats missing: %v", payload)
	}
	entry := colStats["v"].(map[string]interface{})
	if entry["min"] != 10.0 || entry["max"] != 10.0 {
		t.Fatalf("unexpected numeric entry: %v", entry)
	}
}

func TestIsOutlier(t *testing.T) {
	if IsOutlier(10, 10, 0) {
		t.Fatalf("zero deviation never flags outliers")
	}
	if IsOutlier(12, 10, 1) {
		t.Fatalf("2 sigma is not an outlier")
	}
	if !IsOutlier(14, 10, 1) {
		t.Fatalf("4 sigma should be an outlier")
	}
	if !IsOutlier(6, 10, 1) {
		t.Fatalf("outliers are two-sided")
	}
}
