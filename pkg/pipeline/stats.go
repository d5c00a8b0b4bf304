package pipeline

import "math"

// ColumnStats is the full-dataset aggregate for one column.
type ColumnStats struct {
	TotalCount    int64    `json:"total_count"`
	NullCount     int64    `json:"null_count"`
	NonNullCount  int64    `json:"non_null_count"`
	DistinctCount int64    `json:"unique_count"`
	DistinctAtCap bool     `json:"unique_count_capped"`
	NumericCount  int64    `json:"numeric_count,omitempty"`
	Min           *float64 `json:"min,omitempty"`
	Max           *float64 `json:"max,omitempty"`
	Mean          *float64 `json:"mean,omitempty"`
	StdDev        *float64 `json:"std,omitempty"`
}

// Result is the Statistics Engine output.
type Result struct {
	TotalRows    int64
	TotalColumns int
	Columns      map[string]*ColumnStats
}

type columnState struct {
	total   int64
	nulls   int64
	numeric int64
	sum     float64
	sumSq   float64
	min     float64
	max     float64

	distinct map[string]struct{}
	capped   bool
}

// Collector computes per-column aggregates in a single streaming pass:
// O(rows) time and O(columns) memory, plus bounded distinct tracking.
// Distinct counts are exact until distinctCap values have been seen, after
// which the count is reported as "at least cap".
type Collector struct {
	columns     []string
	states      []*columnState
	distinctCap int
	rows        int64
}

func NewCollector(columns []string, distinctCap int) *Collector {
	states := make([]*columnState, len(columns))
	for i := range states {
		states[i] = &columnState{distinct: make(map[string]struct{})}
	}
	return &Collector{columns: columns, states: states, distinctCap: distinctCap}
}

func (c *Collector) Observe(row Row) {
	c.rows++
	for i, st := range c.states {
		var v Value
		if i < len(row.Values) {
			v = row.Values[i]
		}
		st.total++
		if v.IsNull() {
			st.nulls++
			continue
		}

		if !st.capped {
			st.distinct[v.Text()] = struct{}{}
			if c.distinctCap > 0 && len(st.distinct) >= c.distinctCap {
				st.capped = true
			}
		}

		if f, ok := v.Float(); ok {
			if st.numeric == 0 || f < st.min {
				st.min = f
			}
			if st.numeric == 0 || f > st.max {
				st.max = f
			}
			st.numeric++
			st.sum += f
			st.sumSq += f * f
		}
	}
}

func (c *Collector) Rows() int64 {
	return c.rows
}

func (c *Collector) Finalize() *Result {
	res := &Result{
		TotalRows:    c.rows,
		TotalColumns: len(c.columns),
		Columns:      make(map[string]*ColumnStats, len(c.columns)),
	}
	for i, name := range c.columns {
		st := c.states[i]
		cs := &ColumnStats{
			TotalCount:    st.total,
			NullCount:     st.nulls,
			NonNullCount:  st.total - st.nulls,
			DistinctCount: int64(len(st.distinct)),
			DistinctAtCap: st.capped,
			NumericCount:  st.numeric,
		}
		if st.numeric > 0 {
			mean := st.sum / float64(st.numeric)
			variance := st.sumSq/float64(st.numeric) - mean*mean
			if variance < 0 {
				variance = 0
			}
			std := math.Sqrt(variance)
			minV, maxV := st.min, st.max
			cs.Min, cs.Max, cs.Mean, cs.StdDev = &minV, &maxV, &mean, &std
		}
		res.Columns[name] = cs
	}
	return res
}

// Payload renders the result for the dataset's persisted statistics column.
func (r *Result) Payload() map[string]interface{} {
	columns := make(map[string]interface{}, len(r.Columns))
	for name, cs := range r.Columns {
		entry := map[string]interface{}{
			"total_count":         cs.TotalCount,
			"null_count":          cs.NullCount,
			"non_null_count":      cs.NonNullCount,
			"unique_count":        cs.DistinctCount,
			"unique_count_capped": cs.DistinctAtCap,
		}
		if cs.NumericCount > 0 {
			entry["numeric_count"] = cs.NumericCount
			entry["min"] = *cs.Min
			entry["max"] = *cs.Max
			entry["mean"] = *cs.Mean
			entry["std"] = *cs.StdDev
		}
		columns[name] = entry
	}
	return map[string]interface{}{
		"total_rows":    r.TotalRows,
		"total_columns": r.TotalColumns,
		"column_stats":  columns,
	}
}

// IsOutlier reports whether a numeric value deviates from the mean by more
// than 3 standard deviations. Preview rendering applies this over the
// preview sample only.
func IsOutlier(value, mean, std float64) bool {
	if std <= 0 {
		return false
	}
	return math.Abs(value-mean) > 3*std
}
