package pipeline

import (
	"encoding/json"
	"io"
)

type jsonRowReader struct {
	columns []string
	rows    []map[string]Value
	pos     int
}

// newJSONRowReader expects an array of objects and exposes the union of all
// keys, in first-seen order, as columns. The key union is only known after
// the last object, so JSON input is decoded up front; the row cap bounds the
// buffered size.
func newJSONRowReader(r io.Reader, maxRows int64) (*jsonRowReader, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return nil, parseErrorf("file is empty")
	}
	if err != nil {
		return nil, parseErrorf("reading json: %v", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '[' {
		return nil, parseErrorf("json root must be an array of objects")
	}

	var columns []string
	seen := make(map[string]struct{})
	var rows []map[string]Value

	for dec.More() {
		var obj map[string]interface{}
		if err := dec.Decode(&obj); err != nil {
			return nil, parseErrorf("json element %d is not an object: %v", len(rows)+1, err)
		}
		if obj == nil {
			return nil, parseErrorf("json element %d is not an object", len(rows)+1)
		}

		if maxRows > 0 && int64(len(rows)) >= maxRows {
			return nil, parseErrorf("file exceeds the row limit of %d", maxRows)
		}

		row := make(map[string]Value, len(obj))
		for key, raw := range obj {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				columns = append(columns, key)
			}
			row[key] = jsonValue(raw)
		}
		rows = append(rows, row)
	}

	if _, err := dec.Token(); err != nil {
		return nil, parseErrorf("reading json: %v", err)
	}

	return &jsonRowReader{columns: columns, rows: rows}, nil
}

func jsonValue(raw interface{}) Value {
	switch v := raw.(type) {
	case nil:
		return NullValue()
	case bool:
		return BoolValue(v)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return StringValue(v.String())
		}
		return NumberValue(v.String(), f)
	case string:
		if v == "" {
			return NullValue()
		}
		return StringValue(v)
	default:
		// Nested arrays/objects are kept as their JSON text.
		b, err := json.Marshal(v)
		if err != nil {
			return NullValue()
		}
		return StringValue(string(b))
	}
}

func (r *jsonRowReader) Columns() []string {
	return r.columns
}

func (r *jsonRowReader) Next() (Row, error) {
	if r.pos >= len(r.rows) {
		return Row{}, io.EOF
	}
	obj := r.rows[r.pos]
	r.pos++

	values := make([]Value, len(r.columns))
	for i, col := range r.columns {
		if v, ok := obj[col]; ok {
			values[i] = v
		} else {
			values[i] = NullValue()
		}
	}
	return Row{Number: int64(r.pos), Values: values}, nil
}

func (r *jsonRowReader) Close() error {
	return nil
}
