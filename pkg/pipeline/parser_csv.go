package pipeline

import (
	"encoding/csv"
	"errors"
	"io"
	"strings"
)

type csvRowReader struct {
	reader  *csv.Reader
	columns []string
	maxRows int64
	count   int64
}

func newCSVRowReader(r io.Reader, maxRows int64) (*csvRowReader, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = false
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err == io.EOF {
		return nil, parseErrorf("file is empty")
	}
	if err != nil {
		return nil, parseErrorf("reading header row: %v", err)
	}
	if !validHeader(header) {
		return nil, parseErrorf("file does not contain a readable header row")
	}

	columns := make([]string, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\uFEFF")
		}
		columns[i] = strings.TrimSpace(h)
	}

	return &csvRowReader{reader: cr, columns: columns, maxRows: maxRows}, nil
}

func (r *csvRowReader) Columns() []string {
	return r.columns
}

func (r *csvRowReader) Next() (Row, error) {
	for {
		rec, err := r.reader.Read()
		if err == io.EOF {
			return Row{}, io.EOF
		}
		if err != nil {
			// Skip structurally bad lines, matching lenient spreadsheet
			// imports. A fully unreadable stream fails instead.
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				continue
			}
			return Row{}, parseErrorf("reading csv row: %v", err)
		}

		r.count++
		if r.maxRows > 0 && r.count > r.maxRows {
			return Row{}, parseErrorf("file exceeds the row limit of %d", r.maxRows)
		}

		values := make([]Value, len(r.columns))
		for i := range r.columns {
			if i >= len(rec) {
				values[i] = NullValue()
				continue
			}
			cell := strings.TrimSpace(rec[i])
			if cell == "" {
				values[i] = NullValue()
			} else {
				values[i] = StringValue(cell)
			}
		}
		return Row{Number: r.count, Values: values}, nil
	}
}

func (r *csvRowReader) Close() error {
	return nil
}
