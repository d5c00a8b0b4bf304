package pipeline

import (
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

type excelRowReader struct {
	file    *excelize.File
	rows    *excelize.Rows
	columns []string
	maxRows int64
	count   int64
}

// newExcelRowReader reads the first sheet of a workbook with the streaming
// row iterator so large workbooks are not materialized twice.
func newExcelRowReader(r io.Reader, maxRows int64) (*excelRowReader, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, parseErrorf("opening workbook: %v", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, parseErrorf("workbook contains no sheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, parseErrorf("reading sheet %q: %v", sheets[0], err)
	}

	if !rows.Next() {
		rows.Close()
		f.Close()
		return nil, parseErrorf("sheet %q is empty", sheets[0])
	}
	header, err := rows.Columns()
	if err != nil {
		rows.Close()
		f.Close()
		return nil, parseErrorf("reading header row: %v", err)
	}
	if !validHeader(header) {
		rows.Close()
		f.Close()
		return nil, parseErrorf("sheet %q does not contain a readable header row", sheets[0])
	}

	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = strings.TrimSpace(h)
	}

	return &excelRowReader{file: f, rows: rows, columns: columns, maxRows: maxRows}, nil
}

func (r *excelRowReader) Columns() []string {
	return r.columns
}

func (r *excelRowReader) Next() (Row, error) {
	if !r.rows.Next() {
		if err := r.rows.Error(); err != nil {
			return Row{}, parseErrorf("reading sheet row: %v", err)
		}
		return Row{}, io.EOF
	}

	cells, err := r.rows.Columns()
	if err != nil {
		return Row{}, parseErrorf("reading sheet row: %v", err)
	}

	r.count++
	if r.maxRows > 0 && r.count > r.maxRows {
		return Row{}, parseErrorf("file exceeds the row limit of %d", r.maxRows)
	}

	// The iterator trims trailing empty cells; pad back to the header width.
	values := make([]Value, len(r.columns))
	for i := range r.columns {
		if i >= len(cells) {
			values[i] = NullValue()
			continue
		}
		cell := strings.TrimSpace(cells[i])
		if cell == "" {
			values[i] = NullValue()
		} else {
			values[i] = StringValue(cell)
		}
	}
	return Row{Number: r.count, Values: values}, nil
}

func (r *excelRowReader) Close() error {
	r.rows.Close()
	return r.file.Close()
}
