package pipeline

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// ParseError marks a terminal, non-retryable parsing failure. The message is
// stored verbatim on the dataset row for operators.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return e.Reason
}

func parseErrorf(format string, args ...interface{}) *ParseError {
	return &ParseError{Reason: fmt.Sprintf(format, args...)}
}

func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}

// RowReader is a lazy sequence of rows. Next returns io.EOF after the last
// row. Readers are not restartable; re-reading means re-opening the blob.
type RowReader interface {
	Columns() []string
	Next() (Row, error)
	Close() error
}

// Parser turns raw bytes plus a file extension into a RowReader. MaxRows
// bounds resource use on pathological inputs; crossing it aborts the parse
// with a ParseError.
type Parser struct {
	MaxRows int64
}

func NewParser(maxRows int64) *Parser {
	return &Parser{MaxRows: maxRows}
}

// Open dispatches on the file extension. The caller owns closing the
// returned reader.
func (p *Parser) Open(r io.Reader, ext string) (RowReader, error) {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "csv":
		return newCSVRowReader(r, p.MaxRows)
	case "xlsx", "xls":
		return newExcelRowReader(r, p.MaxRows)
	case "json":
		return newJSONRowReader(r, p.MaxRows)
	default:
		return nil, parseErrorf("unsupported file type: %s", ext)
	}
}

// ExtensionOf returns the lowercased extension without the leading dot.
func ExtensionOf(fileName string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(fileName), "."))
}

// validHeader rejects headers that do not look like text, which is the
// cheapest reliable signal that a .csv upload is actually binary garbage.
func validHeader(fields []string) bool {
	nonEmpty := 0
	for _, f := range fields {
		if !utf8.ValidString(f) {
			return false
		}
		for _, r := range f {
			if r < 0x20 && r != '\t' {
				return false
			}
		}
		if strings.TrimSpace(f) != "" {
			nonEmpty++
		}
	}
	return nonEmpty > 0
}
