package pipeline

import (
	"strconv"
	"strings"
)

// Kind discriminates the scalar variants a cell can hold.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
)

// Value is the tagged-union scalar for one cell. Numbers keep their source
// text in Raw so integer/float classification does not depend on float64
// round-tripping.
type Value struct {
	Kind   Kind
	Bool   bool
	Number float64
	Raw    string
}

func NullValue() Value {
	return Value{Kind: KindNull}
}

func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Bool: b}
}

func NumberValue(raw string, f float64) Value {
	return Value{Kind: KindNumber, Number: f, Raw: raw}
}

func StringValue(s string) Value {
	return Value{Kind: KindString, Raw: s}
}

func (v Value) IsNull() bool {
	return v.Kind == KindNull
}

// Text returns the canonical textual form, used for distinct-value tracking
// and record payloads.
func (v Value) Text() string {
	switch v.Kind {
	case KindNull:
		return ""
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	default:
		return v.Raw
	}
}

// Float reports the numeric view of the value. String cells are parsed so
// CSV numbers participate in numeric statistics.
func (v Value) Float() (float64, bool) {
	switch v.Kind {
	case KindNumber:
		return v.Number, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.Raw), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// Interface converts the value for JSON serialization in record payloads.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindNull:
		return nil
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	default:
		return v.Raw
	}
}

// Row is one parsed data row. Number is 1-based and counts data rows only,
// the header row is never included.
type Row struct {
	Number int64
	Values []Value
}

// Map renders the row as column name to scalar, aligned to columns.
func (r Row) Map(columns []string) map[string]interface{} {
	out := make(map[string]interface{}, len(columns))
	for i, col := range columns {
		if i < len(r.Values) {
			out[col] = r.Values[i].Interface()
		} else {
			out[col] = nil
		}
	}
	return out
}
