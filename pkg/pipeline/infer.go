package pipeline

import (
	"regexp"
	"strconv"
	"strings"
)

type ColumnType string

const (
	TypeInteger ColumnType = "integer"
	TypeFloat   ColumnType = "float"
	TypeString  ColumnType = "string"
	TypeBoolean ColumnType = "boolean"
	TypeDate    ColumnType = "date"
	TypeUnknown ColumnType = "unknown"
)

var isoDatePrefix = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)

// ColumnSchema is the inferred description of one column.
type ColumnSchema struct {
	Name         string        `json:"name"`
	Type         ColumnType    `json:"type"`
	Nullable     bool          `json:"nullable"`
	SampleValues []interface{} `json:"sample_values"`
}

// InferSchema assigns a type to each column from the sampled rows. The type
// is decided from the first non-null sampled value only, not a majority
// vote, so mixed-type columns classify by their first observed value. A
// column whose entire sample is null is `unknown`.
func InferSchema(columns []string, sample []Row) []ColumnSchema {
	schema := make([]ColumnSchema, len(columns))
	for i, name := range columns {
		col := ColumnSchema{Name: name, Type: TypeUnknown}
		for _, row := range sample {
			var v Value
			if i < len(row.Values) {
				v = row.Values[i]
			}
			col.SampleValues = append(col.SampleValues, v.Interface())
			if v.IsNull() {
				col.Nullable = true
				continue
			}
			if col.Type == TypeUnknown {
				col.Type = ClassifyValue(v)
			}
		}
		schema[i] = col
	}
	return schema
}

// ClassifyValue maps a single scalar to a column type: numeric without a
// fraction is integer, numeric with a fraction is float, then boolean
// literals, then ISO-date-like prefixes, otherwise string.
func ClassifyValue(v Value) ColumnType {
	switch v.Kind {
	case KindBool:
		return TypeBoolean
	case KindNumber:
		if numberIsIntegral(v.Raw, v.Number) {
			return TypeInteger
		}
		return TypeFloat
	case KindString:
		s := strings.TrimSpace(v.Raw)
		if _, err := strconv.ParseInt(s, 10, 64); err == nil {
			return TypeInteger
		}
		if _, err := strconv.ParseFloat(s, 64); err == nil {
			return TypeFloat
		}
		switch strings.ToLower(s) {
		case "true", "false":
			return TypeBoolean
		}
		if isoDatePrefix.MatchString(s) {
			return TypeDate
		}
		return TypeString
	default:
		return TypeUnknown
	}
}

func numberIsIntegral(raw string, f float64) bool {
	if raw != "" {
		return !strings.ContainsAny(raw, ".eE")
	}
	return f == float64(int64(f))
}

// SchemaPayload renders the inferred schema for the dataset's persisted
// schema_info column.
func SchemaPayload(schema []ColumnSchema) map[string]interface{} {
	typeInfo := make(map[string]interface{}, len(schema))
	for _, col := range schema {
		typeInfo[col.Name] = map[string]interface{}{
			"type":          string(col.Type),
			"nullable":      col.Nullable,
			"sample_values": col.SampleValues,
		}
	}
	return typeInfo
}
