package pipeline

import "testing"

func TestClassifyValue(t *testing.T) {
	cases := []struct {
		in   Value
		want ColumnType
	}{
		{StringValue("42"), TypeInteger},
		{StringValue("-7"), TypeInteger},
		{StringValue("3.14"), TypeFloat},
		{StringValue("1e3"), TypeFloat},
		{StringValue("true"), TypeBoolean},
		{StringValue("FALSE"), TypeBoolean},
		{StringValue("2024-01-15"), TypeDate},
		{StringValue("2024-01-15T10:30:00Z"), TypeDate},
		{StringValue("hello"), TypeString},
		{StringValue("12abc"), TypeString},
		{BoolValue(true), TypeBoolean},
		{NumberValue("5", 5), TypeInteger},
		{NumberValue("5.0", 5), TypeFloat},
		{NumberValue("1e2", 100), TypeFloat},
		{NullValue(), TypeUnknown},
	}
	for _, c := range cases {
		if got := ClassifyValue(c.in); got != c.want {
			t.Errorf("ClassifyValue(%+v) = %s, want %s", c.in, got, c.want)
		}
	}
}

func TestInferSchemaFirstNonNull(t *testing.T) {
	columns := []string{"mixed"}
	sample := []Row{
		{Number: 1, Values: []Value{NullValue()}},
		{Number: 2, Values: []Value{StringValue("12")}},
		{Number: 3, Values: []Value{StringValue("not a number")}},
	}

	schema := InferSchema(columns, sample)
	if len(schema) != 1 {
		t.Fatalf("expected 1 column schema, got %d", len(schema))
	}
	col := schema[0]
	// Type comes from the first non-null value; later values never revise it.
	if col.Type != TypeInteger {
		t.Fatalf("expected integer, got %s", col.Type)
	}
	if !col.Nullable {
		t.Fatalf("column with a null sample must be nullable")
	}
	if len(col.SampleValues) != 3 {
		t.Fatalf("expected 3 sample values, got %d", len(col.SampleValues))
	}
}

func TestInferSchemaAllNull(t *testing.T) {
	schema := InferSchema([]string{"empty"}, []Row{
		{Number: 1, Values: []Value{NullValue()}},
		{Number: 2, Values: []Value{NullValue()}},
	})
	if schema[0].Type != TypeUnknown {
		t.Fatalf("all-null column should be unknown, got %s", schema[0].Type)
	}
	if !schema[0].Nullable {
		t.Fatalf("all-null column must be nullable")
	}
}

func TestInferSchemaShortRow(t *testing.T) {
	schema := InferSchema([]string{"a", "b"}, []Row{
		{Number: 1, Values: []Value{StringValue("x")}},
	})
	if schema[1].Type != TypeUnknown || !schema[1].Nullable {
		t.Fatalf("missing cell should count as null: %+v", schema[1])
	}
}

func TestSchemaPayload(t *testing.T) {
	payload := SchemaPayload([]ColumnSchema{
		{Name: "age", Type: TypeInteger, Nullable: true, SampleValues: []interface{}{30.0, nil}},
	})
	entry, ok := payload["age"].(map[string]interface{})
	if !ok {
		t.Fatalf("missing column entry: %v", payload)
	}
	if entry["type"] != "integer" || entry["nullable"] != true {
		t.Fatalf("unexpected entry: %v", entry)
	}
}
