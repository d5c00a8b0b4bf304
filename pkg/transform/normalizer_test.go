package transform

import (
	"reflect"
	"testing"
)

func TestNormalizeColumnName(t *testing.T) {
	cases := map[string]string{
		"First Name":       "first_name",
		"  Total Sales  ":  "total_sales",
		"Price ($)":        "price",
		"UPPER":            "upper",
		"already_snake":    "already_snake",
		"weird---spacing":  "weird_spacing",
		"2024 Revenue":     "2024_revenue",
		"!!!":              "column",
		"":                 "column",
		"trailing symbol%": "trailing_symbol",
	}
	for in, want := range cases {
		if got := NormalizeColumnName(in); got != want {
			t.Errorf("NormalizeColumnName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestNormalizeColumnsCollisions(t *testing.T) {
	got := NormalizeColumns([]string{"Name", "name", "NAME", "other"})
	want := []string{"name", "name_2", "name_3", "other"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeColumns = %v, want %v", got, want)
	}
}

func TestNormalizeColumnsSuffixedHeaderCollision(t *testing.T) {
	// The second "a" collides with the literal "a_2" header too, so its
	// suffix must skip past it.
	got := NormalizeColumns([]string{"a", "a_2", "a"})
	want := []string{"a", "a_2", "a_3"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeColumns = %v, want %v", got, want)
	}
}
