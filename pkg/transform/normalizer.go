package transform

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeColumnName converts a header to snake_case: lowercased, runs of
// non-alphanumeric characters collapsed to a single underscore.
func NormalizeColumnName(name string) string {
	var b strings.Builder
	lastUnderscore := true
	for _, r := range strings.TrimSpace(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false
		default:
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.TrimSuffix(b.String(), "_")
	if out == "" {
		return "column"
	}
	return out
}

// NormalizeColumns normalizes every header and disambiguates collisions with
// a numeric suffix, preserving order. Suffixed names are re-checked so a
// header that already looks like "name_2" cannot be produced twice.
func NormalizeColumns(columns []string) []string {
	out := make([]string, len(columns))
	seen := make(map[string]bool, len(columns))
	for i, col := range columns {
		name := NormalizeColumnName(col)
		if seen[name] {
			base := name
			for n := 2; ; n++ {
				name = fmt.Sprintf("%s_%d", base, n)
				if !seen[name] {
					break
				}
			}
		}
		seen[name] = true
		out[i] = name
	}
	return out
}
