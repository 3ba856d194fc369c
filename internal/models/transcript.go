package models

import "strings"

// SplitTranscript turns a raw transcript string into its ordered line
// array. Carriage returns are tolerated; trailing whitespace per line is
// trimmed but blank lines are preserved so indexes stay stable.
func SplitTranscript(raw string) []string {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	lines := strings.Split(raw, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	return lines
}

// FocusedOverrideRow is one row of the narrow-scope second extraction
// pass: it re-states quantity and/or tax rate for a named product.
type FocusedOverrideRow struct {
	ProductName string   `json:"product_name"`
	Quantity    *float64 `json:"quantity,omitempty"`
	TaxRate     *float64 `json:"tax_rate,omitempty"`
}
