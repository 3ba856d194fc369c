package models

// TotalsMismatch records a non-fatal disagreement between the summed line
// grosses and the printed receipt total.
type TotalsMismatch struct {
	SumGross      int64 `json:"sum_gross"`
	ExpectedGross int64 `json:"expected_gross"`
}

// FieldChange records one overridden field with its old and new value.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old"`
	New   any    `json:"new"`
}

// OverrideDiff describes one matched override row and what it changed.
type OverrideDiff struct {
	ItemName     string        `json:"item_name"`
	OverrideName string        `json:"override_name"`
	Score        float64       `json:"score"`
	Changes      []FieldChange `json:"changes"`
}

// OverrideApplicationSummary tallies the outcome of a focused-override
// merge pass. Unmatched rows are expected, not errors.
type OverrideApplicationSummary struct {
	Attempted        int            `json:"attempted"`
	UpdatedItems     int            `json:"updated_items"`
	UnmatchedEntries int            `json:"unmatched_entries"`
	UnchangedMatches int            `json:"unchanged_matches"`
	Details          []OverrideDiff `json:"details"`
}

// Enrichment carries non-authoritative diagnostics alongside the
// canonical receipt. Downstream consumers may ignore it entirely.
type Enrichment struct {
	TotalsMismatch    *TotalsMismatch              `json:"totals_mismatch,omitempty"`
	GuessedCountry    string                       `json:"guessed_country,omitempty"`
	OverrideSummaries []OverrideApplicationSummary `json:"override_summaries,omitempty"`
}
