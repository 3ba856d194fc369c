package normalizer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"fhartmann/bonscan/internal/models"
	"fhartmann/bonscan/internal/moneyutils"
)

// Type coercion helpers for the loosely-typed model payload. JSON numbers
// arrive as float64; everything else is coerced defensively and failures
// report false instead of erroring.

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func optString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// asFloat coerces numbers and numeric-looking strings (including
// percentage suffixes and comma decimals) into a float.
func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	case string:
		s := strings.TrimSpace(t)
		s = strings.TrimSuffix(s, "%")
		s = strings.TrimSpace(s)
		s = strings.ReplaceAll(s, ",", ".")
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

// asCents coerces a monetary value into integer cents. Integer inputs
// are read as cents already, which keeps re-normalizing canonical output
// a no-op; decimal numbers are currency units (2.18 -> 218); strings go
// through the locale-aware amount parser. Nil on anything unusable.
//
// An integral float64 counts as an integer input: a map decoded without
// json.Decoder.UseNumber delivers integer cent amounts as float64, and
// those must survive a round trip unchanged.
func asCents(v any) *int64 {
	switch t := v.(type) {
	case json.Number:
		s := t.String()
		if !strings.ContainsAny(s, ".eE") {
			if cents, err := t.Int64(); err == nil {
				return &cents
			}
			return nil
		}
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		return models.Int64Ptr(moneyutils.FloatToCents(f))
	case float64:
		if t == math.Trunc(t) {
			return models.Int64Ptr(int64(t))
		}
		return models.Int64Ptr(moneyutils.FloatToCents(t))
	case int:
		return models.Int64Ptr(int64(t))
	case int64:
		return models.Int64Ptr(t)
	case string:
		if cents, ok := moneyutils.ParseAmountToCents(t); ok {
			return &cents
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
