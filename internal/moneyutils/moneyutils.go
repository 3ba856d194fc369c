// Package moneyutils provides the locale-aware monetary primitives used
// throughout the reconciliation engine: cent parsing, tax-rate snapping
// and net/tax splits. All monetary math goes through shopspring/decimal to
// avoid floating-point drift.
package moneyutils

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

// SetLogger sets a custom logger for this package
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Tax rates that appear on German retail receipts.
const (
	TaxRateZero    = 0.0
	TaxRateReduced = 0.07
	TaxRateFull    = 0.19
)

// snapTolerance is how far (in rate points) a value may sit from a known
// rate and still be snapped onto it.
const snapTolerance = 0.02

var currencyNoise = regexp.MustCompile(`[€$£¥₣CHF\s]`)

// ParseAmountToCents parses a locale-formatted amount string into integer
// cents. It disambiguates '.' vs ',' as decimal separator: when both
// appear, the one followed by exactly 1-2 digits at the end of the string
// is the decimal separator and the other is a thousands grouping; a lone
// separator is decimal only when 1-2 digits follow it. A leading minus
// sign is preserved. Returns false on unparseable input, never an error.
func ParseAmountToCents(amountStr string) (int64, bool) {
	s := currencyNoise.ReplaceAllString(amountStr, "")
	if s == "" || s == "-" {
		return 0, false
	}

	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}

	s = standardizeSeparators(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	if neg {
		d = d.Neg()
	}
	return RoundHalfUp(d.Mul(decimal.NewFromInt(100))), true
}

// standardizeSeparators rewrites an unsigned amount string so that '.' is
// the only decimal separator and no grouping characters remain.
func standardizeSeparators(s string) string {
	hasComma := strings.Contains(s, ",")
	hasDot := strings.Contains(s, ".")

	switch {
	case hasComma && hasDot:
		if strings.LastIndex(s, ".") < strings.LastIndex(s, ",") {
			// European grouping (1.470,00)
			s = strings.ReplaceAll(s, ".", "")
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			// Anglo grouping (1,470.00)
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasComma:
		if decimalTail(s, ",") {
			s = strings.ReplaceAll(s, ",", ".")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case hasDot:
		if !decimalTail(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// decimalTail reports whether the last occurrence of sep is followed by
// exactly 1-2 digits at the end of the string.
func decimalTail(s, sep string) bool {
	idx := strings.LastIndex(s, sep)
	tail := s[idx+len(sep):]
	if len(tail) < 1 || len(tail) > 2 {
		return false
	}
	for _, r := range tail {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// NormalizeTaxRate snaps a raw model-supplied tax value onto one of the
// known rates. Percentage-like inputs (>1) are divided by 100 first. If no
// known rate is within tolerance the value defaults to the full rate when
// it suggests more than 10%, else to the reduced rate.
func NormalizeTaxRate(value float64, ok bool) float64 {
	if !ok {
		return TaxRateFull
	}
	v := value
	if v > 1 {
		v = v / 100
	}

	candidates := []float64{TaxRateZero, TaxRateReduced, TaxRateFull}
	best := -1.0
	bestDiff := snapTolerance
	for _, c := range candidates {
		diff := v - c
		if diff < 0 {
			diff = -diff
		}
		if diff <= bestDiff {
			best = c
			bestDiff = diff
		}
	}
	if best >= 0 {
		return best
	}

	log.WithField("value", value).Warn("Tax rate outside known bands, falling back")
	if v > 0.10 {
		return TaxRateFull
	}
	return TaxRateReduced
}

// ComputeNetAndTax splits a gross cent amount into net and tax for the
// given rate. net = round-half-up(gross / (1+rate)); tax is the remainder
// so net + tax always equals gross exactly.
func ComputeNetAndTax(grossCents int64, taxRate float64) (net int64, tax int64) {
	if taxRate == 0 {
		return grossCents, 0
	}
	gross := decimal.NewFromInt(grossCents)
	divisor := decimal.NewFromFloat(1).Add(decimal.NewFromFloat(taxRate))
	net = RoundHalfUp(gross.Div(divisor))
	tax = grossCents - net
	return net, tax
}

// RoundHalfUp rounds a decimal to zero places, half away from zero, and
// returns the integer result. Used everywhere instead of banker's
// rounding so repeated monetary math cannot drift.
func RoundHalfUp(d decimal.Decimal) int64 {
	return d.Round(0).IntPart()
}

// RoundFloatHalfUp is RoundHalfUp for float inputs that originate from
// quantity arithmetic rather than parsed amounts.
func RoundFloatHalfUp(v float64) int64 {
	return RoundHalfUp(decimal.NewFromFloat(v))
}

// FloatToCents converts a currency-unit float (e.g. 2.18) into integer
// cents with half-up rounding.
func FloatToCents(v float64) int64 {
	return RoundHalfUp(decimal.NewFromFloat(v).Mul(decimal.NewFromInt(100)))
}
