// Package rawparser deterministically reconstructs quantity and unit
// price from the raw receipt transcript. Structured items are anchored to
// transcript lines and nearby multiplier patterns ("2 x 1,09") are read
// according to store-specific layouts.
package rawparser

import (
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"fhartmann/bonscan/internal/classifier"
	"fhartmann/bonscan/internal/matcher"
	"fhartmann/bonscan/internal/models"
	"fhartmann/bonscan/internal/moneyutils"
)

var log = logrus.New()

// SetLogger sets a custom logger for this package
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Config carries the layout rules for multiplier detection. Discounters
// with a split layout print the quantity ("2 x") and the unit price on
// two separate lines above the product row.
type Config struct {
	SplitLayoutStores []string
	StoreDetectLines  int
	AnchorThreshold   float64
}

// DefaultConfig matches the German discounter conventions the engine
// targets.
func DefaultConfig() Config {
	return Config{
		SplitLayoutStores: []string{"aldi", "netto"},
		StoreDetectLines:  8,
		AnchorThreshold:   matcher.AnchorThreshold,
	}
}

var (
	multiplierRe = regexp.MustCompile(`(?i)(\d+)\s*[x×*]\s*(-?\d{1,4}[.,]\d{2})`)
	qtyOnlyRe    = regexp.MustCompile(`(?i)^\s*(\d+)\s*[x×*]\s*$`)
	priceOnlyRe  = regexp.MustCompile(`^\s*(-?\d{1,4}[.,]\d{2})\s*€?\s*[AB]?\s*$`)
	rowTotalRe   = regexp.MustCompile(`(-?\d{1,4}[.,]\d{2})\s*€?\s*[AB]?\*?\s*$`)
	taxLetterRe  = regexp.MustCompile(`\s([AB])\*?\s*$`)
)

// multiplier is a detected "N x price" pattern.
type multiplier struct {
	quantity  float64
	unitCents int64
}

// Reconstruct anchors each seed item to a transcript line and recovers
// quantity and unit price from nearby multiplier patterns. Seeds without
// a usable anchor are skipped; when nothing anchors, the result is empty
// and the caller keeps its items.
func Reconstruct(rawLines []string, seeds []models.LineItem, merchantName string, cfg Config) []models.LineItem {
	if len(rawLines) == 0 || len(seeds) == 0 {
		return nil
	}
	split := isSplitLayoutStore(rawLines, merchantName, cfg)

	var out []models.LineItem
	for _, seed := range seeds {
		anchor := anchorIndex(rawLines, seed, cfg.AnchorThreshold)
		if anchor < 0 {
			log.WithField("name", seed.ProductName).Debug("No usable anchor, skipping item")
			continue
		}
		out = append(out, reconstructItem(rawLines, seed, anchor, split))
	}
	return out
}

// AnyMultiUnit reports whether any reconstructed item carries a quantity
// above 1. The reconstruction is only adopted when it demonstrably
// improves on the default quantity of 1.
func AnyMultiUnit(items []models.LineItem) bool {
	for _, li := range items {
		if li.Quantity > 1 {
			return true
		}
	}
	return false
}

// isSplitLayoutStore detects the store from the transcript head or the
// merchant name.
func isSplitLayoutStore(rawLines []string, merchantName string, cfg Config) bool {
	var head []string
	for _, l := range rawLines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		head = append(head, strings.ToLower(l))
		if len(head) >= cfg.StoreDetectLines {
			break
		}
	}
	haystack := strings.Join(head, "\n") + "\n" + strings.ToLower(merchantName)
	for _, store := range cfg.SplitLayoutStores {
		if strings.Contains(haystack, store) {
			return true
		}
	}
	return false
}

// anchorIndex prefers an explicit line_index hint when valid, else the
// best fuzzy match between item name and transcript lines.
func anchorIndex(rawLines []string, seed models.LineItem, threshold float64) int {
	if seed.LineIndex != nil && *seed.LineIndex >= 0 && *seed.LineIndex < len(rawLines) {
		return *seed.LineIndex
	}
	idx, _ := matcher.BestMatch(seed.ProductName, rawLines, threshold)
	return idx
}

func reconstructItem(rawLines []string, seed models.LineItem, anchor int, split bool) models.LineItem {
	rowTotal := seed.LineGross
	if rowTotal == nil {
		rowTotal = parseRowTotal(rawLines[anchor])
	}

	quantity := 1.0
	var unitGross *int64
	if rowTotal != nil {
		if m, ok := findMultiplier(rawLines, anchor, split, *rowTotal); ok {
			quantity = m.quantity
			unitGross = &m.unitCents
		} else {
			unitGross = models.Int64Ptr(abs64(*rowTotal))
		}
	}

	item := models.LineItem{
		ProductName:    seed.ProductName,
		Quantity:       quantity,
		UnitPriceGross: unitGross,
		TaxRate:        resolveTaxRate(seed, rawLines[anchor]),
		LineGross:      rowTotal,
		LineIndex:      models.IntPtr(anchor),
	}
	item.LineType = resolveLineType(seed, item)

	if rowTotal != nil {
		net, tax := moneyutils.ComputeNetAndTax(*rowTotal, item.TaxRate)
		item.LineNet = &net
		item.LineTax = &tax
		if quantity > 0 {
			item.UnitPriceNet = models.Int64Ptr(moneyutils.RoundFloatHalfUp(float64(net) / quantity))
		}
	}
	return item
}

// findMultiplier searches for an "N x price" pattern near the anchor. A
// match counts only when N x price reproduces the printed row total
// within one cent.
func findMultiplier(rawLines []string, anchor int, split bool, rowTotal int64) (multiplier, bool) {
	if m, ok := parseMultiplierLine(rawLines[anchor]); ok && validates(m, rowTotal) {
		return m, true
	}
	if anchor >= 1 {
		if m, ok := parseMultiplierLine(rawLines[anchor-1]); ok && validates(m, rowTotal) {
			return m, true
		}
	}
	if anchor >= 2 {
		if !split {
			if m, ok := parseMultiplierLine(rawLines[anchor-2]); ok && validates(m, rowTotal) {
				return m, true
			}
		} else {
			// Split layout: quantity-only line two above, price-only
			// line directly above the product row.
			if m, ok := parseSplitMultiplier(rawLines[anchor-2], rawLines[anchor-1]); ok && validates(m, rowTotal) {
				return m, true
			}
		}
	}
	return multiplier{}, false
}

func parseMultiplierLine(line string) (multiplier, bool) {
	match := multiplierRe.FindStringSubmatch(line)
	if match == nil {
		return multiplier{}, false
	}
	qty, ok := parseQuantity(match[1])
	if !ok {
		return multiplier{}, false
	}
	cents, ok := moneyutils.ParseAmountToCents(match[2])
	if !ok {
		return multiplier{}, false
	}
	return multiplier{quantity: qty, unitCents: abs64(cents)}, true
}

func parseSplitMultiplier(qtyLine, priceLine string) (multiplier, bool) {
	qtyMatch := qtyOnlyRe.FindStringSubmatch(qtyLine)
	priceMatch := priceOnlyRe.FindStringSubmatch(priceLine)
	if qtyMatch == nil || priceMatch == nil {
		return multiplier{}, false
	}
	qty, ok := parseQuantity(qtyMatch[1])
	if !ok {
		return multiplier{}, false
	}
	cents, ok := moneyutils.ParseAmountToCents(priceMatch[1])
	if !ok {
		return multiplier{}, false
	}
	return multiplier{quantity: qty, unitCents: abs64(cents)}, true
}

func validates(m multiplier, rowTotal int64) bool {
	if m.quantity <= 0 {
		return false
	}
	product := moneyutils.RoundFloatHalfUp(m.quantity * float64(m.unitCents))
	diff := product - abs64(rowTotal)
	if diff < 0 {
		diff = -diff
	}
	return diff <= 1
}

func parseQuantity(s string) (float64, bool) {
	var n int64
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int64(r-'0')
	}
	if n == 0 {
		return 0, false
	}
	return float64(n), true
}

// parseRowTotal reads the trailing printed amount off the anchor line.
func parseRowTotal(line string) *int64 {
	match := rowTotalRe.FindStringSubmatch(line)
	if match == nil {
		return nil
	}
	cents, ok := moneyutils.ParseAmountToCents(match[1])
	if !ok {
		return nil
	}
	return &cents
}

// resolveTaxRate reuses the seed's rate, falling back to the printed tax
// group letter (A = full, B = reduced) and then to the full rate.
func resolveTaxRate(seed models.LineItem, anchorLine string) float64 {
	if seed.TaxRate != 0 {
		return seed.TaxRate
	}
	if match := taxLetterRe.FindStringSubmatch(anchorLine); match != nil {
		if match[1] == "B" {
			return moneyutils.TaxRateReduced
		}
		return moneyutils.TaxRateFull
	}
	return moneyutils.TaxRateFull
}

func resolveLineType(seed models.LineItem, item models.LineItem) models.LineType {
	if seed.LineType != "" {
		return seed.LineType
	}
	if classifier.IsDepositName(item.ProductName) {
		return models.LineTypeDepositCharge
	}
	return classifier.Classify("", item.ProductName, classifier.Amounts{Gross: item.LineGross})
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
