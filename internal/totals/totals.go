// Package totals backfills missing header totals from item sums and
// checks the printed total against the reconciled line items.
package totals

import (
	"github.com/sirupsen/logrus"

	"fhartmann/bonscan/internal/models"
)

var log = logrus.New()

// SetLogger sets a custom logger for this package
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// MismatchToleranceCents is the default drift between the item-gross sum
// and the printed total before a mismatch is recorded.
const MismatchToleranceCents = 3

// Reconcile fills any total missing from provided by summing the matching
// item-level field. A sum over items where every item has the field is a
// complete sum; a partial sum is still used as best-effort fallback.
func Reconcile(items []models.LineItem, provided models.Totals) models.Totals {
	out := provided
	if out.TotalNet == nil {
		out.TotalNet = sumField(items, func(li models.LineItem) *int64 { return li.LineNet })
	}
	if out.TotalTax == nil {
		out.TotalTax = sumField(items, func(li models.LineItem) *int64 { return li.LineTax })
	}
	if out.TotalGross == nil {
		out.TotalGross = sumField(items, func(li models.LineItem) *int64 { return li.LineGross })
	}
	return out
}

// CheckConsistency compares the summed line grosses to the printed total
// and returns a non-fatal mismatch annotation when they disagree by more
// than toleranceCents. A negative tolerance falls back to the default.
// A mismatch never rejects the receipt.
func CheckConsistency(items []models.LineItem, t models.Totals, toleranceCents int) *models.TotalsMismatch {
	if toleranceCents < 0 {
		toleranceCents = MismatchToleranceCents
	}
	if t.TotalGross == nil {
		return nil
	}
	sum := sumField(items, func(li models.LineItem) *int64 { return li.LineGross })
	if sum == nil {
		return nil
	}
	diff := *sum - *t.TotalGross
	if diff < 0 {
		diff = -diff
	}
	if diff <= int64(toleranceCents) {
		return nil
	}
	log.WithFields(logrus.Fields{
		"sum_gross":      *sum,
		"expected_gross": *t.TotalGross,
	}).Warn("Line item sum disagrees with printed total")
	return &models.TotalsMismatch{SumGross: *sum, ExpectedGross: *t.TotalGross}
}

// sumField adds up one monetary field across items. Returns nil when no
// item carries the field at all.
func sumField(items []models.LineItem, get func(models.LineItem) *int64) *int64 {
	var sum int64
	seen := false
	for _, li := range items {
		if v := get(li); v != nil {
			sum += *v
			seen = true
		}
	}
	if !seen {
		return nil
	}
	return &sum
}
