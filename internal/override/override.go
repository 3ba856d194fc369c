// Package override merges the focused second-pass extraction (quantity
// and tax rate only) into the reconciled items via fuzzy name matching,
// then re-establishes monetary consistency for any quantity change.
package override

import (
	"math"

	"github.com/sirupsen/logrus"

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

// Field names an override row may change.
const (
	FieldQuantity = "quantity"
	FieldTaxRate  = "tax_rate"
)

// floatTolerance is the cutoff below which an override value is treated
// as unchanged.
const floatTolerance = 1e-6

// ClampRatio is the default safety clamp for post-override corrections:
// when the smaller relative change still exceeds this ratio, the
// correction is refused and the item left as-is.
const ClampRatio = 0.51

// Result carries the merged items, the application summary and the set
// of item indexes whose quantity changed.
type Result struct {
	Items           []models.LineItem
	Summary         models.OverrideApplicationSummary
	QuantityChanged map[int]bool
}

// Apply merges override rows into the items. Only the allowed fields are
// touched, and only when the override value actually differs. Items are
// copied; the input slice is left alone.
func Apply(items []models.LineItem, overrides []models.FocusedOverrideRow, allowedFields []string, threshold float64) Result {
	out := Result{
		Items:           make([]models.LineItem, len(items)),
		QuantityChanged: make(map[int]bool),
	}
	for i, li := range items {
		out.Items[i] = li.Clone()
	}

	allowed := make(map[string]bool, len(allowedFields))
	for _, f := range allowedFields {
		allowed[f] = true
	}

	names := make([]string, len(items))
	for i, li := range items {
		names[i] = li.ProductName
	}

	for _, row := range overrides {
		out.Summary.Attempted++
		idx, score := matcher.BestMatch(row.ProductName, names, threshold)
		if idx < 0 {
			out.Summary.UnmatchedEntries++
			log.WithFields(logrus.Fields{
				"override_name": row.ProductName, "best_score": score,
			}).Debug("Override row matched no item")
			continue
		}

		diff := models.OverrideDiff{
			ItemName:     out.Items[idx].ProductName,
			OverrideName: row.ProductName,
			Score:        score,
		}

		if allowed[FieldQuantity] && row.Quantity != nil && *row.Quantity > 0 &&
			math.Abs(*row.Quantity-out.Items[idx].Quantity) > floatTolerance {
			diff.Changes = append(diff.Changes, models.FieldChange{
				Field: FieldQuantity, Old: out.Items[idx].Quantity, New: *row.Quantity,
			})
			out.Items[idx].Quantity = *row.Quantity
			out.QuantityChanged[idx] = true
		}
		if allowed[FieldTaxRate] && row.TaxRate != nil {
			newRate := moneyutils.NormalizeTaxRate(*row.TaxRate, true)
			if math.Abs(newRate-out.Items[idx].TaxRate) > floatTolerance {
				diff.Changes = append(diff.Changes, models.FieldChange{
					Field: FieldTaxRate, Old: out.Items[idx].TaxRate, New: newRate,
				})
				out.Items[idx].TaxRate = newRate
			}
		}

		if len(diff.Changes) == 0 {
			out.Summary.UnchangedMatches++
		} else {
			out.Summary.UpdatedItems++
		}
		out.Summary.Details = append(out.Summary.Details, diff)
	}
	return out
}

// Reconcile repairs the gross/unit-price relationship for items whose
// quantity was overridden. Two candidate corrections are weighed by
// relative change against the candidate value; the smaller one is
// applied, unless even it exceeds clampRatio, in which case the item is
// deliberately left untouched rather than guessed at. A non-positive
// clampRatio falls back to the default.
func Reconcile(items []models.LineItem, quantityChanged map[int]bool, clampRatio float64) []models.LineItem {
	if clampRatio <= 0 {
		clampRatio = ClampRatio
	}
	out := make([]models.LineItem, len(items))
	for i, li := range items {
		out[i] = li.Clone()
		if !quantityChanged[i] {
			continue
		}
		reconcileItem(&out[i], clampRatio)
	}
	return out
}

func reconcileItem(item *models.LineItem, clampRatio float64) {
	if item.LineGross == nil || item.UnitPriceGross == nil || item.Quantity <= 0 {
		return
	}
	gross := *item.LineGross
	unit := abs64(*item.UnitPriceGross)
	if unit == 0 {
		return
	}

	// Candidate (i): trust the unit price, rescale the row total.
	newGross := moneyutils.RoundFloatHalfUp(item.Quantity * float64(unit))
	if gross < 0 {
		newGross = -newGross
	}
	grossChange := relativeChange(gross, newGross)

	// Candidate (ii): trust the row total, rescale the unit price.
	newUnit := moneyutils.RoundFloatHalfUp(float64(abs64(gross)) / item.Quantity)
	unitChange := relativeChange(unit, newUnit)

	if math.Min(grossChange, unitChange) > clampRatio {
		log.WithFields(logrus.Fields{
			"name": item.ProductName, "gross_change": grossChange, "unit_change": unitChange,
		}).Warn("Post-override correction implausible, leaving item unreconciled")
		return
	}

	if grossChange <= unitChange {
		item.LineGross = &newGross
	} else {
		item.UnitPriceGross = &newUnit
	}

	net, tax := moneyutils.ComputeNetAndTax(*item.LineGross, item.TaxRate)
	item.LineNet = &net
	item.LineTax = &tax
	item.UnitPriceNet = models.Int64Ptr(moneyutils.RoundFloatHalfUp(float64(net) / item.Quantity))
}

// relativeChange measures how far old sits from the candidate value, as
// a fraction of the candidate.
func relativeChange(old, candidate int64) float64 {
	if candidate == 0 {
		return math.Inf(1)
	}
	return math.Abs(float64(old-candidate)) / math.Abs(float64(candidate))
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
