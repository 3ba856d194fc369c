// Package normalizer converts raw vision-model JSON into the canonical
// receipt shape. Model output is frequently incomplete, wrongly typed or
// internally contradictory; every field resolves to a documented default
// instead of failing, and only items without a usable name (or that look
// like totals lines) are dropped.
package normalizer

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"fhartmann/bonscan/internal/classifier"
	"fhartmann/bonscan/internal/dateutils"
	"fhartmann/bonscan/internal/matcher"
	"fhartmann/bonscan/internal/models"
	"fhartmann/bonscan/internal/moneyutils"
	"fhartmann/bonscan/internal/reconerror"
	"fhartmann/bonscan/internal/totals"
)

var log = logrus.New()

// SetLogger sets a custom logger for this package
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Totals/header lines the model sometimes emits as items. Matched as
// lowercase prefixes of the product name.
var totalsKeywords = []string{"zwischensumme", "endsumme", "endbetrag", "summe", "gesamt", "total"}

// fuzzyTotalsKeywords additionally tolerate OCR slips like "Sumne" in the
// first token, within edit distance 2.
var fuzzyTotalsKeywords = []string{"summe", "gesamt", "total"}

// noiseQuantityDelta guards against re-deriving a quantity from a
// noise-level gross/unit ratio difference.
const noiseQuantityDelta = 0.5

// Normalize decodes the primary extraction JSON and normalizes it into a
// canonical receipt. Numbers are decoded as json.Number so that integer
// cent amounts survive a round trip unchanged. Only an undecodable
// payload is an error.
func Normalize(raw []byte) (*models.Receipt, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var m map[string]any
	if err := dec.Decode(&m); err != nil {
		return nil, &reconerror.PayloadError{Stage: "normalize", Err: err}
	}
	return NormalizePayload(m), nil
}

// NormalizePayload normalizes an already-decoded payload. It never fails:
// missing or malformed fields resolve to defaults.
func NormalizePayload(m map[string]any) *models.Receipt {
	r := &models.Receipt{}

	r.Merchant = normalizeMerchant(asMap(m["merchant"]))
	r.Currency = normalizeCurrency(asString(m["currency"]))
	r.PaymentMethod = normalizePaymentMethod(asString(m["payment_method"]))
	r.RawContent = asString(m["raw_content"])

	if s := asString(m["purchase_date_time"]); s != "" {
		if t, ok := dateutils.ParseReceiptDateTime(s); ok {
			r.PurchaseDateTime = &t
		} else {
			log.WithField("purchase_date_time", s).Warn("Unparseable purchase date, leaving unset")
		}
	}

	if rawItems, ok := m["items"].([]any); ok {
		for _, entry := range rawItems {
			itemMap, ok := entry.(map[string]any)
			if !ok {
				// Non-object entries are dropped silently.
				continue
			}
			if item, ok := NormalizeItem(itemMap, true); ok {
				r.Items = append(r.Items, item)
			}
		}
	}

	provided := normalizeTotals(asMap(m["totals"]))
	r.Totals = totals.Reconcile(r.Items, provided)

	if country := guessCountry(r.Merchant.Address); country != "" {
		r.Enrichment.GuessedCountry = country
	}

	return r
}

// NormalizeItem converts one raw item object into a canonical line item.
// Returns false when the item has no usable name or resembles a
// totals/header line; both are filtering decisions, not errors.
//
// allowQuantityPriceCoupling enables the corrections that assume the
// model forgot to multiply quantity into the row total. It is true on the
// initial pass and false when re-normalizing already-reconciled items.
//
// Monetary fields holding an integer value (json.Number "218", int, or
// an integral float64 such as 218.0) are read as cents verbatim; only
// values with a fractional part are treated as currency units. Callers
// building raw maps in code must therefore pass cents, not euros, for
// whole amounts.
func NormalizeItem(raw map[string]any, allowQuantityPriceCoupling bool) (models.LineItem, bool) {
	name := firstNonEmpty(asString(raw["product_name"]), asString(raw["name"]), asString(raw["description"]))
	if name == "" {
		return models.LineItem{}, false
	}
	if IsTotalsLine(name) {
		log.WithField("name", name).Debug("Dropping totals/header line posing as item")
		return models.LineItem{}, false
	}

	item := models.LineItem{ProductName: name}

	qty, ok := asFloat(raw["quantity"])
	if !ok || qty <= 0 {
		if raw["quantity"] != nil {
			log.WithFields(logrus.Fields{"name": name, "quantity": raw["quantity"]}).
				Warn("Invalid quantity, defaulting to 1")
		}
		qty = 1.0
	}
	item.Quantity = qty

	rateRaw, rateOK := asFloat(raw["tax_rate"])
	item.TaxRate = moneyutils.NormalizeTaxRate(rateRaw, rateOK)

	item.LineGross = asCents(raw["line_gross"])
	item.LineNet = asCents(raw["line_net"])
	item.LineTax = asCents(raw["line_tax"])
	item.UnitPriceGross = asCents(raw["unit_price_gross"])
	item.UnitPriceNet = asCents(raw["unit_price_net"])

	if idx, ok := asFloat(raw["line_index"]); ok && idx >= 0 && idx == math.Trunc(idx) {
		item.LineIndex = models.IntPtr(int(idx))
	}

	// The model frequently reports a row total equal to a single unit
	// price even though quantity > 1. Recompute the gross and discard the
	// stale net/tax so they are re-derived from the corrected value.
	if allowQuantityPriceCoupling &&
		item.UnitPriceGross != nil && item.LineGross != nil && item.Quantity > 1 &&
		abs64(*item.LineGross) == abs64(*item.UnitPriceGross) {
		corrected := moneyutils.RoundFloatHalfUp(float64(abs64(*item.UnitPriceGross)) * item.Quantity)
		if *item.LineGross < 0 {
			corrected = -corrected
		}
		log.WithFields(logrus.Fields{
			"name": name, "line_gross": *item.LineGross, "corrected": corrected,
		}).Warn("Row total equals unit price despite quantity > 1, remultiplying")
		item.LineGross = &corrected
		item.LineNet = nil
		item.LineTax = nil
	}

	deriveMissingAmounts(&item)

	item.LineType = classifier.Classify(asString(raw["line_type"]), name, classifier.Amounts{
		Net: item.LineNet, Tax: item.LineTax, Gross: item.LineGross,
	})

	applyNegativeAmountPolicy(&item)
	backfillUnitPrices(&item)

	if allowQuantityPriceCoupling {
		rederiveQuantity(&item)
	}

	return item, true
}

// IsTotalsLine reports whether a product name resembles a totals/header
// line: an exact keyword prefix, or a first token within edit distance
// 1-2 of a totals keyword to tolerate OCR slips like "Sumne".
func IsTotalsLine(name string) bool {
	lower := strings.ToLower(strings.TrimSpace(name))
	for _, kw := range totalsKeywords {
		if strings.HasPrefix(lower, kw) {
			return true
		}
	}
	token := lower
	if i := strings.IndexAny(token, " \t:"); i >= 0 {
		token = token[:i]
	}
	if len(token) < 5 {
		return false
	}
	for _, kw := range fuzzyTotalsKeywords {
		if d := matcher.Distance(token, kw); d >= 1 && d <= 2 {
			return true
		}
	}
	return false
}

// deriveMissingAmounts fills whichever of net/tax/gross can be derived
// from the other two, then splits the gross by tax rate when net and tax
// are both still unknown.
func deriveMissingAmounts(item *models.LineItem) {
	switch {
	case item.LineGross == nil && item.LineNet != nil && item.LineTax != nil:
		item.LineGross = models.Int64Ptr(*item.LineNet + *item.LineTax)
	case item.LineNet == nil && item.LineGross != nil && item.LineTax != nil:
		item.LineNet = models.Int64Ptr(*item.LineGross - *item.LineTax)
	case item.LineTax == nil && item.LineGross != nil && item.LineNet != nil:
		item.LineTax = models.Int64Ptr(*item.LineGross - *item.LineNet)
	}
	if item.LineGross != nil && item.LineNet == nil && item.LineTax == nil {
		net, tax := moneyutils.ComputeNetAndTax(*item.LineGross, item.TaxRate)
		item.LineNet = &net
		item.LineTax = &tax
	}
}

// applyNegativeAmountPolicy nulls out negative amounts on line types that
// do not permit them. Values are never silently re-signed.
func applyNegativeAmountPolicy(item *models.LineItem) {
	if item.LineType.AllowsNegativeAmounts() {
		return
	}
	for _, f := range []struct {
		name  string
		field **int64
	}{
		{"line_net", &item.LineNet},
		{"line_tax", &item.LineTax},
		{"line_gross", &item.LineGross},
	} {
		if *f.field != nil && **f.field < 0 {
			log.WithFields(logrus.Fields{
				"name": item.ProductName, "field": f.name, "value": **f.field, "line_type": item.LineType,
			}).Warn("Negative amount on non-negative line type, dropping value")
			*f.field = nil
		}
	}
}

// backfillUnitPrices derives unit prices from line amounts and quantity
// when the model did not provide them.
func backfillUnitPrices(item *models.LineItem) {
	if item.Quantity <= 0 {
		return
	}
	if item.UnitPriceGross == nil && item.LineGross != nil {
		item.UnitPriceGross = models.Int64Ptr(moneyutils.RoundFloatHalfUp(float64(*item.LineGross) / item.Quantity))
	}
	if item.UnitPriceNet == nil && item.LineNet != nil {
		item.UnitPriceNet = models.Int64Ptr(moneyutils.RoundFloatHalfUp(float64(*item.LineNet) / item.Quantity))
	}
}

// rederiveQuantity recovers a forgotten quantity from the gross/unit
// ratio when the ratio sits on an integer and differs from the current
// quantity by at least the noise guard.
func rederiveQuantity(item *models.LineItem) {
	if item.LineGross == nil || item.UnitPriceGross == nil || *item.UnitPriceGross == 0 {
		return
	}
	ratio := float64(abs64(*item.LineGross)) / float64(abs64(*item.UnitPriceGross))
	rounded := math.Round(ratio)
	if rounded < 1 || math.Abs(ratio-rounded) > 0.01 {
		return
	}
	if math.Abs(rounded-item.Quantity) < noiseQuantityDelta {
		return
	}
	log.WithFields(logrus.Fields{
		"name": item.ProductName, "old_quantity": item.Quantity, "new_quantity": rounded,
	}).Warn("Quantity inconsistent with gross/unit ratio, re-deriving")
	item.Quantity = rounded
}

func normalizeMerchant(m map[string]any) models.Merchant {
	out := models.Merchant{Name: strings.TrimSpace(asString(m["name"]))}
	addr := asMap(m["address"])
	out.Address = models.Address{
		Street:     optString(addr["street"]),
		City:       optString(addr["city"]),
		PostalCode: optString(addr["postal_code"]),
		Country:    optString(addr["country"]),
	}
	return out
}

func normalizeCurrency(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) != 3 {
		if s != "" {
			log.WithField("currency", s).Warn("Invalid currency code, defaulting to EUR")
		}
		return "EUR"
	}
	return s
}

func normalizePaymentMethod(s string) models.PaymentMethod {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch {
	case v == "CASH" || v == "BAR" || v == "BARZAHLUNG":
		return models.PaymentCash
	case v == "CARD" || strings.Contains(v, "KARTE") || strings.Contains(v, "CARD"):
		return models.PaymentCard
	}
	return models.PaymentOther
}

func normalizeTotals(m map[string]any) models.Totals {
	return models.Totals{
		TotalNet:   asCents(m["total_net"]),
		TotalTax:   asCents(m["total_tax"]),
		TotalGross: asCents(m["total_gross"]),
	}
}

// guessCountry infers the merchant country from the address when the
// model left it blank. A five-digit postal code on a German-layout
// receipt is read as Germany.
func guessCountry(addr models.Address) string {
	if addr.Country != nil && strings.TrimSpace(*addr.Country) != "" {
		return ""
	}
	if addr.PostalCode == nil {
		return ""
	}
	pc := strings.TrimSpace(*addr.PostalCode)
	if len(pc) != 5 {
		return ""
	}
	for _, r := range pc {
		if r < '0' || r > '9' {
			return ""
		}
	}
	return "DE"
}
