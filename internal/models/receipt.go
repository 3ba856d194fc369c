// Package models defines the canonical receipt shape shared by all
// reconciliation stages. Every pipeline stage consumes and produces these
// types; raw model JSON is converted into them exactly once, at the input
// boundary.
package models

import (
	"time"
)

// LineType classifies a receipt row.
type LineType string

const (
	LineTypeSale          LineType = "SALE"
	LineTypeDepositCharge LineType = "DEPOSIT_CHARGE"
	LineTypeDepositRefund LineType = "DEPOSIT_REFUND"
	LineTypeDiscount      LineType = "DISCOUNT"
	LineTypeOther         LineType = "OTHER"
)

// ValidLineType reports whether s is one of the five known line types.
func ValidLineType(s string) bool {
	switch LineType(s) {
	case LineTypeSale, LineTypeDepositCharge, LineTypeDepositRefund, LineTypeDiscount, LineTypeOther:
		return true
	}
	return false
}

// AllowsNegativeAmounts reports whether negative monetary values are
// permitted and preserved for this line type.
func (t LineType) AllowsNegativeAmounts() bool {
	switch t {
	case LineTypeDepositRefund, LineTypeDiscount, LineTypeOther:
		return true
	}
	return false
}

// PaymentMethod is how the receipt was settled.
type PaymentMethod string

const (
	PaymentCash  PaymentMethod = "CASH"
	PaymentCard  PaymentMethod = "CARD"
	PaymentOther PaymentMethod = "OTHER"
)

// Address holds the merchant's postal address. All fields are optional.
type Address struct {
	Street     *string `json:"street"`
	City       *string `json:"city"`
	PostalCode *string `json:"postal_code"`
	Country    *string `json:"country"`
}

// Merchant identifies the store the receipt came from.
type Merchant struct {
	Name    string  `json:"name"`
	Address Address `json:"address"`
}

// Totals carries the header-level sums in integer cents. Nil means the
// value is unknown.
type Totals struct {
	TotalNet   *int64 `json:"total_net"`
	TotalTax   *int64 `json:"total_tax"`
	TotalGross *int64 `json:"total_gross"`
}

// LineItem is one reconciled receipt row. Monetary fields are integer
// cents; nil means unknown. Negative values are only meaningful for line
// types that allow them.
type LineItem struct {
	ProductName    string   `json:"product_name"`
	Quantity       float64  `json:"quantity"`
	UnitPriceNet   *int64   `json:"unit_price_net"`
	UnitPriceGross *int64   `json:"unit_price_gross"`
	TaxRate        float64  `json:"tax_rate"`
	LineNet        *int64   `json:"line_net"`
	LineTax        *int64   `json:"line_tax"`
	LineGross      *int64   `json:"line_gross"`
	LineType       LineType `json:"line_type"`

	// LineIndex is an optional 0-based index into the raw transcript's
	// line array, used for anchoring during raw-content reconstruction.
	LineIndex *int `json:"line_index,omitempty"`
}

// Clone returns a deep copy of the item so stages can mutate-and-replace
// without aliasing pointers across stage boundaries.
func (li LineItem) Clone() LineItem {
	out := li
	out.UnitPriceNet = cloneInt64(li.UnitPriceNet)
	out.UnitPriceGross = cloneInt64(li.UnitPriceGross)
	out.LineNet = cloneInt64(li.LineNet)
	out.LineTax = cloneInt64(li.LineTax)
	out.LineGross = cloneInt64(li.LineGross)
	if li.LineIndex != nil {
		idx := *li.LineIndex
		out.LineIndex = &idx
	}
	return out
}

// Receipt is the canonical, reconciled receipt.
type Receipt struct {
	Merchant         Merchant      `json:"merchant"`
	PurchaseDateTime *time.Time    `json:"purchase_date_time"`
	Currency         string        `json:"currency"`
	PaymentMethod    PaymentMethod `json:"payment_method"`
	Totals           Totals        `json:"totals"`
	Items            []LineItem    `json:"items"`

	// RawContent is the transcript the receipt was extracted from, kept
	// for layout-based reconstruction. Empty if the model supplied none.
	RawContent string `json:"raw_content,omitempty"`

	Enrichment Enrichment `json:"_enrichment"`
}

// TranscriptLines splits RawContent into its ordered line array. Line
// order and content are authoritative for layout-based reconstruction.
func (r *Receipt) TranscriptLines() []string {
	if r.RawContent == "" {
		return nil
	}
	return SplitTranscript(r.RawContent)
}

func cloneInt64(p *int64) *int64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Int64Ptr is a convenience for building nullable cent amounts.
func Int64Ptr(v int64) *int64 { return &v }

// IntPtr is a convenience for building nullable indexes.
func IntPtr(v int) *int { return &v }

// Float64Ptr is a convenience for building optional override values.
func Float64Ptr(v float64) *float64 { return &v }

// StringPtr is a convenience for building optional address fields.
func StringPtr(v string) *string { return &v }
