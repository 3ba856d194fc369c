// Package classifier decides the line type of a receipt row from explicit
// model hints, product-name keywords and amount signs.
package classifier

import (
	"strings"

	"fhartmann/bonscan/internal/models"
)

// Keyword sets are matched case-insensitively as substrings of the
// product name, the same way transaction categorization matches party
// names against category keywords.
var (
	discountKeywords = []string{"rabatt", "discount", "gutschein", "coupon", "nachlass"}
	depositKeywords  = []string{"pfand", "leergut", "einweg", "mehrweg"}
)

// Amounts carries the signed monetary context of a row. Nil means the
// field is unknown and contributes nothing to the decision.
type Amounts struct {
	Net   *int64
	Tax   *int64
	Gross *int64
}

// AnyNegative reports whether any known amount is below zero.
func (a Amounts) AnyNegative() bool {
	for _, v := range []*int64{a.Net, a.Tax, a.Gross} {
		if v != nil && *v < 0 {
			return true
		}
	}
	return false
}

// Classify resolves the line type for a row. An explicit valid hint wins
// outright; otherwise discount keywords, then deposit keywords split by
// amount sign, then an unexplained negative amount (conservatively read
// as a deposit refund), and finally plain SALE.
func Classify(rawHint string, productName string, amounts Amounts) models.LineType {
	hint := strings.ToUpper(strings.TrimSpace(rawHint))
	if models.ValidLineType(hint) {
		return models.LineType(hint)
	}

	name := strings.ToLower(productName)
	if containsAny(name, discountKeywords) {
		return models.LineTypeDiscount
	}
	if containsAny(name, depositKeywords) {
		if amounts.AnyNegative() {
			return models.LineTypeDepositRefund
		}
		return models.LineTypeDepositCharge
	}
	if amounts.AnyNegative() {
		return models.LineTypeDepositRefund
	}
	return models.LineTypeSale
}

// IsDepositName reports whether the name carries a deposit keyword; the
// raw-content parser uses this to infer DEPOSIT_CHARGE for reconstructed
// rows that lack a line type.
func IsDepositName(productName string) bool {
	return containsAny(strings.ToLower(productName), depositKeywords)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
