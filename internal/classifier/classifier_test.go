package classifier

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fhartmann/bonscan/internal/models"
)

func amounts(net, tax, gross int64) Amounts {
	return Amounts{Net: &net, Tax: &tax, Gross: &gross}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name     string
		hint     string
		product  string
		amounts  Amounts
		expected models.LineType
	}{
		{"Explicit hint wins", "DISCOUNT", "Pfand Mehrweg", amounts(50, 5, 55), models.LineTypeDiscount},
		{"Explicit hint case-insensitive", "deposit_refund", "Milch", amounts(50, 5, 55), models.LineTypeDepositRefund},
		{"Invalid hint ignored", "WHATEVER", "Milch", amounts(50, 5, 55), models.LineTypeSale},
		{"Discount keyword", "", "Treue-Rabatt 10%", amounts(-100, 0, -100), models.LineTypeDiscount},
		{"Coupon keyword", "", "COUPON Sommer", Amounts{}, models.LineTypeDiscount},
		{"Deposit refund on negative", "", "Pfand Mehrweg", amounts(-50, -50, -50), models.LineTypeDepositRefund},
		{"Deposit charge on positive", "", "Pfand", amounts(50, 50, 50), models.LineTypeDepositCharge},
		{"Leergut refund", "", "Leergut", amounts(-125, 0, -125), models.LineTypeDepositRefund},
		{"Unexplained negative is refund", "", "Irgendwas", amounts(-10, -1, -11), models.LineTypeDepositRefund},
		{"Plain sale", "", "Schokolade Lindt", amounts(183, 35, 218), models.LineTypeSale},
		{"No amounts known", "", "Schokolade", Amounts{}, models.LineTypeSale},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, Classify(tc.hint, tc.product, tc.amounts))
		})
	}
}

func TestIsDepositName(t *testing.T) {
	assert.True(t, IsDepositName("PFAND 0,25 EUR"))
	assert.True(t, IsDepositName("Einweg-Pfand"))
	assert.False(t, IsDepositName("Schokolade"))
}
