package normalizer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fhartmann/bonscan/internal/models"
)

func TestNormalizeDefaults(t *testing.T) {
	r, err := Normalize([]byte(`{}`))
	require.NoError(t, err)

	assert.Equal(t, "", r.Merchant.Name)
	assert.Nil(t, r.Merchant.Address.Street)
	assert.Equal(t, "EUR", r.Currency)
	assert.Equal(t, models.PaymentOther, r.PaymentMethod)
	assert.Nil(t, r.PurchaseDateTime)
	assert.Empty(t, r.Items)
}

func TestNormalizeDecodeFailure(t *testing.T) {
	_, err := Normalize([]byte(`{not json`))
	assert.Error(t, err)
}

func TestNormalizeHeaderFields(t *testing.T) {
	payload := `{
		"merchant": {"name": " REWE Markt ", "address": {"street": "Hauptstr. 1", "city": "Köln", "postal_code": "50667"}},
		"purchase_date_time": "15.03.2024",
		"currency": "eur",
		"payment_method": "EC-Karte"
	}`
	r, err := Normalize([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, "REWE Markt", r.Merchant.Name)
	assert.Equal(t, "Köln", *r.Merchant.Address.City)
	assert.Equal(t, "EUR", r.Currency)
	assert.Equal(t, models.PaymentCard, r.PaymentMethod)
	require.NotNil(t, r.PurchaseDateTime)
	assert.Equal(t, 12, r.PurchaseDateTime.Hour())
	assert.Equal(t, "DE", r.Enrichment.GuessedCountry)
}

func TestNormalizeDropsNonObjectItems(t *testing.T) {
	payload := `{"items": ["garbage", 42, {"product_name": "Milch", "line_gross": "1,09"}]}`
	r, err := Normalize([]byte(payload))
	require.NoError(t, err)

	require.Len(t, r.Items, 1)
	assert.Equal(t, "Milch", r.Items[0].ProductName)
	assert.Equal(t, int64(109), *r.Items[0].LineGross)
}

func TestNormalizeBackfillsTotalsFromItems(t *testing.T) {
	payload := `{"items": [
		{"product_name": "A", "line_gross": "2,18", "tax_rate": 19},
		{"product_name": "B", "line_gross": "0,99", "tax_rate": 7}
	]}`
	r, err := Normalize([]byte(payload))
	require.NoError(t, err)

	require.NotNil(t, r.Totals.TotalGross)
	assert.Equal(t, int64(317), *r.Totals.TotalGross)
	assert.Equal(t, *r.Totals.TotalNet+*r.Totals.TotalTax, *r.Totals.TotalGross)
}

func TestNormalizeItemNameResolution(t *testing.T) {
	item, ok := NormalizeItem(map[string]any{"description": "Bananen"}, true)
	require.True(t, ok)
	assert.Equal(t, "Bananen", item.ProductName)

	item, ok = NormalizeItem(map[string]any{"name": "Milch", "description": "x"}, true)
	require.True(t, ok)
	assert.Equal(t, "Milch", item.ProductName)

	_, ok = NormalizeItem(map[string]any{"quantity": 2}, true)
	assert.False(t, ok)
}

func TestNormalizeItemDropsTotalsLines(t *testing.T) {
	for _, name := range []string{"SUMME", "Sumne", "summe EUR", "GESAMT", "Total", "Zwischensumme", "Endbetrag 12,34"} {
		_, ok := NormalizeItem(map[string]any{"product_name": name}, true)
		assert.False(t, ok, "expected %q to be dropped", name)
	}
	// Real products survive.
	for _, name := range []string{"Tomaten", "Salami", "Gesichtscreme light"} {
		_, ok := NormalizeItem(map[string]any{"product_name": name}, true)
		assert.True(t, ok, "expected %q to be kept", name)
	}
}

func TestNormalizeItemQuantityDefault(t *testing.T) {
	tests := []struct {
		name     string
		quantity any
		expected float64
	}{
		{"Missing", nil, 1.0},
		{"Zero", 0.0, 1.0},
		{"Negative", -2.0, 1.0},
		{"String number", "2", 2.0},
		{"Comma decimal string", "0,5", 0.5},
		{"Garbage", "zwei", 1.0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			item, ok := NormalizeItem(map[string]any{"product_name": "X", "quantity": tc.quantity}, true)
			require.True(t, ok)
			assert.Equal(t, tc.expected, item.Quantity)
		})
	}
}

func TestNormalizeItemQuantityPriceCoupling(t *testing.T) {
	raw := map[string]any{
		"product_name":     "Joghurt",
		"quantity":         2.0,
		"unit_price_gross": 0.89,
		"line_gross":       0.89,
		"tax_rate":         7,
	}
	item, ok := NormalizeItem(raw, true)
	require.True(t, ok)

	assert.Equal(t, int64(178), *item.LineGross)
	// Net and tax re-derived from the corrected gross.
	assert.Equal(t, *item.LineGross, *item.LineNet+*item.LineTax)

	// Coupling disabled: gross kept as reported.
	item, ok = NormalizeItem(raw, false)
	require.True(t, ok)
	assert.Equal(t, int64(89), *item.LineGross)
}

func TestNormalizeItemDerivesMissingAmounts(t *testing.T) {
	item, ok := NormalizeItem(map[string]any{
		"product_name": "Brot", "line_net": 200, "line_tax": 14,
	}, true)
	require.True(t, ok)
	assert.Equal(t, int64(214), *item.LineGross)

	item, ok = NormalizeItem(map[string]any{
		"product_name": "Brot", "line_gross": 214, "tax_rate": 7,
	}, true)
	require.True(t, ok)
	assert.Equal(t, int64(200), *item.LineNet)
	assert.Equal(t, int64(14), *item.LineTax)
}

func TestNormalizeItemNegativeAmountPolicy(t *testing.T) {
	// Negative amount on a SALE-classified row is dropped, not re-signed.
	item, ok := NormalizeItem(map[string]any{
		"product_name": "Milch", "line_type": "SALE", "line_gross": "-1,09",
	}, true)
	require.True(t, ok)
	assert.Nil(t, item.LineGross)

	// Deposit refund keeps its negative amounts verbatim.
	item, ok = NormalizeItem(map[string]any{
		"product_name": "Pfand Mehrweg", "line_gross": "-0,50",
	}, true)
	require.True(t, ok)
	assert.Equal(t, models.LineTypeDepositRefund, item.LineType)
	assert.Equal(t, int64(-50), *item.LineGross)
}

func TestNormalizeItemBackfillsUnitPrices(t *testing.T) {
	item, ok := NormalizeItem(map[string]any{
		"product_name": "Wasser", "quantity": 6.0, "line_gross": "3,54", "tax_rate": 19,
	}, true)
	require.True(t, ok)
	assert.Equal(t, int64(59), *item.UnitPriceGross)
	require.NotNil(t, item.UnitPriceNet)
}

func TestNormalizeItemRederivesQuantity(t *testing.T) {
	// Ratio sits exactly on 3 but quantity says 1: re-derive.
	item, ok := NormalizeItem(map[string]any{
		"product_name": "Cola", "quantity": 1.0, "unit_price_gross": 0.99, "line_gross": 2.97,
	}, true)
	require.True(t, ok)
	assert.Equal(t, 3.0, item.Quantity)

	// Noise-level difference: keep the reported quantity.
	item, ok = NormalizeItem(map[string]any{
		"product_name": "Cola", "quantity": 3.0, "unit_price_gross": 0.99, "line_gross": 2.97,
	}, true)
	require.True(t, ok)
	assert.Equal(t, 3.0, item.Quantity)
}

func TestNormalizeItemFloatCentsRule(t *testing.T) {
	// An integral float is cents verbatim, matching how a plain
	// json.Unmarshal delivers integer amounts.
	item, ok := NormalizeItem(map[string]any{
		"product_name": "Butter", "line_gross": 218.0, "tax_rate": 0.19,
	}, true)
	require.True(t, ok)
	assert.Equal(t, int64(218), *item.LineGross)

	// A fractional float is currency units.
	item, ok = NormalizeItem(map[string]any{
		"product_name": "Butter", "line_gross": 2.18, "tax_rate": 0.19,
	}, true)
	require.True(t, ok)
	assert.Equal(t, int64(218), *item.LineGross)
}

func TestNormalizeItemLineIndex(t *testing.T) {
	item, ok := NormalizeItem(map[string]any{"product_name": "X", "line_index": 4.0}, true)
	require.True(t, ok)
	require.NotNil(t, item.LineIndex)
	assert.Equal(t, 4, *item.LineIndex)
}

func TestNormalizeIdempotence(t *testing.T) {
	payload := `{
		"merchant": {"name": "ALDI SÜD", "address": {"postal_code": "86150", "city": "Augsburg"}},
		"purchase_date_time": "2024-03-15T18:42:07Z",
		"currency": "EUR",
		"payment_method": "CARD",
		"items": [
			{"product_name": "Schokolade Lindt", "quantity": 2, "unit_price_gross": 1.09, "line_gross": 2.18, "tax_rate": 19},
			{"product_name": "Pfand Mehrweg", "quantity": 1, "line_gross": -0.50, "tax_rate": 19, "line_type": "DEPOSIT_REFUND"}
		]
	}`
	first, err := Normalize([]byte(payload))
	require.NoError(t, err)

	encoded, err := json.Marshal(first)
	require.NoError(t, err)

	second, err := Normalize(encoded)
	require.NoError(t, err)

	// Enrichment is diagnostics, not part of the canonical comparison.
	second.Enrichment = first.Enrichment
	assert.Equal(t, first, second)
}
