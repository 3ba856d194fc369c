package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fhartmann/bonscan/internal/models"
)

func testReceipt(merchant string, when time.Time) *models.Receipt {
	return &models.Receipt{
		Merchant:         models.Merchant{Name: merchant},
		PurchaseDateTime: &when,
		Currency:         "EUR",
		PaymentMethod:    models.PaymentCard,
		Totals:           models.Totals{TotalGross: models.Int64Ptr(327)},
		Items: []models.LineItem{
			{
				ProductName:    "Bio Heumilch 3,8%",
				Quantity:       2,
				UnitPriceGross: models.Int64Ptr(109),
				TaxRate:        0.07,
				LineGross:      models.Int64Ptr(218),
				LineType:       models.LineTypeSale,
			},
			{
				ProductName: "Pfand 0,25",
				Quantity:    1,
				TaxRate:     0.19,
				LineGross:   models.Int64Ptr(25),
				LineType:    models.LineTypeDepositCharge,
			},
		},
	}
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndListReceipts(t *testing.T) {
	s := openTestStore(t)

	when := time.Date(2025, 3, 14, 12, 30, 0, 0, time.UTC)
	saved, err := s.SaveReceipt(testReceipt("ALDI SÜD", when), "bon-001.jpg")
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ReceiptID)
	assert.NotEmpty(t, saved.MerchantID)

	receipts, err := s.ListReceipts(0)
	require.NoError(t, err)
	require.Len(t, receipts, 1)
	assert.Equal(t, "ALDI SÜD", receipts[0].Merchant)
	assert.Equal(t, 2, receipts[0].ItemCount)
	require.NotNil(t, receipts[0].TotalGross)
	assert.Equal(t, int64(327), *receipts[0].TotalGross)

	items, err := s.LineItems(saved.ReceiptID)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Bio Heumilch 3,8%", items[0].ProductName)
	assert.Equal(t, 2.0, items[0].Quantity)
	assert.Equal(t, string(models.LineTypeDepositCharge), items[1].LineType)
}

func TestMerchantUpsert(t *testing.T) {
	s := openTestStore(t)

	when := time.Now().UTC()
	first, err := s.SaveReceipt(testReceipt("ALDI SÜD", when), "a.jpg")
	require.NoError(t, err)

	// Same store, different diacritics and casing.
	second, err := s.SaveReceipt(testReceipt("Aldi Sud", when.Add(24*time.Hour)), "b.jpg")
	require.NoError(t, err)

	assert.Equal(t, first.MerchantID, second.MerchantID)
}

func TestPriceHistory(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2025, 1, 10, 9, 0, 0, 0, time.UTC)
	_, err := s.SaveReceipt(testReceipt("EDEKA", base), "jan.jpg")
	require.NoError(t, err)
	_, err = s.SaveReceipt(testReceipt("EDEKA", base.AddDate(0, 1, 0)), "feb.jpg")
	require.NoError(t, err)

	points, err := s.PriceHistory("Heumilch")
	require.NoError(t, err)
	require.Len(t, points, 2)
	// Newest first.
	require.NotNil(t, points[0].PurchasedAt)
	require.NotNil(t, points[1].PurchasedAt)
	assert.Greater(t, *points[0].PurchasedAt, *points[1].PurchasedAt)

	// Deposit lines are not price observations.
	points, err = s.PriceHistory("Pfand")
	require.NoError(t, err)
	assert.Empty(t, points)

	_, err = s.PriceHistory("   ")
	assert.Error(t, err)
}
