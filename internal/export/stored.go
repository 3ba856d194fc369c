package export

import (
	"time"

	"github.com/shopspring/decimal"

	"fhartmann/bonscan/internal/store"
)

// StoredRows converts one stored receipt and its line items into
// exportable rows.
func StoredRows(receipt store.ReceiptSummary, items []store.StoredLineItem) []Row {
	date := ""
	if receipt.PurchasedAt != nil {
		if t, err := time.Parse(time.RFC3339, *receipt.PurchasedAt); err == nil {
			date = t.Format("02.01.2006 15:04")
		} else {
			date = *receipt.PurchasedAt
		}
	}

	rows := make([]Row, 0, len(items))
	for _, item := range items {
		rows = append(rows, Row{
			Date:           date,
			Merchant:       receipt.Merchant,
			Product:        item.ProductName,
			Quantity:       decimal.NewFromFloat(item.Quantity).String(),
			UnitPriceGross: formatCents(item.UnitPriceGross),
			LineNet:        formatCents(item.LineNet),
			LineTax:        formatCents(item.LineTax),
			LineGross:      formatCents(item.LineGross),
			TaxRate:        decimal.NewFromFloat(item.TaxRate).String(),
			LineType:       item.LineType,
			Currency:       "EUR",
		})
	}
	return rows
}

// WriteRows writes already-built rows to a CSV file.
func WriteRows(rows []Row, csvFile string) error {
	return writeRows(rows, csvFile)
}
