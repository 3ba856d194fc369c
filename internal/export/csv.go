// Package export writes reconciled receipts to CSV for spreadsheets and
// downstream budgeting tools.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"fhartmann/bonscan/internal/models"
)

var log = logrus.New()

// Delimiter used for CSV output, configurable via CSV_DELIMITER.
var Delimiter rune = ','

func init() {
	if val := os.Getenv("CSV_DELIMITER"); val != "" {
		SetDelimiter([]rune(val)[0])
	}
}

// SetDelimiter allows setting the delimiter for CSV output.
func SetDelimiter(delim rune) {
	Delimiter = delim
	gocsv.TagSeparator = fmt.Sprintf("%c", delim)
}

// SetLogger allows setting a configured logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Row is one exported line item joined with its receipt header.
type Row struct {
	Date           string `csv:"Date"`
	Merchant       string `csv:"Merchant"`
	Product        string `csv:"Product"`
	Quantity       string `csv:"Quantity"`
	UnitPriceGross string `csv:"UnitPriceGross"`
	LineNet        string `csv:"LineNet"`
	LineTax        string `csv:"LineTax"`
	LineGross      string `csv:"LineGross"`
	TaxRate        string `csv:"TaxRate"`
	LineType       string `csv:"LineType"`
	Currency       string `csv:"Currency"`
}

// Rows flattens a receipt into exportable rows, one per line item.
func Rows(receipt *models.Receipt) []Row {
	date := ""
	if receipt.PurchaseDateTime != nil {
		date = receipt.PurchaseDateTime.Format("02.01.2006 15:04")
	}

	rows := make([]Row, 0, len(receipt.Items))
	for _, item := range receipt.Items {
		rows = append(rows, Row{
			Date:           date,
			Merchant:       receipt.Merchant.Name,
			Product:        item.ProductName,
			Quantity:       decimal.NewFromFloat(item.Quantity).String(),
			UnitPriceGross: formatCents(item.UnitPriceGross),
			LineNet:        formatCents(item.LineNet),
			LineTax:        formatCents(item.LineTax),
			LineGross:      formatCents(item.LineGross),
			TaxRate:        decimal.NewFromFloat(item.TaxRate).String(),
			LineType:       string(item.LineType),
			Currency:       receipt.Currency,
		})
	}
	return rows
}

// formatCents renders integer cents as a currency-unit string with two
// decimal places, or empty when the value is unknown.
func formatCents(cents *int64) string {
	if cents == nil {
		return ""
	}
	return decimal.New(*cents, -2).StringFixed(2)
}

// WriteReceiptsToCSV writes the line items of the given receipts to a
// single CSV file, creating parent directories as needed.
func WriteReceiptsToCSV(receipts []*models.Receipt, csvFile string) error {
	if receipts == nil {
		return fmt.Errorf("cannot write nil receipts to CSV")
	}

	rows := []Row{}
	for _, receipt := range receipts {
		rows = append(rows, Rows(receipt)...)
	}

	log.WithFields(logrus.Fields{
		"file":     csvFile,
		"receipts": len(receipts),
		"rows":     len(rows),
	}).Info("Writing receipts to CSV file")

	return writeRows(rows, csvFile)
}

func writeRows(rows []Row, csvFile string) error {
	dir := filepath.Dir(csvFile)
	if err := os.MkdirAll(dir, 0750); err != nil {
		log.WithError(err).Error("Failed to create directory")
		return fmt.Errorf("error creating directory: %w", err)
	}

	file, err := os.Create(csvFile)
	if err != nil {
		log.WithError(err).Error("Failed to create CSV file")
		return fmt.Errorf("error creating CSV file: %w", err)
	}
	defer func() {
		if err := file.Close(); err != nil {
			log.WithError(err).Warn("Failed to close file")
		}
	}()

	csvWriter := csv.NewWriter(file)
	csvWriter.Comma = Delimiter

	if err := gocsv.MarshalCSV(rows, gocsv.NewSafeCSVWriter(csvWriter)); err != nil {
		log.WithError(err).Error("Failed to marshal rows to CSV")
		return fmt.Errorf("error writing CSV data: %w", err)
	}

	return nil
}
