// Package store persists reconciled receipts and their line items in a
// SQLite database so that product price history can be queried across
// shopping trips.
package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"fhartmann/bonscan/internal/matcher"
	"fhartmann/bonscan/internal/models"
)

var log = logrus.New()

// SetLogger allows setting a configured logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS merchants (
        id TEXT PRIMARY KEY,
        name TEXT NOT NULL,
        normalized_name TEXT NOT NULL UNIQUE,
        street TEXT,
        postal_code TEXT,
        city TEXT,
        country TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP
    );`,
	`CREATE TABLE IF NOT EXISTS receipts (
        id TEXT PRIMARY KEY,
        merchant_id TEXT NOT NULL,
        purchased_at DATETIME,
        currency TEXT NOT NULL DEFAULT 'EUR',
        payment_method TEXT,
        total_gross INTEGER,
        total_net INTEGER,
        total_tax INTEGER,
        source_file TEXT,
        created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
        FOREIGN KEY(merchant_id) REFERENCES merchants(id)
    );`,
	`CREATE TABLE IF NOT EXISTS line_items (
        id TEXT PRIMARY KEY,
        receipt_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        product_name TEXT NOT NULL,
        normalized_name TEXT NOT NULL,
        quantity REAL NOT NULL,
        unit_price_gross INTEGER,
        unit_price_net INTEGER,
        tax_rate REAL NOT NULL,
        line_net INTEGER,
        line_tax INTEGER,
        line_gross INTEGER,
        line_type TEXT NOT NULL,
        FOREIGN KEY(receipt_id) REFERENCES receipts(id)
    );`,
	`CREATE INDEX IF NOT EXISTS idx_line_items_name ON line_items(normalized_name);`,
	`CREATE INDEX IF NOT EXISTS idx_receipts_merchant ON receipts(merchant_id);`,
}

// Store wraps the SQLite database holding receipts and line items.
type Store struct {
	db *sqlx.DB
}

// Open connects to the SQLite database at the given path and ensures
// the schema exists. Use ":memory:" for an ephemeral database.
func Open(path string) (*Store, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("error creating schema: %w", err)
		}
	}

	log.WithField("path", path).Debug("Opened receipt store")
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// SavedReceipt is the identifier pair returned after persisting a receipt.
type SavedReceipt struct {
	ReceiptID  string
	MerchantID string
}

// SaveReceipt persists a reconciled receipt with all of its line items.
// The merchant is upserted by its normalized name so that repeated visits
// to the same store share one merchant row.
func (s *Store) SaveReceipt(receipt *models.Receipt, sourceFile string) (*SavedReceipt, error) {
	if receipt == nil {
		return nil, fmt.Errorf("receipt is nil")
	}

	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	merchantID, err := upsertMerchant(tx, &receipt.Merchant)
	if err != nil {
		return nil, err
	}

	receiptID := uuid.New().String()
	var purchasedAt any
	if receipt.PurchaseDateTime != nil {
		purchasedAt = receipt.PurchaseDateTime.UTC().Format(time.RFC3339)
	}
	_, err = tx.Exec(
		`INSERT INTO receipts (id, merchant_id, purchased_at, currency, payment_method,
            total_gross, total_net, total_tax, source_file)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		receiptID, merchantID, purchasedAt, receipt.Currency, receipt.PaymentMethod,
		receipt.Totals.TotalGross, receipt.Totals.TotalNet, receipt.Totals.TotalTax, sourceFile,
	)
	if err != nil {
		return nil, fmt.Errorf("error inserting receipt: %w", err)
	}

	for i, item := range receipt.Items {
		_, err = tx.Exec(
			`INSERT INTO line_items (id, receipt_id, position, product_name, normalized_name,
                quantity, unit_price_gross, unit_price_net, tax_rate,
                line_net, line_tax, line_gross, line_type)
             VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), receiptID, i, item.ProductName, matcher.Normalize(item.ProductName),
			item.Quantity, item.UnitPriceGross, item.UnitPriceNet, item.TaxRate,
			item.LineNet, item.LineTax, item.LineGross, item.LineType,
		)
		if err != nil {
			return nil, fmt.Errorf("error inserting line item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing receipt: %w", err)
	}

	log.WithFields(logrus.Fields{
		"receipt_id": receiptID,
		"merchant":   receipt.Merchant.Name,
		"items":      len(receipt.Items),
	}).Info("Saved receipt")

	return &SavedReceipt{ReceiptID: receiptID, MerchantID: merchantID}, nil
}

func upsertMerchant(tx *sqlx.Tx, merchant *models.Merchant) (string, error) {
	name := merchant.Name
	if name == "" {
		name = "Unbekannt"
	}
	normalized := matcher.Normalize(name)

	var id string
	err := tx.Get(&id, `SELECT id FROM merchants WHERE normalized_name = ?`, normalized)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("error looking up merchant: %w", err)
	}

	id = uuid.New().String()
	_, err = tx.Exec(
		`INSERT INTO merchants (id, name, normalized_name, street, postal_code, city, country)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, name, normalized,
		merchant.Address.Street, merchant.Address.PostalCode,
		merchant.Address.City, merchant.Address.Country,
	)
	if err != nil {
		return "", fmt.Errorf("error inserting merchant: %w", err)
	}
	return id, nil
}

// PricePoint is one observation of a product's unit price on a receipt.
type PricePoint struct {
	ProductName    string  `db:"product_name"`
	Merchant       string  `db:"merchant"`
	PurchasedAt    *string `db:"purchased_at"`
	Quantity       float64 `db:"quantity"`
	UnitPriceGross *int64  `db:"unit_price_gross"`
	LineGross      *int64  `db:"line_gross"`
}

// PriceHistory returns all recorded purchases whose normalized product
// name contains the normalized query, newest first.
func (s *Store) PriceHistory(query string) ([]PricePoint, error) {
	normalized := matcher.Normalize(query)
	if normalized == "" {
		return nil, fmt.Errorf("empty product query")
	}

	var points []PricePoint
	err := s.db.Select(&points,
		`SELECT li.product_name, m.name AS merchant, r.purchased_at,
                li.quantity, li.unit_price_gross, li.line_gross
         FROM line_items li
         JOIN receipts r ON r.id = li.receipt_id
         JOIN merchants m ON m.id = r.merchant_id
         WHERE li.normalized_name LIKE ? AND li.line_type = ?
         ORDER BY r.purchased_at DESC`,
		"%"+normalized+"%", models.LineTypeSale,
	)
	if err != nil {
		return nil, fmt.Errorf("error querying price history: %w", err)
	}
	return points, nil
}

// ReceiptSummary is a stored receipt with its merchant resolved.
type ReceiptSummary struct {
	ID            string  `db:"id"`
	Merchant      string  `db:"merchant"`
	PurchasedAt   *string `db:"purchased_at"`
	TotalGross    *int64  `db:"total_gross"`
	ItemCount     int     `db:"item_count"`
	PaymentMethod *string `db:"payment_method"`
}

// ListReceipts returns stored receipts, newest first, capped at limit.
// A non-positive limit returns all receipts.
func (s *Store) ListReceipts(limit int) ([]ReceiptSummary, error) {
	q := `SELECT r.id, m.name AS merchant, r.purchased_at, r.total_gross,
            r.payment_method,
            (SELECT COUNT(*) FROM line_items li WHERE li.receipt_id = r.id) AS item_count
         FROM receipts r
         JOIN merchants m ON m.id = r.merchant_id
         ORDER BY r.purchased_at DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	var receipts []ReceiptSummary
	if err := s.db.Select(&receipts, q, args...); err != nil {
		return nil, fmt.Errorf("error listing receipts: %w", err)
	}
	return receipts, nil
}

// StoredLineItem mirrors one line_items row.
type StoredLineItem struct {
	Position       int     `db:"position"`
	ProductName    string  `db:"product_name"`
	Quantity       float64 `db:"quantity"`
	UnitPriceGross *int64  `db:"unit_price_gross"`
	UnitPriceNet   *int64  `db:"unit_price_net"`
	TaxRate        float64 `db:"tax_rate"`
	LineNet        *int64  `db:"line_net"`
	LineTax        *int64  `db:"line_tax"`
	LineGross      *int64  `db:"line_gross"`
	LineType       string  `db:"line_type"`
}

// LineItems returns the stored line items of one receipt in order.
func (s *Store) LineItems(receiptID string) ([]StoredLineItem, error) {
	var items []StoredLineItem
	err := s.db.Select(&items,
		`SELECT position, product_name, quantity, unit_price_gross, unit_price_net,
                tax_rate, line_net, line_tax, line_gross, line_type
         FROM line_items WHERE receipt_id = ? ORDER BY position`,
		receiptID,
	)
	if err != nil {
		return nil, fmt.Errorf("error loading line items: %w", err)
	}
	return items, nil
}
