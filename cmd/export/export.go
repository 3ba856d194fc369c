// Package export handles CSV export of stored receipts
package export

import (
	"github.com/spf13/cobra"

	"fhartmann/bonscan/cmd/root"
	exportcsv "fhartmann/bonscan/internal/export"
	"fhartmann/bonscan/internal/store"
)

var limit int

// Cmd represents the export command
var Cmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored line items to CSV",
	Long: `Export dumps the line items of stored receipts, newest first, into a
single CSV file for spreadsheets and budgeting tools.`,
	Run: exportFunc,
}

func init() {
	Cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Export only the newest N receipts (0 = all)")
}

func exportFunc(cmd *cobra.Command, args []string) {
	if root.SharedFlags.Output == "" {
		root.Log.Fatal("No output file specified, use --output")
	}

	db, err := store.Open(root.Cfg.Store.Path)
	if err != nil {
		root.Log.Fatalf("Error opening store: %v", err)
	}
	defer db.Close()

	receipts, err := db.ListReceipts(limit)
	if err != nil {
		root.Log.Fatalf("Error listing receipts: %v", err)
	}

	rows := []exportcsv.Row{}
	for _, receipt := range receipts {
		items, err := db.LineItems(receipt.ID)
		if err != nil {
			root.Log.Fatalf("Error loading line items: %v", err)
		}
		rows = append(rows, exportcsv.StoredRows(receipt, items)...)
	}

	if err := exportcsv.WriteRows(rows, root.SharedFlags.Output); err != nil {
		root.Log.Fatalf("Error writing CSV: %v", err)
	}

	root.Log.WithField("rows", len(rows)).Info("Export completed successfully!")
}
