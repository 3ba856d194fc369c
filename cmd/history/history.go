// Package history handles price lookups over stored receipts
package history

import (
	"fmt"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"fhartmann/bonscan/cmd/root"
	"fhartmann/bonscan/internal/store"
)

// Cmd represents the history command
var Cmd = &cobra.Command{
	Use:   "history <product>",
	Short: "Show the recorded price history of a product",
	Long: `History searches the stored receipts for purchases of a product and
prints every observation, newest first. The query matches product names
after normalization, so umlauts and casing do not matter.`,
	Args: cobra.ExactArgs(1),
	Run:  historyFunc,
}

func historyFunc(cmd *cobra.Command, args []string) {
	db, err := store.Open(root.Cfg.Store.Path)
	if err != nil {
		root.Log.Fatalf("Error opening store: %v", err)
	}
	defer db.Close()

	points, err := db.PriceHistory(args[0])
	if err != nil {
		root.Log.Fatalf("Error querying price history: %v", err)
	}
	if len(points) == 0 {
		root.Log.WithField("query", args[0]).Info("No recorded purchases found")
		return
	}

	out := cmd.OutOrStdout()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Date\tMerchant\tProduct\tQty\tUnitPrice\tLineGross")
	for _, p := range points {
		date := ""
		if p.PurchasedAt != nil {
			date = *p.PurchasedAt
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			date, p.Merchant, p.ProductName,
			decimal.NewFromFloat(p.Quantity).String(),
			centsString(p.UnitPriceGross), centsString(p.LineGross))
	}
	if err := w.Flush(); err != nil {
		root.Log.Fatalf("Error writing history: %v", err)
	}
}

func centsString(cents *int64) string {
	if cents == nil {
		return ""
	}
	return decimal.New(*cents, -2).StringFixed(2)
}
