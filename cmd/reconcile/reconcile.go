// Package reconcile handles offline reconciliation of extraction payloads
package reconcile

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"fhartmann/bonscan/cmd/root"
	"fhartmann/bonscan/internal/engine"
	exportcsv "fhartmann/bonscan/internal/export"
	"fhartmann/bonscan/internal/models"
	"fhartmann/bonscan/internal/normalizer"
)

var (
	transcriptFile string
	overridesFile  string
	format         string
)

// Cmd represents the reconcile command
var Cmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Reconcile an extraction payload into a canonical receipt",
	Long: `Reconcile reads a vision-model JSON payload from disk, normalizes it,
reconstructs quantities from the raw transcript, merges focused override
rows and writes the reconciled receipt as JSON or CSV. No API calls are
made.`,
	Run: reconcileFunc,
}

func init() {
	Cmd.Flags().StringVarP(&transcriptFile, "transcript", "t", "", "Raw transcript text file (overrides raw_content in the payload)")
	Cmd.Flags().StringVar(&overridesFile, "overrides", "", "Focused override rows JSON file")
	Cmd.Flags().StringVar(&format, "format", "json", "Output format: json or csv")
}

func reconcileFunc(cmd *cobra.Command, args []string) {
	if root.SharedFlags.Input == "" {
		root.Log.Fatal("No input file specified, use --input")
	}

	payload, err := os.ReadFile(root.SharedFlags.Input)
	if err != nil {
		root.Log.Fatalf("Error reading input file: %v", err)
	}

	var overrides []models.FocusedOverrideRow
	if overridesFile != "" {
		data, err := os.ReadFile(overridesFile)
		if err != nil {
			root.Log.Fatalf("Error reading overrides file: %v", err)
		}
		if err := json.Unmarshal(data, &overrides); err != nil {
			root.Log.Fatalf("Error parsing overrides file: %v", err)
		}
	}

	eng := engine.New(root.EngineConfig(), root.Log)

	receipt, err := normalizer.Normalize(payload)
	if err != nil {
		root.Log.Fatalf("Error reconciling payload: %v", err)
	}

	// An explicit transcript replaces the payload's raw_content before
	// the single reconciliation pass.
	if transcriptFile != "" {
		raw, err := os.ReadFile(transcriptFile)
		if err != nil {
			root.Log.Fatalf("Error reading transcript file: %v", err)
		}
		receipt.RawContent = string(raw)
	}
	receipt = eng.Reconcile(receipt, overrides)

	switch format {
	case "csv":
		if root.SharedFlags.Output == "" {
			root.Log.Fatal("CSV output requires --output")
		}
		if err := exportcsv.WriteReceiptsToCSV([]*models.Receipt{receipt}, root.SharedFlags.Output); err != nil {
			root.Log.Fatalf("Error writing CSV: %v", err)
		}
	case "json", "":
		out, err := json.MarshalIndent(receipt, "", "  ")
		if err != nil {
			root.Log.Fatalf("Error encoding receipt: %v", err)
		}
		if root.SharedFlags.Output == "" {
			os.Stdout.Write(append(out, '\n'))
		} else if err := os.WriteFile(root.SharedFlags.Output, out, 0o600); err != nil {
			root.Log.Fatalf("Error writing output file: %v", err)
		}
	default:
		root.Log.Fatalf("Unknown output format %q", format)
	}

	root.Log.Info("Reconciliation completed successfully!")
}
