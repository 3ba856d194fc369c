// Package process handles end-to-end processing of receipt scans
package process

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"fhartmann/bonscan/cmd/root"
	"fhartmann/bonscan/internal/config"
	"fhartmann/bonscan/internal/docmgmt"
	"fhartmann/bonscan/internal/engine"
	"fhartmann/bonscan/internal/merchants"
	"fhartmann/bonscan/internal/pipeline"
	"fhartmann/bonscan/internal/store"
	"fhartmann/bonscan/internal/vision"
)

var skipUpload bool

// Cmd represents the process command
var Cmd = &cobra.Command{
	Use:   "process",
	Short: "Extract, reconcile and store a receipt scan",
	Long: `Process sends a receipt photo or PDF to the vision model, reconciles
the extracted line items, saves the result to the product database and
optionally uploads the document to the archive.`,
	Run: processFunc,
}

func init() {
	Cmd.Flags().BoolVar(&skipUpload, "skip-upload", false, "Skip the document archive upload")
}

func processFunc(cmd *cobra.Command, args []string) {
	if root.SharedFlags.Input == "" {
		root.Log.Fatal("No input file specified, use --input")
	}

	ctx := context.Background()
	p, cleanup, err := BuildPipeline(ctx, skipUpload)
	if err != nil {
		root.Log.Fatalf("Error setting up pipeline: %v", err)
	}
	defer cleanup()

	result, err := p.ProcessFile(ctx, root.SharedFlags.Input)
	if err != nil {
		root.Log.Fatalf("Error processing receipt: %v", err)
	}

	if root.SharedFlags.Output != "" {
		out, err := json.MarshalIndent(result.Receipt, "", "  ")
		if err != nil {
			root.Log.Fatalf("Error encoding receipt: %v", err)
		}
		if err := os.WriteFile(root.SharedFlags.Output, out, 0o600); err != nil {
			root.Log.Fatalf("Error writing output file: %v", err)
		}
	}

	root.Log.WithField("receipt_id", result.ReceiptID).Info("Receipt processed successfully!")
}

// BuildPipeline assembles the processing pipeline from the application
// configuration. The returned cleanup closes the store and API client.
func BuildPipeline(ctx context.Context, skipUpload bool) (*pipeline.Pipeline, func(), error) {
	cfg := root.Cfg

	apiKey := cfg.Vision.APIKey
	if apiKey == "" {
		apiKey = config.GetGeminiAPIKey()
	}
	timeout := time.Duration(cfg.Vision.TimeoutSeconds) * time.Second
	extractor, err := vision.NewGeminiExtractor(ctx, apiKey, cfg.Vision.Model, timeout)
	if err != nil {
		return nil, nil, err
	}
	extractor.PrimaryPrompt = cfg.Vision.PrimaryPrompt
	extractor.FocusedPrompt = cfg.Vision.FocusedPrompt

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		extractor.Close()
		return nil, nil, err
	}

	aliases, err := merchants.Load(cfg.Store.AliasesPath)
	if err != nil {
		root.Log.WithError(err).Warn("Ignoring merchant alias file")
		aliases = nil
	}

	p := &pipeline.Pipeline{
		Extractor:   extractor,
		Engine:      engine.New(root.EngineConfig(), root.Log),
		Store:       db,
		Aliases:     aliases,
		FocusedPass: cfg.Vision.FocusedPass,
	}
	if cfg.DocMgmt.Enabled && !skipUpload {
		p.Archiver = docmgmt.NewClient(cfg.DocMgmt.BaseURL, cfg.DocMgmt.Token)
	}

	cleanup := func() {
		db.Close()
		extractor.Close()
	}
	return p, cleanup, nil
}
