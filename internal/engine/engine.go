// Package engine runs the fixed reconciliation pipeline: normalize the
// primary extraction, conditionally adopt the raw-content reconstruction,
// merge focused overrides, and reconcile totals. Each stage is a pure
// transformation over the item list; the engine holds no per-receipt
// state, so concurrent use across receipts is safe.
package engine

import (
	"github.com/sirupsen/logrus"

	"fhartmann/bonscan/internal/matcher"
	"fhartmann/bonscan/internal/models"
	"fhartmann/bonscan/internal/normalizer"
	"fhartmann/bonscan/internal/override"
	"fhartmann/bonscan/internal/rawparser"
	"fhartmann/bonscan/internal/totals"
)

// Config collects every tunable of the pipeline. It is injected at
// construction; nothing in the engine mutates package-level state.
type Config struct {
	AnchorThreshold      float64
	OverrideThreshold    float64
	OverrideClampRatio   float64
	OverrideFields       []string
	TotalsToleranceCents int
	RawParser            rawparser.Config
}

// DefaultConfig returns the thresholds and layouts the engine ships with.
func DefaultConfig() Config {
	return Config{
		AnchorThreshold:      matcher.AnchorThreshold,
		OverrideThreshold:    matcher.OverrideThreshold,
		OverrideClampRatio:   override.ClampRatio,
		OverrideFields:       []string{override.FieldQuantity, override.FieldTaxRate},
		TotalsToleranceCents: totals.MismatchToleranceCents,
		RawParser:            rawparser.DefaultConfig(),
	}
}

// Engine is the reconciliation pipeline.
type Engine struct {
	cfg Config
	log *logrus.Logger
}

// New creates an engine with the given configuration.
func New(cfg Config, logger *logrus.Logger) *Engine {
	if logger == nil {
		logger = logrus.New()
	}
	if cfg.RawParser.StoreDetectLines == 0 {
		cfg.RawParser = rawparser.DefaultConfig()
	}
	if cfg.AnchorThreshold == 0 {
		cfg.AnchorThreshold = matcher.AnchorThreshold
	}
	if cfg.OverrideThreshold == 0 {
		cfg.OverrideThreshold = matcher.OverrideThreshold
	}
	if cfg.OverrideClampRatio <= 0 {
		cfg.OverrideClampRatio = override.ClampRatio
	}
	if cfg.TotalsToleranceCents < 0 {
		cfg.TotalsToleranceCents = totals.MismatchToleranceCents
	}
	if len(cfg.OverrideFields) == 0 {
		cfg.OverrideFields = []string{override.FieldQuantity, override.FieldTaxRate}
	}
	cfg.RawParser.AnchorThreshold = cfg.AnchorThreshold
	return &Engine{cfg: cfg, log: logger}
}

// Process runs the full pipeline on a primary extraction payload and
// optional focused override rows. The raw transcript is taken from the
// payload's raw_content field. Only an undecodable payload errors.
func (e *Engine) Process(rawPayload []byte, overrides []models.FocusedOverrideRow) (*models.Receipt, error) {
	receipt, err := normalizer.Normalize(rawPayload)
	if err != nil {
		return nil, err
	}
	return e.Reconcile(receipt, overrides), nil
}

// Reconcile runs the post-normalization stages on a canonical receipt.
// The receipt is mutated and returned for convenience.
func (e *Engine) Reconcile(receipt *models.Receipt, overrides []models.FocusedOverrideRow) *models.Receipt {
	e.adoptRawReconstruction(receipt)
	e.applyOverrides(receipt, overrides)

	receipt.Totals = totals.Reconcile(receipt.Items, receipt.Totals)
	receipt.Enrichment.TotalsMismatch = totals.CheckConsistency(receipt.Items, receipt.Totals, e.cfg.TotalsToleranceCents)
	return receipt
}

// adoptRawReconstruction replaces the items with the deterministic
// transcript reconstruction, but only when the reconstruction found at
// least one quantity above 1. The parser is trusted only where it
// demonstrably improves on the default quantity.
func (e *Engine) adoptRawReconstruction(receipt *models.Receipt) {
	lines := receipt.TranscriptLines()
	if len(lines) == 0 || len(receipt.Items) == 0 {
		return
	}
	recon := rawparser.Reconstruct(lines, receipt.Items, receipt.Merchant.Name, e.cfg.RawParser)
	if len(recon) == 0 {
		return
	}
	if !rawparser.AnyMultiUnit(recon) {
		e.log.Debug("Raw-content reconstruction found no multi-unit rows, keeping normalized items")
		return
	}
	e.log.WithFields(logrus.Fields{
		"items": len(receipt.Items), "reconstructed": len(recon),
	}).Info("Adopting raw-content reconstruction")
	receipt.Items = recon
}

// applyOverrides merges the focused second-pass rows and reconciles the
// monetary fields of every item whose quantity changed.
func (e *Engine) applyOverrides(receipt *models.Receipt, overrides []models.FocusedOverrideRow) {
	if len(overrides) == 0 || len(receipt.Items) == 0 {
		return
	}
	res := override.Apply(receipt.Items, overrides, e.cfg.OverrideFields, e.cfg.OverrideThreshold)
	receipt.Items = override.Reconcile(res.Items, res.QuantityChanged, e.cfg.OverrideClampRatio)
	receipt.Enrichment.OverrideSummaries = append(receipt.Enrichment.OverrideSummaries, res.Summary)

	e.log.WithFields(logrus.Fields{
		"attempted": res.Summary.Attempted,
		"updated":   res.Summary.UpdatedItems,
		"unmatched": res.Summary.UnmatchedEntries,
	}).Info("Applied focused overrides")
}
