// Package pipeline runs the full receipt flow: vision extraction, the
// optional focused second pass, engine reconciliation, persistence and
// the optional archive upload.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"fhartmann/bonscan/internal/docmgmt"
	"fhartmann/bonscan/internal/engine"
	"fhartmann/bonscan/internal/merchants"
	"fhartmann/bonscan/internal/models"
	"fhartmann/bonscan/internal/store"
	"fhartmann/bonscan/internal/vision"
)

var log = logrus.New()

// SetLogger allows setting a configured logger for this package.
func SetLogger(logger *logrus.Logger) {
	if logger != nil {
		log = logger
	}
}

// Archiver uploads a processed document to the archive. Satisfied by
// *docmgmt.Client.
type Archiver interface {
	Upload(ctx context.Context, path string, opts docmgmt.UploadOptions) (string, error)
}

// Pipeline wires the processing stages together. Store and Archiver are
// optional; a nil stage is skipped.
type Pipeline struct {
	Extractor   vision.Extractor
	Engine      *engine.Engine
	Store       *store.Store
	Archiver    Archiver
	Aliases     *merchants.Aliases
	FocusedPass bool
}

// Result reports what happened to one processed file.
type Result struct {
	Receipt   *models.Receipt
	ReceiptID string
	TaskID    string
}

// ProcessFile runs one receipt scan through every configured stage.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) (*Result, error) {
	log.WithField("file", filepath.Base(path)).Info("Processing receipt")

	payload, err := p.Extractor.Extract(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("extraction failed for %s: %w", path, err)
	}

	var overrides []models.FocusedOverrideRow
	if p.FocusedPass {
		overrides, err = p.Extractor.ExtractFocused(ctx, path)
		if err != nil {
			// The focused pass refines quantities; the receipt is still
			// usable without it.
			log.WithError(err).Warn("Focused pass failed, continuing without overrides")
			overrides = nil
		}
	}

	receipt, err := p.Engine.Process(payload, overrides)
	if err != nil {
		return nil, fmt.Errorf("reconciliation failed for %s: %w", path, err)
	}

	receipt.Merchant.Name = p.Aliases.Canonical(receipt.Merchant.Name)

	result := &Result{Receipt: receipt}

	if p.Store != nil {
		saved, err := p.Store.SaveReceipt(receipt, filepath.Base(path))
		if err != nil {
			return nil, fmt.Errorf("saving %s: %w", path, err)
		}
		result.ReceiptID = saved.ReceiptID
	}

	if p.Archiver != nil {
		taskID, err := p.Archiver.Upload(ctx, path, docmgmt.UploadOptions{
			Title:   archiveTitle(receipt, path),
			Created: receipt.PurchaseDateTime,
			Tags:    []string{"receipt"},
		})
		if err != nil {
			// Store and archive are independent; a failed upload does not
			// invalidate the reconciled receipt.
			log.WithError(err).Warn("Archive upload failed")
		} else {
			result.TaskID = taskID
		}
	}

	if mismatch := receipt.Enrichment.TotalsMismatch; mismatch != nil {
		log.WithFields(logrus.Fields{
			"sum_gross":      mismatch.SumGross,
			"expected_gross": mismatch.ExpectedGross,
		}).Warn("Line items do not add up to receipt total")
	}

	return result, nil
}

func archiveTitle(receipt *models.Receipt, path string) string {
	parts := []string{}
	if receipt.Merchant.Name != "" {
		parts = append(parts, receipt.Merchant.Name)
	}
	if receipt.PurchaseDateTime != nil {
		parts = append(parts, receipt.PurchaseDateTime.Format("02.01.2006"))
	}
	if len(parts) == 0 {
		return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return strings.Join(parts, " ")
}
