package reconcile_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fhartmann/bonscan/cmd/reconcile"
	"fhartmann/bonscan/cmd/root"
	"fhartmann/bonscan/internal/models"
)

func TestReconcileCommand_Metadata(t *testing.T) {
	assert.Equal(t, "reconcile", reconcile.Cmd.Use)
	assert.Contains(t, reconcile.Cmd.Short, "Reconcile")
	assert.Contains(t, reconcile.Cmd.Long, "vision-model JSON payload")
	assert.NotNil(t, reconcile.Cmd.Run)
}

func TestReconcileCommand_Flags(t *testing.T) {
	assert.NotNil(t, reconcile.Cmd.Flags().Lookup("transcript"))
	assert.NotNil(t, reconcile.Cmd.Flags().Lookup("overrides"))
}

func TestReconcileCommand_Run(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "extraction.json")
	output := filepath.Join(dir, "reconciled.json")

	payload := `{
      "merchant": {"name": "EDEKA"},
      "currency": "EUR",
      "items": [
        {"product_name": "Butter", "quantity": 1, "unit_price_gross": 2.49,
         "tax_rate": 0.07, "line_gross": 2.49, "line_type": "SALE"}
      ],
      "totals": {"total_gross": 2.49}
    }`
	require.NoError(t, os.WriteFile(input, []byte(payload), 0o600))

	originalInput := root.SharedFlags.Input
	originalOutput := root.SharedFlags.Output
	defer func() {
		root.SharedFlags.Input = originalInput
		root.SharedFlags.Output = originalOutput
	}()
	root.SharedFlags.Input = input
	root.SharedFlags.Output = output

	reconcile.Cmd.Run(&cobra.Command{}, nil)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var receipt models.Receipt
	require.NoError(t, json.Unmarshal(data, &receipt))
	assert.Equal(t, "EDEKA", receipt.Merchant.Name)
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, 1.0, receipt.Items[0].Quantity)
	require.NotNil(t, receipt.Items[0].LineGross)
	assert.Equal(t, int64(249), *receipt.Items[0].LineGross)
}

func TestReconcileCommand_CSVOutput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "extraction.json")
	output := filepath.Join(dir, "reconciled.csv")

	payload := `{
      "merchant": {"name": "EDEKA"},
      "currency": "EUR",
      "items": [
        {"product_name": "Butter", "quantity": 1, "unit_price_gross": 2.49,
         "tax_rate": 0.07, "line_gross": 2.49, "line_type": "SALE"}
      ]
    }`
	require.NoError(t, os.WriteFile(input, []byte(payload), 0o600))

	originalInput := root.SharedFlags.Input
	originalOutput := root.SharedFlags.Output
	defer func() {
		root.SharedFlags.Input = originalInput
		root.SharedFlags.Output = originalOutput
		_ = reconcile.Cmd.Flags().Set("format", "json")
	}()
	root.SharedFlags.Input = input
	root.SharedFlags.Output = output
	require.NoError(t, reconcile.Cmd.Flags().Set("format", "csv"))

	reconcile.Cmd.Run(&cobra.Command{}, nil)

	data, err := os.ReadFile(output)
	require.NoError(t, err)
	content := string(data)
	assert.Contains(t, content, "Butter")
	assert.Contains(t, content, "2.49")
	assert.Contains(t, content, "EDEKA")
}

func TestReconcileCommand_TranscriptAndOverridesSinglePass(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "extraction.json")
	transcript := filepath.Join(dir, "transcript.txt")
	overrides := filepath.Join(dir, "overrides.json")
	output := filepath.Join(dir, "reconciled.json")

	payload := `{
      "merchant": {"name": "ALDI SÜD"},
      "items": [
        {"product_name": "Schokolade Lindt", "quantity": 1, "line_gross": 2.18, "tax_rate": 0.19}
      ]
    }`
	require.NoError(t, os.WriteFile(input, []byte(payload), 0o600))
	require.NoError(t, os.WriteFile(transcript, []byte("2 x 1,09 €\nSchokolade Lindt 2,18 € 1"), 0o600))
	require.NoError(t, os.WriteFile(overrides, []byte(`[{"product_name": "Schokolade Lindt", "quantity": 2}]`), 0o600))

	originalInput := root.SharedFlags.Input
	originalOutput := root.SharedFlags.Output
	defer func() {
		root.SharedFlags.Input = originalInput
		root.SharedFlags.Output = originalOutput
		_ = reconcile.Cmd.Flags().Set("transcript", "")
		_ = reconcile.Cmd.Flags().Set("overrides", "")
	}()
	root.SharedFlags.Input = input
	root.SharedFlags.Output = output
	require.NoError(t, reconcile.Cmd.Flags().Set("transcript", transcript))
	require.NoError(t, reconcile.Cmd.Flags().Set("overrides", overrides))

	reconcile.Cmd.Run(&cobra.Command{}, nil)

	data, err := os.ReadFile(output)
	require.NoError(t, err)

	var receipt models.Receipt
	require.NoError(t, json.Unmarshal(data, &receipt))
	require.Len(t, receipt.Items, 1)
	assert.Equal(t, 2.0, receipt.Items[0].Quantity)
	assert.Equal(t, int64(218), *receipt.Items[0].LineGross)
	// One reconciliation pass: the overrides are applied exactly once.
	assert.Len(t, receipt.Enrichment.OverrideSummaries, 1)
}
