package rawparser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fhartmann/bonscan/internal/models"
)

func seed(name string, gross int64, rate float64) models.LineItem {
	return models.LineItem{
		ProductName: name,
		Quantity:    1,
		LineGross:   &gross,
		TaxRate:     rate,
	}
}

func TestReconstructMultiplierAboveAnchor(t *testing.T) {
	lines := []string{
		"2 x 1,09 €",
		"Schokolade Lindt 2,18 € 1",
	}
	seeds := []models.LineItem{seed("Schokolade Lindt", 218, 0.19)}

	items := Reconstruct(lines, seeds, "ALDI SÜD", DefaultConfig())
	require.Len(t, items, 1)

	got := items[0]
	assert.Equal(t, 2.0, got.Quantity)
	assert.Equal(t, int64(109), *got.UnitPriceGross)
	assert.Equal(t, int64(218), *got.LineGross)
	assert.Equal(t, 0.19, got.TaxRate)
	assert.Equal(t, *got.LineGross, *got.LineNet+*got.LineTax)
	require.NotNil(t, got.LineIndex)
	assert.Equal(t, 1, *got.LineIndex)
}

func TestReconstructMultiplierOnAnchorLine(t *testing.T) {
	lines := []string{
		"REWE Markt GmbH",
		"Joghurt 4 x 0,89 3,56 A",
	}
	seeds := []models.LineItem{seed("Joghurt", 356, 0.07)}

	items := Reconstruct(lines, seeds, "REWE", DefaultConfig())
	require.Len(t, items, 1)
	assert.Equal(t, 4.0, items[0].Quantity)
	assert.Equal(t, int64(89), *items[0].UnitPriceGross)
}

func TestReconstructSplitLayout(t *testing.T) {
	lines := []string{
		"NETTO Marken-Discount",
		"Filiale 4711",
		"2 x",
		"1,09",
		"Schokolade 2,18 A",
	}
	seeds := []models.LineItem{seed("Schokolade", 218, 0.19)}

	items := Reconstruct(lines, seeds, "", DefaultConfig())
	require.Len(t, items, 1)
	assert.Equal(t, 2.0, items[0].Quantity)
	assert.Equal(t, int64(109), *items[0].UnitPriceGross)
}

func TestReconstructTwoLinesAboveOnlyForNonSplitStores(t *testing.T) {
	lines := []string{
		"EDEKA",
		"3 x 0,99",
		"Aktionsrabatt",
		"Cola 2,97 A",
	}
	seeds := []models.LineItem{seed("Cola", 297, 0.19)}

	items := Reconstruct(lines, seeds, "EDEKA", DefaultConfig())
	require.Len(t, items, 1)
	assert.Equal(t, 3.0, items[0].Quantity)

	// Same layout for a split-layout store: the plain two-above check is
	// replaced by the split check, which does not match here.
	lines[0] = "ALDI SÜD"
	items = Reconstruct(lines, seeds, "", DefaultConfig())
	require.Len(t, items, 1)
	assert.Equal(t, 1.0, items[0].Quantity)
	assert.Equal(t, int64(297), *items[0].UnitPriceGross)
}

func TestReconstructRejectsMismatchedMultiplier(t *testing.T) {
	lines := []string{
		"2 x 1,50",
		"Schokolade 2,18",
	}
	seeds := []models.LineItem{seed("Schokolade", 218, 0.19)}

	items := Reconstruct(lines, seeds, "", DefaultConfig())
	require.Len(t, items, 1)
	// 2 x 1,50 does not reproduce 2,18: fall back to quantity 1.
	assert.Equal(t, 1.0, items[0].Quantity)
	assert.Equal(t, int64(218), *items[0].UnitPriceGross)
}

func TestReconstructUsesLineIndexHint(t *testing.T) {
	lines := []string{
		"2 x 1,09",
		"Unleserliche Zeile 2,18",
	}
	s := seed("Völlig anderer Name", 218, 0.19)
	s.LineIndex = models.IntPtr(1)

	items := Reconstruct(lines, []models.LineItem{s}, "", DefaultConfig())
	require.Len(t, items, 1)
	assert.Equal(t, 2.0, items[0].Quantity)
}

func TestReconstructSkipsUnanchoredSeeds(t *testing.T) {
	lines := []string{"Brot 2,49", "Milch 1,09"}
	seeds := []models.LineItem{
		seed("Brot", 249, 0.07),
		seed("Batterien AA", 599, 0.19),
	}

	items := Reconstruct(lines, seeds, "", DefaultConfig())
	require.Len(t, items, 1)
	assert.Equal(t, "Brot", items[0].ProductName)
}

func TestReconstructRowTotalFromAnchorLine(t *testing.T) {
	lines := []string{"Brot 2,49 B"}
	s := models.LineItem{ProductName: "Brot", Quantity: 1}

	items := Reconstruct(lines, []models.LineItem{s}, "", DefaultConfig())
	require.Len(t, items, 1)
	assert.Equal(t, int64(249), *items[0].LineGross)
	// Tax group letter B maps to the reduced rate.
	assert.Equal(t, 0.07, items[0].TaxRate)
}

func TestReconstructDepositInference(t *testing.T) {
	lines := []string{"PFAND 0,25"}
	s := models.LineItem{ProductName: "PFAND", Quantity: 1}

	items := Reconstruct(lines, []models.LineItem{s}, "", DefaultConfig())
	require.Len(t, items, 1)
	assert.Equal(t, models.LineTypeDepositCharge, items[0].LineType)
}

func TestReconstructEmptyInputs(t *testing.T) {
	assert.Nil(t, Reconstruct(nil, []models.LineItem{seed("x", 1, 0.19)}, "", DefaultConfig()))
	assert.Nil(t, Reconstruct([]string{"a"}, nil, "", DefaultConfig()))
}

func TestAnyMultiUnit(t *testing.T) {
	assert.False(t, AnyMultiUnit([]models.LineItem{{Quantity: 1}, {Quantity: 1}}))
	assert.True(t, AnyMultiUnit([]models.LineItem{{Quantity: 1}, {Quantity: 2}}))
	assert.False(t, AnyMultiUnit(nil))
}
