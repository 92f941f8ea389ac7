package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cellarworks/cellar-intel/internal/domain"
)

func TestParseIntakeManualRejectsNonPositiveQuantity(t *testing.T) {
	result, err := ParseIntake(IntakeRequest{
		SourceType: domain.IntakeSourceManual,
		Items: []domain.IntakeItem{
			{Name: "Opus One", Producer: "Opus One Winery", Quantity: 6},
			{Name: "Screaming Eagle", Producer: "Screaming Eagle Winery", Quantity: 0},
		},
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	require.Len(t, result.RejectedRaw, 1)
	assert.Equal(t, "Opus One", result.Items[0].Name)
}

func TestParseIntakePDFInvoiceParsesWellFormedLines(t *testing.T) {
	text := "Opus One - Opus One Winery - 2018 - 6 - 350.00\nnot a valid line\nCaymus - Caymus Vineyards - 2019 - 12 - 85.50"
	result, err := ParseIntake(IntakeRequest{
		SourceType: domain.IntakeSourcePDFInvoice,
		Text:       text,
		Location:   "rack-a1",
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Len(t, result.RejectedRaw, 1)

	assert.Equal(t, "Opus One", result.Items[0].Name)
	assert.Equal(t, "Opus One Winery", result.Items[0].Producer)
	assert.Equal(t, 2018, result.Items[0].Year)
	assert.Equal(t, 6, result.Items[0].Quantity)
	assert.InDelta(t, 350.00, result.Items[0].UnitCost, 1e-9)
	assert.Equal(t, "rack-a1", result.Items[0].Location)
}

func TestParseIntakeScannedDocumentRejectsLowConfidence(t *testing.T) {
	_, err := ParseIntake(IntakeRequest{
		SourceType:    domain.IntakeSourceScannedDocument,
		Text:          "Opus One - Opus One Winery - 2018 - 6 - 350.00",
		OCRConfidence: 0.4,
	})
	assert.ErrorIs(t, err, domain.ErrLowOCRConfidence)
}

func TestParseIntakeScannedDocumentAcceptsSufficientConfidence(t *testing.T) {
	result, err := ParseIntake(IntakeRequest{
		SourceType:    domain.IntakeSourceScannedDocument,
		Text:          "Opus One - Opus One Winery - 2018 - 6 - 350.00",
		OCRConfidence: 0.75,
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
}

func TestParseIntakeExcelRowsFillDefaultsAndOverrides(t *testing.T) {
	rows := [][]string{
		{"Opus One", "2018", "6", "350.00"},
		{"Caymus", "2019", "12", "85.50", "rack-b2", "Caymus Vineyards", "Napa", "Red"},
		{"bad row"},
	}
	result, err := ParseIntake(IntakeRequest{
		SourceType: domain.IntakeSourceExcel,
		Rows:       rows,
		Location:   "rack-a1",
	})
	require.NoError(t, err)
	require.Len(t, result.Items, 2)
	require.Len(t, result.RejectedRaw, 1)

	assert.Equal(t, "rack-a1", result.Items[0].Location)
	assert.Equal(t, "rack-b2", result.Items[1].Location)
	assert.Equal(t, "Caymus Vineyards", result.Items[1].Producer)
	assert.Equal(t, "Napa", result.Items[1].Region)
	assert.Equal(t, domain.WineType("Red"), result.Items[1].WineType)
}

func TestParseIntakeUnknownSourceTypeIsUnparseable(t *testing.T) {
	_, err := ParseIntake(IntakeRequest{SourceType: domain.IntakeSourceType("unknown")})
	assert.ErrorIs(t, err, domain.ErrIntakeUnparseable)
}

func TestParseIntakeEmptyManualRequestIsUnparseable(t *testing.T) {
	_, err := ParseIntake(IntakeRequest{SourceType: domain.IntakeSourceManual})
	assert.ErrorIs(t, err, domain.ErrIntakeUnparseable)
}
