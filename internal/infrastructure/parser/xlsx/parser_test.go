package xlsx

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
)

func workbook(t *testing.T, rows [][]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

var header = []any{
	"hts8", "brief_description", "mfn_text_rate",
	"mfn_ad_val_rate", "mfn_specific_rate", "mfn_other_rate",
	"col2_ad_val_rate", "col2_specific_rate", "col2_other_rate",
	"australia_indicator", "australia_ad_val_rate", "australia_specific_rate", "australia_other_rate",
	"jordan_indicator", "jordan_ad_val_rate",
}

func TestParseReadsRatesAndPrograms(t *testing.T) {
	buf := workbook(t, [][]any{
		header,
		{"64039900", "Footwear", "10%", 0.1, "", "", 0.35, "", "", "AU", 0, "", "", "", ""},
		{"0101.21.00", "Horses, purebred", "Free", 0, "", "", 0, "", "", "", "", "", "", "JO", 0},
		{"", "", "", "", "", "", "", "", "", "", "", "", "", "", ""},
	})

	rows, err := New("").Parse(context.Background(), "US", buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	shoe := rows[0]
	assert.Equal(t, "64039900", shoe.HTS8)
	assert.Equal(t, "US", shoe.Jurisdiction)
	assert.Equal(t, 0.1, *shoe.MFNAdValorem)
	assert.Nil(t, shoe.MFNSpecific)
	assert.Equal(t, 0.35, *shoe.Col2AdValorem)
	au, ok := shoe.Program("australia")
	require.True(t, ok)
	assert.Equal(t, "AU", au.Indicator)
	assert.Equal(t, 0.0, *au.AdValorem)
	_, ok = shoe.Program("jordan")
	assert.False(t, ok, "blank program columns produce no program")

	horse := rows[1]
	assert.Equal(t, "01012100", horse.HTS8)
	jo, ok := horse.Program("jordan")
	require.True(t, ok)
	assert.Equal(t, 0.0, *jo.AdValorem)
	assert.Nil(t, jo.Specific)
}

func TestParseRestoresLeadingZero(t *testing.T) {
	buf := workbook(t, [][]any{
		{"HTS8", "Brief_Description"},
		{1012100, "Horses"},
	})

	rows, err := New("").Parse(context.Background(), "CA", buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "01012100", rows[0].HTS8)
	assert.Equal(t, "Horses", rows[0].Description)
}

func TestParseDuplicateCodeLastWins(t *testing.T) {
	buf := workbook(t, [][]any{
		{"hts8", "mfn_ad_val_rate"},
		{"64039900", 0.1},
		{"64039900", 0.2},
	})

	rows, err := New("").Parse(context.Background(), "US", buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 0.2, *rows[0].MFNAdValorem)
}

func TestParseRejectsBadInput(t *testing.T) {
	cases := map[string][][]any{
		"missing hts8 column": {{"code", "rate"}, {"64039900", 0.1}},
		"non numeric rate":    {{"hts8", "mfn_ad_val_rate"}, {"64039900", "ten"}},
		"negative rate":       {{"hts8", "mfn_ad_val_rate"}, {"64039900", -0.1}},
		"short code":          {{"hts8"}, {"6403"}},
	}
	for name, rows := range cases {
		_, err := New("").Parse(context.Background(), "US", workbook(t, rows))
		assert.True(t, domain.IsKind(err, domain.ErrInvalidInput), name)
	}
}

func TestParseRejectsNonWorkbook(t *testing.T) {
	_, err := New("").Parse(context.Background(), "US", bytes.NewBufferString("not a zip"))
	assert.True(t, domain.IsKind(err, domain.ErrInvalidInput))
}

func TestParseUnknownSheet(t *testing.T) {
	_, err := New("Tariffs").Parse(context.Background(), "US", workbook(t, [][]any{{"hts8"}}))
	assert.Error(t, err)
}
