package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleDataset() Dataset {
	return Dataset{
		Headers: []string{"Period", "Monday"},
		Rows: []map[string]string{
			{"Period": "P1 (2:00–2:45)", "Monday": "Math (Alice)"},
			{"Period": "LUNCH", "Monday": "LUNCH"},
		},
	}
}

func TestCSVExporterRender(t *testing.T) {
	payload, err := NewCSVExporter().Render(sampleDataset())
	require.NoError(t, err)
	require.Equal(t, "Period,Monday\nP1 (2:00–2:45),Math (Alice)\nLUNCH,LUNCH\n", string(payload))
}

func TestXLSXExporterRender(t *testing.T) {
	payload, err := NewXLSXExporter().Render(sampleDataset(), "Grade 9A: Timetable")
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(payload))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck

	rows, err := f.GetRows("Grade 9A  Timetable")
	require.NoError(t, err)
	require.Equal(t, [][]string{
		{"Period", "Monday"},
		{"P1 (2:00–2:45)", "Math (Alice)"},
		{"LUNCH", "LUNCH"},
	}, rows)
}

func TestPDFExporterRender(t *testing.T) {
	payload, err := NewPDFExporter().Render(sampleDataset(), "Grade 9A: Timetable")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(payload, []byte("%PDF")))
}

func TestExportersRequireHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
	_, err = NewXLSXExporter().Render(Dataset{}, "x")
	require.Error(t, err)
	_, err = NewPDFExporter().Render(Dataset{}, "x")
	require.Error(t, err)
}

func TestSheetNameTruncates(t *testing.T) {
	require.Equal(t, "Sheet1", sheetName("  "))
	require.LessOrEqual(t, len(sheetName("a very long timetable title that overflows the limit")), maxSheetNameLength)
}
