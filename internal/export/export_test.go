package export

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"alarm-tracker-backend/internal/aggregate"
	"alarm-tracker-backend/internal/alarm"
)

func sampleReport() aggregate.Report {
	t0 := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return aggregate.NewReport([]aggregate.Row{
		{ID: "ALM-001", Total: 3661 * time.Second, Activations: 2},
		{ID: "ALM-002", Total: 0, Activations: 0},
		{ID: "ALM-003", Total: 25 * time.Hour, Activations: 1},
	}, alarm.TimeRange{Start: t0, End: t0.Add(48 * time.Hour)}, t0.Add(48*time.Hour))
}

func TestBuildCSV(t *testing.T) {
	body, err := BuildCSV(sampleReport())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(body), "\n"), "\n")
	assert.Equal(t, []string{
		"Alarm ID,Total Active (hh:mm:ss),Activations",
		"ALM-001,01:01:01,2",
		"ALM-002,00:00:00,0",
		"ALM-003,25:00:00,1",
		"Total,26:01:01,3",
	}, lines)
}

func TestBuildXLSX(t *testing.T) {
	body, err := BuildXLSX(sampleReport())
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("alarms")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, "Alarm ID", rows[0][0])
	assert.Equal(t, []string{"ALM-001", "01:01:01", "2", "3661000"}, rows[1])
	assert.Equal(t, "Total", rows[4][0])
	assert.Equal(t, "26:01:01", rows[4][1])

	total, err := f.GetCellValue("summary", "B6")
	require.NoError(t, err)
	assert.Equal(t, "26:01:01", total)
}

func TestBuildPDF(t *testing.T) {
	body, err := BuildPDF(sampleReport())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(body, []byte("%PDF")))
}

func TestRender(t *testing.T) {
	_, contentType, name, err := Render(FormatCSV, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "text/csv", contentType)
	assert.Equal(t, "alarm-analytics.csv", name)

	_, _, name, err = Render(FormatXLSX, sampleReport())
	require.NoError(t, err)
	assert.Equal(t, "alarm-analytics.xlsx", name)

	_, _, _, err = Render("docx", sampleReport())
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}
