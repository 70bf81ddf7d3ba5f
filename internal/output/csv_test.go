package output

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSVRows(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleReport()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 7)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t,
		[]string{"192.168.1.10", "22", "open", "ssh", "SSH-2.0-OpenSSH_9.6", "12"},
		rows[1])
	assert.Equal(t,
		[]string{"192.168.1.10", "80", "filtered", "http", "", "1000"},
		rows[2])
}

func TestWriteCSVEscapesBannerFields(t *testing.T) {
	report := sampleReport()
	report.Results = report.Results[:1]
	report.Results[0].Banner = `220 "mail, example" ready`
	report.Results[0].Duration = 1500 * time.Microsecond

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, report))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, `220 "mail, example" ready`, rows[1][4])
	assert.Equal(t, "1.5", rows[1][5])
}

func TestWriteCSVEmptyReport(t *testing.T) {
	report := sampleReport()
	report.Results = nil

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, report))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
