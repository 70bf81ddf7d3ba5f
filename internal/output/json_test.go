package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSONDocument(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var doc jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))

	assert.Equal(t, "11111111-2222-3333-4444-555555555555", doc.RunID)
	assert.Equal(t, []string{"192.168.1.10", "example.org"}, doc.Targets)
	assert.Equal(t, []string{"192.168.1.10", "93.184.216.34"}, doc.Hosts)
	assert.InDelta(t, 1.52, doc.DurationSeconds, 0.0001)
	assert.False(t, doc.Canceled)

	assert.Equal(t, 6, doc.Summary.TotalPorts)
	assert.Equal(t, 2, doc.Summary.Open)
	assert.Equal(t, 3, doc.Summary.Closed)
	assert.Equal(t, 1, doc.Summary.Filtered)

	require.Len(t, doc.Results, 6)
	first := doc.Results[0]
	assert.Equal(t, "192.168.1.10", first.Host)
	assert.Equal(t, 22, first.Port)
	assert.Equal(t, "open", first.State)
	assert.Equal(t, "ssh", first.Service)
	assert.Equal(t, "SSH-2.0-OpenSSH_9.6", first.Banner)
	assert.InDelta(t, 12.0, first.ResponseTimeMs, 0.0001)
}

func TestWriteJSONOmitsEmptyOptionalFields(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleReport()))

	var raw map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	assert.NotContains(t, raw, "canceled")

	results, ok := raw["results"].([]any)
	require.True(t, ok)
	closedRow, ok := results[2].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, closedRow, "banner")
	assert.NotContains(t, closedRow, "detail")
	assert.NotContains(t, closedRow, "service")
}

func TestWriteJSONCanceledFlag(t *testing.T) {
	report := sampleReport()
	report.Canceled = true

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, report))

	var doc jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.True(t, doc.Canceled)
}

func TestWriteJSONRoundsResponseTimes(t *testing.T) {
	report := sampleReport()
	report.Results[0].Duration = 12345678 // 12.345678ms

	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, report))

	var doc jsonReport
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	assert.InDelta(t, 12.35, doc.Results[0].ResponseTimeMs, 0.0001)
}
