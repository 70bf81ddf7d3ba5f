package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portscout/internal/probe"
	"github.com/anstrom/portscout/internal/scan"
	"github.com/anstrom/portscout/internal/store"
)

// seedHistory opens a scratch history store holding one recorded run
// per given ID.
func seedHistory(t *testing.T, runIDs ...string) *store.Store {
	t.Helper()
	ctx := context.Background()

	history, err := store.Open(ctx, filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = history.Close() })

	started := time.Now().Add(-time.Hour)
	for i, runID := range runIDs {
		report := &scan.Report{
			RunID:     runID,
			StartedAt: started.Add(time.Duration(i) * time.Minute),
			Duration:  2 * time.Second,
			Targets:   []string{"192.168.1.10"},
			Hosts:     []string{"192.168.1.10"},
			Ports:     []int{22, 80},
			Results: []probe.Result{
				{Host: "192.168.1.10", Port: 22, State: probe.StateOpen},
				{Host: "192.168.1.10", Port: 80, State: probe.StateClosed},
			},
			Summary: scan.Summary{TotalProbes: 2, Open: 1, Closed: 1},
		}
		require.NoError(t, history.SaveReport(ctx, report))
	}
	return history
}

func TestFindRunExactID(t *testing.T) {
	const runID = "aaaa1111-0000-0000-0000-000000000001"
	history := seedHistory(t, runID)

	record, err := findRun(context.Background(), history, runID)
	require.NoError(t, err)
	assert.Equal(t, runID, record.RunID)
}

func TestFindRunUniquePrefix(t *testing.T) {
	history := seedHistory(t,
		"aaaa1111-0000-0000-0000-000000000001",
		"bbbb2222-0000-0000-0000-000000000002")

	record, err := findRun(context.Background(), history, "bbbb")
	require.NoError(t, err)
	assert.Equal(t, "bbbb2222-0000-0000-0000-000000000002", record.RunID)
}

func TestFindRunAmbiguousPrefix(t *testing.T) {
	history := seedHistory(t,
		"aaaa1111-0000-0000-0000-000000000001",
		"aaaa2222-0000-0000-0000-000000000002")

	_, err := findRun(context.Background(), history, "aaaa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")
}

func TestFindRunPrefixTooShort(t *testing.T) {
	history := seedHistory(t, "aaaa1111-0000-0000-0000-000000000001")

	_, err := findRun(context.Background(), history, "aa")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 4 characters")
}

func TestFindRunNotFound(t *testing.T) {
	history := seedHistory(t, "aaaa1111-0000-0000-0000-000000000001")

	_, err := findRun(context.Background(), history, "ffff")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no run found")
}

func TestShortRunID(t *testing.T) {
	assert.Equal(t, "aaaa1111", shortRunID("aaaa1111-0000-0000-0000-000000000001"))
	assert.Equal(t, "abc", shortRunID("abc"))
}

func TestServiceOrDash(t *testing.T) {
	assert.Equal(t, "ssh", serviceOrDash(22))
	assert.Equal(t, "https", serviceOrDash(443))
	assert.Equal(t, "-", serviceOrDash(49999))
}
