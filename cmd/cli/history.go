package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/portscout/internal/output"
	"github.com/anstrom/portscout/internal/store"
)

const (
	historyQueryTimeout = 10 * time.Second
	runIDDisplayLen     = 8
	minRunIDPrefixLen   = 4
	prefixSearchLimit   = 1000
)

var historyLimit int

// historyCmd represents the history command.
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded scan runs",
	Long: `List scan runs recorded with 'portscout scan --save', newest
first. Run IDs are shown truncated; any unique prefix of at least
four characters works with 'history show'.`,
	Example: `  portscout history
  portscout history --limit 5
  portscout history show 3f1a2b9c`,
	RunE: runHistoryList,
}

// historyShowCmd represents the history show command.
var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the open ports recorded for one run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyShowCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "maximum number of runs to list")
}

func runHistoryList(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), historyQueryTimeout)
	defer cancel()

	history, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer history.Close()

	records, err := history.ListScans(ctx, historyLimit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Println("No recorded scans. Run 'portscout scan <target> --save' first.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Run ID", "Started", "Duration", "Targets", "Hosts", "Open", "Closed", "Filtered")

	for i := range records {
		record := &records[i]

		status := ""
		if record.Canceled {
			status = " (interrupted)"
		}

		_ = table.Append([]string{
			shortRunID(record.RunID),
			record.Started().Format("2006-01-02 15:04:05") + status,
			output.FormatDuration(record.Duration()),
			record.Targets,
			strconv.Itoa(record.HostCount),
			strconv.Itoa(record.OpenCount),
			strconv.Itoa(record.ClosedCount),
			strconv.Itoa(record.FilteredCount),
		})
	}

	_ = table.Render()
	return nil
}

func runHistoryShow(_ *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), historyQueryTimeout)
	defer cancel()

	history, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer history.Close()

	record, err := findRun(ctx, history, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Run %s\n", record.RunID)
	fmt.Printf("  Started:  %s\n", record.Started().Format("2006-01-02 15:04:05"))
	fmt.Printf("  Duration: %s\n", output.FormatDuration(record.Duration()))
	fmt.Printf("  Targets:  %s\n", record.Targets)
	fmt.Printf("  Ports:    %s\n", record.Ports)
	fmt.Printf("  Probes:   %d (%d open, %d closed, %d filtered)\n",
		record.ProbeCount, record.OpenCount, record.ClosedCount, record.FilteredCount)
	if record.Canceled {
		fmt.Println("  Status:   interrupted, partial results")
	}
	fmt.Println()

	ports, err := history.OpenPorts(ctx, record.RunID)
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("No open ports recorded for this run.")
		return nil
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Host", "Port", "Service", "Banner")
	for i := range ports {
		port := &ports[i]
		_ = table.Append([]string{
			port.Host,
			fmt.Sprintf("%d/tcp", port.Port),
			serviceOrDash(port.Port),
			port.Banner,
		})
	}
	_ = table.Render()
	return nil
}

// findRun resolves an exact run ID or a unique prefix of one.
func findRun(ctx context.Context, history *store.Store, id string) (*store.ScanRecord, error) {
	record, err := history.GetScan(ctx, id)
	if err != nil {
		return nil, err
	}
	if record != nil {
		return record, nil
	}

	if len(id) < minRunIDPrefixLen {
		return nil, fmt.Errorf("no run with ID %q, prefixes need at least %d characters",
			id, minRunIDPrefixLen)
	}

	records, err := history.ListScans(ctx, prefixSearchLimit)
	if err != nil {
		return nil, err
	}

	var match *store.ScanRecord
	for i := range records {
		if strings.HasPrefix(records[i].RunID, id) {
			if match != nil {
				return nil, fmt.Errorf("run ID prefix %q is ambiguous", id)
			}
			match = &records[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("no run found matching %q", id)
	}
	return match, nil
}

func shortRunID(runID string) string {
	if len(runID) > runIDDisplayLen {
		return runID[:runIDDisplayLen]
	}
	return runID
}

func serviceOrDash(port int) string {
	if name := output.ServiceName(port); name != "" {
		return name
	}
	return "-"
}
