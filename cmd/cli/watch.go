package cli

import (
	"context"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anstrom/portscout/internal/api"
	"github.com/anstrom/portscout/internal/store"
	"github.com/anstrom/portscout/internal/watch"
)

var (
	watchSchedule    string
	watchMetricsAddr string
)

// watchCmd represents the watch command.
var watchCmd = &cobra.Command{
	Use:   "watch [targets...]",
	Short: "Re-scan targets on a schedule and report changes",
	Long: `Scan the given targets immediately and then again on every
schedule tick, recording each completed run in the scan history.
After each run the open-port set is compared against the previous
run for the same targets, and any port that newly opened or is no
longer reachable is logged.

The schedule accepts standard five-field cron expressions as well
as @every intervals such as '@every 30s'. Watching continues until
interrupted.`,
	Example: `  portscout watch 192.168.1.10
  portscout watch 10.0.0.0/28 -p 22,80,443 --schedule '@every 1m'
  portscout watch example.org --profile web --schedule '*/10 * * * *'`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	addScanFlags(watchCmd)

	watchCmd.Flags().StringVarP(&watchSchedule, "schedule", "s", watch.DefaultSchedule,
		"cron expression or @every interval between runs")
	watchCmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address while watching")
}

func runWatch(cmd *cobra.Command, args []string) error {
	scanConfig, err := buildScanConfig(cmd, args)
	if err != nil {
		return err
	}

	// An interrupt is the normal way to stop watching, so the first
	// signal winds the loop down cleanly and exits zero.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchInterrupts(cancel)

	history, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer history.Close()

	watcher := watch.New(history, scanConfig, watchSchedule)

	opsAddr := watchMetricsAddr
	if opsAddr == "" && cfg.Metrics.Enabled {
		opsAddr = cfg.Metrics.Address
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if opsAddr != "" {
		opsServer := api.New(opsAddr)
		group.Go(func() error {
			return opsServer.Start(groupCtx)
		})
	}
	group.Go(func() error {
		defer cancel()
		return watcher.Run(groupCtx)
	})

	return group.Wait()
}
