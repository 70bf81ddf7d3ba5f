package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/anstrom/portscout/internal/api"
	"github.com/anstrom/portscout/internal/logging"
	"github.com/anstrom/portscout/internal/output"
	"github.com/anstrom/portscout/internal/portset"
	"github.com/anstrom/portscout/internal/profiles"
	"github.com/anstrom/portscout/internal/scan"
	"github.com/anstrom/portscout/internal/store"
)

const (
	exitInterrupted = 130
	saveTimeout     = 10 * time.Second
)

var (
	scanPorts       string
	scanPortProfile string
	scanPreset      string
	scanWorkers     int
	scanTimeout     time.Duration
	scanBanner      bool
	scanShowClosed  bool
	scanOutput      string
	scanOutputFile  string
	scanNoColor     bool
	scanQuiet       bool
	scanMetricsAddr string
	scanSave        bool
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan [targets...]",
	Short: "Scan targets for open TCP ports",
	Long: `Scan one or more targets for open TCP ports using full connect
probes. Targets may be hostnames, IP addresses, or CIDR blocks;
every target expands to its hosts before scanning starts.

Each probed port is reported as open, closed, or filtered, and open
ports can optionally be asked for a service banner.`,
	Example: `  portscout scan 192.168.1.10
  portscout scan 192.168.1.0/24 -p 22,80,443
  portscout scan example.org -p 1-1024 --banner
  portscout scan 10.0.0.5 --port-profile web -o json
  portscout scan 192.168.1.1 --profile fast --save`,
	Args: cobra.MinimumNArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addScanFlags(scanCmd)

	scanCmd.Flags().BoolVar(&scanShowClosed, "show-closed", false,
		"include closed ports in table output")
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "",
		"output format: table, json, csv (default \"table\")")
	scanCmd.Flags().StringVar(&scanOutputFile, "output-file", "",
		"write results to a file instead of stdout")
	scanCmd.Flags().BoolVar(&scanNoColor, "no-color", false,
		"disable colored output")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false,
		"suppress progress and informational logging")
	scanCmd.Flags().StringVar(&scanMetricsAddr, "metrics-addr", "",
		"serve Prometheus metrics on this address while scanning")
	scanCmd.Flags().BoolVar(&scanSave, "save", false,
		"record the run in the scan history database")
}

// addScanFlags registers the scan shaping flags shared by the scan and
// watch commands.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&scanPorts, "ports", "p", "",
		"ports to scan: list and ranges, e.g. '22,80,8000-8100' (default \"1-1024\")")
	cmd.Flags().StringVar(&scanPortProfile, "port-profile", "",
		"named port list: top20, top100, web, database, mail, full")
	cmd.Flags().StringVar(&scanPreset, "profile", "",
		"scan preset applying ports, workers and timeout together (see 'portscout profiles')")
	cmd.Flags().IntVarP(&scanWorkers, "workers", "w", 0,
		"number of concurrent probe workers (default 100)")
	cmd.Flags().DurationVarP(&scanTimeout, "timeout", "t", 0,
		"per-connection timeout (default 1s)")
	cmd.Flags().BoolVarP(&scanBanner, "banner", "b", false,
		"capture service banners from open ports")

	cmd.MarkFlagsMutuallyExclusive("ports", "port-profile")
}

func runScan(cmd *cobra.Command, args []string) error {
	if scanQuiet {
		quietLogging()
	}

	scanConfig, err := buildScanConfig(cmd, args)
	if err != nil {
		return err
	}

	format, err := resolveOutputFormat()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	interrupted := watchInterrupts(cancel)

	engine := scan.NewEngine()
	report, err := executeScan(ctx, cancel, engine, scanConfig)
	if err != nil {
		return err
	}

	if err := renderReport(report, format); err != nil {
		return err
	}

	if scanSave {
		if err := saveReport(report); err != nil {
			return err
		}
	}

	if report.Canceled || interrupted.Load() {
		os.Exit(exitInterrupted)
	}
	return nil
}

// buildScanConfig folds the config file, the chosen preset, and any
// explicit flags into a scan configuration. Explicit flags always win
// over the preset; the preset wins over the config file.
func buildScanConfig(cmd *cobra.Command, targets []string) (scan.Config, error) {
	portsSpec := cfg.Scanning.Ports
	workers := cfg.Scanning.Workers
	timeout := cfg.Scanning.Timeout.Std()
	banner := cfg.Scanning.Banner

	var ports []int
	if scanPreset != "" {
		preset, err := profiles.Get(scanPreset)
		if err != nil {
			return scan.Config{}, err
		}
		ports = preset.Ports
		workers = preset.Workers
		timeout = preset.Timeout
	}

	switch {
	case cmd.Flags().Changed("port-profile"):
		profile, err := portset.ProfileFromName(scanPortProfile)
		if err != nil {
			return scan.Config{}, err
		}
		ports = profile.Ports()
	case cmd.Flags().Changed("ports"):
		parsed, err := portset.Parse(scanPorts)
		if err != nil {
			return scan.Config{}, err
		}
		ports = parsed
	case ports == nil:
		parsed, err := portset.Parse(portsSpec)
		if err != nil {
			return scan.Config{}, err
		}
		ports = parsed
	}

	if cmd.Flags().Changed("workers") {
		workers = scanWorkers
	}
	if cmd.Flags().Changed("timeout") {
		timeout = scanTimeout
	}
	if cmd.Flags().Changed("banner") {
		banner = scanBanner
	}

	return scan.Config{
		Targets:        targets,
		Ports:          ports,
		Workers:        workers,
		Timeout:        timeout,
		CaptureBanners: banner,
		BannerTimeout:  cfg.Scanning.BannerTimeout.Std(),
	}, nil
}

func resolveOutputFormat() (string, error) {
	format := cfg.Output.Format
	if scanOutput != "" {
		format = scanOutput
	}
	switch format {
	case "table", "json", "csv":
		return format, nil
	default:
		return "", fmt.Errorf("unknown output format %q, valid formats: table, json, csv", format)
	}
}

// watchInterrupts cancels the scan context on SIGINT or SIGTERM. A
// second signal exits immediately.
func watchInterrupts(cancel context.CancelFunc) *atomic.Bool {
	interrupted := &atomic.Bool{}
	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logging.Info("Interrupt received, finishing in-flight probes")
		interrupted.Store(true)
		cancel()

		<-sigChan
		os.Exit(exitInterrupted)
	}()

	return interrupted
}

// executeScan runs the engine, optionally alongside the ops listener,
// with a progress indicator on interactive terminals.
func executeScan(
	ctx context.Context,
	cancel context.CancelFunc,
	engine *scan.Engine,
	scanConfig scan.Config,
) (*scan.Report, error) {
	opsAddr := scanMetricsAddr
	if opsAddr == "" && cfg.Metrics.Enabled {
		opsAddr = cfg.Metrics.Address
	}

	var progress *output.Progress
	if !scanQuiet && output.IsTerminal(os.Stderr) {
		progress = output.NewProgress(os.Stderr, engine.Progress)
		progress.Start()
		defer progress.Stop()
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if opsAddr != "" {
		opsServer := api.New(opsAddr)
		group.Go(func() error {
			return opsServer.Start(groupCtx)
		})
	}

	var report *scan.Report
	group.Go(func() error {
		// Stop the ops listener once the scan itself is done.
		defer cancel()

		result, err := engine.Run(groupCtx, scanConfig)
		if err != nil {
			return err
		}
		report = result
		return nil
	})

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func renderReport(report *scan.Report, format string) error {
	writer := io.Writer(os.Stdout)
	color := cfg.Output.Color && !scanNoColor

	if scanOutputFile != "" {
		file, err := os.Create(scanOutputFile)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer file.Close()
		writer = file
		color = false
	}

	opts := output.Options{
		ShowClosed: scanShowClosed || cfg.Scanning.ShowClosed,
		Color:      color,
	}

	switch format {
	case "json":
		return output.WriteJSON(writer, report)
	case "csv":
		return output.WriteCSV(writer, report)
	default:
		output.WriteTable(writer, report, opts)
		return nil
	}
}

func saveReport(report *scan.Report) error {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	history, err := store.Open(ctx, cfg.Store.Path)
	if err != nil {
		return err
	}
	defer history.Close()

	if err := history.SaveReport(ctx, report); err != nil {
		return err
	}

	if !scanQuiet {
		fmt.Fprintf(os.Stderr, "Saved run %s to %s\n", report.RunID, history.Path())
	}
	return nil
}

// quietLogging raises the default logger to error level.
func quietLogging() {
	logger, err := logging.New(logging.Config{
		Level:  logging.LevelError,
		Format: logging.LogFormat(cfg.Logging.Format),
		Output: "stderr",
	})
	if err == nil {
		logging.SetDefault(logger)
	}
}
