// Package watch re-runs a scan on a schedule, records each run, and
// reports how the set of open ports changed since the previous run.
package watch

import (
	"context"
	"fmt"
	"sort"

	"github.com/robfig/cron/v3"

	"github.com/anstrom/portscout/internal/errors"
	"github.com/anstrom/portscout/internal/logging"
	"github.com/anstrom/portscout/internal/probe"
	"github.com/anstrom/portscout/internal/scan"
	"github.com/anstrom/portscout/internal/store"
)

// DefaultSchedule re-scans every five minutes.
const DefaultSchedule = "@every 5m"

// PortChange identifies one host/port whose open state flipped
// between consecutive runs.
type PortChange struct {
	Host string
	Port int
}

// Watcher owns the recurring scan loop.
type Watcher struct {
	engine     *scan.Engine
	history    *store.Store
	scanConfig scan.Config
	schedule   string
	targetsKey string
}

// New creates a watcher for one scan configuration. Every completed
// run is saved to history; interrupted runs are discarded so diffs
// only ever compare complete port sets.
func New(history *store.Store, scanConfig scan.Config, schedule string) *Watcher {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	return &Watcher{
		engine:     scan.NewEngine(),
		history:    history,
		scanConfig: scanConfig,
		schedule:   schedule,
		targetsKey: store.TargetsKey(scanConfig.Targets),
	}
}

// Run scans immediately, then on every schedule tick until ctx is
// canceled. Individual run failures are logged, not fatal.
func (w *Watcher) Run(ctx context.Context) error {
	if _, err := cron.ParseStandard(w.schedule); err != nil {
		return errors.NewConfigFieldError(errors.CodeConfiguration,
			fmt.Sprintf("invalid watch schedule: %v", err), "schedule", w.schedule)
	}

	logging.InfoWatch("Watch started",
		"targets", w.targetsKey,
		"ports", len(w.scanConfig.Ports),
		"schedule", w.schedule)

	w.tick(ctx)

	scheduler := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})))
	if _, err := scheduler.AddFunc(w.schedule, func() { w.tick(ctx) }); err != nil {
		return errors.NewConfigFieldError(errors.CodeConfiguration,
			fmt.Sprintf("failed to schedule watch: %v", err), "schedule", w.schedule)
	}
	scheduler.Start()

	<-ctx.Done()
	// Stop returns a context that completes once running jobs finish.
	<-scheduler.Stop().Done()

	logging.InfoWatch("Watch stopped", "targets", w.targetsKey)
	return nil
}

// tick performs one run and logs the outcome.
func (w *Watcher) tick(ctx context.Context) {
	report, opened, closed, err := w.runOnce(ctx)
	if err != nil {
		logging.ErrorWatch("Watch run failed", err, "targets", w.targetsKey)
		return
	}
	if report == nil {
		return
	}

	for _, change := range opened {
		logging.InfoWatch("Port newly open", "host", change.Host, "port", change.Port)
	}
	for _, change := range closed {
		logging.InfoWatch("Port no longer open", "host", change.Host, "port", change.Port)
	}

	logging.InfoWatch("Watch run completed",
		"run_id", report.RunID,
		"open", report.Summary.Open,
		"newly_open", len(opened),
		"newly_closed", len(closed),
		"duration", report.Duration)
}

// runOnce scans, saves the run, and diffs it against the previous run
// for the same targets. A nil report with nil error means the run was
// interrupted and discarded.
func (w *Watcher) runOnce(ctx context.Context) (*scan.Report, []PortChange, []PortChange, error) {
	previous, err := w.history.LastScan(ctx, w.targetsKey)
	if err != nil {
		return nil, nil, nil, err
	}

	report, err := w.engine.Run(ctx, w.scanConfig)
	if err != nil {
		return nil, nil, nil, err
	}
	if report.Canceled {
		logging.InfoWatch("Discarding interrupted run", "run_id", report.RunID)
		return nil, nil, nil, nil
	}

	if err := w.history.SaveReport(ctx, report); err != nil {
		return nil, nil, nil, err
	}

	if previous == nil {
		logging.InfoWatch("Baseline run recorded",
			"run_id", report.RunID, "open", report.Summary.Open)
		return report, nil, nil, nil
	}

	previousPorts, err := w.history.OpenPorts(ctx, previous.RunID)
	if err != nil {
		return nil, nil, nil, err
	}

	opened, closed := Diff(previousPorts, openPortsOf(report))
	return report, opened, closed, nil
}

// Diff compares two open-port sets and returns what opened and what
// closed, each sorted by host then port.
func Diff(previous, current []store.OpenPortRecord) (opened, closed []PortChange) {
	prevSet := make(map[PortChange]struct{}, len(previous))
	for _, record := range previous {
		prevSet[PortChange{Host: record.Host, Port: record.Port}] = struct{}{}
	}

	currSet := make(map[PortChange]struct{}, len(current))
	for _, record := range current {
		key := PortChange{Host: record.Host, Port: record.Port}
		currSet[key] = struct{}{}
		if _, ok := prevSet[key]; !ok {
			opened = append(opened, key)
		}
	}

	for key := range prevSet {
		if _, ok := currSet[key]; !ok {
			closed = append(closed, key)
		}
	}

	sortChanges(opened)
	sortChanges(closed)
	return opened, closed
}

func sortChanges(changes []PortChange) {
	sort.Slice(changes, func(i, j int) bool {
		if changes[i].Host != changes[j].Host {
			return changes[i].Host < changes[j].Host
		}
		return changes[i].Port < changes[j].Port
	})
}

// openPortsOf projects a report's open results into port records for
// diffing.
func openPortsOf(report *scan.Report) []store.OpenPortRecord {
	var records []store.OpenPortRecord
	for i := range report.Results {
		result := &report.Results[i]
		if result.State != probe.StateOpen {
			continue
		}
		records = append(records, store.OpenPortRecord{
			RunID:  report.RunID,
			Host:   result.Host,
			Port:   result.Port,
			Banner: result.Banner,
		})
	}
	return records
}

// cronLogger adapts the cron scheduler's logging to the shared
// structured logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logging.InfoWatch(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logging.ErrorWatch(msg, err, keysAndValues...)
}
