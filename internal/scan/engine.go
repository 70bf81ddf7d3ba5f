package scan

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/anstrom/portscout/internal/banner"
	"github.com/anstrom/portscout/internal/errors"
	"github.com/anstrom/portscout/internal/logging"
	"github.com/anstrom/portscout/internal/metrics"
	"github.com/anstrom/portscout/internal/probe"
	"github.com/anstrom/portscout/internal/target"
)

// Engine orchestrates complete scan runs from target expansion through
// the final report.
type Engine struct {
	expander *target.Expander
	sched    atomic.Pointer[Scheduler]
}

// NewEngine creates an engine using the system resolver for hostnames.
func NewEngine() *Engine {
	return &Engine{expander: target.NewExpander()}
}

// Run executes one scan: expand targets, probe every (host, port) pair,
// and assemble the ordered report. A canceled context yields a partial
// report with Canceled set rather than an error; only invalid input or
// an empty target set fails the run.
func (e *Engine) Run(ctx context.Context, cfg Config) (*Report, error) {
	start := time.Now()

	logging.Info("Starting scan",
		"targets", len(cfg.Targets),
		"ports", len(cfg.Ports),
		"workers", cfg.Workers,
		"timeout", cfg.Timeout)

	if err := cfg.Validate(); err != nil {
		metrics.ObserveScan(metrics.ScanStatusFailed, time.Since(start))
		return nil, err
	}

	hosts, expErrs := e.expander.ExpandAll(ctx, cfg.Targets)
	for _, expErr := range expErrs {
		logging.WarnTarget("Skipping target", errors.GetTarget(expErr), expErr)
	}
	if len(hosts) == 0 {
		metrics.ObserveScan(metrics.ScanStatusFailed, time.Since(start))
		return nil, errors.ErrNoTargets()
	}

	prober := probe.New(cfg.Timeout)
	if cfg.CaptureBanners {
		prober.Banner = banner.New(cfg.BannerTimeout)
	}

	sched, err := NewScheduler(cfg.Workers, prober)
	if err != nil {
		metrics.ObserveScan(metrics.ScanStatusFailed, time.Since(start))
		return nil, err
	}
	e.sched.Store(sched)

	tasks := buildTasks(hosts, cfg.Ports)
	agg := NewAggregator(hosts)

	for result := range sched.Run(ctx, tasks) {
		agg.Add(result)
		metrics.ObserveProbe(string(result.State), result.Duration)
		if cfg.CaptureBanners && result.State == probe.StateOpen {
			metrics.ObserveBanner(result.Banner != "")
		}
	}

	canceled := ctx.Err() != nil

	report := &Report{
		RunID:     uuid.New().String(),
		StartedAt: start,
		Duration:  time.Since(start),
		Targets:   cfg.Targets,
		Hosts:     hosts,
		Ports:     cfg.Ports,
		Results:   agg.Results(),
		Canceled:  canceled,
		Summary:   agg.Summarize(),
	}

	status := metrics.ScanStatusCompleted
	if canceled {
		status = metrics.ScanStatusCanceled
	}
	metrics.ObserveScan(status, report.Duration)

	logging.Info("Scan completed",
		"run_id", report.RunID,
		"hosts", len(hosts),
		"probes", len(report.Results),
		"open", report.Summary.Open,
		"duration", report.Duration,
		"canceled", canceled)

	return report, nil
}

// Progress reports completed and total probe counts for the run in
// flight. Both are zero before the first run starts.
func (e *Engine) Progress() (completed, total int64) {
	sched := e.sched.Load()
	if sched == nil {
		return 0, 0
	}
	return sched.Progress()
}

// buildTasks crosses hosts with ports, preserving host resolution order.
func buildTasks(hosts []string, ports []int) []Task {
	tasks := make([]Task, 0, len(hosts)*len(ports))
	for hi, host := range hosts {
		for _, port := range ports {
			tasks = append(tasks, Task{Host: host, HostIndex: hi, Port: port})
		}
	}
	return tasks
}
