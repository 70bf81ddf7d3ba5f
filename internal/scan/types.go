// Package scan drives whole port scan runs. It expands targets into
// hosts, fans (host, port) tasks out across a bounded worker pool, and
// folds probe results into an ordered report.
package scan

import (
	"fmt"
	"time"

	"github.com/anstrom/portscout/internal/errors"
	"github.com/anstrom/portscout/internal/probe"
)

// Worker pool and timing bounds.
const (
	MinWorkers = 1
	MaxWorkers = 1000

	DefaultWorkers = 100
	DefaultTimeout = time.Second
	MinTimeout     = 100 * time.Millisecond
)

// Config describes one scan run.
type Config struct {
	// Targets are the raw target tokens: IP literals, hostnames, or
	// IPv4 CIDR blocks.
	Targets []string
	// Ports is the sorted, deduplicated list of ports to probe on
	// every host.
	Ports []int
	// Workers caps probe concurrency.
	Workers int
	// Timeout bounds each connection attempt.
	Timeout time.Duration
	// CaptureBanners enables banner capture on open ports.
	CaptureBanners bool
	// BannerTimeout bounds each banner capture phase.
	BannerTimeout time.Duration
}

// Validate checks the configuration before a run starts.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return errors.NewScanError(errors.CodeValidation, "no targets specified")
	}
	if len(c.Ports) == 0 {
		return errors.NewScanError(errors.CodeValidation, "no ports specified")
	}
	if c.Workers < MinWorkers || c.Workers > MaxWorkers {
		return errors.ErrWorkerBounds(c.Workers, MinWorkers, MaxWorkers)
	}
	if c.Timeout < MinTimeout {
		return errors.NewScanError(errors.CodeValidation,
			fmt.Sprintf("timeout %v below minimum %v", c.Timeout, MinTimeout))
	}
	return nil
}

// Task is a single (host, port) probe assignment. HostIndex records the
// position of the host in resolution order so reports stay stable no
// matter which worker finishes first.
type Task struct {
	Host      string
	HostIndex int
	Port      int
}

// Report is the complete outcome of one scan run. Results hold exactly
// one entry per dispatched probe, ordered by host resolution order and
// then by port.
type Report struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration
	Targets   []string
	Hosts     []string
	Ports     []int
	Results   []probe.Result
	Canceled  bool
	Summary   Summary
}

// Summary aggregates result counts for one run.
type Summary struct {
	TotalProbes int
	Open        int
	Closed      int
	Filtered    int
	// Findings lists hosts with at least one open port, in host
	// resolution order.
	Findings []HostFinding
}

// HostFinding lists the open ports found on one host, ascending.
type HostFinding struct {
	Host      string
	OpenPorts []int
}
