package scan

import (
	"sort"
	"sync"

	"github.com/anstrom/portscout/internal/probe"
)

// Aggregator collects probe results as they arrive and produces the
// ordered views used by reports. It is safe for concurrent use.
type Aggregator struct {
	mu      sync.Mutex
	hosts   []string
	order   map[string]int
	results []probe.Result
}

// NewAggregator prepares an aggregator for the given hosts. The slice
// fixes host ordering for every view the aggregator produces.
func NewAggregator(hosts []string) *Aggregator {
	order := make(map[string]int, len(hosts))
	for i, h := range hosts {
		order[h] = i
	}
	return &Aggregator{
		hosts: hosts,
		order: order,
	}
}

// Add records one probe result.
func (a *Aggregator) Add(r probe.Result) {
	a.mu.Lock()
	a.results = append(a.results, r)
	a.mu.Unlock()
}

// Count reports how many results have arrived so far.
func (a *Aggregator) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.results)
}

// Results returns the collected results sorted by host resolution
// order, then by port.
func (a *Aggregator) Results() []probe.Result {
	a.mu.Lock()
	out := make([]probe.Result, len(a.results))
	copy(out, a.results)
	a.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Host != out[j].Host {
			return a.order[out[i].Host] < a.order[out[j].Host]
		}
		return out[i].Port < out[j].Port
	})
	return out
}

// Summarize folds the collected results into per-state counts and
// per-host open port listings.
func (a *Aggregator) Summarize() Summary {
	results := a.Results()

	s := Summary{TotalProbes: len(results)}
	openPorts := make(map[string][]int)

	for _, r := range results {
		switch r.State {
		case probe.StateOpen:
			s.Open++
			openPorts[r.Host] = append(openPorts[r.Host], r.Port)
		case probe.StateClosed:
			s.Closed++
		case probe.StateFiltered:
			s.Filtered++
		}
	}

	// Results are already port-sorted within each host, so the per-host
	// listings come out ascending.
	for _, host := range a.hosts {
		ports := openPorts[host]
		if len(ports) == 0 {
			continue
		}
		s.Findings = append(s.Findings, HostFinding{Host: host, OpenPorts: ports})
	}

	return s
}
