package scan

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anstrom/portscout/internal/probe"
)

func TestAggregatorOrdersResults(t *testing.T) {
	hosts := []string{"10.0.0.3", "10.0.0.1", "example.org"}
	agg := NewAggregator(hosts)

	// Arrival order is whatever the workers produced.
	agg.Add(probe.Result{Host: "example.org", Port: 443, State: probe.StateOpen})
	agg.Add(probe.Result{Host: "10.0.0.1", Port: 80, State: probe.StateClosed})
	agg.Add(probe.Result{Host: "10.0.0.3", Port: 8080, State: probe.StateOpen})
	agg.Add(probe.Result{Host: "10.0.0.3", Port: 22, State: probe.StateFiltered})
	agg.Add(probe.Result{Host: "example.org", Port: 80, State: probe.StateOpen})

	results := agg.Results()

	want := []struct {
		host string
		port int
	}{
		{"10.0.0.3", 22},
		{"10.0.0.3", 8080},
		{"10.0.0.1", 80},
		{"example.org", 80},
		{"example.org", 443},
	}

	assert.Len(t, results, len(want))
	for i, w := range want {
		assert.Equal(t, w.host, results[i].Host, "result %d host", i)
		assert.Equal(t, w.port, results[i].Port, "result %d port", i)
	}
}

func TestAggregatorSummarize(t *testing.T) {
	hosts := []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"}
	agg := NewAggregator(hosts)

	agg.Add(probe.Result{Host: "10.0.0.2", Port: 443, State: probe.StateOpen})
	agg.Add(probe.Result{Host: "10.0.0.1", Port: 80, State: probe.StateOpen})
	agg.Add(probe.Result{Host: "10.0.0.1", Port: 22, State: probe.StateOpen})
	agg.Add(probe.Result{Host: "10.0.0.1", Port: 25, State: probe.StateClosed})
	agg.Add(probe.Result{Host: "10.0.0.3", Port: 80, State: probe.StateFiltered})
	agg.Add(probe.Result{Host: "10.0.0.3", Port: 443, State: probe.StateClosed})

	s := agg.Summarize()

	assert.Equal(t, 6, s.TotalProbes)
	assert.Equal(t, 3, s.Open)
	assert.Equal(t, 2, s.Closed)
	assert.Equal(t, 1, s.Filtered)

	// Only hosts with open ports appear, in host order, ports ascending.
	assert.Len(t, s.Findings, 2)
	assert.Equal(t, "10.0.0.1", s.Findings[0].Host)
	assert.Equal(t, []int{22, 80}, s.Findings[0].OpenPorts)
	assert.Equal(t, "10.0.0.2", s.Findings[1].Host)
	assert.Equal(t, []int{443}, s.Findings[1].OpenPorts)
}

func TestAggregatorEmpty(t *testing.T) {
	agg := NewAggregator([]string{"10.0.0.1"})

	s := agg.Summarize()
	assert.Zero(t, s.TotalProbes)
	assert.Zero(t, s.Open)
	assert.Empty(t, s.Findings)
	assert.Empty(t, agg.Results())
	assert.Zero(t, agg.Count())
}

func TestAggregatorConcurrentAdd(t *testing.T) {
	agg := NewAggregator([]string{"10.0.0.1"})

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for p := 0; p < 50; p++ {
				agg.Add(probe.Result{
					Host:  "10.0.0.1",
					Port:  base*50 + p + 1,
					State: probe.StateClosed,
				})
			}
		}(g)
	}
	wg.Wait()

	assert.Equal(t, 500, agg.Count())
	assert.Len(t, agg.Results(), 500)
}
