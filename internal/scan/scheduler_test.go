package scan

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anstrom/portscout/internal/errors"
	"github.com/anstrom/portscout/internal/probe"
)

// fakeProber returns canned results after an optional delay and tracks
// how many probes run at once.
type fakeProber struct {
	delay     time.Duration
	state     probe.State
	exhausted bool

	current atomic.Int64
	peak    atomic.Int64

	mu    sync.Mutex
	seen  map[string]int
	calls atomic.Int64
}

func newFakeProber(delay time.Duration, state probe.State) *fakeProber {
	return &fakeProber{
		delay: delay,
		state: state,
		seen:  make(map[string]int),
	}
}

func (f *fakeProber) Probe(_ context.Context, host string, port int) probe.Result {
	cur := f.current.Add(1)
	for {
		peak := f.peak.Load()
		if cur <= peak || f.peak.CompareAndSwap(peak, cur) {
			break
		}
	}
	defer f.current.Add(-1)

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.seen[fmt.Sprintf("%s:%d", host, port)]++
	f.mu.Unlock()
	f.calls.Add(1)

	return probe.Result{
		Host:      host,
		Port:      port,
		State:     f.state,
		Duration:  f.delay,
		Exhausted: f.exhausted,
	}
}

func makeTasks(hosts, ports int) []Task {
	tasks := make([]Task, 0, hosts*ports)
	for h := 0; h < hosts; h++ {
		host := fmt.Sprintf("10.0.0.%d", h+1)
		for p := 0; p < ports; p++ {
			tasks = append(tasks, Task{Host: host, HostIndex: h, Port: 1000 + p})
		}
	}
	return tasks
}

func TestNewSchedulerBounds(t *testing.T) {
	fake := newFakeProber(0, probe.StateClosed)

	tests := []struct {
		name    string
		workers int
		wantErr bool
	}{
		{"zero workers", 0, true},
		{"negative workers", -5, true},
		{"above maximum", MaxWorkers + 1, true},
		{"minimum", MinWorkers, false},
		{"maximum", MaxWorkers, false},
		{"typical", 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := NewScheduler(tt.workers, fake)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.IsCode(err, errors.CodeWorkerBounds))
				assert.Nil(t, s)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, s)
			}
		})
	}
}

func TestNewSchedulerNilProber(t *testing.T) {
	s, err := NewScheduler(10, nil)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeValidation))
	assert.Nil(t, s)
}

func TestSchedulerCompletesAllTasks(t *testing.T) {
	fake := newFakeProber(0, probe.StateClosed)
	s, err := NewScheduler(5, fake)
	require.NoError(t, err)

	tasks := makeTasks(10, 10)
	var results []probe.Result
	for r := range s.Run(context.Background(), tasks) {
		results = append(results, r)
	}

	assert.Len(t, results, 100)

	// Every task ran exactly once.
	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Len(t, fake.seen, 100)
	for key, count := range fake.seen {
		assert.Equal(t, 1, count, "task %s probed more than once", key)
	}
}

func TestSchedulerConcurrencyBound(t *testing.T) {
	fake := newFakeProber(10*time.Millisecond, probe.StateClosed)
	s, err := NewScheduler(5, fake)
	require.NoError(t, err)

	tasks := makeTasks(4, 25)
	count := 0
	for range s.Run(context.Background(), tasks) {
		count++
	}

	assert.Equal(t, 100, count)
	assert.LessOrEqual(t, fake.peak.Load(), int64(5),
		"concurrent probes must never exceed the worker count")
}

func TestSchedulerCancellationStopsDispatch(t *testing.T) {
	fake := newFakeProber(30*time.Millisecond, probe.StateFiltered)
	s, err := NewScheduler(5, fake)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	tasks := makeTasks(10, 20)

	resultCh := s.Run(ctx, tasks)
	time.AfterFunc(100*time.Millisecond, cancel)

	var results []probe.Result
	for r := range resultCh {
		results = append(results, r)
	}

	// Dispatch stopped early, but every probe that had started still
	// delivered a complete result.
	assert.Greater(t, len(results), 0)
	assert.Less(t, len(results), 200)
	for _, r := range results {
		assert.NotEmpty(t, r.Host)
		assert.NotZero(t, r.Port)
	}

	completed, total := s.Progress()
	assert.Equal(t, int64(len(results)), completed)
	assert.Equal(t, int64(200), total)
}

func TestSchedulerPreCanceledContext(t *testing.T) {
	fake := newFakeProber(0, probe.StateClosed)
	s, err := NewScheduler(5, fake)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	count := 0
	for range s.Run(ctx, makeTasks(5, 5)) {
		count++
	}

	assert.Zero(t, count, "a canceled run must not dispatch any task")
	assert.Zero(t, fake.calls.Load())
}

func TestSchedulerProgress(t *testing.T) {
	fake := newFakeProber(5*time.Millisecond, probe.StateClosed)
	s, err := NewScheduler(2, fake)
	require.NoError(t, err)

	tasks := makeTasks(2, 10)
	resultCh := s.Run(context.Background(), tasks)

	_, total := s.Progress()
	assert.Equal(t, int64(20), total)

	for range resultCh {
	}

	completed, total := s.Progress()
	assert.Equal(t, int64(20), completed)
	assert.Equal(t, int64(20), total)
}

func TestSchedulerExhaustionSlowsDispatch(t *testing.T) {
	fake := newFakeProber(0, probe.StateFiltered)
	fake.exhausted = true

	s, err := NewScheduler(2, fake)
	require.NoError(t, err)

	tasks := makeTasks(1, 6)
	start := time.Now()
	count := 0
	for range s.Run(context.Background(), tasks) {
		count++
	}
	elapsed := time.Since(start)

	// Every task still runs exactly once; dispatch just slows down.
	assert.Equal(t, 6, count)
	assert.GreaterOrEqual(t, elapsed, exhaustionBackoff,
		"dispatch should back off after exhaustion reports")
}
