// Package metrics provides Prometheus-based metrics collection for
// portscout. Probe outcomes, scan lifecycles, history store queries and
// process health are exposed through a dedicated registry served by the
// operational HTTP listener.
package metrics

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const (
	// Namespace for all portscout metrics
	namespace = "portscout"

	// Subsystems
	subsystemProbe  = "probe"
	subsystemScan   = "scan"
	subsystemStore  = "store"
	subsystemSystem = "system"
)

// Banner capture outcomes.
const (
	BannerCaptured = "captured"
	BannerEmpty    = "empty"
)

// Scan completion statuses.
const (
	ScanStatusCompleted = "completed"
	ScanStatusCanceled  = "canceled"
	ScanStatusFailed    = "failed"
)

// Metrics holds all Prometheus metric collectors.
type Metrics struct {
	// Probe metrics
	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	bannersTotal  *prometheus.CounterVec

	// Scan metrics
	scansTotal    *prometheus.CounterVec
	scanDuration  prometheus.Histogram
	activeWorkers prometheus.Gauge

	// Store metrics
	storeQueries       *prometheus.CounterVec
	storeQueryDuration *prometheus.HistogramVec

	// System metrics
	memoryUsage prometheus.Gauge
	goroutines  prometheus.Gauge
	uptime      prometheus.Gauge

	// Performance tracking
	startTime  time.Time
	lastUpdate time.Time
	mu         sync.RWMutex
	registry   *prometheus.Registry
}

// New creates a metrics instance with all collectors registered on a
// fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		startTime: time.Now(),
		registry:  registry,
	}

	m.initProbeMetrics()
	m.initScanMetrics()
	m.initStoreMetrics()
	m.initSystemMetrics()

	m.registerMetrics()

	// Register standard Go and process collectors for runtime visibility
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// initProbeMetrics initializes per-probe metrics
func (m *Metrics) initProbeMetrics() {
	m.probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "total",
			Help:      "Total number of port probes by resulting state",
		},
		[]string{"state"},
	)

	m.probeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "duration_seconds",
			Help:      "Duration of individual port probes in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		},
		[]string{"state"},
	)

	m.bannersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemProbe,
			Name:      "banners_total",
			Help:      "Total number of banner capture attempts by outcome",
		},
		[]string{"outcome"},
	)
}

// initScanMetrics initializes scan lifecycle metrics
func (m *Metrics) initScanMetrics() {
	m.scansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "total",
			Help:      "Total number of scans performed by completion status",
		},
		[]string{"status"},
	)

	m.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of whole scans in seconds",
			Buckets:   []float64{0.1, 0.5, 1.0, 5.0, 10.0, 30.0, 60.0, 300.0, 600.0},
		},
	)

	m.activeWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemScan,
			Name:      "workers_active",
			Help:      "Number of probe workers currently running",
		},
	)
}

// initStoreMetrics initializes history store metrics
func (m *Metrics) initStoreMetrics() {
	m.storeQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystemStore,
			Name:      "queries_total",
			Help:      "Total number of history store queries by operation and status",
		},
		[]string{"operation", "status"},
	)

	m.storeQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystemStore,
			Name:      "query_duration_seconds",
			Help:      "Duration of history store queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0},
		},
		[]string{"operation"},
	)
}

// initSystemMetrics initializes process health metrics
func (m *Metrics) initSystemMetrics() {
	m.memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "memory_bytes",
			Help:      "Current memory usage in bytes",
		},
	)

	m.goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "goroutines",
			Help:      "Current number of goroutines",
		},
	)

	m.uptime = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystemSystem,
			Name:      "uptime_seconds",
			Help:      "Application uptime in seconds",
		},
	)
}

// registerMetrics registers all metrics with the Prometheus registry
func (m *Metrics) registerMetrics() {
	// Probe metrics
	m.registry.MustRegister(m.probesTotal)
	m.registry.MustRegister(m.probeDuration)
	m.registry.MustRegister(m.bannersTotal)

	// Scan metrics
	m.registry.MustRegister(m.scansTotal)
	m.registry.MustRegister(m.scanDuration)
	m.registry.MustRegister(m.activeWorkers)

	// Store metrics
	m.registry.MustRegister(m.storeQueries)
	m.registry.MustRegister(m.storeQueryDuration)

	// System metrics
	m.registry.MustRegister(m.memoryUsage)
	m.registry.MustRegister(m.goroutines)
	m.registry.MustRegister(m.uptime)
}

// GetRegistry returns the Prometheus registry for the HTTP handler.
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// Probe Metrics Methods

// IncrementProbesTotal increments the probe counter for a state.
func (m *Metrics) IncrementProbesTotal(state string) {
	m.probesTotal.WithLabelValues(state).Inc()
}

// RecordProbeDuration records one probe duration by state.
func (m *Metrics) RecordProbeDuration(state string, duration time.Duration) {
	m.probeDuration.WithLabelValues(state).Observe(duration.Seconds())
}

// IncrementBannersTotal increments the banner capture counter.
func (m *Metrics) IncrementBannersTotal(outcome string) {
	m.bannersTotal.WithLabelValues(outcome).Inc()
}

// Scan Metrics Methods

// IncrementScansTotal increments the scan counter for a status.
func (m *Metrics) IncrementScansTotal(status string) {
	m.scansTotal.WithLabelValues(status).Inc()
}

// RecordScanDuration records a whole-scan duration.
func (m *Metrics) RecordScanDuration(duration time.Duration) {
	m.scanDuration.Observe(duration.Seconds())
}

// SetActiveWorkers sets the number of running probe workers.
func (m *Metrics) SetActiveWorkers(count int) {
	m.activeWorkers.Set(float64(count))
}

// Store Metrics Methods

// IncrementStoreQueries increments the store query counter.
func (m *Metrics) IncrementStoreQueries(operation, status string) {
	m.storeQueries.WithLabelValues(operation, status).Inc()
}

// RecordStoreQueryDuration records one store query duration.
func (m *Metrics) RecordStoreQueryDuration(operation string, duration time.Duration) {
	m.storeQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// System Metrics Methods

// UpdateSystemMetrics updates all system metrics with current values.
func (m *Metrics) UpdateSystemMetrics() {
	m.mu.Lock()
	defer m.mu.Unlock()

	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	m.memoryUsage.Set(float64(memStats.Alloc))
	m.goroutines.Set(float64(runtime.NumGoroutine()))
	m.uptime.Set(time.Since(m.startTime).Seconds())

	m.lastUpdate = time.Now()
}

// Utility Methods

// GetUptime returns the application uptime.
func (m *Metrics) GetUptime() time.Duration {
	return time.Since(m.startTime)
}

// GetLastUpdate returns the last system metrics update time.
func (m *Metrics) GetLastUpdate() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdate
}

// StartPeriodicUpdates refreshes system metrics on the given interval
// until the context is canceled.
func (m *Metrics) StartPeriodicUpdates(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.UpdateSystemMetrics()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.UpdateSystemMetrics()
		}
	}
}

// Global instance for easy access
var globalMetrics *Metrics
var metricsOnce sync.Once

// GetGlobalMetrics returns the global metrics instance.
func GetGlobalMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = New()
	})
	return globalMetrics
}

// Convenience functions using global instance

// ObserveProbe records one probe outcome using global metrics.
func ObserveProbe(state string, duration time.Duration) {
	m := GetGlobalMetrics()
	m.IncrementProbesTotal(state)
	m.RecordProbeDuration(state, duration)
}

// ObserveBanner records a banner capture attempt using global metrics.
func ObserveBanner(captured bool) {
	outcome := BannerEmpty
	if captured {
		outcome = BannerCaptured
	}
	GetGlobalMetrics().IncrementBannersTotal(outcome)
}

// ObserveScan records a finished scan using global metrics.
func ObserveScan(status string, duration time.Duration) {
	m := GetGlobalMetrics()
	m.IncrementScansTotal(status)
	m.RecordScanDuration(duration)
}

// SetWorkersActive sets the worker gauge using global metrics.
func SetWorkersActive(count int) {
	GetGlobalMetrics().SetActiveWorkers(count)
}

// RecordStoreQuery records store query metrics using global metrics.
func RecordStoreQuery(operation string, duration time.Duration, success bool) {
	m := GetGlobalMetrics()
	status := "success"
	if !success {
		status = "error"
	}
	m.IncrementStoreQueries(operation, status)
	m.RecordStoreQueryDuration(operation, duration)
}
