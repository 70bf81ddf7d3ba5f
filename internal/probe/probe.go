// Package probe classifies single (host, port) pairs through a full TCP
// connection attempt. A probe never fails the scan: every outcome,
// including transport errors, folds into a Result.
package probe

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/anstrom/portscout/internal/banner"
)

// State is the classification of one probed port.
type State string

const (
	StateOpen     State = "open"
	StateClosed   State = "closed"
	StateFiltered State = "filtered"
)

// Result is the outcome of probing one (host, port) pair. Exactly one
// Result exists per task; it is immutable once produced.
type Result struct {
	Host     string
	Port     int
	State    State
	Duration time.Duration
	Banner   string
	// Detail carries diagnostic error text for filtered results.
	Detail string
	// Exhausted marks failures caused by running out of file
	// descriptors; the scheduler slows dispatch when it sees one.
	Exhausted bool
}

// Prober performs connect probes bounded by a timeout. When Banner is
// non-nil, open ports get a capture attempt on the same connection
// before it is released.
type Prober struct {
	Timeout time.Duration
	Banner  *banner.Collector
}

// New creates a prober with the given connect timeout.
func New(timeout time.Duration) *Prober {
	return &Prober{Timeout: timeout}
}

// Probe dials host:port and classifies the outcome. The connection is
// closed before returning on every path.
func (p *Prober) Probe(ctx context.Context, host string, port int) Result {
	address := net.JoinHostPort(host, strconv.Itoa(port))
	dialer := net.Dialer{Timeout: p.Timeout}

	start := time.Now()
	conn, err := dialer.DialContext(ctx, "tcp", address)
	result := Result{
		Host:     host,
		Port:     port,
		Duration: time.Since(start),
	}

	if err != nil {
		result.State, result.Detail = Classify(err)
		result.Exhausted = isExhaustion(err)
		return result
	}
	defer func() { _ = conn.Close() }()

	result.State = StateOpen
	if p.Banner != nil {
		result.Banner = p.Banner.Collect(conn)
	}
	return result
}

// Classify maps a dial error onto a port state. Connection refusal is
// the only signal for a closed port; timeouts, unreachable networks and
// every other transport failure read as filtered, with the error text
// preserved for diagnostics.
func Classify(err error) (State, string) {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return StateFiltered, "connection timed out"
	}
	if isRefused(err) {
		return StateClosed, ""
	}
	return StateFiltered, err.Error()
}

// isRefused detects an active reset from the peer. The string checks
// cover platforms that do not surface ECONNREFUSED through the error
// chain.
func isRefused(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "actively refused")
}

// isExhaustion detects file descriptor exhaustion.
func isExhaustion(err error) bool {
	return errors.Is(err, syscall.EMFILE) || errors.Is(err, syscall.ENFILE)
}
