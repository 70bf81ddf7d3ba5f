package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

const (
	progressInterval = 100 * time.Millisecond
	progressBarWidth = 30
	progressLineMax  = 80
)

// ProgressFunc reports the completed and total task counts of a
// running scan. Implementations must be safe for concurrent use.
type ProgressFunc func() (completed, total int64)

// Progress redraws a single-line indicator on an interval. Each tick
// rewrites the line with a carriage return; Stop clears it so regular
// output can resume cleanly.
type Progress struct {
	w        io.Writer
	fn       ProgressFunc
	interval time.Duration

	mu      sync.Mutex
	done    chan struct{}
	stopped chan struct{}
}

// NewProgress returns an indicator writing to w, typically stderr so
// the bar never mixes with exported results on stdout.
func NewProgress(w io.Writer, fn ProgressFunc) *Progress {
	return &Progress{w: w, fn: fn, interval: progressInterval}
}

// Start begins redrawing. Calling Start on a running indicator is a
// no-op.
func (p *Progress) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done != nil {
		return
	}
	p.done = make(chan struct{})
	p.stopped = make(chan struct{})
	go p.loop(p.done, p.stopped)
}

// Stop halts redrawing and clears the progress line. Safe to call
// multiple times.
func (p *Progress) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.done == nil {
		return
	}
	close(p.done)
	<-p.stopped
	p.done = nil
	fmt.Fprintf(p.w, "\r%s\r", strings.Repeat(" ", progressLineMax))
}

func (p *Progress) loop(done, stopped chan struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			p.draw()
		}
	}
}

func (p *Progress) draw() {
	completed, total := p.fn()
	if total <= 0 {
		return
	}
	pct := float64(completed) / float64(total) * 100
	filled := int(int64(progressBarWidth) * completed / total)
	if filled > progressBarWidth {
		filled = progressBarWidth
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", progressBarWidth-filled)
	fmt.Fprintf(p.w, "\rScanning [%s] %5.1f%% (%d/%d)", bar, pct, completed, total)
}

// IsTerminal reports whether f is attached to an interactive terminal,
// including Cygwin and MSYS pseudo terminals.
func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
