package output

import (
	"bytes"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestProgressDrawsAndClears(t *testing.T) {
	var completed atomic.Int64
	completed.Store(50)

	var buf bytes.Buffer
	p := NewProgress(&buf, func() (int64, int64) {
		return completed.Load(), 100
	})
	p.interval = 5 * time.Millisecond

	p.Start()
	time.Sleep(60 * time.Millisecond)
	completed.Store(100)
	time.Sleep(20 * time.Millisecond)
	p.Stop()

	out := buf.String()
	assert.Contains(t, out, "\r")
	assert.Contains(t, out, "50.0% (50/100)")
	assert.Contains(t, out, "100.0% (100/100)")
	assert.True(t, strings.HasSuffix(out, strings.Repeat(" ", progressLineMax)+"\r"),
		"Stop should clear the progress line")
}

func TestProgressSkipsDrawWithoutTotal(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, func() (int64, int64) { return 0, 0 })
	p.interval = 5 * time.Millisecond

	p.Start()
	time.Sleep(30 * time.Millisecond)
	p.Stop()

	assert.NotContains(t, buf.String(), "Scanning")
}

func TestProgressStopIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, func() (int64, int64) { return 1, 2 })
	p.interval = 5 * time.Millisecond

	p.Start()
	time.Sleep(15 * time.Millisecond)
	p.Stop()
	p.Stop()
	p.Start()
	p.Stop()
}

func TestProgressStartIsIdempotent(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgress(&buf, func() (int64, int64) { return 1, 2 })
	p.interval = 5 * time.Millisecond

	p.Start()
	p.Start()
	time.Sleep(15 * time.Millisecond)
	p.Stop()
}

func TestServiceName(t *testing.T) {
	assert.Equal(t, "ssh", ServiceName(22))
	assert.Equal(t, "https", ServiceName(443))
	assert.Equal(t, "redis", ServiceName(6379))
	assert.Equal(t, "", ServiceName(49999))
}
