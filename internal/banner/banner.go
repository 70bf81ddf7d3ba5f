// Package banner captures short service identification strings from
// connections that a probe already classified as open. Capture never
// changes that classification and never produces an error: a silent or
// dropped connection simply leaves the banner absent.
package banner

import (
	"bytes"
	"net"
	"strings"
	"time"
)

const (
	// defaultTimeout is the per-phase wait budget.
	defaultTimeout = 2 * time.Second

	// maxRead bounds a single capture window.
	maxRead = 1024

	// maxBannerLen caps the stored banner text.
	maxBannerLen = 100
)

// probeLine is the minimal request sent when the peer stays silent.
// HTTP-speaking services answer it; greeting-based services have
// already spoken by the time it is sent.
var probeLine = []byte("HEAD / HTTP/1.0\r\n\r\n")

// Collector grabs one-line banners from established connections.
type Collector struct {
	Timeout time.Duration
}

// New creates a collector with the given per-phase timeout.
func New(timeout time.Duration) *Collector {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Collector{Timeout: timeout}
}

// Collect attempts a two-phase capture: first wait for unsolicited data
// from the peer, then send a minimal probe and wait once more with the
// same budget. The returned banner is the first line of whatever
// arrived, sanitized; the empty string means no banner.
func (c *Collector) Collect(conn net.Conn) string {
	if data := c.read(conn); len(data) > 0 {
		return sanitize(data)
	}

	_ = conn.SetWriteDeadline(time.Now().Add(c.Timeout))
	if _, err := conn.Write(probeLine); err != nil {
		return ""
	}

	if data := c.read(conn); len(data) > 0 {
		return sanitize(data)
	}
	return ""
}

// read waits up to the collector timeout for data.
func (c *Collector) read(conn net.Conn) []byte {
	_ = conn.SetReadDeadline(time.Now().Add(c.Timeout))
	buf := make([]byte, maxRead)
	n, _ := conn.Read(buf)
	if n <= 0 {
		return nil
	}
	return buf[:n]
}

// sanitize reduces raw capture bytes to a clean single line: the text
// before the first line terminator, printable ASCII only, trimmed, and
// capped at maxBannerLen.
func sanitize(data []byte) string {
	if idx := bytes.IndexAny(data, "\r\n"); idx >= 0 {
		data = data[:idx]
	}

	var b strings.Builder
	b.Grow(len(data))
	for _, c := range data {
		if c >= 0x20 && c <= 0x7e {
			b.WriteByte(c)
		}
	}

	line := strings.TrimSpace(b.String())
	if len(line) > maxBannerLen {
		line = line[:maxBannerLen]
	}
	return line
}
