package banner

import (
	"bytes"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// serve runs handler against one accepted connection on a loopback
// listener and returns the address to dial.
func serve(t *testing.T, handler func(net.Conn)) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		handler(conn)
		_ = conn.Close()
	}()
	return ln.Addr().String()
}

func dial(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestCollectGreeting(t *testing.T) {
	addr := serve(t, func(conn net.Conn) {
		_, _ = conn.Write([]byte("220 mail.example.com ESMTP ready\r\n"))
	})

	c := New(time.Second)
	got := c.Collect(dial(t, addr))
	assert.Equal(t, "220 mail.example.com ESMTP ready", got)
}

func TestCollectFirstLineOnly(t *testing.T) {
	addr := serve(t, func(conn net.Conn) {
		_, _ = conn.Write([]byte("SSH-2.0-OpenSSH_9.6\r\nsecond line should be dropped\r\n"))
	})

	c := New(time.Second)
	got := c.Collect(dial(t, addr))
	assert.Equal(t, "SSH-2.0-OpenSSH_9.6", got)
}

func TestCollectProbesSilentService(t *testing.T) {
	// The handler stays quiet until it sees the HTTP probe, mimicking a
	// web server that only talks when spoken to.
	addr := serve(t, func(conn net.Conn) {
		buf := make([]byte, 64)
		n, err := conn.Read(buf)
		if err != nil || n == 0 {
			return
		}
		if strings.HasPrefix(string(buf[:n]), "HEAD / HTTP/1.0") {
			_, _ = conn.Write([]byte("HTTP/1.0 200 OK\r\nServer: testd\r\n\r\n"))
		}
	})

	c := New(time.Second)
	got := c.Collect(dial(t, addr))
	assert.Equal(t, "HTTP/1.0 200 OK", got)
}

func TestCollectSilentServer(t *testing.T) {
	addr := serve(t, func(conn net.Conn) {
		// Never writes, never reads. The collector should give up
		// after both phases and report nothing.
		time.Sleep(2 * time.Second)
	})

	c := New(300 * time.Millisecond)
	start := time.Now()
	got := c.Collect(dial(t, addr))
	elapsed := time.Since(start)

	assert.Empty(t, got)
	assert.Less(t, elapsed, 2*time.Second, "collector must respect its own deadline")
}

func TestCollectSanitizesBinary(t *testing.T) {
	payload := append([]byte{0x00, 0x01, 0x02}, []byte("MySQL")...)
	payload = append(payload, 0xff, 0xfe)
	addr := serve(t, func(conn net.Conn) {
		_, _ = conn.Write(payload)
	})

	c := New(time.Second)
	got := c.Collect(dial(t, addr))
	assert.Equal(t, "MySQL", got)
}

func TestCollectCapsLength(t *testing.T) {
	long := strings.Repeat("A", 300) + "\r\n"
	addr := serve(t, func(conn net.Conn) {
		_, _ = conn.Write([]byte(long))
	})

	c := New(time.Second)
	got := c.Collect(dial(t, addr))
	assert.Len(t, got, maxBannerLen)
	assert.Equal(t, strings.Repeat("A", maxBannerLen), got)
}

func TestCollectTrimsWhitespace(t *testing.T) {
	addr := serve(t, func(conn net.Conn) {
		_, _ = conn.Write([]byte("   padded banner   \r\n"))
	})

	c := New(time.Second)
	got := c.Collect(dial(t, addr))
	assert.Equal(t, "padded banner", got)
}

func TestNewDefaultsTimeout(t *testing.T) {
	c := New(0)
	assert.Equal(t, defaultTimeout, c.Timeout)

	c = New(-time.Second)
	assert.Equal(t, defaultTimeout, c.Timeout)

	c = New(5 * time.Second)
	assert.Equal(t, 5*time.Second, c.Timeout)
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{"plain", []byte("hello"), "hello"},
		{"crlf terminated", []byte("hello\r\nworld"), "hello"},
		{"lf terminated", []byte("hello\nworld"), "hello"},
		{"empty", nil, ""},
		{"only control bytes", []byte{0x01, 0x02, 0x03}, ""},
		{"tabs stripped", []byte("a\tb"), "ab"},
		{"mixed", append([]byte{0x1b}, []byte("ESC gone")...), "ESC gone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitize(tt.input))
		})
	}
}

func TestSanitizeNoNewline(t *testing.T) {
	// A read that fills without a line ending still yields the printable
	// prefix of whatever arrived.
	raw := bytes.Repeat([]byte("x"), 40)
	assert.Equal(t, strings.Repeat("x", 40), sanitize(raw))
}
