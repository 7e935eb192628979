// Package transporttest provides an in-memory transport.Conn for tests.
package transporttest

import (
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"chatd/internal/transport"
)

var seq atomic.Uint64

// Conn is a scripted connection. Lines pushed with Write are returned by
// Receive; everything the server sends is recorded.
type Conn struct {
	id     uint64
	remote string
	in     chan []byte

	mu     sync.Mutex
	sent   []string
	closed bool
	done   chan struct{}
}

var _ transport.Conn = (*Conn)(nil)

func NewConn(remote string) *Conn {
	return &Conn{
		id:     (1 << 40) + seq.Add(1),
		remote: remote,
		in:     make(chan []byte, 64),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() uint64 { return c.id }

func (c *Conn) RemoteAddr() string { return c.remote }

// Write queues raw client bytes.
func (c *Conn) Write(s string) {
	select {
	case c.in <- []byte(s):
	case <-c.done:
	}
}

func (c *Conn) Receive() ([]byte, error) {
	select {
	case p := <-c.in:
		return p, nil
	case <-c.done:
		return nil, io.EOF
	}
}

func (c *Conn) Send(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return io.ErrClosedPipe
	}
	for _, line := range strings.SplitAfter(string(p), "\n") {
		if line != "" {
			c.sent = append(c.sent, strings.TrimSuffix(line, "\n"))
		}
	}
	return nil
}

func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	return nil
}

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Sent returns a copy of every line sent so far, without terminators.
func (c *Conn) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.sent...)
}

// Has reports whether line was sent.
func (c *Conn) Has(line string) bool {
	for _, s := range c.Sent() {
		if s == line {
			return true
		}
	}
	return false
}

// HasPrefix reports whether any sent line starts with prefix.
func (c *Conn) HasPrefix(prefix string) bool {
	for _, s := range c.Sent() {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}
	return false
}

// Last returns the last line starting with prefix.
func (c *Conn) Last(prefix string) (string, bool) {
	sent := c.Sent()
	for i := len(sent) - 1; i >= 0; i-- {
		if strings.HasPrefix(sent[i], prefix) {
			return sent[i], true
		}
	}
	return "", false
}

// Reset forgets the recorded lines.
func (c *Conn) Reset() {
	c.mu.Lock()
	c.sent = nil
	c.mu.Unlock()
}
