// Package console captures the DUT serial console while a case runs.
package console

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// DefaultMaxLines bounds the lines kept per capture.
const DefaultMaxLines = 2000

// Capture reads lines from a console stream into a bounded buffer.
// Oldest lines are dropped once the buffer is full.
type Capture struct {
	src  io.ReadCloser
	max  int
	done chan struct{}

	mu      sync.Mutex
	lines   []string
	dropped int
	err     error
}

// Open opens the serial device at baud and starts capturing.
func Open(device string, baud int) (*Capture, error) {
	port, err := serial.Open(device, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", device, err)
	}
	slog.Debug("console: capture started", "device", device, "baud", baud)
	return NewCapture(port, DefaultMaxLines), nil
}

// NewCapture starts capturing from src. max <= 0 uses DefaultMaxLines.
func NewCapture(src io.ReadCloser, max int) *Capture {
	if max <= 0 {
		max = DefaultMaxLines
	}
	c := &Capture{src: src, max: max, done: make(chan struct{})}
	go c.read()
	return c
}

func (c *Capture) read() {
	defer close(c.done)
	sc := bufio.NewScanner(c.src)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		c.mu.Lock()
		if len(c.lines) == c.max {
			copy(c.lines, c.lines[1:])
			c.lines = c.lines[:c.max-1]
			c.dropped++
		}
		c.lines = append(c.lines, line)
		c.mu.Unlock()
	}
	c.mu.Lock()
	c.err = sc.Err()
	c.mu.Unlock()
}

// Lines returns a copy of the lines captured so far.
func (c *Capture) Lines() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.lines))
	copy(out, c.lines)
	return out
}

// Dropped returns how many lines were discarded because the buffer was full.
func (c *Capture) Dropped() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Stop closes the source, waits for the reader and returns everything captured.
// Read errors caused by the close are not reported.
func (c *Capture) Stop() []string {
	if err := c.src.Close(); err != nil {
		slog.Warn("console: close failed", "err", err)
	}
	<-c.done
	c.mu.Lock()
	if c.err != nil {
		slog.Debug("console: reader stopped", "err", c.err)
	}
	c.mu.Unlock()
	return c.Lines()
}
