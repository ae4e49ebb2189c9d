package stats

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
)

// WriteCounter accumulates the bytes written to disk across the process and
// reports the total once at shutdown.
type WriteCounter struct {
	total  atomic.Uint64
	report sync.Once
}

// Add records n more bytes written.
func (c *WriteCounter) Add(n uint64) { c.total.Add(n) }

// Total returns the bytes recorded so far.
func (c *WriteCounter) Total() uint64 { return c.total.Load() }

// Report writes the final total to w. Only the first call writes anything.
//
// It formats directly onto w rather than going through slog: the report
// runs last during shutdown, after log sinks may already be closed.
func (c *WriteCounter) Report(w io.Writer) {
	c.report.Do(func() {
		fmt.Fprintf(w, "[Disk Write (bytes): %d]\n", c.total.Load())
	})
}

// countingWriter adds every successfully written byte to a WriteCounter.
type countingWriter struct {
	w io.Writer
	c *WriteCounter
}

// CountingWriter wraps w so that bytes written through it are added to c.
func CountingWriter(w io.Writer, c *WriteCounter) io.Writer {
	return &countingWriter{w: w, c: c}
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	if n > 0 {
		cw.c.Add(uint64(n)) //nolint:gosec // G115: n is non-negative
	}
	return n, err
}
