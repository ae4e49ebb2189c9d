// Package session owns the process-wide scratch state: the temporary file
// registry and the disk write counter. A Session is created once by the
// host program and closed exactly once during its shutdown, typically via
// defer in the function that main hands its exit code to.
package session

import (
	"io"
	"sync"

	"github.com/bamsammich/scratch/internal/stats"
	"github.com/bamsammich/scratch/internal/tmpfile"
)

// Session bundles the shared scratch handles. Neither handle may be used
// after Close.
type Session struct {
	Tmp    *tmpfile.Registry
	Writes *stats.WriteCounter

	out  io.Writer
	once sync.Once
}

// New creates a Session whose write total is reported to out on Close.
func New(out io.Writer) *Session {
	return &Session{
		Tmp:    tmpfile.New(),
		Writes: &stats.WriteCounter{},
		out:    out,
	}
}

// Close removes every scratch file that is still registered, then reports
// the write total. It returns how many files were reclaimed; only the first
// call has any effect.
//
// Close does not log: it runs after the host's log sinks may be closed.
func (s *Session) Close() int {
	var n int
	s.once.Do(func() {
		n = s.Tmp.Shutdown()
		s.Writes.Report(s.out)
	})
	return n
}
