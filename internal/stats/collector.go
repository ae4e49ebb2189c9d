package stats

import (
	"fmt"
	"sync/atomic"
	"time"
)

// Collector tracks staging statistics using lock-free atomic counters.
type Collector struct {
	filesStaged    atomic.Int64
	filesFailed    atomic.Int64
	filesTruncated atomic.Int64
	bytesStaged    atomic.Int64
	startTime      time.Time
}

// NewCollector creates a Collector with startTime set to now.
func NewCollector() *Collector {
	return &Collector{startTime: time.Now()}
}

// Snapshot is a point-in-time read of all counters.
type Snapshot struct {
	FilesStaged    int64
	FilesFailed    int64
	FilesTruncated int64
	BytesStaged    int64
	Elapsed        time.Duration
}

func (c *Collector) AddFilesStaged(n int64)    { c.filesStaged.Add(n) }
func (c *Collector) AddFilesFailed(n int64)    { c.filesFailed.Add(n) }
func (c *Collector) AddFilesTruncated(n int64) { c.filesTruncated.Add(n) }
func (c *Collector) AddBytesStaged(n int64)    { c.bytesStaged.Add(n) }

// Snapshot returns a point-in-time read of all counters.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		FilesStaged:    c.filesStaged.Load(),
		FilesFailed:    c.filesFailed.Load(),
		FilesTruncated: c.filesTruncated.Load(),
		BytesStaged:    c.bytesStaged.Load(),
		Elapsed:        c.Elapsed(),
	}
}

// Elapsed returns time since collector creation.
func (c *Collector) Elapsed() time.Duration {
	return time.Since(c.startTime)
}

func (s Snapshot) String() string {
	return fmt.Sprintf(
		"staged=%d failed=%d truncated=%d bytes=%d",
		s.FilesStaged, s.FilesFailed, s.FilesTruncated, s.BytesStaged,
	)
}

// FormatBytes returns a human-readable byte count.
func FormatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
