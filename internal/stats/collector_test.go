package stats

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	const goroutines = 50
	const opsPerGoroutine = 500

	var wg sync.WaitGroup
	wg.Add(goroutines)
	for range goroutines {
		go func() {
			defer wg.Done()
			for range opsPerGoroutine {
				c.AddFilesStaged(1)
				c.AddFilesFailed(1)
				c.AddFilesTruncated(1)
				c.AddBytesStaged(512)
			}
		}()
	}
	wg.Wait()

	s := c.Snapshot()
	expected := int64(goroutines * opsPerGoroutine)
	assert.Equal(t, expected, s.FilesStaged)
	assert.Equal(t, expected, s.FilesFailed)
	assert.Equal(t, expected, s.FilesTruncated)
	assert.Equal(t, expected*512, s.BytesStaged)
}

func TestSnapshotString(t *testing.T) {
	s := Snapshot{
		FilesStaged:    4,
		FilesFailed:    1,
		FilesTruncated: 2,
		BytesStaged:    4096,
	}
	assert.Equal(t, "staged=4 failed=1 truncated=2 bytes=4096", s.String())
}

func TestSnapshotIncludesElapsed(t *testing.T) {
	c := NewCollector()
	time.Sleep(10 * time.Millisecond)
	assert.Greater(t, c.Snapshot().Elapsed, time.Duration(0))
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
		{1048576, "1.0 MiB"},
		{1073741824, "1.0 GiB"},
	}
	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			require.Equal(t, tt.expected, FormatBytes(tt.input))
		})
	}
}
