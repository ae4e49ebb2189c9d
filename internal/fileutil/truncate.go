package fileutil

import (
	"fmt"
	"log/slog"
	"os"
)

// Truncate sets the size of the file at path to exactly size bytes,
// extending it with zeros if it is shorter. A failure is logged and
// returned; it is never fatal.
func Truncate(path string, size int64) error {
	if err := os.Truncate(path, size); err != nil {
		slog.Error("truncate failed", "path", path, "size", size, "error", err)
		return fmt.Errorf("truncate %s to %d bytes: %w", path, size, err)
	}
	return nil
}
