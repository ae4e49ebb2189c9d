//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd

package tmpfile

import "os"

func hostname() string {
	h, _ := os.Hostname() //nolint:errcheck // failure degrades to "unknown"
	return h
}
