//go:build linux || darwin || freebsd || netbsd || openbsd

package tmpfile

import (
	"bytes"

	"golang.org/x/sys/unix"
)

// hostname returns the node name reported by uname(2), or "" on failure.
func hostname() string {
	var uts unix.Utsname
	if err := unix.Uname(&uts); err != nil {
		return ""
	}
	node := uts.Nodename[:]
	if i := bytes.IndexByte(node, 0); i >= 0 {
		node = node[:i]
	}
	return string(node)
}
