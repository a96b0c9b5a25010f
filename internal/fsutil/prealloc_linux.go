//go:build linux

package fsutil

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate reserves size bytes for dst before the transfer writes a
// single byte, so a large MoveLarge file doesn't cause
// the destination volume to fragment as it grows. Errors are ignored:
// fallocate isn't supported on every filesystem, and an unpreallocated
// copy is still correct, just more prone to fragmentation.
//
//nolint:gosec // G115: fd values are small non-negative integers
func preallocate(fd *os.File, size int64) {
	//nolint:errcheck // fallocate is advisory; not supported on all filesystems
	unix.Fallocate(int(fd.Fd()), 0, 0, size)
}
