//go:build !linux

package fsutil

import "os"

// preallocate is a no-op everywhere but Linux: fallocate has no portable
// equivalent, so macOS and Windows MoveLarge copies grow the destination
// file on demand instead of reserving its final size up front.
func preallocate(_ *os.File, _ int64) {}
