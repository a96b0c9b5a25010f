//go:build !windows

package fsutil

// longPathPrefix is a no-op off Windows: the 260-character MAX_PATH limit
// this sentinel works around doesn't exist on these filesystems.
func longPathPrefix(abs string) string { return abs }

func stripLongPathPrefix(p string) string { return p }
