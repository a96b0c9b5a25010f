package fsutil

import "path/filepath"

// Normalize absolutizes path and, on platforms with a legacy path-length
// limit, prepends the long-path sentinel unless the path is already a UNC
// path or already carries the prefix. Every syscall the engine issues
// against a path goes through this first.
func Normalize(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	return longPathPrefix(abs), nil
}

// Raw strips a long-path sentinel back off, for the handful of external
// child processes (the archiver, the native recursive-delete command)
// that reject the prefixed form. A no-op if path never carried the
// prefix, so it is safe to call on a path of unknown provenance.
func Raw(path string) string {
	return stripLongPathPrefix(path)
}

// NormalizeOrSelf is Normalize without the error return, for retry loops
// and best-effort cleanup paths where failing to absolutize should fall
// back to the original string rather than abort the whole operation.
func NormalizeOrSelf(path string) string {
	norm, err := Normalize(path)
	if err != nil {
		return path
	}
	return norm
}
