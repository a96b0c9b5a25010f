//go:build darwin

package fsutil

import (
	"golang.org/x/sys/unix"
)

// CopyFile backs CopyLargeRetrying's MoveLarge path on macOS. It tries
// clonefile first, which only succeeds when nothing exists yet at the
// destination path; copyLargeOnce always hands in an already-created
// temp file, so there clonefile returns EEXIST and the copy falls
// through to plain read/write below, as does any partial-range copy.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	// clonefile only works for whole-file copies.
	if params.SrcOffset == 0 && params.Length == 0 {
		err := unix.Clonefile(params.SrcPath, params.DstFd.Name(), 0)
		if err == nil {
			return CopyResult{BytesWritten: params.SrcSize, Method: Clonefile}, nil
		}
		if !isFallbackCloneErr(err) {
			return CopyResult{}, err
		}
	}

	preallocate(params.DstFd, copyLength(params))
	return copyReadWrite(params)
}

func isFallbackCloneErr(err error) bool {
	switch err {
	case unix.ENOTSUP, unix.EXDEV, unix.EEXIST:
		return true
	}
	return false
}
