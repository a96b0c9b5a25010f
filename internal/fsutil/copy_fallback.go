//go:build !linux && !darwin

package fsutil

// CopyFile is the MoveLarge copy strategy on every OS without a
// dedicated kernel-assisted path (Windows and other Unixes): straight
// read/write, the one strategy every target this engine runs on
// supports.
func CopyFile(params CopyFileParams) (CopyResult, error) {
	preallocate(params.DstFd, copyLength(params))
	return copyReadWrite(params)
}
