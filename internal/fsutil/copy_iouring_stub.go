//go:build !linux

package fsutil

// ringCopier is a no-op stub on non-Linux platforms.
type ringCopier struct{}

func newRingCopier(_ uint32) (*ringCopier, error) { return nil, nil }

func (c *ringCopier) Close() error { return nil }

func (c *ringCopier) CopyFile(params CopyFileParams) (CopyResult, error) {
	return copyReadWrite(params)
}
