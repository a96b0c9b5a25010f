//go:build linux

package fsutil

import (
	"fmt"
	"os"

	iouring "github.com/iceber/iouring-go"
)

// ringCopier drives large-file copies through io_uring when the kernel
// supports it; otherwise copyLargeOnce uses the CopyFile cascade.
type ringCopier struct {
	iour *iouring.IOURing
}

// newRingCopier creates a copier backed by io_uring. Returns (nil, nil) if
// the kernel does not support it, so callers can treat a nil copier as
// "use the plain CopyFile path".
func newRingCopier(queueDepth uint32) (*ringCopier, error) {
	iour, err := iouring.New(uint(queueDepth))
	if err != nil {
		return nil, nil //nolint:nilerr // unsupported kernel, not fatal
	}
	return &ringCopier{iour: iour}, nil
}

func (c *ringCopier) Close() error {
	if c == nil || c.iour == nil {
		return nil
	}
	return c.iour.Close()
}

// CopyFile copies a file using io_uring read/write requests, one pooled
// 1 MiB chunk at a time. pread/pwrite-shaped syscalls (io_uring's
// included) are free to return a short count on a regular file, so a
// single whole-file request can silently truncate a multi-GB MoveLarge
// copy; chunking and accumulating totalWritten until remaining reaches
// zero is what keeps that from happening.
func (c *ringCopier) CopyFile(params CopyFileParams) (CopyResult, error) {
	srcFd, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer srcFd.Close()

	remaining := copyLength(params)
	offset := params.SrcOffset
	var totalWritten int64

	srcRawFd := int(srcFd.Fd())
	dstRawFd := int(params.DstFd.Fd())

	for remaining > 0 {
		toRead := int64(bufferSize)
		if toRead > remaining {
			toRead = remaining
		}

		bufp := bufPool.Get().(*[]byte)
		buf := (*bufp)[:toRead]

		readCh := make(chan iouring.Result, 1)
		readReq := iouring.Pread(srcRawFd, buf, uint64(offset))
		if _, err := c.iour.SubmitRequest(readReq, readCh); err != nil {
			bufPool.Put(bufp)
			return CopyResult{BytesWritten: totalWritten, Method: IOURing}, fmt.Errorf("iouring submit read: %w", err)
		}
		readRes := <-readCh
		if err := readRes.Err(); err != nil {
			bufPool.Put(bufp)
			return CopyResult{BytesWritten: totalWritten, Method: IOURing}, fmt.Errorf("iouring read: %w", err)
		}
		nRead, _ := readRes.ReturnValue0().(int)
		if nRead == 0 {
			bufPool.Put(bufp)
			break
		}

		writeCh := make(chan iouring.Result, 1)
		writeReq := iouring.Pwrite(dstRawFd, buf[:nRead], uint64(offset))
		if _, err := c.iour.SubmitRequest(writeReq, writeCh); err != nil {
			bufPool.Put(bufp)
			return CopyResult{BytesWritten: totalWritten, Method: IOURing}, fmt.Errorf("iouring submit write: %w", err)
		}
		writeRes := <-writeCh
		err := writeRes.Err()
		bufPool.Put(bufp)
		if err != nil {
			return CopyResult{BytesWritten: totalWritten, Method: IOURing}, fmt.Errorf("iouring write: %w", err)
		}
		nWritten, _ := writeRes.ReturnValue0().(int)

		offset += int64(nWritten)
		remaining -= int64(nWritten)
		totalWritten += int64(nWritten)
	}

	return CopyResult{BytesWritten: totalWritten, Method: IOURing}, nil
}
