//go:build windows

package fsutil

import "os"

// copyReadWrite copies data using ReadAt/WriteAt with a pooled buffer.
// golang.org/x/sys/unix's Pread/Pwrite (the Unix fallback's primitives,
// see copy_readwrite.go) don't build for GOOS=windows, so the Windows
// bottom-of-the-cascade copier uses the portable stdlib positioned I/O
// instead — functionally the same strategy, different syscall surface.
func copyReadWrite(params CopyFileParams) (CopyResult, error) {
	srcFd, err := os.Open(params.SrcPath)
	if err != nil {
		return CopyResult{}, err
	}
	defer srcFd.Close()

	bufp := bufPool.Get().(*[]byte)
	defer bufPool.Put(bufp)
	buf := *bufp

	offset := params.SrcOffset
	remaining := params.Length
	if remaining == 0 {
		remaining = params.SrcSize - offset
	}

	var totalWritten int64
	for remaining > 0 {
		toRead := int(remaining)
		if toRead > bufferSize {
			toRead = bufferSize
		}

		n, readErr := srcFd.ReadAt(buf[:toRead], offset)
		if n == 0 && readErr != nil {
			return CopyResult{BytesWritten: totalWritten, Method: ReadWrite}, readErr
		}

		written := 0
		for written < n {
			w, err := params.DstFd.WriteAt(buf[written:n], offset+int64(written))
			if err != nil {
				return CopyResult{BytesWritten: totalWritten + int64(written), Method: ReadWrite}, err
			}
			written += w
		}

		offset += int64(n)
		remaining -= int64(n)
		totalWritten += int64(n)

		if readErr != nil { // short final read (io.EOF)
			break
		}
	}

	return CopyResult{BytesWritten: totalWritten, Method: ReadWrite}, nil
}
