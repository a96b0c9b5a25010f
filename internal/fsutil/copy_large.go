package fsutil

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

var ringQueueDepth uint32 = 64

// CopyLargeRetrying copies src to dst preserving mode and modification
// time, retrying on transient IO errors. The final error is propagated
// once attempts are exhausted. Writes go to a sibling temp file first and
// are renamed into place, so a killed copy never leaves a half-written
// dst.
func CopyLargeRetrying(src, dst string, attempts int, delay time.Duration) error {
	if attempts <= 0 {
		attempts = 3
	}
	if delay <= 0 {
		delay = time.Second
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := copyLargeOnce(src, dst); err != nil {
			lastErr = err
			if i < attempts-1 {
				time.Sleep(delay)
			}
			continue
		}
		return nil
	}
	return fmt.Errorf("copy %s -> %s after %d attempts: %w", src, dst, attempts, lastErr)
}

func copyLargeOnce(src, dst string) error {
	normSrc := NormalizeOrSelf(src)
	normDst := NormalizeOrSelf(dst)

	info, err := os.Stat(normSrc)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}

	if err := os.MkdirAll(filepath.Dir(normDst), 0o755); err != nil {
		return fmt.Errorf("create parent dir: %w", err)
	}

	tmpPath := filepath.Join(filepath.Dir(normDst), fmt.Sprintf(".%s.%s.xfer-tmp", filepath.Base(normDst), uuid.New().String()[:8]))
	RegisterTmp(tmpPath)
	defer func() {
		DeregisterTmp(tmpPath)
		_ = os.Remove(tmpPath)
	}()

	dstFd, err := os.OpenFile(tmpPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("create tmp %s: %w", tmpPath, err)
	}

	// Every per-OS copy strategy (copy_file_range, sendfile, io_uring,
	// clonefile, plain read/write) opens SrcPath itself, so normalizing
	// it here is enough to carry long-path safety through the whole
	// cascade without touching any of those files.
	params := CopyFileParams{SrcPath: normSrc, DstFd: dstFd, SrcSize: info.Size()}

	ring, _ := newRingCopier(ringQueueDepth)
	defer func() {
		if ring != nil {
			_ = ring.Close()
		}
	}()

	var result CopyResult
	var copyErr error
	if ring != nil {
		result, copyErr = ring.CopyFile(params)
	} else {
		result, copyErr = CopyFile(params)
	}
	if copyErr != nil {
		dstFd.Close()
		return fmt.Errorf("copy data: %w", copyErr)
	}

	if err := dstFd.Close(); err != nil {
		return fmt.Errorf("close tmp: %w", err)
	}

	if result.BytesWritten != info.Size() {
		return fmt.Errorf("copy %s: short copy via %s: wrote %d of %d bytes", src, result.Method, result.BytesWritten, info.Size())
	}

	if err := os.Chtimes(tmpPath, info.ModTime(), info.ModTime()); err != nil {
		return fmt.Errorf("preserve mtime: %w", err)
	}

	if err := os.Rename(tmpPath, normDst); err != nil {
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
