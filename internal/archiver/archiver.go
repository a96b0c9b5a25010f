package archiver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fasttransfer/fasttransfer/internal/fsutil"
)

// Archiver creates and extracts the store-format, multi-threaded
// archives the pack/extract phases of the pipeline depend on. The
// default implementation drives a 7-Zip-compatible CLI binary; any
// binary that accepts the same "a"/"x" verb shape works.
type Archiver struct {
	sup     *Supervisor
	binPath string
	timeout time.Duration
	retries int
}

// NewArchiver creates an Archiver. binPath defaults to "7z" (resolved
// via PATH by os/exec) if empty.
func NewArchiver(sup *Supervisor, binPath string, timeout time.Duration, retries int) *Archiver {
	if binPath == "" {
		binPath = "7z"
	}
	return &Archiver{sup: sup, binPath: binPath, timeout: timeout, retries: retries}
}

// WriteFileList writes relPaths, UTF-8 LF-terminated, to listPath — the
// `filelist_<pack_id>.txt` artifact the create call references.
func WriteFileList(listPath string, relPaths []string) error {
	f, err := os.Create(fsutil.NormalizeOrSelf(listPath))
	if err != nil {
		return fmt.Errorf("create filelist %s: %w", listPath, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, p := range relPaths {
		if _, err := w.WriteString(p); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Create packs the files listed in listPath (paths relative to cwd)
// into archivePath, with no compression and multi-threaded mode. Every
// path handed to the child process is raw — the archiver binary, like
// any external child, is not assumed to tolerate the long-path sentinel
// the engine's own syscalls require.
func (a *Archiver) Create(ctx context.Context, archivePath, listPath, cwd string) error {
	argv := []string{
		a.binPath, "a",
		"-mx0", // store, no compression
		"-mmt", // multi-threaded
		"-y",   // assume yes on prompts
		fsutil.Raw(archivePath),
		"@" + fsutil.Raw(listPath),
	}
	return a.sup.RunChildWithRetry(ctx, argv, fsutil.Raw(cwd), a.timeout, a.retries)
}

// Extract unpacks archivePath into outDir, overwriting existing files,
// multi-threaded.
func (a *Archiver) Extract(ctx context.Context, archivePath, outDir string) error {
	if err := os.MkdirAll(fsutil.NormalizeOrSelf(outDir), 0o755); err != nil {
		return fmt.Errorf("create extract target %s: %w", outDir, err)
	}

	argv := []string{
		a.binPath, "x",
		"-y",   // overwrite without prompting
		"-mmt", // multi-threaded
		fsutil.Raw(archivePath),
		"-o" + fsutil.Raw(outDir),
	}
	return a.sup.RunChildWithRetry(ctx, argv, fsutil.Raw(outDir), a.timeout, a.retries)
}
