package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fasttransfer/fasttransfer/internal/archiver"
	"github.com/fasttransfer/fasttransfer/internal/fsutil"
	"github.com/fasttransfer/fasttransfer/internal/session"
)

const archiveExt = "7z"

func packArchiveName(packID int) string {
	return fmt.Sprintf("pack_%d.%s", packID, archiveExt)
}

func packFilelistName(packID int) string {
	return fmt.Sprintf("filelist_%d.txt", packID)
}

// Pipeline drives every task in a Plan across two bounded worker pools:
// transfer (pack/extract/move) and cleanup (source deletion, archive
// and filelist removal, empty-directory reclamation). The two pools
// run concurrently by design — see runPack's comment on why deleting a
// pack's sources doesn't have to wait on its extract succeeding.
type Pipeline struct {
	cfg           Config
	archiver      *archiver.Archiver
	sup           *archiver.Supervisor
	store         *session.Store
	progress      *Progress
	onLog         LogFunc
	cacheDir      string
	targetSubRoot string

	cleanupPool *workerPool
	cancelled   atomic.Bool

	mu     sync.Mutex
	failed []string
}

func newPipeline(cfg Config, arc *archiver.Archiver, sup *archiver.Supervisor, store *session.Store, progress *Progress, onLog LogFunc, cacheDir, targetSubRoot string) *Pipeline {
	return &Pipeline{
		cfg:           cfg,
		archiver:      arc,
		sup:           sup,
		store:         store,
		progress:      progress,
		onLog:         onLog,
		cacheDir:      cacheDir,
		targetSubRoot: targetSubRoot,
	}
}

// Run executes every task to completion or until Cancel is called.
// Blocks until all dispatched work — including cleanup-pool jobs
// submitted mid-run — has finished.
func (p *Pipeline) Run(ctx context.Context, tasks []Task) {
	workers := p.cfg.WorkerCount
	if workers < 1 {
		workers = 1
	}
	p.cleanupPool = newWorkerPool(workers)
	transfer := newWorkerPool(workers)

	var wg sync.WaitGroup
	for _, t := range tasks {
		if p.cancelled.Load() {
			break
		}
		t := t
		wg.Add(1)
		transfer.Submit(func() {
			defer wg.Done()
			p.runTask(ctx, t)
		})
	}
	wg.Wait()
	transfer.Close()
	p.cleanupPool.Close()

	// Both pools have drained: any *.xfer-tmp file still registered
	// belongs to a copy that was killed mid-write rather than one that
	// renamed cleanly into place, and RegisterTmp/DeregisterTmp already
	// deregister the clean-exit case inside copyLargeOnce's defer.
	fsutil.CleanupTmpFiles()
}

// Cancel stops dispatching new tasks and kills any archiver child
// process currently in flight. Tasks already past their archiver call
// run to completion of their current phase.
func (p *Pipeline) Cancel() {
	p.cancelled.Store(true)
	p.sup.Cancel()
}

// AnyFailed reports whether any task ended in failure.
func (p *Pipeline) AnyFailed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.failed) > 0
}

func (p *Pipeline) runTask(ctx context.Context, task Task) {
	if p.cancelled.Load() {
		return
	}
	switch task.Kind {
	case TaskPack, TaskResumeExtract:
		p.runPack(ctx, task)
	case TaskMoveLarge:
		p.runMoveLarge(task)
	}
}

// runPack implements the Pack/ResumeExtract state machine:
//  1. pack phase (skipped for ResumeExtract — the archive is already on
//     disk from a prior aborted run)
//  2. delete-dispatch: submitted to the cleanup pool, runs concurrently
//     with step 3. Safe because step 1 already durably wrote every
//     source byte into the archive; deleting the originals doesn't
//     depend on the archive having been extracted yet.
//  3. extract phase, synchronous in the transfer worker
//  4. cleanup dispatch: a cleanup-pool job that waits on the delete
//     future, then removes the archive and filelist, reclaims empty
//     source directories, and marks the task complete. Only scheduled
//     if extract succeeded — on failure the archive and filelist stay
//     in the cache, which is exactly what lets the next run pick the
//     task up as ResumeExtract instead of re-packing.
func (p *Pipeline) runPack(ctx context.Context, task Task) {
	archivePath := filepath.Join(p.cacheDir, packArchiveName(task.PackID))
	listPath := filepath.Join(p.cacheDir, packFilelistName(task.PackID))

	if task.Kind != TaskResumeExtract {
		relPaths := make([]string, len(task.Files))
		for i, f := range task.Files {
			rel, err := filepath.Rel(p.cfg.SourceRoot, f.Path)
			if err != nil {
				rel = f.Path
			}
			relPaths[i] = rel
		}
		if err := archiver.WriteFileList(listPath, relPaths); err != nil {
			p.handleTaskFailure(task, err)
			return
		}
		if err := p.archiver.Create(ctx, archivePath, listPath, p.cfg.SourceRoot); err != nil {
			p.handleTaskFailure(task, err)
			return
		}
	}

	deleteDone := make(chan error, 1)
	if !p.cfg.CopyOnly {
		files := task.Files
		p.cleanupPool.Submit(func() {
			deleteDone <- p.deleteSources(files)
		})
	} else {
		deleteDone <- nil
	}

	if err := p.archiver.Extract(ctx, archivePath, p.targetSubRoot); err != nil {
		p.handleTaskFailure(task, err)
		return
	}

	files := task.Files
	p.cleanupPool.Submit(func() {
		if delErr := <-deleteDone; delErr != nil {
			p.log(fmt.Sprintf("error: delete sources for task %s: %v", task.TaskID, delErr))
		}
		fsutil.RemoveFileRetrying(archivePath, 3, 100*time.Millisecond)
		fsutil.RemoveFileRetrying(listPath, 3, 100*time.Millisecond)
		if !p.cfg.CopyOnly {
			seeds := make([]string, len(files))
			for i, f := range files {
				seeds[i] = f.Path
			}
			fsutil.ReclaimEmptyDirs(seeds, p.cfg.SourceRoot)
		}
		p.completeTask(task)
	})
}

func (p *Pipeline) deleteSources(files []FileEntry) error {
	var firstErr error
	for _, f := range files {
		if !fsutil.RemoveFileRetrying(f.Path, 5, 200*time.Millisecond) {
			if firstErr == nil {
				firstErr = fmt.Errorf("delete %s: exhausted retries", f.Path)
			}
		}
	}
	return firstErr
}

// runMoveLarge transfers a single large file. Outside copy-only mode it
// first tries os.Rename (an instant, atomic move when source and
// target happen to share a volume) and only falls back to a full
// retry-copy-then-delete when Rename fails — typically EXDEV, since
// the engine doesn't assume source and target are on the same volume.
func (p *Pipeline) runMoveLarge(task Task) {
	rel, err := filepath.Rel(p.cfg.SourceRoot, task.File.Path)
	if err != nil {
		rel = filepath.Base(task.File.Path)
	}
	target := filepath.Join(p.targetSubRoot, rel)
	if err := os.MkdirAll(filepath.Dir(fsutil.NormalizeOrSelf(target)), 0o755); err != nil {
		p.handleTaskFailure(task, err)
		return
	}

	if p.cfg.CopyOnly {
		if err := fsutil.CopyLargeRetrying(task.File.Path, target, 3, time.Second); err != nil {
			p.handleTaskFailure(task, err)
			return
		}
		p.completeTask(task)
		return
	}

	if err := moveCrossVolume(task.File.Path, target); err != nil {
		p.handleTaskFailure(task, err)
		return
	}

	src := task.File.Path
	p.cleanupPool.Submit(func() {
		fsutil.ReclaimEmptyDirs([]string{src}, p.cfg.SourceRoot)
		p.completeTask(task)
	})
}

func moveCrossVolume(src, dst string) error {
	if err := os.Rename(fsutil.NormalizeOrSelf(src), fsutil.NormalizeOrSelf(dst)); err == nil {
		return nil
	}
	if err := fsutil.CopyLargeRetrying(src, dst, 3, time.Second); err != nil {
		return err
	}
	if !fsutil.RemoveFileRetrying(src, 5, 200*time.Millisecond) {
		return fmt.Errorf("remove source after cross-volume copy: %s", src)
	}
	return nil
}

func (p *Pipeline) handleTaskFailure(task Task, err error) {
	p.mu.Lock()
	p.failed = append(p.failed, task.TaskID)
	p.mu.Unlock()

	if errors.Is(err, context.Canceled) {
		p.log(fmt.Sprintf("task %s aborted: %v", task.TaskID, err))
	} else {
		p.log(fmt.Sprintf("error: task %s failed: %v", task.TaskID, err))
	}
	p.progress.Credit(task.Bytes())
}

func (p *Pipeline) completeTask(task Task) {
	p.store.MarkCompleted(task.TaskID)
	p.progress.Credit(task.Bytes())
}

func (p *Pipeline) log(line string) {
	if p.onLog != nil {
		p.onLog(line)
	}
}
