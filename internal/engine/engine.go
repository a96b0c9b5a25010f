// Package engine implements the migration pipeline: planning a
// cross-volume directory move, executing it through a resumable,
// dual-pool worker pipeline driven by an external archiver process, and
// reporting throttled progress back to the caller.
package engine

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fasttransfer/fasttransfer/internal/archiver"
	"github.com/fasttransfer/fasttransfer/internal/fsutil"
	"github.com/fasttransfer/fasttransfer/internal/session"
)

// Engine runs one migration end to end: plan (or resume), execute,
// teardown.
type Engine struct {
	cfg      Config
	onStatus ProgressFunc
	onLog    LogFunc

	pipeline *Pipeline
}

// New validates cfg and returns an Engine ready to Run. onStatus and
// onLog may be nil.
func New(cfg Config, onStatus ProgressFunc, onLog LogFunc) (*Engine, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, onStatus: onStatus, onLog: onLog}, nil
}

// Stop requests cancellation of an in-flight Run. Safe to call
// concurrently with Run; a no-op before Run has created its pipeline or
// after Run has returned.
func (e *Engine) Stop() {
	if e.pipeline != nil {
		e.pipeline.Cancel()
	}
}

// Run plans (or resumes) and executes the migration. On any task
// failure or cancellation it returns an error but leaves the session
// file in place so a subsequent Run with ResumeSession can continue
// from where it stopped.
func (e *Engine) Run(ctx context.Context) error {
	cfg := e.cfg
	cacheDir := filepath.Join(cfg.SourceRoot, cacheDirName)
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return fmt.Errorf("create cache dir: %w", err)
	}
	sessionPath := filepath.Join(cacheDir, sessionFileName)
	targetSubRoot := filepath.Join(cfg.TargetRoot, filepath.Base(filepath.Clean(cfg.SourceRoot)))

	var plan Plan
	var completedIDs []string
	var progress *Progress
	resumed := false

	if cfg.ResumeSession {
		if st, err := session.Load(sessionPath); err == nil {
			rp, completedBytes, rerr := recoverPlan(st, cfg, cacheDir)
			if rerr != nil {
				return rerr
			}
			plan = rp
			completedIDs = st.CompletedTaskIDs
			progress = NewProgress(plan.TotalBytes, e.onStatus)
			if completedBytes > 0 {
				progress.Preload(completedBytes)
			}
			resumed = true
			e.log(fmt.Sprintf("resumed session: %d tasks remaining, %d already complete", len(plan.Tasks), len(completedIDs)))
		}
	}

	if !resumed {
		p, err := BuildPlan(ctx, PlannerConfig{
			SourceRoot:     cfg.SourceRoot,
			TargetRoot:     cfg.TargetRoot,
			WorkerCount:    cfg.WorkerCount,
			ChunkSizeLimit: cfg.ChunkSizeLimitMB << 20,
			ChunkFileLimit: cfg.ChunkFileLimit,
		})
		if err != nil {
			return fmt.Errorf("build plan: %w", err)
		}
		plan = p
		progress = NewProgress(plan.TotalBytes, e.onStatus)
	}

	store := session.New(sessionPath, toSessionState(plan, completedIDs))
	store.Start()

	sup := archiver.NewSupervisor()
	arc := archiver.NewArchiver(sup, cfg.ArchiverBinPath, time.Duration(cfg.SubprocessTimeoutS)*time.Second, 3)

	e.pipeline = newPipeline(cfg, arc, sup, store, progress, e.onLog, cacheDir, targetSubRoot)
	e.pipeline.Run(ctx, plan.Tasks)

	store.Stop()

	if ctx.Err() != nil || e.pipeline.cancelled.Load() || e.pipeline.AnyFailed() {
		return fmt.Errorf("%w: run ended with failures or cancellation, session preserved at %s", ErrCancelled, sessionPath)
	}

	return e.teardown(ctx, cfg, cacheDir, targetSubRoot)
}

func (e *Engine) teardown(ctx context.Context, cfg Config, cacheDir, targetSubRoot string) error {
	if err := fsutil.RemoveTreeNative(ctx, cacheDir); err != nil {
		e.log(fmt.Sprintf("error: remove cache dir %s: %v", cacheDir, err))
	}

	if cfg.CopyOnly {
		return nil
	}

	if err := fsutil.RemoveTreeNative(ctx, cfg.SourceRoot); err != nil {
		return fmt.Errorf("remove source root: %w", err)
	}

	if cfg.CreateSymlink {
		if err := os.Symlink(targetSubRoot, cfg.SourceRoot); err != nil {
			e.log(fmt.Sprintf("error: create symlink %s -> %s: %v", cfg.SourceRoot, targetSubRoot, err))
			return fmt.Errorf("%w: %v", ErrPrivilegeDenied, err)
		}
	}
	return nil
}

func (e *Engine) log(line string) {
	if e.onLog != nil {
		e.onLog(line)
	}
}
