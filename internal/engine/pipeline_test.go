package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fasttransfer/fasttransfer/internal/archiver"
	"github.com/fasttransfer/fasttransfer/internal/session"
)

// writeTarBackedArchiver drops a shell script standing in for the
// archiver CLI, translating the 7-Zip-shaped argv the Supervisor
// builds into real `tar` invocations so pack/extract round-trip
// through an actual archive format without depending on 7z being
// installed.
func writeTarBackedArchiver(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-7z")
	script := `#!/bin/sh
op=$1
shift
archive=""
list=""
outdir=""
for a in "$@"; do
  case "$a" in
    -o*) outdir="${a#-o}" ;;
    @*) list="${a#@}" ;;
    -*) ;;
    *) archive="$a" ;;
  esac
done
if [ "$op" = "a" ]; then
  tar -cf "$archive" -T "$list"
elif [ "$op" = "x" ]; then
  mkdir -p "$outdir"
  tar -xf "$archive" -C "$outdir"
fi
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func newTestPipeline(t *testing.T, cfg Config, cacheDir, targetSubRoot string) (*Pipeline, *Progress) {
	t.Helper()
	sup := archiver.NewSupervisor()
	arc := archiver.NewArchiver(sup, writeTarBackedArchiver(t), time.Second, 2)
	store := session.New(filepath.Join(cacheDir, sessionFileName), session.State{SourceDir: cfg.SourceRoot, TargetDir: cfg.TargetRoot})
	store.Start()
	t.Cleanup(store.Stop)
	progress := NewProgress(1<<20, nil)
	return newPipeline(cfg, arc, sup, store, progress, nil, cacheDir, targetSubRoot), progress
}

func TestPipeline_PackRoundTrip(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), 16)
	writeFile(t, filepath.Join(src, "sub", "b.txt"), 32)

	cacheDir := filepath.Join(src, cacheDirName)
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	targetSubRoot := filepath.Join(dst, filepath.Base(src))

	cfg := Config{SourceRoot: src, TargetRoot: dst, WorkerCount: 2}
	pipeline, _ := newTestPipeline(t, cfg, cacheDir, targetSubRoot)

	task := Task{
		Kind:   TaskPack,
		TaskID: "pk-test",
		PackID: 1,
		Files: []FileEntry{
			{Path: filepath.Join(src, "a.txt"), Size: 16},
			{Path: filepath.Join(src, "sub", "b.txt"), Size: 32},
		},
	}
	pipeline.Run(context.Background(), []Task{task})

	assert.NoFileExists(t, filepath.Join(src, "a.txt"), "source deleted after successful pack+extract")
	assert.FileExists(t, filepath.Join(targetSubRoot, "a.txt"))
	assert.FileExists(t, filepath.Join(targetSubRoot, "sub", "b.txt"))
	assert.NoFileExists(t, filepath.Join(cacheDir, packArchiveName(1)), "archive cleaned up on success")
	assert.False(t, pipeline.AnyFailed())
}

func TestPipeline_PackCopyOnlyKeepsSources(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), 8)

	cacheDir := filepath.Join(src, cacheDirName)
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	targetSubRoot := filepath.Join(dst, filepath.Base(src))

	cfg := Config{SourceRoot: src, TargetRoot: dst, WorkerCount: 1, CopyOnly: true}
	pipeline, _ := newTestPipeline(t, cfg, cacheDir, targetSubRoot)

	task := Task{
		Kind:   TaskPack,
		TaskID: "pk-copyonly",
		PackID: 1,
		Files:  []FileEntry{{Path: filepath.Join(src, "a.txt"), Size: 8}},
	}
	pipeline.Run(context.Background(), []Task{task})

	assert.FileExists(t, filepath.Join(src, "a.txt"), "copy-only never deletes sources")
	assert.FileExists(t, filepath.Join(targetSubRoot, "a.txt"))
}

func TestPipeline_MoveLargeCopyOnly(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "big.bin"), 1<<10)

	cacheDir := filepath.Join(src, cacheDirName)
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	targetSubRoot := filepath.Join(dst, filepath.Base(src))

	cfg := Config{SourceRoot: src, TargetRoot: dst, WorkerCount: 1, CopyOnly: true}
	pipeline, _ := newTestPipeline(t, cfg, cacheDir, targetSubRoot)

	task := Task{Kind: TaskMoveLarge, TaskID: "mv-test", File: FileEntry{Path: filepath.Join(src, "big.bin"), Size: 1 << 10}}
	pipeline.Run(context.Background(), []Task{task})

	assert.FileExists(t, filepath.Join(src, "big.bin"))
	assert.FileExists(t, filepath.Join(targetSubRoot, "big.bin"))
	assert.False(t, pipeline.AnyFailed())
}

func TestPipeline_MoveLargeRename(t *testing.T) {
	// os.Rename succeeds here since src and dst live on the same
	// filesystem (both under t.TempDir()); this exercises the
	// fast-rename branch of moveCrossVolume rather than the
	// copy+delete fallback.
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "big.bin"), 1<<10)

	cacheDir := filepath.Join(src, cacheDirName)
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	targetSubRoot := filepath.Join(dst, filepath.Base(src))

	cfg := Config{SourceRoot: src, TargetRoot: dst, WorkerCount: 1}
	pipeline, _ := newTestPipeline(t, cfg, cacheDir, targetSubRoot)

	task := Task{Kind: TaskMoveLarge, TaskID: "mv-rename", File: FileEntry{Path: filepath.Join(src, "big.bin"), Size: 1 << 10}}
	pipeline.Run(context.Background(), []Task{task})

	assert.NoFileExists(t, filepath.Join(src, "big.bin"))
	assert.FileExists(t, filepath.Join(targetSubRoot, "big.bin"))
}

func TestPipeline_ExtractFailureKeepsArchiveForResume(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	writeFile(t, filepath.Join(src, "a.txt"), 8)

	cacheDir := filepath.Join(src, cacheDirName)
	require.NoError(t, os.MkdirAll(cacheDir, 0o755))
	targetSubRoot := filepath.Join(dst, filepath.Base(src))

	sup := archiver.NewSupervisor()
	// "a" succeeds (exit 0), "x" always fails — simulates an extract
	// that can't complete (e.g. disk full on the target volume).
	dir := t.TempDir()
	path := filepath.Join(dir, "fail-extract")
	script := `#!/bin/sh
op=$1
shift
if [ "$op" = "a" ]; then
  for a in "$@"; do
    case "$a" in
      -*) ;;
      @*) ;;
      *) archive="$a" ;;
    esac
  done
  touch "$archive"
  exit 0
fi
exit 7
`
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	arc := archiver.NewArchiver(sup, path, time.Second, 1)

	store := session.New(filepath.Join(cacheDir, sessionFileName), session.State{SourceDir: src, TargetDir: dst})
	store.Start()
	t.Cleanup(store.Stop)
	progress := NewProgress(8, nil)

	pipeline := newPipeline(Config{SourceRoot: src, TargetRoot: dst, WorkerCount: 1}, arc, sup, store, progress, nil, cacheDir, targetSubRoot)

	task := Task{Kind: TaskPack, TaskID: "pk-failing", PackID: 1, Files: []FileEntry{{Path: filepath.Join(src, "a.txt"), Size: 8}}}
	pipeline.Run(context.Background(), []Task{task})

	assert.True(t, pipeline.AnyFailed())
	assert.FileExists(t, filepath.Join(cacheDir, packArchiveName(1)), "archive stays on disk so the next run can pick it up as ResumeExtract")
}
