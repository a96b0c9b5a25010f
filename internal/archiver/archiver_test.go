package archiver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFakeBinary drops a tiny shell script standing in for the archiver
// CLI so tests don't depend on a real 7-Zip install.
func writeFakeBinary(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "fake-archiver")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func TestRunChildSuccess(t *testing.T) {
	bin := writeFakeBinary(t, "exit 0\n")
	sup := NewSupervisor()

	err := sup.RunChild(context.Background(), []string{bin}, t.TempDir(), time.Second)
	require.NoError(t, err)
}

func TestRunChildNonZeroExitNotRetried(t *testing.T) {
	bin := writeFakeBinary(t, "echo boom 1>&2\nexit 3\n")
	sup := NewSupervisor()

	err := sup.RunChild(context.Background(), []string{bin}, t.TempDir(), time.Second)
	require.Error(t, err)
	var nz *NonZeroExitError
	require.True(t, errors.As(err, &nz))
	assert.Equal(t, 3, nz.ExitCode)
}

func TestRunChildTimeout(t *testing.T) {
	bin := writeFakeBinary(t, "sleep 5\n")
	sup := NewSupervisor()

	err := sup.RunChild(context.Background(), []string{bin}, t.TempDir(), 50*time.Millisecond)
	require.Error(t, err)
	var to *TimeoutError
	require.True(t, errors.As(err, &to))
}

func TestRunChildWithRetryRetriesOnlyTimeout(t *testing.T) {
	bin := writeFakeBinary(t, "exit 9\n")
	sup := NewSupervisor()

	err := sup.RunChildWithRetry(context.Background(), []string{bin}, t.TempDir(), time.Second, 3)
	require.Error(t, err)
	var nz *NonZeroExitError
	assert.True(t, errors.As(err, &nz), "non-zero exit must not be masked by the retry wrapper")
}

func TestCancelKillsRunningChild(t *testing.T) {
	bin := writeFakeBinary(t, "sleep 30\n")
	sup := NewSupervisor()

	done := make(chan error, 1)
	go func() {
		done <- sup.RunChild(context.Background(), []string{bin}, t.TempDir(), 10*time.Second)
	}()

	time.Sleep(100 * time.Millisecond)
	sup.Cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(5 * time.Second):
		t.Fatal("child was not killed by Cancel")
	}
}

func TestCreateAndExtractRoundTrip(t *testing.T) {
	// Fake archiver: exits 0 for the "a" and "x" verbs and 1 for anything
	// else, writing nothing. This only exercises the filelist format, the
	// supervisor plumbing (verb dispatch, exit codes) and Extract creating
	// its output directory, not a real archive format.
	bin := writeFakeBinary(t, `
op=$1
shift
if [ "$op" = "a" ]; then
  exit 0
elif [ "$op" = "x" ]; then
  exit 0
fi
exit 1
`)
	sup := NewSupervisor()
	a := NewArchiver(sup, bin, time.Second, 2)

	dir := t.TempDir()
	listPath := filepath.Join(dir, "filelist_1.txt")
	require.NoError(t, WriteFileList(listPath, []string{"a.txt", "sub/b.txt"}))

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	assert.Equal(t, "a.txt\nsub/b.txt\n", string(data))

	archivePath := filepath.Join(dir, "pack_1.7z")
	require.NoError(t, a.Create(context.Background(), archivePath, listPath, dir))

	outDir := filepath.Join(dir, "out")
	require.NoError(t, a.Extract(context.Background(), archivePath, outDir))

	_, err = os.Stat(outDir)
	require.NoError(t, err)
}
