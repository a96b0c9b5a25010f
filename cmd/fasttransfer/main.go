package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/fasttransfer/fasttransfer/internal/config"
	"github.com/fasttransfer/fasttransfer/internal/engine"
)

var version = "dev"

func main() {
	os.Exit(run())
}

type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return fmt.Sprintf("exit code %d", e.code)
}

//nolint:gocyclo,revive // cyclomatic,cognitive-complexity: main CLI entry point orchestrates all flag parsing
func run() int {
	var (
		workers        int
		chunkSizeMB    int64
		chunkFileLimit int
		timeoutS       int
		copyOnly       bool
		symlink        bool
		resume         bool
		archiverBin    string
		verbose        bool
		quiet          bool
		showVersion    bool
	)

	rootCmd := &cobra.Command{
		Use:   "fasttransfer [flags] <source> <destination>",
		Short: "Cross-volume directory migration engine",
		Args: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				return nil
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if showVersion {
				fmt.Fprintf(os.Stdout, "fasttransfer %s\n", version)
				return nil
			}

			cfgFile, err := config.Load()
			if err != nil {
				slog.Warn("failed to load config", "error", err)
			}
			applyConfigDefaults(cmd, cfgFile.Defaults, &workers, &chunkSizeMB, &chunkFileLimit, &timeoutS, &copyOnly, &symlink, &resume, &archiverBin)

			logLevel := slog.LevelInfo
			if verbose {
				logLevel = slog.LevelDebug
			} else if quiet {
				logLevel = slog.LevelWarn
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
			slog.SetDefault(logger)

			if workers <= 0 {
				workers = min(runtime.NumCPU(), 16)
			}

			engineCfg := engine.Config{
				SourceRoot:         args[0],
				TargetRoot:         args[1],
				WorkerCount:        workers,
				ChunkSizeLimitMB:   chunkSizeMB,
				ChunkFileLimit:     chunkFileLimit,
				SubprocessTimeoutS: timeoutS,
				CopyOnly:           copyOnly,
				CreateSymlink:      symlink,
				ResumeSession:      resume,
				ArchiverBinPath:    archiverBin,
			}

			onStatus := func(message string, percent *int) {
				if quiet {
					return
				}
				fmt.Fprintln(os.Stderr, message)
			}
			onLog := func(line string) {
				if strings.HasPrefix(line, "error:") {
					slog.Error(line)
					return
				}
				slog.Info(line)
			}

			eng, err := engine.New(engineCfg, onStatus, onLog)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if err := eng.Run(ctx); err != nil {
				slog.Error("migration failed", "error", err)
				return &exitError{code: 1}
			}

			if !quiet {
				fmt.Fprintln(os.Stderr, "migration complete")
			}
			return nil
		},
	}

	rootCmd.Flags().BoolVar(&showVersion, "version", false, "print version and exit")
	rootCmd.Flags().
		IntVarP(&workers, "workers", "n", 0, "number of transfer/cleanup workers (default: min(NumCPU, 16))")
	rootCmd.Flags().
		Int64Var(&chunkSizeMB, "chunk-size-mb", 64, "per-pack byte safety valve, in MiB")
	rootCmd.Flags().
		IntVar(&chunkFileLimit, "chunk-file-limit", 0, "fallback per-pack file count cap, used only when workers degenerates")
	rootCmd.Flags().
		IntVar(&timeoutS, "timeout", 10, "per archiver invocation timeout, in seconds")
	rootCmd.Flags().BoolVar(&copyOnly, "copy-only", false, "copy without deleting sources or replacing the source with a symlink")
	rootCmd.Flags().BoolVar(&symlink, "symlink", false, "after migration, replace the source directory with a symlink to its new location")
	rootCmd.Flags().BoolVar(&resume, "resume", false, "resume a previously interrupted migration from its session file")
	rootCmd.Flags().StringVar(&archiverBin, "archiver-bin", "", "path to the 7-Zip-compatible archiver binary (default: resolve \"7z\" via PATH)")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")

	rootCmd.AddCommand(newPlanCmd())

	if err := rootCmd.Execute(); err != nil {
		if exitErr, ok := err.(*exitError); ok {
			return exitErr.code
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}

func applyConfigDefaults(
	cmd *cobra.Command,
	defaults config.DefaultsConfig,
	workers *int,
	chunkSizeMB *int64,
	chunkFileLimit *int,
	timeoutS *int,
	copyOnly *bool,
	symlink *bool,
	resume *bool,
	archiverBin *string,
) {
	if !cmd.Flags().Changed("workers") && defaults.WorkerCount != nil {
		*workers = *defaults.WorkerCount
	}
	if !cmd.Flags().Changed("chunk-size-mb") && defaults.ChunkSizeLimitMB != nil {
		*chunkSizeMB = *defaults.ChunkSizeLimitMB
	}
	if !cmd.Flags().Changed("chunk-file-limit") && defaults.ChunkFileLimit != nil {
		*chunkFileLimit = *defaults.ChunkFileLimit
	}
	if !cmd.Flags().Changed("timeout") && defaults.SubprocessTimeoutS != nil {
		*timeoutS = *defaults.SubprocessTimeoutS
	}
	if !cmd.Flags().Changed("copy-only") && defaults.CopyOnly != nil {
		*copyOnly = *defaults.CopyOnly
	}
	if !cmd.Flags().Changed("symlink") && defaults.CreateSymlink != nil {
		*symlink = *defaults.CreateSymlink
	}
	if !cmd.Flags().Changed("resume") && defaults.ResumeSession != nil {
		*resume = *defaults.ResumeSession
	}
	if !cmd.Flags().Changed("archiver-bin") && defaults.ArchiverBinPath != nil {
		*archiverBin = *defaults.ArchiverBinPath
	}
}
