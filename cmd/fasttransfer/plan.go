package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fasttransfer/fasttransfer/internal/engine"
)

// newPlanCmd returns the "plan" subcommand: a read-only dry run that
// scans the source tree with the same planner a real migration uses and
// prints the shape of the resulting plan, without writing anything or
// spawning the archiver. Its flags are used as given: the config file
// and the root command's worker-count default are not applied.
func newPlanCmd() *cobra.Command {
	var workers int
	var chunkSizeMB int64
	var chunkFileLimit int

	cmd := &cobra.Command{
		Use:   "plan <source> <destination>",
		Short: "Print what a migration would do, without performing it",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := engine.BuildPlan(context.Background(), engine.PlannerConfig{
				SourceRoot:     args[0],
				TargetRoot:     args[1],
				WorkerCount:    workers,
				ChunkSizeLimit: chunkSizeMB << 20,
				ChunkFileLimit: chunkFileLimit,
			})
			if err != nil {
				return err
			}

			var packs, moves int
			for _, t := range p.Tasks {
				if t.Kind == engine.TaskMoveLarge {
					moves++
				} else {
					packs++
				}
			}

			fmt.Fprintf(os.Stdout, "source:       %s\n", p.SourceRoot)
			fmt.Fprintf(os.Stdout, "target:       %s\n", p.TargetRoot)
			fmt.Fprintf(os.Stdout, "total bytes:  %d\n", p.TotalBytes)
			fmt.Fprintf(os.Stdout, "packs:        %d\n", packs)
			fmt.Fprintf(os.Stdout, "large files:  %d\n", moves)
			return nil
		},
	}

	cmd.Flags().IntVarP(&workers, "workers", "n", 0, "worker count to plan against")
	cmd.Flags().Int64Var(&chunkSizeMB, "chunk-size-mb", 64, "per-pack byte safety valve, in MiB")
	cmd.Flags().IntVar(&chunkFileLimit, "chunk-file-limit", 0, "fallback per-pack file count cap")

	return cmd
}
