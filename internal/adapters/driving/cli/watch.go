package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/longdoc-cli/internal/adapters/driving/watch"
)

var (
	watchOutputDir string
	watchSettle    time.Duration
	watchStoreKind string
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Process documents dropped into a directory",
	Long: `Watch a directory and run the report pipeline on every .txt or .md
file created or updated in it. Reports are written next to the source
file, or into --output-dir, as <name>.report.md. A file is processed
once it has stopped changing for the settle interval.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchOutputDir, "output-dir", "", "directory for report files (default alongside the source)")
	watchCmd.Flags().DurationVar(&watchSettle, "settle", 0, "quiet period before a changed file is processed")
	watchCmd.Flags().StringVar(&watchStoreKind, "store", "", "vector store backend, qdrant or sqlite (default: qdrant when qdrant.url is set, else sqlite)")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	comps, err := buildComponents(ctx, watchStoreKind, false)
	if err != nil {
		return err
	}

	watcher, err := watch.New(watch.Config{
		Pipeline:  comps.pipelineService(),
		OutputDir: watchOutputDir,
		Settle:    watchSettle,
	})
	if err != nil {
		return err
	}

	if err := watcher.Run(ctx, args[0]); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
