// Package cli implements the longdoc command-line interface. Commands
// assemble their driven adapters from the settings store at run time,
// so a missing credential surfaces as an error on the command that
// needs it rather than at startup.
package cli

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	configfile "github.com/custodia-labs/longdoc-cli/internal/adapters/driven/config/file"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
)

var (
	cfgDir      string
	envFile     string
	verboseMode bool

	configStore driven.ConfigStore
)

var rootCmd = &cobra.Command{
	Use:   "longdoc",
	Short: "Turn long documents into structured reports",
	Long: `Longdoc ingests a long document from a local file, a GitHub
repository or Google Drive, indexes it into a vector collection, reads
it batch by batch to grow a report skeleton, and synthesizes the final
report section by section with retrieval-grounded citations.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		if envFile != "" {
			if err := godotenv.Load(envFile); err != nil {
				return fmt.Errorf("failed to load env file %s: %w", envFile, err)
			}
		} else {
			_ = godotenv.Load()
		}

		logger.SetVerbose(verboseMode)

		store, err := configfile.NewConfigStore(cfgDir)
		if err != nil {
			return fmt.Errorf("failed to open settings: %w", err)
		}
		configStore = store
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgDir, "config", "", "settings directory (default is the user config dir)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "env file to load before reading settings")
	rootCmd.PersistentFlags().BoolVarP(&verboseMode, "verbose", "v", false, "log pipeline progress")
}

// Execute runs the root command with the given context. The context is
// cancelled on interrupt by the caller, which unwinds in-flight
// pipeline work.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
