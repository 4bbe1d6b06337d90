package cli

import (
	"errors"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/longdoc-cli/internal/adapters/driving/tui"
)

var tuiStoreKind string

var tuiCmd = &cobra.Command{
	Use:   "tui [collection]",
	Short: "Launch the interactive query explorer",
	Long: `Launch a terminal interface for asking questions against an indexed
collection and browsing the cited passages.

Controls:
  Enter - Ask the typed question
  ↑/↓   - Scroll the answer
  Esc   - Clear the input
  q     - Quit (with the input empty)`,
	Args: cobra.MaximumNArgs(1),
	RunE: runTUI,
}

func init() {
	tuiCmd.Flags().StringVar(&tuiStoreKind, "store", "", "vector store backend, qdrant or sqlite (default: qdrant when qdrant.url is set, else sqlite)")
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	collection := configStore.GetString("collection.name")
	if len(args) == 1 {
		collection = args[0]
	}
	if collection == "" {
		return errors.New("no collection given and collection.name is not set")
	}

	comps, err := buildComponents(cmd.Context(), tuiStoreKind, false)
	if err != nil {
		return err
	}

	model, err := tui.New(&tui.Ports{Query: comps.queryService()}, collection)
	if err != nil {
		return fmt.Errorf("failed to create TUI: %w", err)
	}
	model.WithContext(cmd.Context())

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
