package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
)

var (
	queryTopK      int
	queryStoreKind string
	queryJSON      bool
)

var queryCmd = &cobra.Command{
	Use:   "query [source|collection] [question]",
	Short: "Ask a question against an indexed document",
	Long: `Query answers a single question from a vector collection. The first
argument is either a document source processed earlier, whose
collection name is derived the same way process derives it, or the
name of a collection directly.`,
	Args: cobra.ExactArgs(2),
	RunE: runQuery,
}

func init() {
	queryCmd.Flags().IntVar(&queryTopK, "top-k", 0, "passages retrieved for the answer")
	queryCmd.Flags().StringVar(&queryStoreKind, "store", "", "vector store backend, qdrant or sqlite (default: qdrant when qdrant.url is set, else sqlite)")
	queryCmd.Flags().BoolVar(&queryJSON, "json", false, "print the answer as JSON")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	comps, err := buildComponents(ctx, queryStoreKind, false)
	if err != nil {
		return err
	}
	svc := comps.queryService()

	req := domain.QueryRequest{
		Question: args[1],
		TopK:     tunable(queryTopK, "pipeline.top_k"),
	}
	if source, collection := classifyTarget(args[0]); source != "" {
		req.Source = source
	} else {
		req.Collection = collection
	}

	answer, err := svc.Ask(ctx, req)
	if err != nil {
		return fmt.Errorf("failed to answer question: %w", err)
	}

	if queryJSON {
		data, err := json.MarshalIndent(answer, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode answer: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println(answer.Text)
	if len(answer.Passages) > 0 {
		cmd.Println()
		cmd.Println("Sources:")
		for i, p := range answer.Passages {
			cmd.Printf("  [%d] chunk %d (%.2f) %s\n", i+1, p.Metadata.ChunkIndex, p.Score, snippet(p.Metadata.Text, 80))
		}
	}
	return nil
}

// classifyTarget decides whether the positional target names a
// document source or a collection. URIs and paths that exist on disk
// are sources; everything else is treated as a collection name.
func classifyTarget(arg string) (source, collection string) {
	if strings.Contains(arg, "://") {
		return arg, ""
	}
	if _, err := os.Stat(arg); err == nil {
		return arg, ""
	}
	return "", arg
}

// snippet trims text to max runes on a single line.
func snippet(text string, max int) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max]) + "..."
}
