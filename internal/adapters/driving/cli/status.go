package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
	"github.com/custodia-labs/longdoc-cli/internal/core/services"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
)

var (
	statusStoreKind string
	statusJSON      bool
)

var statusCmd = &cobra.Command{
	Use:   "status [collection]",
	Short: "Show component health and collection statistics",
	Long: `Status probes the vector store, the embedding service and the LLM,
and reports whether each is reachable. With a collection argument it
also prints that collection's vector count and dimension.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runStatus,
}

func init() {
	statusCmd.Flags().StringVar(&statusStoreKind, "store", "", "vector store backend, qdrant or sqlite (default: qdrant when qdrant.url is set, else sqlite)")
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "print status as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := buildVectorStore(statusStoreKind)
	if err != nil {
		return err
	}

	// Missing credentials must not break status: a nil service is
	// reported as not configured.
	var embedder driven.EmbeddingService
	if e, err := buildEmbedder(); err == nil {
		embedder = e
	} else {
		logger.Debug("Embedding service unavailable: %v", err)
	}
	var llm driven.LLMService
	if l, err := buildLLM(); err == nil {
		llm = l
	} else {
		logger.Debug("LLM service unavailable: %v", err)
	}

	svc := services.NewInspectService(store, embedder, llm)
	health := svc.Health(ctx)

	var info *domain.CollectionInfo
	if len(args) == 1 {
		name := args[0]
		if source, collection := classifyTarget(args[0]); collection != "" {
			name = collection
		} else {
			name = services.DeriveCollectionName(services.SourceName(source))
		}
		stats, err := svc.CollectionStats(ctx, name)
		if err != nil {
			return fmt.Errorf("failed to inspect collection %s: %w", name, err)
		}
		info = stats
	}

	if statusJSON {
		payload := struct {
			Components []domain.ComponentHealth `json:"components"`
			Collection *domain.CollectionInfo   `json:"collection,omitempty"`
		}{Components: health, Collection: info}
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Println("Components:")
	for _, h := range health {
		mark := "ok"
		if !h.OK {
			mark = "unavailable"
		}
		if h.Detail != "" {
			cmd.Printf("  %-14s %-12s %s\n", h.Component, mark, h.Detail)
		} else {
			cmd.Printf("  %-14s %s\n", h.Component, mark)
		}
	}

	if info != nil {
		cmd.Println()
		cmd.Printf("Collection %s:\n", info.Name)
		if !info.Populated {
			cmd.Println("  empty")
			return nil
		}
		cmd.Printf("  vectors:   %d\n", info.Count)
		cmd.Printf("  dimension: %d\n", info.Dimension)
	}
	return nil
}
