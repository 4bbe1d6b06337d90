package cli

import (
	"context"
	"fmt"

	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/chunking/semantic"
	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/embedding/openai"
	openaillm "github.com/custodia-labs/longdoc-cli/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/loader"
	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/loader/file"
	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/loader/gdrive"
	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/loader/github"
	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/rerank/lexical"
	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/rerank/remote"
	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/vectorstore/qdrant"
	"github.com/custodia-labs/longdoc-cli/internal/adapters/driven/vectorstore/sqlite"
	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
	"github.com/custodia-labs/longdoc-cli/internal/core/services"
	"github.com/custodia-labs/longdoc-cli/internal/logger"
)

// components carries the driven adapters a command wires into its
// services.
type components struct {
	loader   driven.DocumentLoader
	chunker  driven.Chunker
	embedder driven.EmbeddingService
	store    driven.VectorStore
	llm      driven.LLMService
	reranker driven.Reranker
}

// buildComponents assembles every driven adapter from the settings
// store. storeKind selects the vector store backend; fixedChunking
// bypasses semantic boundary detection.
func buildComponents(ctx context.Context, storeKind string, fixedChunking bool) (*components, error) {
	embedder, err := buildEmbedder()
	if err != nil {
		return nil, err
	}

	llm, err := buildLLM()
	if err != nil {
		return nil, err
	}

	store, err := buildVectorStore(storeKind)
	if err != nil {
		return nil, err
	}

	docLoader, err := buildLoader(ctx)
	if err != nil {
		return nil, err
	}

	var chunker driven.Chunker
	if fixedChunking {
		chunker = semantic.New(nil)
	} else {
		chunker = semantic.New(embedder)
	}

	return &components{
		loader:   docLoader,
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		llm:      llm,
		reranker: buildReranker(ctx),
	}, nil
}

func (c *components) pipelineService() *services.PipelineService {
	svc := services.NewPipelineService(c.loader, c.chunker, c.embedder, c.store, c.llm, c.reranker)
	if n := configStore.GetInt("pipeline.concurrency"); n > 0 {
		svc.SetEmbedConcurrency(n)
	}
	if n := configStore.GetInt("pipeline.section_workers"); n > 0 {
		svc.SetSectionWorkers(n)
	}
	return svc
}

func (c *components) queryService() *services.QueryService {
	return services.NewQueryService(c.embedder, c.store, c.llm, c.reranker)
}

func buildEmbedder() (driven.EmbeddingService, error) {
	svc, err := openai.NewEmbeddingService(openai.Config{
		APIKey:     configStore.GetString("embedding.api_key"),
		BaseURL:    configStore.GetString("embedding.base_url"),
		Model:      configStore.GetString("embedding.model"),
		Dimensions: configStore.GetInt("embedding.dimensions"),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding service: %w", err)
	}
	return svc, nil
}

func buildLLM() (driven.LLMService, error) {
	svc, err := openaillm.NewLLMService(openaillm.Config{
		APIKey:  configStore.GetString("llm.api_key"),
		BaseURL: configStore.GetString("llm.base_url"),
		Model:   configStore.GetString("llm.model"),
	})
	if err != nil {
		return nil, fmt.Errorf("llm service: %w", err)
	}
	return svc, nil
}

func buildVectorStore(kind string) (driven.VectorStore, error) {
	if kind == "" {
		if configStore.GetString("qdrant.url") != "" {
			kind = "qdrant"
		} else {
			kind = "sqlite"
		}
	}
	switch kind {
	case "qdrant":
		store, err := qdrant.NewStore(qdrant.Config{
			BaseURL: configStore.GetString("qdrant.url"),
			APIKey:  configStore.GetString("qdrant.api_key"),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant store: %w", err)
		}
		return store, nil
	case "sqlite":
		store, err := sqlite.NewStore(configStore.GetString("sqlite.path"))
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		return store, nil
	default:
		return nil, domain.ConfigErrorf("unknown vector store %q, want qdrant or sqlite", kind)
	}
}

// buildLoader wires the scheme resolver. Plain paths and file:// fall
// through to the filesystem loader; gdrive:// is only registered when
// a token is configured because the Drive client cannot be built
// without one.
func buildLoader(ctx context.Context) (driven.DocumentLoader, error) {
	fileLoader := file.NewLoader()
	resolver := loader.NewResolver(fileLoader)
	resolver.Register("file", fileLoader)

	gh, err := github.NewLoader(ctx, github.Config{Token: configStore.GetString("github.token")})
	if err != nil {
		return nil, fmt.Errorf("github loader: %w", err)
	}
	resolver.Register("github", gh)

	if token := configStore.GetString("gdrive.token"); token != "" {
		gd, err := gdrive.NewLoader(ctx, gdrive.Config{Token: token})
		if err != nil {
			return nil, fmt.Errorf("gdrive loader: %w", err)
		}
		resolver.Register("gdrive", gd)
	}

	return resolver, nil
}

// buildReranker prefers the remote scoring service when one is
// configured and answering, otherwise falls back to lexical overlap.
func buildReranker(ctx context.Context) driven.Reranker {
	url := configStore.GetString("rerank.url")
	if url == "" {
		return lexical.NewReranker()
	}

	rr, err := remote.NewReranker(remote.Config{BaseURL: url})
	if err != nil {
		logger.Warn("Remote reranker misconfigured, falling back to lexical: %v", err)
		return lexical.NewReranker()
	}
	if err := rr.Ping(ctx); err != nil {
		logger.Warn("Reranker at %s is unreachable, falling back to lexical: %v", url, err)
		return lexical.NewReranker()
	}
	return rr
}

// tunable resolves a pipeline knob: an explicit flag wins, then the
// stored setting, then zero so the service applies its own default.
func tunable(flagValue int, key string) int {
	if flagValue > 0 {
		return flagValue
	}
	return configStore.GetInt(key)
}

// resolveCollection returns, in order of precedence, the explicit
// value, the configured default collection, or the name derived from
// the source.
func resolveCollection(explicit, source string) string {
	if explicit != "" {
		return explicit
	}
	if name := configStore.GetString("collection.name"); name != "" {
		return name
	}
	return services.DeriveCollectionName(services.SourceName(source))
}
