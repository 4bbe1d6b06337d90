// Package loader fetches source documents. A Resolver dispatches on
// the URI scheme to the loader registered for it; loaders exist for
// local files, GitHub repositories and Google Drive. The package also
// holds the text cleanup shared by loaders, front matter and markdown
// markup stripping included.
package loader

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure Resolver implements the interface.
var _ driven.DocumentLoader = (*Resolver)(nil)

// Resolver routes Load calls by the source URI scheme. Sources without
// a scheme go to the fallback loader.
type Resolver struct {
	loaders  map[string]driven.DocumentLoader
	fallback driven.DocumentLoader
}

// NewResolver creates a resolver. fallback handles schemeless sources
// and may be nil when every source is expected to carry a scheme.
func NewResolver(fallback driven.DocumentLoader) *Resolver {
	return &Resolver{
		loaders:  make(map[string]driven.DocumentLoader),
		fallback: fallback,
	}
}

// Register adds a loader for a URI scheme such as "github".
func (r *Resolver) Register(scheme string, l driven.DocumentLoader) {
	r.loaders[strings.ToLower(scheme)] = l
}

// Load dispatches source to the loader for its scheme.
func (r *Resolver) Load(ctx context.Context, source string) (*domain.SourceDocument, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, domain.ConfigErrorf("empty document source")
	}

	scheme := Scheme(source)
	if scheme == "" {
		if r.fallback == nil {
			return nil, fmt.Errorf("%w: %q carries no scheme", domain.ErrUnsupportedSource, source)
		}
		return r.fallback.Load(ctx, source)
	}

	l, ok := r.loaders[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: scheme %q", domain.ErrUnsupportedSource, scheme)
	}
	return l.Load(ctx, source)
}

// Scheme extracts the lowercase URI scheme, or "" for bare paths.
func Scheme(source string) string {
	i := strings.Index(source, "://")
	if i <= 0 {
		return ""
	}
	return strings.ToLower(source[:i])
}
