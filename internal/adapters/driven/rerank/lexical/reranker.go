// Package lexical implements the reranker port with token-overlap
// scoring. It needs no external service, which makes it the fallback
// when no reranking endpoint is configured.
package lexical

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/custodia-labs/longdoc-cli/internal/core/domain"
	"github.com/custodia-labs/longdoc-cli/internal/core/ports/driven"
)

// Ensure Reranker implements the interface.
var _ driven.Reranker = (*Reranker)(nil)

var wordRe = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)

// Reranker scores candidates by the Ochiai coefficient of their token
// sets against the query: |A∩B| / sqrt(|A|·|B|).
type Reranker struct{}

// NewReranker creates a lexical reranker.
func NewReranker() *Reranker {
	return &Reranker{}
}

// Rerank scores candidates against the query, sorted descending with
// ties broken by ascending chunk index, truncated to topN. Nothing is
// dropped: a zero-overlap candidate scores 0 but stays rankable.
func (r *Reranker) Rerank(_ context.Context, query string, candidates []domain.ScoredChunk, topN int) ([]domain.ScoredChunk, error) {
	if len(candidates) == 0 {
		return []domain.ScoredChunk{}, nil
	}
	if topN <= 0 {
		topN = len(candidates)
	}

	qset := tokenSet(query)

	ranked := make([]domain.ScoredChunk, len(candidates))
	for i, c := range candidates {
		ranked[i] = c
		ranked[i].Score = ochiai(qset, c.Metadata.Text)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Metadata.ChunkIndex < ranked[j].Metadata.ChunkIndex
	})

	if len(ranked) > topN {
		ranked = ranked[:topN]
	}
	return ranked, nil
}

// Name identifies the reranker for logging.
func (r *Reranker) Name() string {
	return "lexical"
}

func tokenSet(s string) map[string]struct{} {
	tokens := wordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// ochiai computes |A∩B| / sqrt(|A|·|B|) over the query token set and
// the text's token set.
func ochiai(qset map[string]struct{}, text string) float64 {
	toks := wordRe.FindAllString(strings.ToLower(text), -1)
	seen := make(map[string]struct{}, len(toks))
	inter := 0
	for _, t := range toks {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := qset[t]; ok {
			inter++
		}
	}
	if len(qset) == 0 || len(seen) == 0 {
		return 0
	}
	return float64(inter) / math.Sqrt(float64(len(qset))*float64(len(seen)))
}
