package retrieval

import (
	"context"
	"fmt"

	"github.com/korody/persona-ai-sub001/internal/embedding"
	"github.com/korody/persona-ai-sub001/internal/model"
	"github.com/korody/persona-ai-sub001/internal/store"
)

// DefaultExampleCount caps few-shot examples when the call site sets no cap.
const DefaultExampleCount = 3

// ExampleSearcher is the vector search collaborator for conversation examples.
type ExampleSearcher interface {
	SearchExamples(ctx context.Context, query []float32, scope string, threshold float64, limit int) ([]store.ExampleMatch, error)
}

// ExampleRetriever finds few-shot examples by similarity only.
type ExampleRetriever struct {
	embedder embedding.Embedder
	search   ExampleSearcher
	cfg      SearchConfig
}

func NewExampleRetriever(e embedding.Embedder, s ExampleSearcher, cfg SearchConfig) *ExampleRetriever {
	if cfg.MatchCount <= 0 {
		cfg.MatchCount = DefaultExampleCount
	}
	return &ExampleRetriever{embedder: e, search: s, cfg: cfg}
}

// Retrieve returns matching active examples, most similar first.
func (r *ExampleRetriever) Retrieve(ctx context.Context, text, scope string) ([]model.ExampleHit, error) {
	vec, err := embedding.EmbedQuery(ctx, r.embedder, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := r.search.SearchExamples(ctx, vec, scope, r.cfg.Threshold, r.cfg.MatchCount)
	if err != nil {
		return nil, fmt.Errorf("search examples: %w", err)
	}
	out := make([]model.ExampleHit, len(matches))
	for i, m := range matches {
		out[i] = model.ExampleHit{Example: m.Example, Similarity: m.Similarity}
	}
	return out, nil
}
