package retrieval

import (
	"context"
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/korody/persona-ai-sub001/internal/embedding"
	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/model"
	"github.com/korody/persona-ai-sub001/internal/store"
)

// KnowledgeSearcher is the vector search collaborator for knowledge chunks.
type KnowledgeSearcher interface {
	SearchKnowledge(ctx context.Context, query []float32, scope string, threshold float64, limit int) ([]store.KnowledgeMatch, error)
}

// SearchConfig is one call site's similarity threshold and result cap.
type SearchConfig struct {
	Threshold  float64
	MatchCount int
}

// KnowledgeQuery is the input of a knowledge retrieval.
type KnowledgeQuery struct {
	Text    string
	Scope   string
	Profile *model.DiagnosticProfile
}

// KnowledgeRetriever finds knowledge chunks and re-ranks them by profile tier.
type KnowledgeRetriever struct {
	embedder embedding.Embedder
	search   KnowledgeSearcher
	cfg      SearchConfig
	log      *logger.Logger
}

func NewKnowledgeRetriever(e embedding.Embedder, s KnowledgeSearcher, cfg SearchConfig, log *logger.Logger) *KnowledgeRetriever {
	return &KnowledgeRetriever{embedder: e, search: s, cfg: cfg, log: log.With("component", "knowledge_retriever")}
}

// Retrieve embeds the query, keeps the top MatchCount chunks at or above the
// threshold and orders them primary tier, secondary tier, general tier, each
// by similarity. With no profile every hit is general.
func (r *KnowledgeRetriever) Retrieve(ctx context.Context, q KnowledgeQuery) ([]model.KnowledgeHit, error) {
	vec, err := embedding.EmbedQuery(ctx, r.embedder, q.Text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	matches, err := r.search.SearchKnowledge(ctx, vec, q.Scope, r.cfg.Threshold, r.cfg.MatchCount)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}

	hits := make([]model.KnowledgeHit, len(matches))
	for i, m := range matches {
		hits[i] = model.KnowledgeHit{Chunk: m.Chunk, Similarity: m.Similarity, Tier: classify(m.Chunk.ElementTag, q.Profile)}
	}
	rankByTier(hits)

	r.log.Debug("knowledge retrieved",
		"scope", q.Scope,
		"hits", len(hits),
		"profile", q.Profile != nil,
		"primary", lo.CountBy(hits, func(h model.KnowledgeHit) bool { return h.Tier == model.TierPrimary }),
	)
	return hits, nil
}

func classify(tag model.Element, p *model.DiagnosticProfile) model.Tier {
	if p == nil || tag == "" {
		return model.TierGeneral
	}
	if tag == p.PrimaryElement {
		return model.TierPrimary
	}
	if lo.Contains(p.SecondaryElements(), tag) {
		return model.TierSecondary
	}
	return model.TierGeneral
}

// rankByTier sorts by tier, then similarity descending, then chunk id.
func rankByTier(hits []model.KnowledgeHit) {
	sort.SliceStable(hits, func(i, j int) bool {
		a, b := hits[i], hits[j]
		if a.Tier != b.Tier {
			return a.Tier < b.Tier
		}
		if a.Similarity != b.Similarity {
			return a.Similarity > b.Similarity
		}
		return a.Chunk.ID < b.Chunk.ID
	})
}
