package pipeline

import (
	"github.com/korody/persona-ai-sub001/internal/config"
	"github.com/korody/persona-ai-sub001/internal/embedding"
	"github.com/korody/persona-ai-sub001/internal/exercise"
	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/marketing"
	"github.com/korody/persona-ai-sub001/internal/prompt"
	"github.com/korody/persona-ai-sub001/internal/retrieval"
	"github.com/korody/persona-ai-sub001/internal/store"
)

// NewDefault wires every stage to a single SQLite store. Each call site keeps
// its own threshold and cap from cfg.Retrieval.
func NewDefault(st *store.SQLiteStore, emb embedding.Embedder, cfg *config.Config, log *logger.Logger) *Builder {
	r := cfg.Retrieval
	return NewBuilder(Deps{
		Profiles: retrieval.NewProfileLoader(st, log),
		Knowledge: retrieval.NewKnowledgeRetriever(emb, st,
			retrieval.SearchConfig{Threshold: r.KnowledgeThreshold, MatchCount: r.KnowledgeMatchCount}, log),
		Examples: retrieval.NewExampleRetriever(emb, st,
			retrieval.SearchConfig{Threshold: r.ExampleThreshold, MatchCount: r.ExampleMatchCount}),
		Exercises: exercise.NewRecommender(st, emb,
			exercise.Config{SemanticThreshold: r.ExerciseThreshold, Limit: r.ExerciseLimit, SemanticTimeout: cfg.Timeouts.Semantic}, log),
		Marketing: marketing.NewProvider(st, r.ProductLimit, log),
		Assembler: prompt.NewAssembler(prompt.Templates{}),
	}, cfg.Timeouts, log)
}
