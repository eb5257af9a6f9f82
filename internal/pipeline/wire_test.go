package pipeline

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korody/persona-ai-sub001/internal/config"
	"github.com/korody/persona-ai-sub001/internal/embedding"
	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/model"
	"github.com/korody/persona-ai-sub001/internal/store"
)

type axisEmbedder struct{}

func (axisEmbedder) Embed(ctx context.Context, text string) (embedding.Vector, error) {
	return embedding.Vector{1, 0, 0}, nil
}

func (axisEmbedder) Dims() int { return 3 }

func intPtr(v int) *int { return &v }

func seededStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "e2e.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	now := time.Now().UTC()
	ex := func(id string, minutes int) model.Exercise {
		return model.Exercise{ID: id, CourseID: "basics", Title: "Intro " + id, URL: "https://v/" + id,
			Level: "beginner", DurationMinutes: minutes, Enabled: true}
	}
	_, err = s.Import(context.Background(), &store.Catalog{
		Courses:   []model.Course{{ID: "basics", Title: "Basics", Enabled: true}},
		Exercises: []model.Exercise{ex("i4", 20), ex("i2", 6), ex("i1", 5), ex("i3", 12)},
		Documents: []store.Document{{ID: "doc", Scope: "main", Chunks: []model.KnowledgeChunk{
			{ID: "A", Content: "chunk A", ElementTag: "WATER", Embedding: []float32{0.31, 0.9507, 0}},
			{ID: "B", Content: "chunk B", ElementTag: "FIRE", Embedding: []float32{0.55, 0.8352, 0}},
			{ID: "C", Content: "chunk C", ElementTag: "WATER", Embedding: []float32{0.40, 0.9165, 0}},
		}}},
		Campaigns: []model.Campaign{
			{ID: "X", Scope: "main", Name: "Expired promo", Priority: 10, StartsAt: now.AddDate(0, 0, -10), EndsAt: now.AddDate(0, 0, -1)},
			{ID: "Y", Scope: "main", Name: "Live promo", Priority: 5, StartsAt: now.AddDate(0, 0, -1), EndsAt: now.AddDate(0, 0, 3)},
		},
		Profiles: []store.ProfileInput{{
			ID: "p1", UserID: "u1", PrimaryElement: "WATER",
			ElementScores: map[string]int{"WATER": 4, "FIRE": 1, "WOOD": 2, "EARTH": 0, "METAL": 1},
			Intensity:     intPtr(2), Urgency: intPtr(1), Quadrant: intPtr(1),
		}},
	}, 3)
	require.NoError(t, err)
	return s
}

func testConfig() *config.Config {
	return &config.Config{
		Embedding: config.EmbeddingConfig{Dims: 3},
		Retrieval: config.DefaultRetrieval(),
		Timeouts:  config.DefaultTimeouts(),
	}
}

func knowledgeIDs(hits []model.KnowledgeHit) []string {
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.Chunk.ID
	}
	return out
}

func TestNewDefault_EndToEnd(t *testing.T) {
	s := seededStore(t)
	b := NewDefault(s, axisEmbedder{}, testConfig(), logger.Nop())

	bundle, err := b.Build(context.Background(), Turn{UserID: "u1", Scope: "main", Text: "I want to practice qi gong"})
	require.NoError(t, err)

	require.NotNil(t, bundle.Profile)
	assert.Equal(t, []string{"C", "A", "B"}, knowledgeIDs(bundle.Knowledge))

	assert.Equal(t, model.MethodGeneric, bundle.Recommendation.Method)
	require.Len(t, bundle.Recommendation.Exercises, 3)
	assert.Equal(t, "i1", bundle.Recommendation.Exercises[0].ID)
	assert.NotContains(t, bundle.Recommendation.Trace, model.MethodSemantic)

	require.NotNil(t, bundle.Marketing.Campaign)
	assert.Equal(t, "Y", bundle.Marketing.Campaign.ID)

	assert.True(t, strings.Index(bundle.Prompt, "chunk C") < strings.Index(bundle.Prompt, "chunk A"))
	assert.Contains(t, bundle.Prompt, "Campaign: Live promo")
	assert.NotContains(t, bundle.Prompt, "Expired promo")
}

func TestNewDefault_AnonymousTurn(t *testing.T) {
	s := seededStore(t)
	b := NewDefault(s, axisEmbedder{}, testConfig(), logger.Nop())

	bundle, err := b.Build(context.Background(), Turn{Scope: "main", Text: "tell me about the seasons"})
	require.NoError(t, err)

	assert.Nil(t, bundle.Profile)
	assert.Equal(t, []string{"B", "C", "A"}, knowledgeIDs(bundle.Knowledge))
	assert.Equal(t, model.MethodNone, bundle.Recommendation.Method)
	assert.NotContains(t, bundle.Prompt, "## Recommended exercises")
}
