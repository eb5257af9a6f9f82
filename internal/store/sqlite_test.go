package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korody/persona-ai-sub001/internal/model"
)

const testDims = 3

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func intPtr(v int) *int { return &v }

func seedCatalog(t *testing.T, s *SQLiteStore) {
	t.Helper()
	_, err := s.Import(context.Background(), &Catalog{
		Courses: []model.Course{
			{ID: "basics", Title: "Qi Gong Basics", Enabled: true},
			{ID: "advanced", Title: "Advanced Flows", Enabled: true},
		},
		Exercises: []model.Exercise{
			{ID: "ex-back", CourseID: "basics", Title: "Kidney Rub", URL: "https://v/1", ElementTag: "water", Level: "Beginner",
				DurationMinutes: 8, Indications: []string{"Back Pain", "fatigue"}, Embedding: []float32{1, 0, 0}, Enabled: true},
			{ID: "ex-sleep", CourseID: "basics", Title: "Evening Calm", URL: "https://v/2", ElementTag: "fire", Level: "beginner",
				DurationMinutes: 5, Indications: []string{"insomnia"}, Embedding: []float32{0, 1, 0}, Enabled: true},
			{ID: "ex-flow", CourseID: "advanced", Title: "Water Flow", URL: "https://v/3", ElementTag: "WATER", Level: "advanced",
				DurationMinutes: 20, Indications: []string{"back pain", "anxiety", "fatigue"}, Embedding: []float32{0.9, 0.1, 0}, Enabled: true},
			{ID: "ex-off", CourseID: "basics", Title: "Retired", URL: "https://v/4", Level: "beginner",
				DurationMinutes: 1, Indications: []string{"back pain"}, Enabled: false},
		},
		Documents: []Document{{
			ID: "doc-1", Scope: "main",
			Chunks: []model.KnowledgeChunk{
				{ID: "k-a", Content: "water chunk", ElementTag: "WATER", Embedding: []float32{1, 0, 0}},
				{ID: "k-b", Content: "fire chunk", ElementTag: "FIRE", Embedding: []float32{0.8, 0.6, 0}},
				{ID: "k-c", Content: "unrelated", Embedding: []float32{0, 0, 1}},
			},
		}},
		Examples: []model.ConversationExample{
			{ID: "e-1", Scope: "main", UserMessage: "my back hurts", AssistantMessage: "try the kidney rub", Active: true, Embedding: []float32{1, 0, 0}},
			{ID: "e-2", Scope: "main", UserMessage: "inactive", AssistantMessage: "x", Active: false, Embedding: []float32{1, 0, 0}},
		},
	}, testDims)
	require.NoError(t, err)
}

func TestSearchKnowledge_ThresholdAndOrder(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	got, err := s.SearchKnowledge(ctx, []float32{1, 0, 0}, "main", 0.5, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "k-a", got[0].Chunk.ID)
	assert.Equal(t, "k-b", got[1].Chunk.ID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.InDelta(t, 0.8, got[1].Similarity, 1e-6)
	assert.Equal(t, model.Water, got[0].Chunk.ElementTag)

	capped, err := s.SearchKnowledge(ctx, []float32{1, 0, 0}, "main", 0.5, 1)
	require.NoError(t, err)
	require.Len(t, capped, 1)
	assert.Equal(t, "k-a", capped[0].Chunk.ID)

	other, err := s.SearchKnowledge(ctx, []float32{1, 0, 0}, "elsewhere", 0, 10)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestSearchKnowledge_Deterministic(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	first, err := s.SearchKnowledge(ctx, []float32{0.5, 0.5, 0.2}, "main", -1, 10)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := s.SearchKnowledge(ctx, []float32{0.5, 0.5, 0.2}, "main", -1, 10)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestReplaceDocumentChunks(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	_, err := s.Import(ctx, &Catalog{Documents: []Document{{
		ID: "doc-1", Scope: "main",
		Chunks: []model.KnowledgeChunk{{Content: "rewritten", Embedding: []float32{1, 0, 0}}},
	}}}, testDims)
	require.NoError(t, err)

	got, err := s.SearchKnowledge(ctx, []float32{1, 0, 0}, "main", -1, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "rewritten", got[0].Chunk.Content)
	assert.Equal(t, 0, got[0].Chunk.ChunkIndex)
}

func TestSearchExamples_ActiveOnly(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)

	got, err := s.SearchExamples(context.Background(), []float32{1, 0, 0}, "main", 0.4, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "e-1", got[0].Example.ID)
}

func TestExercisesByIndications(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	got, err := s.ExercisesByIndications(ctx, []string{"back pain", "fatigue"}, 3)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// both overlap twice; id breaks the tie
	assert.Equal(t, "ex-back", got[0].ID)
	assert.Equal(t, "ex-flow", got[1].ID)

	none, err := s.ExercisesByIndications(ctx, nil, 3)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestIntroductoryAndElement(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	intro, err := s.IntroductoryExercises(ctx, 3)
	require.NoError(t, err)
	require.Len(t, intro, 2)
	assert.Equal(t, "ex-sleep", intro[0].ID, "shortest first")
	assert.Equal(t, "ex-back", intro[1].ID)

	water, err := s.ExercisesByElement(ctx, model.Water, 3)
	require.NoError(t, err)
	require.Len(t, water, 2)
	assert.Equal(t, "ex-back", water[0].ID)
}

func TestSetCourseEnabled_Cascades(t *testing.T) {
	s := newTestStore(t)
	seedCatalog(t, s)
	ctx := context.Background()

	n, err := s.SetCourseEnabled(ctx, "advanced", false)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	sem, err := s.SearchExercises(ctx, []float32{0.9, 0.1, 0}, 0.6, 3)
	require.NoError(t, err)
	for _, m := range sem {
		assert.NotEqual(t, "ex-flow", m.Exercise.ID)
	}

	byInd, err := s.ExercisesByIndications(ctx, []string{"anxiety"}, 3)
	require.NoError(t, err)
	assert.Empty(t, byInd)

	_, err = s.SetCourseEnabled(ctx, "missing", false)
	assert.Error(t, err)
}

func TestLatestProfile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec, err := s.LatestProfile(ctx, "nobody")
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = s.Import(ctx, &Catalog{Profiles: []ProfileInput{
		{ID: "p-old", UserID: "u1", PrimaryElement: "FIRE", ElementScores: map[string]int{"FIRE": 3}},
	}}, testDims)
	require.NoError(t, err)
	time.Sleep(1100 * time.Millisecond)
	_, err = s.Import(ctx, &Catalog{Profiles: []ProfileInput{
		{ID: "p-new", UserID: "u1", PrimaryElement: "WATER", ElementScores: map[string]int{"WATER": 4},
			Intensity: intPtr(3), Urgency: intPtr(2), Quadrant: intPtr(1)},
	}}, testDims)
	require.NoError(t, err)

	rec, err = s.LatestProfile(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "p-new", rec.ID)
	assert.Equal(t, "WATER", rec.PrimaryElement)
	assert.Equal(t, 4, rec.ElementScores["WATER"])
	require.NotNil(t, rec.Quadrant)
	assert.Equal(t, 1, *rec.Quadrant)
}

func TestLatestProfile_CorruptScoresDropped(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, raw := range []string{`{"WATER":4,"FIRE":"high","EARTH":5}`, `{"WATER":4`} {
		_, err := s.db.ExecContext(ctx, `DELETE FROM profiles`)
		require.NoError(t, err)
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO profiles (id, user_id, primary_element, element_scores, created_at)
			VALUES ('p1', 'u1', 'WATER', ?, ?)`, raw, time.Now().Unix())
		require.NoError(t, err)

		rec, err := s.LatestProfile(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Nil(t, rec.ElementScores, raw)
	}
}

func TestCampaignsAndProducts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	_, err := s.Import(ctx, &Catalog{
		Campaigns: []model.Campaign{
			{ID: "x", Scope: "main", Name: "Expired", Priority: 10, StartsAt: now.Add(-72 * time.Hour), EndsAt: now.Add(-24 * time.Hour)},
			{ID: "y", Scope: "main", Name: "Live", Priority: 5, StartsAt: now.Add(-time.Hour), EndsAt: now.Add(time.Hour)},
		},
		Products: []model.Product{
			{ID: "p1", Scope: "main", Name: "Course", Available: true, TargetElement: "water"},
			{ID: "p2", Scope: "main", Name: "Gone", Available: false},
		},
	}, testDims)
	require.NoError(t, err)

	camps, err := s.CampaignsActiveAt(ctx, "main", now)
	require.NoError(t, err)
	require.Len(t, camps, 1)
	assert.Equal(t, "y", camps[0].ID)

	prods, err := s.AvailableProducts(ctx, "main")
	require.NoError(t, err)
	require.Len(t, prods, 1)
	assert.Equal(t, model.Water, prods[0].TargetElement)
}

func TestImportValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Import(ctx, &Catalog{Documents: []Document{{
		ID: "d", Scope: "main", Chunks: []model.KnowledgeChunk{{Content: "x", Embedding: []float32{1, 0}}},
	}}}, testDims)
	assert.ErrorContains(t, err, "dims")

	_, err = s.Import(ctx, &Catalog{Documents: []Document{{
		ID: "d", Scope: "main", Chunks: []model.KnowledgeChunk{{Content: "x", ElementTag: "AIR", Embedding: []float32{1, 0, 0}}},
	}}}, testDims)
	assert.ErrorContains(t, err, "unknown element")

	_, err = s.Import(ctx, &Catalog{Campaigns: []model.Campaign{{Scope: "main", Name: "bad"}}}, testDims)
	assert.Error(t, err)
}

func TestImport_OmittedFlagsAreLive(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw := `{
		"courses": [{"id": "basics", "title": "Basics"}],
		"exercises": [{"id": "i1", "course_id": "basics", "title": "Intro", "url": "https://v/i1",
			"level": "beginner", "duration_minutes": 5}],
		"examples": [{"id": "e1", "scope": "main", "user_message": "hi", "assistant_message": "hello",
			"embedding": [1, 0, 0]}],
		"products": [{"id": "p1", "scope": "main", "name": "Course"}]
	}`
	var c Catalog
	require.NoError(t, json.Unmarshal([]byte(raw), &c))
	_, err := s.Import(ctx, &c, testDims)
	require.NoError(t, err)

	intro, err := s.IntroductoryExercises(ctx, 3)
	require.NoError(t, err)
	require.Len(t, intro, 1)
	assert.Equal(t, "i1", intro[0].ID)

	ex, err := s.SearchExamples(ctx, []float32{1, 0, 0}, "main", 0.5, 3)
	require.NoError(t, err)
	assert.Len(t, ex, 1)

	prods, err := s.AvailableProducts(ctx, "main")
	require.NoError(t, err)
	assert.Len(t, prods, 1)
}

func TestImport_ChunkIndexes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Import(ctx, &Catalog{Documents: []Document{{
		ID: "d", Scope: "main", Chunks: []model.KnowledgeChunk{
			{ID: "k5", Content: "five", ChunkIndex: 5, Embedding: []float32{1, 0, 0}},
			{ID: "k2", Content: "two", ChunkIndex: 2, Embedding: []float32{0, 1, 0}},
		},
	}}}, testDims)
	require.NoError(t, err)

	got, err := s.SearchKnowledge(ctx, []float32{1, 0, 0}, "main", 0.5, 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "k5", got[0].Chunk.ID)
	assert.Equal(t, 5, got[0].Chunk.ChunkIndex)

	_, err = s.Import(ctx, &Catalog{Documents: []Document{{
		ID: "d", Scope: "main", Chunks: []model.KnowledgeChunk{
			{Content: "a", ChunkIndex: 1, Embedding: []float32{1, 0, 0}},
			{Content: "b", ChunkIndex: 1, Embedding: []float32{0, 1, 0}},
		},
	}}}, testDims)
	assert.ErrorContains(t, err, "duplicate chunk_index")
}

func TestStats(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	s, err := NewSQLiteStore(dbPath)
	require.NoError(t, err)
	defer s.Close()
	seedCatalog(t, s)

	st, err := s.Stats(context.Background(), dbPath)
	require.NoError(t, err)
	assert.Equal(t, 3, st.KnowledgeChunks)
	assert.Equal(t, 1, st.Documents)
	assert.Equal(t, 4, st.Exercises)
	assert.Equal(t, 3, st.EnabledExercise)
	assert.Equal(t, 1, st.ActiveExamples)
	assert.NotZero(t, st.DBSizeBytes)
}
