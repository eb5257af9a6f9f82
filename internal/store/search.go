package store

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/korody/persona-ai-sub001/internal/embedding"
	"github.com/korody/persona-ai-sub001/internal/model"
)

// KnowledgeMatch is a knowledge chunk with its cosine similarity to the query.
type KnowledgeMatch struct {
	Chunk      model.KnowledgeChunk
	Similarity float64
}

// ExampleMatch is a conversation example with its cosine similarity to the query.
type ExampleMatch struct {
	Example    model.ConversationExample
	Similarity float64
}

// ExerciseMatch is an exercise with its cosine similarity to the query.
type ExerciseMatch struct {
	Exercise   model.Exercise
	Similarity float64
}

type scored[T any] struct {
	item T
	id   string
	sim  float64
}

// topMatches keeps candidates at or above threshold and returns at most limit of
// them, best first. Equal similarities fall back to id so repeated searches over
// the same rows come back in the same order.
func topMatches[T any](cands []scored[T], threshold float64, limit int) []scored[T] {
	kept := cands[:0]
	for _, c := range cands {
		if c.sim >= threshold {
			kept = append(kept, c)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].sim != kept[j].sim {
			return kept[i].sim > kept[j].sim
		}
		return kept[i].id < kept[j].id
	})
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
	}
	return kept
}

// SearchKnowledge scans every chunk in scope and returns those whose cosine
// similarity to query is at least threshold, best first, capped at limit.
func (s *SQLiteStore) SearchKnowledge(ctx context.Context, query []float32, scope string, threshold float64, limit int) ([]KnowledgeMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, document_id, chunk_index, content, element_tag, embedding
		FROM knowledge_chunks WHERE scope = ?`, scope)
	if err != nil {
		return nil, fmt.Errorf("query knowledge chunks: %w", err)
	}
	defer rows.Close()

	var cands []scored[model.KnowledgeChunk]
	for rows.Next() {
		var c model.KnowledgeChunk
		var tag sql.NullString
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Scope, &c.DocumentID, &c.ChunkIndex, &c.Content, &tag, &blob); err != nil {
			return nil, fmt.Errorf("scan knowledge chunk: %w", err)
		}
		c.ElementTag = model.Element(tag.String)
		c.Embedding = decodeVector(blob)
		cands = append(cands, scored[model.KnowledgeChunk]{item: c, id: c.ID, sim: embedding.CosineSimilarity(query, c.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate knowledge chunks: %w", err)
	}

	top := topMatches(cands, threshold, limit)
	out := make([]KnowledgeMatch, len(top))
	for i, t := range top {
		out[i] = KnowledgeMatch{Chunk: t.item, Similarity: t.sim}
	}
	return out, nil
}

// SearchExamples is SearchKnowledge over active conversation examples.
func (s *SQLiteStore) SearchExamples(ctx context.Context, query []float32, scope string, threshold float64, limit int) ([]ExampleMatch, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, scope, user_message, assistant_message, tags, active, sort_order, embedding
		FROM examples WHERE scope = ? AND active = 1`, scope)
	if err != nil {
		return nil, fmt.Errorf("query examples: %w", err)
	}
	defer rows.Close()

	var cands []scored[model.ConversationExample]
	for rows.Next() {
		var e model.ConversationExample
		var tags sql.NullString
		var blob []byte
		if err := rows.Scan(&e.ID, &e.Scope, &e.UserMessage, &e.AssistantMessage, &tags, &e.Active, &e.SortOrder, &blob); err != nil {
			return nil, fmt.Errorf("scan example: %w", err)
		}
		e.Tags = decodeList(tags)
		e.Embedding = decodeVector(blob)
		cands = append(cands, scored[model.ConversationExample]{item: e, id: e.ID, sim: embedding.CosineSimilarity(query, e.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate examples: %w", err)
	}

	top := topMatches(cands, threshold, limit)
	out := make([]ExampleMatch, len(top))
	for i, t := range top {
		out[i] = ExampleMatch{Example: t.item, Similarity: t.sim}
	}
	return out, nil
}

// SearchExercises runs similarity search over enabled exercises that carry an
// embedding. Exercises under a disabled course are never candidates.
func (s *SQLiteStore) SearchExercises(ctx context.Context, query []float32, threshold float64, limit int) ([]ExerciseMatch, error) {
	rows, err := s.db.QueryContext(ctx, exerciseSelect+`
		WHERE `+enabledClause+` AND e.embedding IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer rows.Close()

	list, err := scanExercises(rows)
	if err != nil {
		return nil, err
	}

	cands := make([]scored[model.Exercise], 0, len(list))
	for _, e := range list {
		cands = append(cands, scored[model.Exercise]{item: e, id: e.ID, sim: embedding.CosineSimilarity(query, e.Embedding)})
	}

	top := topMatches(cands, threshold, limit)
	out := make([]ExerciseMatch, len(top))
	for i, t := range top {
		out[i] = ExerciseMatch{Exercise: t.item, Similarity: t.sim}
	}
	return out, nil
}
