package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/korody/persona-ai-sub001/internal/model"
)

// Catalog is the JSON document accepted by Import.
type Catalog struct {
	Courses   []model.Course              `json:"courses,omitempty"`
	Exercises []model.Exercise            `json:"exercises,omitempty"`
	Documents []Document                  `json:"documents,omitempty"`
	Examples  []model.ConversationExample `json:"examples,omitempty"`
	Campaigns []model.Campaign            `json:"campaigns,omitempty"`
	Products  []model.Product             `json:"products,omitempty"`
	Profiles  []ProfileInput              `json:"profiles,omitempty"`
}

// Document is a source document whose chunks replace any previously stored set.
type Document struct {
	ID     string                 `json:"id"`
	Scope  string                 `json:"scope"`
	Chunks []model.KnowledgeChunk `json:"chunks"`
}

// ProfileInput is an assessment result as produced by the assessment service.
// It is stored as-is; malformed records are filtered on read.
type ProfileInput struct {
	ID             string         `json:"id,omitempty"`
	UserID         string         `json:"user_id"`
	PrimaryElement string         `json:"primary_element,omitempty"`
	ElementScores  map[string]int `json:"element_scores,omitempty"`
	Intensity      *int           `json:"intensity,omitempty"`
	Urgency        *int           `json:"urgency,omitempty"`
	Quadrant       *int           `json:"quadrant,omitempty"`
	ProfileLabel   string         `json:"profile_label,omitempty"`
	ArchetypeLabel string         `json:"archetype_label,omitempty"`
}

// ImportResult counts what was written.
type ImportResult struct {
	Courses   int `json:"courses"`
	Exercises int `json:"exercises"`
	Chunks    int `json:"chunks"`
	Examples  int `json:"examples"`
	Campaigns int `json:"campaigns"`
	Products  int `json:"products"`
	Profiles  int `json:"profiles"`
}

// Validate checks the catalog against the embedding dimension. Tags are
// normalized in place so rows are stored in canonical form.
func (c *Catalog) Validate(dims int) error {
	for i := range c.Courses {
		if strings.TrimSpace(c.Courses[i].ID) == "" || strings.TrimSpace(c.Courses[i].Title) == "" {
			return fmt.Errorf("courses[%d]: id and title are required", i)
		}
	}
	for i := range c.Exercises {
		e := &c.Exercises[i]
		if e.CourseID == "" || strings.TrimSpace(e.Title) == "" || strings.TrimSpace(e.URL) == "" {
			return fmt.Errorf("exercises[%d]: course_id, title and url are required", i)
		}
		tag, err := optionalElement(string(e.ElementTag))
		if err != nil {
			return fmt.Errorf("exercises[%d]: %w", i, err)
		}
		e.ElementTag = tag
		e.Level = strings.ToLower(strings.TrimSpace(e.Level))
		e.Indications = canonicalList(e.Indications)
		e.Contraindications = canonicalList(e.Contraindications)
		if len(e.Embedding) > 0 && len(e.Embedding) != dims {
			return fmt.Errorf("exercises[%d]: embedding has %d dims, want %d", i, len(e.Embedding), dims)
		}
	}
	for i := range c.Documents {
		d := &c.Documents[i]
		if d.ID == "" || d.Scope == "" {
			return fmt.Errorf("documents[%d]: id and scope are required", i)
		}
		for j := range d.Chunks {
			ch := &d.Chunks[j]
			if strings.TrimSpace(ch.Content) == "" {
				return fmt.Errorf("documents[%d].chunks[%d]: content is required", i, j)
			}
			if len(ch.Embedding) != dims {
				return fmt.Errorf("documents[%d].chunks[%d]: embedding has %d dims, want %d", i, j, len(ch.Embedding), dims)
			}
			tag, err := optionalElement(string(ch.ElementTag))
			if err != nil {
				return fmt.Errorf("documents[%d].chunks[%d]: %w", i, j, err)
			}
			ch.ElementTag = tag
		}
		if err := chunkIndexes(d.Chunks); err != nil {
			return fmt.Errorf("documents[%d]: %w", i, err)
		}
	}
	for i := range c.Examples {
		ex := &c.Examples[i]
		if ex.Scope == "" || strings.TrimSpace(ex.UserMessage) == "" || strings.TrimSpace(ex.AssistantMessage) == "" {
			return fmt.Errorf("examples[%d]: scope, user_message and assistant_message are required", i)
		}
		if len(ex.Embedding) != dims {
			return fmt.Errorf("examples[%d]: embedding has %d dims, want %d", i, len(ex.Embedding), dims)
		}
	}
	for i := range c.Campaigns {
		cp := &c.Campaigns[i]
		if cp.Scope == "" || cp.Name == "" {
			return fmt.Errorf("campaigns[%d]: scope and name are required", i)
		}
		if !cp.EndsAt.After(cp.StartsAt) {
			return fmt.Errorf("campaigns[%d]: ends_at must be after starts_at", i)
		}
	}
	for i := range c.Products {
		p := &c.Products[i]
		if p.Scope == "" || p.Name == "" {
			return fmt.Errorf("products[%d]: scope and name are required", i)
		}
		tag, err := optionalElement(string(p.TargetElement))
		if err != nil {
			return fmt.Errorf("products[%d]: %w", i, err)
		}
		p.TargetElement = tag
	}
	for i := range c.Profiles {
		if c.Profiles[i].UserID == "" {
			return fmt.Errorf("profiles[%d]: user_id is required", i)
		}
	}
	return nil
}

// chunkIndexes numbers chunks by position when the document gives no indexes
// and otherwise requires the given ones to be distinct and non-negative.
func chunkIndexes(chunks []model.KnowledgeChunk) error {
	if lo.EveryBy(chunks, func(ch model.KnowledgeChunk) bool { return ch.ChunkIndex == 0 }) {
		for j := range chunks {
			chunks[j].ChunkIndex = j
		}
		return nil
	}
	seen := make(map[int]bool, len(chunks))
	for j, ch := range chunks {
		if ch.ChunkIndex < 0 {
			return fmt.Errorf("chunks[%d]: negative chunk_index %d", j, ch.ChunkIndex)
		}
		if seen[ch.ChunkIndex] {
			return fmt.Errorf("chunks[%d]: duplicate chunk_index %d", j, ch.ChunkIndex)
		}
		seen[ch.ChunkIndex] = true
	}
	return nil
}

func optionalElement(raw string) (model.Element, error) {
	if strings.TrimSpace(raw) == "" {
		return "", nil
	}
	return model.ParseElement(raw)
}

func canonicalList(items []string) []string {
	items = lo.Map(items, func(s string, _ int) string { return strings.ToLower(strings.TrimSpace(s)) })
	return lo.Uniq(lo.Compact(items))
}

// Import validates and writes a catalog in a single transaction.
func (s *SQLiteStore) Import(ctx context.Context, c *Catalog, dims int) (*ImportResult, error) {
	if err := c.Validate(dims); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res := &ImportResult{}

	for _, co := range c.Courses {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO courses (id, title, enabled) VALUES (?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET title = excluded.title, enabled = excluded.enabled`,
			co.ID, co.Title, boolInt(co.Enabled)); err != nil {
			return nil, fmt.Errorf("insert course: %w", err)
		}
		res.Courses++
	}

	for _, e := range c.Exercises {
		if e.ID == "" {
			e.ID = s.newID()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO exercises (id, course_id, title, url, element_tag, level, duration_minutes,
			                       benefits, indications, contraindications, embedding, enabled)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			e.ID, e.CourseID, e.Title, e.URL, nullString(string(e.ElementTag)), e.Level, e.DurationMinutes,
			encodeList(e.Benefits), encodeList(e.Indications), encodeList(e.Contraindications),
			encodeVector(e.Embedding), boolInt(e.Enabled)); err != nil {
			return nil, fmt.Errorf("insert exercise %q: %w", e.Title, err)
		}
		res.Exercises++
	}

	for _, d := range c.Documents {
		n, err := s.replaceDocumentChunks(ctx, tx, d)
		if err != nil {
			return nil, err
		}
		res.Chunks += n
	}

	for _, ex := range c.Examples {
		if ex.ID == "" {
			ex.ID = s.newID()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO examples (id, scope, user_message, assistant_message, tags, active, sort_order, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			ex.ID, ex.Scope, ex.UserMessage, ex.AssistantMessage, encodeList(ex.Tags), boolInt(ex.Active),
			ex.SortOrder, encodeVector(ex.Embedding)); err != nil {
			return nil, fmt.Errorf("insert example: %w", err)
		}
		res.Examples++
	}

	for _, cp := range c.Campaigns {
		if cp.ID == "" {
			cp.ID = s.newID()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO campaigns (id, scope, name, description, call_to_action, url, starts_at, ends_at, priority)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			cp.ID, cp.Scope, cp.Name, nullString(cp.Description), nullString(cp.CallToAction), nullString(cp.URL),
			cp.StartsAt.Unix(), cp.EndsAt.Unix(), cp.Priority); err != nil {
			return nil, fmt.Errorf("insert campaign %q: %w", cp.Name, err)
		}
		res.Campaigns++
	}

	for _, p := range c.Products {
		if p.ID == "" {
			p.ID = s.newID()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO products (id, scope, name, type, description, price_cents, url, checkout_url,
			                      target_element, available, featured)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.Scope, p.Name, nullString(p.Type), nullString(p.Description), p.PriceCents, nullString(p.URL),
			nullString(p.CheckoutURL), nullString(string(p.TargetElement)), boolInt(p.Available), boolInt(p.Featured)); err != nil {
			return nil, fmt.Errorf("insert product %q: %w", p.Name, err)
		}
		res.Products++
	}

	for _, p := range c.Profiles {
		if err := s.insertProfile(ctx, tx, model.ProfileRecord{
			ID:             p.ID,
			UserID:         p.UserID,
			PrimaryElement: p.PrimaryElement,
			ElementScores:  p.ElementScores,
			Intensity:      p.Intensity,
			Urgency:        p.Urgency,
			Quadrant:       p.Quadrant,
			ProfileLabel:   p.ProfileLabel,
			ArchetypeLabel: p.ArchetypeLabel,
		}); err != nil {
			return nil, err
		}
		res.Profiles++
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return res, nil
}

// replaceDocumentChunks drops every stored chunk of the document and writes
// the new set. Chunks are never updated in place.
func (s *SQLiteStore) replaceDocumentChunks(ctx context.Context, tx *sql.Tx, d Document) (int, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM knowledge_chunks WHERE document_id = ?`, d.ID); err != nil {
		return 0, fmt.Errorf("delete chunks of %q: %w", d.ID, err)
	}
	for _, ch := range d.Chunks {
		id := ch.ID
		if id == "" {
			id = s.newID()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO knowledge_chunks (id, scope, document_id, chunk_index, content, element_tag, embedding)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, d.Scope, d.ID, ch.ChunkIndex, ch.Content, nullString(string(ch.ElementTag)), encodeVector(ch.Embedding)); err != nil {
			return 0, fmt.Errorf("insert chunk %d of %q: %w", ch.ChunkIndex, d.ID, err)
		}
	}
	return len(d.Chunks), nil
}
