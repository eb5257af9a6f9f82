package model

import (
	"bytes"
	"encoding/json"
	"time"
)

// KnowledgeChunk is an embedded fragment of a source document.
// A document's chunks are replaced as a set; a chunk is never edited in place.
type KnowledgeChunk struct {
	ID         string    `json:"id"`
	Scope      string    `json:"scope"`
	Content    string    `json:"content"`
	Embedding  []float32 `json:"embedding,omitempty"`
	ElementTag Element   `json:"element_tag,omitempty"`
	DocumentID string    `json:"document_id"`
	ChunkIndex int       `json:"chunk_index"`
}

// ConversationExample is a few-shot user/assistant exchange.
type ConversationExample struct {
	ID               string    `json:"id"`
	Scope            string    `json:"scope"`
	UserMessage      string    `json:"user_message"`
	AssistantMessage string    `json:"assistant_message"`
	Tags             []string  `json:"tags,omitempty"`
	Active           bool      `json:"active"`
	SortOrder        int       `json:"sort_order"`
	Embedding        []float32 `json:"embedding,omitempty"`
}

// Course groups exercises. Disabling a course disables every exercise under it.
type Course struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Enabled bool   `json:"enabled"`
}

// Exercise is a recommendable practice video.
type Exercise struct {
	ID                string    `json:"id"`
	CourseID          string    `json:"course_id"`
	Title             string    `json:"title"`
	URL               string    `json:"url"`
	ElementTag        Element   `json:"element_tag,omitempty"`
	Level             string    `json:"level"`
	DurationMinutes   int       `json:"duration_minutes"`
	Benefits          []string  `json:"benefits,omitempty"`
	Indications       []string  `json:"indications,omitempty"`
	Contraindications []string  `json:"contraindications,omitempty"`
	Embedding         []float32 `json:"embedding,omitempty"`
	Enabled           bool      `json:"enabled"`
}

// LevelBeginner marks exercises that make up the introductory set.
const LevelBeginner = "beginner"

// Campaign is a time-boxed promotion.
type Campaign struct {
	ID           string    `json:"id"`
	Scope        string    `json:"scope"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	CallToAction string    `json:"call_to_action"`
	URL          string    `json:"url"`
	StartsAt     time.Time `json:"starts_at"`
	EndsAt       time.Time `json:"ends_at"`
	Priority     int       `json:"priority"`
}

// ActiveAt reports whether now falls inside [StartsAt, EndsAt).
func (c *Campaign) ActiveAt(now time.Time) bool {
	return !now.Before(c.StartsAt) && now.Before(c.EndsAt)
}

// Product is an offer that may be mentioned in conversation.
type Product struct {
	ID            string  `json:"id"`
	Scope         string  `json:"scope"`
	Name          string  `json:"name"`
	Type          string  `json:"type"`
	Description   string  `json:"description"`
	PriceCents    int     `json:"price_cents"`
	URL           string  `json:"url"`
	CheckoutURL   string  `json:"checkout_url,omitempty"`
	TargetElement Element `json:"target_element,omitempty"`
	Available     bool    `json:"available"`
	Featured      bool    `json:"featured"`
}

// Catalog rows are live unless the document says otherwise: a missing
// enabled, active or available field decodes as true. Unknown fields are
// rejected, matching the import decoder.

func (c *Course) UnmarshalJSON(b []byte) error {
	type plain Course
	v := plain{Enabled: true}
	if err := decodeStrict(b, &v); err != nil {
		return err
	}
	*c = Course(v)
	return nil
}

func (e *Exercise) UnmarshalJSON(b []byte) error {
	type plain Exercise
	v := plain{Enabled: true}
	if err := decodeStrict(b, &v); err != nil {
		return err
	}
	*e = Exercise(v)
	return nil
}

func (x *ConversationExample) UnmarshalJSON(b []byte) error {
	type plain ConversationExample
	v := plain{Active: true}
	if err := decodeStrict(b, &v); err != nil {
		return err
	}
	*x = ConversationExample(v)
	return nil
}

func (p *Product) UnmarshalJSON(b []byte) error {
	type plain Product
	v := plain{Available: true}
	if err := decodeStrict(b, &v); err != nil {
		return err
	}
	*p = Product(v)
	return nil
}

func decodeStrict(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
