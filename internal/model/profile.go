package model

import "time"

// SecondaryScoreThreshold is the score an element must exceed to count as secondary.
const SecondaryScoreThreshold = 2

// DiagnosticProfile is the normalized result of a user's latest health assessment.
type DiagnosticProfile struct {
	ID             string          `json:"id"`
	UserID         string          `json:"user_id"`
	PrimaryElement Element         `json:"primary_element"`
	ElementScores  map[Element]int `json:"element_scores"`
	Intensity      int             `json:"intensity"`
	Urgency        int             `json:"urgency"`
	Quadrant       int             `json:"quadrant"`
	ProfileLabel   string          `json:"profile_label,omitempty"`
	ArchetypeLabel string          `json:"archetype_label,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SecondaryElements returns every non-primary element scoring above
// SecondaryScoreThreshold, in canonical element order.
func (p *DiagnosticProfile) SecondaryElements() []Element {
	if p == nil {
		return nil
	}
	var out []Element
	for _, e := range Elements {
		if e == p.PrimaryElement {
			continue
		}
		if p.ElementScores[e] > SecondaryScoreThreshold {
			out = append(out, e)
		}
	}
	return out
}

// PrimaryScore is the score recorded for the primary element.
func (p *DiagnosticProfile) PrimaryScore() int {
	if p == nil {
		return 0
	}
	return p.ElementScores[p.PrimaryElement]
}

// ProfileRecord is a profile row as stored, before normalization.
// Fields are raw so a malformed record can be detected instead of half-used.
type ProfileRecord struct {
	ID             string
	UserID         string
	PrimaryElement string
	ElementScores  map[string]int
	Intensity      *int
	Urgency        *int
	Quadrant       *int
	ProfileLabel   string
	ArchetypeLabel string
	CreatedAt      time.Time
}
