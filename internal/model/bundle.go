package model

// Tier is the profile-relative rank class of a knowledge hit.
type Tier int

const (
	TierPrimary Tier = iota
	TierSecondary
	TierGeneral
)

func (t Tier) String() string {
	switch t {
	case TierPrimary:
		return "primary"
	case TierSecondary:
		return "secondary"
	default:
		return "general"
	}
}

// MarshalText renders the tier by name in JSON output.
func (t Tier) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// KnowledgeHit is a knowledge chunk matched for a query.
type KnowledgeHit struct {
	Chunk      KnowledgeChunk `json:"chunk"`
	Similarity float64        `json:"similarity"`
	Tier       Tier           `json:"tier"`
}

// ExampleHit is a few-shot example matched for a query.
type ExampleHit struct {
	Example    ConversationExample `json:"example"`
	Similarity float64             `json:"similarity"`
}

// RecommendMethod names the waterfall stage that produced a recommendation.
type RecommendMethod string

const (
	MethodSymptoms RecommendMethod = "symptoms"
	MethodGeneric  RecommendMethod = "generic"
	MethodSemantic RecommendMethod = "semantic"
	MethodElement  RecommendMethod = "element"
	MethodNone     RecommendMethod = "none"
)

// Recommendation is the terminal result of the exercise waterfall. Trace lists
// the stages that actually ran, in order.
type Recommendation struct {
	Method    RecommendMethod   `json:"method"`
	Exercises []Exercise        `json:"exercises"`
	Symptoms  []string          `json:"symptoms,omitempty"`
	Trace     []RecommendMethod `json:"trace,omitempty"`
}

// Empty reports whether the recommendation should be left out of the prompt.
func (r Recommendation) Empty() bool {
	return r.Method == MethodNone || len(r.Exercises) == 0
}

// MarketingBlock is the optional campaign and product context.
type MarketingBlock struct {
	Campaign *Campaign `json:"campaign,omitempty"`
	Products []Product `json:"products,omitempty"`
}

// Empty reports whether there is nothing to promote.
func (m MarketingBlock) Empty() bool {
	return m.Campaign == nil && len(m.Products) == 0
}

// ContextBundle carries everything retrieved for one chat turn plus the final prompt.
// It lives for a single turn and is never persisted.
type ContextBundle struct {
	Profile        *DiagnosticProfile `json:"profile,omitempty"`
	Knowledge      []KnowledgeHit     `json:"knowledge"`
	Examples       []ExampleHit       `json:"examples"`
	Recommendation Recommendation     `json:"recommendation"`
	Marketing      MarketingBlock     `json:"marketing"`
	Prompt         string             `json:"prompt"`
}
