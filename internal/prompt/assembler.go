// Package prompt turns the retrieved context of a turn into the instruction
// text handed to the language model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/korody/persona-ai-sub001/internal/model"
)

// SectionKind identifies a prompt section. The numeric order is the render order.
type SectionKind int

const (
	SectionPersona SectionKind = iota
	SectionDiagnostic
	SectionProductRules
	SectionKnowledge
	SectionExercises
	SectionMarketing
	SectionExamples
	SectionClosing
)

// Order is the fixed section sequence.
var Order = []SectionKind{
	SectionPersona,
	SectionDiagnostic,
	SectionProductRules,
	SectionKnowledge,
	SectionExercises,
	SectionMarketing,
	SectionExamples,
	SectionClosing,
}

func (k SectionKind) String() string {
	switch k {
	case SectionPersona:
		return "persona"
	case SectionDiagnostic:
		return "diagnostic"
	case SectionProductRules:
		return "product_rules"
	case SectionKnowledge:
		return "knowledge"
	case SectionExercises:
		return "exercises"
	case SectionMarketing:
		return "marketing"
	case SectionExamples:
		return "examples"
	case SectionClosing:
		return "closing"
	default:
		return fmt.Sprintf("section(%d)", int(k))
	}
}

// Section is one rendered block.
type Section struct {
	Kind  SectionKind
	Title string
	Body  string
}

// Input is everything retrieved for a turn.
type Input struct {
	Profile        *model.DiagnosticProfile
	Knowledge      []model.KnowledgeHit
	Examples       []model.ExampleHit
	Recommendation model.Recommendation
	Marketing      model.MarketingBlock
}

// Templates holds the static texts. Empty fields fall back to the defaults.
type Templates struct {
	Persona      string
	ProductRules string
	Closing      string
}

// Assembler renders sections in Order. It is safe for concurrent use.
type Assembler struct {
	tpl Templates
}

func NewAssembler(tpl Templates) *Assembler {
	if tpl.Persona == "" {
		tpl.Persona = DefaultPersona
	}
	if tpl.ProductRules == "" {
		tpl.ProductRules = DefaultProductRules
	}
	if tpl.Closing == "" {
		tpl.Closing = DefaultClosing
	}
	return &Assembler{tpl: tpl}
}

// Sections builds the sections that appear for in, in render order. The
// exercise and marketing sections are left out when they have nothing to say.
func (a *Assembler) Sections(in Input) []Section {
	out := make([]Section, 0, len(Order))
	for _, kind := range Order {
		s, ok := a.build(kind, in)
		if ok {
			out = append(out, s)
		}
	}
	return out
}

// Assemble renders the full instruction text. Nothing is truncated.
func (a *Assembler) Assemble(in Input) string {
	parts := lo.Map(a.Sections(in), func(s Section, _ int) string { return render(s) })
	return strings.Join(parts, "\n\n")
}

func render(s Section) string {
	if s.Title == "" {
		return s.Body
	}
	return "## " + s.Title + "\n" + s.Body
}

func (a *Assembler) build(kind SectionKind, in Input) (Section, bool) {
	switch kind {
	case SectionPersona:
		return Section{Kind: kind, Body: a.tpl.Persona}, true
	case SectionDiagnostic:
		return Section{Kind: kind, Title: "Diagnostic profile", Body: diagnosticBody(in.Profile)}, true
	case SectionProductRules:
		return Section{Kind: kind, Title: "Product rules", Body: a.tpl.ProductRules}, true
	case SectionKnowledge:
		return Section{Kind: kind, Title: "Knowledge base", Body: knowledgeBody(in.Knowledge)}, true
	case SectionExercises:
		if in.Recommendation.Empty() {
			return Section{}, false
		}
		return Section{Kind: kind, Title: "Recommended exercises", Body: exercisesBody(in.Recommendation)}, true
	case SectionMarketing:
		if in.Marketing.Empty() {
			return Section{}, false
		}
		return Section{Kind: kind, Title: "Current offers", Body: marketingBody(in.Marketing)}, true
	case SectionExamples:
		return Section{Kind: kind, Title: "Reference conversations", Body: examplesBody(in.Examples)}, true
	case SectionClosing:
		return Section{Kind: kind, Body: a.tpl.Closing}, true
	default:
		return Section{}, false
	}
}

func diagnosticBody(p *model.DiagnosticProfile) string {
	if p == nil {
		return NoProfileBlock
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Primary element: %s (score %d)\n", p.PrimaryElement.Label(), p.PrimaryScore())

	secondary := lo.Map(p.SecondaryElements(), func(e model.Element, _ int) string { return e.Label() })
	if len(secondary) == 0 {
		b.WriteString("Secondary elements: none\n")
	} else {
		fmt.Fprintf(&b, "Secondary elements: %s\n", strings.Join(secondary, ", "))
	}

	scores := lo.Map(model.Elements, func(e model.Element, _ int) string {
		return fmt.Sprintf("%s %d", e.Label(), p.ElementScores[e])
	})
	fmt.Fprintf(&b, "Element scores: %s\n", strings.Join(scores, ", "))
	fmt.Fprintf(&b, "Intensity: %d/5. Urgency: %d/5. Quadrant: %d.\n", p.Intensity, p.Urgency, p.Quadrant)
	if p.ProfileLabel != "" {
		fmt.Fprintf(&b, "Profile: %s\n", p.ProfileLabel)
	}
	if p.ArchetypeLabel != "" {
		fmt.Fprintf(&b, "Archetype: %s\n", p.ArchetypeLabel)
	}
	b.WriteString(profileGuidance)
	return b.String()
}

func knowledgeBody(hits []model.KnowledgeHit) string {
	if len(hits) == 0 {
		return NoKnowledgeNote
	}
	var b strings.Builder
	for i, h := range hits {
		if i > 0 {
			b.WriteString("\n\n")
		}
		tag := "untagged"
		if h.Chunk.ElementTag != "" {
			tag = h.Chunk.ElementTag.Label()
		}
		fmt.Fprintf(&b, "[%d] (%s, %s, similarity %.2f)\n%s", i+1, h.Tier, tag, h.Similarity, strings.TrimSpace(h.Chunk.Content))
	}
	return b.String()
}

func exercisesBody(r model.Recommendation) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Selected by: %s", r.Method)
	if len(r.Symptoms) > 0 && r.Method == model.MethodSymptoms {
		fmt.Fprintf(&b, " (matched: %s)", strings.Join(r.Symptoms, ", "))
	}
	b.WriteString("\n")
	for _, e := range r.Exercises {
		fmt.Fprintf(&b, "- %s", e.Title)
		var meta []string
		if e.DurationMinutes > 0 {
			meta = append(meta, fmt.Sprintf("%d min", e.DurationMinutes))
		}
		if e.Level != "" {
			meta = append(meta, e.Level)
		}
		if e.ElementTag != "" {
			meta = append(meta, e.ElementTag.Label())
		}
		if len(meta) > 0 {
			fmt.Fprintf(&b, " (%s)", strings.Join(meta, ", "))
		}
		fmt.Fprintf(&b, ": %s\n", e.URL)
		if len(e.Benefits) > 0 {
			fmt.Fprintf(&b, "  Benefits: %s\n", strings.Join(e.Benefits, ", "))
		}
		if len(e.Contraindications) > 0 {
			fmt.Fprintf(&b, "  Avoid if: %s\n", strings.Join(e.Contraindications, ", "))
		}
	}
	b.WriteString(exerciseGuidance)
	return b.String()
}

func marketingBody(m model.MarketingBlock) string {
	var b strings.Builder
	if c := m.Campaign; c != nil {
		fmt.Fprintf(&b, "Campaign: %s\n", c.Name)
		if c.Description != "" {
			fmt.Fprintf(&b, "%s\n", c.Description)
		}
		if c.CallToAction != "" {
			fmt.Fprintf(&b, "Call to action: %s\n", c.CallToAction)
		}
		if c.URL != "" {
			fmt.Fprintf(&b, "Link: %s\n", c.URL)
		}
		fmt.Fprintf(&b, "Valid until: %s\n", c.EndsAt.Format("2006-01-02"))
	}
	if len(m.Products) > 0 {
		b.WriteString("Products:\n")
		for _, p := range m.Products {
			fmt.Fprintf(&b, "- %s", p.Name)
			if p.Type != "" {
				fmt.Fprintf(&b, " [%s]", p.Type)
			}
			if p.PriceCents > 0 {
				fmt.Fprintf(&b, " %s", formatPrice(p.PriceCents))
			}
			if link := lo.CoalesceOrEmpty(p.CheckoutURL, p.URL); link != "" {
				fmt.Fprintf(&b, ": %s", link)
			}
			b.WriteString("\n")
			if p.Description != "" {
				fmt.Fprintf(&b, "  %s\n", p.Description)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func examplesBody(examples []model.ExampleHit) string {
	if len(examples) == 0 {
		return NoExamplesNote
	}
	var b strings.Builder
	for i, ex := range examples {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "Example %d\nUser: %s\nAssistant: %s", i+1,
			strings.TrimSpace(ex.Example.UserMessage), strings.TrimSpace(ex.Example.AssistantMessage))
	}
	return b.String()
}

func formatPrice(cents int) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
