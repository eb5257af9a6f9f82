// Package pipeline builds the context bundle for one chat turn.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/korody/persona-ai-sub001/internal/config"
	"github.com/korody/persona-ai-sub001/internal/exercise"
	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/marketing"
	"github.com/korody/persona-ai-sub001/internal/model"
	"github.com/korody/persona-ai-sub001/internal/prompt"
	"github.com/korody/persona-ai-sub001/internal/retrieval"
)

// Stage names a retrieval step in errors and logs.
type Stage string

const (
	StageProfile   Stage = "profile"
	StageKnowledge Stage = "knowledge"
	StageExamples  Stage = "examples"
	StageExercises Stage = "exercises"
	StageMarketing Stage = "marketing"
)

// RetrievalError is an essential retrieval failure. The turn is aborted and
// the caller should offer a retry.
type RetrievalError struct {
	Stage Stage
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieval failed at %s: %v", e.Stage, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// ErrInvalidTurn is returned before any retrieval when the turn cannot be served.
var ErrInvalidTurn = errors.New("invalid turn")

type ProfileSource interface {
	Load(ctx context.Context, userID string) (*model.DiagnosticProfile, error)
}

type KnowledgeSource interface {
	Retrieve(ctx context.Context, q retrieval.KnowledgeQuery) ([]model.KnowledgeHit, error)
}

type ExampleSource interface {
	Retrieve(ctx context.Context, text, scope string) ([]model.ExampleHit, error)
}

type ExerciseSource interface {
	Recommend(ctx context.Context, req exercise.Request) (model.Recommendation, error)
}

type MarketingSource interface {
	Fetch(ctx context.Context, q marketing.Query) model.MarketingBlock
}

// Turn is one incoming chat message.
type Turn struct {
	UserID string `json:"user_id"`
	Scope  string `json:"scope"`
	Text   string `json:"text"`
}

// Deps are the collaborators of a Builder.
type Deps struct {
	Profiles  ProfileSource
	Knowledge KnowledgeSource
	Examples  ExampleSource
	Exercises ExerciseSource
	Marketing MarketingSource
	Assembler *prompt.Assembler
}

// Builder runs the retrieval fan-out and assembles the prompt.
type Builder struct {
	deps     Deps
	timeouts config.StageTimeouts
	log      *logger.Logger
}

func NewBuilder(deps Deps, timeouts config.StageTimeouts, log *logger.Logger) *Builder {
	if deps.Assembler == nil {
		deps.Assembler = prompt.NewAssembler(prompt.Templates{})
	}
	return &Builder{deps: deps, timeouts: timeouts, log: log.With("component", "pipeline")}
}

// Build loads the profile, runs knowledge, examples, exercises and marketing
// concurrently and assembles the prompt. Any essential failure cancels the
// remaining stages and returns a *RetrievalError.
func (b *Builder) Build(ctx context.Context, turn Turn) (*model.ContextBundle, error) {
	turn.Text = strings.TrimSpace(turn.Text)
	turn.Scope = strings.TrimSpace(turn.Scope)
	if turn.Text == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidTurn)
	}
	if turn.Scope == "" {
		return nil, fmt.Errorf("%w: scope is required", ErrInvalidTurn)
	}
	start := time.Now()

	profile, err := b.loadProfile(ctx, turn.UserID)
	if err != nil {
		b.log.Error("context build aborted", "stage", StageProfile, "user_id", turn.UserID, "error", err)
		return nil, err
	}

	bundle := &model.ContextBundle{Profile: profile}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		sctx, cancel := stageContext(gctx, b.timeouts.Knowledge)
		defer cancel()
		hits, err := b.deps.Knowledge.Retrieve(sctx, retrieval.KnowledgeQuery{Text: turn.Text, Scope: turn.Scope, Profile: profile})
		if err != nil {
			return &RetrievalError{Stage: StageKnowledge, Err: err}
		}
		bundle.Knowledge = hits
		return nil
	})

	g.Go(func() error {
		sctx, cancel := stageContext(gctx, b.timeouts.Examples)
		defer cancel()
		hits, err := b.deps.Examples.Retrieve(sctx, turn.Text, turn.Scope)
		if err != nil {
			return &RetrievalError{Stage: StageExamples, Err: err}
		}
		bundle.Examples = hits
		return nil
	})

	g.Go(func() error {
		sctx, cancel := stageContext(gctx, b.timeouts.Exercises)
		defer cancel()
		rec, err := b.deps.Exercises.Recommend(sctx, exercise.Request{Text: turn.Text, Profile: profile})
		if err != nil {
			return &RetrievalError{Stage: StageExercises, Err: err}
		}
		bundle.Recommendation = rec
		return nil
	})

	g.Go(func() error {
		sctx, cancel := stageContext(gctx, b.timeouts.Marketing)
		defer cancel()
		q := marketing.Query{Scope: turn.Scope, UserID: turn.UserID}
		if profile != nil {
			q.Element = profile.PrimaryElement
		}
		bundle.Marketing = b.deps.Marketing.Fetch(sctx, q)
		return nil
	})

	if err := g.Wait(); err != nil {
		var re *RetrievalError
		stage := Stage("unknown")
		if errors.As(err, &re) {
			stage = re.Stage
		}
		b.log.Error("context build aborted", "stage", stage, "user_id", turn.UserID, "error", err)
		return nil, err
	}

	bundle.Prompt = b.deps.Assembler.Assemble(prompt.Input{
		Profile:        bundle.Profile,
		Knowledge:      bundle.Knowledge,
		Examples:       bundle.Examples,
		Recommendation: bundle.Recommendation,
		Marketing:      bundle.Marketing,
	})

	b.log.Info("context built",
		"user_id", turn.UserID,
		"scope", turn.Scope,
		"profile", profile != nil,
		"knowledge", len(bundle.Knowledge),
		"examples", len(bundle.Examples),
		"exercise_method", bundle.Recommendation.Method,
		"marketing", !bundle.Marketing.Empty(),
		"prompt_chars", len(bundle.Prompt),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return bundle, nil
}

func (b *Builder) loadProfile(ctx context.Context, userID string) (*model.DiagnosticProfile, error) {
	sctx, cancel := stageContext(ctx, b.timeouts.Profile)
	defer cancel()
	p, err := b.deps.Profiles.Load(sctx, userID)
	if err != nil {
		return nil, &RetrievalError{Stage: StageProfile, Err: err}
	}
	return p, nil
}

// stageContext applies a stage budget; zero leaves the parent deadline alone.
func stageContext(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, d)
}
