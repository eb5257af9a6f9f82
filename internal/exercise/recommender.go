// Package exercise recommends practice videos through an ordered waterfall of
// candidate strategies.
package exercise

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/korody/persona-ai-sub001/internal/embedding"
	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/model"
	"github.com/korody/persona-ai-sub001/internal/store"
)

// Store is the exercise catalog. Every method only returns exercises that are
// enabled under an enabled course.
type Store interface {
	ExercisesByIndications(ctx context.Context, symptoms []string, limit int) ([]model.Exercise, error)
	IntroductoryExercises(ctx context.Context, limit int) ([]model.Exercise, error)
	SearchExercises(ctx context.Context, query []float32, threshold float64, limit int) ([]store.ExerciseMatch, error)
	ExercisesByElement(ctx context.Context, element model.Element, limit int) ([]model.Exercise, error)
}

// Stage is a state of the waterfall.
type Stage int

const (
	StageSymptoms Stage = iota
	StageGeneric
	StageSemantic
	StageElement
	StageNone
)

// Method is the label recorded when the stage produces the result.
func (s Stage) Method() model.RecommendMethod {
	switch s {
	case StageSymptoms:
		return model.MethodSymptoms
	case StageGeneric:
		return model.MethodGeneric
	case StageSemantic:
		return model.MethodSemantic
	case StageElement:
		return model.MethodElement
	default:
		return model.MethodNone
	}
}

func (s Stage) String() string { return string(s.Method()) }

func (s Stage) next() Stage {
	if s >= StageNone {
		return StageNone
	}
	return s + 1
}

// Config holds the per-stage limits.
type Config struct {
	SemanticThreshold float64
	Limit             int
	// SemanticTimeout bounds the degradable stage; zero means the caller's deadline.
	SemanticTimeout time.Duration
}

// Request is one recommendation input.
type Request struct {
	Text    string
	Profile *model.DiagnosticProfile
}

// Recommender runs the waterfall. It holds no per-request state.
type Recommender struct {
	store    Store
	embedder embedding.Embedder
	cfg      Config
	log      *logger.Logger
}

func NewRecommender(s Store, e embedding.Embedder, cfg Config, log *logger.Logger) *Recommender {
	if cfg.Limit <= 0 {
		cfg.Limit = 3
	}
	return &Recommender{store: s, embedder: e, cfg: cfg, log: log.With("component", "exercise_recommender")}
}

// Recommend runs the stages in order and stops at the first one with results.
// Store failures in the symptoms, generic and element stages are returned;
// the semantic stage degrades to empty instead.
func (r *Recommender) Recommend(ctx context.Context, req Request) (model.Recommendation, error) {
	rec := model.Recommendation{Method: model.MethodNone}
	for stage := StageSymptoms; stage != StageNone; stage = stage.next() {
		rec.Trace = append(rec.Trace, stage.Method())
		exercises, err := r.run(ctx, stage, req, &rec)
		if err != nil {
			return model.Recommendation{Method: model.MethodNone, Trace: rec.Trace}, fmt.Errorf("%s stage: %w", stage, err)
		}
		if len(exercises) > 0 {
			rec.Method = stage.Method()
			rec.Exercises = lo.Slice(exercises, 0, r.cfg.Limit)
			r.log.Debug("exercises recommended", "method", rec.Method, "count", len(rec.Exercises))
			return rec, nil
		}
	}
	r.log.Debug("no exercise recommendation", "stages", len(rec.Trace))
	return rec, nil
}

func (r *Recommender) run(ctx context.Context, stage Stage, req Request, rec *model.Recommendation) ([]model.Exercise, error) {
	switch stage {
	case StageSymptoms:
		rec.Symptoms = DetectSymptoms(req.Text)
		if len(rec.Symptoms) == 0 {
			return nil, nil
		}
		return r.store.ExercisesByIndications(ctx, rec.Symptoms, r.cfg.Limit)
	case StageGeneric:
		if !IsGenericRequest(req.Text) {
			return nil, nil
		}
		return r.store.IntroductoryExercises(ctx, r.cfg.Limit)
	case StageSemantic:
		return r.semantic(ctx, req.Text), nil
	case StageElement:
		if req.Profile == nil {
			return nil, nil
		}
		return r.store.ExercisesByElement(ctx, req.Profile.PrimaryElement, r.cfg.Limit)
	default:
		return nil, nil
	}
}

// semantic never fails; errors and timeouts are logged as a degradation.
func (r *Recommender) semantic(ctx context.Context, text string) []model.Exercise {
	if r.cfg.SemanticTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.SemanticTimeout)
		defer cancel()
	}
	vec, err := embedding.EmbedQuery(ctx, r.embedder, text)
	if err != nil {
		r.log.Warn("exercise stage degraded to empty", "stage", StageSemantic.String(), "degraded", true, "error", err)
		return nil
	}
	matches, err := r.store.SearchExercises(ctx, vec, r.cfg.SemanticThreshold, r.cfg.Limit)
	if err != nil {
		r.log.Warn("exercise stage degraded to empty", "stage", StageSemantic.String(), "degraded", true, "error", err)
		return nil
	}
	return lo.Map(matches, func(m store.ExerciseMatch, _ int) model.Exercise { return m.Exercise })
}
