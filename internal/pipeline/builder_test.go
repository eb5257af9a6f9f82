package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korody/persona-ai-sub001/internal/config"
	"github.com/korody/persona-ai-sub001/internal/exercise"
	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/marketing"
	"github.com/korody/persona-ai-sub001/internal/model"
	"github.com/korody/persona-ai-sub001/internal/prompt"
	"github.com/korody/persona-ai-sub001/internal/retrieval"
)

type fakeProfiles struct {
	profile *model.DiagnosticProfile
	err     error
}

func (f fakeProfiles) Load(ctx context.Context, userID string) (*model.DiagnosticProfile, error) {
	return f.profile, f.err
}

type fakeKnowledge struct {
	hits    []model.KnowledgeHit
	err     error
	block   bool
	gotProf atomic.Pointer[model.DiagnosticProfile]
	called  atomic.Bool
}

func (f *fakeKnowledge) Retrieve(ctx context.Context, q retrieval.KnowledgeQuery) ([]model.KnowledgeHit, error) {
	f.called.Store(true)
	f.gotProf.Store(q.Profile)
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.hits, f.err
}

type fakeExamples struct {
	hits  []model.ExampleHit
	err   error
	block bool
}

func (f *fakeExamples) Retrieve(ctx context.Context, text, scope string) ([]model.ExampleHit, error) {
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.hits, f.err
}

type fakeExercises struct {
	rec model.Recommendation
	err error
}

func (f *fakeExercises) Recommend(ctx context.Context, req exercise.Request) (model.Recommendation, error) {
	return f.rec, f.err
}

type fakeMarketing struct {
	block model.MarketingBlock
	gotEl atomic.Value
}

func (f *fakeMarketing) Fetch(ctx context.Context, q marketing.Query) model.MarketingBlock {
	f.gotEl.Store(q.Element)
	return f.block
}

func timeouts() config.StageTimeouts {
	return config.StageTimeouts{
		Profile:   time.Second,
		Knowledge: time.Second,
		Examples:  time.Second,
		Exercises: time.Second,
		Semantic:  500 * time.Millisecond,
		Marketing: time.Second,
	}
}

type harness struct {
	profiles  fakeProfiles
	knowledge *fakeKnowledge
	examples  *fakeExamples
	exercises *fakeExercises
	marketing *fakeMarketing
}

func newHarness() *harness {
	return &harness{
		knowledge: &fakeKnowledge{hits: []model.KnowledgeHit{{Chunk: model.KnowledgeChunk{ID: "k1", Content: "Breathe low."}, Similarity: 0.5}}},
		examples:  &fakeExamples{},
		exercises: &fakeExercises{rec: model.Recommendation{Method: model.MethodNone}},
		marketing: &fakeMarketing{},
	}
}

func (h *harness) builder(t timeoutsFn) *Builder {
	return NewBuilder(Deps{
		Profiles:  h.profiles,
		Knowledge: h.knowledge,
		Examples:  h.examples,
		Exercises: h.exercises,
		Marketing: h.marketing,
	}, t(), logger.Nop())
}

type timeoutsFn func() config.StageTimeouts

func turn() Turn { return Turn{UserID: "u1", Scope: "main", Text: "back pain"} }

func TestBuild_ScenarioNoProfile(t *testing.T) {
	h := newHarness()
	bundle, err := h.builder(timeouts).Build(context.Background(), turn())
	require.NoError(t, err)

	assert.Nil(t, bundle.Profile)
	assert.True(t, h.knowledge.called.Load())
	assert.Nil(t, h.knowledge.gotProf.Load(), "knowledge runs in pure-similarity mode")
	assert.Contains(t, bundle.Prompt, prompt.NoProfileBlock)
	assert.NotContains(t, bundle.Prompt, "Primary element:")
	assert.NotContains(t, bundle.Prompt, "## Recommended exercises")
	assert.Contains(t, bundle.Prompt, prompt.NoExamplesNote)
}

func TestBuild_WithProfile(t *testing.T) {
	h := newHarness()
	p := &model.DiagnosticProfile{PrimaryElement: model.Water, ElementScores: map[model.Element]int{model.Water: 4}}
	h.profiles = fakeProfiles{profile: p}
	h.exercises.rec = model.Recommendation{Method: model.MethodElement, Exercises: []model.Exercise{{Title: "Kidney Rub", URL: "u"}}}
	h.marketing.block = model.MarketingBlock{Products: []model.Product{{Name: "Plan", Available: true}}}

	bundle, err := h.builder(timeouts).Build(context.Background(), turn())
	require.NoError(t, err)

	assert.Same(t, p, h.knowledge.gotProf.Load())
	assert.Equal(t, model.Water, h.marketing.gotEl.Load())
	assert.Equal(t, model.MethodElement, bundle.Recommendation.Method)
	assert.Contains(t, bundle.Prompt, "Primary element: Water")
	assert.Contains(t, bundle.Prompt, "## Recommended exercises")
	assert.Contains(t, bundle.Prompt, "## Current offers")
	assert.Len(t, bundle.Knowledge, 1)
}

func TestBuild_EssentialFailures(t *testing.T) {
	boom := errors.New("search down")
	cases := []struct {
		name  string
		setup func(h *harness)
		stage Stage
	}{
		{"profile", func(h *harness) { h.profiles.err = boom }, StageProfile},
		{"knowledge", func(h *harness) { h.knowledge.err = boom }, StageKnowledge},
		{"examples", func(h *harness) { h.examples.err = boom }, StageExamples},
		{"exercises", func(h *harness) { h.exercises.err = boom }, StageExercises},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			tc.setup(h)
			bundle, err := h.builder(timeouts).Build(context.Background(), turn())
			require.Error(t, err)
			assert.Nil(t, bundle)

			var re *RetrievalError
			require.ErrorAs(t, err, &re)
			assert.Equal(t, tc.stage, re.Stage)
			assert.ErrorIs(t, err, boom)
		})
	}
}

func TestBuild_StageTimeoutIsRetrievalError(t *testing.T) {
	h := newHarness()
	h.examples.block = true
	short := func() config.StageTimeouts {
		st := timeouts()
		st.Examples = 20 * time.Millisecond
		return st
	}

	_, err := h.builder(short).Build(context.Background(), turn())
	var re *RetrievalError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, StageExamples, re.Stage)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBuild_FailureCancelsSiblings(t *testing.T) {
	h := newHarness()
	h.knowledge.block = true
	h.examples.err = errors.New("examples down")

	done := make(chan error, 1)
	go func() {
		_, err := h.builder(timeouts).Build(context.Background(), turn())
		done <- err
	}()

	select {
	case err := <-done:
		var re *RetrievalError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, StageExamples, re.Stage)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("blocked knowledge stage was not cancelled")
	}
}

func TestBuild_CallerCancellation(t *testing.T) {
	h := newHarness()
	h.knowledge.block = true
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.builder(timeouts).Build(ctx, turn())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_InvalidTurn(t *testing.T) {
	h := newHarness()
	_, err := h.builder(timeouts).Build(context.Background(), Turn{Scope: "main", Text: "   "})
	assert.ErrorIs(t, err, ErrInvalidTurn)

	_, err = h.builder(timeouts).Build(context.Background(), Turn{Text: "hi"})
	assert.ErrorIs(t, err, ErrInvalidTurn)
	assert.False(t, h.knowledge.called.Load())
}
