package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/korody/persona-ai-sub001/internal/logger"
	"github.com/korody/persona-ai-sub001/internal/model"
	"github.com/korody/persona-ai-sub001/internal/pipeline"
)

type fakeBuilder struct {
	bundle *model.ContextBundle
	err    error
	got    pipeline.Turn
}

func (f *fakeBuilder) Build(ctx context.Context, turn pipeline.Turn) (*model.ContextBundle, error) {
	f.got = turn
	return f.bundle, f.err
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(ctx context.Context) error { return f.err }

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/context", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestBuildContext_OK(t *testing.T) {
	b := &fakeBuilder{bundle: &model.ContextBundle{
		Prompt:         "PROMPT",
		Recommendation: model.Recommendation{Method: model.MethodGeneric},
		Knowledge:      []model.KnowledgeHit{{Chunk: model.KnowledgeChunk{ID: "k1"}, Tier: model.TierPrimary}},
	}}
	h := NewHandler(b, fakePinger{}, logger.Nop()).Router()

	rec := post(t, h, `{"user_id":"u1","scope":"main","text":"I want to practice"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", b.got.UserID)
	assert.Equal(t, "main", b.got.Scope)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "PROMPT", body["prompt"])
	knowledge := body["knowledge"].([]any)
	assert.Equal(t, "primary", knowledge[0].(map[string]any)["tier"])
}

func TestBuildContext_RetrievalErrorIs503(t *testing.T) {
	b := &fakeBuilder{err: fmt.Errorf("wrapped: %w", &pipeline.RetrievalError{Stage: pipeline.StageKnowledge, Err: errors.New("down")})}
	h := NewHandler(b, fakePinger{}, logger.Nop()).Router()

	rec := post(t, h, `{"scope":"main","text":"hi"}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), `"stage":"knowledge"`)
	assert.Contains(t, rec.Body.String(), `"retry":true`)
}

func TestBuildContext_BadInput(t *testing.T) {
	b := &fakeBuilder{err: fmt.Errorf("%w: text is required", pipeline.ErrInvalidTurn)}
	h := NewHandler(b, fakePinger{}, logger.Nop()).Router()

	assert.Equal(t, http.StatusBadRequest, post(t, h, `{"scope":"main"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, `not json`).Code)
	assert.Equal(t, http.StatusBadRequest, post(t, h, `{"text":"x","extra":1}`).Code)
}

func TestBuildContext_UnexpectedErrorIs500(t *testing.T) {
	h := NewHandler(&fakeBuilder{err: errors.New("boom")}, fakePinger{}, logger.Nop()).Router()
	assert.Equal(t, http.StatusInternalServerError, post(t, h, `{"scope":"main","text":"hi"}`).Code)
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(&fakeBuilder{}, fakePinger{}, logger.Nop()).Router().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"healthy"`)

	rec = httptest.NewRecorder()
	NewHandler(&fakeBuilder{}, fakePinger{err: errors.New("locked")}, logger.Nop()).Router().
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"unreachable"`)
}
