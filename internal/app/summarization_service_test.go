package app

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docexplorer/internal/model"
	"docexplorer/internal/repository"
	"docexplorer/internal/vision"
)

func newSummarizer(env *testEnv, cache SummaryCache) *SummarizationService {
	return NewSummarizationService(env.mm, env.source,
		repository.NewSummaryRepository(env.db), cache,
		repository.NewQAInteractionRepository(env.db), nil)
}

func TestDocumentSummaryMapReduce(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Long", strings.Repeat("word ", 500))
	env.model.reply = func(prompt string) string {
		if strings.HasPrefix(prompt, combineSummaryPrompt) {
			return "combined"
		}
		return "partial"
	}
	cache := &fakeCache{}
	svc := newSummarizer(env, cache)

	summary, err := svc.DocumentSummary(context.Background(), "doc1", false)
	require.NoError(t, err)
	assert.Equal(t, "combined", summary.Summary)
	assert.Equal(t, 3, summary.Metadata.ChunksProcessed)
	assert.Equal(t, 4, env.model.calls())
	assert.False(t, summary.Cached)

	again, err := svc.DocumentSummary(context.Background(), "doc1", false)
	require.NoError(t, err)
	assert.True(t, again.Cached)
	assert.Equal(t, "combined", again.Summary)
	assert.Equal(t, 4, env.model.calls())

	stored, err := repository.NewSummaryRepository(env.db).Latest(context.Background(), "doc1", model.SummaryKindDocument)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "combined", stored.Content)

	_, err = svc.DocumentSummary(context.Background(), "doc1", true)
	require.NoError(t, err)
	assert.Equal(t, 8, env.model.calls())
}

func TestDocumentSummaryFallsBackToStoredRow(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	ctx := context.Background()
	require.NoError(t, repository.NewSummaryRepository(env.db).Create(ctx, &model.DocumentSummary{
		DocumentID: "doc1",
		Kind:       model.SummaryKindDocument,
		Content:    "stored summary",
		Metadata:   `{"chunks_processed":2,"text_processed":true}`,
	}))
	cache := &fakeCache{}
	svc := newSummarizer(env, cache)

	summary, err := svc.DocumentSummary(ctx, "doc1", false)
	require.NoError(t, err)
	assert.Equal(t, "stored summary", summary.Summary)
	assert.True(t, summary.Cached)
	assert.Equal(t, 2, summary.Metadata.ChunksProcessed)
	assert.Zero(t, env.model.calls())
	assert.Zero(t, env.source.textCalls)

	_, ok, err := cache.Get(ctx, "doc1", model.SummaryKindDocument)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDocumentSummarySingleChunk(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Short", "A short abstract.")
	env.model.reply = func(string) string { return "tiny summary" }

	summary, err := newSummarizer(env, nil).DocumentSummary(context.Background(), "doc1", false)
	require.NoError(t, err)
	assert.Equal(t, "tiny summary", summary.Summary)
	assert.Equal(t, 1, env.model.calls())
	assert.Contains(t, env.model.prompts[0], "Document: A short abstract.")
}

func TestResearchSummary(t *testing.T) {
	env := newTestEnv(t)
	svc := newSummarizer(env, nil)

	_, err := svc.ResearchSummary(context.Background(), "doc1")
	assert.ErrorIs(t, err, ErrNoInteractions)

	qa := repository.NewQAInteractionRepository(env.db)
	require.NoError(t, qa.Create(context.Background(), &model.QAInteraction{DocumentID: "doc1", Question: "Q one", Answer: "A one"}))
	summary, err := svc.ResearchSummary(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, model.SummaryKindResearch, summary.Kind)
	assert.Equal(t, 1, summary.Metadata.Interactions)
	assert.Contains(t, env.model.prompts[0], "Q: Q one\nA: A one")
}

func TestMultimodalSummary(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	env.source.docs["doc1"].ImagePath = "gs://bucket/doc1.png"
	env.source.images["doc1"] = []byte{1}
	env.mm = NewMultimodalService(env.model, env.mm.Embedder(), &fakeEncoder{labels: []vision.LabelScore{{Label: "bar chart"}}})

	summary, err := newSummarizer(env, nil).MultimodalSummary(context.Background(), "doc1")
	require.NoError(t, err)
	assert.Equal(t, model.SummaryKindMultimodal, summary.Kind)
	require.Len(t, summary.Metadata.VisualLabels, 1)
	assert.Contains(t, env.model.prompts[len(env.model.prompts)-1], "Visual elements: bar chart")
}

func TestAnalyzeTrend(t *testing.T) {
	env := newTestEnv(t)
	env.model.reply = func(string) string { return "Trends:\n- costs fell\n* efficiency rose\nsummary line" }
	svc := newSummarizer(env, nil)

	trend, err := svc.AnalyzeTrend(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, []string{"costs fell", "efficiency rose"}, trend.KeyChanges)
	assert.Equal(t, "medium", trend.Confidence)

	empty, err := svc.AnalyzeTrend(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "low", empty.Confidence)
	assert.Equal(t, 1, env.model.calls())
}
