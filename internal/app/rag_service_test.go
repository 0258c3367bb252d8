package app

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docexplorer/internal/ai"
	"docexplorer/internal/keyword"
	"docexplorer/internal/repository"
	"docexplorer/internal/vectorstore"
	"docexplorer/internal/vision"
)

func TestAskIndexesLazilyAndRecords(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	pub := &fakePublisher{}
	svc := env.rag(pub)

	answer, err := svc.Ask(context.Background(), AskInput{UserID: 7, DocumentID: "doc1", Question: "What happened to perovskite cells?"})
	require.NoError(t, err)
	assert.Equal(t, "generated answer", answer.Answer)
	assert.GreaterOrEqual(t, answer.ConfidenceScore, 0.0)
	assert.LessOrEqual(t, answer.ConfidenceScore, 1.0)
	require.NotEmpty(t, answer.SourceReferences)
	assert.True(t, strings.HasPrefix(answer.SourceReferences[0], "doc1#"))
	assert.True(t, env.store.Has(vectorstore.KindDocument, "doc1"))
	assert.Contains(t, env.model.prompts[0], "Question: What happened to perovskite cells?")

	_, err = svc.Ask(context.Background(), AskInput{DocumentID: "doc1", Question: "costs?"})
	require.NoError(t, err)
	assert.Equal(t, 1, env.source.textCalls)

	qas, err := repository.NewQAInteractionRepository(env.db).ListByDocument(context.Background(), "doc1", 0)
	require.NoError(t, err)
	assert.Len(t, qas, 2)

	require.Len(t, pub.notes, 2)
	note := pub.notes[0]
	assert.Equal(t, "doc1", note.DocumentID)
	assert.Equal(t, uint(7), note.UserID)
	assert.Equal(t, "qa_derived", note.SourceType)
	assert.Nil(t, note.ValidatedAt)
	assert.Contains(t, note.Content, "Finding: generated answer")

	hits, err := env.keywords.Search("perovskite", 5, keyword.Filter{Kind: keyword.KindDocument, DocumentID: "doc1"})
	require.NoError(t, err)
	assert.NotEmpty(t, hits)
}

func TestAskConcurrentCallersIndexOnce(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	svc := env.rag(nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ask(context.Background(), AskInput{DocumentID: "doc1", Question: "battery storage"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, env.source.textCalls)
}

func TestEnsureIndexedSurvivesFirstCallerCancel(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	env.source.gate = make(chan struct{})
	env.source.started = make(chan struct{}, 1)
	svc := env.rag(nil)

	firstCtx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() { firstErr <- svc.EnsureIndexed(firstCtx, "doc1") }()
	<-env.source.started

	secondErr := make(chan error, 1)
	go func() { secondErr <- svc.EnsureIndexed(context.Background(), "doc1") }()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(env.source.gate)

	require.NoError(t, <-secondErr)
	assert.True(t, env.store.Has(vectorstore.KindDocument, "doc1"))
	assert.Equal(t, 1, env.source.textCalls)
}

func TestAskValidation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.rag(nil)

	_, err := svc.Ask(context.Background(), AskInput{DocumentID: "doc1"})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Ask(context.Background(), AskInput{DocumentID: "missing", Question: "q"})
	assert.ErrorIs(t, err, ErrDocumentNotFound)

	env.source.add("blank", "Blank", "   ")
	_, err = svc.Ask(context.Background(), AskInput{DocumentID: "blank", Question: "q"})
	assert.ErrorIs(t, err, ErrDocumentEmpty)
	assert.Zero(t, env.model.calls())
}

func TestAskWithContextCombinesEmbeddings(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	svc := env.rag(nil)

	answer, err := svc.Ask(context.Background(), AskInput{DocumentID: "doc1", Question: "what is the bottleneck", Context: "grid batteries"})
	require.NoError(t, err)
	assert.NotEmpty(t, answer.SourceReferences)
	assert.Contains(t, env.model.prompts[0], "Additional context: grid batteries")
}

func TestAskGenerationFailure(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	env.model.err = assert.AnError
	pub := &fakePublisher{}

	_, err := env.rag(pub).Ask(context.Background(), AskInput{DocumentID: "doc1", Question: "q"})
	assert.ErrorIs(t, err, ErrGenerationFailed)
	assert.Empty(t, pub.notes)
}

func TestStreamAskDeliversChunks(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	env.model.reply = func(string) string { return "panels got better" }

	var got []string
	answer, err := env.rag(nil).StreamAsk(context.Background(), AskInput{DocumentID: "doc1", Question: "panels"}, func(chunk string) error {
		got = append(got, chunk)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "panels got better", answer.Answer)
	assert.Equal(t, "panels got better", strings.Join(got, ""))
}

func TestMultimodalQueryUsesImageLabels(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	env.source.docs["doc1"].ImagePath = "gs://bucket/doc1.png"
	env.source.images["doc1"] = []byte{1, 2, 3}
	env.mm = NewMultimodalService(env.model, env.mm.Embedder(), &fakeEncoder{labels: []vision.LabelScore{{Label: "solar dish", Score: 9}}})

	out, err := env.rag(nil).MultimodalQuery(context.Background(), MultimodalInput{DocumentID: "doc1", Query: "what is shown", IncludeVisual: true})
	require.NoError(t, err)
	assert.Equal(t, "Solar", out.Title)
	require.Len(t, out.VisualLabels, 1)
	assert.Contains(t, env.model.prompts[0], "Visual elements detected in the document preview: solar dish")
}

func TestMultimodalQueryWithoutImageModel(t *testing.T) {
	env := newTestEnv(t)
	env.source.add("doc1", "Solar", solarText)
	env.source.docs["doc1"].ImagePath = "gs://bucket/doc1.png"
	env.source.images["doc1"] = []byte{1}

	out, err := env.rag(nil).MultimodalQuery(context.Background(), MultimodalInput{DocumentID: "doc1", Query: "what is shown", IncludeVisual: true})
	require.NoError(t, err)
	assert.Empty(t, out.VisualLabels)
	assert.NotContains(t, env.model.prompts[0], "Visual elements")
}

func TestCombineEmbeddingsDimensionMismatch(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.mm.CombineEmbeddings([]float32{1, 0}, []float32{1})
	assert.ErrorIs(t, err, vectorstore.ErrDimensionMismatch)

	v, err := env.mm.CombineEmbeddings([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.7071, v[0], 1e-3)
}

func TestGenerateFillsDefaultParams(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.mm.Generate(context.Background(), "", "hi", aiParams(100, nil))
	require.NoError(t, err)
	got := env.model.params[0]
	assert.Equal(t, 100, got.MaxTokens)
	require.NotNil(t, got.Temperature)
	assert.Equal(t, 0.7, *got.Temperature)
	assert.Equal(t, 50, got.TopK)
}

func TestGenerateHonoursZeroTemperature(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.mm.Generate(context.Background(), "", "hi", aiParams(0, ai.Float(0)))
	require.NoError(t, err)
	got := env.model.params[0]
	require.NotNil(t, got.Temperature)
	assert.Zero(t, *got.Temperature)
	assert.Equal(t, 512, got.MaxTokens)
}

func TestConfidenceClamps(t *testing.T) {
	assert.Zero(t, confidence(nil))
	assert.Equal(t, 1.0, confidence([]vectorstore.Match{{Score: 1.5}}))
	assert.Zero(t, confidence([]vectorstore.Match{{Score: -0.5}}))
	assert.InDelta(t, 0.5, confidence([]vectorstore.Match{{Score: 0.25}, {Score: 0.75}}), 1e-6)
}
