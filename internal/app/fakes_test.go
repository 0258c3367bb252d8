package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"docexplorer/internal/ai"
	"docexplorer/internal/keyword"
	"docexplorer/internal/model"
	"docexplorer/internal/repository"
	"docexplorer/internal/vectorstore"
	"docexplorer/internal/vision"
	"docexplorer/internal/warehouse"
)

type fakeModel struct {
	mu      sync.Mutex
	prompts []string
	params  []ai.GenerationParams
	reply   func(prompt string) string
	err     error
}

func (m *fakeModel) Defaults() ai.GenerationParams {
	return ai.GenerationParams{MaxTokens: 512, Temperature: ai.Float(0.7), TopK: 50, TopP: 0.9}
}

func (m *fakeModel) Complete(_ context.Context, messages []ai.ChatMessage, params ai.GenerationParams) (string, error) {
	prompt := messages[len(messages)-1].Content
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.params = append(m.params, params)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	if m.reply != nil {
		return m.reply(prompt), nil
	}
	return "generated answer", nil
}

func (m *fakeModel) StreamComplete(ctx context.Context, messages []ai.ChatMessage, params ai.GenerationParams, onChunk func(string) error) (string, error) {
	out, err := m.Complete(ctx, messages, params)
	if err != nil {
		return "", err
	}
	for _, part := range strings.SplitAfter(out, " ") {
		if err := onChunk(part); err != nil {
			return "", err
		}
	}
	return out, nil
}

func (m *fakeModel) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

type fakeSource struct {
	mu        sync.Mutex
	docs      map[string]*warehouse.Document
	texts     map[string]string
	images    map[string][]byte
	textCalls int

	// gate, when set, holds Text until closed; started fires on entry.
	gate    chan struct{}
	started chan struct{}
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		docs:   map[string]*warehouse.Document{},
		texts:  map[string]string{},
		images: map[string][]byte{},
	}
}

func (s *fakeSource) add(id, title, text string) {
	s.docs[id] = &warehouse.Document{ID: id, Title: title, PDFPath: "gs://bucket/" + id + ".pdf"}
	s.texts[id] = text
}

func (s *fakeSource) Document(_ context.Context, id string) (*warehouse.Document, error) {
	doc, ok := s.docs[id]
	if !ok {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *fakeSource) Text(ctx context.Context, doc *warehouse.Document) (string, error) {
	s.mu.Lock()
	s.textCalls++
	gate, started := s.gate, s.started
	s.mu.Unlock()
	if gate != nil {
		started <- struct{}{}
		<-gate
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	return s.texts[doc.ID], nil
}

func (s *fakeSource) Image(_ context.Context, doc *warehouse.Document) ([]byte, error) {
	data, ok := s.images[doc.ID]
	if !ok {
		return nil, ErrNoImage
	}
	return data, nil
}

type fakeEncoder struct {
	labels []vision.LabelScore
}

func (e *fakeEncoder) Encode(data []byte) (*vision.Encoding, error) {
	if len(data) == 0 {
		return nil, errors.New("empty image")
	}
	return &vision.Encoding{Vector: []float32{1}, Labels: e.labels}, nil
}

type fakePublisher struct {
	mu    sync.Mutex
	notes []model.ResearchNote
}

func (p *fakePublisher) Publish(_ context.Context, note model.ResearchNote) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notes = append(p.notes, note)
	return nil
}

type fakeCache struct {
	entries map[string]string
}

func (c *fakeCache) Get(_ context.Context, documentID, kind string) (string, bool, error) {
	v, ok := c.entries[kind+"/"+documentID]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, documentID, kind, value string) error {
	if c.entries == nil {
		c.entries = map[string]string{}
	}
	c.entries[kind+"/"+documentID] = value
	return nil
}

type testEnv struct {
	model    *fakeModel
	source   *fakeSource
	mm       *MultimodalService
	store    *vectorstore.Store
	keywords *keyword.Index
	db       *gorm.DB
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	m := &fakeModel{}
	emb := vectorstore.NewHashEmbedder(128)
	keywords, err := keyword.NewMemIndex()
	require.NoError(t, err)
	t.Cleanup(func() { _ = keywords.Close() })

	return &testEnv{
		model:    m,
		source:   newFakeSource(),
		mm:       NewMultimodalService(m, emb, nil),
		store:    vectorstore.New(emb, vectorstore.Options{ChunkWords: 12, Shards: 4}),
		keywords: keywords,
		db:       newTestDB(t),
	}
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&model.ResearchNote{}, &model.QAInteraction{}, &model.DocumentSummary{}, &model.Report{}))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func (e *testEnv) notes() *repository.ResearchNoteRepository {
	return repository.NewResearchNoteRepository(e.db)
}

func (e *testEnv) rag(publisher NotePublisher) *RAGService {
	return NewRAGService(e.mm, e.store, e.keywords, e.source, repository.NewQAInteractionRepository(e.db), publisher, 3, nil)
}

const solarText = `Solar panel efficiency improved steadily across the decade.
Perovskite cells reached record conversion rates in laboratory tests.
Manufacturing costs dropped as production scaled worldwide.
Wind turbines were studied as a complementary source of power.
Battery storage remains the main bottleneck for grid adoption.`

func aiParams(maxTokens int, temperature *float64) ai.GenerationParams {
	return ai.GenerationParams{MaxTokens: maxTokens, Temperature: temperature}
}
