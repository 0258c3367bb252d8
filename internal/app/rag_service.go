package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"docexplorer/internal/ai"
	"docexplorer/internal/keyword"
	"docexplorer/internal/model"
	"docexplorer/internal/vectorstore"
	"docexplorer/internal/vision"
	"docexplorer/internal/warehouse"
)

const defaultTopK = 3

// indexBuildTimeout bounds a shared document build, which no longer follows
// any single caller's cancellation.
const indexBuildTimeout = 5 * time.Minute

const answerSystemPrompt = "You are a research assistant. Answer the user's question based only on the provided document excerpts and context. " +
	"If the excerpts do not contain enough information, say so. Do not make up facts."

// NotePublisher hands a research note to the persistence queue.
type NotePublisher interface {
	Publish(ctx context.Context, note model.ResearchNote) error
}

type QARecorder interface {
	Create(ctx context.Context, qa *model.QAInteraction) error
}

type AskInput struct {
	UserID     uint
	DocumentID string
	Question   string
	Context    string
	Params     ai.GenerationParams
}

type Answer struct {
	Answer           string    `json:"answer"`
	ConfidenceScore  float64   `json:"confidence_score"`
	SourceReferences []string  `json:"source_references"`
	GeneratedAt      time.Time `json:"generated_at"`
}

type MultimodalInput struct {
	UserID        uint
	DocumentID    string
	Query         string
	IncludeVisual bool
}

type MultimodalAnswer struct {
	Answer
	DocumentID   string              `json:"document_id"`
	Title        string              `json:"title"`
	VisualLabels []vision.LabelScore `json:"visual_labels"`
}

// RAGService answers questions about one catalog document at a time.
type RAGService struct {
	mm        *MultimodalService
	store     *vectorstore.Store
	keywords  *keyword.Index
	source    DocumentSource
	qaRepo    QARecorder
	publisher NotePublisher
	topK      int
	logger    *zap.Logger
	now       func() time.Time

	indexing singleflight.Group
}

func NewRAGService(
	mm *MultimodalService,
	store *vectorstore.Store,
	keywords *keyword.Index,
	source DocumentSource,
	qaRepo QARecorder,
	publisher NotePublisher,
	topK int,
	logger *zap.Logger,
) *RAGService {
	if topK <= 0 {
		topK = defaultTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RAGService{
		mm:        mm,
		store:     store,
		keywords:  keywords,
		source:    source,
		qaRepo:    qaRepo,
		publisher: publisher,
		topK:      topK,
		logger:    logger,
		now:       time.Now,
	}
}

// EnsureIndexed builds the document index on first use. Concurrent callers
// for the same document share one build; a caller that goes away stops
// waiting but does not cancel the build for the others.
func (s *RAGService) EnsureIndexed(ctx context.Context, documentID string) error {
	if s.store.Has(vectorstore.KindDocument, documentID) {
		return nil
	}
	ch := s.indexing.DoChan(documentID, func() (interface{}, error) {
		if s.store.Has(vectorstore.KindDocument, documentID) {
			return nil, nil
		}
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), indexBuildTimeout)
		defer cancel()
		return nil, s.indexDocument(buildCtx, documentID)
	})
	select {
	case <-ctx.Done():
		return ctx.Err()
	case res := <-ch:
		return res.Err
	}
}

func (s *RAGService) indexDocument(ctx context.Context, documentID string) error {
	doc, err := s.source.Document(ctx, documentID)
	if err != nil {
		return err
	}
	text, err := s.source.Text(ctx, doc)
	if err != nil {
		return err
	}
	idx, err := s.store.IndexDocument(ctx, documentID, text)
	if errors.Is(err, vectorstore.ErrEmptyContent) {
		return ErrDocumentEmpty
	}
	if err != nil {
		return fmt.Errorf("index document failed: %w", err)
	}
	if s.keywords != nil {
		if err := s.keywords.Replace(keyword.KindDocument, documentID, keywordEntries(idx)); err != nil {
			s.logger.Warn("keyword index document failed", zap.String("document_id", documentID), zap.Error(err))
		}
	}
	return nil
}

func (s *RAGService) Ask(ctx context.Context, input AskInput) (*Answer, error) {
	return s.ask(ctx, input, "", nil)
}

// StreamAsk is Ask with the answer delivered incrementally to onChunk.
func (s *RAGService) StreamAsk(ctx context.Context, input AskInput, onChunk func(string) error) (*Answer, error) {
	return s.ask(ctx, input, "", onChunk)
}

// MultimodalQuery answers query with the document's preview image as extra
// visual context when requested and available.
func (s *RAGService) MultimodalQuery(ctx context.Context, input MultimodalInput) (*MultimodalAnswer, error) {
	documentID := strings.TrimSpace(input.DocumentID)
	if documentID == "" || strings.TrimSpace(input.Query) == "" {
		return nil, ErrInvalidInput
	}
	doc, err := s.source.Document(ctx, documentID)
	if err != nil {
		return nil, err
	}

	labels := []vision.LabelScore{}
	visual := ""
	if input.IncludeVisual && doc.ImagePath != "" {
		enc, err := s.describeImage(ctx, doc)
		switch {
		case err == nil:
			labels = enc.Labels
			visual = enc.LabelText()
		case errors.Is(err, vision.ErrModelUnavailable):
			s.logger.Warn("image model unavailable, answering without visual context", zap.String("document_id", documentID), zap.Error(err))
		default:
			return nil, err
		}
	}

	answer, err := s.ask(ctx, AskInput{UserID: input.UserID, DocumentID: documentID, Question: input.Query}, visual, nil)
	if err != nil {
		return nil, err
	}
	return &MultimodalAnswer{
		Answer:       *answer,
		DocumentID:   doc.ID,
		Title:        doc.Title,
		VisualLabels: labels,
	}, nil
}

func (s *RAGService) describeImage(ctx context.Context, doc *warehouse.Document) (*vision.Encoding, error) {
	data, err := s.source.Image(ctx, doc)
	if err != nil {
		return nil, err
	}
	return s.mm.EmbedImage(data)
}

func (s *RAGService) ask(ctx context.Context, input AskInput, visual string, onChunk func(string) error) (*Answer, error) {
	documentID := strings.TrimSpace(input.DocumentID)
	question := strings.TrimSpace(input.Question)
	if documentID == "" || question == "" {
		return nil, ErrInvalidInput
	}
	extra := strings.TrimSpace(input.Context)

	if err := s.EnsureIndexed(ctx, documentID); err != nil {
		return nil, err
	}

	query, err := s.mm.EmbedText(ctx, question)
	if err != nil {
		return nil, err
	}
	if extra != "" {
		ctxVec, err := s.mm.EmbedText(ctx, extra)
		if err != nil {
			return nil, err
		}
		if query, err = s.mm.CombineEmbeddings(query, ctxVec); err != nil {
			return nil, fmt.Errorf("combine embeddings failed: %w", err)
		}
	}
	matches := s.store.SearchVector(vectorstore.KindDocument, documentID, query, s.topK)

	prompt := buildAnswerPrompt(question, extra, visual, matches)
	var text string
	if onChunk != nil {
		text, err = s.mm.GenerateStream(ctx, answerSystemPrompt, prompt, input.Params, onChunk)
	} else {
		text, err = s.mm.Generate(ctx, answerSystemPrompt, prompt, input.Params)
	}
	if err != nil {
		return nil, err
	}

	refs := make([]string, len(matches))
	for i, m := range matches {
		refs[i] = m.ChunkID
	}
	answer := &Answer{
		Answer:           text,
		ConfidenceScore:  confidence(matches),
		SourceReferences: refs,
		GeneratedAt:      s.now().UTC(),
	}
	s.record(ctx, input.UserID, documentID, question, extra, answer)
	return answer, nil
}

// record stores the interaction and queues a pending research note. Neither
// step fails the answer.
func (s *RAGService) record(ctx context.Context, userID uint, documentID, question, extra string, answer *Answer) {
	sources, _ := json.Marshal(answer.SourceReferences)
	if s.qaRepo != nil {
		qa := &model.QAInteraction{
			DocumentID:      documentID,
			UserID:          userID,
			Question:        question,
			Answer:          answer.Answer,
			ConfidenceScore: answer.ConfidenceScore,
			Sources:         string(sources),
			CreatedAt:       answer.GeneratedAt,
		}
		if err := s.qaRepo.Create(ctx, qa); err != nil {
			s.logger.Warn("record qa interaction failed", zap.String("document_id", documentID), zap.Error(err))
		}
	}
	if s.publisher == nil {
		return
	}

	meta, _ := json.Marshal(map[string]interface{}{
		"context":           extra,
		"confidence_score":  answer.ConfidenceScore,
		"source_references": answer.SourceReferences,
	})
	note := model.ResearchNote{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		UserID:     userID,
		Question:   question,
		Content:    FormatQANote(question, answer.Answer, answer.SourceReferences),
		SourceType: model.NoteSourceQA,
		Metadata:   string(meta),
		CreatedAt:  answer.GeneratedAt,
	}
	if err := s.publisher.Publish(ctx, note); err != nil {
		s.logger.Warn("publish research note failed", zap.String("document_id", documentID), zap.Error(err))
	}
}

// FormatQANote renders a Q&A exchange as research note text.
func FormatQANote(question, answer string, refs []string) string {
	var b strings.Builder
	b.WriteString("Question: ")
	b.WriteString(question)
	b.WriteString("\nFinding: ")
	b.WriteString(answer)
	if len(refs) > 0 {
		b.WriteString("\nSources: ")
		b.WriteString(strings.Join(refs, ", "))
	}
	return b.String()
}

func buildAnswerPrompt(question, extra, visual string, matches []vectorstore.Match) string {
	var b strings.Builder
	b.WriteString("Document excerpts:")
	if len(matches) == 0 {
		b.WriteString("\n---\n(none)")
	}
	for _, m := range matches {
		b.WriteString("\n---\n[")
		b.WriteString(m.ChunkID)
		b.WriteString("] ")
		b.WriteString(m.Text)
	}
	b.WriteString("\n---")
	if extra != "" {
		b.WriteString("\n\nAdditional context: ")
		b.WriteString(extra)
	}
	if visual != "" {
		b.WriteString("\n\nVisual elements detected in the document preview: ")
		b.WriteString(visual)
	}
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}

// confidence is the mean cosine score of the retrieved chunks, clamped to [0, 1].
func confidence(matches []vectorstore.Match) float64 {
	if len(matches) == 0 {
		return 0
	}
	var sum float64
	for _, m := range matches {
		sum += float64(m.Score)
	}
	c := sum / float64(len(matches))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

func keywordEntries(idx *vectorstore.Index) []keyword.Entry {
	entries := make([]keyword.Entry, len(idx.Chunks))
	for i, c := range idx.Chunks {
		entries[i] = keyword.Entry{ID: c.ID, Content: c.Text}
	}
	return entries
}
