package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"docexplorer/internal/ai"
	"docexplorer/internal/model"
	"docexplorer/internal/vectorstore"
	"docexplorer/internal/vision"
)

const (
	summaryChunkRunes   = 1000
	summaryChunkOverlap = 200
	summaryParallelism  = 4
	researchSummaryQAs  = 50

	documentSummaryPrompt = "Generate a comprehensive summary of this document, " +
		"including key findings, methodology, and conclusions. " +
		"Format the response with clear sections."
	combineSummaryPrompt = "Combine the following partial summaries of one document into a single comprehensive summary, " +
		"including key findings, methodology, and conclusions. Format the response with clear sections."
	researchSummaryPrompt = "Based on the following Q&A interactions, provide a coherent " +
		"research note that synthesizes the key insights and findings. " +
		"Include relevant cross-references and maintain academic tone."
	multimodalSummaryPrompt = "Using the document summary and the visual elements detected in the document's preview image, " +
		"write a summary that relates the visual content to the document's findings. Format the response with clear sections."
	trendPrompt = "Analyze the following content for trends and patterns. " +
		"Provide a summary of key trends, changes, and confidence level."
)

var ErrNoInteractions = errors.New("no q&a interactions recorded for document")

type SummaryStore interface {
	Create(ctx context.Context, s *model.DocumentSummary) error
	Latest(ctx context.Context, documentID, kind string) (*model.DocumentSummary, error)
}

// SummaryCache holds serialized summaries.
type SummaryCache interface {
	Get(ctx context.Context, documentID, kind string) (string, bool, error)
	Set(ctx context.Context, documentID, kind, value string) error
}

type QAHistory interface {
	ListByDocument(ctx context.Context, documentID string, limit int) ([]model.QAInteraction, error)
}

type SummaryMetadata struct {
	ChunksProcessed int                 `json:"chunks_processed,omitempty"`
	TextProcessed   bool                `json:"text_processed"`
	Interactions    int                 `json:"interactions,omitempty"`
	VisualLabels    []vision.LabelScore `json:"visual_labels,omitempty"`
	GeneratedAt     time.Time           `json:"generated_at"`
}

type Summary struct {
	DocumentID string          `json:"document_id"`
	Kind       string          `json:"kind"`
	Summary    string          `json:"summary"`
	Metadata   SummaryMetadata `json:"metadata"`
	Cached     bool            `json:"cached"`
}

type TrendAnalysis struct {
	TrendSummary string   `json:"trend_summary"`
	KeyChanges   []string `json:"key_changes"`
	Confidence   string   `json:"confidence"`
}

type SummarizationService struct {
	mm     *MultimodalService
	source DocumentSource
	store  SummaryStore
	cache  SummaryCache
	qa     QAHistory
	logger *zap.Logger
	now    func() time.Time
}

func NewSummarizationService(mm *MultimodalService, source DocumentSource, store SummaryStore, cache SummaryCache, qa QAHistory, logger *zap.Logger) *SummarizationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SummarizationService{
		mm:     mm,
		source: source,
		store:  store,
		cache:  cache,
		qa:     qa,
		logger: logger,
		now:    time.Now,
	}
}

// DocumentSummary summarizes the document's PDF. Unless refresh is set, a
// summary from redis or, failing that, the latest stored row is returned.
func (s *SummarizationService) DocumentSummary(ctx context.Context, documentID string, refresh bool) (*Summary, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, ErrInvalidInput
	}
	if !refresh {
		if cached := s.cached(ctx, documentID, model.SummaryKindDocument); cached != nil {
			return cached, nil
		}
		stored, err := s.stored(ctx, documentID, model.SummaryKindDocument)
		if err != nil {
			return nil, err
		}
		if stored != nil {
			return stored, nil
		}
	}

	doc, err := s.source.Document(ctx, documentID)
	if err != nil {
		return nil, err
	}
	text, err := s.source.Text(ctx, doc)
	if err != nil {
		return nil, err
	}
	chunks := vectorstore.SplitRunes(text, summaryChunkRunes, summaryChunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrDocumentEmpty
	}

	content, err := s.mapReduce(ctx, chunks)
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		DocumentID: documentID,
		Kind:       model.SummaryKindDocument,
		Summary:    content,
		Metadata: SummaryMetadata{
			ChunksProcessed: len(chunks),
			TextProcessed:   true,
			GeneratedAt:     s.now().UTC(),
		},
	}
	return summary, s.save(ctx, summary)
}

func (s *SummarizationService) mapReduce(ctx context.Context, chunks []string) (string, error) {
	partials := make([]string, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(summaryParallelism)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			out, err := s.mm.Generate(gctx, "", documentSummaryPrompt+"\n\nDocument: "+chunk, ai.GenerationParams{})
			if err != nil {
				return err
			}
			partials[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if len(partials) == 1 {
		return partials[0], nil
	}

	var b strings.Builder
	b.WriteString(combineSummaryPrompt)
	for i, p := range partials {
		fmt.Fprintf(&b, "\n\nPart %d:\n%s", i+1, p)
	}
	return s.mm.Generate(ctx, "", b.String(), ai.GenerationParams{})
}

// ResearchSummary synthesizes the recorded Q&A interactions of a document.
func (s *SummarizationService) ResearchSummary(ctx context.Context, documentID string) (*Summary, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, ErrInvalidInput
	}
	interactions, err := s.qa.ListByDocument(ctx, documentID, researchSummaryQAs)
	if err != nil {
		return nil, err
	}
	if len(interactions) == 0 {
		return nil, ErrNoInteractions
	}

	content, err := s.mm.Generate(ctx, "", researchSummaryPrompt+"\n\nQ&A Context:\n"+formatInteractions(interactions), ai.GenerationParams{})
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		DocumentID: documentID,
		Kind:       model.SummaryKindResearch,
		Summary:    content,
		Metadata: SummaryMetadata{
			Interactions: len(interactions),
			GeneratedAt:  s.now().UTC(),
		},
	}
	return summary, s.save(ctx, summary)
}

// MultimodalSummary extends the document summary with labels from the
// preview image. Without an image or image model it falls back to text only.
func (s *SummarizationService) MultimodalSummary(ctx context.Context, documentID string) (*Summary, error) {
	base, err := s.DocumentSummary(ctx, documentID, false)
	if err != nil {
		return nil, err
	}
	doc, err := s.source.Document(ctx, documentID)
	if err != nil {
		return nil, err
	}

	var labels []vision.LabelScore
	visual := ""
	if doc.ImagePath != "" {
		data, err := s.source.Image(ctx, doc)
		if err != nil {
			return nil, err
		}
		enc, err := s.mm.EmbedImage(data)
		switch {
		case err == nil:
			labels = enc.Labels
			visual = enc.LabelText()
		case errors.Is(err, vision.ErrModelUnavailable):
			s.logger.Warn("image model unavailable, summarizing text only", zap.String("document_id", documentID), zap.Error(err))
		default:
			return nil, err
		}
	}
	if visual == "" {
		visual = "(none detected)"
	}

	prompt := multimodalSummaryPrompt + "\n\nDocument summary:\n" + base.Summary + "\n\nVisual elements: " + visual
	content, err := s.mm.Generate(ctx, "", prompt, ai.GenerationParams{})
	if err != nil {
		return nil, err
	}
	summary := &Summary{
		DocumentID: documentID,
		Kind:       model.SummaryKindMultimodal,
		Summary:    content,
		Metadata: SummaryMetadata{
			ChunksProcessed: base.Metadata.ChunksProcessed,
			TextProcessed:   true,
			VisualLabels:    labels,
			GeneratedAt:     s.now().UTC(),
		},
	}
	return summary, s.save(ctx, summary)
}

// AnalyzeTrend looks for trends across contents, oldest first.
func (s *SummarizationService) AnalyzeTrend(ctx context.Context, contents []string) (*TrendAnalysis, error) {
	if len(contents) == 0 {
		return &TrendAnalysis{TrendSummary: "", KeyChanges: []string{}, Confidence: trendConfidence(0)}, nil
	}
	analysis, err := s.mm.Generate(ctx, "", trendPrompt+"\n\nContent:\n"+strings.Join(contents, "\n---\n"), ai.GenerationParams{})
	if err != nil {
		return nil, err
	}
	return &TrendAnalysis{
		TrendSummary: analysis,
		KeyChanges:   bulletLines(analysis),
		Confidence:   trendConfidence(len(contents)),
	}, nil
}

func (s *SummarizationService) cached(ctx context.Context, documentID, kind string) *Summary {
	if s.cache == nil {
		return nil
	}
	raw, ok, err := s.cache.Get(ctx, documentID, kind)
	if err != nil {
		s.logger.Warn("summary cache get failed", zap.String("document_id", documentID), zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	var summary Summary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		s.logger.Warn("summary cache entry corrupt", zap.String("document_id", documentID), zap.Error(err))
		return nil
	}
	summary.Cached = true
	return &summary
}

// stored loads the latest persisted summary and puts it back in the cache.
func (s *SummarizationService) stored(ctx context.Context, documentID, kind string) (*Summary, error) {
	row, err := s.store.Latest(ctx, documentID, kind)
	if err != nil || row == nil {
		return nil, err
	}
	summary := &Summary{
		DocumentID: row.DocumentID,
		Kind:       row.Kind,
		Summary:    row.Content,
		Metadata:   SummaryMetadata{GeneratedAt: row.CreatedAt},
	}
	if row.Metadata != "" {
		if err := json.Unmarshal([]byte(row.Metadata), &summary.Metadata); err != nil {
			s.logger.Warn("stored summary metadata corrupt", zap.String("document_id", documentID), zap.Error(err))
		}
	}
	s.cachePut(ctx, summary)
	summary.Cached = true
	return summary, nil
}

func (s *SummarizationService) save(ctx context.Context, summary *Summary) error {
	meta, err := json.Marshal(summary.Metadata)
	if err != nil {
		return fmt.Errorf("marshal summary metadata failed: %w", err)
	}
	row := &model.DocumentSummary{
		DocumentID: summary.DocumentID,
		Kind:       summary.Kind,
		Content:    summary.Summary,
		Metadata:   string(meta),
		CreatedAt:  summary.Metadata.GeneratedAt,
	}
	if err := s.store.Create(ctx, row); err != nil {
		return err
	}
	s.cachePut(ctx, summary)
	return nil
}

func (s *SummarizationService) cachePut(ctx context.Context, summary *Summary) {
	if s.cache == nil {
		return
	}
	payload, err := json.Marshal(summary)
	if err != nil {
		s.logger.Warn("marshal summary for cache failed", zap.String("document_id", summary.DocumentID), zap.Error(err))
		return
	}
	if err := s.cache.Set(ctx, summary.DocumentID, summary.Kind, string(payload)); err != nil {
		s.logger.Warn("summary cache set failed", zap.String("document_id", summary.DocumentID), zap.Error(err))
	}
}

func formatInteractions(list []model.QAInteraction) string {
	parts := make([]string, len(list))
	// list is newest first.
	for i := range list {
		qa := list[len(list)-1-i]
		parts[i] = "Q: " + qa.Question + "\nA: " + qa.Answer
	}
	return strings.Join(parts, "\n\n")
}

func bulletLines(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		for _, prefix := range []string{"- ", "* ", "• "} {
			if strings.HasPrefix(line, prefix) {
				if item := strings.TrimSpace(strings.TrimPrefix(line, prefix)); item != "" {
					out = append(out, item)
				}
				break
			}
		}
	}
	return out
}

func trendConfidence(n int) string {
	switch {
	case n < 3:
		return "low"
	case n < 10:
		return "medium"
	default:
		return "high"
	}
}
