package app

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"docexplorer/internal/keyword"
	"docexplorer/internal/vectorstore"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
	maxPage         = 1000
	searchWindow    = 100
	timeRangeWindow = 1000
	defaultSimilar  = 5

	keywordWeight  = 0.3
	semanticWeight = 0.7

	SourceDocument = "document"
	SourceNote     = "research_note"
)

var ErrInvalidSearchType = errors.New("invalid search type")

type SearchType string

const (
	SearchDocuments SearchType = "document"
	SearchNotes     SearchType = "research_notes"
	SearchBoth      SearchType = "both"
)

type SearchRequest struct {
	Query      string
	DocumentID string
	SearchType SearchType
	Page       int
	PageSize   int
}

type SearchResult struct {
	ID             string    `json:"id"`
	DocumentID     string    `json:"document_id"`
	Content        string    `json:"content"`
	RelevanceScore float64   `json:"relevance_score"`
	KeywordScore   float64   `json:"keyword_score"`
	SemanticScore  float64   `json:"semantic_score"`
	SourceType     string    `json:"source_type"`
	Timestamp      time.Time `json:"timestamp"`
	Verified       *bool     `json:"verified,omitempty"`
	Validator      string    `json:"validator,omitempty"`
}

type SearchResponse struct {
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	Page         int            `json:"page"`
	TotalPages   int            `json:"total_pages"`
	Query        string         `json:"query"`
	SearchType   SearchType     `json:"search_type"`
	DocumentID   string         `json:"document_id,omitempty"`
}

// SearchService runs hybrid keyword + semantic search over document chunks
// and research notes.
type SearchService struct {
	mm       *MultimodalService
	store    *vectorstore.Store
	keywords *keyword.Index
	notes    NoteRepository
}

func NewSearchService(mm *MultimodalService, store *vectorstore.Store, keywords *keyword.Index, notes NoteRepository) *SearchService {
	return &SearchService{
		mm:       mm,
		store:    store,
		keywords: keywords,
		notes:    notes,
	}
}

func (s *SearchService) HybridSearch(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	req, err := normalizeSearch(req)
	if err != nil {
		return nil, err
	}
	window := req.Page * req.PageSize
	if window < searchWindow {
		window = searchWindow
	}
	results, err := s.collect(ctx, req, window)
	if err != nil {
		return nil, err
	}
	return s.page(ctx, req, results)
}

// TimeRangeSearch keeps only results whose timestamp falls in [start, end].
// Document chunks carry the time their index was built.
func (s *SearchService) TimeRangeSearch(ctx context.Context, req SearchRequest, start, end time.Time) (*SearchResponse, error) {
	if end.Before(start) {
		return nil, ErrInvalidInput
	}
	req, err := normalizeSearch(req)
	if err != nil {
		return nil, err
	}
	results, err := s.collect(ctx, req, timeRangeWindow)
	if err != nil {
		return nil, err
	}
	filtered := results[:0]
	for _, r := range results {
		if !r.Timestamp.Before(start) && !r.Timestamp.After(end) {
			filtered = append(filtered, r)
		}
	}
	return s.page(ctx, req, filtered)
}

// SimilarNotes finds the notes closest to noteID across all documents,
// excluding the note itself.
func (s *SearchService) SimilarNotes(ctx context.Context, noteID string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = defaultSimilar
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	note, err := s.notes.GetByID(ctx, noteID)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}
	vec, err := s.mm.EmbedText(ctx, note.Content)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, limit)
	for _, m := range s.store.SearchAllVector(vectorstore.KindNotes, vec, limit+1) {
		if m.ChunkID == noteID {
			continue
		}
		if len(results) == limit {
			break
		}
		results = append(results, SearchResult{
			ID:             m.ChunkID,
			DocumentID:     m.DocumentID,
			Content:        m.Text,
			RelevanceScore: float64(m.Score),
			SemanticScore:  float64(m.Score),
			SourceType:     SourceNote,
			Timestamp:      m.CreatedAt,
		})
	}
	if err := s.enrichNotes(ctx, results); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *SearchService) collect(ctx context.Context, req SearchRequest, limit int) ([]SearchResult, error) {
	query, err := s.mm.EmbedText(ctx, req.Query)
	if err != nil {
		return nil, err
	}
	var results []SearchResult
	if req.SearchType != SearchNotes {
		docs, err := s.searchKind(req, query, limit, vectorstore.KindDocument, keyword.KindDocument, SourceDocument)
		if err != nil {
			return nil, err
		}
		results = append(results, docs...)
	}
	if req.SearchType != SearchDocuments {
		notes, err := s.searchKind(req, query, limit, vectorstore.KindNotes, keyword.KindNote, SourceNote)
		if err != nil {
			return nil, err
		}
		results = append(results, notes...)
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].RelevanceScore != results[j].RelevanceScore {
			return results[i].RelevanceScore > results[j].RelevanceScore
		}
		return results[i].ID < results[j].ID
	})
	return results, nil
}

func (s *SearchService) searchKind(req SearchRequest, query []float32, limit int, vkind vectorstore.Kind, kkind, source string) ([]SearchResult, error) {
	var matches []vectorstore.Match
	if req.DocumentID != "" {
		matches = s.store.SearchVector(vkind, req.DocumentID, query, limit)
	} else {
		matches = s.store.SearchAllVector(vkind, query, limit)
	}
	byID := make(map[string]vectorstore.Match, len(matches))
	semantic := make(map[string]float64, len(matches))
	for _, m := range matches {
		byID[m.ChunkID] = m
		semantic[m.ChunkID] = clampScore(float64(m.Score))
	}

	var kw []keyword.Result
	if s.keywords != nil {
		var err error
		kw, err = s.keywords.Search(req.Query, limit, keyword.Filter{Kind: kkind, DocumentID: req.DocumentID})
		if err != nil {
			return nil, err
		}
	}
	kwDoc := make(map[string]string, len(kw))
	for _, r := range kw {
		kwDoc[r.ID] = r.DocumentID
	}

	fused := fuse(normalizeKeywordScores(kw), semantic, keywordWeight, semanticWeight)
	results := make([]SearchResult, 0, len(fused))
	for _, f := range fused {
		if f.score <= 0 {
			continue
		}
		m, ok := byID[f.id]
		if !ok {
			if m, ok = s.lookupChunk(vkind, kwDoc[f.id], f.id); !ok {
				continue
			}
		}
		results = append(results, SearchResult{
			ID:             f.id,
			DocumentID:     m.DocumentID,
			Content:        m.Text,
			RelevanceScore: f.score,
			KeywordScore:   f.keywordScore,
			SemanticScore:  f.semanticScore,
			SourceType:     source,
			Timestamp:      m.CreatedAt,
		})
	}
	return results, nil
}

func (s *SearchService) lookupChunk(kind vectorstore.Kind, documentID, chunkID string) (vectorstore.Match, bool) {
	idx, ok := s.store.Get(kind, documentID)
	if !ok {
		return vectorstore.Match{}, false
	}
	for _, c := range idx.Chunks {
		if c.ID == chunkID {
			return vectorstore.Match{Kind: kind, DocumentID: documentID, ChunkID: c.ID, Text: c.Text, CreatedAt: c.CreatedAt}, true
		}
	}
	return vectorstore.Match{}, false
}

func (s *SearchService) page(ctx context.Context, req SearchRequest, results []SearchResult) (*SearchResponse, error) {
	total := len(results)
	start, end := total, total
	if req.Page-1 < (total+req.PageSize-1)/req.PageSize {
		start = (req.Page - 1) * req.PageSize
		end = min(start+req.PageSize, total)
	}
	pageResults := append([]SearchResult{}, results[start:end]...)
	if err := s.enrichNotes(ctx, pageResults); err != nil {
		return nil, err
	}
	return &SearchResponse{
		Results:      pageResults,
		TotalResults: total,
		Page:         req.Page,
		TotalPages:   (total + req.PageSize - 1) / req.PageSize,
		Query:        req.Query,
		SearchType:   req.SearchType,
		DocumentID:   req.DocumentID,
	}, nil
}

// enrichNotes fills validation state on note results.
func (s *SearchService) enrichNotes(ctx context.Context, results []SearchResult) error {
	if s.notes == nil {
		return nil
	}
	for i := range results {
		if results[i].SourceType != SourceNote {
			continue
		}
		note, err := s.notes.GetByID(ctx, results[i].ID)
		if err != nil {
			return err
		}
		if note == nil {
			continue
		}
		verified := note.Verified
		results[i].Verified = &verified
		results[i].Validator = note.Validator
	}
	return nil
}

func normalizeSearch(req SearchRequest) (SearchRequest, error) {
	req.Query = strings.TrimSpace(req.Query)
	req.DocumentID = strings.TrimSpace(req.DocumentID)
	if req.Query == "" {
		return req, ErrInvalidInput
	}
	switch req.SearchType {
	case "":
		req.SearchType = SearchBoth
	case SearchDocuments, SearchNotes, SearchBoth:
	default:
		return req, ErrInvalidSearchType
	}
	if req.Page <= 0 {
		req.Page = 1
	}
	if req.Page > maxPage {
		return req, ErrInvalidInput
	}
	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}
	return req, nil
}

// RebuildKeywordIndex feeds every loaded vector index into the keyword
// index. The keyword index is memory only and starts empty.
func RebuildKeywordIndex(store *vectorstore.Store, keywords *keyword.Index) (int, error) {
	n := 0
	for _, idx := range store.Snapshot() {
		kind := keyword.KindDocument
		if idx.Kind == vectorstore.KindNotes {
			kind = keyword.KindNote
		}
		if err := keywords.Replace(kind, idx.DocumentID, keywordEntries(idx)); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
