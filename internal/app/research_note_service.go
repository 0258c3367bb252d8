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

	"docexplorer/internal/keyword"
	"docexplorer/internal/model"
	"docexplorer/internal/repository"
	"docexplorer/internal/vectorstore"
)

var (
	ErrNoteNotFound      = errors.New("research note not found")
	ErrInvalidSourceType = errors.New("invalid note source type")
)

var noteSourceTypes = map[string]struct{}{
	model.NoteSourceManual:   {},
	model.NoteSourceQA:       {},
	model.NoteSourceSummary:  {},
	model.NoteSourceResearch: {},
}

type NoteRepository interface {
	Save(ctx context.Context, note *model.ResearchNote) error
	GetByID(ctx context.Context, id string) (*model.ResearchNote, error)
	List(ctx context.Context, f repository.NoteFilter) ([]model.ResearchNote, error)
	UpdateContent(ctx context.Context, id, content string) error
	Validate(ctx context.Context, id, validator, feedback string, valid bool, at time.Time) error
	Delete(ctx context.Context, id string) error
	DocumentIDs(ctx context.Context) ([]string, error)
}

type CreateNoteInput struct {
	UserID     uint
	DocumentID string
	Content    string
	SourceType string
	Question   string
	Metadata   map[string]interface{}
}

type NoteSearchInput struct {
	Query        string
	DocumentID   string
	VerifiedOnly bool
	Limit        int
}

type NoteHit struct {
	Note  model.ResearchNote `json:"note"`
	Score float64            `json:"score"`
}

type NoteTrend struct {
	DocumentID    string         `json:"document_id"`
	TotalNotes    int            `json:"total_notes"`
	VerifiedNotes int            `json:"verified_notes"`
	TrendAnalysis *TrendAnalysis `json:"trend_analysis"`
}

// ResearchNoteService owns note rows and keeps the notes indices in step
// with them.
type ResearchNoteService struct {
	repo       NoteRepository
	store      *vectorstore.Store
	keywords   *keyword.Index
	summarizer *SummarizationService
	logger     *zap.Logger
	now        func() time.Time
}

func NewResearchNoteService(repo NoteRepository, store *vectorstore.Store, keywords *keyword.Index, summarizer *SummarizationService, logger *zap.Logger) *ResearchNoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResearchNoteService{
		repo:       repo,
		store:      store,
		keywords:   keywords,
		summarizer: summarizer,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *ResearchNoteService) CreateNote(ctx context.Context, input CreateNoteInput) (*model.ResearchNote, error) {
	documentID := strings.TrimSpace(input.DocumentID)
	content := strings.TrimSpace(input.Content)
	if documentID == "" || content == "" {
		return nil, ErrInvalidInput
	}
	source := input.SourceType
	if source == "" {
		source = model.NoteSourceManual
	}
	if _, ok := noteSourceTypes[source]; !ok {
		return nil, ErrInvalidSourceType
	}

	question := strings.TrimSpace(input.Question)
	if question == "" {
		if q, ok := input.Metadata["question"].(string); ok {
			question = q
		}
	}
	var meta string
	if len(input.Metadata) > 0 {
		raw, err := json.Marshal(input.Metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal note metadata failed: %w", err)
		}
		meta = string(raw)
	}

	note := &model.ResearchNote{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		UserID:     input.UserID,
		Question:   question,
		Content:    content,
		SourceType: source,
		Metadata:   meta,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.repo.Save(ctx, note); err != nil {
		return nil, err
	}
	if err := s.IndexNote(ctx, *note); err != nil {
		s.logger.Warn("index new note failed", zap.String("note_id", note.ID), zap.Error(err))
	}
	return note, nil
}

func (s *ResearchNoteService) GetNote(ctx context.Context, id string) (*model.ResearchNote, error) {
	note, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if note == nil {
		return nil, ErrNoteNotFound
	}
	return note, nil
}

// ListNotes returns a document's notes, newest first.
func (s *ResearchNoteService) ListNotes(ctx context.Context, documentID string, verifiedOnly bool) ([]model.ResearchNote, error) {
	if strings.TrimSpace(documentID) == "" {
		return nil, ErrInvalidInput
	}
	return s.repo.List(ctx, repository.NoteFilter{DocumentID: documentID, VerifiedOnly: verifiedOnly})
}

func (s *ResearchNoteService) UpdateNote(ctx context.Context, id, content string) (*model.ResearchNote, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrInvalidInput
	}
	if err := s.repo.UpdateContent(ctx, id, content); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, err
	}
	note, err := s.GetNote(ctx, id)
	if err != nil {
		return nil, err
	}
	s.reindexQuietly(ctx, note.DocumentID)
	return note, nil
}

func (s *ResearchNoteService) DeleteNote(ctx context.Context, id string) error {
	note, err := s.GetNote(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNoteNotFound
		}
		return err
	}
	s.reindexQuietly(ctx, note.DocumentID)
	return nil
}

// SearchNotes ranks notes by similarity to query, within one document when
// DocumentID is set. Verified-only searches rank every note before
// filtering so unverified neighbours do not crowd out the limit.
func (s *ResearchNoteService) SearchNotes(ctx context.Context, input NoteSearchInput) ([]NoteHit, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, ErrInvalidInput
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}

	k := limit
	if input.VerifiedOnly {
		k = 0
	}
	var (
		matches []vectorstore.Match
		err     error
	)
	if input.DocumentID != "" {
		matches, err = s.store.Search(ctx, vectorstore.KindNotes, input.DocumentID, query, k)
	} else {
		matches, err = s.store.SearchAll(ctx, vectorstore.KindNotes, query, k)
	}
	if err != nil {
		return nil, fmt.Errorf("search notes failed: %w", err)
	}

	hits := make([]NoteHit, 0, min(len(matches), limit))
	for _, m := range matches {
		if len(hits) == limit {
			break
		}
		note, err := s.repo.GetByID(ctx, m.ChunkID)
		if err != nil {
			return nil, err
		}
		if note == nil || (input.VerifiedOnly && !note.Verified) {
			continue
		}
		hits = append(hits, NoteHit{Note: *note, Score: float64(m.Score)})
	}
	return hits, nil
}

// AnalyzeTrend counts a document's notes and asks the model for trends
// across them.
func (s *ResearchNoteService) AnalyzeTrend(ctx context.Context, documentID string) (*NoteTrend, error) {
	notes, err := s.ListNotes(ctx, documentID, false)
	if err != nil {
		return nil, err
	}
	verified := 0
	contents := make([]string, len(notes))
	for i := range notes {
		if notes[i].Verified {
			verified++
		}
		contents[len(notes)-1-i] = notes[i].Content
	}
	trend, err := s.summarizer.AnalyzeTrend(ctx, contents)
	if err != nil {
		return nil, err
	}
	return &NoteTrend{
		DocumentID:    documentID,
		TotalNotes:    len(notes),
		VerifiedNotes: verified,
		TrendAnalysis: trend,
	}, nil
}

// IndexNote adds one stored note to the vector and keyword indices.
func (s *ResearchNoteService) IndexNote(ctx context.Context, note model.ResearchNote) error {
	err := s.store.AddNote(ctx, note.DocumentID, vectorstore.Entry{ID: note.ID, Text: note.Content, CreatedAt: note.CreatedAt})
	if err != nil {
		return fmt.Errorf("vector index note failed: %w", err)
	}
	if s.keywords == nil {
		return nil
	}
	return s.keywords.Add(keyword.Entry{
		ID:         note.ID,
		DocumentID: note.DocumentID,
		Kind:       keyword.KindNote,
		Content:    note.Content,
	})
}

// ReindexDocument rebuilds a document's notes indices from the database.
func (s *ResearchNoteService) ReindexDocument(ctx context.Context, documentID string) error {
	notes, err := s.repo.List(ctx, repository.NoteFilter{DocumentID: documentID})
	if err != nil {
		return err
	}
	entries := make([]vectorstore.Entry, len(notes))
	kw := make([]keyword.Entry, len(notes))
	for i, n := range notes {
		entries[i] = vectorstore.Entry{ID: n.ID, Text: n.Content, CreatedAt: n.CreatedAt}
		kw[i] = keyword.Entry{ID: n.ID, Content: n.Content}
	}
	if err := s.store.IndexNotes(ctx, documentID, entries); err != nil {
		return fmt.Errorf("rebuild notes index failed: %w", err)
	}
	if s.keywords != nil {
		return s.keywords.Replace(keyword.KindNote, documentID, kw)
	}
	return nil
}

// ReindexAll rebuilds the notes index of every document that has notes.
func (s *ResearchNoteService) ReindexAll(ctx context.Context) error {
	ids, err := s.repo.DocumentIDs(ctx)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if err := s.ReindexDocument(ctx, id); err != nil {
			return fmt.Errorf("reindex notes of %s failed: %w", id, err)
		}
	}
	s.logger.Info("notes reindexed", zap.Int("documents", len(ids)))
	return nil
}

func (s *ResearchNoteService) reindexQuietly(ctx context.Context, documentID string) {
	if err := s.ReindexDocument(ctx, documentID); err != nil {
		s.logger.Warn("reindex notes failed", zap.String("document_id", documentID), zap.Error(err))
	}
}
