// Package vectorstore keeps per-document embedding indices in memory.
//
// Indices are partitioned across shards by document id; a writer replaces a
// whole index under its shard lock so readers never observe a partial build.
package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	embeddingBatchSize = 10
	snapshotVersion    = 1
	defaultShards      = 16
)

type Kind string

const (
	KindDocument Kind = "document"
	KindNotes    Kind = "notes"
)

var ErrEmptyContent = errors.New("nothing to index")

// Embedder turns texts into vectors, one per input, in order.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type Chunk struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Vector    []float32 `json:"vector"`
	CreatedAt time.Time `json:"created_at"`
}

type Index struct {
	Kind       Kind      `json:"kind"`
	DocumentID string    `json:"document_id"`
	Chunks     []Chunk   `json:"chunks"`
	BuiltAt    time.Time `json:"built_at"`
}

type Match struct {
	Kind       Kind      `json:"kind"`
	DocumentID string    `json:"document_id"`
	ChunkID    string    `json:"chunk_id"`
	Text       string    `json:"text"`
	Score      float32   `json:"score"`
	CreatedAt  time.Time `json:"created_at"`
}

// Entry is a pre-identified text, e.g. a research note.
type Entry struct {
	ID        string
	Text      string
	CreatedAt time.Time
}

type indexKey struct {
	kind  Kind
	docID string
}

type shard struct {
	mu      sync.RWMutex
	indices map[indexKey]*Index
}

type Store struct {
	embedder   Embedder
	chunkWords int
	shards     []*shard
	logger     *zap.Logger
	now        func() time.Time
}

type Options struct {
	ChunkWords int
	Shards     int
	Logger     *zap.Logger
}

func New(embedder Embedder, opts Options) *Store {
	n := opts.Shards
	if n <= 0 {
		n = defaultShards
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	shards := make([]*shard, n)
	for i := range shards {
		shards[i] = &shard{indices: make(map[indexKey]*Index)}
	}
	return &Store{
		embedder:   embedder,
		chunkWords: opts.ChunkWords,
		shards:     shards,
		logger:     logger,
		now:        time.Now,
	}
}

func (s *Store) shardFor(docID string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(docID))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}

// IndexDocument chunks text and replaces the document's index.
func (s *Store) IndexDocument(ctx context.Context, docID, text string) (*Index, error) {
	chunks := ChunkText(text, s.chunkWords)
	if len(chunks) == 0 {
		return nil, ErrEmptyContent
	}
	built := s.now()
	entries := make([]Entry, len(chunks))
	for i, c := range chunks {
		entries[i] = Entry{ID: docID + "#" + strconv.Itoa(i), Text: c, CreatedAt: built}
	}
	idx, err := s.build(ctx, KindDocument, docID, entries)
	if err != nil {
		return nil, err
	}
	s.put(idx)
	s.logger.Info("document indexed", zap.String("document_id", docID), zap.Int("chunks", len(idx.Chunks)))
	return idx, nil
}

// IndexNotes replaces the notes index of a document. An empty list removes it.
func (s *Store) IndexNotes(ctx context.Context, docID string, notes []Entry) error {
	if len(notes) == 0 {
		s.Remove(KindNotes, docID)
		return nil
	}
	idx, err := s.build(ctx, KindNotes, docID, notes)
	if err != nil {
		return err
	}
	s.put(idx)
	return nil
}

// AddNote appends one note to the document's notes index, creating it if needed.
func (s *Store) AddNote(ctx context.Context, docID string, note Entry) error {
	vecs, err := s.embed(ctx, []string{note.Text})
	if err != nil {
		return err
	}
	if note.CreatedAt.IsZero() {
		note.CreatedAt = s.now()
	}
	chunk := Chunk{ID: note.ID, Text: note.Text, Vector: Normalize(vecs[0]), CreatedAt: note.CreatedAt}

	sh := s.shardFor(docID)
	key := indexKey{kind: KindNotes, docID: docID}
	sh.mu.Lock()
	defer sh.mu.Unlock()
	next := &Index{Kind: KindNotes, DocumentID: docID, BuiltAt: s.now()}
	if cur, ok := sh.indices[key]; ok {
		next.Chunks = make([]Chunk, 0, len(cur.Chunks)+1)
		for _, c := range cur.Chunks {
			if c.ID != note.ID {
				next.Chunks = append(next.Chunks, c)
			}
		}
	}
	next.Chunks = append(next.Chunks, chunk)
	sh.indices[key] = next
	return nil
}

func (s *Store) Has(kind Kind, docID string) bool {
	sh := s.shardFor(docID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	_, ok := sh.indices[indexKey{kind: kind, docID: docID}]
	return ok
}

func (s *Store) Get(kind Kind, docID string) (*Index, bool) {
	sh := s.shardFor(docID)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	idx, ok := sh.indices[indexKey{kind: kind, docID: docID}]
	return idx, ok
}

func (s *Store) Remove(kind Kind, docID string) {
	sh := s.shardFor(docID)
	sh.mu.Lock()
	delete(sh.indices, indexKey{kind: kind, docID: docID})
	sh.mu.Unlock()
}

// Search embeds query and returns the top k matches in one document's index.
// A document without an index yields no matches and no error.
func (s *Store) Search(ctx context.Context, kind Kind, docID, query string, k int) ([]Match, error) {
	if !s.Has(kind, docID) {
		return []Match{}, nil
	}
	vecs, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return s.SearchVector(kind, docID, vecs[0], k), nil
}

func (s *Store) SearchVector(kind Kind, docID string, vector []float32, k int) []Match {
	idx, ok := s.Get(kind, docID)
	if !ok {
		return []Match{}
	}
	return topK(scoreIndex(idx, vector), k)
}

// SearchAll scores every index of kind against query.
func (s *Store) SearchAll(ctx context.Context, kind Kind, query string, k int) ([]Match, error) {
	vecs, err := s.embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	return s.SearchAllVector(kind, vecs[0], k), nil
}

func (s *Store) SearchAllVector(kind Kind, vector []float32, k int) []Match {
	var all []Match
	for _, sh := range s.shards {
		sh.mu.RLock()
		for key, idx := range sh.indices {
			if key.kind == kind {
				all = append(all, scoreIndex(idx, vector)...)
			}
		}
		sh.mu.RUnlock()
	}
	return topK(all, k)
}

// Snapshot returns every index, ordered by kind then document id.
func (s *Store) Snapshot() []*Index {
	var out []*Index
	for _, sh := range s.shards {
		sh.mu.RLock()
		for _, idx := range sh.indices {
			out = append(out, idx)
		}
		sh.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].DocumentID < out[j].DocumentID
	})
	return out
}

type snapshotFile struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"saved_at"`
	Indices []*Index  `json:"indices"`
}

// Save writes all indices to path as a single JSON document.
func (s *Store) Save(path string) error {
	payload, err := json.Marshal(snapshotFile{
		Version: snapshotVersion,
		SavedAt: s.now(),
		Indices: s.Snapshot(),
	})
	if err != nil {
		return fmt.Errorf("marshal vector snapshot failed: %w", err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create snapshot dir failed: %w", err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return fmt.Errorf("write vector snapshot failed: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename vector snapshot failed: %w", err)
	}
	return nil
}

// Load replaces the store contents with the snapshot at path. A missing file
// leaves the store empty.
func (s *Store) Load(path string) error {
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read vector snapshot failed: %w", err)
	}
	var snap snapshotFile
	if err := json.Unmarshal(raw, &snap); err != nil {
		return fmt.Errorf("parse vector snapshot failed: %w", err)
	}
	if snap.Version != snapshotVersion {
		return fmt.Errorf("unsupported vector snapshot version %d", snap.Version)
	}
	for _, sh := range s.shards {
		sh.mu.Lock()
		sh.indices = make(map[indexKey]*Index)
		sh.mu.Unlock()
	}
	for _, idx := range snap.Indices {
		if idx == nil || idx.DocumentID == "" {
			continue
		}
		s.put(idx)
	}
	s.logger.Info("vector snapshot loaded", zap.String("path", path), zap.Int("indices", len(snap.Indices)))
	return nil
}

func (s *Store) put(idx *Index) {
	sh := s.shardFor(idx.DocumentID)
	sh.mu.Lock()
	sh.indices[indexKey{kind: idx.Kind, docID: idx.DocumentID}] = idx
	sh.mu.Unlock()
}

func (s *Store) build(ctx context.Context, kind Kind, docID string, entries []Entry) (*Index, error) {
	texts := make([]string, 0, len(entries))
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if strings.TrimSpace(e.Text) == "" {
			continue
		}
		texts = append(texts, e.Text)
		kept = append(kept, e)
	}
	if len(texts) == 0 {
		return nil, ErrEmptyContent
	}
	vecs, err := s.embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	now := s.now()
	idx := &Index{Kind: kind, DocumentID: docID, BuiltAt: now, Chunks: make([]Chunk, len(kept))}
	for i, e := range kept {
		created := e.CreatedAt
		if created.IsZero() {
			created = now
		}
		idx.Chunks[i] = Chunk{ID: e.ID, Text: e.Text, Vector: Normalize(vecs[i]), CreatedAt: created}
	}
	return idx, nil
}

func (s *Store) embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embeddingBatchSize {
		end := i + embeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.embedder.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch failed: %w", err)
		}
		if len(batch) != end-i {
			return nil, fmt.Errorf("embedding count mismatch: got %d want %d", len(batch), end-i)
		}
		out = append(out, batch...)
	}
	return out, nil
}

func scoreIndex(idx *Index, vector []float32) []Match {
	out := make([]Match, 0, len(idx.Chunks))
	for _, c := range idx.Chunks {
		out = append(out, Match{
			Kind:       idx.Kind,
			DocumentID: idx.DocumentID,
			ChunkID:    c.ID,
			Text:       c.Text,
			Score:      Cosine(vector, c.Vector),
			CreatedAt:  c.CreatedAt,
		})
	}
	return out
}

func topK(matches []Match, k int) []Match {
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].Score > matches[j].Score })
	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	if matches == nil {
		return []Match{}
	}
	return matches
}
