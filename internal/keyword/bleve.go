// Package keyword provides the in-memory Bleve index used for the keyword
// half of hybrid search over document chunks and research notes.
package keyword

import (
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	keywordanalyzer "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"
)

const (
	KindDocument = "document"
	KindNote     = "note"
)

type Entry struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Kind       string `json:"kind"`
	Content    string `json:"content"`
}

type Result struct {
	ID         string
	DocumentID string
	Kind       string
	Score      float64
}

type Filter struct {
	Kind       string
	DocumentID string
}

type Index struct {
	mu    sync.Mutex
	index bleve.Index
	// owned tracks ids per (kind, document) so a rebuild can drop stale entries.
	owned map[string]map[string]struct{}
}

func NewMemIndex() (*Index, error) {
	im := bleve.NewIndexMapping()

	docMapping := bleve.NewDocumentMapping()
	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("content", textFieldMapping)

	keywordFieldMapping := bleve.NewTextFieldMapping()
	keywordFieldMapping.Analyzer = keywordanalyzer.Name
	keywordFieldMapping.Store = true
	docMapping.AddFieldMappingsAt("document_id", keywordFieldMapping)
	docMapping.AddFieldMappingsAt("kind", keywordFieldMapping)

	im.AddDocumentMapping("entry", docMapping)
	im.DefaultType = "entry"
	im.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(im)
	if err != nil {
		return nil, fmt.Errorf("create bleve index failed: %w", err)
	}
	return &Index{index: index, owned: make(map[string]map[string]struct{})}, nil
}

// Replace swaps every entry of (kind, documentID) for entries.
func (x *Index) Replace(kind, documentID string, entries []Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	batch := x.index.NewBatch()
	group := ownerKey(kind, documentID)
	for id := range x.owned[group] {
		batch.Delete(id)
	}
	next := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		e.Kind = kind
		e.DocumentID = documentID
		if err := batch.Index(e.ID, e); err != nil {
			return fmt.Errorf("batch index %s failed: %w", e.ID, err)
		}
		next[e.ID] = struct{}{}
	}
	if err := x.index.Batch(batch); err != nil {
		return fmt.Errorf("apply bleve batch failed: %w", err)
	}
	if len(next) == 0 {
		delete(x.owned, group)
	} else {
		x.owned[group] = next
	}
	return nil
}

// Add indexes one entry without touching its siblings.
func (x *Index) Add(e Entry) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.index.Index(e.ID, e); err != nil {
		return fmt.Errorf("bleve index %s failed: %w", e.ID, err)
	}
	group := ownerKey(e.Kind, e.DocumentID)
	if x.owned[group] == nil {
		x.owned[group] = make(map[string]struct{})
	}
	x.owned[group][e.ID] = struct{}{}
	return nil
}

// Search runs a match query over content, optionally restricted by filter.
func (x *Index) Search(query string, limit int, filter Filter) ([]Result, error) {
	if limit <= 0 {
		limit = 10
	}
	match := bleve.NewMatchQuery(query)
	match.SetField("content")

	conjuncts := []blevequery.Query{match}
	if filter.Kind != "" {
		q := bleve.NewTermQuery(filter.Kind)
		q.SetField("kind")
		conjuncts = append(conjuncts, q)
	}
	if filter.DocumentID != "" {
		q := bleve.NewTermQuery(filter.DocumentID)
		q.SetField("document_id")
		conjuncts = append(conjuncts, q)
	}

	var q blevequery.Query = match
	if len(conjuncts) > 1 {
		q = bleve.NewConjunctionQuery(conjuncts...)
	}
	req := bleve.NewSearchRequest(q)
	req.Size = limit
	req.Fields = []string{"document_id", "kind"}
	res, err := x.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}
	out := make([]Result, 0, len(res.Hits))
	for _, hit := range res.Hits {
		r := Result{ID: hit.ID, Score: hit.Score}
		if v, ok := hit.Fields["document_id"].(string); ok {
			r.DocumentID = v
		}
		if v, ok := hit.Fields["kind"].(string); ok {
			r.Kind = v
		}
		out = append(out, r)
	}
	return out, nil
}

func (x *Index) DocCount() (uint64, error) {
	return x.index.DocCount()
}

func (x *Index) Close() error {
	return x.index.Close()
}

func ownerKey(kind, documentID string) string {
	return kind + "\x00" + documentID
}
