package app

import (
	"context"
	"errors"
	"fmt"

	"docexplorer/internal/pkg/pdfextract"
	"docexplorer/internal/warehouse"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrDocumentEmpty    = errors.New("document has no extractable text")
	ErrNoPDF            = errors.New("document has no pdf")
	ErrNoImage          = errors.New("document has no image")
)

// DocumentSource resolves catalog rows and their blobs.
type DocumentSource interface {
	Document(ctx context.Context, id string) (*warehouse.Document, error)
	Text(ctx context.Context, doc *warehouse.Document) (string, error)
	Image(ctx context.Context, doc *warehouse.Document) ([]byte, error)
}

type DocumentCatalog interface {
	GetDocument(ctx context.Context, id string) (*warehouse.Document, error)
}

type BlobFetcher interface {
	Fetch(ctx context.Context, path string, maxBytes int64) ([]byte, error)
}

// StorageDocumentSource reads metadata from the warehouse and blobs from
// object storage.
type StorageDocumentSource struct {
	catalog  DocumentCatalog
	blobs    BlobFetcher
	maxBytes int64
}

func NewStorageDocumentSource(catalog DocumentCatalog, blobs BlobFetcher, maxBytes int64) *StorageDocumentSource {
	return &StorageDocumentSource{
		catalog:  catalog,
		blobs:    blobs,
		maxBytes: maxBytes,
	}
}

func (s *StorageDocumentSource) Document(ctx context.Context, id string) (*warehouse.Document, error) {
	doc, err := s.catalog.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

func (s *StorageDocumentSource) Text(ctx context.Context, doc *warehouse.Document) (string, error) {
	if doc.PDFPath == "" {
		return "", ErrNoPDF
	}
	data, err := s.blobs.Fetch(ctx, doc.PDFPath, s.maxBytes)
	if err != nil {
		return "", fmt.Errorf("fetch pdf failed: %w", err)
	}
	text, err := pdfextract.ExtractText(data)
	if err != nil {
		return "", fmt.Errorf("extract pdf text failed: %w", err)
	}
	return text, nil
}

func (s *StorageDocumentSource) Image(ctx context.Context, doc *warehouse.Document) ([]byte, error) {
	if doc.ImagePath == "" {
		return nil, ErrNoImage
	}
	data, err := s.blobs.Fetch(ctx, doc.ImagePath, s.maxBytes)
	if err != nil {
		return nil, fmt.Errorf("fetch image failed: %w", err)
	}
	return data, nil
}
