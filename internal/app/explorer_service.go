package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"docexplorer/internal/warehouse"
)

var ErrCatalogUnavailable = errors.New("document catalog unavailable")

// URLSigner mints a time-limited read URL for a gs:// path.
type URLSigner interface {
	SignURL(ctx context.Context, path string) (string, error)
}

// ExploredDocument is one catalog row with freshly signed links. URLs are
// empty when the row has no matching path.
type ExploredDocument struct {
	ID       string
	Title    string
	PDFPath  string
	PDFURL   string
	ImageURL string
}

type ExplorerService struct {
	connector warehouse.Connector
	signer    URLSigner
	logger    *zap.Logger
}

func NewExplorerService(connector warehouse.Connector, signer URLSigner, logger *zap.Logger) *ExplorerService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExplorerService{
		connector: connector,
		signer:    signer,
		logger:    logger,
	}
}

// ExploreDocuments lists the whole catalog. Links are signed on every call
// and never cached.
func (s *ExplorerService) ExploreDocuments(ctx context.Context) ([]ExploredDocument, error) {
	conn, err := s.connector.Connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			s.logger.Warn("close warehouse connection failed", zap.Error(cerr))
		}
	}()

	rows, err := conn.FetchDocuments(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch documents failed: %w", err)
	}

	docs := make([]ExploredDocument, 0, len(rows))
	for _, row := range rows {
		doc := ExploredDocument{
			ID:      row.ID,
			Title:   row.Title,
			PDFPath: row.PDFPath,
		}
		if row.PDFPath != "" {
			if doc.PDFURL, err = s.signer.SignURL(ctx, row.PDFPath); err != nil {
				return nil, fmt.Errorf("sign pdf url for document %s failed: %w", row.ID, err)
			}
		}
		if row.ImagePath != "" {
			if doc.ImageURL, err = s.signer.SignURL(ctx, row.ImagePath); err != nil {
				return nil, fmt.Errorf("sign image url for document %s failed: %w", row.ID, err)
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
