package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"docexplorer/internal/app"
)

type ExploreHandler struct {
	explorer *app.ExplorerService
	logger   *zap.Logger
}

type exploredDocument struct {
	ID                    string  `json:"id"`
	Title                 string  `json:"title"`
	PDFGCSPath            string  `json:"pdf_gcs_path"`
	PDFAuthenticatedURL   *string `json:"pdf_authenticated_url"`
	ImageAuthenticatedURL string  `json:"image_authenticated_url,omitempty"`
}

type exploreResponse struct {
	Documents []exploredDocument `json:"documents"`
	Count     int                `json:"count"`
}

type exploreError struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
}

func NewExploreHandler(explorer *app.ExplorerService, logger *zap.Logger) *ExploreHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExploreHandler{explorer: explorer, logger: logger}
}

// ExploreDocuments lists the catalog with freshly signed links. Its body
// is not wrapped in the API envelope.
func (h *ExploreHandler) ExploreDocuments(c *gin.Context) {
	docs, err := h.explorer.ExploreDocuments(c.Request.Context())
	if err != nil {
		if errors.Is(err, app.ErrCatalogUnavailable) {
			h.logger.Warn("explore documents: catalog unavailable", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, exploreError{Status: http.StatusServiceUnavailable, Message: "Database not found"})
			return
		}
		h.logger.Error("explore documents failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, exploreError{Status: http.StatusInternalServerError, Message: "Error fetching documents"})
		return
	}

	out := make([]exploredDocument, 0, len(docs))
	for _, d := range docs {
		item := exploredDocument{
			ID:                    d.ID,
			Title:                 d.Title,
			PDFGCSPath:            d.PDFPath,
			ImageAuthenticatedURL: d.ImageURL,
		}
		if d.PDFURL != "" {
			pdfURL := d.PDFURL
			item.PDFAuthenticatedURL = &pdfURL
		}
		out = append(out, item)
	}
	c.JSON(http.StatusOK, exploreResponse{Documents: out, Count: len(out)})
}
