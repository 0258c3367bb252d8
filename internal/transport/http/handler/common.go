package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/app"
	"docexplorer/internal/transport/http/middleware"
	"docexplorer/internal/transport/http/response"
	"docexplorer/internal/warehouse"
)

func getUserIDFromContext(c *gin.Context) (uint, bool) {
	userIDAny, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return 0, false
	}
	userID, ok := userIDAny.(uint)
	return userID, ok
}

func getUsernameFromContext(c *gin.Context) string {
	return c.GetString(middleware.ContextUsernameKey)
}

// writeServiceError maps service sentinels onto status codes. Anything
// unrecognised becomes a 500 carrying fallback, never the error text.
func writeServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrInvalidSourceType),
		errors.Is(err, app.ErrInvalidSearchType):
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
	case errors.Is(err, app.ErrDocumentNotFound):
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, err.Error())
	case errors.Is(err, app.ErrNoteNotFound):
		response.Error(c, http.StatusNotFound, response.CodeNoteNotFound, err.Error())
	case errors.Is(err, app.ErrReportNotFound):
		response.Error(c, http.StatusNotFound, response.CodeReportNotFound, err.Error())
	case errors.Is(err, app.ErrDocumentEmpty),
		errors.Is(err, app.ErrNoPDF),
		errors.Is(err, app.ErrNoImage):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeDocumentEmpty, err.Error())
	case errors.Is(err, app.ErrNoInteractions):
		response.Error(c, http.StatusUnprocessableEntity, response.CodeNoInteractions, err.Error())
	case errors.Is(err, app.ErrAlreadyValidated):
		response.Error(c, http.StatusConflict, response.CodeAlreadyValidated, err.Error())
	case errors.Is(err, app.ErrGenerationFailed):
		response.Error(c, http.StatusBadGateway, response.CodeUpstreamFailed, "model generation failed")
	case errors.Is(err, warehouse.ErrUnavailable), errors.Is(err, app.ErrCatalogUnavailable):
		response.Error(c, http.StatusServiceUnavailable, response.CodeUnavailable, "document catalog unavailable")
	default:
		_ = c.Error(err)
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
	}
}

func sanitizeSSE(input string) string {
	replaced := strings.ReplaceAll(input, "\r\n", "\\n")
	replaced = strings.ReplaceAll(replaced, "\n", "\\n")
	return replaced
}
