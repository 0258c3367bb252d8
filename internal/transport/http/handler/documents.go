package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/app"
	"docexplorer/internal/transport/http/response"
)

type DocumentHandler struct {
	summaries *app.SummarizationService
	reports   *app.ReportService
}

func NewDocumentHandler(summaries *app.SummarizationService, reports *app.ReportService) *DocumentHandler {
	return &DocumentHandler{summaries: summaries, reports: reports}
}

func documentIDParam(c *gin.Context) (string, bool) {
	id := strings.TrimSpace(c.Param("document_id"))
	if id == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return "", false
	}
	return id, true
}

// Summary returns the cached summary unless ?refresh=true.
func (h *DocumentHandler) Summary(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	refresh, _ := strconv.ParseBool(c.Query("refresh"))

	summary, err := h.summaries.DocumentSummary(c.Request.Context(), documentID, refresh)
	if err != nil {
		writeServiceError(c, err, "generate summary failed")
		return
	}
	response.OK(c, summary)
}

func (h *DocumentHandler) ResearchSummary(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	summary, err := h.summaries.ResearchSummary(c.Request.Context(), documentID)
	if err != nil {
		writeServiceError(c, err, "generate research summary failed")
		return
	}
	response.OK(c, summary)
}

func (h *DocumentHandler) MultimodalSummary(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	summary, err := h.summaries.MultimodalSummary(c.Request.Context(), documentID)
	if err != nil {
		writeServiceError(c, err, "generate multimodal summary failed")
		return
	}
	response.OK(c, summary)
}

func (h *DocumentHandler) ListReports(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	reports, err := h.reports.ListByDocument(c.Request.Context(), documentID)
	if err != nil {
		writeServiceError(c, err, "list reports failed")
		return
	}
	response.OK(c, reports)
}
