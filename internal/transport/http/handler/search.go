package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/app"
	"docexplorer/internal/transport/http/response"
)

type SearchHandler struct {
	search *app.SearchService
}

type HybridSearchRequest struct {
	Query      string `json:"query" binding:"required,max=1000"`
	DocumentID string `json:"document_id" binding:"max=64"`
	SearchType string `json:"search_type"`
	Page       int    `json:"page" binding:"gte=0,lte=1000"`
	PageSize   int    `json:"page_size" binding:"gte=0"`
}

type TimeRangeSearchRequest struct {
	HybridSearchRequest
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}

func NewSearchHandler(search *app.SearchService) *SearchHandler {
	return &SearchHandler{search: search}
}

func (r HybridSearchRequest) toApp() app.SearchRequest {
	return app.SearchRequest{
		Query:      r.Query,
		DocumentID: r.DocumentID,
		SearchType: app.SearchType(r.SearchType),
		Page:       r.Page,
		PageSize:   r.PageSize,
	}
}

func (h *SearchHandler) Hybrid(c *gin.Context) {
	var req HybridSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	result, err := h.search.HybridSearch(c.Request.Context(), req.toApp())
	if err != nil {
		writeServiceError(c, err, "search failed")
		return
	}
	response.OK(c, result)
}

func (h *SearchHandler) TimeRange(c *gin.Context) {
	var req TimeRangeSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "start_date and end_date are required")
		return
	}
	result, err := h.search.TimeRangeSearch(c.Request.Context(), req.toApp(), req.StartDate, req.EndDate)
	if err != nil {
		writeServiceError(c, err, "search failed")
		return
	}
	response.OK(c, result)
}

// SimilarNotes takes an optional ?limit (default 5).
func (h *SearchHandler) SimilarNotes(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}
	results, err := h.search.SimilarNotes(c.Request.Context(), c.Param("note_id"), limit)
	if err != nil {
		writeServiceError(c, err, "similar notes search failed")
		return
	}
	response.OK(c, results)
}
