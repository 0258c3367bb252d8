package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/app"
	"docexplorer/internal/transport/http/response"
)

type ReportHandler struct {
	reports *app.ReportService
}

type GenerateReportRequest struct {
	Question       string                 `json:"question" binding:"required,max=4000"`
	Answer         string                 `json:"answer" binding:"required,max=20000"`
	VisualElements []app.VisualElement    `json:"visual_elements"`
	Metadata       map[string]interface{} `json:"metadata"`
}

func NewReportHandler(reports *app.ReportService) *ReportHandler {
	return &ReportHandler{reports: reports}
}

func (h *ReportHandler) Generate(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}

	var req GenerateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	result, err := h.reports.Generate(c.Request.Context(), app.ReportInput{
		UserID:         userID,
		Analyst:        getUsernameFromContext(c),
		DocumentID:     documentID,
		Question:       req.Question,
		Answer:         req.Answer,
		VisualElements: req.VisualElements,
		Metadata:       req.Metadata,
	})
	if err != nil {
		writeServiceError(c, err, "generate report failed")
		return
	}
	response.OK(c, result)
}

func (h *ReportHandler) Get(c *gin.Context) {
	report, err := h.reports.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "get report failed")
		return
	}
	response.OK(c, report)
}
