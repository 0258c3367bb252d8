package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/ai"
	"docexplorer/internal/app"
	"docexplorer/internal/transport/http/response"
)

type QAHandler struct {
	ragService *app.RAGService
}

type AskRequest struct {
	DocumentID  string  `json:"document_id" binding:"required,max=64"`
	Question    string  `json:"question" binding:"required,max=4000"`
	Context     string  `json:"context" binding:"max=8000"`
	MaxTokens   int     `json:"max_tokens" binding:"gte=0,lte=8192"`
	Temperature *float64 `json:"temperature" binding:"omitempty,gte=0,lte=2"`
	TopK        int     `json:"top_k" binding:"gte=0"`
	TopP        float64 `json:"top_p" binding:"gte=0,lte=1"`
}

type MultimodalQueryRequest struct {
	DocumentID    string `json:"document_id" binding:"required,max=64"`
	Query         string `json:"query" binding:"required,max=4000"`
	IncludeVisual *bool  `json:"include_visual"`
}

func NewQAHandler(ragService *app.RAGService) *QAHandler {
	return &QAHandler{ragService: ragService}
}

func (r AskRequest) input(userID uint) app.AskInput {
	return app.AskInput{
		UserID:     userID,
		DocumentID: r.DocumentID,
		Question:   r.Question,
		Context:    r.Context,
		Params: ai.GenerationParams{
			MaxTokens:   r.MaxTokens,
			Temperature: r.Temperature,
			TopK:        r.TopK,
			TopP:        r.TopP,
		},
	}
}

func (h *QAHandler) Ask(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	answer, err := h.ragService.Ask(c.Request.Context(), req.input(userID))
	if err != nil {
		writeServiceError(c, err, "ask failed")
		return
	}
	response.OK(c, answer)
}

// AskStream sends answer chunks as SSE data frames, then a done event
// carrying the full answer, or an error event.
func (h *QAHandler) AskStream(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "stream not supported")
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	c.Status(http.StatusOK)

	answer, err := h.ragService.StreamAsk(c.Request.Context(), req.input(userID), func(chunk string) error {
		if _, writeErr := c.Writer.Write([]byte("data: " + sanitizeSSE(chunk) + "\n\n")); writeErr != nil {
			return writeErr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		_ = c.Error(err)
		if _, writeErr := c.Writer.Write([]byte("event: error\ndata: " + streamErrorMessage(err) + "\n\n")); writeErr == nil {
			flusher.Flush()
		}
		return
	}

	if _, writeErr := c.Writer.Write([]byte("event: done\ndata: " + sanitizeSSE(answer.Answer) + "\n\n")); writeErr == nil {
		flusher.Flush()
	}
}

func streamErrorMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrInvalidInput):
		return "invalid input"
	case errors.Is(err, app.ErrDocumentNotFound):
		return "document not found"
	case errors.Is(err, app.ErrDocumentEmpty), errors.Is(err, app.ErrNoPDF):
		return "document has no extractable text"
	default:
		return "ask failed"
	}
}

// MultimodalQuery answers with the document's preview image as visual
// context; include_visual defaults to true.
func (h *QAHandler) MultimodalQuery(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req MultimodalQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	includeVisual := true
	if req.IncludeVisual != nil {
		includeVisual = *req.IncludeVisual
	}

	result, err := h.ragService.MultimodalQuery(c.Request.Context(), app.MultimodalInput{
		UserID:        userID,
		DocumentID:    req.DocumentID,
		Query:         req.Query,
		IncludeVisual: includeVisual,
	})
	if err != nil {
		writeServiceError(c, err, "multimodal query failed")
		return
	}
	response.OK(c, result)
}
