package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/app"
	"docexplorer/internal/transport/http/response"
)

type ResearchNoteHandler struct {
	notes *app.ResearchNoteService
}

type CreateNoteRequest struct {
	Content    string                 `json:"content" binding:"required,max=20000"`
	SourceType string                 `json:"source_type"`
	Question   string                 `json:"question" binding:"max=4000"`
	Metadata   map[string]interface{} `json:"metadata"`
}

type UpdateNoteRequest struct {
	Content string `json:"content" binding:"required,max=20000"`
}

type SearchNotesRequest struct {
	Query        string `json:"query" binding:"required,max=1000"`
	DocumentID   string `json:"document_id" binding:"max=64"`
	VerifiedOnly bool   `json:"verified_only"`
	Limit        int    `json:"limit" binding:"gte=0,lte=100"`
}

func NewResearchNoteHandler(notes *app.ResearchNoteService) *ResearchNoteHandler {
	return &ResearchNoteHandler{notes: notes}
}

func (h *ResearchNoteHandler) Create(c *gin.Context) {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}

	var req CreateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	note, err := h.notes.CreateNote(c.Request.Context(), app.CreateNoteInput{
		UserID:     userID,
		DocumentID: documentID,
		Content:    req.Content,
		SourceType: req.SourceType,
		Question:   req.Question,
		Metadata:   req.Metadata,
	})
	if err != nil {
		writeServiceError(c, err, "create note failed")
		return
	}
	response.OK(c, note)
}

// List returns a document's notes; ?verified_only=true hides unverified ones.
func (h *ResearchNoteHandler) List(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	verifiedOnly, _ := strconv.ParseBool(c.Query("verified_only"))

	notes, err := h.notes.ListNotes(c.Request.Context(), documentID, verifiedOnly)
	if err != nil {
		writeServiceError(c, err, "list notes failed")
		return
	}
	response.OK(c, gin.H{"document_id": documentID, "notes": notes, "count": len(notes)})
}

func (h *ResearchNoteHandler) Get(c *gin.Context) {
	note, err := h.notes.GetNote(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeServiceError(c, err, "get note failed")
		return
	}
	response.OK(c, note)
}

func (h *ResearchNoteHandler) Update(c *gin.Context) {
	var req UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	note, err := h.notes.UpdateNote(c.Request.Context(), c.Param("id"), req.Content)
	if err != nil {
		writeServiceError(c, err, "update note failed")
		return
	}
	response.OK(c, note)
}

func (h *ResearchNoteHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.notes.DeleteNote(c.Request.Context(), id); err != nil {
		writeServiceError(c, err, "delete note failed")
		return
	}
	response.OK(c, gin.H{"deleted_note_id": id})
}

func (h *ResearchNoteHandler) Search(c *gin.Context) {
	var req SearchNotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	hits, err := h.notes.SearchNotes(c.Request.Context(), app.NoteSearchInput{
		Query:        req.Query,
		DocumentID:   strings.TrimSpace(req.DocumentID),
		VerifiedOnly: req.VerifiedOnly,
		Limit:        req.Limit,
	})
	if err != nil {
		writeServiceError(c, err, "search notes failed")
		return
	}
	response.OK(c, hits)
}

func (h *ResearchNoteHandler) Trend(c *gin.Context) {
	documentID, ok := documentIDParam(c)
	if !ok {
		return
	}
	trend, err := h.notes.AnalyzeTrend(c.Request.Context(), documentID)
	if err != nil {
		writeServiceError(c, err, "analyze trend failed")
		return
	}
	response.OK(c, trend)
}
