package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"docexplorer/internal/app"
	"docexplorer/internal/transport/http/response"
)

type ValidationHandler struct {
	validation *app.ValidationService
}

type ValidateRequest struct {
	IsValid  *bool  `json:"is_valid" binding:"required"`
	Feedback string `json:"feedback" binding:"max=4000"`
}

func NewValidationHandler(validation *app.ValidationService) *ValidationHandler {
	return &ValidationHandler{validation: validation}
}

func (h *ValidationHandler) Pending(c *gin.Context) {
	notes, err := h.validation.ListPending(c.Request.Context(), c.Query("document_id"))
	if err != nil {
		writeServiceError(c, err, "list pending notes failed")
		return
	}
	response.OK(c, notes)
}

func (h *ValidationHandler) Validated(c *gin.Context) {
	notes, err := h.validation.ListValidated(c.Request.Context(), c.Query("document_id"))
	if err != nil {
		writeServiceError(c, err, "list validated notes failed")
		return
	}
	response.OK(c, notes)
}

// Validate records the caller as validator of the note.
func (h *ValidationHandler) Validate(c *gin.Context) {
	validator := getUsernameFromContext(c)
	if validator == "" {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "invalid token payload")
		return
	}

	var req ValidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	note, err := h.validation.Validate(c.Request.Context(), app.ValidateInput{
		NoteID:    c.Param("note_id"),
		Validator: validator,
		IsValid:   *req.IsValid,
		Feedback:  req.Feedback,
	})
	if err != nil {
		writeServiceError(c, err, "validate note failed")
		return
	}
	response.OK(c, note)
}
