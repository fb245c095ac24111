package note

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"versioned-notes/internal/errors"
	"versioned-notes/internal/utils"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type CreateRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Content string `json:"content" binding:"required"`
}

// UpdateRequest fields are optional; an omitted field keeps its previous value.
type UpdateRequest struct {
	Title   string `json:"title" binding:"max=255"`
	Content string `json:"content"`
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID := c.GetUint64("user_id")

	note, err := h.service.CreateNote(c.Request.Context(), userID, form.Title, form.Content)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, note)
}

func (h *Handler) Update(c *gin.Context) {
	noteID, err := utils.ParseNoteID(c)
	if err != nil {
		c.Error(errors.NotFound("Note not found", err))
		return
	}

	var form UpdateRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	userID := c.GetUint64("user_id")

	note, err := h.service.UpdateNote(c.Request.Context(), noteID, userID, form.Title, form.Content)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, note)
}

func (h *Handler) Delete(c *gin.Context) {
	noteID, err := utils.ParseNoteID(c)
	if err != nil {
		c.Error(errors.NotFound("Note not found", err))
		return
	}

	userID := c.GetUint64("user_id")

	if err := h.service.DeleteNote(c.Request.Context(), noteID, userID); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) Show(c *gin.Context) {
	noteID, err := utils.ParseNoteID(c)
	if err != nil {
		c.Error(errors.NotFound("Note not found", err))
		return
	}

	userID := c.GetUint64("user_id")

	note, err := h.service.GetNote(c.Request.Context(), noteID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, note)
}

func (h *Handler) List(c *gin.Context) {
	userID := c.GetUint64("user_id")

	notes, err := h.service.ListNotes(c.Request.Context(), userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": notes})
}

func (h *Handler) Revisions(c *gin.Context) {
	noteID, err := utils.ParseNoteID(c)
	if err != nil {
		c.Error(errors.NotFound("Note not found", err))
		return
	}

	userID := c.GetUint64("user_id")

	history, err := h.service.ListRevisions(c.Request.Context(), noteID, userID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, history)
}

// OwnerNotes lists the live notes of any user. Admin only.
func (h *Handler) OwnerNotes(c *gin.Context) {
	ownerID, err := utils.ParseUintParam(c, "id")
	if err != nil {
		c.Error(errors.NotFound("User not found", err))
		return
	}

	notes, err := h.service.ListNotes(c.Request.Context(), ownerID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": notes})
}
