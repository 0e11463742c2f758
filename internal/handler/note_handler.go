package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notebook/internal/model"
	"github.com/xxxsen/notebook/internal/pkg/response"
	"github.com/xxxsen/notebook/internal/service"
)

type NoteHandler struct {
	notes *service.NoteService
}

func NewNoteHandler(notes *service.NoteService) *NoteHandler {
	return &NoteHandler{notes: notes}
}

type noteCreateRequest struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	IsPinned bool     `json:"is_pinned"`
}

type noteUpdateRequest struct {
	Title      *string   `json:"title"`
	Content    *string   `json:"content"`
	Tags       *[]string `json:"tags"`
	IsPinned   *bool     `json:"is_pinned"`
	IsArchived *bool     `json:"is_archived"`
}

func (h *NoteHandler) List(c *gin.Context) {
	filter := model.NoteFilter{
		Search:     c.Query("search"),
		Tag:        c.Query("tag"),
		Archived:   queryBool(c, "archived"),
		PinnedOnly: queryBool(c, "pinned_only"),
	}
	page, err := h.notes.List(c.Request.Context(), getUserID(c), filter,
		queryInt(c, "page", 1), queryInt(c, "page_size", service.DefaultPageSize))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, page)
}

func (h *NoteHandler) Create(c *gin.Context) {
	var req noteCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	note, err := h.notes.Create(c.Request.Context(), getUserID(c), service.NoteInput{
		Title:    req.Title,
		Content:  req.Content,
		Tags:     req.Tags,
		IsPinned: req.IsPinned,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, note)
}

func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.notes.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, note)
}

func (h *NoteHandler) Update(c *gin.Context) {
	var req noteUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	patch := service.NotePatch{
		Title:      req.Title,
		Content:    req.Content,
		IsPinned:   req.IsPinned,
		IsArchived: req.IsArchived,
	}
	if req.Tags != nil {
		patch.Tags = *req.Tags
		patch.SetTags = true
	}
	note, err := h.notes.Update(c.Request.Context(), getUserID(c), c.Param("id"), patch)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, note)
}

func (h *NoteHandler) Delete(c *gin.Context) {
	if err := h.notes.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *NoteHandler) Archive(c *gin.Context) {
	h.setArchived(c, true)
}

func (h *NoteHandler) Unarchive(c *gin.Context) {
	h.setArchived(c, false)
}

func (h *NoteHandler) setArchived(c *gin.Context, archived bool) {
	note, err := h.notes.SetArchived(c.Request.Context(), getUserID(c), c.Param("id"), archived)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, note)
}

func (h *NoteHandler) SemanticSearch(c *gin.Context) {
	matches, err := h.notes.SemanticSearch(c.Request.Context(), getUserID(c), c.Query("q"),
		queryInt(c, "limit", service.DefaultContextLimit),
		queryFloat(c, "threshold", service.DefaultContextThreshold))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, matches)
}

func (h *NoteHandler) Similar(c *gin.Context) {
	matches, err := h.notes.Similar(c.Request.Context(), getUserID(c), c.Param("id"),
		queryInt(c, "limit", service.DefaultContextLimit))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, matches)
}
