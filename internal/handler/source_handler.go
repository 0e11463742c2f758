package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notebook/internal/pkg/errcode"
	"github.com/xxxsen/notebook/internal/pkg/response"
	"github.com/xxxsen/notebook/internal/service"
)

// multipart framing allowance on top of the file itself
const uploadOverhead = 1 << 20

type SourceHandler struct {
	sources *service.SourceService
}

func NewSourceHandler(sources *service.SourceService) *SourceHandler {
	return &SourceHandler{sources: sources}
}

type sourceTextRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type sourceURLRequest struct {
	URL string `json:"url"`
}

type sourceUpdateRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

func (h *SourceHandler) List(c *gin.Context) {
	page, err := h.sources.List(c.Request.Context(), getUserID(c), c.Query("source_type"),
		queryInt(c, "page", 1), queryInt(c, "page_size", service.DefaultPageSize))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, page)
}

func (h *SourceHandler) Get(c *gin.Context) {
	src, err := h.sources.Get(c.Request.Context(), getUserID(c), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) Update(c *gin.Context) {
	var req sourceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	src, err := h.sources.Update(c.Request.Context(), getUserID(c), c.Param("id"), service.SourcePatch{
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) Delete(c *gin.Context) {
	if err := h.sources.Delete(c.Request.Context(), getUserID(c), c.Param("id")); err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"ok": true})
}

func (h *SourceHandler) CreateText(c *gin.Context) {
	var req sourceTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	src, err := h.sources.CreateText(c.Request.Context(), getUserID(c), req.Title, req.Content)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, service.MaxUploadSize+uploadOverhead)
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "file is required")
		return
	}
	if file.Size > service.MaxUploadSize {
		response.Error(c, errcode.ErrInvalidFile, "File too large. Maximum size: "+formatUploadLimit(service.MaxUploadSize))
		return
	}
	opened, err := file.Open()
	if err != nil {
		response.Error(c, errcode.ErrInvalidFile, "failed to open file")
		return
	}
	defer opened.Close()
	data, err := io.ReadAll(io.LimitReader(opened, service.MaxUploadSize+1))
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read file")
		return
	}
	src, err := h.sources.Upload(c.Request.Context(), getUserID(c), file.Filename, data)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) AddURL(c *gin.Context) {
	var req sourceURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	src, err := h.sources.AddURL(c.Request.Context(), getUserID(c), req.URL)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) AddYouTube(c *gin.Context) {
	var req sourceURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	src, err := h.sources.AddYouTube(c.Request.Context(), getUserID(c), req.URL)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}

func (h *SourceHandler) SemanticSearch(c *gin.Context) {
	matches, err := h.sources.SemanticSearch(c.Request.Context(), getUserID(c), c.Query("q"),
		queryInt(c, "limit", service.DefaultContextLimit),
		queryFloat(c, "threshold", service.DefaultContextThreshold))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, matches)
}
