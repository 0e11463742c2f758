package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notebook/internal/pkg/response"
	"github.com/xxxsen/notebook/internal/service"
)

type LLMHandler struct {
	status *service.LLMStatusService
}

func NewLLMHandler(status *service.LLMStatusService) *LLMHandler {
	return &LLMHandler{status: status}
}

func (h *LLMHandler) Status(c *gin.Context) {
	response.Success(c, h.status.Status(c.Request.Context()))
}

func (h *LLMHandler) OllamaStatus(c *gin.Context) {
	response.Success(c, h.status.Ollama(c.Request.Context()))
}

func (h *LLMHandler) OllamaModels(c *gin.Context) {
	response.Success(c, gin.H{"models": h.status.OllamaModels(c.Request.Context())})
}
