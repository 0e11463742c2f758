package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/notebook/internal/ai"
	"github.com/xxxsen/notebook/internal/pkg/errcode"
	"github.com/xxxsen/notebook/internal/pkg/response"
	"github.com/xxxsen/notebook/internal/service"
)

type ChatHandler struct {
	chat *service.ChatService
}

func NewChatHandler(chat *service.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

type chatRequest struct {
	Question string       `json:"question"`
	History  []ai.Message `json:"history"`
	Provider string       `json:"provider"`
}

func (r *chatRequest) toQuestion() service.Question {
	return service.Question{Text: r.Question, History: r.History, Provider: r.Provider}
}

func (h *ChatHandler) Ask(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request")
		return
	}
	answer, err := h.chat.Ask(c.Request.Context(), getUserID(c), req.toQuestion())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, answer)
}

// chatSourcesHeader carries the context notes of a streamed answer as json,
// keeping the event stream itself to content events.
const chatSourcesHeader = "X-Chat-Sources"

func (h *ChatHandler) Stream(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Raw(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	refs, stream, err := h.chat.AskStream(c.Request.Context(), getUserID(c), req.toQuestion())
	if err != nil {
		handleRawError(c, err)
		return
	}
	if refs == nil {
		refs = []service.SourceRef{}
	}
	encoded, err := asciiJSON(refs)
	if err != nil {
		_ = stream.Close()
		handleRawError(c, err)
		return
	}
	c.Header(chatSourcesHeader, encoded)
	streamChat(c, stream)
}
