package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/docugraph/docugraph/internal/chat"
	"github.com/docugraph/docugraph/internal/http/response"
	"github.com/docugraph/docugraph/internal/platform/logger"
)

type ChatHandler struct {
	log  *logger.Logger
	chat *chat.Service
}

func NewChatHandler(log *logger.Logger, chatService *chat.Service) *ChatHandler {
	return &ChatHandler{
		log:  log.With("handler", "ChatHandler"),
		chat: chatService,
	}
}

type askRequest struct {
	Question string      `json:"question" binding:"required"`
	History  []chat.Turn `json:"history"`
}

// POST /api/chat
func (h *ChatHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	answer, err := h.chat.Ask(c.Request.Context(), req.Question, req.History)
	if err != nil {
		h.log.Error("Ask failed", "error", err)
		response.RespondError(c, http.StatusInternalServerError, "ask_failed", err)
		return
	}
	response.RespondOK(c, answer)
}
