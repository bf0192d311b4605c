package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/aman-churiwal/thought-partner/internal/circuitbreaker"
	"github.com/aman-churiwal/thought-partner/internal/logger"
	"github.com/aman-churiwal/thought-partner/internal/middleware"
	"github.com/aman-churiwal/thought-partner/internal/models"
	"github.com/aman-churiwal/thought-partner/internal/service"
	"github.com/aman-churiwal/thought-partner/internal/shield"
	"github.com/gin-contrib/sse"
	"github.com/gin-gonic/gin"
)

const ConversationIDHeader = "X-Conversation-Id"

type ChatHandler struct {
	chat   *service.ChatService
	shield *shield.Shield
}

func NewChatHandler(chat *service.ChatService, sh *shield.Shield) *ChatHandler {
	return &ChatHandler{chat: chat, shield: sh}
}

type streamEvent struct {
	Type  string       `json:"type"`
	Delta *streamDelta `json:"delta,omitempty"`
	Error *streamError `json:"error,omitempty"`
}

type streamDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type streamError struct {
	Message string `json:"message"`
}

// Handles POST /api/chat. The reply is streamed as server-sent events once
// the first delta arrives; failures before that are answered as JSON.
func (h *ChatHandler) Stream(c *gin.Context) {
	req, ok := middleware.ValidatedChatRequest(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	turn := h.chat.StartTurn(*req)
	c.Header(ConversationIDHeader, turn.ConversationID)

	started := false
	begin := func() {
		c.Header("Content-Type", "text/event-stream")
		c.Header("Cache-Control", "no-cache")
		c.Header("Connection", "keep-alive")
		c.Status(http.StatusOK)
		started = true
	}

	err := h.chat.Stream(c.Request.Context(), turn, func(delta string) error {
		if !started {
			begin()
		}
		return writeEvent(c, streamEvent{
			Type:  "content_block_delta",
			Delta: &streamDelta{Type: "text_delta", Text: delta},
		})
	})

	if err != nil {
		requestID := c.GetString(middleware.RequestIDKey)
		if errors.Is(err, context.Canceled) {
			logger.Info("Chat stream cancelled by client", "request_id", requestID)
			return
		}

		logger.Error("Chat stream failed",
			"request_id", requestID,
			"conversation_id", turn.ConversationID,
			"provider", h.chat.Provider().Name(),
			"error", err,
		)

		if !started {
			status := http.StatusBadGateway
			if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"error": "The assistant is unavailable right now. Please try again shortly."})
			return
		}

		_ = writeEvent(c, streamEvent{
			Type:  "error",
			Error: &streamError{Message: "The response was interrupted"},
		})
		return
	}

	if !started {
		begin()
	}
	_ = writeEvent(c, streamEvent{Type: "message_stop"})
}

func writeEvent(c *gin.Context, event streamEvent) error {
	if err := sse.Encode(c.Writer, sse.Event{Data: event}); err != nil {
		return err
	}
	c.Writer.Flush()
	return nil
}

// Handles POST /api/chat/messages, called by the client once a streamed
// reply is complete. Only the turn most recently streamed for a conversation
// accepts a reply, and only once.
func (h *ChatHandler) SaveAssistantMessage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.shield.MaxRequestSize())

	var req models.SaveAssistantMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "Request too large"})
			return
		}
		if !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON body"})
			return
		}
	}

	req.ConversationID = strings.TrimSpace(req.ConversationID)
	if req.ConversationID == "" || req.AssistantMessage == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	result := h.shield.ValidateReply(req.AssistantMessage)
	if !result.Valid {
		h.shield.LogSecurityEvent(shield.EventInvalidInput, map[string]interface{}{
			shield.DetailClientIP:  shield.ClientIP(c.Request),
			shield.DetailPath:      c.Request.URL.Path,
			shield.DetailRequestID: c.GetString(middleware.RequestIDKey),
			"kind":                 string(result.Kind),
		})
		c.JSON(http.StatusBadRequest, gin.H{
			"error":    result.Error,
			"category": "invalid_input",
			"kind":     result.Kind,
		})
		return
	}

	err := h.chat.SaveAssistantMessage(req.ConversationID, result.Sanitized)
	switch {
	case errors.Is(err, service.ErrConversationNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	case errors.Is(err, service.ErrNoPendingReply):
		c.JSON(http.StatusConflict, gin.H{"error": "No reply is awaited for this conversation"})
		return
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
