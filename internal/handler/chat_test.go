package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aman-churiwal/thought-partner/internal/circuitbreaker"
	"github.com/aman-churiwal/thought-partner/internal/config"
	"github.com/aman-churiwal/thought-partner/internal/llm"
	"github.com/aman-churiwal/thought-partner/internal/middleware"
	"github.com/aman-churiwal/thought-partner/internal/models"
	"github.com/aman-churiwal/thought-partner/internal/ratelimit"
	"github.com/aman-churiwal/thought-partner/internal/service"
	"github.com/aman-churiwal/thought-partner/internal/shield"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type scriptedProvider struct {
	deltas []string
	err    error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Stream(ctx context.Context, userMessage string, chatCtx llm.ChatContext, emit llm.EmitFunc) error {
	for _, d := range p.deltas {
		if err := emit(d); err != nil {
			return err
		}
	}
	return p.err
}

// withValidatedRequest stands in for the shield so the handler can be tested alone
func withValidatedRequest(req models.ValidatedChatRequest) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ChatRequestKey, &req)
		c.Next()
	}
}

type eventSink struct {
	events []shield.SecurityEvent
}

func (s *eventSink) Record(event shield.SecurityEvent) {
	s.events = append(s.events, event)
}

func newTestShield(sinks ...shield.EventSink) *shield.Shield {
	cfg := config.DefaultShield()
	cfg.MaxRequestSize = 1024
	limiter := ratelimit.NewFixedWindow(ratelimit.NewMemoryStore(), cfg.MaxRequestsPerWindow, cfg.Window, cfg.BlockDuration)
	return shield.New(cfg, limiter, sinks...)
}

func newChatRouter(provider llm.Provider, req models.ValidatedChatRequest, sinks ...shield.EventSink) (*gin.Engine, *service.ChatService) {
	chat := service.NewChatService(provider, service.NewConversationStore(0, 0))
	h := NewChatHandler(chat, newTestShield(sinks...))

	router := gin.New()
	router.POST("/api/chat", withValidatedRequest(req), h.Stream)
	router.POST("/api/chat/messages", h.SaveAssistantMessage)
	return router, chat
}

func readFrames(t *testing.T, body string) []map[string]interface{} {
	t.Helper()
	var frames []map[string]interface{}
	scanner := bufio.NewScanner(strings.NewReader(body))
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		data, ok := strings.CutPrefix(line, "data:")
		require.True(t, ok, line)
		var frame map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(data)), &frame))
		frames = append(frames, frame)
	}
	return frames
}

func TestChatHandler_StreamsFrames(t *testing.T) {
	router, chat := newChatRouter(&scriptedProvider{deltas: []string{"Hel", "lo"}}, models.ValidatedChatRequest{Message: "hi"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	conversationID := w.Header().Get(ConversationIDHeader)
	require.NotEmpty(t, conversationID)

	frames := readFrames(t, w.Body.String())
	require.Len(t, frames, 3)
	assert.Equal(t, "content_block_delta", frames[0]["type"])
	assert.Equal(t, map[string]interface{}{"type": "text_delta", "text": "Hel"}, frames[0]["delta"])
	assert.Equal(t, "lo", frames[1]["delta"].(map[string]interface{})["text"])
	assert.Equal(t, map[string]interface{}{"type": "message_stop"}, frames[2])

	history := chat.Conversations().History(conversationID)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)
}

func TestChatHandler_KeepsClientConversationID(t *testing.T) {
	router, _ := newChatRouter(&scriptedProvider{}, models.ValidatedChatRequest{Message: "hi", ConversationID: "conv-1"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "conv-1", w.Header().Get(ConversationIDHeader))
	frames := readFrames(t, w.Body.String())
	require.Len(t, frames, 1)
	assert.Equal(t, "message_stop", frames[0]["type"])
}

func TestChatHandler_FailureBeforeFirstDelta(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
	}{
		{"upstream error", errors.New("bad gateway"), http.StatusBadGateway},
		{"circuit open", circuitbreaker.ErrCircuitOpen, http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := newChatRouter(&scriptedProvider{err: tt.err}, models.ValidatedChatRequest{Message: "hi"})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

			assert.Equal(t, tt.code, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
		})
	}
}

func TestChatHandler_FailureMidStream(t *testing.T) {
	router, _ := newChatRouter(&scriptedProvider{deltas: []string{"partial"}, err: errors.New("reset")}, models.ValidatedChatRequest{Message: "hi"})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/chat", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	frames := readFrames(t, w.Body.String())
	require.Len(t, frames, 2)
	assert.Equal(t, "content_block_delta", frames[0]["type"])
	assert.Equal(t, "error", frames[1]["type"])
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, path, strings.NewReader(body)))
	return w
}

// streamTurn runs one chat turn and returns the conversation id it used
func streamTurn(t *testing.T, router *gin.Engine) string {
	t.Helper()
	w := postJSON(router, "/api/chat", "")
	require.Equal(t, http.StatusOK, w.Code)
	id := w.Header().Get(ConversationIDHeader)
	require.NotEmpty(t, id)
	return id
}

func TestChatHandler_SaveAssistantMessage(t *testing.T) {
	router, chat := newChatRouter(&scriptedProvider{deltas: []string{"answer"}}, models.ValidatedChatRequest{Message: "hi", ConversationID: "c1"})
	streamTurn(t, router)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"missing message", `{"conversationId":"c1"}`, http.StatusBadRequest},
		{"missing conversation", `{"assistantMessage":"answer"}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
		{"bad json", `{"conversationId":`, http.StatusBadRequest},
		{"too large", `{"conversationId":"c1","assistantMessage":"` + strings.Repeat("x", 2048) + `"}`, http.StatusRequestEntityTooLarge},
		{"unknown conversation", `{"conversationId":"other","assistantMessage":"answer"}`, http.StatusNotFound},
		{"ok", `{"conversationId":"c1","assistantMessage":"  answer "}`, http.StatusOK},
		{"second save", `{"conversationId":"c1","assistantMessage":"answer again"}`, http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/api/chat/messages", tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}

	history := chat.Conversations().History("c1")
	require.Len(t, history, 2)
	assert.Equal(t, string(llm.RoleAssistant), history[1].Role)
	assert.Equal(t, "answer", history[1].Content)
}

func TestChatHandler_SaveRejectsSuspiciousReply(t *testing.T) {
	provider := &scriptedProvider{deltas: []string{"fine"}}
	sink := &eventSink{}
	router, chat := newChatRouter(provider, models.ValidatedChatRequest{Message: "hi", ConversationID: "c1"}, sink)
	streamTurn(t, router)

	w := postJSON(router, "/api/chat/messages", `{"conversationId":"c1","assistantMessage":"<script>alert(1)</script> ${x} eval("}`)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "invalid_input", body["category"])
	assert.Equal(t, string(shield.KindSuspiciousPattern), body["kind"])

	require.Len(t, sink.events, 1)
	assert.Equal(t, shield.EventInvalidInput, sink.events[0].Kind)

	history := chat.Conversations().History("c1")
	require.Len(t, history, 1)
	assert.Equal(t, string(llm.RoleUser), history[0].Role)
}

func TestChatHandler_SaveRequiresSuccessfulStream(t *testing.T) {
	router, chat := newChatRouter(&scriptedProvider{err: errors.New("down")}, models.ValidatedChatRequest{Message: "hi", ConversationID: "c1"})

	w := postJSON(router, "/api/chat", "")
	require.Equal(t, http.StatusBadGateway, w.Code)

	w = postJSON(router, "/api/chat/messages", `{"conversationId":"c1","assistantMessage":"made up"}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, chat.Conversations().History("c1"), 1)
}
