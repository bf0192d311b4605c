package models

import "time"

// ChatRequest is the body accepted by POST /api/chat. Message and Context
// stay untyped until the shield has validated them.
type ChatRequest struct {
	Message        interface{} `json:"message"`
	Context        interface{} `json:"context,omitempty"`
	Mode           string      `json:"mode,omitempty"`
	ConversationID string      `json:"conversationId,omitempty"`
}

// ValidatedChatRequest is what the shield hands to the chat handler
type ValidatedChatRequest struct {
	Message        string
	Context        interface{}
	Mode           string
	ConversationID string
}

type SaveAssistantMessageRequest struct {
	ConversationID   string `json:"conversationId"`
	AssistantMessage string `json:"assistantMessage"`
}

type ConversationMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type Conversation struct {
	ID        string                `json:"id"`
	Title     string                `json:"title"`
	Messages  []ConversationMessage `json:"messages"`
	CreatedAt time.Time             `json:"created_at"`
	UpdatedAt time.Time             `json:"updated_at"`
}
