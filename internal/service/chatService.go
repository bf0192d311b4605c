package service

import (
	"context"

	"github.com/aman-churiwal/thought-partner/internal/llm"
	"github.com/aman-churiwal/thought-partner/internal/models"
)

// ChatTurn is one user message resolved against its conversation
type ChatTurn struct {
	ConversationID string
	Message        string
	Context        llm.ChatContext
}

type ChatService struct {
	provider      llm.Provider
	conversations *ConversationStore
}

func NewChatService(provider llm.Provider, conversations *ConversationStore) *ChatService {
	return &ChatService{
		provider:      provider,
		conversations: conversations,
	}
}

// StartTurn records the user message and builds the model context from the
// conversation history that preceded it.
func (s *ChatService) StartTurn(req models.ValidatedChatRequest) ChatTurn {
	history := s.conversations.History(req.ConversationID)
	conversationID := s.conversations.AddUserMessage(req.ConversationID, req.Message)

	chatCtx := founderContext(req.Context)
	chatCtx.Mode = llm.ParseMode(req.Mode)
	chatCtx.ConversationHistory = make([]llm.Message, 0, len(history))
	for _, m := range history {
		chatCtx.ConversationHistory = append(chatCtx.ConversationHistory, llm.Message{
			Role:    llm.Role(m.Role),
			Content: m.Content,
		})
	}

	return ChatTurn{
		ConversationID: conversationID,
		Message:        req.Message,
		Context:        chatCtx,
	}
}

// Stream forwards the model reply for turn to emit. Only a turn that
// streamed to completion may have its reply saved.
func (s *ChatService) Stream(ctx context.Context, turn ChatTurn, emit llm.EmitFunc) error {
	if err := s.provider.Stream(ctx, turn.Message, turn.Context, emit); err != nil {
		return err
	}
	s.conversations.ExpectReply(turn.ConversationID)
	return nil
}

// SaveAssistantMessage stores the reply the client received for the last
// streamed turn of conversationID.
func (s *ChatService) SaveAssistantMessage(conversationID, content string) error {
	return s.conversations.AddReply(conversationID, content)
}

func (s *ChatService) Provider() llm.Provider {
	return s.provider
}

func (s *ChatService) Conversations() *ConversationStore {
	return s.conversations
}

// founderContext reads the optional profile fields a client may send
// alongside the message. Unknown fields and wrong types are ignored.
func founderContext(raw interface{}) llm.ChatContext {
	var chatCtx llm.ChatContext

	fields, ok := raw.(map[string]interface{})
	if !ok {
		return chatCtx
	}

	chatCtx.FieldOfStudy, _ = fields["fieldOfStudy"].(string)
	chatCtx.IsSoloFounder, _ = fields["isSoloFounder"].(bool)
	chatCtx.IdeaStage, _ = fields["ideaStage"].(string)
	chatCtx.ProjectContext, _ = fields["projectContext"].(string)

	return chatCtx
}
