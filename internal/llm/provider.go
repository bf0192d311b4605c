// Package llm streams chat completions from a language model provider.
package llm

import (
	"context"
	"fmt"
	"strings"
)

type Mode string

const (
	ModeBrainstorming Mode = "brainstorming"
	ModeChallenge     Mode = "challenge"
	ModeStrategic     Mode = "strategic"
	ModeTechnical     Mode = "technical"
)

// ParseMode maps a client supplied mode to a known one, defaulting to brainstorming.
func ParseMode(s string) Mode {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeChallenge:
		return ModeChallenge
	case ModeStrategic:
		return ModeStrategic
	case ModeTechnical:
		return ModeTechnical
	default:
		return ModeBrainstorming
	}
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatContext is what the model is told about the founder and conversation
type ChatContext struct {
	Mode                Mode
	FieldOfStudy        string
	IsSoloFounder       bool
	IdeaStage           string
	ProjectContext      string
	ConversationHistory []Message
}

// EmitFunc receives each text delta as it arrives. Returning an error aborts the stream.
type EmitFunc func(delta string) error

type Provider interface {
	Stream(ctx context.Context, userMessage string, chatCtx ChatContext, emit EmitFunc) error
	Name() string
}

var modePrompts = map[Mode]string{
	ModeBrainstorming: "You're in brainstorming mode. Help the founder explore ideas freely and think expansively.",
	ModeChallenge:     "You're in challenge mode. Question assumptions and poke holes in ideas, directly but respectfully.",
	ModeStrategic:     "You're in strategic advisor mode. Provide structured thinking, frameworks and actionable advice.",
	ModeTechnical:     "You're in technical guide mode. Focus on implementation details and practical architecture.",
}

// SystemPrompt renders the system message for chatCtx
func SystemPrompt(chatCtx ChatContext) string {
	var b strings.Builder
	b.WriteString("You are an AI thought partner for solo founders: supportive but challenging, encouraging but honest. ")
	b.WriteString("Ask probing questions rather than just agreeing.\n\n")
	b.WriteString(modePrompts[ParseMode(string(chatCtx.Mode))])
	b.WriteString("\n")

	if chatCtx.FieldOfStudy != "" {
		fmt.Fprintf(&b, "\nThe founder's background is in %s.", chatCtx.FieldOfStudy)
	}
	if chatCtx.IsSoloFounder {
		b.WriteString("\nThey are building solo.")
	}
	if chatCtx.IdeaStage != "" {
		fmt.Fprintf(&b, "\nThey are at the %s stage.", chatCtx.IdeaStage)
	}
	if chatCtx.ProjectContext != "" {
		fmt.Fprintf(&b, "\nTheir project context: %s", chatCtx.ProjectContext)
	}

	return b.String()
}

// BuildMessages assembles the system prompt, history and new user message
func BuildMessages(userMessage string, chatCtx ChatContext) []Message {
	messages := make([]Message, 0, len(chatCtx.ConversationHistory)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: SystemPrompt(chatCtx)})
	messages = append(messages, chatCtx.ConversationHistory...)
	messages = append(messages, Message{Role: RoleUser, Content: userMessage})
	return messages
}
