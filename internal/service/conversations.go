package service

import (
	"errors"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/aman-churiwal/thought-partner/internal/models"
	"github.com/google/uuid"
)

const (
	defaultMaxConversations = 10000
	defaultMaxHistory       = 50
	titleLength             = 50
)

var (
	ErrConversationNotFound = errors.New("conversation not found")
	ErrNoPendingReply       = errors.New("no reply is awaited for this conversation")
)

type conversation struct {
	models.Conversation
	awaitingReply bool
}

// ConversationStore keeps recent conversations in memory. Each conversation
// holds at most maxHistory messages and the least recently updated
// conversation is evicted once maxConversations is reached.
type ConversationStore struct {
	mu               sync.RWMutex
	conversations    map[string]*conversation
	maxConversations int
	maxHistory       int
	now              func() time.Time
}

func NewConversationStore(maxConversations, maxHistory int) *ConversationStore {
	if maxConversations <= 0 {
		maxConversations = defaultMaxConversations
	}
	if maxHistory <= 0 {
		maxHistory = defaultMaxHistory
	}
	return &ConversationStore{
		conversations:    make(map[string]*conversation),
		maxConversations: maxConversations,
		maxHistory:       maxHistory,
		now:              time.Now,
	}
}

// History returns a copy of the messages of conversation id, oldest first
func (s *ConversationStore) History(id string) []models.ConversationMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return nil
	}

	out := make([]models.ConversationMessage, len(conv.Messages))
	copy(out, conv.Messages)
	return out
}

func (s *ConversationStore) Get(id string) (models.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[id]
	if !ok {
		return models.Conversation{}, false
	}

	out := conv.Conversation
	out.Messages = append([]models.ConversationMessage(nil), conv.Messages...)
	return out, true
}

// AddUserMessage appends a user message to conversation id, creating the
// conversation when id is empty or unknown. It returns the conversation id
// used. Any reply still awaited for the previous turn is forfeited.
func (s *ConversationStore) AddUserMessage(id, content string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if id == "" {
		id = uuid.NewString()
	}

	conv, ok := s.conversations[id]
	if !ok {
		if len(s.conversations) >= s.maxConversations {
			s.evictOldestLocked()
		}
		conv = &conversation{
			Conversation: models.Conversation{
				ID:        id,
				Title:     title(content),
				CreatedAt: now,
			},
		}
		s.conversations[id] = conv
	}

	conv.awaitingReply = false
	s.appendLocked(conv, "user", content, now)

	return id
}

// ExpectReply marks that the latest turn of conversation id was streamed
// and its reply may be saved once.
func (s *ConversationStore) ExpectReply(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.conversations[id]; ok {
		conv.awaitingReply = true
	}
}

// AddReply stores the assistant reply for the turn awaiting one
func (s *ConversationStore) AddReply(id, content string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[id]
	if !ok {
		return ErrConversationNotFound
	}
	if !conv.awaitingReply {
		return ErrNoPendingReply
	}

	conv.awaitingReply = false
	s.appendLocked(conv, "assistant", content, s.now())

	return nil
}

func (s *ConversationStore) appendLocked(conv *conversation, role, content string, now time.Time) {
	conv.Messages = append(conv.Messages, models.ConversationMessage{
		Role:      role,
		Content:   content,
		CreatedAt: now,
	})
	if over := len(conv.Messages) - s.maxHistory; over > 0 {
		conv.Messages = append(conv.Messages[:0:0], conv.Messages[over:]...)
	}
	conv.UpdatedAt = now
}

func (s *ConversationStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations)
}

func (s *ConversationStore) evictOldestLocked() {
	var oldestID string
	var oldest time.Time
	for id, conv := range s.conversations {
		if oldestID == "" || conv.UpdatedAt.Before(oldest) {
			oldestID = id
			oldest = conv.UpdatedAt
		}
	}
	delete(s.conversations, oldestID)
}

func title(message string) string {
	if utf8.RuneCountInString(message) <= titleLength {
		return message
	}
	return string([]rune(message)[:titleLength]) + "..."
}
