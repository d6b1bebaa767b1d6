package bot

import (
	"sync"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
)

// Memory keeps a bounded, expiring conversation history per chat so the
// analyzer can answer follow-up questions in context.
type Memory struct {
	mu         sync.Mutex
	chats      map[string]*conversation
	maxHistory int
	ttl        time.Duration
	now        func() time.Time
}

type conversation struct {
	messages []ports.ChatMessage
	lastUsed time.Time
}

// NewMemory builds a store holding at most maxHistory messages per chat;
// conversations idle past ttl are dropped. maxHistory below 1 defaults to 10,
// ttl below or equal zero defaults to 30 minutes.
func NewMemory(maxHistory int, ttl time.Duration) *Memory {
	if maxHistory < 1 {
		maxHistory = 10
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Memory{
		chats:      map[string]*conversation{},
		maxHistory: maxHistory,
		ttl:        ttl,
		now:        time.Now,
	}
}

// History returns a copy of the conversation so far for a chat.
func (m *Memory) History(chatID string) []ports.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expire()

	conv, ok := m.chats[chatID]
	if !ok {
		return nil
	}
	conv.lastUsed = m.now()
	return append([]ports.ChatMessage(nil), conv.messages...)
}

// Append records a question/answer pair, trimming the oldest messages past
// the per-chat bound.
func (m *Memory) Append(chatID, question, answer string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.expire()

	conv, ok := m.chats[chatID]
	if !ok {
		conv = &conversation{}
		m.chats[chatID] = conv
	}
	conv.messages = append(conv.messages,
		ports.ChatMessage{Role: "user", Content: question},
		ports.ChatMessage{Role: "assistant", Content: answer},
	)
	if excess := len(conv.messages) - m.maxHistory; excess > 0 {
		conv.messages = append([]ports.ChatMessage(nil), conv.messages[excess:]...)
	}
	conv.lastUsed = m.now()
}

// Clear forgets one chat's history.
func (m *Memory) Clear(chatID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.chats, chatID)
}

func (m *Memory) expire() {
	cutoff := m.now().Add(-m.ttl)
	for id, conv := range m.chats {
		if conv.lastUsed.Before(cutoff) {
			delete(m.chats, id)
		}
	}
}
