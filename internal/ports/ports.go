package ports

import (
	"context"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
)

// Collector fetches raw candidate items from one external source.
type Collector interface {
	Name() string
	Collect(ctx context.Context, spec domain.FilterSpec) ([]domain.RawItem, error)
}

// SeenStore persists item identities across runs for deduplication.
type SeenStore interface {
	Contains(ctx context.Context, ids []domain.Identity) (map[domain.Identity]bool, error)
	Mark(ctx context.Context, ids []domain.Identity, at time.Time) error
	Close() error
}

// ChatMessage is one turn of a chat-completion conversation.
type ChatMessage struct {
	Role    string
	Content string
}

// ChatCompleter sends a conversation to an LLM backend and returns the
// generated text or a typed failure.
type ChatCompleter interface {
	Complete(ctx context.Context, msgs []ChatMessage) (string, error)
}

// Sender delivers a rendered message to one chat platform. Implementations
// own signing and auth.
type Sender interface {
	Platform() domain.Platform
	Send(ctx context.Context, msg domain.RenderedMessage) error
	SendTest(ctx context.Context) error
}
