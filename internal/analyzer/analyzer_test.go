package analyzer

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/config"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/resilience"
)

const sampleReply = `## 摘要
一个用于示例的工具。

## 亮点
- 速度快
- 零配置

## 技术栈
Go, SQLite

## 适合人群
后端开发者

## 发展潜力
社区活跃，潜力大
`

type fakeCompleter struct {
	mu      sync.Mutex
	calls   int
	replies []string
	err     error
}

func (f *fakeCompleter) Complete(_ context.Context, _ []ports.ChatMessage) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	reply := sampleReply
	if len(f.replies) > 0 {
		reply = f.replies[0]
		if len(f.replies) > 1 {
			f.replies = f.replies[1:]
		}
	}
	return reply, nil
}

func (f *fakeCompleter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConfig() config.AnalyzerConfig {
	return config.AnalyzerConfig{MaxAttempts: 1, BreakerThreshold: 3}
}

func githubItem(id string) domain.RawItem {
	return domain.RawItem{
		Source:      domain.SourceGitHub,
		ExternalID:  id,
		Title:       id,
		URL:         "https://github.com/" + id,
		Description: "an example",
		Metadata:    map[string]string{"stars": "100", "stars_today": "10", "forks": "5", "language": "Go"},
	}
}

func TestParseSections(t *testing.T) {
	t.Parallel()

	got := parseSections(sampleReply)

	if got.summary != "一个用于示例的工具。" {
		t.Fatalf("unexpected summary: %q", got.summary)
	}
	if len(got.highlights) != 2 || got.highlights[0] != "速度快" {
		t.Fatalf("unexpected highlights: %v", got.highlights)
	}
	if len(got.techStack) != 2 || got.techStack[1] != "SQLite" {
		t.Fatalf("unexpected tech stack: %v", got.techStack)
	}
	if len(got.useCases) != 2 || got.useCases[0] != "后端开发者" || got.useCases[1] != "社区活跃，潜力大" {
		t.Fatalf("unexpected use cases: %v", got.useCases)
	}
}

func TestEnrichParsesReply(t *testing.T) {
	t.Parallel()

	a := New(&fakeCompleter{}, testConfig(), nil)
	enriched := a.Enrich(context.Background(), githubItem("octo/repo"))

	if enriched.AnalysisError != domain.ErrKindNone {
		t.Fatalf("unexpected analysis error: %s", enriched.AnalysisError)
	}
	if enriched.Summary != "一个用于示例的工具。" {
		t.Fatalf("unexpected summary: %q", enriched.Summary)
	}
	if len(enriched.TechStack) != 2 {
		t.Fatalf("unexpected tech stack: %v", enriched.TechStack)
	}
}

func TestEnrichFailureDegrades(t *testing.T) {
	t.Parallel()

	backend := &fakeCompleter{err: &resilience.StatusError{Code: http.StatusBadGateway}}
	a := New(backend, testConfig(), nil)

	enriched := a.Enrich(context.Background(), githubItem("octo/repo"))

	if enriched.Summary != "" {
		t.Fatalf("failed analysis must leave summary empty, got %q", enriched.Summary)
	}
	if enriched.AnalysisError != domain.ErrKindServiceUnavailable {
		t.Fatalf("unexpected error kind: %s", enriched.AnalysisError)
	}
	if enriched.Item.ExternalID != "octo/repo" {
		t.Fatal("raw item must be preserved on failure")
	}
}

func TestEnrichAllBreakerShortCircuits(t *testing.T) {
	t.Parallel()

	backend := &fakeCompleter{err: &resilience.StatusError{Code: http.StatusServiceUnavailable}}
	a := New(backend, testConfig(), nil)

	items := make([]domain.RawItem, 5)
	for i := range items {
		items[i] = githubItem("repo/" + string(rune('a'+i)))
	}

	// Single worker keeps the consecutive-failure count deterministic.
	results := a.EnrichAll(context.Background(), items, 1)

	if backend.callCount() != 3 {
		t.Fatalf("expected 3 backend calls before the breaker opens, got %d", backend.callCount())
	}
	for i, enriched := range results {
		if enriched.AnalysisError != domain.ErrKindServiceUnavailable {
			t.Fatalf("item %d: expected ServiceUnavailable, got %q", i, enriched.AnalysisError)
		}
	}
}

func TestEnrichAllPreservesOrder(t *testing.T) {
	t.Parallel()

	a := New(&fakeCompleter{}, testConfig(), nil)

	items := []domain.RawItem{githubItem("a/a"), githubItem("b/b"), githubItem("c/c")}
	results := a.EnrichAll(context.Background(), items, 3)

	for i := range items {
		if results[i].Item.ExternalID != items[i].ExternalID {
			t.Fatalf("order broken at %d: %s", i, results[i].Item.ExternalID)
		}
	}
}

func TestBasicAnalysisWithoutBackend(t *testing.T) {
	t.Parallel()

	a := New(nil, testConfig(), nil)
	enriched := a.Enrich(context.Background(), githubItem("octo/repo"))

	if enriched.Summary != "an example" {
		t.Fatalf("basic analysis must use the description, got %q", enriched.Summary)
	}
	if len(enriched.Highlights) == 0 {
		t.Fatal("basic analysis must surface star metadata")
	}
	if len(enriched.TechStack) != 1 || enriched.TechStack[0] != "Go" {
		t.Fatalf("unexpected tech stack: %v", enriched.TechStack)
	}
}

func TestAnswerFallsBack(t *testing.T) {
	t.Parallel()

	backend := &fakeCompleter{err: &resilience.StatusError{Code: http.StatusInternalServerError}}
	a := New(backend, testConfig(), nil)

	got := a.Answer(context.Background(), "这个项目怎么样？", nil)
	if got != FallbackAnswer {
		t.Fatalf("expected fallback answer, got %q", got)
	}

	if a2 := New(nil, testConfig(), nil); a2.Answer(context.Background(), "hi", nil) != FallbackAnswer {
		t.Fatal("nil completer must return the fallback answer")
	}
}
