package analyzer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/config"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/resilience"
)

const enrichSystemPrompt = `你是一个技术项目分析专家。你的任务是分析开源项目或技术文章，提取关键信息。
请用简洁的中文回复，格式如下：

## 摘要
[1-2句话描述这个项目/文章做什么]

## 亮点
- [亮点1]
- [亮点2]
- [亮点3]

## 技术栈
[列出主要技术，用逗号分隔]

## 适合人群
[这个项目适合什么样的开发者/用户]

## 发展潜力
[简短评估其发展前景]
`

const answerSystemPrompt = `你是一个智能助手，专注于技术项目分析和信息安全领域。
如果你不知道，就说不知道。用简洁、专业的中文回答。
`

// FallbackAnswer is returned when the backend stays unreachable after retries.
const FallbackAnswer = "抱歉，AI 服务暂时不可用，请稍后再试。"

// Analyzer turns raw items into enriched items via an LLM backend and answers
// free-form questions in chat mode. A nil completer degrades to basic
// metadata-only analysis.
type Analyzer struct {
	completer        ports.ChatCompleter
	retry            resilience.Policy
	breakerThreshold int
	logger           *slog.Logger
}

// New wires the chat-completion backend; completer may be nil when the
// analyzer is disabled or unconfigured.
func New(completer ports.ChatCompleter, cfg config.AnalyzerConfig, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{
		completer: completer,
		retry: resilience.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   time.Second,
			MaxDelay:    20 * time.Second,
		},
		breakerThreshold: cfg.BreakerThreshold,
		logger:           logger,
	}
}

// EnrichAll enriches every item using up to workers concurrent backend calls,
// preserving input order. A consecutive-failure breaker is scoped to this
// call: once tripped, the remaining items are marked ServiceUnavailable
// without touching the backend. Never returns an error; failures degrade.
func (a *Analyzer) EnrichAll(ctx context.Context, items []domain.RawItem, workers int) []domain.EnrichedItem {
	results := make([]domain.EnrichedItem, len(items))
	if len(items) == 0 {
		return results
	}
	if workers < 1 {
		workers = 1
	}

	breaker := resilience.NewBreaker(a.breakerThreshold)

	var wg sync.WaitGroup
	jobs := make(chan int)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] = a.enrichOne(ctx, items[i], breaker)
			}
		}()
	}

	for i := range items {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	return results
}

// Enrich analyzes a single item outside of a batch run.
func (a *Analyzer) Enrich(ctx context.Context, item domain.RawItem) domain.EnrichedItem {
	return a.enrichOne(ctx, item, resilience.NewBreaker(0))
}

func (a *Analyzer) enrichOne(ctx context.Context, item domain.RawItem, breaker *resilience.Breaker) domain.EnrichedItem {
	if a.completer == nil {
		return basicAnalysis(item)
	}
	if !breaker.Allow() {
		return domain.EnrichedItem{Item: item, AnalysisError: domain.ErrKindServiceUnavailable}
	}

	msgs := []ports.ChatMessage{
		{Role: "system", Content: enrichSystemPrompt},
		{Role: "user", Content: buildItemPrompt(item)},
	}

	var content string
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		content, callErr = a.completer.Complete(ctx, msgs)
		return callErr
	})
	breaker.Record(err)

	if err != nil {
		a.logger.Warn("enrichment failed", "item", item.ExternalID, "error", err)
		return domain.EnrichedItem{Item: item, AnalysisError: classify(err)}
	}

	sections := parseSections(content)
	return domain.EnrichedItem{
		Item:       item,
		Summary:    sections.summary,
		Highlights: sections.highlights,
		TechStack:  sections.techStack,
		UseCases:   sections.useCases,
	}
}

// Answer handles a free-form chat question with optional conversation
// history. It degrades to a fixed fallback string instead of failing.
func (a *Analyzer) Answer(ctx context.Context, question string, history []ports.ChatMessage) string {
	if a.completer == nil {
		return FallbackAnswer
	}

	msgs := make([]ports.ChatMessage, 0, len(history)+2)
	msgs = append(msgs, ports.ChatMessage{Role: "system", Content: answerSystemPrompt})
	msgs = append(msgs, history...)
	msgs = append(msgs, ports.ChatMessage{Role: "user", Content: question})

	var content string
	err := a.retry.Do(ctx, func(ctx context.Context) error {
		var callErr error
		content, callErr = a.completer.Complete(ctx, msgs)
		return callErr
	})
	if err != nil {
		a.logger.Warn("answer failed", "error", err)
		return FallbackAnswer
	}

	return strings.TrimSpace(content)
}

func classify(err error) domain.ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.ErrKindTimeout
	}
	var statusErr *resilience.StatusError
	if errors.As(err, &statusErr) && (statusErr.Code == 429 || statusErr.Code >= 500) {
		return domain.ErrKindServiceUnavailable
	}
	return domain.ErrKindBackend
}

// basicAnalysis fills the enriched fields from collected metadata when no
// LLM backend is configured.
func basicAnalysis(item domain.RawItem) domain.EnrichedItem {
	enriched := domain.EnrichedItem{Item: item, Summary: item.Description}
	if enriched.Summary == "" {
		enriched.Summary = item.Title
	}

	switch item.Source {
	case domain.SourceGitHub:
		if stars := item.Metadata["stars"]; stars != "" {
			enriched.Highlights = append(enriched.Highlights, fmt.Sprintf("⭐ %s Stars", stars))
		}
		if today := item.Metadata["stars_today"]; today != "" {
			enriched.Highlights = append(enriched.Highlights, fmt.Sprintf("📈 今日 +%s", today))
		}
		if lang := item.Metadata["language"]; lang != "" {
			enriched.TechStack = []string{lang}
		}
	case domain.SourceHackerNews:
		if points := item.Metadata["points"]; points != "" {
			enriched.Highlights = append(enriched.Highlights, fmt.Sprintf("🔥 %s 分", points))
		}
		if comments := item.Metadata["comments"]; comments != "" {
			enriched.Highlights = append(enriched.Highlights, fmt.Sprintf("💬 %s 评论", comments))
		}
	}

	return enriched
}

func buildItemPrompt(item domain.RawItem) string {
	var b strings.Builder

	switch item.Source {
	case domain.SourceHackerNews:
		b.WriteString("请分析这个 Hacker News 热门内容：\n\n")
		fmt.Fprintf(&b, "标题：%s\n", item.Title)
		fmt.Fprintf(&b, "链接：%s\n", item.URL)
		fmt.Fprintf(&b, "得分：%s\n", item.Metadata["points"])
		fmt.Fprintf(&b, "评论数：%s\n", item.Metadata["comments"])
		fmt.Fprintf(&b, "HN 讨论：%s\n", item.Metadata["hn_url"])
	default:
		b.WriteString("请分析这个 GitHub 项目：\n\n")
		fmt.Fprintf(&b, "项目名称：%s\n", item.Title)
		fmt.Fprintf(&b, "项目地址：%s\n", item.URL)
		fmt.Fprintf(&b, "描述：%s\n", orDefault(item.Description, "无"))
		fmt.Fprintf(&b, "编程语言：%s\n", orDefault(item.Metadata["language"], "未知"))
		fmt.Fprintf(&b, "Star 数：%s\n", item.Metadata["stars"])
		fmt.Fprintf(&b, "今日新增 Star：%s\n", item.Metadata["stars_today"])
		fmt.Fprintf(&b, "Fork 数：%s\n", item.Metadata["forks"])
		if readme := item.Metadata["readme"]; readme != "" {
			fmt.Fprintf(&b, "\nREADME 节选：\n%s\n", readme)
		}
	}

	return b.String()
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
