package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
)

const (
	digestTitle     = "🚀 今日热门项目推送"
	perSectionLimit = 5

	feishuFieldLimit   = 2000
	dingtalkTextLimit  = 18000
	dingtalkFieldLimit = 2000
)

// Digest renders enriched items into a platform payload, grouped by source.
// Deterministic: the same input always yields byte-identical output.
func Digest(items []domain.EnrichedItem, platform domain.Platform) (domain.RenderedMessage, error) {
	switch platform {
	case domain.PlatformFeishu:
		return feishuDigest(items)
	case domain.PlatformDingtalk:
		return dingtalkDigest(items)
	default:
		return domain.RenderedMessage{}, fmt.Errorf("unknown platform %q", platform)
	}
}

// Answer renders a chat reply as a plain text payload for the platform.
func Answer(text string, platform domain.Platform) (domain.RenderedMessage, error) {
	switch platform {
	case domain.PlatformFeishu:
		payload, err := json.Marshal(feishuTextPayload{
			MsgType: "text",
			Content: feishuTextContent{Text: truncate(text, feishuFieldLimit)},
		})
		if err != nil {
			return domain.RenderedMessage{}, fmt.Errorf("marshal feishu text: %w", err)
		}
		return domain.RenderedMessage{Platform: platform, Payload: payload}, nil
	case domain.PlatformDingtalk:
		payload, err := json.Marshal(dingtalkTextPayload{
			MsgType: "text",
			Text:    dingtalkText{Content: truncate(text, dingtalkTextLimit)},
		})
		if err != nil {
			return domain.RenderedMessage{}, fmt.Errorf("marshal dingtalk text: %w", err)
		}
		return domain.RenderedMessage{Platform: platform, Payload: payload}, nil
	default:
		return domain.RenderedMessage{}, fmt.Errorf("unknown platform %q", platform)
	}
}

type feishuTextPayload struct {
	MsgType string            `json:"msg_type"`
	Content feishuTextContent `json:"content"`
}

type feishuTextContent struct {
	Text string `json:"text"`
}

type feishuCardPayload struct {
	MsgType string     `json:"msg_type"`
	Card    feishuCard `json:"card"`
}

type feishuCard struct {
	Config   feishuCardConfig `json:"config"`
	Header   feishuCardHeader `json:"header"`
	Elements []feishuElement  `json:"elements"`
}

type feishuCardConfig struct {
	WideScreenMode bool `json:"wide_screen_mode"`
}

type feishuCardHeader struct {
	Title    feishuCardTitle `json:"title"`
	Template string          `json:"template"`
}

type feishuCardTitle struct {
	Tag     string `json:"tag"`
	Content string `json:"content"`
}

type feishuElement struct {
	Tag     string `json:"tag"`
	Content string `json:"content,omitempty"`
}

func feishuDigest(items []domain.EnrichedItem) (domain.RenderedMessage, error) {
	var elements []feishuElement

	appendSection := func(header string, section []domain.EnrichedItem) {
		if len(section) == 0 {
			return
		}
		elements = append(elements,
			feishuElement{Tag: "markdown", Content: header},
			feishuElement{Tag: "hr"},
		)
		for _, item := range section {
			elements = append(elements,
				feishuElement{Tag: "markdown", Content: truncate(itemMarkdown(item), feishuFieldLimit)},
				feishuElement{Tag: "hr"},
			)
		}
	}

	appendSection("## 🔥 GitHub Trending", bySource(items, domain.SourceGitHub))
	appendSection("## 📰 Hacker News", bySource(items, domain.SourceHackerNews))

	if n := len(elements); n > 0 && elements[n-1].Tag == "hr" {
		elements = elements[:n-1]
	}

	payload, err := json.Marshal(feishuCardPayload{
		MsgType: "interactive",
		Card: feishuCard{
			Config: feishuCardConfig{WideScreenMode: true},
			Header: feishuCardHeader{
				Title:    feishuCardTitle{Tag: "plain_text", Content: digestTitle},
				Template: "blue",
			},
			Elements: elements,
		},
	})
	if err != nil {
		return domain.RenderedMessage{}, fmt.Errorf("marshal feishu card: %w", err)
	}

	return domain.RenderedMessage{Platform: domain.PlatformFeishu, Payload: payload}, nil
}

type dingtalkTextPayload struct {
	MsgType string       `json:"msgtype"`
	Text    dingtalkText `json:"text"`
}

type dingtalkText struct {
	Content string `json:"content"`
}

type dingtalkMarkdownPayload struct {
	MsgType  string           `json:"msgtype"`
	Markdown dingtalkMarkdown `json:"markdown"`
}

type dingtalkMarkdown struct {
	Title string `json:"title"`
	Text  string `json:"text"`
}

func dingtalkDigest(items []domain.EnrichedItem) (domain.RenderedMessage, error) {
	lines := []string{"# " + digestTitle, ""}

	appendSection := func(header string, section []domain.EnrichedItem) {
		if len(section) == 0 {
			return
		}
		lines = append(lines, header, "")
		for i, item := range section {
			lines = append(lines, fmt.Sprintf("### %d. [%s](%s)", i+1, truncate(item.Item.Title, dingtalkFieldLimit), item.Item.URL))
			lines = append(lines, "", "> "+truncate(displaySummary(item), dingtalkFieldLimit), "")
			for _, h := range headHighlights(item.Highlights, 3) {
				lines = append(lines, "- "+h)
			}
			if len(item.TechStack) > 0 {
				lines = append(lines, "", "**技术栈**: "+strings.Join(headHighlights(item.TechStack, 5), ", "), "")
			}
		}
	}

	appendSection("## 🔥 GitHub Trending", bySource(items, domain.SourceGitHub))
	appendSection("## 📰 Hacker News", bySource(items, domain.SourceHackerNews))

	lines = append(lines, "", "---", "*由 Intelligence Agent 自动推送*")

	payload, err := json.Marshal(dingtalkMarkdownPayload{
		MsgType: "markdown",
		Markdown: dingtalkMarkdown{
			Title: digestTitle,
			Text:  truncate(strings.Join(lines, "\n"), dingtalkTextLimit),
		},
	})
	if err != nil {
		return domain.RenderedMessage{}, fmt.Errorf("marshal dingtalk markdown: %w", err)
	}

	return domain.RenderedMessage{Platform: domain.PlatformDingtalk, Payload: payload}, nil
}

func itemMarkdown(item domain.EnrichedItem) string {
	var b strings.Builder

	fmt.Fprintf(&b, "**[%s](%s)**\n\n%s", item.Item.Title, item.Item.URL, displaySummary(item))

	if len(item.Highlights) > 0 {
		b.WriteString("\n\n**✨ 核心亮点**:")
		for _, h := range item.Highlights {
			b.WriteString("\n• " + h)
		}
	}
	if len(item.TechStack) > 0 {
		b.WriteString("\n\n**🔧 技术栈**: " + strings.Join(item.TechStack, ", "))
	}
	if len(item.UseCases) > 0 {
		b.WriteString("\n\n**🚀 潜力**: " + strings.Join(item.UseCases, "；"))
	}
	if item.AnalysisError != domain.ErrKindNone {
		b.WriteString("\n\n*（AI 分析暂不可用）*")
	}

	return b.String()
}

// displaySummary falls back to the item description so un-enriched items
// still carry useful text.
func displaySummary(item domain.EnrichedItem) string {
	if item.Summary != "" {
		return item.Summary
	}
	if item.Item.Description != "" {
		return item.Item.Description
	}
	return item.Item.Title
}

func bySource(items []domain.EnrichedItem, source domain.Source) []domain.EnrichedItem {
	var out []domain.EnrichedItem
	for _, item := range items {
		if item.Item.Source == source {
			out = append(out, item)
			if len(out) == perSectionLimit {
				break
			}
		}
	}
	return out
}

func headHighlights(values []string, n int) []string {
	if len(values) > n {
		return values[:n]
	}
	return values
}

// truncate limits text to max runes, marking the cut with an ellipsis.
func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max-1]) + "…"
}
