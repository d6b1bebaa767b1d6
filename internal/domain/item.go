package domain

import "time"

// Source identifies the upstream a raw item was collected from.
type Source string

const (
	SourceGitHub     Source = "github"
	SourceHackerNews Source = "hackernews"
)

// Window selects the trending time range for a collection run.
type Window string

const (
	WindowDaily   Window = "daily"
	WindowWeekly  Window = "weekly"
	WindowMonthly Window = "monthly"
)

// Identity is the cross-run deduplication key for an item.
type Identity struct {
	Source     Source
	ExternalID string
}

// RawItem is a candidate item as produced by a collector. Immutable once produced.
type RawItem struct {
	Source      Source
	ExternalID  string
	Title       string
	URL         string
	Description string
	Metadata    map[string]string
	FetchedAt   time.Time
}

// Identity returns the deduplication key of the item.
func (r RawItem) Identity() Identity {
	return Identity{Source: r.Source, ExternalID: r.ExternalID}
}

// EnrichedItem is a raw item plus the AI-generated analysis. On analysis
// failure the summary fields stay empty and AnalysisError is set; the item
// still flows downstream un-enriched.
type EnrichedItem struct {
	Item          RawItem
	Summary       string
	Highlights    []string
	TechStack     []string
	UseCases      []string
	AnalysisError ErrorKind
}

// FilterSpec carries the per-run selection parameters. Immutable for the
// duration of a run.
type FilterSpec struct {
	Languages        []string
	Keywords         []string
	ExcludedKeywords []string
	Since            Window
	Limit            int
}

// Platform identifies a chat platform a message is rendered for.
type Platform string

const (
	PlatformFeishu   Platform = "feishu"
	PlatformDingtalk Platform = "dingtalk"
)

// RenderedMessage is a platform-specific payload ready for delivery. Write-once.
type RenderedMessage struct {
	Platform    Platform
	Payload     []byte
	Destination string
}

// TurnStatus tracks the lifecycle of a chat turn.
type TurnStatus string

const (
	TurnPending  TurnStatus = "pending"
	TurnAnswered TurnStatus = "answered"
	TurnFailed   TurnStatus = "failed"
)

// ChatTurn is one inbound question and its eventual answer. Discarded after
// the reply is delivered.
type ChatTurn struct {
	SessionID string
	Sender    string
	Question  string
	Answer    string
	Status    TurnStatus
}

// RunSummary reports the outcome of one pipeline run.
type RunSummary struct {
	Attempted      int
	Succeeded      int
	Failed         int
	NotifyFailures int
}
