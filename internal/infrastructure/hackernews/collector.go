package hackernews

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
)

const (
	defaultAPIBase = "https://hacker-news.firebaseio.com/v0"
	itemURLFormat  = "https://news.ycombinator.com/item?id=%d"
)

var storyEndpoints = map[string]string{
	"top":  "topstories",
	"new":  "newstories",
	"best": "beststories",
	"show": "showstories",
	"ask":  "askstories",
}

// Collector reads story listings from the official Hacker News API.
type Collector struct {
	client    *http.Client
	apiBase   string
	storyType string
	logger    *slog.Logger
}

var _ ports.Collector = (*Collector)(nil)

// NewCollector wires an HTTP client; nil uses a 30s-timeout default.
// storyType selects the listing: top, new, best, show or ask.
func NewCollector(client *http.Client, storyType string, logger *slog.Logger) *Collector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		client:    client,
		apiBase:   defaultAPIBase,
		storyType: storyType,
		logger:    logger,
	}
}

// Name identifies the collector inside the registry.
func (c *Collector) Name() string {
	return string(domain.SourceHackerNews)
}

// Collect fetches the configured listing and resolves each story, in listing
// order. A single story failing to load is skipped; the listing endpoint
// being unreachable is a CollectionError.
func (c *Collector) Collect(ctx context.Context, spec domain.FilterSpec) ([]domain.RawItem, error) {
	endpoint, ok := storyEndpoints[c.storyType]
	if !ok {
		endpoint = storyEndpoints["top"]
	}

	var storyIDs []int
	if err := c.getJSON(ctx, fmt.Sprintf("%s/%s.json", c.apiBase, endpoint), &storyIDs); err != nil {
		return nil, &domain.CollectionError{Source: domain.SourceHackerNews, Err: err}
	}

	if spec.Limit > 0 && len(storyIDs) > spec.Limit {
		storyIDs = storyIDs[:spec.Limit]
	}

	fetchedAt := time.Now().UTC()
	items := make([]domain.RawItem, 0, len(storyIDs))
	for _, id := range storyIDs {
		item, err := c.fetchStory(ctx, id, fetchedAt)
		if err != nil {
			c.logger.Warn("skip story", "id", id, "error", err)
			continue
		}
		if item != nil {
			items = append(items, *item)
		}
	}

	return items, nil
}

type storyPayload struct {
	ID          int    `json:"id"`
	Type        string `json:"type"`
	Title       string `json:"title"`
	URL         string `json:"url"`
	Score       int    `json:"score"`
	By          string `json:"by"`
	Descendants int    `json:"descendants"`
}

// fetchStory returns nil for items that exist but are not stories.
func (c *Collector) fetchStory(ctx context.Context, id int, fetchedAt time.Time) (*domain.RawItem, error) {
	var story storyPayload
	if err := c.getJSON(ctx, fmt.Sprintf("%s/item/%d.json", c.apiBase, id), &story); err != nil {
		return nil, err
	}
	if story.Type != "story" {
		return nil, nil
	}

	hnURL := fmt.Sprintf(itemURLFormat, story.ID)
	url := story.URL
	if url == "" {
		// Ask HN and similar have no external link.
		url = hnURL
	}

	author := story.By
	if author == "" {
		author = "unknown"
	}

	return &domain.RawItem{
		Source:      domain.SourceHackerNews,
		ExternalID:  strconv.Itoa(story.ID),
		Title:       story.Title,
		URL:         url,
		Description: story.Title,
		Metadata: map[string]string{
			"points":   strconv.Itoa(story.Score),
			"comments": strconv.Itoa(story.Descendants),
			"author":   author,
			"hn_url":   hnURL,
		},
		FetchedAt: fetchedAt,
	}, nil
}

func (c *Collector) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("hackernews returned %s", resp.Status)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
