package github

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
	"github.com/To-be-w1th0ut/intelligence-agent/internal/ports"
)

const (
	defaultTrendingURL = "https://github.com/trending"
	defaultRawURL      = "https://raw.githubusercontent.com"
	readmeLimit        = 3000
	userAgent          = "intelligence-agent/1.0"
)

// Collector scrapes the GitHub trending page per configured language.
type Collector struct {
	client      *http.Client
	trendingURL string
	rawURL      string
	fetchReadme bool
	logger      *slog.Logger
}

var _ ports.Collector = (*Collector)(nil)

// NewCollector wires an HTTP client; nil uses a 30s-timeout default.
func NewCollector(client *http.Client, fetchReadme bool, logger *slog.Logger) *Collector {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{
		client:      client,
		trendingURL: defaultTrendingURL,
		rawURL:      defaultRawURL,
		fetchReadme: fetchReadme,
		logger:      logger,
	}
}

// Name identifies the collector inside the registry.
func (c *Collector) Name() string {
	return string(domain.SourceGitHub)
}

// Collect fetches the trending page for each language in the spec and merges
// the results, deduplicating repos that trend in several languages. Order
// within a language reflects trending rank. A page failure is logged and the
// other pages still contribute; only all pages failing yields a
// CollectionError.
func (c *Collector) Collect(ctx context.Context, spec domain.FilterSpec) ([]domain.RawItem, error) {
	languages := spec.Languages
	if len(languages) == 0 {
		languages = []string{""}
	}

	var (
		items   []domain.RawItem
		seen    = map[string]struct{}{}
		lastErr error
		fetched int
	)

	for _, language := range languages {
		pageItems, err := c.fetchTrending(ctx, language, spec.Since)
		if err != nil {
			c.logger.Warn("trending page failed", "language", language, "error", err)
			lastErr = err
			continue
		}
		fetched++

		for _, item := range pageItems {
			if _, ok := seen[item.ExternalID]; ok {
				continue
			}
			seen[item.ExternalID] = struct{}{}
			items = append(items, item)
		}
	}

	if fetched == 0 {
		return nil, &domain.CollectionError{Source: domain.SourceGitHub, Err: lastErr}
	}

	if c.fetchReadme {
		// Bound the expensive README fetches to what a run can use.
		limit := spec.Limit
		if limit <= 0 || limit > len(items) {
			limit = len(items)
		}
		c.attachReadmes(ctx, items[:limit])
	}

	return items, nil
}

func (c *Collector) fetchTrending(ctx context.Context, language string, since domain.Window) ([]domain.RawItem, error) {
	pageURL := c.trendingURL
	if language != "" {
		pageURL += "/" + language
	}
	if since != "" {
		pageURL += "?since=" + string(since)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request trending: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse trending page: %w", err)
	}

	return c.extractItems(doc), nil
}

func (c *Collector) extractItems(doc *goquery.Document) []domain.RawItem {
	var items []domain.RawItem
	fetchedAt := time.Now().UTC()

	doc.Find("article.Box-row").Each(func(_ int, article *goquery.Selection) {
		item, err := parseRepo(article, fetchedAt)
		if err != nil {
			// One broken listing never fails the page.
			c.logger.Debug("skip unparsable listing", "error", err)
			return
		}
		items = append(items, item)
	})

	return items
}

func parseRepo(article *goquery.Selection, fetchedAt time.Time) (domain.RawItem, error) {
	href, _ := article.Find("h2 a").First().Attr("href")
	name := strings.Trim(strings.TrimSpace(href), "/")
	if name == "" {
		return domain.RawItem{}, fmt.Errorf("listing without repo link")
	}

	description := strings.TrimSpace(article.Find("p").First().Text())
	language := strings.TrimSpace(article.Find("[itemprop='programmingLanguage']").First().Text())

	stars := parseNumber(article.Find("a[href$='/stargazers']").First().Text())
	forks := parseNumber(article.Find("a[href$='/forks']").First().Text())

	starsToday := 0
	if text := strings.TrimSpace(article.Find("span.d-inline-block.float-sm-right").First().Text()); text != "" {
		starsToday = parseNumber(strings.Fields(text)[0])
	}

	metadata := map[string]string{
		"stars":       strconv.Itoa(stars),
		"stars_today": strconv.Itoa(starsToday),
		"forks":       strconv.Itoa(forks),
	}
	if language != "" {
		metadata["language"] = language
	}

	return domain.RawItem{
		Source:      domain.SourceGitHub,
		ExternalID:  name,
		Title:       name,
		URL:         "https://github.com/" + name,
		Description: description,
		Metadata:    metadata,
		FetchedAt:   fetchedAt,
	}, nil
}

// attachReadmes pulls truncated README content into item metadata for deeper
// analysis. Failures leave the item without a readme, nothing more.
func (c *Collector) attachReadmes(ctx context.Context, items []domain.RawItem) {
	for i := range items {
		for _, branch := range []string{"main", "master"} {
			readme, err := c.fetchReadmeFile(ctx, items[i].ExternalID, branch)
			if err != nil {
				continue
			}
			items[i].Metadata["readme"] = readme
			break
		}
	}
}

func (c *Collector) fetchReadmeFile(ctx context.Context, repo, branch string) (string, error) {
	url := fmt.Sprintf("%s/%s/%s/README.md", c.rawURL, repo, branch)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("request readme: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("readme returned %s", resp.Status)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, readmeLimit))
	if err != nil {
		return "", fmt.Errorf("read readme: %w", err)
	}
	return string(raw), nil
}

// parseNumber handles plain integers plus the k/m suffixes GitHub renders.
func parseNumber(text string) int {
	text = strings.ToLower(strings.ReplaceAll(strings.TrimSpace(text), ",", ""))
	if text == "" {
		return 0
	}

	multiplier := 1.0
	switch {
	case strings.HasSuffix(text, "k"):
		multiplier = 1_000
		text = strings.TrimSuffix(text, "k")
	case strings.HasSuffix(text, "m"):
		multiplier = 1_000_000
		text = strings.TrimSuffix(text, "m")
	}

	value, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0
	}
	return int(value * multiplier)
}
