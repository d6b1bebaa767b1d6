package filter

import (
	"testing"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
)

func item(id, title, desc, lang string) domain.RawItem {
	meta := map[string]string{}
	if lang != "" {
		meta["language"] = lang
	}
	return domain.RawItem{
		Source:      domain.SourceGitHub,
		ExternalID:  id,
		Title:       title,
		Description: desc,
		Metadata:    meta,
	}
}

func TestApplyEmptySpecTruncatesOnly(t *testing.T) {
	t.Parallel()

	items := []domain.RawItem{
		item("a/one", "one", "", "Go"),
		item("b/two", "two", "", "Rust"),
		item("c/three", "three", "", ""),
	}

	got := Apply(items, domain.FilterSpec{Limit: 2})
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].ExternalID != "a/one" || got[1].ExternalID != "b/two" {
		t.Fatalf("order not preserved: %v", got)
	}
}

func TestApplyKeywordsCaseInsensitive(t *testing.T) {
	t.Parallel()

	items := []domain.RawItem{
		item("a/agent", "My AGENT Framework", "", "Go"),
		item("b/db", "fastdb", "an embedded Database", "Go"),
		item("c/game", "pixelgame", "a 2d engine", "Go"),
	}

	got := Apply(items, domain.FilterSpec{Keywords: []string{"agent", "database"}, Limit: 10})
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].ExternalID != "a/agent" || got[1].ExternalID != "b/db" {
		t.Fatalf("unexpected matches: %v", got)
	}
}

func TestApplyLanguages(t *testing.T) {
	t.Parallel()

	items := []domain.RawItem{
		item("a/go", "go tool", "", "Go"),
		item("b/rb", "ruby tool", "", "Ruby"),
		item("c/hn", "some story", "", ""),
	}

	got := Apply(items, domain.FilterSpec{Languages: []string{"go", "rust"}, Limit: 10})
	if len(got) != 2 {
		t.Fatalf("expected 2 items, got %d", len(got))
	}
	if got[0].ExternalID != "a/go" {
		t.Fatalf("expected go item kept, got %v", got[0])
	}
	if got[1].ExternalID != "c/hn" {
		t.Fatal("items without a language must pass the language predicate")
	}
}

func TestApplyExcludedKeywords(t *testing.T) {
	t.Parallel()

	items := []domain.RawItem{
		item("a/tutorial", "awesome-tutorial", "a tutorial collection", ""),
		item("b/tool", "realtool", "does real work", ""),
	}

	got := Apply(items, domain.FilterSpec{ExcludedKeywords: []string{"tutorial"}, Limit: 10})
	if len(got) != 1 || got[0].ExternalID != "b/tool" {
		t.Fatalf("excluded keyword not dropped: %v", got)
	}
}

func TestApplyIsPure(t *testing.T) {
	t.Parallel()

	items := []domain.RawItem{item("a/one", "one", "", "Go")}
	spec := domain.FilterSpec{Limit: 1}

	first := Apply(items, spec)
	second := Apply(items, spec)
	if len(first) != 1 || len(second) != 1 || first[0].ExternalID != second[0].ExternalID {
		t.Fatal("Apply must be deterministic")
	}
}
