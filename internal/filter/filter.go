package filter

import (
	"strings"

	"github.com/To-be-w1th0ut/intelligence-agent/internal/domain"
)

// Apply keeps the items matching the spec's predicates and truncates the
// result to spec.Limit, preserving input order. Pure function.
func Apply(items []domain.RawItem, spec domain.FilterSpec) []domain.RawItem {
	kept := make([]domain.RawItem, 0, len(items))
	for _, item := range items {
		if matchesAnyKeyword(item, spec.ExcludedKeywords) {
			continue
		}
		if !matchesLanguage(item, spec.Languages) {
			continue
		}
		if len(spec.Keywords) > 0 && !matchesAnyKeyword(item, spec.Keywords) {
			continue
		}
		kept = append(kept, item)
		if spec.Limit > 0 && len(kept) == spec.Limit {
			break
		}
	}
	return kept
}

// matchesLanguage constrains only items that declare a language; stories
// without one (Hacker News) always pass.
func matchesLanguage(item domain.RawItem, languages []string) bool {
	if len(languages) == 0 {
		return true
	}
	lang := item.Metadata["language"]
	if lang == "" {
		return true
	}
	for _, want := range languages {
		if strings.EqualFold(lang, want) {
			return true
		}
	}
	return false
}

func matchesAnyKeyword(item domain.RawItem, keywords []string) bool {
	if len(keywords) == 0 {
		return false
	}
	text := strings.ToLower(item.Title + " " + item.Description)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
