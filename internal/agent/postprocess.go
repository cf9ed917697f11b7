package agent

import (
	"fmt"
	"strings"

	"github.com/haasonsaas/researchagent/pkg/models"
)

// SearchHit is the neutral shape a web_search result is projected to for
// post-processing, decoupling this package from the concrete websearch
// tool package (spec §9's tagged-interface redesign: avoid a direct import
// cycle between the tool implementation and the loop that consumes it).
type SearchHit struct {
	URL       string
	Title     string
	Snippet   string
	Age       string
	CachePath string
}

// SearchEnvelope is implemented by a web_search tool's structured result so
// the React loop's post-processing contract (§4.3) can build a Source list
// and a rendered text block without importing the concrete tool package.
type SearchEnvelope interface {
	SearchQuery() string
	SearchHits() []SearchHit
	SearchError() string
}

// BuildSources assigns sequential 1-based indices to env's hits, skipping
// duplicate URLs so that a URL is never indexed twice within one response
// (spec invariant (c)).
func BuildSources(env SearchEnvelope) []models.Source {
	seen := make(map[string]bool)
	var sources []models.Source
	idx := 1
	for _, h := range env.SearchHits() {
		if h.URL == "" || seen[h.URL] {
			continue
		}
		seen[h.URL] = true
		sources = append(sources, models.Source{
			Index:     idx,
			Title:     h.Title,
			URL:       h.URL,
			Snippet:   h.Snippet,
			Age:       h.Age,
			CachePath: h.CachePath,
		})
		idx++
	}
	return sources
}

// RenderSearchResult renders the formatted text block handed back to the
// model as the tool result. In Chat Mode the block includes [n] labels to
// invite citation; in Agent Mode the labels are suppressed (spec §4.3).
func RenderSearchResult(env SearchEnvelope, mode models.Mode) string {
	if env.SearchError() != "" {
		return fmt.Sprintf("Search failed: %s", env.SearchError())
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n\n", env.SearchQuery())
	for i, h := range env.SearchHits() {
		if mode == models.ModeChat {
			fmt.Fprintf(&b, "[%d] %s\n%s\n", i+1, h.Title, h.URL)
		} else {
			fmt.Fprintf(&b, "- %s\n  %s\n", h.Title, h.URL)
		}
		if h.Snippet != "" {
			fmt.Fprintf(&b, "  %s\n", h.Snippet)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// HasWebResults reports whether env carries at least one hit.
func HasWebResults(env SearchEnvelope) bool {
	return len(env.SearchHits()) > 0
}

// SourceTracker accumulates the per-turn Source list across every
// web_search call in one response. Indices stay dense and strictly
// increasing from 1 over the whole turn, and a URL is never indexed twice
// even when two searches return it (spec invariant (c)).
type SourceTracker struct {
	byURL   map[string]int
	sources []models.Source
}

// NewSourceTracker returns an empty tracker; the loop resets it each turn.
func NewSourceTracker() *SourceTracker {
	return &SourceTracker{byURL: make(map[string]int)}
}

// Absorb assigns indices to env's hits, continuing the turn's numbering,
// and returns the rendered text block for the model. In Chat Mode the
// block carries [n] labels matching the assigned indices to invite [n]
// citations; in Agent Mode labels are suppressed (bullet form) since
// citations there happen only in the final HTML generation phase (§4.3).
func (t *SourceTracker) Absorb(env SearchEnvelope, mode models.Mode) string {
	if env.SearchError() != "" {
		return fmt.Sprintf("Search failed: %s", env.SearchError())
	}
	hits := env.SearchHits()
	if len(hits) == 0 {
		return "Search failed: No results found"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n\n", env.SearchQuery())
	for _, h := range hits {
		if h.URL == "" {
			continue
		}
		idx, seen := t.byURL[h.URL]
		if !seen {
			idx = len(t.sources) + 1
			t.byURL[h.URL] = idx
			t.sources = append(t.sources, models.Source{
				Index:     idx,
				Title:     h.Title,
				URL:       h.URL,
				Snippet:   h.Snippet,
				Age:       h.Age,
				CachePath: h.CachePath,
			})
		}
		if mode == models.ModeChat {
			fmt.Fprintf(&b, "[%d] %s\n    URL: %s\n", idx, h.Title, h.URL)
		} else {
			fmt.Fprintf(&b, "- %s\n  URL: %s\n", h.Title, h.URL)
		}
		if h.CachePath != "" {
			fmt.Fprintf(&b, "    Cached: %s\n", h.CachePath)
		}
		if h.Age != "" {
			fmt.Fprintf(&b, "    Published: %s\n", h.Age)
		}
		if h.Snippet != "" {
			fmt.Fprintf(&b, "    %s\n", h.Snippet)
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

// Sources returns the accumulated list, nil when no search produced hits.
func (t *SourceTracker) Sources() []models.Source {
	return t.sources
}
