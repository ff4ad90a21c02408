package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/cache"
	"github.com/researchbot/researchbot/internal/config"
	"github.com/researchbot/researchbot/internal/llm"
	"github.com/researchbot/researchbot/internal/metrics"
)

// QueryAnalysis is the structured reading of a user query. Fields are
// best-effort extractions; an absent section leaves its field zero-valued.
type QueryAnalysis struct {
	Intent          string   `json:"intent"`
	Components      []string `json:"components"`
	SearchStrategy  string   `json:"search_strategy"`
	RelevantSources []string `json:"relevant_sources"`
	Ambiguities     []string `json:"ambiguities"`
}

// QueryResult is the query-analysis envelope.
type QueryResult struct {
	Status      string         `json:"status"`
	Message     string         `json:"message"`
	Analysis    *QueryAnalysis `json:"analysis"`
	RawAnalysis string         `json:"raw_analysis"`
}

// CriterionScore holds one evaluated criterion. Score is nil when the
// generated text did not contain an extractable N/10 value.
type CriterionScore struct {
	Score       *float64 `json:"score"`
	Explanation string   `json:"explanation"`
}

// ContentResult is the content-analysis envelope.
type ContentResult struct {
	Status          string                    `json:"status"`
	Message         string                    `json:"message"`
	Analysis        map[string]CriterionScore `json:"analysis"`
	OverallAnalysis string                    `json:"overall_analysis"`
}

const maxContentChars = 4000

// truncateRunes cuts s to at most limit bytes without splitting a rune.
func truncateRunes(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

var criterionDescriptions = map[string]string{
	"relevance":   "How relevant the content is to typical research queries",
	"reliability": "How reliable and trustworthy the information appears to be",
	"bias":        "The degree of bias present in the content (lower score means more biased)",
	"factuality":  "How factual vs. opinion-based the content is",
	"recency":     "How recent or current the information appears to be",
}

// DefaultCriteria enables every supported content criterion.
func DefaultCriteria() map[string]bool {
	return map[string]bool{
		"relevance":   true,
		"reliability": true,
		"bias":        true,
		"factuality":  true,
		"recency":     true,
	}
}

// Analyzer turns free-text generation output into structured query and
// content analyses. Results are cached; parse misses degrade to empty fields
// and are never fatal.
type Analyzer struct {
	store     *cache.Store
	generator llm.Generator
	model     string
	logger    *zap.Logger
}

func New(store *cache.Store, generator llm.Generator, model string, logger *zap.Logger) *Analyzer {
	return &Analyzer{store: store, generator: generator, model: model, logger: logger}
}

const queryAnalysisSystemPrompt = `You are a query analysis expert. When provided with a research query, analyze it to determine:
1. The primary intent (factual information, opinion/analysis, recent news, historical data, etc.)
2. Key components that make up the query
3. The most effective search strategy, with exactly 3 ready-to-use search queries formatted as:
    SEARCH_QUERIES:
    - "query 1"
    - "query 2"
    - "query 3"
4. Type of sources that would be most relevant
5. Any potential ambiguities or clarifications needed

Provide a structured analysis with these elements clearly labeled.`

// AnalyzeQuery classifies a research query. The cache key uses the literal
// query text; only exact repeats hit. Error results are not cached.
func (a *Analyzer) AnalyzeQuery(ctx context.Context, userID, query string) QueryResult {
	key := cache.QueryAnalysisKey(userID, query)

	var cached QueryResult
	if a.store != nil && a.store.GetJSON(ctx, key, &cached) {
		metrics.CacheHits.WithLabelValues("query_analysis").Inc()
		a.logger.Info("Using cached query analysis", zap.String("query", query))
		return cached
	}
	metrics.CacheMisses.WithLabelValues("query_analysis").Inc()

	out, err := a.generator.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: queryAnalysisSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Analyze this research query: %s", query)},
	}, llm.Options{Model: a.model, Temperature: 0.2, Purpose: "query_analysis"})
	if err != nil {
		a.logger.Error("Query analysis generation failed", zap.String("query", query), zap.Error(err))
		return QueryResult{Status: "error", Message: fmt.Sprintf("error analyzing query: %v", err)}
	}

	analysis := parseQueryAnalysis(out.Content)
	result := QueryResult{
		Status:      "success",
		Message:     "Query analysis completed",
		Analysis:    &analysis,
		RawAnalysis: out.Content,
	}
	if a.store != nil {
		a.store.Set(ctx, key, result, config.CacheTTL)
	}
	return result
}

// AnalyzeContent scores content against the enabled criteria. Content is
// truncated before generation; scores that cannot be extracted come back nil
// rather than failing the call.
func (a *Analyzer) AnalyzeContent(ctx context.Context, userID, content string, criteria map[string]bool) ContentResult {
	if len(criteria) == 0 {
		criteria = DefaultCriteria()
	}

	key := cache.ContentAnalysisKey(userID, content, canonicalCriteria(criteria))

	var cached ContentResult
	if a.store != nil && a.store.GetJSON(ctx, key, &cached) {
		metrics.CacheHits.WithLabelValues("content_analysis").Inc()
		a.logger.Info("Using cached content analysis")
		return cached
	}
	metrics.CacheMisses.WithLabelValues("content_analysis").Inc()

	var sb strings.Builder
	for _, criterion := range sortedEnabled(criteria) {
		if desc, ok := criterionDescriptions[criterion]; ok {
			fmt.Fprintf(&sb, "- %s: %s\n", criterion, desc)
		}
	}

	truncated := truncateRunes(content, maxContentChars)

	out, err := a.generator.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "You are a content analyzer that evaluates text based on specified criteria. For each criterion, provide a score from 0-10 and a brief explanation."},
		{Role: llm.RoleUser, Content: fmt.Sprintf("Analyze the following content based on these criteria:\n%s\nContent: %s", sb.String(), truncated)},
	}, llm.Options{Model: a.model, Temperature: 0.2, Purpose: "content_analysis"})
	if err != nil {
		a.logger.Error("Content analysis generation failed", zap.Error(err))
		return ContentResult{Status: "error", Message: fmt.Sprintf("error analyzing content: %v", err)}
	}

	scores := make(map[string]CriterionScore, len(criteria))
	for criterion, enabled := range criteria {
		if !enabled {
			continue
		}
		scores[criterion] = extractCriterionScore(out.Content, criterion)
	}

	result := ContentResult{
		Status:          "success",
		Message:         "Content analysis completed",
		Analysis:        scores,
		OverallAnalysis: out.Content,
	}
	if a.store != nil {
		a.store.Set(ctx, key, result, config.CacheTTL)
	}
	return result
}

// canonicalCriteria renders the criteria map in key order so equivalent maps
// hash to the same cache key.
func canonicalCriteria(criteria map[string]bool) string {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%t", k, criteria[k]))
	}
	return strings.Join(parts, ",")
}

func sortedEnabled(criteria map[string]bool) []string {
	keys := make([]string, 0, len(criteria))
	for k, enabled := range criteria {
		if enabled {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}
