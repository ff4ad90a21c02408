package research

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/cache"
	"github.com/researchbot/researchbot/internal/config"
	"github.com/researchbot/researchbot/internal/llm"
)

// sourceCharBudget bounds how much of each source's text reaches the
// synthesis prompt.
const sourceCharBudget = 2000

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

type synthesisMetadata struct {
	Query                         string   `json:"query"`
	NumSources                    int      `json:"num_sources"`
	SourceURLs                    []string `json:"source_urls"`
	Contradictions                *string  `json:"contradictions"`
	AdditionalResearchSuggestions *string  `json:"additional_research_suggestions"`
}

type synthesisResult struct {
	Status            string            `json:"status"`
	Message           string            `json:"message"`
	SynthesizedAnswer string            `json:"synthesized_answer"`
	Metadata          synthesisMetadata `json:"metadata"`
}

const synthesisSystemPrompt = `You are an expert research assistant that synthesizes information from multiple sources to provide comprehensive, accurate answers. Your task is to:

1. Identify key information relevant to the query
2. Resolve any contradictions between sources
3. Organize information in a logical structure
4. Generate a comprehensive answer that directly addresses the query
5. Cite sources appropriately (Source 1, Source 2, etc.)

Remember to prioritize accuracy and relevance while being concise.`

// synthesize produces the final answer over all gathered sources. Identical
// source sets and query reuse the cached synthesis without a generation call.
func (o *Orchestrator) synthesize(ctx context.Context, userID string, sources []Source, query string) synthesisResult {
	urls := make([]string, 0, len(sources))
	for _, s := range sources {
		if s.URL != "" {
			urls = append(urls, s.URL)
		}
	}
	key := cache.SynthesisKey(userID, urls, query)

	var cached synthesisResult
	if o.store != nil && o.store.GetJSON(ctx, key, &cached) {
		o.logger.Info("Using cached synthesis", zap.String("query", query))
		return cached
	}

	var parts []string
	for i, s := range sources {
		content := s.Content
		if content == "" {
			content = s.Snippet
		}
		if content == "" {
			content = s.SummarizedContent
		}
		if content == "" {
			continue
		}
		content = truncateRunes(content, sourceCharBudget)
		title := s.Name
		if title == "" {
			title = s.URL
		}
		parts = append(parts, fmt.Sprintf("SOURCE %d: %s\nURL: %s\nCONTENT: %s", i+1, title, s.URL, content))
	}

	out, err := o.generator.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: synthesisSystemPrompt},
		{Role: llm.RoleUser, Content: fmt.Sprintf("QUERY: %s\n\nSOURCES:\n%s", query, strings.Join(parts, "\n\n"))},
	}, llm.Options{Model: o.model, Temperature: 0.3, Purpose: "synthesis"})
	if err != nil {
		o.logger.Error("Synthesis generation failed", zap.String("query", query), zap.Error(err))
		return synthesisResult{Status: "error", Message: fmt.Sprintf("error synthesizing information: %v", err)}
	}

	result := synthesisResult{
		Status:            "success",
		Message:           "Information synthesis completed",
		SynthesizedAnswer: out.Content,
		Metadata: synthesisMetadata{
			Query:                         query,
			NumSources:                    len(sources),
			SourceURLs:                    urls,
			Contradictions:                extractLabeledSection(out.Content, "contradictions"),
			AdditionalResearchSuggestions: extractLabeledSection(out.Content, "additional research"),
		},
	}
	if o.store != nil {
		o.store.Set(ctx, key, result, config.CacheTTL)
	}
	return result
}

var nextLabelPattern = regexp.MustCompile(`\n\w+:`)

// extractLabeledSection pulls the text under a "label:" heading, stopping at
// the next heading line. Returns nil when the label is absent.
func extractLabeledSection(text, label string) *string {
	head := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(label) + `:?\s*`)
	loc := head.FindStringIndex(text)
	if loc == nil {
		return nil
	}
	rest := text[loc[1]:]
	if m := nextLabelPattern.FindStringIndex(rest); m != nil {
		rest = rest[:m[0]]
	}
	section := strings.TrimSpace(rest)
	if section == "" {
		return nil
	}
	return &section
}
