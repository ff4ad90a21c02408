package chat

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/researchbot/researchbot/internal/analyzer"
	"github.com/researchbot/researchbot/internal/news"
	"github.com/researchbot/researchbot/internal/research"
	"github.com/researchbot/researchbot/internal/scrape"
	"github.com/researchbot/researchbot/internal/search"
)

// Tool results are condensed into short bounded context blocks before they
// reach the reply prompt.

const (
	maxContextItems   = 5
	snippetPreviewLen = 150
	scrapePreviewLen  = 500
	analysisPreview   = 500
)

// preview cuts s to at most limit bytes without splitting a rune.
func preview(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func formatResearchResult(res research.Result) string {
	if res.Report == nil {
		return fmt.Sprintf("RESEARCH RESULTS:\n%s", res.Message)
	}
	var sources []string
	for i, s := range res.Report.Sources {
		if i == maxContextItems {
			break
		}
		name := s.Name
		if name == "" {
			name = "Unknown Source"
		}
		sources = append(sources, fmt.Sprintf("- %s: %s", name, s.URL))
	}
	return fmt.Sprintf("RESEARCH RESULTS:\nAnswer: %s\n\nTop Sources:\n%s\n",
		res.Report.Answer, strings.Join(sources, "\n"))
}

func formatNewsResult(res news.Result) string {
	var articles []string
	for i, a := range res.Articles {
		if i == maxContextItems {
			break
		}
		date := a.Date
		if date == "" {
			date = "No date"
		}
		articles = append(articles, fmt.Sprintf("- %s: %s (%s)", a.Title, a.Source, date))
	}
	return fmt.Sprintf("NEWS RESULTS:\nTop Articles:\n%s\n", strings.Join(articles, "\n"))
}

func formatSearchResult(res search.Result) string {
	var results []string
	for i, c := range res.Contexts {
		if i == maxContextItems {
			break
		}
		snippet := preview(c.Snippet, snippetPreviewLen)
		results = append(results, fmt.Sprintf("- %s: %s...", c.Name, snippet))
	}
	return fmt.Sprintf("SEARCH RESULTS:\nTop Results:\n%s\n", strings.Join(results, "\n"))
}

func formatScrapeResult(res scrape.Result) string {
	title, url := "Untitled Page", "No URL"
	if res.Metadata != nil {
		title, url = res.Metadata.Title, res.Metadata.URL
	}
	content := res.SummarizedContent
	if content == "" {
		content = "No content extracted."
	}
	content = preview(content, scrapePreviewLen)
	return fmt.Sprintf("WEBPAGE CONTENT:\nTitle: %s\nURL: %s\n\nSummary:\n%s...\n", title, url, content)
}

func formatAnalysisResult(res analyzer.QueryResult) string {
	encoded, err := json.MarshalIndent(res.Analysis, "", "  ")
	if err != nil {
		return fmt.Sprintf("ANALYSIS: %s", res.Message)
	}
	text := preview(string(encoded), analysisPreview)
	return fmt.Sprintf("ANALYSIS: %s...", text)
}
