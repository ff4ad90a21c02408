package research

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/analyzer"
	"github.com/researchbot/researchbot/internal/cache"
	"github.com/researchbot/researchbot/internal/llm"
	"github.com/researchbot/researchbot/internal/metrics"
	"github.com/researchbot/researchbot/internal/news"
	"github.com/researchbot/researchbot/internal/scrape"
	"github.com/researchbot/researchbot/internal/search"
)

// Research depths.
const (
	DepthQuick    = "quick"
	DepthStandard = "standard"
	DepthDeep     = "deep"
)

const (
	newsMaxResults = 20
	// scrapeTimeout is the hard per-source bound during the deep-scrape
	// stage. On expiry the source is marked failed and the run continues.
	scrapeTimeout = 60 * time.Second
)

// newsKeywords classify an analyzed intent as news-like. The current
// calendar year is appended at evaluation time.
var newsKeywords = []string{
	"latest", "recent", "breaking", "news", "today", "this week",
	"this month", "current", "update", "live", "newest", "headline",
	"ongoing",
}

// Source is one piece of retrieved evidence. Later pipeline stages enrich it
// in place; it lives only for the duration of one research run.
type Source struct {
	Name              string                             `json:"name"`
	URL               string                             `json:"url"`
	Snippet           string                             `json:"snippet"`
	Content           string                             `json:"content,omitempty"`
	SummarizedContent string                             `json:"summarized_content,omitempty"`
	PublishedDate     string                             `json:"published_date,omitempty"`
	SourceType        string                             `json:"source_type"`
	Analysis          map[string]analyzer.CriterionScore `json:"analysis,omitempty"`
}

// AdditionalInfo carries per-report aggregates and the synthesis extractions.
type AdditionalInfo struct {
	NewsSources                   int     `json:"news_sources"`
	WebSources                    int     `json:"web_sources"`
	Contradictions                *string `json:"contradictions"`
	AdditionalResearchSuggestions *string `json:"additional_research_suggestions"`
}

// Report is the orchestrator's output, immutable once returned.
type Report struct {
	Query          string                  `json:"query"`
	QueryAnalysis  *analyzer.QueryAnalysis `json:"query_analysis"`
	Answer         string                  `json:"answer"`
	Sources        []Source                `json:"sources"`
	ResearchDepth  string                  `json:"research_depth"`
	Timestamp      string                  `json:"timestamp"`
	AdditionalInfo AdditionalInfo          `json:"additional_info"`
}

// Result is the research envelope.
type Result struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Report  *Report `json:"result"`
}

// QueryAnalyzer, Searcher, NewsFetcher and Scraper are the orchestrator's
// collaborator contracts, satisfied by the concrete components.
type QueryAnalyzer interface {
	AnalyzeQuery(ctx context.Context, userID, query string) analyzer.QueryResult
	AnalyzeContent(ctx context.Context, userID, content string, criteria map[string]bool) analyzer.ContentResult
}

type Searcher interface {
	Search(ctx context.Context, query string) search.Result
}

type NewsFetcher interface {
	Fetch(ctx context.Context, userID, query string, maxResults, daysBack int) news.Result
}

type Scraper interface {
	Scrape(ctx context.Context, userID, url string, timeout time.Duration, selectorQuery string) scrape.Result
}

// Orchestrator runs the linear research pipeline: analyze, refine, gather,
// deep-scrape, content-analyze, synthesize, assemble.
type Orchestrator struct {
	analyzer  QueryAnalyzer
	searcher  Searcher
	news      NewsFetcher
	scraper   Scraper
	generator llm.Generator
	store     *cache.Store
	model     string
	logger    *zap.Logger

	now          func() time.Time
	perSourceCap time.Duration
}

func NewOrchestrator(qa QueryAnalyzer, searcher Searcher, fetcher NewsFetcher, scraper Scraper,
	generator llm.Generator, store *cache.Store, synthesisModel string, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		analyzer:     qa,
		searcher:     searcher,
		news:         fetcher,
		scraper:      scraper,
		generator:    generator,
		store:        store,
		model:        synthesisModel,
		logger:       logger,
		now:          time.Now,
		perSourceCap: scrapeTimeout,
	}
}

// Perform runs the full research pipeline for one query. Stage order is
// strict; deep-scrape and content-analysis failures are tolerated per source,
// analyze and synthesize failures terminate the run.
func (o *Orchestrator) Perform(ctx context.Context, userID, query, depth string) Result {
	if depth != DepthQuick && depth != DepthDeep {
		depth = DepthStandard
	}
	start := o.now()
	o.logger.Info("Starting research",
		zap.String("query", query), zap.String("depth", depth))

	res := o.perform(ctx, userID, query, depth)

	metrics.ResearchRuns.WithLabelValues(depth, res.Status).Inc()
	metrics.ResearchDuration.WithLabelValues(depth).Observe(time.Since(start).Seconds())
	return res
}

func (o *Orchestrator) perform(ctx context.Context, userID, query, depth string) Result {
	// Stage 1: analyze.
	qa := o.analyzer.AnalyzeQuery(ctx, userID, query)
	if qa.Status != "success" || qa.Analysis == nil {
		return Result{Status: "error", Message: fmt.Sprintf("error analyzing query: %s", qa.Message)}
	}

	// Stage 2: refine the search string.
	searchQuery := query
	if qa.Analysis.SearchStrategy != "" {
		searchQuery = SelectBestQuery(qa.Analysis.SearchStrategy, query)
		o.logger.Info("Refined search query",
			zap.String("original", query), zap.String("refined", searchQuery))
	}

	// Stage 3: classify as news-like.
	newsLike := o.isNewsQuery(qa.Analysis.Intent)

	// Stage 4: gather.
	var sources []Source
	if newsLike || depth == DepthDeep {
		daysBack := newsWindow(depth)
		o.logger.Info("Fetching news",
			zap.String("query", searchQuery), zap.Int("days_back", daysBack))
		nr := o.news.Fetch(ctx, userID, searchQuery, newsMaxResults, daysBack)
		if nr.Status == "success" {
			for _, article := range nr.Articles {
				sources = append(sources, Source{
					Name:          article.Title,
					URL:           article.Link,
					Snippet:       article.Title + " - " + article.Source,
					PublishedDate: article.Date,
					SourceType:    "news",
				})
			}
		}
	}

	sr := o.searcher.Search(ctx, searchQuery)
	for _, c := range sr.Contexts {
		sources = append(sources, Source{
			Name:       c.Name,
			URL:        c.URL,
			Snippet:    c.Snippet,
			Content:    c.Content,
			SourceType: "web",
		})
	}

	// Stage 5: deep-scrape top web sources.
	if depth == DepthStandard || depth == DepthDeep {
		o.deepScrape(ctx, userID, sources, depth)
	}

	// Stage 6: content analysis on the leading sources, mixed types.
	if depth == DepthDeep {
		o.analyzeSources(ctx, userID, sources)
	}

	// Stage 7: synthesize.
	if len(sources) == 0 {
		return Result{Status: "error", Message: "No relevant sources found for the query"}
	}
	o.logger.Info("Synthesizing information", zap.Int("sources", len(sources)))
	syn := o.synthesize(ctx, userID, sources, searchQuery)
	if syn.Status != "success" {
		return Result{Status: "error", Message: syn.Message}
	}

	// Stage 8: assemble the report.
	info := AdditionalInfo{
		Contradictions:                syn.Metadata.Contradictions,
		AdditionalResearchSuggestions: syn.Metadata.AdditionalResearchSuggestions,
	}
	for _, s := range sources {
		switch s.SourceType {
		case "news":
			info.NewsSources++
		case "web":
			info.WebSources++
		}
	}
	metrics.SourcesGathered.WithLabelValues("news").Observe(float64(info.NewsSources))
	metrics.SourcesGathered.WithLabelValues("web").Observe(float64(info.WebSources))

	return Result{
		Status:  "success",
		Message: fmt.Sprintf("Research completed for query: %s", searchQuery),
		Report: &Report{
			Query:          searchQuery,
			QueryAnalysis:  qa.Analysis,
			Answer:         syn.SynthesizedAnswer,
			Sources:        sources,
			ResearchDepth:  depth,
			Timestamp:      o.now().Format(time.RFC3339),
			AdditionalInfo: info,
		},
	}
}

func (o *Orchestrator) isNewsQuery(intent string) bool {
	lower := strings.ToLower(intent)
	for _, kw := range newsKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return strings.Contains(lower, strconv.Itoa(o.now().Year()))
}

func newsWindow(depth string) int {
	switch depth {
	case DepthQuick:
		return 3
	case DepthDeep:
		return 30
	default:
		return 7
	}
}

// deepScrape summarizes the top web sources that lack inline content,
// concurrently with a hard per-source timeout. Results are written back by
// index so report ordering is independent of completion order. Partial
// failure never aborts the run.
func (o *Orchestrator) deepScrape(ctx context.Context, userID string, sources []Source, depth string) {
	limit := 3
	if depth == DepthDeep {
		limit = 5
	}

	var targets []int
	for i := range sources {
		if len(targets) == limit {
			break
		}
		if sources[i].SourceType == "web" {
			targets = append(targets, i)
		}
	}

	done := make(chan struct{}, len(targets))
	launched := 0
	for _, idx := range targets {
		src := &sources[idx]
		if src.URL == "" || src.Content != "" {
			continue
		}
		launched++
		go func(idx int, src *Source) {
			defer func() { done <- struct{}{} }()

			scrapeCtx, cancel := context.WithTimeout(ctx, o.perSourceCap)
			defer cancel()

			o.logger.Info("Deep scraping source", zap.String("url", src.URL))
			result := o.scraper.Scrape(scrapeCtx, userID, src.URL, 0, "")
			switch {
			case scrapeCtx.Err() != nil:
				// The cap expired mid-scrape. Whatever came back is a
				// degraded partial; the source stays un-enriched.
				metrics.ScrapeFailures.WithLabelValues("timeout").Inc()
				o.logger.Warn("Deep scrape timed out", zap.String("url", src.URL))
			case result.Status == "success":
				src.SummarizedContent = result.SummarizedContent
			default:
				metrics.ScrapeFailures.WithLabelValues("research").Inc()
				o.logger.Warn("Deep scrape failed",
					zap.String("url", src.URL), zap.String("reason", result.Message))
			}
		}(idx, src)
	}
	for i := 0; i < launched; i++ {
		<-done
	}
}

// analyzeSources attaches criterion analyses to the first five sources that
// carry any usable text.
func (o *Orchestrator) analyzeSources(ctx context.Context, userID string, sources []Source) {
	limit := 5
	if len(sources) < limit {
		limit = len(sources)
	}
	for i := 0; i < limit; i++ {
		src := &sources[i]
		content := src.Content
		if content == "" {
			content = src.SummarizedContent
		}
		if content == "" {
			content = src.Snippet
		}
		if content == "" {
			continue
		}
		o.logger.Info("Analyzing source content",
			zap.Int("position", i+1), zap.String("name", src.Name))
		ar := o.analyzer.AnalyzeContent(ctx, userID, content, nil)
		if ar.Status == "success" {
			src.Analysis = ar.Analysis
		}
	}
}
