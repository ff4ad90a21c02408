package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/cache"
	"github.com/researchbot/researchbot/internal/config"
	"github.com/researchbot/researchbot/internal/llm"
	"github.com/researchbot/researchbot/internal/metrics"
)

// Result is the scrape engine's uniform envelope. Status is "error" only for
// fetch-level failures; summarization failures degrade into placeholder text.
type Result struct {
	Status            string        `json:"status"`
	Message           string        `json:"message"`
	SummarizedContent string        `json:"summarized_content,omitempty"`
	Metadata          *PageMetadata `json:"metadata,omitempty"`
}

// pageCacheEntry is the chunked representation cached per (user, url).
type pageCacheEntry struct {
	Pages    []string     `json:"pages"`
	Metadata PageMetadata `json:"metadata"`
}

// Engine fetches pages, chunks them and produces generation-service
// summaries. Chunk sets are cached; summaries are recomputed on every call so
// a different selector query can refocus a cached page.
type Engine struct {
	fetcher   *Fetcher
	store     *cache.Store
	generator llm.Generator
	model     string
	logger    *zap.Logger
}

func NewEngine(fetcher *Fetcher, store *cache.Store, generator llm.Generator, model string, logger *zap.Logger) *Engine {
	return &Engine{
		fetcher:   fetcher,
		store:     store,
		generator: generator,
		model:     model,
		logger:    logger,
	}
}

// Scrape fetches url (or reuses the cached chunk set), splits it into
// token-bounded chunks and summarizes them, optionally focused by
// selectorQuery. timeout bounds only the page fetch.
func (e *Engine) Scrape(ctx context.Context, userID, url string, timeout time.Duration, selectorQuery string) Result {
	key := cache.PageKey(userID, url)

	var entry pageCacheEntry
	if e.store != nil && e.store.GetJSON(ctx, key, &entry) {
		metrics.CacheHits.WithLabelValues("page").Inc()
		e.logger.Info("Using cached page content", zap.String("url", url))
		return e.summarizePages(ctx, entry.Pages, entry.Metadata, url, selectorQuery)
	}
	metrics.CacheMisses.WithLabelValues("page").Inc()

	html, err := e.fetcher.FetchPage(ctx, url, timeout)
	if err != nil {
		metrics.ScrapeFailures.WithLabelValues("fetch").Inc()
		e.logger.Error("Page fetch failed", zap.String("url", url), zap.Error(err))
		return Result{Status: "error", Message: fmt.Sprintf("error fetching %s: %v", url, err)}
	}

	text, err := ExtractText(html)
	if err != nil {
		metrics.ScrapeFailures.WithLabelValues("parse").Inc()
		return Result{Status: "error", Message: fmt.Sprintf("error extracting content from %s: %v", url, err)}
	}

	pages := SplitChunks(text)
	metadata := PageMetadata{Title: ExtractTitle(html), URL: url}
	e.logger.Info("Split page into chunks",
		zap.String("url", url), zap.Int("chunks", len(pages)))

	// Cache before summarizing; a write failure must not block the summary.
	if e.store != nil {
		e.store.Set(ctx, key, pageCacheEntry{Pages: pages, Metadata: metadata}, config.CacheTTL)
	}

	return e.summarizePages(ctx, pages, metadata, url, selectorQuery)
}

// ReadWebpage fetches url and returns its structured content without any
// summarization pass.
func (e *Engine) ReadWebpage(ctx context.Context, url string) (*StructuredContent, *PageMetadata, error) {
	html, err := e.fetcher.FetchPage(ctx, url, DefaultTimeout)
	if err != nil {
		return nil, nil, err
	}
	content, err := ExtractStructured(html)
	if err != nil {
		return nil, nil, err
	}
	return content, &PageMetadata{Title: ExtractTitle(html), URL: url}, nil
}

func (e *Engine) summarizePages(ctx context.Context, pages []string, metadata PageMetadata, url, selectorQuery string) Result {
	empty := true
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			empty = false
			break
		}
	}
	if empty {
		metrics.ScrapeFailures.WithLabelValues("empty").Inc()
		return Result{
			Status:   "error",
			Message:  fmt.Sprintf("no content retrieved from %s", url),
			Metadata: &metadata,
		}
	}

	system := "You are a helpful assistant that extracts and summarizes the content provided. " +
		"Summary should be of appropriate length to encompass most of the content."
	if selectorQuery != "" {
		system += fmt.Sprintf(" Focus on the following aspect: %s.", selectorQuery)
	} else {
		system += " Summarize the content comprehensively."
	}

	summaries := make([]string, 0, len(pages))
	for i, chunk := range pages {
		out, err := e.generator.Generate(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Content (chunk %d of %d): %s", i+1, len(pages), chunk)},
		}, llm.Options{Model: e.model, Temperature: 0.2, Purpose: "summarize"})

		switch {
		case err != nil:
			e.logger.Error("Chunk summarization failed",
				zap.String("url", url), zap.Int("chunk", i+1), zap.Error(err))
			summaries = append(summaries, fmt.Sprintf("Error summarizing chunk %d.", i+1))
		case !out.Complete():
			e.logger.Warn("Incomplete chunk summary",
				zap.String("url", url), zap.Int("chunk", i+1))
			summaries = append(summaries, fmt.Sprintf("Summary not completed for chunk %d.", i+1))
		default:
			summaries = append(summaries, out.Content)
		}
	}

	final := summaries[0]
	if len(summaries) > 1 {
		joined := strings.Join(summaries, "\n\n")
		out, err := e.generator.Generate(ctx, []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a helpful assistant that aggregates multiple summaries into a final concise summary."},
			{Role: llm.RoleUser, Content: fmt.Sprintf("Summaries from %s: %s", url, joined)},
		}, llm.Options{Model: e.model, Temperature: 0.2, Purpose: "aggregate"})

		if err != nil || !out.Complete() {
			// Aggregation failure degrades to the raw concatenation.
			e.logger.Warn("Summary aggregation failed", zap.String("url", url), zap.Error(err))
			final = joined
		} else {
			final = out.Content
		}
	}

	return Result{
		Status:            "success",
		Message:           fmt.Sprintf("successfully summarized content from %s", url),
		SummarizedContent: final,
		Metadata:          &metadata,
	}
}
