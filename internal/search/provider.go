package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Context is one unit of search evidence: a merged view over the provider's
// knowledge graph, answer box and organic results.
type Context struct {
	Name    string `json:"name"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
	Content string `json:"content,omitempty"`
}

// Result is the adapter's uniform envelope. Stories, RelatedSearches and
// Images are passed through untouched in provider shape.
type Result struct {
	Status          string          `json:"status"`
	Message         string          `json:"message"`
	Contexts        []Context       `json:"contexts"`
	Stories         json.RawMessage `json:"stories,omitempty"`
	RelatedSearches json.RawMessage `json:"relatedSearches,omitempty"`
	Images          json.RawMessage `json:"images,omitempty"`
}

// ContentFetcher retrieves a short plain-text preview of a page. Used only by
// the deep search path to enrich organic results.
type ContentFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Provider wraps a Serper-style web search API. API keys are cycled
// round-robin via a shared counter; under concurrency the exact key picked
// per call is not deterministic, only the long-run balance.
type Provider struct {
	endpoint string
	keys     []string
	counter  atomic.Uint64
	client   *http.Client
	fetcher  ContentFetcher
	logger   *zap.Logger
}

// New builds a Provider. fetcher may be nil when deep enrichment is unused.
func New(endpoint string, keys []string, fetcher ContentFetcher, logger *zap.Logger) *Provider {
	return &Provider{
		endpoint: endpoint,
		keys:     keys,
		client:   &http.Client{Timeout: 15 * time.Second},
		fetcher:  fetcher,
		logger:   logger,
	}
}

func (p *Provider) nextKey() string {
	idx := p.counter.Add(1) - 1
	return p.keys[idx%uint64(len(p.keys))]
}

// providerResponse mirrors the fields of the provider payload we consume.
type providerResponse struct {
	KnowledgeGraph *struct {
		Title          string `json:"title"`
		DescriptionURL string `json:"descriptionUrl"`
		Website        string `json:"website"`
		Description    string `json:"description"`
	} `json:"knowledgeGraph"`
	AnswerBox *struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
		Answer  string `json:"answer"`
	} `json:"answerBox"`
	Organic []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic"`
	TopStories      json.RawMessage `json:"topStories"`
	RelatedSearches json.RawMessage `json:"relatedSearches"`
	Images          json.RawMessage `json:"images"`
}

// Search runs a shallow search: contexts carry provider snippets only.
func (p *Provider) Search(ctx context.Context, query string) Result {
	return p.search(ctx, query, false)
}

// SearchDeep additionally fetches a short text preview for each context.
// Preview failures are silent; the context keeps its snippet.
func (p *Provider) SearchDeep(ctx context.Context, query string) Result {
	return p.search(ctx, query, true)
}

func (p *Provider) search(ctx context.Context, query string, deep bool) Result {
	if len(p.keys) == 0 {
		return Result{Status: "error", Message: "search API key is not configured"}
	}

	payload, err := json.Marshal(map[string]interface{}{"q": query, "num": 10})
	if err != nil {
		return Result{Status: "error", Message: fmt.Sprintf("failed to build search request: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{Status: "error", Message: fmt.Sprintf("failed to build search request: %v", err)}
	}
	req.Header.Set("X-API-KEY", p.nextKey())
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		p.logger.Error("Search request failed", zap.String("query", query), zap.Error(err))
		return Result{Status: "error", Message: fmt.Sprintf("search request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		p.logger.Error("Search provider returned non-OK status",
			zap.String("query", query), zap.Int("status", resp.StatusCode))
		return Result{Status: "error", Message: fmt.Sprintf("search provider returned status %d", resp.StatusCode)}
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Result{Status: "error", Message: fmt.Sprintf("failed to decode search response: %v", err)}
	}

	contexts := mergeContexts(body)
	if deep && p.fetcher != nil {
		p.enrich(ctx, contexts)
	}

	return Result{
		Status:          "success",
		Message:         fmt.Sprintf("search completed for query: %s", query),
		Contexts:        contexts,
		Stories:         body.TopStories,
		RelatedSearches: body.RelatedSearches,
		Images:          body.Images,
	}
}

// mergeContexts builds the context list in fixed precedence: knowledge graph,
// answer box, then organic results in provider order. The first two are only
// included when they carry both a URL and a snippet.
func mergeContexts(body providerResponse) []Context {
	var contexts []Context

	if kg := body.KnowledgeGraph; kg != nil {
		url := kg.DescriptionURL
		if url == "" {
			url = kg.Website
		}
		if url != "" && kg.Description != "" {
			contexts = append(contexts, Context{Name: kg.Title, URL: url, Snippet: kg.Description})
		}
	}

	if ab := body.AnswerBox; ab != nil {
		snippet := ab.Snippet
		if snippet == "" {
			snippet = ab.Answer
		}
		if ab.URL != "" && snippet != "" {
			contexts = append(contexts, Context{Name: ab.Title, URL: ab.URL, Snippet: snippet})
		}
	}

	for _, o := range body.Organic {
		contexts = append(contexts, Context{Name: o.Title, URL: o.Link, Snippet: o.Snippet})
	}
	return contexts
}

const previewLimit = 1000

// enrich fans out preview fetches concurrently and writes results back by
// index. No fetch waits on another; per-URL failures leave Content empty.
func (p *Provider) enrich(ctx context.Context, contexts []Context) {
	g, gctx := errgroup.WithContext(ctx)
	for i := range contexts {
		if contexts[i].URL == "" {
			continue
		}
		i := i
		g.Go(func() error {
			text, err := p.fetcher.FetchText(gctx, contexts[i].URL)
			if err != nil {
				p.logger.Debug("Preview fetch failed",
					zap.String("url", contexts[i].URL), zap.Error(err))
				return nil
			}
			if len(text) > previewLimit {
				text = text[:previewLimit]
			}
			contexts[i].Content = text
			return nil
		})
	}
	_ = g.Wait()
}
