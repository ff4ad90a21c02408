package scrape

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/cache"
	"github.com/researchbot/researchbot/internal/llm"
)

type fakeGenerator struct {
	calls   atomic.Int32
	fail    bool
	partial bool
}

func (g *fakeGenerator) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Completion, error) {
	n := g.calls.Add(1)
	if g.fail {
		return llm.Completion{}, errors.New("generation backend unavailable")
	}
	if g.partial {
		return llm.Completion{Content: "cut off", FinishReason: "length"}, nil
	}
	return llm.Completion{Content: fmt.Sprintf("summary %d", n), FinishReason: "stop"}, nil
}

func newTestStore(t *testing.T) *cache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewWithClient(client, time.Hour, zap.NewNop())
}

func newTestEngine(t *testing.T, gen llm.Generator) (*Engine, *httptest.Server, *atomic.Int32) {
	t.Helper()
	var pageFetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/robots.txt" {
			http.NotFound(w, r)
			return
		}
		pageFetches.Add(1)
		w.Write([]byte("<html><head><title>Release Notes</title></head><body><p>The release ships new caching.</p></body></html>"))
	}))
	t.Cleanup(srv.Close)

	logger := zap.NewNop()
	fetcher := NewFetcher(NewRobotsGate(logger), logger)
	engine := NewEngine(fetcher, newTestStore(t), gen, "test-model", logger)
	return engine, srv, &pageFetches
}

func TestScrapeCachesChunksAndResummarizes(t *testing.T) {
	gen := &fakeGenerator{}
	engine, srv, pageFetches := newTestEngine(t, gen)
	ctx := context.Background()

	first := engine.Scrape(ctx, "user-1", srv.URL+"/post", 5*time.Second, "")
	require.Equal(t, "success", first.Status)
	require.NotEmpty(t, first.SummarizedContent)
	require.Equal(t, "Release Notes", first.Metadata.Title)
	require.Equal(t, int32(1), pageFetches.Load())
	callsAfterFirst := gen.calls.Load()

	// Second scrape of the same (user, url) reuses cached chunks but still
	// runs a fresh summarization pass.
	second := engine.Scrape(ctx, "user-1", srv.URL+"/post", 5*time.Second, "caching")
	require.Equal(t, "success", second.Status)
	require.Equal(t, int32(1), pageFetches.Load())
	require.Greater(t, gen.calls.Load(), callsAfterFirst)

	// A different user has its own cache entry.
	engine.Scrape(ctx, "user-2", srv.URL+"/post", 5*time.Second, "")
	require.Equal(t, int32(2), pageFetches.Load())
}

func TestScrapeFetchErrorEnvelope(t *testing.T) {
	gen := &fakeGenerator{}
	logger := zap.NewNop()
	fetcher := NewFetcher(NewRobotsGate(logger), logger)
	engine := NewEngine(fetcher, newTestStore(t), gen, "test-model", logger)

	res := engine.Scrape(context.Background(), "user-1", "http://127.0.0.1:1/nope", time.Second, "")
	require.Equal(t, "error", res.Status)
	require.Contains(t, res.Message, "error fetching")
	require.Zero(t, gen.calls.Load())
}

func TestScrapeSummarizationDegrades(t *testing.T) {
	gen := &fakeGenerator{fail: true}
	engine, srv, _ := newTestEngine(t, gen)

	res := engine.Scrape(context.Background(), "user-1", srv.URL+"/post", 5*time.Second, "")
	require.Equal(t, "success", res.Status)
	require.Contains(t, res.SummarizedContent, "Error summarizing chunk 1.")
}

func TestScrapeIncompleteSummaryPlaceholder(t *testing.T) {
	gen := &fakeGenerator{partial: true}
	engine, srv, _ := newTestEngine(t, gen)

	res := engine.Scrape(context.Background(), "user-1", srv.URL+"/post", 5*time.Second, "")
	require.Equal(t, "success", res.Status)
	require.Contains(t, res.SummarizedContent, "Summary not completed for chunk 1.")
}

func TestSummarizePagesEmptyContent(t *testing.T) {
	gen := &fakeGenerator{}
	engine := NewEngine(nil, nil, gen, "test-model", zap.NewNop())

	res := engine.summarizePages(context.Background(), []string{"", "  "}, PageMetadata{URL: "http://example.com"}, "http://example.com", "")
	require.Equal(t, "error", res.Status)
	require.Contains(t, res.Message, "no content retrieved")
	require.Zero(t, gen.calls.Load())
}

func TestSummarizePagesAggregationFallback(t *testing.T) {
	// Aggregation call fails after per-chunk summaries succeed; the result
	// falls back to the joined chunk summaries.
	gen := &flakyGenerator{failFrom: 3}
	engine := NewEngine(nil, nil, gen, "test-model", zap.NewNop())

	res := engine.summarizePages(context.Background(),
		[]string{"first chunk text", "second chunk text"},
		PageMetadata{URL: "http://example.com"}, "http://example.com", "")
	require.Equal(t, "success", res.Status)
	require.Equal(t, strings.Join([]string{"summary 1", "summary 2"}, "\n\n"), res.SummarizedContent)
}

type flakyGenerator struct {
	calls    int32
	failFrom int32
}

func (g *flakyGenerator) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Completion, error) {
	n := atomic.AddInt32(&g.calls, 1)
	if n >= g.failFrom {
		return llm.Completion{}, errors.New("aggregation backend unavailable")
	}
	return llm.Completion{Content: fmt.Sprintf("summary %d", n), FinishReason: "stop"}, nil
}

func TestReadWebpage(t *testing.T) {
	gen := &fakeGenerator{}
	engine, srv, _ := newTestEngine(t, gen)

	content, meta, err := engine.ReadWebpage(context.Background(), srv.URL+"/post")
	require.NoError(t, err)
	require.Equal(t, "Release Notes", meta.Title)
	require.Contains(t, content.MainText, "new caching")
	require.Zero(t, gen.calls.Load())
}
