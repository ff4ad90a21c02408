package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func providerFixture() map[string]interface{} {
	return map[string]interface{}{
		"knowledgeGraph": map[string]interface{}{
			"title":          "Go",
			"descriptionUrl": "https://go.dev",
			"description":    "An open-source programming language.",
		},
		"answerBox": map[string]interface{}{
			"title":   "What is Go?",
			"url":     "https://go.dev/doc",
			"snippet": "Go is a statically typed language.",
		},
		"organic": []map[string]interface{}{
			{"title": "Go blog", "link": "https://go.dev/blog", "snippet": "News from the Go project."},
			{"title": "Go wiki", "link": "https://go.dev/wiki", "snippet": "Community wiki."},
		},
		"topStories": []map[string]interface{}{
			{"title": "Go 1.24 released"},
		},
	}
}

func TestSearchMergesContextsInOrder(t *testing.T) {
	var gotKeys []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		gotKeys = append(gotKeys, r.Header.Get("X-API-KEY"))
		mu.Unlock()

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "golang", body["q"])

		json.NewEncoder(w).Encode(providerFixture())
	}))
	defer srv.Close()

	p := New(srv.URL, []string{"key-a", "key-b"}, nil, zap.NewNop())

	res := p.Search(context.Background(), "golang")
	require.Equal(t, "success", res.Status)
	require.Len(t, res.Contexts, 4)
	require.Equal(t, "Go", res.Contexts[0].Name)
	require.Equal(t, "https://go.dev", res.Contexts[0].URL)
	require.Equal(t, "What is Go?", res.Contexts[1].Name)
	require.Equal(t, "Go blog", res.Contexts[2].Name)
	require.Equal(t, "Go wiki", res.Contexts[3].Name)
	require.NotNil(t, res.Stories)

	// Round-robin across calls.
	p.Search(context.Background(), "golang")
	p.Search(context.Background(), "golang")
	require.Equal(t, []string{"key-a", "key-b", "key-a"}, gotKeys)
}

func TestSearchSkipsIncompleteKnowledgeGraph(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"knowledgeGraph": map[string]interface{}{"title": "NoURL", "description": "desc only"},
			"organic": []map[string]interface{}{
				{"title": "A", "link": "https://a.example", "snippet": "sa"},
			},
		})
	}))
	defer srv.Close()

	p := New(srv.URL, []string{"k"}, nil, zap.NewNop())
	res := p.Search(context.Background(), "q")
	require.Equal(t, "success", res.Status)
	require.Len(t, res.Contexts, 1)
	require.Equal(t, "A", res.Contexts[0].Name)
}

func TestSearchWithoutKeysIsConfigError(t *testing.T) {
	p := New("http://unused", nil, nil, zap.NewNop())
	res := p.Search(context.Background(), "q")
	require.Equal(t, "error", res.Status)
	require.Contains(t, res.Message, "not configured")
}

func TestSearchProviderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := New(srv.URL, []string{"k"}, nil, zap.NewNop())
	res := p.Search(context.Background(), "q")
	require.Equal(t, "error", res.Status)
}

type fakeFetcher struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeFetcher) FetchText(ctx context.Context, url string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, url)
	return "preview for " + url, nil
}

func TestSearchDeepEnrichesContexts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(providerFixture())
	}))
	defer srv.Close()

	fetcher := &fakeFetcher{}
	p := New(srv.URL, []string{"k"}, fetcher, zap.NewNop())

	res := p.SearchDeep(context.Background(), "golang")
	require.Equal(t, "success", res.Status)
	for _, c := range res.Contexts {
		require.NotEmpty(t, c.Content)
	}
	require.Len(t, fetcher.calls, 4)
}
