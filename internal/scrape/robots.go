package scrape

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"
)

const robotsAgent = "ResearchBot"

// RobotsGate checks robots.txt permission per origin, caching parsed rules in
// memory for the life of the process. A missing or unreachable robots.txt is
// treated as permission granted.
type RobotsGate struct {
	client *http.Client
	logger *zap.Logger

	mu    sync.RWMutex
	rules map[string]*robotstxt.RobotsData // origin -> parsed rules, nil = allow all
}

func NewRobotsGate(logger *zap.Logger) *RobotsGate {
	return &RobotsGate{
		client: &http.Client{Timeout: 5 * time.Second},
		logger: logger,
		rules:  make(map[string]*robotstxt.RobotsData),
	}
}

// Allowed reports whether pageURL may be fetched. Malformed URLs are refused;
// every failure along the robots.txt fetch path permits the fetch.
func (g *RobotsGate) Allowed(ctx context.Context, pageURL string) bool {
	parsed, err := url.Parse(pageURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return false
	}
	origin := parsed.Scheme + "://" + parsed.Host

	g.mu.RLock()
	data, ok := g.rules[origin]
	g.mu.RUnlock()

	if !ok {
		data = g.fetch(ctx, origin)
		g.mu.Lock()
		g.rules[origin] = data
		g.mu.Unlock()
	}

	if data == nil {
		return true
	}
	path := parsed.Path
	if path == "" {
		path = "/"
	}
	for _, agent := range []string{robotsAgent, "*"} {
		if data.FindGroup(agent).Test(path) {
			return true
		}
	}
	return false
}

// fetch retrieves and parses an origin's robots.txt. Returns nil (allow all)
// on any transport failure or non-200 response.
func (g *RobotsGate) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", fmt.Sprintf("%s/1.0", robotsAgent))

	resp, err := g.client.Do(req)
	if err != nil {
		g.logger.Debug("robots.txt fetch failed", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		g.logger.Debug("robots.txt parse failed", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	return data
}
