package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	// bulkTimeout bounds preview fetches used to enrich search results.
	bulkTimeout = 2 * time.Second
	// DefaultTimeout applies to primary page fetches when the caller does
	// not supply one.
	DefaultTimeout = 10 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// Fetcher retrieves page HTML over plain HTTP, gated by robots.txt.
type Fetcher struct {
	robots *RobotsGate
	logger *zap.Logger
}

func NewFetcher(robots *RobotsGate, logger *zap.Logger) *Fetcher {
	return &Fetcher{robots: robots, logger: logger}
}

// FetchPage downloads the page at url with the given timeout. Disallowed,
// failing and non-2xx fetches all return an error.
func (f *Fetcher) FetchPage(ctx context.Context, url string, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if !f.robots.Allowed(ctx, url) {
		return "", fmt.Errorf("fetching %s is disallowed by robots.txt", url)
	}
	return f.get(ctx, url, timeout)
}

// FetchText retrieves a page with the short bulk timeout and reduces it to
// normalized text. Implements the search provider's ContentFetcher.
func (f *Fetcher) FetchText(ctx context.Context, url string) (string, error) {
	if !f.robots.Allowed(ctx, url) {
		return "", fmt.Errorf("fetching %s is disallowed by robots.txt", url)
	}
	html, err := f.get(ctx, url, bulkTimeout)
	if err != nil {
		return "", err
	}
	return ExtractText(html)
}

func (f *Fetcher) get(ctx context.Context, url string, timeout time.Duration) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("fetching %s returned status %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body from %s: %w", url, err)
	}
	f.logger.Debug("Fetched page", zap.String("url", url), zap.Int("bytes", len(body)))
	return string(body), nil
}
