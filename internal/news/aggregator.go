package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/cache"
	"github.com/researchbot/researchbot/internal/config"
	"github.com/researchbot/researchbot/internal/metrics"
)

// Article is one cleaned news result.
type Article struct {
	Position  int      `json:"position,omitempty"`
	Title     string   `json:"title"`
	Link      string   `json:"link"`
	Date      string   `json:"date,omitempty"`
	Thumbnail string   `json:"thumbnail,omitempty"`
	Source    string   `json:"source,omitempty"`
	Authors   []string `json:"authors,omitempty"`
}

// Result is the aggregator's uniform envelope.
type Result struct {
	Status   string    `json:"status"`
	Message  string    `json:"message"`
	Articles []Article `json:"articles"`
	Metadata Metadata  `json:"metadata"`
}

type Metadata struct {
	Query       string `json:"query"`
	ParsedQuery string `json:"parsed_query,omitempty"`
	MaxResults  int    `json:"max_results"`
	DaysBack    int    `json:"days_back"`
	Available   int    `json:"total_results_available,omitempty"`
	Returned    int    `json:"total_results_returned,omitempty"`
}

// Aggregator fetches recent news through a SerpAPI-style google_news engine.
type Aggregator struct {
	cfg    config.NewsConfig
	store  *cache.Store
	client *http.Client
	logger *zap.Logger
	// now is swappable for date-window tests.
	now func() time.Time
}

func New(cfg config.NewsConfig, store *cache.Store, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		cfg:    cfg,
		store:  store,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
		now:    time.Now,
	}
}

var unsafeChars = regexp.MustCompile(`[^\w\s\-\+'"]+`)

// ParseQuery sanitizes and URL-encodes a raw news query. Empty input falls
// back to a generic "news" query.
func ParseQuery(query string) string {
	if strings.TrimSpace(query) == "" {
		return "news"
	}
	q := unsafeChars.ReplaceAllString(query, " ")
	q = strings.Join(strings.Fields(q), " ")
	return url.QueryEscape(q)
}

// Provider dates look like "11/12/2024, 09:03 AM, +0200 EET"; the first two
// comma fields carry the parseable portion.
const dateLayout = "1/2/2006, 3:04 PM"

func parseArticleDate(raw string) (time.Time, error) {
	parts := strings.Split(raw, ",")
	if len(parts) < 2 {
		return time.Time{}, fmt.Errorf("unexpected date format: %q", raw)
	}
	return time.Parse(dateLayout, strings.TrimSpace(parts[0])+", "+strings.TrimSpace(parts[1]))
}

// Fetch returns up to maxResults articles newer than daysBack days. Articles
// whose dates cannot be parsed are kept. Successful results are cached keyed
// by the literal query plus both window parameters.
func (a *Aggregator) Fetch(ctx context.Context, userID, query string, maxResults, daysBack int) Result {
	parsed := ParseQuery(query)
	key := cache.NewsKey(userID, query, maxResults, daysBack)
	meta := Metadata{Query: query, ParsedQuery: parsed, MaxResults: maxResults, DaysBack: daysBack}

	var cached Result
	if a.store != nil && a.store.GetJSON(ctx, key, &cached) {
		metrics.CacheHits.WithLabelValues("news").Inc()
		a.logger.Info("News cache hit", zap.String("query", query))
		return cached
	}
	metrics.CacheMisses.WithLabelValues("news").Inc()

	if a.cfg.APIKey == "" {
		a.logger.Error("News API key is not configured")
		return Result{
			Status:   "error",
			Message:  "API key is missing. Please check your configuration.",
			Articles: []Article{},
			Metadata: meta,
		}
	}

	raw, err := a.call(ctx, parsed)
	if err != nil {
		a.logger.Error("News fetch failed", zap.String("query", query), zap.Error(err))
		return Result{
			Status:   "error",
			Message:  fmt.Sprintf("error fetching news for query %q: %v", query, err),
			Articles: []Article{},
			Metadata: meta,
		}
	}

	if len(raw.NewsResults) == 0 {
		a.logger.Warn("No news results", zap.String("query", query))
		return Result{
			Status:   "error",
			Message:  fmt.Sprintf("no news results found for query: %s", query),
			Articles: []Article{},
			Metadata: meta,
		}
	}

	cutoff := a.now().AddDate(0, 0, -daysBack)
	articles := make([]Article, 0, maxResults)
	for _, item := range raw.NewsResults {
		if len(articles) >= maxResults {
			break
		}
		if item.Date != "" {
			when, err := parseArticleDate(item.Date)
			if err != nil {
				// Parse failure is non-fatal; the article stays in.
				a.logger.Warn("Could not parse article date",
					zap.String("title", item.Title), zap.Error(err))
			} else if when.Before(cutoff) {
				continue
			}
		}
		articles = append(articles, Article{
			Position:  item.Position,
			Title:     item.Title,
			Link:      item.Link,
			Date:      item.Date,
			Thumbnail: item.Thumbnail,
			Source:    item.Source.Name,
			Authors:   item.Source.Authors,
		})
	}

	meta.Available = len(raw.NewsResults)
	meta.Returned = len(articles)
	result := Result{
		Status:   "success",
		Message:  fmt.Sprintf("successfully retrieved news for query: %s", query),
		Articles: articles,
		Metadata: meta,
	}

	if a.store != nil {
		a.store.Set(ctx, key, result, config.CacheTTL)
	}
	return result
}

type providerResponse struct {
	NewsResults []struct {
		Position  int    `json:"position"`
		Title     string `json:"title"`
		Link      string `json:"link"`
		Date      string `json:"date"`
		Thumbnail string `json:"thumbnail"`
		Source    struct {
			Name    string   `json:"name"`
			Authors []string `json:"authors"`
		} `json:"source"`
	} `json:"news_results"`
}

func (a *Aggregator) call(ctx context.Context, parsedQuery string) (*providerResponse, error) {
	params := url.Values{}
	params.Set("engine", "google_news")
	params.Set("q", parsedQuery)
	params.Set("gl", a.cfg.Country)
	params.Set("hl", a.cfg.Language)
	params.Set("api_key", a.cfg.APIKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.Endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build news request: %w", err)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("news request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("news provider returned status %d", resp.StatusCode)
	}

	var body providerResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode news response: %w", err)
	}
	return &body, nil
}
