package chat

import (
	"regexp"
	"strings"

	"github.com/researchbot/researchbot/internal/research"
)

// Tool names surfaced in chat metadata.
const (
	ToolScrape    = "scrape_webpage"
	ToolResearch  = "research"
	ToolNews      = "news"
	ToolWebSearch = "web_search"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// Intent keyword tables grouped by the tool they hint at.
var (
	researchIntentWords = []string{"research", "investigate", "comprehensive", "analyze", "study", "examine", "explore"}
	newsIntentWords     = []string{"news", "latest", "recent", "update", "current events", "today's headlines"}
	searchIntentWords   = []string{"search", "find", "lookup", "information", "details", "data"}
	scrapeIntentWords   = []string{"read", "extract", "scrape", "content", "article", "webpage", "website"}
)

// Message-level keyword sets used by the web-search fallthrough.
var (
	weatherWords = []string{
		"weather", "temperature", "forecast", "climate", "rain", "sunny", "snow", "humidity",
		"wind", "storm", "tornado", "heatwave", "cold front", "uv index", "air quality", "dew point",
		"chance of rain", "precipitation", "conditions", "weather report", "5-day forecast",
	}
	infoPhrases = []string{
		"what is", "who is", "tell me about", "information on", "details about", "define", "explain",
		"meaning of", "overview of", "how does", "how do", "why is", "history of", "summary of",
		"examples of", "background on", "describe", "function of", "purpose of", "origin of", "cause of",
	}
	locationWords = []string{
		"in", "at", "near", "around", "close to", "located in", "situated in", "within",
		"surrounding", "region", "neighborhood", "province", "district", "city", "town", "village",
		"state", "country", "area", "place", "local", "map of", "where is", "directions to", "how far",
	}
)

// timeWindows maps time phrases in the message to a news day window.
// Evaluated in order; first match wins.
var timeWindows = []struct {
	phrase string
	days   int
}{
	{"today", 1},
	{"yesterday", 2},
	{"last 24 hours", 1},
	{"this week", 7},
	{"last week", 14},
	{"this month", 30},
	{"recent", 30},
}

// keywordsFromIntent collects the tool-hint keywords present in the analyzed
// intent text.
func keywordsFromIntent(intent string) []string {
	lower := strings.ToLower(intent)
	var found []string
	for _, group := range [][]string{researchIntentWords, newsIntentWords, searchIntentWords, scrapeIntentWords} {
		for _, kw := range group {
			if strings.Contains(lower, kw) {
				found = append(found, kw)
			}
		}
	}
	return found
}

// firstURL returns the first http(s) URL in the message, or "".
func firstURL(message string) string {
	return urlPattern.FindString(message)
}

// depthFromMessage infers the research depth from the message wording.
func depthFromMessage(message string) string {
	lower := strings.ToLower(message)
	for _, w := range []string{"detailed", "deep", "comprehensive", "thorough"} {
		if strings.Contains(lower, w) {
			return research.DepthDeep
		}
	}
	for _, w := range []string{"quick", "brief", "summary", "short"} {
		if strings.Contains(lower, w) {
			return research.DepthQuick
		}
	}
	return research.DepthStandard
}

// newsWindowFromMessage infers the news day window from time phrases,
// defaulting to a week.
func newsWindowFromMessage(message string) int {
	lower := strings.ToLower(message)
	for _, tw := range timeWindows {
		if strings.Contains(lower, tw.phrase) {
			return tw.days
		}
	}
	return 7
}

func containsAnyKeyword(keywords []string, wanted ...string) bool {
	for _, kw := range keywords {
		for _, w := range wanted {
			if kw == w {
				return true
			}
		}
	}
	return false
}

func containsAnyPhrase(lower string, phrases []string) bool {
	for _, p := range phrases {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}
