package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/analyzer"
	"github.com/researchbot/researchbot/internal/llm"
	"github.com/researchbot/researchbot/internal/metrics"
	"github.com/researchbot/researchbot/internal/news"
	"github.com/researchbot/researchbot/internal/research"
	"github.com/researchbot/researchbot/internal/scrape"
	"github.com/researchbot/researchbot/internal/search"
)

const apologyReply = "I encountered an error while processing your request. Please try again."

// Collaborator contracts, satisfied by the concrete components.
type Analyzer interface {
	AnalyzeQuery(ctx context.Context, userID, query string) analyzer.QueryResult
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

type Researcher interface {
	Perform(ctx context.Context, userID, query, depth string) research.Result
}

// ResponseMetadata accompanies every chat reply.
type ResponseMetadata struct {
	ToolUsed  *string `json:"tool_used"`
	Timestamp string  `json:"timestamp"`
}

// Response is the chat envelope. Raw tool or pipeline errors never reach
// Response.Response; they are logged and replaced with an apology.
type Response struct {
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	Response string           `json:"response"`
	Metadata ResponseMetadata `json:"metadata"`
}

// routed is the outcome of intent routing: which tool ran, if any, and its
// result condensed into a context block for the reply prompt.
type routed struct {
	toolUsed string
	context  string
}

// Engine is the conversational entry point. It classifies each message,
// dispatches the matching tool, and generates a grounded reply.
type Engine struct {
	manager   *Manager
	analyzer  Analyzer
	searcher  Searcher
	news      NewsFetcher
	scraper   Scraper
	research  Researcher
	generator llm.Generator
	model     string
	logger    *zap.Logger

	now func() time.Time
}

func NewEngine(manager *Manager, a Analyzer, searcher Searcher, fetcher NewsFetcher,
	scraper Scraper, researcher Researcher, generator llm.Generator, model string, logger *zap.Logger) *Engine {
	return &Engine{
		manager:   manager,
		analyzer:  a,
		searcher:  searcher,
		news:      fetcher,
		scraper:   scraper,
		research:  researcher,
		generator: generator,
		model:     model,
		logger:    logger,
		now:       time.Now,
	}
}

// Chat handles one user message end to end: route to a tool, persist the
// user turn, generate the reply against history and tool context, persist
// the assistant turn. History is scoped per session; tool caches are keyed
// by the bare user ID so sessions of one user share them.
func (e *Engine) Chat(ctx context.Context, userID, sessionID, message string) Response {
	conversationID := userID + ":" + sessionID
	history := e.manager.History(ctx, conversationID)

	r := e.route(ctx, userID, message)
	e.logger.Info("Routed chat message",
		zap.String("conversation", conversationID), zap.String("tool", r.toolUsed))

	now := e.now().Format(time.RFC3339)
	e.manager.Append(ctx, conversationID, Message{
		Role:      llm.RoleUser,
		Content:   message,
		Timestamp: now,
	})

	reply := e.respond(ctx, message, history, r)

	var toolUsed *string
	if r.toolUsed != "" {
		toolUsed = &r.toolUsed
	}
	e.manager.Append(ctx, conversationID, Message{
		Role:      llm.RoleAssistant,
		Content:   reply,
		Timestamp: e.now().Format(time.RFC3339),
		Metadata:  &MessageMetadata{ToolUsed: toolUsed},
	})

	return Response{
		Status:   "success",
		Message:  "Response generated successfully",
		Response: reply,
		Metadata: ResponseMetadata{
			ToolUsed:  toolUsed,
			Timestamp: e.now().Format(time.RFC3339),
		},
	}
}

// route picks and executes the tool for a message. First matching rule wins.
func (e *Engine) route(ctx context.Context, userID, message string) routed {
	qa := e.analyzer.AnalyzeQuery(ctx, userID, message)
	if qa.Status != "success" || qa.Analysis == nil {
		e.logger.Warn("Query analysis failed during routing", zap.String("message", qa.Message))
		return routed{}
	}

	keywords := keywordsFromIntent(qa.Analysis.Intent)
	url := firstURL(message)
	lower := strings.ToLower(message)

	switch {
	case url != "" && containsAnyKeyword(keywords, "read", "extract", "scrape"):
		result := e.scraper.Scrape(ctx, userID, url, 0, "")
		metrics.ToolInvocations.WithLabelValues(ToolScrape, result.Status).Inc()
		return routed{toolUsed: ToolScrape, context: formatScrapeResult(result)}

	case containsAnyKeyword(keywords, "research", "investigate", "comprehensive", "analyze", "study"):
		depth := depthFromMessage(message)
		result := e.research.Perform(ctx, userID, message, depth)
		metrics.ToolInvocations.WithLabelValues(ToolResearch, result.Status).Inc()
		return routed{toolUsed: ToolResearch, context: formatResearchResult(result)}

	case containsAnyKeyword(keywords, "news", "latest", "recent", "update"):
		result := e.news.Fetch(ctx, userID, message, 10, newsWindowFromMessage(message))
		metrics.ToolInvocations.WithLabelValues(ToolNews, result.Status).Inc()
		return routed{toolUsed: ToolNews, context: formatNewsResult(result)}

	case containsAnyPhrase(lower, weatherWords),
		containsAnyPhrase(lower, infoPhrases),
		containsAnyPhrase(lower, locationWords),
		containsAnyKeyword(keywords, "search", "find", "lookup"),
		len(keywords) == 0:
		result := e.searcher.Search(ctx, message)
		metrics.ToolInvocations.WithLabelValues(ToolWebSearch, result.Status).Inc()
		return routed{toolUsed: ToolWebSearch, context: formatSearchResult(result)}
	}

	// Nothing actionable: surface the analysis itself as context.
	return routed{context: formatAnalysisResult(qa)}
}

const chatSystemPrompt = `You are an intelligent research assistant that helps users find information and answer questions.
You have access to several tools:
1. Web search to find current information
2. News aggregation to find recent news articles
3. Webpage scraping to extract detailed content from specific URLs
4. Research capabilities to perform comprehensive investigation on topics

Maintain continuity with previous exchanges. If the user refers to previous information, use it in your response.
Be concise but thorough. Provide specific information rather than general statements when possible.
When tool results are provided, summarize the key points and integrate them into your response naturally.

If you used a tool to answer the query, mention which tool was used and briefly explain why it was chosen.`

// respond generates the conversational reply. Histories over the token
// budget are truncated to the most recent turns.
func (e *Engine) respond(ctx context.Context, message string, history []Message, r routed) string {
	system := chatSystemPrompt
	if r.toolUsed != "" {
		system += fmt.Sprintf("\n\nFor the current query, the '%s' tool was used to gather information.", r.toolUsed)
	}

	if estimateTokens(history) > maxHistoryTokens && len(history) > recentKeep {
		history = history[len(history)-recentKeep:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: system})
	for _, msg := range history {
		if msg.Role != "" && msg.Content != "" {
			messages = append(messages, llm.Message{Role: msg.Role, Content: msg.Content})
		}
	}

	userContent := message
	if r.context != "" {
		userContent = fmt.Sprintf("%s\n\n---\nTool Results:\n%s\n---", message, r.context)
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: userContent})

	out, err := e.generator.Generate(ctx, messages, llm.Options{
		Model:       e.model,
		Temperature: 0.7,
		MaxTokens:   1500,
		Purpose:     "chat",
	})
	if err != nil || out.Content == "" {
		e.logger.Error("Reply generation failed", zap.Error(err))
		return apologyReply
	}
	return out.Content
}
