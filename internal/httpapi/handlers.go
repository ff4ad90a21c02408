package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/chat"
	"github.com/researchbot/researchbot/internal/news"
	"github.com/researchbot/researchbot/internal/research"
	"github.com/researchbot/researchbot/internal/scrape"
	"github.com/researchbot/researchbot/internal/search"
)

// scrapeOuterTimeout bounds the whole scrape operation, independent of the
// inner fetch timeout. Expiry maps to a distinct timed-out status.
const scrapeOuterTimeout = 60 * time.Second

const defaultNewsResults = 20

// Service contracts the API layer marshals for.
type ResearchService interface {
	Perform(ctx context.Context, userID, query, depth string) research.Result
}

type SearchService interface {
	Search(ctx context.Context, query string) search.Result
}

type ScrapeService interface {
	Scrape(ctx context.Context, userID, url string, timeout time.Duration, selectorQuery string) scrape.Result
}

type NewsService interface {
	Fetch(ctx context.Context, userID, query string, maxResults, daysBack int) news.Result
}

type ChatService interface {
	Chat(ctx context.Context, userID, sessionID, message string) chat.Response
}

type HistoryService interface {
	History(ctx context.Context, conversationID string) []chat.Message
	Clear(ctx context.Context, conversationID string)
}

// Handler is the public HTTP surface. It validates and marshals; all
// behavior lives in the services.
type Handler struct {
	research ResearchService
	search   SearchService
	scraper  ScrapeService
	news     NewsService
	chat     ChatService
	history  HistoryService
	logger   *zap.Logger
}

func NewHandler(researcher ResearchService, searcher SearchService, scraper ScrapeService,
	fetcher NewsService, chatter ChatService, history HistoryService, logger *zap.Logger) *Handler {
	return &Handler{
		research: researcher,
		search:   searcher,
		scraper:  scraper,
		news:     fetcher,
		chat:     chatter,
		history:  history,
		logger:   logger,
	}
}

// RegisterRoutes registers the API endpoints with an HTTP mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/research", h.handleResearch)
	mux.HandleFunc("/search", h.handleSearch)
	mux.HandleFunc("/scrape", h.handleScrape)
	mux.HandleFunc("/news", h.handleNews)
	mux.HandleFunc("/chat", h.handleChat)
	mux.HandleFunc("/chat/history", h.handleChatHistory)
}

type researchRequest struct {
	Query  string `json:"query"`
	Depth  string `json:"depth"`
	UserID string `json:"user_id"`
}

func (h *Handler) handleResearch(w http.ResponseWriter, r *http.Request) {
	var req researchRequest
	if !h.decodePost(w, r, &req) {
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	userID := orAnonymous(req.UserID)

	result := h.research.Perform(r.Context(), userID, req.Query, req.Depth)
	h.writeJSON(w, http.StatusOK, result)
}

type searchRequest struct {
	Query  string `json:"query"`
	UserID string `json:"user_id"`
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !h.decodePost(w, r, &req) {
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result := h.search.Search(r.Context(), req.Query)
	h.writeJSON(w, http.StatusOK, result)
}

type scrapeRequest struct {
	URL           string `json:"url"`
	UserID        string `json:"user_id"`
	SelectorQuery string `json:"selector_query"`
	Timeout       int    `json:"timeout"`
}

func (h *Handler) handleScrape(w http.ResponseWriter, r *http.Request) {
	var req scrapeRequest
	if !h.decodePost(w, r, &req) {
		return
	}
	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	userID := orAnonymous(req.UserID)

	ctx, cancel := context.WithTimeout(r.Context(), scrapeOuterTimeout)
	defer cancel()

	done := make(chan scrape.Result, 1)
	go func() {
		done <- h.scraper.Scrape(ctx, userID, req.URL, time.Duration(req.Timeout)*time.Second, req.SelectorQuery)
	}()

	select {
	case result := <-done:
		h.writeJSON(w, http.StatusOK, result)
	case <-ctx.Done():
		h.logger.Error("Scrape timed out", zap.String("url", req.URL))
		h.writeJSON(w, http.StatusGatewayTimeout, map[string]string{
			"status":  "timeout",
			"message": fmt.Sprintf("webpage scraping timed out after %s", scrapeOuterTimeout),
		})
	}
}

func (h *Handler) handleNews(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if !h.decodePost(w, r, &req) {
		return
	}
	if req.Query == "" {
		h.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	userID := orAnonymous(req.UserID)

	daysBack := 7
	if raw := r.URL.Query().Get("days_back"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 30 {
			h.writeError(w, http.StatusBadRequest, "days_back must be between 1 and 30")
			return
		}
		daysBack = parsed
	}

	result := h.news.Fetch(r.Context(), userID, req.Query, defaultNewsResults, daysBack)
	h.writeJSON(w, http.StatusOK, result)
}

type chatRequest struct {
	Message   string `json:"message"`
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

type chatResponse struct {
	chat.Response
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

func (h *Handler) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if !h.decodePost(w, r, &req) {
		return
	}
	if req.Message == "" {
		h.writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	userID := orAnonymous(req.UserID)
	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = uuid.New().String()
	}

	result := h.chat.Chat(r.Context(), userID, sessionID, req.Message)
	h.writeJSON(w, http.StatusOK, chatResponse{
		Response:  result,
		SessionID: sessionID,
		UserID:    userID,
	})
}

func (h *Handler) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	sessionID := r.URL.Query().Get("session_id")
	if userID == "" || sessionID == "" {
		h.writeError(w, http.StatusBadRequest, "user_id and session_id are required")
		return
	}
	convID := conversationID(userID, sessionID)

	switch r.Method {
	case http.MethodGet:
		history := h.history.History(r.Context(), convID)
		if history == nil {
			history = []chat.Message{}
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"history": history,
		})
	case http.MethodDelete:
		h.history.Clear(r.Context(), convID)
		h.writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":  "success",
			"message": "chat history cleared",
		})
	default:
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) decodePost(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		h.writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func (h *Handler) writeJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, statusCode int, message string) {
	h.writeJSON(w, statusCode, map[string]string{
		"status":  "error",
		"message": message,
	})
}

// orAnonymous substitutes a fresh anonymous ID when the caller did not
// supply one.
func orAnonymous(userID string) string {
	if userID != "" {
		return userID
	}
	u := uuid.New()
	return fmt.Sprintf("anonymous_%x", u[:4])
}

// conversationID scopes chat history to one (user, session) pair.
func conversationID(userID, sessionID string) string {
	return userID + ":" + sessionID
}
