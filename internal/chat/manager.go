package chat

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/cache"
	"github.com/researchbot/researchbot/internal/llm"
	"github.com/researchbot/researchbot/internal/metrics"
)

const (
	// maxHistoryTokens is the estimated token budget before older turns are
	// compacted into a summary message.
	maxHistoryTokens = 4000
	// recentKeep messages are always preserved verbatim through compaction.
	recentKeep = 6

	historyTTL = 24 * time.Hour

	summaryFallback = "Previous conversation summary: User and assistant discussed various topics."
)

// Message is one conversation turn.
type Message struct {
	Role      string           `json:"role"`
	Content   string           `json:"content"`
	Timestamp string           `json:"timestamp"`
	Metadata  *MessageMetadata `json:"metadata,omitempty"`
}

type MessageMetadata struct {
	ToolUsed *string `json:"tool_used"`
}

// Manager keeps per-conversation history in the cache under a token budget.
// Concurrent appends to the same conversation resolve last-write-wins; there
// is no compare-and-swap on the history key.
type Manager struct {
	store     *cache.Store
	generator llm.Generator
	model     string
	logger    *zap.Logger

	now func() time.Time
}

func NewManager(store *cache.Store, generator llm.Generator, model string, logger *zap.Logger) *Manager {
	return &Manager{
		store:     store,
		generator: generator,
		model:     model,
		logger:    logger,
		now:       time.Now,
	}
}

// History returns the stored conversation, oldest first. Missing or
// unreadable history comes back empty.
func (m *Manager) History(ctx context.Context, conversationID string) []Message {
	var history []Message
	if m.store != nil {
		m.store.GetJSON(ctx, cache.ChatHistoryKey(conversationID), &history)
	}
	return history
}

// Append extends the conversation and compacts it when the token estimate
// exceeds the budget: everything but the most recent messages collapses into
// a single leading system summary.
func (m *Manager) Append(ctx context.Context, conversationID string, msgs ...Message) {
	history := append(m.History(ctx, conversationID), msgs...)

	if tokens := estimateTokens(history); tokens > maxHistoryTokens && len(history) > recentKeep {
		m.logger.Info("Compacting conversation history",
			zap.String("conversation", conversationID), zap.Int("tokens", tokens))
		metrics.HistoryCompactions.Inc()

		summary := m.summarize(ctx, history[:len(history)-recentKeep])
		history = append([]Message{summary}, history[len(history)-recentKeep:]...)
	}

	if m.store != nil {
		m.store.Set(ctx, cache.ChatHistoryKey(conversationID), history, historyTTL)
	}
}

// Clear overwrites the conversation with an empty list.
func (m *Manager) Clear(ctx context.Context, conversationID string) {
	if m.store != nil {
		m.store.Set(ctx, cache.ChatHistoryKey(conversationID), []Message{}, historyTTL)
	}
}

// estimateTokens approximates one token per four characters of content.
func estimateTokens(msgs []Message) int {
	total := 0
	for _, msg := range msgs {
		total += len(msg.Content)
	}
	return total / 4
}

// summarize reduces older turns to one system message. Generation failure
// falls back to a generic placeholder so compaction never fails.
func (m *Manager) summarize(ctx context.Context, older []Message) Message {
	var sb strings.Builder
	for _, msg := range older {
		speaker := "Assistant"
		if msg.Role == llm.RoleUser {
			speaker = "User"
		}
		fmt.Fprintf(&sb, "%s: %s\n", speaker, msg.Content)
	}

	content := summaryFallback
	out, err := m.generator.Generate(ctx, []llm.Message{
		{Role: llm.RoleSystem, Content: "Summarize the following conversation history concisely while preserving key information, questions, and conclusions:"},
		{Role: llm.RoleUser, Content: sb.String()},
	}, llm.Options{Model: m.model, MaxTokens: 500, Purpose: "history_summary"})
	if err != nil {
		m.logger.Error("History summarization failed", zap.Error(err))
	} else if out.Content != "" {
		content = fmt.Sprintf("Previous conversation summary: %s", out.Content)
	}

	return Message{
		Role:      llm.RoleSystem,
		Content:   content,
		Timestamp: m.now().Format(time.RFC3339),
	}
}
