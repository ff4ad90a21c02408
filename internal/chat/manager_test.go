package chat

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/cache"
	"github.com/researchbot/researchbot/internal/llm"
)

type scriptedGenerator struct {
	calls   atomic.Int32
	content string
	err     error
}

func (g *scriptedGenerator) Generate(ctx context.Context, messages []llm.Message, opts llm.Options) (llm.Completion, error) {
	g.calls.Add(1)
	if g.err != nil {
		return llm.Completion{}, g.err
	}
	return llm.Completion{Content: g.content, FinishReason: "stop"}, nil
}

func newChatStore(t *testing.T) *cache.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return cache.NewWithClient(client, time.Hour, zap.NewNop())
}

func TestHistoryEmptyWhenMissing(t *testing.T) {
	m := NewManager(newChatStore(t), &scriptedGenerator{}, "model", zap.NewNop())
	assert.Empty(t, m.History(context.Background(), "conv-1"))
}

func TestAppendAndReadBack(t *testing.T) {
	m := NewManager(newChatStore(t), &scriptedGenerator{}, "model", zap.NewNop())
	ctx := context.Background()

	m.Append(ctx, "conv-1",
		Message{Role: "user", Content: "hello", Timestamp: "2026-06-15T12:00:00Z"},
		Message{Role: "assistant", Content: "hi there", Timestamp: "2026-06-15T12:00:01Z"})

	history := m.History(ctx, "conv-1")
	require.Len(t, history, 2)
	assert.Equal(t, "user", history[0].Role)
	assert.Equal(t, "hi there", history[1].Content)
}

func TestAppendCompactsOverBudget(t *testing.T) {
	gen := &scriptedGenerator{content: "they discussed databases"}
	m := NewManager(newChatStore(t), gen, "model", zap.NewNop())
	ctx := context.Background()

	// 10 messages of 2000 chars each, roughly 5000 estimated tokens.
	big := strings.Repeat("x", 2000)
	for i := 0; i < 5; i++ {
		m.Append(ctx, "conv-1",
			Message{Role: "user", Content: big},
			Message{Role: "assistant", Content: big})
	}

	history := m.History(ctx, "conv-1")
	require.Len(t, history, recentKeep+1)
	assert.Equal(t, "system", history[0].Role)
	assert.Equal(t, "Previous conversation summary: they discussed databases", history[0].Content)
	for _, msg := range history[1:] {
		assert.NotEqual(t, "system", msg.Role)
	}
}

func TestAppendCompactionFallbackOnGenerationFailure(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("backend down")}
	m := NewManager(newChatStore(t), gen, "model", zap.NewNop())
	ctx := context.Background()

	big := strings.Repeat("y", 9000)
	m.Append(ctx, "conv-1", Message{Role: "user", Content: big})
	m.Append(ctx, "conv-1",
		Message{Role: "assistant", Content: big},
		Message{Role: "user", Content: "a"}, Message{Role: "assistant", Content: "b"},
		Message{Role: "user", Content: "c"}, Message{Role: "assistant", Content: "d"},
		Message{Role: "user", Content: "e"})

	history := m.History(ctx, "conv-1")
	require.NotEmpty(t, history)
	assert.Equal(t, "system", history[0].Role)
	assert.Equal(t, summaryFallback, history[0].Content)
}

func TestClearEmptiesHistory(t *testing.T) {
	m := NewManager(newChatStore(t), &scriptedGenerator{}, "model", zap.NewNop())
	ctx := context.Background()

	m.Append(ctx, "conv-1", Message{Role: "user", Content: "hello"})
	m.Clear(ctx, "conv-1")
	assert.Empty(t, m.History(ctx, "conv-1"))
}

func TestEstimateTokens(t *testing.T) {
	msgs := []Message{
		{Content: strings.Repeat("a", 100)},
		{Content: strings.Repeat("b", 103)},
	}
	assert.Equal(t, 50, estimateTokens(msgs))
}
