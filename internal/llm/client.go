package llm

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/researchbot/researchbot/internal/metrics"
)

// Message is one role-tagged entry of a generation request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completion is the result of one generation call. A non-"stop" finish reason
// or empty content is a soft failure: callers substitute a fallback string
// instead of treating it as an error.
type Completion struct {
	Content      string
	FinishReason string
}

// Complete reports whether the model finished normally with usable content.
func (c Completion) Complete() bool {
	return c.FinishReason == "stop" && c.Content != ""
}

// Options tune a single generation call.
type Options struct {
	Model       string
	Temperature float32
	MaxTokens   int
	Purpose     string // metrics label only
}

// Generator is the narrow contract the pipeline depends on. The production
// implementation is Client; tests substitute fakes with call counters.
type Generator interface {
	Generate(ctx context.Context, messages []Message, opts Options) (Completion, error)
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	api          *openai.Client
	defaultModel string
	logger       *zap.Logger
}

// NewClient builds a Client. baseURL may be empty for the default endpoint.
func NewClient(apiKey, baseURL, defaultModel string, logger *zap.Logger) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:          openai.NewClientWithConfig(cfg),
		defaultModel: defaultModel,
		logger:       logger,
	}
}

// Generate issues one chat completion request. Transport failures are errors;
// truncated or empty model output is reported through the Completion so the
// caller can degrade.
func (c *Client) Generate(ctx context.Context, messages []Message, opts Options) (Completion, error) {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, openai.ChatCompletionMessage{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	purpose := opts.Purpose
	if purpose == "" {
		purpose = "generic"
	}

	start := time.Now()
	resp, err := c.api.CreateChatCompletion(ctx, req)
	metrics.GenerationLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationCalls.WithLabelValues(purpose, "error").Inc()
		return Completion{}, fmt.Errorf("failed to generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		metrics.GenerationCalls.WithLabelValues(purpose, "empty").Inc()
		return Completion{}, fmt.Errorf("generation returned no choices")
	}

	choice := resp.Choices[0]
	out := Completion{
		Content:      choice.Message.Content,
		FinishReason: string(choice.FinishReason),
	}
	if !out.Complete() {
		c.logger.Warn("Incomplete generation",
			zap.String("purpose", purpose),
			zap.String("finish_reason", out.FinishReason),
		)
		metrics.GenerationCalls.WithLabelValues(purpose, "incomplete").Inc()
	} else {
		metrics.GenerationCalls.WithLabelValues(purpose, "ok").Inc()
	}
	return out, nil
}
