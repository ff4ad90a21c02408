package health

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisHealthChecker checks cache connectivity. The cache backs every
// pipeline stage, so its failure is critical.
type RedisHealthChecker struct {
	client  redis.UniversalClient
	logger  *zap.Logger
	timeout time.Duration
}

func NewRedisHealthChecker(client redis.UniversalClient, logger *zap.Logger) *RedisHealthChecker {
	return &RedisHealthChecker{
		client:  client,
		logger:  logger,
		timeout: 5 * time.Second,
	}
}

func (r *RedisHealthChecker) Name() string           { return "redis" }
func (r *RedisHealthChecker) IsCritical() bool       { return true }
func (r *RedisHealthChecker) Timeout() time.Duration { return r.timeout }

func (r *RedisHealthChecker) Check(ctx context.Context) CheckResult {
	start := time.Now()
	result := CheckResult{
		Component: "redis",
		Critical:  true,
		Timestamp: start,
	}

	err := r.client.Ping(ctx).Err()
	result.Duration = time.Since(start)

	if err != nil {
		result.Status = StatusUnhealthy
		result.Error = err.Error()
		result.Message = "Redis ping failed"
		return result
	}

	if result.Duration > 100*time.Millisecond {
		result.Status = StatusDegraded
		result.Message = "Redis responding but with high latency"
	} else {
		result.Status = StatusHealthy
		result.Message = "Redis healthy"
	}
	result.Details = map[string]interface{}{
		"latency_ms": result.Duration.Milliseconds(),
	}
	return result
}

// ProviderConfigChecker reports whether the external provider credentials
// are present. Missing keys degrade the service but do not take it down;
// the affected endpoints return configuration errors.
type ProviderConfigChecker struct {
	searchKeys int
	newsKey    bool
	llmKey     bool
}

func NewProviderConfigChecker(searchKeys int, newsKey, llmKey bool) *ProviderConfigChecker {
	return &ProviderConfigChecker{searchKeys: searchKeys, newsKey: newsKey, llmKey: llmKey}
}

func (p *ProviderConfigChecker) Name() string           { return "provider_config" }
func (p *ProviderConfigChecker) IsCritical() bool       { return false }
func (p *ProviderConfigChecker) Timeout() time.Duration { return time.Second }

func (p *ProviderConfigChecker) Check(ctx context.Context) CheckResult {
	result := CheckResult{
		Component: "provider_config",
		Timestamp: time.Now(),
		Details: map[string]interface{}{
			"search_api_keys":    p.searchKeys,
			"news_api_key":       p.newsKey,
			"generation_api_key": p.llmKey,
		},
	}

	switch {
	case p.llmKey && p.searchKeys > 0 && p.newsKey:
		result.Status = StatusHealthy
		result.Message = "all provider credentials configured"
	case p.llmKey:
		result.Status = StatusDegraded
		result.Message = "some provider credentials missing"
	default:
		result.Status = StatusUnhealthy
		result.Message = "generation API key missing"
	}
	return result
}
