package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticChecker struct {
	name     string
	status   CheckStatus
	critical bool
}

func (c staticChecker) Name() string           { return c.name }
func (c staticChecker) IsCritical() bool       { return c.critical }
func (c staticChecker) Timeout() time.Duration { return time.Second }
func (c staticChecker) Check(ctx context.Context) CheckResult {
	return CheckResult{Component: c.name, Status: c.status, Critical: c.critical, Timestamp: time.Now()}
}

func TestManagerAggregation(t *testing.T) {
	m := NewManager(zap.NewNop())
	require.NoError(t, m.RegisterChecker(staticChecker{name: "a", status: StatusHealthy, critical: true}))
	require.NoError(t, m.RegisterChecker(staticChecker{name: "b", status: StatusHealthy}))

	overall := m.GetOverallHealth(context.Background())
	assert.Equal(t, StatusHealthy, overall.Status)
	assert.True(t, overall.Ready)
}

func TestManagerCriticalFailureUnhealthy(t *testing.T) {
	m := NewManager(zap.NewNop())
	require.NoError(t, m.RegisterChecker(staticChecker{name: "a", status: StatusUnhealthy, critical: true}))

	overall := m.GetOverallHealth(context.Background())
	assert.Equal(t, StatusUnhealthy, overall.Status)
	assert.False(t, overall.Ready)
	assert.False(t, m.IsReady(context.Background()))
	assert.True(t, m.IsLive(context.Background()))
}

func TestManagerNonCriticalFailureDegrades(t *testing.T) {
	m := NewManager(zap.NewNop())
	require.NoError(t, m.RegisterChecker(staticChecker{name: "a", status: StatusUnhealthy}))

	overall := m.GetOverallHealth(context.Background())
	assert.Equal(t, StatusDegraded, overall.Status)
	assert.True(t, overall.Ready)
}

func TestManagerRejectsDuplicateName(t *testing.T) {
	m := NewManager(zap.NewNop())
	require.NoError(t, m.RegisterChecker(staticChecker{name: "a"}))
	assert.Error(t, m.RegisterChecker(staticChecker{name: "a"}))
}

func TestRedisChecker(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	checker := NewRedisHealthChecker(client, zap.NewNop())
	result := checker.Check(context.Background())
	assert.Equal(t, StatusHealthy, result.Status)

	mr.Close()
	result = checker.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.NotEmpty(t, result.Error)
}

func TestProviderConfigChecker(t *testing.T) {
	assert.Equal(t, StatusHealthy, NewProviderConfigChecker(2, true, true).Check(context.Background()).Status)
	assert.Equal(t, StatusDegraded, NewProviderConfigChecker(0, false, true).Check(context.Background()).Status)
	assert.Equal(t, StatusUnhealthy, NewProviderConfigChecker(2, true, false).Check(context.Background()).Status)
}

func TestHTTPEndpoints(t *testing.T) {
	m := NewManager(zap.NewNop())
	require.NoError(t, m.RegisterChecker(staticChecker{name: "a", status: StatusHealthy, critical: true}))

	mux := http.NewServeMux()
	NewHTTPHandler(m, zap.NewNop()).RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/health", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
