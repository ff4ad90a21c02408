package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager runs registered health checks on demand and aggregates their
// results into one service-level status.
type Manager struct {
	mu       sync.RWMutex
	checkers map[string]Checker
	logger   *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		checkers: make(map[string]Checker),
		logger:   logger,
	}
}

// RegisterChecker registers a health check under its name.
func (m *Manager) RegisterChecker(checker Checker) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	name := checker.Name()
	if _, exists := m.checkers[name]; exists {
		return fmt.Errorf("health checker %q already registered", name)
	}
	m.checkers[name] = checker
	m.logger.Info("Registered health checker", zap.String("name", name))
	return nil
}

// GetOverallHealth runs every checker and aggregates: any critical failure
// makes the service unhealthy, any other failure degrades it.
func (m *Manager) GetOverallHealth(ctx context.Context) OverallHealth {
	start := time.Now()

	m.mu.RLock()
	checkers := make([]Checker, 0, len(m.checkers))
	for _, c := range m.checkers {
		checkers = append(checkers, c)
	}
	m.mu.RUnlock()

	overall := OverallHealth{
		Status:    StatusHealthy,
		Timestamp: start,
		Ready:     true,
		Live:      true,
		Checks:    make(map[string]CheckResult, len(checkers)),
	}

	for _, checker := range checkers {
		checkCtx, cancel := context.WithTimeout(ctx, checker.Timeout())
		result := checker.Check(checkCtx)
		cancel()

		overall.Checks[checker.Name()] = result
		switch result.Status {
		case StatusUnhealthy:
			if checker.IsCritical() {
				overall.Status = StatusUnhealthy
				overall.Ready = false
			} else if overall.Status == StatusHealthy {
				overall.Status = StatusDegraded
			}
		case StatusDegraded:
			if overall.Status == StatusHealthy {
				overall.Status = StatusDegraded
			}
		}
	}

	overall.Duration = time.Since(start)
	switch overall.Status {
	case StatusHealthy:
		overall.Message = "all checks passing"
	case StatusDegraded:
		overall.Message = "service degraded"
	default:
		overall.Message = "critical check failing"
	}
	return overall
}

// IsReady reports whether the service can serve requests.
func (m *Manager) IsReady(ctx context.Context) bool {
	return m.GetOverallHealth(ctx).Ready
}

// IsLive reports process liveness; the process is live as long as it can
// answer at all.
func (m *Manager) IsLive(ctx context.Context) bool {
	return true
}
