// Package health implements liveness and readiness checks for the backend.
// Liveness always answers ok; readiness runs the registered checkers (the
// database ping, in practice) and reports 503 when any of them fail.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the result of a single health check.
type Check struct {
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMs int64  `json:"latency_ms"`
}

// Report is the overall health report.
type Report struct {
	Status  Status  `json:"status"`
	Version string  `json:"version"`
	Checks  []Check `json:"checks"`
}

// Checker is a named health probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) error
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc struct {
	CheckName string
	Fn        func(ctx context.Context) error
}

func (c CheckerFunc) Name() string                    { return c.CheckName }
func (c CheckerFunc) Check(ctx context.Context) error { return c.Fn(ctx) }

// Manager runs health checks and serves the results.
type Manager struct {
	mu       sync.RWMutex
	checkers []Checker
	version  string
	timeout  time.Duration
}

func NewManager(version string) *Manager {
	return &Manager{version: version, timeout: 5 * time.Second}
}

func (m *Manager) Register(c Checker) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, c)
}

func (m *Manager) RegisterFunc(name string, fn func(ctx context.Context) error) {
	m.Register(CheckerFunc{CheckName: name, Fn: fn})
}

// Report runs all checkers against ctx, bounded by the manager timeout.
func (m *Manager) Report(ctx context.Context) *Report {
	m.mu.RLock()
	checkers := make([]Checker, len(m.checkers))
	copy(checkers, m.checkers)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	report := &Report{
		Status:  StatusHealthy,
		Version: m.version,
		Checks:  make([]Check, 0, len(checkers)),
	}

	for _, c := range checkers {
		start := time.Now()
		err := c.Check(ctx)

		check := Check{
			Name:      c.Name(),
			Status:    StatusHealthy,
			LatencyMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			check.Status = StatusUnhealthy
			check.Message = err.Error()
			report.Status = StatusUnhealthy
		}
		report.Checks = append(report.Checks, check)
	}

	return report
}

// Live handles liveness probes.
func (m *Manager) Live(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles readiness probes.
func (m *Manager) Ready(c echo.Context) error {
	report := m.Report(c.Request().Context())
	if report.Status != StatusHealthy {
		return c.JSON(http.StatusServiceUnavailable, report)
	}
	return c.JSON(http.StatusOK, report)
}
