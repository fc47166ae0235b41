package diagnostic

import (
	"sort"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Source reports the current state of one component.
type Source func() interface{}

// SystemMetrics is one diagnostics snapshot.
type SystemMetrics struct {
	Timestamp  time.Time              `json:"timestamp"`
	Uptime     string                 `json:"uptime"`
	Components map[string]interface{} `json:"components"`
}

// DiagnosticService collects status from registered components on demand.
type DiagnosticService struct {
	mu      sync.RWMutex
	started time.Time
	sources map[string]Source
	now     func() time.Time
}

// NewDiagnosticService creates a new diagnostic service instance
func NewDiagnosticService() *DiagnosticService {
	return &DiagnosticService{
		started: time.Now(),
		sources: make(map[string]Source),
		now:     time.Now,
	}
}

// Register adds or replaces the source reported under name.
func (s *DiagnosticService) Register(name string, src Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sources[name] = src
}

// Components lists registered source names in order.
func (s *DiagnosticService) Components() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.sources))
	for name := range s.sources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetMetrics polls every source.
func (s *DiagnosticService) GetMetrics() SystemMetrics {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	metrics := SystemMetrics{
		Timestamp:  now,
		Uptime:     now.Sub(s.started).Truncate(time.Second).String(),
		Components: make(map[string]interface{}, len(s.sources)),
	}
	for name, src := range s.sources {
		metrics.Components[name] = src()
	}
	return metrics
}

// GetMetricsHandler handles API requests for system metrics
func (s *DiagnosticService) GetMetricsHandler(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "success",
		"metrics": s.GetMetrics(),
	})
}
