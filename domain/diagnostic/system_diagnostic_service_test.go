package diagnostic

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
)

func TestGetMetricsPollsSources(t *testing.T) {
	s := NewDiagnosticService()
	start := s.started
	s.now = func() time.Time { return start.Add(90 * time.Second) }

	calls := 0
	s.Register("broker", func() interface{} {
		calls++
		return map[string]int{"peers": 2}
	})
	s.Register("hover", func() interface{} { return "idle" })

	m := s.GetMetrics()
	if calls != 1 {
		t.Errorf("broker source polled %d times, want 1", calls)
	}
	if m.Uptime != "1m30s" {
		t.Errorf("uptime = %q, want 1m30s", m.Uptime)
	}
	if m.Components["hover"] != "idle" {
		t.Errorf("hover component = %v", m.Components["hover"])
	}
	if got := s.Components(); len(got) != 2 || got[0] != "broker" || got[1] != "hover" {
		t.Errorf("components = %v", got)
	}
}

func TestRegisterReplacesSource(t *testing.T) {
	s := NewDiagnosticService()
	s.Register("sensor", func() interface{} { return 1 })
	s.Register("sensor", func() interface{} { return 2 })

	if got := s.GetMetrics().Components["sensor"]; got != 2 {
		t.Errorf("sensor = %v, want 2", got)
	}
}

func TestGetMetricsHandler(t *testing.T) {
	s := NewDiagnosticService()
	s.Register("actuation", func() interface{} { return fiber.Map{"enabled": false} })

	app := fiber.New()
	app.Get("/api/diagnostics", s.GetMetricsHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/api/diagnostics", nil))
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	body, _ := io.ReadAll(resp.Body)
	var decoded struct {
		Status  string `json:"status"`
		Metrics struct {
			Components map[string]map[string]bool `json:"components"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(body, &decoded); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	if decoded.Status != "success" {
		t.Errorf("status field = %q", decoded.Status)
	}
	if enabled, ok := decoded.Metrics.Components["actuation"]["enabled"]; !ok || enabled {
		t.Errorf("actuation component = %v", decoded.Metrics.Components["actuation"])
	}
}
