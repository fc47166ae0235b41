package main

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"

	"github.com/leapdrone/controller/domain/actuation"
	"github.com/leapdrone/controller/domain/motion"
	"github.com/leapdrone/controller/pkg/broker"
	"github.com/leapdrone/controller/pkg/config"
	customlog "github.com/leapdrone/controller/pkg/log"
)

func newTestController(t *testing.T) *controller {
	t.Helper()
	cfg := config.Default()
	cfg.Hardware.Enabled = false
	cfg.Data.Directory = t.TempDir()

	ctrl, err := newController(cfg, customlog.NewNopLogger())
	if err != nil {
		t.Fatalf("newController: %v", err)
	}
	t.Cleanup(ctrl.shutdown)
	return ctrl
}

func TestConfigEventReachesInterpreterAndHover(t *testing.T) {
	ctrl := newTestController(t)

	err := ctrl.broker.Dispatch([]byte(`{"event":"config","data":{"controller":"translational","pid":{"P":0.2},"hover":true}}`))
	if err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	if got := ctrl.interpreter.Options().Controller; got != motion.Translational {
		t.Errorf("interpreter controller = %v, want translational", got)
	}
	if got := ctrl.hover.Gains().P; got != 0.2 {
		t.Errorf("hover P = %v, want 0.2", got)
	}
	if !ctrl.hover.Active() {
		t.Errorf("hover not started by config event")
	}

	if err := ctrl.broker.Dispatch([]byte(`{"event":"config","data":{"hover":false}}`)); err != nil {
		t.Fatal(err)
	}
	if ctrl.hover.Active() {
		t.Errorf("hover still active after hover=false")
	}
}

func TestPublishedPositionFeedsHover(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.hover.Start()

	palm := motion.Vector3{X: 1, Y: 200, Z: -3}
	if err := ctrl.broker.PublishData(broker.EventPosition, motion.ControlVector{Throttle: 0.1, Palm: &palm}); err != nil {
		t.Fatalf("PublishData: %v", err)
	}
	st := ctrl.hover.Status()
	if st.Desired == nil || *st.Desired != palm {
		t.Errorf("hover anchor = %+v, want %+v", st.Desired, palm)
	}
}

func TestShutdownRejectsLateEvents(t *testing.T) {
	ctrl := newTestController(t)
	ctrl.shutdown()

	if err := ctrl.broker.Dispatch([]byte(`{"event":"drone-sync"}`)); err == nil {
		t.Errorf("expected dispatch rejected after shutdown")
	}
}

func TestDisabledHardwareRunsNoop(t *testing.T) {
	ctrl := newTestController(t)
	if ctrl.actuator.Enabled() {
		t.Errorf("actuator enabled without hardware")
	}
	if err := ctrl.broker.Dispatch([]byte(`{"event":"drone-sync"}`)); err != nil {
		t.Errorf("drone-sync dispatch: %v", err)
	}
	if ctrl.actuator.SyncPhase() != actuation.SyncIdle {
		t.Errorf("no-op actuator reported phase %v", ctrl.actuator.SyncPhase())
	}
}

func TestRoutes(t *testing.T) {
	ctrl := newTestController(t)
	app := fiber.New()
	ctrl.routes(app)

	resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("/health status = %d", resp.StatusCode)
	}

	resp, err = app.Test(httptest.NewRequest("GET", "/api/diagnostics", nil))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Metrics struct {
			Components map[string]json.RawMessage `json:"components"`
		} `json:"metrics"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode diagnostics: %v", err)
	}
	for _, name := range []string{"broker", "actuation", "motion", "hover", "sensor", "zeromq"} {
		if _, ok := body.Metrics.Components[name]; !ok {
			t.Errorf("diagnostics missing %s", name)
		}
	}
}
