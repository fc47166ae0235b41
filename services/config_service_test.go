package services

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"github.com/leapdrone/controller/domain/motion"
	"github.com/leapdrone/controller/pkg/config"
)

type recordingPublisher struct {
	names []string
}

func (p *recordingPublisher) BroadcastData(name string, payload interface{}) error {
	p.names = append(p.names, name)
	return nil
}

func newTestService(t *testing.T) (*RuntimeConfigService, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "runtime_options.yaml")
	initial := RuntimeOptions{Options: motion.DefaultOptions()}
	s, err := NewRuntimeConfigService(path, initial, nil)
	if err != nil {
		t.Fatalf("NewRuntimeConfigService: %v", err)
	}
	return s, path
}

func TestApplyJSONMergesPartialUpdate(t *testing.T) {
	s, path := newTestService(t)

	var changed []RuntimeOptions
	s.OnChange(func(o RuntimeOptions) { changed = append(changed, o) })

	got, err := s.ApplyJSON([]byte(`{"controller":"translational","sensitivity":{"yaw":2}}`))
	if err != nil {
		t.Fatalf("ApplyJSON: %v", err)
	}
	if got.Controller != motion.Translational {
		t.Errorf("controller = %v, want translational", got.Controller)
	}
	if got.Sensitivity.Yaw != 2 || got.Sensitivity.Roll != 1 {
		t.Errorf("sensitivity = %+v, want yaw 2 and the rest untouched", got.Sensitivity)
	}
	if got.RollingAverageCount != 5 {
		t.Errorf("rollingAverageCount = %d, want 5", got.RollingAverageCount)
	}
	if len(changed) != 1 || changed[0].Controller != motion.Translational {
		t.Fatalf("change listeners = %+v", changed)
	}
	if s.Current().Controller != motion.Translational {
		t.Errorf("snapshot not swapped in")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("runtime options were not persisted: %v", err)
	}
	if !strings.Contains(string(data), "controller: translational") {
		t.Errorf("persisted file missing controller:\n%s", data)
	}
}

func TestApplyRejectsInvalidUpdateAtomically(t *testing.T) {
	s, path := newTestService(t)
	calls := 0
	s.OnChange(func(RuntimeOptions) { calls++ })

	cases := []string{
		`{"controller":"banked","rollingAverageCount":0}`,
		`{"controller":"spinning"}`,
		`not json`,
		``,
	}
	for _, body := range cases {
		if _, err := s.ApplyJSON([]byte(body)); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("ApplyJSON(%q) error = %v, want ErrInvalidConfig", body, err)
		}
	}
	if calls != 0 {
		t.Errorf("change listeners ran %d times for rejected updates", calls)
	}
	if got := s.Current(); got.Controller != motion.Banked || got.RollingAverageCount != 5 {
		t.Errorf("snapshot changed after rejected updates: %+v", got)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Errorf("rejected update was persisted")
	}
}

func TestHoverCommand(t *testing.T) {
	s, _ := newTestService(t)
	var commands []bool
	s.OnHover(func(on bool) { commands = append(commands, on) })

	if _, err := s.ApplyJSON([]byte(`{"hover":true}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyJSON([]byte(`{"quad":1}`)); err != nil {
		t.Fatal(err)
	}
	if _, err := s.ApplyYAML([]byte("hover: false\n")); err != nil {
		t.Fatal(err)
	}
	if len(commands) != 2 || !commands[0] || commands[1] {
		t.Errorf("hover commands = %v, want [true false]", commands)
	}
}

func TestApplyYAMLUpdatesGains(t *testing.T) {
	s, _ := newTestService(t)
	got, err := s.ApplyYAML([]byte("pid:\n  p: 0.5\n  apply: true\nsignal_hold_time: 2\n"))
	if err != nil {
		t.Fatalf("ApplyYAML: %v", err)
	}
	if got.PID.P != 0.5 || !got.PID.Apply || got.SignalHoldTime != 2 {
		t.Errorf("unexpected snapshot %+v", got)
	}
}

func TestPublisherAnnouncesAppliedSnapshot(t *testing.T) {
	s, _ := newTestService(t)
	pub := &recordingPublisher{}
	s.SetPublisher(pub)

	if _, err := s.ApplyJSON([]byte(`{"quad":2}`)); err != nil {
		t.Fatal(err)
	}
	s.HandleConfigEvent([]byte(`{"quad":-1}`))

	if len(pub.names) != 1 || pub.names[0] != "config" {
		t.Errorf("published %v, want one config event", pub.names)
	}
}

func TestPersistedOptionsReloaded(t *testing.T) {
	s, path := newTestService(t)
	if _, err := s.ApplyJSON([]byte(`{"controller":"translational","fistThreshold":120}`)); err != nil {
		t.Fatal(err)
	}

	reloaded, err := NewRuntimeConfigService(path, RuntimeOptions{Options: motion.DefaultOptions()}, nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	got := reloaded.Current()
	if got.Controller != motion.Translational || got.FistThreshold != 120 {
		t.Errorf("reloaded snapshot = %+v", got)
	}

	out, err := reloaded.CurrentYAML()
	if err != nil {
		t.Fatal(err)
	}
	var decoded RuntimeOptions
	if err := yaml.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("CurrentYAML is not valid YAML: %v", err)
	}
	if decoded.FistThreshold != 120 {
		t.Errorf("CurrentYAML fistThreshold = %v", decoded.FistThreshold)
	}
}

func TestFromBootstrap(t *testing.T) {
	cfg := config.Default()
	cfg.Motion.Controller = "translational"
	cfg.Motion.Sensitivity = map[string]float64{"pitch": 0.5}
	cfg.PID.P = 0.1

	opts, err := FromBootstrap(cfg)
	if err != nil {
		t.Fatalf("FromBootstrap: %v", err)
	}
	if opts.Controller != motion.Translational {
		t.Errorf("controller = %v", opts.Controller)
	}
	if opts.Sensitivity.Pitch != 0.5 || opts.Sensitivity.Roll != 1 {
		t.Errorf("sensitivity = %+v", opts.Sensitivity)
	}
	if opts.PID.P != 0.1 {
		t.Errorf("pid = %+v", opts.PID)
	}

	cfg.Motion.Controller = "sideways"
	if _, err := FromBootstrap(cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("unknown controller error = %v, want ErrInvalidConfig", err)
	}
}
