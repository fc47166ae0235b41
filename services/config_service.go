package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/leapdrone/controller/domain/hover"
	"github.com/leapdrone/controller/domain/motion"
	"github.com/leapdrone/controller/pkg/config"
	customlog "github.com/leapdrone/controller/pkg/log"
)

// ErrInvalidConfig marks updates rejected before anything was changed.
var ErrInvalidConfig = errors.New("invalid runtime configuration")

// RuntimeOptions is everything a config event can change.
type RuntimeOptions struct {
	motion.Options `yaml:",inline"`
	PID            hover.Gains `json:"pid" yaml:"pid"`
}

// Validate checks the snapshot before it is swapped in.
func (o RuntimeOptions) Validate() error {
	if err := o.Options.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// hoverCommand is the one-shot part of a config update.
type hoverCommand struct {
	Hover *bool `json:"hover" yaml:"hover"`
}

// ConfigPublisher announces applied snapshots to remote peers only, so
// the config callback never receives its own announcement.
type ConfigPublisher interface {
	BroadcastData(name string, payload interface{}) error
}

// RuntimeConfigService holds the live RuntimeOptions snapshot. Updates
// are merged into a copy, validated, persisted and then swapped in whole.
type RuntimeConfigService struct {
	path      string
	logger    customlog.Logger
	publisher ConfigPublisher

	// mu serialises writers; readers use current
	mu       sync.Mutex
	current  atomic.Pointer[RuntimeOptions]
	onChange []func(RuntimeOptions)
	onHover  []func(bool)
}

// FromBootstrap builds the initial snapshot from the bootstrap file.
func FromBootstrap(cfg *config.BootstrapConfig) (RuntimeOptions, error) {
	controller, err := motion.ParseController(cfg.Motion.Controller)
	if err != nil {
		return RuntimeOptions{}, fmt.Errorf("%w: motion.controller: %v", ErrInvalidConfig, err)
	}
	sens := motion.UnitSensitivity
	if v, ok := cfg.Motion.Sensitivity["roll"]; ok {
		sens.Roll = v
	}
	if v, ok := cfg.Motion.Sensitivity["pitch"]; ok {
		sens.Pitch = v
	}
	if v, ok := cfg.Motion.Sensitivity["yaw"]; ok {
		sens.Yaw = v
	}
	if v, ok := cfg.Motion.Sensitivity["throttle"]; ok {
		sens.Throttle = v
	}
	opts := RuntimeOptions{
		Options: motion.Options{
			Controller:          controller,
			Sensitivity:         sens,
			RollingAverageCount: cfg.Motion.RollingAverageCount,
			SignalHoldTime:      cfg.Motion.SignalHoldTimeSec,
			SignalTimeout:       cfg.Motion.SignalTimeoutSec,
			FistThreshold:       cfg.Motion.FistThreshold,
			Quad:                cfg.Motion.Quad,
		},
		PID: hover.Gains{P: cfg.PID.P, I: cfg.PID.I, D: cfg.PID.D, Apply: cfg.PID.Apply},
	}
	return opts, opts.Validate()
}

// NewRuntimeConfigService starts from initial, overlaid with the file at
// path when it exists.
func NewRuntimeConfigService(path string, initial RuntimeOptions, logger customlog.Logger) (*RuntimeConfigService, error) {
	if path == "" {
		return nil, fmt.Errorf("runtime options path cannot be empty")
	}
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	if err := initial.Validate(); err != nil {
		return nil, err
	}

	s := &RuntimeConfigService{path: path, logger: logger}
	snapshot := initial

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &snapshot); err != nil {
			return nil, fmt.Errorf("error parsing runtime options file '%s': %w", path, err)
		}
		if err := snapshot.Validate(); err != nil {
			return nil, fmt.Errorf("runtime options file '%s': %w", path, err)
		}
		logger.Infof("Loaded runtime options from %s", path)
	case errors.Is(err, os.ErrNotExist):
		logger.Infof("No runtime options at %s, using bootstrap values", path)
	default:
		return nil, fmt.Errorf("error reading runtime options file '%s': %w", path, err)
	}

	s.current.Store(&snapshot)
	return s, nil
}

// Current returns the active snapshot.
func (s *RuntimeConfigService) Current() RuntimeOptions {
	return *s.current.Load()
}

// CurrentYAML renders the active snapshot.
func (s *RuntimeConfigService) CurrentYAML() ([]byte, error) {
	data, err := yaml.Marshal(s.Current())
	if err != nil {
		return nil, fmt.Errorf("failed to render runtime options: %w", err)
	}
	return data, nil
}

// OnChange registers fn to run with every applied snapshot.
func (s *RuntimeConfigService) OnChange(fn func(RuntimeOptions)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = append(s.onChange, fn)
}

// OnHover registers fn to run when an update carries a hover command.
func (s *RuntimeConfigService) OnHover(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHover = append(s.onHover, fn)
}

// SetPublisher announces every applied snapshot as a config event.
func (s *RuntimeConfigService) SetPublisher(p ConfigPublisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publisher = p
}

// HandleConfigEvent is the broker callback for inbound config events.
func (s *RuntimeConfigService) HandleConfigEvent(data json.RawMessage) {
	if _, err := s.ApplyJSON(data); err != nil {
		s.logger.Warnf("Rejected config event: %v", err)
	}
}

// ApplyJSON merges a JSON partial into the current snapshot.
func (s *RuntimeConfigService) ApplyJSON(data []byte) (RuntimeOptions, error) {
	return s.apply(data, func(b []byte, v interface{}) error {
		dec := json.NewDecoder(bytes.NewReader(b))
		return dec.Decode(v)
	})
}

// ApplyYAML merges a YAML partial into the current snapshot.
func (s *RuntimeConfigService) ApplyYAML(data []byte) (RuntimeOptions, error) {
	return s.apply(data, yaml.Unmarshal)
}

func (s *RuntimeConfigService) apply(data []byte, decode func([]byte, interface{}) error) (RuntimeOptions, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return RuntimeOptions{}, fmt.Errorf("%w: empty update", ErrInvalidConfig)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Current()
	if err := decode(data, &next); err != nil {
		return RuntimeOptions{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	var cmd hoverCommand
	if err := decode(data, &cmd); err != nil {
		return RuntimeOptions{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := next.Validate(); err != nil {
		return RuntimeOptions{}, err
	}

	if err := s.persistLocked(next); err != nil {
		return RuntimeOptions{}, err
	}
	s.current.Store(&next)
	s.logger.Infof("Runtime options updated: controller=%s window=%d quad=%d", next.Controller, next.RollingAverageCount, next.Quad)

	for _, fn := range s.onChange {
		fn(next)
	}
	if cmd.Hover != nil {
		for _, fn := range s.onHover {
			fn(*cmd.Hover)
		}
	}
	if s.publisher != nil {
		if err := s.publisher.BroadcastData("config", next); err != nil {
			s.logger.Warnf("Failed to announce runtime options: %v", err)
		}
	}
	return next, nil
}

// persistLocked writes opts as YAML. Caller holds mu.
func (s *RuntimeConfigService) persistLocked(opts RuntimeOptions) error {
	data, err := yaml.Marshal(opts)
	if err != nil {
		return fmt.Errorf("failed to render runtime options: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("error creating directory for '%s': %w", s.path, err)
	}
	if err := os.WriteFile(s.path, data, 0o644); err != nil {
		return fmt.Errorf("error writing runtime options file '%s': %w", s.path, err)
	}
	s.logger.Debugf("Persisted runtime options to %s", s.path)
	return nil
}
