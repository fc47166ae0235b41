package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// BootstrapFileName is the file looked up inside the config directory.
const BootstrapFileName = "controller_config.yaml"

// BootstrapConfig holds the initial configuration loaded from controller_config.yaml
type BootstrapConfig struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Server     ServerConfig     `yaml:"server"`
	ZeroMQ     ZeroMQConfig     `yaml:"zeromq"`
	Sensor     SensorConfig     `yaml:"sensor"`
	Hardware   HardwareConfig   `yaml:"hardware"`
	Motion     MotionConfig     `yaml:"motion"`
	PID        PIDConfig        `yaml:"pid"`
	Processing ProcessingConfig `yaml:"processing"`
	Data       DataConfig       `yaml:"data"`
}

// LoggingConfig holds logging settings from bootstrap
type LoggingConfig struct {
	Level      string `yaml:"level"`
	LogPath    string `yaml:"log_path,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty"`
}

// ServerConfig holds HTTP and websocket settings
type ServerConfig struct {
	HTTPPort int    `yaml:"http_port"`
	WSPath   string `yaml:"ws_path"`
}

// ZeroMQConfig holds the optional ZeroMQ mirror. Empty addresses disable the socket.
type ZeroMQConfig struct {
	PublishBindAddress string `yaml:"publish_bind_address"`
	RequestBindAddress string `yaml:"request_bind_address"`
}

// SensorConfig points at the hand tracking service.
type SensorConfig struct {
	URL                 string `yaml:"url"`
	ReconnectIntervalMs int    `yaml:"reconnect_interval_ms"`
}

// HardwareConfig describes the PWM board and how quads map onto its channels.
type HardwareConfig struct {
	Enabled         bool           `yaml:"enabled"`
	I2CBus          int            `yaml:"i2c_bus"`
	Address         int            `yaml:"address"`
	PWMFrequency    float64        `yaml:"pwm_frequency"`
	ChannelsPerQuad int            `yaml:"channels_per_quad"`
	Quads           int            `yaml:"quads"`
	AxisChannels    map[string]int `yaml:"axis_channels"`
	SyncDelayMs     int            `yaml:"sync_delay_ms"`
	ZeroThreshold   float64        `yaml:"zero_threshold"`
}

// MotionConfig seeds the runtime motion options.
type MotionConfig struct {
	Controller          string             `yaml:"controller"`
	Sensitivity         map[string]float64 `yaml:"sensitivity"`
	RollingAverageCount int                `yaml:"rolling_average_count"`
	SignalHoldTimeSec   float64            `yaml:"signal_hold_time"`
	SignalTimeoutSec    float64            `yaml:"signal_timeout"`
	FistThreshold       float64            `yaml:"fist_threshold"`
	Quad                int                `yaml:"quad"`
}

// PIDConfig seeds the altitude-hold gains.
type PIDConfig struct {
	P     float64 `yaml:"p"`
	I     float64 `yaml:"i"`
	D     float64 `yaml:"d"`
	Apply bool    `yaml:"apply"`
}

// ProcessingConfig sizes the actuation write queue.
type ProcessingConfig struct {
	ActuationQueueSize int `yaml:"actuation_queue_size"`
}

// DataConfig holds data directory settings from bootstrap
type DataConfig struct {
	Directory          string `yaml:"directory"`
	RuntimeOptionsFile string `yaml:"runtime_options_file"`
}

// RuntimeOptionsPath returns the file the runtime options are persisted to.
func (d DataConfig) RuntimeOptionsPath() string {
	return filepath.Join(d.Directory, d.RuntimeOptionsFile)
}

// LoadBootstrapConfig loads the bootstrap configuration from controller_config.yaml
func LoadBootstrapConfig(configDir string) (*BootstrapConfig, error) {
	bootstrapConfigPath := filepath.Join(configDir, BootstrapFileName)

	data, err := os.ReadFile(bootstrapConfigPath)
	if err != nil {
		return nil, fmt.Errorf("error reading bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	bootstrapCfg := Default()
	if err := yaml.Unmarshal(data, bootstrapCfg); err != nil {
		return nil, fmt.Errorf("error parsing bootstrap config file '%s': %w", bootstrapConfigPath, err)
	}

	if err := bootstrapCfg.Validate(); err != nil {
		return nil, err
	}

	return bootstrapCfg, nil
}

// Validate checks the fields the controller cannot start without.
func (c *BootstrapConfig) Validate() error {
	if c.Server.HTTPPort <= 0 {
		return fmt.Errorf("missing required field in bootstrap config: server.http_port")
	}
	if c.Data.Directory == "" {
		return fmt.Errorf("missing required field in bootstrap config: data.directory")
	}
	if c.Data.RuntimeOptionsFile == "" {
		return fmt.Errorf("missing required field in bootstrap config: data.runtime_options_file")
	}
	if c.Hardware.ChannelsPerQuad <= 0 {
		return fmt.Errorf("invalid bootstrap config: hardware.channels_per_quad must be positive")
	}
	if c.Hardware.Quads <= 0 {
		return fmt.Errorf("invalid bootstrap config: hardware.quads must be positive")
	}
	for axis, ch := range c.Hardware.AxisChannels {
		if ch < 0 || ch >= c.Hardware.ChannelsPerQuad {
			return fmt.Errorf("invalid bootstrap config: hardware.axis_channels.%s=%d outside [0,%d)", axis, ch, c.Hardware.ChannelsPerQuad)
		}
	}
	if c.Motion.RollingAverageCount < 1 {
		return fmt.Errorf("invalid bootstrap config: motion.rolling_average_count must be at least 1")
	}
	return nil
}
