package config

import "time"

// Default returns the configuration used for every field the bootstrap file omits.
func Default() *BootstrapConfig {
	return &BootstrapConfig{
		Logging: LoggingConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
			MaxAgeDays: 14,
		},
		Server: ServerConfig{
			HTTPPort: 8080,
			WSPath:   "/ws",
		},
		Sensor: SensorConfig{
			URL:                 "ws://127.0.0.1:6437/v6.json",
			ReconnectIntervalMs: 1000,
		},
		Hardware: HardwareConfig{
			Enabled:         true,
			I2CBus:          7,
			Address:         0x40,
			PWMFrequency:    50,
			ChannelsPerQuad: 4,
			Quads:           1,
			AxisChannels: map[string]int{
				"roll":     0,
				"pitch":    1,
				"yaw":      2,
				"throttle": 3,
			},
			SyncDelayMs:   2000,
			ZeroThreshold: 0.001,
		},
		Motion: MotionConfig{
			Controller: "banked",
			Sensitivity: map[string]float64{
				"roll":     1,
				"pitch":    1,
				"yaw":      1,
				"throttle": 1,
			},
			RollingAverageCount: 5,
			SignalHoldTimeSec:   1,
			SignalTimeoutSec:    3,
			FistThreshold:       250,
		},
		Processing: ProcessingConfig{
			ActuationQueueSize: 16,
		},
		Data: DataConfig{
			Directory:          "./data",
			RuntimeOptionsFile: "runtime_options.yaml",
		},
	}
}

// SyncDelay returns the hardware sync phase length.
func (h HardwareConfig) SyncDelay() time.Duration {
	return time.Duration(h.SyncDelayMs) * time.Millisecond
}

// ReconnectInterval returns the wait between sensor reconnect attempts.
func (s SensorConfig) ReconnectInterval() time.Duration {
	return time.Duration(s.ReconnectIntervalMs) * time.Millisecond
}

// Seconds converts a float number of seconds into a Duration.
func Seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}
