package motion

import (
	"fmt"
	"time"
)

// Options is the runtime configuration of an Interpreter. It is treated as an
// immutable snapshot: updates build a new value and swap it in whole.
type Options struct {
	Controller          Controller        `json:"controller" yaml:"controller"`
	Sensitivity         SensitivityVector `json:"sensitivity" yaml:"sensitivity"`
	RollingAverageCount int               `json:"rollingAverageCount" yaml:"rolling_average_count"`
	SignalHoldTime      float64           `json:"signalHoldTime" yaml:"signal_hold_time"` // seconds
	SignalTimeout       float64           `json:"signalTimeout" yaml:"signal_timeout"`    // seconds
	FistThreshold       float64           `json:"fistThreshold" yaml:"fist_threshold"`
	Quad                int               `json:"quad" yaml:"quad"`
}

// DefaultOptions mirrors the bootstrap defaults.
func DefaultOptions() Options {
	return Options{
		Controller:          Banked,
		Sensitivity:         UnitSensitivity,
		RollingAverageCount: 5,
		SignalHoldTime:      1,
		SignalTimeout:       3,
		FistThreshold:       250,
	}
}

// Validate rejects snapshots the interpreter cannot run with.
func (o Options) Validate() error {
	if o.RollingAverageCount < 1 {
		return fmt.Errorf("rollingAverageCount must be at least 1, got %d", o.RollingAverageCount)
	}
	if o.SignalHoldTime < 0 || o.SignalTimeout < 0 {
		return fmt.Errorf("signal times must not be negative")
	}
	if o.Quad < 0 {
		return fmt.Errorf("quad must not be negative, got %d", o.Quad)
	}
	if _, err := o.Controller.MarshalText(); err != nil {
		return err
	}
	return nil
}

func (o Options) holdDuration() time.Duration {
	return time.Duration(o.SignalHoldTime * float64(time.Second))
}

func (o Options) timeoutDuration() time.Duration {
	return time.Duration(o.SignalTimeout * float64(time.Second))
}
