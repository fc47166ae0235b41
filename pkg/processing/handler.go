package processing

import (
	"time"

	customlog "github.com/leapdrone/controller/pkg/log"
)

// LoggingResultHandler reports jobs that waited too long in the queue.
type LoggingResultHandler struct {
	logger   customlog.Logger
	slowWait time.Duration
}

// NewLoggingResultHandler creates a handler warning when a job's latency
// exceeds slowWait. Zero disables the warning.
func NewLoggingResultHandler(logger customlog.Logger, slowWait time.Duration) *LoggingResultHandler {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &LoggingResultHandler{
		logger:   logger,
		slowWait: slowWait,
	}
}

// HandleResult handles one processed job
func (h *LoggingResultHandler) HandleResult(result *Result) {
	if result.Error != nil {
		// the worker already logged the failure
		return
	}
	if h.slowWait > 0 && result.Latency > h.slowWait {
		h.logger.Warnf("Slow %s job: %s from submit to completion", result.Kind, result.Latency)
		return
	}
	h.logger.Debugf("Processed %s job in %s", result.Kind, result.Latency)
}

// CreateHandlerFunc creates a ResultHandler function for the ProcessingPool
func (h *LoggingResultHandler) CreateHandlerFunc() ResultHandler {
	return func(result *Result) {
		if result == nil {
			h.logger.Errorf("Received nil Result")
			return
		}
		h.HandleResult(result)
	}
}
