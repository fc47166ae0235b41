package actuation

import (
	"fmt"
	"time"

	"github.com/leapdrone/controller/domain/motion"
	customlog "github.com/leapdrone/controller/pkg/log"
	"github.com/leapdrone/controller/pkg/processing"
)

const updateJob = "actuator-update"

// slowUpdate is the submit-to-write latency that gets logged as a warning.
const slowUpdate = 50 * time.Millisecond

// AsyncActuator queues Update calls on a single-worker pool so the frame
// loop never waits on the bus. When the queue is full the oldest pending
// write is dropped.
type AsyncActuator struct {
	Actuator
	pool   *processing.ProcessingPool
	logger customlog.Logger
}

// NewAsyncActuator wraps inner and starts its writer.
func NewAsyncActuator(inner Actuator, queueSize int, logger customlog.Logger) *AsyncActuator {
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	pool := processing.NewProcessingPool("actuation", 1, queueSize, processing.DropOldest, logger)
	pool.SetProcessor(func(job *processing.Job) error {
		v, ok := job.Payload.(motion.ControlVector)
		if !ok {
			return fmt.Errorf("unexpected %s payload %T", job.Kind, job.Payload)
		}
		return inner.Update(v)
	})
	pool.SetResultHandler(processing.NewLoggingResultHandler(logger, slowUpdate).CreateHandlerFunc())
	pool.Start()
	return &AsyncActuator{Actuator: inner, pool: pool, logger: logger}
}

// Update queues v for the writer.
func (a *AsyncActuator) Update(v motion.ControlVector) error {
	return a.pool.Submit(&processing.Job{Kind: updateJob, Payload: v})
}

// Metrics exposes the writer queue statistics.
func (a *AsyncActuator) Metrics() processing.PoolMetrics {
	return a.pool.GetMetrics()
}

// QueueLength is the number of writes waiting.
func (a *AsyncActuator) QueueLength() int {
	return a.pool.GetQueueLength()
}

// Shutdown drains pending writes, then zeroes every channel.
func (a *AsyncActuator) Shutdown() error {
	a.pool.Stop()
	return a.Actuator.Shutdown()
}
