package processing

import (
	"errors"
	"sync"
	"time"

	customlog "github.com/leapdrone/controller/pkg/log"
)

var (
	// ErrQueueFull is returned when a job cannot be queued.
	ErrQueueFull = errors.New("processing queue is full")
	// ErrPoolStopped is returned when submitting to a pool that is not running.
	ErrPoolStopped = errors.New("processing pool is not running")
)

// Job is a unit of work queued on a pool
type Job struct {
	Kind       string
	Payload    interface{}
	EnqueuedAt time.Time
}

// Result is the outcome of processing one job
type Result struct {
	Kind    string
	Latency time.Duration
	Error   error
}

// ResultHandler is a function that handles processed results
type ResultHandler func(result *Result)

// JobProcessor processes a job in a worker
type JobProcessor func(job *Job) error

// OverflowPolicy decides which job is lost when the queue is full.
type OverflowPolicy int

const (
	// DropNewest rejects the submitted job.
	DropNewest OverflowPolicy = iota
	// DropOldest evicts the oldest pending job to make room.
	DropOldest
)

// ProcessingPool is a bounded worker pool
type ProcessingPool struct {
	name          string
	workerCount   int
	logger        customlog.Logger
	jobQueue      chan *Job
	running       bool
	wg            sync.WaitGroup
	mu            sync.Mutex
	processor     JobProcessor
	resultHandler ResultHandler
	queueSize     int
	overflow      OverflowPolicy
	metrics       *PoolMetrics
}

// PoolMetrics tracks metrics for a processing pool
type PoolMetrics struct {
	ProcessedCount    int64 `json:"processed"`
	ErrorCount        int64 `json:"errors"`
	QueuedCount       int64 `json:"queued"`
	DroppedCount      int64 `json:"dropped"`
	LastProcessedTime int64 `json:"lastProcessedNs"`
	ProcessingTimeAvg int64 `json:"avgTimeUs"` // in microseconds
	ProcessingTimeMax int64 `json:"maxTimeUs"` // in microseconds
	mu                sync.Mutex
}

// NewProcessingPool creates a new processing pool
func NewProcessingPool(
	name string,
	workerCount int,
	queueSize int,
	overflow OverflowPolicy,
	logger customlog.Logger,
) *ProcessingPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if logger == nil {
		logger = customlog.NewNopLogger()
	}
	return &ProcessingPool{
		name:        name,
		workerCount: workerCount,
		queueSize:   queueSize,
		overflow:    overflow,
		logger:      logger,
		jobQueue:    make(chan *Job, queueSize),
		metrics:     &PoolMetrics{},
	}
}

// SetProcessor sets the job processor function
func (p *ProcessingPool) SetProcessor(processor JobProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processor = processor
}

// SetResultHandler sets the result handler function
func (p *ProcessingPool) SetResultHandler(handler ResultHandler) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.resultHandler = handler
}

// Submit adds a job to the queue without blocking.
func (p *ProcessingPool) Submit(job *Job) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.running {
		return ErrPoolStopped
	}
	if job.EnqueuedAt.IsZero() {
		job.EnqueuedAt = time.Now()
	}

	p.metrics.mu.Lock()
	p.metrics.QueuedCount++
	p.metrics.mu.Unlock()

	select {
	case p.jobQueue <- job:
		return nil
	default:
	}

	if p.overflow == DropOldest {
		select {
		case old := <-p.jobQueue:
			p.countDropped()
			p.logger.Warnf("%s pool queue is full, dropped pending %s job", p.name, old.Kind)
		default:
		}
		select {
		case p.jobQueue <- job:
			return nil
		default:
		}
	}

	p.countDropped()
	p.logger.Warnf("%s pool queue is full, discarding %s job", p.name, job.Kind)
	return ErrQueueFull
}

func (p *ProcessingPool) countDropped() {
	p.metrics.mu.Lock()
	p.metrics.DroppedCount++
	p.metrics.mu.Unlock()
}

// Start starts the processing pool workers
func (p *ProcessingPool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return
	}

	p.running = true
	p.jobQueue = make(chan *Job, p.queueSize)
	p.logger.Infof("Starting %s pool with %d workers", p.name, p.workerCount)

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i, p.jobQueue)
	}
}

// Stop stops the pool and waits for queued jobs to drain
func (p *ProcessingPool) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	close(p.jobQueue)
	p.mu.Unlock()

	p.logger.Infof("Stopping %s pool", p.name)
	p.wg.Wait()
	p.logger.Infof("%s pool stopped", p.name)

	p.logMetrics()
}

// worker processes jobs from the queue
func (p *ProcessingPool) worker(id int, queue <-chan *Job) {
	defer p.wg.Done()

	p.logger.Debugf("%s pool worker %d started", p.name, id)

	for job := range queue {
		p.mu.Lock()
		processor := p.processor
		resultHandler := p.resultHandler
		p.mu.Unlock()

		if processor == nil {
			p.logger.Errorf("No job processor set for %s pool", p.name)
			continue
		}

		startTime := time.Now()
		err := processor(job)
		processingTime := time.Since(startTime).Microseconds()

		p.metrics.mu.Lock()
		p.metrics.ProcessedCount++
		p.metrics.LastProcessedTime = time.Now().UnixNano()
		if p.metrics.ProcessingTimeAvg == 0 {
			p.metrics.ProcessingTimeAvg = processingTime
		} else {
			// Simple moving average
			p.metrics.ProcessingTimeAvg = (p.metrics.ProcessingTimeAvg + processingTime) / 2
		}
		if processingTime > p.metrics.ProcessingTimeMax {
			p.metrics.ProcessingTimeMax = processingTime
		}
		if err != nil {
			p.metrics.ErrorCount++
		}
		p.metrics.mu.Unlock()

		if err != nil {
			p.logger.Errorf("Error processing %s job in %s pool: %v", job.Kind, p.name, err)
		}

		if resultHandler != nil {
			resultHandler(&Result{
				Kind:    job.Kind,
				Latency: time.Since(job.EnqueuedAt),
				Error:   err,
			})
		}
	}

	p.logger.Debugf("%s pool worker %d stopped", p.name, id)
}

// GetMetrics returns a copy of the current metrics
func (p *ProcessingPool) GetMetrics() PoolMetrics {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	return PoolMetrics{
		ProcessedCount:    p.metrics.ProcessedCount,
		ErrorCount:        p.metrics.ErrorCount,
		QueuedCount:       p.metrics.QueuedCount,
		DroppedCount:      p.metrics.DroppedCount,
		LastProcessedTime: p.metrics.LastProcessedTime,
		ProcessingTimeAvg: p.metrics.ProcessingTimeAvg,
		ProcessingTimeMax: p.metrics.ProcessingTimeMax,
	}
}

func (p *ProcessingPool) logMetrics() {
	metrics := p.GetMetrics()

	p.logger.Infof("%s pool metrics: processed=%d, errors=%d, dropped=%d, avg_time=%dµs, max_time=%dµs",
		p.name, metrics.ProcessedCount, metrics.ErrorCount, metrics.DroppedCount,
		metrics.ProcessingTimeAvg, metrics.ProcessingTimeMax)
}

// GetName returns the pool name
func (p *ProcessingPool) GetName() string {
	return p.name
}

// GetQueueLength returns the current length of the job queue
func (p *ProcessingPool) GetQueueLength() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.jobQueue)
}

// GetQueueCapacity returns the capacity of the job queue
func (p *ProcessingPool) GetQueueCapacity() int {
	return p.queueSize
}
