package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/c360/streambridge/metric"
	"github.com/c360/streambridge/pkg/queue"
)

const defaultPollTimeout = 100 * time.Millisecond

// Pool is a fixed-size worker pool draining items of type T from a
// bounded queue.
type Pool[T any] struct {
	// Configuration
	workers     int
	source      *queue.Bounded[T]
	fn          func(context.Context, T) error
	pollTimeout time.Duration

	// Runtime state
	wg     *sync.WaitGroup
	cancel context.CancelFunc

	// Lifecycle management
	lifecycleMu sync.Mutex
	started     bool
	stopped     bool

	// Statistics (atomic)
	processed int64
	failed    int64
	panics    int64

	// Metrics configuration
	metricsRegistry *metric.MetricsRegistry
	metricsPrefix   string
	metrics         *Metrics
}

// Metrics holds Prometheus metrics for worker pool monitoring
type Metrics struct {
	processed      prometheus.Counter
	failed         prometheus.Counter
	processingTime *prometheus.HistogramVec
}

// Option represents a configuration option for the worker pool
type Option[T any] func(*Pool[T])

// WithMetricsRegistry configures the pool to register metrics with the
// framework's registry under the given prefix.
func WithMetricsRegistry[T any](registry *metric.MetricsRegistry, prefix string) Option[T] {
	return func(p *Pool[T]) {
		p.metricsRegistry = registry
		p.metricsPrefix = prefix
	}
}

// WithPollTimeout overrides how long a worker waits on the queue before
// re-checking lifecycle state. Defaults to 100ms.
func WithPollTimeout[T any](timeout time.Duration) Option[T] {
	return func(p *Pool[T]) {
		if timeout > 0 {
			p.pollTimeout = timeout
		}
	}
}

// NewPool creates a worker pool of the given size draining source.
// Workers below 1 default to 1.
func NewPool[T any](workers int, source *queue.Bounded[T], fn func(context.Context, T) error, opts ...Option[T]) *Pool[T] {
	if workers <= 0 {
		workers = 1
	}
	if source == nil {
		panic(ErrNilSource)
	}
	if fn == nil {
		panic(ErrNilProcessor)
	}

	pool := &Pool[T]{
		workers:     workers,
		source:      source,
		fn:          fn,
		pollTimeout: defaultPollTimeout,
	}

	for _, opt := range opts {
		opt(pool)
	}

	if pool.metricsRegistry != nil && pool.metricsPrefix != "" {
		pool.initializeMetrics()
	}

	return pool
}

// initializeMetrics creates and registers metrics with the framework's registry
func (p *Pool[T]) initializeMetrics() {
	prefix := p.metricsPrefix

	processed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_processed_total",
		Help: "Total work items processed",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: prefix + "_failed_total",
		Help: "Total work items that failed processing",
	})
	processingTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    prefix + "_processing_duration_seconds",
		Help:    "Time spent processing work items",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"status"})

	serviceName := "worker_pool"
	if err := p.metricsRegistry.RegisterCounter(serviceName, prefix+"_processed_total", processed); err != nil {
		return
	}
	if err := p.metricsRegistry.RegisterCounter(serviceName, prefix+"_failed_total", failed); err != nil {
		return
	}
	if err := p.metricsRegistry.RegisterHistogramVec(
		serviceName, prefix+"_processing_duration_seconds", processingTime); err != nil {
		return
	}

	p.metrics = &Metrics{
		processed:      processed,
		failed:         failed,
		processingTime: processingTime,
	}
}

// Start launches the workers. The pool derives its own context from ctx
// so an immediate Stop can cancel workers independently.
func (p *Pool[T]) Start(ctx context.Context) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if p.started {
		return ErrPoolAlreadyStarted
	}

	workerCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg = &sync.WaitGroup{}

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(workerCtx)
	}

	p.started = true
	return nil
}

// Stop shuts the pool down.
//
// With drain true, workers keep processing until the source queue is
// closed and empty; the caller must have closed the queue or Stop will
// wait out the timeout. With drain false the pool context is cancelled
// and workers exit at their next poll, abandoning queued items.
//
// Returns ErrStopTimeout if workers are still running at the deadline;
// they are detached, not killed.
func (p *Pool[T]) Stop(drain bool, timeout time.Duration) error {
	p.lifecycleMu.Lock()
	defer p.lifecycleMu.Unlock()

	if !p.started || p.stopped {
		return nil
	}

	if !drain {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		p.stopped = true
		p.cancel()
		return nil
	case <-timer.C:
		// Workers may be stuck in the processing function; detach them
		p.stopped = true
		p.cancel()
		return ErrStopTimeout
	}
}

// Stats returns current pool statistics
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Workers:   p.workers,
		Processed: atomic.LoadInt64(&p.processed),
		Failed:    atomic.LoadInt64(&p.failed),
		Panics:    atomic.LoadInt64(&p.panics),
	}
}

// PoolStats represents worker pool statistics
type PoolStats struct {
	Workers   int   `json:"workers"`
	Processed int64 `json:"processed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
}

// worker drains the source queue until it is closed or the context is
// cancelled.
func (p *Pool[T]) worker(ctx context.Context) {
	defer p.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		item, err := p.source.Get(p.pollTimeout)
		if err != nil {
			if err == queue.ErrClosed {
				return
			}
			// Timeout: loop around and re-check the context
			continue
		}

		p.run(ctx, item)
	}
}

// run executes fn for one item with full isolation: errors and panics
// are counted and the worker continues.
func (p *Pool[T]) run(ctx context.Context, item T) {
	start := time.Now()
	var err error

	func() {
		defer func() {
			if r := recover(); r != nil {
				atomic.AddInt64(&p.panics, 1)
				slog.Error("worker recovered from panic", "panic", r)
				err = fmt.Errorf("processing panicked: %v", r)
			}
		}()
		err = p.fn(ctx, item)
	}()

	duration := time.Since(start)
	atomic.AddInt64(&p.processed, 1)
	if err != nil {
		atomic.AddInt64(&p.failed, 1)
	}

	if p.metrics != nil {
		p.metrics.processed.Inc()
		status := "success"
		if err != nil {
			p.metrics.failed.Inc()
			status = "error"
		}
		p.metrics.processingTime.WithLabelValues(status).Observe(duration.Seconds())
	}
}
