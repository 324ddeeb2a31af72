package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
	"github.com/c360/streambridge/metric"
	"github.com/c360/streambridge/pkg/queue"
	"github.com/c360/streambridge/pkg/worker"
	"github.com/c360/streambridge/processor"
)

const (
	// pollTimeout bounds every blocking call inside the loops so the
	// running flag is checked promptly
	pollTimeout = 100 * time.Millisecond

	// throttleSleep is how long a consumer pauses while the
	// back-pressure gate is engaged
	throttleSleep = 10 * time.Millisecond
)

// sourceBinding pairs a source adapter with its subscription set.
type sourceBinding struct {
	source broker.Source
	topics []string
}

// Flow is one running topology wired end to end. Construct it with
// NewFunnel, NewFan, NewOneToOne, or New.
type Flow struct {
	name   string
	logger *slog.Logger

	sources   []sourceBinding
	publisher broker.Publisher
	proc      processor.Processor

	// Topology variation points
	pickDestination func(*message.Message) (string, error)
	publisherFor    func(*message.Message) broker.Publisher

	domainQueue  *queue.Bounded[*message.Message]
	publishQueue *queue.Bounded[*message.Message]
	bpDomain     *queue.BackPressure
	bpPublish    *queue.BackPressure
	domainPool   *worker.Pool[*message.Message]
	publishPool  *worker.Pool[*message.Message]

	collector       *metric.Collector
	prom            *metric.Metrics
	shutdownTimeout time.Duration

	state          atomic.Int32
	filterDrops    atomic.Int64
	consumerCancel context.CancelFunc
	consumerWG     sync.WaitGroup

	failMu   sync.Mutex
	failErr  error
	stopOnce sync.Once
	done     chan struct{}
}

// newFlow wires the shared pipeline substrate. The topology-specific
// constructors provide the sources, publisher, and destination picker.
func newFlow(
	name string,
	cfg *config.Config,
	deps broker.Dependencies,
	sources []sourceBinding,
	publisher broker.Publisher,
	pickDestination func(*message.Message) (string, error),
) (*Flow, error) {
	proc, err := processor.New(cfg.ProcessorClass, cfg.ProcessorArgs)
	if err != nil {
		return nil, err
	}

	var prom *metric.Metrics
	var queueOpts []queue.Option[*message.Message]
	if deps.Metrics != nil {
		prom = deps.Metrics.Metrics
	}

	domainOpts := queueOpts
	publishOpts := queueOpts
	if deps.Metrics != nil {
		domainOpts = append(domainOpts,
			queue.WithMetrics[*message.Message](deps.Metrics, "domain"))
		publishOpts = append(publishOpts,
			queue.WithMetrics[*message.Message](deps.Metrics, "publish"))
	}

	domainQueue, err := queue.NewBounded(cfg.ThreadPool.QueueSize, domainOpts...)
	if err != nil {
		return nil, errors.WrapFatal(err, "Flow", "newFlow", "create domain queue")
	}
	publishQueue, err := queue.NewBounded(cfg.ThreadPool.QueueSize, publishOpts...)
	if err != nil {
		return nil, errors.WrapFatal(err, "Flow", "newFlow", "create publish queue")
	}

	bp := cfg.BackPressure
	f := &Flow{
		name:            name,
		logger:          deps.GetLogger().With("flow", name),
		sources:         sources,
		publisher:       publisher,
		proc:            proc,
		pickDestination: pickDestination,
		domainQueue:     domainQueue,
		publishQueue:    publishQueue,
		collector:       metric.NewCollector(prom),
		prom:            prom,
		shutdownTimeout: cfg.ShutdownTimeout(),
		done:            make(chan struct{}),
	}
	f.publisherFor = func(*message.Message) broker.Publisher { return f.publisher }

	f.bpDomain = queue.NewBackPressure(domainQueue, bp.Enabled,
		bp.QueueHighWatermark, bp.QueueLowWatermark, prom, "domain")
	f.bpPublish = queue.NewBackPressure(publishQueue, bp.Enabled,
		bp.QueueHighWatermark, bp.QueueLowWatermark, prom, "publish")

	var domainPoolOpts, publishPoolOpts []worker.Option[*message.Message]
	if deps.Metrics != nil {
		domainPoolOpts = append(domainPoolOpts,
			worker.WithMetricsRegistry[*message.Message](deps.Metrics, "domain"))
		publishPoolOpts = append(publishPoolOpts,
			worker.WithMetricsRegistry[*message.Message](deps.Metrics, "publish"))
	}
	f.domainPool = worker.NewPool(cfg.ThreadPool.MaxWorkers, domainQueue, f.domainWork, domainPoolOpts...)
	f.publishPool = worker.NewPool(cfg.ThreadPool.MaxWorkers, publishQueue, f.publishWork, publishPoolOpts...)

	return f, nil
}

// New builds the flow selected by the config's mode field.
func New(cfg *config.Config, registry *broker.Registry, deps broker.Dependencies) (*Flow, error) {
	switch cfg.Mode {
	case config.ModeFunnel:
		return NewFunnel(cfg, registry, deps)
	case config.ModeFan:
		return NewFan(cfg, registry, deps)
	case config.ModeOneToOne:
		return NewOneToOne(cfg, registry, deps)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownMode, cfg.Mode),
			"Flow", "New", "mode dispatch")
	}
}

// Name returns the topology name.
func (f *Flow) Name() string {
	return f.name
}

// State returns the current lifecycle state.
func (f *Flow) State() State {
	return State(f.state.Load())
}

// Metrics returns the flow's per-topic accounting.
func (f *Flow) Metrics() *metric.Collector {
	return f.collector
}

// FilterDrops returns how many messages the processor intentionally
// dropped.
func (f *Flow) FilterDrops() int64 {
	return f.filterDrops.Load()
}

// Done is closed once the flow reaches a terminal state.
func (f *Flow) Done() <-chan struct{} {
	return f.done
}

// Err returns the failure cause when the flow ended in Failed.
func (f *Flow) Err() error {
	f.failMu.Lock()
	defer f.failMu.Unlock()
	return f.failErr
}

func (f *Flow) setState(s State) {
	f.state.Store(int32(s))
	if f.prom != nil {
		f.prom.RecordFlowState(f.name, int(s))
	}
	f.logger.Debug("flow state changed", "state", s.String())
}

// Start opens the publisher and sources, spawns the worker pools and
// consumer goroutines, and transitions the flow to Running. On any
// setup failure, already-opened resources are unwound in reverse order
// and the flow ends in Failed.
func (f *Flow) Start(ctx context.Context) error {
	if !f.state.CompareAndSwap(int32(StateCreated), int32(StateStarting)) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Flow", "Start",
			"flow is "+f.State().String())
	}
	f.setState(StateStarting)

	var opened []func()
	unwind := func() {
		for i := len(opened) - 1; i >= 0; i-- {
			opened[i]()
		}
		f.setState(StateFailed)
	}

	if err := f.publisher.Open(ctx); err != nil {
		unwind()
		return errors.WrapFatal(err, "Flow", "Start", "open publisher")
	}
	opened = append(opened, func() { _ = f.publisher.Close() })

	for i, binding := range f.sources {
		if err := binding.source.Open(ctx); err != nil {
			unwind()
			return errors.WrapFatal(err, "Flow", "Start",
				fmt.Sprintf("open source %d", i))
		}
		src := binding.source
		opened = append(opened, func() { _ = src.Close() })

		if err := binding.source.Subscribe(binding.topics...); err != nil {
			unwind()
			return errors.WrapFatal(err, "Flow", "Start",
				fmt.Sprintf("subscribe source %d", i))
		}
	}

	// Pools run on an internal context so parent cancellation cannot
	// interrupt a drain; Stop owns their lifecycle.
	poolCtx := context.Background()
	if err := f.domainPool.Start(poolCtx); err != nil {
		unwind()
		return errors.WrapFatal(err, "Flow", "Start", "start domain pool")
	}
	opened = append(opened, func() { _ = f.domainPool.Stop(false, time.Second) })

	if err := f.publishPool.Start(poolCtx); err != nil {
		unwind()
		return errors.WrapFatal(err, "Flow", "Start", "start publish pool")
	}

	consumerCtx, cancel := context.WithCancel(context.Background())
	f.consumerCancel = cancel
	for _, binding := range f.sources {
		f.consumerWG.Add(1)
		go f.consumeLoop(consumerCtx, binding)
	}

	if f.prom != nil {
		f.consumerWG.Add(1)
		go f.metricsUpdater(consumerCtx)
	}

	f.setState(StateRunning)
	f.logger.Info("flow started",
		"sources", len(f.sources),
		"workers", f.domainPool.Stats().Workers,
		"domain_queue_capacity", f.domainQueue.Capacity(),
		"publish_queue_capacity", f.publishQueue.Capacity())
	return nil
}

// consumeLoop is the per-source consumer: throttle on back-pressure,
// short-poll the source, account, and hand off to the domain queue.
func (f *Flow) consumeLoop(ctx context.Context, binding sourceBinding) {
	defer f.consumerWG.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if f.bpDomain.ShouldThrottle() {
			time.Sleep(throttleSleep)
			continue
		}

		msg, err := binding.source.Consume(pollTimeout)
		if err != nil {
			if errors.IsFatal(err) {
				f.logger.Error("fatal source error", "error", err)
				f.fail(err)
				return
			}
			f.logger.Warn("transient consume error", "error", err)
			continue
		}
		if msg == nil {
			continue
		}

		f.collector.RecordSource(msg.SourceTopic, msg.Size())

		if err := f.domainQueue.Put(msg); err != nil {
			// Queue closed: shutdown has begun
			return
		}

		if err := binding.source.Commit(msg); err != nil {
			f.logger.Warn("commit failed", "topic", msg.SourceTopic, "error", err)
		}
	}
}

// metricsUpdater periodically publishes queue depths to the Prometheus
// core metrics.
func (f *Flow) metricsUpdater(ctx context.Context) {
	defer f.consumerWG.Done()

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.prom.RecordQueueDepth("domain", f.domainQueue.Size())
			f.prom.RecordQueueDepth("publish", f.publishQueue.Size())
		}
	}
}

// domainWork runs in the domain pool: apply the processor, resolve the
// destination, and hand off to the publish queue.
func (f *Flow) domainWork(_ context.Context, msg *message.Message) error {
	start := time.Now()

	out, err := f.proc.Process(msg)
	if err != nil {
		f.collector.ErrorSource(msg.SourceTopic)
		f.logger.Warn("processor error", "topic", msg.SourceTopic, "error", err)
		return err
	}
	if out == nil {
		// Intentional filter drop
		f.filterDrops.Add(1)
		return nil
	}

	topic, err := f.pickDestination(out)
	if err != nil {
		f.collector.ErrorSource(msg.SourceTopic)
		f.logger.Warn("destination resolution failed", "topic", msg.SourceTopic, "error", err)
		return err
	}
	out.DestinationTopic = topic

	// Let the publish stage drain below its watermark before piling on;
	// the blocking Put below is the hard back-pressure boundary.
	for f.bpPublish.ShouldThrottle() && !f.publishQueue.IsClosed() {
		time.Sleep(throttleSleep)
	}

	if err := f.publishQueue.Put(out); err != nil {
		return err
	}

	if f.prom != nil {
		f.prom.RecordProcessingDuration("domain", time.Since(start))
	}
	return nil
}

// publishWork runs in the publish pool: deliver one message and account
// for the outcome.
func (f *Flow) publishWork(_ context.Context, msg *message.Message) error {
	start := time.Now()

	pub := f.publisherFor(msg)
	if err := pub.Publish(msg.DestinationTopic, msg); err != nil {
		f.collector.ErrorDestination(msg.DestinationTopic)
		if errors.IsFatal(err) {
			f.logger.Error("fatal publish error", "topic", msg.DestinationTopic, "error", err)
			f.fail(err)
		} else {
			f.logger.Warn("publish failed", "topic", msg.DestinationTopic, "error", err)
		}
		return err
	}

	f.collector.RecordDestination(msg.DestinationTopic, msg.Size())
	if f.prom != nil {
		f.prom.RecordProcessingDuration("publish", time.Since(start))
	}
	return nil
}

// fail records the first unrecoverable error and initiates a best-effort
// drain in the background.
func (f *Flow) fail(err error) {
	f.failMu.Lock()
	if f.failErr == nil {
		f.failErr = err
	}
	f.failMu.Unlock()

	go f.Stop()
}

// Stop drains and shuts the flow down within the configured budget:
// stop consumers, close and drain the domain queue, close and drain the
// publish queue, flush and close the publisher, close the sources.
// Idempotent; safe to call from any state.
func (f *Flow) Stop() {
	f.stopOnce.Do(f.stop)
	<-f.done
}

func (f *Flow) stop() {
	defer close(f.done)

	if f.State() == StateCreated {
		// Never started; nothing to unwind
		f.setState(StateStopped)
		return
	}
	setupFailed := f.State() == StateFailed

	f.setState(StateDraining)
	deadline := time.Now().Add(f.shutdownTimeout)
	remaining := func() time.Duration {
		r := time.Until(deadline)
		if r < time.Second {
			// Every shutdown step gets at least a small window even
			// when the budget is spent
			return time.Second
		}
		return r
	}

	// 1. Stop source consumers; in-flight deliveries finish first
	if f.consumerCancel != nil {
		f.consumerCancel()
	}
	consumersDone := make(chan struct{})
	go func() {
		f.consumerWG.Wait()
		close(consumersDone)
	}()
	select {
	case <-consumersDone:
	case <-time.After(remaining()):
		f.logger.Warn("consumers did not stop in time, abandoning")
	}

	// 2. Drain the domain stage
	f.domainQueue.Close()
	if err := f.domainPool.Stop(true, remaining()); err != nil {
		f.logger.Warn("domain pool shutdown incomplete", "error", err)
	}

	// 3. Drain the publish stage
	f.publishQueue.Close()
	if err := f.publishPool.Stop(true, remaining()); err != nil {
		f.logger.Warn("publish pool shutdown incomplete", "error", err)
	}

	// 4. Flush and close the publisher, then the sources
	if err := f.publisher.Flush(remaining()); err != nil {
		f.logger.Warn("publisher flush failed", "error", err)
	}
	if err := f.publisher.Close(); err != nil {
		f.logger.Warn("publisher close failed", "error", err)
	}
	for i, binding := range f.sources {
		if err := binding.source.Close(); err != nil {
			f.logger.Warn("source close failed", "source", i, "error", err)
		}
	}

	f.failMu.Lock()
	failed := f.failErr != nil || setupFailed
	f.failMu.Unlock()

	if failed {
		f.setState(StateFailed)
	} else {
		f.setState(StateStopped)
	}

	snap := f.collector.Snapshot()
	f.logger.Info("flow stopped",
		"state", f.State().String(),
		"uptime_seconds", snap.UptimeSeconds,
		"filter_drops", f.filterDrops.Load(),
		"source_topics", len(snap.Source),
		"destination_topics", len(snap.Destination))
}
