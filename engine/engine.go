package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/flow"
)

// Runner owns one flow for the lifetime of the process.
type Runner struct {
	cfg    *config.Config
	flow   *flow.Flow
	logger *slog.Logger
}

// New validates the configuration and builds the flow it selects.
func New(cfg *config.Config, registry *broker.Registry, deps broker.Dependencies) (*Runner, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	f, err := flow.New(cfg, registry, deps)
	if err != nil {
		return nil, errors.Wrap(err, "Runner", "New", "build flow")
	}

	return &Runner{
		cfg:    cfg,
		flow:   f,
		logger: deps.GetLogger(),
	}, nil
}

// Flow returns the managed flow.
func (r *Runner) Flow() *flow.Flow {
	return r.flow
}

// Run starts the flow and blocks until ctx is cancelled (typically by
// SIGINT/SIGTERM) or the flow terminates on its own, then drains and
// logs the final metrics snapshot. A non-nil return means the process
// should exit non-zero.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("starting flow",
		"mode", r.cfg.Mode,
		"max_workers", r.cfg.ThreadPool.MaxWorkers,
		"queue_size", r.cfg.ThreadPool.QueueSize,
		"back_pressure", r.cfg.BackPressure.Enabled,
		"shutdown_timeout", r.cfg.ShutdownTimeout())

	if err := r.flow.Start(ctx); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown requested")
	case <-r.flow.Done():
		// The flow terminated by itself; Stop below is a no-op
	}

	r.flow.Stop()
	r.reportFinalMetrics()

	if err := r.flow.Err(); err != nil {
		return err
	}
	if r.flow.State() == flow.StateFailed {
		return fmt.Errorf("flow ended in state %s", r.flow.State())
	}
	return nil
}

// reportFinalMetrics logs the closing snapshot, both sides keyed by
// topic.
func (r *Runner) reportFinalMetrics() {
	snap := r.flow.Metrics().Snapshot()

	r.logger.Info("final metrics",
		"uptime_seconds", fmt.Sprintf("%.2f", snap.UptimeSeconds),
		"filter_drops", r.flow.FilterDrops())

	for topic, tm := range snap.Source {
		r.logger.Info("source topic metrics",
			"topic", topic,
			"messages", tm.MessageCount,
			"bytes", tm.TotalBytes,
			"errors", tm.ErrorCount,
			"rate_per_second", fmt.Sprintf("%.2f", tm.RatePerSecond))
	}
	for topic, tm := range snap.Destination {
		r.logger.Info("destination topic metrics",
			"topic", topic,
			"messages", tm.MessageCount,
			"bytes", tm.TotalBytes,
			"errors", tm.ErrorCount,
			"rate_per_second", fmt.Sprintf("%.2f", tm.RatePerSecond))
	}
}
