package flow

import (
	"fmt"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
)

// NewFunnel builds a funnel flow: every configured source feeds the
// single destination topic. One consumer goroutine runs per source;
// each source adapter handles its own topic list. Headers and payloads
// pass through untouched; metadata keys from distinct sources may
// collide and are not merged or renamed.
func NewFunnel(cfg *config.Config, registry *broker.Registry, deps broker.Dependencies) (*Flow, error) {
	if cfg.Funnel == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Flow", "NewFunnel",
			"funnel configuration")
	}
	fc := cfg.Funnel

	sources := make([]sourceBinding, 0, len(fc.Sources))
	for i, sc := range fc.Sources {
		src, err := registry.NewSource(sc.Type, sc.Connection, deps)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Flow", "NewFunnel",
				fmt.Sprintf("create source %d", i))
		}
		sources = append(sources, sourceBinding{source: src, topics: sc.Topics})
	}

	publisher, err := registry.NewPublisher(fc.Destination.Type, fc.Destination.Connection, deps)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Flow", "NewFunnel", "create publisher")
	}

	destination := fc.DestinationTopic
	pick := func(*message.Message) (string, error) {
		return destination, nil
	}

	return newFlow(config.ModeFunnel, cfg, deps, sources, publisher, pick)
}
