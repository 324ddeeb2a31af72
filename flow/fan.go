package flow

import (
	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
)

// NewFan builds a fan flow: one source topic, destination resolved per
// message by header or JSON payload key. Destinations are discovered at
// runtime and never pre-declared; the publisher must tolerate arbitrary
// topic names. A message whose destination cannot be resolved is
// dropped with a source-side error and the flow continues.
func NewFan(cfg *config.Config, registry *broker.Registry, deps broker.Dependencies) (*Flow, error) {
	if cfg.Fan == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Flow", "NewFan",
			"fan configuration")
	}
	fc := cfg.Fan

	src, err := registry.NewSource(fc.Source.Type, fc.Source.Connection, deps)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Flow", "NewFan", "create source")
	}

	publisher, err := registry.NewPublisher(fc.Destination.Type, fc.Destination.Connection, deps)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Flow", "NewFan", "create publisher")
	}

	resolver, err := NewResolver(fc.DestinationResolver)
	if err != nil {
		return nil, err
	}

	sources := []sourceBinding{{source: src, topics: []string{fc.SourceTopic}}}
	return newFlow(config.ModeFan, cfg, deps, sources, publisher, resolver.Resolve)
}
