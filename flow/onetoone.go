package flow

import (
	"fmt"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
)

// NewOneToOne builds a one-to-one flow: the source subscribes to every
// mapped source topic and each message is published to its mapped
// destination. A message arriving on an unmapped topic (possible only
// if the broker subscription is wider than the config) is dropped with
// a source-side error.
//
// Per-source-topic FIFO order is preserved end to end only when
// thread_pool.max_workers is 1; larger pools reorder across workers.
func NewOneToOne(cfg *config.Config, registry *broker.Registry, deps broker.Dependencies) (*Flow, error) {
	if cfg.OneToOne == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Flow", "NewOneToOne",
			"one_to_one configuration")
	}
	oc := cfg.OneToOne

	src, err := registry.NewSource(oc.Source.Type, oc.Source.Connection, deps)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Flow", "NewOneToOne", "create source")
	}

	publisher, err := registry.NewPublisher(oc.Destination.Type, oc.Destination.Connection, deps)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Flow", "NewOneToOne", "create publisher")
	}

	topicMap := make(map[string]string, len(oc.Mappings))
	topics := make([]string, 0, len(oc.Mappings))
	for _, m := range oc.Mappings {
		topicMap[m.SourceTopic] = m.DestinationTopic
		topics = append(topics, m.SourceTopic)
	}

	pick := func(msg *message.Message) (string, error) {
		destination, ok := topicMap[msg.SourceTopic]
		if !ok {
			return "", errors.WrapTransient(
				fmt.Errorf("%w: source topic %q", errors.ErrNoMapping, msg.SourceTopic),
				"Flow", "pickDestination", "mapping lookup")
		}
		return destination, nil
	}

	sources := []sourceBinding{{source: src, topics: topics}}
	return newFlow(config.ModeOneToOne, cfg, deps, sources, publisher, pick)
}
