// Package brokerregistry registers all bundled broker adapters with a
// broker registry. Keeping registration separate from the broker
// package avoids import cycles between the contracts and the adapters.
package brokerregistry

import (
	"errors"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/broker/kafka"
	"github.com/c360/streambridge/broker/mock"
	natsbroker "github.com/c360/streambridge/broker/nats"
	"github.com/c360/streambridge/broker/ws"
	pkgerrors "github.com/c360/streambridge/errors"
)

// Register registers the bundled adapters with the provided registry:
//
//   - mock: in-memory adapter for tests and demos
//   - kafka: segmentio/kafka-go consumer groups and writers
//   - nats: core NATS subjects
//   - ws: WebSocket envelope bridging
func Register(registry *broker.Registry) error {
	if registry == nil {
		return pkgerrors.WrapFatal(
			errors.New("registry cannot be nil"),
			"BrokerRegistry", "Register", "registry validation")
	}

	type adapter struct {
		name      string
		source    broker.SourceFactory
		publisher broker.PublisherFactory
	}

	adapters := []adapter{
		{"mock", mock.NewSource, mock.NewPublisher},
		{"kafka", kafka.NewSource, kafka.NewPublisher},
		{"nats", natsbroker.NewSource, natsbroker.NewPublisher},
		{"ws", ws.NewSource, ws.NewPublisher},
	}

	for _, a := range adapters {
		if err := registry.RegisterSource(a.name, a.source); err != nil {
			return pkgerrors.WrapInvalid(err, "BrokerRegistry", "Register", a.name+" source registration")
		}
		if err := registry.RegisterPublisher(a.name, a.publisher); err != nil {
			return pkgerrors.WrapInvalid(err, "BrokerRegistry", "Register", a.name+" publisher registration")
		}
	}

	return nil
}
