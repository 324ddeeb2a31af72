package flow

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
)

// DestinationResolver derives a destination topic from a message in fan
// mode. Resolution failure is a per-message transient error: the
// message is dropped and counted against its source topic.
type DestinationResolver interface {
	Resolve(msg *message.Message) (string, error)
}

// NewResolver builds a resolver from its configuration.
func NewResolver(cfg config.ResolverConfig) (DestinationResolver, error) {
	switch cfg.Type {
	case "header":
		return &HeaderResolver{Key: cfg.Key}, nil
	case "payload_key":
		return &PayloadKeyResolver{Key: cfg.Key}, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("unknown resolver type %q", cfg.Type),
			"NewResolver", "NewResolver", "resolver config")
	}
}

// HeaderResolver routes by a message header value.
type HeaderResolver struct {
	Key string
}

// Resolve returns the header value, or a routing error when absent or
// empty.
func (r *HeaderResolver) Resolve(msg *message.Message) (string, error) {
	topic, ok := msg.Header(r.Key)
	if !ok || topic == "" {
		return "", errors.WrapTransient(
			fmt.Errorf("%w: header %q not present", errors.ErrRoutingFailed, r.Key),
			"HeaderResolver", "Resolve", "header lookup")
	}
	return topic, nil
}

// PayloadKeyResolver routes by a top-level key of a JSON object payload.
type PayloadKeyResolver struct {
	Key string
}

// Resolve parses the payload as a JSON object and coerces the value at
// the key to a topic string. Missing keys, non-object payloads, and
// unrepresentable values all fail routing.
func (r *PayloadKeyResolver) Resolve(msg *message.Message) (string, error) {
	var payload map[string]any
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return "", errors.WrapTransient(
			fmt.Errorf("%w: payload is not a JSON object: %v", errors.ErrRoutingFailed, err),
			"PayloadKeyResolver", "Resolve", "parse payload")
	}

	value, ok := payload[r.Key]
	if !ok {
		return "", errors.WrapTransient(
			fmt.Errorf("%w: payload key %q not present", errors.ErrRoutingFailed, r.Key),
			"PayloadKeyResolver", "Resolve", "key lookup")
	}

	switch v := value.(type) {
	case string:
		if v == "" {
			return "", errors.WrapTransient(
				fmt.Errorf("%w: payload key %q is empty", errors.ErrRoutingFailed, r.Key),
				"PayloadKeyResolver", "Resolve", "coerce value")
		}
		return v, nil
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), nil
	case bool:
		return strconv.FormatBool(v), nil
	default:
		return "", errors.WrapTransient(
			fmt.Errorf("%w: payload key %q has unroutable type %T", errors.ErrRoutingFailed, r.Key, value),
			"PayloadKeyResolver", "Resolve", "coerce value")
	}
}
