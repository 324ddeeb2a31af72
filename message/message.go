package message

import (
	"time"

	"github.com/google/uuid"
)

// Message represents a single message in the bridge pipeline.
//
// SourceTopic identifies the channel the message was consumed from.
// DestinationTopic is empty until the flow engine resolves it in the
// domain stage; the publish stage hands it to the publisher as the
// target topic.
type Message struct {
	// ID uniquely identifies the message inside the bridge. Sources
	// assign it at capture time; brokers never see it unless an adapter
	// chooses to propagate it.
	ID string

	// Payload is the opaque message body.
	Payload []byte

	// Headers carries string key/value pairs. Keys are unique;
	// insertion order carries no meaning.
	Headers map[string]string

	// SourceTopic is the origin channel.
	SourceTopic string

	// DestinationTopic is set by the flow before publishing. Fan mode
	// overrides it per message.
	DestinationTopic string

	// Timestamp is the wall-clock moment of origin capture.
	Timestamp time.Time

	// Metadata holds broker-native delivery details (partition, offset,
	// delivery tag). The flow engine passes it through untouched.
	Metadata map[string]any
}

// New creates a message captured from sourceTopic with a fresh ID and
// the current timestamp.
func New(sourceTopic string, payload []byte, headers map[string]string) *Message {
	if headers == nil {
		headers = make(map[string]string)
	}
	return &Message{
		ID:          uuid.NewString(),
		Payload:     payload,
		Headers:     headers,
		SourceTopic: sourceTopic,
		Timestamp:   time.Now(),
	}
}

// Header returns the header value for key and whether it is present;
// a missing key yields the empty string and false.
func (m *Message) Header(key string) (string, bool) {
	v, ok := m.Headers[key]
	return v, ok
}

// SetHeader adds or replaces a header value.
func (m *Message) SetHeader(key, value string) {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[key] = value
}

// SetMetadata attaches a broker-native delivery detail.
func (m *Message) SetMetadata(key string, value any) {
	if m.Metadata == nil {
		m.Metadata = make(map[string]any)
	}
	m.Metadata[key] = value
}

// Size returns the accounted size of the message in bytes: payload plus
// encoded header keys and values plus the ID. Used for per-topic byte
// counters.
func (m *Message) Size() int {
	size := len(m.Payload)
	for k, v := range m.Headers {
		size += len(k) + len(v)
	}
	size += len(m.ID)
	return size
}

// Clone returns a copy with its own header and metadata maps. The
// payload slice is shared; processors that rewrite the payload must
// assign a new slice rather than write in place.
func (m *Message) Clone() *Message {
	clone := *m
	if m.Headers != nil {
		clone.Headers = make(map[string]string, len(m.Headers))
		for k, v := range m.Headers {
			clone.Headers[k] = v
		}
	}
	if m.Metadata != nil {
		clone.Metadata = make(map[string]any, len(m.Metadata))
		for k, v := range m.Metadata {
			clone.Metadata[k] = v
		}
	}
	return &clone
}
