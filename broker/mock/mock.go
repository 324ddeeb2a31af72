// Package mock provides an in-memory broker adapter used by the test
// suite and demo configurations. The source either replays messages
// pushed by the test, or synthesizes them when generation is enabled in
// the connection map; the publisher records everything it is given,
// grouped by topic.
package mock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
)

const defaultBuffer = 1024

// Source is an in-memory message source.
type Source struct {
	mu         sync.Mutex
	opened     bool
	closed     bool
	topics     []string
	queue      chan *message.Message
	commits    []string
	consumeErr error

	// Generation settings (demo mode)
	generate  bool
	interval  time.Duration
	remaining int
	sequence  int
}

// NewSource creates a mock source. Connection keys:
//
//	buffer      int  - queue capacity (default 1024)
//	generate    bool - synthesize messages instead of replaying pushes
//	count       int  - number of messages to generate (default 100)
//	interval_ms int  - delay between generated messages
func NewSource(connection map[string]any, _ broker.Dependencies) (broker.Source, error) {
	buffer := defaultBuffer
	if v, ok := connection["buffer"].(int); ok && v > 0 {
		buffer = v
	}

	s := &Source{
		queue:     make(chan *message.Message, buffer),
		remaining: 100,
	}

	if v, ok := connection["generate"].(bool); ok {
		s.generate = v
	}
	if v, ok := connection["count"].(int); ok && v > 0 {
		s.remaining = v
	}
	if v, ok := connection["interval_ms"].(int); ok && v > 0 {
		s.interval = time.Duration(v) * time.Millisecond
	}

	return s, nil
}

// Open marks the source connected.
func (s *Source) Open(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.WrapFatal(errors.ErrAlreadyStopped, "MockSource", "Open", "reopen closed source")
	}
	s.opened = true
	return nil
}

// Subscribe records the topic set.
func (s *Source) Subscribe(topics ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.opened {
		return errors.WrapFatal(errors.ErrNotStarted, "MockSource", "Subscribe", "not opened")
	}
	s.topics = append([]string{}, topics...)
	return nil
}

// Push enqueues a message for the flow to consume. Test helper.
func (s *Source) Push(topic string, payload []byte, headers map[string]string) error {
	return s.PushMessage(message.New(topic, payload, headers))
}

// PushMessage enqueues a prepared message. Test helper.
func (s *Source) PushMessage(msg *message.Message) error {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return errors.WrapTransient(errors.ErrAlreadyStopped, "MockSource", "PushMessage", "source closed")
	}

	select {
	case s.queue <- msg:
		return nil
	default:
		return errors.WrapTransient(fmt.Errorf("mock source buffer full"), "MockSource", "PushMessage", "enqueue")
	}
}

// SetConsumeError makes the next Consume call return err. Test helper
// for exercising the flow's fatal-error path.
func (s *Source) SetConsumeError(err error) {
	s.mu.Lock()
	s.consumeErr = err
	s.mu.Unlock()
}

// Consume returns the next pushed or generated message, or (nil, nil)
// when idle.
func (s *Source) Consume(timeout time.Duration) (*message.Message, error) {
	s.mu.Lock()
	if s.consumeErr != nil {
		err := s.consumeErr
		s.consumeErr = nil
		s.mu.Unlock()
		return nil, err
	}
	if s.closed {
		s.mu.Unlock()
		return nil, nil
	}
	if s.generate {
		msg := s.generateLocked()
		s.mu.Unlock()
		if msg == nil {
			// Exhausted: behave like an idle broker poll
			time.Sleep(timeout)
			return nil, nil
		}
		if s.interval > 0 {
			time.Sleep(s.interval)
		}
		return msg, nil
	}
	s.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-s.queue:
		return msg, nil
	case <-timer.C:
		return nil, nil
	}
}

// generateLocked synthesizes the next message round-robin over the
// subscribed topics. Caller holds the lock.
func (s *Source) generateLocked() *message.Message {
	if s.remaining <= 0 || len(s.topics) == 0 {
		return nil
	}
	s.sequence++
	s.remaining--
	topic := s.topics[s.sequence%len(s.topics)]
	msg := message.New(topic,
		[]byte(fmt.Sprintf("mock message %d", s.sequence)),
		map[string]string{"source": "mock", "sequence": fmt.Sprintf("%d", s.sequence)})
	return msg
}

// Commit records the message ID. Test helper state.
func (s *Source) Commit(msg *message.Message) error {
	if msg == nil {
		return nil
	}
	s.mu.Lock()
	s.commits = append(s.commits, msg.ID)
	s.mu.Unlock()
	return nil
}

// Commits returns the IDs of committed messages. Test helper.
func (s *Source) Commits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.commits...)
}

// Topics returns the subscribed topic set. Test helper.
func (s *Source) Topics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string{}, s.topics...)
}

// Close marks the source closed. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Publisher records published messages grouped by topic.
type Publisher struct {
	mu         sync.Mutex
	opened     bool
	closed     bool
	flushed    int
	published  map[string][]*message.Message
	publishErr error
	errOnce    bool
	delay      time.Duration
}

// NewPublisher creates a mock publisher.
func NewPublisher(_ map[string]any, _ broker.Dependencies) (broker.Publisher, error) {
	return &Publisher{published: make(map[string][]*message.Message)}, nil
}

// Open marks the publisher connected.
func (p *Publisher) Open(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.WrapFatal(errors.ErrAlreadyStopped, "MockPublisher", "Open", "reopen closed publisher")
	}
	p.opened = true
	return nil
}

// SetPublishError makes Publish fail with err; once=true limits the
// failure to the next call. Test helper.
func (p *Publisher) SetPublishError(err error, once bool) {
	p.mu.Lock()
	p.publishErr = err
	p.errOnce = once
	p.mu.Unlock()
}

// SetPublishDelay makes every Publish sleep for d, simulating a slow
// broker. Test helper for back-pressure scenarios.
func (p *Publisher) SetPublishDelay(d time.Duration) {
	p.mu.Lock()
	p.delay = d
	p.mu.Unlock()
}

// Publish records the message under topic. Destinations are created
// lazily; any topic name is accepted.
func (p *Publisher) Publish(topic string, msg *message.Message) error {
	p.mu.Lock()
	delay := p.delay
	p.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.opened || p.closed {
		return errors.WrapFatal(errors.ErrNoConnection, "MockPublisher", "Publish", "not open")
	}
	if p.publishErr != nil {
		err := p.publishErr
		if p.errOnce {
			p.publishErr = nil
		}
		return err
	}

	p.published[topic] = append(p.published[topic], msg)
	return nil
}

// Flush counts flush calls. Test helper state.
func (p *Publisher) Flush(_ time.Duration) error {
	p.mu.Lock()
	p.flushed++
	p.mu.Unlock()
	return nil
}

// Close marks the publisher closed. Idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Messages returns the messages recorded for topic. Test helper.
func (p *Publisher) Messages(topic string) []*message.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*message.Message{}, p.published[topic]...)
}

// Payloads returns the recorded payloads for topic as strings. Test
// helper.
func (p *Publisher) Payloads(topic string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.published[topic]))
	for _, msg := range p.published[topic] {
		out = append(out, string(msg.Payload))
	}
	return out
}

// Topics returns the destination topics seen so far. Test helper.
func (p *Publisher) Topics() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.published))
	for topic := range p.published {
		out = append(out, topic)
	}
	return out
}

// TotalPublished returns the total recorded message count. Test helper.
func (p *Publisher) TotalPublished() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, msgs := range p.published {
		total += len(msgs)
	}
	return total
}

// FlushCount returns how many times Flush was called. Test helper.
func (p *Publisher) FlushCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.flushed
}
