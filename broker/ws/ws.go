// Package ws provides a WebSocket broker adapter for bridging to and
// from federated endpoints that speak a simple JSON envelope:
//
//	{"topic": "...", "headers": {...}, "payload": "<base64>"}
//
// The source connects as a client and treats each received envelope as
// one message; frames that do not parse as envelopes are attributed to
// the first subscribed topic. The publisher writes one envelope per
// message. gorilla/websocket connections are not safe for concurrent
// writers, so the publisher serializes writes with a mutex.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
	"github.com/c360/streambridge/pkg/retry"
)

// Envelope is the wire format for messages crossing the WebSocket.
type Envelope struct {
	Topic   string            `json:"topic"`
	Headers map[string]string `json:"headers,omitempty"`
	Payload []byte            `json:"payload"`
}

// Config holds connection settings.
type Config struct {
	URL              string
	HandshakeTimeout time.Duration
	Buffer           int
}

func parseConfig(connection map[string]any) (Config, error) {
	cfg := Config{
		HandshakeTimeout: 10 * time.Second,
		Buffer:           1024,
	}

	url, ok := connection["url"].(string)
	if !ok || url == "" {
		return cfg, errors.WrapInvalid(errors.ErrMissingConfig, "Config", "parseConfig",
			"websocket url is required")
	}
	cfg.URL = url

	if v, ok := connection["handshake_timeout_ms"].(int); ok && v > 0 {
		cfg.HandshakeTimeout = time.Duration(v) * time.Millisecond
	}
	if v, ok := connection["buffer"].(int); ok && v > 0 {
		cfg.Buffer = v
	}
	return cfg, nil
}

func dial(ctx context.Context, cfg Config) (*websocket.Conn, error) {
	dialer := websocket.Dialer{HandshakeTimeout: cfg.HandshakeTimeout}
	return retry.DoWithResult(ctx, retry.Connect(), func() (*websocket.Conn, error) {
		conn, _, err := dialer.DialContext(ctx, cfg.URL, nil)
		return conn, err
	})
}

// Source consumes envelopes from a WebSocket endpoint.
type Source struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	topics   []string
	delivery chan *message.Message
	closed   bool
	wg       sync.WaitGroup
}

// NewSource creates a WebSocket source adapter.
func NewSource(connection map[string]any, deps broker.Dependencies) (broker.Source, error) {
	cfg, err := parseConfig(connection)
	if err != nil {
		return nil, err
	}
	return &Source{
		config:   cfg,
		logger:   deps.GetLogger(),
		delivery: make(chan *message.Message, cfg.Buffer),
	}, nil
}

// Open dials the endpoint with backoff retries.
func (s *Source) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	conn, err := dial(ctx, s.config)
	if err != nil {
		return errors.WrapFatal(err, "Source", "Open", "dial websocket")
	}
	s.conn = conn

	s.logger.Info("websocket source connected", "url", s.config.URL)
	return nil
}

// Subscribe records the topic filter and starts the read pump. An empty
// filter accepts every envelope.
func (s *Source) Subscribe(topics ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return errors.WrapFatal(errors.ErrNotStarted, "Source", "Subscribe", "not opened")
	}
	s.topics = append([]string{}, topics...)

	s.wg.Add(1)
	go s.readPump(s.conn)
	return nil
}

// readPump converts incoming frames to messages until the connection
// drops or the source closes.
func (s *Source) readPump(conn *websocket.Conn) {
	defer s.wg.Done()

	accepted := make(map[string]bool, len(s.topics))
	for _, t := range s.topics {
		accepted[t] = true
	}
	fallback := ""
	if len(s.topics) > 0 {
		fallback = s.topics[0]
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var envelope Envelope
		var msg *message.Message
		if jsonErr := json.Unmarshal(data, &envelope); jsonErr == nil && envelope.Topic != "" {
			if len(accepted) > 0 && !accepted[envelope.Topic] {
				continue
			}
			msg = message.New(envelope.Topic, envelope.Payload, envelope.Headers)
		} else {
			if fallback == "" {
				continue
			}
			msg = message.New(fallback, data, nil)
		}

		select {
		case s.delivery <- msg:
		default:
			s.logger.Warn("websocket source buffer full, dropping frame",
				"topic", msg.SourceTopic)
		}
	}
}

// Consume returns the next received message, or (nil, nil) when idle.
func (s *Source) Consume(timeout time.Duration) (*message.Message, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case msg := <-s.delivery:
		return msg, nil
	case <-timer.C:
		return nil, nil
	}
}

// Commit is a no-op: the envelope protocol carries no acks.
func (s *Source) Commit(_ *message.Message) error {
	return nil
}

// Close drops the connection and stops the read pump. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = conn.Close()
	}
	s.wg.Wait()
	return nil
}

// Publisher writes envelopes to a WebSocket endpoint.
type Publisher struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex // also serializes writes: gorilla conns are single-writer
	conn   *websocket.Conn
	closed bool
}

// NewPublisher creates a WebSocket publisher adapter.
func NewPublisher(connection map[string]any, deps broker.Dependencies) (broker.Publisher, error) {
	cfg, err := parseConfig(connection)
	if err != nil {
		return nil, err
	}
	return &Publisher{config: cfg, logger: deps.GetLogger()}, nil
}

// Open dials the endpoint with backoff retries.
func (p *Publisher) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return nil
	}

	conn, err := dial(ctx, p.config)
	if err != nil {
		return errors.WrapFatal(err, "Publisher", "Open", "dial websocket")
	}
	p.conn = conn

	p.logger.Info("websocket publisher connected", "url", p.config.URL)
	return nil
}

// Publish writes one envelope for msg under topic.
func (p *Publisher) Publish(topic string, msg *message.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.conn == nil || p.closed {
		return errors.WrapFatal(errors.ErrNoConnection, "Publisher", "Publish", "not open")
	}

	envelope := Envelope{
		Topic:   topic,
		Headers: msg.Headers,
		Payload: msg.Payload,
	}
	if err := p.conn.WriteJSON(envelope); err != nil {
		if websocket.IsUnexpectedCloseError(err) {
			return errors.WrapFatal(err, "Publisher", "Publish", "write envelope")
		}
		return errors.WrapTransient(err, "Publisher", "Publish", "write envelope")
	}
	return nil
}

// Flush is a no-op: frames are written synchronously.
func (p *Publisher) Flush(_ time.Duration) error {
	return nil
}

// Close sends a close frame and drops the connection. Idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.conn != nil {
		_ = p.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		_ = p.conn.Close()
		p.conn = nil
	}
	return nil
}
