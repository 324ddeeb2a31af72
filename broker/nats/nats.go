// Package nats provides the NATS broker adapter. Topics map directly
// to NATS subjects. Core NATS has no delivery offsets, so Commit is a
// no-op; at-most-once redelivery semantics come from the server.
package nats

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
	"github.com/c360/streambridge/pkg/retry"
)

const defaultURL = nats.DefaultURL

// Config holds connection settings shared by source and publisher.
type Config struct {
	URL           string
	Name          string
	Username      string
	Password      string
	Token         string
	MaxReconnects int
	ReconnectWait time.Duration
}

func parseConfig(connection map[string]any) Config {
	cfg := Config{
		URL:           defaultURL,
		MaxReconnects: 10,
		ReconnectWait: 2 * time.Second,
	}

	if v, ok := connection["url"].(string); ok && v != "" {
		cfg.URL = v
	}
	if v, ok := connection["name"].(string); ok {
		cfg.Name = v
	}
	if v, ok := connection["username"].(string); ok {
		cfg.Username = v
	}
	if v, ok := connection["password"].(string); ok {
		cfg.Password = v
	}
	if v, ok := connection["token"].(string); ok {
		cfg.Token = v
	}
	if v, ok := connection["max_reconnects"].(int); ok {
		cfg.MaxReconnects = v
	}
	if v, ok := connection["reconnect_wait_ms"].(int); ok && v > 0 {
		cfg.ReconnectWait = time.Duration(v) * time.Millisecond
	}

	return cfg
}

func (c Config) options() []nats.Option {
	opts := []nats.Option{
		nats.MaxReconnects(c.MaxReconnects),
		nats.ReconnectWait(c.ReconnectWait),
	}
	if c.Name != "" {
		opts = append(opts, nats.Name(c.Name))
	}
	if c.Username != "" {
		opts = append(opts, nats.UserInfo(c.Username, c.Password))
	}
	if c.Token != "" {
		opts = append(opts, nats.Token(c.Token))
	}
	return opts
}

func connect(ctx context.Context, cfg Config) (*nats.Conn, error) {
	return retry.DoWithResult(ctx, retry.Connect(), func() (*nats.Conn, error) {
		return nats.Connect(cfg.URL, cfg.options()...)
	})
}

// Source consumes NATS subjects through a shared delivery channel.
type Source struct {
	config Config
	logger *slog.Logger

	mu       sync.Mutex
	conn     *nats.Conn
	subs     []*nats.Subscription
	delivery chan *nats.Msg
	closed   bool
}

// NewSource creates a NATS source adapter.
func NewSource(connection map[string]any, deps broker.Dependencies) (broker.Source, error) {
	return &Source{
		config:   parseConfig(connection),
		logger:   deps.GetLogger(),
		delivery: make(chan *nats.Msg, 1024),
	}, nil
}

// Open connects to the server with backoff retries.
func (s *Source) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != nil {
		return nil
	}

	conn, err := connect(ctx, s.config)
	if err != nil {
		return errors.WrapFatal(err, "Source", "Open", "connect to nats")
	}
	s.conn = conn

	s.logger.Info("nats source connected", "url", s.config.URL)
	return nil
}

// Subscribe opens one channel subscription per topic, all feeding the
// shared delivery channel.
func (s *Source) Subscribe(topics ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return errors.WrapFatal(errors.ErrNotStarted, "Source", "Subscribe", "not opened")
	}

	for _, topic := range topics {
		sub, err := s.conn.ChanSubscribe(topic, s.delivery)
		if err != nil {
			return errors.WrapFatal(err, "Source", "Subscribe",
				"subscribe to "+topic)
		}
		s.subs = append(s.subs, sub)
	}

	s.logger.Info("nats source subscribed", "topics", topics)
	return nil
}

// Consume returns the next delivered message, or (nil, nil) when the
// poll window expires.
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
	case natsMsg, ok := <-s.delivery:
		if !ok {
			return nil, nil
		}
		headers := make(map[string]string, len(natsMsg.Header))
		for k, values := range natsMsg.Header {
			if len(values) > 0 {
				headers[k] = values[0]
			}
		}
		msg := message.New(natsMsg.Subject, natsMsg.Data, headers)
		msg.SetMetadata("subject", natsMsg.Subject)
		return msg, nil
	case <-timer.C:
		return nil, nil
	}
}

// Commit is a no-op: core NATS tracks no delivery offsets.
func (s *Source) Commit(_ *message.Message) error {
	return nil
}

// Close unsubscribes and drops the connection. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	for _, sub := range s.subs {
		if err := sub.Unsubscribe(); err != nil {
			s.logger.Warn("nats unsubscribe failed", "error", err)
		}
	}
	s.subs = nil

	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	return nil
}

// Publisher publishes to NATS subjects.
type Publisher struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	conn   *nats.Conn
	closed bool
}

// NewPublisher creates a NATS publisher adapter.
func NewPublisher(connection map[string]any, deps broker.Dependencies) (broker.Publisher, error) {
	return &Publisher{config: parseConfig(connection), logger: deps.GetLogger()}, nil
}

// Open connects to the server with backoff retries.
func (p *Publisher) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return nil
	}

	conn, err := connect(ctx, p.config)
	if err != nil {
		return errors.WrapFatal(err, "Publisher", "Open", "connect to nats")
	}
	p.conn = conn

	p.logger.Info("nats publisher connected", "url", p.config.URL)
	return nil
}

// Publish sends msg to the subject named by topic. nats.Conn is safe
// for concurrent publishers.
func (p *Publisher) Publish(topic string, msg *message.Message) error {
	p.mu.Lock()
	conn := p.conn
	closed := p.closed
	p.mu.Unlock()

	if conn == nil || closed {
		return errors.WrapFatal(errors.ErrNoConnection, "Publisher", "Publish", "not open")
	}

	natsMsg := &nats.Msg{
		Subject: topic,
		Data:    msg.Payload,
	}
	if len(msg.Headers) > 0 {
		natsMsg.Header = make(nats.Header, len(msg.Headers))
		for k, v := range msg.Headers {
			natsMsg.Header.Set(k, v)
		}
	}

	if err := conn.PublishMsg(natsMsg); err != nil {
		if conn.IsClosed() {
			return errors.WrapFatal(err, "Publisher", "Publish", "publish message")
		}
		return errors.WrapTransient(err, "Publisher", "Publish", "publish message")
	}
	return nil
}

// Flush pushes buffered messages to the server within the deadline.
func (p *Publisher) Flush(timeout time.Duration) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.FlushTimeout(timeout); err != nil {
		return errors.WrapTransient(err, "Publisher", "Flush", "flush")
	}
	return nil
}

// Close flushes and drops the connection. Idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.conn != nil {
		if err := p.conn.FlushTimeout(5 * time.Second); err != nil {
			p.logger.Warn("nats flush on close failed", "error", err)
		}
		p.conn.Close()
		p.conn = nil
	}
	return nil
}
