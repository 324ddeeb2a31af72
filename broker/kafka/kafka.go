// Package kafka provides the Kafka broker adapter built on
// segmentio/kafka-go. The source wraps a consumer-group reader over the
// subscribed topics; the publisher wraps a single writer that routes by
// per-message topic, creating destination topics lazily.
package kafka

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
	"github.com/c360/streambridge/pkg/retry"
)

// metadata key carrying the broker message for commit correlation
const metadataKey = "kafka_message"

// Config holds connection settings shared by source and publisher.
type Config struct {
	Brokers        []string
	GroupID        string
	MinBytes       int
	MaxBytes       int
	CommitInterval time.Duration
	StartOffset    int64
	BatchTimeout   time.Duration
	RequiredAcks   kafka.RequiredAcks
}

// parseConfig extracts settings from the adapter connection map.
func parseConfig(connection map[string]any) (Config, error) {
	cfg := Config{
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: time.Second,
		StartOffset:    kafka.LastOffset,
		BatchTimeout:   10 * time.Millisecond,
		RequiredAcks:   kafka.RequireOne,
	}

	cfg.Brokers = stringSlice(connection["brokers"])
	if len(cfg.Brokers) == 0 {
		return cfg, errors.WrapInvalid(errors.ErrMissingConfig, "Config", "parseConfig",
			"kafka brokers list is required")
	}

	if v, ok := connection["group_id"].(string); ok {
		cfg.GroupID = v
	}
	if v, ok := connection["min_bytes"].(int); ok && v > 0 {
		cfg.MinBytes = v
	}
	if v, ok := connection["max_bytes"].(int); ok && v > 0 {
		cfg.MaxBytes = v
	}
	if v, ok := connection["commit_interval_ms"].(int); ok && v > 0 {
		cfg.CommitInterval = time.Duration(v) * time.Millisecond
	}
	if v, ok := connection["start_offset"].(string); ok && v == "first" {
		cfg.StartOffset = kafka.FirstOffset
	}
	if v, ok := connection["required_acks"].(string); ok {
		switch v {
		case "all", "-1":
			cfg.RequiredAcks = kafka.RequireAll
		case "0":
			cfg.RequiredAcks = kafka.RequireNone
		}
	}

	return cfg, nil
}

func stringSlice(v any) []string {
	switch vv := v.(type) {
	case []string:
		return vv
	case []any:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if vv == "" {
			return nil
		}
		return []string{vv}
	default:
		return nil
	}
}

// Source consumes from Kafka through a consumer-group reader.
type Source struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	reader *kafka.Reader
	topics []string
	opened bool
	closed bool
}

// NewSource creates a Kafka source adapter.
func NewSource(connection map[string]any, deps broker.Dependencies) (broker.Source, error) {
	cfg, err := parseConfig(connection)
	if err != nil {
		return nil, err
	}
	if cfg.GroupID == "" {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Source", "NewSource",
			"kafka group_id is required for sources")
	}
	return &Source{config: cfg, logger: deps.GetLogger()}, nil
}

// Open verifies at least one broker is reachable, with connect retries.
func (s *Source) Open(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.opened {
		return nil
	}

	if err := dialAny(ctx, s.config.Brokers); err != nil {
		return errors.WrapFatal(err, "Source", "Open", "connect to kafka")
	}

	s.opened = true
	return nil
}

// Subscribe builds the consumer-group reader over the topic set.
func (s *Source) Subscribe(topics ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opened {
		return errors.WrapFatal(errors.ErrNotStarted, "Source", "Subscribe", "not opened")
	}
	if len(topics) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Source", "Subscribe", "no topics")
	}

	readerConfig := kafka.ReaderConfig{
		Brokers:        s.config.Brokers,
		GroupID:        s.config.GroupID,
		MinBytes:       s.config.MinBytes,
		MaxBytes:       s.config.MaxBytes,
		CommitInterval: s.config.CommitInterval,
		StartOffset:    s.config.StartOffset,
	}
	if len(topics) == 1 {
		readerConfig.Topic = topics[0]
	} else {
		readerConfig.GroupTopics = topics
	}

	s.reader = kafka.NewReader(readerConfig)
	s.topics = append([]string{}, topics...)

	s.logger.Info("kafka source subscribed",
		"brokers", s.config.Brokers,
		"group_id", s.config.GroupID,
		"topics", topics)
	return nil
}

// Consume fetches the next message, blocking up to timeout. Returns
// (nil, nil) when the poll window expires with nothing to read.
func (s *Source) Consume(timeout time.Duration) (*message.Message, error) {
	s.mu.Lock()
	reader := s.reader
	closed := s.closed
	s.mu.Unlock()

	if closed {
		return nil, nil
	}
	if reader == nil {
		return nil, errors.WrapFatal(errors.ErrNotStarted, "Source", "Consume", "not subscribed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	kafkaMsg, err := reader.FetchMessage(ctx)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) || stderrors.Is(err, context.Canceled) {
			return nil, nil
		}
		return nil, errors.WrapTransient(err, "Source", "Consume", "fetch message")
	}

	headers := make(map[string]string, len(kafkaMsg.Headers))
	for _, h := range kafkaMsg.Headers {
		headers[h.Key] = string(h.Value)
	}

	msg := message.New(kafkaMsg.Topic, kafkaMsg.Value, headers)
	if !kafkaMsg.Time.IsZero() {
		msg.Timestamp = kafkaMsg.Time
	}
	msg.SetMetadata("partition", kafkaMsg.Partition)
	msg.SetMetadata("offset", kafkaMsg.Offset)
	if len(kafkaMsg.Key) > 0 {
		msg.SetMetadata("key", string(kafkaMsg.Key))
	}
	msg.SetMetadata(metadataKey, kafkaMsg)

	return msg, nil
}

// Commit acknowledges the message's offset with the consumer group.
func (s *Source) Commit(msg *message.Message) error {
	if msg == nil {
		return nil
	}

	s.mu.Lock()
	reader := s.reader
	s.mu.Unlock()
	if reader == nil {
		return nil
	}

	kafkaMsg, ok := msg.Metadata[metadataKey].(kafka.Message)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := reader.CommitMessages(ctx, kafkaMsg); err != nil {
		return errors.WrapTransient(err, "Source", "Commit", "commit offset")
	}
	return nil
}

// Close shuts down the reader. Idempotent.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	if s.reader != nil {
		if err := s.reader.Close(); err != nil {
			return errors.WrapTransient(err, "Source", "Close", "close reader")
		}
	}
	return nil
}

// Publisher produces to Kafka through a topic-per-message writer.
type Publisher struct {
	config Config
	logger *slog.Logger

	mu     sync.Mutex
	writer *kafka.Writer
	closed bool
}

// NewPublisher creates a Kafka publisher adapter.
func NewPublisher(connection map[string]any, deps broker.Dependencies) (broker.Publisher, error) {
	cfg, err := parseConfig(connection)
	if err != nil {
		return nil, err
	}
	return &Publisher{config: cfg, logger: deps.GetLogger()}, nil
}

// Open verifies broker reachability and builds the writer. Destination
// topics are not pre-declared; auto-creation handles fan-mode routing.
func (p *Publisher) Open(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		return nil
	}

	if err := dialAny(ctx, p.config.Brokers); err != nil {
		return errors.WrapFatal(err, "Publisher", "Open", "connect to kafka")
	}

	p.writer = &kafka.Writer{
		Addr:                   kafka.TCP(p.config.Brokers...),
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           p.config.RequiredAcks,
		BatchTimeout:           p.config.BatchTimeout,
		AllowAutoTopicCreation: true,
	}

	p.logger.Info("kafka publisher connected", "brokers", p.config.Brokers)
	return nil
}

// Publish writes msg to topic. kafka.Writer is safe for concurrent use,
// so publish workers call this without extra locking.
func (p *Publisher) Publish(topic string, msg *message.Message) error {
	p.mu.Lock()
	writer := p.writer
	closed := p.closed
	p.mu.Unlock()

	if writer == nil || closed {
		return errors.WrapFatal(errors.ErrNoConnection, "Publisher", "Publish", "not open")
	}

	headers := make([]kafka.Header, 0, len(msg.Headers))
	for k, v := range msg.Headers {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}

	kafkaMsg := kafka.Message{
		Topic:   topic,
		Value:   msg.Payload,
		Headers: headers,
		Time:    msg.Timestamp,
	}
	if key, ok := msg.Metadata["key"].(string); ok {
		kafkaMsg.Key = []byte(key)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := writer.WriteMessages(ctx, kafkaMsg); err != nil {
		return errors.WrapTransient(err, "Publisher", "Publish", "write message")
	}
	return nil
}

// Flush is a no-op: the writer flushes per WriteMessages call at the
// configured batch timeout.
func (p *Publisher) Flush(_ time.Duration) error {
	return nil
}

// Close flushes pending batches and releases the writer. Idempotent.
func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.writer != nil {
		if err := p.writer.Close(); err != nil {
			return errors.WrapTransient(err, "Publisher", "Close", "close writer")
		}
	}
	return nil
}

// dialAny verifies TCP reachability of at least one broker, retrying
// with backoff to ride out startup races.
func dialAny(ctx context.Context, brokers []string) error {
	return retry.Do(ctx, retry.Connect(), func() error {
		var lastErr error
		for _, addr := range brokers {
			conn, err := kafka.DialContext(ctx, "tcp", addr)
			if err == nil {
				return conn.Close()
			}
			lastErr = err
		}
		return fmt.Errorf("no kafka broker reachable: %w", lastErr)
	})
}
