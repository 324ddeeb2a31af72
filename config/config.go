package config

import (
	"fmt"
	"time"

	"github.com/c360/streambridge/errors"
)

// Flow mode constants
const (
	ModeFunnel   = "funnel"     // many sources -> one destination topic
	ModeFan      = "fan"        // one source -> per-message destinations
	ModeOneToOne = "one_to_one" // mapped source -> destination topics
)

// Defaults for the shared pipeline settings
const (
	DefaultMaxWorkers      = 20
	DefaultQueueSize       = 2000
	DefaultHighWatermark   = 0.8
	DefaultLowWatermark    = 0.5
	DefaultShutdownSeconds = 30
)

// Config is the complete bridge configuration.
type Config struct {
	Mode           string             `yaml:"mode"`
	ThreadPool     ThreadPoolConfig   `yaml:"thread_pool"`
	BackPressure   BackPressureConfig `yaml:"back_pressure"`
	ProcessorClass string             `yaml:"processor_class"`
	ProcessorArgs  map[string]any     `yaml:"processor_args"`

	ShutdownTimeoutSeconds float64 `yaml:"shutdown_timeout_seconds"`

	Funnel   *FunnelConfig   `yaml:"funnel"`
	Fan      *FanConfig      `yaml:"fan"`
	OneToOne *OneToOneConfig `yaml:"one_to_one"`
}

// ThreadPoolConfig sizes the per-stage worker pools and inter-stage
// queues.
//
// With MaxWorkers set to 1, per-source-topic FIFO order is preserved
// end to end in one_to_one mode; larger pools trade ordering for
// throughput.
type ThreadPoolConfig struct {
	MaxWorkers int `yaml:"max_workers"`
	QueueSize  int `yaml:"queue_size"`
}

// BackPressureConfig controls the consume-side throttle gate.
type BackPressureConfig struct {
	Enabled            bool    `yaml:"enabled"`
	QueueHighWatermark float64 `yaml:"queue_high_watermark"`
	QueueLowWatermark  float64 `yaml:"queue_low_watermark"`
}

// BrokerConfig identifies one broker endpoint by adapter type plus an
// adapter-specific connection map.
type BrokerConfig struct {
	Type       string         `yaml:"type"`
	Connection map[string]any `yaml:"connection"`
	Topics     []string       `yaml:"topics"`
}

// FunnelConfig: many sources, one destination topic.
type FunnelConfig struct {
	Sources          []BrokerConfig `yaml:"sources"`
	Destination      BrokerConfig   `yaml:"destination"`
	DestinationTopic string         `yaml:"destination_topic"`
}

// ResolverConfig selects how fan mode derives the destination topic
// from a message: a header key or a top-level JSON payload key.
type ResolverConfig struct {
	Type string `yaml:"type"` // "header" or "payload_key"
	Key  string `yaml:"key"`
}

// FanConfig: one source topic, per-message destination resolution.
type FanConfig struct {
	Source              BrokerConfig   `yaml:"source"`
	SourceTopic         string         `yaml:"source_topic"`
	Destination         BrokerConfig   `yaml:"destination"`
	DestinationResolver ResolverConfig `yaml:"destination_resolver"`
}

// Mapping pairs one source topic with its destination topic.
type Mapping struct {
	SourceTopic      string `yaml:"source_topic"`
	DestinationTopic string `yaml:"destination_topic"`
}

// OneToOneConfig: a list of source->destination topic mappings over a
// single source/destination broker pair.
type OneToOneConfig struct {
	Source      BrokerConfig `yaml:"source"`
	Destination BrokerConfig `yaml:"destination"`
	Mappings    []Mapping    `yaml:"mappings"`
}

// Default returns a config pre-populated with all documented defaults.
// The loader unmarshals on top of it so absent fields keep these values.
func Default() *Config {
	return &Config{
		ThreadPool: ThreadPoolConfig{
			MaxWorkers: DefaultMaxWorkers,
			QueueSize:  DefaultQueueSize,
		},
		BackPressure: BackPressureConfig{
			Enabled:            true,
			QueueHighWatermark: DefaultHighWatermark,
			QueueLowWatermark:  DefaultLowWatermark,
		},
		ShutdownTimeoutSeconds: DefaultShutdownSeconds,
	}
}

// ShutdownTimeout returns the drain budget as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds * float64(time.Second))
}

// Validate checks the whole configuration. Every failure is classified
// invalid: the bridge refuses to start.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeFunnel, ModeFan, ModeOneToOne:
	case "":
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate", "mode is required")
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrUnknownMode, c.Mode),
			"Config", "Validate", "mode")
	}

	if c.ThreadPool.MaxWorkers < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"thread_pool.max_workers must be >= 1")
	}
	if c.ThreadPool.QueueSize < 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"thread_pool.queue_size must be >= 1")
	}

	high := c.BackPressure.QueueHighWatermark
	low := c.BackPressure.QueueLowWatermark
	if high <= 0 || high > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"back_pressure.queue_high_watermark must be in (0, 1]")
	}
	if low <= 0 || low > 1 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"back_pressure.queue_low_watermark must be in (0, 1]")
	}
	if low > high {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"back_pressure.queue_low_watermark must be <= queue_high_watermark")
	}

	if c.ShutdownTimeoutSeconds <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"shutdown_timeout_seconds must be positive")
	}

	switch c.Mode {
	case ModeFunnel:
		return c.validateFunnel()
	case ModeFan:
		return c.validateFan()
	case ModeOneToOne:
		return c.validateOneToOne()
	}
	return nil
}

func validateBroker(role string, bc BrokerConfig) error {
	if bc.Type == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			fmt.Sprintf("%s broker type is required", role))
	}
	return nil
}

func (c *Config) validateFunnel() error {
	if c.Funnel == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"funnel section is required in funnel mode")
	}
	if len(c.Funnel.Sources) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"funnel requires at least one source")
	}
	for i, src := range c.Funnel.Sources {
		if err := validateBroker(fmt.Sprintf("funnel source %d", i), src); err != nil {
			return err
		}
		if len(src.Topics) == 0 {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("funnel source %d requires at least one topic", i))
		}
	}
	if err := validateBroker("funnel destination", c.Funnel.Destination); err != nil {
		return err
	}
	if c.Funnel.DestinationTopic == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"funnel destination_topic is required")
	}
	return nil
}

func (c *Config) validateFan() error {
	if c.Fan == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"fan section is required in fan mode")
	}
	if err := validateBroker("fan source", c.Fan.Source); err != nil {
		return err
	}
	if c.Fan.SourceTopic == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"fan source_topic is required")
	}
	if err := validateBroker("fan destination", c.Fan.Destination); err != nil {
		return err
	}

	resolver := c.Fan.DestinationResolver
	if resolver.Type != "header" && resolver.Type != "payload_key" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"fan destination_resolver.type must be header or payload_key")
	}
	if resolver.Key == "" {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"fan destination_resolver.key is required")
	}
	return nil
}

func (c *Config) validateOneToOne() error {
	if c.OneToOne == nil {
		return errors.WrapInvalid(errors.ErrMissingConfig, "Config", "Validate",
			"one_to_one section is required in one_to_one mode")
	}
	if err := validateBroker("one_to_one source", c.OneToOne.Source); err != nil {
		return err
	}
	if err := validateBroker("one_to_one destination", c.OneToOne.Destination); err != nil {
		return err
	}
	if len(c.OneToOne.Mappings) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
			"one_to_one requires at least one mapping")
	}

	seen := make(map[string]bool, len(c.OneToOne.Mappings))
	for i, m := range c.OneToOne.Mappings {
		if m.SourceTopic == "" || m.DestinationTopic == "" {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("one_to_one mapping %d requires source_topic and destination_topic", i))
		}
		if seen[m.SourceTopic] {
			return errors.WrapInvalid(errors.ErrInvalidConfig, "Config", "Validate",
				fmt.Sprintf("duplicate one_to_one source_topic %q", m.SourceTopic))
		}
		seen[m.SourceTopic] = true
	}
	return nil
}
