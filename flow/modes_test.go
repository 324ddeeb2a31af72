package flow

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streambridge/broker"
	"github.com/c360/streambridge/broker/mock"
	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
)

// testRegistry returns a registry whose "mock" adapters are the given
// pre-built instances, so tests can feed sources and inspect the
// publisher.
func testRegistry(t *testing.T, sources []*mock.Source, pub *mock.Publisher) *broker.Registry {
	t.Helper()
	registry := broker.NewRegistry()

	next := 0
	require.NoError(t, registry.RegisterSource("mock",
		func(map[string]any, broker.Dependencies) (broker.Source, error) {
			if next >= len(sources) {
				return nil, fmt.Errorf("test registry out of sources")
			}
			s := sources[next]
			next++
			return s, nil
		}))
	require.NoError(t, registry.RegisterPublisher("mock",
		func(map[string]any, broker.Dependencies) (broker.Publisher, error) {
			return pub, nil
		}))
	return registry
}

// Funnel: sources publish ["a","b"] to t1 and ["c"] to t2; destination
// "out" receives the full multiset and counters match.
func TestFunnel_EndToEnd(t *testing.T) {
	src1 := newMockSource(t)
	src2 := newMockSource(t)
	pub := newMockPublisher(t)

	cfg := testConfig()
	cfg.Mode = config.ModeFunnel
	cfg.Funnel = &config.FunnelConfig{
		Sources: []config.BrokerConfig{
			{Type: "mock", Topics: []string{"t1"}},
			{Type: "mock", Topics: []string{"t2"}},
		},
		Destination:      config.BrokerConfig{Type: "mock"},
		DestinationTopic: "out",
	}

	f, err := New(cfg, testRegistry(t, []*mock.Source{src1, src2}, pub), broker.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))

	assert.Equal(t, []string{"t1"}, src1.Topics())
	assert.Equal(t, []string{"t2"}, src2.Topics())

	require.NoError(t, src1.Push("t1", []byte("a"), nil))
	require.NoError(t, src1.Push("t1", []byte("b"), nil))
	require.NoError(t, src2.Push("t2", []byte("c"), nil))

	waitFor(t, 2*time.Second, func() bool { return pub.TotalPublished() == 3 }, "funnel delivery")
	f.Stop()

	assert.ElementsMatch(t, []string{"a", "b", "c"}, pub.Payloads("out"))

	snap := f.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.Source["t1"].MessageCount)
	assert.Equal(t, int64(1), snap.Source["t2"].MessageCount)
	assert.Equal(t, int64(3), snap.Destination["out"].MessageCount)
}

// Fan with header routing: each message lands exactly on the topic its
// header names.
func TestFan_HeaderRouting(t *testing.T) {
	src := newMockSource(t)
	pub := newMockPublisher(t)

	cfg := testConfig()
	cfg.Mode = config.ModeFan
	cfg.Fan = &config.FanConfig{
		Source:              config.BrokerConfig{Type: "mock"},
		SourceTopic:         "in",
		Destination:         config.BrokerConfig{Type: "mock"},
		DestinationResolver: config.ResolverConfig{Type: "header", Key: "destination_topic"},
	}

	f, err := New(cfg, testRegistry(t, []*mock.Source{src}, pub), broker.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))

	require.NoError(t, src.Push("in", []byte("X"), map[string]string{"destination_topic": "orders"}))
	require.NoError(t, src.Push("in", []byte("Y"), map[string]string{"destination_topic": "payments"}))

	waitFor(t, 2*time.Second, func() bool { return pub.TotalPublished() == 2 }, "fan delivery")
	f.Stop()

	assert.Equal(t, []string{"X"}, pub.Payloads("orders"))
	assert.Equal(t, []string{"Y"}, pub.Payloads("payments"))
}

// Fan with payload routing: the JSON payload reaches the resolved topic
// unchanged.
func TestFan_PayloadRouting(t *testing.T) {
	src := newMockSource(t)
	pub := newMockPublisher(t)

	cfg := testConfig()
	cfg.Mode = config.ModeFan
	cfg.Fan = &config.FanConfig{
		Source:              config.BrokerConfig{Type: "mock"},
		SourceTopic:         "in",
		Destination:         config.BrokerConfig{Type: "mock"},
		DestinationResolver: config.ResolverConfig{Type: "payload_key", Key: "routing_key"},
	}

	f, err := New(cfg, testRegistry(t, []*mock.Source{src}, pub), broker.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))

	payload := `{"routing_key":"metrics","data":"cpu"}`
	require.NoError(t, src.Push("in", []byte(payload), nil))

	waitFor(t, 2*time.Second, func() bool { return pub.TotalPublished() == 1 }, "fan delivery")
	f.Stop()

	assert.Equal(t, []string{payload}, pub.Payloads("metrics"))
}

// Fan routing failure: the message is dropped with a source-side error
// and later messages still route.
func TestFan_RoutingFailureDropsMessage(t *testing.T) {
	src := newMockSource(t)
	pub := newMockPublisher(t)

	cfg := testConfig()
	cfg.Mode = config.ModeFan
	cfg.Fan = &config.FanConfig{
		Source:              config.BrokerConfig{Type: "mock"},
		SourceTopic:         "in",
		Destination:         config.BrokerConfig{Type: "mock"},
		DestinationResolver: config.ResolverConfig{Type: "header", Key: "destination_topic"},
	}

	f, err := New(cfg, testRegistry(t, []*mock.Source{src}, pub), broker.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))

	require.NoError(t, src.Push("in", []byte("unroutable"), nil))
	require.NoError(t, src.Push("in", []byte("routable"), map[string]string{"destination_topic": "orders"}))

	waitFor(t, 2*time.Second, func() bool { return pub.TotalPublished() == 1 }, "surviving delivery")
	f.Stop()

	assert.Equal(t, []string{"routable"}, pub.Payloads("orders"))

	snap := f.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.Source["in"].MessageCount)
	assert.Equal(t, int64(1), snap.Source["in"].ErrorCount)
	assert.Equal(t, StateStopped, f.State(), "routing failures never fail the flow")
}

// One-to-one mapping: each source topic reaches only its mapped
// destination.
func TestOneToOne_Mapping(t *testing.T) {
	src := newMockSource(t)
	pub := newMockPublisher(t)

	cfg := testConfig()
	cfg.Mode = config.ModeOneToOne
	cfg.OneToOne = &config.OneToOneConfig{
		Source:      config.BrokerConfig{Type: "mock"},
		Destination: config.BrokerConfig{Type: "mock"},
		Mappings: []config.Mapping{
			{SourceTopic: "orders", DestinationTopic: "orders-processed"},
			{SourceTopic: "payments", DestinationTopic: "payments-processed"},
		},
	}

	f, err := New(cfg, testRegistry(t, []*mock.Source{src}, pub), broker.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))

	assert.ElementsMatch(t, []string{"orders", "payments"}, src.Topics(),
		"source subscribes to the mapped topics")

	require.NoError(t, src.Push("orders", []byte("order-123"), nil))
	require.NoError(t, src.Push("payments", []byte("payment-456"), nil))

	waitFor(t, 2*time.Second, func() bool { return pub.TotalPublished() == 2 }, "mapped delivery")
	f.Stop()

	assert.Equal(t, []string{"order-123"}, pub.Payloads("orders-processed"))
	assert.Equal(t, []string{"payment-456"}, pub.Payloads("payments-processed"))
}

// One-to-one with an unmapped topic: dropped with a source-side error.
func TestOneToOne_UnmappedTopicDropped(t *testing.T) {
	src := newMockSource(t)
	pub := newMockPublisher(t)

	cfg := testConfig()
	cfg.Mode = config.ModeOneToOne
	cfg.OneToOne = &config.OneToOneConfig{
		Source:      config.BrokerConfig{Type: "mock"},
		Destination: config.BrokerConfig{Type: "mock"},
		Mappings: []config.Mapping{
			{SourceTopic: "orders", DestinationTopic: "orders-processed"},
		},
	}

	f, err := New(cfg, testRegistry(t, []*mock.Source{src}, pub), broker.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))

	// The mock source does not constrain pushes to subscribed topics,
	// simulating a subscription wider than the mapping table
	require.NoError(t, src.Push("refunds", []byte("stray"), nil))
	require.NoError(t, src.Push("orders", []byte("order-1"), nil))

	waitFor(t, 2*time.Second, func() bool { return pub.TotalPublished() == 1 }, "mapped delivery")
	f.Stop()

	assert.Equal(t, []string{"order-1"}, pub.Payloads("orders-processed"))
	snap := f.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.Source["refunds"].ErrorCount)
}

// One-to-one with a single worker preserves per-source-topic FIFO
// order at the destination.
func TestOneToOne_SingleWorkerPreservesOrder(t *testing.T) {
	src := newMockSource(t)
	pub := newMockPublisher(t)

	cfg := testConfig()
	cfg.Mode = config.ModeOneToOne
	cfg.ThreadPool.MaxWorkers = 1
	cfg.OneToOne = &config.OneToOneConfig{
		Source:      config.BrokerConfig{Type: "mock"},
		Destination: config.BrokerConfig{Type: "mock"},
		Mappings: []config.Mapping{
			{SourceTopic: "orders", DestinationTopic: "orders-processed"},
		},
	}

	f, err := New(cfg, testRegistry(t, []*mock.Source{src}, pub), broker.Dependencies{})
	require.NoError(t, err)
	require.NoError(t, f.Start(context.Background()))

	const total = 50
	expected := make([]string, 0, total)
	for i := 0; i < total; i++ {
		payload := fmt.Sprintf("m-%03d", i)
		expected = append(expected, payload)
		require.NoError(t, src.Push("orders", []byte(payload), nil))
	}

	waitFor(t, 5*time.Second, func() bool { return pub.TotalPublished() == total }, "ordered delivery")
	f.Stop()

	assert.Equal(t, expected, pub.Payloads("orders-processed"),
		"single-worker pools must preserve FIFO order")
}

func TestNew_UnknownMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = "broadcast"

	_, err := New(cfg, broker.NewRegistry(), broker.Dependencies{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownMode)
}

func TestNewFunnel_MissingSection(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModeFunnel

	_, err := New(cfg, broker.NewRegistry(), broker.Dependencies{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestNewFan_UnknownBrokerType(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = config.ModeFan
	cfg.Fan = &config.FanConfig{
		Source:              config.BrokerConfig{Type: "rabbitmq"},
		SourceTopic:         "in",
		Destination:         config.BrokerConfig{Type: "rabbitmq"},
		DestinationResolver: config.ResolverConfig{Type: "header", Key: "k"},
	}

	_, err := New(cfg, broker.NewRegistry(), broker.Dependencies{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownBroker)
}
