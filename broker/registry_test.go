package broker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
)

type nullSource struct{}

func (nullSource) Open(context.Context) error { return nil }
func (nullSource) Subscribe(...string) error  { return nil }
func (nullSource) Consume(time.Duration) (*message.Message, error) {
	return nil, nil
}
func (nullSource) Commit(*message.Message) error { return nil }
func (nullSource) Close() error                  { return nil }

type nullPublisher struct{}

func (nullPublisher) Open(context.Context) error             { return nil }
func (nullPublisher) Publish(string, *message.Message) error { return nil }
func (nullPublisher) Flush(time.Duration) error              { return nil }
func (nullPublisher) Close() error                           { return nil }

func TestRegistry_RegisterAndCreate(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterSource("null", func(map[string]any, Dependencies) (Source, error) {
		return nullSource{}, nil
	}))
	require.NoError(t, r.RegisterPublisher("null", func(map[string]any, Dependencies) (Publisher, error) {
		return nullPublisher{}, nil
	}))

	src, err := r.NewSource("null", nil, Dependencies{})
	require.NoError(t, err)
	require.NotNil(t, src)

	pub, err := r.NewPublisher("null", nil, Dependencies{})
	require.NoError(t, err)
	require.NotNil(t, pub)

	assert.Equal(t, []string{"null"}, r.SourceTypes())
	assert.Equal(t, []string{"null"}, r.PublisherTypes())
}

func TestRegistry_UnknownType(t *testing.T) {
	r := NewRegistry()

	_, err := r.NewSource("kafka", nil, Dependencies{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownBroker)

	_, err = r.NewPublisher("kafka", nil, Dependencies{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownBroker)
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	factory := func(map[string]any, Dependencies) (Source, error) { return nullSource{}, nil }

	require.NoError(t, r.RegisterSource("dup", factory))
	err := r.RegisterSource("dup", factory)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestRegistry_InvalidRegistration(t *testing.T) {
	r := NewRegistry()
	assert.Error(t, r.RegisterSource("", func(map[string]any, Dependencies) (Source, error) {
		return nullSource{}, nil
	}))
	assert.Error(t, r.RegisterSource("x", nil))
	assert.Error(t, r.RegisterPublisher("", nil))
}
