package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/streambridge/config"
	"github.com/c360/streambridge/errors"
	"github.com/c360/streambridge/message"
)

func TestNewResolver(t *testing.T) {
	r, err := NewResolver(config.ResolverConfig{Type: "header", Key: "k"})
	require.NoError(t, err)
	_, ok := r.(*HeaderResolver)
	assert.True(t, ok)

	r, err = NewResolver(config.ResolverConfig{Type: "payload_key", Key: "k"})
	require.NoError(t, err)
	_, ok = r.(*PayloadKeyResolver)
	assert.True(t, ok)

	_, err = NewResolver(config.ResolverConfig{Type: "regex", Key: "k"})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestHeaderResolver(t *testing.T) {
	r := &HeaderResolver{Key: "destination_topic"}

	msg := message.New("in", []byte("X"), map[string]string{"destination_topic": "orders"})
	topic, err := r.Resolve(msg)
	require.NoError(t, err)
	assert.Equal(t, "orders", topic)

	// Missing header fails routing
	_, err = r.Resolve(message.New("in", []byte("X"), nil))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrRoutingFailed)
	assert.True(t, errors.IsTransient(err))

	// Empty header value fails routing
	_, err = r.Resolve(message.New("in", nil, map[string]string{"destination_topic": ""}))
	assert.Error(t, err)
}

func TestPayloadKeyResolver(t *testing.T) {
	r := &PayloadKeyResolver{Key: "routing_key"}

	topic, err := r.Resolve(message.New("in", []byte(`{"routing_key":"metrics","data":"cpu"}`), nil))
	require.NoError(t, err)
	assert.Equal(t, "metrics", topic)

	// Numbers coerce to strings
	topic, err = r.Resolve(message.New("in", []byte(`{"routing_key":42}`), nil))
	require.NoError(t, err)
	assert.Equal(t, "42", topic)

	topic, err = r.Resolve(message.New("in", []byte(`{"routing_key":true}`), nil))
	require.NoError(t, err)
	assert.Equal(t, "true", topic)
}

func TestPayloadKeyResolver_Failures(t *testing.T) {
	r := &PayloadKeyResolver{Key: "routing_key"}

	cases := []struct {
		name    string
		payload string
	}{
		{"not JSON", "plain text"},
		{"JSON array", `["routing_key"]`},
		{"missing key", `{"other":"x"}`},
		{"empty string value", `{"routing_key":""}`},
		{"object value", `{"routing_key":{"nested":true}}`},
		{"null value", `{"routing_key":null}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.Resolve(message.New("in", []byte(tc.payload), nil))
			require.Error(t, err)
			assert.ErrorIs(t, err, errors.ErrRoutingFailed)
			assert.True(t, errors.IsTransient(err))
		})
	}
}
