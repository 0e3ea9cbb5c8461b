package serdes

import (
	"pubharness/pkg/messaging"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalMessageEnvelope(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	env := &messaging.MessageEnvelope{
		Id:      "msg-1",
		Type:    "default",
		Time:    ts,
		Subject: "stream-1",
		Headers: map[string]string{messaging.PublisherIDHeader: "pub-1"},
		Payload: map[string]interface{}{"counter": 1},
	}

	data, err := MarshalMessageEnvelope(env)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":"msg-1"`)
	assert.Contains(t, string(data), `"subject":"stream-1"`)

	got, err := UnmarshalMessageEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, "msg-1", got.Id)
	assert.Equal(t, "pub-1", got.Headers[messaging.PublisherIDHeader])
	assert.True(t, ts.Equal(got.Time))
}

func TestUnmarshalMessageEnvelopeInvalid(t *testing.T) {
	_, err := UnmarshalMessageEnvelope([]byte("not json"))
	assert.Error(t, err)
}
