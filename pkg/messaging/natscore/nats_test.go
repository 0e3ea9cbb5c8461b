package natscore

import (
	"context"
	"testing"
	"time"

	"pubharness/pkg/healthcheck"
	"pubharness/pkg/messaging"
	"pubharness/pkg/messaging/natstest"

	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMetadata(t *testing.T) {
	tests := []struct {
		name       string
		properties map[string]string
		want       options
		wantErr    bool
	}{
		{"missing url", map[string]string{}, options{connectWait: nats.DefaultTimeout}, true},
		{"defaults", map[string]string{natsURL: "nats://foo.bar:4222"},
			options{natsURL: "nats://foo.bar:4222", connectWait: nats.DefaultTimeout}, false},
		{"all options", map[string]string{
			natsURL:      "nats://foo.bar:4222",
			clientName:   "harness",
			connectWait:  "3s",
			flushTimeout: "500ms",
		}, options{natsURL: "nats://foo.bar:4222", clientName: "harness", connectWait: 3 * time.Second,
			flushTimeout: 500 * time.Millisecond}, false},
		{"invalid flush timeout", map[string]string{natsURL: "nats://foo.bar:4222", flushTimeout: "x"},
			options{natsURL: "nats://foo.bar:4222", connectWait: nats.DefaultTimeout}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseMetadata(tt.properties)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPublishSubscribe(t *testing.T) {
	srv := natstest.RunServer(t, false)

	sut := NewNATSClient().(*natsClient)
	require.NoError(t, sut.Init(map[string]string{natsURL: srv.ClientURL(), flushTimeout: "1s"}))
	assert.Equal(t, healthcheck.Healthy, sut.IsHealthy(context.Background()).Status)

	received := make(chan *messaging.MessageEnvelope, 1)
	unsub, err := sut.Subscribe("stream-1", func(ctx context.Context, msg *messaging.MessageEnvelope) error {
		received <- msg
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, sut.natsConn.Flush())

	require.NoError(t, sut.Publish("stream-1", &messaging.MessageEnvelope{
		Id:      "m1",
		Payload: "hello",
		Headers: map[string]string{messaging.PublisherIDHeader: "p1"},
	}))

	select {
	case msg := <-received:
		assert.Equal(t, "m1", msg.Id)
		assert.Equal(t, "hello", msg.Payload)
		assert.Equal(t, "p1", msg.Headers[messaging.PublisherIDHeader])
	case <-time.After(5 * time.Second):
		t.Fatal("message was not received")
	}
	require.NoError(t, unsub())

	require.NoError(t, sut.Close())
	err = sut.Publish("stream-1", &messaging.MessageEnvelope{Id: "m2"})
	assert.ErrorIs(t, err, messaging.ErrConnectionLost)
	assert.Equal(t, healthcheck.Unhealthy, sut.IsHealthy(context.Background()).Status)
}

func TestPublishBeforeInit(t *testing.T) {
	err := NewNATSClient().Publish("stream-1", &messaging.MessageEnvelope{})
	assert.ErrorIs(t, err, messaging.ErrClientNotReady)
}

func TestConnectAndHealth(t *testing.T) {
	assert.Equal(t, healthcheck.Unhealthy, Health(nil).Status)

	srv := natstest.RunServer(t, false)
	closed := make(chan struct{})
	nc, err := Connect(srv.ClientURL(), "health-test", time.Second, func() { close(closed) })
	require.NoError(t, err)
	assert.Equal(t, healthcheck.Healthy, Health(nc).Status)

	nc.Close()
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("closed callback was not invoked")
	}
	assert.Equal(t, healthcheck.Unhealthy, Health(nc).Status)
	assert.True(t, IsConnectionLost(nc.Publish("stream-1", nil)))
}

func TestConnectFailure(t *testing.T) {
	_, err := Connect("nats://127.0.0.1:1", "", 100*time.Millisecond, nil)
	assert.Error(t, err)
}
