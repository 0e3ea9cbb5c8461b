package publisher

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"pubharness/pkg/messaging"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

const waitTimeout = 5 * time.Second

type recordingClient struct {
	mu       sync.Mutex
	envs     []*messaging.MessageEnvelope
	failWith []error
	calls    chan struct{}
}

func newRecordingClient(failWith ...error) *recordingClient {
	return &recordingClient{failWith: failWith, calls: make(chan struct{}, 100)}
}

func (c *recordingClient) Publish(topic string, env *messaging.MessageEnvelope) error {
	defer func() { c.calls <- struct{}{} }()
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.failWith) > 0 {
		err := c.failWith[0]
		c.failWith = c.failWith[1:]
		if err != nil {
			return err
		}
	}
	c.envs = append(c.envs, env)
	return nil
}

func (c *recordingClient) published() []*messaging.MessageEnvelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*messaging.MessageEnvelope(nil), c.envs...)
}

func newInProcessForTest(t *testing.T, client messaging.Publisher) (Handle, *testingclock.FakeClock) {
	t.Helper()
	clk := testingclock.NewFakeClock(time.Now())
	cfg := validInProcessConfig()
	cfg.Client = client
	h, err := New(cfg, WithClock(clk))
	require.NoError(t, err)
	return h, clk
}

func tick(t *testing.T, clk *testingclock.FakeClock, client *recordingClient) {
	t.Helper()
	clk.Step(time.Second)
	select {
	case <-client.calls:
	case <-time.After(waitTimeout):
		t.Fatal("publish was not attempted")
	}
}

func awaitDone(t *testing.T, h Handle) {
	t.Helper()
	select {
	case <-h.Done():
	case <-time.After(waitTimeout):
		t.Fatalf("publisher %s did not exit", h.PublisherID())
	}
}

func TestInProcessPublishesOnEveryTick(t *testing.T) {
	client := newRecordingClient()
	h, clk := newInProcessForTest(t, client)

	var mu sync.Mutex
	var payloads []string
	h.SetOnPublished(func(payload string) {
		mu.Lock()
		defer mu.Unlock()
		payloads = append(payloads, payload)
	})

	require.NoError(t, h.Start())
	for i := 0; i < 3; i++ {
		tick(t, clk, client)
	}
	h.Stop()
	awaitDone(t, h)
	assert.NoError(t, h.Err())

	envs := client.published()
	require.Len(t, envs, 3)
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, payloads, 3)
	for i, env := range envs {
		assert.Equal(t, env.Id, payloads[i])
		assert.Equal(t, "stream-1", env.Subject)
		assert.Equal(t, "default", env.Type)
		assert.Equal(t, "p2", env.Headers[messaging.PublisherIDHeader])
		assert.Equal(t, fmt.Sprint(i+1), env.Headers[messaging.SequenceHeader])
	}
}

func TestInProcessRecoverableErrorIsRetried(t *testing.T) {
	client := newRecordingClient(errors.New("temporarily unavailable"))
	h, clk := newInProcessForTest(t, client)

	notified := make(chan string, 10)
	h.SetOnPublished(func(payload string) { notified <- payload })

	require.NoError(t, h.Start())
	tick(t, clk, client)
	tick(t, clk, client)
	h.Stop()
	awaitDone(t, h)

	assert.NoError(t, h.Err())
	assert.Len(t, client.published(), 1)
	assert.Len(t, notified, 1)
}

func TestInProcessConnectionLostIsFatal(t *testing.T) {
	client := newRecordingClient(errors.Wrap(messaging.ErrConnectionLost, "nats"))
	h, clk := newInProcessForTest(t, client)

	require.NoError(t, h.Start())
	tick(t, clk, client)
	awaitDone(t, h)

	assert.ErrorIs(t, h.Err(), messaging.ErrConnectionLost)
	assert.True(t, IsFatal(h.Err()))
}

func TestInProcessLastCallbackWins(t *testing.T) {
	client := newRecordingClient()
	h, clk := newInProcessForTest(t, client)

	first := make(chan string, 10)
	second := make(chan string, 10)
	h.SetOnPublished(func(payload string) { first <- payload })
	h.SetOnPublished(func(payload string) { second <- payload })

	require.NoError(t, h.Start())
	tick(t, clk, client)
	h.Stop()
	awaitDone(t, h)

	assert.Len(t, first, 0)
	assert.Len(t, second, 1)
}

func TestInProcessWithoutCallback(t *testing.T) {
	client := newRecordingClient()
	h, clk := newInProcessForTest(t, client)

	require.NoError(t, h.Start())
	tick(t, clk, client)
	h.Stop()
	awaitDone(t, h)

	assert.NoError(t, h.Err())
	assert.Len(t, client.published(), 1)
}

func TestLifecycleErrors(t *testing.T) {
	h, _ := newInProcessForTest(t, newRecordingClient())
	assert.Equal(t, "p2", h.PublisherID())

	require.NoError(t, h.Start())
	assert.ErrorIs(t, h.Start(), ErrAlreadyStarted)
	h.Stop()
	awaitDone(t, h)
	assert.Equal(t, "p2", h.PublisherID())
	assert.ErrorIs(t, h.Start(), ErrStopped)
	// repeated stops are harmless
	h.Stop()
}

func TestStopBeforeStart(t *testing.T) {
	h, _ := newInProcessForTest(t, newRecordingClient())
	h.Stop()
	awaitDone(t, h)
	assert.NoError(t, h.Err())
	assert.ErrorIs(t, h.Start(), ErrStopped)
}
