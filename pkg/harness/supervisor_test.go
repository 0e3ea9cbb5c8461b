package harness

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"pubharness/pkg/healthcheck"
	"pubharness/pkg/messaging"
	"pubharness/pkg/publisher"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeHandle publishes its payloads on Start, then runs until stopped or
// fails with failErr.
type fakeHandle struct {
	id         string
	payloads   []string
	startErr   error
	failErr    error
	ignoreStop bool

	cb      atomic.Pointer[publisher.Callback]
	started atomic.Bool
	stop    chan struct{}
	once    sync.Once
	done    chan struct{}
	err     atomic.Pointer[error]
}

func newFakeHandle(id string, payloads ...string) *fakeHandle {
	return &fakeHandle{id: id, payloads: payloads, stop: make(chan struct{}), done: make(chan struct{})}
}

func (f *fakeHandle) PublisherID() string { return f.id }

func (f *fakeHandle) SetOnPublished(cb publisher.Callback) { f.cb.Store(&cb) }

func (f *fakeHandle) Start() error {
	f.started.Store(true)
	if f.startErr != nil {
		f.err.Store(&f.startErr)
		close(f.done)
		return f.startErr
	}
	go func() {
		defer close(f.done)
		for _, p := range f.payloads {
			if cb := f.cb.Load(); cb != nil {
				(*cb)(p)
			}
		}
		if f.failErr != nil {
			f.err.Store(&f.failErr)
			return
		}
		if f.ignoreStop {
			time.Sleep(time.Hour)
		}
		<-f.stop
	}()
	return nil
}

func (f *fakeHandle) Stop() { f.once.Do(func() { close(f.stop) }) }

func (f *fakeHandle) Done() <-chan struct{} { return f.done }

func (f *fakeHandle) Err() error {
	if err := f.err.Load(); err != nil {
		return *err
	}
	return nil
}

func TestRunForDuration(t *testing.T) {
	a := newFakeHandle("a", "a1", "a2")
	b := newFakeHandle("b", "b1")

	var observed atomic.Int32
	s := NewSupervisor([]publisher.Handle{a, b}, WithObserver(func(publisherID, payload string) {
		observed.Add(1)
	}))
	report, err := s.Run(context.Background(), 50*time.Millisecond)

	require.NoError(t, err)
	assert.False(t, report.Interrupted)
	assert.Equal(t, map[string][]string{"a": {"a1", "a2"}, "b": {"b1"}}, report.Published)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 3, report.Total())
	assert.Equal(t, int32(3), observed.Load())
	assert.Equal(t, []string{"a", "b"}, report.PublisherIDs())
	for _, h := range []*fakeHandle{a, b} {
		assert.Eventually(t, func() bool {
			select {
			case <-h.Done():
				return true
			default:
				return false
			}
		}, time.Second, 10*time.Millisecond)
	}
}

func TestRunAbortsOnFatalError(t *testing.T) {
	healthy := newFakeHandle("healthy")
	broken := newFakeHandle("broken", "x1")
	broken.failErr = errors.Wrap(messaging.ErrConnectionLost, "nats")

	s := NewSupervisor([]publisher.Handle{healthy, broken})
	start := time.Now()
	report, err := s.Run(context.Background(), time.Hour)

	require.Error(t, err)
	assert.ErrorIs(t, err, messaging.ErrConnectionLost)
	assert.Contains(t, err.Error(), "publisher broken failed")
	assert.Less(t, time.Since(start), time.Minute)
	assert.Equal(t, []string{"x1"}, report.Published["broken"])
	assert.Contains(t, report.Failures, "broken")
	assert.NotContains(t, report.Failures, "healthy")
}

func TestRunStopsStartedHandlesOnLaunchFailure(t *testing.T) {
	first := newFakeHandle("first")
	second := newFakeHandle("second")
	second.startErr = errors.New("exec: node: not found")
	third := newFakeHandle("third")

	report, err := NewSupervisor([]publisher.Handle{first, second, third}).Run(context.Background(), time.Hour)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot start publisher second")
	<-first.Done()
	assert.False(t, third.started.Load())
	assert.Contains(t, report.Failures, "second")
}

func TestRunInterrupted(t *testing.T) {
	h := newFakeHandle("a")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := NewSupervisor([]publisher.Handle{h}).Run(ctx, time.Hour)
	require.NoError(t, err)
	assert.True(t, report.Interrupted)
}

func TestRunDoesNotWaitForeverOnHungHandles(t *testing.T) {
	hung := newFakeHandle("hung")
	hung.ignoreStop = true

	s := NewSupervisor([]publisher.Handle{hung}, WithStopTimeout(20*time.Millisecond))
	start := time.Now()
	_, err := s.Run(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	err = Await([]publisher.Handle{hung}, 10*time.Millisecond)
	assert.ErrorIs(t, err, ErrStopTimeout)
}

func TestHealthCheckers(t *testing.T) {
	running := newFakeHandle("running")
	failed := newFakeHandle("failed")
	failed.failErr = errors.New("boom")
	exited := newFakeHandle("exited")

	s := NewSupervisor([]publisher.Handle{running, failed, exited})
	require.NoError(t, running.Start())
	require.NoError(t, failed.Start())
	require.NoError(t, exited.Start())
	exited.Stop()
	<-failed.Done()
	<-exited.Done()

	checkers := s.HealthCheckers()
	ctx := context.Background()
	assert.Equal(t, healthcheck.Healthy, checkers["running"].IsHealthy(ctx).Status)
	assert.Equal(t, healthcheck.HealthResult{Status: healthcheck.Unhealthy, Description: "boom"}, checkers["failed"].IsHealthy(ctx))
	assert.Equal(t, healthcheck.Degraded, checkers["exited"].IsHealthy(ctx).Status)
	running.Stop()
}

func TestRunWithInProcessPublishers(t *testing.T) {
	bus := messaging.NewInMemoryBus()
	var received atomic.Int32
	_, err := bus.Subscribe("stream-1", func(ctx context.Context, msg *messaging.MessageEnvelope) error {
		received.Add(1)
		return nil
	})
	require.NoError(t, err)

	fn, err := publisher.LookupFunction("default")
	require.NoError(t, err)
	var handles []publisher.Handle
	for _, id := range []string{"p1", "p2"} {
		h, err := publisher.New(publisher.Config{
			Variant:     publisher.InProcess,
			PublisherID: id,
			StreamID:    "stream-1",
			Function:    fn,
			Interval:    5 * time.Millisecond,
			Client:      bus,
		})
		require.NoError(t, err)
		handles = append(handles, h)
	}

	report, err := NewSupervisor(handles).Run(context.Background(), 200*time.Millisecond)
	require.NoError(t, err)
	assert.NotEmpty(t, report.Published["p1"])
	assert.NotEmpty(t, report.Published["p2"])
	assert.Equal(t, int(received.Load()), report.Total())
}
