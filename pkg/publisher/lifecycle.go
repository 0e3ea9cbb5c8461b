package publisher

import (
	"context"
	"sync"
	"sync/atomic"

	"pubharness/internal/metrics"
)

// execution tracks the single background context owned by a handle.
type execution struct {
	ctx     context.Context
	cancel  context.CancelFunc
	started atomic.Bool
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func (e *execution) init() {
	e.ctx, e.cancel = context.WithCancel(context.Background())
	e.done = make(chan struct{})
}

// begin claims the right to start; it fails for a second Start or after Stop.
func (e *execution) begin() error {
	if e.started.CompareAndSwap(false, true) {
		return nil
	}
	if e.ctx.Err() != nil {
		return ErrStopped
	}
	return ErrAlreadyStarted
}

func (e *execution) Stop() {
	e.cancel()
	// never started: nothing will close done
	if e.started.CompareAndSwap(false, true) {
		close(e.done)
	}
}

func (e *execution) Done() <-chan struct{} {
	return e.done
}

func (e *execution) Err() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.err
}

func (e *execution) fail(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err == nil {
		e.err = err
	}
}

func (e *execution) cancelled() bool {
	return e.ctx.Err() != nil
}

func (e *execution) finish() {
	e.cancel()
	close(e.done)
}

// base holds the identity, configuration and callback slot of a handle.
type base struct {
	execution
	cfg      Config
	callback atomic.Pointer[Callback]
}

func (b *base) init(cfg Config) {
	b.execution.init()
	b.cfg = cfg
}

func (b *base) PublisherID() string {
	return b.cfg.PublisherID
}

func (b *base) SetOnPublished(cb Callback) {
	if cb == nil {
		b.callback.Store(nil)
		return
	}
	b.callback.Store(&cb)
}

func (b *base) notify(payload string) {
	metrics.DefaultPublisherMetrics().RecordPublished(context.Background(),
		b.cfg.PublisherID, b.cfg.StreamID, string(b.cfg.Variant))
	if cb := b.callback.Load(); cb != nil {
		(*cb)(payload)
	}
}
