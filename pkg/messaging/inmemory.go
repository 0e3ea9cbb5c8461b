package messaging

import (
	"context"
	"sync"
)

// Bus is a synchronous in-process Client. Subscribers run on the publishing
// goroutine.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Handler
	nextID int
	closed bool
}

func NewInMemoryBus() *Bus {
	return &Bus{subs: map[string]map[int]Handler{}}
}

func (b *Bus) Init(map[string]string) error {
	return nil
}

func (b *Bus) Publish(topic string, env *MessageEnvelope) error {
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrConnectionLost
	}
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	ctx := context.Background()
	for _, h := range handlers {
		_ = h(ctx, env)
	}
	return nil
}

func (b *Bus) Subscribe(topic string, handler Handler) (CloseFunc, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrConnectionLost
	}
	if b.subs[topic] == nil {
		b.subs[topic] = map[int]Handler{}
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = handler

	return func() error {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[topic], id)
		return nil
	}, nil
}

func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.subs = map[string]map[int]Handler{}
	return nil
}
