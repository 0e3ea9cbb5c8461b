package messaging

import "context"

// Handler processes one envelope, either on its way to a client (publish
// pipeline) or on delivery to a subscriber.
type Handler func(ctx context.Context, msg *MessageEnvelope) error

type CloseFunc func() error

type Publisher interface {
	Publish(topic string, env *MessageEnvelope) error
}

// Subscriber is only implemented by clients that tests read back from.
type Subscriber interface {
	Subscribe(topic string, handler Handler) (CloseFunc, error)
}

// Client is an in-process streaming platform client. Implementations are
// created empty by a registry factory and configured through Init.
type Client interface {
	Publisher
	Init(properties map[string]string) error
	Close() error
}
