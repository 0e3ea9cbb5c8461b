package natscore

import (
	"context"
	"strings"
	"sync/atomic"
	"time"

	"pubharness/pkg/healthcheck"
	"pubharness/pkg/messaging"
	"pubharness/pkg/messaging/metadata"
	"pubharness/pkg/messaging/serdes"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// compulsory options
const (
	natsURL = "natsURL"
)

// optional
const (
	connectWait  = "connectWait"
	flushTimeout = "flushTimeout"
	clientName   = "clientName"
)

type options struct {
	natsURL      string
	clientName   string
	connectWait  time.Duration
	flushTimeout time.Duration
}

type natsClient struct {
	options  options
	natsConn *nats.Conn
	closed   atomic.Bool
}

// NewNATSClient returns a client publishing on core NATS subjects. Messages
// carry the envelope headers as NATS headers.
func NewNATSClient() messaging.Client {
	return &natsClient{}
}

func parseMetadata(properties map[string]string) (m options, err error) {
	p := metadata.Properties(properties)
	defer func() { err = errors.WithMessage(err, "nats") }()

	if m.natsURL, err = p.Required(natsURL); err != nil {
		return m, err
	}
	m.clientName = p.String(clientName, "")
	if m.connectWait, err = p.Duration(connectWait, nats.DefaultTimeout); err != nil {
		return m, err
	}
	// a positive flush timeout makes every publish wait for the server round trip
	m.flushTimeout, err = p.Duration(flushTimeout, 0)
	return m, err
}

func (n *natsClient) Init(properties map[string]string) error {
	m, err := parseMetadata(properties)
	if err != nil {
		return err
	}
	n.options = m

	n.natsConn, err = Connect(m.natsURL, m.clientName, m.connectWait, func() { n.closed.Store(true) })
	if err != nil {
		return errors.WithMessage(err, "nats")
	}
	return nil
}

func (n *natsClient) Publish(topic string, msg *messaging.MessageEnvelope) error {
	if n.natsConn == nil {
		return messaging.ErrClientNotReady
	}
	if n.closed.Load() || n.natsConn.IsClosed() {
		return errors.Wrap(messaging.ErrConnectionLost, "nats")
	}

	msgBytes, err := serdes.MarshalMessageEnvelope(msg)
	if err != nil {
		return err
	}
	natsMsg := nats.NewMsg(topic)
	natsMsg.Data = msgBytes
	for k, v := range msg.Headers {
		natsMsg.Header.Set(k, v)
	}

	err = n.natsConn.PublishMsg(natsMsg)
	if err == nil && n.options.flushTimeout > 0 {
		err = n.natsConn.FlushTimeout(n.options.flushTimeout)
	}
	switch {
	case IsConnectionLost(err):
		return errors.Wrapf(messaging.ErrConnectionLost, "nats: %v", err)
	case err != nil:
		return errors.Wrapf(err, "nats: publish %s", msg.Id)
	}
	klog.V(4).InfoS("Published message to NATS", "topic", topic, "id", msg.Id)
	return nil
}

func (n *natsClient) Subscribe(topic string, handler messaging.Handler) (messaging.CloseFunc, error) {
	if n.natsConn == nil {
		return nil, messaging.ErrClientNotReady
	}
	subs, err := n.natsConn.Subscribe(topic, func(natsMsg *nats.Msg) {
		env, err := serdes.UnmarshalMessageEnvelope(natsMsg.Data)
		if err != nil {
			klog.ErrorS(err, "Error unmarshaling message", "topic", natsMsg.Subject)
			return
		}
		if env.Headers == nil {
			env.Headers = map[string]string{}
		}
		for k := range natsMsg.Header {
			env.Headers[headerKey(k, env.Headers)] = natsMsg.Header.Get(k)
		}
		if err := handler(context.Background(), &env); err != nil {
			klog.ErrorS(err, "Error running subscriber handler", "topic", natsMsg.Subject)
		}
	})
	if err != nil {
		return nil, errors.Wrapf(err, "nats: subscribe error on %s", topic)
	}
	klog.V(4).InfoS("Subscribed", "subject", topic)
	return func() error {
		klog.V(4).InfoS("Unsubscribed", "subject", topic)
		return subs.Unsubscribe()
	}, nil
}

// headerKey maps a canonical NATS header key back to the envelope key it came
// from, when the envelope already carries it.
func headerKey(canonical string, headers map[string]string) string {
	for k := range headers {
		if strings.EqualFold(k, canonical) {
			return k
		}
	}
	return canonical
}

func (n *natsClient) Close() error {
	n.closed.Store(true)
	if n.natsConn != nil {
		n.natsConn.Close()
	}
	return nil
}

func (n *natsClient) IsHealthy(ctx context.Context) healthcheck.HealthResult {
	if n.closed.Load() {
		return healthcheck.HealthResult{Status: healthcheck.Unhealthy, Description: "nats client closed"}
	}
	return Health(n.natsConn)
}
