package jetstream

import (
	"context"
	"sync/atomic"
	"time"

	"pubharness/pkg/healthcheck"
	"pubharness/pkg/messaging"
	"pubharness/pkg/messaging/metadata"
	"pubharness/pkg/messaging/natscore"
	"pubharness/pkg/messaging/serdes"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// compulsory options
const (
	natsURL = "natsURL"
)

// optional
const (
	connectWait    = "connectWait"
	publishTimeout = "publishTimeout"
	streamName     = "streamName"
	streamSubjects = "streamSubjects"
)

const defaultPublishTimeout = 5 * time.Second

type jetStreamClient struct {
	options  options
	natsConn *nats.Conn
	js       jetstream.JetStream
	closed   atomic.Bool
}

// NewJetStreamClient returns a new NATS JetStream publisher client
func NewJetStreamClient() messaging.Client {
	return &jetStreamClient{}
}

func parseMetadata(properties map[string]string) (m options, err error) {
	p := metadata.Properties(properties)
	defer func() { err = errors.WithMessage(err, "jetStream") }()

	if m.natsURL, err = p.Required(natsURL); err != nil {
		return m, err
	}
	if m.connectWait, err = p.Duration(connectWait, nats.DefaultTimeout); err != nil {
		return m, err
	}
	if m.publishTimeout, err = p.Duration(publishTimeout, defaultPublishTimeout); err != nil {
		return m, err
	}
	if m.publishTimeout <= 0 {
		return m, errors.New("publishTimeout should be positive")
	}

	m.streamName = p.String(streamName, "")
	if m.streamName != "" {
		m.streamSubjects = p.List(streamSubjects)
		if len(m.streamSubjects) == 0 {
			return m, errors.New("streamName requires streamSubjects")
		}
	}
	return m, nil
}

func (n *jetStreamClient) Init(properties map[string]string) error {
	m, err := parseMetadata(properties)
	if err != nil {
		return err
	}
	n.options = m

	n.natsConn, err = natscore.Connect(m.natsURL, "", m.connectWait, func() { n.closed.Store(true) })
	if err != nil {
		return errors.WithMessage(err, "jetStream")
	}

	n.js, err = jetstream.New(n.natsConn)
	if err != nil {
		n.natsConn.Close()
		return errors.Wrap(err, "jetStream: create context")
	}

	if m.streamName != "" {
		ctx, cancel := context.WithTimeout(context.Background(), m.connectWait)
		defer cancel()
		_, err = n.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
			Name:     m.streamName,
			Subjects: m.streamSubjects,
		})
		if err != nil {
			n.natsConn.Close()
			return errors.Wrapf(err, "jetStream: provision stream %s", m.streamName)
		}
		klog.InfoS("JetStream stream ready", "stream", m.streamName, "subjects", m.streamSubjects)
	}
	return nil
}

func (n *jetStreamClient) Publish(topic string, msg *messaging.MessageEnvelope) error {
	if n.js == nil {
		return messaging.ErrClientNotReady
	}
	if n.closed.Load() || n.natsConn.IsClosed() {
		return errors.Wrap(messaging.ErrConnectionLost, "jetStream")
	}

	msgBytes, err := serdes.MarshalMessageEnvelope(msg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), n.options.publishTimeout)
	defer cancel()
	ack, err := n.js.Publish(ctx, topic, msgBytes, jetstream.WithMsgID(msg.Id))
	switch {
	case natscore.IsConnectionLost(err):
		return errors.Wrapf(messaging.ErrConnectionLost, "jetStream: %v", err)
	case err != nil:
		return errors.Wrapf(err, "jetStream: publish %s", msg.Id)
	}
	klog.V(4).InfoS("Published message to JetStream", "topic", topic, "id", msg.Id,
		"stream", ack.Stream, "sequence", ack.Sequence)
	return nil
}

func (n *jetStreamClient) Close() error {
	n.closed.Store(true)
	if n.natsConn != nil {
		n.natsConn.Close()
	}
	return nil
}

func (n *jetStreamClient) IsHealthy(ctx context.Context) healthcheck.HealthResult {
	if n.closed.Load() {
		return healthcheck.HealthResult{Status: healthcheck.Unhealthy, Description: "jetStream client closed"}
	}
	return natscore.Health(n.natsConn)
}
