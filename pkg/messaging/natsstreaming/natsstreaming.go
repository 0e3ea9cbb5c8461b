package natsstreaming

import (
	"context"
	"strings"
	"sync/atomic"

	"pubharness/pkg/healthcheck"
	"pubharness/pkg/messaging"
	"pubharness/pkg/messaging/metadata"
	"pubharness/pkg/messaging/natscore"
	"pubharness/pkg/messaging/serdes"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	stan "github.com/nats-io/stan.go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// compulsory options
const (
	natsURL                = "natsURL"
	natsStreamingClusterID = "natsStreamingClusterID"
)

// optional
const (
	clientID           = "clientID"
	connectWait        = "connectWait"
	pubAckWait         = "pubAckWait"
	maxPubAcksInflight = "maxPubAcksInflight"
)

const clientIDPrefix = "pubharness-"

type natsStreamingClient struct {
	options options
	nc      *nats.Conn
	conn    stan.Conn
	closed  atomic.Bool
}

// NewNATSStreamingClient returns a publish-only NATS Streaming client.
func NewNATSStreamingClient() messaging.Client {
	return &natsStreamingClient{}
}

// defaultClientID satisfies the streaming server's [A-Za-z0-9_-] rule.
func defaultClientID() string {
	return clientIDPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func parseNATSStreamingMetadata(properties map[string]string) (m options, err error) {
	p := metadata.Properties(properties)
	defer func() { err = errors.WithMessage(err, "nats-streaming") }()

	if m.natsURL, err = p.Required(natsURL); err != nil {
		return m, err
	}
	if m.natsStreamingClusterID, err = p.Required(natsStreamingClusterID); err != nil {
		return m, err
	}
	m.clientID = p.String(clientID, defaultClientID())
	if m.connectWait, err = p.Duration(connectWait, stan.DefaultConnectWait); err != nil {
		return m, err
	}
	if m.pubAckWait, err = p.Duration(pubAckWait, stan.DefaultAckWait); err != nil {
		return m, err
	}
	m.maxPubAcksInflight, err = p.Int(maxPubAcksInflight, stan.DefaultMaxPubAcksInflight, 1)
	return m, err
}

func (n *natsStreamingClient) Init(properties map[string]string) error {
	m, err := parseNATSStreamingMetadata(properties)
	if err != nil {
		return err
	}
	n.options = m

	// the core connection is ours, stan does not close it
	n.nc, err = natscore.Connect(m.natsURL, m.clientID, m.connectWait, func() { n.closed.Store(true) })
	if err != nil {
		return errors.WithMessage(err, "nats-streaming")
	}

	n.conn, err = stan.Connect(m.natsStreamingClusterID, m.clientID,
		stan.NatsConn(n.nc),
		stan.ConnectWait(m.connectWait),
		stan.PubAckWait(m.pubAckWait),
		stan.MaxPubAcksInflight(m.maxPubAcksInflight),
		stan.SetConnectionLostHandler(func(_ stan.Conn, err error) {
			klog.ErrorS(err, "NATS Streaming session lost", "clientID", m.clientID)
			n.closed.Store(true)
		}))
	if err != nil {
		n.nc.Close()
		return errors.Wrapf(err, "nats-streaming: join cluster %s", m.natsStreamingClusterID)
	}
	klog.InfoS("Connected to NATS Streaming", "url", m.natsURL, "cluster", m.natsStreamingClusterID, "clientID", m.clientID)
	return nil
}

// Publish blocks until the server acknowledges the message or PubAckWait
// elapses.
func (n *natsStreamingClient) Publish(topic string, env *messaging.MessageEnvelope) error {
	if n.conn == nil {
		return messaging.ErrClientNotReady
	}
	if n.closed.Load() {
		return errors.Wrap(messaging.ErrConnectionLost, "nats-streaming")
	}

	data, err := serdes.MarshalMessageEnvelope(env)
	if err != nil {
		return err
	}
	switch err = n.conn.Publish(topic, data); {
	case err == nil:
		klog.V(4).InfoS("Published to NATS Streaming", "topic", topic, "id", env.Id)
		return nil
	case isConnectionClosed(err):
		return errors.Wrapf(messaging.ErrConnectionLost, "nats-streaming: %v", err)
	default:
		return errors.Wrapf(err, "nats-streaming: publish %s", env.Id)
	}
}

func isConnectionClosed(err error) bool {
	return errors.Is(err, stan.ErrConnectionClosed) ||
		errors.Is(err, stan.ErrBadConnection) ||
		natscore.IsConnectionLost(err)
}

// Close ends the streaming session before the transport it runs on.
func (n *natsStreamingClient) Close() error {
	n.closed.Store(true)
	var err error
	if n.conn != nil {
		err = n.conn.Close()
	}
	if n.nc != nil {
		n.nc.Close()
	}
	return err
}

func (n *natsStreamingClient) IsHealthy(ctx context.Context) healthcheck.HealthResult {
	if n.conn == nil || n.closed.Load() {
		return healthcheck.HealthResult{Status: healthcheck.Unhealthy, Description: "nats-streaming session closed"}
	}
	return natscore.Health(n.nc)
}
