// Package gossip publishes envelopes over libp2p GossipSub topics.
package gossip

import (
	"context"
	"crypto/rand"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"pubharness/pkg/healthcheck"
	"pubharness/pkg/messaging"
	"pubharness/pkg/messaging/metadata"
	"pubharness/pkg/messaging/serdes"

	libp2p "github.com/libp2p/go-libp2p"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/peer"
	mdns "github.com/libp2p/go-libp2p/p2p/discovery/mdns"
	ma "github.com/multiformats/go-multiaddr"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// optional
const (
	listenAddrs     = "listenAddrs"
	bootstrap       = "bootstrap"
	rendezvous      = "rendezvous"
	enableMDNS      = "enableMDNS"
	identityKeyFile = "identityKeyFile"
)

const (
	defaultListenAddr = "/ip4/0.0.0.0/tcp/0"
	defaultRendezvous = "pubharness"
)

type options struct {
	listenAddrs     []ma.Multiaddr
	bootstrap       []*peer.AddrInfo
	rendezvous      string
	enableMDNS      bool
	identityKeyFile string
}

type gossipClient struct {
	ctx    context.Context
	cancel context.CancelFunc

	host   host.Host
	ps     *pubsub.PubSub
	closed atomic.Bool

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewGossipClient returns a new libp2p GossipSub publisher client
func NewGossipClient() messaging.Client {
	return &gossipClient{topics: map[string]*pubsub.Topic{}}
}

func parseMetadata(properties map[string]string) (m options, err error) {
	p := metadata.Properties(properties)
	defer func() { err = errors.WithMessage(err, "gossip") }()

	for _, s := range p.List(listenAddrs) {
		a, err := ma.NewMultiaddr(s)
		if err != nil {
			return m, errors.Wrapf(err, "invalid listen multiaddr %q", s)
		}
		m.listenAddrs = append(m.listenAddrs, a)
	}
	if len(m.listenAddrs) == 0 {
		a, _ := ma.NewMultiaddr(defaultListenAddr)
		m.listenAddrs = append(m.listenAddrs, a)
	}

	for _, s := range p.List(bootstrap) {
		info, err := peer.AddrInfoFromString(s)
		if err != nil {
			return m, errors.Wrapf(err, "invalid bootstrap address %q", s)
		}
		m.bootstrap = append(m.bootstrap, info)
	}

	m.rendezvous = p.String(rendezvous, defaultRendezvous)
	if m.enableMDNS, err = p.Bool(enableMDNS, false); err != nil {
		return m, err
	}
	m.identityKeyFile = p.String(identityKeyFile, "")
	return m, nil
}

func (g *gossipClient) Init(properties map[string]string) error {
	m, err := parseMetadata(properties)
	if err != nil {
		return err
	}

	libp2pOpts := []libp2p.Option{libp2p.ListenAddrs(m.listenAddrs...)}
	if m.identityKeyFile != "" {
		key, err := loadOrCreateIdentityKey(m.identityKeyFile)
		if err != nil {
			return errors.Wrap(err, "gossip: load identity key")
		}
		libp2pOpts = append(libp2pOpts, libp2p.Identity(key))
	}

	h, err := libp2p.New(libp2pOpts...)
	if err != nil {
		return errors.Wrap(err, "gossip: create host")
	}

	g.ctx, g.cancel = context.WithCancel(context.Background())
	ps, err := pubsub.NewGossipSub(g.ctx, h)
	if err != nil {
		_ = h.Close()
		g.cancel()
		return errors.Wrap(err, "gossip: create gossipsub")
	}
	g.host, g.ps = h, ps
	klog.InfoS("libp2p host started", "peer", h.ID().String(), "addrs", g.ListenAddrs())

	if m.enableMDNS {
		service := mdns.NewMdnsService(h, m.rendezvous, &mdnsNotifee{host: h})
		if err := service.Start(); err != nil {
			klog.ErrorS(err, "mdns start error")
		}
	}

	for _, info := range m.bootstrap {
		if err := h.Connect(g.ctx, *info); err != nil {
			klog.ErrorS(err, "bootstrap connect failed", "peer", info.ID.String())
		} else {
			klog.InfoS("connected bootstrap peer", "peer", info.ID.String())
		}
	}
	return nil
}

func (g *gossipClient) Publish(topic string, msg *messaging.MessageEnvelope) error {
	if g.ps == nil {
		return messaging.ErrClientNotReady
	}
	if g.closed.Load() {
		return errors.Wrap(messaging.ErrConnectionLost, "gossip")
	}
	msgBytes, err := serdes.MarshalMessageEnvelope(msg)
	if err != nil {
		return err
	}
	t, err := g.getOrJoinTopic(topic)
	if err != nil {
		return err
	}
	if err := t.Publish(g.ctx, msgBytes); err != nil {
		if errors.Is(err, pubsub.ErrTopicClosed) || g.ctx.Err() != nil {
			return errors.Wrap(messaging.ErrConnectionLost, err.Error())
		}
		return errors.Wrap(err, "gossip: error from publish")
	}
	klog.V(4).InfoS("Published message to gossip topic", "topic", topic, "id", msg.Id)
	return nil
}

func (g *gossipClient) Subscribe(topic string, handler messaging.Handler) (messaging.CloseFunc, error) {
	if g.ps == nil {
		return nil, messaging.ErrClientNotReady
	}
	t, err := g.getOrJoinTopic(topic)
	if err != nil {
		return nil, err
	}
	sub, err := t.Subscribe()
	if err != nil {
		return nil, errors.Wrapf(err, "gossip: subscribe error on %s", topic)
	}

	subCtx, subCancel := context.WithCancel(g.ctx)
	go func() {
		for {
			raw, err := sub.Next(subCtx)
			if err != nil {
				return
			}
			env, err := serdes.UnmarshalMessageEnvelope(raw.Data)
			if err != nil {
				klog.ErrorS(err, "Error unmarshaling message", "topic", topic)
				continue
			}
			if err := handler(subCtx, &env); err != nil {
				klog.ErrorS(err, "Error running subscriber handler", "topic", topic)
			}
		}
	}()

	return func() error {
		subCancel()
		sub.Cancel()
		return nil
	}, nil
}

func (g *gossipClient) getOrJoinTopic(name string) (*pubsub.Topic, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if t, ok := g.topics[name]; ok {
		return t, nil
	}
	t, err := g.ps.Join(name)
	if err != nil {
		return nil, errors.Wrapf(err, "gossip: join topic %s", name)
	}
	g.topics[name] = t
	return t, nil
}

// ListenAddrs returns the full p2p addresses other peers can bootstrap from.
func (g *gossipClient) ListenAddrs() []string {
	out := make([]string, 0, len(g.host.Addrs()))
	for _, addr := range g.host.Addrs() {
		out = append(out, addr.String()+"/p2p/"+g.host.ID().String())
	}
	return out
}

func (g *gossipClient) Close() error {
	if g.closed.Swap(true) || g.host == nil {
		return nil
	}
	g.cancel()
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, t := range g.topics {
		_ = t.Close()
	}
	return g.host.Close()
}

func (g *gossipClient) IsHealthy(ctx context.Context) healthcheck.HealthResult {
	if g.closed.Load() || g.host == nil {
		return healthcheck.HealthResult{
			Status:      healthcheck.Unhealthy,
			Description: "libp2p host is closed",
		}
	}
	if len(g.host.Network().Peers()) == 0 {
		return healthcheck.HealthResult{
			Status:      healthcheck.Degraded,
			Description: "no connected peers",
		}
	}
	return healthcheck.HealthyResult
}

type mdnsNotifee struct {
	host host.Host
}

func (n *mdnsNotifee) HandlePeerFound(info peer.AddrInfo) {
	if err := n.host.Connect(context.Background(), info); err != nil {
		klog.ErrorS(err, "mdns connect failed", "peer", info.ID.String())
	}
}

func loadOrCreateIdentityKey(path string) (crypto.PrivKey, error) {
	if b, err := os.ReadFile(path); err == nil && len(b) > 0 {
		key, err := crypto.UnmarshalPrivateKey(b)
		if err != nil {
			return nil, errors.Wrap(err, "unmarshal private key")
		}
		return key, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "mkdir key dir")
	}
	key, _, err := crypto.GenerateEd25519Key(rand.Reader)
	if err != nil {
		return nil, errors.Wrap(err, "generate ed25519 key")
	}
	raw, err := crypto.MarshalPrivateKey(key)
	if err != nil {
		return nil, errors.Wrap(err, "marshal private key")
	}
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		return nil, errors.Wrap(err, "write private key")
	}
	return key, nil
}
