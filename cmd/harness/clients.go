package main

import (
	"pubharness/pkg/clients"
	"pubharness/pkg/messaging"
	"pubharness/pkg/messaging/gossip"
	"pubharness/pkg/messaging/jetstream"
	"pubharness/pkg/messaging/natscore"
	"pubharness/pkg/messaging/natsstreaming"
)

func RegisterClientFactories() []clients.Option {
	return []clients.Option{
		clients.WithClients(
			clients.New("inmemory", func() messaging.Client {
				return messaging.NewInMemoryBus()
			}),
			clients.New("nats", natscore.NewNATSClient),
			clients.New("jetstream", jetstream.NewJetStreamClient),
			clients.New("natsstreaming", natsstreaming.NewNATSStreamingClient),
			clients.New("libp2p", gossip.NewGossipClient),
		),
	}
}
