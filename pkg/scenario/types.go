package scenario

import (
	"time"

	"pubharness/pkg/clients"
)

// Scenario is a publishing run: the clients to connect and the publishers
// driving the stream.
type Scenario struct {
	Stream     string          `yaml:"stream"`
	Duration   time.Duration   `yaml:"duration"`
	Clients    []clients.Spec  `yaml:"clients"`
	Publishers []PublisherSpec `yaml:"publishers"`
}

// PublisherSpec describes one publisher, or Replicas identical publishers
// whose ids are suffixed with their index.
type PublisherSpec struct {
	ID         string        `yaml:"id"`
	Variant    string        `yaml:"variant"`
	Replicas   int           `yaml:"replicas"`
	Function   string        `yaml:"function"`
	Interval   time.Duration `yaml:"interval"`
	Stream     string        `yaml:"stream"`
	Client     string        `yaml:"client"`
	PrivateKey string        `yaml:"privateKey"`
	GroupKey   string        `yaml:"groupKey"`
	Launcher   string        `yaml:"launcher"`
	KillGrace  time.Duration `yaml:"killGrace"`
}
