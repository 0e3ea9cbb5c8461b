package clients

import (
	"context"
	"sort"
	"sync"

	"pubharness/pkg/healthcheck"
	"pubharness/pkg/messaging"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Spec describes one client instance of a scenario.
type Spec struct {
	Name     string            `yaml:"name"`
	Type     string            `yaml:"type"`
	Version  string            `yaml:"version"`
	Metadata map[string]string `yaml:"metadata"`
}

type (
	managerOpts struct {
		clients []Definition
	}

	// Option customizes the client manager.
	Option func(o *managerOpts)
)

// WithClients adds client factories to the manager registry.
func WithClients(definitions ...Definition) Option {
	return func(o *managerOpts) {
		o.clients = append(o.clients, definitions...)
	}
}

// Manager creates, initializes and owns the named client instances of a run.
type Manager struct {
	registry  Registry
	instances map[string]messaging.Client
	mux       sync.RWMutex
}

func NewManager(opts ...Option) *Manager {
	var o managerOpts
	for _, opt := range opts {
		opt(&o)
	}
	m := &Manager{
		registry:  NewRegistry(),
		instances: map[string]messaging.Client{},
	}
	m.registry.Register(o.clients...)
	return m
}

// Init creates and initializes the client described by spec.
func (m *Manager) Init(spec Spec) error {
	m.mux.RLock()
	_, exists := m.instances[spec.Name]
	m.mux.RUnlock()
	if exists {
		return errors.Errorf("client %s is already initialized", spec.Name)
	}

	client, err := m.registry.Create(spec.Type, spec.Version)
	if err != nil {
		return errors.Wrapf(err, "error creating client %s", spec.Name)
	}

	//clone the metadata
	metadata := make(map[string]string, len(spec.Metadata))
	for k, v := range spec.Metadata {
		metadata[k] = v
	}
	if err := client.Init(metadata); err != nil {
		return errors.Wrapf(err, "error initializing client %s (%s/%s)", spec.Name, spec.Type, spec.Version)
	}
	klog.InfoS("Client initialized", "name", spec.Name, "type", spec.Type, "version", spec.Version)

	m.mux.Lock()
	defer m.mux.Unlock()
	m.instances[spec.Name] = client
	return nil
}

// Get returns the initialized client called name.
func (m *Manager) Get(name string) (messaging.Client, bool) {
	m.mux.RLock()
	defer m.mux.RUnlock()
	c, ok := m.instances[name]
	return c, ok
}

// Close closes every client and returns the first error.
func (m *Manager) Close() error {
	m.mux.Lock()
	defer m.mux.Unlock()
	var first error
	for _, name := range m.names() {
		if err := m.instances[name].Close(); err != nil {
			klog.ErrorS(err, "Error closing client", "name", name)
			if first == nil {
				first = err
			}
		}
		delete(m.instances, name)
	}
	return first
}

func (m *Manager) names() []string {
	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsHealthy reports the first client that is not healthy.
func (m *Manager) IsHealthy(ctx context.Context) healthcheck.HealthResult {
	m.mux.RLock()
	defer m.mux.RUnlock()

	for _, name := range m.names() {
		if hc, ok := m.instances[name].(healthcheck.HealthChecker); ok {
			if r := hc.IsHealthy(ctx); r.Status != healthcheck.Healthy {
				r.Description = name + ": " + r.Description
				return r
			}
		}
	}
	return healthcheck.HealthyResult
}
