package clients

import (
	"strings"

	"pubharness/pkg/messaging"

	"github.com/pkg/errors"
)

const initialVersion = "v1"

type (
	// Definition is a named messaging client factory.
	Definition struct {
		Name          string
		Version       string
		FactoryMethod func() messaging.Client
	}

	// Registry is the interface for callers to get registered messaging clients.
	Registry interface {
		Register(definitions ...Definition)
		Create(name, version string) (messaging.Client, error)
	}

	clientRegistry struct {
		factories map[string]func() messaging.Client
	}
)

// New creates a Definition for the initial version of a client type.
func New(name string, factoryMethod func() messaging.Client) Definition {
	return Definition{
		Name:          name,
		Version:       initialVersion,
		FactoryMethod: factoryMethod,
	}
}

// NewRegistry returns a new client registry.
func NewRegistry() Registry {
	return &clientRegistry{
		factories: map[string]func() messaging.Client{},
	}
}

// Register registers one or more client factories.
func (r *clientRegistry) Register(definitions ...Definition) {
	for _, d := range definitions {
		version := d.Version
		if version == "" {
			version = initialVersion
		}
		r.factories[fullName(d.Name, version)] = d.FactoryMethod
	}
}

// Create instantiates a client based on `name` and `version`. An empty or
// initial version resolves to the initial version of the client type.
func (r *clientRegistry) Create(name, version string) (messaging.Client, error) {
	if method, ok := r.factories[fullName(name, version)]; ok {
		return method(), nil
	}
	if IsInitialVersion(version) {
		if method, ok := r.factories[fullName(name, initialVersion)]; ok {
			return method(), nil
		}
	}
	return nil, errors.Errorf("couldn't find messaging client %s/%s", name, version)
}

// IsInitialVersion reports whether version selects the first version of a client.
func IsInitialVersion(version string) bool {
	v := strings.ToLower(version)
	return v == "" || v == "v0" || v == initialVersion
}

func fullName(name, version string) string {
	return strings.ToLower(name + "/" + version)
}
