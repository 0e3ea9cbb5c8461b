package scenario

import (
	"pubharness/pkg/messaging"
	"pubharness/pkg/publisher"

	"github.com/pkg/errors"
)

// ClientLookup resolves a scenario client name to an initialized client.
type ClientLookup func(name string) (messaging.Publisher, bool)

// PublisherConfigs expands the scenario publishers into handle
// configurations. defaultLauncher is used by subprocess publishers that do not
// name their own launcher.
func (s Scenario) PublisherConfigs(defaultLauncher string, lookup ClientLookup) ([]publisher.Config, error) {
	var configs []publisher.Config
	for _, p := range s.Publishers {
		fn, err := publisher.LookupFunction(p.Function)
		if err != nil {
			if publisher.Variant(p.Variant) == publisher.InProcess {
				return nil, errors.Wrapf(err, "publisher %s", p.ID)
			}
			// external publishers own their strategies
			fn = publisher.PublishFunction{Name: p.Function}
		}

		base := publisher.Config{
			Variant:    publisher.Variant(p.Variant),
			StreamID:   p.Stream,
			Function:   fn,
			Interval:   p.Interval,
			Credential: p.PrivateKey,
			GroupKey:   p.GroupKey,
			KillGrace:  p.KillGrace,
		}

		switch base.Variant {
		case publisher.InProcess:
			client, ok := lookup(p.Client)
			if !ok {
				return nil, errors.Errorf("publisher %s: client %s is not initialized", p.ID, p.Client)
			}
			base.Client = client
		case publisher.Subprocess:
			launcher := p.Launcher
			if launcher == "" {
				launcher = defaultLauncher
			}
			argv, err := publisher.ParseLauncher(launcher)
			if err != nil {
				return nil, errors.Wrapf(err, "publisher %s", p.ID)
			}
			base.Launcher = argv
		}

		for _, id := range p.ids() {
			cfg := base
			cfg.PublisherID = id
			if err := cfg.Validate(); err != nil {
				return nil, err
			}
			configs = append(configs, cfg)
		}
	}
	return configs, nil
}
