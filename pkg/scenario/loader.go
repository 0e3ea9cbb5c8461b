package scenario

import (
	"os"
	"strconv"
	"time"

	"pubharness/pkg/publisher"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	yaml "gopkg.in/yaml.v2"
)

const (
	defaultFunction = "default"
	defaultInterval = time.Second
)

// Load reads a scenario file, expanding ${VAR} references from the
// environment, and applies defaults.
func Load(path string) (Scenario, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Scenario{}, errors.Wrap(err, "cannot read scenario")
	}
	return Parse(b)
}

// Parse decodes a scenario document. Unknown fields are rejected.
func Parse(b []byte) (Scenario, error) {
	// Parse environment variables from yaml
	b = []byte(os.ExpandEnv(string(b)))

	s := Scenario{}
	if err := yaml.UnmarshalStrict(b, &s); err != nil {
		return s, errors.Wrap(err, "invalid scenario")
	}
	s.applyDefaults()
	return s, s.Validate()
}

func (s *Scenario) applyDefaults() {
	for i := range s.Publishers {
		p := &s.Publishers[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		if p.Variant == "" {
			p.Variant = string(publisher.InProcess)
		}
		if p.Replicas == 0 {
			p.Replicas = 1
		}
		if p.Function == "" {
			p.Function = defaultFunction
		}
		if p.Interval == 0 {
			p.Interval = defaultInterval
		}
		if p.Stream == "" {
			p.Stream = s.Stream
		}
	}
}

// Validate checks the scenario-level consistency. Per-publisher settings are
// validated again when the publishers are built.
func (s Scenario) Validate() error {
	if s.Duration <= 0 {
		return errors.New("scenario duration must be positive")
	}
	if len(s.Publishers) == 0 {
		return errors.New("scenario has no publishers")
	}

	clientNames := map[string]bool{}
	for _, c := range s.Clients {
		if c.Name == "" || c.Type == "" {
			return errors.Errorf("client %q needs a name and a type", c.Name)
		}
		if clientNames[c.Name] {
			return errors.Errorf("duplicate client %s", c.Name)
		}
		clientNames[c.Name] = true
	}

	ids := map[string]bool{}
	for _, p := range s.Publishers {
		if p.Replicas < 1 {
			return errors.Errorf("publisher %s: replicas must be positive", p.ID)
		}
		if p.Stream == "" {
			return errors.Errorf("publisher %s: no stream configured", p.ID)
		}
		for _, id := range p.ids() {
			if ids[id] {
				return errors.Errorf("duplicate publisher id %s", id)
			}
			ids[id] = true
		}

		switch publisher.Variant(p.Variant) {
		case publisher.InProcess:
			if !clientNames[p.Client] {
				return errors.Errorf("publisher %s: unknown client %q", p.ID, p.Client)
			}
		case publisher.Subprocess:
			if p.Client != "" {
				return errors.Errorf("publisher %s: subprocess publishers do not use a client", p.ID)
			}
		default:
			return errors.Errorf("publisher %s: unknown variant %q", p.ID, p.Variant)
		}
	}
	return nil
}

func (p PublisherSpec) ids() []string {
	if p.Replicas <= 1 {
		return []string{p.ID}
	}
	ids := make([]string, p.Replicas)
	for i := range ids {
		ids[i] = p.ID + "-" + strconv.Itoa(i+1)
	}
	return ids
}
