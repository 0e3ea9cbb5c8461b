// Package publisher implements the publishing workloads driven by the harness.
// Every variant satisfies Handle: an in-process publisher drives a linked
// messaging client on a ticker, a subprocess publisher launches an external
// publisher and turns its "Published: " output lines into notifications.
package publisher

import (
	"github.com/pkg/errors"
)

// New validates cfg and builds the handle for its variant. Nothing is executed
// until Start.
func New(cfg Config, opts ...Option) (Handle, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	switch cfg.Variant {
	case InProcess:
		return newInProcessPublisher(cfg, o), nil
	case Subprocess:
		return newSubprocessPublisher(cfg, o)
	default:
		return nil, errors.Errorf("unknown publisher variant %q", cfg.Variant)
	}
}
