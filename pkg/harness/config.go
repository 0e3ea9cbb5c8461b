package harness

import (
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
)

const envPrefix = "harness"

// envDefaults are read from HARNESS_* variables and become the flag defaults.
type envDefaults struct {
	Scenario          string        `envconfig:"SCENARIO"`
	Launcher          string        `envconfig:"LAUNCHER" default:"node publisher.js"`
	Duration          time.Duration `envconfig:"DURATION"`
	StopTimeout       time.Duration `envconfig:"STOP_TIMEOUT" default:"10s"`
	DiagnosticsPort   int           `envconfig:"DIAGNOSTICS_PORT" default:"8080"`
	EnableDiagnostics bool          `envconfig:"ENABLE_DIAGNOSTICS" default:"true"`
	EnableMetrics     bool          `envconfig:"ENABLE_METRICS" default:"true"`
	TracingEndpoint   string        `envconfig:"TRACING_ENDPOINT"`
}

type ConfigBuilder struct {
	scenario          string
	launcher          string
	duration          time.Duration
	stopTimeout       time.Duration
	diagnosticsPort   int
	enableDiagnostics bool
	enableMetrics     bool
	tracingEndpoint   string

	defaults envDefaults
}

type Config struct {
	ScenarioPath string
	// Launcher is the default command line for subprocess publishers.
	Launcher string
	// Duration overrides the scenario duration when positive.
	Duration          time.Duration
	StopTimeout       time.Duration
	DiagnosticsPort   int
	EnableDiagnostics bool
	EnableMetrics     bool
	TracingEndpoint   string
}

// NewConfigBuilder reads the HARNESS_* environment. Command line flags
// attached afterwards take precedence over it.
func NewConfigBuilder() (ConfigBuilder, error) {
	c := ConfigBuilder{}
	if err := envconfig.Process(envPrefix, &c.defaults); err != nil {
		return c, errors.Wrap(err, "invalid harness environment")
	}
	return c, nil
}

func (c *ConfigBuilder) AttachCmdFlags(
	stringVar func(p *string, name string, value string, usage string),
	boolVar func(p *bool, name string, value bool, usage string),
	intVar func(p *int, name string, value int, usage string),
	durationVar func(p *time.Duration, name string, value time.Duration, usage string)) {

	d := c.defaults
	stringVar(&c.scenario, "scenario", d.Scenario, "Path to the scenario file (HARNESS_SCENARIO)")
	stringVar(&c.launcher, "launcher", d.Launcher, "Default command line launching subprocess publishers (HARNESS_LAUNCHER)")
	durationVar(&c.duration, "duration", d.Duration, "Overrides the scenario run duration (HARNESS_DURATION)")
	durationVar(&c.stopTimeout, "stop-timeout", d.StopTimeout, "How long to wait for publishers to exit after stop (HARNESS_STOP_TIMEOUT)")
	intVar(&c.diagnosticsPort, "diagnostics-port", d.DiagnosticsPort, "Sets the HTTP port for the diagnostics server (healthz and metrics)")
	boolVar(&c.enableDiagnostics, "enable-diagnostics", d.EnableDiagnostics, "Serve healthz and metrics while the scenario runs")
	boolVar(&c.enableMetrics, "enable-metrics", d.EnableMetrics, "Enable prometheus metrics endpoint")
	stringVar(&c.tracingEndpoint, "tracing-endpoint", d.TracingEndpoint, "OTLP gRPC endpoint receiving publish spans; tracing is off when empty")
}

func (c *ConfigBuilder) Build() (Config, error) {
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return Config{
		ScenarioPath:      c.scenario,
		Launcher:          c.launcher,
		Duration:          c.duration,
		StopTimeout:       c.stopTimeout,
		DiagnosticsPort:   c.diagnosticsPort,
		EnableDiagnostics: c.enableDiagnostics,
		EnableMetrics:     c.enableMetrics,
		TracingEndpoint:   c.tracingEndpoint,
	}, nil
}

func (c *ConfigBuilder) validate() error {
	if c.scenario == "" {
		return errors.New("scenario parameter cannot be empty")
	}
	if c.duration < 0 {
		return errors.New("duration cannot be negative")
	}
	if c.stopTimeout <= 0 {
		return errors.New("stop-timeout must be positive")
	}
	if c.enableDiagnostics && (c.diagnosticsPort < 0 || c.diagnosticsPort > 65535) {
		return errors.Errorf("invalid diagnostics port %d", c.diagnosticsPort)
	}
	return nil
}
