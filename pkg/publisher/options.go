package publisher

import (
	"k8s.io/klog/v2"
	"k8s.io/utils/clock"
	"k8s.io/utils/strings"
)

const maxLoggedLine = 4096

// DiagnosticsFunc receives every line an external publisher writes.
// source is "stdout" or "stderr".
type DiagnosticsFunc func(publisherID, source, line string)

type options struct {
	clock       clock.WithTicker
	diagnostics DiagnosticsFunc
}

// Option customizes a publisher handle.
type Option func(o *options)

// WithClock sets the clock driving the in-process publish interval.
func WithClock(c clock.WithTicker) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithDiagnostics replaces the default klog sink for subprocess output lines.
func WithDiagnostics(f DiagnosticsFunc) Option {
	return func(o *options) {
		o.diagnostics = f
	}
}

func defaultOptions() options {
	return options{
		clock:       clock.RealClock{},
		diagnostics: logDiagnostics,
	}
}

func logDiagnostics(publisherID, source, line string) {
	klog.InfoS("publisher output", "publisher", publisherID, "source", source,
		"line", strings.ShortenString(line, maxLoggedLine))
}
