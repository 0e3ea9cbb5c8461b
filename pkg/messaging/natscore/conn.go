package natscore

import (
	"time"

	"pubharness/pkg/healthcheck"

	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Connect dials url with lifecycle logging. onClosed runs once the connection
// is closed for good, either by Close or after reconnects are exhausted.
func Connect(url, name string, timeout time.Duration, onClosed func()) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Timeout(timeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			klog.ErrorS(err, "NATS disconnected", "name", name, "url", nc.ConnectedUrlRedacted())
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			klog.InfoS("NATS reconnected", "name", name, "url", nc.ConnectedUrlRedacted())
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			klog.V(4).InfoS("NATS connection closed", "name", name)
			if onClosed != nil {
				onClosed()
			}
		}),
	}
	if name != "" {
		opts = append(opts, nats.Name(name))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "connect to %s", url)
	}
	klog.InfoS("Connected to NATS", "name", name, "url", nc.ConnectedUrlRedacted())
	return nc, nil
}

// Health maps the connection state to a health result. A reconnecting
// connection is degraded, anything else that is not connected is unhealthy.
func Health(nc *nats.Conn) healthcheck.HealthResult {
	if nc == nil {
		return healthcheck.HealthResult{Status: healthcheck.Unhealthy, Description: "not initialized"}
	}
	switch status := nc.Status(); status {
	case nats.CONNECTED:
		return healthcheck.HealthyResult
	case nats.RECONNECTING:
		return healthcheck.HealthResult{Status: healthcheck.Degraded, Description: "reconnecting"}
	default:
		return healthcheck.HealthResult{Status: healthcheck.Unhealthy, Description: "connection is " + status.String()}
	}
}

// IsConnectionLost reports errors after which the connection will not recover.
func IsConnectionLost(err error) bool {
	return errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrConnectionDraining)
}
