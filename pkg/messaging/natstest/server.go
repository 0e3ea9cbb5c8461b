// Package natstest runs embedded NATS servers for client tests.
package natstest

import (
	"testing"

	"github.com/nats-io/nats-server/v2/server"
	natsserver "github.com/nats-io/nats-server/v2/test"
)

// RunServer starts a NATS server on a random port and shuts it down when the
// test ends. With jetStream set, JetStream is enabled with storage in a
// temporary directory.
func RunServer(t testing.TB, jetStream bool) *server.Server {
	t.Helper()
	opts := natsserver.DefaultTestOptions
	opts.Port = -1
	opts.JetStream = jetStream
	if jetStream {
		opts.StoreDir = t.TempDir()
	}
	srv := natsserver.RunServer(&opts)
	t.Cleanup(srv.Shutdown)
	return srv
}
