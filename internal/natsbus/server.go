// Package natsbus runs an embedded NATS server and a thin client used to
// publish swarm, task and scheduler lifecycle events. The web layer
// subscribes to the same topics to feed its websocket stream.
package natsbus

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/avlonitis/swarmgate/internal/config"
	natsserver "github.com/nats-io/nats-server/v2/server"
)

const readyTimeout = 5 * time.Second

// Bus owns the embedded server. JetStream is enabled so event history
// survives restarts in the configured data dir.
type Bus struct {
	server *natsserver.Server
	port   int
}

func New(cfg config.NATSConfig) (*Bus, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create nats data dir: %w", err)
	}

	ns, err := natsserver.NewServer(&natsserver.Options{
		ServerName: "swarmgate",
		Port:       cfg.Port,
		NoLog:      true,
		NoSigs:     true,
		JetStream:  true,
		StoreDir:   cfg.DataDir,
	})
	if err != nil {
		return nil, fmt.Errorf("create nats server: %w", err)
	}

	go ns.Start()
	if !ns.ReadyForConnections(readyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("nats server not ready after %s", readyTimeout)
	}
	slog.Debug("embedded nats ready", "url", ns.ClientURL())

	return &Bus{server: ns, port: cfg.Port}, nil
}

// ClientURL returns the in-process connection URL.
func (b *Bus) ClientURL() string {
	return b.server.ClientURL()
}

func (b *Bus) Port() int {
	return b.port
}

func (b *Bus) Close() {
	b.server.Shutdown()
	b.server.WaitForShutdown()
}
