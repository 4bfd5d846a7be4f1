// Package valkeytest runs a throwaway ValKey container for the cookie store tests.
package valkeytest

import (
	"context"
	"net"

	"github.com/docker/go-connections/nat"
	"github.com/valkey-io/valkey-go"

	valkeycontainer "github.com/testcontainers/testcontainers-go/modules/valkey"
	slogctx "github.com/veqryn/slog-context"
)

const (
	image = "valkey/valkey:8-alpine"
	port  = nat.Port("6379/tcp")
)

// Instance is a running container together with a client connected to it.
type Instance struct {
	Client valkey.Client
	// Addr is host:port as used in ClientOption.InitAddress.
	Addr string

	container *valkeycontainer.ValkeyContainer
}

// Start launches the container and connects a client. It panics when the
// container cannot be brought up, since no test in the package can run then.
func Start(ctx context.Context) *Instance {
	container, err := valkeycontainer.Run(ctx, image)
	if err != nil {
		slogctx.Error(ctx, "Failed to start ValKey container", "error", err)
		panic(err)
	}

	mapped, err := container.MappedPort(ctx, port)
	if err != nil {
		slogctx.Error(ctx, "Failed to map the ValKey port", "error", err)
		panic(err)
	}

	addr := net.JoinHostPort("localhost", mapped.Port())
	client, err := valkey.NewClient(valkey.ClientOption{InitAddress: []string{addr}})
	if err != nil {
		slogctx.Error(ctx, "Failed to connect to ValKey", "address", addr, "error", err)
		panic(err)
	}

	return &Instance{Client: client, Addr: addr, container: container}
}

// Stop closes the client and removes the container.
func (i *Instance) Stop(ctx context.Context) {
	i.Client.Close()

	if err := i.container.Terminate(ctx); err != nil {
		slogctx.Error(ctx, "Failed to terminate ValKey container", "error", err)
	}
}
