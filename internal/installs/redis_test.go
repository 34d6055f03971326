package installs_test

import (
	"context"
	"testing"

	"github.com/salon-events/salonbridge/internal/installs"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.PortEndpoint(ctx, "6379/tcp", "")
	require.NoError(t, err)
	return addr
}

func TestRedisRegistry(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	addr := setupRedis(t)
	rdb, err := installs.NewRedisClient(context.Background(), installs.RedisConfig{Addr: addr})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rdb.Close() })

	reg := installs.NewRedisRegistry(rdb)
	require.NoError(t, reg.Ping(context.Background()))
	exerciseRegistry(t, reg)
}

func TestNewRedisClient_Unreachable(t *testing.T) {
	_, err := installs.NewRedisClient(context.Background(), installs.RedisConfig{Addr: "127.0.0.1:1"})
	require.Error(t, err)
}
