package migrations

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// TestRunClickhouseMigrations verifies the runner creates the target
// database through the admin connection and applies the embedded schema,
// idempotently.
func TestRunClickhouseMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60 * time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	defer func() { _ = container.Terminate(ctx) }()

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	// The target database does not exist yet; the runner must create it.
	dsn := fmt.Sprintf("clickhouse://%s:%s/labtest", host, port.Port())

	conn, err := RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err)

	var count uint64
	row := conn.QueryRow(ctx, "SELECT count() FROM candles")
	require.NoError(t, row.Scan(&count))
	require.Zero(t, count)
	require.NoError(t, conn.Close())

	// Re-running against the existing database must be a no-op.
	conn, err = RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err)
	defer conn.Close()

	row = conn.QueryRow(ctx, "SELECT count() FROM candles")
	require.NoError(t, row.Scan(&count))
	require.Zero(t, count)
}
