//go:build integration

package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startMinIO(t *testing.T) FileStorage {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "minio/minio:latest",
			ExposedPorts: []string{"9000/tcp"},
			Env: map[string]string{
				"MINIO_ROOT_USER":     "minioadmin",
				"MINIO_ROOT_PASSWORD": "minioadmin",
			},
			Cmd:        []string{"server", "/data"},
			WaitingFor: wait.ForHTTP("/minio/health/live").WithPort("9000/tcp").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	store, err := NewMinIOStorage(ctx, MinIOConfig{
		Endpoint:  fmt.Sprintf("%s:%s", host, port.Port()),
		AccessKey: "minioadmin",
		SecretKey: "minioadmin",
		Bucket:    "attachments",
	}, slog.Default())
	require.NoError(t, err)
	return store
}

func TestMinIOStorage_Lifecycle(t *testing.T) {
	store := startMinIO(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "temp/2026/10/18/a.txt", strings.NewReader("blob"), 4, "text/plain"))

	exists, err := store.Exists(ctx, "temp/2026/10/18/a.txt")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, store.Move(ctx, "temp/2026/10/18/a.txt", "news/42/a.txt"))
	exists, err = store.Exists(ctx, "temp/2026/10/18/a.txt")
	require.NoError(t, err)
	assert.False(t, exists)

	rc, err := store.Open(ctx, "news/42/a.txt")
	require.NoError(t, err)
	content, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, "blob", string(content))

	var walked []string
	require.NoError(t, store.Walk(ctx, "news", func(info FileInfo) error {
		walked = append(walked, info.Path)
		return nil
	}))
	assert.Equal(t, []string{"news/42/a.txt"}, walked)

	require.NoError(t, store.Delete(ctx, "news/42/a.txt"))
	require.NoError(t, store.Delete(ctx, "news/42/a.txt"))

	_, err = store.Open(ctx, "news/42/a.txt")
	assert.ErrorIs(t, err, ErrFileNotFound)
}
