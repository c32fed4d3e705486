package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func requireIntegration(t *testing.T) {
	t.Helper()
	if testing.Short() || os.Getenv("RESEARCHER_INTEGRATION") != "1" {
		t.Skip("set RESEARCHER_INTEGRATION=1 to run container tests")
	}
}

func startContainer(t *testing.T, ctx context.Context, req testcontainers.ContainerRequest) string {
	t.Helper()
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{ContainerRequest: req, Started: true})
	if err != nil {
		t.Fatalf("start %s: %v", req.Image, err)
	}
	t.Cleanup(func() { _ = c.Terminate(context.Background()) })
	endpoint, err := c.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("container endpoint: %v", err)
	}
	return endpoint
}

func TestPostgresIntegration(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()

	addr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "researcher",
			"POSTGRES_PASSWORD": "researcher",
			"POSTGRES_DB":       "researcher",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2).WithStartupTimeout(60 * time.Second),
	})
	dsn := fmt.Sprintf("postgres://researcher:researcher@%s/researcher?sslmode=disable", addr)

	dir, err := filepath.Abs(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatalf("migrations dir: %v", err)
	}
	m, err := migrate.New("file://"+dir, dsn)
	if err != nil {
		t.Fatalf("migrate.New: %v", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrate up: %v", err)
	}

	st, err := OpenPostgres(ctx, dsn, 10*time.Second)
	if err != nil {
		t.Fatalf("OpenPostgres: %v", err)
	}
	defer st.Close()
	testStoreContract(t, st)
}

func TestRedisIntegration(t *testing.T) {
	requireIntegration(t)
	ctx := context.Background()

	addr := startContainer(t, ctx, testcontainers.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForLog("Ready to accept connections").WithStartupTimeout(30 * time.Second),
	})

	client, err := ConnRedis(ctx, addr, "", 0, 5*time.Second)
	if err != nil {
		t.Fatalf("ConnRedis: %v", err)
	}
	st := NewRedis(client)
	defer st.Close()
	testStoreContract(t, st)
}
