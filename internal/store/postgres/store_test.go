package postgres

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/CodehubPriyanshu/taskhub-central-sub000/internal/store/storetest"
)

// startPostgres returns a DSN for a throwaway database. DATABASE_URL wins when
// set; otherwise a container is started when TASKHUB_TEST_POSTGRES=1.
func startPostgres(t *testing.T) string {
	t.Helper()
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		return dsn
	}
	if os.Getenv("TASKHUB_TEST_POSTGRES") != "1" {
		t.Skip("set DATABASE_URL or TASKHUB_TEST_POSTGRES=1 to run postgres tests")
	}
	ctx := context.Background()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:15",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "taskhub",
			"POSTGRES_PASSWORD": "taskhub",
			"POSTGRES_DB":       "taskhub",
		},
		WaitingFor: wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	c, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := c.Terminate(context.Background()); err != nil {
			t.Errorf("terminate container: %v", err)
		}
	})
	host, err := c.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := c.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("postgres://taskhub:taskhub@%s:%s/taskhub?sslmode=disable", host, port.Port())
}

func openWithRetry(t *testing.T, dsn string) *Store {
	t.Helper()
	var lastErr error
	for i := 0; i < 10; i++ {
		st, err := Open(dsn)
		if err == nil {
			return st
		}
		lastErr = err
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("Open: %v", lastErr)
	return nil
}

func TestPostgresStore(t *testing.T) {
	st := openWithRetry(t, startPostgres(t))
	defer func() { _ = st.Close() }()
	storetest.Run(t, st)

	// Migrate is idempotent on an already migrated database.
	if err := st.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate again: %v", err)
	}
}

func TestOpen_requiresDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Open(""); err == nil {
		t.Fatal("expected error without DSN")
	}
}
