package jobqueue

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func openTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set (skipping DB-backed job queue test)")
	}
	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

func TestNewJobQueueProvisionsRiverSchema(t *testing.T) {
	pool := openTestPool(t)
	ctx := context.Background()

	if _, err := NewJobQueue(ctx, pool, 90); err != nil {
		t.Fatalf("new job queue: %v", err)
	}

	// The queue can only run on a fresh database if its own tables came
	// up with it.
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'river_job')`,
	).Scan(&exists)
	if err != nil {
		t.Fatalf("check river_job table: %v", err)
	}
	if !exists {
		t.Fatal("river_job table was not created")
	}
}
