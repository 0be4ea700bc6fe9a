// Package jobqueue runs the River-based background jobs of the service.
// The only job today is audit log retention: execution_logs rows are the
// forensic record of every authentication attempt and are never deleted
// on the request path, so an out-of-band pruner keeps the table bounded.
package jobqueue

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/zerolog/log"
)

const retentionQueue = "retention"

// LogRetentionArgs prunes execution logs older than RetentionDays.
type LogRetentionArgs struct {
	RetentionDays int `json:"retention_days"`
}

// Kind returns the job kind for River
func (LogRetentionArgs) Kind() string { return "log_retention" }

// LogRetentionWorker deletes expired audit rows in one statement.
type LogRetentionWorker struct {
	river.WorkerDefaults[LogRetentionArgs]
	pool *pgxpool.Pool
}

func (w *LogRetentionWorker) Work(ctx context.Context, job *river.Job[LogRetentionArgs]) error {
	if job.Args.RetentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -job.Args.RetentionDays)

	tag, err := w.pool.Exec(ctx,
		`DELETE FROM execution_logs WHERE executed_at < $1`, cutoff)
	if err != nil {
		return fmt.Errorf("prune execution logs: %w", err)
	}

	log.Info().
		Int64("rows", tag.RowsAffected()).
		Time("cutoff", cutoff).
		Msg("pruned execution logs")
	return nil
}

// JobQueue manages the River job queue
type JobQueue struct {
	client *river.Client[pgx.Tx]
	pool   *pgxpool.Pool
}

// NewJobQueue creates the queue with the daily retention job scheduled.
// River's own tables are migrated up front so a fresh database can run
// jobs without a separate migration step.
func NewJobQueue(ctx context.Context, pool *pgxpool.Pool, retentionDays int) (*JobQueue, error) {
	driver := riverpgxv5.New(pool)

	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{}); err != nil {
		return nil, fmt.Errorf("migrate river schema: %w", err)
	}

	workers := river.NewWorkers()
	river.AddWorker(workers, &LogRetentionWorker{pool: pool})

	periodic := []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(24*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return LogRetentionArgs{RetentionDays: retentionDays}, &river.InsertOpts{Queue: retentionQueue}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	}

	client, err := river.NewClient(driver, &river.Config{
		Queues: map[string]river.QueueConfig{
			retentionQueue: {MaxWorkers: 1},
		},
		Workers:      workers,
		PeriodicJobs: periodic,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create River client: %w", err)
	}

	return &JobQueue{client: client, pool: pool}, nil
}

// Start starts the job queue workers
func (jq *JobQueue) Start(ctx context.Context) error {
	return jq.client.Start(ctx)
}

// Stop stops the job queue workers
func (jq *JobQueue) Stop(ctx context.Context) error {
	return jq.client.Stop(ctx)
}
