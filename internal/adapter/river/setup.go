package river

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riversqlite"
	"github.com/riverqueue/river/rivermigrate"
	"go.uber.org/zap"
)

// Setup creates a River client with the notification and expiry workers
// registered and runs River's internal migrations. A sweepInterval of zero
// leaves the periodic expiry job unscheduled. The caller must call
// client.Start() to begin processing jobs and client.Stop() for graceful
// shutdown, and Bind the booking service on the returned ExpiryWorker
// before starting.
func Setup(ctx context.Context, db *sql.DB, logger *zap.Logger, sweepInterval time.Duration) (*Client, *ExpiryWorker, error) {
	driver := riversqlite.New(db)

	// Run River's own migrations (creates river_job, river_leader, etc.).
	// These are separate from the app's goose migrations.
	migrator, err := rivermigrate.New(driver, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("creating river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return nil, nil, fmt.Errorf("running river migrations: %w", err)
	}

	expiry := &ExpiryWorker{logger: logger}

	workers := river.NewWorkers()
	river.AddWorker(workers, &NotifyWorker{logger: logger})
	river.AddWorker(workers, expiry)

	cfg := &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 2},
		},
		Workers: workers,
	}

	if sweepInterval > 0 {
		cfg.PeriodicJobs = []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(sweepInterval),
				func() (river.JobArgs, *river.InsertOpts) {
					return ExpiryJobArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		}
	}

	client, err := river.NewClient(driver, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating river client: %w", err)
	}

	return client, expiry, nil
}
