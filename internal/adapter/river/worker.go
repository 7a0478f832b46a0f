package river

import (
	"context"

	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

// NotifyWorker processes appointment change jobs from the River queue.
// For now it logs the change; this is where a mail or chat integration
// would hang off the event stream. The booking engine itself never waits
// on this worker.
type NotifyWorker struct {
	river.WorkerDefaults[ChangeJobArgs]

	logger *zap.Logger
}

// Work processes a single change job.
func (w *NotifyWorker) Work(ctx context.Context, job *river.Job[ChangeJobArgs]) error {
	w.logger.Info("appointment changed",
		zap.String("appointment_id", job.Args.AppointmentID),
		zap.String("event", job.Args.Event),
		zap.String("new_status", job.Args.NewStatus),
		zap.String("teacher_id", job.Args.TeacherID),
		zap.String("student_email", job.Args.StudentEmail),
		zap.Int64("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}

// ExpiryJobArgs triggers one sweep over stale pending requests.
type ExpiryJobArgs struct{}

// Kind returns the unique job type identifier used by River's job routing.
func (ExpiryJobArgs) Kind() string { return "appointment.expire_pending" }

// PendingExpirer is the slice of the booking service the expiry job needs.
type PendingExpirer interface {
	ExpireStalePending(ctx context.Context) (int, error)
}

// ExpiryWorker runs the periodic pending-expiry sweep. The expirer is
// bound after construction because the booking service needs the River
// client (for publishing) before it can exist itself.
type ExpiryWorker struct {
	river.WorkerDefaults[ExpiryJobArgs]

	logger  *zap.Logger
	expirer PendingExpirer
}

// Bind attaches the booking service. Must be called before the client
// starts processing jobs.
func (w *ExpiryWorker) Bind(e PendingExpirer) {
	w.expirer = e
}

// Work runs a single expiry sweep.
func (w *ExpiryWorker) Work(ctx context.Context, job *river.Job[ExpiryJobArgs]) error {
	if w.expirer == nil {
		w.logger.Warn("expiry sweep skipped: no expirer bound", zap.Int64("job_id", job.ID))
		return nil
	}

	expired, err := w.expirer.ExpireStalePending(ctx)
	if err != nil {
		return err
	}

	w.logger.Info("expiry sweep finished",
		zap.Int("expired", expired),
		zap.Int64("job_id", job.ID),
	)
	return nil
}
