package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/okalidis/consultiq/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// ChangeJobArgs carries an appointment change event through the job queue.
// River serializes this as JSON into its job table; it is a snapshot, so
// the notification worker never has to re-read the appointment.
type ChangeJobArgs struct {
	AppointmentID string `json:"appointment_id"`
	Event         string `json:"event"`
	NewStatus     string `json:"new_status"`
	TeacherID     string `json:"teacher_id"`
	StudentEmail  string `json:"student_email"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (ChangeJobArgs) Kind() string { return "appointment.changed" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a change event as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.ChangeEvent) error {
	_, err := p.client.Insert(ctx, ChangeJobArgs{
		AppointmentID: event.AppointmentID,
		Event:         string(event.Event),
		NewStatus:     string(event.NewStatus),
		TeacherID:     event.TeacherID,
		StudentEmail:  event.StudentEmail,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing change job: %w", err)
	}
	return nil
}
