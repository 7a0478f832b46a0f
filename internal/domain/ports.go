package domain

import (
	"context"
	"time"
)

// Tx is the handle a booking operation works through inside one atomic
// unit. The conflict check and the write that follows it must both run on
// the same Tx; checking outside and writing inside admits the race where
// two concurrent requests each observe a free slot.
type Tx interface {
	GetByID(ctx context.Context, id string) (Appointment, error)
	// Occupant returns the id of an appointment in one of the given
	// statuses holding the slot, excluding excludeID, or "" if none does.
	// Creation checks against all active statuses; the accept re-check
	// only against confirmed and booked, so that competing pending
	// requests for one slot stay acceptable until a winner commits.
	Occupant(ctx context.Context, key SlotKey, excludeID string, statuses []Status) (string, error)
	Create(ctx context.Context, appt Appointment) error
	Update(ctx context.Context, appt Appointment) error
}

// AppointmentRepository defines the persistence contract for appointments.
// Atomically runs fn inside the store's strongest isolation primitive and
// commits only if fn returns nil; concurrent units touching the same slot
// serialize. Read-only queries outside Atomically may see slightly stale
// data, which only affects display freshness.
type AppointmentRepository interface {
	Atomically(ctx context.Context, fn func(tx Tx) error) error
	GetByID(ctx context.Context, id string) (Appointment, error)
	List(ctx context.Context, filter ListFilter) ([]Appointment, error)
	CountByStatus(ctx context.Context, filter ListFilter) (map[Status]int, error)
	// StalePending returns pending appointments whose date lies before the
	// given day, for the expiry job.
	StalePending(ctx context.Context, before time.Time) ([]Appointment, error)
}

// ListFilter holds optional criteria for listing appointments. Active
// restricts the result to the active statuses and wins over Status.
type ListFilter struct {
	Status       *Status
	Active       bool
	TeacherID    string
	StudentEmail string
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

// TeacherDirectory is the engine's read-only view of teacher identities and
// their declared weekly availability, owned by the profile collaborator.
type TeacherDirectory interface {
	GetByID(ctx context.Context, id string) (Teacher, error)
	Availability(ctx context.Context, teacherID string) ([]AvailabilitySlot, error)
	// Put registers or replaces a teacher and their availability. Kept
	// minimal so the engine is runnable end to end without the full
	// profile service.
	Put(ctx context.Context, teacher Teacher, availability []AvailabilitySlot) error
}

// ChangeEvent is what the engine announces after every successful mutation.
// Downstream messaging subscribes to these; the engine does not depend on
// delivery succeeding.
type ChangeEvent struct {
	AppointmentID string
	Event         Event
	NewStatus     Status
	TeacherID     string
	StudentEmail  string
}

// EventPublisher defines the contract for emitting change events.
type EventPublisher interface {
	Publish(ctx context.Context, event ChangeEvent) error
}

// TransitionValidator checks lifecycle transitions against the domain
// transition table and returns the destination status.
type TransitionValidator interface {
	Apply(ctx context.Context, current Status, event Event) (Status, error)
}
