package domain

import "time"

// Status represents the lifecycle state of an appointment.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusBooked    Status = "booked"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusRejected  Status = "rejected"
)

// Active reports whether the appointment still contends for its slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusConfirmed || s == StatusBooked
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejected
}

// ActiveStatuses is the set of statuses that occupy a slot.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed, StatusBooked}

// WinnerStatuses is the subset of active statuses that settle a slot.
var WinnerStatuses = []Status{StatusConfirmed, StatusBooked}

// Event represents an action that triggers a state transition.
type Event string

const (
	EventAccept   Event = "accept"
	EventReject   Event = "reject"
	EventCancel   Event = "cancel"
	EventComplete Event = "complete"

	// Creation markers. They never appear in Transitions; they exist so the
	// event stream can announce newly created appointments.
	EventRequested Event = "requested"
	EventBooked    Event = "booked"
)

// Role identifies the kind of actor invoking an operation.
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a role label from the caller layer.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleStudent, RoleTeacher, RoleAdmin:
		return Role(s), nil
	default:
		return "", &ValidationError{Field: "role", Reason: "must be student, teacher or admin"}
	}
}

// Actor is the already-authenticated caller identity. For students ID is
// their email address, since students may have no account of their own.
type Actor struct {
	ID   string
	Role Role
}

// CreatorRole is the closed enumeration of actors that may originate an
// appointment: a student request or a teacher direct booking.
type CreatorRole string

const (
	CreatedByStudent CreatorRole = "student"
	CreatedByTeacher CreatorRole = "teacher"
)

// Transition defines a valid state change: an event moves an appointment
// from Src to Dst.
type Transition struct {
	Event Event
	Src   Status
	Dst   Status
}

// Transitions defines all valid state changes in the appointment lifecycle.
// This is domain knowledge consumed by the FSM adapter.
var Transitions = []Transition{
	{Event: EventAccept, Src: StatusPending, Dst: StatusConfirmed},
	{Event: EventReject, Src: StatusPending, Dst: StatusRejected},
	{Event: EventCancel, Src: StatusPending, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusConfirmed, Dst: StatusCancelled},
	{Event: EventCancel, Src: StatusBooked, Dst: StatusCancelled},
	{Event: EventComplete, Src: StatusConfirmed, Dst: StatusCompleted},
	{Event: EventComplete, Src: StatusBooked, Dst: StatusCompleted},
}

// EventRoles lists the roles permitted to trigger each event. Ownership
// checks (the owning teacher, the requesting student) are enforced by the
// booking service on top of this table.
var EventRoles = map[Event][]Role{
	EventAccept:   {RoleTeacher},
	EventReject:   {RoleTeacher},
	EventCancel:   {RoleStudent, RoleTeacher, RoleAdmin},
	EventComplete: {RoleTeacher, RoleAdmin},
}

// RoleMayTrigger reports whether the role appears in the event's role set.
func RoleMayTrigger(event Event, role Role) bool {
	for _, r := range EventRoles[event] {
		if r == role {
			return true
		}
	}
	return false
}

// StudentInfo identifies the student a booking is for. Email is the
// secondary identity key for students without an account.
type StudentInfo struct {
	Name    string
	Email   string
	Phone   string
	Subject string
	Message string
}

// Appointment is the core domain entity: one booking of a teacher's
// consultation slot.
type Appointment struct {
	ID        string
	TeacherID string
	Student   StudentInfo

	Day      Weekday
	TimeSlot string // canonical form, see NormalizeTime
	Date     time.Time

	Status    Status
	CreatedBy CreatorRole

	ResponseMessage string
	RespondedAt     *time.Time

	CancellationReason string
	CancelledBy        Role
	CancelledAt        *time.Time

	CompletedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Slot returns the conflict-detection key for this appointment.
func (a Appointment) Slot() SlotKey {
	return SlotKey{TeacherID: a.TeacherID, Date: a.Date, TimeSlot: a.TimeSlot}
}

// NewRequest creates a student-originated appointment in the pending state.
// TimeSlot must already be canonical and Date truncated to day granularity.
func NewRequest(id, teacherID string, student StudentInfo, day Weekday, timeSlot string, date time.Time) Appointment {
	now := time.Now().UTC()
	return Appointment{
		ID:        id,
		TeacherID: teacherID,
		Student:   student,
		Day:       day,
		TimeSlot:  timeSlot,
		Date:      date,
		Status:    StatusPending,
		CreatedBy: CreatedByStudent,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewDirectBooking creates a teacher-originated appointment. It starts in
// the booked state because the teacher is both requester and approver.
func NewDirectBooking(id, teacherID string, student StudentInfo, day Weekday, timeSlot string, date time.Time) Appointment {
	a := NewRequest(id, teacherID, student, day, timeSlot, date)
	a.Status = StatusBooked
	a.CreatedBy = CreatedByTeacher
	return a
}

// Teacher is the read-only identity an appointment references. Profile
// management is owned by a separate collaborator; the engine only needs
// existence and declared availability.
type Teacher struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// AvailabilitySlot is one entry of a teacher's declared weekly availability.
type AvailabilitySlot struct {
	Day      Weekday
	TimeSlot string // canonical form
}
