package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for simple conditions without extra context.
var (
	ErrTeacherNotFound     = errors.New("teacher not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// ValidationError is returned for malformed or missing input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvalidTimeError is returned when time-window text matches neither the
// single-time nor the range pattern.
type InvalidTimeError struct {
	Input string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("unrecognized time format %q", e.Input)
}

// ForbiddenError is returned when the actor lacks entitlement for the
// requested operation.
type ForbiddenError struct {
	ActorID string
	Role    Role
	Action  string
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s %q may not %s", e.Role, e.ActorID, e.Action)
}

// TransitionError is returned when a state transition is not allowed.
type TransitionError struct {
	Event   Event
	Current Status
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("event %q is not valid from state %q", e.Event, e.Current)
}

// SlotConflictError is returned when another active appointment already
// occupies the requested (teacher, date, time) slot.
type SlotConflictError struct {
	TeacherID  string
	Date       string
	TimeSlot   string
	OccupantID string
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot %s %s for teacher %q is taken by appointment %q",
		e.Date, e.TimeSlot, e.TeacherID, e.OccupantID)
}
