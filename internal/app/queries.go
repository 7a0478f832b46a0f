package app

import (
	"context"
	"strings"
	"time"

	"github.com/okalidis/consultiq/internal/domain"
)

// Query/reporting surface: read-only projections over the lifecycle state.
// The same visibility rule as the mutating operations applies: a teacher
// sees their own appointments, a student theirs by email match, an admin
// everything.

// GetByID returns a single appointment if the actor is entitled to see it.
func (s *BookingService) GetByID(ctx context.Context, actor domain.Actor, id string) (domain.Appointment, error) {
	appt, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Appointment{}, err
	}
	if !mayView(actor, appt) {
		return domain.Appointment{}, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "view this appointment"}
	}
	return appt, nil
}

// List returns appointments matching the filter, scoped to what the actor
// may see.
func (s *BookingService) List(ctx context.Context, actor domain.Actor, filter domain.ListFilter) ([]domain.Appointment, error) {
	return s.repo.List(ctx, scopeFilter(actor, filter))
}

// PendingForTeacher returns the open requests awaiting the teacher's
// response, oldest first.
func (s *BookingService) PendingForTeacher(ctx context.Context, actor domain.Actor, teacherID string) ([]domain.Appointment, error) {
	if actor.Role == domain.RoleTeacher && actor.ID != teacherID {
		return nil, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "view another teacher's requests"}
	}
	if actor.Role == domain.RoleStudent {
		return nil, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "view a teacher's request queue"}
	}

	pending := domain.StatusPending
	return s.repo.List(ctx, domain.ListFilter{Status: &pending, TeacherID: teacherID})
}

// Stats returns appointment counts by status within the actor's scope.
// Counts are derived from the persisted appointment set rather than kept
// as running totals, so they cannot drift.
func (s *BookingService) Stats(ctx context.Context, actor domain.Actor, filter domain.ListFilter) (map[domain.Status]int, error) {
	return s.repo.CountByStatus(ctx, scopeFilter(actor, filter))
}

// AvailableSlots returns the teacher's declared slots for the date's
// weekday with active occupants removed.
func (s *BookingService) AvailableSlots(ctx context.Context, teacherID string, date time.Time) ([]string, error) {
	if _, err := s.teachers.GetByID(ctx, teacherID); err != nil {
		return nil, err
	}

	declared, err := s.teachers.Availability(ctx, teacherID)
	if err != nil {
		return nil, err
	}

	day0 := domain.DateOnly(date)
	from, to := day0, day0
	active, err := s.repo.List(ctx, domain.ListFilter{TeacherID: teacherID, From: &from, To: &to, Active: true})
	if err != nil {
		return nil, err
	}

	taken := make(map[string]bool, len(active))
	for _, appt := range active {
		taken[appt.TimeSlot] = true
	}

	weekday := domain.WeekdayOf(day0)
	var free []string
	for _, slot := range declared {
		if slot.Day == weekday && !taken[slot.TimeSlot] {
			free = append(free, slot.TimeSlot)
		}
	}
	return free, nil
}

// RegisterTeacher upserts a teacher and their declared availability.
// Profile management proper lives outside the engine; this exists so the
// engine is operable without it.
func (s *BookingService) RegisterTeacher(ctx context.Context, actor domain.Actor, teacher domain.Teacher, availability []domain.AvailabilitySlot) (domain.Teacher, error) {
	if actor.Role != domain.RoleAdmin {
		return domain.Teacher{}, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "register a teacher"}
	}
	if teacher.ID == "" {
		return domain.Teacher{}, &domain.ValidationError{Field: "teacher.id", Reason: "is required"}
	}
	if teacher.Name == "" {
		return domain.Teacher{}, &domain.ValidationError{Field: "teacher.name", Reason: "is required"}
	}

	normalized := make([]domain.AvailabilitySlot, 0, len(availability))
	for _, slot := range availability {
		day, err := domain.ParseWeekday(string(slot.Day))
		if err != nil {
			return domain.Teacher{}, err
		}
		canonical, err := domain.NormalizeTime(slot.TimeSlot)
		if err != nil {
			return domain.Teacher{}, err
		}
		normalized = append(normalized, domain.AvailabilitySlot{Day: day, TimeSlot: canonical})
	}

	if teacher.CreatedAt.IsZero() {
		teacher.CreatedAt = time.Now().UTC()
	}
	if err := s.teachers.Put(ctx, teacher, normalized); err != nil {
		return domain.Teacher{}, err
	}
	return teacher, nil
}

func mayView(actor domain.Actor, appt domain.Appointment) bool {
	switch actor.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleTeacher:
		return actor.ID == appt.TeacherID
	case domain.RoleStudent:
		return strings.EqualFold(actor.ID, appt.Student.Email)
	default:
		return false
	}
}

// scopeFilter narrows a filter to the actor's visibility.
func scopeFilter(actor domain.Actor, filter domain.ListFilter) domain.ListFilter {
	switch actor.Role {
	case domain.RoleTeacher:
		filter.TeacherID = actor.ID
	case domain.RoleStudent:
		filter.StudentEmail = actor.ID
	}
	return filter
}
