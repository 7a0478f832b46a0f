package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/okalidis/consultiq/internal/domain"
)

// Policy holds the tunable lifecycle rules the observed behavior left
// open: whether completion requires the appointment day to have arrived,
// and how long a pending request may outlive its date before the expiry
// job cancels it (zero disables expiry).
type Policy struct {
	RequireElapsedDate bool
	PendingTTL         time.Duration
}

// Decision is a teacher's answer to a pending request.
type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ParseDecision validates a decision label from the caller layer.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionAccept, DecisionReject:
		return Decision(s), nil
	default:
		return "", &domain.ValidationError{Field: "decision", Reason: "must be accept or reject"}
	}
}

// RequestInput carries a student's request for a consultation slot.
type RequestInput struct {
	TeacherID string
	Student   domain.StudentInfo
	Day       string
	TimeSlot  string
	Date      time.Time
}

// DirectBookInput carries a teacher's own booking of one of their slots.
type DirectBookInput struct {
	TeacherID string
	Student   domain.StudentInfo
	Day       string
	TimeSlot  string
	Date      time.Time
	Notes     string
}

// BookingService is the only component that mutates appointment status. It
// combines the conflict check and the transition table inside one atomic
// repository unit per operation.
type BookingService struct {
	repo      domain.AppointmentRepository
	teachers  domain.TeacherDirectory
	publisher domain.EventPublisher
	validator domain.TransitionValidator
	policy    Policy
	logger    *zap.Logger
}

// NewBookingService creates a service with the given adapters.
func NewBookingService(
	repo domain.AppointmentRepository,
	teachers domain.TeacherDirectory,
	publisher domain.EventPublisher,
	validator domain.TransitionValidator,
	policy Policy,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		teachers:  teachers,
		publisher: publisher,
		validator: validator,
		policy:    policy,
		logger:    logger,
	}
}

// Request creates a pending appointment for a student.
func (s *BookingService) Request(ctx context.Context, actor domain.Actor, in RequestInput) (domain.Appointment, error) {
	if actor.Role != domain.RoleStudent {
		return domain.Appointment{}, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "request an appointment"}
	}

	day, slot, date, err := resolveSlot(in.Day, in.TimeSlot, in.Date)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := validateStudent(in.Student); err != nil {
		return domain.Appointment{}, err
	}
	if _, err := s.teachers.GetByID(ctx, in.TeacherID); err != nil {
		return domain.Appointment{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("generating appointment id: %w", err)
	}

	appt := domain.NewRequest(id, in.TeacherID, in.Student, day, slot, date)

	if err := s.createIfFree(ctx, appt); err != nil {
		return domain.Appointment{}, err
	}

	s.logger.Info("appointment requested",
		zap.String("appointment_id", appt.ID),
		zap.String("teacher_id", appt.TeacherID),
		zap.String("date", date.Format(domain.DateFormat)),
		zap.String("time_slot", slot),
	)
	s.publish(ctx, domain.EventRequested, appt)

	return appt, nil
}

// DirectBook creates a booked appointment on behalf of the owning teacher,
// skipping the approval step.
func (s *BookingService) DirectBook(ctx context.Context, actor domain.Actor, in DirectBookInput) (domain.Appointment, error) {
	if actor.Role != domain.RoleTeacher || actor.ID != in.TeacherID {
		return domain.Appointment{}, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "book this teacher's slot"}
	}

	day, slot, date, err := resolveSlot(in.Day, in.TimeSlot, in.Date)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := validateStudent(in.Student); err != nil {
		return domain.Appointment{}, err
	}
	if _, err := s.teachers.GetByID(ctx, in.TeacherID); err != nil {
		return domain.Appointment{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("generating appointment id: %w", err)
	}

	appt := domain.NewDirectBooking(id, in.TeacherID, in.Student, day, slot, date)
	if in.Notes != "" {
		appt.Student.Message = in.Notes
	}

	if err := s.createIfFree(ctx, appt); err != nil {
		return domain.Appointment{}, err
	}

	s.logger.Info("slot booked directly",
		zap.String("appointment_id", appt.ID),
		zap.String("teacher_id", appt.TeacherID),
		zap.String("date", date.Format(domain.DateFormat)),
		zap.String("time_slot", slot),
	)
	s.publish(ctx, domain.EventBooked, appt)

	return appt, nil
}

// Respond applies a teacher's accept or reject decision to a pending
// request. On accept the conflict check runs again, excluding the request
// itself, inside the same transaction: another request for the same slot
// may have been confirmed while this one sat pending. That re-check plus
// the atomic commit is what keeps each slot single-winner.
func (s *BookingService) Respond(ctx context.Context, actor domain.Actor, id string, decision Decision, message string) (domain.Appointment, error) {
	event := domain.EventAccept
	if decision == DecisionReject {
		event = domain.EventReject
	}

	if !domain.RoleMayTrigger(event, actor.Role) {
		return domain.Appointment{}, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "respond to a request"}
	}

	var appt domain.Appointment
	err := s.repo.Atomically(ctx, func(tx domain.Tx) error {
		var err error
		appt, err = tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if appt.TeacherID != actor.ID {
			return &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "respond to another teacher's request"}
		}

		next, err := s.validator.Apply(ctx, appt.Status, event)
		if err != nil {
			return err
		}

		if event == domain.EventAccept {
			occupant, err := tx.Occupant(ctx, appt.Slot(), appt.ID, domain.WinnerStatuses)
			if err != nil {
				return err
			}
			if occupant != "" {
				return &domain.SlotConflictError{
					TeacherID:  appt.TeacherID,
					Date:       appt.Date.Format(domain.DateFormat),
					TimeSlot:   appt.TimeSlot,
					OccupantID: occupant,
				}
			}
		}

		now := time.Now().UTC()
		appt.Status = next
		appt.ResponseMessage = message
		appt.RespondedAt = &now
		appt.UpdatedAt = now

		return tx.Update(ctx, appt)
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.logger.Info("request responded",
		zap.String("appointment_id", appt.ID),
		zap.String("teacher_id", appt.TeacherID),
		zap.String("decision", string(decision)),
	)
	s.publish(ctx, event, appt)

	return appt, nil
}

// Cancel moves an active appointment to cancelled. The original requester
// (matched by email), the owning teacher, or an admin may cancel.
func (s *BookingService) Cancel(ctx context.Context, actor domain.Actor, id, reason string) (domain.Appointment, error) {
	if !domain.RoleMayTrigger(domain.EventCancel, actor.Role) {
		return domain.Appointment{}, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "cancel an appointment"}
	}

	var appt domain.Appointment
	err := s.repo.Atomically(ctx, func(tx domain.Tx) error {
		var err error
		appt, err = tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if !mayCancel(actor, appt) {
			return &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "cancel this appointment"}
		}

		next, err := s.validator.Apply(ctx, appt.Status, domain.EventCancel)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		appt.Status = next
		appt.CancellationReason = reason
		appt.CancelledBy = actor.Role
		appt.CancelledAt = &now
		appt.UpdatedAt = now

		return tx.Update(ctx, appt)
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.logger.Info("appointment cancelled",
		zap.String("appointment_id", appt.ID),
		zap.String("cancelled_by", string(actor.Role)),
	)
	s.publish(ctx, domain.EventCancel, appt)

	return appt, nil
}

// Complete marks a confirmed or booked appointment as held. Whether the
// appointment day must have arrived is controlled by Policy.
func (s *BookingService) Complete(ctx context.Context, actor domain.Actor, id string) (domain.Appointment, error) {
	if !domain.RoleMayTrigger(domain.EventComplete, actor.Role) {
		return domain.Appointment{}, &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "complete an appointment"}
	}

	var appt domain.Appointment
	err := s.repo.Atomically(ctx, func(tx domain.Tx) error {
		var err error
		appt, err = tx.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if actor.Role == domain.RoleTeacher && appt.TeacherID != actor.ID {
			return &domain.ForbiddenError{ActorID: actor.ID, Role: actor.Role, Action: "complete another teacher's appointment"}
		}
		if s.policy.RequireElapsedDate && appt.Date.After(domain.DateOnly(time.Now())) {
			return &domain.ValidationError{Field: "date", Reason: "appointment day has not arrived"}
		}

		next, err := s.validator.Apply(ctx, appt.Status, domain.EventComplete)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		appt.Status = next
		appt.CompletedAt = &now
		appt.UpdatedAt = now

		return tx.Update(ctx, appt)
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	s.logger.Info("appointment completed",
		zap.String("appointment_id", appt.ID),
		zap.String("teacher_id", appt.TeacherID),
	)
	s.publish(ctx, domain.EventComplete, appt)

	return appt, nil
}

// ExpireStalePending cancels pending requests whose date lies further in
// the past than Policy.PendingTTL. Called by the periodic expiry job; a
// zero TTL disables the sweep. Returns the number of requests expired.
func (s *BookingService) ExpireStalePending(ctx context.Context) (int, error) {
	if s.policy.PendingTTL <= 0 {
		return 0, nil
	}

	cutoff := domain.DateOnly(time.Now().Add(-s.policy.PendingTTL))
	stale, err := s.repo.StalePending(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing stale pending: %w", err)
	}

	expired := 0
	for _, candidate := range stale {
		var appt domain.Appointment
		err := s.repo.Atomically(ctx, func(tx domain.Tx) error {
			var err error
			appt, err = tx.GetByID(ctx, candidate.ID)
			if err != nil {
				return err
			}
			// Someone may have responded between the sweep and this unit.
			next, err := s.validator.Apply(ctx, appt.Status, domain.EventCancel)
			if err != nil {
				return err
			}

			now := time.Now().UTC()
			appt.Status = next
			appt.CancellationReason = "request expired without a response"
			appt.CancelledBy = domain.RoleAdmin
			appt.CancelledAt = &now
			appt.UpdatedAt = now

			return tx.Update(ctx, appt)
		})
		if err != nil {
			var trErr *domain.TransitionError
			if errors.As(err, &trErr) {
				continue
			}
			return expired, err
		}

		expired++
		s.publish(ctx, domain.EventCancel, appt)
	}

	if expired > 0 {
		s.logger.Info("expired stale pending requests", zap.Int("count", expired))
	}
	return expired, nil
}

// createIfFree runs the conflict check and insert as one atomic unit.
func (s *BookingService) createIfFree(ctx context.Context, appt domain.Appointment) error {
	return s.repo.Atomically(ctx, func(tx domain.Tx) error {
		occupant, err := tx.Occupant(ctx, appt.Slot(), "", domain.ActiveStatuses)
		if err != nil {
			return err
		}
		if occupant != "" {
			return &domain.SlotConflictError{
				TeacherID:  appt.TeacherID,
				Date:       appt.Date.Format(domain.DateFormat),
				TimeSlot:   appt.TimeSlot,
				OccupantID: occupant,
			}
		}
		return tx.Create(ctx, appt)
	})
}

// publish emits a change event. Delivery is best effort: a failing
// messaging subsystem must not roll back a committed booking.
func (s *BookingService) publish(ctx context.Context, event domain.Event, appt domain.Appointment) {
	change := domain.ChangeEvent{
		AppointmentID: appt.ID,
		Event:         event,
		NewStatus:     appt.Status,
		TeacherID:     appt.TeacherID,
		StudentEmail:  appt.Student.Email,
	}
	if err := s.publisher.Publish(ctx, change); err != nil {
		s.logger.Warn("publishing change event failed",
			zap.String("appointment_id", appt.ID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}

// resolveSlot canonicalizes the scheduling attributes: day label, time
// text, and day-granularity date. A missing day is derived from the date;
// a mismatching one is rejected.
func resolveSlot(dayText, timeText string, date time.Time) (domain.Weekday, string, time.Time, error) {
	slot, err := domain.NormalizeTime(timeText)
	if err != nil {
		return "", "", time.Time{}, err
	}

	if date.IsZero() {
		return "", "", time.Time{}, &domain.ValidationError{Field: "date", Reason: "is required"}
	}
	day0 := domain.DateOnly(date)
	if day0.Before(domain.DateOnly(time.Now())) {
		return "", "", time.Time{}, &domain.ValidationError{Field: "date", Reason: "must not be in the past"}
	}

	day := domain.WeekdayOf(day0)
	if dayText != "" {
		parsed, err := domain.ParseWeekday(dayText)
		if err != nil {
			return "", "", time.Time{}, err
		}
		if parsed != day {
			return "", "", time.Time{}, &domain.ValidationError{
				Field:  "day",
				Reason: fmt.Sprintf("%s is a %s, not a %s", day0.Format(domain.DateFormat), day, parsed),
			}
		}
	}

	return day, slot, day0, nil
}

func validateStudent(info domain.StudentInfo) error {
	if strings.TrimSpace(info.Name) == "" {
		return &domain.ValidationError{Field: "student.name", Reason: "is required"}
	}
	email := strings.TrimSpace(info.Email)
	if email == "" {
		return &domain.ValidationError{Field: "student.email", Reason: "is required"}
	}
	if !strings.Contains(email, "@") {
		return &domain.ValidationError{Field: "student.email", Reason: "is not an email address"}
	}
	return nil
}

// mayCancel checks the identity half of the cancel entitlement: admins
// always, the owning teacher, or the requesting student by email match.
func mayCancel(actor domain.Actor, appt domain.Appointment) bool {
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
