package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/okalidis/consultiq/internal/app"
	"github.com/okalidis/consultiq/internal/domain"
)

// The request-handling layer in front of this API owns authentication.
// Callers arrive with an already-verified identity carried in the
// X-Actor-Id and X-Actor-Role headers; this adapter only translates it
// into the engine's authorization decision.

// ActorParams are the caller identity headers present on every operation.
type ActorParams struct {
	ActorID   string `header:"X-Actor-Id" doc:"Verified caller identity (teacher id, student email, or admin id)"`
	ActorRole string `header:"X-Actor-Role" doc:"Caller role" enum:"student,teacher,admin"`
}

func (p ActorParams) actor() (domain.Actor, error) {
	role, err := domain.ParseRole(p.ActorRole)
	if err != nil {
		return domain.Actor{}, err
	}
	return domain.Actor{ID: p.ActorID, Role: role}, nil
}

// StudentPayload is the API representation of the student a booking is for.
type StudentPayload struct {
	Name    string `json:"name" minLength:"1" maxLength:"255" doc:"Student name"`
	Email   string `json:"email" minLength:"3" maxLength:"255" doc:"Student email (identity key for accountless students)"`
	Phone   string `json:"phone,omitempty" maxLength:"50" doc:"Phone number"`
	Subject string `json:"subject,omitempty" maxLength:"255" doc:"Consultation subject"`
	Message string `json:"message,omitempty" maxLength:"2000" doc:"Free-text message"`
}

func (p StudentPayload) toDomain() domain.StudentInfo {
	return domain.StudentInfo{
		Name:    p.Name,
		Email:   p.Email,
		Phone:   p.Phone,
		Subject: p.Subject,
		Message: p.Message,
	}
}

// AppointmentResponse is the API representation of an appointment.
type AppointmentResponse struct {
	ID                 string  `json:"id" doc:"Unique identifier"`
	TeacherID          string  `json:"teacher_id" doc:"Owning teacher"`
	StudentName        string  `json:"student_name"`
	StudentEmail       string  `json:"student_email"`
	StudentPhone       string  `json:"student_phone,omitempty"`
	Subject            string  `json:"subject,omitempty"`
	Message            string  `json:"message,omitempty"`
	Day                string  `json:"day" doc:"Weekday label"`
	TimeSlot           string  `json:"time_slot" doc:"Canonical start time (H:MM AM|PM)"`
	Date               string  `json:"date" doc:"Calendar date (YYYY-MM-DD)"`
	Status             string  `json:"status" doc:"Lifecycle state"`
	CreatedBy          string  `json:"created_by" doc:"Originating actor (student or teacher)"`
	ResponseMessage    string  `json:"response_message,omitempty"`
	RespondedAt        *string `json:"responded_at,omitempty"`
	CancellationReason string  `json:"cancellation_reason,omitempty"`
	CancelledBy        string  `json:"cancelled_by,omitempty"`
	CancelledAt        *string `json:"cancelled_at,omitempty"`
	CompletedAt        *string `json:"completed_at,omitempty"`
	CreatedAt          string  `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt          string  `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

const timestampFormat = "2006-01-02T15:04:05Z"

func toAppointmentResponse(a domain.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:                 a.ID,
		TeacherID:          a.TeacherID,
		StudentName:        a.Student.Name,
		StudentEmail:       a.Student.Email,
		StudentPhone:       a.Student.Phone,
		Subject:            a.Student.Subject,
		Message:            a.Student.Message,
		Day:                string(a.Day),
		TimeSlot:           a.TimeSlot,
		Date:               a.Date.Format(domain.DateFormat),
		Status:             string(a.Status),
		CreatedBy:          string(a.CreatedBy),
		ResponseMessage:    a.ResponseMessage,
		RespondedAt:        formatOptional(a.RespondedAt),
		CancellationReason: a.CancellationReason,
		CancelledBy:        string(a.CancelledBy),
		CancelledAt:        formatOptional(a.CancelledAt),
		CompletedAt:        formatOptional(a.CompletedAt),
		CreatedAt:          a.CreatedAt.Format(timestampFormat),
		UpdatedAt:          a.UpdatedAt.Format(timestampFormat),
	}
}

func formatOptional(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(timestampFormat)
	return &s
}

// --- Request Appointment ---

type RequestAppointmentInput struct {
	ActorParams
	Body struct {
		TeacherID string         `json:"teacher_id" minLength:"1" doc:"Teacher to consult"`
		Day       string         `json:"day,omitempty" doc:"Weekday label; derived from date when omitted"`
		TimeSlot  string         `json:"time_slot" minLength:"1" doc:"Time text, single point or range"`
		Date      string         `json:"date" format:"date" doc:"Calendar date (YYYY-MM-DD)"`
		Student   StudentPayload `json:"student"`
	}
}

type RequestAppointmentOutput struct {
	Body AppointmentResponse
}

// --- Direct Book ---

type DirectBookInput struct {
	ActorParams
	TeacherID string `path:"teacherId" doc:"Teacher being booked"`
	Body      struct {
		Day      string         `json:"day,omitempty" doc:"Weekday label; derived from date when omitted"`
		TimeSlot string         `json:"time_slot" minLength:"1" doc:"Time text, single point or range"`
		Date     string         `json:"date" format:"date" doc:"Calendar date (YYYY-MM-DD)"`
		Student  StudentPayload `json:"student"`
		Notes    string         `json:"notes,omitempty" maxLength:"2000" doc:"Teacher notes"`
	}
}

type DirectBookOutput struct {
	Body AppointmentResponse
}

// --- Respond ---

type RespondInput struct {
	ActorParams
	ID   string `path:"id" doc:"Appointment ID"`
	Body struct {
		Decision string `json:"decision" enum:"accept,reject" doc:"Teacher decision"`
		Message  string `json:"message,omitempty" maxLength:"2000" doc:"Response message"`
	}
}

type RespondOutput struct {
	Body AppointmentResponse
}

// --- Cancel ---

type CancelInput struct {
	ActorParams
	ID   string `path:"id" doc:"Appointment ID"`
	Body struct {
		Reason string `json:"reason,omitempty" maxLength:"2000" doc:"Cancellation reason"`
	}
}

type CancelOutput struct {
	Body AppointmentResponse
}

// --- Complete ---

type CompleteInput struct {
	ActorParams
	ID string `path:"id" doc:"Appointment ID"`
}

type CompleteOutput struct {
	Body AppointmentResponse
}

// --- Get / List / Stats ---

type GetAppointmentInput struct {
	ActorParams
	ID string `path:"id" doc:"Appointment ID"`
}

type GetAppointmentOutput struct {
	Body AppointmentResponse
}

type ListAppointmentsInput struct {
	ActorParams
	Status string `query:"status" required:"false" enum:",pending,confirmed,booked,completed,cancelled,rejected" doc:"Filter by status"`
	From   string `query:"from" required:"false" doc:"Earliest date (YYYY-MM-DD)"`
	To     string `query:"to" required:"false" doc:"Latest date (YYYY-MM-DD)"`
	Limit  int    `query:"limit" required:"false" default:"50" doc:"Max results"`
	Offset int    `query:"offset" required:"false" default:"0" doc:"Pagination offset"`
}

type ListAppointmentsOutput struct {
	Body []AppointmentResponse
}

type StatsInput struct {
	ActorParams
}

type StatsOutput struct {
	Body map[string]int
}

// --- Teacher queue / availability / registration ---

type PendingForTeacherInput struct {
	ActorParams
	TeacherID string `path:"teacherId" doc:"Teacher ID"`
}

type PendingForTeacherOutput struct {
	Body []AppointmentResponse
}

type AvailabilityInput struct {
	TeacherID string `path:"teacherId" doc:"Teacher ID"`
	Date      string `query:"date" format:"date" doc:"Calendar date (YYYY-MM-DD)"`
}

type AvailabilityOutput struct {
	Body struct {
		TeacherID string   `json:"teacher_id"`
		Date      string   `json:"date"`
		Free      []string `json:"free" doc:"Declared slots with active occupants removed"`
	}
}

type RegisterTeacherInput struct {
	ActorParams
	Body struct {
		ID           string `json:"id" minLength:"1" maxLength:"100" doc:"Teacher identifier"`
		Name         string `json:"name" minLength:"1" maxLength:"255" doc:"Display name"`
		Availability []struct {
			Day      string `json:"day" doc:"Weekday label"`
			TimeSlot string `json:"time_slot" doc:"Time text, canonicalized on write"`
		} `json:"availability,omitempty" doc:"Declared weekly availability"`
	}
}

type RegisterTeacherOutput struct {
	Body struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
}

// Register adds all booking API routes to the Huma API.
func Register(api huma.API, svc *app.BookingService) {
	huma.Register(api, huma.Operation{
		OperationID: "request-appointment",
		Method:      http.MethodPost,
		Path:        "/api/v1/appointments",
		Summary:     "Request a consultation slot",
		Tags:        []string{"Appointments"},
	}, func(ctx context.Context, input *RequestAppointmentInput) (*RequestAppointmentOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}
		date, err := parseDate(input.Body.Date)
		if err != nil {
			return nil, toHumaError(err)
		}

		appt, err := svc.Request(ctx, actor, app.RequestInput{
			TeacherID: input.Body.TeacherID,
			Student:   input.Body.Student.toDomain(),
			Day:       input.Body.Day,
			TimeSlot:  input.Body.TimeSlot,
			Date:      date,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RequestAppointmentOutput{Body: toAppointmentResponse(appt)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "direct-book",
		Method:      http.MethodPost,
		Path:        "/api/v1/teachers/{teacherId}/appointments",
		Summary:     "Book one of your own slots directly",
		Tags:        []string{"Appointments"},
	}, func(ctx context.Context, input *DirectBookInput) (*DirectBookOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}
		date, err := parseDate(input.Body.Date)
		if err != nil {
			return nil, toHumaError(err)
		}

		appt, err := svc.DirectBook(ctx, actor, app.DirectBookInput{
			TeacherID: input.TeacherID,
			Student:   input.Body.Student.toDomain(),
			Day:       input.Body.Day,
			TimeSlot:  input.Body.TimeSlot,
			Date:      date,
			Notes:     input.Body.Notes,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &DirectBookOutput{Body: toAppointmentResponse(appt)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "respond-to-request",
		Method:      http.MethodPost,
		Path:        "/api/v1/appointments/{id}/response",
		Summary:     "Accept or reject a pending request",
		Tags:        []string{"Appointments"},
	}, func(ctx context.Context, input *RespondInput) (*RespondOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}
		decision, err := app.ParseDecision(input.Body.Decision)
		if err != nil {
			return nil, toHumaError(err)
		}

		appt, err := svc.Respond(ctx, actor, input.ID, decision, input.Body.Message)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &RespondOutput{Body: toAppointmentResponse(appt)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cancel-appointment",
		Method:      http.MethodPost,
		Path:        "/api/v1/appointments/{id}/cancel",
		Summary:     "Cancel an active appointment",
		Tags:        []string{"Appointments"},
	}, func(ctx context.Context, input *CancelInput) (*CancelOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}

		appt, err := svc.Cancel(ctx, actor, input.ID, input.Body.Reason)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CancelOutput{Body: toAppointmentResponse(appt)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "complete-appointment",
		Method:      http.MethodPost,
		Path:        "/api/v1/appointments/{id}/complete",
		Summary:     "Mark an appointment as held",
		Tags:        []string{"Appointments"},
	}, func(ctx context.Context, input *CompleteInput) (*CompleteOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}

		appt, err := svc.Complete(ctx, actor, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CompleteOutput{Body: toAppointmentResponse(appt)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-appointment",
		Method:      http.MethodGet,
		Path:        "/api/v1/appointments/{id}",
		Summary:     "Get an appointment by ID",
		Tags:        []string{"Appointments"},
	}, func(ctx context.Context, input *GetAppointmentInput) (*GetAppointmentOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}

		appt, err := svc.GetByID(ctx, actor, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetAppointmentOutput{Body: toAppointmentResponse(appt)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-appointments",
		Method:      http.MethodGet,
		Path:        "/api/v1/appointments",
		Summary:     "List appointments visible to the caller",
		Tags:        []string{"Appointments"},
	}, func(ctx context.Context, input *ListAppointmentsInput) (*ListAppointmentsOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}

		filter := domain.ListFilter{Limit: input.Limit, Offset: input.Offset}
		if input.Status != "" {
			s := domain.Status(input.Status)
			filter.Status = &s
		}
		if input.From != "" {
			from, err := parseDate(input.From)
			if err != nil {
				return nil, toHumaError(err)
			}
			filter.From = &from
		}
		if input.To != "" {
			to, err := parseDate(input.To)
			if err != nil {
				return nil, toHumaError(err)
			}
			filter.To = &to
		}

		appts, err := svc.List(ctx, actor, filter)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]AppointmentResponse, len(appts))
		for i, a := range appts {
			resp[i] = toAppointmentResponse(a)
		}
		return &ListAppointmentsOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "appointment-stats",
		Method:      http.MethodGet,
		Path:        "/api/v1/appointments/stats",
		Summary:     "Appointment counts by status",
		Tags:        []string{"Reporting"},
	}, func(ctx context.Context, input *StatsInput) (*StatsOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}

		counts, err := svc.Stats(ctx, actor, domain.ListFilter{})
		if err != nil {
			return nil, toHumaError(err)
		}

		body := make(map[string]int, len(counts))
		for status, n := range counts {
			body[string(status)] = n
		}
		return &StatsOutput{Body: body}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "pending-for-teacher",
		Method:      http.MethodGet,
		Path:        "/api/v1/teachers/{teacherId}/pending",
		Summary:     "Requests awaiting the teacher's response",
		Tags:        []string{"Reporting"},
	}, func(ctx context.Context, input *PendingForTeacherInput) (*PendingForTeacherOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}

		appts, err := svc.PendingForTeacher(ctx, actor, input.TeacherID)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]AppointmentResponse, len(appts))
		for i, a := range appts {
			resp[i] = toAppointmentResponse(a)
		}
		return &PendingForTeacherOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "teacher-availability",
		Method:      http.MethodGet,
		Path:        "/api/v1/teachers/{teacherId}/availability",
		Summary:     "Free declared slots for a date",
		Tags:        []string{"Reporting"},
	}, func(ctx context.Context, input *AvailabilityInput) (*AvailabilityOutput, error) {
		date, err := parseDate(input.Date)
		if err != nil {
			return nil, toHumaError(err)
		}

		free, err := svc.AvailableSlots(ctx, input.TeacherID, date)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &AvailabilityOutput{}
		out.Body.TeacherID = input.TeacherID
		out.Body.Date = date.Format(domain.DateFormat)
		out.Body.Free = free
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "register-teacher",
		Method:      http.MethodPost,
		Path:        "/api/v1/teachers",
		Summary:     "Register a teacher and their availability",
		Tags:        []string{"Teachers"},
	}, func(ctx context.Context, input *RegisterTeacherInput) (*RegisterTeacherOutput, error) {
		actor, err := input.actor()
		if err != nil {
			return nil, toHumaError(err)
		}

		availability := make([]domain.AvailabilitySlot, len(input.Body.Availability))
		for i, slot := range input.Body.Availability {
			availability[i] = domain.AvailabilitySlot{
				Day:      domain.Weekday(slot.Day),
				TimeSlot: slot.TimeSlot,
			}
		}

		teacher, err := svc.RegisterTeacher(ctx, actor,
			domain.Teacher{ID: input.Body.ID, Name: input.Body.Name}, availability)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &RegisterTeacherOutput{}
		out.Body.ID = teacher.ID
		out.Body.Name = teacher.Name
		return out, nil
	})
}

func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(domain.DateFormat, s)
	if err != nil {
		return time.Time{}, &domain.ValidationError{Field: "date", Reason: "must be YYYY-MM-DD"}
	}
	return t, nil
}

// toHumaError translates engine errors to Huma HTTP errors, preserving
// each error kind so the caller layer can word its message accurately.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrTeacherNotFound) || errors.Is(err, domain.ErrAppointmentNotFound) {
		return huma.Error404NotFound(err.Error())
	}

	var valErr *domain.ValidationError
	if errors.As(err, &valErr) {
		return huma.Error400BadRequest(valErr.Error())
	}

	var timeErr *domain.InvalidTimeError
	if errors.As(err, &timeErr) {
		return huma.Error400BadRequest(timeErr.Error())
	}

	var forbErr *domain.ForbiddenError
	if errors.As(err, &forbErr) {
		return huma.Error403Forbidden(forbErr.Error())
	}

	var slotErr *domain.SlotConflictError
	if errors.As(err, &slotErr) {
		return huma.Error409Conflict(slotErr.Error())
	}

	var trErr *domain.TransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
