package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/okalidis/consultiq/internal/domain"
)

const tracerName = "github.com/okalidis/consultiq/internal/adapter/otel"

// TracingRepository wraps a domain.AppointmentRepository with OpenTelemetry
// tracing. Each method creates a span with semantic attributes and records
// errors. The atomic booking units show up as one span each, with the
// inner statement spans contributed by otelsql beneath them.
type TracingRepository struct {
	next   domain.AppointmentRepository
	tracer trace.Tracer
}

// Compile-time check: TracingRepository implements the repository port.
var _ domain.AppointmentRepository = (*TracingRepository)(nil)

// NewTracingRepository creates a tracing decorator around the given repository.
func NewTracingRepository(next domain.AppointmentRepository) *TracingRepository {
	return &TracingRepository{
		next:   next,
		tracer: otel.Tracer(tracerName),
	}
}

func (r *TracingRepository) Atomically(ctx context.Context, fn func(tx domain.Tx) error) error {
	ctx, span := r.tracer.Start(ctx, "AppointmentRepository.Atomically")
	defer span.End()

	err := r.next.Atomically(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (r *TracingRepository) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	ctx, span := r.tracer.Start(ctx, "AppointmentRepository.GetByID",
		trace.WithAttributes(attribute.String("appointment.id", id)),
	)
	defer span.End()

	appt, err := r.next.GetByID(ctx, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return appt, err
}

func (r *TracingRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Appointment, error) {
	ctx, span := r.tracer.Start(ctx, "AppointmentRepository.List",
		trace.WithAttributes(filterAttributes(filter)...),
	)
	defer span.End()

	appts, err := r.next.List(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return appts, err
}

func (r *TracingRepository) CountByStatus(ctx context.Context, filter domain.ListFilter) (map[domain.Status]int, error) {
	ctx, span := r.tracer.Start(ctx, "AppointmentRepository.CountByStatus",
		trace.WithAttributes(filterAttributes(filter)...),
	)
	defer span.End()

	counts, err := r.next.CountByStatus(ctx, filter)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return counts, err
}

func (r *TracingRepository) StalePending(ctx context.Context, before time.Time) ([]domain.Appointment, error) {
	ctx, span := r.tracer.Start(ctx, "AppointmentRepository.StalePending",
		trace.WithAttributes(attribute.String("before", before.Format(domain.DateFormat))),
	)
	defer span.End()

	appts, err := r.next.StalePending(ctx, before)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return appts, err
}

func filterAttributes(filter domain.ListFilter) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.Int("filter.limit", filter.Limit),
		attribute.Int("filter.offset", filter.Offset),
	}
	if filter.Status != nil {
		attrs = append(attrs, attribute.String("filter.status", string(*filter.Status)))
	}
	if filter.TeacherID != "" {
		attrs = append(attrs, attribute.String("filter.teacher_id", filter.TeacherID))
	}
	return attrs
}
