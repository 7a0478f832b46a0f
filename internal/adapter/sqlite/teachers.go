package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/okalidis/consultiq/internal/domain"
)

// Compile-time check: TeacherDirectory implements the domain port.
var _ domain.TeacherDirectory = (*TeacherDirectory)(nil)

// TeacherDirectory implements domain.TeacherDirectory on the same SQLite
// database as the appointment store. The engine treats this data as
// read-only input; Put exists for seeding and the minimal admin surface.
type TeacherDirectory struct {
	db *sql.DB
}

// NewTeacherDirectory wraps the shared database connection. Migrations are
// owned by the appointment repository.
func NewTeacherDirectory(db *sql.DB) *TeacherDirectory {
	return &TeacherDirectory{db: db}
}

func (d *TeacherDirectory) GetByID(ctx context.Context, id string) (domain.Teacher, error) {
	var t domain.Teacher
	var createdAt string

	err := d.db.QueryRowContext(ctx,
		`SELECT id, name, created_at FROM teachers WHERE id = ?`, id,
	).Scan(&t.ID, &t.Name, &createdAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return domain.Teacher{}, domain.ErrTeacherNotFound
		}
		return domain.Teacher{}, fmt.Errorf("scanning teacher: %w", err)
	}

	t.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	return t, nil
}

func (d *TeacherDirectory) Availability(ctx context.Context, teacherID string) ([]domain.AvailabilitySlot, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT day, time_slot FROM teacher_availability
		 WHERE teacher_id = ? ORDER BY day, time_slot`, teacherID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing availability: %w", err)
	}
	defer rows.Close()

	var slots []domain.AvailabilitySlot
	for rows.Next() {
		var day, timeSlot string
		if err := rows.Scan(&day, &timeSlot); err != nil {
			return nil, fmt.Errorf("scanning availability row: %w", err)
		}
		slots = append(slots, domain.AvailabilitySlot{Day: domain.Weekday(day), TimeSlot: timeSlot})
	}

	return slots, rows.Err()
}

func (d *TeacherDirectory) Put(ctx context.Context, teacher domain.Teacher, availability []domain.AvailabilitySlot) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	_, err = tx.ExecContext(ctx,
		`INSERT INTO teachers (id, name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET name = excluded.name`,
		teacher.ID, teacher.Name, teacher.CreatedAt.Format(timeFormat),
	)
	if err != nil {
		return fmt.Errorf("upserting teacher: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM teacher_availability WHERE teacher_id = ?`, teacher.ID,
	); err != nil {
		return fmt.Errorf("clearing availability: %w", err)
	}

	for _, slot := range availability {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO teacher_availability (teacher_id, day, time_slot) VALUES (?, ?, ?)
			 ON CONFLICT DO NOTHING`,
			teacher.ID, string(slot.Day), slot.TimeSlot,
		); err != nil {
			return fmt.Errorf("inserting availability slot: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
