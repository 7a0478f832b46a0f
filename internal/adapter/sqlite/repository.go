package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/okalidis/consultiq/internal/domain"

	_ "modernc.org/sqlite" // Register SQLite driver.
)

//go:embed migrations/*.sql
var migrations embed.FS

// Compile-time check: AppointmentRepository implements the domain port.
var _ domain.AppointmentRepository = (*AppointmentRepository)(nil)

// AppointmentRepository implements domain.AppointmentRepository using SQLite.
type AppointmentRepository struct {
	db *sql.DB
}

// New opens a SQLite database, runs migrations, and returns a ready repository.
func New(dataSourceName string) (*AppointmentRepository, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// A single connection serializes the check-then-write units and avoids
	// SQLITE_BUSY when the job queue shares the file.
	db.SetMaxOpenConns(1)

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys (off by default in SQLite).
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	return NewFromDB(db)
}

// NewFromDB wraps an existing database connection, runs migrations, and returns
// a ready repository. Use this when the *sql.DB has been pre-configured
// (e.g., with otelsql instrumentation).
func NewFromDB(db *sql.DB) (*AppointmentRepository, error) {
	if err := runMigrations(db); err != nil {
		return nil, err
	}

	return &AppointmentRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *AppointmentRepository) Close() error {
	return r.db.Close()
}

// DB returns the underlying database connection for use by other adapters
// (the teacher directory, river).
func (r *AppointmentRepository) DB() *sql.DB {
	return r.db
}

func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("setting goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	return nil
}

const timeFormat = "2006-01-02T15:04:05Z"

// Atomically runs fn inside a single transaction. Combined with the
// single-connection pool this makes each booking operation's
// read-check-write sequence invisible to every other unit until commit.
func (r *AppointmentRepository) Atomically(ctx context.Context, fn func(tx domain.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&txStore{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// GetByID reads outside any transaction; booking operations use Tx.GetByID.
func (r *AppointmentRepository) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	return scanAppointment(r.db.QueryRowContext(ctx, selectAppointment+` WHERE id = ?`, id))
}

func (r *AppointmentRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Appointment, error) {
	query, args := buildListQuery(selectAppointment, filter)
	query += ` ORDER BY date, time_slot, created_at`

	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}
	defer rows.Close()

	var appts []domain.Appointment
	for rows.Next() {
		a, err := scanAppointmentFromRows(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}

	return appts, rows.Err()
}

func (r *AppointmentRepository) CountByStatus(ctx context.Context, filter domain.ListFilter) (map[domain.Status]int, error) {
	query, args := buildListQuery(`SELECT status, COUNT(*) FROM appointments`, filter)
	query += ` GROUP BY status`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("counting appointments: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning count row: %w", err)
		}
		counts[domain.Status(status)] = n
	}

	return counts, rows.Err()
}

func (r *AppointmentRepository) StalePending(ctx context.Context, before time.Time) ([]domain.Appointment, error) {
	rows, err := r.db.QueryContext(ctx,
		selectAppointment+` WHERE status = ? AND date < ? ORDER BY date`,
		string(domain.StatusPending), before.Format(domain.DateFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("listing stale pending: %w", err)
	}
	defer rows.Close()

	var appts []domain.Appointment
	for rows.Next() {
		a, err := scanAppointmentFromRows(rows)
		if err != nil {
			return nil, err
		}
		appts = append(appts, a)
	}

	return appts, rows.Err()
}

// buildListQuery appends WHERE clauses for the filter to a SELECT prefix.
func buildListQuery(prefix string, filter domain.ListFilter) (string, []any) {
	var conds []string
	var args []any

	if filter.Active {
		placeholders := make([]string, len(domain.ActiveStatuses))
		for i, s := range domain.ActiveStatuses {
			placeholders[i] = "?"
			args = append(args, string(s))
		}
		conds = append(conds, `status IN (`+strings.Join(placeholders, ",")+`)`)
	} else if filter.Status != nil {
		conds = append(conds, `status = ?`)
		args = append(args, string(*filter.Status))
	}
	if filter.TeacherID != "" {
		conds = append(conds, `teacher_id = ?`)
		args = append(args, filter.TeacherID)
	}
	if filter.StudentEmail != "" {
		conds = append(conds, `student_email = ? COLLATE NOCASE`)
		args = append(args, filter.StudentEmail)
	}
	if filter.From != nil {
		conds = append(conds, `date >= ?`)
		args = append(args, filter.From.Format(domain.DateFormat))
	}
	if filter.To != nil {
		conds = append(conds, `date <= ?`)
		args = append(args, filter.To.Format(domain.DateFormat))
	}

	query := prefix
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	return query, args
}

// txStore exposes the domain.Tx operations on one *sql.Tx.
type txStore struct {
	tx *sql.Tx
}

var _ domain.Tx = (*txStore)(nil)

func (t *txStore) GetByID(ctx context.Context, id string) (domain.Appointment, error) {
	return scanAppointment(t.tx.QueryRowContext(ctx, selectAppointment+` WHERE id = ?`, id))
}

func (t *txStore) Occupant(ctx context.Context, key domain.SlotKey, excludeID string, statuses []domain.Status) (string, error) {
	placeholders := make([]string, len(statuses))
	args := []any{key.TeacherID, key.Date.Format(domain.DateFormat), key.TimeSlot}
	for i, s := range statuses {
		placeholders[i] = "?"
		args = append(args, string(s))
	}
	query := `SELECT id FROM appointments
	 WHERE teacher_id = ? AND date = ? AND time_slot = ?
	   AND status IN (` + strings.Join(placeholders, ",") + `)`
	if excludeID != "" {
		query += ` AND id != ?`
		args = append(args, excludeID)
	}
	query += ` LIMIT 1`

	var id string
	err := t.tx.QueryRowContext(ctx, query, args...).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("querying slot occupant: %w", err)
	}
	return id, nil
}

func (t *txStore) Create(ctx context.Context, a domain.Appointment) error {
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO appointments (
			id, teacher_id, student_name, student_email, student_phone,
			subject, message, day, time_slot, date, status, created_by,
			response_message, responded_at, cancellation_reason, cancelled_by,
			cancelled_at, completed_at, created_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TeacherID, a.Student.Name, a.Student.Email, a.Student.Phone,
		a.Student.Subject, a.Student.Message, string(a.Day), a.TimeSlot,
		a.Date.Format(domain.DateFormat), string(a.Status), string(a.CreatedBy),
		a.ResponseMessage, formatNullableTime(a.RespondedAt),
		a.CancellationReason, string(a.CancelledBy),
		formatNullableTime(a.CancelledAt), formatNullableTime(a.CompletedAt),
		a.CreatedAt.Format(timeFormat), a.UpdatedAt.Format(timeFormat),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.SlotConflictError{
				TeacherID: a.TeacherID,
				Date:      a.Date.Format(domain.DateFormat),
				TimeSlot:  a.TimeSlot,
			}
		}
		return fmt.Errorf("inserting appointment: %w", err)
	}
	return nil
}

func (t *txStore) Update(ctx context.Context, a domain.Appointment) error {
	result, err := t.tx.ExecContext(ctx,
		`UPDATE appointments SET
			status = ?, response_message = ?, responded_at = ?,
			cancellation_reason = ?, cancelled_by = ?, cancelled_at = ?,
			completed_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(a.Status), a.ResponseMessage, formatNullableTime(a.RespondedAt),
		a.CancellationReason, string(a.CancelledBy), formatNullableTime(a.CancelledAt),
		formatNullableTime(a.CompletedAt), a.UpdatedAt.Format(timeFormat),
		a.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.SlotConflictError{
				TeacherID: a.TeacherID,
				Date:      a.Date.Format(domain.DateFormat),
				TimeSlot:  a.TimeSlot,
			}
		}
		return fmt.Errorf("updating appointment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrAppointmentNotFound
	}

	return nil
}

const selectAppointment = `SELECT id, teacher_id, student_name, student_email,
	student_phone, subject, message, day, time_slot, date, status, created_by,
	response_message, responded_at, cancellation_reason, cancelled_by,
	cancelled_at, completed_at, created_at, updated_at
 FROM appointments`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAppointment(row *sql.Row) (domain.Appointment, error) {
	a, err := scanRow(row)
	if err == sql.ErrNoRows {
		return domain.Appointment{}, domain.ErrAppointmentNotFound
	}
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("scanning appointment: %w", err)
	}
	return a, nil
}

func scanAppointmentFromRows(rows *sql.Rows) (domain.Appointment, error) {
	a, err := scanRow(rows)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("scanning appointment row: %w", err)
	}
	return a, nil
}

func scanRow(row rowScanner) (domain.Appointment, error) {
	var a domain.Appointment
	var day, date, status, createdBy, createdAt, updatedAt string
	var respondedAt, cancelledBy, cancelledAt, completedAt sql.NullString

	err := row.Scan(
		&a.ID, &a.TeacherID, &a.Student.Name, &a.Student.Email,
		&a.Student.Phone, &a.Student.Subject, &a.Student.Message,
		&day, &a.TimeSlot, &date, &status, &createdBy,
		&a.ResponseMessage, &respondedAt, &a.CancellationReason, &cancelledBy,
		&cancelledAt, &completedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return domain.Appointment{}, err
	}

	a.Day = domain.Weekday(day)
	a.Status = domain.Status(status)
	a.CreatedBy = domain.CreatorRole(createdBy)
	a.Date, _ = time.Parse(domain.DateFormat, date)
	a.CreatedAt, _ = time.Parse(timeFormat, createdAt)
	a.UpdatedAt, _ = time.Parse(timeFormat, updatedAt)
	a.RespondedAt = parseNullableTime(respondedAt)
	a.CancelledAt = parseNullableTime(cancelledAt)
	a.CompletedAt = parseNullableTime(completedAt)
	if cancelledBy.Valid {
		a.CancelledBy = domain.Role(cancelledBy.String)
	}

	return a, nil
}

func formatNullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(timeFormat)
}

func parseNullableTime(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse(timeFormat, s.String)
	if err != nil {
		return nil
	}
	return &t
}

// isUniqueViolation checks if a SQLite error is a UNIQUE constraint
// violation. The partial unique winner index is the hard backstop for the
// one-active-occupant invariant.
func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
