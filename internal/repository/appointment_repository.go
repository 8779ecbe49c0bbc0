package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"smartclinic/api/internal/models"
)

var (
	ErrAppointmentNotFound = errors.New("appointment not found")

	// ErrSlotTaken means another non-cancelled appointment already occupies
	// the (doctor, date, time) slot. The partial unique index raises it even
	// when two bookings race past the availability check.
	ErrSlotTaken = errors.New("slot already booked")
)

const uniqueViolation = "23505"

type AppointmentRepository struct {
	pool *pgxpool.Pool
}

func NewAppointmentRepository(pool *pgxpool.Pool) *AppointmentRepository {
	return &AppointmentRepository{pool: pool}
}

const appointmentColumns = `
	id, patient_id, doctor_id, appointment_date, appointment_time,
	duration_minutes, status, appointment_reason, patient_notes,
	cancellation_reason, consultation_notes,
	created_at, updated_at, cancelled_at, completed_at
`

func scanAppointment(row pgx.Row) (models.Appointment, error) {
	var a models.Appointment
	if err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.DoctorID,
		&a.Date,
		&a.StartTime,
		&a.DurationMinutes,
		&a.Status,
		&a.Reason,
		&a.PatientNotes,
		&a.CancellationReason,
		&a.ConsultationNotes,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.CancelledAt,
		&a.CompletedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Appointment{}, ErrAppointmentNotFound
		}
		return models.Appointment{}, err
	}
	return a, nil
}

// Create inserts the appointment and fills in the generated id and timestamps.
// A concurrent booking of the same slot surfaces as ErrSlotTaken.
func (r *AppointmentRepository) Create(ctx context.Context, a *models.Appointment) error {
	const query = `
		INSERT INTO appointments (
			patient_id, doctor_id, appointment_date, appointment_time,
			duration_minutes, status, appointment_reason, patient_notes,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id, created_at, updated_at
	`

	err := r.pool.QueryRow(ctx, query,
		a.PatientID,
		a.DoctorID,
		a.Date,
		a.StartTime,
		a.DurationMinutes,
		a.Status,
		a.Reason,
		a.PatientNotes,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSlotTaken
		}
		return err
	}
	return nil
}

func (r *AppointmentRepository) GetByID(ctx context.Context, id int64) (models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + ` FROM appointments WHERE id = $1`
	return scanAppointment(r.pool.QueryRow(ctx, query, id))
}

// ExistsActiveSlot reports whether a non-cancelled appointment occupies the
// exact (doctor, date, time) tuple.
func (r *AppointmentRepository) ExistsActiveSlot(ctx context.Context, doctorID int64, date time.Time, startTime string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM appointments
			WHERE doctor_id = $1
			  AND appointment_date = $2
			  AND appointment_time = $3
			  AND status <> 'cancelled'
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query, doctorID, date, startTime).Scan(&exists)
	return exists, err
}

// Update persists the mutable fields after a state transition or reschedule.
func (r *AppointmentRepository) Update(ctx context.Context, a *models.Appointment) error {
	const query = `
		UPDATE appointments SET
			appointment_date = $2,
			appointment_time = $3,
			status = $4,
			appointment_reason = $5,
			patient_notes = $6,
			cancellation_reason = $7,
			consultation_notes = $8,
			cancelled_at = $9,
			completed_at = $10,
			updated_at = NOW()
		WHERE id = $1
	`

	cmd, err := r.pool.Exec(ctx, query,
		a.ID,
		a.Date,
		a.StartTime,
		a.Status,
		a.Reason,
		a.PatientNotes,
		a.CancellationReason,
		a.ConsultationNotes,
		a.CancelledAt,
		a.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrSlotTaken
		}
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *AppointmentRepository) list(ctx context.Context, query string, args ...any) ([]models.Appointment, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *AppointmentRepository) ListByDoctorAndPatient(ctx context.Context, doctorID, patientID int64) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1 AND patient_id = $2
		ORDER BY appointment_date DESC, appointment_time DESC`
	return r.list(ctx, query, doctorID, patientID)
}

func (r *AppointmentRepository) ListByDoctor(ctx context.Context, doctorID int64) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE doctor_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC`
	return r.list(ctx, query, doctorID)
}

func (r *AppointmentRepository) ListByPatient(ctx context.Context, patientID int64) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE patient_id = $1
		ORDER BY appointment_date DESC, appointment_time DESC`
	return r.list(ctx, query, patientID)
}

func (r *AppointmentRepository) ListAll(ctx context.Context) ([]models.Appointment, error) {
	query := `SELECT ` + appointmentColumns + `
		FROM appointments
		ORDER BY appointment_date DESC, appointment_time DESC`
	return r.list(ctx, query)
}

// MarkNoShowBefore flips still-active appointments whose slot ended before
// cutoff to no_show and returns how many rows changed.
func (r *AppointmentRepository) MarkNoShowBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
		UPDATE appointments
		SET status = 'no_show', updated_at = NOW()
		WHERE status IN ('scheduled', 'confirmed')
		  AND appointment_date + appointment_time::time < $1
	`

	cmd, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}
