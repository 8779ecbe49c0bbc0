package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"smartclinic/api/internal/ids"
	"smartclinic/api/internal/models"
	"smartclinic/api/internal/repository"
)

var (
	ErrSlotTaken         = errors.New("time slot already booked")
	ErrInvalidSlot       = errors.New("invalid appointment date or time")
	ErrInvalidTransition = errors.New("appointment status does not allow this transition")
)

// AppointmentStore is the storage contract the scheduler relies on. Create
// must be atomic with respect to the slot invariant: when two callers insert
// the same active (doctor, date, time) tuple, exactly one succeeds and the
// other receives repository.ErrSlotTaken.
type AppointmentStore interface {
	Create(ctx context.Context, a *models.Appointment) error
	GetByID(ctx context.Context, id int64) (models.Appointment, error)
	ExistsActiveSlot(ctx context.Context, doctorID int64, date time.Time, startTime string) (bool, error)
	Update(ctx context.Context, a *models.Appointment) error
	ListByDoctorAndPatient(ctx context.Context, doctorID, patientID int64) ([]models.Appointment, error)
	ListByDoctor(ctx context.Context, doctorID int64) ([]models.Appointment, error)
	ListByPatient(ctx context.Context, patientID int64) ([]models.Appointment, error)
	ListAll(ctx context.Context) ([]models.Appointment, error)
	MarkNoShowBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// AppointmentService owns the slot invariant: a doctor cannot hold two active
// appointments at the same date and time.
type AppointmentService struct {
	store AppointmentStore
	audit AuditStore
	log   zerolog.Logger
	now   func() time.Time
}

func NewAppointmentService(store AppointmentStore, audit AuditStore, log zerolog.Logger) *AppointmentService {
	return &AppointmentService{
		store: store,
		audit: audit,
		log:   log,
		now:   time.Now,
	}
}

// NormalizeDate strips the time-of-day component.
func NormalizeDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func validateSlot(date time.Time, startTime string) error {
	if date.IsZero() {
		return ErrInvalidSlot
	}
	if _, err := time.Parse("15:04", startTime); err != nil {
		return ErrInvalidSlot
	}
	return nil
}

// CheckAvailability reports whether the exact (doctor, date, time) slot is
// free of non-cancelled appointments.
func (s *AppointmentService) CheckAvailability(ctx context.Context, doctorID int64, date time.Time, startTime string) (bool, error) {
	if err := validateSlot(date, startTime); err != nil {
		return false, err
	}
	booked, err := s.store.ExistsActiveSlot(ctx, doctorID, NormalizeDate(date), startTime)
	if err != nil {
		return false, err
	}
	return !booked, nil
}

// Book re-checks availability and inserts the appointment as scheduled. The
// pre-check gives callers a clean conflict answer; the storage layer's
// uniqueness guarantee is what actually serializes concurrent bookings, so a
// race past the pre-check still yields exactly one winner.
func (s *AppointmentService) Book(ctx context.Context, a models.Appointment) (models.Appointment, error) {
	if err := validateSlot(a.Date, a.StartTime); err != nil {
		return models.Appointment{}, err
	}
	a.Date = NormalizeDate(a.Date)
	if a.DurationMinutes <= 0 {
		a.DurationMinutes = 30
	}

	booked, err := s.store.ExistsActiveSlot(ctx, a.DoctorID, a.Date, a.StartTime)
	if err != nil {
		return models.Appointment{}, err
	}
	if booked {
		return models.Appointment{}, ErrSlotTaken
	}

	a.Status = models.AppointmentScheduled
	if err := s.store.Create(ctx, &a); err != nil {
		if errors.Is(err, repository.ErrSlotTaken) {
			return models.Appointment{}, ErrSlotTaken
		}
		return models.Appointment{}, err
	}

	s.writeAudit(ctx, a.PatientID, "appointment_booked",
		fmt.Sprintf("doctor=%d date=%s time=%s", a.DoctorID, a.Date.Format("2006-01-02"), a.StartTime))

	return a, nil
}

// Reschedule overwrites date and time of an existing appointment. The slot is
// deliberately NOT re-validated here: that matches the long-standing booking
// flow, where rescheduling is a doctor-side correction. See DESIGN.md.
func (s *AppointmentService) Reschedule(ctx context.Context, id int64, date time.Time, startTime string) (models.Appointment, error) {
	if err := validateSlot(date, startTime); err != nil {
		return models.Appointment{}, err
	}

	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return models.Appointment{}, err
	}

	a.Date = NormalizeDate(date)
	a.StartTime = startTime
	if err := s.store.Update(ctx, &a); err != nil {
		// No availability pre-check here, but the storage layer still owns
		// the slot invariant and refuses a move into an occupied slot.
		if errors.Is(err, repository.ErrSlotTaken) {
			return models.Appointment{}, ErrSlotTaken
		}
		return models.Appointment{}, err
	}
	return a, nil
}

// Cancel moves an appointment to cancelled and stamps the cancellation time.
// Cancelling an already-cancelled appointment is a no-op, not an error.
func (s *AppointmentService) Cancel(ctx context.Context, id int64, reason string) error {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	switch a.Status {
	case models.AppointmentCancelled:
		return nil
	case models.AppointmentCompleted, models.AppointmentNoShow:
		return ErrInvalidTransition
	}

	now := s.now()
	a.Status = models.AppointmentCancelled
	a.CancelledAt = &now
	if reason != "" {
		a.CancellationReason = reason
	}
	return s.store.Update(ctx, &a)
}

// Complete closes out a visit, recording consultation notes when given.
func (s *AppointmentService) Complete(ctx context.Context, id int64, notes string) error {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if a.Status != models.AppointmentScheduled && a.Status != models.AppointmentConfirmed {
		return ErrInvalidTransition
	}

	now := s.now()
	a.Status = models.AppointmentCompleted
	a.CompletedAt = &now
	if notes != "" {
		a.ConsultationNotes = notes
	}
	return s.store.Update(ctx, &a)
}

// Confirm acknowledges a scheduled appointment.
func (s *AppointmentService) Confirm(ctx context.Context, id int64) error {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if a.Status != models.AppointmentScheduled {
		return ErrInvalidTransition
	}
	a.Status = models.AppointmentConfirmed
	return s.store.Update(ctx, &a)
}

type AppointmentFilter struct {
	Status    models.AppointmentStatus
	DateFrom  time.Time
	DateTo    time.Time
	DoctorID  int64
	PatientID int64
}

// Filter lists appointments with doctor+patient as the most specific
// predicate, falling back to doctor-only, then patient-only, then everything.
// Status and date range narrow the result afterwards.
func (s *AppointmentService) Filter(ctx context.Context, f AppointmentFilter) ([]models.Appointment, error) {
	var (
		appts []models.Appointment
		err   error
	)

	switch {
	case f.DoctorID != 0 && f.PatientID != 0:
		appts, err = s.store.ListByDoctorAndPatient(ctx, f.DoctorID, f.PatientID)
	case f.DoctorID != 0:
		appts, err = s.store.ListByDoctor(ctx, f.DoctorID)
	case f.PatientID != 0:
		appts, err = s.store.ListByPatient(ctx, f.PatientID)
	default:
		appts, err = s.store.ListAll(ctx)
	}
	if err != nil {
		return nil, err
	}

	out := appts[:0]
	for _, a := range appts {
		if f.Status != "" && a.Status != f.Status {
			continue
		}
		if !f.DateFrom.IsZero() && a.Date.Before(NormalizeDate(f.DateFrom)) {
			continue
		}
		if !f.DateTo.IsZero() && a.Date.After(NormalizeDate(f.DateTo)) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// SweepNoShows marks still-active appointments whose slot passed more than
// grace ago as no_show. Run from the background scheduler.
func (s *AppointmentService) SweepNoShows(ctx context.Context, grace time.Duration) (int64, error) {
	cutoff := s.now().Add(-grace)
	n, err := s.store.MarkNoShowBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.log.Info().Int64("count", n).Msg("marked overdue appointments as no_show")
	}
	return n, nil
}

func (s *AppointmentService) Get(ctx context.Context, id int64) (models.Appointment, error) {
	return s.store.GetByID(ctx, id)
}

func (s *AppointmentService) writeAudit(ctx context.Context, userID int64, action, details string) {
	if s.audit == nil {
		return
	}
	entry := models.AuditLog{
		ID:       ids.New(),
		UserType: string(models.RolePatient),
		UserID:   userID,
		Action:   action,
		Details:  details,
	}
	if err := s.audit.Insert(ctx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("audit write failed")
	}
}
