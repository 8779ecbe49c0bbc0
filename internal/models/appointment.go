package models

import "time"

type AppointmentStatus string

const (
	AppointmentScheduled AppointmentStatus = "scheduled"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
	AppointmentNoShow    AppointmentStatus = "no_show"
)

// Terminal reports whether no further transitions are allowed from s.
// Cancelled is terminal too, but re-cancelling stays a no-op rather than an error.
func (s AppointmentStatus) Terminal() bool {
	switch s {
	case AppointmentCompleted, AppointmentCancelled, AppointmentNoShow:
		return true
	}
	return false
}

// Appointment occupies a slot: at most one non-cancelled appointment may exist
// per (DoctorID, Date, StartTime).
type Appointment struct {
	ID                 int64
	PatientID          int64
	DoctorID           int64
	Date               time.Time // date component only, normalized to UTC midnight
	StartTime          string    // wall-clock "15:04"
	DurationMinutes    int
	Status             AppointmentStatus
	Reason             string
	PatientNotes       string
	CancellationReason string
	ConsultationNotes  string
	CreatedAt          time.Time
	UpdatedAt          time.Time
	CancelledAt        *time.Time
	CompletedAt        *time.Time
}
