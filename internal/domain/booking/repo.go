package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// UpdateVersioned writes the appointment conditionally on a.Version
	// matching the stored row, incrementing it on success. Returns
	// ErrConflict when the version has moved.
	UpdateVersioned(ctx context.Context, a *Appointment) error

	ListByPatient(ctx context.Context, patientID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error)
	ListByClinic(ctx context.Context, clinicID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error)

	// BookedTimes returns the "HH:MM" start times of non-cancelled
	// appointments at a clinic on a date. Satisfies clinic.BookedTimesLister.
	BookedTimes(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]string, error)

	AppendStatusChange(ctx context.Context, sc *StatusChange) error
	ListStatusChanges(ctx context.Context, appointmentID uuid.UUID) ([]*StatusChange, error)
}

type AssignmentRepository interface {
	Create(ctx context.Context, da *DoctorAssignment) error

	// GetActiveByAppointment returns the most recent assignment row for an
	// appointment.
	GetActiveByAppointment(ctx context.Context, appointmentID uuid.UUID) (*DoctorAssignment, error)

	UpdateResponse(ctx context.Context, id uuid.UUID, responseStatus string, notes *string) error
	ListByAppointment(ctx context.Context, appointmentID uuid.UUID) ([]*DoctorAssignment, error)
}
