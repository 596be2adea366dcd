package prescription

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

// ErrAlreadyExists reports a second create for the same appointment.
var ErrAlreadyExists = errors.New("prescription already exists for appointment")

// ErrNotFound reports a missing prescription.
var ErrNotFound = errors.New("prescription not found")

type Repository interface {
	Create(ctx context.Context, p *Prescription) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	GetByAppointment(ctx context.Context, appointmentID uuid.UUID) (*Prescription, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error)
	MarkViewed(ctx context.Context, id uuid.UUID) error
	MarkDownloaded(ctx context.Context, id uuid.UUID) error
}
