package prescription

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Validate checks the content rules before any write: a diagnosis and at
// least one medication carrying name, dosage, and frequency.
func Validate(p *Prescription) error {
	if p.AppointmentID == uuid.Nil {
		return fmt.Errorf("appointment_id is required")
	}
	if p.DoctorID == uuid.Nil {
		return fmt.Errorf("doctor_id is required")
	}
	if p.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	if p.Diagnosis == "" {
		return fmt.Errorf("diagnosis is required")
	}
	if len(p.Medications) == 0 {
		return fmt.Errorf("at least one medication is required")
	}
	for i, m := range p.Medications {
		if m.Name == "" {
			return fmt.Errorf("medication %d: name is required", i+1)
		}
		if m.Dosage == "" {
			return fmt.Errorf("medication %d: dosage is required", i+1)
		}
		if m.Frequency == "" {
			return fmt.Errorf("medication %d: frequency is required", i+1)
		}
	}
	return nil
}

// Create persists a new prescription. There is no update path; a second
// create for the same appointment fails with ErrAlreadyExists.
func (s *Service) Create(ctx context.Context, p *Prescription) error {
	if err := Validate(p); err != nil {
		return err
	}
	return s.repo.Create(ctx, p)
}

// GetForActor loads a prescription and enforces that the actor is a party to
// it. A patient view stamps patient_viewed_at.
func (s *Service) GetForActor(ctx context.Context, id uuid.UUID, actor auth.Actor) (*Prescription, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, actor); err != nil {
		return nil, err
	}
	if actor.Role == auth.RolePatient {
		if err := s.repo.MarkViewed(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// GetByAppointmentForActor is GetForActor keyed by appointment.
func (s *Service) GetByAppointmentForActor(ctx context.Context, appointmentID uuid.UUID, actor auth.Actor) (*Prescription, error) {
	p, err := s.repo.GetByAppointment(ctx, appointmentID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(p, actor); err != nil {
		return nil, err
	}
	if actor.Role == auth.RolePatient {
		if err := s.repo.MarkViewed(ctx, p.ID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// MarkDownloaded stamps the download audit field. Patient only.
func (s *Service) MarkDownloaded(ctx context.Context, id uuid.UUID, actor auth.Actor) error {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != auth.RolePatient || p.PatientID != actor.ID {
		return fmt.Errorf("actor is not the prescription's patient")
	}
	return s.repo.MarkDownloaded(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.ListByPatient(ctx, patientID, limit, offset)
}

func (s *Service) ListByDoctor(ctx context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return s.repo.ListByDoctor(ctx, doctorID, limit, offset)
}

func (s *Service) authorize(p *Prescription, actor auth.Actor) error {
	switch actor.Role {
	case auth.RolePatient:
		if p.PatientID != actor.ID {
			return fmt.Errorf("actor is not the prescription's patient")
		}
	case auth.RoleDoctor:
		if p.DoctorID != actor.ID {
			return fmt.Errorf("actor is not the prescribing doctor")
		}
	case auth.RoleAdmin, auth.RoleClinic:
		// Clinic staff and admins may read any prescription in their scope.
	default:
		return fmt.Errorf("role %s may not read prescriptions", actor.Role)
	}
	return nil
}
