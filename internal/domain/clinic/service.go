package clinic

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// BookedTimesLister reports the "HH:MM" start times already taken at a clinic
// on a given date. The booking repository satisfies it; the indirection keeps
// this package free of a dependency on the booking domain.
type BookedTimesLister interface {
	BookedTimes(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]string, error)
}

type Service struct {
	clinics         Repository
	booked          BookedTimesLister
	intervalMinutes int
}

func NewService(clinics Repository, booked BookedTimesLister, intervalMinutes int) *Service {
	if intervalMinutes <= 0 {
		intervalMinutes = 30
	}
	return &Service{clinics: clinics, booked: booked, intervalMinutes: intervalMinutes}
}

func (s *Service) Create(ctx context.Context, c *Clinic) error {
	if c.Name == "" {
		return fmt.Errorf("name is required")
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	for day, h := range c.Hours {
		if _, err := parseClockMinutes(h.Open); err != nil {
			return fmt.Errorf("operating hours for %s: %w", day, err)
		}
		if _, err := parseClockMinutes(h.Close); err != nil {
			return fmt.Errorf("operating hours for %s: %w", day, err)
		}
	}
	return s.clinics.Create(ctx, c)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Clinic, error) {
	return s.clinics.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, c *Clinic) error {
	return s.clinics.Update(ctx, c)
}

func (s *Service) List(ctx context.Context, limit, offset int) ([]*Clinic, int, error) {
	return s.clinics.List(ctx, limit, offset)
}

// AvailableSlots computes the slot sequence for a clinic and date from the
// clinic's operating hours and the non-cancelled bookings on that date.
func (s *Service) AvailableSlots(ctx context.Context, clinicID uuid.UUID, date time.Time) ([]TimeSlot, error) {
	c, err := s.clinics.GetByID(ctx, clinicID)
	if err != nil {
		return nil, fmt.Errorf("load clinic: %w", err)
	}
	booked, err := s.booked.BookedTimes(ctx, clinicID, date)
	if err != nil {
		return nil, fmt.Errorf("load booked times: %w", err)
	}
	return GenerateSlots(c.Hours, date, booked, s.intervalMinutes), nil
}
