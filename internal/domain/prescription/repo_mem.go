package prescription

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// repoMem is an in-memory Repository used in tests and development.
type repoMem struct {
	mu            sync.RWMutex
	items         map[uuid.UUID]*Prescription
	byAppointment map[uuid.UUID]uuid.UUID
}

func NewRepoMem() Repository {
	return &repoMem{
		items:         make(map[uuid.UUID]*Prescription),
		byAppointment: make(map[uuid.UUID]uuid.UUID),
	}
}

func (r *repoMem) Create(_ context.Context, p *Prescription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byAppointment[p.AppointmentID]; exists {
		return ErrAlreadyExists
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	cp := *p
	r.items[p.ID] = &cp
	r.byAppointment[p.AppointmentID] = p.ID
	return nil
}

func (r *repoMem) GetByID(_ context.Context, id uuid.UUID) (*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *repoMem) GetByAppointment(_ context.Context, appointmentID uuid.UUID) (*Prescription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byAppointment[appointmentID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *r.items[id]
	return &cp, nil
}

func (r *repoMem) list(filter func(*Prescription) bool, limit, offset int) ([]*Prescription, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Prescription
	for _, p := range r.items {
		if filter(p) {
			cp := *p
			matched = append(matched, &cp)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

func (r *repoMem) ListByPatient(_ context.Context, patientID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.list(func(p *Prescription) bool { return p.PatientID == patientID }, limit, offset)
}

func (r *repoMem) ListByDoctor(_ context.Context, doctorID uuid.UUID, limit, offset int) ([]*Prescription, int, error) {
	return r.list(func(p *Prescription) bool { return p.DoctorID == doctorID }, limit, offset)
}

func (r *repoMem) MarkViewed(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	if p.PatientViewedAt == nil {
		now := time.Now()
		p.PatientViewedAt = &now
	}
	return nil
}

func (r *repoMem) MarkDownloaded(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	p.DownloadedAt = &now
	return nil
}
