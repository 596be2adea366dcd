package booking

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// apptRepoMem is an in-memory AppointmentRepository with the same versioning
// semantics as the postgres implementation.
type apptRepoMem struct {
	mu      sync.RWMutex
	items   map[uuid.UUID]*Appointment
	history map[uuid.UUID][]*StatusChange
}

func NewAppointmentRepoMem() AppointmentRepository {
	return &apptRepoMem{
		items:   make(map[uuid.UUID]*Appointment),
		history: make(map[uuid.UUID][]*StatusChange),
	}
}

func (r *apptRepoMem) Create(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	a.Version = 1
	a.CreatedAt = time.Now()
	a.UpdatedAt = a.CreatedAt
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *apptRepoMem) GetByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (r *apptRepoMem) UpdateVersioned(_ context.Context, a *Appointment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.items[a.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != a.Version {
		return ErrConflict
	}
	a.Version++
	a.UpdatedAt = time.Now()
	a.CreatedAt = stored.CreatedAt
	cp := *a
	r.items[a.ID] = &cp
	return nil
}

func (r *apptRepoMem) list(filter func(*Appointment) bool, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Appointment
	for _, a := range r.items {
		if !filter(a) {
			continue
		}
		if status != "" && a.Status != status {
			continue
		}
		cp := *a
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Date.Equal(matched[j].Date) {
			return matched[i].Date.After(matched[j].Date)
		}
		return matched[i].StartTime > matched[j].StartTime
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

func (r *apptRepoMem) ListByPatient(_ context.Context, patientID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	return r.list(func(a *Appointment) bool { return a.PatientID == patientID }, status, limit, offset)
}

func (r *apptRepoMem) ListByClinic(_ context.Context, clinicID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	return r.list(func(a *Appointment) bool { return a.ClinicID == clinicID }, status, limit, offset)
}

func (r *apptRepoMem) ListByDoctor(_ context.Context, doctorID uuid.UUID, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	return r.list(func(a *Appointment) bool {
		return a.DoctorID != nil && *a.DoctorID == doctorID
	}, status, limit, offset)
}

func (r *apptRepoMem) BookedTimes(_ context.Context, clinicID uuid.UUID, date time.Time) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	y, m, d := date.Date()
	var times []string
	for _, a := range r.items {
		ay, am, ad := a.Date.Date()
		if a.ClinicID != clinicID || ay != y || am != m || ad != d {
			continue
		}
		if a.Status == StatusCancelled {
			continue
		}
		times = append(times, a.StartTime)
	}
	sort.Strings(times)
	return times, nil
}

func (r *apptRepoMem) AppendStatusChange(_ context.Context, sc *StatusChange) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sc.ID == uuid.Nil {
		sc.ID = uuid.New()
	}
	sc.CreatedAt = time.Now()
	cp := *sc
	r.history[sc.AppointmentID] = append(r.history[sc.AppointmentID], &cp)
	return nil
}

func (r *apptRepoMem) ListStatusChanges(_ context.Context, appointmentID uuid.UUID) ([]*StatusChange, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	changes := r.history[appointmentID]
	out := make([]*StatusChange, len(changes))
	for i, sc := range changes {
		cp := *sc
		out[i] = &cp
	}
	return out, nil
}

// assignRepoMem is an in-memory AssignmentRepository.
type assignRepoMem struct {
	mu    sync.RWMutex
	items map[uuid.UUID]*DoctorAssignment
}

func NewAssignmentRepoMem() AssignmentRepository {
	return &assignRepoMem{items: make(map[uuid.UUID]*DoctorAssignment)}
}

func (r *assignRepoMem) Create(_ context.Context, da *DoctorAssignment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if da.ID == uuid.Nil {
		da.ID = uuid.New()
	}
	if da.ResponseStatus == "" {
		da.ResponseStatus = ResponsePending
	}
	da.CreatedAt = time.Now()
	cp := *da
	r.items[da.ID] = &cp
	return nil
}

func (r *assignRepoMem) GetActiveByAppointment(_ context.Context, appointmentID uuid.UUID) (*DoctorAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var latest *DoctorAssignment
	for _, da := range r.items {
		if da.AppointmentID != appointmentID {
			continue
		}
		if latest == nil || da.CreatedAt.After(latest.CreatedAt) {
			latest = da
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	cp := *latest
	return &cp, nil
}

func (r *assignRepoMem) UpdateResponse(_ context.Context, id uuid.UUID, responseStatus string, notes *string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	da, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	now := time.Now()
	da.ResponseStatus = responseStatus
	da.ResponseNotes = notes
	da.RespondedAt = &now
	return nil
}

func (r *assignRepoMem) ListByAppointment(_ context.Context, appointmentID uuid.UUID) ([]*DoctorAssignment, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var items []*DoctorAssignment
	for _, da := range r.items {
		if da.AppointmentID == appointmentID {
			cp := *da
			items = append(items, &cp)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.Before(items[j].CreatedAt) })
	return items, nil
}
