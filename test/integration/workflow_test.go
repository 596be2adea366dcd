package integration

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/booking"
	"github.com/clinicflow/clinicflow/internal/domain/clinic"
	"github.com/clinicflow/clinicflow/internal/domain/notification"
	"github.com/clinicflow/clinicflow/internal/domain/prescription"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
	"github.com/clinicflow/clinicflow/internal/platform/db"
)

type stack struct {
	clinicSvc  *clinic.Service
	bookingSvc *booking.Service
	notifRepo  notification.Repository
	rxRepo     prescription.Repository
	apptRepo   booking.AppointmentRepository
}

func newStack(t *testing.T) *stack {
	t.Helper()
	pool := globalDB.Pool

	clinicRepo := clinic.NewRepoPG(pool)
	apptRepo := booking.NewAppointmentRepoPG(pool)
	assignRepo := booking.NewAssignmentRepoPG(pool)
	rxRepo := prescription.NewRepoPG(pool)
	notifRepo := notification.NewRepoPG(pool)

	runTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
	bookingSvc := booking.NewService(
		apptRepo, assignRepo,
		notification.NewService(notifRepo),
		prescription.NewService(rxRepo),
		runTx,
		booking.Policy{ReassignDeclined: true},
		zerolog.Nop(),
	)
	return &stack{
		clinicSvc:  clinic.NewService(clinicRepo, apptRepo, 30),
		bookingSvc: bookingSvc,
		notifRepo:  notifRepo,
		rxRepo:     rxRepo,
		apptRepo:   apptRepo,
	}
}

func weekdayHours() clinic.WeekHours {
	return clinic.WeekHours{
		"monday":    {Open: "09:00", Close: "17:00"},
		"tuesday":   {Open: "09:00", Close: "17:00"},
		"wednesday": {Open: "09:00", Close: "17:00"},
		"thursday":  {Open: "09:00", Close: "17:00"},
		"friday":    {Open: "09:00", Close: "17:00"},
	}
}

func TestWorkflow_EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := newStack(t)
	ctx := context.Background()

	c := &clinic.Clinic{Name: "Main Street Clinic", Hours: weekdayHours()}
	if err := s.clinicSvc.Create(ctx, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient, Name: "Pat"}
	clinicActor := auth.Actor{ID: c.ID, Role: auth.RoleClinic, Name: c.Name}
	doctor := auth.Actor{ID: uuid.New(), Role: auth.RoleDoctor, Name: "Dr. Reyes"}

	// 2024-01-15 is a Monday.
	a, err := s.bookingSvc.Book(ctx, patient, booking.BookRequest{
		ClinicID: c.ID,
		Date:     "2024-01-15",
		Time:     "14:00",
		Type:     "consultation",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != booking.StatusPending || a.Version != 1 {
		t.Fatalf("after book: status=%s version=%d", a.Status, a.Version)
	}

	// The booked slot is reported unavailable.
	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	slots, err := s.clinicSvc.AvailableSlots(ctx, c.ID, date)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	found := false
	for _, slot := range slots {
		if slot.Time == "14:00" {
			found = true
			if slot.Available {
				t.Error("booked slot 14:00 still reported available")
			}
		}
		if slot.Time == "12:00" || slot.Time == "12:30" {
			t.Errorf("lunch slot %s generated", slot.Time)
		}
	}
	if !found {
		t.Fatal("slot 14:00 missing from generated slots")
	}

	a, err = s.bookingSvc.Assign(ctx, clinicActor, a.ID, doctor.ID, a.Version, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err = s.bookingSvc.Confirm(ctx, doctor, a.ID, a.Version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err = s.bookingSvc.Start(ctx, doctor, a.ID, a.Version)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err = s.bookingSvc.Complete(ctx, doctor, a.ID, a.Version, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	a, err = s.bookingSvc.SubmitPrescription(ctx, doctor, a.ID, a.Version, booking.PrescriptionInput{
		Diagnosis: "Hypertension",
		Medications: []prescription.Medication{
			{Name: "Lisinopril", Dosage: "10mg", Frequency: "once daily"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Status != booking.StatusPrescribed || a.PrescriptionID == nil {
		t.Fatalf("after prescription: status=%s link=%v", a.Status, a.PrescriptionID)
	}

	p, err := s.rxRepo.GetByAppointment(ctx, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.ID != *a.PrescriptionID {
		t.Fatal("prescription link mismatch")
	}

	// The unique constraint blocks a second prescription row directly.
	dup := &prescription.Prescription{
		AppointmentID: a.ID,
		DoctorID:      doctor.ID,
		PatientID:     patient.ID,
		Diagnosis:     "Hypertension",
		Medications:   []prescription.Medication{{Name: "X", Dosage: "1", Frequency: "1"}},
	}
	if err := s.rxRepo.Create(ctx, dup); !errors.Is(err, prescription.ErrAlreadyExists) {
		t.Fatalf("duplicate prescription error = %v, want ErrAlreadyExists", err)
	}

	a, err = s.bookingSvc.Rate(ctx, patient, a.ID, a.Version, 5, 4, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The full trail survived round-tripping through postgres.
	history, err := s.bookingSvc.History(ctx, patient, a.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(history) != 7 {
		t.Fatalf("history entries = %d, want 7", len(history))
	}

	// Every notified party has rows.
	for _, userID := range []uuid.UUID{patient.ID, c.ID, doctor.ID} {
		items, _, err := s.notifRepo.ListByUser(ctx, userID, false, 50, 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(items) == 0 {
			t.Errorf("no notifications for %s", userID)
		}
	}
}

func TestWorkflow_ConcurrentWriteConflict(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := newStack(t)
	ctx := context.Background()

	c := &clinic.Clinic{Name: "Conflict Clinic", Hours: weekdayHours()}
	if err := s.clinicSvc.Create(ctx, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	clinicActor := auth.Actor{ID: c.ID, Role: auth.RoleClinic}

	a, err := s.bookingSvc.Book(ctx, patient, booking.BookRequest{
		ClinicID: c.ID,
		Date:     "2024-01-16",
		Time:     "10:00",
		Type:     "consultation",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	staleVersion := a.Version
	if _, err := s.bookingSvc.Assign(ctx, clinicActor, a.ID, uuid.New(), staleVersion, nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = s.bookingSvc.Cancel(ctx, patient, a.ID, staleVersion, "changed plans")
	if !errors.Is(err, booking.ErrConflict) {
		t.Fatalf("stale write error = %v, want ErrConflict", err)
	}
}

func TestWorkflow_CancelledSlotReopens(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	s := newStack(t)
	ctx := context.Background()

	c := &clinic.Clinic{Name: "Reopen Clinic", Hours: weekdayHours()}
	if err := s.clinicSvc.Create(ctx, c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	patient := auth.Actor{ID: uuid.New(), Role: auth.RolePatient}
	a, err := s.bookingSvc.Book(ctx, patient, booking.BookRequest{
		ClinicID: c.ID,
		Date:     "2024-01-17",
		Time:     "09:30",
		Type:     "follow-up",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.bookingSvc.Cancel(ctx, patient, a.ID, a.Version, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	booked, err := s.apptRepo.BookedTimes(ctx, c.ID, time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, bt := range booked {
		if bt == "09:30" {
			t.Fatal("cancelled appointment still blocks its slot")
		}
	}
}
