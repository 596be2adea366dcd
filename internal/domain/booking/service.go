package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicflow/clinicflow/internal/domain/notification"
	"github.com/clinicflow/clinicflow/internal/domain/prescription"
	"github.com/clinicflow/clinicflow/internal/platform/auth"
)

// Policy carries the named workflow policy decisions.
type Policy struct {
	// ReassignDeclined returns a declined appointment to the unassigned pool
	// (status pending) instead of leaving declined as a terminal status.
	ReassignDeclined bool
}

// Notifier persists a notification batch. Satisfied by notification.Service.
type Notifier interface {
	FanOut(ctx context.Context, items []*notification.Notification) error
}

// PrescriptionCreator persists a new prescription. Satisfied by
// prescription.Service; the create participates in the caller's transaction
// through the context.
type PrescriptionCreator interface {
	Create(ctx context.Context, p *prescription.Prescription) error
}

// TxRunner wraps fn in a transaction boundary. Production wiring uses
// db.WithTx over the pgx pool; tests use PassthroughTx.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// PassthroughTx runs fn directly, for in-memory repositories. There is no
// rollback: writes made before a failure inside fn stay applied. Transition
// operations therefore issue the version-guarded appointment update before
// any dependent rows, so a stale-version failure aborts before anything
// else is written.
func PassthroughTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// MetricsRecorder receives transition and fan-out counters. Satisfied by
// telemetry.Provider.
type MetricsRecorder interface {
	TransitionCounter(action, toStatus string)
	NotificationCounter(n int64)
}

type Service struct {
	appts       AppointmentRepository
	assignments AssignmentRepository
	notifier    Notifier
	rx          PrescriptionCreator
	runTx       TxRunner
	policy      Policy
	log         zerolog.Logger
	metrics     MetricsRecorder
}

func NewService(
	appts AppointmentRepository,
	assignments AssignmentRepository,
	notifier Notifier,
	rx PrescriptionCreator,
	runTx TxRunner,
	policy Policy,
	log zerolog.Logger,
) *Service {
	return &Service{
		appts:       appts,
		assignments: assignments,
		notifier:    notifier,
		rx:          rx,
		runTx:       runTx,
		policy:      policy,
		log:         log,
	}
}

// SetMetrics attaches an optional metrics recorder.
func (s *Service) SetMetrics(m MetricsRecorder) { s.metrics = m }

// -- Requests --

type BookRequest struct {
	ClinicID        uuid.UUID `json:"clinic_id"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Type            string    `json:"type"`
	Notes           *string   `json:"notes,omitempty"`
}

type PrescriptionInput struct {
	Diagnosis    string                    `json:"diagnosis"`
	Medications  []prescription.Medication `json:"medications"`
	Instructions *string                   `json:"instructions,omitempty"`
	FollowUpDate *time.Time                `json:"follow_up_date,omitempty"`
}

// -- Transitions --

// Book creates a pending appointment for the patient actor and notifies the
// patient and the clinic.
func (s *Service) Book(ctx context.Context, actor auth.Actor, req BookRequest) (*Appointment, error) {
	if actor.Role != auth.RolePatient {
		return nil, fmt.Errorf("%w: only patients book appointments", ErrNotAuthorized)
	}
	if req.ClinicID == uuid.Nil {
		return nil, validationf("clinic_id is required")
	}
	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return nil, validationf("invalid date %q, expected YYYY-MM-DD", req.Date)
	}
	startAt, err := time.Parse("15:04", req.Time)
	if err != nil {
		return nil, validationf("invalid time %q, expected HH:MM", req.Time)
	}
	if req.Type == "" {
		return nil, validationf("type is required")
	}
	if req.DurationMinutes <= 0 {
		req.DurationMinutes = 30
	}

	a := &Appointment{
		PatientID: actor.ID,
		ClinicID:  req.ClinicID,
		Date:      date,
		// Canonical zero-padded form; slot exclusion matches on the exact
		// string.
		StartTime:       startAt.Format("15:04"),
		DurationMinutes: req.DurationMinutes,
		Type:            req.Type,
		Status:          StatusPending,
		PatientNotes:    req.Notes,
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.appts.Create(ctx, a); err != nil {
			return fmt.Errorf("create appointment: %w", err)
		}
		return s.appts.AppendStatusChange(ctx, &StatusChange{
			AppointmentID: a.ID,
			ToStatus:      StatusPending,
			Action:        ActionBook,
			ActorRole:     actor.Role,
			ActorID:       actor.ID,
		})
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ActionBook, StatusPending)
	s.notify(ctx,
		s.buildNotification(a.PatientID, notification.UserTypePatient, a, nil,
			"Appointment Booked",
			fmt.Sprintf("Your %s appointment on %s at %s is pending confirmation.", a.Type, req.Date, a.StartTime),
			"appointment_created"),
		s.buildNotification(a.ClinicID, notification.UserTypeClinic, a, nil,
			"New Appointment Request",
			fmt.Sprintf("A patient requested a %s appointment on %s at %s.", a.Type, req.Date, a.StartTime),
			"appointment_created"),
	)
	return a, nil
}

// Assign moves a pending appointment to assigned, creating the assignment
// row in the same transaction, and notifies the doctor and the patient.
func (s *Service) Assign(ctx context.Context, actor auth.Actor, apptID, doctorID uuid.UUID, version int, note *string) (*Appointment, error) {
	if doctorID == uuid.Nil {
		return nil, validationf("doctor_id is required")
	}

	a, err := s.loadForActor(ctx, apptID, actor, ActionAssign)
	if err != nil {
		return nil, err
	}
	next, err := Next(ActionAssign, a.Status)
	if err != nil {
		return nil, err
	}
	if a.Version != version {
		return nil, ErrConflict
	}

	from := a.Status
	now := time.Now()
	a.DoctorID = &doctorID
	a.Status = next
	a.AssignedAt = &now
	a.ClinicNotes = coalesce(note, a.ClinicNotes)

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.appts.UpdateVersioned(ctx, a); err != nil {
			return err
		}
		if err := s.assignments.Create(ctx, &DoctorAssignment{
			AppointmentID:  a.ID,
			DoctorID:       doctorID,
			ClinicID:       a.ClinicID,
			AssignedBy:     actor.ID,
			ResponseStatus: ResponsePending,
		}); err != nil {
			return fmt.Errorf("create assignment: %w", err)
		}
		return s.appendChange(ctx, a, from, ActionAssign, actor, note)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ActionAssign, next)
	s.notify(ctx,
		s.buildNotification(doctorID, notification.UserTypeDoctor, a, nil,
			"New Appointment Assigned",
			fmt.Sprintf("You have been assigned a %s appointment on %s at %s.", a.Type, a.Date.Format("2006-01-02"), a.StartTime),
			"doctor_assigned"),
		s.buildNotification(a.PatientID, notification.UserTypePatient, a, nil,
			"Doctor Assigned",
			"A doctor has been assigned to your appointment.",
			"doctor_assigned"),
	)
	return a, nil
}

// Confirm moves an assigned appointment to confirmed, records the doctor's
// accepted response, and notifies the clinic.
func (s *Service) Confirm(ctx context.Context, actor auth.Actor, apptID uuid.UUID, version int) (*Appointment, error) {
	a, err := s.loadForActor(ctx, apptID, actor, ActionConfirm)
	if err != nil {
		return nil, err
	}
	next, err := Next(ActionConfirm, a.Status)
	if err != nil {
		return nil, err
	}
	if a.Version != version {
		return nil, ErrConflict
	}

	from := a.Status
	now := time.Now()
	a.Status = next
	a.ConfirmedAt = &now

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.appts.UpdateVersioned(ctx, a); err != nil {
			return err
		}
		da, err := s.assignments.GetActiveByAppointment(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("load assignment: %w", err)
		}
		if err := s.assignments.UpdateResponse(ctx, da.ID, ResponseAccepted, nil); err != nil {
			return fmt.Errorf("update assignment response: %w", err)
		}
		return s.appendChange(ctx, a, from, ActionConfirm, actor, nil)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ActionConfirm, next)
	s.notify(ctx,
		s.buildNotification(a.ClinicID, notification.UserTypeClinic, a, nil,
			"Appointment Confirmed",
			fmt.Sprintf("The doctor confirmed the %s appointment on %s at %s.", a.Type, a.Date.Format("2006-01-02"), a.StartTime),
			"appointment_confirmed"),
	)
	return a, nil
}

// Decline records the doctor's declined response with the verbatim reason,
// clears the doctor from the appointment, and either returns it to the
// unassigned pool or leaves it declined, per policy. The clinic is notified.
func (s *Service) Decline(ctx context.Context, actor auth.Actor, apptID uuid.UUID, version int, reason string) (*Appointment, error) {
	if reason == "" {
		return nil, validationf("a decline reason is required")
	}

	a, err := s.loadForActor(ctx, apptID, actor, ActionDecline)
	if err != nil {
		return nil, err
	}
	next, err := Next(ActionDecline, a.Status)
	if err != nil {
		return nil, err
	}
	if a.Version != version {
		return nil, ErrConflict
	}

	from := a.Status
	now := time.Now()
	a.DoctorID = nil
	a.DeclinedAt = &now
	if s.policy.ReassignDeclined {
		a.Status = StatusPending
	} else {
		a.Status = next
	}

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.appts.UpdateVersioned(ctx, a); err != nil {
			return err
		}
		da, err := s.assignments.GetActiveByAppointment(ctx, a.ID)
		if err != nil {
			return fmt.Errorf("load assignment: %w", err)
		}
		if err := s.assignments.UpdateResponse(ctx, da.ID, ResponseDeclined, &reason); err != nil {
			return fmt.Errorf("update assignment response: %w", err)
		}
		return s.appendChange(ctx, a, from, ActionDecline, actor, &reason)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ActionDecline, a.Status)
	s.notify(ctx,
		s.buildNotification(a.ClinicID, notification.UserTypeClinic, a, nil,
			"Appointment Declined",
			fmt.Sprintf("The doctor declined the appointment: %s", reason),
			"appointment_declined"),
	)
	return a, nil
}

// Start moves a confirmed appointment to in_progress. No notifications.
func (s *Service) Start(ctx context.Context, actor auth.Actor, apptID uuid.UUID, version int) (*Appointment, error) {
	a, err := s.loadForActor(ctx, apptID, actor, ActionStart)
	if err != nil {
		return nil, err
	}
	next, err := Next(ActionStart, a.Status)
	if err != nil {
		return nil, err
	}
	if a.Version != version {
		return nil, ErrConflict
	}

	from := a.Status
	now := time.Now()
	a.Status = next
	a.StartedAt = &now

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.appts.UpdateVersioned(ctx, a); err != nil {
			return err
		}
		return s.appendChange(ctx, a, from, ActionStart, actor, nil)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ActionStart, next)
	return a, nil
}

// Complete moves an in_progress appointment to completed, stores the
// doctor's notes, and notifies the patient.
func (s *Service) Complete(ctx context.Context, actor auth.Actor, apptID uuid.UUID, version int, notes *string) (*Appointment, error) {
	a, err := s.loadForActor(ctx, apptID, actor, ActionComplete)
	if err != nil {
		return nil, err
	}
	next, err := Next(ActionComplete, a.Status)
	if err != nil {
		return nil, err
	}
	if a.Version != version {
		return nil, ErrConflict
	}

	from := a.Status
	now := time.Now()
	a.Status = next
	a.CompletedAt = &now
	a.DoctorNotes = coalesce(notes, a.DoctorNotes)

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.appts.UpdateVersioned(ctx, a); err != nil {
			return err
		}
		return s.appendChange(ctx, a, from, ActionComplete, actor, notes)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ActionComplete, next)
	s.notify(ctx,
		s.buildNotification(a.PatientID, notification.UserTypePatient, a, nil,
			"Appointment Completed",
			"Your appointment has been completed.",
			"appointment_completed"),
	)
	return a, nil
}

// SubmitPrescription creates the prescription and advances the appointment
// to prescribed in one transaction, then notifies the patient and the
// clinic.
func (s *Service) SubmitPrescription(ctx context.Context, actor auth.Actor, apptID uuid.UUID, version int, input PrescriptionInput) (*Appointment, error) {
	a, err := s.loadForActor(ctx, apptID, actor, ActionPrescribe)
	if err != nil {
		return nil, err
	}
	next, err := Next(ActionPrescribe, a.Status)
	if err != nil {
		return nil, err
	}
	if a.Version != version {
		return nil, ErrConflict
	}

	p := &prescription.Prescription{
		AppointmentID: a.ID,
		DoctorID:      actor.ID,
		PatientID:     a.PatientID,
		Diagnosis:     input.Diagnosis,
		Medications:   input.Medications,
		Instructions:  input.Instructions,
		FollowUpDate:  input.FollowUpDate,
	}
	// Content rules checked before any write.
	if err := prescription.Validate(p); err != nil {
		return nil, &ValidationError{Message: err.Error()}
	}

	from := a.Status
	p.ID = uuid.New()
	a.Status = next
	a.PrescriptionID = &p.ID
	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.appts.UpdateVersioned(ctx, a); err != nil {
			return err
		}
		if err := s.rx.Create(ctx, p); err != nil {
			return fmt.Errorf("create prescription: %w", err)
		}
		return s.appendChange(ctx, a, from, ActionPrescribe, actor, nil)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ActionPrescribe, next)
	s.notify(ctx,
		s.buildNotification(a.PatientID, notification.UserTypePatient, a, &p.ID,
			"Prescription Ready",
			"Your prescription is ready to view.",
			"prescription_ready"),
		s.buildNotification(a.ClinicID, notification.UserTypeClinic, a, &p.ID,
			"Prescription Issued",
			"A prescription was issued for a completed appointment.",
			"prescription_ready"),
	)
	return a, nil
}

// Rate records the patient's ratings on a completed or prescribed
// appointment. Ratings are validated before any write; a second rating is
// rejected. The clinic and the doctor are notified.
func (s *Service) Rate(ctx context.Context, actor auth.Actor, apptID uuid.UUID, version int, clinicRating, doctorRating int, feedback *string) (*Appointment, error) {
	if clinicRating < 1 || clinicRating > 5 {
		return nil, validationf("clinic_rating must be between 1 and 5")
	}
	if doctorRating < 1 || doctorRating > 5 {
		return nil, validationf("doctor_rating must be between 1 and 5")
	}

	a, err := s.loadForActor(ctx, apptID, actor, ActionRate)
	if err != nil {
		return nil, err
	}
	if _, err := Next(ActionRate, a.Status); err != nil {
		return nil, err
	}
	if a.RatedAt != nil {
		return nil, validationf("a review already exists for this appointment")
	}
	if a.Version != version {
		return nil, ErrConflict
	}

	from := a.Status
	now := time.Now()
	a.ClinicRating = &clinicRating
	a.DoctorRating = &doctorRating
	a.Feedback = feedback
	a.RatedAt = &now

	ratedDoctor := a.DoctorID

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.appts.UpdateVersioned(ctx, a); err != nil {
			return err
		}
		return s.appendChange(ctx, a, from, ActionRate, actor, feedback)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ActionRate, a.Status)
	items := []*notification.Notification{
		s.buildNotification(a.ClinicID, notification.UserTypeClinic, a, nil,
			"New Rating Received",
			fmt.Sprintf("A patient rated their visit %d/5.", clinicRating),
			"appointment_rated"),
	}
	if ratedDoctor != nil {
		items = append(items, s.buildNotification(*ratedDoctor, notification.UserTypeDoctor, a, nil,
			"New Rating Received",
			fmt.Sprintf("A patient rated your consultation %d/5.", doctorRating),
			"appointment_rated"))
	}
	s.notify(ctx, items...)
	return a, nil
}

// Cancel moves a pending, assigned, or confirmed appointment to cancelled,
// freeing its slot, and notifies the other parties.
func (s *Service) Cancel(ctx context.Context, actor auth.Actor, apptID uuid.UUID, version int, reason string) (*Appointment, error) {
	a, err := s.loadForActor(ctx, apptID, actor, ActionCancel)
	if err != nil {
		return nil, err
	}
	next, err := Next(ActionCancel, a.Status)
	if err != nil {
		return nil, err
	}
	if a.Version != version {
		return nil, ErrConflict
	}

	from := a.Status
	now := time.Now()
	a.Status = next
	a.CancelledAt = &now
	if reason != "" {
		a.CancellationReason = &reason
	}

	cancelledDoctor := a.DoctorID

	err = s.runTx(ctx, func(ctx context.Context) error {
		if err := s.appts.UpdateVersioned(ctx, a); err != nil {
			return err
		}
		note := a.CancellationReason
		return s.appendChange(ctx, a, from, ActionCancel, actor, note)
	})
	if err != nil {
		return nil, err
	}

	s.recordTransition(ActionCancel, next)
	msg := "The appointment was cancelled."
	if reason != "" {
		msg = fmt.Sprintf("The appointment was cancelled: %s", reason)
	}
	var items []*notification.Notification
	if actor.Role != auth.RolePatient {
		items = append(items, s.buildNotification(a.PatientID, notification.UserTypePatient, a, nil,
			"Appointment Cancelled", msg, "appointment_cancelled"))
	}
	if actor.Role != auth.RoleClinic {
		items = append(items, s.buildNotification(a.ClinicID, notification.UserTypeClinic, a, nil,
			"Appointment Cancelled", msg, "appointment_cancelled"))
	}
	if cancelledDoctor != nil && actor.Role != auth.RoleDoctor {
		items = append(items, s.buildNotification(*cancelledDoctor, notification.UserTypeDoctor, a, nil,
			"Appointment Cancelled", msg, "appointment_cancelled"))
	}
	s.notify(ctx, items...)
	return a, nil
}

// -- Reads --

// Get returns the appointment if the actor is a party to it.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id uuid.UUID) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(a, actor) {
		return nil, ErrNotAuthorized
	}
	return a, nil
}

// History returns the status change trail if the actor is a party.
func (s *Service) History(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]*StatusChange, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isParty(a, actor) {
		return nil, ErrNotAuthorized
	}
	return s.appts.ListStatusChanges(ctx, id)
}

// Assignments returns the assignment attempts for an appointment. Clinic
// and admin only.
func (s *Service) Assignments(ctx context.Context, actor auth.Actor, id uuid.UUID) ([]*DoctorAssignment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != auth.RoleAdmin && (actor.Role != auth.RoleClinic || a.ClinicID != actor.ID) {
		return nil, ErrNotAuthorized
	}
	return s.assignments.ListByAppointment(ctx, id)
}

// ListForActor returns the actor's appointment view, optionally filtered by
// status.
func (s *Service) ListForActor(ctx context.Context, actor auth.Actor, status AppointmentStatus, limit, offset int) ([]*Appointment, int, error) {
	if status != "" && !validStatuses[status] {
		return nil, 0, validationf("invalid status filter %q", status)
	}
	switch actor.Role {
	case auth.RolePatient:
		return s.appts.ListByPatient(ctx, actor.ID, status, limit, offset)
	case auth.RoleClinic:
		return s.appts.ListByClinic(ctx, actor.ID, status, limit, offset)
	case auth.RoleDoctor:
		return s.appts.ListByDoctor(ctx, actor.ID, status, limit, offset)
	default:
		return nil, 0, ErrNotAuthorized
	}
}

// -- Internal helpers --

// loadForActor fetches the appointment and enforces the actor-to-record
// match for the given action.
func (s *Service) loadForActor(ctx context.Context, id uuid.UUID, actor auth.Actor, action Action) (*Appointment, error) {
	a, err := s.appts.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	switch action {
	case ActionAssign:
		if actor.Role != auth.RoleClinic || a.ClinicID != actor.ID {
			return nil, ErrNotAuthorized
		}
	case ActionConfirm, ActionDecline, ActionStart, ActionComplete, ActionPrescribe:
		if actor.Role != auth.RoleDoctor || a.DoctorID == nil || *a.DoctorID != actor.ID {
			return nil, ErrNotAuthorized
		}
	case ActionRate:
		if actor.Role != auth.RolePatient || a.PatientID != actor.ID {
			return nil, ErrNotAuthorized
		}
	case ActionCancel:
		patientOwns := actor.Role == auth.RolePatient && a.PatientID == actor.ID
		clinicOwns := actor.Role == auth.RoleClinic && a.ClinicID == actor.ID
		if !patientOwns && !clinicOwns {
			return nil, ErrNotAuthorized
		}
	}
	return a, nil
}

func (s *Service) appendChange(ctx context.Context, a *Appointment, from AppointmentStatus, action Action, actor auth.Actor, note *string) error {
	fromCopy := from
	return s.appts.AppendStatusChange(ctx, &StatusChange{
		AppointmentID: a.ID,
		FromStatus:    &fromCopy,
		ToStatus:      a.Status,
		Action:        action,
		ActorRole:     actor.Role,
		ActorID:       actor.ID,
		Note:          note,
	})
}

func (s *Service) buildNotification(userID uuid.UUID, userType string, a *Appointment, prescriptionID *uuid.UUID, title, message, typeTag string) *notification.Notification {
	apptID := a.ID
	return &notification.Notification{
		UserID:         userID,
		UserType:       userType,
		AppointmentID:  &apptID,
		PrescriptionID: prescriptionID,
		Title:          title,
		Message:        message,
		Type:           typeTag,
	}
}

// notify runs the fan-out after the transition committed. A failure is
// logged and never unwinds the state change.
func (s *Service) notify(ctx context.Context, items ...*notification.Notification) {
	if len(items) == 0 {
		return
	}
	if err := s.notifier.FanOut(ctx, items); err != nil {
		s.log.Error().Err(err).Int("count", len(items)).Msg("notification fan-out failed")
		return
	}
	if s.metrics != nil {
		s.metrics.NotificationCounter(int64(len(items)))
	}
}

func (s *Service) recordTransition(action Action, to AppointmentStatus) {
	if s.metrics != nil {
		s.metrics.TransitionCounter(string(action), string(to))
	}
}

func isParty(a *Appointment, actor auth.Actor) bool {
	switch actor.Role {
	case auth.RoleAdmin:
		return true
	case auth.RolePatient:
		return a.PatientID == actor.ID
	case auth.RoleClinic:
		return a.ClinicID == actor.ID
	case auth.RoleDoctor:
		return a.DoctorID != nil && *a.DoctorID == actor.ID
	}
	return false
}

func coalesce(preferred, fallback *string) *string {
	if preferred != nil {
		return preferred
	}
	return fallback
}
