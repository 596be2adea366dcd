package booking

import (
	"time"

	"github.com/google/uuid"
)

// AppointmentStatus is the workflow state stored on the appointment row.
type AppointmentStatus string

const (
	StatusPending     AppointmentStatus = "pending"
	StatusAssigned    AppointmentStatus = "assigned"
	StatusConfirmed   AppointmentStatus = "confirmed"
	StatusDeclined    AppointmentStatus = "declined"
	StatusInProgress  AppointmentStatus = "in_progress"
	StatusCompleted   AppointmentStatus = "completed"
	StatusPrescribed  AppointmentStatus = "prescribed"
	StatusCancelled   AppointmentStatus = "cancelled"
	StatusRescheduled AppointmentStatus = "rescheduled"
)

var validStatuses = map[AppointmentStatus]bool{
	StatusPending: true, StatusAssigned: true, StatusConfirmed: true,
	StatusDeclined: true, StatusInProgress: true, StatusCompleted: true,
	StatusPrescribed: true, StatusCancelled: true, StatusRescheduled: true,
}

// Appointment maps to the appointments table. The row is never deleted; the
// lifecycle is driven entirely through status transitions. DoctorID is null
// while the appointment awaits assignment (pending, or declined under a
// terminal-decline policy) and set otherwise. Version backs the
// compare-and-swap discipline on every write after creation.
type Appointment struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	PatientID uuid.UUID  `db:"patient_id" json:"patient_id"`
	ClinicID  uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	DoctorID  *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`

	Date            time.Time `db:"date" json:"date"`
	StartTime       string    `db:"start_time" json:"start_time"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
	Type            string    `db:"type" json:"type"`

	Status AppointmentStatus `db:"status" json:"status"`

	PatientNotes       *string `db:"patient_notes" json:"patient_notes,omitempty"`
	ClinicNotes        *string `db:"clinic_notes" json:"clinic_notes,omitempty"`
	DoctorNotes        *string `db:"doctor_notes" json:"doctor_notes,omitempty"`
	CancellationReason *string `db:"cancellation_reason" json:"cancellation_reason,omitempty"`

	ClinicRating *int    `db:"clinic_rating" json:"clinic_rating,omitempty"`
	DoctorRating *int    `db:"doctor_rating" json:"doctor_rating,omitempty"`
	Feedback     *string `db:"feedback" json:"feedback,omitempty"`

	PrescriptionID *uuid.UUID `db:"prescription_id" json:"prescription_id,omitempty"`

	Version int `db:"version" json:"version"`

	AssignedAt  *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	ConfirmedAt *time.Time `db:"confirmed_at" json:"confirmed_at,omitempty"`
	StartedAt   *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	DeclinedAt  *time.Time `db:"declined_at" json:"declined_at,omitempty"`
	CancelledAt *time.Time `db:"cancelled_at" json:"cancelled_at,omitempty"`
	RatedAt     *time.Time `db:"rated_at" json:"rated_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Assignment response statuses.
const (
	ResponsePending  = "pending"
	ResponseAccepted = "accepted"
	ResponseDeclined = "declined"
)

// DoctorAssignment maps to the clinic_doctor_assignments table. One row per
// assignment attempt; a declined assignment keeps its row as history.
type DoctorAssignment struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	AppointmentID  uuid.UUID  `db:"appointment_id" json:"appointment_id"`
	DoctorID       uuid.UUID  `db:"doctor_id" json:"doctor_id"`
	ClinicID       uuid.UUID  `db:"clinic_id" json:"clinic_id"`
	AssignedBy     uuid.UUID  `db:"assigned_by" json:"assigned_by"`
	ResponseStatus string     `db:"response_status" json:"response_status"`
	ResponseNotes  *string    `db:"response_notes" json:"response_notes,omitempty"`
	RespondedAt    *time.Time `db:"responded_at" json:"responded_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

// StatusChange maps to the appointment_status_history table. One row per
// transition, written in the same transaction as the transition itself.
type StatusChange struct {
	ID            uuid.UUID          `db:"id" json:"id"`
	AppointmentID uuid.UUID          `db:"appointment_id" json:"appointment_id"`
	FromStatus    *AppointmentStatus `db:"from_status" json:"from_status,omitempty"`
	ToStatus      AppointmentStatus  `db:"to_status" json:"to_status"`
	Action        Action             `db:"action" json:"action"`
	ActorRole     string             `db:"actor_role" json:"actor_role"`
	ActorID       uuid.UUID          `db:"actor_id" json:"actor_id"`
	Note          *string            `db:"note" json:"note,omitempty"`
	CreatedAt     time.Time          `db:"created_at" json:"created_at"`
}
