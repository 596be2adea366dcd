package prescription

import (
	"time"

	"github.com/google/uuid"
)

// Medication is one ordered line item. The list is stored as jsonb, order
// preserved.
type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration,omitempty"`
	Quantity     string `json:"quantity,omitempty"`
	Instructions string `json:"instructions,omitempty"`
}

// Prescription maps to the prescriptions table. A prescription is created
// exactly once per appointment at the prescribed transition and is immutable
// afterwards; only the access-audit timestamps change.
type Prescription struct {
	ID              uuid.UUID    `db:"id" json:"id"`
	AppointmentID   uuid.UUID    `db:"appointment_id" json:"appointment_id"`
	DoctorID        uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	PatientID       uuid.UUID    `db:"patient_id" json:"patient_id"`
	Diagnosis       string       `db:"diagnosis" json:"diagnosis"`
	Medications     []Medication `db:"medications" json:"medications"`
	Instructions    *string      `db:"instructions" json:"instructions,omitempty"`
	FollowUpDate    *time.Time   `db:"follow_up_date" json:"follow_up_date,omitempty"`
	PatientViewedAt *time.Time   `db:"patient_viewed_at" json:"patient_viewed_at,omitempty"`
	DownloadedAt    *time.Time   `db:"downloaded_at" json:"downloaded_at,omitempty"`
	CreatedAt       time.Time    `db:"created_at" json:"created_at"`
}
