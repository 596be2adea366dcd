package notification

import (
	"time"

	"github.com/google/uuid"
)

// User types a notification can target.
const (
	UserTypePatient = "patient"
	UserTypeClinic  = "clinic"
	UserTypeDoctor  = "doctor"
)

// Notification maps to the workflow_notifications table. Rows are created by
// the fan-out step after a booking transition and mutated only through the
// read flag.
type Notification struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	UserID         uuid.UUID  `db:"user_id" json:"user_id"`
	UserType       string     `db:"user_type" json:"user_type"`
	AppointmentID  *uuid.UUID `db:"appointment_id" json:"appointment_id,omitempty"`
	PrescriptionID *uuid.UUID `db:"prescription_id" json:"prescription_id,omitempty"`
	Title          string     `db:"title" json:"title"`
	Message        string     `db:"message" json:"message"`
	Type           string     `db:"type" json:"type"`
	IsRead         bool       `db:"is_read" json:"is_read"`
	ReadAt         *time.Time `db:"read_at" json:"read_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
}

var validUserTypes = map[string]bool{
	UserTypePatient: true, UserTypeClinic: true, UserTypeDoctor: true,
}
