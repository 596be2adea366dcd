package clinic

import (
	"time"

	"github.com/google/uuid"
)

// DayHours is a single weekday's operating window. Times are "HH:MM" in the
// clinic's local timezone.
type DayHours struct {
	Open  string `json:"open"`
	Close string `json:"close"`
}

// WeekHours maps lowercase weekday names ("monday".."sunday") to operating
// hours. A missing key means the clinic is closed that day. Stored as jsonb.
type WeekHours map[string]DayHours

// Clinic maps to the clinics table.
type Clinic struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Timezone  string    `db:"timezone" json:"timezone"`
	Address   *string   `db:"address" json:"address,omitempty"`
	Phone     *string   `db:"phone" json:"phone,omitempty"`
	Hours     WeekHours `db:"operating_hours" json:"operating_hours"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimeSlot is a candidate appointment start time for one date. Derived, never
// persisted.
type TimeSlot struct {
	Time      string `json:"time"`
	Available bool   `json:"available"`
}
