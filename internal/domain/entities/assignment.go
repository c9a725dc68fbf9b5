package entities

import (
	"time"
)

// CategoryDoctorAssignment binds a doctor to a category along with the
// per-assignment selection-policy state. This is the only place that state
// lives; it is doctor-by-category scoped, not global.
type CategoryDoctorAssignment struct {
	ID                string     `json:"id" db:"id"`
	CategoryID        string     `json:"category_id" db:"category_id"`
	DoctorID          string     `json:"doctor_id" db:"doctor_id"`
	Priority          int        `json:"priority" db:"priority"`
	Weight            int        `json:"weight" db:"weight"`
	LastAssignedAt    *time.Time `json:"last_assigned_at" db:"last_assigned_at"`
	RoundRobinCounter int        `json:"round_robin_counter" db:"round_robin_counter"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`

	// Doctor carries the joined doctor row: timezone, status and online flag
	Doctor *Doctor `json:"doctor,omitempty" db:"-"`
}
