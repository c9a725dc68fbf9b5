package entities

import (
	"time"
)

// DoctorStatus represents the lifecycle status of a doctor account
type DoctorStatus string

const (
	DoctorStatusPendingReview DoctorStatus = "pending_review"
	DoctorStatusActive        DoctorStatus = "active"
	DoctorStatusDeclined      DoctorStatus = "declined"
	DoctorStatusSuspended     DoctorStatus = "suspended"
)

// Doctor represents a care provider. Only active doctors are eligible for
// scheduling; online doctors are preferred for selection but not required.
type Doctor struct {
	ID        string       `json:"id" db:"id"`
	Name      string       `json:"name" db:"name"`
	Timezone  string       `json:"timezone" db:"timezone"`
	Status    DoctorStatus `json:"status" db:"status"`
	IsOnline  bool         `json:"is_online" db:"is_online"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// Location resolves the doctor's IANA timezone. Falls back to UTC when the
// stored name is empty or invalid so schedule checks degrade predictably.
func (d *Doctor) Location() *time.Location {
	if d.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(d.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
