package entities

import (
	"time"
)

// DayAvailability flags one patient-local calendar day as open or closed.
// It is a coarse, advisory signal meant to let a UI gray out closed days
// cheaply; the slot matrix is the authoritative check.
type DayAvailability struct {
	Date        string `json:"date"`
	Label       string `json:"label"`
	IsAvailable bool   `json:"is_available"`
}

// SlotAvailability is one generated candidate slot for a single day in the
// patient's timezone. Start and end serialize as UTC instants; LocalTime is
// the patient-local clock time used for display and sorting.
type SlotAvailability struct {
	Start       time.Time `json:"start"`
	End         time.Time `json:"end"`
	LocalTime   string    `json:"local_time"`
	IsAvailable bool      `json:"is_available"`
}
