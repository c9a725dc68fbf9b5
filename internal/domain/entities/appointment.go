package entities

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	AppointmentStatusScheduled AppointmentStatus = "scheduled"
	AppointmentStatusConfirmed AppointmentStatus = "confirmed"
	AppointmentStatusCompleted AppointmentStatus = "completed"
	AppointmentStatusCancelled AppointmentStatus = "cancelled"
)

// Appointment is a concrete reservation of a doctor and a time window for a
// task. Start and end are UTC instants with end = start + category duration.
// The doctor is nullable only transiently: a task awaiting the confirmation
// step may hold an appointment with no doctor bound yet.
type Appointment struct {
	ID         string            `json:"id" db:"id"`
	TaskID     string            `json:"task_id" db:"task_id"`
	PatientID  string            `json:"patient_id" db:"patient_id"`
	DoctorID   *string           `json:"doctor_id" db:"doctor_id"`
	CategoryID string            `json:"category_id" db:"category_id"`
	StartsAt   time.Time         `json:"starts_at" db:"starts_at"`
	EndsAt     time.Time         `json:"ends_at" db:"ends_at"`
	Status     AppointmentStatus `json:"status" db:"status"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time         `json:"updated_at" db:"updated_at"`
}

// IsActive reports whether the appointment counts against doctor capacity
func (a *Appointment) IsActive() bool {
	return a.Status == AppointmentStatusScheduled || a.Status == AppointmentStatusConfirmed
}

// Overlaps reports whether the appointment overlaps [start, end)
func (a *Appointment) Overlaps(start, end time.Time) bool {
	return a.StartsAt.Before(end) && a.EndsAt.After(start)
}
