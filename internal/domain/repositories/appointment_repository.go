package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/clinicdesk/backend/internal/domain/entities"
)

// ErrSlotContended signals that one reservation attempt lost out for a
// single candidate doctor: the in-lock recount found the doctor at capacity,
// or the lock wait timed out. It is consumed only by the allocation loop,
// which advances to the next candidate; it must never reach callers.
var ErrSlotContended = errors.New("doctor at capacity for requested slot")

// ReservationMode distinguishes a first booking from a reschedule
type ReservationMode string

const (
	// ReservationModeCreate inserts a new task and its first appointment
	ReservationModeCreate ReservationMode = "create"

	// ReservationModeRebind moves an existing appointment row to a new
	// doctor and/or time without creating a second row
	ReservationModeRebind ReservationMode = "rebind"
)

// ReservationAttempt carries everything one atomic reservation attempt
// needs for a single candidate doctor
type ReservationAttempt struct {
	Mode ReservationMode

	// AppointmentID is the id of the row inserted in create mode
	AppointmentID string

	TaskID      string
	PatientID   string
	CategoryID  string
	DoctorID    string
	StartsAt    time.Time
	EndsAt      time.Time
	Concurrency int
	Notes       string

	// RebindAppointmentID is the appointment being moved in rebind mode; it
	// is excluded from its own overlap count
	RebindAppointmentID string

	// LockWait bounds how long the attempt may wait for the per-doctor,
	// per-slot lock before giving up on this candidate
	LockWait time.Duration
}

// AppointmentRepository defines access to appointments, including the
// atomic capacity-checked reservation primitive
type AppointmentRepository interface {
	// GetActiveByTask returns the task's single scheduled or confirmed
	// appointment
	GetActiveByTask(ctx context.Context, taskID string) (*entities.Appointment, error)

	// ListActiveByDoctors returns scheduled and confirmed appointments for
	// the given doctors overlapping [from, to)
	ListActiveByDoctors(ctx context.Context, doctorIDs []string, from, to time.Time) ([]*entities.Appointment, error)

	// AttemptReservation runs one unit of work: acquire the exclusive
	// (doctor, slot start) transaction lock, recount the doctor's active
	// overlapping appointments, and write the appointment plus task fields
	// if capacity allows. Returns ErrSlotContended when the doctor is full
	// or the lock wait timed out.
	AttemptReservation(ctx context.Context, attempt ReservationAttempt) (*entities.Appointment, error)

	// UpdateStatus transitions an appointment's status
	UpdateStatus(ctx context.Context, appointmentID string, status entities.AppointmentStatus) error

	// CancelWithTask cancels the task's active appointment and the task
	// itself in one transaction
	CancelWithTask(ctx context.Context, taskID string) error
}
