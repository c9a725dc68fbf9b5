package entities

import (
	"time"
)

// TaskStatus represents the lifecycle of a patient's service request
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusScheduled TaskStatus = "scheduled"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// PaymentStatus tracks payment independently of the task lifecycle
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusRefunded PaymentStatus = "refunded"
	PaymentStatusFailed   PaymentStatus = "failed"
)

// Task is a patient's service request. A task owns at most one active
// (non-cancelled) appointment at a time; historical appointment rows may
// remain after cancellation.
type Task struct {
	ID            string        `json:"id" db:"id"`
	PatientID     string        `json:"patient_id" db:"patient_id"`
	CategoryID    string        `json:"category_id" db:"category_id"`
	DoctorID      *string       `json:"doctor_id" db:"doctor_id"`
	Status        TaskStatus    `json:"status" db:"status"`
	PaymentStatus PaymentStatus `json:"payment_status" db:"payment_status"`
	Notes         string        `json:"notes" db:"notes"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// IsCancelled reports whether the task has been cancelled
func (t *Task) IsCancelled() bool {
	return t.Status == TaskStatusCancelled
}
