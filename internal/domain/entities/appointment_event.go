package entities

import (
	"time"
)

// AppointmentEventType identifies an appointment lifecycle transition
type AppointmentEventType string

const (
	AppointmentEventBooked      AppointmentEventType = "appointment.booked"
	AppointmentEventRescheduled AppointmentEventType = "appointment.rescheduled"
	AppointmentEventConfirmed   AppointmentEventType = "appointment.confirmed"
	AppointmentEventCancelled   AppointmentEventType = "appointment.cancelled"
)

// AppointmentEvent is published on the event bus whenever an appointment
// changes state, for external consumers (notifications, audit, dashboards)
type AppointmentEvent struct {
	ID            string               `json:"id"`
	Type          AppointmentEventType `json:"type"`
	TaskID        string               `json:"task_id"`
	AppointmentID string               `json:"appointment_id"`
	CategoryID    string               `json:"category_id"`
	DoctorID      *string              `json:"doctor_id,omitempty"`
	StartsAt      time.Time            `json:"starts_at"`
	OccurredAt    time.Time            `json:"occurred_at"`
}
