package services

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/clinicdesk/backend/internal/domain/entities"
	"github.com/clinicdesk/backend/internal/domain/providers"
	"github.com/clinicdesk/backend/internal/domain/repositories"
	"github.com/clinicdesk/backend/internal/infrastructure/observability"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

// fullyBookedMessage is returned on capacity conflicts so callers can prompt
// the user to pick another time
const fullyBookedMessage = "all doctors are booked for this time, please choose another time"

// BookingRequest carries a patient's first booking of a category slot
type BookingRequest struct {
	PatientID  string    `json:"patient_id"`
	CategoryID string    `json:"category_id"`
	StartsAt   time.Time `json:"starts_at"`
	Notes      string    `json:"notes"`
}

// AllocationService owns the atomic reservation loop: given candidates
// already known to be working the requested interval, it attempts one
// capacity-checked unit of work per candidate until one commits or all are
// exhausted. Exhaustion is a legitimate "fully booked" outcome, not an
// infrastructure error.
type AllocationService struct {
	categories   repositories.CategoryRepository
	tasks        repositories.TaskRepository
	appointments repositories.AppointmentRepository
	availability *AvailabilityService
	selection    *SelectionService
	events       providers.EventBus
	metrics      *observability.Metrics
	lockWait     time.Duration
	now          func() time.Time
}

// NewAllocationService creates a new allocation service. events and metrics
// may be nil.
func NewAllocationService(
	categories repositories.CategoryRepository,
	tasks repositories.TaskRepository,
	appointments repositories.AppointmentRepository,
	availability *AvailabilityService,
	selection *SelectionService,
	events providers.EventBus,
	metrics *observability.Metrics,
	lockWait time.Duration,
) *AllocationService {
	return &AllocationService{
		categories:   categories,
		tasks:        tasks,
		appointments: appointments,
		availability: availability,
		selection:    selection,
		events:       events,
		metrics:      metrics,
		lockWait:     lockWait,
		now:          time.Now,
	}
}

// Book creates a task and its first appointment for the requested slot. The
// category's selection policy is deliberately not applied here: candidates
// are shuffled, and policy-driven assignment happens at the confirmation
// step when a task still lacks a doctor.
func (s *AllocationService) Book(ctx context.Context, req BookingRequest) (*entities.Appointment, error) {
	if req.PatientID == "" {
		return nil, apperrors.NewValidationError("patient id is required")
	}
	if req.CategoryID == "" {
		return nil, apperrors.NewValidationError("category id is required")
	}
	if req.StartsAt.IsZero() {
		return nil, apperrors.NewValidationError("start time is required")
	}

	category, err := s.categories.GetByID(ctx, req.CategoryID)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return nil, apperrors.NewValidationError("category is not active")
	}

	start := req.StartsAt.UTC()
	if start.Before(s.now().Add(minBookingLead)) {
		return nil, apperrors.NewValidationError("cannot book a slot in the past")
	}
	end := start.Add(category.SlotDuration())

	candidates, err := s.availability.WorkingDoctors(ctx, category, start, end)
	if err != nil {
		return nil, err
	}
	candidates = shuffled(candidates)

	attempt := repositories.ReservationAttempt{
		Mode:          repositories.ReservationModeCreate,
		AppointmentID: uuid.New().String(),
		TaskID:        uuid.New().String(),
		PatientID:     req.PatientID,
		CategoryID:    category.ID,
		StartsAt:      start,
		EndsAt:        end,
		Concurrency:   category.Concurrency,
		Notes:         req.Notes,
		LockWait:      s.lockWait,
	}

	appointment, err := s.runLoop(ctx, category, attempt, candidates)
	if err != nil {
		return nil, err
	}

	s.availability.InvalidateCategory(ctx, category.ID)
	s.publish(ctx, entities.AppointmentEventBooked, appointment)
	return appointment, nil
}

// Reschedule moves the task's existing appointment to a new time, rebinding
// the same row rather than creating a second one. The current doctor is
// tried first to minimize churn; the remaining working candidates follow in
// shuffled order.
func (s *AllocationService) Reschedule(ctx context.Context, taskID string, newStart time.Time) (*entities.Appointment, error) {
	if newStart.IsZero() {
		return nil, apperrors.NewValidationError("start time is required")
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsCancelled() {
		return nil, apperrors.NewValidationError("task is cancelled")
	}

	appointment, err := s.appointments.GetActiveByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	category, err := s.categories.GetByID(ctx, task.CategoryID)
	if err != nil {
		return nil, err
	}

	start := newStart.UTC()
	if start.Before(s.now().Add(minBookingLead)) {
		return nil, apperrors.NewValidationError("cannot book a slot in the past")
	}
	end := start.Add(category.SlotDuration())

	candidates, err := s.availability.WorkingDoctors(ctx, category, start, end)
	if err != nil {
		return nil, err
	}
	candidates = currentDoctorFirst(candidates, task.DoctorID)

	attempt := repositories.ReservationAttempt{
		Mode:                repositories.ReservationModeRebind,
		RebindAppointmentID: appointment.ID,
		TaskID:              task.ID,
		PatientID:           task.PatientID,
		CategoryID:          category.ID,
		StartsAt:            start,
		EndsAt:              end,
		Concurrency:         category.Concurrency,
		LockWait:            s.lockWait,
	}

	rebound, err := s.runLoop(ctx, category, attempt, candidates)
	if err != nil {
		return nil, err
	}

	s.availability.InvalidateCategory(ctx, category.ID)
	s.publish(ctx, entities.AppointmentEventRescheduled, rebound)
	return rebound, nil
}

// Cancel cancels the task and its active appointment in one transaction
func (s *AllocationService) Cancel(ctx context.Context, taskID string) error {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return err
	}
	if task.IsCancelled() {
		return apperrors.NewValidationError("task is already cancelled")
	}

	appointment, err := s.appointments.GetActiveByTask(ctx, taskID)
	if err != nil && !apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
		return err
	}

	if err := s.appointments.CancelWithTask(ctx, taskID); err != nil {
		return err
	}

	s.availability.InvalidateCategory(ctx, task.CategoryID)
	if appointment != nil {
		appointment.Status = entities.AppointmentStatusCancelled
		s.publish(ctx, entities.AppointmentEventCancelled, appointment)
	}
	return nil
}

// Confirm transitions the task's appointment to confirmed. When no doctor
// is bound yet, the category's selection policy picks one first and the
// appointment is rebound to the pick under the usual capacity check.
func (s *AllocationService) Confirm(ctx context.Context, taskID string) (*entities.Appointment, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsCancelled() {
		return nil, apperrors.NewValidationError("task is cancelled")
	}

	appointment, err := s.appointments.GetActiveByTask(ctx, taskID)
	if err != nil {
		return nil, err
	}

	if appointment.DoctorID == nil {
		appointment, err = s.assignDoctor(ctx, task, appointment)
		if err != nil {
			return nil, err
		}
	}

	if err := s.appointments.UpdateStatus(ctx, appointment.ID, entities.AppointmentStatusConfirmed); err != nil {
		return nil, err
	}
	appointment.Status = entities.AppointmentStatusConfirmed

	s.publish(ctx, entities.AppointmentEventConfirmed, appointment)
	return appointment, nil
}

// MarkPayment flips the task's payment status. A successful payment on a
// doctorless task additionally triggers a best-effort fallback assignment;
// its failure never fails the payment itself.
func (s *AllocationService) MarkPayment(ctx context.Context, taskID string, status entities.PaymentStatus) (*entities.Task, error) {
	switch status {
	case entities.PaymentStatusPaid, entities.PaymentStatusRefunded, entities.PaymentStatusFailed:
	default:
		return nil, apperrors.NewValidationError("invalid payment status")
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if task.IsCancelled() {
		return nil, apperrors.NewValidationError("task is cancelled")
	}

	if err := s.tasks.UpdatePaymentStatus(ctx, taskID, status); err != nil {
		return nil, err
	}
	task.PaymentStatus = status

	if status == entities.PaymentStatusPaid && task.DoctorID == nil {
		appointment, err := s.appointments.GetActiveByTask(ctx, taskID)
		if err == nil && appointment.DoctorID == nil {
			if _, err := s.assignDoctor(ctx, task, appointment); err != nil {
				observability.LoggerFromContext(ctx).Warn().Err(err).
					Str("task_id", taskID).
					Msg("fallback doctor assignment after payment failed")
			}
		}
	}

	return task, nil
}

// GetTask returns the task and its active appointment, if any
func (s *AllocationService) GetTask(ctx context.Context, taskID string) (*entities.Task, *entities.Appointment, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		return nil, nil, err
	}

	appointment, err := s.appointments.GetActiveByTask(ctx, taskID)
	if err != nil {
		if apperrors.IsType(err, apperrors.ErrorTypeNotFound) {
			return task, nil, nil
		}
		return nil, nil, err
	}

	return task, appointment, nil
}

// runLoop is the allocation transaction loop: one reservation attempt per
// candidate, advancing on contention, stopping on the first commit
func (s *AllocationService) runLoop(ctx context.Context, category *entities.Category, attempt repositories.ReservationAttempt, candidates []*entities.CategoryDoctorAssignment) (*entities.Appointment, error) {
	for _, candidate := range candidates {
		attempt.DoctorID = candidate.DoctorID

		appointment, err := s.appointments.AttemptReservation(ctx, attempt)
		if errors.Is(err, repositories.ErrSlotContended) {
			if s.metrics != nil {
				observability.RecordBookingAttempt(ctx, s.metrics, category.ID, true)
			}
			continue
		}
		if err != nil {
			return nil, err
		}

		if s.metrics != nil {
			observability.RecordBookingAttempt(ctx, s.metrics, category.ID, false)
		}
		return appointment, nil
	}

	if s.metrics != nil {
		observability.RecordBookingConflict(ctx, s.metrics, category.ID)
	}
	return nil, apperrors.NewConflictError(fullyBookedMessage)
}

// assignDoctor applies the category's selection policy to a doctorless task
// and rebinds its appointment to the pick, falling back over the remaining
// working candidates on contention
func (s *AllocationService) assignDoctor(ctx context.Context, task *entities.Task, appointment *entities.Appointment) (*entities.Appointment, error) {
	category, err := s.categories.GetByID(ctx, task.CategoryID)
	if err != nil {
		return nil, err
	}

	candidates, err := s.availability.WorkingDoctors(ctx, category, appointment.StartsAt, appointment.EndsAt)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewConflictError(fullyBookedMessage)
	}

	selected, err := s.selection.SelectDoctor(ctx, category.ID, category.SelectionAlgorithm, nil)
	if err != nil {
		return nil, err
	}

	var preferred *string
	if selected != nil {
		preferred = &selected.DoctorID
	}
	candidates = currentDoctorFirst(candidates, preferred)

	attempt := repositories.ReservationAttempt{
		Mode:                repositories.ReservationModeRebind,
		RebindAppointmentID: appointment.ID,
		TaskID:              task.ID,
		PatientID:           task.PatientID,
		CategoryID:          category.ID,
		StartsAt:            appointment.StartsAt,
		EndsAt:              appointment.EndsAt,
		Concurrency:         category.Concurrency,
		LockWait:            s.lockWait,
	}

	rebound, err := s.runLoop(ctx, category, attempt, candidates)
	if err != nil {
		return nil, err
	}

	s.availability.InvalidateCategory(ctx, category.ID)
	return rebound, nil
}

func (s *AllocationService) publish(ctx context.Context, eventType entities.AppointmentEventType, appointment *entities.Appointment) {
	if s.events == nil {
		return
	}

	event := &entities.AppointmentEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		TaskID:        appointment.TaskID,
		AppointmentID: appointment.ID,
		CategoryID:    appointment.CategoryID,
		DoctorID:      appointment.DoctorID,
		StartsAt:      appointment.StartsAt,
		OccurredAt:    s.now(),
	}

	if err := s.events.Publish(ctx, providers.EventChannelAppointments, event); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).
			Str("event_type", string(eventType)).
			Str("appointment_id", appointment.ID).
			Msg("failed to publish appointment event")
	}
}

// shuffled returns a shuffled copy, leaving the input order untouched
func shuffled(candidates []*entities.CategoryDoctorAssignment) []*entities.CategoryDoctorAssignment {
	out := make([]*entities.CategoryDoctorAssignment, len(candidates))
	copy(out, candidates)
	rand.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// currentDoctorFirst puts the given doctor at the head of the candidate
// list and shuffles the rest
func currentDoctorFirst(candidates []*entities.CategoryDoctorAssignment, doctorID *string) []*entities.CategoryDoctorAssignment {
	if doctorID == nil {
		return shuffled(candidates)
	}

	var current *entities.CategoryDoctorAssignment
	var rest []*entities.CategoryDoctorAssignment
	for _, candidate := range candidates {
		if candidate.DoctorID == *doctorID && current == nil {
			current = candidate
			continue
		}
		rest = append(rest, candidate)
	}

	rest = shuffled(rest)
	if current == nil {
		return rest
	}
	return append([]*entities.CategoryDoctorAssignment{current}, rest...)
}
