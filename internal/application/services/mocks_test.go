package services

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/clinicdesk/backend/internal/domain/entities"
	"github.com/clinicdesk/backend/internal/domain/repositories"
)

type mockCategoryRepo struct {
	mock.Mock
}

func (m *mockCategoryRepo) GetByID(ctx context.Context, id string) (*entities.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Category), args.Error(1)
}

type mockAssignmentRepo struct {
	mock.Mock
}

func (m *mockAssignmentRepo) ListActiveByCategory(ctx context.Context, categoryID string) ([]*entities.CategoryDoctorAssignment, error) {
	args := m.Called(ctx, categoryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.CategoryDoctorAssignment), args.Error(1)
}

func (m *mockAssignmentRepo) TouchLastAssigned(ctx context.Context, assignmentID string, at time.Time) error {
	args := m.Called(ctx, assignmentID, at)
	return args.Error(0)
}

func (m *mockAssignmentRepo) IncrementRoundRobin(ctx context.Context, assignmentID string) error {
	args := m.Called(ctx, assignmentID)
	return args.Error(0)
}

func (m *mockAssignmentRepo) ResetRoundRobin(ctx context.Context, categoryID string) error {
	args := m.Called(ctx, categoryID)
	return args.Error(0)
}

type mockScheduleRepo struct {
	mock.Mock
}

func (m *mockScheduleRepo) GetSchedules(ctx context.Context, doctorIDs []string, from time.Time) (map[string]*entities.DoctorSchedule, error) {
	args := m.Called(ctx, doctorIDs, from)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]*entities.DoctorSchedule), args.Error(1)
}

type mockAppointmentRepo struct {
	mock.Mock
}

func (m *mockAppointmentRepo) GetActiveByTask(ctx context.Context, taskID string) (*entities.Appointment, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *mockAppointmentRepo) ListActiveByDoctors(ctx context.Context, doctorIDs []string, from, to time.Time) ([]*entities.Appointment, error) {
	args := m.Called(ctx, doctorIDs, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*entities.Appointment), args.Error(1)
}

func (m *mockAppointmentRepo) AttemptReservation(ctx context.Context, attempt repositories.ReservationAttempt) (*entities.Appointment, error) {
	args := m.Called(ctx, attempt)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *mockAppointmentRepo) UpdateStatus(ctx context.Context, appointmentID string, status entities.AppointmentStatus) error {
	args := m.Called(ctx, appointmentID, status)
	return args.Error(0)
}

func (m *mockAppointmentRepo) CancelWithTask(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

type mockTaskRepo struct {
	mock.Mock
}

func (m *mockTaskRepo) GetByID(ctx context.Context, id string) (*entities.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Task), args.Error(1)
}

func (m *mockTaskRepo) UpdatePaymentStatus(ctx context.Context, taskID string, status entities.PaymentStatus) error {
	args := m.Called(ctx, taskID, status)
	return args.Error(0)
}

type mockEventBus struct {
	mock.Mock
}

func (m *mockEventBus) Publish(ctx context.Context, channel string, event *entities.AppointmentEvent) error {
	args := m.Called(ctx, channel, event)
	return args.Error(0)
}

func (m *mockEventBus) Subscribe(ctx context.Context, channel string) (<-chan *entities.AppointmentEvent, error) {
	args := m.Called(ctx, channel)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(<-chan *entities.AppointmentEvent), args.Error(1)
}

func (m *mockEventBus) Unsubscribe(ctx context.Context, channel string) error {
	args := m.Called(ctx, channel)
	return args.Error(0)
}

func (m *mockEventBus) Close() error {
	args := m.Called()
	return args.Error(0)
}

func testDoctor(id, timezone string, online bool) *entities.Doctor {
	return &entities.Doctor{
		ID:       id,
		Timezone: timezone,
		Status:   entities.DoctorStatusActive,
		IsOnline: online,
	}
}

func testAssignment(id, categoryID, doctorID string, doctor *entities.Doctor) *entities.CategoryDoctorAssignment {
	return &entities.CategoryDoctorAssignment{
		ID:         id,
		CategoryID: categoryID,
		DoctorID:   doctorID,
		Doctor:     doctor,
	}
}

func weekShift(doctorID string, weekday time.Weekday, start, end string) entities.BusinessHourShift {
	return entities.BusinessHourShift{
		ID:        doctorID + "-shift",
		DoctorID:  doctorID,
		Weekday:   weekday,
		StartTime: start,
		EndTime:   end,
		Enabled:   true,
	}
}
