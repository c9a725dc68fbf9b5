package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/backend/internal/application/services"
	"github.com/clinicdesk/backend/internal/domain/entities"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

type mockTaskService struct {
	mock.Mock
}

func (m *mockTaskService) Book(ctx context.Context, req services.BookingRequest) (*entities.Appointment, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *mockTaskService) Reschedule(ctx context.Context, taskID string, newStart time.Time) (*entities.Appointment, error) {
	args := m.Called(ctx, taskID, newStart)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *mockTaskService) Cancel(ctx context.Context, taskID string) error {
	args := m.Called(ctx, taskID)
	return args.Error(0)
}

func (m *mockTaskService) Confirm(ctx context.Context, taskID string) (*entities.Appointment, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Appointment), args.Error(1)
}

func (m *mockTaskService) MarkPayment(ctx context.Context, taskID string, status entities.PaymentStatus) (*entities.Task, error) {
	args := m.Called(ctx, taskID, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Task), args.Error(1)
}

func (m *mockTaskService) GetTask(ctx context.Context, taskID string) (*entities.Task, *entities.Appointment, error) {
	args := m.Called(ctx, taskID)
	var task *entities.Task
	var appointment *entities.Appointment
	if args.Get(0) != nil {
		task = args.Get(0).(*entities.Task)
	}
	if args.Get(1) != nil {
		appointment = args.Get(1).(*entities.Appointment)
	}
	return task, appointment, args.Error(2)
}

func sampleAppointment() *entities.Appointment {
	docID := "doc-1"
	start := time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)
	return &entities.Appointment{
		ID:         "apt-1",
		TaskID:     "task-1",
		PatientID:  "pat-1",
		DoctorID:   &docID,
		CategoryID: "cat-1",
		StartsAt:   start,
		EndsAt:     start.Add(30 * time.Minute),
		Status:     entities.AppointmentStatusScheduled,
	}
}

func TestTaskHandler_Book(t *testing.T) {
	t.Run("creates a booking", func(t *testing.T) {
		service := new(mockTaskService)
		handler := NewTaskHandler(service)

		service.On("Book", mock.Anything, mock.MatchedBy(func(req services.BookingRequest) bool {
			return req.PatientID == "pat-1" && req.CategoryID == "cat-1" &&
				req.StartsAt.Equal(time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC))
		})).Return(sampleAppointment(), nil)

		body := bytes.NewBufferString(`{"patient_id":"pat-1","category_id":"cat-1","starts_at":"2025-03-10T10:00:00Z"}`)
		req := httptest.NewRequest("POST", "/api/tasks", body)
		w := httptest.NewRecorder()

		handler.Book(w, req)

		require.Equal(t, http.StatusCreated, w.Code)

		var appointment entities.Appointment
		require.NoError(t, json.NewDecoder(w.Body).Decode(&appointment))
		assert.Equal(t, "apt-1", appointment.ID)
	})

	t.Run("rejects a malformed start time", func(t *testing.T) {
		service := new(mockTaskService)
		handler := NewTaskHandler(service)

		body := bytes.NewBufferString(`{"patient_id":"pat-1","category_id":"cat-1","starts_at":"10am tomorrow"}`)
		req := httptest.NewRequest("POST", "/api/tasks", body)
		w := httptest.NewRecorder()

		handler.Book(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		service.AssertNotCalled(t, "Book", mock.Anything, mock.Anything)
	})

	t.Run("maps a fully booked slot to 409", func(t *testing.T) {
		service := new(mockTaskService)
		handler := NewTaskHandler(service)

		service.On("Book", mock.Anything, mock.Anything).
			Return(nil, apperrors.NewConflictError("all doctors are booked for this time"))

		body := bytes.NewBufferString(`{"patient_id":"pat-1","category_id":"cat-1","starts_at":"2025-03-10T10:00:00Z"}`)
		req := httptest.NewRequest("POST", "/api/tasks", body)
		w := httptest.NewRecorder()

		handler.Book(w, req)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestTaskHandler_Reschedule(t *testing.T) {
	service := new(mockTaskService)
	handler := NewTaskHandler(service)

	newStart := time.Date(2025, 3, 10, 14, 0, 0, 0, time.UTC)
	service.On("Reschedule", mock.Anything, "task-1", newStart).Return(sampleAppointment(), nil)

	body := bytes.NewBufferString(`{"starts_at":"2025-03-10T14:00:00Z"}`)
	req := httptest.NewRequest("POST", "/api/tasks/task-1/reschedule", body)
	req.SetPathValue("id", "task-1")
	w := httptest.NewRecorder()

	handler.Reschedule(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestTaskHandler_Cancel(t *testing.T) {
	service := new(mockTaskService)
	handler := NewTaskHandler(service)

	service.On("Cancel", mock.Anything, "task-1").Return(nil)

	req := httptest.NewRequest("POST", "/api/tasks/task-1/cancel", nil)
	req.SetPathValue("id", "task-1")
	w := httptest.NewRecorder()

	handler.Cancel(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	service.AssertExpectations(t)
}

func TestTaskHandler_Confirm(t *testing.T) {
	service := new(mockTaskService)
	handler := NewTaskHandler(service)

	confirmed := sampleAppointment()
	confirmed.Status = entities.AppointmentStatusConfirmed
	service.On("Confirm", mock.Anything, "task-1").Return(confirmed, nil)

	req := httptest.NewRequest("POST", "/api/tasks/task-1/confirm", nil)
	req.SetPathValue("id", "task-1")
	w := httptest.NewRecorder()

	handler.Confirm(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var appointment entities.Appointment
	require.NoError(t, json.NewDecoder(w.Body).Decode(&appointment))
	assert.Equal(t, entities.AppointmentStatusConfirmed, appointment.Status)
}

func TestTaskHandler_UpdatePayment(t *testing.T) {
	t.Run("flips the payment status", func(t *testing.T) {
		service := new(mockTaskService)
		handler := NewTaskHandler(service)

		service.On("MarkPayment", mock.Anything, "task-1", entities.PaymentStatusPaid).
			Return(&entities.Task{ID: "task-1", PaymentStatus: entities.PaymentStatusPaid}, nil)

		body := bytes.NewBufferString(`{"status":"paid"}`)
		req := httptest.NewRequest("POST", "/api/tasks/task-1/payment", body)
		req.SetPathValue("id", "task-1")
		w := httptest.NewRecorder()

		handler.UpdatePayment(w, req)

		require.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("maps unknown statuses to 400", func(t *testing.T) {
		service := new(mockTaskService)
		handler := NewTaskHandler(service)

		service.On("MarkPayment", mock.Anything, "task-1", entities.PaymentStatus("gifted")).
			Return(nil, apperrors.NewValidationError("invalid payment status"))

		body := bytes.NewBufferString(`{"status":"gifted"}`)
		req := httptest.NewRequest("POST", "/api/tasks/task-1/payment", body)
		req.SetPathValue("id", "task-1")
		w := httptest.NewRecorder()

		handler.UpdatePayment(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestTaskHandler_Get(t *testing.T) {
	service := new(mockTaskService)
	handler := NewTaskHandler(service)

	service.On("GetTask", mock.Anything, "task-1").
		Return(&entities.Task{ID: "task-1", Status: entities.TaskStatusScheduled}, sampleAppointment(), nil)

	req := httptest.NewRequest("GET", "/api/tasks/task-1", nil)
	req.SetPathValue("id", "task-1")
	w := httptest.NewRecorder()

	handler.Get(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var response struct {
		Task        *entities.Task        `json:"task"`
		Appointment *entities.Appointment `json:"appointment"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "task-1", response.Task.ID)
	require.NotNil(t, response.Appointment)
	assert.Equal(t, "apt-1", response.Appointment.ID)
}
