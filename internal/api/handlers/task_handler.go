package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/clinicdesk/backend/internal/application/services"
	"github.com/clinicdesk/backend/internal/domain/entities"
)

// TaskService defines the interface for booking and task lifecycle operations
type TaskService interface {
	Book(ctx context.Context, req services.BookingRequest) (*entities.Appointment, error)
	Reschedule(ctx context.Context, taskID string, newStart time.Time) (*entities.Appointment, error)
	Cancel(ctx context.Context, taskID string) error
	Confirm(ctx context.Context, taskID string) (*entities.Appointment, error)
	MarkPayment(ctx context.Context, taskID string, status entities.PaymentStatus) (*entities.Task, error)
	GetTask(ctx context.Context, taskID string) (*entities.Task, *entities.Appointment, error)
}

// TaskHandler handles task and appointment requests
type TaskHandler struct {
	service TaskService
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(service TaskService) *TaskHandler {
	return &TaskHandler{
		service: service,
	}
}

type bookRequest struct {
	PatientID  string `json:"patient_id"`
	CategoryID string `json:"category_id"`
	StartsAt   string `json:"starts_at"`
	Notes      string `json:"notes"`
}

// Book handles POST /api/tasks
func (h *TaskHandler) Book(w http.ResponseWriter, r *http.Request) {
	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid starts_at format (use RFC3339)")
		return
	}

	appointment, err := h.service.Book(r.Context(), services.BookingRequest{
		PatientID:  req.PatientID,
		CategoryID: req.CategoryID,
		StartsAt:   startsAt,
		Notes:      req.Notes,
	})
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusCreated, appointment)
}

// Get handles GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondWithError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	task, appointment, err := h.service.GetTask(r.Context(), taskID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"task":        task,
		"appointment": appointment,
	})
}

type rescheduleRequest struct {
	StartsAt string `json:"starts_at"`
}

// Reschedule handles POST /api/tasks/{id}/reschedule
func (h *TaskHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondWithError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	startsAt, err := time.Parse(time.RFC3339, req.StartsAt)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid starts_at format (use RFC3339)")
		return
	}

	appointment, err := h.service.Reschedule(r.Context(), taskID, startsAt)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}

// Cancel handles POST /api/tasks/{id}/cancel
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondWithError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	if err := h.service.Cancel(r.Context(), taskID); err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]string{
		"status": "cancelled",
	})
}

// Confirm handles POST /api/tasks/{id}/confirm
func (h *TaskHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondWithError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	appointment, err := h.service.Confirm(r.Context(), taskID)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, appointment)
}

type paymentRequest struct {
	Status entities.PaymentStatus `json:"status"`
}

// UpdatePayment handles POST /api/tasks/{id}/payment
func (h *TaskHandler) UpdatePayment(w http.ResponseWriter, r *http.Request) {
	taskID := r.PathValue("id")
	if taskID == "" {
		respondWithError(w, http.StatusBadRequest, "task ID is required")
		return
	}

	var req paymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	task, err := h.service.MarkPayment(r.Context(), taskID, req.Status)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, task)
}
