package handlers

import (
	"context"
	"net/http"

	"github.com/clinicdesk/backend/internal/domain/entities"
)

// AvailabilityService defines the interface for availability computation
type AvailabilityService interface {
	ComputeDayAvailability(ctx context.Context, categoryID, patientTZ string) ([]entities.DayAvailability, error)
	ComputeSlotAvailability(ctx context.Context, categoryID, date, patientTZ string) ([]entities.SlotAvailability, error)
}

// AvailabilityHandler handles availability lookups
type AvailabilityHandler struct {
	service AvailabilityService
}

// NewAvailabilityHandler creates a new availability handler
func NewAvailabilityHandler(service AvailabilityService) *AvailabilityHandler {
	return &AvailabilityHandler{
		service: service,
	}
}

// GetDays handles GET /api/categories/{id}/days
func (h *AvailabilityHandler) GetDays(w http.ResponseWriter, r *http.Request) {
	categoryID := r.PathValue("id")
	if categoryID == "" {
		respondWithError(w, http.StatusBadRequest, "category ID is required")
		return
	}

	tz := r.URL.Query().Get("tz")
	if tz == "" {
		tz = "UTC"
	}

	days, err := h.service.ComputeDayAvailability(r.Context(), categoryID, tz)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"days": days,
	})
}

// GetSlots handles GET /api/categories/{id}/slots
func (h *AvailabilityHandler) GetSlots(w http.ResponseWriter, r *http.Request) {
	categoryID := r.PathValue("id")
	if categoryID == "" {
		respondWithError(w, http.StatusBadRequest, "category ID is required")
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		respondWithError(w, http.StatusBadRequest, "date query parameter is required")
		return
	}

	tz := r.URL.Query().Get("tz")
	if tz == "" {
		tz = "UTC"
	}

	slots, err := h.service.ComputeSlotAvailability(r.Context(), categoryID, date, tz)
	if err != nil {
		respondWithAppError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slots,
	})
}
