package routes

import (
	"net/http"

	"github.com/clinicdesk/backend/internal/api/handlers"
	"github.com/clinicdesk/backend/internal/api/middleware"
	"github.com/clinicdesk/backend/internal/infrastructure/observability"
)

// Router holds all route handlers
type Router struct {
	mux *http.ServeMux

	availabilityHandler *handlers.AvailabilityHandler
	taskHandler         *handlers.TaskHandler

	metrics *observability.Metrics
}

// NewRouter creates a new router
func NewRouter(
	availabilityHandler *handlers.AvailabilityHandler,
	taskHandler *handlers.TaskHandler,
	metrics *observability.Metrics,
) *Router {
	return &Router{
		mux:                 http.NewServeMux(),
		availabilityHandler: availabilityHandler,
		taskHandler:         taskHandler,
		metrics:             metrics,
	}
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes() http.Handler {
	r.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			return
		}
	})

	// Availability endpoints
	r.mux.HandleFunc("GET /api/categories/{id}/days", r.availabilityHandler.GetDays)
	r.mux.HandleFunc("GET /api/categories/{id}/slots", r.availabilityHandler.GetSlots)

	// Task and appointment endpoints
	r.mux.HandleFunc("POST /api/tasks", r.taskHandler.Book)
	r.mux.HandleFunc("GET /api/tasks/{id}", r.taskHandler.Get)
	r.mux.HandleFunc("POST /api/tasks/{id}/reschedule", r.taskHandler.Reschedule)
	r.mux.HandleFunc("POST /api/tasks/{id}/cancel", r.taskHandler.Cancel)
	r.mux.HandleFunc("POST /api/tasks/{id}/confirm", r.taskHandler.Confirm)
	r.mux.HandleFunc("POST /api/tasks/{id}/payment", r.taskHandler.UpdatePayment)

	// Apply middleware in reverse order (last middleware wraps first).
	// CORS is outermost so error responses also get CORS headers.
	var handler http.Handler = r.mux
	handler = middleware.LoggingMiddleware(handler)
	if r.metrics != nil {
		handler = middleware.ObservabilityMiddleware(r.metrics)(handler)
	}
	handler = middleware.CORSMiddleware(handler)

	return handler
}
