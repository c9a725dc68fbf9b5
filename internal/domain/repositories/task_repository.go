package repositories

import (
	"context"

	"github.com/clinicdesk/backend/internal/domain/entities"
)

// TaskRepository defines access to patient service requests
type TaskRepository interface {
	// GetByID retrieves a task by ID
	GetByID(ctx context.Context, id string) (*entities.Task, error)

	// UpdatePaymentStatus flips the task's payment status
	UpdatePaymentStatus(ctx context.Context, taskID string, status entities.PaymentStatus) error
}
