package repositories

import (
	"context"

	"github.com/clinicdesk/backend/internal/domain/entities"
)

// CategoryRepository defines read access to service categories
type CategoryRepository interface {
	// GetByID retrieves a category by ID
	GetByID(ctx context.Context, id string) (*entities.Category, error)
}
