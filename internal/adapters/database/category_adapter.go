package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/clinicdesk/backend/internal/domain/entities"
	"github.com/clinicdesk/backend/internal/domain/repositories"
	"github.com/clinicdesk/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

// CategoryAdapter implements the CategoryRepository interface
type CategoryAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewCategoryAdapter creates a new category adapter
func NewCategoryAdapter(client *postgres.Client) repositories.CategoryRepository {
	return &CategoryAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a category by ID
func (a *CategoryAdapter) GetByID(ctx context.Context, id string) (*entities.Category, error) {
	query, args, err := a.db.Select(
		"id", "name", "duration_minutes", "buffer_minutes", "concurrency",
		"next_days", "selection_algorithm", "is_active",
		"created_at", "updated_at",
	).From("categories").
		Where(goqu.Ex{"id": id}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	category := &entities.Category{}
	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&category.ID,
		&category.Name,
		&category.DurationMinutes,
		&category.BufferMinutes,
		&category.Concurrency,
		&category.NextDays,
		&category.SelectionAlgorithm,
		&category.IsActive,
		&category.CreatedAt,
		&category.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("category with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get category", err)
	}

	return category, nil
}
