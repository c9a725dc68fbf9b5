package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/clinicdesk/backend/internal/domain/entities"
	"github.com/clinicdesk/backend/internal/domain/repositories"
	"github.com/clinicdesk/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

// TaskAdapter implements the TaskRepository interface
type TaskAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewTaskAdapter creates a new task adapter
func NewTaskAdapter(client *postgres.Client) repositories.TaskRepository {
	return &TaskAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetByID retrieves a task by ID
func (a *TaskAdapter) GetByID(ctx context.Context, id string) (*entities.Task, error) {
	query, args, err := a.db.Select(
		"id", "patient_id", "category_id", "doctor_id", "status",
		"payment_status", "notes", "created_at", "updated_at",
	).From("tasks").
		Where(goqu.Ex{"id": id}).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	task := &entities.Task{}
	var doctorID sql.NullString
	var notes sql.NullString

	err = a.client.DB().QueryRowContext(ctx, query, args...).Scan(
		&task.ID,
		&task.PatientID,
		&task.CategoryID,
		&doctorID,
		&task.Status,
		&task.PaymentStatus,
		&notes,
		&task.CreatedAt,
		&task.UpdatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("task with id %s not found", id))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get task", err)
	}

	if doctorID.Valid {
		task.DoctorID = &doctorID.String
	}
	task.Notes = notes.String

	return task, nil
}

// UpdatePaymentStatus flips the task's payment status
func (a *TaskAdapter) UpdatePaymentStatus(ctx context.Context, taskID string, status entities.PaymentStatus) error {
	query, args, err := a.db.Update("tasks").
		Set(goqu.Record{
			"payment_status": status,
			"updated_at":     time.Now(),
		}).
		Where(goqu.Ex{"id": taskID}).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update payment status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("task with id %s not found", taskID))
	}

	return nil
}
