package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/clinicdesk/backend/internal/domain/entities"
	"github.com/clinicdesk/backend/internal/domain/repositories"
	"github.com/clinicdesk/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

// AssignmentAdapter implements the AssignmentRepository interface
type AssignmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAssignmentAdapter creates a new assignment adapter
func NewAssignmentAdapter(client *postgres.Client) repositories.AssignmentRepository {
	return &AssignmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// ListActiveByCategory returns the category's assignments whose doctor is
// active, doctor row included, ordered by priority then assignment age
func (a *AssignmentAdapter) ListActiveByCategory(ctx context.Context, categoryID string) ([]*entities.CategoryDoctorAssignment, error) {
	query, args, err := a.db.From(goqu.T("category_doctor_assignments").As("cda")).
		Select(
			"cda.id", "cda.category_id", "cda.doctor_id", "cda.priority",
			"cda.weight", "cda.last_assigned_at", "cda.round_robin_counter",
			"cda.created_at",
			"d.name", "d.timezone", "d.status", "d.is_online",
		).
		Join(goqu.T("doctors").As("d"), goqu.On(goqu.I("cda.doctor_id").Eq(goqu.I("d.id")))).
		Where(goqu.Ex{
			"cda.category_id": categoryID,
			"d.status":        entities.DoctorStatusActive,
		}).
		Order(goqu.I("cda.priority").Asc(), goqu.I("cda.created_at").Asc()).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build assignments query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list assignments", err)
	}
	defer rows.Close()

	var assignments []*entities.CategoryDoctorAssignment
	for rows.Next() {
		assignment := &entities.CategoryDoctorAssignment{Doctor: &entities.Doctor{}}
		var lastAssignedAt sql.NullTime

		err := rows.Scan(
			&assignment.ID,
			&assignment.CategoryID,
			&assignment.DoctorID,
			&assignment.Priority,
			&assignment.Weight,
			&lastAssignedAt,
			&assignment.RoundRobinCounter,
			&assignment.CreatedAt,
			&assignment.Doctor.Name,
			&assignment.Doctor.Timezone,
			&assignment.Doctor.Status,
			&assignment.Doctor.IsOnline,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan assignment", err)
		}

		assignment.Doctor.ID = assignment.DoctorID
		if lastAssignedAt.Valid {
			t := lastAssignedAt.Time
			assignment.LastAssignedAt = &t
		}

		assignments = append(assignments, assignment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate assignments", err)
	}

	return assignments, nil
}

// TouchLastAssigned records that the assignment was just picked
func (a *AssignmentAdapter) TouchLastAssigned(ctx context.Context, assignmentID string, at time.Time) error {
	query, args, err := a.db.Update("category_doctor_assignments").
		Set(goqu.Record{"last_assigned_at": at}).
		Where(goqu.Ex{"id": assignmentID}).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to touch last assigned", err)
	}

	return nil
}

// IncrementRoundRobin bumps the assignment's counter in a single atomic
// write so concurrent selections never lose an update
func (a *AssignmentAdapter) IncrementRoundRobin(ctx context.Context, assignmentID string) error {
	query, args, err := a.db.Update("category_doctor_assignments").
		Set(goqu.Record{"round_robin_counter": goqu.L("round_robin_counter + 1")}).
		Where(goqu.Ex{"id": assignmentID}).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to increment round robin counter", err)
	}

	return nil
}

// ResetRoundRobin zeroes every counter in the category
func (a *AssignmentAdapter) ResetRoundRobin(ctx context.Context, categoryID string) error {
	query, args, err := a.db.Update("category_doctor_assignments").
		Set(goqu.Record{"round_robin_counter": 0}).
		Where(goqu.Ex{"category_id": categoryID}).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	if _, err := a.client.DB().ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to reset round robin counters", err)
	}

	return nil
}
