package database

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/lib/pq"

	"github.com/clinicdesk/backend/internal/domain/entities"
	"github.com/clinicdesk/backend/internal/domain/repositories"
	"github.com/clinicdesk/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

// pqLockNotAvailable is the Postgres error code raised when lock_timeout
// expires while waiting for the advisory lock
const pqLockNotAvailable = "55P03"

var activeStatuses = []entities.AppointmentStatus{
	entities.AppointmentStatusScheduled,
	entities.AppointmentStatusConfirmed,
}

// AppointmentAdapter implements the AppointmentRepository interface
type AppointmentAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewAppointmentAdapter creates a new appointment adapter
func NewAppointmentAdapter(client *postgres.Client) repositories.AppointmentRepository {
	return &AppointmentAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetActiveByTask returns the task's scheduled or confirmed appointment
func (a *AppointmentAdapter) GetActiveByTask(ctx context.Context, taskID string) (*entities.Appointment, error) {
	query, args, err := a.db.Select(
		"id", "task_id", "patient_id", "doctor_id", "category_id",
		"starts_at", "ends_at", "status", "created_at", "updated_at",
	).From("appointments").
		Where(
			goqu.Ex{"task_id": taskID},
			goqu.C("status").In(activeStatuses),
		).
		Limit(1).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	appointment, err := scanAppointment(a.client.DB().QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no active appointment for task %s", taskID))
	}
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get appointment", err)
	}

	return appointment, nil
}

// ListActiveByDoctors returns scheduled and confirmed appointments for the
// given doctors overlapping [from, to)
func (a *AppointmentAdapter) ListActiveByDoctors(ctx context.Context, doctorIDs []string, from, to time.Time) ([]*entities.Appointment, error) {
	if len(doctorIDs) == 0 {
		return nil, nil
	}

	query, args, err := a.db.Select(
		"id", "task_id", "patient_id", "doctor_id", "category_id",
		"starts_at", "ends_at", "status", "created_at", "updated_at",
	).From("appointments").
		Where(
			goqu.C("doctor_id").In(doctorIDs),
			goqu.C("status").In(activeStatuses),
			goqu.C("starts_at").Lt(to),
			goqu.C("ends_at").Gt(from),
		).
		Order(goqu.I("starts_at").Asc()).
		ToSQL()

	if err != nil {
		return nil, apperrors.NewInternalError("failed to build query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list appointments", err)
	}
	defer rows.Close()

	var appointments []*entities.Appointment
	for rows.Next() {
		appointment, err := scanAppointment(rows)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan appointment", err)
		}
		appointments = append(appointments, appointment)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate appointments", err)
	}

	return appointments, nil
}

// AttemptReservation runs one capacity-checked reservation attempt for a
// single candidate doctor inside its own transaction. The transaction-scoped
// advisory lock serializes concurrent attempts on the same (doctor, slot
// start) pair; unrelated pairs proceed in parallel. The overlap recount
// inside the lock is mandatory: the caller's pre-filter can be stale by the
// time the lock is acquired.
func (a *AppointmentAdapter) AttemptReservation(ctx context.Context, attempt repositories.ReservationAttempt) (*entities.Appointment, error) {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	if attempt.LockWait > 0 {
		setTimeout := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", attempt.LockWait.Milliseconds())
		if _, err := tx.ExecContext(ctx, setTimeout); err != nil {
			return nil, apperrors.NewInternalError("failed to set lock timeout", err)
		}
	}

	doctorKey, slotKey := advisoryLockKeys(attempt.DoctorID, attempt.StartsAt)
	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1, $2)", doctorKey, slotKey); err != nil {
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqLockNotAvailable {
			// A timed-out wait counts as a loss for this candidate only.
			return nil, repositories.ErrSlotContended
		}
		return nil, apperrors.NewInternalError("failed to acquire slot lock", err)
	}

	overlaps, err := a.countOverlaps(ctx, tx, attempt)
	if err != nil {
		return nil, err
	}
	if overlaps >= attempt.Concurrency {
		return nil, repositories.ErrSlotContended
	}

	now := time.Now()
	var appointment *entities.Appointment

	switch attempt.Mode {
	case repositories.ReservationModeCreate:
		appointment, err = a.insertTaskAndAppointment(ctx, tx, attempt, now)
	case repositories.ReservationModeRebind:
		appointment, err = a.rebindAppointment(ctx, tx, attempt, now)
	default:
		return nil, apperrors.NewInternalError(fmt.Sprintf("unknown reservation mode %q", attempt.Mode), nil)
	}
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.NewInternalError("failed to commit reservation", err)
	}

	return appointment, nil
}

// UpdateStatus transitions an appointment's status
func (a *AppointmentAdapter) UpdateStatus(ctx context.Context, appointmentID string, status entities.AppointmentStatus) error {
	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"status":     status,
			"updated_at": time.Now(),
		}).
		Where(goqu.Ex{"id": appointmentID}).
		ToSQL()

	if err != nil {
		return apperrors.NewInternalError("failed to build update query", err)
	}

	result, err := a.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to update appointment status", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}

	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", appointmentID))
	}

	return nil
}

// CancelWithTask cancels the task's active appointment and the task itself
// in one transaction
func (a *AppointmentAdapter) CancelWithTask(ctx context.Context, taskID string) error {
	tx, err := a.client.BeginTx(ctx)
	if err != nil {
		return apperrors.NewInternalError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()

	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"status":     entities.AppointmentStatusCancelled,
			"updated_at": now,
		}).
		Where(
			goqu.Ex{"task_id": taskID},
			goqu.C("status").In(activeStatuses),
		).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build cancel query", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return apperrors.NewInternalError("failed to cancel appointment", err)
	}

	query, args, err = a.db.Update("tasks").
		Set(goqu.Record{
			"status":     entities.TaskStatusCancelled,
			"updated_at": now,
		}).
		Where(goqu.Ex{"id": taskID}).
		ToSQL()
	if err != nil {
		return apperrors.NewInternalError("failed to build cancel query", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewInternalError("failed to cancel task", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return apperrors.NewNotFoundError(fmt.Sprintf("task with id %s not found", taskID))
	}

	if err := tx.Commit(); err != nil {
		return apperrors.NewInternalError("failed to commit cancellation", err)
	}

	return nil
}

func (a *AppointmentAdapter) countOverlaps(ctx context.Context, tx *sql.Tx, attempt repositories.ReservationAttempt) (int, error) {
	ds := a.db.From("appointments").
		Select(goqu.COUNT("*")).
		Where(
			goqu.Ex{"doctor_id": attempt.DoctorID},
			goqu.C("status").In(activeStatuses),
			goqu.C("starts_at").Lt(attempt.EndsAt),
			goqu.C("ends_at").Gt(attempt.StartsAt),
		)

	if attempt.Mode == repositories.ReservationModeRebind {
		ds = ds.Where(goqu.C("id").Neq(attempt.RebindAppointmentID))
	}

	query, args, err := ds.ToSQL()
	if err != nil {
		return 0, apperrors.NewInternalError("failed to build overlap query", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, apperrors.NewInternalError("failed to count overlapping appointments", err)
	}

	return count, nil
}

func (a *AppointmentAdapter) insertTaskAndAppointment(ctx context.Context, tx *sql.Tx, attempt repositories.ReservationAttempt, now time.Time) (*entities.Appointment, error) {
	query, args, err := a.db.Insert("tasks").Rows(goqu.Record{
		"id":             attempt.TaskID,
		"patient_id":     attempt.PatientID,
		"category_id":    attempt.CategoryID,
		"doctor_id":      attempt.DoctorID,
		"status":         entities.TaskStatusScheduled,
		"payment_status": entities.PaymentStatusUnpaid,
		"notes":          attempt.Notes,
		"created_at":     now,
		"updated_at":     now,
	}).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build task insert", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to create task", err)
	}

	query, args, err = a.db.Insert("appointments").Rows(goqu.Record{
		"id":          attempt.AppointmentID,
		"task_id":     attempt.TaskID,
		"patient_id":  attempt.PatientID,
		"doctor_id":   attempt.DoctorID,
		"category_id": attempt.CategoryID,
		"starts_at":   attempt.StartsAt,
		"ends_at":     attempt.EndsAt,
		"status":      entities.AppointmentStatusScheduled,
		"created_at":  now,
		"updated_at":  now,
	}).ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build appointment insert", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to create appointment", err)
	}

	doctorID := attempt.DoctorID
	return &entities.Appointment{
		ID:         attempt.AppointmentID,
		TaskID:     attempt.TaskID,
		PatientID:  attempt.PatientID,
		DoctorID:   &doctorID,
		CategoryID: attempt.CategoryID,
		StartsAt:   attempt.StartsAt,
		EndsAt:     attempt.EndsAt,
		Status:     entities.AppointmentStatusScheduled,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

func (a *AppointmentAdapter) rebindAppointment(ctx context.Context, tx *sql.Tx, attempt repositories.ReservationAttempt, now time.Time) (*entities.Appointment, error) {
	query, args, err := a.db.Update("appointments").
		Set(goqu.Record{
			"doctor_id":  attempt.DoctorID,
			"starts_at":  attempt.StartsAt,
			"ends_at":    attempt.EndsAt,
			"updated_at": now,
		}).
		Where(
			goqu.Ex{"id": attempt.RebindAppointmentID},
			goqu.C("status").In(activeStatuses),
		).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build appointment update", err)
	}

	result, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to rebind appointment", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to get rows affected", err)
	}
	if rowsAffected == 0 {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("appointment with id %s not found", attempt.RebindAppointmentID))
	}

	query, args, err = a.db.Update("tasks").
		Set(goqu.Record{
			"doctor_id":  attempt.DoctorID,
			"status":     entities.TaskStatusScheduled,
			"updated_at": now,
		}).
		Where(goqu.Ex{"id": attempt.TaskID}).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build task update", err)
	}

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, apperrors.NewInternalError("failed to update task", err)
	}

	doctorID := attempt.DoctorID
	return &entities.Appointment{
		ID:         attempt.RebindAppointmentID,
		TaskID:     attempt.TaskID,
		PatientID:  attempt.PatientID,
		DoctorID:   &doctorID,
		CategoryID: attempt.CategoryID,
		StartsAt:   attempt.StartsAt,
		EndsAt:     attempt.EndsAt,
		Status:     entities.AppointmentStatusScheduled,
		UpdatedAt:  now,
	}, nil
}

// advisoryLockKeys derives the two int32 keys for pg_advisory_xact_lock from
// the doctor id and the slot start instant. Truncating the unix timestamp to
// 32 bits is fine for lock identity: two concurrent bookings for the same
// doctor and instant always derive the same pair.
func advisoryLockKeys(doctorID string, slotStart time.Time) (int32, int32) {
	h := fnv.New32a()
	h.Write([]byte(doctorID))
	return int32(h.Sum32()), int32(slotStart.Unix())
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanAppointment(row rowScanner) (*entities.Appointment, error) {
	appointment := &entities.Appointment{}
	var doctorID sql.NullString

	err := row.Scan(
		&appointment.ID,
		&appointment.TaskID,
		&appointment.PatientID,
		&doctorID,
		&appointment.CategoryID,
		&appointment.StartsAt,
		&appointment.EndsAt,
		&appointment.Status,
		&appointment.CreatedAt,
		&appointment.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if doctorID.Valid {
		appointment.DoctorID = &doctorID.String
	}

	return appointment, nil
}
