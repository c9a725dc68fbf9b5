package database

import (
	"context"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"

	"github.com/clinicdesk/backend/internal/domain/entities"
	"github.com/clinicdesk/backend/internal/domain/repositories"
	"github.com/clinicdesk/backend/internal/infrastructure/clients/postgres"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

// ScheduleAdapter implements the ScheduleRepository interface
type ScheduleAdapter struct {
	client *postgres.Client
	db     *goqu.Database
}

// NewScheduleAdapter creates a new schedule adapter
func NewScheduleAdapter(client *postgres.Client) repositories.ScheduleRepository {
	return &ScheduleAdapter{
		client: client,
		db:     goqu.New("postgres", client.DB()),
	}
}

// GetSchedules loads shifts and future time-off for the given doctors in two
// batched queries, grouped by doctor id. Every requested doctor gets an
// entry even when it has no shifts.
func (a *ScheduleAdapter) GetSchedules(ctx context.Context, doctorIDs []string, from time.Time) (map[string]*entities.DoctorSchedule, error) {
	schedules := make(map[string]*entities.DoctorSchedule, len(doctorIDs))
	if len(doctorIDs) == 0 {
		return schedules, nil
	}
	for _, id := range doctorIDs {
		schedules[id] = &entities.DoctorSchedule{DoctorID: id}
	}

	query, args, err := a.db.Select(
		"id", "doctor_id", "weekday", "start_time", "end_time", "enabled",
	).From("business_hour_shifts").
		Where(
			goqu.C("doctor_id").In(doctorIDs),
			goqu.Ex{"enabled": true},
		).
		Order(goqu.I("doctor_id").Asc(), goqu.I("weekday").Asc(), goqu.I("start_time").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build shifts query", err)
	}

	rows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list shifts", err)
	}
	defer rows.Close()

	for rows.Next() {
		var shift entities.BusinessHourShift
		var weekday int

		err := rows.Scan(
			&shift.ID,
			&shift.DoctorID,
			&weekday,
			&shift.StartTime,
			&shift.EndTime,
			&shift.Enabled,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan shift", err)
		}
		shift.Weekday = time.Weekday(weekday)

		if schedule, ok := schedules[shift.DoctorID]; ok {
			schedule.Shifts = append(schedule.Shifts, shift)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate shifts", err)
	}

	query, args, err = a.db.Select(
		"id", "doctor_id", "starts_at", "ends_at", "reason",
	).From("time_off").
		Where(
			goqu.C("doctor_id").In(doctorIDs),
			goqu.C("ends_at").Gt(from),
		).
		Order(goqu.I("doctor_id").Asc(), goqu.I("starts_at").Asc()).
		ToSQL()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build time off query", err)
	}

	offRows, err := a.client.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to list time off", err)
	}
	defer offRows.Close()

	for offRows.Next() {
		var off entities.TimeOff

		err := offRows.Scan(
			&off.ID,
			&off.DoctorID,
			&off.StartsAt,
			&off.EndsAt,
			&off.Reason,
		)
		if err != nil {
			return nil, apperrors.NewInternalError("failed to scan time off", err)
		}

		if schedule, ok := schedules[off.DoctorID]; ok {
			schedule.TimeOff = append(schedule.TimeOff, off)
		}
	}
	if err := offRows.Err(); err != nil {
		return nil, apperrors.NewInternalError("failed to iterate time off", err)
	}

	return schedules, nil
}
