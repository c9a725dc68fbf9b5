package repositories

import (
	"context"
	"time"

	"github.com/clinicdesk/backend/internal/domain/entities"
)

// ScheduleRepository loads doctors' weekly shifts and time-off windows.
// Implementations must batch: at most one query for shifts and one for
// time-off regardless of how many doctors are asked for.
type ScheduleRepository interface {
	// GetSchedules returns the schedule of every requested doctor, grouped
	// by doctor id. Time-off windows ending before the from instant are
	// omitted. Doctors with no shifts still get an entry.
	GetSchedules(ctx context.Context, doctorIDs []string, from time.Time) (map[string]*entities.DoctorSchedule, error)
}
