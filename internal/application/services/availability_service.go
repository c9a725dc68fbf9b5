package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/clinicdesk/backend/internal/domain/entities"
	"github.com/clinicdesk/backend/internal/domain/providers"
	"github.com/clinicdesk/backend/internal/domain/repositories"
	"github.com/clinicdesk/backend/internal/infrastructure/observability"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

const (
	dayCacheKeyPrefix  = "availability:days:"
	slotCacheKeyPrefix = "availability:slots:"

	// minBookingLead keeps the current instant and the immediate past out
	// of the slot matrix
	minBookingLead = time.Minute
)

// AvailabilityService computes day-level and slot-level availability for a
// category in the patient's timezone. The day scan is a cheap advisory
// gate; the slot matrix is the authoritative signal.
type AvailabilityService struct {
	categories   repositories.CategoryRepository
	assignments  repositories.AssignmentRepository
	schedules    repositories.ScheduleRepository
	appointments repositories.AppointmentRepository
	cache        providers.CacheProvider
	metrics      *observability.Metrics
	cacheTTL     time.Duration
	now          func() time.Time
}

// NewAvailabilityService creates a new availability service. cache and
// metrics may be nil.
func NewAvailabilityService(
	categories repositories.CategoryRepository,
	assignments repositories.AssignmentRepository,
	schedules repositories.ScheduleRepository,
	appointments repositories.AppointmentRepository,
	cache providers.CacheProvider,
	metrics *observability.Metrics,
	cacheTTL time.Duration,
) *AvailabilityService {
	return &AvailabilityService{
		categories:   categories,
		assignments:  assignments,
		schedules:    schedules,
		appointments: appointments,
		cache:        cache,
		metrics:      metrics,
		cacheTTL:     cacheTTL,
		now:          time.Now,
	}
}

// ComputeDayAvailability flags each of the category's next days as open or
// closed in the patient's local calendar. A day is open when any eligible
// doctor point-matches a shift at either day boundary and has no time off at
// that instant. This can overreport: a flagged day may still have no
// bookable slot once capacity is considered.
func (s *AvailabilityService) ComputeDayAvailability(ctx context.Context, categoryID, patientTZ string) ([]entities.DayAvailability, error) {
	if categoryID == "" {
		return nil, apperrors.NewValidationError("category id is required")
	}
	loc, err := time.LoadLocation(patientTZ)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid timezone %q", patientTZ))
	}

	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return nil, apperrors.NewValidationError("category is not active")
	}

	now := s.now()
	today := now.In(loc)
	todayStart := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	cacheKey := fmt.Sprintf("%s%s:%s:%s", dayCacheKeyPrefix, categoryID, patientTZ, todayStart.Format("2006-01-02"))
	var cached []entities.DayAvailability
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	assignments, err := s.assignments.ListActiveByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	schedules, err := s.loadSchedules(ctx, assignments, now)
	if err != nil {
		return nil, err
	}

	days := make([]entities.DayAvailability, 0, category.NextDays)
	for i := 0; i < category.NextDays; i++ {
		dayStart := todayStart.AddDate(0, 0, i)
		dayEnd := dayStart.AddDate(0, 0, 1).Add(-time.Second)

		available := false
		for _, assignment := range assignments {
			schedule := schedules[assignment.DoctorID]
			if schedule == nil {
				continue
			}
			docLoc := assignment.Doctor.Location()
			if s.pointAvailable(schedule, dayStart, docLoc) || s.pointAvailable(schedule, dayEnd, docLoc) {
				available = true
				break
			}
		}

		days = append(days, entities.DayAvailability{
			Date:        dayStart.Format("2006-01-02"),
			Label:       dayLabel(i, dayStart),
			IsAvailable: available,
		})
	}

	s.cacheSet(ctx, cacheKey, days)
	return days, nil
}

// ComputeSlotAvailability generates the candidate slots for one patient-local
// calendar day and marks each one bookable or not. A slot is bookable when at
// least one eligible doctor is in shift for the whole slot, not on time off,
// and under the category's concurrency cap.
func (s *AvailabilityService) ComputeSlotAvailability(ctx context.Context, categoryID, date, patientTZ string) ([]entities.SlotAvailability, error) {
	if categoryID == "" {
		return nil, apperrors.NewValidationError("category id is required")
	}
	loc, err := time.LoadLocation(patientTZ)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid timezone %q", patientTZ))
	}
	dayStart, err := time.ParseInLocation("2006-01-02", date, loc)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", date))
	}

	category, err := s.categories.GetByID(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if !category.IsActive {
		return nil, apperrors.NewValidationError("category is not active")
	}
	if category.DurationMinutes <= 0 {
		return nil, apperrors.NewValidationError("category has no slot duration configured")
	}

	cacheKey := fmt.Sprintf("%s%s:%s:%s", slotCacheKeyPrefix, categoryID, date, patientTZ)
	var cached []entities.SlotAvailability
	if s.cacheGet(ctx, cacheKey, &cached) {
		return cached, nil
	}

	started := s.now()
	dayEnd := dayStart.AddDate(0, 0, 1)

	assignments, err := s.assignments.ListActiveByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	schedules, err := s.loadSchedules(ctx, assignments, started)
	if err != nil {
		return nil, err
	}

	// One widened fetch per day catches appointments that cross midnight in
	// any of the involved timezones.
	byDoctor, err := s.appointmentsByDoctor(ctx, assignments,
		dayStart.UTC().Add(-24*time.Hour), dayEnd.UTC().Add(24*time.Hour))
	if err != nil {
		return nil, err
	}

	cutoff := started.Add(minBookingLead)
	var slots []entities.SlotAvailability

	for slotStart := dayStart; ; slotStart = slotStart.Add(category.SlotStep()) {
		slotEnd := slotStart.Add(category.SlotDuration())
		if slotEnd.After(dayEnd) {
			break
		}
		if slotStart.Before(cutoff) {
			continue
		}

		available := false
		for _, assignment := range assignments {
			schedule := schedules[assignment.DoctorID]
			if schedule == nil {
				continue
			}
			if !schedule.CoversInterval(slotStart, slotEnd, assignment.Doctor.Location()) {
				continue
			}
			if countOverlaps(byDoctor[assignment.DoctorID], slotStart, slotEnd) < category.Concurrency {
				available = true
				break
			}
		}

		slots = append(slots, entities.SlotAvailability{
			Start:       slotStart.UTC(),
			End:         slotEnd.UTC(),
			LocalTime:   slotStart.In(loc).Format("15:04"),
			IsAvailable: available,
		})
	}

	sort.Slice(slots, func(i, j int) bool {
		return slots[i].LocalTime < slots[j].LocalTime
	})

	if s.metrics != nil {
		observability.RecordSlotScan(ctx, s.metrics, categoryID, time.Since(started))
	}

	s.cacheSet(ctx, cacheKey, slots)
	return slots, nil
}

// WorkingDoctors returns the category's assignments whose doctor covers the
// whole [start, end) interval. This is the advisory pre-filter for the
// allocation loop; capacity is rechecked under the reservation lock.
func (s *AvailabilityService) WorkingDoctors(ctx context.Context, category *entities.Category, start, end time.Time) ([]*entities.CategoryDoctorAssignment, error) {
	assignments, err := s.assignments.ListActiveByCategory(ctx, category.ID)
	if err != nil {
		return nil, err
	}

	schedules, err := s.loadSchedules(ctx, assignments, s.now())
	if err != nil {
		return nil, err
	}

	var working []*entities.CategoryDoctorAssignment
	for _, assignment := range assignments {
		schedule := schedules[assignment.DoctorID]
		if schedule == nil {
			continue
		}
		if schedule.CoversInterval(start, end, assignment.Doctor.Location()) {
			working = append(working, assignment)
		}
	}

	return working, nil
}

// InvalidateCategory drops all cached availability for the category after a
// booking, reschedule or cancellation changes the picture
func (s *AvailabilityService) InvalidateCategory(ctx context.Context, categoryID string) {
	if s.cache == nil {
		return
	}
	for _, prefix := range []string{dayCacheKeyPrefix, slotCacheKeyPrefix} {
		if err := s.cache.DeleteByPrefix(ctx, prefix+categoryID+":"); err != nil {
			observability.LoggerFromContext(ctx).Warn().Err(err).
				Str("category_id", categoryID).
				Msg("failed to invalidate availability cache")
		}
	}
}

func (s *AvailabilityService) loadSchedules(ctx context.Context, assignments []*entities.CategoryDoctorAssignment, from time.Time) (map[string]*entities.DoctorSchedule, error) {
	doctorIDs := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		doctorIDs = append(doctorIDs, assignment.DoctorID)
	}
	return s.schedules.GetSchedules(ctx, doctorIDs, from)
}

func (s *AvailabilityService) appointmentsByDoctor(ctx context.Context, assignments []*entities.CategoryDoctorAssignment, from, to time.Time) (map[string][]*entities.Appointment, error) {
	doctorIDs := make([]string, 0, len(assignments))
	for _, assignment := range assignments {
		doctorIDs = append(doctorIDs, assignment.DoctorID)
	}

	appointments, err := s.appointments.ListActiveByDoctors(ctx, doctorIDs, from, to)
	if err != nil {
		return nil, err
	}

	byDoctor := make(map[string][]*entities.Appointment, len(doctorIDs))
	for _, appointment := range appointments {
		if appointment.DoctorID == nil {
			continue
		}
		byDoctor[*appointment.DoctorID] = append(byDoctor[*appointment.DoctorID], appointment)
	}
	return byDoctor, nil
}

func (s *AvailabilityService) pointAvailable(schedule *entities.DoctorSchedule, at time.Time, loc *time.Location) bool {
	return schedule.WorkingAt(at, loc) && !schedule.OnTimeOffAt(at)
}

func (s *AvailabilityService) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if s.metrics != nil {
			observability.RecordCacheMiss(ctx, s.metrics, key)
		}
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false
	}
	if s.metrics != nil {
		observability.RecordCacheHit(ctx, s.metrics, key)
	}
	return true
}

func (s *AvailabilityService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	data, err := json.Marshal(value)
	if err != nil {
		return
	}
	ttl := int(s.cacheTTL.Seconds())
	if ttl <= 0 {
		ttl = 30
	}
	if err := s.cache.Set(ctx, key, data, ttl); err != nil {
		observability.LoggerFromContext(ctx).Warn().Err(err).Str("key", key).Msg("failed to cache availability")
	}
}

func countOverlaps(appointments []*entities.Appointment, start, end time.Time) int {
	count := 0
	for _, appointment := range appointments {
		if appointment.Overlaps(start, end) {
			count++
		}
	}
	return count
}

func dayLabel(offset int, day time.Time) string {
	switch offset {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return day.Format("Mon")
	}
}
