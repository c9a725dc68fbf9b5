package entities

import (
	"strconv"
	"strings"
	"time"
)

// BusinessHourShift is one recurring weekly working interval for a doctor.
// Times are clock times in the doctor's own timezone, formatted "HH:MM".
// An end time numerically before the start time means the shift runs past
// midnight into the next calendar day.
type BusinessHourShift struct {
	ID        string       `json:"id" db:"id"`
	DoctorID  string       `json:"doctor_id" db:"doctor_id"`
	Weekday   time.Weekday `json:"weekday" db:"weekday"`
	StartTime string       `json:"start_time" db:"start_time"`
	EndTime   string       `json:"end_time" db:"end_time"`
	Enabled   bool         `json:"enabled" db:"enabled"`
}

// TimeOff is an absolute-time exclusion window overriding shifts
type TimeOff struct {
	ID       string    `json:"id" db:"id"`
	DoctorID string    `json:"doctor_id" db:"doctor_id"`
	StartsAt time.Time `json:"starts_at" db:"starts_at"`
	EndsAt   time.Time `json:"ends_at" db:"ends_at"`
	Reason   string    `json:"reason" db:"reason"`
}

// Overlaps reports whether the time-off window overlaps [start, end)
func (t *TimeOff) Overlaps(start, end time.Time) bool {
	return t.StartsAt.Before(end) && t.EndsAt.After(start)
}

// DoctorSchedule bundles one doctor's shifts and future time-off windows
type DoctorSchedule struct {
	DoctorID string
	Shifts   []BusinessHourShift
	TimeOff  []TimeOff
}

// WorkingAt is the cheap point check used for day-level gating: it converts
// the instant into the doctor's timezone and tests whether any enabled shift
// on that day-of-week contains it, with the overnight rule extending the
// shift end past midnight. A matching point is necessary but not sufficient
// for a whole slot to be bookable.
func (s *DoctorSchedule) WorkingAt(at time.Time, loc *time.Location) bool {
	local := at.In(loc)
	weekday := local.Weekday()
	minute := local.Hour()*60 + local.Minute()

	for i := range s.Shifts {
		shift := &s.Shifts[i]
		if !shift.Enabled || shift.Weekday != weekday {
			continue
		}
		startMin, ok := parseClock(shift.StartTime)
		if !ok {
			continue
		}
		endMin, ok := parseClock(shift.EndTime)
		if !ok {
			continue
		}
		if endMin < startMin {
			// Night shift: the end lies on the next day, so any clock
			// time from the start onward is inside it.
			if minute >= startMin {
				return true
			}
			continue
		}
		if minute >= startMin && minute <= endMin {
			return true
		}
	}
	return false
}

// CoversInterval is the authoritative shift check for booking: the whole
// [start, end) interval must sit inside one enabled shift on the start's
// day-of-week in the doctor's timezone (boundaries inclusive), and no
// time-off window may overlap it.
func (s *DoctorSchedule) CoversInterval(start, end time.Time, loc *time.Location) bool {
	if s.OnTimeOff(start, end) {
		return false
	}

	localStart := start.In(loc)
	weekday := localStart.Weekday()
	year, month, day := localStart.Date()

	for i := range s.Shifts {
		shift := &s.Shifts[i]
		if !shift.Enabled || shift.Weekday != weekday {
			continue
		}
		startMin, ok := parseClock(shift.StartTime)
		if !ok {
			continue
		}
		endMin, ok := parseClock(shift.EndTime)
		if !ok {
			continue
		}

		shiftStart := time.Date(year, month, day, startMin/60, startMin%60, 0, 0, loc)
		shiftEnd := time.Date(year, month, day, endMin/60, endMin%60, 0, 0, loc)
		if endMin < startMin {
			shiftEnd = shiftEnd.AddDate(0, 0, 1)
		}

		if !start.Before(shiftStart) && !end.After(shiftEnd) {
			return true
		}
	}
	return false
}

// OnTimeOffAt reports whether the instant falls inside a time-off window
func (s *DoctorSchedule) OnTimeOffAt(at time.Time) bool {
	for i := range s.TimeOff {
		off := &s.TimeOff[i]
		if !at.Before(off.StartsAt) && at.Before(off.EndsAt) {
			return true
		}
	}
	return false
}

// OnTimeOff reports whether any time-off window overlaps [start, end)
func (s *DoctorSchedule) OnTimeOff(start, end time.Time) bool {
	for i := range s.TimeOff {
		if s.TimeOff[i].Overlaps(start, end) {
			return true
		}
	}
	return false
}

// parseClock parses "HH:MM" into minutes since midnight
func parseClock(clock string) (int, bool) {
	parts := strings.SplitN(clock, ":", 2)
	if len(parts) != 2 {
		return 0, false
	}
	hours, err := strconv.Atoi(parts[0])
	if err != nil || hours < 0 || hours > 23 {
		return 0, false
	}
	minutes, err := strconv.Atoi(parts[1])
	if err != nil || minutes < 0 || minutes > 59 {
		return 0, false
	}
	return hours*60 + minutes, true
}
