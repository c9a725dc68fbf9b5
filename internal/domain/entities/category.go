package entities

import (
	"time"
)

// SelectionAlgorithm names the doctor-selection policy configured on a category
type SelectionAlgorithm string

const (
	SelectionPriority          SelectionAlgorithm = "priority"
	SelectionWeighted          SelectionAlgorithm = "weighted"
	SelectionRandom            SelectionAlgorithm = "random"
	SelectionLeastRecentlyUsed SelectionAlgorithm = "least_recently_used"
	SelectionRoundRobin        SelectionAlgorithm = "round_robin"
)

// Category represents a bookable service definition. It is treated as
// immutable during a single booking operation.
type Category struct {
	ID                 string             `json:"id" db:"id"`
	Name               string             `json:"name" db:"name"`
	DurationMinutes    int                `json:"duration_minutes" db:"duration_minutes"`
	BufferMinutes      int                `json:"buffer_minutes" db:"buffer_minutes"`
	Concurrency        int                `json:"concurrency" db:"concurrency"`
	NextDays           int                `json:"next_days" db:"next_days"`
	SelectionAlgorithm SelectionAlgorithm `json:"selection_algorithm" db:"selection_algorithm"`
	IsActive           bool               `json:"is_active" db:"is_active"`
	CreatedAt          time.Time          `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at" db:"updated_at"`
}

// SlotDuration returns the length of one bookable slot
func (c *Category) SlotDuration() time.Duration {
	return time.Duration(c.DurationMinutes) * time.Minute
}

// SlotStep returns the distance between consecutive slot starts
// (duration plus buffer)
func (c *Category) SlotStep() time.Duration {
	return time.Duration(c.DurationMinutes+c.BufferMinutes) * time.Minute
}
