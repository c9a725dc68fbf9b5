package repositories

import (
	"context"
	"time"

	"github.com/clinicdesk/backend/internal/domain/entities"
)

// AssignmentRepository defines access to category-doctor assignments and the
// per-assignment selection-policy state they carry
type AssignmentRepository interface {
	// ListActiveByCategory returns assignments for the category whose doctor
	// is active, with the doctor row joined in, ordered by priority
	ListActiveByCategory(ctx context.Context, categoryID string) ([]*entities.CategoryDoctorAssignment, error)

	// TouchLastAssigned records that the assignment's doctor was just picked
	// by the least-recently-used policy
	TouchLastAssigned(ctx context.Context, assignmentID string, at time.Time) error

	// IncrementRoundRobin atomically increments the assignment's round-robin
	// counter in a single write, so concurrent selections never lose updates
	IncrementRoundRobin(ctx context.Context, assignmentID string) error

	// ResetRoundRobin zeroes the round-robin counters of every assignment in
	// the category
	ResetRoundRobin(ctx context.Context, categoryID string) error
}
