package services

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/clinicdesk/backend/internal/domain/entities"
	"github.com/clinicdesk/backend/internal/domain/repositories"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

// roundRobinResetCeiling bounds counter growth: once any counter in the
// category passes it, every counter is reset to zero, not just the winner's.
const roundRobinResetCeiling = 1000

// SelectionService picks a doctor among a category's eligible assignees
// under the configured policy. Online doctors are preferred when any exist;
// otherwise all active assignees are considered. A nil result means "could
// not assign", which callers must treat as a normal outcome, not an error.
type SelectionService struct {
	assignments repositories.AssignmentRepository
	now         func() time.Time
}

// NewSelectionService creates a new selection service
func NewSelectionService(assignments repositories.AssignmentRepository) *SelectionService {
	return &SelectionService{
		assignments: assignments,
		now:         time.Now,
	}
}

// SelectDoctor picks one assignment under the named algorithm, excluding the
// given doctor ids. Selection state (LRU timestamp, round-robin counter) is
// mutated for the winner as a side effect.
func (s *SelectionService) SelectDoctor(ctx context.Context, categoryID string, algorithm entities.SelectionAlgorithm, exclude []string) (*entities.CategoryDoctorAssignment, error) {
	assignments, err := s.assignments.ListActiveByCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}

	excluded := make(map[string]struct{}, len(exclude))
	for _, id := range exclude {
		excluded[id] = struct{}{}
	}

	var candidates []*entities.CategoryDoctorAssignment
	for _, assignment := range assignments {
		if _, skip := excluded[assignment.DoctorID]; skip {
			continue
		}
		candidates = append(candidates, assignment)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	pool := onlinePreferred(candidates)

	switch algorithm {
	case entities.SelectionPriority:
		return s.selectByPriority(pool), nil
	case entities.SelectionWeighted:
		return s.selectWeighted(pool), nil
	case entities.SelectionRandom:
		return pool[rand.Intn(len(pool))], nil
	case entities.SelectionLeastRecentlyUsed:
		return s.selectLeastRecentlyUsed(ctx, pool)
	case entities.SelectionRoundRobin:
		return s.selectRoundRobin(ctx, categoryID, candidates, pool)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unknown selection algorithm %q", algorithm))
	}
}

// selectByPriority picks the lowest priority value; ties keep input order
func (s *SelectionService) selectByPriority(pool []*entities.CategoryDoctorAssignment) *entities.CategoryDoctorAssignment {
	winner := pool[0]
	for _, candidate := range pool[1:] {
		if candidate.Priority < winner.Priority {
			winner = candidate
		}
	}
	return winner
}

// selectWeighted draws proportionally to weight; a zero total weight
// degrades to a uniform pick
func (s *SelectionService) selectWeighted(pool []*entities.CategoryDoctorAssignment) *entities.CategoryDoctorAssignment {
	total := 0
	for _, candidate := range pool {
		if candidate.Weight > 0 {
			total += candidate.Weight
		}
	}
	if total <= 0 {
		return pool[rand.Intn(len(pool))]
	}

	draw := rand.Intn(total)
	for _, candidate := range pool {
		draw -= candidate.Weight
		if draw < 0 {
			return candidate
		}
	}
	return pool[len(pool)-1]
}

// selectLeastRecentlyUsed picks the candidate assigned longest ago, with a
// never-assigned candidate treated as older than any timestamp. The winner's
// timestamp is advanced to now.
func (s *SelectionService) selectLeastRecentlyUsed(ctx context.Context, pool []*entities.CategoryDoctorAssignment) (*entities.CategoryDoctorAssignment, error) {
	winner := pool[0]
	for _, candidate := range pool[1:] {
		if winner.LastAssignedAt == nil {
			break
		}
		if candidate.LastAssignedAt == nil || candidate.LastAssignedAt.Before(*winner.LastAssignedAt) {
			winner = candidate
		}
	}

	now := s.now()
	if err := s.assignments.TouchLastAssigned(ctx, winner.ID, now); err != nil {
		return nil, err
	}
	winner.LastAssignedAt = &now

	return winner, nil
}

// selectRoundRobin picks the smallest counter and increments only the
// winner. When the maximum counter across all of the category's candidates
// passes the ceiling, every counter resets to zero.
func (s *SelectionService) selectRoundRobin(ctx context.Context, categoryID string, all, pool []*entities.CategoryDoctorAssignment) (*entities.CategoryDoctorAssignment, error) {
	winner := pool[0]
	for _, candidate := range pool[1:] {
		if candidate.RoundRobinCounter < winner.RoundRobinCounter {
			winner = candidate
		}
	}

	if err := s.assignments.IncrementRoundRobin(ctx, winner.ID); err != nil {
		return nil, err
	}
	winner.RoundRobinCounter++

	maxCounter := 0
	for _, candidate := range all {
		if candidate.RoundRobinCounter > maxCounter {
			maxCounter = candidate.RoundRobinCounter
		}
	}
	if maxCounter > roundRobinResetCeiling {
		if err := s.assignments.ResetRoundRobin(ctx, categoryID); err != nil {
			return nil, err
		}
		for _, candidate := range all {
			candidate.RoundRobinCounter = 0
		}
	}

	return winner, nil
}

// onlinePreferred narrows to online doctors when any exist
func onlinePreferred(candidates []*entities.CategoryDoctorAssignment) []*entities.CategoryDoctorAssignment {
	var online []*entities.CategoryDoctorAssignment
	for _, candidate := range candidates {
		if candidate.Doctor != nil && candidate.Doctor.IsOnline {
			online = append(online, candidate)
		}
	}
	if len(online) > 0 {
		return online
	}
	return candidates
}
