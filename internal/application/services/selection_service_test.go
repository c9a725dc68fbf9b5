package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/backend/internal/domain/entities"
	apperrors "github.com/clinicdesk/backend/pkg/errors"
)

func newSelectionFixture(now time.Time) (*mockAssignmentRepo, *SelectionService) {
	assignments := new(mockAssignmentRepo)
	service := NewSelectionService(assignments)
	service.now = func() time.Time { return now }
	return assignments, service
}

func candidate(id, doctorID string, online bool, opts func(*entities.CategoryDoctorAssignment)) *entities.CategoryDoctorAssignment {
	a := testAssignment(id, "cat-1", doctorID, testDoctor(doctorID, "UTC", online))
	if opts != nil {
		opts(a)
	}
	return a
}

func TestSelectDoctor(t *testing.T) {
	ctx := context.Background()

	t.Run("no candidates yields nil without error", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").
			Return([]*entities.CategoryDoctorAssignment{}, nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionPriority, nil)

		require.NoError(t, err)
		assert.Nil(t, picked)
	})

	t.Run("exclusions remove doctors from the pool", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").
			Return([]*entities.CategoryDoctorAssignment{
				candidate("as-1", "doc-1", true, nil),
				candidate("as-2", "doc-2", true, nil),
			}, nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionPriority, []string{"doc-1"})

		require.NoError(t, err)
		require.NotNil(t, picked)
		assert.Equal(t, "doc-2", picked.DoctorID)
	})

	t.Run("unknown algorithm is a validation error", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").
			Return([]*entities.CategoryDoctorAssignment{candidate("as-1", "doc-1", true, nil)}, nil)

		_, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionAlgorithm("fanciest"), nil)

		require.Error(t, err)
		assert.True(t, apperrors.IsType(err, apperrors.ErrorTypeValidation))
	})

	t.Run("priority picks the lowest value, first on tie", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").
			Return([]*entities.CategoryDoctorAssignment{
				candidate("as-1", "doc-1", true, func(a *entities.CategoryDoctorAssignment) { a.Priority = 5 }),
				candidate("as-2", "doc-2", true, func(a *entities.CategoryDoctorAssignment) { a.Priority = 1 }),
				candidate("as-3", "doc-3", true, func(a *entities.CategoryDoctorAssignment) { a.Priority = 1 }),
			}, nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionPriority, nil)

		require.NoError(t, err)
		assert.Equal(t, "doc-2", picked.DoctorID)
	})

	t.Run("online doctors are preferred over better-ranked offline ones", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").
			Return([]*entities.CategoryDoctorAssignment{
				candidate("as-1", "doc-1", false, func(a *entities.CategoryDoctorAssignment) { a.Priority = 1 }),
				candidate("as-2", "doc-2", true, func(a *entities.CategoryDoctorAssignment) { a.Priority = 9 }),
			}, nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionPriority, nil)

		require.NoError(t, err)
		assert.Equal(t, "doc-2", picked.DoctorID)
	})

	t.Run("weighted never picks a zero-weight candidate when others carry weight", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		pool := []*entities.CategoryDoctorAssignment{
			candidate("as-1", "doc-1", true, func(a *entities.CategoryDoctorAssignment) { a.Weight = 0 }),
			candidate("as-2", "doc-2", true, func(a *entities.CategoryDoctorAssignment) { a.Weight = 7 }),
		}
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").Return(pool, nil)

		for i := 0; i < 50; i++ {
			picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionWeighted, nil)
			require.NoError(t, err)
			assert.Equal(t, "doc-2", picked.DoctorID)
		}
	})

	t.Run("weighted degrades to uniform when total weight is zero", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		pool := []*entities.CategoryDoctorAssignment{
			candidate("as-1", "doc-1", true, nil),
			candidate("as-2", "doc-2", true, nil),
		}
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").Return(pool, nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionWeighted, nil)

		require.NoError(t, err)
		require.NotNil(t, picked)
		assert.Contains(t, []string{"doc-1", "doc-2"}, picked.DoctorID)
	})

	t.Run("random returns a member of the pool", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").
			Return([]*entities.CategoryDoctorAssignment{candidate("as-1", "doc-1", true, nil)}, nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionRandom, nil)

		require.NoError(t, err)
		assert.Equal(t, "doc-1", picked.DoctorID)
	})

	t.Run("least recently used treats never-assigned as oldest and touches the winner", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		lastWeek := mondayMorning.AddDate(0, 0, -7)
		yesterday := mondayMorning.AddDate(0, 0, -1)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").
			Return([]*entities.CategoryDoctorAssignment{
				candidate("as-1", "doc-1", true, func(a *entities.CategoryDoctorAssignment) { a.LastAssignedAt = &yesterday }),
				candidate("as-2", "doc-2", true, nil),
				candidate("as-3", "doc-3", true, func(a *entities.CategoryDoctorAssignment) { a.LastAssignedAt = &lastWeek }),
			}, nil)
		assignments.On("TouchLastAssigned", mock.Anything, "as-2", mondayMorning).Return(nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionLeastRecentlyUsed, nil)

		require.NoError(t, err)
		assert.Equal(t, "doc-2", picked.DoctorID)
		require.NotNil(t, picked.LastAssignedAt)
		assert.Equal(t, mondayMorning, *picked.LastAssignedAt)
		assignments.AssertExpectations(t)
	})

	t.Run("least recently used picks the stalest timestamp among assigned", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		lastWeek := mondayMorning.AddDate(0, 0, -7)
		yesterday := mondayMorning.AddDate(0, 0, -1)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").
			Return([]*entities.CategoryDoctorAssignment{
				candidate("as-1", "doc-1", true, func(a *entities.CategoryDoctorAssignment) { a.LastAssignedAt = &yesterday }),
				candidate("as-3", "doc-3", true, func(a *entities.CategoryDoctorAssignment) { a.LastAssignedAt = &lastWeek }),
			}, nil)
		assignments.On("TouchLastAssigned", mock.Anything, "as-3", mondayMorning).Return(nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionLeastRecentlyUsed, nil)

		require.NoError(t, err)
		assert.Equal(t, "doc-3", picked.DoctorID)
	})

	t.Run("round robin picks the smallest counter and increments only the winner", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").
			Return([]*entities.CategoryDoctorAssignment{
				candidate("as-1", "doc-1", true, func(a *entities.CategoryDoctorAssignment) { a.RoundRobinCounter = 2 }),
				candidate("as-2", "doc-2", true, func(a *entities.CategoryDoctorAssignment) { a.RoundRobinCounter = 0 }),
				candidate("as-3", "doc-3", true, func(a *entities.CategoryDoctorAssignment) { a.RoundRobinCounter = 1 }),
			}, nil)
		assignments.On("IncrementRoundRobin", mock.Anything, "as-2").Return(nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionRoundRobin, nil)

		require.NoError(t, err)
		assert.Equal(t, "doc-2", picked.DoctorID)
		assert.Equal(t, 1, picked.RoundRobinCounter)
		assignments.AssertNotCalled(t, "ResetRoundRobin", mock.Anything, mock.Anything)
	})

	t.Run("round robin resets every counter past the ceiling", func(t *testing.T) {
		assignments, service := newSelectionFixture(mondayMorning)
		pool := []*entities.CategoryDoctorAssignment{
			candidate("as-1", "doc-1", true, func(a *entities.CategoryDoctorAssignment) { a.RoundRobinCounter = 1200 }),
			candidate("as-2", "doc-2", true, func(a *entities.CategoryDoctorAssignment) { a.RoundRobinCounter = 998 }),
		}
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").Return(pool, nil)
		assignments.On("IncrementRoundRobin", mock.Anything, "as-2").Return(nil)
		assignments.On("ResetRoundRobin", mock.Anything, "cat-1").Return(nil)

		picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionRoundRobin, nil)

		require.NoError(t, err)
		assert.Equal(t, "doc-2", picked.DoctorID)
		for _, c := range pool {
			assert.Equal(t, 0, c.RoundRobinCounter)
		}
		assignments.AssertExpectations(t)
	})

	t.Run("round robin stays fair over repeated selections", func(t *testing.T) {
		pool := []*entities.CategoryDoctorAssignment{
			candidate("as-1", "doc-1", true, nil),
			candidate("as-2", "doc-2", true, nil),
			candidate("as-3", "doc-3", true, nil),
		}
		assignments, service := newSelectionFixture(mondayMorning)
		assignments.On("ListActiveByCategory", mock.Anything, "cat-1").Return(pool, nil)
		assignments.On("IncrementRoundRobin", mock.Anything, mock.Anything).Return(nil)

		counts := map[string]int{}
		for i := 0; i < 9; i++ {
			picked, err := service.SelectDoctor(ctx, "cat-1", entities.SelectionRoundRobin, nil)
			require.NoError(t, err)
			counts[picked.DoctorID]++
		}

		assert.Equal(t, map[string]int{"doc-1": 3, "doc-2": 3, "doc-3": 3}, counts)
	})
}
