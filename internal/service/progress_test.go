package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainpulse/internal/database"
	"brainpulse/internal/database/dbtest"
	"brainpulse/internal/models"
	"brainpulse/internal/repository"
)

func day(d int) time.Time {
	return time.Date(2025, time.December, d, 15, 30, 0, 0, time.UTC)
}

func TestApplySession_IncrementalAverage(t *testing.T) {
	var p *models.UserProgress
	for _, score := range []int{80, 90, 90} {
		next := ApplySession(p, score, "medium", day(1))
		p = &next
	}

	assert.Equal(t, 3, p.TotalSessions)
	assert.Equal(t, 90, p.BestScore)
	assert.InDelta(t, 86.7, p.AverageScore, 1e-9)
	assert.GreaterOrEqual(t, float64(p.BestScore), p.AverageScore)
}

func TestApplySession_SeedsEmptyRow(t *testing.T) {
	empty := &models.UserProgress{ID: 5, UserID: 1, ModuleID: 2, CurrentDifficulty: models.DefaultDifficulty}
	next := ApplySession(empty, 70, "hard", day(2))

	assert.Equal(t, int64(5), next.ID)
	assert.Equal(t, 1, next.TotalSessions)
	assert.Equal(t, 70, next.BestScore)
	assert.Equal(t, 70.0, next.AverageScore)
	assert.Equal(t, "hard", next.CurrentDifficulty)
	require.NotNil(t, next.LastSessionAt)
	assert.Equal(t, day(2), *next.LastSessionAt)
}

func TestApplySession_DifficultyRule(t *testing.T) {
	prev := &models.UserProgress{TotalSessions: 2, BestScore: 50, AverageScore: 40, CurrentDifficulty: "hard"}

	assert.Equal(t, "hard", ApplySession(prev, 10, "", day(1)).CurrentDifficulty)
	assert.Equal(t, "custom", ApplySession(prev, 10, "custom", day(1)).CurrentDifficulty)
	assert.Equal(t, models.DefaultDifficulty, ApplySession(nil, 10, "", day(1)).CurrentDifficulty)
}

func TestApplySession_TotalOnlyIncreases(t *testing.T) {
	var p *models.UserProgress
	for i, score := range []int{0, 100, 55, 0, 12} {
		next := ApplySession(p, score, "easy", day(1))
		assert.Equal(t, i+1, next.TotalSessions)
		p = &next
	}
	assert.Equal(t, 100, p.BestScore)
	assert.InDelta(t, 33.4, p.AverageScore, 1e-9)
}

func TestComputeStreak(t *testing.T) {
	tests := []struct {
		name  string
		times []time.Time
		today time.Time
		want  int
	}{
		{"consecutive days", []time.Time{day(1), day(2), day(3)}, day(3), 3},
		{"gap breaks streak", []time.Time{day(1), day(3)}, day(3), 1},
		{"nothing today or yesterday", []time.Time{day(1), day(2)}, day(5), 0},
		{"ends yesterday", []time.Time{day(1), day(2), day(3)}, day(4), 3},
		{"several sessions per day", []time.Time{day(2), day(3), day(3).Add(time.Hour), day(2).Add(-time.Hour)}, day(3), 2},
		{"unordered input", []time.Time{day(3), day(1), day(2)}, day(3), 3},
		{"no sessions", nil, day(3), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeStreak(tt.times, tt.today))
		})
	}
}

func TestComputeStreak_UsesUTCDates(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	// 2025-12-03 08:00 JST is still Dec 2 in UTC
	early := time.Date(2025, time.December, 3, 8, 0, 0, 0, tokyo)

	assert.Equal(t, 2, ComputeStreak([]time.Time{day(1), early}, day(2)))
}

type aggregatorFixture struct {
	db       *database.DB
	repo     *repository.TrainingRepository
	agg      *ProgressAggregator
	userID   int64
	moduleID int64
}

func newAggregatorFixture(t *testing.T) *aggregatorFixture {
	t.Helper()
	db := dbtest.New(t)
	repo := repository.NewTrainingRepository(db)
	module, err := repo.FindOrCreateModule(context.Background(), &models.TrainingModule{Slug: "word-memory", Name: "Word Memory", Category: "memory"})
	require.NoError(t, err)

	return &aggregatorFixture{
		db:       db,
		repo:     repo,
		agg:      NewProgressAggregator(repo),
		userID:   dbtest.CreateUser(t, db, "ada"),
		moduleID: module.ID,
	}
}

func (f *aggregatorFixture) record(t *testing.T, score int, at time.Time) *models.UserProgress {
	t.Helper()
	ctx := context.Background()
	f.agg.now = func() time.Time { return at }

	var p *models.UserProgress
	err := f.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := f.repo.WithTx(tx).CreateSession(ctx, &models.TrainingSession{
			UserID: f.userID, ModuleID: f.moduleID, Score: score,
			PerformanceLevel: models.PerformanceFair, Status: models.SessionStatusCompleted, CreatedAt: at,
		}); err != nil {
			return err
		}
		var err error
		p, err = f.agg.RecordSession(ctx, tx, f.userID, f.moduleID, score, "medium")
		return err
	})
	require.NoError(t, err)
	return p
}

func TestProgressAggregator_RecordAndRefresh(t *testing.T) {
	f := newAggregatorFixture(t)
	ctx := context.Background()

	f.record(t, 80, day(1))
	f.record(t, 90, day(2))
	p := f.record(t, 90, day(3))
	assert.Equal(t, 3, p.TotalSessions)
	assert.InDelta(t, 86.7, p.AverageScore, 1e-9)

	refreshed, err := f.agg.RefreshStreak(ctx, f.userID, f.moduleID)
	require.NoError(t, err)
	assert.Equal(t, 3, refreshed.CurrentStreak)
	assert.Equal(t, 3, refreshed.LongestStreak)

	// A gap resets the current streak and keeps the longest
	f.record(t, 60, day(6))
	refreshed, err = f.agg.RefreshStreak(ctx, f.userID, f.moduleID)
	require.NoError(t, err)
	assert.Equal(t, 1, refreshed.CurrentStreak)
	assert.Equal(t, 3, refreshed.LongestStreak)
	assert.Equal(t, 4, refreshed.TotalSessions)
}

func TestProgressAggregator_UnknownModuleIsForeignKeyViolation(t *testing.T) {
	f := newAggregatorFixture(t)
	ctx := context.Background()

	err := f.db.WithTx(ctx, func(tx *database.Tx) error {
		_, err := f.agg.RecordSession(ctx, tx, f.userID, 9999, 50, "easy")
		return err
	})
	assert.ErrorIs(t, err, database.ErrForeignKeyViolation)
}
