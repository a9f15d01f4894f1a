package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainpulse/internal/database"
	"brainpulse/internal/database/dbtest"
	"brainpulse/internal/models"
)

func wordMemoryModule() *models.TrainingModule {
	return &models.TrainingModule{
		Slug:     "word-memory",
		Name:     "Word Memory",
		Category: "memory",
	}
}

func TestFindOrCreateModuleIsIdempotent(t *testing.T) {
	db := dbtest.New(t)
	repo := NewTrainingRepository(db)
	ctx := context.Background()

	first, err := repo.FindOrCreateModule(ctx, wordMemoryModule())
	require.NoError(t, err)
	assert.NotZero(t, first.ID)
	assert.Equal(t, "word-memory", first.Slug)
	assert.True(t, first.IsActive)

	renamed := wordMemoryModule()
	renamed.Name = "Something Else"
	second, err := repo.FindOrCreateModule(ctx, renamed)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Word Memory", second.Name)
}

func TestSessionAndProgressRoundTrip(t *testing.T) {
	db := dbtest.New(t)
	repo := NewTrainingRepository(db)
	ctx := context.Background()
	userID := dbtest.CreateUser(t, db, "progress")

	module, err := repo.FindOrCreateModule(ctx, wordMemoryModule())
	require.NoError(t, err)

	score := 80.0
	accuracy := 67
	created := time.Date(2024, 12, 3, 9, 30, 0, 0, time.UTC)
	session := &models.TrainingSession{
		UserID:           userID,
		ModuleID:         module.ID,
		Configuration:    models.SessionConfiguration{Difficulty: "hard", Extra: map[string]any{"wordCount": float64(20)}},
		Results:          models.SessionResults{Score: &score},
		Score:            80,
		Accuracy:         &accuracy,
		DurationSeconds:  42,
		PerformanceLevel: models.PerformanceGood,
		Status:           models.SessionStatusCompleted,
		CreatedAt:        created,
	}

	err = db.WithTx(ctx, func(tx *database.Tx) error {
		txRepo := repo.WithTx(tx)
		if err := txRepo.CreateSession(ctx, session); err != nil {
			return err
		}
		if err := txRepo.EnsureProgress(ctx, userID, module.ID, created); err != nil {
			return err
		}
		// second ensure is a no-op
		if err := txRepo.EnsureProgress(ctx, userID, module.ID, created); err != nil {
			return err
		}
		p, err := txRepo.GetProgressForUpdate(ctx, userID, module.ID)
		if err != nil {
			return err
		}
		p.TotalSessions = 1
		p.BestScore = 80
		p.AverageScore = 80
		p.CurrentDifficulty = "hard"
		p.LastSessionAt = &created
		p.UpdatedAt = created
		return txRepo.UpdateProgress(ctx, p)
	})
	require.NoError(t, err)
	assert.NotZero(t, session.ID)

	progress, err := repo.GetProgress(ctx, userID, module.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, progress.TotalSessions)
	assert.Equal(t, 80, progress.BestScore)
	assert.Equal(t, 80.0, progress.AverageScore)
	assert.Equal(t, "hard", progress.CurrentDifficulty)
	require.NotNil(t, progress.LastSessionAt)
	assert.True(t, progress.LastSessionAt.Equal(created))

	sessions, err := repo.RecentSessions(ctx, userID, 10)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "hard", sessions[0].Configuration.Difficulty)
	assert.Equal(t, float64(20), sessions[0].Configuration.Extra["wordCount"])
	require.NotNil(t, sessions[0].Accuracy)
	assert.Equal(t, 67, *sessions[0].Accuracy)
	assert.Equal(t, models.PerformanceGood, sessions[0].PerformanceLevel)

	times, err := repo.SessionTimes(ctx, userID, module.ID)
	require.NoError(t, err)
	require.Len(t, times, 1)
	assert.True(t, times[0].Equal(created))

	list, err := repo.ListProgress(ctx, userID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "word-memory", list[0].ModuleSlug)
}

func TestUpdateStreakKeepsLongest(t *testing.T) {
	db := dbtest.New(t)
	repo := NewTrainingRepository(db)
	ctx := context.Background()
	userID := dbtest.CreateUser(t, db, "streak")

	module, err := repo.FindOrCreateModule(ctx, wordMemoryModule())
	require.NoError(t, err)
	require.NoError(t, repo.EnsureProgress(ctx, userID, module.ID, time.Now()))

	require.NoError(t, repo.UpdateStreak(ctx, userID, module.ID, 4, time.Now()))
	require.NoError(t, repo.UpdateStreak(ctx, userID, module.ID, 1, time.Now()))

	p, err := repo.GetProgress(ctx, userID, module.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.CurrentStreak)
	assert.Equal(t, 4, p.LongestStreak)

	err = repo.UpdateStreak(ctx, userID, module.ID+100, 1, time.Now())
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

func TestCreateSessionForeignKeyViolation(t *testing.T) {
	db := dbtest.New(t)
	repo := NewTrainingRepository(db)
	ctx := context.Background()

	score := 50.0
	err := repo.CreateSession(ctx, &models.TrainingSession{
		UserID:           999,
		ModuleID:         999,
		Configuration:    models.SessionConfiguration{Difficulty: "easy"},
		Results:          models.SessionResults{Score: &score},
		Score:            50,
		PerformanceLevel: models.PerformancePoor,
		Status:           models.SessionStatusCompleted,
		CreatedAt:        time.Now(),
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, database.ErrForeignKeyViolation)
}

func TestGetProgressMissing(t *testing.T) {
	db := dbtest.New(t)
	repo := NewTrainingRepository(db)

	_, err := repo.GetProgress(context.Background(), 1, 1)
	assert.ErrorIs(t, err, ErrProgressNotFound)
}

func TestListModules(t *testing.T) {
	db := dbtest.New(t)
	repo := NewTrainingRepository(db)
	ctx := context.Background()

	_, err := repo.FindOrCreateModule(ctx, &models.TrainingModule{Slug: "speed-match", Name: "Speed Match", Category: "speed"})
	require.NoError(t, err)
	_, err = repo.FindOrCreateModule(ctx, wordMemoryModule())
	require.NoError(t, err)

	modules, err := repo.ListModules(ctx)
	require.NoError(t, err)
	require.Len(t, modules, 2)
	assert.Equal(t, "speed-match", modules[0].Slug)
	assert.Equal(t, "word-memory", modules[1].Slug)
	assert.NotNil(t, modules[0].Configuration)
}
