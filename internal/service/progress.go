package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"brainpulse/internal/database"
	"brainpulse/internal/models"
	"brainpulse/internal/repository"
)

// ApplySession advances a progress row by one session. A nil or empty prev
// seeds every running value from the session.
func ApplySession(prev *models.UserProgress, score int, difficulty string, now time.Time) models.UserProgress {
	var next models.UserProgress
	if prev != nil {
		next = *prev
	}

	if prev == nil || prev.TotalSessions == 0 {
		next.TotalSessions = 1
		next.BestScore = score
		next.AverageScore = float64(score)
	} else {
		total := prev.TotalSessions + 1
		next.TotalSessions = total
		next.BestScore = max(prev.BestScore, score)
		next.AverageScore = round1((prev.AverageScore*float64(prev.TotalSessions) + float64(score)) / float64(total))
	}

	switch {
	case difficulty != "":
		next.CurrentDifficulty = difficulty
	case next.CurrentDifficulty == "":
		next.CurrentDifficulty = models.DefaultDifficulty
	}

	t := now.UTC()
	next.LastSessionAt = &t
	next.UpdatedAt = t
	return next
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ComputeStreak counts consecutive UTC calendar days with at least one
// session, ending at the most recent one. The streak is 0 unless that day is
// today or yesterday.
func ComputeStreak(sessionTimes []time.Time, today time.Time) int {
	if len(sessionTimes) == 0 {
		return 0
	}

	seen := make(map[time.Time]struct{}, len(sessionTimes))
	days := make([]time.Time, 0, len(sessionTimes))
	for _, t := range sessionTimes {
		d := utcDay(t)
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].After(days[j]) })

	todayDay := utcDay(today)
	yesterday := todayDay.AddDate(0, 0, -1)
	if !days[0].Equal(todayDay) && !days[0].Equal(yesterday) {
		return 0
	}

	streak := 1
	for i := 1; i < len(days); i++ {
		if !days[i-1].AddDate(0, 0, -1).Equal(days[i]) {
			break
		}
		streak++
	}
	return streak
}

func utcDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// ProgressAggregator maintains per-user, per-module running statistics
type ProgressAggregator struct {
	repo *repository.TrainingRepository
	now  func() time.Time
}

// NewProgressAggregator creates an aggregator
func NewProgressAggregator(repo *repository.TrainingRepository) *ProgressAggregator {
	return &ProgressAggregator{repo: repo, now: time.Now}
}

// RecordSession applies a session to the progress row inside tx. The row is
// created on first use and locked before it is read, so concurrent sessions
// for the same pair are serialized by the database.
func (a *ProgressAggregator) RecordSession(ctx context.Context, tx *database.Tx, userID, moduleID int64, score int, difficulty string) (*models.UserProgress, error) {
	repo := a.repo.WithTx(tx)
	now := a.now()

	if err := repo.EnsureProgress(ctx, userID, moduleID, now); err != nil {
		return nil, err
	}

	prev, err := repo.GetProgressForUpdate(ctx, userID, moduleID)
	if errors.Is(err, repository.ErrProgressNotFound) {
		// MySQL's INSERT IGNORE turns foreign key failures into warnings
		return nil, fmt.Errorf("progress row for user %d module %d: %w", userID, moduleID, database.ErrForeignKeyViolation)
	}
	if err != nil {
		return nil, err
	}

	next := ApplySession(prev, score, difficulty, now)
	if err := repo.UpdateProgress(ctx, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// RefreshStreak recomputes the current streak from the full session history
// and raises the longest streak when it is exceeded.
func (a *ProgressAggregator) RefreshStreak(ctx context.Context, userID, moduleID int64) (*models.UserProgress, error) {
	times, err := a.repo.SessionTimes(ctx, userID, moduleID)
	if err != nil {
		return nil, err
	}

	now := a.now()
	streak := ComputeStreak(times, now)
	if err := a.repo.UpdateStreak(ctx, userID, moduleID, streak, now); err != nil {
		return nil, err
	}
	return a.repo.GetProgress(ctx, userID, moduleID)
}
