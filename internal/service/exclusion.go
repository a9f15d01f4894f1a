package service

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"brainpulse/internal/models"
)

// UsageStore persists content usage records
type UsageStore interface {
	Insert(ctx context.Context, userID int64, contentType string, items []models.Word, usedAt time.Time) (int64, error)
	Recent(ctx context.Context, userID int64, contentType string, limit int) ([]models.ContentUsage, error)
	Count(ctx context.Context, userID int64, contentType string) (int, error)
	Clear(ctx context.Context, userID int64, contentType string) (int64, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// ExclusionTracker knows which items a user has been served recently
type ExclusionTracker struct {
	store UsageStore
	now   func() time.Time
}

// NewExclusionTracker creates a tracker over store
func NewExclusionTracker(store UsageStore) *ExclusionTracker {
	return &ExclusionTracker{store: store, now: time.Now}
}

// RecentlyUsed returns the normalized texts served in the user's last window
// records. Storage failures are logged and yield an empty set so selection
// can continue unfiltered.
func (t *ExclusionTracker) RecentlyUsed(ctx context.Context, userID int64, contentType string, window int) map[string]struct{} {
	used := make(map[string]struct{})
	if window <= 0 {
		return used
	}

	records, err := t.store.Recent(ctx, userID, contentType, window)
	if err != nil {
		log.WithFields(log.Fields{"user_id": userID, "content_type": contentType}).
			WithError(err).Warn("Exclusion lookup failed, selecting without exclusions")
		return used
	}

	for _, rec := range records {
		for _, item := range rec.Items {
			used[models.NormalizeWord(item.Text)] = struct{}{}
		}
	}
	return used
}

// RecordUsage appends one usage record
func (t *ExclusionTracker) RecordUsage(ctx context.Context, userID int64, contentType string, items []models.Word) error {
	if _, err := t.store.Insert(ctx, userID, contentType, items, t.now().UTC()); err != nil {
		return err
	}
	return nil
}

// Stats summarises a user's usage history
func (t *ExclusionTracker) Stats(ctx context.Context, userID int64, contentType string, window int) (*models.ExclusionStats, error) {
	total, err := t.store.Count(ctx, userID, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to count usage: %w", err)
	}

	records, err := t.store.Recent(ctx, userID, contentType, window)
	if err != nil {
		return nil, fmt.Errorf("failed to load recent usage: %w", err)
	}

	excluded := make(map[string]struct{})
	for _, rec := range records {
		for _, item := range rec.Items {
			excluded[models.NormalizeWord(item.Text)] = struct{}{}
		}
	}

	return &models.ExclusionStats{
		TotalSessions:  total,
		RecentSessions: len(records),
		ExcludedCount:  len(excluded),
	}, nil
}

// ClearHistory deletes a user's usage history for a content type
func (t *ExclusionTracker) ClearHistory(ctx context.Context, userID int64, contentType string) (int64, error) {
	n, err := t.store.Clear(ctx, userID, contentType)
	if err != nil {
		return 0, fmt.Errorf("failed to clear usage history: %w", err)
	}
	return n, nil
}

// Prune keeps the newest keep records per user and content type
func (t *ExclusionTracker) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("retention must be at least 1, got %d", keep)
	}
	n, err := t.store.Prune(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune usage history: %w", err)
	}
	return n, nil
}
