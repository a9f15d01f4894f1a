package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainpulse/internal/models"
)

// memUsageStore keeps usage records in memory, newest last
type memUsageStore struct {
	mu      sync.Mutex
	records []models.ContentUsage
	err     error
}

func (m *memUsageStore) Insert(ctx context.Context, userID int64, contentType string, items []models.Word, usedAt time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	id := int64(len(m.records) + 1)
	m.records = append(m.records, models.ContentUsage{ID: id, UserID: userID, ContentType: contentType, Items: items, UsedAt: usedAt})
	return id, nil
}

func (m *memUsageStore) Recent(ctx context.Context, userID int64, contentType string, limit int) ([]models.ContentUsage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []models.ContentUsage
	for i := len(m.records) - 1; i >= 0 && len(out) < limit; i-- {
		r := m.records[i]
		if r.UserID == userID && r.ContentType == contentType {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memUsageStore) Count(ctx context.Context, userID int64, contentType string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, r := range m.records {
		if r.UserID == userID && r.ContentType == contentType {
			n++
		}
	}
	return n, nil
}

func (m *memUsageStore) Clear(ctx context.Context, userID int64, contentType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	kept := m.records[:0]
	var removed int64
	for _, r := range m.records {
		if r.UserID == userID && r.ContentType == contentType {
			removed++
			continue
		}
		kept = append(kept, r)
	}
	m.records = kept
	return removed, nil
}

func (m *memUsageStore) Prune(ctx context.Context, keep int) (int64, error) {
	return 0, m.err
}

func (m *memUsageStore) add(userID int64, texts ...string) {
	items := make([]models.Word, len(texts))
	for i, t := range texts {
		items[i] = models.Word{Text: t, Category: "test", Length: len(t)}
	}
	_, _ = m.Insert(context.Background(), userID, models.ContentTypeWords, items, time.Now())
}

func TestRecentlyUsed_UnionOfWindow(t *testing.T) {
	store := &memUsageStore{}
	store.add(1, "oldest")
	store.add(1, "Apple", "banana")
	store.add(1, "cherry")
	store.add(1, "banana ", "date")
	store.add(2, "other-user")

	tracker := NewExclusionTracker(store)
	used := tracker.RecentlyUsed(context.Background(), 1, models.ContentTypeWords, 3)

	assert.Len(t, used, 4)
	for _, w := range []string{"apple", "banana", "cherry", "date"} {
		assert.Contains(t, used, w)
	}
	assert.NotContains(t, used, "oldest")
	assert.NotContains(t, used, "other-user")
}

func TestRecentlyUsed_StoreFailureYieldsEmptySet(t *testing.T) {
	store := &memUsageStore{err: errors.New("database is locked")}
	tracker := NewExclusionTracker(store)

	used := tracker.RecentlyUsed(context.Background(), 1, models.ContentTypeWords, 3)
	assert.NotNil(t, used)
	assert.Empty(t, used)
}

func TestRecentlyUsed_ZeroWindow(t *testing.T) {
	store := &memUsageStore{}
	store.add(1, "apple")

	used := NewExclusionTracker(store).RecentlyUsed(context.Background(), 1, models.ContentTypeWords, 0)
	assert.Empty(t, used)
}

func TestExclusionStats(t *testing.T) {
	store := &memUsageStore{}
	store.add(1, "a", "b")
	store.add(1, "b", "c")
	store.add(1, "d")
	store.add(1, "e")

	stats, err := NewExclusionTracker(store).Stats(context.Background(), 1, models.ContentTypeWords, 3)
	require.NoError(t, err)
	assert.Equal(t, 4, stats.TotalSessions)
	assert.Equal(t, 3, stats.RecentSessions)
	assert.Equal(t, 4, stats.ExcludedCount, "b, c, d, e")
}

func TestClearHistoryPropagatesErrors(t *testing.T) {
	store := &memUsageStore{}
	store.add(1, "a")
	store.add(1, "b")
	tracker := NewExclusionTracker(store)

	n, err := tracker.ClearHistory(context.Background(), 1, models.ContentTypeWords)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	store.err = errors.New("boom")
	_, err = tracker.ClearHistory(context.Background(), 1, models.ContentTypeWords)
	assert.Error(t, err)
}

func TestPruneRejectsZeroRetention(t *testing.T) {
	_, err := NewExclusionTracker(&memUsageStore{}).Prune(context.Background(), 0)
	assert.Error(t, err)
}
