package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"brainpulse/internal/database"
	"brainpulse/internal/models"
)

// UsageRepository stores which content items were served to each user
type UsageRepository struct {
	db database.DBTX
}

// NewUsageRepository creates a new usage repository
func NewUsageRepository(db database.DBTX) *UsageRepository {
	return &UsageRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *UsageRepository) WithTx(tx *database.Tx) *UsageRepository {
	return &UsageRepository{db: tx}
}

// Insert appends one usage record
func (r *UsageRepository) Insert(ctx context.Context, userID int64, contentType string, items []models.Word, usedAt time.Time) (int64, error) {
	payload, err := sonic.Marshal(items)
	if err != nil {
		return 0, fmt.Errorf("failed to encode usage items: %w", err)
	}

	query := "INSERT INTO content_usage (user_id, content_type, items, used_at) VALUES (?, ?, ?, ?)"
	id, err := r.db.ExecReturningID(ctx, query, userID, contentType, string(payload), usedAt.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to record content usage: %w", err)
	}
	return id, nil
}

// Recent returns the newest limit records for a user and content type
func (r *UsageRepository) Recent(ctx context.Context, userID int64, contentType string, limit int) ([]models.ContentUsage, error) {
	query := `
		SELECT id, user_id, content_type, items, used_at
		FROM content_usage
		WHERE user_id = ? AND content_type = ?
		ORDER BY used_at DESC, id DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, userID, contentType, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query content usage: %w", err)
	}
	defer rows.Close()

	var records []models.ContentUsage
	for rows.Next() {
		var rec models.ContentUsage
		var items []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ContentType, &items, &rec.UsedAt); err != nil {
			return nil, fmt.Errorf("failed to scan content usage: %w", err)
		}
		if err := sonic.Unmarshal(items, &rec.Items); err != nil {
			return nil, fmt.Errorf("failed to decode usage items %d: %w", rec.ID, err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Count returns the number of usage records for a user and content type
func (r *UsageRepository) Count(ctx context.Context, userID int64, contentType string) (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM content_usage WHERE user_id = ? AND content_type = ?"
	if err := r.db.QueryRowContext(ctx, query, userID, contentType).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count content usage: %w", err)
	}
	return count, nil
}

// Clear deletes every usage record for a user and content type
func (r *UsageRepository) Clear(ctx context.Context, userID int64, contentType string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM content_usage WHERE user_id = ? AND content_type = ?", userID, contentType)
	if err != nil {
		return 0, fmt.Errorf("failed to clear content usage: %w", err)
	}
	return result.RowsAffected()
}

// Prune keeps the newest keep records per (user, content type) and deletes the rest
func (r *UsageRepository) Prune(ctx context.Context, keep int) (int64, error) {
	query := `
		DELETE FROM content_usage
		WHERE id IN (
			SELECT id FROM (
				SELECT id, ROW_NUMBER() OVER (
					PARTITION BY user_id, content_type
					ORDER BY used_at DESC, id DESC
				) AS rn
				FROM content_usage
			) ranked
			WHERE rn > ?
		)
	`
	result, err := r.db.ExecContext(ctx, query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune content usage: %w", err)
	}
	return result.RowsAffected()
}
