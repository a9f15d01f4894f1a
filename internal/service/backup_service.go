package service

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/bytedance/sonic"
	log "github.com/sirupsen/logrus"

	"brainpulse/internal/models"
	"brainpulse/internal/repository"
)

const backupVersion = "2.0"

// BackupData is the complete training data export
type BackupData struct {
	Version    string           `json:"version"`
	ExportedAt time.Time        `json:"exported_at"`
	Users      []UserBackup     `json:"users"`
	Modules    []ModuleBackup   `json:"modules"`
	Sessions   []SessionBackup  `json:"sessions"`
	Progress   []ProgressBackup `json:"progress"`
}

// UserBackup represents a user record for backup. Password hashes are not exported.
type UserBackup struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	OAuthProvider string    `json:"oauth_provider,omitempty"`
	IsAdmin       bool      `json:"is_admin"`
	CreatedAt     time.Time `json:"created_at"`
}

// ModuleBackup represents a training module for backup
type ModuleBackup struct {
	ID            int64          `json:"id"`
	Slug          string         `json:"slug"`
	Name          string         `json:"name"`
	Description   string         `json:"description"`
	Category      string         `json:"category"`
	Configuration map[string]any `json:"configuration"`
	IsActive      bool           `json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
}

// SessionBackup represents a training session for backup
type SessionBackup struct {
	ID               int64                       `json:"id"`
	UserID           int64                       `json:"user_id"`
	ModuleID         int64                       `json:"module_id"`
	Configuration    models.SessionConfiguration `json:"configuration"`
	Results          models.SessionResults       `json:"results"`
	Score            int                         `json:"score"`
	Accuracy         *int                        `json:"accuracy"`
	DurationSeconds  int                         `json:"duration_seconds"`
	PerformanceLevel string                      `json:"performance_level"`
	Status           string                      `json:"status"`
	CreatedAt        time.Time                   `json:"created_at"`
}

// ProgressBackup represents a progress row for backup
type ProgressBackup struct {
	UserID            int64      `json:"user_id"`
	ModuleSlug        string     `json:"module_slug"`
	TotalSessions     int        `json:"total_sessions"`
	BestScore         int        `json:"best_score"`
	AverageScore      float64    `json:"average_score"`
	CurrentStreak     int        `json:"current_streak"`
	LongestStreak     int        `json:"longest_streak"`
	CurrentDifficulty string     `json:"current_difficulty"`
	LastSessionAt     *time.Time `json:"last_session_at"`
}

// BackupService exports training data
type BackupService struct {
	users    *repository.UserRepository
	training *repository.TrainingRepository
	now      func() time.Time
}

// NewBackupService creates a new backup service
func NewBackupService(users *repository.UserRepository, training *repository.TrainingRepository) *BackupService {
	return &BackupService{users: users, training: training, now: time.Now}
}

// Export collects every user, module, session and progress row
func (s *BackupService) Export(ctx context.Context) (*BackupData, error) {
	backup := &BackupData{
		Version:    backupVersion,
		ExportedAt: s.now().UTC(),
		Users:      []UserBackup{},
		Modules:    []ModuleBackup{},
		Sessions:   []SessionBackup{},
		Progress:   []ProgressBackup{},
	}

	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export users: %w", err)
	}
	for _, u := range users {
		backup.Users = append(backup.Users, UserBackup{
			ID:            u.ID,
			Email:         u.Email,
			Name:          u.Name,
			OAuthProvider: u.OAuthProvider,
			IsAdmin:       u.IsAdmin,
			CreatedAt:     u.CreatedAt,
		})

		progress, err := s.training.ListProgress(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to export progress of user %d: %w", u.ID, err)
		}
		for _, p := range progress {
			backup.Progress = append(backup.Progress, ProgressBackup{
				UserID:            p.UserID,
				ModuleSlug:        p.ModuleSlug,
				TotalSessions:     p.TotalSessions,
				BestScore:         p.BestScore,
				AverageScore:      p.AverageScore,
				CurrentStreak:     p.CurrentStreak,
				LongestStreak:     p.LongestStreak,
				CurrentDifficulty: p.CurrentDifficulty,
				LastSessionAt:     p.LastSessionAt,
			})
		}
	}

	modules, err := s.training.ListModules(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export modules: %w", err)
	}
	for _, m := range modules {
		backup.Modules = append(backup.Modules, ModuleBackup{
			ID:            m.ID,
			Slug:          m.Slug,
			Name:          m.Name,
			Description:   m.Description,
			Category:      m.Category,
			Configuration: m.Configuration,
			IsActive:      m.IsActive,
			CreatedAt:     m.CreatedAt,
		})
	}

	sessions, err := s.training.AllSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to export sessions: %w", err)
	}
	for _, ts := range sessions {
		backup.Sessions = append(backup.Sessions, SessionBackup{
			ID:               ts.ID,
			UserID:           ts.UserID,
			ModuleID:         ts.ModuleID,
			Configuration:    ts.Configuration,
			Results:          ts.Results,
			Score:            ts.Score,
			Accuracy:         ts.Accuracy,
			DurationSeconds:  ts.DurationSeconds,
			PerformanceLevel: string(ts.PerformanceLevel),
			Status:           ts.Status,
			CreatedAt:        ts.CreatedAt,
		})
	}

	return backup, nil
}

// ExportToWriter writes the export as indented JSON
func (s *BackupService) ExportToWriter(ctx context.Context, w io.Writer) error {
	backup, err := s.Export(ctx)
	if err != nil {
		return err
	}

	data, err := sonic.ConfigStd.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode backup: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write backup: %w", err)
	}

	log.WithFields(log.Fields{
		"users":    len(backup.Users),
		"modules":  len(backup.Modules),
		"sessions": len(backup.Sessions),
		"progress": len(backup.Progress),
	}).Info("Training data exported")
	return nil
}
