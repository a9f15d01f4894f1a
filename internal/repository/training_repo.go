package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"brainpulse/internal/database"
	"brainpulse/internal/models"
)

// ErrProgressNotFound is returned when a (user, module) pair has no progress row
var ErrProgressNotFound = errors.New("progress not found")

const progressColumns = `id, user_id, module_id, total_sessions, best_score, average_score,
	current_streak, longest_streak, current_difficulty, last_session_at, created_at, updated_at`

const sessionColumns = `id, user_id, module_id, configuration, results, score, accuracy,
	duration_seconds, performance_level, status, created_at`

// TrainingRepository handles training modules, sessions and progress rows
type TrainingRepository struct {
	db database.DBTX
}

// NewTrainingRepository creates a new training repository
func NewTrainingRepository(db database.DBTX) *TrainingRepository {
	return &TrainingRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *TrainingRepository) WithTx(tx *database.Tx) *TrainingRepository {
	return &TrainingRepository{db: tx}
}

// FindOrCreateModule inserts the module unless its slug already exists and
// returns the stored row. Concurrent callers converge on the same row.
func (r *TrainingRepository) FindOrCreateModule(ctx context.Context, m *models.TrainingModule) (*models.TrainingModule, error) {
	configuration := m.Configuration
	if configuration == nil {
		configuration = map[string]any{}
	}
	payload, err := sonic.Marshal(configuration)
	if err != nil {
		return nil, fmt.Errorf("failed to encode module configuration: %w", err)
	}

	query := database.InsertIgnore(r.db.GetDialect(), "training_modules",
		"(slug, name, description, category, configuration, is_active, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if _, err := r.db.ExecContext(ctx, query, m.Slug, m.Name, m.Description, m.Category, string(payload), true, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("failed to create training module: %w", err)
	}

	module, err := r.GetModuleBySlug(ctx, m.Slug)
	if err != nil {
		return nil, err
	}
	if module == nil {
		return nil, fmt.Errorf("training module %q missing after insert", m.Slug)
	}
	return module, nil
}

// GetModuleBySlug retrieves a module by slug, nil when absent
func (r *TrainingRepository) GetModuleBySlug(ctx context.Context, slug string) (*models.TrainingModule, error) {
	query := `
		SELECT id, slug, name, description, category, configuration, is_active, created_at
		FROM training_modules
		WHERE slug = ?
	`
	m := &models.TrainingModule{}
	var configuration []byte
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&m.ID, &m.Slug, &m.Name, &m.Description, &m.Category, &configuration, &m.IsActive, &m.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get training module: %w", err)
	}
	if len(configuration) > 0 {
		if err := sonic.Unmarshal(configuration, &m.Configuration); err != nil {
			return nil, fmt.Errorf("failed to decode module configuration: %w", err)
		}
	}
	return m, nil
}

// ListModules returns every training module ordered by slug
func (r *TrainingRepository) ListModules(ctx context.Context) ([]models.TrainingModule, error) {
	query := "SELECT id, slug, name, description, category, configuration, is_active, created_at FROM training_modules ORDER BY slug"
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query training modules: %w", err)
	}
	defer rows.Close()

	var modules []models.TrainingModule
	for rows.Next() {
		var m models.TrainingModule
		var configuration []byte
		if err := rows.Scan(&m.ID, &m.Slug, &m.Name, &m.Description, &m.Category, &configuration, &m.IsActive, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan training module: %w", err)
		}
		if len(configuration) > 0 {
			if err := sonic.Unmarshal(configuration, &m.Configuration); err != nil {
				return nil, fmt.Errorf("failed to decode module configuration: %w", err)
			}
		}
		modules = append(modules, m)
	}
	return modules, rows.Err()
}

// CreateSession inserts a completed session and sets its ID
func (r *TrainingRepository) CreateSession(ctx context.Context, s *models.TrainingSession) error {
	configuration, err := sonic.Marshal(s.Configuration)
	if err != nil {
		return fmt.Errorf("failed to encode session configuration: %w", err)
	}
	results, err := sonic.Marshal(s.Results)
	if err != nil {
		return fmt.Errorf("failed to encode session results: %w", err)
	}

	var accuracy sql.NullInt64
	if s.Accuracy != nil {
		accuracy = sql.NullInt64{Int64: int64(*s.Accuracy), Valid: true}
	}

	query := `
		INSERT INTO training_sessions (user_id, module_id, configuration, results, score, accuracy,
			duration_seconds, performance_level, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	id, err := r.db.ExecReturningID(ctx, query,
		s.UserID, s.ModuleID, string(configuration), string(results), s.Score, accuracy,
		s.DurationSeconds, string(s.PerformanceLevel), s.Status, s.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create training session: %w", classify(err))
	}

	s.ID = id
	return nil
}

// RecentSessions returns a user's newest sessions across all modules
func (r *TrainingRepository) RecentSessions(ctx context.Context, userID int64, limit int) ([]models.TrainingSession, error) {
	query := "SELECT " + sessionColumns + " FROM training_sessions WHERE user_id = ? ORDER BY created_at DESC, id DESC LIMIT ?"
	return r.querySessions(ctx, query, userID, limit)
}

// AllSessions returns every stored session ordered by ID
func (r *TrainingRepository) AllSessions(ctx context.Context) ([]models.TrainingSession, error) {
	return r.querySessions(ctx, "SELECT "+sessionColumns+" FROM training_sessions ORDER BY id")
}

func (r *TrainingRepository) querySessions(ctx context.Context, query string, args ...interface{}) ([]models.TrainingSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query training sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.TrainingSession
	for rows.Next() {
		var s models.TrainingSession
		var configuration, results []byte
		var accuracy sql.NullInt64
		var level string
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.ModuleID, &configuration, &results, &s.Score, &accuracy,
			&s.DurationSeconds, &level, &s.Status, &s.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan training session: %w", err)
		}
		if err := sonic.Unmarshal(configuration, &s.Configuration); err != nil {
			return nil, fmt.Errorf("failed to decode configuration of session %d: %w", s.ID, err)
		}
		if err := sonic.Unmarshal(results, &s.Results); err != nil {
			return nil, fmt.Errorf("failed to decode results of session %d: %w", s.ID, err)
		}
		if accuracy.Valid {
			a := int(accuracy.Int64)
			s.Accuracy = &a
		}
		s.PerformanceLevel = models.PerformanceLevel(level)
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

// SessionTimes returns the creation times of a user's sessions for a module, newest first
func (r *TrainingRepository) SessionTimes(ctx context.Context, userID, moduleID int64) ([]time.Time, error) {
	query := "SELECT created_at FROM training_sessions WHERE user_id = ? AND module_id = ? ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, query, userID, moduleID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session times: %w", err)
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan session time: %w", err)
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

// EnsureProgress creates a zeroed progress row for the pair unless one exists
func (r *TrainingRepository) EnsureProgress(ctx context.Context, userID, moduleID int64, now time.Time) error {
	query := database.InsertIgnore(r.db.GetDialect(), "user_progress",
		"(user_id, module_id, current_difficulty, created_at, updated_at) VALUES (?, ?, ?, ?, ?)")
	if _, err := r.db.ExecContext(ctx, query, userID, moduleID, models.DefaultDifficulty, now.UTC(), now.UTC()); err != nil {
		return fmt.Errorf("failed to ensure progress row: %w", classify(err))
	}
	return nil
}

// GetProgressForUpdate reads a progress row and locks it for the rest of the transaction
func (r *TrainingRepository) GetProgressForUpdate(ctx context.Context, userID, moduleID int64) (*models.UserProgress, error) {
	query := "SELECT " + progressColumns + " FROM user_progress WHERE user_id = ? AND module_id = ?" + r.db.GetDialect().LockForUpdate()
	return r.getProgress(ctx, query, userID, moduleID)
}

// GetProgress reads a progress row
func (r *TrainingRepository) GetProgress(ctx context.Context, userID, moduleID int64) (*models.UserProgress, error) {
	query := "SELECT " + progressColumns + " FROM user_progress WHERE user_id = ? AND module_id = ?"
	return r.getProgress(ctx, query, userID, moduleID)
}

func (r *TrainingRepository) getProgress(ctx context.Context, query string, args ...interface{}) (*models.UserProgress, error) {
	p := &models.UserProgress{}
	var lastSessionAt sql.NullTime
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&p.ID, &p.UserID, &p.ModuleID, &p.TotalSessions, &p.BestScore, &p.AverageScore,
		&p.CurrentStreak, &p.LongestStreak, &p.CurrentDifficulty, &lastSessionAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progress: %w", err)
	}
	if lastSessionAt.Valid {
		t := lastSessionAt.Time
		p.LastSessionAt = &t
	}
	return p, nil
}

// UpdateProgress writes the running statistics of a progress row
func (r *TrainingRepository) UpdateProgress(ctx context.Context, p *models.UserProgress) error {
	var lastSessionAt interface{}
	if p.LastSessionAt != nil {
		lastSessionAt = p.LastSessionAt.UTC()
	}

	query := `
		UPDATE user_progress
		SET total_sessions = ?, best_score = ?, average_score = ?, current_difficulty = ?,
			last_session_at = ?, updated_at = ?
		WHERE id = ?
	`
	_, err := r.db.ExecContext(ctx, query,
		p.TotalSessions, p.BestScore, p.AverageScore, p.CurrentDifficulty,
		lastSessionAt, p.UpdatedAt.UTC(), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update progress: %w", classify(err))
	}
	return nil
}

// UpdateStreak sets the current streak and raises the longest streak when exceeded
func (r *TrainingRepository) UpdateStreak(ctx context.Context, userID, moduleID int64, streak int, now time.Time) error {
	query := `
		UPDATE user_progress
		SET current_streak = ?,
			longest_streak = CASE WHEN longest_streak < ? THEN ? ELSE longest_streak END,
			updated_at = ?
		WHERE user_id = ? AND module_id = ?
	`
	result, err := r.db.ExecContext(ctx, query, streak, streak, streak, now.UTC(), userID, moduleID)
	if err != nil {
		return fmt.Errorf("failed to update streak: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read streak update result: %w", err)
	}
	if n == 0 {
		return ErrProgressNotFound
	}
	return nil
}

// ListProgress returns a user's progress rows joined with their modules
func (r *TrainingRepository) ListProgress(ctx context.Context, userID int64) ([]models.ModuleProgress, error) {
	query := `
		SELECT p.id, p.user_id, p.module_id, p.total_sessions, p.best_score, p.average_score,
			p.current_streak, p.longest_streak, p.current_difficulty, p.last_session_at, p.created_at, p.updated_at,
			m.slug, m.name
		FROM user_progress p
		JOIN training_modules m ON m.id = p.module_id
		WHERE p.user_id = ?
		ORDER BY m.slug
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query progress: %w", err)
	}
	defer rows.Close()

	var list []models.ModuleProgress
	for rows.Next() {
		var mp models.ModuleProgress
		var lastSessionAt sql.NullTime
		if err := rows.Scan(
			&mp.ID, &mp.UserID, &mp.ModuleID, &mp.TotalSessions, &mp.BestScore, &mp.AverageScore,
			&mp.CurrentStreak, &mp.LongestStreak, &mp.CurrentDifficulty, &lastSessionAt, &mp.CreatedAt, &mp.UpdatedAt,
			&mp.ModuleSlug, &mp.ModuleName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan progress: %w", err)
		}
		if lastSessionAt.Valid {
			t := lastSessionAt.Time
			mp.LastSessionAt = &t
		}
		list = append(list, mp)
	}
	return list, rows.Err()
}

// classify replaces driver constraint errors with the database sentinels
func classify(err error) error {
	switch {
	case database.IsUniqueViolation(err):
		return fmt.Errorf("%w: %v", database.ErrUniqueViolation, err)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: %v", database.ErrForeignKeyViolation, err)
	default:
		return err
	}
}
