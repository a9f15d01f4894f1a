package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"brainpulse/internal/database"
	"brainpulse/internal/events"
	"brainpulse/internal/models"
	"brainpulse/internal/repository"
	"brainpulse/internal/scoring"
	"brainpulse/internal/validation"
)

const (
	defaultRecentSessions = 20
	maxRecentSessions     = 100
)

var (
	ErrDuplicate        = errors.New("duplicate record")
	ErrInvalidReference = errors.New("invalid reference")
)

// StreakRefresher recomputes a user's streak after a session is stored
type StreakRefresher interface {
	RefreshStreak(ctx context.Context, userID, moduleID int64) (*models.UserProgress, error)
}

// SaveSessionRequest is a completed exercise submitted by a client
type SaveSessionRequest struct {
	TrainingType  string                      `json:"trainingType"`
	Configuration models.SessionConfiguration `json:"configuration"`
	Results       models.SessionResults       `json:"results"`
	ContentUsed   []models.Word               `json:"contentUsed,omitempty"`
}

// SaveSessionResult is the stored session with the progress it produced
type SaveSessionResult struct {
	Module   *models.TrainingModule
	Session  *models.TrainingSession
	Progress *models.UserProgress
}

// TrainingService stores completed sessions and serves progress
type TrainingService struct {
	db         *database.DB
	training   *repository.TrainingRepository
	usage      *repository.UsageRepository
	aggregator *ProgressAggregator
	streaks    StreakRefresher
	queue      Enqueuer
	publisher  events.Publisher
	now        func() time.Time
}

// NewTrainingService creates a training service. publisher may be nil.
func NewTrainingService(db *database.DB, training *repository.TrainingRepository, usage *repository.UsageRepository,
	aggregator *ProgressAggregator, queue Enqueuer, publisher events.Publisher) *TrainingService {
	return &TrainingService{
		db:         db,
		training:   training,
		usage:      usage,
		aggregator: aggregator,
		streaks:    aggregator,
		queue:      queue,
		publisher:  publisher,
		now:        time.Now,
	}
}

// DeriveSlug turns a free-text training type into a module slug
func DeriveSlug(trainingType string) string {
	return strings.Join(strings.Fields(strings.ToLower(trainingType)), "-")
}

var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{"memory", []string{"memory", "recall", "remember"}},
	{"attention", []string{"focus", "attention", "concentration"}},
	{"speed", []string{"speed", "reaction", "quick"}},
	{"problem-solving", []string{"logic", "puzzle", "reason"}},
	{"math", []string{"math", "number", "calculation"}},
	{"language", []string{"word", "language", "vocabulary", "verbal"}},
}

// InferCategory guesses a module category from keywords in its training type.
// The first matching group wins.
func InferCategory(trainingType string) string {
	t := strings.ToLower(trainingType)
	for _, group := range categoryKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(t, kw) {
				return group.category
			}
		}
	}
	return "general"
}

func validateSaveRequest(req *SaveSessionRequest) error {
	if strings.TrimSpace(req.TrainingType) == "" {
		return validation.NewFieldError("trainingType", "trainingType is required")
	}
	if DeriveSlug(req.TrainingType) == "" {
		return validation.NewFieldError("trainingType", "trainingType must contain letters or digits")
	}
	if strings.TrimSpace(req.Configuration.Difficulty) == "" {
		return validation.NewFieldError("configuration.difficulty", "configuration.difficulty is required")
	}

	r := req.Results
	if r.Score == nil {
		return validation.NewFieldError("results.score", "results.score is required")
	}
	if *r.Score < 0 || *r.Score > 100 || math.IsNaN(*r.Score) {
		return validation.NewFieldError("results.score", "results.score must be between 0 and 100")
	}
	if r.TimeSpent == nil {
		return validation.NewFieldError("results.timeSpent", "results.timeSpent is required")
	}
	if *r.TimeSpent < 0 || math.IsNaN(*r.TimeSpent) || math.IsInf(*r.TimeSpent, 0) {
		return validation.NewFieldError("results.timeSpent", "results.timeSpent must not be negative")
	}

	counts := []struct {
		field string
		value *int
	}{
		{"results.correctCount", r.CorrectCount},
		{"results.incorrectCount", r.IncorrectCount},
		{"results.missedCount", r.MissedCount},
	}
	for _, c := range counts {
		if c.value != nil && (*c.value < 0 || *c.value > models.MaxResultCount) {
			return validation.NewFieldError(c.field, "%s must be between 0 and %d", c.field, models.MaxResultCount)
		}
	}

	if raw, ok := r.Extra["recalledWords"]; ok && raw != nil {
		words, ok := stringList(raw)
		if !ok {
			return validation.NewFieldError("results.recalledWords", "results.recalledWords must be a list of words")
		}
		if err := validation.ValidateRecall(words); err != nil {
			var fe *validation.FieldError
			if errors.As(err, &fe) {
				return validation.NewFieldError("results.recalledWords", "%s", fe.Message)
			}
			return err
		}
	}

	for i, item := range req.ContentUsed {
		if strings.TrimSpace(item.Text) == "" {
			return validation.NewFieldError(fmt.Sprintf("contentUsed[%d].word", i), "word is required")
		}
	}
	return nil
}

// stringList accepts a decoded JSON array of strings or a []string
func stringList(v any) ([]string, bool) {
	switch list := v.(type) {
	case []string:
		return list, true
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// SaveSession validates and stores a completed session. The session, the
// progress update and the content usage are written in one transaction. The
// streak refresh and the completion event follow the commit and never fail
// the save.
func (s *TrainingService) SaveSession(ctx context.Context, userID int64, req SaveSessionRequest) (*SaveSessionResult, error) {
	if userID <= 0 {
		return nil, validation.NewFieldError("userId", "user is required")
	}
	if err := validateSaveRequest(&req); err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.TrainingType)
	module, err := s.training.FindOrCreateModule(ctx, &models.TrainingModule{
		Slug:        DeriveSlug(name),
		Name:        name,
		Description: fmt.Sprintf("%s training", name),
		Category:    InferCategory(name),
	})
	if err != nil {
		return nil, s.mapPersistError("find training module", err)
	}

	now := s.now().UTC()
	score := int(math.Round(*req.Results.Score))
	session := &models.TrainingSession{
		UserID:           userID,
		ModuleID:         module.ID,
		Configuration:    req.Configuration,
		Results:          req.Results,
		Score:            score,
		Accuracy:         scoring.Accuracy(req.Results.CorrectCount, req.Results.IncorrectCount),
		DurationSeconds:  int(math.Round(*req.Results.TimeSpent)),
		PerformanceLevel: scoring.Level(score),
		Status:           models.SessionStatusCompleted,
		CreatedAt:        now,
	}

	var progress *models.UserProgress
	err = s.db.WithTx(ctx, func(tx *database.Tx) error {
		if err := s.training.WithTx(tx).CreateSession(ctx, session); err != nil {
			return err
		}

		p, err := s.aggregator.RecordSession(ctx, tx, userID, module.ID, score, req.Configuration.Difficulty)
		if err != nil {
			return err
		}
		progress = p

		if len(req.ContentUsed) > 0 {
			if _, err := s.usage.WithTx(tx).Insert(ctx, userID, models.ContentTypeWords, contentItems(req.ContentUsed), now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.mapPersistError("save training session", err)
	}

	if refreshed := s.refreshStreak(ctx, userID, module.ID); refreshed != nil {
		progress = refreshed
	}
	s.publishCompleted(module, session, progress)

	return &SaveSessionResult{Module: module, Session: session, Progress: progress}, nil
}

func contentItems(used []models.Word) []models.Word {
	items := make([]models.Word, len(used))
	for i, w := range used {
		items[i] = models.Word{Text: strings.TrimSpace(w.Text), Category: w.Category, Length: w.Length}
		if items[i].Length <= 0 {
			items[i].Length = utf8.RuneCountInString(items[i].Text)
		}
	}
	return items
}

// refreshStreak runs the streak refresh once inline and queues a retry when
// it fails. It returns the refreshed progress or nil.
func (s *TrainingService) refreshStreak(ctx context.Context, userID, moduleID int64) *models.UserProgress {
	progress, err := s.streaks.RefreshStreak(ctx, userID, moduleID)
	if err == nil {
		return progress
	}

	entry := log.WithFields(log.Fields{"user_id": userID, "module_id": moduleID})
	entry.WithError(err).Warn("Streak refresh failed, queueing retry")

	qerr := s.queue.Enqueue("refresh-streak", func(ctx context.Context) error {
		_, err := s.streaks.RefreshStreak(ctx, userID, moduleID)
		return err
	})
	if qerr != nil {
		entry.WithError(qerr).Error("Streak refresh dropped")
	}
	return nil
}

func (s *TrainingService) publishCompleted(module *models.TrainingModule, session *models.TrainingSession, progress *models.UserProgress) {
	if s.publisher == nil {
		return
	}

	event := events.SessionCompleted{
		SessionID:        session.ID,
		UserID:           session.UserID,
		ModuleSlug:       module.Slug,
		Score:            session.Score,
		Accuracy:         session.Accuracy,
		PerformanceLevel: string(session.PerformanceLevel),
		CompletedAt:      session.CreatedAt,
	}
	if progress != nil {
		event.TotalSessions = progress.TotalSessions
	}

	err := s.queue.Enqueue("publish-session-completed", func(ctx context.Context) error {
		return s.publisher.Publish(ctx, events.SessionCompletedType, event)
	})
	if err != nil {
		log.WithField("session_id", session.ID).WithError(err).Warn("Session event dropped")
	}
}

func (s *TrainingService) mapPersistError(op string, err error) error {
	switch {
	case errors.Is(err, database.ErrUniqueViolation):
		return fmt.Errorf("%s: %w: %v", op, ErrDuplicate, err)
	case errors.Is(err, database.ErrForeignKeyViolation):
		return fmt.Errorf("%s: %w: %v", op, ErrInvalidReference, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// GetProgress lists a user's progress for every module they trained
func (s *TrainingService) GetProgress(ctx context.Context, userID int64) ([]models.ModuleProgress, error) {
	progress, err := s.training.ListProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list progress: %w", err)
	}
	return progress, nil
}

// RecentSessions returns a user's newest sessions. limit defaults to 20 and
// is capped at 100.
func (s *TrainingService) RecentSessions(ctx context.Context, userID int64, limit int) ([]models.TrainingSession, error) {
	if limit <= 0 {
		limit = defaultRecentSessions
	}
	limit = min(limit, maxRecentSessions)

	sessions, err := s.training.RecentSessions(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}
