package handlers

import (
	"net/http"
	"strconv"
	"time"

	"brainpulse/internal/models"
	"brainpulse/internal/service"
	"brainpulse/internal/validation"
)

// TrainingHandler serves word selection, session saving and progress
type TrainingHandler struct {
	selector        *service.ContentSelector
	training        *service.TrainingService
	tracker         *service.ExclusionTracker
	exclusionWindow int
	now             func() time.Time
}

// NewTrainingHandler creates a new training handler
func NewTrainingHandler(selector *service.ContentSelector, training *service.TrainingService, tracker *service.ExclusionTracker, exclusionWindow int) *TrainingHandler {
	return &TrainingHandler{
		selector:        selector,
		training:        training,
		tracker:         tracker,
		exclusionWindow: exclusionWindow,
		now:             time.Now,
	}
}

type fetchWordsRequest struct {
	Count      int      `json:"count" validate:"required,min=1,max=50"`
	Difficulty string   `json:"difficulty" validate:"required,difficulty"`
	Categories []string `json:"categories" validate:"omitempty,dive,required"`
	MinLength  *int     `json:"minLength" validate:"omitempty,min=1,max=20"`
	MaxLength  *int     `json:"maxLength" validate:"omitempty,min=1,max=20"`
}

type wordsMetadata struct {
	Count          int       `json:"count"`
	Requested      int       `json:"requested"`
	Difficulty     string    `json:"difficulty"`
	ExcludedCount  int       `json:"excludedCount"`
	TotalAvailable int       `json:"totalAvailable"`
	FiltersRelaxed bool      `json:"filtersRelaxed"`
	RelaxationStep string    `json:"relaxationStep"`
	Timestamp      time.Time `json:"timestamp"`
}

type wordsResponse struct {
	Words    []models.Word `json:"words"`
	Metadata wordsMetadata `json:"metadata"`
}

type sessionView struct {
	ID               int64                   `json:"id"`
	Score            int                     `json:"score"`
	Accuracy         *int                    `json:"accuracy"`
	PerformanceLevel models.PerformanceLevel `json:"performanceLevel"`
	CreatedAt        time.Time               `json:"createdAt"`
}

type sessionDetailView struct {
	sessionView
	ModuleID        int64                       `json:"moduleId"`
	DurationSeconds int                         `json:"durationSeconds"`
	Configuration   models.SessionConfiguration `json:"configuration"`
	Results         models.SessionResults       `json:"results"`
}

type progressView struct {
	TotalSessions int     `json:"totalSessions"`
	BestScore     int     `json:"bestScore"`
	AverageScore  float64 `json:"averageScore"`
	CurrentStreak int     `json:"currentStreak"`
	LongestStreak int     `json:"longestStreak"`
}

type moduleProgressView struct {
	progressView
	Module            string     `json:"module"`
	ModuleName        string     `json:"moduleName"`
	CurrentDifficulty string     `json:"currentDifficulty"`
	LastSessionAt     *time.Time `json:"lastSessionAt"`
}

type saveSessionResponse struct {
	Message  string       `json:"message"`
	Session  sessionView  `json:"session"`
	Progress progressView `json:"progress"`
}

func newSessionView(s *models.TrainingSession) sessionView {
	return sessionView{
		ID:               s.ID,
		Score:            s.Score,
		Accuracy:         s.Accuracy,
		PerformanceLevel: s.PerformanceLevel,
		CreatedAt:        s.CreatedAt,
	}
}

func newProgressView(p *models.UserProgress) progressView {
	return progressView{
		TotalSessions: p.TotalSessions,
		BestScore:     p.BestScore,
		AverageScore:  p.AverageScore,
		CurrentStreak: p.CurrentStreak,
		LongestStreak: p.LongestStreak,
	}
}

// FetchWords returns a random word set for the signed-in user
func (h *TrainingHandler) FetchWords(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req fetchWordsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}
	if err := validation.Struct(req); err != nil {
		respondWithServiceError(w, "", err)
		return
	}

	selection, err := h.selector.Select(r.Context(), service.SelectOptions{
		Count:      req.Count,
		Difficulty: models.Difficulty(req.Difficulty),
		UserID:     user.ID,
		Categories: req.Categories,
		MinLength:  req.MinLength,
		MaxLength:  req.MaxLength,
	})
	if err != nil {
		respondWithServiceError(w, "Failed to select words", err)
		return
	}

	writeJSON(w, http.StatusOK, wordsResponse{
		Words: selection.Words,
		Metadata: wordsMetadata{
			Count:          selection.Metadata.Returned,
			Requested:      selection.Metadata.Requested,
			Difficulty:     req.Difficulty,
			ExcludedCount:  selection.Metadata.Excluded,
			TotalAvailable: selection.Metadata.TotalAvailable,
			FiltersRelaxed: selection.Metadata.FiltersRelaxed,
			RelaxationStep: selection.Metadata.RelaxationStep,
			Timestamp:      h.now().UTC(),
		},
	})
}

// SaveSession stores a completed exercise and returns the updated progress
func (h *TrainingHandler) SaveSession(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	var req service.SaveSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondWithError(w, http.StatusBadRequest, ErrInvalidJSON, "", err)
		return
	}

	result, err := h.training.SaveSession(r.Context(), user.ID, req)
	if err != nil {
		respondWithServiceError(w, "Failed to save training session", err)
		return
	}

	writeJSON(w, http.StatusCreated, saveSessionResponse{
		Message:  "Training session saved successfully",
		Session:  newSessionView(result.Session),
		Progress: newProgressView(result.Progress),
	})
}

// ListSessions returns the user's most recent sessions
func (h *TrainingHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondWithServiceError(w, "", validation.NewFieldError("limit", "limit must be a positive integer"))
			return
		}
		limit = n
	}

	sessions, err := h.training.RecentSessions(r.Context(), user.ID, limit)
	if err != nil {
		respondWithServiceError(w, "Failed to list sessions", err)
		return
	}

	views := make([]sessionDetailView, len(sessions))
	for i := range sessions {
		s := &sessions[i]
		views[i] = sessionDetailView{
			sessionView:     newSessionView(s),
			ModuleID:        s.ModuleID,
			DurationSeconds: s.DurationSeconds,
			Configuration:   s.Configuration,
			Results:         s.Results,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": views})
}

// GetProgress returns the user's progress in every module
func (h *TrainingHandler) GetProgress(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	progress, err := h.training.GetProgress(r.Context(), user.ID)
	if err != nil {
		respondWithServiceError(w, "Failed to load progress", err)
		return
	}

	views := make([]moduleProgressView, len(progress))
	for i := range progress {
		p := &progress[i]
		views[i] = moduleProgressView{
			progressView:      newProgressView(&p.UserProgress),
			Module:            p.ModuleSlug,
			ModuleName:        p.ModuleName,
			CurrentDifficulty: p.CurrentDifficulty,
			LastSessionAt:     p.LastSessionAt,
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"progress": views})
}

// ExclusionStats reports how much content is currently excluded for the user
func (h *TrainingHandler) ExclusionStats(w http.ResponseWriter, r *http.Request) {
	user := GetUserFromContext(r.Context())

	stats, err := h.tracker.Stats(r.Context(), user.ID, contentType(r), h.exclusionWindow)
	if err != nil {
		respondWithServiceError(w, "Failed to load exclusion stats", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// ClearExclusions deletes a user's usage history. Admins name the user with
// ?userId=, defaulting to themselves.
func (h *TrainingHandler) ClearExclusions(w http.ResponseWriter, r *http.Request) {
	userID := GetUserFromContext(r.Context()).ID
	if raw := r.URL.Query().Get("userId"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n < 1 {
			respondWithServiceError(w, "", validation.NewFieldError("userId", "userId must be a positive integer"))
			return
		}
		userID = n
	}

	deleted, err := h.tracker.ClearHistory(r.Context(), userID, contentType(r))
	if err != nil {
		respondWithServiceError(w, "Failed to clear usage history", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"userId": userID, "deleted": deleted})
}

func contentType(r *http.Request) string {
	if ct := r.URL.Query().Get("contentType"); ct != "" {
		return ct
	}
	return models.ContentTypeWords
}
