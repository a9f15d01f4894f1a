package models

import (
	"fmt"
	"math"
	"time"

	"github.com/bytedance/sonic"
)

// PerformanceLevel buckets a session score
type PerformanceLevel string

const (
	PerformanceExcellent PerformanceLevel = "excellent"
	PerformanceGood      PerformanceLevel = "good"
	PerformanceFair      PerformanceLevel = "fair"
	PerformancePoor      PerformanceLevel = "poor"
)

const (
	SessionStatusCompleted = "completed"

	DefaultDifficulty = "medium"
)

// TrainingModule is a catalog entry for one kind of exercise
type TrainingModule struct {
	ID            int64
	Slug          string
	Name          string
	Description   string
	Category      string
	Configuration map[string]any
	IsActive      bool
	CreatedAt     time.Time
}

// TrainingSession is one completed exercise attempt
type TrainingSession struct {
	ID               int64
	UserID           int64
	ModuleID         int64
	Configuration    SessionConfiguration
	Results          SessionResults
	Score            int
	Accuracy         *int
	DurationSeconds  int
	PerformanceLevel PerformanceLevel
	Status           string
	CreatedAt        time.Time
}

// UserProgress holds running statistics for a (user, module) pair
type UserProgress struct {
	ID                int64
	UserID            int64
	ModuleID          int64
	TotalSessions     int
	BestScore         int
	AverageScore      float64
	CurrentStreak     int
	LongestStreak     int
	CurrentDifficulty string
	LastSessionAt     *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// ModuleProgress is a progress row joined with its module
type ModuleProgress struct {
	UserProgress
	ModuleSlug string
	ModuleName string
}

// SessionConfiguration is the exercise configuration submitted with a session.
// Fields other than difficulty are kept in Extra and round-trip unchanged.
type SessionConfiguration struct {
	Difficulty string
	Extra      map[string]any
}

func (c SessionConfiguration) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(c.Extra)+1)
	for k, v := range c.Extra {
		out[k] = v
	}
	if c.Difficulty != "" {
		out["difficulty"] = c.Difficulty
	}
	return sonic.Marshal(out)
}

func (c *SessionConfiguration) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}

	c.Difficulty = ""
	if v, ok := raw["difficulty"]; ok {
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("configuration.difficulty must be a string")
		}
		c.Difficulty = s
		delete(raw, "difficulty")
	}
	c.Extra = raw
	return nil
}

// SessionResults is the result payload submitted with a session. Score and
// TimeSpent are required; the counts are optional and distinguish
// "not tracked" (nil) from zero.
type SessionResults struct {
	Score          *float64
	TimeSpent      *float64
	CorrectCount   *int
	IncorrectCount *int
	MissedCount    *int
	Extra          map[string]any
}

func (r SessionResults) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+5)
	for k, v := range r.Extra {
		out[k] = v
	}
	if r.Score != nil {
		out["score"] = *r.Score
	}
	if r.TimeSpent != nil {
		out["timeSpent"] = *r.TimeSpent
	}
	if r.CorrectCount != nil {
		out["correctCount"] = *r.CorrectCount
	}
	if r.IncorrectCount != nil {
		out["incorrectCount"] = *r.IncorrectCount
	}
	if r.MissedCount != nil {
		out["missedCount"] = *r.MissedCount
	}
	return sonic.Marshal(out)
}

func (r *SessionResults) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if r.Score, err = takeNumber(raw, "score"); err != nil {
		return err
	}
	if r.TimeSpent, err = takeNumber(raw, "timeSpent"); err != nil {
		return err
	}
	if r.CorrectCount, err = takeCount(raw, "correctCount"); err != nil {
		return err
	}
	if r.IncorrectCount, err = takeCount(raw, "incorrectCount"); err != nil {
		return err
	}
	if r.MissedCount, err = takeCount(raw, "missedCount"); err != nil {
		return err
	}
	r.Extra = raw
	return nil
}

// takeNumber removes key from raw and returns it as a number, nil when absent
func takeNumber(raw map[string]any, key string) (*float64, error) {
	v, ok := raw[key]
	if !ok {
		return nil, nil
	}
	delete(raw, key)
	if v == nil {
		return nil, nil
	}
	f, ok := v.(float64)
	if !ok {
		return nil, fmt.Errorf("results.%s must be a number", key)
	}
	return &f, nil
}

// MaxResultCount bounds the word counts a session result may report
const MaxResultCount = 10000

func takeCount(raw map[string]any, key string) (*int, error) {
	f, err := takeNumber(raw, key)
	if err != nil || f == nil {
		return nil, err
	}
	if *f < 0 {
		return nil, fmt.Errorf("results.%s must not be negative", key)
	}
	if *f > MaxResultCount {
		return nil, fmt.Errorf("results.%s must be at most %d", key, MaxResultCount)
	}
	n := int(math.Round(*f))
	return &n, nil
}
