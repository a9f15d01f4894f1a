package trainer

import (
	"time"

	"brainpulse/internal/models"
	"brainpulse/internal/validation"
)

// Custom session bounds
const (
	MinCustomWords        = 5
	MaxCustomWords        = 50
	MinCustomStudySeconds = 10
	MaxCustomStudySeconds = 300
	MinItemSeconds        = 1
	MaxItemSeconds        = 10
)

type preset struct {
	words        int
	studySeconds int
}

var presets = map[models.Difficulty]preset{
	models.DifficultyEasy:   {words: 10, studySeconds: 60},
	models.DifficultyMedium: {words: 15, studySeconds: 45},
	models.DifficultyHard:   {words: 20, studySeconds: 30},
}

// Config describes one word memory exercise
type Config struct {
	Difficulty models.Difficulty
	Custom     bool
	WordCount  int
	StudyTime  time.Duration

	// Sequential shows one word at a time. With ItemTime zero the user
	// advances manually, otherwise a timer advances every ItemTime.
	Sequential bool
	ItemTime   time.Duration

	Categories []string
	MinLength  *int
	MaxLength  *int
}

// PresetConfig returns the fixed configuration of a difficulty
func PresetConfig(difficulty models.Difficulty) (Config, error) {
	p, ok := presets[difficulty]
	if !ok {
		return Config{}, validation.NewFieldError("difficulty", "unknown difficulty %q", difficulty)
	}
	return Config{
		Difficulty: difficulty,
		WordCount:  p.words,
		StudyTime:  time.Duration(p.studySeconds) * time.Second,
	}, nil
}

// CustomConfig returns a configuration with a user-chosen word count and study time
func CustomConfig(difficulty models.Difficulty, words, studySeconds int) (Config, error) {
	cfg := Config{
		Difficulty: difficulty,
		Custom:     true,
		WordCount:  words,
		StudyTime:  time.Duration(studySeconds) * time.Second,
	}
	return cfg, cfg.Validate()
}

// WithSequential switches to one-word-at-a-time reveal. itemSeconds zero
// means manual advance.
func (c Config) WithSequential(itemSeconds int) (Config, error) {
	c.Sequential = true
	c.ItemTime = time.Duration(itemSeconds) * time.Second
	return c, c.Validate()
}

// Validate checks the configuration bounds
func (c Config) Validate() error {
	if _, ok := presets[c.Difficulty]; !ok {
		return validation.NewFieldError("difficulty", "unknown difficulty %q", c.Difficulty)
	}

	if c.Custom {
		if c.WordCount < MinCustomWords || c.WordCount > MaxCustomWords {
			return validation.NewFieldError("wordCount", "word count must be between %d and %d", MinCustomWords, MaxCustomWords)
		}
		secs := int(c.StudyTime / time.Second)
		if c.StudyTime%time.Second != 0 || secs < MinCustomStudySeconds || secs > MaxCustomStudySeconds {
			return validation.NewFieldError("studyTime", "study time must be between %d and %d seconds", MinCustomStudySeconds, MaxCustomStudySeconds)
		}
	} else {
		p := presets[c.Difficulty]
		if c.WordCount != p.words || c.StudyTime != time.Duration(p.studySeconds)*time.Second {
			return validation.NewFieldError("difficulty", "%s preset is %d words in %d seconds", c.Difficulty, p.words, p.studySeconds)
		}
	}

	if c.ItemTime != 0 {
		if !c.Sequential {
			return validation.NewFieldError("itemTime", "item time requires sequential reveal")
		}
		secs := int(c.ItemTime / time.Second)
		if c.ItemTime%time.Second != 0 || secs < MinItemSeconds || secs > MaxItemSeconds {
			return validation.NewFieldError("itemTime", "item time must be between %d and %d seconds", MinItemSeconds, MaxItemSeconds)
		}
	}

	if c.MinLength != nil && c.MaxLength != nil && *c.MinLength > *c.MaxLength {
		return validation.NewFieldError("minLength", "minLength must not exceed maxLength")
	}
	return nil
}

// ManualAdvance reports whether words are advanced by the user
func (c Config) ManualAdvance() bool {
	return c.Sequential && c.ItemTime == 0
}
