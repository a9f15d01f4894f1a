// Package scoring computes session scores and performance levels.
package scoring

import (
	"math"

	"brainpulse/internal/models"
)

// Classification splits recalled words against the presented set
type Classification struct {
	Correct   []string
	Incorrect []string
	Missed    []string
}

// Evaluation is the full result of scoring one word-memory attempt
type Evaluation struct {
	Classification
	Score            int
	Accuracy         *int
	PerformanceLevel models.PerformanceLevel
}

// Score returns round(correct/presented*100) clamped to [0,100], or 0 when
// nothing was presented.
func Score(presented, correct int) int {
	if presented <= 0 {
		return 0
	}
	return clampPercent(float64(correct) / float64(presented) * 100)
}

// Accuracy returns round(correct/(correct+incorrect)*100). It returns nil when
// neither count was tracked and 0 when both are tracked as zero.
func Accuracy(correct, incorrect *int) *int {
	if correct == nil && incorrect == nil {
		return nil
	}

	var c, i int
	if correct != nil {
		c = *correct
	}
	if incorrect != nil {
		i = *incorrect
	}

	acc := 0
	if c+i > 0 {
		acc = clampPercent(float64(c) / float64(c+i) * 100)
	}
	return &acc
}

// Level buckets a score. Lower bounds are inclusive.
func Level(score int) models.PerformanceLevel {
	switch {
	case score >= 90:
		return models.PerformanceExcellent
	case score >= 75:
		return models.PerformanceGood
	case score >= 60:
		return models.PerformanceFair
	default:
		return models.PerformancePoor
	}
}

// Classify compares recalled words to presented words case-insensitively.
// Correct and Incorrect keep the recalled spelling; Missed keeps the presented one.
func Classify(presented, recalled []string) Classification {
	presentedSet := make(map[string]struct{}, len(presented))
	for _, w := range presented {
		presentedSet[models.NormalizeWord(w)] = struct{}{}
	}

	recalledSet := make(map[string]struct{}, len(recalled))
	result := Classification{
		Correct:   []string{},
		Incorrect: []string{},
		Missed:    []string{},
	}
	for _, w := range recalled {
		norm := models.NormalizeWord(w)
		recalledSet[norm] = struct{}{}
		if _, ok := presentedSet[norm]; ok {
			result.Correct = append(result.Correct, w)
		} else {
			result.Incorrect = append(result.Incorrect, w)
		}
	}

	for _, w := range presented {
		if _, ok := recalledSet[models.NormalizeWord(w)]; !ok {
			result.Missed = append(result.Missed, w)
		}
	}

	return result
}

// Evaluate classifies a word-memory attempt and scores it
func Evaluate(presented, recalled []string) Evaluation {
	c := Classify(presented, recalled)
	correct, incorrect := len(c.Correct), len(c.Incorrect)
	score := Score(len(presented), correct)

	return Evaluation{
		Classification:   c,
		Score:            score,
		Accuracy:         Accuracy(&correct, &incorrect),
		PerformanceLevel: Level(score),
	}
}

func clampPercent(v float64) int {
	n := int(math.Round(v))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}
