package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainpulse/internal/models"
)

func intPtr(n int) *int { return &n }

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		presented int
		correct   int
		want      int
	}{
		{"nothing presented", 0, 0, 0},
		{"all correct", 10, 10, 100},
		{"two of five", 5, 2, 40},
		{"rounds half up", 8, 5, 63},
		{"rounds down", 3, 1, 33},
		{"clamped above", 2, 5, 100},
		{"clamped below", 5, -1, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Score(tt.presented, tt.correct))
		})
	}
}

func TestAccuracy(t *testing.T) {
	assert.Nil(t, Accuracy(nil, nil))

	got := Accuracy(intPtr(0), intPtr(0))
	require.NotNil(t, got)
	assert.Equal(t, 0, *got)

	got = Accuracy(intPtr(2), intPtr(1))
	require.NotNil(t, got)
	assert.Equal(t, 67, *got)

	got = Accuracy(intPtr(4), nil)
	require.NotNil(t, got)
	assert.Equal(t, 100, *got)

	got = Accuracy(nil, intPtr(3))
	require.NotNil(t, got)
	assert.Equal(t, 0, *got)
}

func TestLevelBoundaries(t *testing.T) {
	tests := []struct {
		score int
		want  models.PerformanceLevel
	}{
		{100, models.PerformanceExcellent},
		{90, models.PerformanceExcellent},
		{89, models.PerformanceGood},
		{75, models.PerformanceGood},
		{74, models.PerformanceFair},
		{60, models.PerformanceFair},
		{59, models.PerformancePoor},
		{0, models.PerformancePoor},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Level(tt.score), "score %d", tt.score)
	}
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	c := Classify([]string{"Apple", "banana"}, []string{" apple", "BANANA", "kiwi"})

	assert.Equal(t, []string{" apple", "BANANA"}, c.Correct)
	assert.Equal(t, []string{"kiwi"}, c.Incorrect)
	assert.Empty(t, c.Missed)
}

func TestEvaluateEndToEnd(t *testing.T) {
	presented := []string{"apple", "banana", "cherry", "dragon", "elephant"}
	recalled := []string{"apple", "banana", "orange"}

	e := Evaluate(presented, recalled)

	assert.Equal(t, []string{"apple", "banana"}, e.Correct)
	assert.Equal(t, []string{"orange"}, e.Incorrect)
	assert.Equal(t, []string{"cherry", "dragon", "elephant"}, e.Missed)
	assert.Equal(t, 40, e.Score)
	require.NotNil(t, e.Accuracy)
	assert.Equal(t, 67, *e.Accuracy)
	assert.Equal(t, models.PerformancePoor, e.PerformanceLevel)
}

func TestEvaluateNothingRecalled(t *testing.T) {
	e := Evaluate([]string{"apple"}, nil)

	assert.Equal(t, 0, e.Score)
	require.NotNil(t, e.Accuracy)
	assert.Equal(t, 0, *e.Accuracy)
	assert.Equal(t, []string{"apple"}, e.Missed)
}
