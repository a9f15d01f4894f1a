package models

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionIsExpired(t *testing.T) {
	tests := []struct {
		name      string
		expiresAt time.Time
		want      bool
	}{
		{
			name:      "future expiration",
			expiresAt: time.Now().Add(1 * time.Hour),
			want:      false,
		},
		{
			name:      "just expired",
			expiresAt: time.Now().Add(-1 * time.Second),
			want:      true,
		},
		{
			name:      "expired yesterday",
			expiresAt: time.Now().Add(-24 * time.Hour),
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := Session{
				ID:        "test-session",
				UserID:    1,
				ExpiresAt: tt.expiresAt,
				CreatedAt: time.Now().Add(-1 * time.Hour),
			}
			assert.Equal(t, tt.want, session.IsExpired())
		})
	}
}

func TestPasswordResetTokenIsExpired(t *testing.T) {
	token := PasswordResetToken{ExpiresAt: time.Now().Add(-time.Minute)}
	assert.True(t, token.IsExpired())

	token.ExpiresAt = time.Now().Add(time.Hour)
	assert.False(t, token.IsExpired())
}

func TestNormalizeWord(t *testing.T) {
	assert.Equal(t, "apple", NormalizeWord("  Apple "))
	assert.Equal(t, "", NormalizeWord("   "))
}

func TestSessionConfigurationKeepsExtraFields(t *testing.T) {
	var cfg SessionConfiguration
	err := sonic.Unmarshal([]byte(`{"difficulty":"hard","wordCount":20,"sequential":true}`), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "hard", cfg.Difficulty)
	assert.Equal(t, map[string]any{"wordCount": float64(20), "sequential": true}, cfg.Extra)

	data, err := sonic.Marshal(cfg)
	require.NoError(t, err)
	assert.JSONEq(t, `{"difficulty":"hard","wordCount":20,"sequential":true}`, string(data))
}

func TestSessionConfigurationRejectsNonStringDifficulty(t *testing.T) {
	var cfg SessionConfiguration
	err := sonic.Unmarshal([]byte(`{"difficulty":3}`), &cfg)
	assert.Error(t, err)
}

func TestSessionResultsUnmarshal(t *testing.T) {
	var results SessionResults
	err := sonic.Unmarshal([]byte(`{"score":40,"timeSpent":61.5,"correctCount":2,"incorrectCount":1,"recalledWords":["apple"]}`), &results)
	require.NoError(t, err)

	require.NotNil(t, results.Score)
	assert.Equal(t, 40.0, *results.Score)
	require.NotNil(t, results.TimeSpent)
	assert.Equal(t, 61.5, *results.TimeSpent)
	require.NotNil(t, results.CorrectCount)
	assert.Equal(t, 2, *results.CorrectCount)
	require.NotNil(t, results.IncorrectCount)
	assert.Equal(t, 1, *results.IncorrectCount)
	assert.Nil(t, results.MissedCount)
	assert.Equal(t, []any{"apple"}, results.Extra["recalledWords"])
}

func TestSessionResultsMissingFieldsStayNil(t *testing.T) {
	var results SessionResults
	require.NoError(t, sonic.Unmarshal([]byte(`{"notes":"x"}`), &results))

	assert.Nil(t, results.Score)
	assert.Nil(t, results.TimeSpent)
	assert.Nil(t, results.CorrectCount)
}

func TestSessionResultsRejectsBadTypes(t *testing.T) {
	var results SessionResults
	assert.Error(t, sonic.Unmarshal([]byte(`{"score":"high"}`), &results))
	assert.Error(t, sonic.Unmarshal([]byte(`{"score":10,"correctCount":-1}`), &results))
	assert.Error(t, sonic.Unmarshal([]byte(`{"score":10,"incorrectCount":1e300}`), &results))
	assert.Error(t, sonic.Unmarshal([]byte(`{"score":10,"missedCount":10001}`), &results))
	assert.NoError(t, sonic.Unmarshal([]byte(`{"score":10,"missedCount":10000}`), &results))
}
