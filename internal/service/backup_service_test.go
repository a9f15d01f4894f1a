package service

import (
	"bytes"
	"context"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"brainpulse/internal/repository"
)

func TestBackupExport(t *testing.T) {
	f := newTrainingFixture(t)
	ctx := context.Background()

	req := saveRequest(t, `{"trainingType": "Word Memory", "configuration": {"difficulty": "easy", "wordCount": 10}, "results": {"score": 80, "timeSpent": 60}}`)
	_, err := f.svc.SaveSession(ctx, f.userID, req)
	require.NoError(t, err)

	backups := NewBackupService(repository.NewUserRepository(f.db), repository.NewTrainingRepository(f.db))

	var buf bytes.Buffer
	require.NoError(t, backups.ExportToWriter(ctx, &buf))
	assert.NotContains(t, buf.String(), "password")

	var decoded BackupData
	require.NoError(t, sonic.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, backupVersion, decoded.Version)
	require.Len(t, decoded.Users, 1)
	require.Len(t, decoded.Modules, 1)
	require.Len(t, decoded.Sessions, 1)
	require.Len(t, decoded.Progress, 1)

	assert.Equal(t, "word-memory", decoded.Modules[0].Slug)
	assert.Equal(t, "word-memory", decoded.Progress[0].ModuleSlug)
	assert.Equal(t, 80, decoded.Sessions[0].Score)
	assert.Equal(t, "easy", decoded.Sessions[0].Configuration.Difficulty)
	assert.Equal(t, float64(10), decoded.Sessions[0].Configuration.Extra["wordCount"])
}
