package logging

import (
	"bytes"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()

	require.NoError(t, setup(logger, &buf, "debug", "json"))
	logger.WithField("user_id", 7).Debug("hello")

	assert.Contains(t, buf.String(), `"user_id":7`)
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}

func TestSetupLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New()

	require.NoError(t, setup(logger, &buf, "warn", "text"))
	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestSetupRejectsBadValues(t *testing.T) {
	assert.Error(t, setup(log.New(), &bytes.Buffer{}, "loud", "text"))
	assert.Error(t, setup(log.New(), &bytes.Buffer{}, "info", "xml"))
}
