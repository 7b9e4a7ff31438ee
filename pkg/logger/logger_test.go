package logger

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLogger_FallsBackToGlobal(t *testing.T) {
	entry := GetLogger(context.Background())
	require.NotNil(t, entry)
	assert.Equal(t, L.Logger, entry.Logger)
}

func TestWithLogger_RoundTrip(t *testing.T) {
	base := logrus.NewEntry(logrus.New()).WithField("plugin", "alpha")
	ctx := WithLogger(context.Background(), base)

	entry := GetLogger(ctx)
	assert.Equal(t, "alpha", entry.Data["plugin"])
}

func TestSetLogLevel(t *testing.T) {
	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	require.NoError(t, SetLogLevel("info"))
	assert.Equal(t, logrus.InfoLevel, L.Logger.GetLevel())

	assert.Error(t, SetLogLevel("loud"))
}

func TestSetLogFormat(t *testing.T) {
	SetLogFormat("json")
	_, isJSON := L.Logger.Formatter.(*logrus.JSONFormatter)
	assert.True(t, isJSON)

	SetLogFormat("text")
	_, isText := L.Logger.Formatter.(*logrus.TextFormatter)
	assert.True(t, isText)
}
