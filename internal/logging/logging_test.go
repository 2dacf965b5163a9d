package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"zeiterfassung-backend/config"
)

func TestNewWritesRotatingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := New(config.LogConfig{Level: "debug", Format: "json", Output: "file", File: path, MaxSizeMB: 1})
	require.NoError(t, err)
	assert.Equal(t, logrus.DebugLevel, log.GetLevel())

	log.WithField("run_id", "abc").Info("sweep finished")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"sweep finished"`)
	assert.Contains(t, string(data), `"run_id":"abc"`)
}

func TestNewFallsBackToInfo(t *testing.T) {
	log, err := New(config.LogConfig{Level: "loud", Output: "stdout"})
	require.NoError(t, err)
	assert.Equal(t, logrus.InfoLevel, log.GetLevel())
}

func TestGormLevel(t *testing.T) {
	testCases := []struct {
		name  string
		level logrus.Level
		want  logger.LogLevel
	}{
		{name: "debug", level: logrus.DebugLevel, want: logger.Info},
		{name: "info", level: logrus.InfoLevel, want: logger.Warn},
		{name: "warn", level: logrus.WarnLevel, want: logger.Warn},
		{name: "error", level: logrus.ErrorLevel, want: logger.Error},
		{name: "panic", level: logrus.PanicLevel, want: logger.Silent},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, GormLevel(tc.level))
		})
	}
}
