package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"

	"github.com/GokulKGit/quiz-API/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		enabled zapcore.Level
		wantErr bool
	}{
		{"json info", config.LoggingConfig{Level: "info", Format: "json"}, zapcore.InfoLevel, false},
		{"text debug", config.LoggingConfig{Level: "debug", Format: "text"}, zapcore.DebugLevel, false},
		{"bad level", config.LoggingConfig{Level: "loud", Format: "json"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := newLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.enabled-1))
		})
	}
}

func TestResolveConfigPath(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("QUIZ_API_CONFIG", "")
	assert.Equal(t, "", resolveConfigPath(""))

	require.NoError(t, os.WriteFile(filepath.Join(dir, defaultConfigFile), []byte("{}"), 0o644))
	assert.Equal(t, defaultConfigFile, resolveConfigPath(""))

	t.Setenv("QUIZ_API_CONFIG", "/etc/quiz/env.yaml")
	assert.Equal(t, "/etc/quiz/env.yaml", resolveConfigPath(""))
	assert.Equal(t, "flag.yaml", resolveConfigPath("flag.yaml"))
}

func TestLoadConfigAndWatcher(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("defaults", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "from-env")
		cfg, err := loadConfig("")
		require.NoError(t, err)
		assert.Equal(t, "from-env", cfg.LLM.APIKey)

		w, err := newWatcher("", cfg, logger)
		require.NoError(t, err)
		defer w.Close()
		assert.Same(t, cfg, w.GetCurrentConfig())
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "quiz.yaml")
		require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))

		cfg, err := loadConfig(path)
		require.NoError(t, err)
		assert.Equal(t, 8080, cfg.Server.Port)

		w, err := newWatcher(path, cfg, logger)
		require.NoError(t, err)
		defer w.Close()
		assert.Equal(t, 8080, w.GetCurrentConfig().Server.Port)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := loadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
		assert.Error(t, err)
	})
}
