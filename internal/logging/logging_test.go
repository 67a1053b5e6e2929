package logging

import (
	"bytes"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestNew_ParsesLevel(t *testing.T) {
	l := New("debug")
	assert.Equal(t, logrus.DebugLevel, l.GetLevel())
}

func TestNew_UnknownLevelFallsBackToInfo(t *testing.T) {
	l := New("not-a-level")
	assert.Equal(t, logrus.InfoLevel, l.GetLevel())
}

func TestNew_WithOutputRedirectsLogs(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", WithOutput(&buf))
	l.Info("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestNew_WithJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", WithOutput(&buf), WithJSONFormat())
	l.WithFields(logrus.Fields{"k": "v"}).Info("structured")
	assert.Contains(t, buf.String(), `"k":"v"`)
}

func TestLevelFromEnv_DefaultsToInfo(t *testing.T) {
	t.Setenv("CLAUDE_C_LOG_LEVEL", "")
	assert.Equal(t, "info", LevelFromEnv())
}

func TestLevelFromEnv_RespectsEnv(t *testing.T) {
	t.Setenv("CLAUDE_C_LOG_LEVEL", "warn")
	assert.Equal(t, "warn", LevelFromEnv())
}
