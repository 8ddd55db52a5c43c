package log

import (
	"bytes"
	"strings"
	"testing"

	"github.com/kataras/golog"
	"github.com/stretchr/testify/assert"
)

func TestStdLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLoggerWithWriter(&buf, LevelWarn)

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")

	out := buf.String()
	assert.NotContains(t, out, "debug message")
	assert.NotContains(t, out, "info message")
	assert.Contains(t, out, "[WARN] warn message")
	assert.Contains(t, out, "[ERROR] error message")
}

func TestStdLogger_Formatting(t *testing.T) {
	var buf bytes.Buffer
	logger := NewStdLoggerWithWriter(&buf, LevelDebug)

	logger.Info("run %s finished after %d tokens", "abc", 42)

	assert.Contains(t, buf.String(), "run abc finished after 42 tokens")
	assert.True(t, strings.HasPrefix(buf.String(), "[runstream] "))
}

func TestLevel_String(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Equal(t, "NONE", LevelNone.String())
	assert.Equal(t, "UNKNOWN(99)", Level(99).String())
}

func TestDefaultLogger_Replace(t *testing.T) {
	orig := GetDefaultLogger()
	defer SetDefaultLogger(orig)

	var buf bytes.Buffer
	SetDefaultLogger(NewStdLoggerWithWriter(&buf, LevelDebug))

	Debug("d")
	Info("i")
	Warn("w")
	Error("e")

	out := buf.String()
	assert.Contains(t, out, "[DEBUG] d")
	assert.Contains(t, out, "[INFO] i")
	assert.Contains(t, out, "[WARN] w")
	assert.Contains(t, out, "[ERROR] e")
}

func TestNopLogger(t *testing.T) {
	var _ Logger = NopLogger{}

	// Must never panic
	l := NopLogger{}
	l.Debug("x")
	l.Info("x")
	l.Warn("x")
	l.Error("x")
}

func TestGologLogger(t *testing.T) {
	glogger := golog.New()
	logger := NewGologLogger(glogger)

	assert.NotNil(t, logger)
	assert.Equal(t, LevelInfo, logger.GetLevel())

	logger.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, logger.GetLevel())

	// Should not panic at any level
	logger.Debug("debug %s", "x")
	logger.Info("info %d", 1)
	logger.Warn("warn")
	logger.Error("error %v", assert.AnError)

	logger.SetLevel(LevelNone)
	logger.Info("filtered")
}

func TestNewGolog(t *testing.T) {
	logger := NewGolog(LevelError)
	assert.Equal(t, LevelError, logger.GetLevel())

	var _ Logger = logger
}
