package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, level LogLevel, format string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := NewLogger(Config{Level: level, Output: &buf, Format: format})
	require.NoError(t, err)
	return logger, &buf
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   LogLevel
	}{
		{name: "default config", config: Config{Level: LogLevelNormal, Format: "text"}, want: LogLevelNormal},
		{name: "verbose json", config: Config{Level: LogLevelVerbose, Format: "json"}, want: LogLevelVerbose},
		{name: "quiet config", config: Config{Level: LogLevelQuiet, Format: "text"}, want: LogLevelQuiet},
		{name: "empty level", config: Config{Format: "text"}, want: LogLevelNormal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf

			logger, err := NewLogger(tt.config)
			require.NoError(t, err)
			assert.Equal(t, tt.want, logger.GetLevel())
		})
	}
}

func TestNewLoggerWithLogFile(t *testing.T) {
	path := t.TempDir() + "/cafe-pos.log"
	var buf bytes.Buffer

	logger, err := NewLogger(Config{Level: LogLevelNormal, Output: &buf, LogFile: path})
	require.NoError(t, err)

	logger.Info("written twice")
	assert.Contains(t, buf.String(), "written twice")
}

func TestNewLoggerInvalidLogFile(t *testing.T) {
	_, err := NewLogger(Config{LogFile: t.TempDir() + "/missing/dir/app.log"})
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{in: "", want: LogLevelNormal},
		{in: "info", want: LogLevelNormal},
		{in: "WARN", want: LogLevelWarn},
		{in: "warning", want: LogLevelWarn},
		{in: "error", want: LogLevelQuiet},
		{in: "verbose", want: LogLevelVerbose},
		{in: "debug", want: LogLevelDebug},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWarnLevelKeepsWarnings(t *testing.T) {
	level, err := ParseLevel("warn")
	require.NoError(t, err)
	logger, buf := newBufferLogger(t, level, "text")

	logger.Info("restore started")
	logger.Warn("upload missing")

	output := buf.String()
	assert.Contains(t, output, "upload missing")
	assert.NotContains(t, output, "restore started")
	assert.True(t, logger.IsLevelEnabled(LogLevelWarn))
	assert.False(t, logger.IsLevelEnabled(LogLevelNormal))
}

func TestLoggerWithFields(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelVerbose, "text")

	logger.WithFields(map[string]interface{}{
		"collection": "orders",
		"count":      42,
	}).Info("test message")

	output := buf.String()
	assert.Contains(t, output, "collection=orders")
	assert.Contains(t, output, "count=42")
	assert.Contains(t, output, "test message")
}

func TestLoggerWithContext(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelVerbose, "text")

	ctx := CreateContextWithRequestID(context.Background(), "req-123")
	logger.WithContext(ctx).Info("with context")

	assert.Contains(t, buf.String(), "request_id=req-123")
	assert.Equal(t, "req-123", GetRequestIDFromContext(ctx))
	assert.Empty(t, GetRequestIDFromContext(context.Background()))
}

func TestLogDatabaseConnection(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal, "text")

	logger.LogDatabaseConnection("mysql", "localhost:3306/cafe", true, 10*time.Millisecond, nil)
	assert.Contains(t, buf.String(), "Database connection established")

	buf.Reset()
	logger.LogDatabaseConnection("sqlite3", "cafe.db", false, time.Millisecond, errors.New("locked"))
	assert.Contains(t, buf.String(), "Database connection failed")
	assert.Contains(t, buf.String(), "locked")
}

func TestLogSQLExecution(t *testing.T) {
	t.Run("success hidden at normal level", func(t *testing.T) {
		logger, buf := newBufferLogger(t, LogLevelNormal, "text")
		logger.LogSQLExecution("DELETE FROM `orders`", time.Millisecond, 3, nil)
		assert.Empty(t, buf.String())
	})

	t.Run("success shown at verbose level", func(t *testing.T) {
		logger, buf := newBufferLogger(t, LogLevelVerbose, "text")
		logger.LogSQLExecution("DELETE FROM `orders`", time.Millisecond, 3, nil)
		assert.Contains(t, buf.String(), "rows_affected=3")
	})

	t.Run("long statements are truncated", func(t *testing.T) {
		logger, buf := newBufferLogger(t, LogLevelNormal, "json")
		logger.LogSQLExecution(strings.Repeat("x", 300), time.Millisecond, 0, errors.New("boom"))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
		assert.Equal(t, float64(300), entry["sql_length"])
		assert.Equal(t, "boom", entry["error"])
	})
}

func TestLogHTTPRequest(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal, "text")
	ctx := CreateContextWithRequestID(context.Background(), "abc")

	logger.LogHTTPRequest(ctx, "GET", "/api/backup", 200, time.Millisecond)
	assert.Contains(t, buf.String(), "Request handled")
	assert.Contains(t, buf.String(), "request_id=abc")

	buf.Reset()
	logger.LogHTTPRequest(ctx, "POST", "/api/backup/restore", 400, time.Millisecond)
	assert.Contains(t, buf.String(), "Request rejected")

	buf.Reset()
	logger.LogHTTPRequest(ctx, "POST", "/api/backup/restore", 500, time.Millisecond)
	assert.Contains(t, buf.String(), "Request failed")
}

func TestSetLevel(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal, "text")

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	logger.SetLevel(LogLevelVerbose)
	assert.True(t, logger.IsLevelEnabled(LogLevelVerbose))
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")

	assert.False(t, logger.IsLevelEnabled(LogLevel("unknown")))
}

func TestLogOperationStart(t *testing.T) {
	logger, buf := newBufferLogger(t, LogLevelNormal, "text")

	done := logger.LogOperationStart("backup_export", map[string]interface{}{"files": 2})
	done(nil)
	assert.Contains(t, buf.String(), "Operation completed")
	assert.Contains(t, buf.String(), "operation=backup_export")

	buf.Reset()
	done = logger.LogOperationStart("backup_restore", nil)
	done(errors.New("rollback"))
	assert.Contains(t, buf.String(), "Operation failed")
	assert.Contains(t, buf.String(), "rollback")
}

func TestNewNopLogger(t *testing.T) {
	logger := NewNopLogger()
	require.NotNil(t, logger)
	logger.Error("goes nowhere")
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("abc"))
	assert.Equal(t, "EA******yz", MaskSecret("EAAB1234yz"))
}
