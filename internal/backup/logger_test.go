package backup

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"cafe-pos/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOperationLogger(t *testing.T) {
	tests := []struct {
		name           string
		config         OperationLoggerConfig
		expectAuditLog bool
	}{
		{
			name:   "basic logger without audit",
			config: OperationLoggerConfig{Logger: logging.NewNopLogger()},
		},
		{
			name: "logger with audit log",
			config: OperationLoggerConfig{
				Logger:       logging.NewNopLogger(),
				AuditLogFile: filepath.Join(t.TempDir(), "nested", "audit.log"),
			},
			expectAuditLog: true,
		},
		{
			name: "logger with custom correlation ID",
			config: OperationLoggerConfig{
				Logger:        logging.NewNopLogger(),
				CorrelationID: "test-correlation-123",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ol, err := NewOperationLogger(tt.config)
			require.NoError(t, err)

			if tt.config.CorrelationID != "" {
				assert.Equal(t, tt.config.CorrelationID, ol.GetCorrelationID())
			} else {
				assert.NotEmpty(t, ol.GetCorrelationID())
			}
			assert.Equal(t, tt.expectAuditLog, ol.auditLogger != nil)
		})
	}
}

func TestOperationLogger_ForOperation(t *testing.T) {
	ol, err := NewOperationLogger(OperationLoggerConfig{Logger: logging.NewNopLogger(), CorrelationID: "base"})
	require.NoError(t, err)

	a := ol.ForOperation()
	b := ol.ForOperation()
	assert.NotEqual(t, "base", a.GetCorrelationID())
	assert.NotEqual(t, a.GetCorrelationID(), b.GetCorrelationID())
	assert.Equal(t, "fixed", ol.WithCorrelationID("fixed").GetCorrelationID())
}

func TestOperationLogger_AuditTrail(t *testing.T) {
	auditFile := filepath.Join(t.TempDir(), "audit.log")
	ol, err := NewOperationLogger(OperationLoggerConfig{
		Logger:        logging.NewNopLogger(),
		AuditLogFile:  auditFile,
		CorrelationID: "corr-1",
	})
	require.NoError(t, err)

	ctx := WithActor(context.Background(), Actor{UserID: "7", IPAddress: "10.0.0.5"})
	ctx = logging.CreateContextWithRequestID(ctx, "req-1")

	done := ol.LogOperation(ctx, "restore", map[string]interface{}{"version": 1})
	done(errors.New("disk full"), map[string]interface{}{"orders": 3})

	f, err := os.Open(auditFile)
	require.NoError(t, err)
	defer f.Close()

	var entries []map[string]interface{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &entry))
		entries = append(entries, entry)
	}
	require.Len(t, entries, 2)

	assert.Equal(t, "started", entries[0]["result"])
	assert.Equal(t, "failure", entries[1]["result"])
	for _, e := range entries {
		assert.Equal(t, "corr-1", e["correlation_id"])
		assert.Equal(t, "restore", e["operation"])
		assert.Equal(t, "7", e["user_id"])
		assert.Equal(t, "10.0.0.5", e["ip_address"])
		assert.Equal(t, "req-1", e["request_id"])
	}

	details, ok := entries[1]["details"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "disk full", details["error"])
	assert.Equal(t, float64(3), details["orders"])
}

func TestActorFromContext(t *testing.T) {
	_, ok := ActorFromContext(context.Background())
	assert.False(t, ok)

	actor, ok := ActorFromContext(WithActor(context.Background(), Actor{UserID: "1"}))
	assert.True(t, ok)
	assert.Equal(t, "1", actor.UserID)
}
