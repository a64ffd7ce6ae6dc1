package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cafe-pos/internal/logging"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type actorKey struct{}

// Actor identifies who triggered a backup operation, for the audit trail
type Actor struct {
	UserID    string
	IPAddress string
}

// WithActor stores the actor on the context
func WithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor stored on ctx, if any
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// OperationLogger provides structured logging for backup operations with
// correlation IDs and an optional JSON audit trail
type OperationLogger struct {
	logger        *logging.Logger
	auditLogger   *logrus.Logger
	correlationID string
}

// OperationLoggerConfig holds configuration for backup logging
type OperationLoggerConfig struct {
	Logger        *logging.Logger
	AuditLogFile  string
	CorrelationID string
}

// LogEntry represents a structured log entry for backup operations
type LogEntry struct {
	Timestamp     time.Time              `json:"timestamp"`
	CorrelationID string                 `json:"correlation_id"`
	Operation     string                 `json:"operation"`
	Status        string                 `json:"status"`
	Duration      string                 `json:"duration,omitempty"`
	Success       bool                   `json:"success"`
	Error         string                 `json:"error,omitempty"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
}

// NewOperationLogger creates a new backup logger with correlation ID support
func NewOperationLogger(config OperationLoggerConfig) (*OperationLogger, error) {
	if config.Logger == nil {
		config.Logger = logging.NewDefaultLogger()
	}

	correlationID := config.CorrelationID
	if correlationID == "" {
		correlationID = uuid.New().String()
	}

	ol := &OperationLogger{
		logger:        config.Logger,
		correlationID: correlationID,
	}

	if config.AuditLogFile != "" {
		if err := os.MkdirAll(filepath.Dir(config.AuditLogFile), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create audit log directory: %w", err)
		}

		auditFile, err := os.OpenFile(config.AuditLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open audit log file: %w", err)
		}

		auditLogger := logrus.New()
		auditLogger.SetOutput(auditFile)
		auditLogger.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339})
		auditLogger.SetLevel(logrus.InfoLevel)
		ol.auditLogger = auditLogger
	}

	return ol, nil
}

// GetCorrelationID returns the current correlation ID
func (ol *OperationLogger) GetCorrelationID() string {
	return ol.correlationID
}

// WithCorrelationID returns a logger sharing the audit sink under a different id
func (ol *OperationLogger) WithCorrelationID(correlationID string) *OperationLogger {
	return &OperationLogger{
		logger:        ol.logger,
		auditLogger:   ol.auditLogger,
		correlationID: correlationID,
	}
}

// ForOperation returns a logger with a fresh correlation id
func (ol *OperationLogger) ForOperation() *OperationLogger {
	return ol.WithCorrelationID(uuid.New().String())
}

// Warn logs a non-fatal problem under the current correlation id
func (ol *OperationLogger) Warn(msg string, fields map[string]interface{}) {
	entry := ol.logger.WithField("correlation_id", ol.correlationID)
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Warn(msg)
}

// LogOperation logs the start of an operation and returns a function that
// logs its completion along with any result metadata.
func (ol *OperationLogger) LogOperation(ctx context.Context, operation string, metadata map[string]interface{}) func(error, map[string]interface{}) {
	startTime := time.Now()

	if metadata == nil {
		metadata = make(map[string]interface{})
	}

	entry := LogEntry{
		Timestamp:     startTime,
		CorrelationID: ol.correlationID,
		Operation:     operation,
		Status:        "started",
		Success:       true,
		Metadata:      metadata,
	}

	ol.logStructured(entry)
	ol.logAudit(ctx, operation, "started", metadata)

	return func(err error, result map[string]interface{}) {
		duration := time.Since(startTime)
		entry.Timestamp = time.Now()
		entry.Status = "completed"
		entry.Duration = duration.String()
		entry.Success = err == nil

		for k, v := range result {
			entry.Metadata[k] = v
		}

		outcome := "success"
		if err != nil {
			entry.Error = err.Error()
			entry.Status = "failed"
			outcome = "failure"
		}

		ol.logStructured(entry)

		details := map[string]interface{}{"duration": duration.String()}
		for k, v := range result {
			details[k] = v
		}
		if err != nil {
			details["error"] = err.Error()
		}
		ol.logAudit(ctx, operation, outcome, details)
	}
}

func (ol *OperationLogger) logStructured(entry LogEntry) {
	fields := logrus.Fields{
		"correlation_id": entry.CorrelationID,
		"operation":      entry.Operation,
		"status":         entry.Status,
		"success":        entry.Success,
	}
	if entry.Duration != "" {
		fields["duration"] = entry.Duration
	}
	if entry.Error != "" {
		fields["error"] = entry.Error
	}
	for k, v := range entry.Metadata {
		fields[k] = v
	}

	logEntry := ol.logger.WithFields(fields)
	switch {
	case !entry.Success:
		logEntry.Error("Backup operation failed")
	case entry.Status == "started":
		logEntry.Debug("Backup operation started")
	default:
		logEntry.Info("Backup operation completed successfully")
	}
}

func (ol *OperationLogger) logAudit(ctx context.Context, operation, result string, details map[string]interface{}) {
	if ol.auditLogger == nil {
		return
	}

	fields := logrus.Fields{
		"correlation_id": ol.correlationID,
		"operation":      operation,
		"result":         result,
		"details":        details,
	}
	if actor, ok := ActorFromContext(ctx); ok {
		fields["user_id"] = actor.UserID
		fields["ip_address"] = actor.IPAddress
	}
	if requestID := logging.GetRequestIDFromContext(ctx); requestID != "" {
		fields["request_id"] = requestID
	}

	ol.auditLogger.WithFields(fields).Info("Audit log entry")
}
