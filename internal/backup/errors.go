package backup

import (
	"errors"
	"fmt"
)

// BackupError represents errors that occur during backup operations
type BackupError struct {
	Type    BackupErrorType        `json:"type"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *BackupError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying cause error
func (e *BackupError) Unwrap() error {
	return e.Cause
}

// UserMessage is the text shown to API and CLI users. Transaction and
// storage failures hide their cause.
func (e *BackupError) UserMessage() string {
	if e.IsClientError() {
		return e.Message
	}
	return "Backup operation failed. Please check the server logs for details."
}

// IsClientError reports whether the caller can fix the problem by
// resubmitting different input
func (e *BackupError) IsClientError() bool {
	switch e.Type {
	case BackupErrorTypeValidation, BackupErrorTypeSecurity, BackupErrorTypeNotFound:
		return true
	default:
		return false
	}
}

// BackupErrorType represents different types of backup errors
type BackupErrorType string

const (
	BackupErrorTypeValidation  BackupErrorType = "VALIDATION_ERROR"
	BackupErrorTypeSecurity    BackupErrorType = "SECURITY_ERROR"
	BackupErrorTypeTransaction BackupErrorType = "TRANSACTION_ERROR"
	BackupErrorTypeDatabase    BackupErrorType = "DATABASE_ERROR"
	BackupErrorTypeFilesystem  BackupErrorType = "FILESYSTEM_ERROR"
	BackupErrorTypeStorage     BackupErrorType = "STORAGE_ERROR"
	BackupErrorTypeCompression BackupErrorType = "COMPRESSION_ERROR"
	BackupErrorTypeEncryption  BackupErrorType = "ENCRYPTION_ERROR"
	BackupErrorTypeCorruption  BackupErrorType = "CORRUPTION_ERROR"
	BackupErrorTypeNotFound    BackupErrorType = "NOT_FOUND_ERROR"
)

// NewBackupError creates a new BackupError
func NewBackupError(errorType BackupErrorType, message string, cause error) *BackupError {
	return &BackupError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context information to the error
func (e *BackupError) WithContext(key string, value interface{}) *BackupError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func NewValidationError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeValidation, message, cause)
}

func NewSecurityError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeSecurity, message, cause)
}

func NewTransactionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeTransaction, message, cause)
}

func NewDatabaseError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeDatabase, message, cause)
}

func NewFilesystemError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeFilesystem, message, cause)
}

func NewStorageError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeStorage, message, cause)
}

func NewCompressionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeCompression, message, cause)
}

func NewEncryptionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeEncryption, message, cause)
}

func NewCorruptionError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeCorruption, message, cause)
}

func NewNotFoundError(message string, cause error) *BackupError {
	return NewBackupError(BackupErrorTypeNotFound, message, cause)
}

// ValidationError represents validation-specific errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value,omitempty"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}
	return fmt.Sprintf("%d validation errors: %s (and %d more)", len(e), e[0].Error(), len(e)-1)
}

// Add adds a validation error to the collection
func (e *ValidationErrors) Add(field, message string, value interface{}) {
	*e = append(*e, ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	})
}

// HasErrors returns true if there are validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ErrorType returns the BackupErrorType anywhere in err's chain, or ""
func ErrorType(err error) BackupErrorType {
	var backupErr *BackupError
	if errors.As(err, &backupErr) {
		return backupErr.Type
	}
	return ""
}

func IsValidationError(err error) bool {
	return ErrorType(err) == BackupErrorTypeValidation
}

func IsSecurityError(err error) bool {
	return ErrorType(err) == BackupErrorTypeSecurity
}

func IsTransactionError(err error) bool {
	return ErrorType(err) == BackupErrorTypeTransaction
}

func IsNotFoundError(err error) bool {
	return ErrorType(err) == BackupErrorTypeNotFound
}

// IsClientError reports whether err is a BackupError the caller caused
func IsClientError(err error) bool {
	var backupErr *BackupError
	return errors.As(err, &backupErr) && backupErr.IsClientError()
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	switch ErrorType(err) {
	case BackupErrorTypeStorage, BackupErrorTypeDatabase:
		return true
	default:
		return false
	}
}
