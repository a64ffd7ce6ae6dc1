package errors

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError(t *testing.T) {
	cause := errors.New("underlying error")
	appErr := NewAppError(ErrorTypeConnection, "connection failed", cause)

	assert.Equal(t, ErrorTypeConnection, appErr.Type)
	assert.Equal(t, "connection failed", appErr.Message)
	assert.Same(t, cause, appErr.Cause)
	assert.False(t, appErr.IsRecoverable())
	assert.Equal(t, "connection: connection failed (caused by: underlying error)", appErr.Error())
	assert.True(t, errors.Is(appErr, cause))
}

func TestAppErrorWithContext(t *testing.T) {
	appErr := NewAppError(ErrorTypeSQL, "query failed", nil)
	appErr.WithContext("table", "orders").WithContext("rows", 3)

	assert.Equal(t, "orders", appErr.Context["table"])
	assert.Equal(t, 3, appErr.Context["rows"])
	assert.Equal(t, "sql: query failed", appErr.Error())
}

func TestAppErrorUserMessage(t *testing.T) {
	appErr := NewAppError(ErrorTypeValidation, "internal detail", nil)
	assert.Equal(t, "internal detail", appErr.GetUserMessage())

	appErr.UserMessage = "Please fix the input"
	assert.Equal(t, "Please fix the input", appErr.GetUserMessage())
}

func TestNewRecoverableError(t *testing.T) {
	assert.True(t, NewRecoverableError(ErrorTypeConnection, "temporary failure", nil).IsRecoverable())
}

func TestNewHTTPStatusError(t *testing.T) {
	tests := []struct {
		status      int
		wantType    ErrorType
		recoverable bool
	}{
		{status: 429, wantType: ErrorTypeUpstream, recoverable: true},
		{status: 503, wantType: ErrorTypeUpstream, recoverable: true},
		{status: 401, wantType: ErrorTypePermission},
		{status: 400, wantType: ErrorTypeUpstream},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.status), func(t *testing.T) {
			err := NewHTTPStatusError(tt.status, "bad")
			assert.Equal(t, tt.wantType, err.Type)
			assert.Equal(t, tt.recoverable, err.IsRecoverable())
			assert.Equal(t, tt.status, err.Context["status_code"])
			assert.Contains(t, err.Message, "bad")
		})
	}
}

func TestErrorClassifier_ClassifyMySQLError(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name        string
		number      uint16
		wantType    ErrorType
		recoverable bool
	}{
		{name: "access denied", number: 1045, wantType: ErrorTypePermission},
		{name: "unknown database", number: 1049, wantType: ErrorTypeValidation},
		{name: "missing table", number: 1146, wantType: ErrorTypeSQL},
		{name: "duplicate", number: 1062, wantType: ErrorTypeConstraint},
		{name: "foreign key", number: 1452, wantType: ErrorTypeConstraint},
		{name: "deadlock", number: 1213, wantType: ErrorTypeSQL, recoverable: true},
		{name: "cannot connect", number: 2003, wantType: ErrorTypeConnection, recoverable: true},
		{name: "gone away", number: 2006, wantType: ErrorTypeConnection, recoverable: true},
		{name: "other", number: 9999, wantType: ErrorTypeSQL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := fmt.Errorf("wrapped: %w", &mysql.MySQLError{Number: tt.number, Message: "boom"})
			appErr := classifier.ClassifyError(err)

			require.NotNil(t, appErr)
			assert.Equal(t, tt.wantType, appErr.Type)
			assert.Equal(t, tt.recoverable, appErr.IsRecoverable())
			assert.Equal(t, tt.number, appErr.Context["mysql_error_code"])
		})
	}
}

func TestErrorClassifier_ClassifySQLError(t *testing.T) {
	classifier := NewErrorClassifier()

	assert.Equal(t, ErrorTypeValidation, classifier.ClassifyError(sql.ErrNoRows).Type)
	assert.Equal(t, ErrorTypeSQL, classifier.ClassifyError(sql.ErrTxDone).Type)

	connDone := classifier.ClassifyError(sql.ErrConnDone)
	assert.Equal(t, ErrorTypeConnection, connDone.Type)
	assert.True(t, connDone.IsRecoverable())
}

func TestErrorClassifier_ClassifySQLiteError(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		msg         string
		wantType    ErrorType
		recoverable bool
	}{
		{msg: "database is locked", wantType: ErrorTypeSQL, recoverable: true},
		{msg: "FOREIGN KEY constraint failed", wantType: ErrorTypeConstraint},
		{msg: "UNIQUE constraint failed: users.username", wantType: ErrorTypeConstraint},
		{msg: "no such table: orders", wantType: ErrorTypeSQL},
		{msg: "unable to open database file", wantType: ErrorTypeConnection},
	}

	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			appErr := classifier.ClassifyError(errors.New(tt.msg))
			assert.Equal(t, tt.wantType, appErr.Type)
			assert.Equal(t, tt.recoverable, appErr.IsRecoverable())
		})
	}
}

func TestErrorClassifier_ClassifyContextError(t *testing.T) {
	classifier := NewErrorClassifier()

	timeout := classifier.ClassifyError(context.DeadlineExceeded)
	assert.Equal(t, ErrorTypeTimeout, timeout.Type)
	assert.True(t, timeout.IsRecoverable())

	canceled := classifier.ClassifyError(context.Canceled)
	assert.Equal(t, ErrorTypeInterruption, canceled.Type)
	assert.False(t, canceled.IsRecoverable())
}

func TestErrorClassifier_ClassifyFileSystemError(t *testing.T) {
	classifier := NewErrorClassifier()

	tests := []struct {
		name     string
		errno    syscall.Errno
		wantType ErrorType
	}{
		{name: "not found", errno: syscall.ENOENT, wantType: ErrorTypeValidation},
		{name: "permission", errno: syscall.EACCES, wantType: ErrorTypePermission},
		{name: "no space", errno: syscall.ENOSPC, wantType: ErrorTypeValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := &os.PathError{Op: "open", Path: "/uploads/logo.png", Err: tt.errno}
			assert.Equal(t, tt.wantType, classifier.ClassifyError(err).Type)
		})
	}
}

func TestErrorClassifier_ClassifyNetworkError(t *testing.T) {
	classifier := NewErrorClassifier()

	dial := &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("refused")}
	appErr := classifier.ClassifyError(dial)
	assert.Equal(t, ErrorTypeConnection, appErr.Type)
	assert.True(t, appErr.IsRecoverable())

	reset := classifier.ClassifyError(fmt.Errorf("post: %w", syscall.ECONNRESET))
	assert.True(t, reset.IsRecoverable())
}

func TestErrorClassifier_Passthrough(t *testing.T) {
	classifier := NewErrorClassifier()
	original := NewAppError(ErrorTypeValidation, "bad input", nil)

	assert.Same(t, original, classifier.ClassifyError(fmt.Errorf("ctx: %w", original)))
	assert.Nil(t, classifier.ClassifyError(nil))
	assert.Equal(t, ErrorTypeUnknown, classifier.ClassifyError(errors.New("mystery")).Type)
}

func TestRetryHandler_Retry(t *testing.T) {
	fastConfig := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}

	t.Run("succeeds first time", func(t *testing.T) {
		calls := 0
		err := NewRetryHandler(fastConfig).Retry(context.Background(), func() error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 1, calls)
	})

	t.Run("retries recoverable errors", func(t *testing.T) {
		calls := 0
		err := NewRetryHandler(fastConfig).Retry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return NewRecoverableError(ErrorTypeConnection, "flaky", nil)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("stops on non-recoverable errors", func(t *testing.T) {
		calls := 0
		err := NewRetryHandler(fastConfig).Retry(context.Background(), func() error {
			calls++
			return NewAppError(ErrorTypeValidation, "bad", nil)
		})
		require.Error(t, err)
		assert.Equal(t, 1, calls)
		assert.Equal(t, ErrorTypeValidation, GetErrorType(err))
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := NewRetryHandler(fastConfig).Retry(context.Background(), func() error {
			calls++
			return NewRecoverableError(ErrorTypeConnection, "down", nil)
		})
		require.Error(t, err)
		assert.Equal(t, 3, calls)

		var appErr *AppError
		require.True(t, errors.As(err, &appErr))
		assert.Equal(t, 3, appErr.Context["attempts"])
	})

	t.Run("honours canceled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := NewRetryHandler(fastConfig).Retry(ctx, func() error {
			t.Fatal("operation must not run")
			return nil
		})
		assert.Equal(t, ErrorTypeInterruption, GetErrorType(err))
	})
}

func TestRetryHandler_CalculateDelay(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{
		MaxAttempts: 5,
		BaseDelay:   100 * time.Millisecond,
		MaxDelay:    time.Second,
		Multiplier:  2,
	})

	assert.Equal(t, 100*time.Millisecond, handler.calculateDelay(1))
	assert.Equal(t, 200*time.Millisecond, handler.calculateDelay(2))
	assert.Equal(t, 400*time.Millisecond, handler.calculateDelay(3))
	assert.Equal(t, time.Second, handler.calculateDelay(5))
}

func TestNewRetryHandler_Normalizes(t *testing.T) {
	handler := NewRetryHandler(RetryConfig{})
	assert.Equal(t, 1, handler.config.MaxAttempts)
	assert.Equal(t, 1.0, handler.config.Multiplier)
}

func TestGracefulShutdownHandler(t *testing.T) {
	handler := NewGracefulShutdownHandler()

	var order []int
	handler.RegisterShutdownFunc(func() error { order = append(order, 1); return nil })
	handler.RegisterShutdownFunc(func() error { order = append(order, 2); return errors.New("ignored") })

	handler.Start()
	defer handler.Stop()

	handler.Trigger()

	done := make(chan struct{})
	go func() {
		handler.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("shutdown did not complete")
	}
	assert.Equal(t, []int{2, 1}, order)
}

func TestGracefulShutdownHandler_StopReleasesListener(t *testing.T) {
	handler := NewGracefulShutdownHandler()
	called := false
	handler.RegisterShutdownFunc(func() error { called = true; return nil })

	handler.Start()
	handler.Stop()
	handler.Stop()

	select {
	case <-handler.exited:
	case <-time.After(2 * time.Second):
		t.Fatal("listener goroutine still running after Stop")
	}
	assert.False(t, called)
}

func TestIsRecoverableError(t *testing.T) {
	assert.True(t, IsRecoverableError(NewRecoverableError(ErrorTypeTimeout, "slow", nil)))
	assert.False(t, IsRecoverableError(NewAppError(ErrorTypeSQL, "bad", nil)))
	assert.False(t, IsRecoverableError(errors.New("plain")))
}

func TestGetErrorType(t *testing.T) {
	assert.Equal(t, ErrorTypeSQL, GetErrorType(fmt.Errorf("w: %w", NewAppError(ErrorTypeSQL, "x", nil))))
	assert.Equal(t, ErrorTypeUnknown, GetErrorType(errors.New("plain")))
}

type userFacingError struct{}

func (userFacingError) Error() string       { return "internal" }
func (userFacingError) UserMessage() string { return "shown to the user" }

func TestFormatUserError(t *testing.T) {
	assert.Equal(t, "", FormatUserError(nil))
	assert.Equal(t, "bad input", FormatUserError(NewAppError(ErrorTypeValidation, "bad input", nil)))
	assert.Equal(t, "shown to the user", FormatUserError(fmt.Errorf("wrap: %w", userFacingError{})))
	assert.Contains(t, FormatUserError(errors.New("plain")), "unexpected error")
}

func TestWrapError(t *testing.T) {
	assert.Nil(t, WrapError(nil, "nothing"))

	wrapped := WrapError(NewRecoverableError(ErrorTypeConnection, "down", nil), "connecting to database")
	assert.Equal(t, ErrorTypeConnection, GetErrorType(wrapped))
	assert.True(t, IsRecoverableError(wrapped))

	classified := WrapError(context.DeadlineExceeded, "export timed out")
	assert.Equal(t, ErrorTypeTimeout, GetErrorType(classified))
	assert.Contains(t, classified.Error(), "export timed out")
}
