package database

import (
	"context"
	"time"

	"cafe-pos/internal/errors"
	"cafe-pos/internal/logging"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// DatabaseService defines the interface for database operations
type DatabaseService interface {
	Connect(ctx context.Context, config DatabaseConfig) (*sqlx.DB, error)
	TestConnection(ctx context.Context, db *sqlx.DB) error
	Close(db *sqlx.DB) error
	GetVersion(ctx context.Context, db *sqlx.DB) (string, error)
}

// Service implements the DatabaseService interface
type Service struct {
	connectionTimeout time.Duration
	logger            *logging.Logger
	retryHandler      *errors.RetryHandler
}

// NewService creates a new database service with default settings
func NewService() *Service {
	return NewServiceWithLogger(logging.NewDefaultLogger())
}

// NewServiceWithOptions creates a new database service with custom retry options
func NewServiceWithOptions(timeout time.Duration, maxRetries int, retryDelay time.Duration) *Service {
	return &Service{
		connectionTimeout: timeout,
		logger:            logging.NewDefaultLogger(),
		retryHandler: errors.NewRetryHandler(errors.RetryConfig{
			MaxAttempts: maxRetries,
			BaseDelay:   retryDelay,
			MaxDelay:    30 * time.Second,
			Multiplier:  2.0,
		}),
	}
}

// NewServiceWithLogger creates a new database service with a custom logger
func NewServiceWithLogger(logger *logging.Logger) *Service {
	return &Service{
		connectionTimeout: 30 * time.Second,
		logger:            logger,
		retryHandler:      errors.NewDefaultRetryHandler(),
	}
}

// Connect opens and pings the configured database, retrying recoverable failures
func (s *Service) Connect(ctx context.Context, config DatabaseConfig) (*sqlx.DB, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, errors.NewAppError(errors.ErrorTypeValidation, err.Error(), err)
	}

	startTime := time.Now()
	s.logger.WithFields(map[string]interface{}{
		"driver": config.Driver,
		"target": config.Target(),
	}).Info("Attempting database connection")

	ctx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	var db *sqlx.DB
	err := s.retryHandler.Retry(ctx, func() error {
		var openErr error
		db, openErr = sqlx.Open(config.Driver, config.DSN())
		if openErr != nil {
			return errors.WrapError(openErr, "failed to open database connection")
		}

		db.SetMaxOpenConns(config.MaxOpenConns)
		db.SetMaxIdleConns(config.MaxIdleConns)
		db.SetConnMaxLifetime(5 * time.Minute)
		if config.Driver == DriverSQLite {
			// sqlite allows a single writer
			db.SetMaxOpenConns(1)
		}

		if testErr := s.TestConnection(ctx, db); testErr != nil {
			db.Close()
			return testErr
		}
		return nil
	})

	s.logger.LogDatabaseConnection(config.Driver, config.Target(), err == nil, time.Since(startTime), err)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// TestConnection verifies that the database connection is working
func (s *Service) TestConnection(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	ctx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return errors.WrapError(err, "failed to ping database")
	}

	s.logger.Debug("Database connection test successful")
	return nil
}

// Close gracefully closes the database connection
func (s *Service) Close(db *sqlx.DB) error {
	if db == nil {
		return nil
	}

	if err := db.Close(); err != nil {
		s.logger.WithField("error", err.Error()).Error("Failed to close database connection")
		return errors.WrapError(err, "failed to close database connection")
	}

	s.logger.Debug("Database connection closed")
	return nil
}

// GetVersion retrieves the server version string
func (s *Service) GetVersion(ctx context.Context, db *sqlx.DB) (string, error) {
	if db == nil {
		return "", errors.NewAppError(errors.ErrorTypeValidation, "database connection is nil", nil)
	}

	query := "SELECT VERSION()"
	if db.DriverName() == DriverSQLite {
		query = "SELECT sqlite_version()"
	}

	ctx, cancel := context.WithTimeout(ctx, s.connectionTimeout)
	defer cancel()

	var version string
	startTime := time.Now()
	err := db.GetContext(ctx, &version, query)
	s.logger.LogSQLExecution(query, time.Since(startTime), 1, err)
	if err != nil {
		return "", errors.WrapError(err, "failed to get database version")
	}

	return version, nil
}
