package cmd

import (
	"context"
	"fmt"

	"cafe-pos/internal/archive"
	"cafe-pos/internal/backup"
	"cafe-pos/internal/config"
	"cafe-pos/internal/database"
	"cafe-pos/internal/logging"
	"cafe-pos/internal/store"

	"github.com/jmoiron/sqlx"
)

// app bundles the services a command needs. Fields are filled lazily by
// the open* helpers so commands that never touch the database do not
// connect to it.
type app struct {
	config *config.AppConfig
	logger *logging.Logger

	dbService *database.Service
	db        *sqlx.DB
	store     *store.SQLStore
	backup    *backup.Service
}

// newApp loads the configuration and builds the logger
func (o *rootOptions) newApp() (*app, error) {
	c, err := o.load()
	if err != nil {
		return nil, err
	}
	logger, err := c.NewLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return &app{config: c, logger: logger}, nil
}

// openStore connects to the database and makes sure the schema exists
func (a *app) openStore(ctx context.Context) (*store.SQLStore, error) {
	if a.store != nil {
		return a.store, nil
	}

	a.dbService = database.NewServiceWithLogger(a.logger)
	db, err := a.dbService.Connect(ctx, a.config.Database)
	if err != nil {
		return nil, err
	}
	s := store.NewSQLStoreWithLogger(db, a.logger)
	if err := s.Migrate(ctx); err != nil {
		_ = a.dbService.Close(db)
		return nil, fmt.Errorf("failed to prepare database schema: %w", err)
	}

	a.db = db
	a.store = s
	return s, nil
}

// backupService wires the exporter and importer to the database and the
// configured uploads directories
func (a *app) backupService(ctx context.Context) (*backup.Service, error) {
	if a.backup != nil {
		return a.backup, nil
	}
	s, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}

	uploads := backup.NewUploads(a.config.Uploads.Roots, a.config.Uploads.DefaultRoot, a.logger)

	oplog, err := backup.NewOperationLogger(backup.OperationLoggerConfig{
		Logger:       a.logger,
		AuditLogFile: a.config.Backup.AuditLog,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.backup = backup.NewService(s, uploads, oplog, a.logger)
	return a.backup, nil
}

// archiveManager connects to the configured archive storage
func (a *app) archiveManager(ctx context.Context) (*archive.Manager, error) {
	return archive.NewManagerFromConfig(ctx, a.config.Archive, a.logger)
}

func (a *app) close() {
	if a.db != nil {
		if err := a.dbService.Close(a.db); err != nil {
			a.logger.WithField("error", err.Error()).Warn("Failed to close database connection")
		}
		a.db = nil
		a.store = nil
		a.backup = nil
	}
}
