package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"cafe-pos/internal/config"
	"cafe-pos/internal/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackupServiceClosesDatabaseOnAuditLogFailure(t *testing.T) {
	if testing.Short() {
		t.Skip("uses a sqlite database")
	}
	dir := t.TempDir()
	blocker := filepath.Join(dir, "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	cfg := &config.AppConfig{}
	cfg.Database.Driver = "sqlite3"
	cfg.Database.Path = filepath.Join(dir, "cafe.db")
	cfg.Uploads.Roots = []string{filepath.Join(dir, "uploads")}
	cfg.Backup.AuditLog = filepath.Join(blocker, "audit", "backup.log")
	cfg.SetDefaults()

	a := &app{config: cfg, logger: logging.NewNopLogger()}
	_, err := a.backupService(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "audit log")
	assert.Nil(t, a.db)
	assert.Nil(t, a.store)
}
