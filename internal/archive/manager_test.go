package archive

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cafe-pos/internal/backup"
	"cafe-pos/internal/logging"
	"cafe-pos/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePayload(t *testing.T) []byte {
	t.Helper()
	p := &backup.Payload{
		Type:      backup.PayloadType,
		Version:   backup.PayloadVersion,
		CreatedAt: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC),
		Data: backup.Data{
			Settings:  store.Record{"id": 1, "cafeName": "Kopi Senja"},
			MenuItems: []store.Record{{"id": 1, "name": "Es Kopi"}, {"id": 2, "name": "Teh Tarik"}},
			Orders:    []store.Record{{"id": 7, "total": 36000.0}},
		},
		Files: []backup.File{{Path: "/uploads/logo.png", ContentBase64: "iVBORw0KGgo="}},
	}
	raw, err := p.Encode()
	require.NoError(t, err)
	return raw
}

func newTestManager(t *testing.T, config Config) *Manager {
	t.Helper()
	config.Storage = StorageConfig{Provider: ProviderLocal, Local: &LocalConfig{BasePath: t.TempDir()}}
	m, err := NewManagerFromConfig(context.Background(), config, logging.NewNopLogger())
	require.NoError(t, err)
	return m
}

func TestManager_CreateAndLoad(t *testing.T) {
	tests := []struct {
		name   string
		config Config
	}{
		{"plain", Config{Compression: CompressionNone}},
		{"gzip", Config{Compression: CompressionGzip}},
		{"lz4", Config{Compression: CompressionLZ4}},
		{"zstd encrypted", Config{Compression: CompressionZstd, Encryption: passphraseConfig("s3cret")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := backup.WithActor(context.Background(), backup.Actor{UserID: "admin-1"})
			raw := samplePayload(t)
			m := newTestManager(t, tt.config)

			meta, err := m.Create(ctx, raw, CreateOptions{Description: "nightly", Tags: []string{"cron"}})
			require.NoError(t, err)
			assert.NotEmpty(t, meta.ID)
			assert.Equal(t, "admin-1", meta.CreatedBy)
			assert.Equal(t, int64(len(raw)), meta.Size)
			assert.Equal(t, tt.config.Encryption.Enabled, meta.Encrypted)
			assert.Equal(t, 2, meta.Counts.MenuItems)
			assert.Equal(t, 1, meta.Counts.Files)
			assert.Equal(t, StatusCompleted, meta.Status)

			got, gotMeta, err := m.Load(ctx, meta.ID)
			require.NoError(t, err)
			assert.Equal(t, raw, got)
			assert.Equal(t, meta.Checksum, gotMeta.Checksum)

			p, _, err := m.LoadPayload(ctx, meta.ID)
			require.NoError(t, err)
			assert.Equal(t, "Kopi Senja", p.Data.Settings.String("cafeName"))
		})
	}
}

func TestManager_RejectsInvalidPayload(t *testing.T) {
	m := newTestManager(t, Config{})

	_, err := m.Create(context.Background(), []byte(`{"type":"something-else"}`), CreateOptions{})
	require.Error(t, err)
	assert.True(t, backup.IsValidationError(err))

	list, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestManager_DetectsTampering(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{Compression: CompressionGzip})

	meta, err := m.Create(ctx, samplePayload(t), CreateOptions{})
	require.NoError(t, err)

	body := filepath.Join(meta.StorageLocation, bodyObject)
	data, err := os.ReadFile(body)
	require.NoError(t, err)
	data[len(data)-1] ^= 0xff
	require.NoError(t, os.WriteFile(body, data, 0o640))

	_, _, err = m.Load(ctx, meta.ID)
	require.Error(t, err)
	assert.Equal(t, backup.BackupErrorTypeCorruption, backup.ErrorType(err))
}

func TestManager_EncryptedArchiveNeedsKey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	storage := StorageConfig{Provider: ProviderLocal, Local: &LocalConfig{BasePath: dir}}

	sealed, err := NewManagerFromConfig(ctx, Config{Storage: storage, Encryption: passphraseConfig("k")}, logging.NewNopLogger())
	require.NoError(t, err)
	meta, err := sealed.Create(ctx, samplePayload(t), CreateOptions{})
	require.NoError(t, err)

	open, err := NewManagerFromConfig(ctx, Config{Storage: storage}, logging.NewNopLogger())
	require.NoError(t, err)
	_, _, err = open.Load(ctx, meta.ID)
	require.Error(t, err)
	assert.Equal(t, backup.BackupErrorTypeEncryption, backup.ErrorType(err))
}

func TestManager_ListDeletePrune(t *testing.T) {
	ctx := context.Background()
	m := newTestManager(t, Config{Retention: RetentionConfig{MaxArchives: 2}})

	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	var created []string
	for i := 0; i < 4; i++ {
		clock = clock.Add(time.Hour)
		meta, err := m.Create(ctx, samplePayload(t), CreateOptions{})
		require.NoError(t, err)
		created = append(created, meta.ID)
	}

	list, err := m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{created[3], created[2], created[1], created[0]}, ids(list))

	plan, err := m.Prune(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, []string{created[1], created[0]}, ids(plan.Delete))
	list, _ = m.List(ctx)
	assert.Len(t, list, 4, "dry run deletes nothing")

	_, err = m.Prune(ctx, false)
	require.NoError(t, err)
	list, err = m.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{created[3], created[2]}, ids(list))

	require.NoError(t, m.Delete(ctx, created[2]))
	_, err = m.Get(ctx, created[2])
	assert.True(t, backup.IsNotFoundError(err))
}
