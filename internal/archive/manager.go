package archive

import (
	"context"
	"fmt"
	"time"

	"cafe-pos/internal/backup"
	"cafe-pos/internal/logging"
	"cafe-pos/internal/metrics"

	"github.com/google/uuid"
)

// Manager turns backup payloads into stored archives and back
type Manager struct {
	provider    Provider
	compressors *Compressors
	encryptor   *Encryptor
	config      Config
	logger      *logging.Logger
	now         func() time.Time
}

// NewManagerFromConfig validates config and builds the provider it names
func NewManagerFromConfig(ctx context.Context, config Config, logger *logging.Logger) (*Manager, error) {
	config.SetDefaults()
	if err := config.Validate(); err != nil {
		return nil, backup.NewValidationError("invalid archive configuration", err)
	}

	provider, err := NewProvider(ctx, config.Storage)
	if err != nil {
		return nil, err
	}
	return NewManager(provider, config, logger), nil
}

// NewManager creates a manager over an existing provider
func NewManager(provider Provider, config Config, logger *logging.Logger) *Manager {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return &Manager{
		provider:    Instrument(provider),
		compressors: NewCompressors(),
		encryptor:   NewEncryptor(config.Encryption),
		config:      config,
		logger:      logger,
		now:         time.Now,
	}
}

// Provider returns the storage provider
func (m *Manager) Provider() Provider {
	return m.provider
}

// Create validates raw as a backup payload and stores it
func (m *Manager) Create(ctx context.Context, raw []byte, opts CreateOptions) (*Metadata, error) {
	start := m.now()

	p, err := backup.ParsePayload(raw)
	if err != nil {
		return nil, err
	}

	body, err := m.compressors.Compress(raw, m.config.Compression, m.config.CompressionLevel)
	if err != nil {
		return nil, err
	}
	body, err = m.encryptor.Encrypt(body)
	if err != nil {
		return nil, err
	}

	createdBy := opts.CreatedBy
	if createdBy == "" {
		if actor, ok := backup.ActorFromContext(ctx); ok {
			createdBy = actor.UserID
		}
	}

	compression := m.config.Compression
	if compression == "" {
		compression = CompressionNone
	}

	now := m.now().UTC()
	meta := &Metadata{
		ID:               newID(now),
		CreatedAt:        now,
		CreatedBy:        createdBy,
		Description:      opts.Description,
		Tags:             opts.Tags,
		Size:             int64(len(raw)),
		StoredSize:       int64(len(body)),
		Compression:      compression,
		Encrypted:        m.encryptor.Enabled(),
		Checksum:         checksum(body),
		Counts:           p.Counts(),
		PayloadCreatedAt: p.CreatedAt,
		Status:           StatusCompleted,
	}

	err = m.provider.Store(ctx, &Archive{Metadata: meta, Data: body})
	metrics.ObserveBackup("archive_create", start, err)
	if err != nil {
		return nil, err
	}

	m.logger.WithFields(map[string]interface{}{
		"archive_id":  meta.ID,
		"provider":    m.provider.Type(),
		"size":        meta.Size,
		"stored_size": meta.StoredSize,
		"compression": meta.Compression,
		"encrypted":   meta.Encrypted,
	}).Info("Archive created")
	return meta, nil
}

// Load retrieves an archive and returns the original payload bytes
func (m *Manager) Load(ctx context.Context, id string) ([]byte, *Metadata, error) {
	a, err := m.provider.Retrieve(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := a.Verify(); err != nil {
		m.logger.WithField("archive_id", id).Error("Archive checksum mismatch")
		return nil, nil, err
	}

	body := a.Data
	if a.Metadata.Encrypted {
		if !m.encryptor.Enabled() {
			return nil, nil, backup.NewEncryptionError("archive is encrypted but encryption is not configured", nil).
				WithContext("id", id)
		}
		if body, err = m.encryptor.Decrypt(body); err != nil {
			return nil, nil, err
		}
	}

	raw, err := m.compressors.Decompress(body, a.Metadata.Compression)
	if err != nil {
		return nil, nil, err
	}
	if int64(len(raw)) != a.Metadata.Size {
		return nil, nil, backup.NewCorruptionError(
			fmt.Sprintf("archive %s decoded to %d bytes, expected %d", id, len(raw), a.Metadata.Size), nil)
	}
	return raw, a.Metadata, nil
}

// LoadPayload is Load followed by backup.ParsePayload
func (m *Manager) LoadPayload(ctx context.Context, id string) (*backup.Payload, *Metadata, error) {
	raw, meta, err := m.Load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	p, err := backup.ParsePayload(raw)
	if err != nil {
		return nil, nil, err
	}
	return p, meta, nil
}

// Get returns the metadata of one archive
func (m *Manager) Get(ctx context.Context, id string) (*Metadata, error) {
	return m.provider.GetMetadata(ctx, id)
}

// List returns all archives, newest first
func (m *Manager) List(ctx context.Context) ([]*Metadata, error) {
	list, err := m.provider.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	sortNewestFirst(list)
	return list, nil
}

// Delete removes one archive
func (m *Manager) Delete(ctx context.Context, id string) error {
	if err := m.provider.Delete(ctx, id); err != nil {
		return err
	}
	m.logger.WithField("archive_id", id).Info("Archive deleted")
	return nil
}

// Prune applies the retention policy. With dryRun nothing is deleted.
func (m *Manager) Prune(ctx context.Context, dryRun bool) (RetentionPlan, error) {
	list, err := m.provider.List(ctx, Filter{})
	if err != nil {
		return RetentionPlan{}, err
	}

	plan := PlanRetention(list, m.config.Retention, m.now())
	if dryRun {
		return plan, nil
	}

	for _, meta := range plan.Delete {
		if err := m.provider.Delete(ctx, meta.ID); err != nil && !backup.IsNotFoundError(err) {
			return plan, err
		}
		m.logger.WithFields(map[string]interface{}{
			"archive_id": meta.ID,
			"created_at": meta.CreatedAt,
		}).Info("Archive pruned")
	}
	return plan, nil
}

// newID builds a sortable, unique archive id
func newID(t time.Time) string {
	return t.Format("20060102T150405Z") + "-" + uuid.NewString()[:8]
}
