package archive

import (
	"context"
	"fmt"
	"strings"

	"cafe-pos/internal/backup"
	"cafe-pos/internal/metrics"
)

// Provider stores archive bodies and their metadata
type Provider interface {
	Store(ctx context.Context, a *Archive) error
	Retrieve(ctx context.Context, id string) (*Archive, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter Filter) ([]*Metadata, error)
	GetMetadata(ctx context.Context, id string) (*Metadata, error)
	Type() ProviderType
}

const (
	bodyObject     = "archive.bin"
	metadataObject = "metadata.json"
	defaultPrefix  = "archives/"
)

// NewProvider creates the provider selected by config
func NewProvider(ctx context.Context, config StorageConfig) (Provider, error) {
	if err := config.Validate(); err != nil {
		return nil, backup.NewValidationError("invalid storage configuration", err)
	}

	var (
		p   Provider
		err error
	)
	switch config.Provider {
	case ProviderLocal:
		p, err = NewLocalProvider(config.Local)
	case ProviderS3:
		p, err = NewS3Provider(config.S3)
	case ProviderAzure:
		p, err = NewAzureProvider(config.Azure)
	case ProviderGCS:
		p, err = NewGCSProvider(ctx, config.GCS)
	default:
		return nil, backup.NewValidationError(fmt.Sprintf("unsupported storage provider: %s", config.Provider), nil)
	}
	if err != nil {
		return nil, err
	}
	return Instrument(p), nil
}

// SupportedProviders lists the provider types NewProvider accepts
func SupportedProviders() []ProviderType {
	return []ProviderType{ProviderLocal, ProviderS3, ProviderAzure, ProviderGCS}
}

// validateID rejects ids that could escape the provider's namespace
func validateID(id string) error {
	if id == "" {
		return backup.NewValidationError("archive ID cannot be empty", nil)
	}
	if strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return backup.NewSecurityError("invalid archive ID", nil).WithContext("id", id)
	}
	return nil
}

// normalizePrefix makes sure a non-empty object prefix ends in "/"
func normalizePrefix(prefix string) string {
	if prefix == "" {
		return defaultPrefix
	}
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return prefix
}

// objectKey joins prefix, id and object name for object stores
func objectKey(prefix, id, object string) string {
	return prefix + id + "/" + object
}

// idFromMetadataKey extracts the archive id from a metadata object key
func idFromMetadataKey(prefix, key string) string {
	if !strings.HasPrefix(key, prefix) {
		return ""
	}
	rest := strings.TrimPrefix(key, prefix)
	suffix := "/" + metadataObject
	if !strings.HasSuffix(rest, suffix) {
		return ""
	}
	id := strings.TrimSuffix(rest, suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}

func matchesFilter(m *Metadata, filter Filter) bool {
	return filter.Prefix == "" || strings.HasPrefix(m.ID, filter.Prefix)
}

func notFound(id string, cause error) error {
	return backup.NewNotFoundError(fmt.Sprintf("archive %s not found", id), cause).WithContext("id", id)
}

// instrumented records provider calls and transferred bytes
type instrumented struct {
	Provider
}

// Instrument wraps p so every call is counted in the archive metrics
func Instrument(p Provider) Provider {
	if _, ok := p.(*instrumented); ok {
		return p
	}
	return &instrumented{Provider: p}
}

func (i *instrumented) name() string {
	return string(i.Provider.Type())
}

func (i *instrumented) Store(ctx context.Context, a *Archive) error {
	err := i.Provider.Store(ctx, a)
	metrics.ObserveStorage(i.name(), "store", err)
	if err == nil {
		metrics.ArchiveBytes.WithLabelValues(i.name(), "write").Add(float64(len(a.Data)))
	}
	return err
}

func (i *instrumented) Retrieve(ctx context.Context, id string) (*Archive, error) {
	a, err := i.Provider.Retrieve(ctx, id)
	metrics.ObserveStorage(i.name(), "retrieve", err)
	if err == nil {
		metrics.ArchiveBytes.WithLabelValues(i.name(), "read").Add(float64(len(a.Data)))
	}
	return a, err
}

func (i *instrumented) Delete(ctx context.Context, id string) error {
	err := i.Provider.Delete(ctx, id)
	metrics.ObserveStorage(i.name(), "delete", err)
	return err
}

func (i *instrumented) List(ctx context.Context, filter Filter) ([]*Metadata, error) {
	list, err := i.Provider.List(ctx, filter)
	metrics.ObserveStorage(i.name(), "list", err)
	return list, err
}

func (i *instrumented) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	m, err := i.Provider.GetMetadata(ctx, id)
	metrics.ObserveStorage(i.name(), "metadata", err)
	return m, err
}
