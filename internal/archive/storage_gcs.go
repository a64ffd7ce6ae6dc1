package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cafe-pos/internal/backup"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// GCSProvider stores archives in a Google Cloud Storage bucket
type GCSProvider struct {
	client *storage.Client
	bucket string
	prefix string
}

// NewGCSProvider uses the credentials file when set and application
// default credentials otherwise
func NewGCSProvider(ctx context.Context, config *GCSConfig) (*GCSProvider, error) {
	if config == nil {
		return nil, backup.NewValidationError("GCS storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, backup.NewValidationError("invalid GCS storage configuration", err)
	}

	var opts []option.ClientOption
	if config.CredentialsPath != "" {
		opts = append(opts, option.WithCredentialsFile(config.CredentialsPath))
	}
	if config.ProjectID != "" {
		opts = append(opts, option.WithQuotaProject(config.ProjectID))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, backup.NewStorageError("failed to create GCS client", err)
	}

	return &GCSProvider{
		client: client,
		bucket: config.Bucket,
		prefix: normalizePrefix(config.Prefix),
	}, nil
}

func (p *GCSProvider) Type() ProviderType { return ProviderGCS }

func (p *GCSProvider) Store(ctx context.Context, a *Archive) error {
	if a == nil || a.Metadata == nil {
		return backup.NewValidationError("archive cannot be nil", nil)
	}
	id := a.Metadata.ID
	if err := validateID(id); err != nil {
		return err
	}
	a.Metadata.StorageLocation = fmt.Sprintf("gs://%s/%s%s", p.bucket, p.prefix, id)

	if err := a.Metadata.Validate(); err != nil {
		return backup.NewValidationError("invalid archive metadata", err)
	}
	meta, err := a.Metadata.ToJSON()
	if err != nil {
		return backup.NewStorageError("failed to serialize metadata", err)
	}

	if err := p.put(ctx, objectKey(p.prefix, id, bodyObject), "application/octet-stream", a.Data, map[string]string{
		"archive-id":  id,
		"compression": string(a.Metadata.Compression),
		"checksum":    a.Metadata.Checksum,
	}); err != nil {
		return backup.NewStorageError("failed to upload archive to GCS", err)
	}
	if err := p.put(ctx, objectKey(p.prefix, id, metadataObject), "application/json", meta, nil); err != nil {
		return backup.NewStorageError("failed to upload metadata to GCS", err)
	}
	return nil
}

func (p *GCSProvider) put(ctx context.Context, name, contentType string, data []byte, md map[string]string) error {
	w := p.client.Bucket(p.bucket).Object(name).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = md
	if _, err := w.Write(data); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

func (p *GCSProvider) Retrieve(ctx context.Context, id string) (*Archive, error) {
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := p.read(ctx, id, objectKey(p.prefix, id, bodyObject))
	if err != nil {
		return nil, err
	}
	return &Archive{Metadata: meta, Data: data}, nil
}

func (p *GCSProvider) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	bucket := p.client.Bucket(p.bucket)
	it := bucket.Objects(ctx, &storage.Query{Prefix: p.prefix + id + "/"})
	deleted := 0
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return backup.NewStorageError("failed to list archive objects", err)
		}
		if err := bucket.Object(attrs.Name).Delete(ctx); err != nil {
			return backup.NewStorageError(fmt.Sprintf("failed to delete object %s", attrs.Name), err)
		}
		deleted++
	}
	if deleted == 0 {
		return notFound(id, nil)
	}
	return nil
}

func (p *GCSProvider) List(ctx context.Context, filter Filter) ([]*Metadata, error) {
	var out []*Metadata

	it := p.client.Bucket(p.bucket).Objects(ctx, &storage.Query{Prefix: p.prefix + filter.Prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, backup.NewStorageError("failed to list archives from GCS", err)
		}

		id := idFromMetadataKey(p.prefix, attrs.Name)
		if id == "" {
			continue
		}
		meta, err := p.GetMetadata(ctx, id)
		if err != nil {
			if backup.IsNotFoundError(err) {
				continue
			}
			return nil, err
		}
		out = append(out, meta)
		if filter.MaxItems > 0 && len(out) >= filter.MaxItems {
			break
		}
	}
	return out, nil
}

func (p *GCSProvider) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := p.read(ctx, id, objectKey(p.prefix, id, metadataObject))
	if err != nil {
		return nil, err
	}
	return parseMetadata(data)
}

func (p *GCSProvider) read(ctx context.Context, id, name string) ([]byte, error) {
	r, err := p.client.Bucket(p.bucket).Object(name).NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil, notFound(id, err)
		}
		return nil, backup.NewStorageError(fmt.Sprintf("failed to download %s from GCS", name), err)
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, backup.NewStorageError("failed to read GCS object", err)
	}
	return data, nil
}

// Close releases the GCS client
func (p *GCSProvider) Close() error {
	return p.client.Close()
}
