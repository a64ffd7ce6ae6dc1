package archive

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"cafe-pos/internal/backup"
)

// LocalProvider stores each archive in its own directory under basePath
type LocalProvider struct {
	basePath    string
	permissions os.FileMode
}

// NewLocalProvider creates the base directory if needed
func NewLocalProvider(config *LocalConfig) (*LocalProvider, error) {
	if config == nil {
		return nil, backup.NewValidationError("local storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, backup.NewValidationError("invalid local storage configuration", err)
	}

	perm := config.Permissions
	if perm == 0 {
		perm = 0o750
	}
	p := &LocalProvider{basePath: filepath.Clean(config.BasePath), permissions: perm}
	if err := os.MkdirAll(p.basePath, p.permissions); err != nil {
		return nil, backup.NewStorageError("failed to create archive directory", err).WithContext("path", p.basePath)
	}
	return p, nil
}

func (p *LocalProvider) Type() ProviderType { return ProviderLocal }

// BasePath returns the archive directory
func (p *LocalProvider) BasePath() string { return p.basePath }

func (p *LocalProvider) Store(ctx context.Context, a *Archive) error {
	if a == nil || a.Metadata == nil {
		return backup.NewValidationError("archive cannot be nil", nil)
	}
	if err := validateID(a.Metadata.ID); err != nil {
		return err
	}

	dir := filepath.Join(p.basePath, a.Metadata.ID)
	if err := os.MkdirAll(dir, p.permissions); err != nil {
		return backup.NewStorageError("failed to create archive directory", err)
	}
	a.Metadata.StorageLocation = dir

	if err := a.Metadata.Validate(); err != nil {
		return backup.NewValidationError("invalid archive metadata", err)
	}
	meta, err := a.Metadata.ToJSON()
	if err != nil {
		return backup.NewStorageError("failed to serialize metadata", err)
	}

	if err := os.WriteFile(filepath.Join(dir, bodyObject), a.Data, 0o640); err != nil {
		return backup.NewStorageError("failed to write archive file", err)
	}
	// metadata last: a directory without metadata.json is ignored by List
	if err := os.WriteFile(filepath.Join(dir, metadataObject), meta, 0o640); err != nil {
		return backup.NewStorageError("failed to write metadata file", err)
	}
	return nil
}

func (p *LocalProvider) Retrieve(ctx context.Context, id string) (*Archive, error) {
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(p.basePath, id, bodyObject))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(id, err)
		}
		return nil, backup.NewStorageError("failed to read archive file", err)
	}
	return &Archive{Metadata: meta, Data: data}, nil
}

func (p *LocalProvider) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	dir := filepath.Join(p.basePath, id)
	if _, err := os.Stat(dir); errors.Is(err, fs.ErrNotExist) {
		return notFound(id, err)
	}
	if err := os.RemoveAll(dir); err != nil {
		return backup.NewStorageError("failed to delete archive directory", err)
	}
	return nil
}

func (p *LocalProvider) List(ctx context.Context, filter Filter) ([]*Metadata, error) {
	entries, err := os.ReadDir(p.basePath)
	if err != nil {
		return nil, backup.NewStorageError("failed to list archives", err)
	}

	var out []*Metadata
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := p.loadMetadata(filepath.Join(p.basePath, entry.Name(), metadataObject))
		if err != nil {
			// incomplete or foreign directory
			continue
		}
		if !matchesFilter(meta, filter) {
			continue
		}
		out = append(out, meta)
		if filter.MaxItems > 0 && len(out) >= filter.MaxItems {
			break
		}
	}
	return out, nil
}

func (p *LocalProvider) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	path := filepath.Join(p.basePath, id, metadataObject)
	meta, err := p.loadMetadata(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, notFound(id, err)
		}
		return nil, err
	}
	return meta, nil
}

func (p *LocalProvider) loadMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return parseMetadata(data)
}
