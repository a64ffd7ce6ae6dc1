package archive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"

	"cafe-pos/internal/backup"

	"github.com/Azure/azure-storage-blob-go/azblob"
)

const azureBlockSize = 4 * 1024 * 1024

// AzureProvider stores archives as block blobs in one container
type AzureProvider struct {
	container azblob.ContainerURL
	name      string
	prefix    string
}

// NewAzureProvider authenticates with the account shared key
func NewAzureProvider(config *AzureConfig) (*AzureProvider, error) {
	if config == nil {
		return nil, backup.NewValidationError("Azure storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, backup.NewValidationError("invalid Azure storage configuration", err)
	}

	credential, err := azblob.NewSharedKeyCredential(config.AccountName, config.AccountKey)
	if err != nil {
		return nil, backup.NewStorageError("failed to create Azure credentials", err)
	}
	pipeline := azblob.NewPipeline(credential, azblob.PipelineOptions{})

	serviceURL, err := url.Parse(fmt.Sprintf("https://%s.blob.core.windows.net", config.AccountName))
	if err != nil {
		return nil, backup.NewStorageError("failed to parse Azure service URL", err)
	}

	return &AzureProvider{
		container: azblob.NewServiceURL(*serviceURL, pipeline).NewContainerURL(config.ContainerName),
		name:      config.ContainerName,
		prefix:    normalizePrefix(config.Prefix),
	}, nil
}

func (p *AzureProvider) Type() ProviderType { return ProviderAzure }

func (p *AzureProvider) Store(ctx context.Context, a *Archive) error {
	if a == nil || a.Metadata == nil {
		return backup.NewValidationError("archive cannot be nil", nil)
	}
	id := a.Metadata.ID
	if err := validateID(id); err != nil {
		return err
	}
	a.Metadata.StorageLocation = fmt.Sprintf("azure://%s/%s%s", p.name, p.prefix, id)

	if err := a.Metadata.Validate(); err != nil {
		return backup.NewValidationError("invalid archive metadata", err)
	}
	meta, err := a.Metadata.ToJSON()
	if err != nil {
		return backup.NewStorageError("failed to serialize metadata", err)
	}

	body := p.container.NewBlockBlobURL(objectKey(p.prefix, id, bodyObject))
	_, err = azblob.UploadBufferToBlockBlob(ctx, a.Data, body, azblob.UploadToBlockBlobOptions{
		BlockSize:   azureBlockSize,
		Parallelism: 4,
		Metadata: azblob.Metadata{
			"archiveid":   id,
			"compression": string(a.Metadata.Compression),
			"checksum":    a.Metadata.Checksum,
		},
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: "application/octet-stream"},
	})
	if err != nil {
		return backup.NewStorageError("failed to upload archive to Azure", err)
	}

	metaBlob := p.container.NewBlockBlobURL(objectKey(p.prefix, id, metadataObject))
	_, err = azblob.UploadBufferToBlockBlob(ctx, meta, metaBlob, azblob.UploadToBlockBlobOptions{
		BlockSize:       azureBlockSize,
		BlobHTTPHeaders: azblob.BlobHTTPHeaders{ContentType: "application/json"},
	})
	if err != nil {
		return backup.NewStorageError("failed to upload metadata to Azure", err)
	}
	return nil
}

func (p *AzureProvider) Retrieve(ctx context.Context, id string) (*Archive, error) {
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := p.download(ctx, id, objectKey(p.prefix, id, bodyObject))
	if err != nil {
		return nil, err
	}
	return &Archive{Metadata: meta, Data: data}, nil
}

func (p *AzureProvider) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	var names []string
	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := p.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: p.prefix + id + "/",
		})
		if err != nil {
			return backup.NewStorageError("failed to list archive blobs", err)
		}
		for _, item := range resp.Segment.BlobItems {
			names = append(names, item.Name)
		}
		marker = resp.NextMarker
	}
	if len(names) == 0 {
		return notFound(id, nil)
	}

	for _, name := range names {
		blob := p.container.NewBlockBlobURL(name)
		if _, err := blob.Delete(ctx, azblob.DeleteSnapshotsOptionInclude, azblob.BlobAccessConditions{}); err != nil {
			return backup.NewStorageError(fmt.Sprintf("failed to delete blob %s", name), err)
		}
	}
	return nil
}

func (p *AzureProvider) List(ctx context.Context, filter Filter) ([]*Metadata, error) {
	var out []*Metadata

	for marker := (azblob.Marker{}); marker.NotDone(); {
		resp, err := p.container.ListBlobsFlatSegment(ctx, marker, azblob.ListBlobsSegmentOptions{
			Prefix: p.prefix + filter.Prefix,
		})
		if err != nil {
			return nil, backup.NewStorageError("failed to list archives from Azure", err)
		}

		for _, item := range resp.Segment.BlobItems {
			id := idFromMetadataKey(p.prefix, item.Name)
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
				return out, nil
			}
		}
		marker = resp.NextMarker
	}
	return out, nil
}

func (p *AzureProvider) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := p.download(ctx, id, objectKey(p.prefix, id, metadataObject))
	if err != nil {
		return nil, err
	}
	return parseMetadata(data)
}

func (p *AzureProvider) download(ctx context.Context, id, name string) ([]byte, error) {
	blob := p.container.NewBlockBlobURL(name)
	resp, err := blob.Download(ctx, 0, azblob.CountToEnd, azblob.BlobAccessConditions{}, false, azblob.ClientProvidedKeyOptions{})
	if err != nil {
		var serr azblob.StorageError
		if errors.As(err, &serr) && serr.ServiceCode() == azblob.ServiceCodeBlobNotFound {
			return nil, notFound(id, err)
		}
		return nil, backup.NewStorageError(fmt.Sprintf("failed to download %s from Azure", name), err)
	}

	body := resp.Body(azblob.RetryReaderOptions{MaxRetryRequests: 5})
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, backup.NewStorageError("failed to read Azure blob", err)
	}
	return data, nil
}
