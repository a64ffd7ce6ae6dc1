package archive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"cafe-pos/internal/backup"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
)

// S3Provider stores archives in an S3 bucket as <prefix><id>/archive.bin
// and <prefix><id>/metadata.json
type S3Provider struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Provider creates an S3 client with static credentials
func NewS3Provider(config *S3Config) (*S3Provider, error) {
	if config == nil {
		return nil, backup.NewValidationError("S3 storage configuration is required", nil)
	}
	if err := config.Validate(); err != nil {
		return nil, backup.NewValidationError("invalid S3 storage configuration", err)
	}

	awsConfig := &aws.Config{
		Region:      aws.String(config.Region),
		Credentials: credentials.NewStaticCredentials(config.AccessKey, config.SecretKey, ""),
	}
	if config.Endpoint != "" {
		awsConfig.Endpoint = aws.String(config.Endpoint)
		awsConfig.S3ForcePathStyle = aws.Bool(true)
	}

	sess, err := session.NewSession(awsConfig)
	if err != nil {
		return nil, backup.NewStorageError("failed to create AWS session", err)
	}

	return &S3Provider{
		client: s3.New(sess),
		bucket: config.Bucket,
		prefix: normalizePrefix(config.Prefix),
	}, nil
}

func (p *S3Provider) Type() ProviderType { return ProviderS3 }

func (p *S3Provider) Store(ctx context.Context, a *Archive) error {
	if a == nil || a.Metadata == nil {
		return backup.NewValidationError("archive cannot be nil", nil)
	}
	id := a.Metadata.ID
	if err := validateID(id); err != nil {
		return err
	}
	a.Metadata.StorageLocation = fmt.Sprintf("s3://%s/%s%s", p.bucket, p.prefix, id)

	if err := a.Metadata.Validate(); err != nil {
		return backup.NewValidationError("invalid archive metadata", err)
	}
	meta, err := a.Metadata.ToJSON()
	if err != nil {
		return backup.NewStorageError("failed to serialize metadata", err)
	}

	_, err = p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(objectKey(p.prefix, id, bodyObject)),
		Body:        bytes.NewReader(a.Data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]*string{
			"archive-id":  aws.String(id),
			"compression": aws.String(string(a.Metadata.Compression)),
			"checksum":    aws.String(a.Metadata.Checksum),
		},
	})
	if err != nil {
		return backup.NewStorageError("failed to upload archive to S3", err)
	}

	_, err = p.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Key:         aws.String(objectKey(p.prefix, id, metadataObject)),
		Body:        bytes.NewReader(meta),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return backup.NewStorageError("failed to upload metadata to S3", err)
	}
	return nil
}

func (p *S3Provider) Retrieve(ctx context.Context, id string) (*Archive, error) {
	meta, err := p.GetMetadata(ctx, id)
	if err != nil {
		return nil, err
	}
	data, err := p.get(ctx, id, objectKey(p.prefix, id, bodyObject))
	if err != nil {
		return nil, err
	}
	return &Archive{Metadata: meta, Data: data}, nil
}

func (p *S3Provider) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	listed, err := p.client.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix + id + "/"),
	})
	if err != nil {
		return backup.NewStorageError("failed to list archive objects", err)
	}
	if len(listed.Contents) == 0 {
		return notFound(id, nil)
	}

	objects := make([]*s3.ObjectIdentifier, 0, len(listed.Contents))
	for _, obj := range listed.Contents {
		objects = append(objects, &s3.ObjectIdentifier{Key: obj.Key})
	}
	_, err = p.client.DeleteObjectsWithContext(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(p.bucket),
		Delete: &s3.Delete{Objects: objects},
	})
	if err != nil {
		return backup.NewStorageError("failed to delete archive objects from S3", err)
	}
	return nil
}

func (p *S3Provider) List(ctx context.Context, filter Filter) ([]*Metadata, error) {
	var (
		out     []*Metadata
		loadErr error
	)
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(p.bucket),
		Prefix: aws.String(p.prefix + filter.Prefix),
	}

	err := p.client.ListObjectsV2PagesWithContext(ctx, input, func(page *s3.ListObjectsV2Output, lastPage bool) bool {
		for _, obj := range page.Contents {
			id := idFromMetadataKey(p.prefix, aws.StringValue(obj.Key))
			if id == "" {
				continue
			}
			meta, err := p.GetMetadata(ctx, id)
			if err != nil {
				if backup.IsNotFoundError(err) {
					continue
				}
				loadErr = err
				return false
			}
			out = append(out, meta)
			if filter.MaxItems > 0 && len(out) >= filter.MaxItems {
				return false
			}
		}
		return true
	})
	if err != nil {
		return nil, backup.NewStorageError("failed to list archives from S3", err)
	}
	if loadErr != nil {
		return nil, loadErr
	}
	return out, nil
}

func (p *S3Provider) GetMetadata(ctx context.Context, id string) (*Metadata, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := p.get(ctx, id, objectKey(p.prefix, id, metadataObject))
	if err != nil {
		return nil, err
	}
	return parseMetadata(data)
}

func (p *S3Provider) get(ctx context.Context, id, key string) ([]byte, error) {
	result, err := p.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(p.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isS3NotFound(err) {
			return nil, notFound(id, err)
		}
		return nil, backup.NewStorageError(fmt.Sprintf("failed to download %s from S3", key), err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, backup.NewStorageError("failed to read S3 object", err)
	}
	return data, nil
}

func isS3NotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}

// HealthCheck verifies the bucket is reachable
func (p *S3Provider) HealthCheck(ctx context.Context) error {
	_, err := p.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{Bucket: aws.String(p.bucket)})
	if err != nil {
		return backup.NewStorageError("S3 bucket not accessible", err)
	}
	return nil
}
