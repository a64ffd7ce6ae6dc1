package archive

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"cafe-pos/internal/backup"
)

// CompressionType names the algorithm applied to the payload before storage
type CompressionType string

const (
	CompressionNone CompressionType = "none"
	CompressionGzip CompressionType = "gzip"
	CompressionLZ4  CompressionType = "lz4"
	CompressionZstd CompressionType = "zstd"
)

// ProviderType names a storage backend
type ProviderType string

const (
	ProviderLocal ProviderType = "local"
	ProviderS3    ProviderType = "s3"
	ProviderAzure ProviderType = "azure"
	ProviderGCS   ProviderType = "gcs"
)

// Status of a stored archive
type Status string

const (
	StatusCompleted Status = "completed"
	StatusCorrupted Status = "corrupted"
)

// Metadata describes one stored archive. It is written next to the
// archive body so listings never need to download the payload.
type Metadata struct {
	ID               string          `json:"id"`
	CreatedAt        time.Time       `json:"created_at"`
	CreatedBy        string          `json:"created_by,omitempty"`
	Description      string          `json:"description,omitempty"`
	Tags             []string        `json:"tags,omitempty"`
	Size             int64           `json:"size"`
	StoredSize       int64           `json:"stored_size"`
	Compression      CompressionType `json:"compression"`
	Encrypted        bool            `json:"encrypted"`
	Checksum         string          `json:"checksum"`
	Counts           backup.Counts   `json:"counts"`
	PayloadCreatedAt time.Time       `json:"payload_created_at"`
	StorageLocation  string          `json:"storage_location,omitempty"`
	Status           Status          `json:"status"`
}

// Validate checks the fields every stored archive must carry
func (m *Metadata) Validate() error {
	var errs backup.ValidationErrors

	if m.ID == "" {
		errs.Add("id", "archive ID is required", m.ID)
	}
	if m.CreatedAt.IsZero() {
		errs.Add("created_at", "creation time is required", m.CreatedAt)
	}
	if m.Checksum == "" {
		errs.Add("checksum", "checksum is required", m.Checksum)
	}
	if m.Size < 0 || m.StoredSize < 0 {
		errs.Add("size", "size cannot be negative", m.Size)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// ToJSON serializes the metadata
func (m *Metadata) ToJSON() ([]byte, error) {
	return json.MarshalIndent(m, "", "  ")
}

func parseMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, backup.NewStorageError("failed to unmarshal archive metadata", err)
	}
	if err := m.Validate(); err != nil {
		return nil, backup.NewValidationError("invalid archive metadata", err)
	}
	return &m, nil
}

// Archive is the stored body plus its metadata. Data holds the bytes as
// they sit in storage (compressed and possibly encrypted).
type Archive struct {
	Metadata *Metadata
	Data     []byte
}

// Verify compares the checksum of Data with the recorded one
func (a *Archive) Verify() error {
	if a.Metadata == nil {
		return backup.NewValidationError("archive metadata is missing", nil)
	}
	if got := checksum(a.Data); got != a.Metadata.Checksum {
		return backup.NewCorruptionError(
			fmt.Sprintf("checksum mismatch for archive %s", a.Metadata.ID), nil).
			WithContext("expected", a.Metadata.Checksum).
			WithContext("actual", got)
	}
	return nil
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Filter narrows a listing
type Filter struct {
	Prefix   string
	MaxItems int
}

// CreateOptions are caller supplied details recorded in the metadata
type CreateOptions struct {
	Description string
	Tags        []string
	CreatedBy   string
}
