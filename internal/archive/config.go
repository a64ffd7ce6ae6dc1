package archive

import (
	"fmt"
	"os"
	"strings"
	"time"

	"cafe-pos/internal/backup"
)

// Config configures snapshot archives
type Config struct {
	Storage          StorageConfig    `mapstructure:"storage" yaml:"storage"`
	Compression      CompressionType  `mapstructure:"compression" yaml:"compression"`
	CompressionLevel int              `mapstructure:"compression_level" yaml:"compression_level"`
	Encryption       EncryptionConfig `mapstructure:"encryption" yaml:"encryption"`
	Retention        RetentionConfig  `mapstructure:"retention" yaml:"retention"`
}

// StorageConfig selects and configures the storage provider
type StorageConfig struct {
	Provider ProviderType `mapstructure:"provider" yaml:"provider"`
	Local    *LocalConfig `mapstructure:"local" yaml:"local,omitempty"`
	S3       *S3Config    `mapstructure:"s3" yaml:"s3,omitempty"`
	Azure    *AzureConfig `mapstructure:"azure" yaml:"azure,omitempty"`
	GCS      *GCSConfig   `mapstructure:"gcs" yaml:"gcs,omitempty"`
}

// LocalConfig stores archives in a directory
type LocalConfig struct {
	BasePath    string      `mapstructure:"base_path" yaml:"base_path"`
	Permissions os.FileMode `mapstructure:"permissions" yaml:"permissions"`
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	Region    string `mapstructure:"region" yaml:"region"`
	Prefix    string `mapstructure:"prefix" yaml:"prefix"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"`
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"`
	// Endpoint overrides the AWS endpoint for S3 compatible stores
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
}

type AzureConfig struct {
	AccountName   string `mapstructure:"account_name" yaml:"account_name"`
	AccountKey    string `mapstructure:"account_key" yaml:"account_key"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Prefix        string `mapstructure:"prefix" yaml:"prefix"`
}

type GCSConfig struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix"`
	CredentialsPath string `mapstructure:"credentials_path" yaml:"credentials_path"`
	ProjectID       string `mapstructure:"project_id" yaml:"project_id,omitempty"`
}

// EncryptionConfig controls AES-GCM encryption of archive bodies. The key
// is derived from a secret read from the configured source.
type EncryptionConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	KeySource  string `mapstructure:"key_source" yaml:"key_source"` // "passphrase", "env", "file"
	Passphrase string `mapstructure:"passphrase" yaml:"passphrase,omitempty"`
	KeyEnvVar  string `mapstructure:"key_env_var" yaml:"key_env_var,omitempty"`
	KeyPath    string `mapstructure:"key_path" yaml:"key_path,omitempty"`
}

// RetentionConfig bounds how many archives are kept. Zero disables a rule.
type RetentionConfig struct {
	MaxArchives int           `mapstructure:"max_archives" yaml:"max_archives"`
	MaxAge      time.Duration `mapstructure:"max_age" yaml:"max_age"`
}

const defaultKeyEnvVar = "CAFE_POS_ARCHIVE_KEY"

// SetDefaults fills unset values
func (c *Config) SetDefaults() {
	if c.Storage.Provider == "" {
		c.Storage.Provider = ProviderLocal
	}
	if c.Storage.Provider == ProviderLocal && c.Storage.Local == nil {
		c.Storage.Local = &LocalConfig{}
	}
	if c.Storage.Local != nil {
		if c.Storage.Local.BasePath == "" {
			c.Storage.Local.BasePath = "./archives"
		}
		if c.Storage.Local.Permissions == 0 {
			c.Storage.Local.Permissions = 0o750
		}
	}
	if c.Compression == "" {
		c.Compression = CompressionGzip
	}
	if c.Encryption.Enabled && c.Encryption.KeySource == "" {
		if c.Encryption.Passphrase != "" {
			c.Encryption.KeySource = "passphrase"
		} else {
			c.Encryption.KeySource = "env"
		}
	}
	if c.Encryption.KeySource == "env" && c.Encryption.KeyEnvVar == "" {
		c.Encryption.KeyEnvVar = defaultKeyEnvVar
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	var errs backup.ValidationErrors

	if err := c.Storage.Validate(); err != nil {
		errs.Add("storage", err.Error(), c.Storage.Provider)
	}

	switch c.Compression {
	case CompressionNone, CompressionGzip, CompressionLZ4, CompressionZstd:
	default:
		errs.Add("compression", "must be one of none, gzip, lz4, zstd", c.Compression)
	}

	if err := c.Encryption.Validate(); err != nil {
		errs.Add("encryption", err.Error(), c.Encryption.KeySource)
	}

	if c.Retention.MaxArchives < 0 {
		errs.Add("retention.max_archives", "cannot be negative", c.Retention.MaxArchives)
	}
	if c.Retention.MaxAge < 0 {
		errs.Add("retention.max_age", "cannot be negative", c.Retention.MaxAge)
	}

	if errs.HasErrors() {
		return errs
	}
	return nil
}

// Validate checks that the selected provider has its settings
func (s *StorageConfig) Validate() error {
	switch s.Provider {
	case ProviderLocal:
		if s.Local == nil {
			return fmt.Errorf("local storage configuration is required")
		}
		return s.Local.Validate()
	case ProviderS3:
		if s.S3 == nil {
			return fmt.Errorf("S3 storage configuration is required")
		}
		return s.S3.Validate()
	case ProviderAzure:
		if s.Azure == nil {
			return fmt.Errorf("Azure storage configuration is required")
		}
		return s.Azure.Validate()
	case ProviderGCS:
		if s.GCS == nil {
			return fmt.Errorf("GCS storage configuration is required")
		}
		return s.GCS.Validate()
	default:
		return fmt.Errorf("unsupported storage provider: %q", s.Provider)
	}
}

func (c *LocalConfig) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("base path is required")
	}
	return nil
}

func (c *S3Config) Validate() error {
	var missing []string
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if c.Region == "" {
		missing = append(missing, "region")
	}
	if c.AccessKey == "" {
		missing = append(missing, "access_key")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	return missingFields("S3", missing)
}

func (c *AzureConfig) Validate() error {
	var missing []string
	if c.AccountName == "" {
		missing = append(missing, "account_name")
	}
	if c.AccountKey == "" {
		missing = append(missing, "account_key")
	}
	if c.ContainerName == "" {
		missing = append(missing, "container_name")
	}
	return missingFields("Azure", missing)
}

func (c *GCSConfig) Validate() error {
	if c.Bucket == "" {
		return missingFields("GCS", []string{"bucket"})
	}
	return nil
}

func missingFields(provider string, fields []string) error {
	if len(fields) == 0 {
		return nil
	}
	return fmt.Errorf("%s configuration is missing %s", provider, strings.Join(fields, ", "))
}

// Validate checks the key source when encryption is enabled
func (e *EncryptionConfig) Validate() error {
	if !e.Enabled {
		return nil
	}
	switch e.KeySource {
	case "passphrase":
		if e.Passphrase == "" {
			return fmt.Errorf("passphrase is required for passphrase key source")
		}
	case "env":
		if e.KeyEnvVar == "" {
			return fmt.Errorf("key environment variable name is required for env key source")
		}
	case "file":
		if e.KeyPath == "" {
			return fmt.Errorf("key file path is required for file key source")
		}
	default:
		return fmt.Errorf("invalid key source %q, must be 'passphrase', 'env', or 'file'", e.KeySource)
	}
	return nil
}

// Secret returns the key material from the configured source
func (e *EncryptionConfig) Secret() ([]byte, error) {
	var secret string
	switch e.KeySource {
	case "passphrase":
		secret = e.Passphrase
	case "env":
		secret = os.Getenv(e.KeyEnvVar)
		if secret == "" {
			return nil, fmt.Errorf("environment variable %s is not set", e.KeyEnvVar)
		}
	case "file":
		raw, err := os.ReadFile(e.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read key file: %w", err)
		}
		secret = strings.TrimSpace(string(raw))
	default:
		return nil, fmt.Errorf("invalid key source %q", e.KeySource)
	}
	if secret == "" {
		return nil, fmt.Errorf("encryption secret is empty")
	}
	return []byte(secret), nil
}
