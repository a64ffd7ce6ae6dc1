package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"cafe-pos/internal/archive"
	"cafe-pos/internal/database"
	"cafe-pos/internal/logging"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of every environment override, e.g.
// CAFE_POS_DATABASE_PASSWORD
const EnvPrefix = "CAFE_POS"

// AppConfig is the complete application configuration
type AppConfig struct {
	Database database.DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig            `mapstructure:"server" yaml:"server"`
	Auth     AuthConfig              `mapstructure:"auth" yaml:"auth"`
	Uploads  UploadsConfig           `mapstructure:"uploads" yaml:"uploads"`
	Backup   BackupConfig            `mapstructure:"backup" yaml:"backup"`
	Archive  archive.Config          `mapstructure:"archive" yaml:"archive"`
	WhatsApp WhatsAppConfig          `mapstructure:"whatsapp" yaml:"whatsapp"`
	Logging  LoggingConfig           `mapstructure:"logging" yaml:"logging"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Address         string        `mapstructure:"address" yaml:"address"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	MaxRestoreBytes int64         `mapstructure:"max_restore_bytes" yaml:"max_restore_bytes"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"`
}

// AuthConfig configures bearer token verification
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	Issuer    string `mapstructure:"issuer" yaml:"issuer,omitempty"`
}

// UploadsConfig lists the directories searched for uploaded files
type UploadsConfig struct {
	Roots       []string `mapstructure:"roots" yaml:"roots"`
	DefaultRoot string   `mapstructure:"default_root" yaml:"default_root"`
}

// BackupConfig configures backup auditing
type BackupConfig struct {
	AuditLog string `mapstructure:"audit_log" yaml:"audit_log"`
}

// WhatsAppConfig configures the Cloud API client. Credentials live in the
// whatsapp_settings table, not here.
type WhatsAppConfig struct {
	APIBaseURL    string        `mapstructure:"api_base_url" yaml:"api_base_url"`
	DefaultRegion string        `mapstructure:"default_region" yaml:"default_region"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// LoggingConfig configures the application logger
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	File   string `mapstructure:"file" yaml:"file,omitempty"`
}

// DefaultMaxRestoreBytes caps uploaded restore files
const DefaultMaxRestoreBytes int64 = 50 << 20

// SetDefaults fills every unset value
func (c *AppConfig) SetDefaults() {
	c.Database.SetDefaults()
	c.Server.SetDefaults()
	c.Archive.SetDefaults()
	c.WhatsApp.SetDefaults()
	c.Logging.SetDefaults()
}

func (s *ServerConfig) SetDefaults() {
	if s.Address == "" {
		s.Address = ":8080"
	}
	if s.ReadTimeout == 0 {
		s.ReadTimeout = 30 * time.Second
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 60 * time.Second
	}
	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = 15 * time.Second
	}
	if s.MaxRestoreBytes == 0 {
		s.MaxRestoreBytes = DefaultMaxRestoreBytes
	}
}

func (w *WhatsAppConfig) SetDefaults() {
	if w.APIBaseURL == "" {
		w.APIBaseURL = "https://graph.facebook.com"
	}
	if w.DefaultRegion == "" {
		w.DefaultRegion = "ID"
	}
	if w.Timeout == 0 {
		w.Timeout = 15 * time.Second
	}
}

func (l *LoggingConfig) SetDefaults() {
	if l.Level == "" {
		l.Level = "normal"
	}
	if l.Format == "" {
		l.Format = "text"
	}
}

// Validate checks every section. Server-only settings such as the JWT
// secret are checked by ValidateServer.
func (c *AppConfig) Validate() error {
	var errs []error

	if err := c.Database.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Archive.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("archive: %w", err))
	}
	if c.Server.MaxRestoreBytes < 0 {
		errs = append(errs, errors.New("server.max_restore_bytes cannot be negative"))
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}

	return errors.Join(errs...)
}

// ValidateServer adds the checks needed before serving the API
func (c *AppConfig) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Auth.JWTSecret) < 16 {
		return errors.New("auth.jwt_secret must be at least 16 characters")
	}
	return nil
}

// Load reads the configuration from v, applies defaults and validates it
func Load(v *viper.Viper) (*AppConfig, error) {
	c, err := Decode(v)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return c, nil
}

// Decode reads the configuration from v and applies defaults without
// validating it
func Decode(v *viper.Viper) (*AppConfig, error) {
	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("failed to decode configuration: %w", err)
	}
	c.SetDefaults()
	return &c, nil
}

// BindEnv makes v read CAFE_POS_* variables. Nested keys use "_" for ".".
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}
}

var envKeys = []string{
	"database.driver", "database.host", "database.port", "database.username",
	"database.password", "database.database", "database.path",
	"server.address", "server.max_restore_bytes",
	"auth.jwt_secret", "auth.issuer",
	"uploads.default_root",
	"backup.audit_log",
	"archive.storage.provider", "archive.storage.local.base_path",
	"archive.compression",
	"archive.encryption.enabled", "archive.encryption.passphrase",
	"whatsapp.api_base_url", "whatsapp.default_region",
	"logging.level", "logging.format", "logging.file",
}

// NewLogger builds the application logger from the logging section
func (c *AppConfig) NewLogger() (*logging.Logger, error) {
	level, err := logging.ParseLevel(c.Logging.Level)
	if err != nil {
		return nil, err
	}
	return logging.NewLogger(logging.Config{
		Level:   level,
		Format:  c.Logging.Format,
		LogFile: c.Logging.File,
	})
}

// Masked returns a copy with every secret masked
func (c AppConfig) Masked() AppConfig {
	c.Database.Password = logging.MaskSecret(c.Database.Password)
	c.Auth.JWTSecret = logging.MaskSecret(c.Auth.JWTSecret)
	c.Archive.Encryption.Passphrase = logging.MaskSecret(c.Archive.Encryption.Passphrase)

	if s3 := c.Archive.Storage.S3; s3 != nil {
		masked := *s3
		masked.AccessKey = logging.MaskSecret(masked.AccessKey)
		masked.SecretKey = logging.MaskSecret(masked.SecretKey)
		c.Archive.Storage.S3 = &masked
	}
	if az := c.Archive.Storage.Azure; az != nil {
		masked := *az
		masked.AccountKey = logging.MaskSecret(masked.AccountKey)
		c.Archive.Storage.Azure = &masked
	}
	return c
}

// YAML renders the configuration with secrets masked
func (c *AppConfig) YAML() ([]byte, error) {
	masked := c.Masked()
	return yaml.Marshal(&masked)
}
