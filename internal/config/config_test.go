package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"cafe-pos/internal/archive"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
database:
  driver: mysql
  host: db.internal
  username: pos
  password: supersecretpassword
  database: cafe
server:
  address: ":9090"
  read_timeout: 10s
  allowed_origins: ["https://admin.example.com"]
auth:
  jwt_secret: 0123456789abcdef0123
archive:
  compression: zstd
  storage:
    provider: s3
    s3:
      bucket: cafe-archives
      region: ap-southeast-1
      access_key: AKIAEXAMPLEKEY
      secret_key: verysecretkeyvalue
  retention:
    max_archives: 14
    max_age: 720h
logging:
  level: verbose
  format: json
`

func loadYAML(t *testing.T, doc string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(bytes.NewBufferString(doc)))
	return v
}

func TestLoad(t *testing.T) {
	c, err := Load(loadYAML(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "mysql", c.Database.Driver)
	assert.Equal(t, 3306, c.Database.Port)
	assert.Equal(t, ":9090", c.Server.Address)
	assert.Equal(t, 10*time.Second, c.Server.ReadTimeout)
	assert.Equal(t, DefaultMaxRestoreBytes, c.Server.MaxRestoreBytes)
	assert.Equal(t, []string{"https://admin.example.com"}, c.Server.AllowedOrigins)
	assert.Equal(t, archive.CompressionZstd, c.Archive.Compression)
	assert.Equal(t, archive.ProviderS3, c.Archive.Storage.Provider)
	require.NotNil(t, c.Archive.Storage.S3)
	assert.Equal(t, "cafe-archives", c.Archive.Storage.S3.Bucket)
	assert.Equal(t, 14, c.Archive.Retention.MaxArchives)
	assert.Equal(t, 720*time.Hour, c.Archive.Retention.MaxAge)
	assert.Equal(t, "ID", c.WhatsApp.DefaultRegion)
	assert.NoError(t, c.ValidateServer())
}

func TestLoad_Defaults(t *testing.T) {
	c, err := Load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "sqlite3", c.Database.Driver)
	assert.Equal(t, ":8080", c.Server.Address)
	assert.Equal(t, archive.ProviderLocal, c.Archive.Storage.Provider)
	assert.Equal(t, "normal", c.Logging.Level)
	assert.Error(t, c.ValidateServer(), "serving requires a jwt secret")
}

func TestLoad_Invalid(t *testing.T) {
	_, err := Load(loadYAML(t, "logging:\n  level: chatty\n"))
	assert.Error(t, err)

	_, err = Load(loadYAML(t, "archive:\n  compression: rar\n"))
	assert.Error(t, err)
}

func TestBindEnv(t *testing.T) {
	t.Setenv("CAFE_POS_DATABASE_PATH", "/var/lib/cafe/pos.db")
	t.Setenv("CAFE_POS_AUTH_JWT_SECRET", "env-secret-0123456789")

	v := viper.New()
	BindEnv(v)
	c, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/cafe/pos.db", c.Database.Path)
	assert.Equal(t, "env-secret-0123456789", c.Auth.JWTSecret)
}

func TestYAML_MasksSecrets(t *testing.T) {
	c, err := Load(loadYAML(t, sampleYAML))
	require.NoError(t, err)

	out, err := c.YAML()
	require.NoError(t, err)
	text := string(out)

	assert.NotContains(t, text, "supersecretpassword")
	assert.NotContains(t, text, "0123456789abcdef0123")
	assert.NotContains(t, text, "verysecretkeyvalue")
	assert.NotContains(t, text, "AKIAEXAMPLEKEY")
	assert.Contains(t, text, "cafe-archives")

	assert.Equal(t, "supersecretpassword", c.Database.Password, "masking works on a copy")
	assert.Equal(t, "verysecretkeyvalue", c.Archive.Storage.S3.SecretKey)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	c := &AppConfig{}
	c.Uploads.DefaultRoot = filepath.Join(dir, "missing")
	c.Archive.Storage.Local = &archive.LocalConfig{BasePath: filepath.Join(dir, "archives")}
	c.SetDefaults()

	r := Check(c)
	assert.Equal(t, Healthy, r.ComponentStatus["configuration"])
	assert.Equal(t, Healthy, r.ComponentStatus["archive_storage"])
	assert.Equal(t, Degraded, r.ComponentStatus["uploads"])
	assert.Equal(t, Degraded, r.ComponentStatus["auth"])
	assert.Equal(t, Degraded, r.OverallHealth)
	assert.NotEmpty(t, r.Recommendations)

	c.Archive.Encryption = archive.EncryptionConfig{Enabled: true, KeySource: "env", KeyEnvVar: "CAFE_POS_TEST_UNSET_KEY"}
	r = Check(c)
	assert.Equal(t, Unhealthy, r.ComponentStatus["encryption"])
	assert.Equal(t, Unhealthy, r.OverallHealth)
}
