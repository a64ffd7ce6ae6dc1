package archive

import (
	"os"
	"path/filepath"
	"testing"

	"cafe-pos/internal/backup"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passphraseConfig(secret string) EncryptionConfig {
	return EncryptionConfig{Enabled: true, KeySource: "passphrase", Passphrase: secret}
}

func TestEncryptor_RoundTrip(t *testing.T) {
	e := NewEncryptor(passphraseConfig("correct horse"))
	plain := []byte(`{"type":"cms-backup"}`)

	sealed, err := e.Encrypt(plain)
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "cms-backup")

	again, err := e.Encrypt(plain)
	require.NoError(t, err)
	assert.NotEqual(t, sealed, again, "salt and nonce are random per call")

	out, err := e.Decrypt(sealed)
	require.NoError(t, err)
	assert.Equal(t, plain, out)
}

func TestEncryptor_WrongKey(t *testing.T) {
	sealed, err := NewEncryptor(passphraseConfig("one")).Encrypt([]byte("secret data"))
	require.NoError(t, err)

	_, err = NewEncryptor(passphraseConfig("two")).Decrypt(sealed)
	require.Error(t, err)
	assert.Equal(t, backup.BackupErrorTypeEncryption, backup.ErrorType(err))
}

func TestEncryptor_Disabled(t *testing.T) {
	e := NewEncryptor(EncryptionConfig{})
	assert.False(t, e.Enabled())

	out, err := e.Encrypt([]byte("plain"))
	require.NoError(t, err)
	assert.Equal(t, []byte("plain"), out)
}

func TestEncryptor_ShortInput(t *testing.T) {
	e := NewEncryptor(passphraseConfig("k"))
	_, err := e.Decrypt([]byte("short"))
	assert.Error(t, err)

	_, err = e.Decrypt(make([]byte, saltSize+4))
	assert.Error(t, err)
}

func TestEncryptionConfig_Secret(t *testing.T) {
	t.Setenv("TEST_ARCHIVE_KEY", "from-env")
	keyFile := filepath.Join(t.TempDir(), "key")
	require.NoError(t, os.WriteFile(keyFile, []byte("from-file\n"), 0o600))

	tests := []struct {
		name    string
		config  EncryptionConfig
		want    string
		wantErr bool
	}{
		{"passphrase", EncryptionConfig{KeySource: "passphrase", Passphrase: "pw"}, "pw", false},
		{"env", EncryptionConfig{KeySource: "env", KeyEnvVar: "TEST_ARCHIVE_KEY"}, "from-env", false},
		{"env unset", EncryptionConfig{KeySource: "env", KeyEnvVar: "TEST_ARCHIVE_KEY_UNSET"}, "", true},
		{"file", EncryptionConfig{KeySource: "file", KeyPath: keyFile}, "from-file", false},
		{"missing file", EncryptionConfig{KeySource: "file", KeyPath: keyFile + ".nope"}, "", true},
		{"unknown", EncryptionConfig{KeySource: "vault"}, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.config.Secret()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}
