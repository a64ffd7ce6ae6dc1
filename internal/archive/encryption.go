package archive

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"cafe-pos/internal/backup"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize         = 16
	keySize          = 32
	pbkdf2Iterations = 100000
)

// Encryptor seals archive bodies with AES-256-GCM. Each archive gets a
// fresh salt so the derived key differs per archive. Layout of the
// sealed body: salt | nonce | ciphertext.
type Encryptor struct {
	config EncryptionConfig
}

// NewEncryptor creates an encryptor. A disabled config passes data through.
func NewEncryptor(config EncryptionConfig) *Encryptor {
	return &Encryptor{config: config}
}

// Enabled reports whether Encrypt seals data
func (e *Encryptor) Enabled() bool {
	return e.config.Enabled
}

// Encrypt seals data
func (e *Encryptor) Encrypt(data []byte) ([]byte, error) {
	if !e.config.Enabled {
		return data, nil
	}

	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, backup.NewEncryptionError("failed to generate salt", err)
	}

	gcm, err := e.cipher(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, backup.NewEncryptionError("failed to generate nonce", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt opens data sealed by Encrypt
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	if len(data) < saltSize {
		return nil, backup.NewEncryptionError("encrypted data too short", nil)
	}

	gcm, err := e.cipher(data[:saltSize])
	if err != nil {
		return nil, err
	}

	rest := data[saltSize:]
	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return nil, backup.NewEncryptionError("encrypted data too short", nil)
	}

	plain, err := gcm.Open(nil, rest[:nonceSize], rest[nonceSize:], nil)
	if err != nil {
		return nil, backup.NewEncryptionError("failed to decrypt archive, wrong key or corrupted data", err)
	}
	return plain, nil
}

func (e *Encryptor) cipher(salt []byte) (cipher.AEAD, error) {
	secret, err := e.config.Secret()
	if err != nil {
		return nil, backup.NewEncryptionError("failed to get encryption key", err)
	}

	key := pbkdf2.Key(secret, salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, backup.NewEncryptionError("failed to create AES cipher", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, backup.NewEncryptionError("failed to create GCM cipher", err)
	}
	return gcm, nil
}
