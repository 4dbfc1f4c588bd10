// Package vault provides authenticated encryption for provider credentials
// at rest.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/ports"
)

const (
	// KeySize is the required symmetric key length (AES-256).
	KeySize = 32

	nonceSize = 12
	tagSize   = 16
)

// Cipher implements ports.CredentialCipher with AES-256-GCM. A fresh random
// 96-bit nonce is drawn per call and the 128-bit tag is stored separately so
// tampering with either fails decryption.
type Cipher struct{}

// NewCipher creates a credential cipher.
func NewCipher() *Cipher {
	return &Cipher{}
}

var _ ports.CredentialCipher = (*Cipher)(nil)

// Encrypt seals the canonical JSON serialization of payload under key and
// tags the record with keyID.
func (c *Cipher) Encrypt(payload *domain.ProviderCredentials, keyID string, key []byte) (*domain.EncryptedCredentials, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	plain, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize credentials: %w", err)
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plain, nil)
	ciphertext := sealed[:len(sealed)-tagSize]
	tag := sealed[len(sealed)-tagSize:]

	digest := sha256.Sum256(plain)

	return &domain.EncryptedCredentials{
		Ciphertext:  ciphertext,
		IV:          nonce,
		AuthTag:     tag,
		KeyID:       keyID,
		Fingerprint: hex.EncodeToString(digest[:]),
	}, nil
}

// Decrypt opens an encrypted record with key. Key selection by the stored
// KeyID is the caller's responsibility. Any authentication failure returns
// domain.ErrDecryptAuthentication.
func (c *Cipher) Decrypt(enc *domain.EncryptedCredentials, key []byte) (*domain.ProviderCredentials, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(enc.IV) != nonceSize {
		return nil, fmt.Errorf("%w: bad nonce length %d", domain.ErrDecryptAuthentication, len(enc.IV))
	}

	sealed := make([]byte, 0, len(enc.Ciphertext)+len(enc.AuthTag))
	sealed = append(sealed, enc.Ciphertext...)
	sealed = append(sealed, enc.AuthTag...)

	plain, err := aead.Open(nil, enc.IV, sealed, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrDecryptAuthentication, err)
	}

	var payload domain.ProviderCredentials
	if err := json.Unmarshal(plain, &payload); err != nil {
		return nil, fmt.Errorf("failed to deserialize credentials: %w", err)
	}

	return &payload, nil
}

// Fingerprint hashes the canonical plaintext serialization so callers can
// detect unchanged credentials without decrypting.
func (c *Cipher) Fingerprint(payload *domain.ProviderCredentials) (string, error) {
	plain, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to serialize credentials: %w", err)
	}
	digest := sha256.Sum256(plain)
	return hex.EncodeToString(digest[:]), nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
