package ports

import "scenergy-commerce-layer/internal/domain"

// CredentialCipher performs authenticated encryption of credential payloads.
// Decrypt must fail loudly on tampered ciphertext, tampered tag or wrong key;
// authentication failure is never silently tolerated.
type CredentialCipher interface {
	Encrypt(payload *domain.ProviderCredentials, keyID string, key []byte) (*domain.EncryptedCredentials, error)
	Decrypt(enc *domain.EncryptedCredentials, key []byte) (*domain.ProviderCredentials, error)
	Fingerprint(payload *domain.ProviderCredentials) (string, error)
}

// KeyProvider selects symmetric keys by generation id so records encrypted
// under retired keys remain readable.
type KeyProvider interface {
	PrimaryKeyID() string
	Key(keyID string) ([]byte, error)
}
