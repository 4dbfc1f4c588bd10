package vault

import (
	"encoding/base64"
	"fmt"

	"scenergy-commerce-layer/internal/domain"
	"scenergy-commerce-layer/internal/ports"
)

// Keyring holds the primary encryption key plus any retired generations, all
// addressable by key id. A missing or wrongly sized key is a configuration
// error raised here, at construction, not at call time.
type Keyring struct {
	primaryID string
	keys      map[string][]byte
}

var _ ports.KeyProvider = (*Keyring)(nil)

// NewKeyring decodes and validates the primary key and optional fallback
// generations. Keys are base64-encoded 32-byte secrets.
func NewKeyring(primaryID, primaryKeyB64 string, fallbacks map[string]string) (*Keyring, error) {
	if primaryID == "" {
		return nil, fmt.Errorf("encryption key id is required")
	}

	keys := make(map[string][]byte, len(fallbacks)+1)

	primary, err := decodeKey(primaryKeyB64)
	if err != nil {
		return nil, fmt.Errorf("invalid primary encryption key %q: %w", primaryID, err)
	}
	keys[primaryID] = primary

	for id, b64 := range fallbacks {
		key, err := decodeKey(b64)
		if err != nil {
			return nil, fmt.Errorf("invalid fallback encryption key %q: %w", id, err)
		}
		keys[id] = key
	}

	return &Keyring{primaryID: primaryID, keys: keys}, nil
}

// PrimaryKeyID returns the id new records are encrypted under.
func (k *Keyring) PrimaryKeyID() string {
	return k.primaryID
}

// Key returns the key for a stored key id.
func (k *Keyring) Key(keyID string) ([]byte, error) {
	key, ok := k.keys[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownKeyID, keyID)
	}
	return key, nil
}

func decodeKey(b64 string) ([]byte, error) {
	if b64 == "" {
		return nil, fmt.Errorf("key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("key is not valid base64: %w", err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes after decoding, got %d", KeySize, len(key))
	}
	return key, nil
}
