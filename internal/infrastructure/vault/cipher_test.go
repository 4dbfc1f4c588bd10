package vault

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scenergy-commerce-layer/internal/domain"
)

func testKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, KeySize)
	_, err := rand.Read(key)
	require.NoError(t, err)
	return key
}

func testCredentials() *domain.ProviderCredentials {
	return &domain.ProviderCredentials{
		Provider: domain.StoreTypeWooCommerce,
		WooCommerce: &domain.WooCommerceCredentials{
			BaseURL:        "https://store.example.com",
			ConsumerKey:    "ck_test_1234",
			ConsumerSecret: "cs_test_5678",
		},
	}
}

func TestCipherRoundTrip(t *testing.T) {
	c := NewCipher()
	key := testKey(t)
	creds := testCredentials()

	enc, err := c.Encrypt(creds, "v1", key)
	require.NoError(t, err)
	assert.Equal(t, "v1", enc.KeyID)
	assert.Len(t, enc.IV, 12)
	assert.Len(t, enc.AuthTag, 16)
	assert.NotEmpty(t, enc.Ciphertext)
	assert.NotEmpty(t, enc.Fingerprint)

	decrypted, err := c.Decrypt(enc, key)
	require.NoError(t, err)
	assert.Equal(t, creds, decrypted)
}

func TestCipherEncryptIsNonDeterministic(t *testing.T) {
	c := NewCipher()
	key := testKey(t)
	creds := testCredentials()

	first, err := c.Encrypt(creds, "v1", key)
	require.NoError(t, err)
	second, err := c.Encrypt(creds, "v1", key)
	require.NoError(t, err)

	// Fresh nonce per call means ciphertext differs even for identical
	// plaintext, while the fingerprint stays stable.
	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
	assert.Equal(t, first.Fingerprint, second.Fingerprint)
}

func TestCipherDecryptWrongKey(t *testing.T) {
	c := NewCipher()
	creds := testCredentials()

	enc, err := c.Encrypt(creds, "v1", testKey(t))
	require.NoError(t, err)

	_, err = c.Decrypt(enc, testKey(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDecryptAuthentication))
}

func TestCipherDecryptTamperedCiphertext(t *testing.T) {
	c := NewCipher()
	key := testKey(t)

	enc, err := c.Encrypt(testCredentials(), "v1", key)
	require.NoError(t, err)

	enc.Ciphertext[0] ^= 0xFF
	_, err = c.Decrypt(enc, key)
	assert.True(t, errors.Is(err, domain.ErrDecryptAuthentication))
}

func TestCipherDecryptTamperedTag(t *testing.T) {
	c := NewCipher()
	key := testKey(t)

	enc, err := c.Encrypt(testCredentials(), "v1", key)
	require.NoError(t, err)

	enc.AuthTag[0] ^= 0xFF
	_, err = c.Decrypt(enc, key)
	assert.True(t, errors.Is(err, domain.ErrDecryptAuthentication))
}

func TestCipherRejectsBadKeyLength(t *testing.T) {
	c := NewCipher()

	_, err := c.Encrypt(testCredentials(), "v1", []byte("short"))
	assert.Error(t, err)

	enc, err := c.Encrypt(testCredentials(), "v1", testKey(t))
	require.NoError(t, err)
	_, err = c.Decrypt(enc, []byte("short"))
	assert.Error(t, err)
}

func TestFingerprintStableAcrossCalls(t *testing.T) {
	c := NewCipher()
	creds := testCredentials()

	first, err := c.Fingerprint(creds)
	require.NoError(t, err)
	second, err := c.Fingerprint(creds)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	creds.WooCommerce.ConsumerSecret = "cs_other"
	changed, err := c.Fingerprint(creds)
	require.NoError(t, err)
	assert.NotEqual(t, first, changed)
}

func TestKeyringLookup(t *testing.T) {
	primary := base64.StdEncoding.EncodeToString(testKey(t))
	fallback := base64.StdEncoding.EncodeToString(testKey(t))

	kr, err := NewKeyring("v2", primary, map[string]string{"v1": fallback})
	require.NoError(t, err)

	assert.Equal(t, "v2", kr.PrimaryKeyID())

	key, err := kr.Key("v2")
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	key, err = kr.Key("v1")
	require.NoError(t, err)
	assert.Len(t, key, KeySize)

	_, err = kr.Key("v0")
	assert.True(t, errors.Is(err, domain.ErrUnknownKeyID))
}

func TestKeyringValidation(t *testing.T) {
	valid := base64.StdEncoding.EncodeToString(testKey(t))

	_, err := NewKeyring("", valid, nil)
	assert.Error(t, err)

	_, err = NewKeyring("v1", "", nil)
	assert.Error(t, err)

	_, err = NewKeyring("v1", "not-base64!!!", nil)
	assert.Error(t, err)

	short := base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = NewKeyring("v1", short, nil)
	assert.Error(t, err)

	_, err = NewKeyring("v1", valid, map[string]string{"v0": short})
	assert.Error(t, err)
}
