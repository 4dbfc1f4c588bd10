package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrProviderNotFound is returned when no provider is registered for a
	// store type.
	ErrProviderNotFound = errors.New("provider not found")

	// ErrCredentialMismatch is returned when a credentials payload does not
	// match the shape the provider type declares.
	ErrCredentialMismatch = errors.New("credential shape mismatch")

	// ErrNoStoreConnected is returned by catalog operations when the client
	// has no stored connection.
	ErrNoStoreConnected = errors.New("no store connected")

	// ErrHandshakeNotFound is returned when an auth handshake is missing or
	// past its expiry.
	ErrHandshakeNotFound = errors.New("invalid or expired auth state")

	// ErrDecryptAuthentication is returned when ciphertext or its tag fails
	// AEAD authentication. This always surfaces as a hard error.
	ErrDecryptAuthentication = errors.New("credential decryption failed authentication")

	// ErrUnknownKeyID is returned when a stored key id has no matching key in
	// the keyring.
	ErrUnknownKeyID = errors.New("unknown encryption key id")
)

// UpstreamError wraps a non-2xx response from a provider API with enough
// context to log and surface without leaking credentials.
type UpstreamError struct {
	Provider  StoreType
	Operation string
	Status    int
	Body      string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s %s: upstream status %d: %s", e.Provider, e.Operation, e.Status, e.Body)
}
