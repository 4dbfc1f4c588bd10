package domain

import "time"

// AuthHandshakeState tracks an in-progress OAuth authorization between
// InitAuth and HandleCallback. A state is consumed exactly once on a
// successful callback and is otherwise garbage-collected after ExpiresAt.
type AuthHandshakeState struct {
	ID           string    `json:"id"`
	ClientID     string    `json:"client_id"`
	ProviderType StoreType `json:"provider_type"`
	StoreURL     string    `json:"store_url"`
	ReturnURL    string    `json:"return_url,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// Expired reports whether the handshake is past its expiry at now.
func (s *AuthHandshakeState) Expired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
